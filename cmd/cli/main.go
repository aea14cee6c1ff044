package main

import (
	"fmt"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "diff0-cli:", err)
		os.Exit(1)
	}
}
