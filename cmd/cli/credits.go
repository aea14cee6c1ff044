package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/diff0/diff0/internal/wire"
)

var creditsCmd = &cobra.Command{
	Use:   "credits",
	Short: "Manages user credit balances",
}

var creditsBalanceCmd = &cobra.Command{
	Use:   "balance <user-id>",
	Short: "Shows a user's current credit balance",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		ctx := context.Background()

		app, cleanup, err := wire.InitializeApp(ctx)
		if err != nil {
			return fmt.Errorf("failed to initialize app services: %w", err)
		}
		defer cleanup()

		balance, err := app.Store.GetCreditBalance(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to retrieve balance: %w", err)
		}

		fmt.Printf("%d\n", balance)
		return nil
	},
}

var grantDescription string

var creditsGrantCmd = &cobra.Command{
	Use:   "grant <user-id> <amount>",
	Short: "Adds credits to a user's balance",
	Args:  cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		amount, err := strconv.Atoi(args[1])
		if err != nil || amount <= 0 {
			return fmt.Errorf("amount must be a positive integer, got %q", args[1])
		}

		ctx := context.Background()

		app, cleanup, err := wire.InitializeApp(ctx)
		if err != nil {
			return fmt.Errorf("failed to initialize app services: %w", err)
		}
		defer cleanup()

		balance, err := app.Store.AddCredits(ctx, args[0], amount, grantDescription)
		if err != nil {
			return fmt.Errorf("failed to grant credits: %w", err)
		}

		fmt.Printf("granted %d credits, new balance: %d\n", amount, balance)
		return nil
	},
}

func init() { //nolint:gochecknoinits // Cobra's init function for command registration
	creditsGrantCmd.Flags().StringVarP(&grantDescription, "description", "d", "manual grant", "Journal description for the grant")
	creditsCmd.AddCommand(creditsBalanceCmd)
	creditsCmd.AddCommand(creditsGrantCmd)
	rootCmd.AddCommand(creditsCmd)
}
