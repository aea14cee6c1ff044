package config

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/diff0/diff0/internal/core"
)

// RepoConfigFileName is the per-repository override file read from the
// repository's default branch.
const RepoConfigFileName = ".diff0.yml"

// ErrRepoConfigParsing wraps yaml errors from a malformed override file.
var ErrRepoConfigParsing = errors.New("repo config parsing failed")

// ParseRepoConfig parses the raw contents of a .diff0.yml file. Callers that
// could not find the file should use core.DefaultRepoConfig instead.
func ParseRepoConfig(data []byte) (*core.RepoConfig, error) {
	cfg := core.DefaultRepoConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRepoConfigParsing, err)
	}
	return cfg, nil
}
