package core

// RepoConfig represents the structure of the optional .diff0.yml file in a
// reviewed repository. It lets repository owners tune reviews without
// touching the dashboard.
type RepoConfig struct {
	// Disabled turns reviews off for this repository even when auto-review
	// is enabled in the dashboard.
	Disabled bool `yaml:"disabled"`

	// Custom instructions appended to the analyzer context.
	CustomInstructions []string `yaml:"custom_instructions"`

	// Path prefixes whose issues are dropped from the review.
	// Example: ["vendor/", "dist/"]
	ExcludePaths []string `yaml:"exclude_paths"`

	// MaxInlineComments overrides the server-wide inline comment cap when
	// set to a positive value.
	MaxInlineComments int `yaml:"max_inline_comments"`
}

// DefaultRepoConfig returns a config with default values.
func DefaultRepoConfig() *RepoConfig {
	return &RepoConfig{
		CustomInstructions: []string{},
		ExcludePaths:       []string{},
	}
}
