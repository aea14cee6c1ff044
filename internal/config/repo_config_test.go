package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRepoConfig(t *testing.T) {
	data := []byte(`
disabled: false
custom_instructions:
  - Focus on concurrency bugs
  - Ignore generated files
exclude_paths:
  - vendor/
  - dist/
max_inline_comments: 5
`)

	cfg, err := ParseRepoConfig(data)

	require.NoError(t, err)
	assert.False(t, cfg.Disabled)
	assert.Equal(t, []string{"Focus on concurrency bugs", "Ignore generated files"}, cfg.CustomInstructions)
	assert.Equal(t, []string{"vendor/", "dist/"}, cfg.ExcludePaths)
	assert.Equal(t, 5, cfg.MaxInlineComments)
}

func TestParseRepoConfig_EmptyFileGivesDefaults(t *testing.T) {
	cfg, err := ParseRepoConfig([]byte(""))

	require.NoError(t, err)
	assert.False(t, cfg.Disabled)
	assert.Empty(t, cfg.ExcludePaths)
	assert.Zero(t, cfg.MaxInlineComments)
}

func TestParseRepoConfig_InvalidYAML(t *testing.T) {
	_, err := ParseRepoConfig([]byte("disabled: [unclosed"))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRepoConfigParsing)
}
