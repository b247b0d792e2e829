package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "en", cfg.PrimaryLocale)
	assert.Equal(t, "./messages", cfg.MessagesRoot)
	assert.Contains(t, cfg.Includes, "**/*.tsx")
	assert.Contains(t, cfg.CheckedAttributes, "placeholder")
	assert.True(t, cfg.IgnoreTestFiles)
	require.NoError(t, cfg.Validate())
}

func TestLoad_ExplicitFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "glotrc.json")
	doc := `{
  "primaryLocale": "de",
  "messagesRoot": "./locales",
  "ignoreTexts": ["Acme Inc"],
  "workers": 4
}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "de", cfg.PrimaryLocale)
	assert.Equal(t, "./locales", cfg.MessagesRoot)
	assert.Equal(t, []string{"Acme Inc"}, cfg.IgnoreTexts)
	assert.Equal(t, 4, cfg.Workers)
	// Unset fields keep their defaults.
	assert.Contains(t, cfg.Includes, "**/*.tsx")
}

func TestLoad_MissingExplicitFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
}

func TestLoad_MissingDefaultFileFallsBack(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().PrimaryLocale, cfg.PrimaryLocale)
}

func TestValidate(t *testing.T) {
	t.Run("empty primary locale", func(t *testing.T) {
		cfg := Default()
		cfg.PrimaryLocale = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("bad glob pattern", func(t *testing.T) {
		cfg := Default()
		cfg.Includes = append(cfg.Includes, "[")
		assert.Error(t, cfg.Validate())
	})

	t.Run("negative workers", func(t *testing.T) {
		cfg := Default()
		cfg.Workers = -1
		assert.Error(t, cfg.Validate())
	})
}

func TestEffectiveIgnores(t *testing.T) {
	cfg := Default()
	assert.Contains(t, cfg.EffectiveIgnores(), "**/*.test.*")

	cfg.IgnoreTestFiles = false
	assert.NotContains(t, cfg.EffectiveIgnores(), "**/*.test.*")
}

func TestWriteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".glotrc.json")
	want := Default()
	want.PrimaryLocale = "fr"
	require.NoError(t, Write(path, want))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "fr", got.PrimaryLocale)
	assert.Equal(t, want.Includes, got.Includes)
}
