// Package config loads and validates the checker configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"

	doublestar "github.com/bmatcuk/doublestar"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultFile is the config file name looked up in the working directory.
const DefaultFile = ".glotrc.json"

// Config drives a check run. All paths are relative to the working directory
// unless absolute.
type Config struct {
	// SourceRoot is the directory scanned for source files.
	SourceRoot string `mapstructure:"sourceRoot" json:"sourceRoot"`
	// MessagesRoot holds one <locale>.json per locale.
	MessagesRoot string `mapstructure:"messagesRoot" json:"messagesRoot"`
	// PrimaryLocale names the source-of-truth table.
	PrimaryLocale string `mapstructure:"primaryLocale" json:"primaryLocale"`

	// Includes are doublestar patterns selecting source files.
	Includes []string `mapstructure:"includes" json:"includes"`
	// Ignores are doublestar patterns excluding files after Includes.
	Ignores []string `mapstructure:"ignores" json:"ignores"`
	// IgnoreTestFiles adds the conventional test file patterns to Ignores.
	IgnoreTestFiles bool `mapstructure:"ignoreTestFiles" json:"ignoreTestFiles"`

	// CheckedAttributes are JSX attribute names whose string values are
	// checked for hardcoded text.
	CheckedAttributes []string `mapstructure:"checkedAttributes" json:"checkedAttributes"`
	// IgnoreTexts are exact strings exempt from hardcoded and untranslated
	// reporting, typically brand names.
	IgnoreTexts []string `mapstructure:"ignoreTexts" json:"ignoreTexts"`

	// Workers sizes the per-file analysis pool; zero means GOMAXPROCS.
	Workers int `mapstructure:"workers" json:"workers"`
}

// testFilePatterns cover the common JS test layouts.
var testFilePatterns = []string{
	"**/*.test.*",
	"**/*.spec.*",
	"**/__tests__/**",
}

// Default returns the configuration used when no config file exists.
func Default() Config {
	return Config{
		SourceRoot:      ".",
		MessagesRoot:    "./messages",
		PrimaryLocale:   "en",
		Includes:        []string{"**/*.tsx", "**/*.ts", "**/*.jsx", "**/*.js"},
		Ignores:         []string{"**/node_modules/**", "**/.git/**", "**/.next/**", "**/dist/**"},
		IgnoreTestFiles: true,
		CheckedAttributes: []string{
			"placeholder", "title", "alt", "aria-label", "aria-description",
			"aria-placeholder", "aria-roledescription", "aria-valuetext",
		},
	}
}

// Load reads the config file at path, or DefaultFile when path is empty.
// A missing default file falls back to Default(). Environment variables with
// the GLOT_ prefix override file values (GLOT_PRIMARYLOCALE, GLOT_WORKERS).
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvPrefix("GLOT")
	v.AutomaticEnv()

	def := Default()
	v.SetDefault("sourceRoot", def.SourceRoot)
	v.SetDefault("messagesRoot", def.MessagesRoot)
	v.SetDefault("primaryLocale", def.PrimaryLocale)
	v.SetDefault("includes", def.Includes)
	v.SetDefault("ignores", def.Ignores)
	v.SetDefault("ignoreTestFiles", def.IgnoreTestFiles)
	v.SetDefault("checkedAttributes", def.CheckedAttributes)
	v.SetDefault("ignoreTexts", def.IgnoreTexts)
	v.SetDefault("workers", def.Workers)

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		// The default file is optional; an explicitly named one is not.
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the engine cannot act on.
func (c Config) Validate() error {
	if c.PrimaryLocale == "" {
		return fmt.Errorf("primaryLocale must not be empty")
	}
	if c.SourceRoot == "" {
		return fmt.Errorf("sourceRoot must not be empty")
	}
	if c.MessagesRoot == "" {
		return fmt.Errorf("messagesRoot must not be empty")
	}
	for _, p := range c.allPatterns() {
		if _, err := doublestar.Match(p, ""); err != nil {
			return fmt.Errorf("invalid glob pattern %q: %w", p, err)
		}
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative")
	}
	return nil
}

// EffectiveIgnores is Ignores plus the test file patterns when enabled.
func (c Config) EffectiveIgnores() []string {
	if !c.IgnoreTestFiles {
		return c.Ignores
	}
	out := make([]string, 0, len(c.Ignores)+len(testFilePatterns))
	out = append(out, c.Ignores...)
	out = append(out, testFilePatterns...)
	return out
}

// EffectiveWorkers resolves the zero default.
func (c Config) EffectiveWorkers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.GOMAXPROCS(0)
}

func (c Config) allPatterns() []string {
	out := append([]string{}, c.Includes...)
	return append(out, c.Ignores...)
}

// Write saves the configuration as indented JSON, used by init.
func Write(path string, c Config) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
