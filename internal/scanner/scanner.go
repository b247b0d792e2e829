// Package scanner discovers source files and locale tables on disk.
package scanner

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	doublestar "github.com/bmatcuk/doublestar"

	"glot/internal/checker"
	"glot/internal/config"
)

// skipDirs are pruned during the walk without consulting the ignore patterns.
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
}

// Sources walks the configured source root and returns every file matched by
// the include patterns and not excluded by the ignore patterns, in path order.
func Sources(cfg config.Config) ([]checker.SourceFile, error) {
	root := cfg.SourceRoot
	ignores := cfg.EffectiveIgnores()

	var files []checker.SourceFile
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !matchesAny(cfg.Includes, rel) || matchesAny(ignores, rel) {
			return nil
		}

		text, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		files = append(files, checker.SourceFile{Path: path, Text: text})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// Locales reads every <locale>.json directly under the messages root. The
// locale identifier is the file name without extension.
func Locales(cfg config.Config) ([]checker.LocaleFile, error) {
	entries, err := os.ReadDir(cfg.MessagesRoot)
	if err != nil {
		return nil, fmt.Errorf("read messages root %s: %w", cfg.MessagesRoot, err)
	}

	var locales []checker.LocaleFile
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		path := filepath.Join(cfg.MessagesRoot, e.Name())
		text, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		locales = append(locales, checker.LocaleFile{
			Locale: strings.TrimSuffix(e.Name(), ".json"),
			Path:   path,
			Text:   text,
		})
	}

	sort.Slice(locales, func(i, j int) bool { return locales[i].Locale < locales[j].Locale })
	return locales, nil
}

// LocalePath returns the on-disk path for a locale's table.
func LocalePath(cfg config.Config, locale string) string {
	return filepath.Join(cfg.MessagesRoot, locale+".json")
}

func matchesAny(patterns []string, rel string) bool {
	for _, p := range patterns {
		if ok, err := doublestar.Match(p, rel); err == nil && ok {
			return true
		}
	}
	return false
}
