package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"glot/internal/checker"
	"glot/internal/config"
	"glot/internal/editor"
	"glot/internal/finding"
	"glot/internal/reporter"
	"glot/internal/scanner"
	"glot/internal/server"
	"glot/internal/storage"
)

var (
	rootCmd = &cobra.Command{
		Use:   "glot",
		Short: "Static i18n checker for JSX codebases",
	}
	configPath string
	verbose    bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the config file (default .glotrc.json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(baselineCmd)
	rootCmd.AddCommand(fixCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8651", "Listen address")
	serveCmd.Flags().StringVar(&serveDB, "db", "glot.db", "Path to the snapshot database (SQLite)")
	checkCmd.Flags().BoolVar(&showSuppressed, "show-suppressed", false, "Also list directive-suppressed findings")
}

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).With().Timestamp().Logger()
}

// runCheck loads the config, discovers sources and tables and runs the full
// check pass.
func runCheck(ctx context.Context, log zerolog.Logger) (config.Config, *checker.Result, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, nil, err
	}

	sources, err := scanner.Sources(cfg)
	if err != nil {
		return cfg, nil, err
	}
	locales, err := scanner.Locales(cfg)
	if err != nil {
		return cfg, nil, err
	}
	log.Debug().Int("sources", len(sources)).Int("locales", len(locales)).Msg("scan complete")

	res, err := checker.Run(ctx, checker.Config{
		PrimaryLocale:     cfg.PrimaryLocale,
		CheckedAttributes: cfg.CheckedAttributes,
		IgnoreTexts:       cfg.IgnoreTexts,
		Workers:           cfg.Workers,
	}, sources, locales, log)
	return cfg, res, err
}

var showSuppressed bool

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run all checks and report findings",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()
		_, res, err := runCheck(cmd.Context(), log)
		if err != nil {
			return err
		}

		rep := reporter.New(os.Stdout)
		rep.ShowSuppressed = showSuppressed
		rep.Print(res.Findings)
		rep.Summary(res.Findings)

		if code := reporter.ExitCode(res.Findings); code != 0 {
			os.Exit(code)
		}
		return nil
	},
}

var baselineCmd = &cobra.Command{
	Use:   "baseline",
	Short: "Insert suppression directives for all current hardcoded and untranslated findings",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()
		_, res, err := runCheck(cmd.Context(), log)
		if err != nil {
			return err
		}

		perFile := make(map[string][]finding.Finding)
		for _, f := range res.Findings {
			if f.Suppressed {
				continue
			}
			switch f.Kind {
			case finding.Hardcoded:
				perFile[f.File] = append(perFile[f.File], f)
			case finding.Untranslated:
				// The finding sits in a replica table; suppress it at the
				// key's usage sites instead.
				for _, u := range res.UsedKeys[f.Key] {
					site := finding.New(finding.Untranslated, u.File, u.Span, f.Message)
					site.SourceLine = u.SourceLine
					site.InJSX = u.InJSX
					perFile[u.File] = append(perFile[u.File], site)
				}
			}
		}

		return applySourceEdits(perFile, func(text string, fs []finding.Finding) (string, error) {
			return editor.InsertSuppressions(text, fs)
		}, log)
	},
}

var fixCmd = &cobra.Command{
	Use:   "fix",
	Short: "Insert message-keys annotation stubs above unresolved dynamic calls",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()
		_, res, err := runCheck(cmd.Context(), log)
		if err != nil {
			return err
		}

		perFile := make(map[string][]editor.AnnotationTarget)
		for _, f := range res.Findings {
			if f.Kind != finding.UnresolvedKey || f.Suppressed {
				continue
			}
			perFile[f.File] = append(perFile[f.File], editor.AnnotationTarget{
				File:       f.File,
				Line:       f.Span.Start.Line,
				SourceLine: f.SourceLine,
				InJSX:      f.InJSX,
			})
		}

		edited := 0
		for path, targets := range perFile {
			text, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			next, err := editor.InsertAnnotations(string(text), targets)
			if err != nil {
				var conflict *editor.ConflictError
				if errors.As(err, &conflict) {
					log.Warn().Str("file", path).Int("line", conflict.Line).Msg("file changed since check, skipping")
					continue
				}
				return err
			}
			if next == string(text) {
				continue
			}
			if err := os.WriteFile(path, []byte(next), 0o644); err != nil {
				return err
			}
			edited++
		}
		log.Info().Int("files", edited).Msg("annotation stubs inserted")
		return nil
	},
}

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete unused keys from every locale table",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()
		_, res, err := runCheck(cmd.Context(), log)
		if err != nil {
			return err
		}

		var unused []string
		for _, f := range res.Findings {
			if f.Kind == finding.UnusedKey && !f.Suppressed {
				unused = append(unused, f.Key)
			}
		}
		if len(unused) == 0 {
			log.Info().Msg("no unused keys")
			return nil
		}

		// Compute every edit before writing so a failure leaves all
		// tables untouched.
		edits := make(map[string]string)
		for _, table := range allTables(res) {
			next, err := editor.DeleteKeys(table.Text, unused)
			if err != nil {
				return err
			}
			if next != table.Text {
				edits[table.Path] = next
			}
		}
		for path, text := range edits {
			if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
				return err
			}
		}
		log.Info().Int("keys", len(unused)).Int("tables", len(edits)).Msg("unused keys deleted")
		return nil
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			path = config.DefaultFile
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
		if err := config.Write(path, config.Default()); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", path)
		return nil
	},
}

var (
	serveAddr string
	serveDB   string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve findings and key management over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		store, err := storage.NewSnapshotStore(serveDB)
		if err != nil {
			return err
		}
		defer store.Close()

		srv := server.New(cfg, store, log)
		log.Info().Str("addr", serveAddr).Msg("listening")
		return srv.Router().Run(serveAddr)
	},
}

// applySourceEdits reads, edits and rewrites each file, computing all edits
// before the first write.
func applySourceEdits(perFile map[string][]finding.Finding, edit func(string, []finding.Finding) (string, error), log zerolog.Logger) error {
	edits := make(map[string]string)
	for path, fs := range perFile {
		text, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		next, err := edit(string(text), fs)
		if err != nil {
			// A stale file only loses its own edits.
			var conflict *editor.ConflictError
			if errors.As(err, &conflict) {
				log.Warn().Str("file", path).Int("line", conflict.Line).Msg("file changed since check, skipping")
				continue
			}
			return err
		}
		if next != string(text) {
			edits[path] = next
		}
	}
	for path, text := range edits {
		if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
			return err
		}
	}
	log.Info().Int("files", len(edits)).Msg("suppressions inserted")
	return nil
}

// allTables lists the loaded tables, primary first.
func allTables(res *checker.Result) []*localeTableRef {
	var out []*localeTableRef
	if res.Primary != nil {
		out = append(out, &localeTableRef{Path: res.Primary.Path, Text: res.Primary.Text})
	}
	for _, r := range res.Replicas {
		out = append(out, &localeTableRef{Path: r.Path, Text: r.Text})
	}
	return out
}

type localeTableRef struct {
	Path string
	Text string
}
