// Package checker orchestrates the per-file analysis pass and the cross-file
// set algebra over locale tables.
package checker

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog"

	"glot/internal/finding"
	"glot/internal/locale"
	"glot/internal/parser"
	"glot/internal/resolver"
)

// SourceFile is one source document handed in by file discovery.
type SourceFile struct {
	Path string
	Text []byte
}

// LocaleFile is one locale JSON document with its locale identifier.
type LocaleFile struct {
	Locale string
	Path   string
	Text   []byte
}

// Config is the resolved configuration the engine needs.
type Config struct {
	PrimaryLocale     string
	CheckedAttributes []string
	IgnoreTexts       []string
	// Workers sizes the per-file worker pool; zero means GOMAXPROCS.
	Workers int
}

// ConfigError is fatal: it halts the run before any findings are produced.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "configuration error: " + e.Reason
}

// Result of a full check pass. Findings are sorted and immutable; UsedKeys
// maps each fully-resolved key path to its usage sites.
type Result struct {
	Findings []finding.Finding
	UsedKeys map[string][]resolver.KeyUsage
	Primary  *locale.Table
	Replicas []*locale.Table
}

type fileResult struct {
	findings []finding.Finding
	usages   []resolver.KeyUsage
}

// Run executes the whole pass: parallel per-file analysis, then the
// single-threaded cross-file pass once every file has reported.
func Run(ctx context.Context, cfg Config, sources []SourceFile, locales []LocaleFile, log zerolog.Logger) (*Result, error) {
	if cfg.PrimaryLocale == "" {
		return nil, &ConfigError{Reason: "primary locale is not set"}
	}

	opts := resolver.Options{
		CheckedAttributes: toSet(cfg.CheckedAttributes),
		IgnoreTexts:       toSet(cfg.IgnoreTexts),
	}

	perFile, err := runFilePass(ctx, cfg.Workers, sources, opts)
	if err != nil {
		return nil, err
	}

	res := &Result{UsedKeys: make(map[string][]resolver.KeyUsage)}
	for _, fr := range perFile {
		res.Findings = append(res.Findings, fr.findings...)
		for _, u := range fr.usages {
			res.UsedKeys[u.Key] = append(res.UsedKeys[u.Key], u)
		}
	}
	for _, usages := range res.UsedKeys {
		sortUsages(usages)
	}

	if err := loadTables(cfg, locales, res); err != nil {
		return nil, err
	}
	crossFilePass(cfg, res)

	finding.Sort(res.Findings)
	log.Debug().
		Int("files", len(sources)).
		Int("keys", len(res.UsedKeys)).
		Int("findings", len(res.Findings)).
		Msg("check pass complete")
	return res, nil
}

// runFilePass analyzes every source file on a worker pool. Files are
// independent; each task writes only its own slot.
func runFilePass(ctx context.Context, workers int, sources []SourceFile, opts resolver.Options) ([]fileResult, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	results := make([]fileResult, len(sources))
	var wg sync.WaitGroup
	for i := range sources {
		i := i
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			results[i] = analyzeFile(ctx, sources[i], opts)
		})
		if submitErr != nil {
			wg.Done()
			results[i] = analyzeFile(ctx, sources[i], opts)
		}
	}
	wg.Wait()
	return results, nil
}

func analyzeFile(ctx context.Context, src SourceFile, opts resolver.Options) fileResult {
	unit, err := parser.Parse(ctx, src.Path, src.Text)
	if err != nil {
		f := finding.New(finding.ParseError, src.Path, finding.Span{
			Start: finding.Position{Line: 1, Col: 1},
			End:   finding.Position{Line: 1, Col: 1},
		}, err.Error())
		return fileResult{findings: []finding.Finding{f}}
	}
	if unit.Failure != nil {
		f := finding.New(finding.ParseError, src.Path, unit.Failure.Span, unit.Failure.Message)
		return fileResult{findings: []finding.Finding{f}}
	}

	res := resolver.Walk(unit, opts)
	return fileResult{findings: res.Findings, usages: res.UsedKeys}
}

// loadTables loads the primary and replica tables. A missing primary locale
// reference is fatal; malformed replica documents become parse-error findings
// and drop only that replica.
func loadTables(cfg Config, locales []LocaleFile, res *Result) error {
	var primaryFile *LocaleFile
	var replicaFiles []LocaleFile
	for i := range locales {
		if locales[i].Locale == cfg.PrimaryLocale {
			primaryFile = &locales[i]
		} else {
			replicaFiles = append(replicaFiles, locales[i])
		}
	}
	if primaryFile == nil {
		return &ConfigError{Reason: fmt.Sprintf("primary locale %q has no locale file", cfg.PrimaryLocale)}
	}

	primary, err := locale.Load(primaryFile.Locale, primaryFile.Path, primaryFile.Text)
	if err != nil {
		res.Findings = append(res.Findings, loadFinding(err, primaryFile.Path))
	} else {
		res.Primary = primary
	}

	for _, rf := range replicaFiles {
		table, err := locale.Load(rf.Locale, rf.Path, rf.Text)
		if err != nil {
			res.Findings = append(res.Findings, loadFinding(err, rf.Path))
			continue
		}
		res.Replicas = append(res.Replicas, table)
	}
	return nil
}

func loadFinding(err error, path string) finding.Finding {
	if loadErr, ok := err.(*locale.LoadError); ok {
		return finding.New(finding.ParseError, loadErr.Path, loadErr.Span, loadErr.Err.Error())
	}
	return finding.New(finding.ParseError, path, finding.Span{
		Start: finding.Position{Line: 1, Col: 1},
		End:   finding.Position{Line: 1, Col: 1},
	}, err.Error())
}

// crossFilePass runs the multi-table set algebra. It is single-threaded: the
// joins are cheap next to parsing.
func crossFilePass(cfg Config, res *Result) {
	primary := res.Primary
	if primary == nil {
		// Primary table failed to load; the table-side checks have no
		// source of truth to judge against.
		return
	}
	ignore := toSet(cfg.IgnoreTexts)

	// missing-key: used in source, absent from primary.
	for _, key := range sortedKeys(res.UsedKeys) {
		if primary.Has(key) {
			continue
		}
		first := res.UsedKeys[key][0]
		f := finding.New(finding.MissingKey, first.File, first.Span,
			fmt.Sprintf("key %q is missing from primary locale %q", key, primary.Locale))
		f.Key = key
		f.SourceLine = first.SourceLine
		f.InJSX = first.InJSX
		f.Suppressed = first.MissingSuppressed
		res.Findings = append(res.Findings, f)
	}

	// unused-key: present in primary, never referenced.
	for _, key := range primary.Keys {
		if _, used := res.UsedKeys[key]; used {
			continue
		}
		f := finding.New(finding.UnusedKey, primary.Path, primary.Span(key),
			fmt.Sprintf("key %q is not used by any source file", key))
		f.Key = key
		res.Findings = append(res.Findings, f)
	}

	for _, replica := range res.Replicas {
		// orphan-key: in replica, not in primary.
		for _, key := range replica.Keys {
			if primary.Has(key) {
				continue
			}
			f := finding.New(finding.OrphanKey, replica.Path, replica.Span(key),
				fmt.Sprintf("key %q in locale %q has no primary entry", key, replica.Locale))
			f.Key = key
			f.Locale = replica.Locale
			res.Findings = append(res.Findings, f)
		}
	}

	// replica-lag: grouped per key over the replicas that miss it.
	for _, key := range primary.Keys {
		var missing []string
		for _, replica := range res.Replicas {
			if !replica.Has(key) {
				missing = append(missing, replica.Locale)
			}
		}
		if len(missing) == 0 {
			continue
		}
		f := finding.New(finding.ReplicaLag, primary.Path, primary.Span(key),
			fmt.Sprintf("key %q is missing from replica locale(s) %s", key, strings.Join(missing, ", ")))
		f.Key = key
		f.Locale = strings.Join(missing, ",")
		res.Findings = append(res.Findings, f)
	}

	// type-mismatch and untranslated share the key pairs; type comparison
	// precedes value comparison.
	for _, replica := range res.Replicas {
		for _, key := range replica.Keys {
			pe, ok := primary.Entries[key]
			if !ok {
				continue
			}
			re := replica.Entries[key]
			if pe.Type != re.Type {
				f := finding.New(finding.TypeMismatch, replica.Path, replica.Span(key),
					fmt.Sprintf("key %q is %s in %q but %s in %q",
						key, pe.Type, primary.Locale, re.Type, replica.Locale))
				f.Key = key
				f.Locale = replica.Locale
				res.Findings = append(res.Findings, f)
				continue
			}
			if pe.Type != locale.TypeString || pe.Value != re.Value {
				continue
			}
			if !resolver.ContainsAlphabetic(pe.Value) || ignore[pe.Value] {
				continue
			}
			f := finding.New(finding.Untranslated, replica.Path, replica.Span(key),
				fmt.Sprintf("key %q in locale %q is identical to %q", key, replica.Locale, primary.Locale))
			f.Key = key
			f.Locale = replica.Locale
			f.Suppressed = untranslatedSuppressed(res.UsedKeys[key])
			res.Findings = append(res.Findings, f)
		}
	}
}

// untranslatedSuppressed reports whether every usage site of the key carries
// an untranslated suppression directive.
func untranslatedSuppressed(usages []resolver.KeyUsage) bool {
	if len(usages) == 0 {
		return false
	}
	for _, u := range usages {
		if !u.UntranslatedSuppressed {
			return false
		}
	}
	return true
}

func sortUsages(usages []resolver.KeyUsage) {
	sort.SliceStable(usages, func(i, j int) bool {
		a, b := usages[i], usages[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Span.Start.Line != b.Span.Start.Line {
			return a.Span.Start.Line < b.Span.Start.Line
		}
		return a.Span.Start.Col < b.Span.Start.Col
	})
}

func sortedKeys(m map[string][]resolver.KeyUsage) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
