package checker

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glot/internal/finding"
)

func runPass(t *testing.T, cfg Config, sources []SourceFile, locales []LocaleFile) *Result {
	t.Helper()
	res, err := Run(context.Background(), cfg, sources, locales, zerolog.Nop())
	require.NoError(t, err)
	return res
}

func ofKind(res *Result, kind finding.Kind) []finding.Finding {
	var out []finding.Finding
	for _, f := range res.Findings {
		if f.Kind == kind {
			out = append(out, f)
		}
	}
	return out
}

func keysOf(findings []finding.Finding) []string {
	var keys []string
	for _, f := range findings {
		keys = append(keys, f.Key)
	}
	return keys
}

var baseCfg = Config{PrimaryLocale: "en", Workers: 2}

func TestRun_MissingAndUnusedAreDisjoint(t *testing.T) {
	src := `export function Page() {
  const t = useTranslations("common");
  return <div>{t("greeting")}{t("farewell")}</div>;
}
`
	res := runPass(t, baseCfg,
		[]SourceFile{{Path: "page.tsx", Text: []byte(src)}},
		[]LocaleFile{{Locale: "en", Path: "en.json", Text: []byte(`{"common":{"greeting":"Hi"},"legacy":{"unused_old_key":"x"}}`)}},
	)

	missing := ofKind(res, finding.MissingKey)
	unused := ofKind(res, finding.UnusedKey)
	assert.Equal(t, []string{"common.farewell"}, keysOf(missing))
	assert.Equal(t, []string{"legacy.unused_old_key"}, keysOf(unused))
	assert.Equal(t, finding.Error, missing[0].Severity)
	assert.Equal(t, finding.Warning, unused[0].Severity)
	assert.Equal(t, "page.tsx", missing[0].File, "missing-key points at the call site")
	assert.Equal(t, "en.json", unused[0].File, "unused-key points into the table")

	for _, m := range missing {
		assert.NotContains(t, keysOf(unused), m.Key)
	}
}

func TestRun_MissingKeyLocatedAtFirstCallSite(t *testing.T) {
	a := `export function A() {
  const t = useTranslations("x");
  return t("gone");
}
`
	b := `export function B() {
  const t = useTranslations("x");
  return t("gone");
}
`
	res := runPass(t, baseCfg,
		[]SourceFile{
			{Path: "b.tsx", Text: []byte(b)},
			{Path: "a.tsx", Text: []byte(a)},
		},
		[]LocaleFile{{Locale: "en", Path: "en.json", Text: []byte(`{}`)}},
	)

	missing := ofKind(res, finding.MissingKey)
	require.Len(t, missing, 1)
	assert.Equal(t, "a.tsx", missing[0].File)
}

func TestRun_ReplicaChecks(t *testing.T) {
	res := runPass(t, baseCfg,
		nil,
		[]LocaleFile{
			{Locale: "en", Path: "en.json", Text: []byte(`{"common":{"ok":"OK2","list":["a"],"only":"Here"}}`)},
			{Locale: "de", Path: "de.json", Text: []byte(`{"common":{"ok":"OK2","list":"flat","extra":"Nur hier"}}`)},
		},
	)

	t.Run("replica lag", func(t *testing.T) {
		lag := ofKind(res, finding.ReplicaLag)
		require.Len(t, lag, 1)
		assert.Equal(t, "common.only", lag[0].Key)
		assert.Equal(t, "de", lag[0].Locale)
		assert.Equal(t, "en.json", lag[0].File)
	})

	t.Run("orphan key", func(t *testing.T) {
		orphans := ofKind(res, finding.OrphanKey)
		require.Len(t, orphans, 1)
		assert.Equal(t, "common.extra", orphans[0].Key)
		assert.Equal(t, "de.json", orphans[0].File)
	})

	t.Run("type mismatch wins over untranslated", func(t *testing.T) {
		mismatches := ofKind(res, finding.TypeMismatch)
		require.Len(t, mismatches, 1)
		assert.Equal(t, "common.list", mismatches[0].Key)

		// common.ok is identical but has no alphabetic-free exemption;
		// it stays untranslated. common.list must not double-report.
		untranslated := ofKind(res, finding.Untranslated)
		assert.Equal(t, []string{"common.ok"}, keysOf(untranslated))
	})

	t.Run("no key is both lagging and orphaned for one replica", func(t *testing.T) {
		lagKeys := keysOf(ofKind(res, finding.ReplicaLag))
		for _, k := range keysOf(ofKind(res, finding.OrphanKey)) {
			assert.NotContains(t, lagKeys, k)
		}
	})
}

func TestRun_UntranslatedIdenticalValues(t *testing.T) {
	res := runPass(t, baseCfg,
		nil,
		[]LocaleFile{
			{Locale: "en", Path: "en.json", Text: []byte(`{"common":{"button":"Submit"}}`)},
			{Locale: "fr", Path: "fr.json", Text: []byte(`{"common":{"button":"Submit"}}`)},
		},
	)

	untranslated := ofKind(res, finding.Untranslated)
	require.Len(t, untranslated, 1)
	assert.Equal(t, "common.button", untranslated[0].Key)
	assert.Equal(t, "fr", untranslated[0].Locale)
	assert.Equal(t, finding.Warning, untranslated[0].Severity)
}

func TestRun_UntranslatedRespectsIgnoreTextsAndNonAlphabetic(t *testing.T) {
	cfg := baseCfg
	cfg.IgnoreTexts = []string{"OK"}
	res := runPass(t, cfg,
		nil,
		[]LocaleFile{
			{Locale: "en", Path: "en.json", Text: []byte(`{"a":"OK","b":"42","c":"Same"}`)},
			{Locale: "de", Path: "de.json", Text: []byte(`{"a":"OK","b":"42","c":"Same"}`)},
		},
	)

	assert.Equal(t, []string{"c"}, keysOf(ofKind(res, finding.Untranslated)))
}

func TestRun_UntranslatedSuppressedByUsageDirectives(t *testing.T) {
	src := `export function Page() {
  const t = useTranslations("common");
  // glot-disable-next-line untranslated
  return t("button");
}
`
	res := runPass(t, baseCfg,
		[]SourceFile{{Path: "page.tsx", Text: []byte(src)}},
		[]LocaleFile{
			{Locale: "en", Path: "en.json", Text: []byte(`{"common":{"button":"Submit"}}`)},
			{Locale: "de", Path: "de.json", Text: []byte(`{"common":{"button":"Submit"}}`)},
		},
	)

	untranslated := ofKind(res, finding.Untranslated)
	require.Len(t, untranslated, 1)
	assert.True(t, untranslated[0].Suppressed)
}

func TestRun_ParseErrorIsolatesFile(t *testing.T) {
	good := `export function Ok() {
  const t = useTranslations("common");
  return t("greeting");
}
`
	res := runPass(t, baseCfg,
		[]SourceFile{
			{Path: "bad.tsx", Text: []byte("export function Broken( {")},
			{Path: "good.tsx", Text: []byte(good)},
		},
		[]LocaleFile{{Locale: "en", Path: "en.json", Text: []byte(`{"common":{"greeting":"Hi"}}`)}},
	)

	parseErrs := ofKind(res, finding.ParseError)
	require.Len(t, parseErrs, 1)
	assert.Equal(t, "bad.tsx", parseErrs[0].File)

	// The good file still contributed its key: nothing missing, nothing unused.
	assert.Empty(t, ofKind(res, finding.MissingKey))
	assert.Empty(t, ofKind(res, finding.UnusedKey))
}

func TestRun_MalformedReplicaBecomesParseError(t *testing.T) {
	res := runPass(t, baseCfg,
		nil,
		[]LocaleFile{
			{Locale: "en", Path: "en.json", Text: []byte(`{"a":"x"}`)},
			{Locale: "de", Path: "de.json", Text: []byte(`{"a": nope}`)},
		},
	)

	require.Len(t, ofKind(res, finding.ParseError), 1)
	// The broken replica is excluded, so no lag is reported against it.
	assert.Empty(t, ofKind(res, finding.ReplicaLag))
}

func TestRun_MissingPrimaryIsFatal(t *testing.T) {
	_, err := Run(context.Background(), baseCfg, nil,
		[]LocaleFile{{Locale: "de", Path: "de.json", Text: []byte(`{}`)}}, zerolog.Nop())
	require.Error(t, err)

	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestRun_FindingsAreSorted(t *testing.T) {
	src := `export function M() {
  return <div>Zeta<span>Alpha</span></div>;
}
`
	res := runPass(t, baseCfg,
		[]SourceFile{{Path: "m.tsx", Text: []byte(src)}},
		[]LocaleFile{{Locale: "en", Path: "en.json", Text: []byte(`{}`)}},
	)

	hard := ofKind(res, finding.Hardcoded)
	require.Len(t, hard, 2)
	assert.Equal(t, "Zeta", hard[0].Text)
	assert.Equal(t, "Alpha", hard[1].Text)
}
