package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glot/internal/finding"
	"glot/internal/parser"
)

func walkSource(t *testing.T, src string, opts Options) *Result {
	t.Helper()
	unit, err := parser.Parse(context.Background(), "app.tsx", []byte(src))
	require.NoError(t, err)
	require.Nil(t, unit.Failure, "test source must parse cleanly")
	return Walk(unit, opts)
}

func usedKeys(res *Result) []string {
	keys := make([]string, 0, len(res.UsedKeys))
	for _, u := range res.UsedKeys {
		keys = append(keys, u.Key)
	}
	return keys
}

func findingsOf(res *Result, kind finding.Kind) []finding.Finding {
	var out []finding.Finding
	for _, f := range res.Findings {
		if f.Kind == kind {
			out = append(out, f)
		}
	}
	return out
}

func TestWalk_HardcodedJSXText(t *testing.T) {
	src := `export function Button() {
  return <button>Submit</button>;
}
`
	res := walkSource(t, src, Options{})

	hard := findingsOf(res, finding.Hardcoded)
	require.Len(t, hard, 1)
	assert.Equal(t, "Submit", hard[0].Text)
	assert.Equal(t, 2, hard[0].Span.Start.Line)
	assert.Equal(t, finding.Error, hard[0].Severity)
	assert.True(t, hard[0].InJSX)
	assert.False(t, hard[0].Suppressed)
}

func TestWalk_PureDigitsAndPunctuationNeverQualify(t *testing.T) {
	src := `export function Sep() {
  return <div>123 -- 456 !!!</div>;
}
`
	res := walkSource(t, src, Options{})
	assert.Empty(t, res.Findings)
}

func TestWalk_IgnoreTexts(t *testing.T) {
	src := `export function Brand() {
  return <span>Acme Inc</span>;
}
`
	res := walkSource(t, src, Options{IgnoreTexts: map[string]bool{"Acme Inc": true}})
	assert.Empty(t, findingsOf(res, finding.Hardcoded))
}

func TestWalk_DisableNextLineSuppresses(t *testing.T) {
	src := `export function Header() {
  return (
    <div>
      {/* glot-disable-next-line hardcoded */}
      <h1>Legacy Header</h1>
    </div>
  );
}
`
	res := walkSource(t, src, Options{})

	hard := findingsOf(res, finding.Hardcoded)
	require.Len(t, hard, 1)
	assert.True(t, hard[0].Suppressed, "finding is flagged, not dropped")
}

func TestWalk_CheckedAttribute(t *testing.T) {
	src := `export function Input() {
  return <input placeholder="Enter your name" title={"Name"} id="main" />;
}
`
	res := walkSource(t, src, Options{
		CheckedAttributes: map[string]bool{"placeholder": true, "title": true},
	})

	hard := findingsOf(res, finding.Hardcoded)
	require.Len(t, hard, 2)
	assert.Equal(t, "Enter your name", hard[0].Text)
	assert.Equal(t, "Name", hard[1].Text)
	assert.False(t, hard[0].InJSX, "attribute findings take JS comment style")
}

func TestWalk_ConditionalAndFallbackBranches(t *testing.T) {
	src := `export function Status({ on, label }) {
  return (
    <div>
      {on ? "Enabled" : "Disabled"}
      {label || "Unnamed"}
    </div>
  );
}
`
	res := walkSource(t, src, Options{})

	var texts []string
	for _, f := range findingsOf(res, finding.Hardcoded) {
		texts = append(texts, f.Text)
	}
	assert.ElementsMatch(t, []string{"Enabled", "Disabled", "Unnamed"}, texts)
}

func TestWalk_LogicalAndGuardBranch(t *testing.T) {
	src := `export function Banner({ loggedIn, name }) {
  return (
    <div>
      {loggedIn && "Welcome back"}
      {"shortCircuit" && name}
    </div>
  );
}
`
	res := walkSource(t, src, Options{})

	var texts []string
	for _, f := range findingsOf(res, finding.Hardcoded) {
		texts = append(texts, f.Text)
	}
	assert.Contains(t, texts, "Welcome back")
	assert.NotContains(t, texts, "shortCircuit", "only the rendered right branch is checked")
}

func TestWalk_TemplateStaticSegments(t *testing.T) {
	src := "export function Greeting({ name }) {\n" +
		"  return <p title={`Hello ${name} friend`}>{name}</p>;\n" +
		"}\n"
	res := walkSource(t, src, Options{CheckedAttributes: map[string]bool{"title": true}})

	var texts []string
	for _, f := range findingsOf(res, finding.Hardcoded) {
		texts = append(texts, f.Text)
	}
	assert.ElementsMatch(t, []string{"Hello", "friend"}, texts)
}

func TestWalk_StaticKeyWithNamespace(t *testing.T) {
	src := `import { useTranslations } from "next-intl";

export function Page() {
  const t = useTranslations("common");
  return <h1>{t("title")}</h1>;
}
`
	res := walkSource(t, src, Options{})

	assert.Equal(t, []string{"common.title"}, usedKeys(res))
	require.Len(t, res.Calls, 1)
	assert.Equal(t, Static, res.Calls[0].Kind)
	assert.Equal(t, "common", res.Calls[0].Namespace)
	assert.Empty(t, findingsOf(res, finding.Hardcoded))
}

func TestWalk_EmptyNamespaceUsesKeyVerbatim(t *testing.T) {
	src := `export function Page() {
  const t = useTranslations();
  return <h1>{t("site.title")}</h1>;
}
`
	res := walkSource(t, src, Options{})
	assert.Equal(t, []string{"site.title"}, usedKeys(res))
}

func TestWalk_NamespaceScopeIsLexical(t *testing.T) {
	src := `export function Outer() {
  const t = useTranslations("outer");
  function Inner() {
    const t = useTranslations("inner");
    return t("a");
  }
  return t("b");
}
`
	res := walkSource(t, src, Options{})
	assert.ElementsMatch(t, []string{"inner.a", "outer.b"}, usedKeys(res))
}

func TestWalk_AwaitedHookBinding(t *testing.T) {
	src := `export async function Page() {
  const t = await getTranslations("server");
  return t("heading");
}
`
	res := walkSource(t, src, Options{})
	assert.Equal(t, []string{"server.heading"}, usedKeys(res))
}

func TestWalk_DynamicTemplateWithAnnotation(t *testing.T) {
	src := "export function Role({ role }) {\n" +
		"  const t = useTranslations(\"dynamic\");\n" +
		"  // glot-message-keys \"dynamic.roles.admin.name\" \"dynamic.roles.editor.name\"\n" +
		"  return t(`roles.${role}.name`);\n" +
		"}\n"
	res := walkSource(t, src, Options{})

	assert.Empty(t, findingsOf(res, finding.UnresolvedKey))
	assert.ElementsMatch(t,
		[]string{"dynamic.roles.admin.name", "dynamic.roles.editor.name"},
		usedKeys(res))
}

func TestWalk_DynamicTemplateWithoutAnnotation(t *testing.T) {
	src := "export function Role({ role }) {\n" +
		"  const t = useTranslations(\"dynamic\");\n" +
		"  return t(`roles.${role}.name`);\n" +
		"}\n"
	res := walkSource(t, src, Options{})

	unresolved := findingsOf(res, finding.UnresolvedKey)
	require.Len(t, unresolved, 1)
	assert.Equal(t, "dynamic.roles.*.name", unresolved[0].Text)
	assert.Empty(t, res.UsedKeys)
	require.Len(t, res.Calls, 1)
	assert.Equal(t, DynamicTemplate, res.Calls[0].Kind)
}

func TestWalk_DynamicOpaque(t *testing.T) {
	src := `export function Label({ key }) {
  const t = useTranslations("labels");
  return t(key);
}
`
	res := walkSource(t, src, Options{})

	unresolved := findingsOf(res, finding.UnresolvedKey)
	require.Len(t, unresolved, 1)
	require.Len(t, res.Calls, 1)
	assert.Equal(t, DynamicOpaque, res.Calls[0].Kind)
}

func TestWalk_MethodCallNeverWarns(t *testing.T) {
	src := `export function Raw({ key }) {
  const t = useTranslations("rich");
  return <div>{t.raw(key)}</div>;
}
`
	res := walkSource(t, src, Options{})

	assert.Empty(t, findingsOf(res, finding.UnresolvedKey))
	require.Len(t, res.Calls, 1)
	assert.Equal(t, "raw", res.Calls[0].Method)
}

func TestWalk_MethodCallStaticKey(t *testing.T) {
	src := `export function Rich() {
  const t = useTranslations("home");
  return <div>{t.rich("intro")}</div>;
}
`
	res := walkSource(t, src, Options{})
	assert.Equal(t, []string{"home.intro"}, usedKeys(res))
}

func TestWalk_UnboundIdentifierIsNotATranslationCall(t *testing.T) {
	src := `export function Misc() {
  const s = format("pattern");
  return s;
}
`
	res := walkSource(t, src, Options{})
	assert.Empty(t, res.Calls)
	assert.Empty(t, res.Findings)
}

func TestWalk_NoCallsNoLettersMeansNoFindings(t *testing.T) {
	src := `const limits = [1, 2, 3];
export function n() { return limits.length * 2; }
`
	res := walkSource(t, src, Options{})
	assert.Empty(t, res.Findings)
	assert.Empty(t, res.UsedKeys)
}

func TestWalk_UsageRecordsDirectiveState(t *testing.T) {
	src := `export function Page() {
  const t = useTranslations("common");
  // glot-disable-next-line untranslated
  return t("greeting");
}
`
	res := walkSource(t, src, Options{})

	require.Len(t, res.UsedKeys, 1)
	usage := res.UsedKeys[0]
	assert.Equal(t, "common.greeting", usage.Key)
	assert.True(t, usage.UntranslatedSuppressed)
	assert.False(t, usage.MissingSuppressed)
}

func TestCollectComments_Order(t *testing.T) {
	src := `// first
export function X() {
  /* second */
  return null; // third
}
`
	unit, err := parser.Parse(context.Background(), "x.tsx", []byte(src))
	require.NoError(t, err)
	comments := CollectComments(unit)
	require.Len(t, comments, 3)
	assert.Equal(t, 1, comments[0].Line)
	assert.Equal(t, "// first", comments[0].Text)
	assert.Equal(t, 3, comments[1].Line)
	assert.Equal(t, 4, comments[2].Line)
}
