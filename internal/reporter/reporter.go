// Package reporter renders findings for terminal consumption.
package reporter

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"glot/internal/finding"
)

var (
	errColor  = color.New(color.FgRed, color.Bold)
	warnColor = color.New(color.FgYellow, color.Bold)
	posColor  = color.New(color.FgCyan)
	dimColor  = color.New(color.Faint)
)

// Reporter writes findings and run summaries to a single destination.
type Reporter struct {
	out io.Writer
	// ShowSuppressed includes directive-suppressed findings in the listing.
	ShowSuppressed bool
}

func New(out io.Writer) *Reporter {
	return &Reporter{out: out}
}

// Print lists findings one per block with the offending source line when the
// check pass captured it.
func (r *Reporter) Print(findings []finding.Finding) {
	for _, f := range findings {
		if f.Suppressed && !r.ShowSuppressed {
			continue
		}
		sev := errColor
		if f.Severity == finding.Warning {
			sev = warnColor
		}
		fmt.Fprintf(r.out, "%s %s %s %s\n",
			posColor.Sprintf("%s:%d:%d", f.File, f.Span.Start.Line, f.Span.Start.Col),
			sev.Sprint(f.Severity.String()+":"),
			f.Message,
			dimColor.Sprintf("[%s]", f.Kind))
		if f.SourceLine != "" {
			fmt.Fprintf(r.out, "    %s\n", strings.TrimRight(f.SourceLine, " \t"))
		}
		if f.Suppressed {
			fmt.Fprintf(r.out, "    %s\n", dimColor.Sprint("(suppressed by directive)"))
		}
	}
}

// Summary prints per-kind counts and the overall error/warning tally.
// Suppressed findings are excluded from all counts.
func (r *Reporter) Summary(findings []finding.Finding) {
	byKind := finding.CountByKind(findings)
	bySev := finding.CountBySeverity(findings)

	if len(byKind) == 0 {
		fmt.Fprintln(r.out, color.GreenString("no issues found"))
		return
	}

	fmt.Fprintln(r.out)
	for _, kind := range finding.Kinds {
		if n := byKind[kind]; n > 0 {
			fmt.Fprintf(r.out, "  %-16s %d\n", kind, n)
		}
	}
	fmt.Fprintf(r.out, "\n%s, %s\n",
		errColor.Sprintf("%d error(s)", bySev[finding.Error]),
		warnColor.Sprintf("%d warning(s)", bySev[finding.Warning]))
}

// ExitCode is nonzero when any unsuppressed error-severity finding remains.
func ExitCode(findings []finding.Finding) int {
	if finding.CountBySeverity(findings)[finding.Error] > 0 {
		return 1
	}
	return 0
}
