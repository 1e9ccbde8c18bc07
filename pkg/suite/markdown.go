package suite

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
)

// Markdown formats a Report as a Markdown document, suitable for CI job
// summaries.
func Markdown(r *Report) string {
	var b strings.Builder
	b.WriteString("## compile-fail\n\n")

	if r.Skipped {
		fmt.Fprintf(&b, "Suite skipped: %s\n", r.SkipReason)
		return b.String()
	}
	if len(r.Verdicts) == 0 {
		fmt.Fprintf(&b, "No cases matched `%s`.\n", strings.Join(r.Patterns, "` `"))
		return b.String()
	}

	b.WriteString("| case | result | reason |\n|---|---|---|\n")
	for _, v := range r.Verdicts {
		result := "✅ pass"
		switch {
		case v.Blessed:
			result = "✎ blessed"
		case v.Outcome == Fail:
			result = "❌ fail"
		}
		fmt.Fprintf(&b, "| `%s` | %s | %s |\n", v.Case.Name, result, v.Reason)
	}

	for _, v := range r.Verdicts {
		if v.Outcome != Fail {
			continue
		}
		fmt.Fprintf(&b, "\n### `%s`\n\n", v.Case.Name)
		switch v.Reason {
		case ReasonCompiled:
			fmt.Fprintf(&b, "The case compiled successfully (exit code %d); it must not compile.\n", v.Attempt.ExitCode)
			if out := strings.TrimSpace(v.Attempt.Stdout); out != "" {
				writeFence(&b, "stdout", "", out)
			}
		case ReasonMismatch:
			writeFence(&b, "expected", "text", v.Expected)
			writeFence(&b, "actual", "text", v.Actual)
			if v.Diff != "" {
				writeFence(&b, "diff (-expected +actual)", "diff", strings.TrimRight(v.Diff, "\n"))
			}
		}
	}

	fmt.Fprintf(&b, "\n**%d cases, %d passed, %d failed**\n", r.Summary.Total, r.Summary.Passed, r.Summary.Failed)
	return b.String()
}

func writeFence(b *strings.Builder, label, lang, body string) {
	fmt.Fprintf(b, "\n**%s**\n\n```%s\n%s\n```\n", label, lang, body)
}

// RenderMarkdown styles md for a terminal of the given width. It falls back
// to the raw Markdown if rendering fails.
func RenderMarkdown(md string, width int) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}
