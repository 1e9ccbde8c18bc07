package suite

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
)

// Emitter prints a human-readable Report and yields the aggregate result.
type Emitter struct {
	Out     io.Writer
	Color   bool
	Verbose bool // also print the normalized diagnostic of passing cases
}

// Emit writes one line per case, a detail block for every failing case and a
// summary, then returns the aggregate result. Everything needed to locate a
// failing case is written before Emit returns.
func (e *Emitter) Emit(r *Report) bool {
	st := newStyles(e.Out, e.Color)
	w := e.Out

	if r.Skipped {
		reason := r.SkipReason
		if reason == "" {
			reason = "gate closed"
		}
		fmt.Fprintf(w, "\n  %s compile-fail suite skipped: %s\n", st.dim.Render(GlyphSkipped), reason)
		return true
	}
	if len(r.Verdicts) == 0 {
		fmt.Fprintf(w, "\n  %s no compile-fail cases matched %s\n", st.dim.Render(GlyphSkipped), strings.Join(r.Patterns, " "))
		return true
	}

	width := 0
	for _, v := range r.Verdicts {
		if n := runewidth.StringWidth(v.Case.Name); n > width {
			width = n
		}
	}

	fmt.Fprintf(w, "\n  %s\n", st.header.Render("compile-fail "+strings.Join(r.Patterns, " ")))
	for _, v := range r.Verdicts {
		name := runewidth.FillRight(v.Case.Name, width)
		dur := st.dim.Render(fmtDuration(v.Duration))
		switch {
		case v.Blessed:
			fmt.Fprintf(w, "    %s %s  %s  %s\n", st.blessed.Render(GlyphBlessed), name, st.blessed.Render("blessed"), dur)
		case v.Outcome == Pass:
			fmt.Fprintf(w, "    %s %s  %s  %s\n", st.pass.Render(GlyphPass), name, st.pass.Render("pass"), dur)
			if e.Verbose && v.Actual != "" {
				writeBlock(w, st, "diagnostic", v.Actual)
			}
		default:
			fmt.Fprintf(w, "    %s %s  %s  %s\n", st.fail.Render(GlyphFail), name, st.fail.Render("fail"), dur)
		}
	}

	for _, v := range r.Verdicts {
		if v.Outcome == Fail {
			e.emitFailure(st, v)
		}
	}

	s := r.Summary
	line := fmt.Sprintf("%d cases, %d passed, %d failed", s.Total, s.Passed, s.Failed)
	if s.Blessed > 0 {
		line += fmt.Sprintf(", %d blessed", s.Blessed)
	}
	if r.Passed {
		fmt.Fprintf(w, "\n  %s\n", st.pass.Render(line))
	} else {
		fmt.Fprintf(w, "\n  %s\n", st.fail.Render(line))
	}
	return r.Passed
}

func (e *Emitter) emitFailure(st styles, v Verdict) {
	w := e.Out
	fmt.Fprintf(w, "\n  %s %s\n", st.fail.Render("FAIL"), v.Case.Path)
	fmt.Fprintf(w, "    %s\n", v.Reason)
	switch v.Reason {
	case ReasonCompiled:
		fmt.Fprintf(w, "    the case compiled successfully (exit code %d); it must not compile\n", v.Attempt.ExitCode)
		if out := strings.TrimSpace(v.Attempt.Stdout); out != "" {
			writeBlock(w, st, "stdout", out)
		}
	case ReasonMismatch:
		writeBlock(w, st, "expected", v.Expected)
		writeBlock(w, st, "actual", v.Actual)
		if v.Diff != "" {
			writeBlock(w, st, "diff (-expected +actual)", strings.TrimRight(v.Diff, "\n"))
		}
	}
}

func writeBlock(w io.Writer, st styles, label, body string) {
	fmt.Fprintf(w, "    %s\n", st.label.Render(strings.ToUpper(label)+":"))
	if body == "" {
		fmt.Fprintf(w, "    %s\n", st.dim.Render("┆ (empty)"))
		return
	}
	for _, l := range strings.Split(body, "\n") {
		fmt.Fprintf(w, "    %s %s\n", st.dim.Render("┆"), l)
	}
}

func fmtDuration(d time.Duration) string {
	if d < time.Millisecond {
		return d.Round(time.Microsecond).String()
	}
	return d.Round(time.Millisecond).String()
}
