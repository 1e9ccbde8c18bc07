package suite

import (
	"path/filepath"
	"strings"

	"github.com/google/go-cmp/cmp"
)

// Failure reasons carried by Verdict.Reason.
const (
	ReasonCompiled = "expected compile failure, got success"
	ReasonMismatch = "diagnostic mismatch"
)

// Compare derives a Verdict from an Attempt and its Expectation:
//
//	compiled                         -> fail (expected compile failure, got success)
//	not compiled, no expectation     -> pass
//	not compiled, diagnostic matches -> pass
//	not compiled, mismatch           -> fail (diagnostic mismatch)
//
// Both diagnostics are normalized with n before they are compared.
func Compare(a Attempt, e Expectation, n *Normalizer) Verdict {
	v := Verdict{
		Case:       a.Case,
		Attempt:    a,
		Duration:   a.Duration,
		DurationMs: a.Duration.Milliseconds(),
	}

	dir := caseDir(a.Case)
	actual := n.Normalize(a.Stderr, a.Workspace, dir)

	if a.Compiled {
		v.Outcome = Fail
		v.Reason = ReasonCompiled
		v.Actual = actual
		return v
	}

	if !e.Present {
		v.Outcome = Pass
		v.Actual = actual
		return v
	}

	expected := n.Normalize(e.Expected, a.Workspace, dir)
	v.Expected = expected
	v.Actual = actual
	if expected == actual {
		v.Outcome = Pass
		return v
	}

	v.Outcome = Fail
	v.Reason = ReasonMismatch
	v.Diff = cmp.Diff(strings.Split(expected, "\n"), strings.Split(actual, "\n"))
	return v
}

func caseDir(c Case) string {
	if c.Path == "" {
		return ""
	}
	abs, err := filepath.Abs(filepath.Dir(c.Path))
	if err != nil {
		return filepath.Dir(c.Path)
	}
	return abs
}
