package suite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"go.uber.org/zap/zaptest"
)

func newRunner(t *testing.T, c Compiler) *Runner {
	t.Helper()
	return &Runner{Compiler: c, Logger: zaptest.NewLogger(t)}
}

func outcomes(r *Report) []Outcome {
	var out []Outcome
	for _, v := range r.Verdicts {
		out = append(out, v.Outcome)
	}
	return out
}

func TestRunAllCasesFailWithoutExpectations(t *testing.T) {
	dir := writeArchive(t, `
-- bad_type.rs --
//! error[E0308]: mismatched types
-- missing_trait.rs --
//! error[E0277]: the trait bound is not satisfied
`)
	r, err := newRunner(t, fakeCompiler).Run(t.Context(), filepath.Join(dir, "*.rs"))
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	if !r.Passed {
		t.Errorf("expected run to pass")
	}
	if diff := cmp.Diff(Summary{Total: 2, Passed: 2}, r.Summary); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
}

func TestRunCaseThatCompilesFails(t *testing.T) {
	dir := writeArchive(t, `
-- a_bad_type.rs --
//! error[E0308]: mismatched types
-- b_accidentally_ok.rs --
// compiles
`)
	r, err := newRunner(t, fakeCompiler).Run(t.Context(), filepath.Join(dir, "*.rs"))
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	if r.Passed {
		t.Fatal("expected run to fail")
	}
	if diff := cmp.Diff([]Outcome{Pass, Fail}, outcomes(r)); diff != "" {
		t.Errorf("outcomes mismatch (-want +got):\n%s", diff)
	}
	if got := r.Verdicts[1].Reason; got != ReasonCompiled {
		t.Errorf("reason = %q", got)
	}
}

func TestRunExpectationMatchAndMismatch(t *testing.T) {
	dir := writeArchive(t, `
-- matching.rs --
//! error[E0308]: mismatched types
-- matching.stderr --
error[E0308]: mismatched types
-- wrong.rs --
//! error[E0308]: mismatched types
-- wrong.stderr --
error[E0277]: the trait bound is not satisfied
`)
	r, err := newRunner(t, fakeCompiler).Run(t.Context(), filepath.Join(dir, "*.rs"))
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	if diff := cmp.Diff([]Outcome{Pass, Fail}, outcomes(r)); diff != "" {
		t.Errorf("outcomes mismatch (-want +got):\n%s", diff)
	}
	v := r.Verdicts[1]
	if v.Reason != ReasonMismatch {
		t.Errorf("reason = %q", v.Reason)
	}
	if v.Expected != "error[E0277]: the trait bound is not satisfied" || v.Actual != "error[E0308]: mismatched types" {
		t.Errorf("expected/actual = %q / %q", v.Expected, v.Actual)
	}
	if r.Summary.Failed != 1 || r.Passed {
		t.Errorf("summary = %+v passed=%v", r.Summary, r.Passed)
	}
}

func TestRunMalformedPatternAbortsBeforeCompiling(t *testing.T) {
	dir := writeArchive(t, `
-- bad_type.rs --
//! error
`)
	var calls atomic.Int32
	c := CompilerFunc(func(ctx context.Context, cs Case) (Attempt, error) {
		calls.Add(1)
		return fakeCompiler(ctx, cs)
	})

	r, err := newRunner(t, c).Run(t.Context(), filepath.Join(dir, "*.rs"), "[")
	var de *DiscoveryError
	if !errors.As(err, &de) {
		t.Fatalf("expected *DiscoveryError, got %v", err)
	}
	if r != nil {
		t.Error("expected no report")
	}
	if n := calls.Load(); n != 0 {
		t.Errorf("compiler invoked %d times", n)
	}
}

func TestRunUnreadableExpectationAbortsBeforeCompiling(t *testing.T) {
	dir := writeArchive(t, `
-- bad_type.rs --
//! error
`)
	if err := os.Mkdir(filepath.Join(dir, "bad_type.stderr"), 0o755); err != nil {
		t.Fatal(err)
	}
	var calls atomic.Int32
	c := CompilerFunc(func(ctx context.Context, cs Case) (Attempt, error) {
		calls.Add(1)
		return fakeCompiler(ctx, cs)
	})

	_, err := newRunner(t, c).Run(t.Context(), filepath.Join(dir, "*.rs"))
	var re *ResolutionError
	if !errors.As(err, &re) {
		t.Fatalf("expected *ResolutionError, got %v", err)
	}
	if n := calls.Load(); n != 0 {
		t.Errorf("compiler invoked %d times", n)
	}
}

func TestRunNoCasesPasses(t *testing.T) {
	r, err := newRunner(t, fakeCompiler).Run(t.Context(), filepath.Join(t.TempDir(), "*.rs"))
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	if !r.Passed || r.Summary.Total != 0 || len(r.Verdicts) != 0 {
		t.Errorf("report = %+v", r)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	dir := writeArchive(t, `
-- a.rs --
//! error: a
-- a.stderr --
error: a
-- b.rs --
// compiles
-- c.rs --
//! error: c
-- c.stderr --
error: something else
`)
	run := func() *Report {
		r, err := newRunner(t, fakeCompiler).Run(t.Context(), filepath.Join(dir, "*.rs"))
		if err != nil {
			t.Fatalf("run error: %v", err)
		}
		return r
	}
	first, second := run(), run()
	opts := cmp.Options{
		cmpopts.IgnoreFields(Report{}, "RunID", "DurationMs"),
		cmpopts.IgnoreFields(Verdict{}, "DurationMs", "Duration"),
		cmpopts.IgnoreFields(Attempt{}, "Duration"),
		cmpopts.IgnoreFields(Case{}, "Source"),
	}
	if diff := cmp.Diff(first, second, opts); diff != "" {
		t.Errorf("second run differs (-first +second):\n%s", diff)
	}
	if first.RunID == second.RunID {
		t.Error("expected distinct run ids")
	}
}

func TestRunKeepsDiscoveryOrderWithConcurrency(t *testing.T) {
	var b strings.Builder
	var want []string
	for _, n := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		b.WriteString("-- " + n + ".rs --\n//! error: " + n + "\n")
		want = append(want, "error: "+n)
	}
	dir := writeArchive(t, b.String())

	runner := newRunner(t, fakeCompiler)
	runner.Jobs = 4
	r, err := runner.Run(t.Context(), filepath.Join(dir, "*.rs"))
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	var got []string
	for _, v := range r.Verdicts {
		got = append(got, v.Actual)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("verdict order mismatch (-want +got):\n%s", diff)
	}
}

func TestRunGateClosedSkips(t *testing.T) {
	var calls atomic.Int32
	c := CompilerFunc(func(ctx context.Context, cs Case) (Attempt, error) {
		calls.Add(1)
		return fakeCompiler(ctx, cs)
	})
	// The pattern is malformed: a closed gate must not even discover.
	r, err := newRunner(t, c).RunGated(t.Context(), Decision{Reason: "nightly toolchain"}, "[")
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	if !r.Skipped || !r.Passed || r.SkipReason != "nightly toolchain" {
		t.Errorf("report = %+v", r)
	}
	if calls.Load() != 0 {
		t.Error("compiler invoked on a skipped run")
	}
}

func TestRunPanicBecomesCrashedAttempt(t *testing.T) {
	dir := writeArchive(t, `
-- boom.rs --
//! error: never seen
-- boom.stderr --
error: never seen
-- fine.rs --
//! error: fine
`)
	c := CompilerFunc(func(ctx context.Context, cs Case) (Attempt, error) {
		if strings.HasSuffix(cs.Path, "boom.rs") {
			panic("internal compiler error")
		}
		return fakeCompiler(ctx, cs)
	})
	r, err := newRunner(t, c).Run(t.Context(), filepath.Join(dir, "*.rs"))
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	v := r.Verdicts[0]
	if !v.Attempt.Crashed || v.Attempt.Compiled {
		t.Errorf("attempt = %+v", v.Attempt)
	}
	if v.Outcome != Fail || v.Reason != ReasonMismatch {
		t.Errorf("verdict = %s %q", v.Outcome, v.Reason)
	}
	if !strings.Contains(v.Actual, "internal compiler error") {
		t.Errorf("actual = %q", v.Actual)
	}
	if r.Verdicts[1].Outcome != Pass {
		t.Errorf("second case = %s", r.Verdicts[1].Outcome)
	}
}

func TestRunCancelledContextAborts(t *testing.T) {
	dir := writeArchive(t, `
-- a.rs --
//! error: a
`)
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	r, err := newRunner(t, fakeCompiler).Run(ctx, filepath.Join(dir, "*.rs"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if r != nil {
		t.Error("expected no report on abort")
	}
}

func TestRunCompilerErrorAborts(t *testing.T) {
	dir := writeArchive(t, `
-- a.rs --
//! error: a
`)
	boom := errors.New("toolchain vanished")
	c := CompilerFunc(func(context.Context, Case) (Attempt, error) {
		return Attempt{}, boom
	})
	_, err := newRunner(t, c).Run(t.Context(), filepath.Join(dir, "*.rs"))
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped compiler error, got %v", err)
	}
}

func TestRunBless(t *testing.T) {
	dir := writeArchive(t, `
-- fresh.rs --
//! error: fresh
-- stale.rs --
//! error: new wording
-- stale.stderr --
error: old wording
-- still_compiles.rs --
// compiles
`)
	runner := newRunner(t, fakeCompiler)
	runner.Bless = true
	r, err := runner.Run(t.Context(), filepath.Join(dir, "*.rs"))
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	if diff := cmp.Diff([]Outcome{Pass, Pass, Fail}, outcomes(r)); diff != "" {
		t.Errorf("outcomes mismatch (-want +got):\n%s", diff)
	}
	if r.Summary.Blessed != 2 {
		t.Errorf("blessed = %d", r.Summary.Blessed)
	}

	for name, want := range map[string]string{
		"fresh.stderr": "error: fresh\n",
		"stale.stderr": "error: new wording\n",
	} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if string(data) != want {
			t.Errorf("%s = %q, want %q", name, data, want)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "still_compiles.stderr")); !os.IsNotExist(err) {
		t.Errorf("compiled case must not be blessed, stat err = %v", err)
	}

	// A second, non-blessing run now passes the blessed cases.
	r, err = newRunner(t, fakeCompiler).Run(t.Context(), filepath.Join(dir, "*.rs"))
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	if diff := cmp.Diff([]Outcome{Pass, Pass, Fail}, outcomes(r)); diff != "" {
		t.Errorf("outcomes after bless mismatch (-want +got):\n%s", diff)
	}
}
