package suite

import (
	"context"
	"time"
)

// Case is one candidate source file that is expected to fail compilation.
type Case struct {
	Path   string `json:"path"` // file location as matched by the pattern
	Name   string `json:"name"` // display name, relative to the working directory when possible
	Source []byte `json:"-"`
}

// Expectation is the expected diagnostic for a Case, if any.
// Present == false means any compile failure is acceptable.
type Expectation struct {
	Case     Case   `json:"-"`
	Path     string `json:"path"` // conventional artifact location, whether or not it exists
	Expected string `json:"expected,omitempty"`
	Present  bool   `json:"present"`
}

// Attempt is the recorded outcome of compiling one Case.
type Attempt struct {
	Case     Case          `json:"-"`
	Compiled bool          `json:"compiled"`
	ExitCode int           `json:"exit_code"`
	Stderr   string        `json:"stderr"`
	Stdout   string        `json:"stdout"`
	TimedOut bool          `json:"timed_out,omitempty"`
	Crashed  bool          `json:"crashed,omitempty"`
	Duration time.Duration `json:"duration"`

	// Workspace is the isolated directory the compiler ran in. It is already
	// removed when the Attempt is returned and only serves normalization.
	Workspace string `json:"-"`
}

// Outcome is the harness judgment for one Case.
type Outcome string

const (
	Pass Outcome = "pass"
	Fail Outcome = "fail"
)

// Verdict is derived deterministically from an Attempt and its Expectation.
type Verdict struct {
	Case       Case          `json:"case"`
	Outcome    Outcome       `json:"outcome"`
	Reason     string        `json:"reason,omitempty"`
	Expected   string        `json:"expected,omitempty"` // normalized
	Actual     string        `json:"actual,omitempty"`   // normalized
	Diff       string        `json:"diff,omitempty"`
	Blessed    bool          `json:"blessed,omitempty"`
	DurationMs int64         `json:"duration_ms"`
	Attempt    Attempt       `json:"attempt"`
	Duration   time.Duration `json:"-"`
}

// Summary aggregates verdict counts for a run.
type Summary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Blessed int `json:"blessed,omitempty"`
}

// Report is the aggregate of all Verdicts for one run, in discovery order.
type Report struct {
	RunID      string    `json:"run_id"`
	Patterns   []string  `json:"patterns"`
	Verdicts   []Verdict `json:"verdicts"`
	Summary    Summary   `json:"summary"`
	Passed     bool      `json:"passed"`
	Skipped    bool      `json:"skipped,omitempty"`
	SkipReason string    `json:"skip_reason,omitempty"`
	DurationMs int64     `json:"duration_ms"`
}

// Compiler attempts to compile a single Case in isolation.
// Implementations must return an Attempt for every Case they were able to
// start; a non-nil error means the run itself was aborted (for example by
// cancellation of ctx), not that the Case failed to compile.
type Compiler interface {
	Compile(ctx context.Context, c Case) (Attempt, error)
}

// CompilerFunc adapts a function to the Compiler interface.
type CompilerFunc func(ctx context.Context, c Case) (Attempt, error)

// Compile calls f(ctx, c).
func (f CompilerFunc) Compile(ctx context.Context, c Case) (Attempt, error) {
	return f(ctx, c)
}

// Decision is the outcome of the gating collaborator, evaluated once before
// the run and injected into Runner.RunGated.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Allow is a Decision that lets the run proceed.
var Allow = Decision{Allowed: true}
