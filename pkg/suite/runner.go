// Package suite implements the negative compilation test runner: it discovers
// cases, attempts to compile each one in isolation, resolves the expected
// diagnostic and reports a pass/fail verdict per case plus one aggregate.
package suite

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Runner discovers and executes a compile-fail suite.
type Runner struct {
	Compiler   Compiler
	Resolver   Resolver
	Normalizer *Normalizer
	Jobs       int  // concurrent compilations; <= 0 means GOMAXPROCS
	Bless      bool // rewrite expectation artifacts from actual diagnostics
	Logger     *zap.Logger
}

// Run executes the suite for the given patterns. The returned error is only
// non-nil for configuration-level failures (*DiscoveryError,
// *ResolutionError) or when ctx is cancelled; failing cases are reported
// through the Report.
func (r *Runner) Run(ctx context.Context, patterns ...string) (*Report, error) {
	return r.RunGated(ctx, Allow, patterns...)
}

// RunGated is Run behind a gating decision evaluated by the caller. A
// negative decision yields a skipped, passing Report without discovering
// anything.
func (r *Runner) RunGated(ctx context.Context, gate Decision, patterns ...string) (*Report, error) {
	start := time.Now()
	report := &Report{
		RunID:    uuid.NewString(),
		Patterns: patterns,
		Verdicts: []Verdict{},
	}
	log := r.logger().With(zap.String("run_id", report.RunID))

	if !gate.Allowed {
		report.Skipped = true
		report.SkipReason = gate.Reason
		report.Passed = true
		log.Info("skipped by gate", zap.String("reason", gate.Reason))
		return report, nil
	}

	cases, err := Discover(patterns...)
	if err != nil {
		return nil, err
	}
	if len(cases) == 0 {
		report.Passed = true
		log.Info("no cases matched", zap.Strings("patterns", patterns))
		return report, nil
	}
	log.Debug("discovered cases", zap.Int("count", len(cases)))

	// Expectations are resolved before any compiler is spawned so that a
	// malformed suite aborts without side effects.
	exps := make([]Expectation, len(cases))
	for i, c := range cases {
		e, err := r.Resolver.Resolve(c)
		if err != nil {
			return nil, err
		}
		exps[i] = e
	}

	attempts, err := r.attemptAll(ctx, cases)
	if err != nil {
		return nil, fmt.Errorf("run aborted: %w", err)
	}

	for i := range cases {
		v := Compare(attempts[i], exps[i], r.Normalizer)
		if r.Bless && blessable(attempts[i], exps[i], v) {
			if err := r.Resolver.Bless(cases[i], v.Actual); err != nil {
				return nil, err
			}
			v.Outcome = Pass
			v.Reason = ""
			v.Diff = ""
			v.Expected = v.Actual
			v.Blessed = true
			report.Summary.Blessed++
			log.Info("blessed expectation", zap.Stringer("case", cases[i]))
		}
		report.Verdicts = append(report.Verdicts, v)
	}

	report.Summary.Total = len(report.Verdicts)
	for _, v := range report.Verdicts {
		if v.Outcome == Pass {
			report.Summary.Passed++
		} else {
			report.Summary.Failed++
		}
	}
	report.Passed = report.Summary.Failed == 0
	report.DurationMs = time.Since(start).Milliseconds()

	log.Info("run finished",
		zap.Int("total", report.Summary.Total),
		zap.Int("passed", report.Summary.Passed),
		zap.Int("failed", report.Summary.Failed),
		zap.Duration("duration", time.Since(start)),
	)
	return report, nil
}

func (r *Runner) attemptAll(ctx context.Context, cases []Case) ([]Attempt, error) {
	jobs := r.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	log := r.logger()

	attempts := make([]Attempt, len(cases))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, c := range cases {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			a, err := r.attempt(gctx, c)
			if err != nil {
				return err
			}
			log.Debug("case attempted",
				zap.Stringer("case", c),
				zap.Bool("compiled", a.Compiled),
				zap.Int("exit_code", a.ExitCode),
				zap.Bool("timed_out", a.TimedOut),
				zap.Bool("crashed", a.Crashed),
				zap.Duration("duration", a.Duration),
			)
			attempts[i] = a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return attempts, nil
}

// attempt runs the compiler for one case and turns a panic into a crashed
// Attempt.
func (r *Runner) attempt(ctx context.Context, c Case) (a Attempt, err error) {
	defer func() {
		if p := recover(); p != nil {
			a = Attempt{
				Case:     c,
				ExitCode: -1,
				Crashed:  true,
				Stderr:   fmt.Sprintf("toolchain crashed: %v", p),
			}
			err = nil
		}
	}()
	a, err = r.Compiler.Compile(ctx, c)
	if err != nil {
		return Attempt{}, fmt.Errorf("compile %s: %w", c, err)
	}
	a.Case = c
	return a, nil
}

// blessable reports whether a verdict may be rewritten from the actual
// diagnostic. A case that compiled is never blessed.
func blessable(a Attempt, e Expectation, v Verdict) bool {
	if a.Compiled {
		return false
	}
	return !e.Present || v.Reason == ReasonMismatch
}

func (r *Runner) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}
