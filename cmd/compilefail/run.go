package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ormasoftchile/compilefail/pkg/config"
	"github.com/ormasoftchile/compilefail/pkg/gate"
	"github.com/ormasoftchile/compilefail/pkg/harness"
	"github.com/ormasoftchile/compilefail/pkg/suite"
	"github.com/ormasoftchile/compilefail/pkg/toolchain"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"
)

var (
	runJSON     bool
	runMarkdown bool
	runTimeout  string
	runJobs     int
	runBless    bool
	runGate     string
	runFeatures []string
	runExt      string
	runNoColor  bool
	runShowAll  bool
)

var runCmd = &cobra.Command{
	Use:   "run [pattern...]",
	Short: "Run a compile-fail suite",
	Long: `Compile every case matched by the patterns (or the configured patterns)
and check that each one fails to compile.

A case passes when it fails to compile and, if a .stderr file sits next to
it, the normalized diagnostic equals the normalized file contents.

Exit codes:
  0 — all cases passed, no case matched, or the gate skipped the suite
  1 — at least one case failed
  2 — configuration, discovery or expectation error (no verdicts)`,
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return &exitError{code: exitConfig}
	}
	patterns := args
	if len(patterns) == 0 {
		patterns = cfg.Patterns
	}

	runner, decision, err := buildRunner(cmd.Context(), cfg)
	if err != nil {
		return &exitError{code: exitConfig, err: err}
	}

	report, err := runner.RunGated(cmd.Context(), decision, patterns...)
	if err != nil {
		return runError(err)
	}

	passed := printReport(report)
	if !passed {
		return &exitError{code: exitFailed}
	}
	return nil
}

// buildRunner applies flag overrides to cfg, evaluates the gate once and
// assembles a Runner.
func buildRunner(ctx context.Context, cfg *config.Config) (*suite.Runner, suite.Decision, error) {
	if runTimeout != "" {
		if _, err := time.ParseDuration(runTimeout); err != nil {
			return nil, suite.Decision{}, fmt.Errorf("invalid --timeout %q: %w", runTimeout, err)
		}
		cfg.Compiler.Timeout = runTimeout
	}
	if runJobs > 0 {
		cfg.Jobs = runJobs
	}
	if runGate != "" {
		cfg.Gate = runGate
	}
	if runExt != "" {
		cfg.ExpectationExt = runExt
	}
	cfg.Features = append(cfg.Features, runFeatures...)

	decision, err := evaluateGate(ctx, cfg)
	if err != nil {
		return nil, suite.Decision{}, err
	}

	rules, err := cfg.Rules()
	if err != nil {
		return nil, suite.Decision{}, err
	}

	runner := &suite.Runner{
		Resolver:   suite.Resolver{Ext: cfg.Ext()},
		Normalizer: suite.NewNormalizer(rules...),
		Jobs:       cfg.Jobs,
		Bless:      runBless || strings.EqualFold(os.Getenv(harness.BlessEnv), "overwrite"),
		Logger:     logger,
	}
	if decision.Allowed {
		cc, err := toolchain.NewCommandCompiler(toolchain.CompilerConfig{
			Argv:    cfg.Compiler.Argv,
			Env:     cfg.Compiler.Env,
			Timeout: cfg.Timeout(),
		})
		if err != nil {
			return nil, suite.Decision{}, err
		}
		runner.Compiler = cc
	}
	return runner, decision, nil
}

func evaluateGate(ctx context.Context, cfg *config.Config) (suite.Decision, error) {
	if cfg.Gate == "" {
		return suite.Allow, nil
	}
	v, err := detectVersion(ctx, cfg)
	if err != nil {
		return suite.Decision{}, err
	}
	d, err := gate.Evaluate(cfg.Gate, gate.NewFacts(v, cfg.Features...))
	if err != nil {
		return suite.Decision{}, err
	}
	logger.Debug("gate evaluated",
		zap.String("gate", cfg.Gate),
		zap.String("toolchain", v.String()),
		zap.String("channel", v.Channel),
		zap.Bool("allowed", d.Allowed),
	)
	return d, nil
}

func detectVersion(ctx context.Context, cfg *config.Config) (toolchain.Version, error) {
	if len(cfg.Compiler.VersionArgv) == 0 {
		return toolchain.HostGoVersion(), nil
	}
	v, err := toolchain.DetectVersion(ctx, nil, cfg.Compiler.VersionArgv)
	if err != nil {
		return toolchain.Version{}, fmt.Errorf("detect toolchain version: %w", err)
	}
	return v, nil
}

// runError maps a run-level error to an exit code.
func runError(err error) error {
	var de *suite.DiscoveryError
	var re *suite.ResolutionError
	switch {
	case errors.As(err, &de), errors.As(err, &re):
		return &exitError{code: exitConfig, err: err}
	case errors.Is(err, context.Canceled):
		return &exitError{code: exitAborted, err: err}
	}
	return &exitError{code: exitConfig, err: err}
}

func printReport(report *suite.Report) bool {
	switch {
	case runJSON:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			logger.Error("encode report", zap.Error(err))
		}
		return report.Passed
	case runMarkdown:
		md := suite.Markdown(report)
		fd := int(os.Stdout.Fd())
		if term.IsTerminal(fd) {
			width, _, err := term.GetSize(fd)
			if err != nil || width <= 0 {
				width = 80
			}
			md = suite.RenderMarkdown(md, width)
		}
		fmt.Print(md)
		return report.Passed
	}
	color := !runNoColor && os.Getenv("NO_COLOR") == "" && term.IsTerminal(int(os.Stdout.Fd()))
	return (&suite.Emitter{Out: os.Stdout, Color: color, Verbose: runShowAll}).Emit(report)
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&runJSON, "json", false, "Output the report as structured JSON")
	cmd.Flags().BoolVar(&runMarkdown, "markdown", false, "Output the report as Markdown")
	cmd.Flags().StringVar(&runTimeout, "timeout", "", "Per-case compile timeout (e.g. 30s, 2m)")
	cmd.Flags().IntVarP(&runJobs, "jobs", "j", 0, "Concurrent compilations (default: GOMAXPROCS)")
	cmd.Flags().BoolVar(&runBless, "bless", false, "Write actual diagnostics to .stderr files instead of comparing")
	cmd.Flags().StringVar(&runGate, "gate", "", `Gate expression, e.g. 'stable && since("1.84")'`)
	cmd.Flags().StringArrayVar(&runFeatures, "feature", nil, "Enable a feature for the gate (repeatable)")
	cmd.Flags().StringVar(&runExt, "ext", "", "Expectation file extension (default .stderr)")
	cmd.Flags().BoolVar(&runNoColor, "no-color", false, "Disable colored output")
	cmd.Flags().BoolVar(&runShowAll, "show-diagnostics", false, "Print the diagnostic of passing cases too")
	cmd.MarkFlagsMutuallyExclusive("json", "markdown")
}

func init() {
	addRunFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}
