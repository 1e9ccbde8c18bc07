// Package harness exposes a compile-fail suite as a single Go test call:
//
//	func TestCompileFail(t *testing.T) {
//		harness.CompileFail(t, harness.Options{Gate: `stable && since("1.22")`},
//			"testdata/compile-fail/*.go")
//	}
package harness

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/ormasoftchile/compilefail/pkg/config"
	"github.com/ormasoftchile/compilefail/pkg/gate"
	"github.com/ormasoftchile/compilefail/pkg/suite"
	"github.com/ormasoftchile/compilefail/pkg/toolchain"
	"go.uber.org/zap/zaptest"
)

// BlessEnv is the environment variable that, set to "overwrite", rewrites
// expectation artifacts from the actual diagnostics.
const BlessEnv = "COMPILEFAIL"

// Options tune a harness run. The zero value compiles Go sources with the
// default configuration and no gate.
type Options struct {
	Config   *config.Config     // nil means config.Default()
	Compiler suite.Compiler     // overrides Config.Compiler when set
	Gate     string             // overrides Config.Gate when set
	Version  *toolchain.Version // gate facts; nil detects via Config.Compiler.VersionArgv
	Bless    bool
}

// CompileFail runs every case matched by patterns and fails t unless each
// one fails to compile with its expected diagnostic. A closed gate skips t.
// With no patterns, the configured patterns are used.
func CompileFail(t testing.TB, opts Options, patterns ...string) {
	t.Helper()

	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if len(patterns) == 0 {
		patterns = cfg.Patterns
	}
	gateExpr := cfg.Gate
	if opts.Gate != "" {
		gateExpr = opts.Gate
	}

	ctx := t.Context()
	decision := suite.Allow
	if gateExpr != "" {
		var v toolchain.Version
		switch {
		case opts.Version != nil:
			v = *opts.Version
		case len(cfg.Compiler.VersionArgv) > 0:
			detected, err := toolchain.DetectVersion(ctx, nil, cfg.Compiler.VersionArgv)
			if err != nil {
				t.Fatalf("detect toolchain version: %v", err)
			}
			v = detected
		default:
			v = toolchain.HostGoVersion()
		}
		d, err := gate.Evaluate(gateExpr, gate.NewFacts(v, cfg.Features...))
		if err != nil {
			t.Fatalf("%v", err)
		}
		decision = d
	}

	compiler := opts.Compiler
	if compiler == nil && decision.Allowed {
		cc, err := toolchain.NewCommandCompiler(toolchain.CompilerConfig{
			Argv:    cfg.Compiler.Argv,
			Env:     cfg.Compiler.Env,
			Timeout: cfg.Timeout(),
		})
		if err != nil {
			t.Fatalf("%v", err)
		}
		compiler = cc
	}

	rules, err := cfg.Rules()
	if err != nil {
		t.Fatalf("%v", err)
	}

	runner := &suite.Runner{
		Compiler:   compiler,
		Resolver:   suite.Resolver{Ext: cfg.Ext()},
		Normalizer: suite.NewNormalizer(rules...),
		Jobs:       cfg.Jobs,
		Bless:      opts.Bless || strings.EqualFold(os.Getenv(BlessEnv), "overwrite"),
		Logger:     zaptest.NewLogger(t),
	}
	report, err := runner.RunGated(ctx, decision, patterns...)
	if err != nil {
		t.Fatalf("compile-fail suite: %v", err)
	}
	if report.Skipped {
		t.Skipf("compile-fail suite skipped: %s", report.SkipReason)
	}

	var out bytes.Buffer
	passed := (&suite.Emitter{Out: &out}).Emit(report)
	if !passed {
		t.Errorf("%s", out.String())
		return
	}
	t.Logf("%s", out.String())
}
