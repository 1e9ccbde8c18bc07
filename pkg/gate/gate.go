// Package gate decides whether a compile-fail suite runs at all, based on
// facts about the toolchain known at startup. The decision is computed once
// and handed to the runner as a value.
package gate

import (
	"fmt"
	"runtime"
	"slices"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/ormasoftchile/compilefail/pkg/suite"
	"github.com/ormasoftchile/compilefail/pkg/toolchain"
)

// Facts are the environment facts a gate expression can inspect.
type Facts struct {
	Version  toolchain.Version
	OS       string
	Arch     string
	Features []string
}

// NewFacts returns Facts for v on the current platform.
func NewFacts(v toolchain.Version, features ...string) Facts {
	return Facts{Version: v, OS: runtime.GOOS, Arch: runtime.GOARCH, Features: features}
}

// Evaluate compiles and runs a boolean expr-lang expression against f.
//
// Variables: channel, version, major, minor, patch, os, arch, features,
// stable, beta, nightly, devel.
// Functions: since("1.84"), before("2.0"), feature("name").
//
// A rustversion-style gate `all(stable, since(1.84))` is written
// `stable && since("1.84")`. An empty expression always allows the run.
func Evaluate(expression string, f Facts) (suite.Decision, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return suite.Allow, nil
	}

	env := map[string]any{
		"channel":  f.Version.Channel,
		"version":  f.Version.String(),
		"major":    f.Version.Major,
		"minor":    f.Version.Minor,
		"patch":    f.Version.Patch,
		"os":       f.OS,
		"arch":     f.Arch,
		"features": f.Features,
		"stable":   f.Version.Channel == toolchain.ChannelStable,
		"beta":     f.Version.Channel == toolchain.ChannelBeta,
		"nightly":  f.Version.Channel == toolchain.ChannelNightly,
		"devel":    f.Version.Channel == toolchain.ChannelDevel,
	}

	program, err := expr.Compile(expression,
		expr.Env(env),
		expr.AsBool(),
		expr.Function("since", func(params ...any) (any, error) {
			floor, err := toolchain.ParseVersion(params[0].(string))
			if err != nil {
				return nil, fmt.Errorf("since: %w", err)
			}
			return f.Version.Compare(floor) >= 0, nil
		}, new(func(string) bool)),
		expr.Function("before", func(params ...any) (any, error) {
			ceiling, err := toolchain.ParseVersion(params[0].(string))
			if err != nil {
				return nil, fmt.Errorf("before: %w", err)
			}
			return f.Version.Compare(ceiling) < 0, nil
		}, new(func(string) bool)),
		expr.Function("feature", func(params ...any) (any, error) {
			return slices.Contains(f.Features, params[0].(string)), nil
		}, new(func(string) bool)),
	)
	if err != nil {
		return suite.Decision{}, fmt.Errorf("compile gate %q: %w", expression, err)
	}
	output, err := expr.Run(program, env)
	if err != nil {
		return suite.Decision{}, fmt.Errorf("eval gate %q: %w", expression, err)
	}
	allowed, ok := output.(bool)
	if !ok {
		return suite.Decision{}, fmt.Errorf("gate %q did not return bool (got %T: %v)", expression, output, output)
	}
	if !allowed {
		return suite.Decision{
			Reason: fmt.Sprintf("gate %q is false for %s toolchain %s", expression, f.Version.Channel, f.Version),
		}, nil
	}
	return suite.Decision{Allowed: true, Reason: expression}, nil
}
