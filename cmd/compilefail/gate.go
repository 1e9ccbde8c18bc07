package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ormasoftchile/compilefail/pkg/gate"
	"github.com/spf13/cobra"
)

var gateJSON bool

var gateCmd = &cobra.Command{
	Use:   "gate [expression]",
	Short: "Show toolchain facts and evaluate the gate",
	Long: `Detect the toolchain version and channel with the configured version
command and evaluate the gate expression (the argument, --gate or the
configured gate) against them.

Variables: channel, version, major, minor, patch, os, arch, features,
stable, beta, nightly, devel.
Functions: since("1.84"), before("2.0"), feature("name").`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGateCmd,
}

func runGateCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return &exitError{code: exitConfig}
	}
	expr := cfg.Gate
	if runGate != "" {
		expr = runGate
	}
	if len(args) == 1 {
		expr = args[0]
	}
	features := append(cfg.Features, runFeatures...)

	v, err := detectVersion(cmd.Context(), cfg)
	if err != nil {
		return &exitError{code: exitConfig, err: err}
	}
	facts := gate.NewFacts(v, features...)
	d, err := gate.Evaluate(expr, facts)
	if err != nil {
		return &exitError{code: exitConfig, err: err}
	}

	if gateJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"facts": facts, "gate": expr, "decision": d})
	}

	fmt.Printf("  toolchain  %s (%s)\n", v, v.Channel)
	if v.Raw != "" {
		fmt.Printf("  reported   %s\n", v.Raw)
	}
	fmt.Printf("  platform   %s/%s\n", facts.OS, facts.Arch)
	if len(features) > 0 {
		fmt.Printf("  features   %s\n", strings.Join(features, ", "))
	}
	if expr == "" {
		fmt.Println("  gate       (none) → run")
		return nil
	}
	if d.Allowed {
		fmt.Printf("  gate       %s → run\n", expr)
	} else {
		fmt.Printf("  gate       %s → skip\n", expr)
	}
	return nil
}

func init() {
	gateCmd.Flags().BoolVar(&gateJSON, "json", false, "Output facts and decision as JSON")
	gateCmd.Flags().StringVar(&runGate, "gate", "", "Gate expression")
	gateCmd.Flags().StringArrayVar(&runFeatures, "feature", nil, "Enable a feature (repeatable)")
	rootCmd.AddCommand(gateCmd)
}
