package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ormasoftchile/compilefail/pkg/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Version is set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

// Exit codes shared by run and watch.
const (
	exitOK      = 0
	exitFailed  = 1
	exitConfig  = 2
	exitAborted = 130
)

var (
	configPath string
	verbose    bool
	logger     = zap.NewNop()
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	var ee *exitError
	switch {
	case errors.As(err, &ee):
		if ee.err != nil {
			fmt.Fprintf(os.Stderr, "compilefail: %v\n", ee.err)
		}
		os.Exit(ee.code)
	case err != nil:
		fmt.Fprintf(os.Stderr, "compilefail: %v\n", err)
		os.Exit(exitConfig)
	}
}

// exitError carries a process exit code out of a RunE.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return fmt.Sprintf("exit %d", e.code)
}

var rootCmd = &cobra.Command{
	Use:   "compilefail",
	Short: "Negative compilation test runner",
	Long: `compilefail — assert that source snippets fail to compile, optionally with an expected diagnostic.

Each case is a source file matched by a glob pattern. A sibling file with the
same stem and the .stderr extension, when present, holds the expected
diagnostic.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		l, err := cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// loadConfig reads --config, or compilefail.yaml when present, or falls back
// to the built-in defaults. Validation problems are printed and returned.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		if _, err := os.Stat(config.DefaultFile); err != nil {
			logger.Debug("no config file, using defaults")
			return config.Default(), nil
		}
		path = config.DefaultFile
	}

	cfg, errs := config.ValidateFile(path)
	for _, e := range errs {
		if e.Severity == "warning" {
			fmt.Fprintf(os.Stderr, "  ⚠ [%s] %s\n", e.Phase, e.Message)
			if e.Path != "" {
				fmt.Fprintf(os.Stderr, "    at: %s\n", e.Path)
			}
		}
	}
	if config.HasErrors(errs) {
		fmt.Fprintf(os.Stderr, "%s: invalid configuration\n\n", path)
		n := 0
		for _, e := range errs {
			if e.Severity == "warning" {
				continue
			}
			n++
			fmt.Fprintf(os.Stderr, "  %d. [%s] %s\n", n, e.Phase, e.Message)
			if e.Path != "" {
				fmt.Fprintf(os.Stderr, "     at: %s\n", e.Path)
			}
		}
		return nil, fmt.Errorf("configuration has %d error(s)", n)
	}
	logger.Debug("loaded config", zap.String("path", path))
	return cfg, nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("compilefail %s (%s)\n", version, commit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Suite config file (default: ./compilefail.yaml if present)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.AddCommand(versionCmd)
}
