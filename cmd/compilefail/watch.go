package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/ormasoftchile/compilefail/pkg/suite"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var watchDebounce string

var watchCmd = &cobra.Command{
	Use:   "watch [pattern...]",
	Short: "Re-run the suite whenever a case or expectation changes",
	Long: `Run the suite once, then watch the directories the patterns point at and
run it again after changes settle. Configuration, discovery and expectation
errors are printed and the watch continues. Stop with Ctrl-C.`,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	debounce, err := time.ParseDuration(watchDebounce)
	if err != nil {
		return &exitError{code: exitConfig, err: fmt.Errorf("invalid --debounce: %w", err)}
	}
	cfg, err := loadConfig()
	if err != nil {
		return &exitError{code: exitConfig}
	}
	patterns := args
	if len(patterns) == 0 {
		patterns = cfg.Patterns
	}
	dirs, err := watchDirs(patterns)
	if err != nil {
		return &exitError{code: exitConfig, err: err}
	}

	ctx := cmd.Context()
	runner, decision, err := buildRunner(ctx, cfg)
	if err != nil {
		return &exitError{code: exitConfig, err: err}
	}
	if !decision.Allowed {
		fmt.Printf("  %s watch not started: %s\n", suite.GlyphSkipped, decision.Reason)
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return &exitError{code: exitConfig, err: fmt.Errorf("create watcher: %w", err)}
	}
	defer w.Close()
	for _, d := range dirs {
		if err := w.Add(d); err != nil {
			return &exitError{code: exitConfig, err: fmt.Errorf("watch %s: %w", d, err)}
		}
		logger.Debug("watching", zap.String("dir", d))
	}

	run := 0
	runOnce := func() error {
		run++
		fmt.Printf("\n%s  run %d\n", time.Now().Format("15:04:05"), run)
		return watchPass(ctx, runner, decision, patterns)
	}

	if err := runOnce(); err != nil {
		return err
	}

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			fmt.Println("\n  Watch stopped")
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			logger.Debug("change detected", zap.String("path", ev.Name), zap.String("op", ev.Op.String()))
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", zap.Error(err))
		case <-fire:
			fire = nil
			if err := runOnce(); err != nil {
				return err
			}
		}
	}
}

// watchPass runs the suite once. Run errors are printed and the watch goes
// on; an interrupted run ends the watch with exitAborted.
func watchPass(ctx context.Context, runner *suite.Runner, decision suite.Decision, patterns []string) error {
	report, err := runner.RunGated(ctx, decision, patterns...)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return &exitError{code: exitAborted}
		}
		fmt.Printf("  %s %v\n", suite.GlyphFail, err)
		return nil
	}
	printReport(report)
	return nil
}

// watchDirs returns the directories holding each pattern's matches. Only the
// final path element may contain wildcards.
func watchDirs(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var dirs []string
	for _, p := range patterns {
		dir := filepath.Dir(p)
		if strings.ContainsAny(dir, `*?[`) {
			return nil, fmt.Errorf("watch: pattern %q has wildcards in its directory", p)
		}
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}
	return dirs, nil
}

func init() {
	addRunFlags(watchCmd)
	watchCmd.Flags().StringVar(&watchDebounce, "debounce", "300ms", "Quiet period before re-running after a change")
	rootCmd.AddCommand(watchCmd)
}
