package toolchain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/ormasoftchile/compilefail/pkg/suite"
)

// DefaultTimeout bounds a single compilation when none is configured.
const DefaultTimeout = 2 * time.Minute

// TemplateData is the per-case data available to argv templates.
type TemplateData struct {
	Source    string // absolute path of the original case file
	File      string // base name of the copy inside Workspace
	Workspace string // isolated per-case directory, also the working directory
	Output    string // suggested output artifact path inside Workspace
	Name      string // case display name
	Stem      string // File without its extension
}

// CompilerConfig configures a CommandCompiler.
type CompilerConfig struct {
	// Argv is the compiler command line. Argv[0] is the executable and is
	// looked up on PATH once; the remaining elements are text/template
	// strings rendered with TemplateData, e.g. "{{ .File }}".
	Argv     []string
	Env      []string // extra KEY=VALUE entries appended to the caller's environment
	Timeout  time.Duration
	TempDir  string // parent for per-case workspaces; empty means os.TempDir()
	Executor CommandExecutor
}

// CommandCompiler compiles each case by running an external command in a
// fresh temporary workspace.
type CommandCompiler struct {
	path    string
	args    []*template.Template
	env     []string
	timeout time.Duration
	tempDir string
	exec    CommandExecutor
}

// NewCommandCompiler validates cfg and resolves the executable. A compiler
// that cannot be found is a configuration error reported here rather than a
// crash of every case.
func NewCommandCompiler(cfg CompilerConfig) (*CommandCompiler, error) {
	if len(cfg.Argv) == 0 || strings.TrimSpace(cfg.Argv[0]) == "" {
		return nil, errors.New("compiler argv is empty")
	}
	path, err := exec.LookPath(cfg.Argv[0])
	if err != nil {
		return nil, fmt.Errorf("resolve compiler %q: %w", cfg.Argv[0], err)
	}

	args := make([]*template.Template, 0, len(cfg.Argv)-1)
	for i, a := range cfg.Argv[1:] {
		t, err := template.New(fmt.Sprintf("argv[%d]", i+1)).Option("missingkey=error").Parse(a)
		if err != nil {
			return nil, fmt.Errorf("parse compiler argument %q: %w", a, err)
		}
		args = append(args, t)
	}

	c := &CommandCompiler{
		path:    path,
		args:    args,
		env:     cfg.Env,
		timeout: cfg.Timeout,
		tempDir: cfg.TempDir,
		exec:    cfg.Executor,
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.exec == nil {
		c.exec = &RealExecutor{}
	}
	// Catch references to unknown fields before any case runs.
	if _, err := c.render(TemplateData{}); err != nil {
		return nil, err
	}
	return c, nil
}

// Compile runs the compiler for one case. Timeouts and crashes are recorded
// in the returned Attempt; the error is non-nil only when the workspace could
// not be prepared or ctx was cancelled.
func (c *CommandCompiler) Compile(ctx context.Context, cs suite.Case) (suite.Attempt, error) {
	if err := ctx.Err(); err != nil {
		return suite.Attempt{}, err
	}

	ws, err := os.MkdirTemp(c.tempDir, "compilefail-*")
	if err != nil {
		return suite.Attempt{}, fmt.Errorf("create workspace: %w", err)
	}
	defer os.RemoveAll(ws)
	// Compilers print the resolved path (e.g. /private/var on macOS), and
	// the workspace is gone by the time diagnostics are normalized.
	if resolved, err := filepath.EvalSymlinks(ws); err == nil {
		ws = resolved
	}

	file := filepath.Base(cs.Path)
	if err := os.WriteFile(filepath.Join(ws, file), cs.Source, 0o644); err != nil {
		return suite.Attempt{}, fmt.Errorf("stage %s: %w", cs.Path, err)
	}

	src, err := filepath.Abs(cs.Path)
	if err != nil {
		src = cs.Path
	}
	data := TemplateData{
		Source:    src,
		File:      file,
		Workspace: ws,
		Output:    filepath.Join(ws, "out"),
		Name:      cs.Name,
		Stem:      strings.TrimSuffix(file, filepath.Ext(file)),
	}
	args, err := c.render(data)
	if err != nil {
		return suite.Attempt{}, err
	}

	env := append(os.Environ(), c.env...)
	env = append(env, "TMPDIR="+ws)

	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	res, runErr := c.exec.Execute(cctx, Command{Path: c.path, Args: args, Env: env, Dir: ws})

	// A cancelled run is not a compile outcome.
	if err := ctx.Err(); err != nil {
		return suite.Attempt{}, err
	}

	if res == nil && runErr == nil {
		runErr = errors.New("executor returned no result")
	}
	attempt := suite.Attempt{Case: cs, Workspace: ws}
	if res != nil {
		attempt.Stdout = string(res.Stdout)
		attempt.Stderr = string(res.Stderr)
		attempt.ExitCode = res.ExitCode
		attempt.Duration = res.Duration
	}

	killed := runErr != nil || res.Signaled
	switch {
	case killed && errors.Is(cctx.Err(), context.DeadlineExceeded):
		attempt.TimedOut = true
		attempt.Compiled = false
		attempt.ExitCode = -1
		attempt.Stderr = fmt.Sprintf("compilation timed out after %s", c.timeout)
	case runErr != nil:
		attempt.Crashed = true
		attempt.Compiled = false
		attempt.ExitCode = -1
		attempt.Stderr = appendLine(attempt.Stderr, "toolchain crashed: "+runErr.Error())
	case res.Signaled:
		attempt.Crashed = true
		attempt.Compiled = false
		attempt.Stderr = appendLine(attempt.Stderr, "toolchain crashed: "+res.State)
	default:
		attempt.Compiled = res.ExitCode == 0
	}
	return attempt, nil
}

func (c *CommandCompiler) render(data TemplateData) ([]string, error) {
	out := make([]string, 0, len(c.args))
	var buf bytes.Buffer
	for _, t := range c.args {
		buf.Reset()
		if err := t.Execute(&buf, data); err != nil {
			return nil, fmt.Errorf("render compiler argument %s: %w", t.Name(), err)
		}
		out = append(out, buf.String())
	}
	return out, nil
}

func appendLine(s, line string) string {
	if s != "" && !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	return s + line
}
