package toolchain

import (
	"context"
	"os/exec"
	"runtime"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// needSh skips tests that drive a POSIX shell.
func needSh(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not found on PATH")
	}
	return sh
}

func TestRealExecutorEcho(t *testing.T) {
	sh := needSh(t)
	r := &RealExecutor{}
	res, err := r.Execute(t.Context(), Command{Path: sh, Args: []string{"-c", "echo hello; echo oops >&2"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out := strings.TrimSpace(string(res.Stdout)); out != "hello" {
		t.Errorf("stdout = %q, want %q", out, "hello")
	}
	if out := strings.TrimSpace(string(res.Stderr)); out != "oops" {
		t.Errorf("stderr = %q, want %q", out, "oops")
	}
	if res.ExitCode != 0 || res.Signaled {
		t.Errorf("exit code = %d signaled = %v", res.ExitCode, res.Signaled)
	}
}

func TestRealExecutorExitCode(t *testing.T) {
	sh := needSh(t)
	res, err := (&RealExecutor{}).Execute(t.Context(), Command{Path: sh, Args: []string{"-c", "exit 3"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode != 3 {
		t.Errorf("exit code = %d, want 3", res.ExitCode)
	}
	if res.Signaled {
		t.Error("a plain exit is not a signal")
	}
}

func TestRealExecutorSignal(t *testing.T) {
	sh := needSh(t)
	res, err := (&RealExecutor{}).Execute(t.Context(), Command{Path: sh, Args: []string{"-c", "kill -9 $$"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Signaled {
		t.Errorf("expected signaled result, got %+v", res)
	}
	if !strings.Contains(res.State, "killed") {
		t.Errorf("state = %q", res.State)
	}
}

func TestRealExecutorCancelKillsGroup(t *testing.T) {
	sh := needSh(t)
	ctx, cancel := context.WithTimeout(t.Context(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	// The background sleep inherits stdout; without a group kill Wait would
	// block until WaitDelay.
	res, err := (&RealExecutor{WaitDelay: 5 * time.Second}).Execute(ctx, Command{Path: sh, Args: []string{"-c", "sleep 10 & sleep 10"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Signaled {
		t.Errorf("expected signaled result, got %+v", res)
	}
	if d := time.Since(start); d > 4*time.Second {
		t.Errorf("cancellation took %s", d)
	}
}

func TestRealExecutorMissingBinary(t *testing.T) {
	needSh(t)
	_, err := (&RealExecutor{}).Execute(t.Context(), Command{Path: "/nonexistent/compiler"})
	if err == nil {
		t.Fatal("expected error for missing executable")
	}
}
