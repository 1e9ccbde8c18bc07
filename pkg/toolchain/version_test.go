package toolchain

import (
	"context"
	"errors"
	"testing"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		in      string
		major   int
		minor   int
		patch   int
		channel string
	}{
		{"1.84", 1, 84, 0, ChannelStable},
		{"1.84.1", 1, 84, 1, ChannelStable},
		{"go version go1.23.4 linux/amd64", 1, 23, 4, ChannelStable},
		{"go version go1.24rc1 darwin/arm64", 1, 24, 0, ChannelBeta},
		{"go version devel go1.26-abcdef Tue Jan 6 linux/amd64", 1, 26, 0, ChannelDevel},
		{"rustc 1.84.0 (9fc6b4312 2025-01-07)", 1, 84, 0, ChannelStable},
		{"rustc 1.85.0-beta.3 (aaaa 2025-01-20)", 1, 85, 0, ChannelBeta},
		{"rustc 1.86.0-nightly (bbbb 2025-01-21)", 1, 86, 0, ChannelNightly},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			v, err := ParseVersion(tt.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if v.Major != tt.major || v.Minor != tt.minor || v.Patch != tt.patch {
				t.Errorf("version = %s, want %d.%d.%d", v, tt.major, tt.minor, tt.patch)
			}
			if v.Channel != tt.channel {
				t.Errorf("channel = %q, want %q", v.Channel, tt.channel)
			}
		})
	}
}

func TestParseVersionInvalid(t *testing.T) {
	if _, err := ParseVersion("no digits here"); err == nil {
		t.Fatal("expected error")
	}
}

func TestVersionCompare(t *testing.T) {
	v := func(s string) Version {
		t.Helper()
		out, err := ParseVersion(s)
		if err != nil {
			t.Fatal(err)
		}
		return out
	}
	tests := []struct {
		a, b string
		want int
	}{
		{"1.84", "1.84.0", 0},
		{"1.84.1", "1.84.0", 1},
		{"1.9", "1.84", -1},
		{"2.0", "1.99.99", 1},
		{"1.86.0-nightly", "1.86.0", 0},
	}
	for _, tt := range tests {
		if got := v(tt.a).Compare(v(tt.b)); got != tt.want {
			t.Errorf("%s.Compare(%s) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestHostGoVersion(t *testing.T) {
	v := HostGoVersion()
	if v.Raw == "" {
		t.Error("expected raw version")
	}
	if v.Channel != ChannelDevel && v.Major < 1 {
		t.Errorf("unexpected host version %+v", v)
	}
}

type fakeExecutor struct {
	result *CommandResult
	err    error
	got    Command
}

func (f *fakeExecutor) Execute(_ context.Context, c Command) (*CommandResult, error) {
	f.got = c
	return f.result, f.err
}

func TestDetectVersion(t *testing.T) {
	needSh(t)
	fe := &fakeExecutor{result: &CommandResult{Stdout: []byte("rustc 1.84.0 (9fc6b4312 2025-01-07)\n")}}
	v, err := DetectVersion(t.Context(), fe, []string{"sh", "--version"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.String() != "1.84.0" || v.Channel != ChannelStable {
		t.Errorf("version = %s (%s)", v, v.Channel)
	}
	if len(fe.got.Args) != 1 || fe.got.Args[0] != "--version" {
		t.Errorf("args = %v", fe.got.Args)
	}
}

func TestDetectVersionFromStderr(t *testing.T) {
	needSh(t)
	fe := &fakeExecutor{result: &CommandResult{Stderr: []byte("tool 3.1.4\n")}}
	v, err := DetectVersion(t.Context(), fe, []string{"sh"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.String() != "3.1.4" {
		t.Errorf("version = %s", v)
	}
}

func TestDetectVersionErrors(t *testing.T) {
	needSh(t)
	if _, err := DetectVersion(t.Context(), nil, nil); err == nil {
		t.Error("expected error for empty argv")
	}
	if _, err := DetectVersion(t.Context(), nil, []string{"definitely-not-a-compiler-xyz"}); err == nil {
		t.Error("expected error for missing executable")
	}
	fe := &fakeExecutor{result: &CommandResult{ExitCode: 2, Stderr: []byte("bad flag")}}
	if _, err := DetectVersion(t.Context(), fe, []string{"sh"}); err == nil {
		t.Error("expected error for non-zero exit")
	}
	boom := errors.New("boom")
	fe = &fakeExecutor{err: boom}
	if _, err := DetectVersion(t.Context(), fe, []string{"sh"}); !errors.Is(err, boom) {
		t.Errorf("expected executor error, got %v", err)
	}
}
