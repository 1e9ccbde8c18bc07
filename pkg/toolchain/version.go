package toolchain

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"runtime"
	"strconv"
	"strings"
)

// Release channels.
const (
	ChannelStable  = "stable"
	ChannelBeta    = "beta"
	ChannelNightly = "nightly"
	ChannelDevel   = "devel"
)

// Version is a toolchain release as reported by its version command.
type Version struct {
	Major   int    `json:"major"`
	Minor   int    `json:"minor"`
	Patch   int    `json:"patch"`
	Channel string `json:"channel"`
	Raw     string `json:"raw,omitempty"`
}

var versionRe = regexp.MustCompile(`(\d+)\.(\d+)(?:\.(\d+))?`)

// ParseVersion extracts the first dotted version from s and infers the
// release channel. It accepts bare versions ("1.84", "1.84.0") as well as
// full tool banners ("go version go1.23rc1 linux/amd64",
// "rustc 1.86.0-nightly (abc 2025-01-01)").
func ParseVersion(s string) (Version, error) {
	m := versionRe.FindStringSubmatchIndex(s)
	if m == nil {
		return Version{}, fmt.Errorf("no version found in %q", strings.TrimSpace(s))
	}
	v := Version{Raw: strings.TrimSpace(s)}
	v.Major, _ = strconv.Atoi(s[m[2]:m[3]])
	v.Minor, _ = strconv.Atoi(s[m[4]:m[5]])
	if m[6] >= 0 {
		v.Patch, _ = strconv.Atoi(s[m[6]:m[7]])
	}
	v.Channel = channelOf(strings.ToLower(s), s[m[1]:])
	return v, nil
}

func channelOf(lower, suffix string) string {
	suffix = strings.ToLower(suffix)
	switch {
	case strings.Contains(lower, "devel"):
		return ChannelDevel
	case strings.Contains(lower, "nightly"):
		return ChannelNightly
	case strings.HasPrefix(suffix, "-beta"), strings.HasPrefix(suffix, "beta"),
		strings.HasPrefix(suffix, "rc"), strings.HasPrefix(suffix, "-rc"),
		strings.HasPrefix(suffix, "-alpha"), strings.HasPrefix(suffix, "alpha"):
		return ChannelBeta
	}
	return ChannelStable
}

// String returns the dotted numeric version.
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare orders versions numerically, ignoring the channel.
func (v Version) Compare(o Version) int {
	switch {
	case v.Major != o.Major:
		return cmpInt(v.Major, o.Major)
	case v.Minor != o.Minor:
		return cmpInt(v.Minor, o.Minor)
	}
	return cmpInt(v.Patch, o.Patch)
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// DetectVersion runs a version command (for example "go version" or
// "rustc --version") and parses its output.
func DetectVersion(ctx context.Context, ex CommandExecutor, argv []string) (Version, error) {
	if len(argv) == 0 {
		return Version{}, errors.New("version command is empty")
	}
	if ex == nil {
		ex = &RealExecutor{}
	}
	path, err := exec.LookPath(argv[0])
	if err != nil {
		return Version{}, fmt.Errorf("resolve %q: %w", argv[0], err)
	}
	res, err := ex.Execute(ctx, Command{Path: path, Args: argv[1:]})
	if err != nil {
		return Version{}, err
	}
	if res.ExitCode != 0 {
		return Version{}, fmt.Errorf("%s exited with code %d: %s", strings.Join(argv, " "), res.ExitCode, strings.TrimSpace(string(res.Stderr)))
	}
	out := string(res.Stdout)
	if strings.TrimSpace(out) == "" {
		out = string(res.Stderr)
	}
	return ParseVersion(out)
}

// HostGoVersion returns the version of the Go toolchain this binary was
// built with.
func HostGoVersion() Version {
	v, err := ParseVersion(runtime.Version())
	if err != nil {
		return Version{Channel: ChannelDevel, Raw: runtime.Version()}
	}
	return v
}
