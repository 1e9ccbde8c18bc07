package suite

import "fmt"

// DiscoveryError reports a malformed pattern or an unreadable matched file.
// It aborts the run before any Case is processed.
type DiscoveryError struct {
	Pattern string
	Path    string // empty when the pattern itself is malformed
	Err     error
}

func (e *DiscoveryError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("discover %q: read %s: %v", e.Pattern, e.Path, e.Err)
	}
	return fmt.Sprintf("discover %q: %v", e.Pattern, e.Err)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }

// ResolutionError reports an expectation artifact that exists but cannot be
// read. It signals a malformed suite, not a failing case.
type ResolutionError struct {
	Case string
	Path string
	Err  error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve expectation for %s: %s: %v", e.Case, e.Path, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }
