package suite

import (
	"iter"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Discover expands glob patterns into Cases ordered lexicographically by path.
// Matches from several patterns are merged and de-duplicated; directories are
// skipped. A pattern that matches nothing is not an error.
func Discover(patterns ...string) ([]Case, error) {
	paths, err := matchAll(patterns)
	if err != nil {
		return nil, err
	}

	wd, _ := os.Getwd()
	cases := make([]Case, 0, len(paths))
	for _, m := range paths {
		src, err := os.ReadFile(m.path)
		if err != nil {
			return nil, &DiscoveryError{Pattern: m.pattern, Path: m.path, Err: err}
		}
		cases = append(cases, Case{
			Path:   m.path,
			Name:   displayName(wd, m.path),
			Source: src,
		})
	}
	return cases, nil
}

// Paths yields the matched file paths without reading them. The sequence can
// be ranged over repeatedly; each pass re-reads the filesystem.
func Paths(patterns ...string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		paths, err := matchAll(patterns)
		if err != nil {
			yield("", err)
			return
		}
		for _, m := range paths {
			if !yield(m.path, nil) {
				return
			}
		}
	}
}

type match struct {
	pattern string
	path    string
}

func matchAll(patterns []string) ([]match, error) {
	// Every pattern is checked before any is expanded so that a bad pattern
	// aborts the run without touching the filesystem.
	for _, p := range patterns {
		if _, err := filepath.Match(p, ""); err != nil {
			return nil, &DiscoveryError{Pattern: p, Err: err}
		}
	}

	seen := make(map[string]bool)
	var out []match
	for _, p := range patterns {
		found, err := filepath.Glob(p)
		if err != nil {
			return nil, &DiscoveryError{Pattern: p, Err: err}
		}
		for _, path := range found {
			path = filepath.Clean(path)
			if seen[path] {
				continue
			}
			info, err := os.Stat(path)
			if err != nil {
				return nil, &DiscoveryError{Pattern: p, Path: path, Err: err}
			}
			if info.IsDir() {
				continue
			}
			seen[path] = true
			out = append(out, match{pattern: p, path: path})
		}
	}
	slices.SortFunc(out, func(a, b match) int { return strings.Compare(a.path, b.path) })
	return out, nil
}

func displayName(wd, path string) string {
	if wd == "" {
		return filepath.ToSlash(path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(wd, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// String implements fmt.Stringer for log output.
func (c Case) String() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Path
}
