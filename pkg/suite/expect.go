package suite

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DefaultExpectationExt is the extension of the sibling file that holds the
// expected diagnostic for a case.
const DefaultExpectationExt = ".stderr"

// Resolver locates the expected-diagnostic artifact for a Case by convention:
// same directory, same stem, extension Ext.
type Resolver struct {
	Ext string // defaults to DefaultExpectationExt
}

// ExpectationPath returns where the artifact for c lives, whether or not it exists.
func (r Resolver) ExpectationPath(c Case) string {
	ext := r.Ext
	if ext == "" {
		ext = DefaultExpectationExt
	}
	return strings.TrimSuffix(c.Path, filepath.Ext(c.Path)) + ext
}

// Resolve reads the expectation for c. A missing artifact yields an
// Expectation with Present == false. An artifact that exists but cannot be
// read is a *ResolutionError.
func (r Resolver) Resolve(c Case) (Expectation, error) {
	path := r.ExpectationPath(c)
	exp := Expectation{Case: c, Path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return exp, nil
		}
		return Expectation{}, &ResolutionError{Case: c.Name, Path: path, Err: err}
	}
	exp.Expected = string(data)
	exp.Present = true
	return exp, nil
}

// Bless overwrites the artifact for c with the given diagnostic text.
func (r Resolver) Bless(c Case, diagnostic string) error {
	path := r.ExpectationPath(c)
	if diagnostic != "" && !strings.HasSuffix(diagnostic, "\n") {
		diagnostic += "\n"
	}
	if err := os.WriteFile(path, []byte(diagnostic), 0o644); err != nil {
		return fmt.Errorf("bless %s: %w", path, err)
	}
	return nil
}
