package suite

import (
	"fmt"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
)

// Placeholders substituted for environment-specific paths in diagnostics.
const (
	WorkspacePlaceholder = "$WORKSPACE"
	DirPlaceholder       = "$DIR"
)

// Rule is a regex rewrite applied to diagnostics after path substitution.
type Rule struct {
	Pattern *regexp.Regexp
	Replace string
}

// CompileRule builds a Rule from a pattern string.
func CompileRule(pattern, replace string) (Rule, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Rule{}, fmt.Errorf("normalize rule %q: %w", pattern, err)
	}
	return Rule{Pattern: re, Replace: replace}, nil
}

// Normalizer removes non-semantic differences from compiler diagnostics so
// that expected and actual text compare equal across machines.
//
// The policy, applied in order to both texts:
//  1. CRLF and lone CR become LF.
//  2. The case workspace becomes $WORKSPACE and the case's source directory
//     becomes $DIR (native, slash-separated and symlink-resolved spellings).
//  3. Configured rules are applied in declaration order.
//  4. Trailing whitespace is trimmed from every line.
//  5. Leading and trailing blank lines are dropped.
//
// Column numbers and message text are left alone unless a rule rewrites them.
type Normalizer struct {
	Rules []Rule
}

// NewNormalizer returns a Normalizer with the given extra rules.
func NewNormalizer(rules ...Rule) *Normalizer {
	return &Normalizer{Rules: rules}
}

// Normalize applies the policy to text. workspace and dir may be empty.
func (n *Normalizer) Normalize(text, workspace, dir string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	text = replacePath(text, workspace, WorkspacePlaceholder)
	text = replacePath(text, dir, DirPlaceholder)

	if n != nil {
		for _, r := range n.Rules {
			text = r.Pattern.ReplaceAllString(text, r.Replace)
		}
	}

	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t\f\v")
	}
	for len(lines) > 0 && lines[0] == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

func replacePath(text, path, placeholder string) string {
	if path == "" || path == "." || path == string(filepath.Separator) {
		return text
	}
	variants := []string{path, filepath.ToSlash(path)}
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		variants = append(variants, resolved, filepath.ToSlash(resolved))
	}
	// Longest first so a resolved prefix never shadows a longer spelling.
	slices.SortFunc(variants, func(a, b string) int { return len(b) - len(a) })
	for _, v := range variants {
		text = replaceWhole(text, v, placeholder)
	}
	return text
}

// replaceWhole replaces path where it stands as a whole path prefix, so
// /src/cases does not rewrite /src/cases2 or /x/src/cases.
func replaceWhole(text, path, placeholder string) string {
	var b strings.Builder
	for {
		i := strings.Index(text, path)
		if i < 0 {
			b.WriteString(text)
			return b.String()
		}
		end := i + len(path)
		if startsPath(text[:i]) && endsPath(text[end:]) {
			b.WriteString(text[:i])
			b.WriteString(placeholder)
		} else {
			b.WriteString(text[:end])
		}
		text = text[end:]
	}
}

func startsPath(before string) bool {
	if before == "" {
		return true
	}
	c := before[len(before)-1]
	return !isNameByte(c) && c != '/' && c != '\\' && c != '.'
}

func endsPath(after string) bool {
	if after == "" {
		return true
	}
	switch c := after[0]; {
	case c == '/' || c == '\\':
		return true
	case c == '.':
		// Sentence punctuation, not an extension.
		return len(after) == 1 || !isNameByte(after[1])
	default:
		return !isNameByte(c)
	}
}

func isNameByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' ||
		c == '_' || c == '-' || c >= 0x80
}
