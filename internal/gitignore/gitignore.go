// Package gitignore matches paths against .gitignore patterns so the
// source scanner skips what the project's own tooling ignores. It covers
// the common pattern forms (anchoring, directory-only suffix, negation,
// * ? and **) rather than the full gitignore spec.
package gitignore

import (
	"bufio"
	"os"
	"regexp"
	"strings"
)

// Matcher holds compiled ignore patterns. Patterns are evaluated in
// order; the last matching pattern wins, as git does it.
type Matcher struct {
	rules []rule
}

type rule struct {
	regex    *regexp.Regexp
	negated  bool
	dirOnly  bool
}

// New creates an empty Matcher.
func New() *Matcher {
	return &Matcher{}
}

// Load reads the .gitignore file at path into a Matcher. A missing file
// yields an empty matcher.
func Load(path string) (*Matcher, error) {
	m := New()

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return nil, err
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		m.Add(scanner.Text())
	}
	return m, scanner.Err()
}

// Add compiles one pattern line. Blank lines and comments are ignored.
func (m *Matcher) Add(line string) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return
	}

	r := rule{}
	if strings.HasPrefix(line, "!") {
		r.negated = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		r.dirOnly = true
		line = strings.TrimSuffix(line, "/")
	}

	// A slash anywhere but the end anchors the pattern to the root;
	// otherwise it matches at any depth.
	anchored := strings.Contains(line, "/")
	line = strings.TrimPrefix(line, "/")

	expr := patternToRegex(line)
	if anchored {
		expr = "^" + expr
	} else {
		expr = "(^|/)" + expr
	}
	expr += "(/|$)"

	compiled, err := regexp.Compile(expr)
	if err != nil {
		return
	}
	r.regex = compiled
	m.rules = append(m.rules, r)
}

// Len returns the number of compiled rules.
func (m *Matcher) Len() int {
	return len(m.rules)
}

// Match reports whether the slash-separated relative path is ignored.
func (m *Matcher) Match(path string, isDir bool) bool {
	path = strings.TrimPrefix(path, "/")

	ignored := false
	for _, r := range m.rules {
		if r.dirOnly && !isDir {
			// Directory-only patterns still cover files under a matched
			// directory; the parent check below handles that.
			if !m.underMatchedDir(r, path) {
				continue
			}
			ignored = !r.negated
			continue
		}
		if r.regex.MatchString(path) {
			ignored = !r.negated
		}
	}
	return ignored
}

// underMatchedDir reports whether some ancestor directory of path
// matches the directory-only rule.
func (m *Matcher) underMatchedDir(r rule, path string) bool {
	parts := strings.Split(path, "/")
	for i := 1; i < len(parts); i++ {
		if r.regex.MatchString(strings.Join(parts[:i], "/")) {
			return true
		}
	}
	return false
}

// patternToRegex translates a gitignore glob into a regular expression.
func patternToRegex(pattern string) string {
	var b strings.Builder
	i := 0
	for i < len(pattern) {
		c := pattern[i]
		switch c {
		case '*':
			if strings.HasPrefix(pattern[i:], "**/") {
				b.WriteString(`(.*/)?`)
				i += 3
				continue
			}
			if pattern[i:] == "**" {
				b.WriteString(`.*`)
				i += 2
				continue
			}
			b.WriteString(`[^/]*`)
		case '?':
			b.WriteString(`[^/]`)
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
		i++
	}
	return b.String()
}
