package options

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultTarget accepts any name made of letters, digits, '_', '.' and '-'.
const DefaultTarget = `/^[a-z\d_.\-]+$/i`

// Matcher decides whether a repository name is a mirror target.
type Matcher interface {
	Match(name string) bool
	String() string
}

type regexpMatcher struct {
	source string
	re     *regexp.Regexp
}

func (m regexpMatcher) Match(name string) bool { return m.re.MatchString(name) }
func (m regexpMatcher) String() string { return m.source }

type globMatcher string

func (m globMatcher) Match(name string) bool {
	ok, err := doublestar.Match(string(m), name)
	return err == nil && ok
}

func (m globMatcher) String() string { return string(m) }

// ParseTarget compiles one targets entry. "/expr/" and "/expr/i" are
// regular expressions; anything else is a glob.
func ParseTarget(target string) (Matcher, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, fmt.Errorf("empty target")
	}
	if len(target) >= 2 && strings.HasPrefix(target, "/") {
		end := strings.LastIndex(target, "/")
		if end > 0 {
			expr := target[1:end]
			flags := target[end+1:]
			switch flags {
			case "":
			case "i":
				expr = "(?i)" + expr
			default:
				return nil, fmt.Errorf("target %q: unsupported flags %q", target, flags)
			}
			re, err := regexp.Compile(expr)
			if err != nil {
				return nil, fmt.Errorf("target %q: %w", target, err)
			}
			return regexpMatcher{source: target, re: re}, nil
		}
	}
	if !doublestar.ValidatePattern(target) {
		return nil, fmt.Errorf("target %q: invalid glob", target)
	}
	return globMatcher(target), nil
}

// Matchers compiles targets, falling back to DefaultTarget when none are set.
func Matchers(targets []string) ([]Matcher, error) {
	if len(targets) == 0 {
		targets = []string{DefaultTarget}
	}
	out := make([]Matcher, 0, len(targets))
	for _, target := range targets {
		m, err := ParseTarget(target)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// Targeted reports whether any matcher accepts name.
func Targeted(matchers []Matcher, name string) bool {
	for _, m := range matchers {
		if m.Match(name) {
			return true
		}
	}
	return false
}
