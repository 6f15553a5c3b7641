package rules

import (
	"regexp"
	"strings"
)

type RegexMatcher struct {
	re *regexp.Regexp
}

func NewRegexMatcher(pattern, flags string) (*RegexMatcher, error) {
	re, err := regexp.Compile(flagPrefix(flags) + pattern)
	if err != nil {
		return nil, err
	}
	return &RegexMatcher{re: re}, nil
}

// NewLiteralMatcher matches pattern as an escaped literal.
func NewLiteralMatcher(pattern, flags string) (*RegexMatcher, error) {
	return NewRegexMatcher(regexp.QuoteMeta(pattern), flags)
}

func (m *RegexMatcher) Match(input string) bool {
	return m.re.MatchString(input)
}

func (m *RegexMatcher) String() string {
	return m.re.String()
}

// flagPrefix keeps the flags RE2 understands, in input order and without repeats.
func flagPrefix(flags string) string {
	var b strings.Builder
	for _, r := range flags {
		if !strings.ContainsRune("imsU", r) || strings.ContainsRune(b.String(), r) {
			continue
		}
		b.WriteRune(r)
	}
	if b.Len() == 0 {
		return ""
	}
	return "(?" + b.String() + ")"
}
