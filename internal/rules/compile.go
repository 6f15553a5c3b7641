package rules

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rulesift/rulesift/internal/normalize"
)

// ErrUnusable marks a rule that cannot be turned into a matcher. Such rules
// never match anything.
var ErrUnusable = errors.New("rule unusable")

const defaultDecodeDepth = 2

// Rule is a compiled Definition.
type Rule struct {
	Definition

	// Index is the rule's position in the source table.
	Index int
	// Fallback is set when the pattern failed to compile and its escaped
	// literal form is used instead.
	Fallback bool
	// CompileError holds the original compile error when Fallback is set.
	CompileError string

	matcher   Matcher
	transform normalize.Options
}

// Compile builds a matcher for def. It returns an error wrapping ErrUnusable
// when neither the pattern nor its literal form can be used.
func Compile(def Definition, index int) (*Rule, error) {
	def.ApplyDefaults()

	transform, err := mapTransforms(def.Transforms)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnusable, err)
	}

	if strings.TrimSpace(def.Pattern) == "" {
		return nil, fmt.Errorf("%w: empty pattern", ErrUnusable)
	}

	rule := &Rule{Definition: def, Index: index, transform: transform}

	switch def.Operator {
	case OperatorRegex:
		matcher, compileErr := NewRegexMatcher(def.Pattern, def.Flags)
		if compileErr != nil {
			literal, literalErr := NewLiteralMatcher(def.Pattern, def.Flags)
			if literalErr != nil {
				return nil, fmt.Errorf("%w: %v", ErrUnusable, compileErr)
			}
			rule.Fallback = true
			rule.CompileError = compileErr.Error()
			rule.matcher = literal
		} else {
			rule.matcher = matcher
		}
	case OperatorPhrase:
		matcher, phraseErr := NewAhoMatcher(strings.Fields(def.Pattern), def.CaseInsensitive())
		if phraseErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnusable, phraseErr)
		}
		rule.matcher = matcher
	default:
		return nil, fmt.Errorf("%w: unknown operator %q", ErrUnusable, def.Operator)
	}

	return rule, nil
}

// Accepts applies the rule's transforms to input and runs its matcher. A
// panicking matcher counts as a non-match.
func (r *Rule) Accepts(input string) (matched bool) {
	if r == nil || r.matcher == nil {
		return false
	}
	return r.matchTransformed(normalize.Apply(input, r.transform))
}

func (r *Rule) matchTransformed(input string) (matched bool) {
	defer func() {
		if recover() != nil {
			matched = false
		}
	}()
	return r.matcher.Match(input)
}

func mapTransforms(raw []string) (normalize.Options, error) {
	var opts normalize.Options
	for _, item := range raw {
		name := strings.ToLower(strings.TrimSpace(item))
		name = strings.TrimPrefix(name, "t:")
		switch name {
		case "", "none":
		case "lowercase":
			opts.Lowercase = true
		case "urldecode", "urldecodeuni":
			opts.URLDecodeDepth = defaultDecodeDepth
		case "htmlentitydecode", "html_entity":
			opts.HTMLEntity = true
		case "normalizepath", "normalisepath", "normalize_path":
			opts.NormalizePath = true
		case "compresswhitespace":
			opts.CompressWhitespace = true
		default:
			return normalize.Options{}, fmt.Errorf("unknown transform %q", item)
		}
	}
	return opts, nil
}
