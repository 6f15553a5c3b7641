package rules

import "strings"

type Operator string

const (
	OperatorRegex  Operator = "rx"
	OperatorPhrase Operator = "pm"
)

const (
	DefaultPhase    = 2
	DefaultPriority = 1000
)

// Definition is one row of a rule table. Zero Phase, Priority and Operator
// are replaced by their defaults in ApplyDefaults.
type Definition struct {
	ID         string   `json:"id" yaml:"id"`
	Name       string   `json:"name,omitempty" yaml:"name,omitempty"`
	Pattern    string   `json:"pattern" yaml:"pattern"`
	Flags      string   `json:"flags,omitempty" yaml:"flags,omitempty"`
	Operator   Operator `json:"operator,omitempty" yaml:"operator,omitempty"`
	Transforms []string `json:"transforms,omitempty" yaml:"transforms,omitempty"`
	Phase      int      `json:"phase" yaml:"phase"`
	Priority   int      `json:"priority" yaml:"priority"`
	Action     string   `json:"action" yaml:"action"`
	Severity   string   `json:"severity,omitempty" yaml:"severity,omitempty"`
	Category   string   `json:"category,omitempty" yaml:"category,omitempty"`
}

func (d *Definition) ApplyDefaults() {
	if d.Phase == 0 {
		d.Phase = DefaultPhase
	}
	if d.Priority == 0 {
		d.Priority = DefaultPriority
	}
	if d.Operator == "" {
		d.Operator = OperatorRegex
	}
	d.Operator = Operator(strings.ToLower(strings.TrimPrefix(string(d.Operator), "@")))
}

func (d Definition) CaseInsensitive() bool {
	return strings.ContainsRune(d.Flags, 'i')
}

// Blocking reports whether the rule's action stops request processing.
func (d Definition) Blocking() bool {
	switch strings.ToLower(strings.TrimSpace(d.Action)) {
	case "block", "blocked", "deny", "drop", "reject":
		return true
	default:
		return false
	}
}

// Matcher reports whether the input matches.
type Matcher interface {
	Match(input string) bool
}
