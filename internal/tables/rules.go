package tables

import (
	"fmt"
	"io"
	"strings"

	"github.com/rulesift/rulesift/internal/rules"
)

var ruleColumns = map[string]string{
	"id":              "id",
	"rule_id":         "id",
	"ruleid":          "id",
	"pattern":         "pattern",
	"regex":           "pattern",
	"rule_pattern":    "pattern",
	"action":          "action",
	"flags":           "flags",
	"operator":        "operator",
	"op":              "operator",
	"transforms":      "transforms",
	"transformations": "transforms",
	"phase":           "phase",
	"priority":        "priority",
	"severity":        "severity",
	"category":        "category",
	"attack_type":     "category",
	"name":            "name",
	"rule_name":       "name",
	"msg":             "name",
	"message":         "name",
}

var requiredRuleColumns = []string{"id", "pattern", "action"}

// LoadRules reads a rule table, picking the format from the extension.
func LoadRules(path string) ([]rules.Definition, error) {
	file, format, err := openTable(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	defs, err := ReadRules(file, format)
	if err != nil {
		return nil, fmt.Errorf("load rules %s: %w", path, err)
	}
	return defs, nil
}

func ReadRules(r io.Reader, format Format) ([]rules.Definition, error) {
	rows, err := readRows(r, format, ruleColumns, "rules")
	if err != nil {
		return nil, err
	}

	defs := make([]rules.Definition, 0, len(rows))
	seen := map[string]int{}
	for i, item := range rows {
		line := i + 1
		for _, column := range requiredRuleColumns {
			if _, ok := item[column]; !ok {
				return nil, fmt.Errorf("%w: row %d: missing required column %q", ErrBadInput, line, column)
			}
		}

		id := strings.TrimSpace(item["id"])
		if id == "" {
			return nil, fmt.Errorf("%w: row %d: empty rule id", ErrBadInput, line)
		}
		if first, ok := seen[id]; ok {
			return nil, fmt.Errorf("%w: row %d: duplicate rule id %q (first on row %d)", ErrBadInput, line, id, first)
		}
		seen[id] = line

		phase, err := parseInt(item["phase"], "phase", line)
		if err != nil {
			return nil, err
		}
		priority, err := parseInt(item["priority"], "priority", line)
		if err != nil {
			return nil, err
		}

		defs = append(defs, rules.Definition{
			ID:         id,
			Name:       strings.TrimSpace(item["name"]),
			Pattern:    item["pattern"],
			Flags:      strings.TrimSpace(item["flags"]),
			Operator:   rules.Operator(strings.TrimSpace(item["operator"])),
			Transforms: splitList(item["transforms"]),
			Phase:      phase,
			Priority:   priority,
			Action:     strings.TrimSpace(item["action"]),
			Severity:   strings.TrimSpace(item["severity"]),
			Category:   strings.TrimSpace(item["category"]),
		})
	}
	return defs, nil
}
