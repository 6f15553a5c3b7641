package relations

import (
	"fmt"
	"strings"
)

type Kind string

const (
	Shadowing   Kind = "SHD"
	Redundancy  Kind = "RXD"
	Correlation Kind = "COR"
	Subsumption Kind = "SUB"
)

// Kinds lists every relationship kind in report order.
var Kinds = []Kind{Shadowing, Redundancy, Correlation, Subsumption}

// ParseKind accepts the kind codes case-insensitively, plus the legacy
// aliases GEN (subsumption) and RYD (redundancy).
func ParseKind(value string) (Kind, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "SHD", "SHADOWING":
		return Shadowing, nil
	case "RXD", "RYD", "REDUNDANCY":
		return Redundancy, nil
	case "COR", "CORRELATION":
		return Correlation, nil
	case "SUB", "GEN", "SUBSUMPTION":
		return Subsumption, nil
	default:
		return "", fmt.Errorf("unknown relationship kind %q", value)
	}
}

// ParseKinds parses and de-duplicates kinds, returning them in report order.
// An empty list selects every kind.
func ParseKinds(values []string) ([]Kind, error) {
	selected := map[Kind]bool{}
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			kind, err := ParseKind(part)
			if err != nil {
				return nil, err
			}
			selected[kind] = true
		}
	}
	if len(selected) == 0 {
		return append([]Kind(nil), Kinds...), nil
	}

	out := make([]Kind, 0, len(selected))
	for _, kind := range Kinds {
		if selected[kind] {
			out = append(out, kind)
		}
	}
	return out, nil
}

func (k Kind) Label() string {
	switch k {
	case Shadowing:
		return "Shadowing"
	case Redundancy:
		return "Redundancy"
	case Correlation:
		return "Correlation"
	case Subsumption:
		return "Subsumption"
	default:
		return string(k)
	}
}
