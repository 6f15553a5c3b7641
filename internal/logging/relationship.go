package logging

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rulesift/rulesift/internal/relations"
)

const maxEvidence = 64

// RelationshipEntry is written as a single JSON object per relationship.
type RelationshipEntry struct {
	Timestamp     time.Time `json:"ts"`
	RunID         string    `json:"run_id,omitempty"`
	Kind          string    `json:"kind"`
	RuleA         string    `json:"rule_a"`
	RuleB         string    `json:"rule_b"`
	Confidence    float64   `json:"confidence"`
	EvidenceCount int       `json:"evidence_count"`
	Fields        []string  `json:"fields,omitempty"`
	Description   string    `json:"description"`
}

type RelationshipLog struct {
	w   io.Writer
	now func() time.Time
}

func NewRelationshipLog(w io.Writer) *RelationshipLog {
	return &RelationshipLog{w: w, now: time.Now}
}

func OpenRelationshipLog(path string) (*RelationshipLog, func() error, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, err
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, err
	}
	return NewRelationshipLog(file), file.Close, nil
}

func (l *RelationshipLog) Write(runID string, rel relations.Relationship) error {
	entry := RelationshipEntry{
		Timestamp:     l.now().UTC(),
		RunID:         runID,
		Kind:          string(rel.Kind),
		RuleA:         truncate(rel.RuleA),
		RuleB:         truncate(rel.RuleB),
		Confidence:    rel.Confidence,
		EvidenceCount: rel.EvidenceCount,
		Description:   rel.Description,
	}
	for _, field := range rel.ConflictingFields {
		entry.Fields = append(entry.Fields, field.Field+"="+truncate(field.Value))
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	_, err = l.w.Write(append(data, '\n'))
	return err
}

func truncate(value string) string {
	if len(value) > maxEvidence {
		return value[:maxEvidence]
	}
	return value
}
