package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rulesift/rulesift/internal/profile"
	"github.com/rulesift/rulesift/internal/relations"
)

type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "md"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatCSV      Format = "csv"
)

func ParseFormat(value string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "text", "txt":
		return FormatText, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "csv":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unknown report format %q", value)
	}
}

func Render(result AnalysisResult, format Format) ([]byte, error) {
	switch format {
	case FormatText:
		return []byte(RenderText(result)), nil
	case FormatMarkdown:
		return []byte(RenderMarkdown(result)), nil
	case FormatJSON:
		return RenderJSON(result)
	case FormatYAML:
		return RenderYAML(result)
	case FormatCSV:
		return RenderCSV(result)
	default:
		return nil, fmt.Errorf("unknown report format %q", format)
	}
}

func RenderText(result AnalysisResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Rules: %d (%d analyzed)\n", result.TotalRules, result.AnalyzedRules)
	fmt.Fprintf(&b, "Records: %d\n", result.TotalRecords)
	fmt.Fprintf(&b, "Relationships: %d\n", result.TotalRelationships)
	for _, kind := range relations.Kinds {
		fmt.Fprintf(&b, "  %s %s: %d\n", kind, kind.Label(), result.Counts[kind])
	}

	for _, kind := range relations.Kinds {
		rels := result.Relationships[kind]
		if len(rels) == 0 {
			continue
		}
		fmt.Fprintf(&b, "%s:\n", kind.Label())
		for _, rel := range rels {
			fmt.Fprintf(&b, "- %s -> %s confidence=%.2f evidence=%d\n", rel.RuleA, rel.RuleB, rel.Confidence, rel.EvidenceCount)
			fmt.Fprintf(&b, "  %s\n", rel.Description)
			if len(rel.SharedTransactions) > 0 {
				fmt.Fprintf(&b, "  shared: %s\n", strings.Join(rel.SharedTransactions, ", "))
			}
		}
	}

	b.WriteString("Recommendations:\n")
	for _, rec := range result.Recommendations {
		fmt.Fprintf(&b, "- %s: %s (%s)\n", rec.Type, rec.Description, rec.Impact)
		if len(rec.Rules) > 0 {
			fmt.Fprintf(&b, "  rules: %s\n", strings.Join(rec.Rules, ", "))
		}
	}

	writeCounts(&b, "Top matching rules", result.TopRules)
	if p := result.Profile; p != nil && len(p.Rules) > 0 {
		fmt.Fprintf(&b, "Rule profile (mean hits %.1f, estimated improvement %.1f%%):\n", p.MeanHits, p.EstimatedImprovement)
		for _, r := range p.Rules {
			fmt.Fprintf(&b, "- %s hits=%d score=%.2f position=%d->%d%s\n", r.RuleID, r.Hits, r.Score, r.Position, r.NewPosition, profileFlags(r))
		}
	}
	writeSkipped(&b, result.SkippedRules)
	for _, warning := range result.Warnings {
		fmt.Fprintf(&b, "Warning: %s\n", warning)
	}

	return b.String()
}

func RenderMarkdown(result AnalysisResult) string {
	var b strings.Builder
	b.WriteString("# Rule Relationship Report\n\n")
	b.WriteString("## Totals\n\n")
	fmt.Fprintf(&b, "- Rules: %d (%d analyzed)\n", result.TotalRules, result.AnalyzedRules)
	fmt.Fprintf(&b, "- Records: %d\n", result.TotalRecords)
	fmt.Fprintf(&b, "- Relationships: %d\n", result.TotalRelationships)
	for _, kind := range relations.Kinds {
		fmt.Fprintf(&b, "- %s (%s): %d\n", kind.Label(), kind, result.Counts[kind])
	}
	b.WriteString("\n")

	for _, kind := range relations.Kinds {
		rels := result.Relationships[kind]
		if len(rels) == 0 {
			continue
		}
		fmt.Fprintf(&b, "## %s\n\n", kind.Label())
		b.WriteString("| Rule A | Rule B | Confidence | Evidence | Description |\n")
		b.WriteString("|---|---|---|---|---|\n")
		for _, rel := range rels {
			fmt.Fprintf(&b, "| %s | %s | %.2f | %d | %s |\n",
				escapeCell(rel.RuleA), escapeCell(rel.RuleB), rel.Confidence, rel.EvidenceCount, escapeCell(rel.Description))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Recommendations\n\n")
	for _, rec := range result.Recommendations {
		fmt.Fprintf(&b, "- **%s**: %s. _%s_\n", rec.Type, rec.Description, rec.Impact)
		if len(rec.Rules) > 0 {
			fmt.Fprintf(&b, "  - rules: %s\n", strings.Join(rec.Rules, ", "))
		}
	}
	b.WriteString("\n")

	if len(result.Suggestions) > 0 {
		b.WriteString("## Suggestions\n\n")
		for _, s := range result.Suggestions {
			fmt.Fprintf(&b, "- %s %s/%s: %s. %s\n", s.Action, s.RuleA, s.RuleB, strings.TrimSuffix(s.Explanation, "."), s.SecurityImpact)
		}
		b.WriteString("\n")
	}

	writeCountsMarkdown(&b, "Top matching rules", result.TopRules)

	if p := result.Profile; p != nil && len(p.Rules) > 0 {
		b.WriteString("## Rule profile\n\n")
		fmt.Fprintf(&b, "Mean hits %.1f, estimated improvement %.1f%%.\n\n", p.MeanHits, p.EstimatedImprovement)
		b.WriteString("| Rule | Hits | Effectiveness | Score | Position | Proposed | Flags |\n")
		b.WriteString("|---|---|---|---|---|---|---|\n")
		for _, r := range p.Rules {
			fmt.Fprintf(&b, "| %s | %d | %.2f | %.2f | %d | %d | %s |\n",
				escapeCell(r.RuleID), r.Hits, r.Effectiveness, r.Score, r.Position, r.NewPosition, strings.TrimSpace(profileFlags(r)))
		}
		b.WriteString("\n")
	}

	if len(result.SkippedRules) > 0 {
		b.WriteString("## Skipped rules\n\n")
		for _, skipped := range result.SkippedRules {
			fmt.Fprintf(&b, "- %s: %s\n", skipped.ID, skipped.Reason)
		}
		b.WriteString("\n")
	}

	return b.String()
}

func profileFlags(r profile.RuleProfile) string {
	var flags []string
	if r.RarelyUsed {
		flags = append(flags, "rarely-used")
	}
	if r.HighVolume {
		flags = append(flags, "high-volume")
	}
	if r.Noisy {
		flags = append(flags, "noisy")
	}
	if len(flags) == 0 {
		return ""
	}
	return " " + strings.Join(flags, " ")
}

func RenderJSON(result AnalysisResult) ([]byte, error) {
	return json.MarshalIndent(result, "", "  ")
}

func RenderYAML(result AnalysisResult) ([]byte, error) {
	return yaml.Marshal(result)
}

var csvHeader = []string{"kind", "rule_a", "rule_b", "subsuming", "subsumed", "confidence", "evidence_count", "conflicting_fields", "description"}

// RenderCSV writes one row per relationship.
func RenderCSV(result AnalysisResult) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, kind := range relations.Kinds {
		for _, rel := range result.Relationships[kind] {
			fields := make([]string, 0, len(rel.ConflictingFields))
			for _, field := range rel.ConflictingFields {
				fields = append(fields, field.Field+"="+field.Value)
			}
			record := []string{
				string(rel.Kind),
				rel.RuleA,
				rel.RuleB,
				rel.Subsuming,
				rel.Subsumed,
				strconv.FormatFloat(rel.Confidence, 'f', 4, 64),
				strconv.Itoa(rel.EvidenceCount),
				strings.Join(fields, ";"),
				rel.Description,
			}
			if err := writer.Write(record); err != nil {
				return nil, err
			}
		}
	}
	writer.Flush()
	return buf.Bytes(), writer.Error()
}

// ReadResult loads a result previously rendered as JSON or YAML.
func ReadResult(path string) (AnalysisResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return AnalysisResult{}, err
	}
	return DecodeResult(data)
}

func DecodeResult(data []byte) (AnalysisResult, error) {
	var result AnalysisResult
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &result); err != nil {
			return AnalysisResult{}, fmt.Errorf("decode result: %w", err)
		}
		return result, nil
	}
	if err := yaml.Unmarshal(data, &result); err != nil {
		return AnalysisResult{}, fmt.Errorf("decode result: %w", err)
	}
	return result, nil
}

func escapeCell(value string) string {
	return strings.ReplaceAll(value, "|", `\|`)
}

func writeCounts(b *strings.Builder, title string, items []CountItem) {
	if len(items) == 0 {
		fmt.Fprintf(b, "%s: none\n", title)
		return
	}
	fmt.Fprintf(b, "%s:\n", title)
	for _, item := range items {
		fmt.Fprintf(b, "- %s: %d\n", item.Key, item.Count)
	}
}

func writeSkipped(b *strings.Builder, skipped []SkippedRule) {
	if len(skipped) == 0 {
		return
	}
	b.WriteString("Skipped rules:\n")
	for _, item := range skipped {
		fmt.Fprintf(b, "- %s: %s\n", item.ID, item.Reason)
	}
}

func writeCountsMarkdown(b *strings.Builder, title string, items []CountItem) {
	b.WriteString("## ")
	b.WriteString(title)
	b.WriteString("\n\n")
	if len(items) == 0 {
		b.WriteString("- none\n\n")
		return
	}
	for _, item := range items {
		fmt.Fprintf(b, "- %s: %d\n", item.Key, item.Count)
	}
	b.WriteString("\n")
}

func WriteOutput(path string, content []byte) error {
	if path == "" {
		_, err := io.Copy(os.Stdout, bytes.NewReader(content))
		return err
	}
	return os.WriteFile(path, content, 0o600)
}
