package tables

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/rulesift/rulesift/internal/rules"
	"github.com/rulesift/rulesift/internal/traffic"
)

var (
	ruleHeader    = []string{"id", "name", "pattern", "flags", "operator", "transforms", "phase", "priority", "action", "severity", "category"}
	trafficHeader = []string{"transaction_id", "timestamp", "method", "request_uri", "user_agent", "matched_data", "rule_id", "action", "severity", "attack_type"}
)

func WriteRulesCSV(w io.Writer, defs []rules.Definition) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(ruleHeader); err != nil {
		return err
	}
	for _, def := range defs {
		record := []string{
			def.ID,
			def.Name,
			def.Pattern,
			def.Flags,
			string(def.Operator),
			strings.Join(def.Transforms, "|"),
			optionalInt(def.Phase),
			optionalInt(def.Priority),
			def.Action,
			def.Severity,
			def.Category,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func WriteTrafficCSV(w io.Writer, records []traffic.Record) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(trafficHeader); err != nil {
		return err
	}
	for _, rec := range records {
		record := []string{
			rec.TransactionID,
			rec.Timestamp,
			rec.Method,
			rec.RequestURI,
			rec.UserAgent,
			rec.MatchedData,
			rec.RuleID,
			rec.Action,
			rec.Severity,
			rec.AttackType,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func optionalInt(v int) string {
	if v == 0 {
		return ""
	}
	return strconv.Itoa(v)
}
