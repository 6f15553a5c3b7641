package tables

import (
	"fmt"
	"io"
	"strings"

	"github.com/rulesift/rulesift/internal/traffic"
)

var trafficColumns = map[string]string{
	"transaction_id": "transaction_id",
	"id":             "transaction_id",
	"tx_id":          "transaction_id",
	"unique_id":      "transaction_id",
	"request_uri":    "request_uri",
	"uri":            "request_uri",
	"url":            "request_uri",
	"request":        "request_uri",
	"user_agent":     "user_agent",
	"useragent":      "user_agent",
	"ua":             "user_agent",
	"matched_data":   "matched_data",
	"rule_id":        "rule_id",
	"timestamp":      "timestamp",
	"time":           "timestamp",
	"method":         "method",
	"action":         "action",
	"severity":       "severity",
	"attack_type":    "attack_type",
	"category":       "attack_type",
}

// LoadTraffic reads a traffic table, picking the format from the extension.
// Empty transaction ids are synthesized from the row index.
func LoadTraffic(path string) ([]traffic.Record, error) {
	file, format, err := openTable(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	records, err := ReadTraffic(file, format)
	if err != nil {
		return nil, fmt.Errorf("load traffic %s: %w", path, err)
	}
	return records, nil
}

func ReadTraffic(r io.Reader, format Format) ([]traffic.Record, error) {
	rows, err := readRows(r, format, trafficColumns, "traffic", "records")
	if err != nil {
		return nil, err
	}

	if format == FormatCSV && len(rows) > 0 {
		if _, ok := rows[0]["request_uri"]; !ok {
			return nil, fmt.Errorf("%w: missing required column %q", ErrBadInput, "request_uri")
		}
	}

	records := make([]traffic.Record, 0, len(rows))
	for _, item := range rows {
		records = append(records, traffic.Record{
			TransactionID: strings.TrimSpace(item["transaction_id"]),
			RequestURI:    item["request_uri"],
			UserAgent:     item["user_agent"],
			MatchedData:   item["matched_data"],
			RuleID:        strings.TrimSpace(item["rule_id"]),
			Timestamp:     strings.TrimSpace(item["timestamp"]),
			Method:        strings.TrimSpace(item["method"]),
			Action:        strings.TrimSpace(item["action"]),
			Severity:      strings.TrimSpace(item["severity"]),
			AttackType:    strings.TrimSpace(item["attack_type"]),
		})
	}
	traffic.AssignIDs(records)
	return records, nil
}
