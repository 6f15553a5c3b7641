package traffic

import (
	"strconv"
	"strings"
)

// NoRule is the logged rule id value meaning no rule fired.
const NoRule = "-"

// Record is one row of a traffic or WAF log table. Only RequestURI,
// UserAgent and MatchedData take part in matching.
type Record struct {
	TransactionID string `json:"transaction_id" yaml:"transaction_id"`
	RequestURI    string `json:"request_uri" yaml:"request_uri"`
	UserAgent     string `json:"user_agent,omitempty" yaml:"user_agent,omitempty"`
	MatchedData   string `json:"matched_data,omitempty" yaml:"matched_data,omitempty"`
	RuleID        string `json:"rule_id,omitempty" yaml:"rule_id,omitempty"`
	Timestamp     string `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	Method        string `json:"method,omitempty" yaml:"method,omitempty"`
	Action        string `json:"action,omitempty" yaml:"action,omitempty"`
	Severity      string `json:"severity,omitempty" yaml:"severity,omitempty"`
	AttackType    string `json:"attack_type,omitempty" yaml:"attack_type,omitempty"`
}

// SearchText space-joins the non-empty matchable fields.
func (r Record) SearchText() string {
	parts := make([]string, 0, 3)
	for _, value := range []string{r.RequestURI, r.UserAgent, r.MatchedData} {
		if value != "" {
			parts = append(parts, value)
		}
	}
	return strings.Join(parts, " ")
}

// LoggedRule returns the rule id recorded by the source log, if any.
func (r Record) LoggedRule() (string, bool) {
	id := strings.TrimSpace(r.RuleID)
	if id == "" || id == NoRule {
		return "", false
	}
	return id, true
}

// AssignIDs fills empty transaction ids with the record's row index and
// returns the ids that occur more than once, in first-seen order.
func AssignIDs(records []Record) []string {
	seen := make(map[string]int, len(records))
	var duplicates []string
	for i := range records {
		if strings.TrimSpace(records[i].TransactionID) == "" {
			records[i].TransactionID = strconv.Itoa(i)
		}
		seen[records[i].TransactionID]++
		if seen[records[i].TransactionID] == 2 {
			duplicates = append(duplicates, records[i].TransactionID)
		}
	}
	return duplicates
}
