// Package seed generates synthetic rule and traffic tables for demos and
// load testing.
package seed

import (
	"fmt"
	"net/url"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/rulesift/rulesift/internal/rules"
	"github.com/rulesift/rulesift/internal/traffic"
)

// Rules is a small catalog with built-in overlaps: a broad blocking SQLi
// rule ahead of a narrower one, two equivalent XSS rules, a general/special
// traversal pair and a scanner rule that tends to co-fire with SQLi.
func Rules() []rules.Definition {
	return []rules.Definition{
		{ID: "1001", Name: "sqli-broad", Pattern: `union|select`, Flags: "i", Phase: 1, Priority: 10, Action: "block", Severity: "critical", Category: "sqli"},
		{ID: "1002", Name: "sqli-union-select", Pattern: `union\s+select`, Flags: "i", Phase: 2, Priority: 100, Action: "block", Severity: "critical", Category: "sqli"},
		{ID: "2001", Name: "xss-script", Pattern: `<script`, Flags: "i", Phase: 2, Priority: 200, Action: "block", Severity: "high", Category: "xss"},
		{ID: "2002", Name: "xss-script-tag", Pattern: `<\s*script`, Flags: "i", Phase: 2, Priority: 210, Action: "log", Severity: "high", Category: "xss"},
		{ID: "3001", Name: "traversal", Pattern: `\.\./`, Phase: 2, Priority: 300, Action: "log", Severity: "medium", Category: "lfi"},
		{ID: "3002", Name: "traversal-passwd", Pattern: `\.\./.*etc/passwd`, Phase: 2, Priority: 310, Action: "log", Severity: "high", Category: "lfi"},
		{ID: "4001", Name: "scanner-ua", Pattern: `sqlmap|nikto`, Flags: "i", Phase: 1, Priority: 400, Action: "log", Severity: "low", Category: "scanner"},
		{ID: "5001", Name: "admin-probe", Operator: rules.OperatorPhrase, Pattern: "wp-admin phpmyadmin", Phase: 2, Priority: 500, Action: "log", Severity: "low", Category: "recon"},
	}
}

type attack struct {
	kind    string
	ruleID  string
	payload func(f *gofakeit.Faker) string
}

var attacks = []attack{
	{"sqli", "1001", func(f *gofakeit.Faker) string {
		return fmt.Sprintf("1 UNION SELECT %s,%s FROM users", f.Word(), f.Word())
	}},
	{"sqli", "1001", func(f *gofakeit.Faker) string {
		return fmt.Sprintf("%s' or 1=1 select", f.Username())
	}},
	{"xss", "2001", func(f *gofakeit.Faker) string {
		return fmt.Sprintf("<script>alert('%s')</script>", f.Word())
	}},
	{"lfi", "3002", func(f *gofakeit.Faker) string {
		return "../../../../etc/passwd"
	}},
	{"lfi", "3001", func(f *gofakeit.Faker) string {
		return fmt.Sprintf("../%s/%s.conf", f.Word(), f.Word())
	}},
	{"recon", "5001", func(f *gofakeit.Faker) string {
		return f.RandomString([]string{"wp-admin", "phpmyadmin"})
	}},
}

// Generator produces traffic deterministically for a given seed.
type Generator struct {
	faker *gofakeit.Faker
	start time.Time
	// AttackRatio is the share of records carrying an attack payload.
	AttackRatio float64
}

func New(seed int64) *Generator {
	return &Generator{
		faker:       gofakeit.New(seed),
		start:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		AttackRatio: 0.3,
	}
}

// Traffic returns n synthetic WAF log records.
func (g *Generator) Traffic(n int) []traffic.Record {
	out := make([]traffic.Record, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, g.record(i))
	}
	return out
}

func (g *Generator) record(i int) traffic.Record {
	f := g.faker
	rec := traffic.Record{
		TransactionID: f.UUID(),
		Timestamp:     g.start.Add(time.Duration(i)*time.Second + time.Duration(f.IntRange(0, 999))*time.Millisecond).Format(time.RFC3339Nano),
		Method:        f.HTTPMethod(),
		UserAgent:     f.UserAgent(),
		RuleID:        traffic.NoRule,
		Action:        "pass",
	}
	path := "/" + f.Word() + "/" + f.Word()

	if f.Float64Range(0, 1) >= g.AttackRatio {
		rec.RequestURI = path + "?q=" + url.QueryEscape(f.Word())
		return rec
	}

	a := attacks[f.IntRange(0, len(attacks)-1)]
	payload := a.payload(f)
	rec.RequestURI = path + "?q=" + payload
	rec.MatchedData = payload
	rec.RuleID = a.ruleID
	rec.AttackType = a.kind
	rec.Action = "block"
	rec.Severity = "high"
	if a.kind == "sqli" && f.Bool() {
		rec.UserAgent = f.RandomString([]string{"sqlmap/1.7.2#stable", "Nikto/2.5.0"})
	}
	return rec
}
