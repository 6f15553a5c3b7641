package logging

import (
	"log/slog"
	"time"
)

const (
	FieldRuleID   = "rule_id"
	FieldKind     = "kind"
	FieldReason   = "reason"
	FieldCount    = "count"
	FieldDuration = "duration_ms"
	FieldError    = "error"
	FieldRunID    = "run_id"
	FieldPath     = "path"
)

func RuleID(id string) slog.Attr {
	return slog.String(FieldRuleID, id)
}

func Kind(kind string) slog.Attr {
	return slog.String(FieldKind, kind)
}

func Reason(reason string) slog.Attr {
	return slog.String(FieldReason, reason)
}

func Count(n int) slog.Attr {
	return slog.Int(FieldCount, n)
}

func Duration(d time.Duration) slog.Attr {
	return slog.Int64(FieldDuration, d.Milliseconds())
}

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(FieldError, "")
	}
	return slog.String(FieldError, err.Error())
}

func RunID(id string) slog.Attr {
	return slog.String(FieldRunID, id)
}

func Path(path string) slog.Attr {
	return slog.String(FieldPath, path)
}
