package audit

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog"

	"github.com/kevinsshikuku/TrendPot-sub000/internal/infra"
	"github.com/kevinsshikuku/TrendPot-sub000/internal/sqlinline"
)

// Entry is one audit record: who did what to which resource, and how it ended.
type Entry struct {
	Actor    string
	Action   string
	Resource string
	Outcome  string
	Metadata map[string]any
}

// Log is a write-only audit sink. A failed audit write is logged and
// swallowed; audit must never alter financial control flow.
type Log struct {
	sql    infra.SQLExecutor
	logger zerolog.Logger
}

func NewLog(sql infra.SQLExecutor, logger zerolog.Logger) *Log {
	return &Log{sql: sql, logger: logger.With().Str("component", "audit").Logger()}
}

// Record persists the entry using the given executor so that audit rows
// written mid-transaction commit or roll back with the rest of the unit.
func (l *Log) Record(ctx context.Context, sql infra.SQLExecutor, e Entry) {
	if sql == nil {
		sql = l.sql
	}
	meta := e.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		l.logger.Error().Err(err).Str("action", e.Action).Msg("audit metadata marshal failed")
		raw = []byte(`{}`)
	}
	if _, err := sql.Exec(ctx, sqlinline.QInsertAuditLog, e.Actor, e.Action, e.Resource, e.Outcome, raw); err != nil {
		l.logger.Error().Err(err).Str("action", e.Action).Str("resource", e.Resource).Msg("audit write failed")
	}
}

// MaskIdentifier hides the middle of an external identifier, keeping enough
// of each end to correlate against provider logs.
func MaskIdentifier(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= 6 {
		return strings.Repeat("*", len(s))
	}
	return s[:3] + strings.Repeat("*", len(s)-6) + s[len(s)-3:]
}
