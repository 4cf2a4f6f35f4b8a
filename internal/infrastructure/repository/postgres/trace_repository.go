package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/knowledge-base/internal/core/domain"
)

type TraceRepository struct {
	db *sql.DB
}

func NewTraceRepository(db *sql.DB) *TraceRepository {
	return &TraceRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *TraceRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/auditor startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083101)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS traces (
	trace_id TEXT PRIMARY KEY,
	parent_trace_id TEXT,
	query TEXT NOT NULL,
	answer TEXT NOT NULL,
	citations JSONB NOT NULL DEFAULT '[]'::jsonb,
	retrieval JSONB NOT NULL DEFAULT '[]'::jsonb,
	grounding JSONB NOT NULL DEFAULT '{}'::jsonb,
	filters JSONB NOT NULL DEFAULT '{}'::jsonb,
	mode TEXT NOT NULL,
	latency_ms BIGINT NOT NULL DEFAULT 0,
	prompt_tokens INTEGER NOT NULL DEFAULT 0,
	completion_tokens INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_traces_created_at ON traces(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_traces_parent ON traces(parent_trace_id) WHERE parent_trace_id IS NOT NULL;

CREATE TABLE IF NOT EXISTS trace_feedback (
	id TEXT PRIMARY KEY,
	trace_id TEXT NOT NULL REFERENCES traces(trace_id),
	signal INTEGER NOT NULL,
	comment TEXT,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trace_feedback_trace ON trace_feedback(trace_id);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *TraceRepository) SaveTrace(ctx context.Context, trace *domain.TraceRecord) error {
	citationsJSON, err := json.Marshal(trace.Citations)
	if err != nil {
		return fmt.Errorf("marshal citations: %w", err)
	}
	retrievalJSON, err := json.Marshal(trace.Retrieval)
	if err != nil {
		return fmt.Errorf("marshal retrieval: %w", err)
	}
	groundingJSON, err := json.Marshal(trace.Grounding)
	if err != nil {
		return fmt.Errorf("marshal grounding: %w", err)
	}
	filtersJSON, err := json.Marshal(trace.Filters)
	if err != nil {
		return fmt.Errorf("marshal filters: %w", err)
	}

	var parent sql.NullString
	if trace.ParentTraceID != "" {
		parent = sql.NullString{String: trace.ParentTraceID, Valid: true}
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO traces (
	trace_id, parent_trace_id, query, answer, citations, retrieval, grounding, filters, mode, latency_ms, prompt_tokens, completion_tokens, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
`,
		trace.TraceID, parent, trace.Query, trace.Answer, citationsJSON, retrievalJSON, groundingJSON,
		filtersJSON, string(trace.Mode), trace.LatencyMS, trace.Usage.PromptTokens, trace.Usage.CompletionTokens, trace.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert trace: %w", err)
	}
	return nil
}

func (r *TraceRepository) GetTraceByID(ctx context.Context, traceID string) (*domain.TraceRecord, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT trace_id, parent_trace_id, query, answer, citations, retrieval, grounding, filters, mode, latency_ms, prompt_tokens, completion_tokens, created_at
FROM traces
WHERE trace_id = $1
`, traceID)

	var trace domain.TraceRecord
	var parent sql.NullString
	var citationsRaw, retrievalRaw, groundingRaw, filtersRaw []byte
	var mode string

	err := row.Scan(
		&trace.TraceID, &parent, &trace.Query, &trace.Answer, &citationsRaw, &retrievalRaw, &groundingRaw,
		&filtersRaw, &mode, &trace.LatencyMS, &trace.Usage.PromptTokens, &trace.Usage.CompletionTokens, &trace.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrTraceNotFound, "get trace", err)
		}
		return nil, fmt.Errorf("scan trace: %w", err)
	}

	if parent.Valid {
		trace.ParentTraceID = parent.String
	}
	if err := json.Unmarshal(citationsRaw, &trace.Citations); err != nil {
		return nil, fmt.Errorf("unmarshal citations: %w", err)
	}
	if err := json.Unmarshal(retrievalRaw, &trace.Retrieval); err != nil {
		return nil, fmt.Errorf("unmarshal retrieval: %w", err)
	}
	if err := json.Unmarshal(groundingRaw, &trace.Grounding); err != nil {
		return nil, fmt.Errorf("unmarshal grounding: %w", err)
	}
	if err := json.Unmarshal(filtersRaw, &trace.Filters); err != nil {
		return nil, fmt.Errorf("unmarshal filters: %w", err)
	}
	trace.Mode = domain.SearchMode(mode)
	return &trace, nil
}

func (r *TraceRepository) SaveFeedback(ctx context.Context, feedback *domain.FeedbackRecord) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO trace_feedback (id, trace_id, signal, comment, created_at)
VALUES ($1,$2,$3,$4,$5)
`, feedback.ID, feedback.TraceID, feedback.Signal, feedback.Comment, feedback.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}
	return nil
}
