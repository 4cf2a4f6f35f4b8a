package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/knowledge-base/internal/core/domain"
)

func newRepoWithMock(t *testing.T) (*TraceRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &TraceRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestGetTraceByIDReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT trace_id, parent_trace_id, query").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetTraceByID(context.Background(), "missing")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrTraceNotFound) {
		t.Fatalf("expected ErrTraceNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetTraceByIDDecodesJSONColumns(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	created := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"trace_id", "parent_trace_id", "query", "answer", "citations", "retrieval", "grounding",
		"filters", "mode", "latency_ms", "prompt_tokens", "completion_tokens", "created_at",
	}).AddRow(
		"trace-1", nil, "how?", "Because [1].",
		[]byte(`[{"index":1,"chunk_id":"c1","document_id":"d1"}]`),
		[]byte(`[{"chunk_id":"c1","document_id":"d1","score":0.9}]`),
		[]byte(`{"grounded":true,"max_similarity":0.88,"missing_citations":[]}`),
		[]byte(`{"org_id":"acme"}`),
		"hybrid", int64(250), 120, 34, created,
	)

	mock.ExpectQuery("SELECT trace_id, parent_trace_id, query").
		WithArgs("trace-1").
		WillReturnRows(rows)

	trace, err := repo.GetTraceByID(context.Background(), "trace-1")
	if err != nil {
		t.Fatalf("GetTraceByID() error = %v", err)
	}
	if trace.TraceID != "trace-1" || trace.ParentTraceID != "" {
		t.Fatalf("unexpected identifiers: %+v", trace)
	}
	if len(trace.Citations) != 1 || trace.Citations[0].ChunkID != "c1" {
		t.Fatalf("unexpected citations: %+v", trace.Citations)
	}
	if !trace.Grounding.Grounded || trace.Grounding.MaxSimilarity != 0.88 {
		t.Fatalf("unexpected grounding: %+v", trace.Grounding)
	}
	if trace.Filters.OrgID != "acme" {
		t.Fatalf("unexpected filters: %+v", trace.Filters)
	}
	if trace.Mode != domain.ModeHybrid || trace.Usage.PromptTokens != 120 {
		t.Fatalf("unexpected trace fields: %+v", trace)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveTraceInsertsJSONPayloads(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("INSERT INTO traces").
		WithArgs(
			"trace-1", sqlmock.AnyArg(), "how?", "Because [1].",
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			"hybrid", int64(250), 120, 34, sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SaveTrace(context.Background(), &domain.TraceRecord{
		TraceID:   "trace-1",
		Query:     "how?",
		Answer:    "Because [1].",
		Citations: []domain.Citation{{Index: 1, ChunkID: "c1"}},
		Grounding: domain.GroundingVerdict{Grounded: true, MaxSimilarity: 0.88},
		Mode:      domain.ModeHybrid,
		LatencyMS: 250,
		Usage:     domain.TokenUsage{PromptTokens: 120, CompletionTokens: 34},
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("SaveTrace() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveFeedbackInsertsRow(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("INSERT INTO trace_feedback").
		WithArgs("fb-1", "trace-1", domain.FeedbackNegative, "actually it is wrong", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SaveFeedback(context.Background(), &domain.FeedbackRecord{
		ID:        "fb-1",
		TraceID:   "trace-1",
		Signal:    domain.FeedbackNegative,
		Comment:   "actually it is wrong",
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("SaveFeedback() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
