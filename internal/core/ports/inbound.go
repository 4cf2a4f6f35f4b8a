package ports

import (
	"context"

	"github.com/kirillkom/knowledge-base/internal/core/domain"
)

// QueryAnswerer is the inbound contract for grounded question answering.
type QueryAnswerer interface {
	AnswerQuery(ctx context.Context, req AnswerRequest) (*domain.AnswerResult, error)
}

// AnswerRequest carries one query through the pipeline.
type AnswerRequest struct {
	Query         string
	Mode          domain.SearchMode
	MatchCount    int
	Filter        domain.SearchFilter
	ParentTraceID string
}

// TraceReader is the inbound read model for persisted traces.
type TraceReader interface {
	GetTraceByID(ctx context.Context, traceID string) (*domain.TraceRecord, error)
}
