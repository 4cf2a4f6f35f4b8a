package ports

import (
	"context"

	"github.com/kirillkom/knowledge-base/internal/core/domain"
)

// SimilaritySearcher issues a single-modality query against the store and
// returns candidates ordered by descending relevance, at most limit entries.
// Implementations must surface domain.ErrIndexMissing distinguishably from
// generic failures; callers display different remediation for each.
type SimilaritySearcher interface {
	SearchSemantic(ctx context.Context, query string, limit int, filter domain.SearchFilter) ([]domain.ScoredCandidate, error)
	SearchLexical(ctx context.Context, query string, limit int, filter domain.SearchFilter) ([]domain.ScoredCandidate, error)
}

// Embedder builds vectors for evidence texts and single query/answer strings.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// AnswerGenerator creates the final user-facing answer from the question and
// the numbered evidence set (1-based, in presentation order) and reports token
// usage from the provider.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, question string, evidence []domain.ScoredCandidate) (string, domain.TokenUsage, error)
}

// TraceStore persists append-only trace and feedback records.
type TraceStore interface {
	SaveTrace(ctx context.Context, trace *domain.TraceRecord) error
	GetTraceByID(ctx context.Context, traceID string) (*domain.TraceRecord, error)
	SaveFeedback(ctx context.Context, feedback *domain.FeedbackRecord) error
}

// AuditQueue publishes/consumes trace-recorded events for downstream audit.
type AuditQueue interface {
	PublishTraceRecorded(ctx context.Context, traceID string) error
	SubscribeTraceRecorded(ctx context.Context, handler func(context.Context, string) error) error
}
