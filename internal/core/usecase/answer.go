package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/knowledge-base/internal/core/domain"
	"github.com/kirillkom/knowledge-base/internal/core/ports"
)

// PipelineConfig carries the answer pipeline settings.
type PipelineConfig struct {
	// UngroundedBanner is prefixed to answers that fail grounding
	// verification; the answer is still returned for transparency.
	UngroundedBanner string
}

// AnswerPipeline is the single public entry point: retrieval, generation,
// grounding verification and trace persistence for one query.
type AnswerPipeline struct {
	retriever *HybridRetriever
	verifier  *GroundingVerifier
	generator ports.AnswerGenerator
	traces    ports.TraceStore
	audit     ports.AuditQueue
	cfg       PipelineConfig
	logger    *slog.Logger
}

func NewAnswerPipeline(
	retriever *HybridRetriever,
	verifier *GroundingVerifier,
	generator ports.AnswerGenerator,
	traces ports.TraceStore,
	audit ports.AuditQueue,
	cfg PipelineConfig,
	logger *slog.Logger,
) *AnswerPipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnswerPipeline{
		retriever: retriever,
		verifier:  verifier,
		generator: generator,
		traces:    traces,
		audit:     audit,
		cfg:       cfg,
		logger:    logger,
	}
}

func (p *AnswerPipeline) AnswerQuery(ctx context.Context, req ports.AnswerRequest) (*domain.AnswerResult, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "answer query", fmt.Errorf("query is empty"))
	}
	mode := req.Mode
	if mode == "" {
		mode = domain.ModeHybrid
	}

	start := time.Now()
	traceID := uuid.NewString()

	evidence, diag, err := p.retrieve(ctx, mode, req)
	if err != nil {
		return nil, err
	}
	if diag.Exhausted() {
		p.logger.Warn("retrieval_exhausted",
			"trace_id", traceID,
			"semantic_error", diag.SemanticErr,
			"lexical_error", diag.LexicalErr,
		)
	}

	citations := buildCitations(evidence)

	answer, usage, err := p.generator.GenerateAnswer(ctx, req.Query, evidence)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	// Verification runs strictly after generation and before persistence.
	verdict, err := p.verifier.Verify(ctx, answer, evidence)
	if err != nil {
		// Recoverable: the trace still records the interaction, flagged
		// as unverified instead of being dropped.
		p.logger.Warn("grounding_check_failed", "trace_id", traceID, "error", err)
		verdict.Grounded = false
		verdict.CheckError = err.Error()
	}

	trace := &domain.TraceRecord{
		TraceID:       traceID,
		ParentTraceID: req.ParentTraceID,
		Query:         req.Query,
		Answer:        answer,
		Citations:     citations,
		Retrieval:     buildRetrievalEntries(evidence),
		Grounding:     verdict,
		Filters:       req.Filter,
		Mode:          mode,
		LatencyMS:     time.Since(start).Milliseconds(),
		Usage:         usage,
		CreatedAt:     time.Now().UTC(),
	}
	redactTrace(trace)

	if err := p.traces.SaveTrace(ctx, trace); err != nil {
		p.logger.Error("trace_persist_failed", "trace_id", traceID, "error", err)
	} else if p.audit != nil {
		if err := p.audit.PublishTraceRecorded(ctx, traceID); err != nil {
			p.logger.Warn("trace_event_publish_failed", "trace_id", traceID, "error", err)
		}
	}

	feedbackRecorded := false
	if isCorrectionQuery(req.Query) && req.ParentTraceID != "" {
		feedback := &domain.FeedbackRecord{
			ID:        uuid.NewString(),
			TraceID:   req.ParentTraceID,
			Signal:    domain.FeedbackNegative,
			Comment:   redactText(req.Query),
			CreatedAt: time.Now().UTC(),
		}
		if err := p.traces.SaveFeedback(ctx, feedback); err != nil {
			p.logger.Warn("feedback_persist_failed", "trace_id", req.ParentTraceID, "error", err)
		} else {
			feedbackRecorded = true
		}
	}

	displayAnswer := answer
	if !verdict.Grounded && p.cfg.UngroundedBanner != "" {
		displayAnswer = p.cfg.UngroundedBanner + "\n\n" + answer
	}

	return &domain.AnswerResult{
		Answer:           displayAnswer,
		Citations:        citations,
		Grounding:        verdict,
		TraceID:          traceID,
		Usage:            usage,
		DegradedBranches: degradedBranches(diag),
		FeedbackRecorded: feedbackRecorded,
	}, nil
}

func degradedBranches(diag domain.RetrievalDiagnostics) []string {
	var branches []string
	if diag.SemanticErr != nil {
		branches = append(branches, "semantic")
	}
	if diag.LexicalErr != nil {
		branches = append(branches, "lexical")
	}
	return branches
}

func (p *AnswerPipeline) retrieve(
	ctx context.Context,
	mode domain.SearchMode,
	req ports.AnswerRequest,
) ([]domain.ScoredCandidate, domain.RetrievalDiagnostics, error) {
	switch mode {
	case domain.ModeSemantic:
		candidates, err := p.retriever.SearchSemanticOnly(ctx, req.Query, req.MatchCount, req.Filter)
		if err != nil {
			return nil, domain.RetrievalDiagnostics{}, fmt.Errorf("semantic search: %w", err)
		}
		return candidates, domain.RetrievalDiagnostics{SemanticHits: len(candidates)}, nil
	case domain.ModeText:
		candidates, err := p.retriever.SearchLexicalOnly(ctx, req.Query, req.MatchCount, req.Filter)
		if err != nil {
			return nil, domain.RetrievalDiagnostics{}, fmt.Errorf("text search: %w", err)
		}
		return candidates, domain.RetrievalDiagnostics{LexicalHits: len(candidates)}, nil
	default:
		candidates, diag := p.retriever.Search(ctx, req.Query, req.MatchCount, req.Filter)
		return candidates, diag, nil
	}
}

// GetTraceByID exposes the trace read model through the pipeline facade.
func (p *AnswerPipeline) GetTraceByID(ctx context.Context, traceID string) (*domain.TraceRecord, error) {
	return p.traces.GetTraceByID(ctx, traceID)
}

func buildCitations(evidence []domain.ScoredCandidate) []domain.Citation {
	citations := make([]domain.Citation, 0, len(evidence))
	for i, candidate := range evidence {
		citations = append(citations, domain.Citation{
			Index:          i + 1,
			ChunkID:        candidate.ID,
			DocumentID:     candidate.ParentID,
			DocumentTitle:  candidate.DocumentTitle,
			DocumentSource: candidate.DocumentSource,
			SourceURL:      candidate.Metadata["source_url"],
		})
	}
	return citations
}

func buildRetrievalEntries(evidence []domain.ScoredCandidate) []domain.RetrievalEntry {
	entries := make([]domain.RetrievalEntry, 0, len(evidence))
	for _, candidate := range evidence {
		entries = append(entries, domain.RetrievalEntry{
			ChunkID:        candidate.ID,
			DocumentID:     candidate.ParentID,
			SourceURL:      candidate.Metadata["source_url"],
			PageNumber:     candidate.Metadata["page_number"],
			HeadingPath:    candidate.Metadata["heading_path"],
			SourceType:     candidate.Metadata["source_type"],
			SummaryContext: candidate.Metadata["summary_context"],
			Score:          candidate.Score,
		})
	}
	return entries
}

var correctionPrefixes = []string{"no,", "actually", "not "}

// isCorrectionQuery is a string-prefix heuristic for "this query corrects the
// previous answer"; kept deliberately narrow.
func isCorrectionQuery(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	for _, prefix := range correctionPrefixes {
		if strings.HasPrefix(q, prefix) {
			return true
		}
	}
	return false
}
