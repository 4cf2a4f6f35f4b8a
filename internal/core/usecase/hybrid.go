package usecase

import (
	"context"
	"log/slog"

	"github.com/kirillkom/knowledge-base/internal/core/domain"
	"github.com/kirillkom/knowledge-base/internal/core/ports"
)

// RetrievalConfig carries the tuning constants of the hybrid retriever as
// explicit values rather than an ambient settings object.
type RetrievalConfig struct {
	RRFK              int
	DefaultMatchCount int
	MaxMatchCount     int
	OverfetchMultiple int
}

func (c RetrievalConfig) normalize() RetrievalConfig {
	out := c
	if out.RRFK <= 0 {
		out.RRFK = DefaultRRFK
	}
	if out.DefaultMatchCount <= 0 {
		out.DefaultMatchCount = 5
	}
	if out.MaxMatchCount <= 0 {
		out.MaxMatchCount = 50
	}
	if out.OverfetchMultiple <= 0 {
		out.OverfetchMultiple = 2
	}
	return out
}

type branchResult struct {
	candidates []domain.ScoredCandidate
	err        error
}

// HybridRetriever runs semantic and lexical search concurrently and fuses
// the two rankings. A failing branch degrades to an empty list; only when
// both branches fail does the retriever return an empty result, leaving the
// web-search fallback decision to the caller.
type HybridRetriever struct {
	searcher ports.SimilaritySearcher
	cfg      RetrievalConfig
	logger   *slog.Logger
}

func NewHybridRetriever(searcher ports.SimilaritySearcher, cfg RetrievalConfig, logger *slog.Logger) *HybridRetriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &HybridRetriever{
		searcher: searcher,
		cfg:      cfg.normalize(),
		logger:   logger,
	}
}

// ClampMatchCount applies the configured default and maximum.
func (r *HybridRetriever) ClampMatchCount(matchCount int) int {
	if matchCount <= 0 {
		matchCount = r.cfg.DefaultMatchCount
	}
	if matchCount > r.cfg.MaxMatchCount {
		matchCount = r.cfg.MaxMatchCount
	}
	return matchCount
}

// Search executes the hybrid retrieval path. Both modality queries are issued
// concurrently against an over-fetched candidate count; both are I/O-bound
// calls of comparable cost, so running them sequentially would double tail
// latency. The returned diagnostics expose per-branch errors so callers can
// distinguish degraded from exhausted retrieval.
func (r *HybridRetriever) Search(
	ctx context.Context,
	query string,
	matchCount int,
	filter domain.SearchFilter,
) ([]domain.ScoredCandidate, domain.RetrievalDiagnostics) {
	matchCount = r.ClampMatchCount(matchCount)
	overfetch := matchCount * r.cfg.OverfetchMultiple

	semanticCh := make(chan branchResult, 1)
	lexicalCh := make(chan branchResult, 1)

	go func() {
		candidates, err := r.searcher.SearchSemantic(ctx, query, overfetch, filter)
		semanticCh <- branchResult{candidates: candidates, err: err}
	}()
	go func() {
		candidates, err := r.searcher.SearchLexical(ctx, query, overfetch, filter)
		lexicalCh <- branchResult{candidates: candidates, err: err}
	}()

	semantic := <-semanticCh
	lexical := <-lexicalCh

	diag := domain.RetrievalDiagnostics{
		SemanticErr:  semantic.err,
		LexicalErr:   lexical.err,
		SemanticHits: len(semantic.candidates),
		LexicalHits:  len(lexical.candidates),
	}

	if semantic.err != nil {
		r.logger.Warn("semantic_branch_degraded", "error", semantic.err)
		semantic.candidates = nil
		diag.SemanticHits = 0
	}
	if lexical.err != nil {
		r.logger.Warn("lexical_branch_degraded", "error", lexical.err)
		lexical.candidates = nil
		diag.LexicalHits = 0
	}

	if diag.Exhausted() {
		return nil, diag
	}

	fused := FuseRankedLists([][]domain.ScoredCandidate{semantic.candidates, lexical.candidates}, r.cfg.RRFK)
	return trimCandidates(fused, matchCount), diag
}

// SearchSemanticOnly serves the explicit semantic-only retrieval mode.
func (r *HybridRetriever) SearchSemanticOnly(
	ctx context.Context,
	query string,
	matchCount int,
	filter domain.SearchFilter,
) ([]domain.ScoredCandidate, error) {
	matchCount = r.ClampMatchCount(matchCount)
	return r.searcher.SearchSemantic(ctx, query, matchCount, filter)
}

// SearchLexicalOnly serves the explicit text-only retrieval mode.
func (r *HybridRetriever) SearchLexicalOnly(
	ctx context.Context,
	query string,
	matchCount int,
	filter domain.SearchFilter,
) ([]domain.ScoredCandidate, error) {
	matchCount = r.ClampMatchCount(matchCount)
	return r.searcher.SearchLexical(ctx, query, matchCount, filter)
}
