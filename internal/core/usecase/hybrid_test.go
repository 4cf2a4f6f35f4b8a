package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kirillkom/knowledge-base/internal/core/domain"
)

type searcherFake struct {
	semantic    []domain.ScoredCandidate
	lexical     []domain.ScoredCandidate
	semanticErr error
	lexicalErr  error
	delay       time.Duration

	semanticLimit int
	lexicalLimit  int
}

func (f *searcherFake) SearchSemantic(ctx context.Context, _ string, limit int, _ domain.SearchFilter) ([]domain.ScoredCandidate, error) {
	f.semanticLimit = limit
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.semantic, f.semanticErr
}

func (f *searcherFake) SearchLexical(ctx context.Context, _ string, limit int, _ domain.SearchFilter) ([]domain.ScoredCandidate, error) {
	f.lexicalLimit = limit
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.lexical, f.lexicalErr
}

func TestHybridSearchFusesBothBranches(t *testing.T) {
	searcher := &searcherFake{
		semantic: []domain.ScoredCandidate{candidate("a", 0.9), candidate("b", 0.8)},
		lexical:  []domain.ScoredCandidate{candidate("b", 4.0), candidate("c", 3.0)},
	}
	retriever := NewHybridRetriever(searcher, RetrievalConfig{}, nil)

	out, diag := retriever.Search(context.Background(), "q", 3, domain.SearchFilter{})
	if diag.Degraded() || diag.Exhausted() {
		t.Fatalf("expected clean retrieval, got diagnostics %+v", diag)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 fused candidates, got %d", len(out))
	}
	if out[0].ID != "b" {
		t.Fatalf("expected b first after fusion, got %s", out[0].ID)
	}
}

func TestHybridSearchOverfetchesAndTruncates(t *testing.T) {
	many := make([]domain.ScoredCandidate, 10)
	for i := range many {
		many[i] = candidate(string(rune('a'+i)), 1.0-float64(i)*0.05)
	}
	searcher := &searcherFake{semantic: many}
	retriever := NewHybridRetriever(searcher, RetrievalConfig{}, nil)

	out, _ := retriever.Search(context.Background(), "q", 4, domain.SearchFilter{})
	if searcher.semanticLimit != 8 || searcher.lexicalLimit != 8 {
		t.Fatalf("expected over-fetch count 8 on both branches, got %d/%d", searcher.semanticLimit, searcher.lexicalLimit)
	}
	if len(out) != 4 {
		t.Fatalf("expected truncation to 4, got %d", len(out))
	}
}

func TestHybridSearchClampsMatchCount(t *testing.T) {
	searcher := &searcherFake{}
	retriever := NewHybridRetriever(searcher, RetrievalConfig{DefaultMatchCount: 5, MaxMatchCount: 10}, nil)

	if got := retriever.ClampMatchCount(0); got != 5 {
		t.Fatalf("expected default match count 5, got %d", got)
	}
	if got := retriever.ClampMatchCount(1000); got != 10 {
		t.Fatalf("expected clamp to 10, got %d", got)
	}
}

func TestHybridSearchDegradesFailedBranch(t *testing.T) {
	searcher := &searcherFake{
		semantic:   []domain.ScoredCandidate{candidate("a", 0.9), candidate("b", 0.8)},
		lexicalErr: errors.New("lexical index offline"),
	}
	retriever := NewHybridRetriever(searcher, RetrievalConfig{}, nil)

	out, diag := retriever.Search(context.Background(), "q", 2, domain.SearchFilter{})
	if !diag.Degraded() {
		t.Fatalf("expected degraded diagnostics, got %+v", diag)
	}
	if diag.Exhausted() {
		t.Fatalf("one healthy branch must not count as exhausted")
	}
	if len(out) != 2 {
		t.Fatalf("expected RRF-fused semantic-only result, got %d candidates", len(out))
	}
	if out[0].ID != "a" || out[0].Score != 1.0/60.0 {
		t.Fatalf("expected single-list RRF scores, got %s score=%v", out[0].ID, out[0].Score)
	}
}

func TestHybridSearchBothBranchesFail(t *testing.T) {
	searcher := &searcherFake{
		semanticErr: errors.New("semantic down"),
		lexicalErr:  errors.New("lexical down"),
	}
	retriever := NewHybridRetriever(searcher, RetrievalConfig{}, nil)

	out, diag := retriever.Search(context.Background(), "q", 5, domain.SearchFilter{})
	if len(out) != 0 {
		t.Fatalf("expected empty result, got %d", len(out))
	}
	if !diag.Exhausted() {
		t.Fatalf("expected exhausted diagnostics, got %+v", diag)
	}
	if diag.LastError() == nil {
		t.Fatalf("expected last-error diagnostic to be recorded")
	}
}

func TestHybridSearchRunsBranchesConcurrently(t *testing.T) {
	searcher := &searcherFake{
		semantic: []domain.ScoredCandidate{candidate("a", 0.9)},
		lexical:  []domain.ScoredCandidate{candidate("b", 4.0)},
		delay:    100 * time.Millisecond,
	}
	retriever := NewHybridRetriever(searcher, RetrievalConfig{}, nil)

	start := time.Now()
	out, _ := retriever.Search(context.Background(), "q", 2, domain.SearchFilter{})
	elapsed := time.Since(start)

	if len(out) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(out))
	}
	// Sequential execution would take >=200ms.
	if elapsed >= 180*time.Millisecond {
		t.Fatalf("branches appear sequential: took %v", elapsed)
	}
}
