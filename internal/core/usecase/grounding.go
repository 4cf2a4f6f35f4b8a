package usecase

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"

	"github.com/kirillkom/knowledge-base/internal/core/domain"
	"github.com/kirillkom/knowledge-base/internal/core/ports"
)

// DefaultSimilarityThreshold is the minimum answer/evidence cosine similarity
// for an answer to count as grounded.
const DefaultSimilarityThreshold = 0.75

// Only single-integer markers are recognized; a combined marker like [1,2]
// does not count as citing either index.
var citationMarkerPattern = regexp.MustCompile(`\[(\d+)\]`)

// GroundingVerifier checks whether a generated answer is supported by the
// retrieved evidence: every expected citation must appear and the answer
// embedding must be close enough to at least one evidence embedding.
type GroundingVerifier struct {
	embedder  ports.Embedder
	threshold float64
}

func NewGroundingVerifier(embedder ports.Embedder, threshold float64) *GroundingVerifier {
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}
	return &GroundingVerifier{
		embedder:  embedder,
		threshold: threshold,
	}
}

// Verify computes the grounding verdict for one answer. Embedding failures
// propagate to the caller, which is expected to still persist a trace record
// flagging the situation.
func (v *GroundingVerifier) Verify(
	ctx context.Context,
	answer string,
	evidence []domain.ScoredCandidate,
) (domain.GroundingVerdict, error) {
	missing := missingCitations(answer, len(evidence))
	verdict := domain.GroundingVerdict{MissingCitations: missing}

	if len(evidence) == 0 {
		verdict.Grounded = false
		return verdict, nil
	}

	answerVector, err := v.embedder.EmbedQuery(ctx, answer)
	if err != nil {
		return verdict, fmt.Errorf("embed answer: %w", err)
	}

	texts := make([]string, 0, len(evidence))
	for _, candidate := range evidence {
		texts = append(texts, candidate.EmbeddingInput())
	}
	evidenceVectors, err := v.embedder.Embed(ctx, texts)
	if err != nil {
		return verdict, fmt.Errorf("embed evidence: %w", err)
	}

	maxSimilarity := 0.0
	for _, vector := range evidenceVectors {
		similarity := cosineSimilarity(answerVector, vector)
		if similarity > maxSimilarity {
			maxSimilarity = similarity
		}
	}

	verdict.MaxSimilarity = maxSimilarity
	verdict.Grounded = maxSimilarity >= v.threshold && len(missing) == 0
	return verdict, nil
}

// missingCitations returns the sorted 1-based evidence indices the answer was
// expected to cite via [N] markers but did not.
func missingCitations(answer string, evidenceCount int) []int {
	found := make(map[int]struct{})
	for _, match := range citationMarkerPattern.FindAllStringSubmatch(answer, -1) {
		n, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		found[n] = struct{}{}
	}

	missing := make([]int, 0)
	for i := 1; i <= evidenceCount; i++ {
		if _, ok := found[i]; !ok {
			missing = append(missing, i)
		}
	}
	sort.Ints(missing)
	return missing
}

// cosineSimilarity returns dot(a,b)/(|a|*|b|), or 0 when either vector has
// zero norm.
func cosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}
	for _, x := range a {
		normA += float64(x) * float64(x)
	}
	for _, x := range b {
		normB += float64(x) * float64(x)
	}
	if normA == 0 || normB == 0 {
		return 0.0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
