package usecase

import (
	"sort"

	"github.com/kirillkom/knowledge-base/internal/core/domain"
)

// DefaultRRFK controls how strongly top ranks dominate the fused score.
// 60 is the standard value from the RRF literature; keep it unless a caller
// explicitly overrides.
const DefaultRRFK = 60

type fusedEntry struct {
	candidate domain.ScoredCandidate
	score     float64
	firstSeen int
}

// FuseRankedLists merges ranked candidate lists into one ranking via
// Reciprocal Rank Fusion: score(id) = Σ 1/(k+rank) over every list the id
// appears in, with zero-based ranks. The first list an id is encountered in
// supplies the representative content and metadata; the original modality
// score is discarded since raw scores are not comparable across modalities.
// Ties keep first-seen order. The output is never truncated here.
func FuseRankedLists(lists [][]domain.ScoredCandidate, k int) []domain.ScoredCandidate {
	if k <= 0 {
		k = DefaultRRFK
	}

	acc := make(map[string]*fusedEntry)
	order := 0
	for _, list := range lists {
		for rank, candidate := range list {
			entry, ok := acc[candidate.ID]
			if !ok {
				entry = &fusedEntry{candidate: candidate, firstSeen: order}
				acc[candidate.ID] = entry
				order++
			}
			entry.score += 1.0 / float64(k+rank)
		}
	}

	out := make([]*fusedEntry, 0, len(acc))
	for _, entry := range acc {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].firstSeen < out[j].firstSeen
	})

	fused := make([]domain.ScoredCandidate, 0, len(out))
	for _, entry := range out {
		candidate := entry.candidate
		candidate.Score = entry.score
		fused = append(fused, candidate)
	}
	return fused
}

func trimCandidates(candidates []domain.ScoredCandidate, limit int) []domain.ScoredCandidate {
	if limit <= 0 || len(candidates) <= limit {
		return candidates
	}
	return candidates[:limit]
}
