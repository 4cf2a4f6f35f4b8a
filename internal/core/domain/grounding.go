package domain

// GroundingVerdict is the outcome of verifying one generated answer against
// its evidence set. Grounded is true only when both the similarity test and
// the citation-completeness test pass.
type GroundingVerdict struct {
	Grounded         bool    `json:"grounded"`
	MaxSimilarity    float64 `json:"max_similarity"`
	MissingCitations []int   `json:"missing_citations"`
	// CheckError carries a non-fatal verification failure (embedding backend
	// error) so the trace still records the interaction.
	CheckError string `json:"check_error,omitempty"`
}
