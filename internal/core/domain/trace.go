package domain

import "time"

// SearchMode selects the retrieval strategy for one query.
type SearchMode string

const (
	ModeSemantic SearchMode = "semantic"
	ModeText     SearchMode = "text"
	ModeHybrid   SearchMode = "hybrid"
)

func ParseSearchMode(raw string) (SearchMode, bool) {
	switch SearchMode(raw) {
	case ModeSemantic:
		return ModeSemantic, true
	case ModeText:
		return ModeText, true
	case ModeHybrid, "":
		return ModeHybrid, true
	default:
		return "", false
	}
}

// Citation maps a 1-based evidence index to its source, in the order the
// evidence was presented to the generator.
type Citation struct {
	Index          int    `json:"index"`
	ChunkID        string `json:"chunk_id"`
	DocumentID     string `json:"document_id"`
	DocumentTitle  string `json:"document_title,omitempty"`
	DocumentSource string `json:"document_source,omitempty"`
	SourceURL      string `json:"source_url,omitempty"`
}

// RetrievalEntry is the per-evidence metadata persisted with a trace.
type RetrievalEntry struct {
	ChunkID        string  `json:"chunk_id"`
	DocumentID     string  `json:"document_id"`
	SourceURL      string  `json:"source_url,omitempty"`
	PageNumber     string  `json:"page_number,omitempty"`
	HeadingPath    string  `json:"heading_path,omitempty"`
	SourceType     string  `json:"source_type,omitempty"`
	SummaryContext string  `json:"summary_context,omitempty"`
	Score          float64 `json:"score"`
}

type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// TraceRecord is the append-only audit entry for one query/answer cycle.
// It is written once; corrections arrive as separate FeedbackRecords.
type TraceRecord struct {
	TraceID       string           `json:"trace_id"`
	ParentTraceID string           `json:"parent_trace_id,omitempty"`
	Query         string           `json:"query"`
	Answer        string           `json:"answer"`
	Citations     []Citation       `json:"citations"`
	Retrieval     []RetrievalEntry `json:"retrieval"`
	Grounding     GroundingVerdict `json:"grounding"`
	Filters       SearchFilter     `json:"filters"`
	Mode          SearchMode       `json:"mode"`
	LatencyMS     int64            `json:"latency_ms"`
	Usage         TokenUsage       `json:"usage"`
	CreatedAt     time.Time        `json:"created_at"`
}

// FeedbackRecord references a trace; negative feedback is inserted when a
// follow-up query looks like a correction of the parent answer.
type FeedbackRecord struct {
	ID        string    `json:"id"`
	TraceID   string    `json:"trace_id"`
	Signal    int       `json:"signal"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

const FeedbackNegative = -1

// AnswerResult is the response of one answer pipeline invocation.
type AnswerResult struct {
	Answer    string           `json:"answer"`
	Citations []Citation       `json:"citations"`
	Grounding GroundingVerdict `json:"grounding"`
	TraceID   string           `json:"trace_id"`
	Usage     TokenUsage       `json:"usage"`
	// DegradedBranches lists the retrieval branches that failed while the
	// other branch still served.
	DegradedBranches []string `json:"degraded_branches,omitempty"`
	FeedbackRecorded bool     `json:"feedback_recorded,omitempty"`
}
