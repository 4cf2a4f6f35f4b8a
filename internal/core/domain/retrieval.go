package domain

import "strings"

// SourceType identifies where a document was collected from.
type SourceType string

const (
	SourceWeb    SourceType = "web"
	SourceGDrive SourceType = "gdrive"
	SourceUpload SourceType = "upload"
)

// SourceTypeMask is the bitmask form of SourceType used for combined filtering.
type SourceTypeMask uint8

const (
	MaskWeb    SourceTypeMask = 1
	MaskGDrive SourceTypeMask = 2
	MaskUpload SourceTypeMask = 4
)

func (t SourceType) Mask() SourceTypeMask {
	switch t {
	case SourceWeb:
		return MaskWeb
	case SourceGDrive:
		return MaskGDrive
	case SourceUpload:
		return MaskUpload
	default:
		return 0
	}
}

// Types expands the mask back into the enum values it covers.
func (m SourceTypeMask) Types() []SourceType {
	out := make([]SourceType, 0, 3)
	if m&MaskWeb != 0 {
		out = append(out, SourceWeb)
	}
	if m&MaskGDrive != 0 {
		out = append(out, SourceGDrive)
	}
	if m&MaskUpload != 0 {
		out = append(out, SourceUpload)
	}
	return out
}

func ParseSourceType(raw string) (SourceType, bool) {
	switch SourceType(strings.ToLower(strings.TrimSpace(raw))) {
	case SourceWeb:
		return SourceWeb, true
	case SourceGDrive:
		return SourceGDrive, true
	case SourceUpload:
		return SourceUpload, true
	default:
		return "", false
	}
}

// SearchFilter holds the equality constraints both search modalities accept.
type SearchFilter struct {
	SourceURL   string         `json:"source_url,omitempty"`
	SourceGroup string         `json:"source_group,omitempty"`
	UserID      string         `json:"user_id,omitempty"`
	OrgID       string         `json:"org_id,omitempty"`
	SourceTypes SourceTypeMask `json:"source_types,omitempty"`
}

func (f SearchFilter) IsZero() bool {
	return f.SourceURL == "" && f.SourceGroup == "" && f.UserID == "" && f.OrgID == "" && f.SourceTypes == 0
}

// ScoredCandidate is one retrieved unit of evidence. Score semantics differ
// per modality (cosine similarity vs lexical relevance), which is why fusion
// works on rank position rather than the raw value.
type ScoredCandidate struct {
	ID             string            `json:"id"`
	ParentID       string            `json:"parent_id"`
	Content        string            `json:"content"`
	Score          float64           `json:"score"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	DocumentTitle  string            `json:"document_title,omitempty"`
	DocumentSource string            `json:"document_source,omitempty"`
}

// EmbeddingInput returns the text to embed for grounding checks, preferring
// a precomputed embedding_text payload over the raw chunk content.
func (c ScoredCandidate) EmbeddingInput() string {
	if t, ok := c.Metadata["embedding_text"]; ok && strings.TrimSpace(t) != "" {
		return t
	}
	return c.Content
}

// RetrievalDiagnostics records per-branch outcomes of one hybrid search so
// the degrade-vs-abort decision stays visible to callers instead of being
// swallowed inside the retriever.
type RetrievalDiagnostics struct {
	SemanticErr  error
	LexicalErr   error
	SemanticHits int
	LexicalHits  int
}

// Degraded reports whether at least one branch failed while the other served.
func (d RetrievalDiagnostics) Degraded() bool {
	return (d.SemanticErr == nil) != (d.LexicalErr == nil)
}

// Exhausted reports whether both branches failed and no evidence is available;
// callers are expected to fall back to an external evidence source.
func (d RetrievalDiagnostics) Exhausted() bool {
	return d.SemanticErr != nil && d.LexicalErr != nil
}

// LastError is the diagnostic surfaced in user-facing error messaging.
func (d RetrievalDiagnostics) LastError() error {
	if d.LexicalErr != nil {
		return d.LexicalErr
	}
	return d.SemanticErr
}
