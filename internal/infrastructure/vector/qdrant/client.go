package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/knowledge-base/internal/core/domain"
)

const (
	denseVectorName  = "dense"
	sparseVectorName = "lexical"
)

// Client runs semantic (dense ANN) and lexical (sparse) searches against one
// Qdrant collection. Query embedding is this adapter's responsibility.
type Client struct {
	baseURL    string
	collection string
	embedder   queryEmbedder
	httpClient *http.Client
}

type queryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

func New(baseURL, collection string, embedder queryEmbedder) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		embedder:   embedder,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *Client) SearchSemantic(
	ctx context.Context,
	query string,
	limit int,
	filter domain.SearchFilter,
) ([]domain.ScoredCandidate, error) {
	queryVector, err := c.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	reqBody := map[string]any{
		"query":        queryVector,
		"using":        denseVectorName,
		"limit":        limit,
		"with_payload": true,
	}
	if qf := buildQdrantFilter(filter); qf != nil {
		reqBody["filter"] = qf
	}
	return c.runQuery(ctx, "semantic", reqBody)
}

func (c *Client) SearchLexical(
	ctx context.Context,
	query string,
	limit int,
	filter domain.SearchFilter,
) ([]domain.ScoredCandidate, error) {
	sparse := encodeSparseQuery(query)
	if len(sparse.Indices) == 0 {
		return nil, nil
	}

	reqBody := map[string]any{
		"query":        map[string]any{"indices": sparse.Indices, "values": sparse.Values},
		"using":        sparseVectorName,
		"limit":        limit,
		"with_payload": true,
	}
	if qf := buildQdrantFilter(filter); qf != nil {
		reqBody["filter"] = qf
	}
	return c.runQuery(ctx, "lexical", reqBody)
}

func (c *Client) runQuery(ctx context.Context, operation string, reqBody map[string]any) ([]domain.ScoredCandidate, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal %s query body: %w", operation, err)
	}

	url := fmt.Sprintf("%s/collections/%s/points/query", c.baseURL, c.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create %s query request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("qdrant %s query request: %w", operation, err)
	}
	defer resp.Body.Close()

	// A missing collection needs its own remediation guidance upstream.
	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.WrapError(domain.ErrIndexMissing, operation+" query",
			fmt.Errorf("collection %q not found", c.collection))
	}
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if msg := strings.TrimSpace(string(raw)); msg != "" {
			return nil, fmt.Errorf("qdrant %s query status: %s: %s", operation, resp.Status, msg)
		}
		return nil, fmt.Errorf("qdrant %s query status: %s", operation, resp.Status)
	}

	points, err := decodeQueryPoints(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decode %s query response: %w", operation, err)
	}

	out := make([]domain.ScoredCandidate, 0, len(points))
	for _, p := range points {
		out = append(out, candidateFromPoint(p))
	}
	return out, nil
}

type queryPoint struct {
	ID      any            `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

func decodeQueryPoints(body io.Reader) ([]queryPoint, error) {
	var queryResp struct {
		Result struct {
			Points []queryPoint `json:"points"`
		} `json:"result"`
	}
	if err := json.NewDecoder(body).Decode(&queryResp); err != nil {
		return nil, err
	}
	return queryResp.Result.Points, nil
}

func candidateFromPoint(p queryPoint) domain.ScoredCandidate {
	id := getStringPayload(p.Payload, "chunk_id")
	if id == "" {
		id = pointIDString(p.ID)
	}

	metadata := make(map[string]string)
	for _, key := range []string{
		"source_url", "source_type", "source_group", "user_id", "org_id",
		"page_number", "heading_path", "summary_context", "embedding_text",
	} {
		if v := getStringPayload(p.Payload, key); v != "" {
			metadata[key] = v
		}
	}

	return domain.ScoredCandidate{
		ID:             id,
		ParentID:       getStringPayload(p.Payload, "document_id"),
		Content:        getStringPayload(p.Payload, "content"),
		Score:          p.Score,
		Metadata:       metadata,
		DocumentTitle:  getStringPayload(p.Payload, "document_title"),
		DocumentSource: getStringPayload(p.Payload, "document_source"),
	}
}

func buildQdrantFilter(filter domain.SearchFilter) map[string]any {
	if filter.IsZero() {
		return nil
	}

	must := make([]map[string]any, 0, 5)
	addMatch := func(key, value string) {
		if value == "" {
			return
		}
		must = append(must, map[string]any{
			"key":   key,
			"match": map[string]any{"value": value},
		})
	}
	addMatch("source_url", filter.SourceURL)
	addMatch("source_group", filter.SourceGroup)
	addMatch("user_id", filter.UserID)
	addMatch("org_id", filter.OrgID)

	if types := filter.SourceTypes.Types(); len(types) > 0 {
		values := make([]string, 0, len(types))
		for _, t := range types {
			values = append(values, string(t))
		}
		must = append(must, map[string]any{
			"key":   "source_type",
			"match": map[string]any{"any": values},
		})
	}

	if len(must) == 0 {
		return nil
	}
	return map[string]any{"must": must}
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func pointIDString(id any) string {
	switch v := id.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatInt(int64(v), 10)
	default:
		return fmt.Sprintf("%v", v)
	}
}
