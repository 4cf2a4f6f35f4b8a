package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/knowledge-base/internal/core/domain"
	"github.com/kirillkom/knowledge-base/internal/core/ports"
	"github.com/kirillkom/knowledge-base/internal/observability/metrics"
)

type Router struct {
	answerer ports.QueryAnswerer
	traces   ports.TraceReader
	metrics  *metrics.HTTPServerMetrics
	limiter  *ClientRateLimiter
	service  string
}

func NewRouter(
	answerer ports.QueryAnswerer,
	traces ports.TraceReader,
	serverMetrics *metrics.HTTPServerMetrics,
	limiter *ClientRateLimiter,
	service string,
) *Router {
	return &Router{
		answerer: answerer,
		traces:   traces,
		metrics:  serverMetrics,
		limiter:  limiter,
		service:  service,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/query", rt.answerQuery)
	mux.HandleFunc("/v1/traces/", rt.getTraceByID)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.limiter != nil {
		handler = rt.limiter.middleware(handler)
	}
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.service, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type queryFilters struct {
	SourceURL   string   `json:"source_url"`
	SourceGroup string   `json:"source_group"`
	UserID      string   `json:"user_id"`
	OrgID       string   `json:"org_id"`
	SourceTypes []string `json:"source_types"`
}

type queryRequest struct {
	Query         string       `json:"query"`
	SearchType    string       `json:"search_type"`
	MatchCount    int          `json:"match_count"`
	Filters       queryFilters `json:"filters"`
	ParentTraceID string       `json:"parent_trace_id"`
}

func (rt *Router) answerQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}

	mode, ok := domain.ParseSearchMode(req.SearchType)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "search_type must be semantic, text or hybrid"})
		return
	}

	var mask domain.SourceTypeMask
	for _, raw := range req.Filters.SourceTypes {
		sourceType, ok := domain.ParseSourceType(raw)
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "source_types must be web, gdrive or upload"})
			return
		}
		mask |= sourceType.Mask()
	}

	start := time.Now()
	result, err := rt.answerer.AnswerQuery(r.Context(), ports.AnswerRequest{
		Query:      req.Query,
		Mode:       mode,
		MatchCount: req.MatchCount,
		Filter: domain.SearchFilter{
			SourceURL:   req.Filters.SourceURL,
			SourceGroup: req.Filters.SourceGroup,
			UserID:      req.Filters.UserID,
			OrgID:       req.Filters.OrgID,
			SourceTypes: mask,
		},
		ParentTraceID: req.ParentTraceID,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordQuery(rt.service, string(mode), len(result.Citations), time.Since(start))
		rt.metrics.RecordGroundingVerdict(rt.service, result.Grounding.Grounded, result.Grounding.CheckError != "")
		rt.metrics.RecordTokenUsage(rt.service, result.Usage.PromptTokens, result.Usage.CompletionTokens)
		for _, branch := range result.DegradedBranches {
			rt.metrics.RecordDegradedBranch(rt.service, branch)
		}
		if result.FeedbackRecorded {
			rt.metrics.RecordFeedback(rt.service, "negative")
		}
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) getTraceByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/traces/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "trace id is required"})
		return
	}

	trace, err := rt.traces.GetTraceByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, trace)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": userFacingMessage(err)})
}
