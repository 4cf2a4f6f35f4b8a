package httpadapter

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRateLimiterRejectsBurstOverflow(t *testing.T) {
	limiter := NewClientRateLimiter(1, 2, nil, "api")
	handler := limiter.middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/v1/query", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		statuses = append(statuses, rec.Code)
	}

	if statuses[0] != http.StatusOK || statuses[1] != http.StatusOK {
		t.Fatalf("expected first two requests to pass, got %v", statuses)
	}
	if statuses[2] != http.StatusTooManyRequests {
		t.Fatalf("expected third request to be limited, got %v", statuses)
	}
}

func TestRateLimiterIsolatesClients(t *testing.T) {
	limiter := NewClientRateLimiter(1, 1, nil, "api")
	handler := limiter.middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	first := httptest.NewRequest(http.MethodGet, "/v1/query", nil)
	first.RemoteAddr = "10.0.0.1:1234"
	firstRec := httptest.NewRecorder()
	handler.ServeHTTP(firstRec, first)

	second := httptest.NewRequest(http.MethodGet, "/v1/query", nil)
	second.RemoteAddr = "10.0.0.2:1234"
	secondRec := httptest.NewRecorder()
	handler.ServeHTTP(secondRec, second)

	if firstRec.Code != http.StatusOK || secondRec.Code != http.StatusOK {
		t.Fatalf("expected both clients to pass, got %d and %d", firstRec.Code, secondRec.Code)
	}
}

func TestRateLimiterDisabledWhenRPSZero(t *testing.T) {
	if limiter := NewClientRateLimiter(0, 5, nil, "api"); limiter != nil {
		t.Fatalf("expected nil limiter for rps=0")
	}
}
