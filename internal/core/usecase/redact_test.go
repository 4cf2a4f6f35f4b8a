package usecase

import (
	"strings"
	"testing"

	"github.com/kirillkom/knowledge-base/internal/core/domain"
)

func TestRedactTextPatterns(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"contact bob@corp.example for access", "contact [redacted-email] for access"},
		{"ssn 123-45-6789 on file", "ssn [redacted-ssn] on file"},
		{"call +1 (555) 123-4567 today", "call [redacted-phone] today"},
		{"nothing sensitive here", "nothing sensitive here"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := redactText(tc.in); got != tc.want {
			t.Fatalf("redactText(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestRedactTraceScrubsFreeTextFields(t *testing.T) {
	trace := &domain.TraceRecord{
		Query:  "who is alice@example.org?",
		Answer: "alice@example.org owns the doc",
		Retrieval: []domain.RetrievalEntry{
			{SummaryContext: "summary mentions carol@example.net", HeadingPath: "People > dave@example.io"},
		},
	}

	redactTrace(trace)

	for _, field := range []string{trace.Query, trace.Answer, trace.Retrieval[0].SummaryContext, trace.Retrieval[0].HeadingPath} {
		if strings.Contains(field, "@example") {
			t.Fatalf("expected email redacted, got %q", field)
		}
	}
}
