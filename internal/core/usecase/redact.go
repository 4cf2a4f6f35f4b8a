package usecase

import (
	"regexp"

	"github.com/kirillkom/knowledge-base/internal/core/domain"
)

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?\d[\d\-\s().]{7,}\d`)
	ssnPattern   = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)
)

func redactText(s string) string {
	if s == "" {
		return s
	}
	s = emailPattern.ReplaceAllString(s, "[redacted-email]")
	s = ssnPattern.ReplaceAllString(s, "[redacted-ssn]")
	s = phonePattern.ReplaceAllString(s, "[redacted-phone]")
	return s
}

// redactTrace scrubs email/phone/SSN patterns from every free-text field of a
// trace before it is written to persistent storage.
func redactTrace(trace *domain.TraceRecord) {
	trace.Query = redactText(trace.Query)
	trace.Answer = redactText(trace.Answer)
	for i := range trace.Retrieval {
		trace.Retrieval[i].SummaryContext = redactText(trace.Retrieval[i].SummaryContext)
		trace.Retrieval[i].HeadingPath = redactText(trace.Retrieval[i].HeadingPath)
	}
}
