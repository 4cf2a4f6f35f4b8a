package httpadapter

import (
	"net/http"

	"github.com/kirillkom/knowledge-base/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.ErrTraceNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrIndexMissing):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// userFacingMessage separates the missing-index case from transient outages
// because the remediation differs: the former needs an ingest run, the latter
// a retry.
func userFacingMessage(err error) string {
	switch {
	case domain.IsKind(err, domain.ErrIndexMissing):
		return "search index is not provisioned yet; ingest documents before querying"
	case domain.IsKind(err, domain.ErrTemporary):
		return "a backing service is temporarily unavailable; retry shortly"
	default:
		return err.Error()
	}
}
