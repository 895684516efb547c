package httpadapter

import (
	"net/http"

	"github.com/kirillkom/appraisal-intelligence/internal/core/domain"
)

// overloadRetryAfter is advertised to clients once the extraction retry
// budget is spent.
const overloadRetryAfter = 30

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.ErrDocumentNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrUnsupportedDocument):
		return http.StatusUnsupportedMediaType
	case domain.IsKind(err, domain.ErrCancelled):
		return http.StatusRequestTimeout
	case domain.IsKind(err, domain.ErrInvalidResponse):
		return http.StatusBadGateway
	case domain.IsKind(err, domain.ErrServiceOverloaded),
		domain.IsKind(err, domain.ErrServiceUnavailable),
		domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func retryAfterSeconds(err error) int {
	if domain.IsKind(err, domain.ErrServiceOverloaded) {
		return overloadRetryAfter
	}
	return 0
}

// publicMessage hides internal detail of unexpected failures.
func publicMessage(err error, status int) string {
	switch {
	case domain.IsKind(err, domain.ErrServiceOverloaded):
		return domain.ErrServiceOverloaded.Error()
	case status == http.StatusInternalServerError:
		return "internal error"
	default:
		return err.Error()
	}
}
