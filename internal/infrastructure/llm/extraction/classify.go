package extraction

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/kirillkom/appraisal-intelligence/internal/core/domain"
	"github.com/kirillkom/appraisal-intelligence/internal/infrastructure/resilience"
)

// StatusError is implemented by adapter errors that carry an HTTP status.
type StatusError interface {
	error
	HTTPStatus() int
}

var transientMarkers = []string{
	"overloaded",
	"unavailable",
	"rate limit",
	"ratelimit",
	"too many requests",
	"quota",
	"resource exhausted",
	"resource_exhausted",
	"resourceexhausted",
	"try again later",
}

// Classify decides whether a document model failure is worth retrying.
func Classify(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	if domain.IsKind(err, domain.ErrInvalidResponse) ||
		domain.IsKind(err, domain.ErrServiceUnavailable) ||
		domain.IsKind(err, domain.ErrInvalidInput) ||
		domain.IsKind(err, domain.ErrUnsupportedDocument) ||
		domain.IsKind(err, domain.ErrUnauthorized) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}

	var statusErr StatusError
	if errors.As(err, &statusErr) {
		if IsRetryableHTTPStatus(statusErr.HTTPStatus()) {
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		}
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		}
	}
	for _, code := range []string{"429", "500", "502", "503", "504"} {
		if containsCode(msg, code) {
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		}
	}

	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}

func IsRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// containsCode matches a status code that is not part of a longer number.
func containsCode(msg, code string) bool {
	for from := 0; ; {
		idx := strings.Index(msg[from:], code)
		if idx < 0 {
			return false
		}
		start := from + idx
		end := start + len(code)
		before := start == 0 || !isDigit(msg[start-1])
		after := end == len(msg) || !isDigit(msg[end])
		if before && after {
			return true
		}
		from = end
	}
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
