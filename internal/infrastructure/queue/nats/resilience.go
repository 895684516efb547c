package nats

import (
	"context"
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/appraisal-intelligence/internal/core/domain"
	"github.com/kirillkom/appraisal-intelligence/internal/infrastructure/resilience"
)

const publishOp = "job_queue.publish"

// Connection-level failures; the ingest job is safe to publish again.
var transientPublishErrors = []error{
	nats.ErrNoServers,
	nats.ErrTimeout,
	nats.ErrConnectionClosed,
	nats.ErrConnectionReconnecting,
	nats.ErrDisconnected,
	nats.ErrNoResponders,
}

func classifyPublishError(err error) resilience.ErrorClassification {
	switch {
	case err == nil:
		return resilience.ErrorClassification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.ErrorClassification{}
	case resilience.IsCircuitOpen(err), isTransientPublishError(err):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	default:
		// Bad subject, oversized payload and the like: retrying cannot help.
		return resilience.ErrorClassification{RecordFailure: true}
	}
}

func isTransientPublishError(err error) bool {
	for _, target := range transientPublishErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// publishFailure tags a failed ingest-job publish as domain.ErrTemporary when
// the job can be queued again later, so ingest reports 503 instead of 500.
func publishFailure(err error) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classifyPublishError(err).Retryable || resilience.IsRetriesExhausted(err) {
		return domain.WrapError(domain.ErrTemporary, publishOp, err)
	}
	return err
}
