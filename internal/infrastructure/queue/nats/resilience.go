package nats

import (
	"context"
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/facture-organizer/internal/infrastructure/resilience"
)

// classifyPublishError treats a lost or reconnecting server as transient.
// Oversized events and invalid subjects will fail the same way on every
// attempt, so they neither retry nor trip the breaker.
func classifyPublishError(err error) resilience.ErrorClassification {
	switch {
	case err == nil:
		return resilience.ErrorClassification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.Rejected
	case errors.Is(err, nats.ErrMaxPayload), errors.Is(err, nats.ErrBadSubject):
		return resilience.Rejected
	case resilience.IsCircuitOpen(err),
		errors.Is(err, nats.ErrNoServers),
		errors.Is(err, nats.ErrTimeout),
		errors.Is(err, nats.ErrConnectionClosed),
		errors.Is(err, nats.ErrDisconnected),
		errors.Is(err, nats.ErrConnectionReconnecting):
		return resilience.Transient
	default:
		return resilience.Permanent
	}
}

func publishFailure(err error) error {
	return resilience.WrapTemporary("nats publish", err, classifyPublishError)
}
