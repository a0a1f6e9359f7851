package resilience

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/kirillkom/facture-organizer/internal/core/domain"
)

type ErrorClassification struct {
	Retryable     bool
	RecordFailure bool
}

var (
	// Transient failures are retried and count against the breaker.
	Transient = ErrorClassification{Retryable: true, RecordFailure: true}
	// Permanent failures are returned at once but still count against the breaker.
	Permanent = ErrorClassification{Retryable: false, RecordFailure: true}
	// Rejected failures are the caller's fault and leave the breaker alone.
	Rejected = ErrorClassification{Retryable: false, RecordFailure: false}
)

type ErrorClassifier func(err error) ErrorClassification

// StatusCoder is implemented by errors that carry an upstream HTTP status.
type StatusCoder interface {
	StatusCode() int
}

// ClassifyHTTP is the classifier for plain HTTP clients: cancellation is
// rejected, retryable statuses and network errors are transient, other
// statuses are rejected.
func ClassifyHTTP(err error) ErrorClassification {
	if err == nil {
		return ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Rejected
	}
	if IsCircuitOpen(err) {
		return Transient
	}
	var status StatusCoder
	if errors.As(err, &status) {
		if IsRetryableHTTPStatus(status.StatusCode()) {
			return Transient
		}
		return Rejected
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return Transient
	}
	return Permanent
}

func IsRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// WrapTemporary tags err as domain.ErrTemporary when classifier considers it
// transient or the breaker rejected the call.
func WrapTemporary(operation string, err error, classifier ErrorClassifier) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classifier == nil {
		classifier = ClassifyHTTP
	}
	if classifier(err).Retryable || IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}
