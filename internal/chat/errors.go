package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrEmptyMessage is returned when neither text nor an image was given.
	ErrEmptyMessage = errors.New("message has no content")
	// ErrStreamInProgress is returned when Send is called mid-exchange.
	ErrStreamInProgress = errors.New("a response is already streaming")

	ErrRateLimited        = errors.New("rate limited")
	ErrQuotaExhausted     = errors.New("quota exhausted")
	ErrServiceUnavailable = errors.New("service unavailable")
)

// StatusKind classifies a non-2xx proxy response.
type StatusKind string

const (
	KindRateLimited        StatusKind = "rate_limited"
	KindQuotaExhausted     StatusKind = "quota_exhausted"
	KindServiceUnavailable StatusKind = "service_unavailable"
)

// KindForStatus maps an HTTP status to its error class.
func KindForStatus(status int) StatusKind {
	switch status {
	case http.StatusTooManyRequests:
		return KindRateLimited
	case http.StatusPaymentRequired:
		return KindQuotaExhausted
	default:
		return KindServiceUnavailable
	}
}

// UpstreamStatusError is a non-2xx answer from the proxy.
type UpstreamStatusError struct {
	Status  int
	Kind    StatusKind
	Message string
}

func (e *UpstreamStatusError) Error() string {
	if e == nil {
		return "upstream error"
	}
	return fmt.Sprintf("proxy returned %d (%s): %s", e.Status, e.Kind, e.Message)
}

// Is matches the sentinel for the error's kind.
func (e *UpstreamStatusError) Is(target error) bool {
	switch e.Kind {
	case KindRateLimited:
		return target == ErrRateLimited
	case KindQuotaExhausted:
		return target == ErrQuotaExhausted
	case KindServiceUnavailable:
		return target == ErrServiceUnavailable
	}
	return false
}

// TransportError wraps a network or stream read failure.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

// Reason returns the human-readable text shown in the error bubble.
func Reason(err error) string {
	var upstream *UpstreamStatusError
	if errors.As(err, &upstream) {
		return upstream.Message
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "Request timed out"
	}
	if errors.Is(err, context.Canceled) {
		return "Request cancelled"
	}
	var transport *TransportError
	if errors.As(err, &transport) {
		return transport.Err.Error()
	}
	if err == nil {
		return "Failed to get response"
	}
	return err.Error()
}
