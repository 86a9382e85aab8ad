package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseStatusError(t *testing.T) {
	t.Parallel()

	err := parseStatusError(http.StatusTooManyRequests, []byte(`{"error":"Rate limits exceeded, please try again later."}`))
	assert.Equal(t, KindRateLimited, err.Kind)
	assert.Equal(t, "Rate limits exceeded, please try again later.", err.Message)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.NotErrorIs(t, err, ErrQuotaExhausted)

	err = parseStatusError(http.StatusInternalServerError, []byte(`{"error":""}`))
	assert.Equal(t, "Request failed with status 500", err.Message)
	assert.ErrorIs(t, err, ErrServiceUnavailable)
}

func TestReason(t *testing.T) {
	t.Parallel()

	upstream := &UpstreamStatusError{Status: 402, Kind: KindQuotaExhausted, Message: "quota exceeded"}
	assert.Equal(t, "quota exceeded", Reason(fmt.Errorf("wrapped: %w", upstream)))
	assert.Equal(t, "Request timed out", Reason(&TransportError{Op: "read stream", Err: context.DeadlineExceeded}))
	assert.Equal(t, "connection refused", Reason(&TransportError{Op: "send request", Err: errors.New("connection refused")}))
	assert.Equal(t, "Failed to get response", Reason(nil))
}
