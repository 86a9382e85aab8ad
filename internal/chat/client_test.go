package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/aptitude-tutor/internal/domain"
)

func deltaLine(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []any{map[string]any{"delta": map[string]any{"content": content}}},
	})
	return "data: " + string(b) + "\n\n"
}

// chunkedServer writes each chunk with a flush so the client sees separate reads.
func chunkedServer(t *testing.T, chunks []string, capture func(*http.Request, []byte)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if capture != nil {
			capture(r, body)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)
		for _, c := range chunks {
			_, _ = io.WriteString(w, c)
			flusher.Flush()
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func lastMessage(t *testing.T, c *Client) domain.Message {
	t.Helper()
	msgs := c.Messages()
	require.NotEmpty(t, msgs)
	return msgs[len(msgs)-1]
}

func TestSendStreamsDeltas(t *testing.T) {
	stream := ": keep-alive\n" + deltaLine("Hello") + "event: ping\n" + deltaLine(", world") + "data: [DONE]\n\n"
	srv := chunkedServer(t, []string{stream}, nil)

	var completed int32
	c := New(Config{ProxyURL: srv.URL, OnComplete: func() { atomic.AddInt32(&completed, 1) }})

	require.NoError(t, c.Send(context.Background(), "hi", ""))

	msgs := c.Messages()
	require.Len(t, msgs, 3)
	assert.True(t, msgs[0].Greeting)
	assert.Equal(t, domain.RoleUser, msgs[1].Role)
	assert.Equal(t, "Hello, world", msgs[2].Content)
	assert.False(t, msgs[2].Error)
	assert.EqualValues(t, 1, completed)
	assert.False(t, c.IsStreaming())
}

func TestSendSplitAtEveryOffset(t *testing.T) {
	stream := deltaLine("Price is ₹40 ✅") + deltaLine(" done") + "data: [DONE]\n"
	raw := []byte(stream)

	for i := 1; i < len(raw); i++ {
		chunks := []string{string(raw[:i]), string(raw[i:])}
		srv := chunkedServer(t, chunks, nil)
		c := New(Config{ProxyURL: srv.URL})

		require.NoError(t, c.Send(context.Background(), "q", ""), "split at %d", i)
		assert.Equalf(t, "Price is ₹40 ✅ done", lastMessage(t, c).Content, "split at %d", i)
		srv.Close()
	}
}

func TestSendDoneOnlyCompletesWithEmptyContent(t *testing.T) {
	srv := chunkedServer(t, []string{"data: [DONE]\n\n"}, nil)

	completed := false
	c := New(Config{ProxyURL: srv.URL, OnComplete: func() { completed = true }})
	require.NoError(t, c.Send(context.Background(), "hi", ""))

	last := lastMessage(t, c)
	assert.Equal(t, domain.RoleAssistant, last.Role)
	assert.Empty(t, last.Content)
	assert.False(t, last.Error)
	assert.True(t, completed)
}

func TestSendFlushesUnterminatedTail(t *testing.T) {
	srv := chunkedServer(t, []string{deltaLine("a"), `data: {"choices":[{"delta":{"content":"b"}}]}`}, nil)

	c := New(Config{ProxyURL: srv.URL})
	require.NoError(t, c.Send(context.Background(), "hi", ""))
	assert.Equal(t, "ab", lastMessage(t, c).Content)
}

func TestSendQuotaExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = io.WriteString(w, `{"error":"quota exceeded"}`)
	}))
	defer srv.Close()

	completed := false
	c := New(Config{ProxyURL: srv.URL, OnComplete: func() { completed = true }})
	err := c.Send(context.Background(), "hi", "")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrQuotaExhausted))
	var upstream *UpstreamStatusError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusPaymentRequired, upstream.Status)

	msgs := c.Messages()
	require.Len(t, msgs, 3, "greeting, user, error bubble; no placeholder")
	last := msgs[2]
	assert.Equal(t, domain.RoleAssistant, last.Role)
	assert.Equal(t, "quota exceeded", last.Content)
	assert.True(t, last.Error)
	assert.False(t, completed)
	assert.False(t, c.IsStreaming())
}

func TestSendStatusWithoutBody(t *testing.T) {
	tests := []struct {
		status int
		target error
	}{
		{http.StatusTooManyRequests, ErrRateLimited},
		{http.StatusBadGateway, ErrServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, "<html>oops</html>")
			}))
			defer srv.Close()

			c := New(Config{ProxyURL: srv.URL})
			err := c.Send(context.Background(), "hi", "")
			assert.ErrorIs(t, err, tt.target)
			assert.Equal(t, fmt.Sprintf("Request failed with status %d", tt.status), lastMessage(t, c).Content)
		})
	}
}

func TestSendTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := New(Config{ProxyURL: url})
	err := c.Send(context.Background(), "hi", "")

	var transport *TransportError
	require.ErrorAs(t, err, &transport)
	assert.Equal(t, "send request", transport.Op)
	assert.True(t, lastMessage(t, c).Error)
	assert.False(t, c.IsStreaming())
}

func TestSendTimeoutKeepsPartialAnswer(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, deltaLine("partial"))
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	c := New(Config{ProxyURL: srv.URL, RequestTimeout: 200 * time.Millisecond})
	err := c.Send(context.Background(), "hi", "")
	require.Error(t, err)

	msgs := c.Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, "partial", msgs[2].Content)
	assert.False(t, msgs[2].Error)
	assert.True(t, msgs[3].Error)
	assert.Equal(t, "Request timed out", msgs[3].Content)
}

func TestSendRequestShape(t *testing.T) {
	var (
		got     domain.ProxyRequest
		headers http.Header
	)
	srv := chunkedServer(t, []string{"data: [DONE]\n"}, func(r *http.Request, body []byte) {
		headers = r.Header.Clone()
		require.NoError(t, json.Unmarshal(body, &got))
	})

	c := New(Config{ProxyURL: srv.URL, ClientKey: "pk", Mode: domain.ModeQuiz, Topic: "Trains"})
	c.SetSessionID("sess-1")
	require.NoError(t, c.Send(context.Background(), "what is this?", "data:image/png;base64,AAAA"))

	assert.Equal(t, "Bearer pk", headers.Get("Authorization"))
	assert.Equal(t, "application/json", headers.Get("Content-Type"))
	assert.Equal(t, "sess-1", headers.Get("X-Session-ID"))
	assert.Equal(t, domain.ModeQuiz, got.Mode)
	assert.Equal(t, "Trains", got.Topic)

	require.Len(t, got.Messages, 1, "lone greeting is not sent")
	parts := got.Messages[0].Content.Parts
	require.Len(t, parts, 2)
	assert.Equal(t, "text", parts[0].Type)
	assert.Equal(t, "what is this?", parts[0].Text)
	assert.Equal(t, "image_url", parts[1].Type)
	assert.Equal(t, "data:image/png;base64,AAAA", parts[1].ImageURL.URL)
}

func TestSendImageOnlyKeepsEmptyTextPart(t *testing.T) {
	var raw []byte
	srv := chunkedServer(t, []string{"data: [DONE]\n"}, func(_ *http.Request, body []byte) {
		raw = body
	})

	c := New(Config{ProxyURL: srv.URL})
	require.NoError(t, c.Send(context.Background(), "", "data:image/png;base64,AAAA"))

	var got domain.ProxyRequest
	require.NoError(t, json.Unmarshal(raw, &got))
	require.Len(t, got.Messages, 1)
	parts := got.Messages[0].Content.Parts
	require.Len(t, parts, 2)
	assert.Equal(t, "text", parts[0].Type)
	assert.Empty(t, parts[0].Text)
	assert.Equal(t, "image_url", parts[1].Type)
	assert.Contains(t, string(raw), `{"type":"text","text":""}`)
}

func TestSendTrimsContextAndKeepsGreetingAfterRealTurns(t *testing.T) {
	var got domain.ProxyRequest
	srv := chunkedServer(t, []string{deltaLine("ok"), "data: [DONE]\n"}, func(_ *http.Request, body []byte) {
		require.NoError(t, json.Unmarshal(body, &got))
	})

	c := New(Config{ProxyURL: srv.URL})
	require.NoError(t, c.Send(context.Background(), "first", ""))
	assert.Len(t, got.Messages, 1)

	require.NoError(t, c.Send(context.Background(), "second", ""))
	require.Len(t, got.Messages, 4, "greeting, first, answer, second")
	assert.Equal(t, domain.RoleAssistant, got.Messages[0].Role)

	for i := 0; i < 6; i++ {
		require.NoError(t, c.Send(context.Background(), fmt.Sprintf("q%d", i), ""))
	}
	require.Len(t, got.Messages, ContextWindow)
	assert.Equal(t, "q5", got.Messages[ContextWindow-1].Content.Text)
}

func TestSendRejectsEmptyAndConcurrent(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		close(entered)
		<-release
		_, _ = io.WriteString(w, "data: [DONE]\n")
	}))
	defer srv.Close()

	c := New(Config{ProxyURL: srv.URL})
	assert.ErrorIs(t, c.Send(context.Background(), "   ", ""), ErrEmptyMessage)

	var wg sync.WaitGroup
	wg.Add(1)
	var firstErr error
	go func() {
		defer wg.Done()
		firstErr = c.Send(context.Background(), "one", "")
	}()

	<-entered
	assert.True(t, c.IsStreaming())
	assert.ErrorIs(t, c.Send(context.Background(), "two", ""), ErrStreamInProgress)
	close(release)
	wg.Wait()

	require.NoError(t, firstErr)
	assert.False(t, c.IsStreaming())
	for _, m := range c.Messages() {
		assert.NotEqual(t, "two", m.Content)
	}
}

func TestResetAndLoad(t *testing.T) {
	t.Parallel()

	c := New(Config{ProxyURL: "http://unused"})
	c.Reset(domain.ModeELI10)
	msgs := c.Messages()
	require.Len(t, msgs, 1)
	assert.True(t, strings.Contains(msgs[0].Content, "10 years old"))
	assert.Equal(t, domain.ModeELI10, c.Mode())

	stored := []domain.Message{{ID: "1", Role: domain.RoleUser, Content: "hey"}}
	c.Load(stored, domain.ModeLearn, "Ages")
	assert.Equal(t, stored, c.Messages())
	assert.Equal(t, "Ages", c.Topic())

	c.Load(nil, domain.ModeQuiz, "")
	require.Len(t, c.Messages(), 1)
	assert.True(t, c.Messages()[0].Greeting)
}
