package proxy

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/aptitude-tutor/internal/config"
	"github.com/ashureev/aptitude-tutor/internal/domain"
	"github.com/ashureev/aptitude-tutor/internal/identity"
)

type recordingLogger struct {
	mu     sync.Mutex
	events []ConversationLogEvent
}

func (l *recordingLogger) Log(e ConversationLogEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *recordingLogger) Close() error { return nil }

func (l *recordingLogger) snapshot() []ConversationLogEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]ConversationLogEvent(nil), l.events...)
}

type gatewayCapture struct {
	auth string
	body gatewayRequest
}

func newGateway(t *testing.T, status int, respBody string, capture *gatewayCapture) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if capture != nil {
			capture.auth = r.Header.Get("Authorization")
			raw, _ := io.ReadAll(r.Body)
			require.NoError(t, json.Unmarshal(raw, &capture.body))
		}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, respBody)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestRouter(t *testing.T, gatewayURL, key string, convLog ConversationLogger) http.Handler {
	t.Helper()
	cfg := &config.Config{
		Gateway: config.GatewayConfig{URL: gatewayURL, APIKey: key, Model: "test-model"},
		Timeout: config.TimeoutConfig{Upstream: 5 * time.Second},
	}
	h := NewHandler(cfg, nil, convLog, nil)
	r := chi.NewRouter()
	r.Use(identity.Middleware(true))
	h.RegisterRoutes(r)
	return r
}

func postChat(t *testing.T, router http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(identity.SessionHeaderName, "sess-42")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var p domain.ErrorPayload
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	return p.Error
}

func TestHandleChatRelaysStream(t *testing.T) {
	stream := "data: {\"choices\":[{\"delta\":{\"content\":\"Answer: \"}}]}\n\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"**42**\"}}]}\n\n" +
		"data: [DONE]\n\n"
	var capture gatewayCapture
	gw := newGateway(t, http.StatusOK, stream, &capture)
	convLog := &recordingLogger{}
	router := newTestRouter(t, gw.URL, "gw-key", convLog)

	w := postChat(t, router, `{"messages":[{"role":"user","content":"What is 6 x 7?"}],"mode":"learn","topic":"Averages"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, stream, w.Body.String())

	assert.Equal(t, "Bearer gw-key", capture.auth)
	assert.Equal(t, "test-model", capture.body.Model)
	assert.True(t, capture.body.Stream)
	require.Len(t, capture.body.Messages, 2)
	system := capture.body.Messages[0]
	assert.Equal(t, domain.RoleSystem, system.Role)
	assert.Contains(t, system.Content.Text, "## CURRENT MODE: LEARN")
	assert.Contains(t, system.Content.Text, "## CURRENT TOPIC: Averages")
	assert.Equal(t, "What is 6 x 7?", capture.body.Messages[1].Content.Text)

	events := convLog.snapshot()
	require.Len(t, events, 2)
	assert.Equal(t, "chat_user_message", events[0].EventType)
	assert.Equal(t, "sess-42", events[0].SessionID)
	assert.Equal(t, "chat_assistant_message", events[1].EventType)
	assert.Equal(t, "Answer: **42**", events[1].ContentRaw)
	assert.Equal(t, 2, events[1].Meta["stream_chunks"])
	assert.Equal(t, false, events[1].Meta["partial"])
}

func TestHandleChatDefaultsModeToSolve(t *testing.T) {
	var capture gatewayCapture
	gw := newGateway(t, http.StatusOK, "data: [DONE]\n\n", &capture)
	router := newTestRouter(t, gw.URL, "gw-key", nil)

	w := postChat(t, router, `{"messages":[{"role":"user","content":[{"type":"text","text":"see"},{"type":"image_url","image_url":{"url":"data:image/png;base64,AA"}}]}]}`)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Contains(t, capture.body.Messages[0].Content.Text, "## CURRENT MODE: SOLVE")
	assert.NotContains(t, capture.body.Messages[0].Content.Text, "CURRENT TOPIC")
	parts := capture.body.Messages[1].Content.Parts
	require.Len(t, parts, 2)
	assert.Equal(t, "data:image/png;base64,AA", parts[1].ImageURL.URL)
}

func TestHandleChatUpstreamErrors(t *testing.T) {
	tests := []struct {
		name     string
		upstream int
		want     int
		message  string
	}{
		{"rate limited", http.StatusTooManyRequests, http.StatusTooManyRequests, MsgRateLimited},
		{"payment required", http.StatusPaymentRequired, http.StatusPaymentRequired, MsgCreditsExhausted},
		{"other", http.StatusBadGateway, http.StatusInternalServerError, MsgServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := newGateway(t, tt.upstream, `{"detail":"upstream said no"}`, nil)
			router := newTestRouter(t, gw.URL, "gw-key", nil)

			w := postChat(t, router, `{"messages":[{"role":"user","content":"hi"}]}`)
			assert.Equal(t, tt.want, w.Code)
			assert.Equal(t, tt.message, errorBody(t, w))
		})
	}
}

func TestHandleChatMissingKey(t *testing.T) {
	router := newTestRouter(t, "http://unused.invalid", "", nil)

	w := postChat(t, router, `{"messages":[]}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "GATEWAY_API_KEY is not configured", errorBody(t, w))
}

func TestHandleChatInvalidBody(t *testing.T) {
	router := newTestRouter(t, "http://unused.invalid", "gw-key", nil)

	w := postChat(t, router, `{"messages":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid request body", errorBody(t, w))
}

func TestHandleChatGatewayUnreachable(t *testing.T) {
	gw := httptest.NewServer(http.NotFoundHandler())
	url := gw.URL
	gw.Close()
	router := newTestRouter(t, url, "gw-key", nil)

	w := postChat(t, router, `{"messages":[{"role":"user","content":"hi"}]}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, errorBody(t, w), "gateway request")
}

func TestSystemPrompt(t *testing.T) {
	t.Parallel()

	assert.True(t, strings.HasPrefix(SystemPrompt("", ""), "You are AptitudeGuru"))
	assert.NotContains(t, SystemPrompt("freestyle", ""), "CURRENT MODE")
	eli := SystemPrompt(domain.ModeELI10, "Clocks")
	assert.Contains(t, eli, "## CURRENT MODE: ELI10\nThe user wants you to EXPLAIN LIKE THEY'RE 10")
	assert.True(t, strings.HasSuffix(eli, "## CURRENT TOPIC: Clocks\nFocus your response on this topic."))
}

func TestLastUserText(t *testing.T) {
	t.Parallel()

	msgs := []domain.WireMessage{
		{Role: domain.RoleUser, Content: domain.MessageContent{Text: "old"}},
		{Role: domain.RoleAssistant, Content: domain.MessageContent{Text: "reply"}},
		{Role: domain.RoleUser, Content: domain.MessageContent{Parts: []domain.ContentPart{
			{Type: "text", Text: "look"},
			{Type: "image_url", ImageURL: &domain.ImageURL{URL: "data:x"}},
		}}},
	}
	text, ok := lastUserText(msgs)
	require.True(t, ok)
	assert.Equal(t, "look [1 image(s)]", text)

	_, ok = lastUserText(nil)
	assert.False(t, ok)
}
