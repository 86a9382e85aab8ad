// Package chat implements the streaming chat client that talks to the proxy.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/aptitude-tutor/internal/domain"
	"github.com/ashureev/aptitude-tutor/internal/sse"
)

const (
	// ContextWindow is the number of transcript entries sent upstream.
	ContextWindow = 10

	readChunkSize    = 4096
	maxErrorBodySize = 1 << 16
)

// Config configures a Client.
type Config struct {
	ProxyURL   string
	ClientKey  string
	HTTPClient *http.Client
	Mode       domain.LearningMode
	Topic      string
	// RequestTimeout bounds a whole exchange. Zero means no deadline.
	RequestTimeout time.Duration
	Logger         *slog.Logger

	// OnUpdate observes every message appended to or changed in the transcript.
	OnUpdate func(domain.Message)
	// OnComplete runs once per successful exchange.
	OnComplete func()
}

// Client owns one conversation transcript and runs one exchange at a time.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger

	mu        sync.Mutex
	messages  []domain.Message
	mode      domain.LearningMode
	topic     string
	sessionID string

	streaming atomic.Bool
}

// New creates a client whose transcript starts with the mode's greeting.
func New(cfg Config) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if !cfg.Mode.Valid() {
		cfg.Mode = domain.ModeSolve
	}
	c := &Client{
		cfg:        cfg,
		httpClient: cfg.HTTPClient,
		logger:     cfg.Logger,
		mode:       cfg.Mode,
		topic:      cfg.Topic,
	}
	c.messages = []domain.Message{greeting(c.mode)}
	return c
}

func greeting(mode domain.LearningMode) domain.Message {
	return domain.Message{
		ID:       newID(),
		Role:     domain.RoleAssistant,
		Content:  mode.WelcomeMessage(),
		Greeting: true,
	}
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Messages returns a copy of the transcript.
func (c *Client) Messages() []domain.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.Message(nil), c.messages...)
}

// IsStreaming reports whether an exchange is in flight.
func (c *Client) IsStreaming() bool {
	return c.streaming.Load()
}

// Mode returns the current learning mode.
func (c *Client) Mode() domain.LearningMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// Topic returns the current topic focus.
func (c *Client) Topic() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.topic
}

// Reset replaces the transcript with the greeting for mode.
func (c *Client) Reset(mode domain.LearningMode) {
	if !mode.Valid() {
		mode = domain.ModeSolve
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = mode
	c.messages = []domain.Message{greeting(mode)}
}

// Load replaces the transcript with a stored conversation. An empty transcript
// falls back to the greeting.
func (c *Client) Load(messages []domain.Message, mode domain.LearningMode, topic string) {
	if !mode.Valid() {
		mode = domain.ModeSolve
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = mode
	c.topic = topic
	if len(messages) == 0 {
		c.messages = []domain.Message{greeting(mode)}
		return
	}
	c.messages = append([]domain.Message(nil), messages...)
}

// SetMode changes the mode sent with later exchanges.
func (c *Client) SetMode(mode domain.LearningMode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = mode
}

// SetTopic changes the topic focus. An empty topic clears it.
func (c *Client) SetTopic(topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.topic = topic
}

// SetSessionID attaches the exchange to a stored session for proxy-side logging.
func (c *Client) SetSessionID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionID = id
}

// Send posts content (and an optional encoded image) and streams the answer
// into the transcript. Failures end in a synthetic assistant error message
// and are also returned.
func (c *Client) Send(ctx context.Context, content, image string) error {
	if strings.TrimSpace(content) == "" && image == "" {
		return ErrEmptyMessage
	}
	if !c.streaming.CompareAndSwap(false, true) {
		return ErrStreamInProgress
	}
	defer c.streaming.Store(false)

	user := domain.Message{ID: newID(), Role: domain.RoleUser, Content: content, Image: image}

	c.mu.Lock()
	prior := c.messages
	c.messages = append(append([]domain.Message(nil), prior...), user)
	req := domain.ProxyRequest{
		Messages: buildContext(prior, user),
		Mode:     c.mode,
		Topic:    c.topic,
	}
	sessionID := c.sessionID
	c.mu.Unlock()
	c.notify(user)

	if c.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.RequestTimeout)
		defer cancel()
	}

	start := time.Now()
	assistantID, err := c.exchange(ctx, req, sessionID)
	if err != nil {
		c.logger.Warn("Chat exchange failed",
			"session_id", sessionID,
			"error", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		c.fail(assistantID, err)
		return err
	}

	c.logger.Debug("Chat exchange completed",
		"session_id", sessionID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	if c.cfg.OnComplete != nil {
		c.cfg.OnComplete()
	}
	return nil
}

// buildContext converts the transcript into the outbound message list. A
// greeting placeholder is dropped while no real exchange exists, error
// bubbles are never sent, and only the newest ContextWindow entries remain.
func buildContext(prior []domain.Message, user domain.Message) []domain.WireMessage {
	hasExchange := false
	for _, m := range prior {
		if !m.Greeting && !m.Error {
			hasExchange = true
			break
		}
	}

	out := make([]domain.WireMessage, 0, len(prior)+1)
	for _, m := range prior {
		if m.Error || (m.Greeting && !hasExchange) {
			continue
		}
		out = append(out, m.ToWire())
	}
	out = append(out, user.ToWire())

	if len(out) > ContextWindow {
		out = out[len(out)-ContextWindow:]
	}
	return out
}

// exchange performs the request and consumes the stream. It returns the id
// of the assistant placeholder once one has been appended.
func (c *Client) exchange(ctx context.Context, body domain.ProxyRequest, sessionID string) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.ProxyURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req, sessionID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &TransportError{Op: "send request", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return "", parseStatusError(resp.StatusCode, raw)
	}

	assistant := domain.Message{ID: newID(), Role: domain.RoleAssistant}
	c.mu.Lock()
	c.messages = append(c.messages, assistant)
	c.mu.Unlock()
	c.notify(assistant)

	var content strings.Builder
	emit := func(delta string) {
		content.WriteString(delta)
		c.setContent(assistant.ID, content.String())
	}

	dec := sse.NewDecoder()
	parser := sse.NewParser()
	buf := make([]byte, readChunkSize)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if parser.Feed(dec.Decode(buf[:n], false), emit) {
				return assistant.ID, nil
			}
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				readErr = ctxErr
			}
			return assistant.ID, &TransportError{Op: "read stream", Err: readErr}
		}
	}

	if tail := dec.Decode(nil, true); tail != "" {
		if parser.Feed(tail, emit) {
			return assistant.ID, nil
		}
	}
	parser.Flush(emit)
	return assistant.ID, nil
}

func (c *Client) setHeaders(req *http.Request, sessionID string) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if c.cfg.ClientKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.ClientKey)
	}
	if sessionID != "" {
		req.Header.Set("X-Session-ID", sessionID)
	}
}

func parseStatusError(status int, raw []byte) *UpstreamStatusError {
	var payload domain.ErrorPayload
	msg := ""
	if err := json.Unmarshal(raw, &payload); err == nil {
		msg = strings.TrimSpace(payload.Error)
	}
	if msg == "" {
		msg = fmt.Sprintf("Request failed with status %d", status)
	}
	return &UpstreamStatusError{Status: status, Kind: KindForStatus(status), Message: msg}
}

func (c *Client) setContent(id, content string) {
	c.mu.Lock()
	var updated domain.Message
	found := false
	for i := range c.messages {
		if c.messages[i].ID == id {
			c.messages[i].Content = content
			updated = c.messages[i]
			found = true
			break
		}
	}
	c.mu.Unlock()
	if found {
		c.notify(updated)
	}
}

// fail drops an assistant placeholder that never received text and appends
// the error bubble.
func (c *Client) fail(assistantID string, err error) {
	bubble := domain.Message{
		ID:      newID(),
		Role:    domain.RoleAssistant,
		Content: Reason(err),
		Error:   true,
	}

	c.mu.Lock()
	if assistantID != "" {
		for i := range c.messages {
			if c.messages[i].ID == assistantID && c.messages[i].Content == "" {
				c.messages = append(c.messages[:i], c.messages[i+1:]...)
				break
			}
		}
	}
	c.messages = append(c.messages, bubble)
	c.mu.Unlock()
	c.notify(bubble)
}

func (c *Client) notify(m domain.Message) {
	if c.cfg.OnUpdate != nil {
		c.cfg.OnUpdate(m)
	}
}
