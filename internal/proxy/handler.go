// Package proxy relays tutor chat requests to the hosted completions gateway.
package proxy

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
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ashureev/aptitude-tutor/internal/api"
	"github.com/ashureev/aptitude-tutor/internal/config"
	"github.com/ashureev/aptitude-tutor/internal/domain"
	"github.com/ashureev/aptitude-tutor/internal/identity"
	"github.com/ashureev/aptitude-tutor/internal/sse"
)

const (
	defaultMaxRequestBodySize = 10 << 20
	relayChunkSize            = 4096
	maxUpstreamErrorBody      = 1 << 16
)

// Client-facing error texts for upstream failures.
const (
	MsgRateLimited        = "Rate limits exceeded, please try again later."
	MsgCreditsExhausted   = "AI credits exhausted. Please add more credits to continue."
	MsgServiceUnavailable = "AI service temporarily unavailable"
)

// ChatRequest is the body accepted by HandleChat.
type ChatRequest struct {
	Messages []domain.WireMessage `json:"messages"`
	Mode     domain.LearningMode  `json:"mode"`
	Topic    string               `json:"topic,omitempty"`
}

type gatewayRequest struct {
	Model    string               `json:"model"`
	Messages []domain.WireMessage `json:"messages"`
	Stream   bool                 `json:"stream"`
}

// Handler relays chat requests and streams the gateway's SSE answer back.
type Handler struct {
	gateway     config.GatewayConfig
	timeout     time.Duration
	maxBodySize int64
	httpClient  *http.Client
	log         ConversationLogger
	logger      *slog.Logger
}

// NewHandler creates a proxy handler. A nil conversation logger disables
// conversation logging.
func NewHandler(cfg *config.Config, httpClient *http.Client, conversationLogger ConversationLogger, logger *slog.Logger) *Handler {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if conversationLogger == nil {
		conversationLogger = noopConversationLogger{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	maxBody := cfg.MaxRequestBodySize
	if maxBody <= 0 {
		maxBody = defaultMaxRequestBodySize
	}
	return &Handler{
		gateway:     cfg.Gateway,
		timeout:     cfg.Timeout.Upstream,
		maxBodySize: maxBody,
		httpClient:  httpClient,
		log:         conversationLogger,
		logger:      logger,
	}
}

// RegisterRoutes registers the chat relay route.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/v1/chat", h.HandleChat)
}

// GatewayConfigured reports whether a gateway key is present.
func (h *Handler) GatewayConfigured(context.Context) error {
	if h.gateway.APIKey == "" {
		return errors.New("gateway API key is not configured")
	}
	return nil
}

// Close releases handler resources.
func (h *Handler) Close() {
	if err := h.log.Close(); err != nil {
		h.logger.Warn("failed to close conversation logger", "error", err)
	}
}

// HandleChat handles POST /v1/chat.
//
//nolint:gocyclo // Validation and streaming branches are kept inline to preserve request flow.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	clientID := identity.ClientIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	reqID := chiMiddleware.GetReqID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			api.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Mode == "" {
		req.Mode = domain.ModeSolve
	}

	if h.gateway.APIKey == "" {
		h.logger.Error("Gateway API key missing")
		api.Error(w, http.StatusInternalServerError, "GATEWAY_API_KEY is not configured")
		return
	}

	topicLabel := req.Topic
	if topicLabel == "" {
		topicLabel = "general"
	}
	h.logger.Info("Tutor chat request",
		"client_id", clientID,
		"session_id", sessionID,
		"mode", req.Mode,
		"topic", topicLabel,
		"messages", len(req.Messages),
	)
	if text, ok := lastUserText(req.Messages); ok {
		h.log.Log(ConversationLogEvent{
			Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
			ClientID:   clientID,
			SessionID:  sessionID,
			Channel:    "chat_http",
			Direction:  "outbound",
			EventType:  "chat_user_message",
			Mode:       string(req.Mode),
			Topic:      req.Topic,
			ContentRaw: text,
			Content:    cleanForReadability(text),
			Meta: map[string]any{
				"request_id": reqID,
				"messages":   len(req.Messages),
			},
		})
	}

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	resp, err := h.forward(ctx, req)
	if err != nil {
		h.logger.Error("Gateway request failed", "error", err, "session_id", sessionID)
		api.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		h.writeUpstreamError(w, resp)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		api.Error(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	w.WriteHeader(http.StatusOK)
	h.logger.Info("Streaming response started", "session_id", sessionID)

	var assistantContent strings.Builder
	streamChunks := 0
	dec := sse.NewDecoder()
	parser := sse.NewParser()
	collect := func(delta string) {
		streamChunks++
		assistantContent.WriteString(delta)
	}

	partial := false
	streamErrMsg := ""
	buf := make([]byte, relayChunkSize)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				h.logger.Warn("failed to relay SSE chunk", "error", err)
				partial = true
				streamErrMsg = err.Error()
				break
			}
			flusher.Flush()
			parser.Feed(dec.Decode(buf[:n], false), collect)
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			h.logger.Error("Gateway stream failed", "error", readErr)
			partial = true
			streamErrMsg = readErr.Error()
			break
		}
	}
	parser.Feed(dec.Decode(nil, true), collect)
	parser.Flush(collect)

	h.logAssistantMessage(clientID, sessionID, req, assistantContent.String(), streamChunks, partial, streamErrMsg, reqID)
}

func (h *Handler) forward(ctx context.Context, req ChatRequest) (*http.Response, error) {
	messages := make([]domain.WireMessage, 0, len(req.Messages)+1)
	messages = append(messages, domain.WireMessage{
		Role:    domain.RoleSystem,
		Content: domain.MessageContent{Text: SystemPrompt(req.Mode, req.Topic)},
	})
	messages = append(messages, req.Messages...)

	body, err := json.Marshal(gatewayRequest{Model: h.gateway.Model, Messages: messages, Stream: true})
	if err != nil {
		return nil, fmt.Errorf("marshal gateway request: %w", err)
	}

	upstream, err := http.NewRequestWithContext(ctx, http.MethodPost, h.gateway.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create gateway request: %w", err)
	}
	upstream.Header.Set("Authorization", "Bearer "+h.gateway.APIKey)
	upstream.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(upstream)
	if err != nil {
		return nil, fmt.Errorf("gateway request: %w", err)
	}
	return resp, nil
}

func (h *Handler) writeUpstreamError(w http.ResponseWriter, resp *http.Response) {
	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		h.logger.Error("Gateway rate limit exceeded")
		api.Error(w, http.StatusTooManyRequests, MsgRateLimited)
	case http.StatusPaymentRequired:
		h.logger.Error("Gateway payment required")
		api.Error(w, http.StatusPaymentRequired, MsgCreditsExhausted)
	default:
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamErrorBody))
		h.logger.Error("AI gateway error", "status", resp.StatusCode, "body", string(raw))
		api.Error(w, http.StatusInternalServerError, MsgServiceUnavailable)
	}
}

func (h *Handler) logAssistantMessage(clientID, sessionID string, req ChatRequest, content string, streamChunks int, partial bool, streamErrMsg, requestID string) {
	h.log.Log(ConversationLogEvent{
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		ClientID:   clientID,
		SessionID:  sessionID,
		Channel:    "chat_http",
		Direction:  "inbound",
		EventType:  "chat_assistant_message",
		Mode:       string(req.Mode),
		Topic:      req.Topic,
		ContentRaw: content,
		Content:    cleanForReadability(content),
		Meta: map[string]any{
			"stream_chunks": streamChunks,
			"partial":       partial,
			"stream_error":  streamErrMsg,
			"request_id":    requestID,
		},
	})
}

// lastUserText returns the text of the newest user message, including the
// text part of a multi-part message.
func lastUserText(messages []domain.WireMessage) (string, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		if m.Role != domain.RoleUser {
			continue
		}
		if m.Content.Parts == nil {
			return m.Content.Text, true
		}
		var texts []string
		images := 0
		for _, p := range m.Content.Parts {
			switch p.Type {
			case "text":
				texts = append(texts, p.Text)
			case "image_url":
				images++
			}
		}
		text := strings.Join(texts, "\n")
		if images > 0 {
			text = strings.TrimSpace(fmt.Sprintf("%s [%d image(s)]", text, images))
		}
		return text, true
	}
	return "", false
}
