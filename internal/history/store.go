// Package history persists chat sessions locally.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/aptitude-tutor/internal/domain"
	"github.com/ashureev/aptitude-tutor/internal/store"
)

const (
	// MaxSessions bounds the number of stored sessions.
	MaxSessions = 50
	// MaxMessages bounds the transcript kept per session.
	MaxMessages = 50
	// TitleRunes is the number of characters kept when deriving a title.
	TitleRunes = 40
)

// Store holds the session collection, most recently created first.
type Store struct {
	mu       sync.Mutex
	repo     store.Repository
	sessions []domain.ChatSession
	activeID string
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// Load reads the persisted session list. Missing or corrupt data yields an
// empty collection.
func Load(ctx context.Context, repo store.Repository, opts ...Option) *Store {
	s := &Store{
		repo:   repo,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	raw, err := repo.GetBlob(ctx, store.HistoryKey)
	if err != nil {
		s.logger.Warn("Failed to load chat history", "error", err)
		return s
	}
	if raw == nil {
		return s
	}
	var sessions []domain.ChatSession
	if err := json.Unmarshal(raw, &sessions); err != nil {
		s.logger.Warn("Failed to parse chat history", "error", err)
		return s
	}
	if len(sessions) > MaxSessions {
		sessions = sessions[:MaxSessions]
	}
	s.sessions = sessions
	return s
}

// Create starts an empty session, makes it active and returns its id.
func (s *Store) Create(ctx context.Context, mode domain.LearningMode, topic string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sess := domain.ChatSession{
		ID:        uuid.NewString(),
		Title:     domain.DefaultSessionTitle,
		Messages:  []domain.Message{},
		Mode:      mode,
		Topic:     topic,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.sessions = append([]domain.ChatSession{sess}, s.sessions...)
	if len(s.sessions) > MaxSessions {
		s.sessions = s.sessions[:MaxSessions]
	}
	s.activeID = sess.ID

	s.logger.Debug("Chat session created", "session_id", sess.ID, "mode", mode)
	return sess.ID, s.persistLocked(ctx)
}

// Update replaces the transcript of session id. Empty mode or topic keep the
// stored values. Unknown ids are ignored.
func (s *Store) Update(ctx context.Context, id string, messages []domain.Message, mode domain.LearningMode, topic string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return nil
	}
	sess := &s.sessions[idx]

	if len(messages) > MaxMessages {
		messages = messages[len(messages)-MaxMessages:]
	}
	sess.Messages = append([]domain.Message(nil), messages...)

	if sess.Title == domain.DefaultSessionTitle {
		sess.Title = DeriveTitle(sess.Messages)
	}
	if mode != "" {
		sess.Mode = mode
	}
	if topic != "" {
		sess.Topic = topic
	}
	sess.UpdatedAt = s.now()

	return s.persistLocked(ctx)
}

// Delete removes session id. It reports whether the session was the active
// one, in which case no session is active afterwards.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return false, nil
	}
	s.sessions = append(s.sessions[:idx], s.sessions[idx+1:]...)

	wasActive := s.activeID == id
	if wasActive {
		s.activeID = ""
	}
	return wasActive, s.persistLocked(ctx)
}

// Clear removes every session and the persisted list.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.DeleteBlob(ctx, store.HistoryKey); err != nil {
		return fmt.Errorf("clear chat history: %w", err)
	}
	s.sessions = nil
	s.activeID = ""
	return nil
}

// Get returns a copy of session id.
func (s *Store) Get(id string) (domain.ChatSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return domain.ChatSession{}, false
	}
	return cloneSession(s.sessions[idx]), true
}

// List returns all sessions, most recently created first.
func (s *Store) List() []domain.ChatSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.ChatSession, len(s.sessions))
	for i, sess := range s.sessions {
		out[i] = cloneSession(sess)
	}
	return out
}

// Active returns the id of the active session, or "" when none is active.
func (s *Store) Active() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// SetActive selects session id. It returns false for an unknown id.
// An empty id clears the selection.
func (s *Store) SetActive(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == "" {
		s.activeID = ""
		return true
	}
	if s.indexLocked(id) < 0 {
		return false
	}
	s.activeID = id
	return true
}

// ListGroupedByRecency buckets the sessions relative to the current time.
func (s *Store) ListGroupedByRecency() Groups {
	return GroupByRecency(s.List(), s.now())
}

func (s *Store) indexLocked(id string) int {
	for i := range s.sessions {
		if s.sessions[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) persistLocked(ctx context.Context) error {
	sessions := s.sessions
	if sessions == nil {
		sessions = []domain.ChatSession{}
	}
	data, err := json.Marshal(sessions)
	if err != nil {
		return fmt.Errorf("marshal chat history: %w", err)
	}
	if err := s.repo.PutBlob(ctx, store.HistoryKey, data); err != nil {
		s.logger.Error("Failed to persist chat history", "error", err)
		return fmt.Errorf("persist chat history: %w", err)
	}
	return nil
}

// DeriveTitle builds a session title from the first user message. Messages
// without text leave the default title in place.
func DeriveTitle(messages []domain.Message) string {
	for _, m := range messages {
		if m.Role != domain.RoleUser {
			continue
		}
		if m.Content == "" {
			return domain.DefaultSessionTitle
		}
		runes := []rune(m.Content)
		if len(runes) <= TitleRunes {
			return m.Content
		}
		return string(runes[:TitleRunes]) + "..."
	}
	return domain.DefaultSessionTitle
}

func cloneSession(sess domain.ChatSession) domain.ChatSession {
	sess.Messages = append([]domain.Message(nil), sess.Messages...)
	return sess
}
