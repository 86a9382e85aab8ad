// Package progress tracks experience points, levels, streaks and badges.
//
// Scoring is defined by events folded with Apply. Store applies each event
// to its in-memory snapshot and persists only that snapshot; the events
// themselves are not stored. Replay rebuilds a snapshot from an event list
// and gives the same result as a Store fed the same events.
package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/aptitude-tutor/internal/domain"
	"github.com/ashureev/aptitude-tutor/internal/store"
)

// Store owns the process-wide progress snapshot and persists it after every change.
type Store struct {
	mu       sync.Mutex
	repo     store.Repository
	progress domain.Progress
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for calendar-day decisions.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// Load reads the persisted snapshot. A missing or unreadable blob yields the
// empty state; the failure is logged, never returned.
func Load(ctx context.Context, repo store.Repository, opts ...Option) *Store {
	s := &Store{
		repo:     repo,
		progress: domain.NewProgress(),
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	raw, err := repo.GetBlob(ctx, store.ProgressKey)
	if err != nil {
		s.logger.Warn("Failed to load progress, starting fresh", "error", err)
		return s
	}
	if raw == nil {
		return s
	}

	var p domain.Progress
	if err := json.Unmarshal(raw, &p); err != nil {
		s.logger.Warn("Failed to decode progress, starting fresh", "error", err)
		return s
	}
	if p.EarnedBadges == nil {
		p.EarnedBadges = []string{}
	}
	if p.TopicProgress == nil {
		p.TopicProgress = map[string]int{}
	}
	s.progress = p
	return s
}

// RecordAnswer credits one answered question, optionally for a topic.
func (s *Store) RecordAnswer(ctx context.Context, topic string) error {
	_, err := s.record(ctx, Event{Kind: EventAnswered, Topic: topic})
	return err
}

// UpdateStreak marks today as active.
func (s *Store) UpdateStreak(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.progress.LastActiveDate
	applyStreak(&s.progress, s.now())
	if s.progress.LastActiveDate == before {
		return nil
	}
	return s.persistLocked(ctx)
}

// CompleteDailyChallenge awards the daily bonus once per calendar day.
// It returns false when today's challenge was already completed.
func (s *Store) CompleteDailyChallenge(ctx context.Context) (bool, error) {
	return s.record(ctx, Event{Kind: EventDailyChallenge})
}

// IsDailyChallengeAvailable reports whether today's challenge is still open.
func (s *Store) IsDailyChallengeAvailable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress.DailyChallengeCompleted != dayKey(s.now())
}

// CompleteQuiz credits a finished quiz that took elapsed.
func (s *Store) CompleteQuiz(ctx context.Context, elapsed time.Duration) error {
	_, err := s.record(ctx, Event{Kind: EventQuizCompleted, Elapsed: elapsed})
	return err
}

// Snapshot returns a copy of the current progress.
func (s *Store) Snapshot() domain.Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress.Clone()
}

// Level returns the current tier.
func (s *Store) Level() domain.LevelInfo {
	return LevelFor(s.Snapshot().XP)
}

// LevelProgress returns the percentage through the current tier.
func (s *Store) LevelProgress() int {
	return LevelProgressPercent(s.Snapshot().XP)
}

// EarnedBadges returns the earned badges in catalog order.
func (s *Store) EarnedBadges() []domain.Badge {
	p := s.Snapshot()
	var out []domain.Badge
	for _, b := range domain.Badges {
		if p.HasBadge(b.ID) {
			out = append(out, b)
		}
	}
	return out
}

// Reset discards all progress and removes the persisted snapshot.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.DeleteBlob(ctx, store.ProgressKey); err != nil {
		return fmt.Errorf("reset progress: %w", err)
	}
	s.progress = domain.NewProgress()
	s.logger.Info("Progress reset")
	return nil
}

func (s *Store) record(ctx context.Context, ev Event) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev.At = s.now()
	if !Apply(&s.progress, ev) {
		return false, nil
	}
	s.logger.Debug("Progress event recorded",
		"kind", ev.Kind,
		"topic", ev.Topic,
		"xp", s.progress.XP,
		"streak", s.progress.Streak,
	)
	return true, s.persistLocked(ctx)
}

func (s *Store) persistLocked(ctx context.Context) error {
	data, err := json.Marshal(s.progress)
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}
	if err := s.repo.PutBlob(ctx, store.ProgressKey, data); err != nil {
		s.logger.Error("Failed to persist progress", "error", err)
		return fmt.Errorf("persist progress: %w", err)
	}
	return nil
}
