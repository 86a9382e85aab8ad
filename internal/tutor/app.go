// Package tutor wires the chat client, progress tracking and session history
// into one interactive application.
package tutor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/aptitude-tutor/internal/chat"
	"github.com/ashureev/aptitude-tutor/internal/domain"
	"github.com/ashureev/aptitude-tutor/internal/history"
	"github.com/ashureev/aptitude-tutor/internal/progress"
)

// Canned prompts sent by quick actions.
const (
	DailyChallengePrompt = "Give me today's daily challenge! I want to earn bonus XP."
	RandomQuestionPrompt = "Give me a random aptitude question to solve!"
	learnTopicPrompt     = "Teach me about %s with an example"
)

var (
	ErrUnknownMode           = errors.New("unknown learning mode")
	ErrUnknownTopic          = errors.New("unknown topic")
	ErrUnknownSession        = errors.New("unknown session")
	ErrDailyChallengeDone    = errors.New("today's daily challenge is already completed")
	ErrQuizNotStarted        = errors.New("no quiz in progress")
	ErrQuizAlreadyInProgress = errors.New("a quiz is already in progress")
)

// Deps are the collaborators of an App.
type Deps struct {
	Chat     chat.Config
	Progress *progress.Store
	History  *history.Store
	Logger   *slog.Logger
	// Now overrides the clock used for quiz timing.
	Now func() time.Time
}

// App is the tutor application state shared by every front end.
type App struct {
	client   *chat.Client
	progress *progress.Store
	history  *history.Store
	logger   *slog.Logger
	now      func() time.Time

	mu          sync.Mutex
	quizStarted time.Time
}

// New builds an App. Successful exchanges award answer XP for the current topic.
func New(deps Deps) *App {
	a := &App{
		progress: deps.Progress,
		history:  deps.History,
		logger:   deps.Logger,
		now:      deps.Now,
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.now == nil {
		a.now = time.Now
	}

	cfg := deps.Chat
	userUpdate := cfg.OnUpdate
	cfg.OnUpdate = func(m domain.Message) {
		if m.Role == domain.RoleUser {
			a.saveActive()
		}
		if userUpdate != nil {
			userUpdate(m)
		}
	}
	userComplete := cfg.OnComplete
	cfg.OnComplete = func() {
		a.onExchangeComplete()
		if userComplete != nil {
			userComplete()
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = a.logger
	}
	a.client = chat.New(cfg)
	return a
}

// Client returns the underlying chat client.
func (a *App) Client() *chat.Client { return a.client }

// Progress returns the progress store.
func (a *App) Progress() *progress.Store { return a.progress }

// History returns the session store.
func (a *App) History() *history.Store { return a.history }

// Messages returns the live transcript.
func (a *App) Messages() []domain.Message { return a.client.Messages() }

func (a *App) onExchangeComplete() {
	if err := a.progress.RecordAnswer(context.Background(), a.client.Topic()); err != nil {
		a.logger.Warn("Failed to record answer", "error", err)
	}
}

// Send sends a message in the active session, creating a session first when
// none is active. The transcript is saved once the user turn is appended and
// again when the exchange ends, whether or not it succeeded.
func (a *App) Send(ctx context.Context, content, image string) error {
	if strings.TrimSpace(content) == "" && image == "" {
		return chat.ErrEmptyMessage
	}
	if a.client.IsStreaming() {
		return chat.ErrStreamInProgress
	}

	sessionID := a.history.Active()
	if sessionID == "" {
		id, err := a.history.Create(ctx, a.client.Mode(), a.client.Topic())
		if err != nil {
			a.logger.Warn("Failed to persist new session", "error", err)
		}
		sessionID = id
		a.client.SetSessionID(id)
	}

	sendErr := a.client.Send(ctx, content, image)
	if errors.Is(sendErr, chat.ErrStreamInProgress) {
		return sendErr
	}
	a.saveTranscript(ctx, sessionID)
	return sendErr
}

// saveActive stores the transcript in the active session, if any.
func (a *App) saveActive() {
	if id := a.history.Active(); id != "" {
		a.saveTranscript(context.Background(), id)
	}
}

func (a *App) saveTranscript(ctx context.Context, sessionID string) {
	msgs := a.client.Messages()
	if len(msgs) <= 1 {
		return
	}
	if err := a.history.Update(ctx, sessionID, msgs, a.client.Mode(), a.client.Topic()); err != nil {
		a.logger.Warn("Failed to save session", "session_id", sessionID, "error", err)
	}
}

// NewChat detaches from the active session and restores the greeting.
func (a *App) NewChat() {
	a.history.SetActive("")
	a.client.SetSessionID("")
	a.client.Reset(a.client.Mode())
}

// SelectSession loads a stored session into the transcript.
func (a *App) SelectSession(id string) (domain.ChatSession, error) {
	sess, ok := a.history.Get(id)
	if !ok {
		return domain.ChatSession{}, fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	a.history.SetActive(id)
	a.client.SetSessionID(id)
	a.client.Load(sess.Messages, sess.Mode, sess.Topic)
	return sess, nil
}

// DeleteSession removes a stored session and starts over when it was active.
func (a *App) DeleteSession(ctx context.Context, id string) error {
	if _, ok := a.history.Get(id); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	wasActive, err := a.history.Delete(ctx, id)
	if wasActive {
		a.client.SetSessionID("")
		a.client.Reset(a.client.Mode())
	}
	return err
}

// ClearHistory deletes every stored session and starts over.
func (a *App) ClearHistory(ctx context.Context) error {
	if err := a.history.Clear(ctx); err != nil {
		return err
	}
	a.client.SetSessionID("")
	a.client.Reset(a.client.Mode())
	return nil
}

// SetMode switches the learning mode and starts a fresh conversation.
func (a *App) SetMode(mode domain.LearningMode) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	a.client.SetMode(mode)
	a.NewChat()
	return nil
}

// SetTopic sets the topic focus by catalog name. "" or "none" clears it.
func (a *App) SetTopic(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "none") {
		a.client.SetTopic("")
		return "", nil
	}
	topic, ok := domain.LookupTopic(name)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTopic, name)
	}
	a.client.SetTopic(topic)
	return topic, nil
}

// DailyChallenge asks for today's challenge and awards the bonus once the
// answer has streamed in.
func (a *App) DailyChallenge(ctx context.Context) (bool, error) {
	if !a.progress.IsDailyChallengeAvailable() {
		return false, ErrDailyChallengeDone
	}
	if err := a.Send(ctx, DailyChallengePrompt, ""); err != nil {
		return false, err
	}
	return a.progress.CompleteDailyChallenge(ctx)
}

// RandomQuestion asks for a random practice question.
func (a *App) RandomQuestion(ctx context.Context) error {
	return a.Send(ctx, RandomQuestionPrompt, "")
}

// LearnTopic asks for an explanation of topic.
func (a *App) LearnTopic(ctx context.Context, topic string) error {
	if canonical, ok := domain.LookupTopic(topic); ok {
		topic = canonical
	}
	return a.Send(ctx, fmt.Sprintf(learnTopicPrompt, topic), "")
}

// StartQuiz starts the quiz timer.
func (a *App) StartQuiz() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.quizStarted.IsZero() {
		return ErrQuizAlreadyInProgress
	}
	a.quizStarted = a.now()
	return nil
}

// FinishQuiz stops the quiz timer and credits the quiz.
func (a *App) FinishQuiz(ctx context.Context) (time.Duration, error) {
	a.mu.Lock()
	started := a.quizStarted
	a.quizStarted = time.Time{}
	a.mu.Unlock()

	if started.IsZero() {
		return 0, ErrQuizNotStarted
	}
	elapsed := a.now().Sub(started)
	return elapsed, a.progress.CompleteQuiz(ctx, elapsed)
}

// QuizRunning reports whether the quiz timer is running.
func (a *App) QuizRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return !a.quizStarted.IsZero()
}
