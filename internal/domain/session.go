package domain

import (
	"time"
)

// DefaultSessionTitle is the placeholder title of a session with no user message yet.
const DefaultSessionTitle = "New Chat"

// LearningMode selects how the tutor answers.
type LearningMode string

const (
	ModeSolve LearningMode = "solve"
	ModeLearn LearningMode = "learn"
	ModeQuiz  LearningMode = "quiz"
	ModeELI10 LearningMode = "eli10"
)

// Modes lists the learning modes in display order.
var Modes = []LearningMode{ModeSolve, ModeLearn, ModeQuiz, ModeELI10}

// Valid reports whether m is a known mode.
func (m LearningMode) Valid() bool {
	switch m {
	case ModeSolve, ModeLearn, ModeQuiz, ModeELI10:
		return true
	}
	return false
}

// WelcomeMessage returns the client-side greeting shown for the mode.
func (m LearningMode) WelcomeMessage() string {
	switch m {
	case ModeSolve:
		return "Hello! 👋 I'm **AptitudeGuru**, your aptitude expert! Send me any question (text or image) and I'll solve it step-by-step with shortcuts. Let's crack it! 🎯"
	case ModeLearn:
		return "Hello! 👋 I'm **AptitudeGuru**! Tell me what topic you want to learn - I'll explain it with real examples, practice problems, and memory tricks! 📚"
	case ModeQuiz:
		return "Hello! 👋 Welcome to **Quiz Mode**! Tell me a topic and I'll test you with questions. Ask for hints if you need them. Ready to challenge yourself? 🧠"
	case ModeELI10:
		return "Hey there! 👋 I'm **AptitudeGuru**! I'll explain things super simply - like you're 10 years old! No boring stuff, just fun examples. What do you want to learn? 🎈"
	default:
		return "Hello! 👋 I'm **AptitudeGuru**, your friendly aptitude tutor! How can I help you today? 🎯"
	}
}

// ChatSession is a stored conversation with its metadata.
type ChatSession struct {
	ID        string       `json:"id"`
	Title     string       `json:"title"`
	Messages  []Message    `json:"messages"`
	Mode      LearningMode `json:"mode"`
	Topic     string       `json:"topic,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// FirstUserMessage returns the first user-authored message, if any.
func (s *ChatSession) FirstUserMessage() (Message, bool) {
	for _, m := range s.Messages {
		if m.Role == RoleUser {
			return m, true
		}
	}
	return Message{}, false
}
