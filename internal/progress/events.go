package progress

import (
	"strings"
	"time"

	"github.com/ashureev/aptitude-tutor/internal/domain"
)

const (
	dayLayout = "2006-01-02"

	quickLearnerThreshold = 10
	topicExpertThreshold  = 50
	streakStarterDays     = 3
	streakMasterDays      = 7
	speedDemonLimit       = 2 * time.Minute
)

// EventKind names a scoring event.
type EventKind string

const (
	EventAnswered       EventKind = "answered"
	EventDailyChallenge EventKind = "daily_challenge"
	EventQuizCompleted  EventKind = "quiz_completed"
)

// Event is one entry of the append-only scoring log.
type Event struct {
	Kind    EventKind     `json:"kind"`
	Topic   string        `json:"topic,omitempty"`
	Elapsed time.Duration `json:"elapsed,omitempty"`
	At      time.Time     `json:"at"`
}

// Apply folds ev into p. It returns false when the event is rejected, which
// only happens for a second daily challenge on the same calendar day.
func Apply(p *domain.Progress, ev Event) bool {
	if p.TopicProgress == nil {
		p.TopicProgress = map[string]int{}
	}
	if p.EarnedBadges == nil {
		p.EarnedBadges = []string{}
	}

	switch ev.Kind {
	case EventAnswered:
		applyAnswer(p, ev)
	case EventDailyChallenge:
		today := dayKey(ev.At)
		if p.DailyChallengeCompleted == today {
			return false
		}
		p.XP += domain.XPRewards.DailyChallenge
		p.DailyChallengeCompleted = today
	case EventQuizCompleted:
		p.XP += domain.XPRewards.QuizCompleted
		if ev.Elapsed > 0 && ev.Elapsed < speedDemonLimit {
			p.AwardBadge(domain.BadgeSpeedDemon)
		}
	default:
		return false
	}

	applyStreak(p, ev.At)
	return true
}

// Replay reduces an event log into a fresh progress snapshot.
func Replay(events []Event) domain.Progress {
	p := domain.NewProgress()
	for _, ev := range events {
		Apply(&p, ev)
	}
	return p
}

func applyAnswer(p *domain.Progress, ev Event) {
	p.XP += domain.XPRewards.QuestionSolved
	p.QuestionsAnswered++

	if topic := strings.TrimSpace(ev.Topic); topic != "" {
		p.TopicProgress[topic]++
		if p.TopicProgress[topic] >= topicExpertThreshold {
			p.AwardBadge(domain.BadgeTopicExpert)
		}
	}

	if p.QuestionsAnswered == 1 {
		p.AwardBadge(domain.BadgeFirstSteps)
	}
	if p.QuestionsAnswered >= quickLearnerThreshold {
		p.AwardBadge(domain.BadgeQuickLearner)
	}
}

// applyStreak extends the streak when the last active day was yesterday and
// restarts it otherwise. Repeat activity on the same day changes nothing.
func applyStreak(p *domain.Progress, at time.Time) {
	today := dayKey(at)
	if p.LastActiveDate == today {
		return
	}

	if p.LastActiveDate == dayKey(at.AddDate(0, 0, -1)) {
		p.Streak++
	} else {
		p.Streak = 1
	}

	if p.Streak >= streakStarterDays {
		p.AwardBadge(domain.BadgeStreakStarter)
	}
	if p.Streak >= streakMasterDays {
		p.AwardBadge(domain.BadgeStreakMaster)
	}
	p.LastActiveDate = today
}

func dayKey(t time.Time) string {
	return t.Format(dayLayout)
}
