package history

import (
	"time"

	"github.com/ashureev/aptitude-tutor/internal/domain"
)

// Groups partitions sessions by the recency of their last update.
type Groups struct {
	Today     []domain.ChatSession
	Yesterday []domain.ChatSession
	LastWeek  []domain.ChatSession
	Older     []domain.ChatSession
}

// Len returns the number of grouped sessions.
func (g Groups) Len() int {
	return len(g.Today) + len(g.Yesterday) + len(g.LastWeek) + len(g.Older)
}

// GroupByRecency buckets sessions by UpdatedAt. Boundaries are aligned to
// local midnight of now: today, the 24h before it, the 7 days before it, and
// everything earlier. Input order is preserved within each bucket.
func GroupByRecency(sessions []domain.ChatSession, now time.Time) Groups {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	yesterday := today.Add(-24 * time.Hour)
	lastWeek := today.Add(-7 * 24 * time.Hour)

	var g Groups
	for _, sess := range sessions {
		switch at := sess.UpdatedAt; {
		case !at.Before(today):
			g.Today = append(g.Today, sess)
		case !at.Before(yesterday):
			g.Yesterday = append(g.Yesterday, sess)
		case !at.Before(lastWeek):
			g.LastWeek = append(g.LastWeek, sess)
		default:
			g.Older = append(g.Older, sess)
		}
	}
	return g
}
