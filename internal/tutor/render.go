package tutor

import (
	"fmt"
	"io"
	"strings"

	"github.com/ashureev/aptitude-tutor/internal/domain"
	"github.com/ashureev/aptitude-tutor/internal/history"
	"github.com/ashureev/aptitude-tutor/internal/progress"
)

const assistantLabel = "AptitudeGuru"

// StreamPrinter renders transcript updates incrementally. Each update only
// prints the text not yet shown for that message.
type StreamPrinter struct {
	w       io.Writer
	current string
	printed int
}

// NewStreamPrinter returns a printer writing to w.
func NewStreamPrinter(w io.Writer) *StreamPrinter {
	return &StreamPrinter{w: w}
}

// Update is suitable as a chat OnUpdate observer.
func (p *StreamPrinter) Update(m domain.Message) {
	if m.Role == domain.RoleUser {
		return
	}
	if m.Error {
		p.current, p.printed = "", 0
		fmt.Fprintf(p.w, "\nSorry, I encountered an error: %s. Please try again! 🙏\n", m.Content)
		return
	}
	if m.ID != p.current {
		if p.current != "" {
			fmt.Fprintln(p.w)
		}
		p.current, p.printed = m.ID, 0
		fmt.Fprintf(p.w, "\n%s: ", assistantLabel)
	}
	if len(m.Content) > p.printed {
		io.WriteString(p.w, m.Content[p.printed:])
		p.printed = len(m.Content)
	}
}

// End terminates the current assistant line.
func (p *StreamPrinter) End() {
	if p.current != "" {
		fmt.Fprintln(p.w)
	}
	p.current, p.printed = "", 0
}

// WriteProgress prints the level, XP, streak and badges.
func WriteProgress(w io.Writer, store *progress.Store) error {
	p := store.Snapshot()
	lvl := progress.LevelFor(p.XP)
	pct := progress.LevelProgressPercent(p.XP)

	var b strings.Builder
	fmt.Fprintf(&b, "Level: %s (%d XP)\n", lvl.Title, p.XP)
	fmt.Fprintf(&b, "Progress: [%s] %d%%\n", bar(pct, 20), pct)
	fmt.Fprintf(&b, "Streak: %d day(s)   Questions answered: %d\n", p.Streak, p.QuestionsAnswered)
	if store.IsDailyChallengeAvailable() {
		fmt.Fprintf(&b, "Daily challenge: available (+%d XP)\n", domain.XPRewards.DailyChallenge)
	} else {
		b.WriteString("Daily challenge: done for today\n")
	}

	badges := store.EarnedBadges()
	if len(badges) == 0 {
		b.WriteString("Badges: none yet\n")
	} else {
		b.WriteString("Badges:\n")
		for _, badge := range badges {
			fmt.Fprintf(&b, "  %s %s - %s\n", badge.Icon, badge.Name, badge.Description)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func bar(pct, width int) string {
	filled := pct * width / 100
	return strings.Repeat("#", filled) + strings.Repeat("-", width-filled)
}

// WriteHistory prints saved sessions grouped by recency.
func WriteHistory(w io.Writer, g history.Groups, activeID string) error {
	if g.Len() == 0 {
		_, err := io.WriteString(w, "No saved chats yet.\n")
		return err
	}

	var b strings.Builder
	section := func(label string, sessions []domain.ChatSession) {
		if len(sessions) == 0 {
			return
		}
		fmt.Fprintf(&b, "%s\n", label)
		for _, s := range sessions {
			marker := " "
			if s.ID == activeID {
				marker = "*"
			}
			fmt.Fprintf(&b, " %s %s  %-5s  %s\n", marker, shortID(s.ID), s.Mode, s.Title)
		}
	}
	section("Today", g.Today)
	section("Yesterday", g.Yesterday)
	section("Previous 7 days", g.LastWeek)
	section("Older", g.Older)

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteTranscript prints a stored session.
func WriteTranscript(w io.Writer, sess domain.ChatSession) error {
	var b strings.Builder
	fmt.Fprintf(&b, "== %s (%s", sess.Title, sess.Mode)
	if sess.Topic != "" {
		fmt.Fprintf(&b, ", %s", sess.Topic)
	}
	b.WriteString(") ==\n")
	for _, m := range sess.Messages {
		switch {
		case m.Role == domain.RoleUser:
			b.WriteString("\nYou: ")
			b.WriteString(m.Content)
			if m.HasImage() {
				b.WriteString(" [image]")
			}
		case m.Error:
			fmt.Fprintf(&b, "\nSorry, I encountered an error: %s. Please try again! 🙏", m.Content)
		default:
			fmt.Fprintf(&b, "\n%s: %s", assistantLabel, m.Content)
		}
		b.WriteString("\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// WriteTopics prints the topic catalog.
func WriteTopics(w io.Writer) error {
	var b strings.Builder
	for _, c := range domain.TopicCategories {
		fmt.Fprintf(&b, "%s %s\n", c.Icon, c.Name)
		fmt.Fprintf(&b, "  %s\n", strings.Join(c.Topics, ", "))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
