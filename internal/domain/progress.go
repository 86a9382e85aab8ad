package domain

import "math"

// Badge identifiers.
const (
	BadgeFirstSteps    = "first_steps"
	BadgeQuickLearner  = "quick_learner"
	BadgeStreakStarter = "streak_starter"
	BadgeStreakMaster  = "streak_master"
	BadgeSpeedDemon    = "speed_demon"
	BadgeTopicExpert   = "topic_expert"
)

// Badge describes an achievement.
type Badge struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// Badges is the static badge catalog.
var Badges = []Badge{
	{ID: BadgeFirstSteps, Name: "First Steps", Description: "Solve your first question", Icon: "🎯"},
	{ID: BadgeQuickLearner, Name: "Quick Learner", Description: "Complete 10 questions", Icon: "📚"},
	{ID: BadgeStreakStarter, Name: "Streak Starter", Description: "Maintain a 3-day streak", Icon: "🔥"},
	{ID: BadgeStreakMaster, Name: "Streak Master", Description: "Maintain a 7-day streak", Icon: "⚡"},
	{ID: BadgeSpeedDemon, Name: "Speed Demon", Description: "Complete a quiz under 2 minutes", Icon: "🚀"},
	{ID: BadgeTopicExpert, Name: "Topic Expert", Description: "Answer 50 questions in one topic", Icon: "🏆"},
}

// LevelID identifies a level tier.
type LevelID string

const (
	LevelBeginner     LevelID = "beginner"
	LevelIntermediate LevelID = "intermediate"
	LevelPro          LevelID = "pro"
	LevelMaster       LevelID = "master"
)

// LevelInfo is one experience tier. MaxXP is inclusive; the top tier uses math.MaxInt.
type LevelInfo struct {
	ID    LevelID `json:"id"`
	Title string  `json:"title"`
	MinXP int     `json:"minXp"`
	MaxXP int     `json:"maxXp"`
	Color string  `json:"color"`
}

// Levels is sorted ascending by MinXP and covers [0, ∞).
var Levels = []LevelInfo{
	{ID: LevelBeginner, Title: "Beginner", MinXP: 0, MaxXP: 499, Color: "hsl(142, 76%, 36%)"},
	{ID: LevelIntermediate, Title: "Intermediate", MinXP: 500, MaxXP: 999, Color: "hsl(217, 91%, 60%)"},
	{ID: LevelPro, Title: "Pro", MinXP: 1000, MaxXP: 1999, Color: "hsl(271, 91%, 65%)"},
	{ID: LevelMaster, Title: "Master", MinXP: 2000, MaxXP: math.MaxInt, Color: "hsl(45, 93%, 47%)"},
}

// XPRewards lists the experience granted per activity.
var XPRewards = struct {
	QuestionSolved int
	QuizCompleted  int
	DailyChallenge int
	StreakBonus    int
	TopicMastery   int
}{
	QuestionSolved: 15,
	QuizCompleted:  30,
	DailyChallenge: 50,
	StreakBonus:    10,
	TopicMastery:   100,
}

// Progress is the learner's cumulative gamification state.
type Progress struct {
	XP                      int            `json:"xp"`
	Streak                  int            `json:"streak"`
	LastActiveDate          string         `json:"lastActiveDate"`
	QuestionsAnswered       int            `json:"questionsAnswered"`
	EarnedBadges            []string       `json:"earnedBadges"`
	TopicProgress           map[string]int `json:"topicProgress"`
	DailyChallengeCompleted string         `json:"dailyChallengeCompleted,omitempty"`
}

// NewProgress returns the empty starting state.
func NewProgress() Progress {
	return Progress{
		EarnedBadges:  []string{},
		TopicProgress: map[string]int{},
	}
}

// HasBadge reports whether the badge has been earned.
func (p Progress) HasBadge(id string) bool {
	for _, b := range p.EarnedBadges {
		if b == id {
			return true
		}
	}
	return false
}

// AwardBadge adds the badge once. It returns false if it was already held.
func (p *Progress) AwardBadge(id string) bool {
	if p.HasBadge(id) {
		return false
	}
	p.EarnedBadges = append(p.EarnedBadges, id)
	return true
}

// Clone returns a deep copy.
func (p Progress) Clone() Progress {
	out := p
	out.EarnedBadges = append([]string{}, p.EarnedBadges...)
	out.TopicProgress = make(map[string]int, len(p.TopicProgress))
	for k, v := range p.TopicProgress {
		out.TopicProgress[k] = v
	}
	return out
}
