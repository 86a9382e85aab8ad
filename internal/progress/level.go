package progress

import (
	"math"

	"github.com/ashureev/aptitude-tutor/internal/domain"
)

// LevelFor returns the tier with the greatest MinXP not exceeding xp.
func LevelFor(xp int) domain.LevelInfo {
	return domain.Levels[levelIndex(xp)]
}

// LevelProgressPercent returns how far xp is through its tier, 0..100.
// The top tier always reports 100.
func LevelProgressPercent(xp int) int {
	idx := levelIndex(xp)
	if idx >= len(domain.Levels)-1 {
		return 100
	}

	cur, next := domain.Levels[idx], domain.Levels[idx+1]
	pct := int(math.Round(100 * float64(xp-cur.MinXP) / float64(next.MinXP-cur.MinXP)))
	return min(max(pct, 0), 100)
}

func levelIndex(xp int) int {
	for i := len(domain.Levels) - 1; i >= 0; i-- {
		if xp >= domain.Levels[i].MinXP {
			return i
		}
	}
	return 0
}
