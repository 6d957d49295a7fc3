package trivia

import (
	"math"
	"time"
)

const (
	lossBase  = 25.0
	gainBase  = 50.0
	eloSlope  = 0.001
	fastBonus = 0.25
)

// CalculateElo returns the new rating. A wrong answer costs more the higher the rating,
// a right one earns less, and a right answer within limit adds a quarter of the gain.
// The rating never goes below 0.
func CalculateElo(oldElo int, responseTime time.Duration, isGoodAnswer bool, limit time.Duration) int {
	old := float64(oldElo)
	var delta int
	if !isGoodAnswer {
		delta = -int(math.Floor(lossBase * math.Exp(eloSlope*old)))
	} else {
		gain := math.Floor(gainBase * math.Exp(-eloSlope*old))
		delta = int(gain)
		if responseTime <= limit {
			delta += int(math.Floor(gain * fastBonus))
		}
	}
	if next := oldElo + delta; next > 0 {
		return next
	}
	return 0
}

// IsCorrect accepts the target tank, or any candidate firing the same shell type
// with the same alpha damage at the asked ammo slot.
func IsCorrect(sel Selected, chosenTankID int) bool {
	if chosenTankID == sel.Tank.TankID {
		return true
	}
	chosen, ok := sel.candidate(chosenTankID)
	if !ok {
		return false
	}
	want, ok := sel.Tank.AmmoAt(sel.AmmoIndex)
	if !ok {
		return false
	}
	got, ok := chosen.AmmoAt(sel.AmmoIndex)
	return ok && got.Type == want.Type && got.Alpha() == want.Alpha()
}

// UpdateStreak applies one answer to a monthly streak.
func UpdateStreak(ws WinStreak, correct bool) WinStreak {
	if !correct {
		ws.Current = 0
		return ws
	}
	ws.Current++
	if ws.Current > ws.Max {
		ws.Max = ws.Current
	}
	return ws
}

// MonthKey formats the streak and leaderboard month of t.
func MonthKey(t time.Time) string { return t.Format("2006-01") }

func monthBounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 1, 0)
}

func dayBounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 0, 1)
}
