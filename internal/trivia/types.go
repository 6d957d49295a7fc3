package trivia

import (
	"errors"
	"time"

	"github.com/park285/wot-clan-bot/internal/wgapi"
)

var (
	ErrSessionInProgress = errors.New("trivia session already in progress")
	ErrDailyLimit        = errors.New("trivia daily question limit reached")
	ErrSessionNotFound   = errors.New("trivia session not found or expired")
	ErrNotSessionOwner   = errors.New("trivia session belongs to another player")
	ErrUnknownCandidate  = errors.New("tank is not a candidate of this question")
	ErrPlayerNotFound    = errors.New("trivia player not found")
	ErrNoQuestion        = errors.New("no trivia question available")
	ErrPersist           = errors.New("trivia result could not be saved")
)

type Player struct {
	ID   int64
	Name string
}

// Answer is one question attempt. Elo is the running value after this attempt.
type Answer struct {
	ID           int64
	PlayerID     int64
	TriviaID     int64
	Date         time.Time
	RightAnswer  bool
	AnswerTimeMS int64
	Elo          int
}

// WinStreak is tracked per calendar month ("2006-01").
type WinStreak struct {
	PlayerID int64
	Month    string
	Current  int
	Max      int
}

// Selected is the tank and shell asked for one daily slot. Candidates include the target.
type Selected struct {
	Tank       wgapi.VehicleData   `json:"tank"`
	AmmoIndex  int                 `json:"ammo_index"`
	Candidates []wgapi.VehicleData `json:"candidates"`
}

// Shell returns the asked shell of the target tank.
func (s Selected) Shell() wgapi.Ammo {
	a, _ := s.Tank.AmmoAt(s.AmmoIndex)
	return a
}

func (s Selected) candidate(tankID int) (wgapi.VehicleData, bool) {
	for _, c := range s.Candidates {
		if c.TankID == tankID {
			return c, true
		}
	}
	if s.Tank.TankID == tankID {
		return s.Tank, true
	}
	return wgapi.VehicleData{}, false
}

// DailyQuestion is a stored slot of a day's selection.
type DailyQuestion struct {
	TriviaID int64
	Day      time.Time
	Slot     int
	Selected Selected
}

// Candidate is a button choice.
type Candidate struct {
	TankID int
	Name   string
}

// Identity is the Discord user playing.
type Identity struct {
	UserID string
	Name   string
}

// Question is what the engine hands to the Discord layer for rendering.
type Question struct {
	SessionID  string
	Player     Player
	Slot       int
	PerDay     int
	AmmoType   string
	Alpha      int
	Candidates []Candidate
	StartedAt  time.Time
	Duration   time.Duration
}

// Session is the in-flight state of one question for one player.
type Session struct {
	ID           string    `json:"id"`
	PlayerID     int64     `json:"player_id"`
	PlayerName   string    `json:"player_name"`
	UserID       string    `json:"user_id"`
	TriviaID     int64     `json:"trivia_id"`
	Slot         int       `json:"slot"`
	Selected     Selected  `json:"selected"`
	StartedAt    time.Time `json:"started_at"`
	Answered     bool      `json:"answered"`
	AnswerTankID int       `json:"answer_tank_id,omitempty"`
	AnswerTimeMS int64     `json:"answer_time_ms,omitempty"`
}

// AnswerOutcome tells the caller how a click changed the session.
type AnswerOutcome int

const (
	AnswerRecorded AnswerOutcome = iota
	AnswerChanged
	AnswerAlreadySelected
)

// Result is the scored end of a session.
type Result struct {
	Session  Session
	Correct  bool
	Answered bool
	Target   wgapi.VehicleData
	Shell    wgapi.Ammo
	Chosen   *wgapi.VehicleData
	OldElo   int
	NewElo   int
	Streak   WinStreak
}

// Gain is the signed elo change.
func (r *Result) Gain() int { return r.NewElo - r.OldElo }

// Standing is a player's latest elo in a month.
type Standing struct {
	PlayerID int64
	Name     string
	Elo      int
}

// Stats summarizes a player's month.
type Stats struct {
	Player      Player
	Month       string
	Elo         int
	Rank        int
	Players     int
	Answers     int
	Right       int
	AvgAnswerMS int64
	Streak      WinStreak
	History     []int
}

// Ratio is right answers over answers, 0 when nothing was answered.
func (s *Stats) Ratio() float64 {
	if s.Answers == 0 {
		return 0
	}
	return float64(s.Right) / float64(s.Answers)
}
