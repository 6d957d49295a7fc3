package recruit

import (
	"context"
	"errors"
	"time"

	"github.com/park285/wot-clan-bot/internal/wgapi"
)

var (
	ErrAlreadyWatched = errors.New("clan already watched")
	ErrNotWatched     = errors.New("clan not watched")
	ErrNotBlacklisted = errors.New("player not blacklisted")
)

// WatchedClan is a rival clan whose newsfeed is polled for departures.
type WatchedClan struct {
	ID           int
	Tag          string
	Name         string
	LastActivity time.Time
	ImageURL     string
}

// Leaver is a player extracted from a leave_clan event.
type Leaver struct {
	AccountID int
	Name      string
	LeftAt    time.Time
}

// Candidate is a posted leaver. Battles are the lifetime totals at posting time.
type Candidate struct {
	AccountID int
	Name      string
	ClanID    int
	MessageID string
	ChannelID string
	PostedAt  time.Time
	Battles   wgapi.BattleCounts
}

type BlacklistedPlayer struct {
	AccountID int
	Name      string
	Reason    string
}

// Posting is what the publisher renders for a new candidate.
type Posting struct {
	Clan   WatchedClan
	Leaver Leaver
	Stats  wgapi.PlayerStats
}

// MemberActivity is one row of /clan-players-activity.
type MemberActivity struct {
	AccountID  int
	Name       string
	LastBattle time.Time
	IdleDays   int
	Inactive   bool
}

// Game is the subset of the Wargaming API the monitor needs.
type Game interface {
	SearchClan(ctx context.Context, tag string) (*wgapi.Clan, error)
	SearchAccount(ctx context.Context, nickname string) (*wgapi.Account, error)
	ClanInfo(ctx context.Context, clanID int) (*wgapi.ClanInfo, error)
	AccountClans(ctx context.Context, accountIDs []int) (map[int]int, error)
	Accounts(ctx context.Context, accountIDs []int) (map[int]*wgapi.Account, error)
}

type Feed interface {
	Events(ctx context.Context, clanID int, since, now time.Time) ([]wgapi.NewsEvent, error)
}

type StatsSource interface {
	PlayerOverall(ctx context.Context, accountID int) (*wgapi.PlayerStats, error)
}

// Publisher owns the Discord messages of candidates.
type Publisher interface {
	PostCandidate(ctx context.Context, p Posting) (channelID, messageID string, err error)
	UpdateCandidate(ctx context.Context, c Candidate, recent wgapi.BattleCounts) error
	DeleteCandidate(ctx context.Context, c Candidate) error
}
