package recruit

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/park285/wot-clan-bot/internal/wgapi"
)

var base = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

func leave(id int, name string, at time.Time) wgapi.NewsEvent {
	return wgapi.NewsEvent{
		Subtype:     wgapi.SubtypeLeaveClan,
		CreatedAt:   at,
		AccountIDs:  []int{id},
		AccountInfo: map[string]wgapi.Player{strconv.Itoa(id): {Name: name}},
	}
}

type fakeFeed struct{ events []wgapi.NewsEvent }

func (f fakeFeed) Events(ctx context.Context, clanID int, since, now time.Time) ([]wgapi.NewsEvent, error) {
	return f.events, nil
}

type fakeStats map[int]wgapi.PlayerStats

func (f fakeStats) PlayerOverall(ctx context.Context, id int) (*wgapi.PlayerStats, error) {
	s, ok := f[id]
	if !ok {
		return nil, &wgapi.APIError{Source: "tomato", Status: 404}
	}
	return &s, nil
}

type fakeGame struct {
	clans    map[int]int
	accounts map[int]*wgapi.Account
	members  []wgapi.ClanMember
}

func (g *fakeGame) SearchClan(ctx context.Context, tag string) (*wgapi.Clan, error) {
	if tag == "NONE" {
		return nil, wgapi.ErrClanNotFound
	}
	return &wgapi.Clan{ClanID: 500, Tag: tag, Name: "Rivals", Emblem: "https://img/e.png"}, nil
}

func (g *fakeGame) SearchAccount(ctx context.Context, nickname string) (*wgapi.Account, error) {
	return &wgapi.Account{AccountID: 77, Nickname: nickname}, nil
}

func (g *fakeGame) ClanInfo(ctx context.Context, clanID int) (*wgapi.ClanInfo, error) {
	return &wgapi.ClanInfo{Clan: wgapi.Clan{ClanID: clanID, Tag: "NEW"}, Members: g.members}, nil
}

func (g *fakeGame) AccountClans(ctx context.Context, ids []int) (map[int]int, error) {
	out := make(map[int]int)
	for _, id := range ids {
		out[id] = g.clans[id]
	}
	return out, nil
}

func (g *fakeGame) Accounts(ctx context.Context, ids []int) (map[int]*wgapi.Account, error) {
	out := make(map[int]*wgapi.Account)
	for _, id := range ids {
		if a, ok := g.accounts[id]; ok {
			out[id] = a
		}
	}
	return out, nil
}

type fakePublisher struct {
	posted  []Posting
	updated []int
	deleted []int
}

func (p *fakePublisher) PostCandidate(ctx context.Context, post Posting) (string, string, error) {
	p.posted = append(p.posted, post)
	return "chan", "msg-" + strconv.Itoa(post.Leaver.AccountID), nil
}

func (p *fakePublisher) UpdateCandidate(ctx context.Context, c Candidate, recent wgapi.BattleCounts) error {
	p.updated = append(p.updated, c.AccountID)
	return nil
}

func (p *fakePublisher) DeleteCandidate(ctx context.Context, c Candidate) error {
	p.deleted = append(p.deleted, c.AccountID)
	return nil
}

func newTestMonitor(repo Repository, game *fakeGame, feed Feed, stats StatsSource, pub *fakePublisher) *Monitor {
	m := NewMonitor(repo, game, feed, stats, pub, Thresholds{MinWN8: 2500, MinBattles: 5000, ActivityDays: 28}, nil)
	m.now = func() time.Time { return base }
	return m
}

func TestExtractLeaversOnlyAfterLastActivity(t *testing.T) {
	last := base.Add(-time.Hour)
	events := []wgapi.NewsEvent{
		leave(1, "old1", last.Add(-2*time.Hour)),
		leave(2, "old2", last),
		leave(3, "new1", last.Add(10*time.Minute)),
		leave(4, "new2", last.Add(20*time.Minute)),
		leave(5, "new3", last.Add(30*time.Minute)),
		{Subtype: "join_clan", CreatedAt: last.Add(40 * time.Minute), AccountIDs: []int{9}},
	}
	got, newest := ExtractLeavers(events, last)
	if len(got) != 3 { t.Fatalf("expected 3 leavers, got %d (%+v)", len(got), got) }
	if got[0].Name != "new1" || got[2].Name != "new3" { t.Fatalf("leavers must be oldest first: %+v", got) }
	if !newest.Equal(last.Add(30 * time.Minute)) { t.Fatalf("unexpected newest %v", newest) }
}

func TestExtractLeaversDedupes(t *testing.T) {
	events := []wgapi.NewsEvent{leave(3, "p", base), leave(3, "p", base.Add(time.Minute))}
	got, _ := ExtractLeavers(events, base.Add(-time.Hour))
	if len(got) != 1 { t.Fatalf("expected one leaver, got %d", len(got)) }
}

func TestCycleFiltersAndAdvances(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	last := base.Add(-time.Hour)
	_ = repo.InsertWatchedClan(ctx, WatchedClan{ID: 500, Tag: "RIV", LastActivity: last})
	_ = repo.InsertBlacklisted(ctx, BlacklistedPlayer{AccountID: 3, Name: "banned"})

	feed := fakeFeed{events: []wgapi.NewsEvent{
		leave(1, "good", last.Add(5*time.Minute)),
		leave(2, "weak", last.Add(10*time.Minute)),
		leave(3, "banned", last.Add(15*time.Minute)),
	}}
	stats := fakeStats{
		1: {AccountID: 1, WN8: 3000, Battles: 20000},
		2: {AccountID: 2, WN8: 1200, Battles: 20000},
		3: {AccountID: 3, WN8: 4000, Battles: 30000},
	}
	game := &fakeGame{accounts: map[int]*wgapi.Account{1: {AccountID: 1, Battles: wgapi.BattleCounts{Random: 100}}}}
	pub := &fakePublisher{}
	m := newTestMonitor(repo, game, feed, stats, pub)

	if err := m.Cycle(ctx); err != nil { t.Fatalf("Cycle: %v", err) }
	if len(pub.posted) != 1 || pub.posted[0].Leaver.AccountID != 1 {
		t.Fatalf("only the eligible player must be posted: %+v", pub.posted)
	}
	c, _ := repo.WatchedClan(ctx, 500)
	if !c.LastActivity.Equal(last.Add(15 * time.Minute)) {
		t.Fatalf("last_activity must move to the newest event, got %v", c.LastActivity)
	}
	cands, _ := repo.Candidates(ctx)
	if len(cands) != 1 || cands[0].Battles.Random != 100 || cands[0].MessageID != "msg-1" {
		t.Fatalf("unexpected candidates: %+v", cands)
	}

	// a second cycle over the same feed posts nothing new
	if err := m.Cycle(ctx); err != nil { t.Fatalf("Cycle#2: %v", err) }
	if len(pub.posted) != 1 { t.Fatalf("no repost expected, got %d", len(pub.posted)) }
}

func TestCycleAdvancesWithoutEligiblePlayers(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	last := base.Add(-time.Hour)
	_ = repo.InsertWatchedClan(ctx, WatchedClan{ID: 500, Tag: "RIV", LastActivity: last})
	feed := fakeFeed{events: []wgapi.NewsEvent{leave(2, "weak", last.Add(10*time.Minute))}}
	m := newTestMonitor(repo, &fakeGame{}, feed, fakeStats{2: {WN8: 100, Battles: 10}}, &fakePublisher{})
	if err := m.Cycle(ctx); err != nil { t.Fatalf("Cycle: %v", err) }
	c, _ := repo.WatchedClan(ctx, 500)
	if !c.LastActivity.Equal(last.Add(10 * time.Minute)) { t.Fatalf("last_activity not advanced: %v", c.LastActivity) }
}

func TestCheckPlayerActivityThreeWay(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	start := wgapi.BattleCounts{Random: 100, Skirmish: 10, Clan: 1}
	for i, id := range []int{1, 2, 3} {
		_ = repo.InsertCandidate(ctx, Candidate{AccountID: id, Name: "p" + strconv.Itoa(id), PostedAt: base.Add(time.Duration(i) * time.Minute), Battles: start})
	}
	game := &fakeGame{
		clans: map[int]int{2: 900},
		accounts: map[int]*wgapi.Account{
			1: {AccountID: 1, Battles: wgapi.BattleCounts{Random: 120, Skirmish: 10, Clan: 1}},
			2: {AccountID: 2, Battles: start},
			3: {AccountID: 3, Battles: start},
		},
	}
	pub := &fakePublisher{}
	m := newTestMonitor(repo, game, fakeFeed{}, fakeStats{}, pub)
	if err := m.CheckPlayerActivity(ctx); err != nil { t.Fatalf("CheckPlayerActivity: %v", err) }

	if len(pub.updated) != 1 || pub.updated[0] != 1 { t.Fatalf("active clanless player must be updated: %v", pub.updated) }
	if len(pub.deleted) != 1 || pub.deleted[0] != 2 { t.Fatalf("player who joined must be deleted: %v", pub.deleted) }
	if ok, _ := repo.IsCandidate(ctx, 2); ok { t.Fatalf("joined player must be forgotten") }
	if ok, _ := repo.IsCandidate(ctx, 3); !ok { t.Fatalf("inactive player must be kept") }
	if _, ok := repo.(*memrepo).potential[900]; !ok { t.Fatalf("joined clan must be recorded") }
}

func TestWatchAndUnwatch(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	m := newTestMonitor(repo, &fakeGame{}, fakeFeed{}, fakeStats{}, &fakePublisher{})

	wc, err := m.Watch(ctx, "RIV")
	if err != nil { t.Fatalf("Watch: %v", err) }
	if wc.ID != 500 || !wc.LastActivity.Equal(base) || wc.ImageURL == "" { t.Fatalf("unexpected clan: %+v", wc) }
	if _, err := m.Watch(ctx, "RIV"); !errors.Is(err, ErrAlreadyWatched) { t.Fatalf("expected ErrAlreadyWatched, got %v", err) }
	if _, err := m.Watch(ctx, "NONE"); !errors.Is(err, wgapi.ErrClanNotFound) { t.Fatalf("expected ErrClanNotFound, got %v", err) }

	if _, err := m.Unwatch(ctx, "riv"); err != nil { t.Fatalf("Unwatch: %v", err) }
	if _, err := m.Unwatch(ctx, "riv"); !errors.Is(err, ErrNotWatched) { t.Fatalf("expected ErrNotWatched, got %v", err) }
}

func TestBlacklist(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	m := newTestMonitor(repo, &fakeGame{}, fakeFeed{}, fakeStats{}, &fakePublisher{})
	p, err := m.Blacklist(ctx, "toxic", " spam ")
	if err != nil { t.Fatalf("Blacklist: %v", err) }
	if p.AccountID != 77 || p.Reason != "spam" { t.Fatalf("unexpected entry: %+v", p) }
	if ok, _ := repo.IsBlacklisted(ctx, 77); !ok { t.Fatalf("player must be blacklisted") }
	if _, err := m.Unblacklist(ctx, "toxic"); err != nil { t.Fatalf("Unblacklist: %v", err) }
	if _, err := m.Unblacklist(ctx, "toxic"); !errors.Is(err, ErrNotBlacklisted) { t.Fatalf("expected ErrNotBlacklisted, got %v", err) }
}

func TestClanPlayersActivitySortsByInactivity(t *testing.T) {
	game := &fakeGame{
		members: []wgapi.ClanMember{{AccountID: 1}, {AccountID: 2}, {AccountID: 3}},
		accounts: map[int]*wgapi.Account{
			1: {AccountID: 1, Nickname: "fresh", LastBattleTime: base.Add(-2 * time.Hour)},
			2: {AccountID: 2, Nickname: "idle", LastBattleTime: base.AddDate(0, 0, -40)},
		},
	}
	m := newTestMonitor(NewMemoryRepository(), game, fakeFeed{}, fakeStats{}, &fakePublisher{})
	clan, rows, err := m.ClanPlayersActivity(context.Background(), "RIV")
	if err != nil { t.Fatalf("ClanPlayersActivity: %v", err) }
	if clan.ClanID != 500 || len(rows) != 3 { t.Fatalf("unexpected result: %+v %+v", clan, rows) }
	if rows[0].AccountID != 3 || rows[1].Name != "idle" || rows[2].Name != "fresh" {
		t.Fatalf("unexpected order: %+v", rows)
	}
	if !rows[1].Inactive || rows[1].IdleDays != 40 || rows[2].Inactive { t.Fatalf("unexpected flags: %+v", rows) }
}
