package recruit

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/park285/wot-clan-bot/internal/wgapi"
	"go.uber.org/zap"
)

// accountBatch is the Wargaming cap on ids per request.
const accountBatch = 100

type Thresholds struct {
	MinWN8       float64
	MinBattles   int
	ActivityDays int
}

type Monitor struct {
	repo      Repository
	game      Game
	feed      Feed
	stats     StatsSource
	publisher Publisher
	limits    Thresholds
	now       func() time.Time
	logger    *zap.Logger
}

func NewMonitor(repo Repository, game Game, feed Feed, stats StatsSource, publisher Publisher, limits Thresholds, logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limits.ActivityDays <= 0 {
		limits.ActivityDays = 28
	}
	return &Monitor{
		repo:      repo,
		game:      game,
		feed:      feed,
		stats:     stats,
		publisher: publisher,
		limits:    limits,
		now:       time.Now,
		logger:    logger,
	}
}

// ExtractLeavers returns the players of leave_clan events strictly after since, oldest first,
// one entry per player, and the newest timestamp among those events (zero when none).
func ExtractLeavers(events []wgapi.NewsEvent, since time.Time) ([]Leaver, time.Time) {
	var newest time.Time
	seen := make(map[int]bool)
	sorted := append([]wgapi.NewsEvent(nil), events...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].CreatedAt.Before(sorted[j].CreatedAt) })

	var out []Leaver
	for _, ev := range sorted {
		if ev.Subtype != wgapi.SubtypeLeaveClan || !ev.CreatedAt.After(since) {
			continue
		}
		if ev.CreatedAt.After(newest) {
			newest = ev.CreatedAt
		}
		for _, id := range ev.AccountIDs {
			if seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, Leaver{AccountID: id, Name: ev.AccountInfo[strconv.Itoa(id)].Name, LeftAt: ev.CreatedAt})
		}
	}
	return out, newest
}

// Eligible applies the recruitment thresholds.
func (m *Monitor) Eligible(s *wgapi.PlayerStats) bool {
	return s != nil && s.WN8 >= m.limits.MinWN8 && s.Battles >= m.limits.MinBattles
}

// Cycle polls every watched clan once. A failing clan is logged and skipped.
func (m *Monitor) Cycle(ctx context.Context) error {
	clans, err := m.repo.WatchedClans(ctx)
	if err != nil {
		return err
	}
	for _, c := range clans {
		if err := ctx.Err(); err != nil {
			return err
		}
		posted, err := m.cycleClan(ctx, c)
		if err != nil {
			m.logger.Warn("fold_clan_failed", zap.String("clan", c.Tag), zap.Error(err))
			continue
		}
		m.logger.Info("fold_clan_done", zap.String("clan", c.Tag), zap.Int("posted", posted))
	}
	return nil
}

func (m *Monitor) cycleClan(ctx context.Context, c WatchedClan) (int, error) {
	events, err := m.feed.Events(ctx, c.ID, c.LastActivity, m.now())
	if err != nil {
		return 0, fmt.Errorf("newsfeed: %w", err)
	}
	leavers, newest := ExtractLeavers(events, c.LastActivity)

	posted := 0
	for _, l := range leavers {
		ok, err := m.consider(ctx, c, l)
		if err != nil {
			m.logger.Warn("fold_candidate_failed", zap.String("clan", c.Tag), zap.Int("account_id", l.AccountID), zap.Error(err))
			continue
		}
		if ok {
			posted++
		}
	}
	if newest.After(c.LastActivity) {
		if err := m.repo.UpdateLastActivity(ctx, c.ID, newest); err != nil {
			return posted, err
		}
	}
	return posted, nil
}

func (m *Monitor) consider(ctx context.Context, c WatchedClan, l Leaver) (bool, error) {
	if skip, err := m.repo.IsBlacklisted(ctx, l.AccountID); err != nil || skip {
		return false, err
	}
	if skip, err := m.repo.IsCandidate(ctx, l.AccountID); err != nil || skip {
		return false, err
	}
	stats, err := m.stats.PlayerOverall(ctx, l.AccountID)
	if err != nil {
		return false, fmt.Errorf("player stats: %w", err)
	}
	if !m.Eligible(stats) {
		return false, nil
	}
	if l.Name == "" {
		l.Name = stats.Name
	}

	var baseline wgapi.BattleCounts
	accounts, err := m.game.Accounts(ctx, []int{l.AccountID})
	if err != nil {
		return false, fmt.Errorf("account battles: %w", err)
	}
	if a := accounts[l.AccountID]; a != nil {
		baseline = a.Battles
	}

	channelID, messageID, err := m.publisher.PostCandidate(ctx, Posting{Clan: c, Leaver: l, Stats: *stats})
	if err != nil {
		return false, fmt.Errorf("post candidate: %w", err)
	}
	cand := Candidate{
		AccountID: l.AccountID,
		Name:      l.Name,
		ClanID:    c.ID,
		MessageID: messageID,
		ChannelID: channelID,
		PostedAt:  m.now(),
		Battles:   baseline,
	}
	if err := m.repo.InsertCandidate(ctx, cand); err != nil {
		return false, err
	}
	return true, nil
}

// CheckPlayerActivity re-checks every posted candidate: a candidate who joined a clan
// is removed, one who played since posting gets the message refreshed, others stay.
func (m *Monitor) CheckPlayerActivity(ctx context.Context) error {
	cands, err := m.repo.Candidates(ctx)
	if err != nil {
		return err
	}
	for start := 0; start < len(cands); start += accountBatch {
		batch := cands[start:min(start+accountBatch, len(cands))]
		if err := m.checkBatch(ctx, batch); err != nil {
			return err
		}
	}
	return nil
}

func (m *Monitor) checkBatch(ctx context.Context, batch []Candidate) error {
	ids := make([]int, 0, len(batch))
	for _, c := range batch {
		ids = append(ids, c.AccountID)
	}
	clans, err := m.game.AccountClans(ctx, ids)
	if err != nil {
		return fmt.Errorf("account clans: %w", err)
	}
	accounts, err := m.game.Accounts(ctx, ids)
	if err != nil {
		return fmt.Errorf("account battles: %w", err)
	}

	for _, c := range batch {
		joined := clans[c.AccountID]
		var recent wgapi.BattleCounts
		if a := accounts[c.AccountID]; a != nil {
			recent = delta(a.Battles, c.Battles)
		}
		active := recent.Random+recent.Skirmish+recent.Clan > 0

		switch {
		case joined != 0:
			m.forget(ctx, c, joined)
		case active:
			if err := m.publisher.UpdateCandidate(ctx, c, recent); err != nil {
				m.logger.Warn("fold_update_failed", zap.Int("account_id", c.AccountID), zap.Error(err))
			}
		}
	}
	return nil
}

func (m *Monitor) forget(ctx context.Context, c Candidate, clanID int) {
	if err := m.publisher.DeleteCandidate(ctx, c); err != nil {
		m.logger.Warn("fold_delete_failed", zap.Int("account_id", c.AccountID), zap.Error(err))
	}
	tag := ""
	if info, err := m.game.ClanInfo(ctx, clanID); err == nil {
		tag = info.Tag
	}
	if err := m.repo.RecordPotentialClan(ctx, clanID, tag, m.now()); err != nil {
		m.logger.Warn("potential_clan_failed", zap.Int("clan_id", clanID), zap.Error(err))
	}
	if err := m.repo.DeleteCandidate(ctx, c.AccountID); err != nil {
		m.logger.Warn("fold_forget_failed", zap.Int("account_id", c.AccountID), zap.Error(err))
		return
	}
	m.logger.Info("fold_candidate_joined", zap.String("player", c.Name), zap.Int("clan_id", clanID), zap.String("tag", tag))
}

func delta(now, then wgapi.BattleCounts) wgapi.BattleCounts {
	return wgapi.BattleCounts{
		Random:   max(now.Random-then.Random, 0),
		Skirmish: max(now.Skirmish-then.Skirmish, 0),
		Clan:     max(now.Clan-then.Clan, 0),
	}
}

// ClanPlayersActivity lists the members of the clan tagged tag, least recently active first.
func (m *Monitor) ClanPlayersActivity(ctx context.Context, tag string) (*wgapi.Clan, []MemberActivity, error) {
	clan, err := m.game.SearchClan(ctx, tag)
	if err != nil {
		return nil, nil, err
	}
	info, err := m.game.ClanInfo(ctx, clan.ClanID)
	if err != nil {
		return nil, nil, err
	}
	ids := make([]int, 0, len(info.Members))
	for _, mem := range info.Members {
		ids = append(ids, mem.AccountID)
	}

	now := m.now()
	out := make([]MemberActivity, 0, len(ids))
	for start := 0; start < len(ids); start += accountBatch {
		accounts, err := m.game.Accounts(ctx, ids[start:min(start+accountBatch, len(ids))])
		if err != nil {
			return nil, nil, err
		}
		for _, id := range ids[start:min(start+accountBatch, len(ids))] {
			row := MemberActivity{AccountID: id, IdleDays: -1, Inactive: true}
			if a := accounts[id]; a != nil {
				row.Name = a.Nickname
				if !a.LastBattleTime.IsZero() && a.LastBattleTime.Unix() > 0 {
					row.LastBattle = a.LastBattleTime
					row.IdleDays = int(now.Sub(a.LastBattleTime).Hours() / 24)
					row.Inactive = row.IdleDays >= m.limits.ActivityDays
				}
			}
			out = append(out, row)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].LastBattle.Before(out[j].LastBattle) })
	return &info.Clan, out, nil
}

// Watch starts polling the clan tagged tag from now on.
func (m *Monitor) Watch(ctx context.Context, tag string) (*WatchedClan, error) {
	clan, err := m.game.SearchClan(ctx, tag)
	if err != nil {
		return nil, err
	}
	if _, err := m.repo.WatchedClan(ctx, clan.ClanID); err == nil {
		return nil, ErrAlreadyWatched
	} else if !errors.Is(err, ErrNotWatched) {
		return nil, err
	}
	wc := WatchedClan{
		ID:           clan.ClanID,
		Tag:          clan.Tag,
		Name:         clan.Name,
		LastActivity: m.now().UTC(),
		ImageURL:     clan.Emblem,
	}
	if err := m.repo.InsertWatchedClan(ctx, wc); err != nil {
		return nil, err
	}
	m.logger.Info("fold_watch_added", zap.String("clan", wc.Tag), zap.Int("clan_id", wc.ID))
	return &wc, nil
}

// Unwatch stops polling the clan tagged tag.
func (m *Monitor) Unwatch(ctx context.Context, tag string) (*WatchedClan, error) {
	clans, err := m.repo.WatchedClans(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range clans {
		if !strings.EqualFold(c.Tag, strings.TrimSpace(tag)) {
			continue
		}
		if _, err := m.repo.DeleteWatchedClan(ctx, c.ID); err != nil {
			return nil, err
		}
		m.logger.Info("fold_watch_removed", zap.String("clan", c.Tag))
		return &c, nil
	}
	return nil, ErrNotWatched
}

// Blacklist resolves nickname and excludes the player from future postings.
func (m *Monitor) Blacklist(ctx context.Context, nickname, reason string) (*BlacklistedPlayer, error) {
	acc, err := m.game.SearchAccount(ctx, nickname)
	if err != nil {
		return nil, err
	}
	p := BlacklistedPlayer{AccountID: acc.AccountID, Name: acc.Nickname, Reason: strings.TrimSpace(reason)}
	if err := m.repo.InsertBlacklisted(ctx, p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (m *Monitor) Unblacklist(ctx context.Context, nickname string) (*BlacklistedPlayer, error) {
	acc, err := m.game.SearchAccount(ctx, nickname)
	if err != nil {
		return nil, err
	}
	ok, err := m.repo.DeleteBlacklisted(ctx, acc.AccountID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotBlacklisted
	}
	return &BlacklistedPlayer{AccountID: acc.AccountID, Name: acc.Nickname}, nil
}
