package recruit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/park285/wot-clan-bot/internal/store"
)

type Repository interface {
	WatchedClans(ctx context.Context) ([]WatchedClan, error)
	WatchedClan(ctx context.Context, id int) (*WatchedClan, error)
	InsertWatchedClan(ctx context.Context, c WatchedClan) error
	DeleteWatchedClan(ctx context.Context, id int) (bool, error)
	UpdateLastActivity(ctx context.Context, id int, at time.Time) error

	IsBlacklisted(ctx context.Context, accountID int) (bool, error)
	InsertBlacklisted(ctx context.Context, p BlacklistedPlayer) error
	DeleteBlacklisted(ctx context.Context, accountID int) (bool, error)

	Candidates(ctx context.Context) ([]Candidate, error)
	IsCandidate(ctx context.Context, accountID int) (bool, error)
	InsertCandidate(ctx context.Context, c Candidate) error
	DeleteCandidate(ctx context.Context, accountID int) error

	RecordPotentialClan(ctx context.Context, clanID int, tag string, at time.Time) error
}

type repository struct {
	db *store.DB
}

func NewRepository(db *store.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WatchedClans(ctx context.Context) ([]WatchedClan, error) {
	rows, err := r.db.Query(ctx, r.db.Select("id", "tag", "name", "last_activity", "image_url").
		From("watch_clans").
		OrderBy("tag ASC"))
	if err != nil {
		return nil, fmt.Errorf("select watch_clans: %w", err)
	}
	defer rows.Close()

	var out []WatchedClan
	for rows.Next() {
		var c WatchedClan
		if err := rows.Scan(&c.ID, &c.Tag, &c.Name, &c.LastActivity, &c.ImageURL); err != nil {
			return nil, fmt.Errorf("scan watch_clans: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *repository) WatchedClan(ctx context.Context, id int) (*WatchedClan, error) {
	var c WatchedClan
	err := r.db.QueryRow(ctx, r.db.Select("id", "tag", "name", "last_activity", "image_url").
		From("watch_clans").
		Where("id = ?", id), &c.ID, &c.Tag, &c.Name, &c.LastActivity, &c.ImageURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotWatched
	}
	if err != nil {
		return nil, fmt.Errorf("select watch_clan: %w", err)
	}
	return &c, nil
}

func (r *repository) InsertWatchedClan(ctx context.Context, c WatchedClan) error {
	_, err := r.db.Exec(ctx, r.db.InsertInto("watch_clans").
		Columns("id", "tag", "name", "last_activity", "image_url").
		Values(c.ID, c.Tag, c.Name, c.LastActivity, c.ImageURL))
	if err != nil {
		return fmt.Errorf("insert watch_clan: %w", err)
	}
	return nil
}

func (r *repository) DeleteWatchedClan(ctx context.Context, id int) (bool, error) {
	res, err := r.db.Exec(ctx, r.db.DeleteFrom("watch_clans").Where("id = ?", id))
	if err != nil {
		return false, fmt.Errorf("delete watch_clan: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *repository) UpdateLastActivity(ctx context.Context, id int, at time.Time) error {
	_, err := r.db.Exec(ctx, r.db.Update("watch_clans").Set("last_activity", at).Where("id = ?", id))
	if err != nil {
		return fmt.Errorf("update last_activity: %w", err)
	}
	return nil
}

func (r *repository) exists(ctx context.Context, table string, id int) (bool, error) {
	var n int
	if err := r.db.QueryRow(ctx, r.db.Select("COUNT(*)").From(table).Where("id = ?", id), &n); err != nil {
		return false, fmt.Errorf("count %s: %w", table, err)
	}
	return n > 0, nil
}

func (r *repository) IsBlacklisted(ctx context.Context, accountID int) (bool, error) {
	return r.exists(ctx, "blacklisted_players", accountID)
}

func (r *repository) InsertBlacklisted(ctx context.Context, p BlacklistedPlayer) error {
	_, err := r.db.Exec(ctx, r.db.InsertInto("blacklisted_players").
		Columns("id", "name", "reason").
		Values(p.AccountID, p.Name, p.Reason).
		Upsert([]string{"id"}, "name", "reason"))
	if err != nil {
		return fmt.Errorf("upsert blacklisted_player: %w", err)
	}
	return nil
}

func (r *repository) DeleteBlacklisted(ctx context.Context, accountID int) (bool, error) {
	res, err := r.db.Exec(ctx, r.db.DeleteFrom("blacklisted_players").Where("id = ?", accountID))
	if err != nil {
		return false, fmt.Errorf("delete blacklisted_player: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *repository) Candidates(ctx context.Context) ([]Candidate, error) {
	rows, err := r.db.Query(ctx, r.db.Select("id", "name", "clan_id", "message_id", "channel_id", "posted_at",
		"random_battles", "skirmish_battles", "clan_battles").
		From("leaving_players").
		OrderBy("posted_at ASC"))
	if err != nil {
		return nil, fmt.Errorf("select leaving_players: %w", err)
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var c Candidate
		if err := rows.Scan(&c.AccountID, &c.Name, &c.ClanID, &c.MessageID, &c.ChannelID, &c.PostedAt,
			&c.Battles.Random, &c.Battles.Skirmish, &c.Battles.Clan); err != nil {
			return nil, fmt.Errorf("scan leaving_players: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *repository) IsCandidate(ctx context.Context, accountID int) (bool, error) {
	return r.exists(ctx, "leaving_players", accountID)
}

func (r *repository) InsertCandidate(ctx context.Context, c Candidate) error {
	_, err := r.db.Exec(ctx, r.db.InsertInto("leaving_players").
		Columns("id", "name", "clan_id", "message_id", "channel_id", "posted_at",
			"random_battles", "skirmish_battles", "clan_battles").
		Values(c.AccountID, c.Name, c.ClanID, c.MessageID, c.ChannelID, c.PostedAt,
			c.Battles.Random, c.Battles.Skirmish, c.Battles.Clan))
	if err != nil {
		return fmt.Errorf("insert leaving_player: %w", err)
	}
	return nil
}

func (r *repository) DeleteCandidate(ctx context.Context, accountID int) error {
	if _, err := r.db.Exec(ctx, r.db.DeleteFrom("leaving_players").Where("id = ?", accountID)); err != nil {
		return fmt.Errorf("delete leaving_player: %w", err)
	}
	return nil
}

func (r *repository) RecordPotentialClan(ctx context.Context, clanID int, tag string, at time.Time) error {
	_, err := r.db.Exec(ctx, r.db.InsertInto("potential_clans").
		Columns("clan_id", "tag", "seen_at").
		Values(clanID, tag, at).
		Upsert([]string{"clan_id"}, "tag", "seen_at"))
	if err != nil {
		return fmt.Errorf("upsert potential_clan: %w", err)
	}
	return nil
}
