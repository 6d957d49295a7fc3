package feature

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/park285/wot-clan-bot/internal/store"
)

// Channel names resolved through the channels table.
const (
	ChannelNews   = "news"
	ChannelFold   = "fold"
	ChannelTrivia = "trivia"
)

var ErrChannelNotConfigured = errors.New("channel not configured")

type ChannelRepository interface {
	Channel(ctx context.Context, guildID, name string) (string, error)
	SetChannel(ctx context.Context, guildID, name, channelID string) error
}

type dbChannels struct {
	db *store.DB
}

func NewChannelRepository(db *store.DB) ChannelRepository { return &dbChannels{db: db} }

func (r *dbChannels) Channel(ctx context.Context, guildID, name string) (string, error) {
	var id string
	err := r.db.QueryRow(ctx, r.db.Select("channel_id").From("channels").
		Where("guild_id = ?", guildID).
		Where("name = ?", name), &id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrChannelNotConfigured
	}
	if err != nil {
		return "", fmt.Errorf("select channel %s: %w", name, err)
	}
	return id, nil
}

func (r *dbChannels) SetChannel(ctx context.Context, guildID, name, channelID string) error {
	_, err := r.db.Exec(ctx, r.db.InsertInto("channels").
		Columns("guild_id", "name", "channel_id").
		Values(guildID, name, channelID).
		Upsert([]string{"guild_id", "name"}, "channel_id"))
	return err
}

type memChannels struct {
	mu sync.RWMutex
	m  map[string]string
}

func NewMemoryChannels() ChannelRepository { return &memChannels{m: make(map[string]string)} }

func (r *memChannels) Channel(ctx context.Context, guildID, name string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.m[guildID+"/"+name]
	if !ok {
		return "", ErrChannelNotConfigured
	}
	return id, nil
}

func (r *memChannels) SetChannel(ctx context.Context, guildID, name, channelID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[guildID+"/"+name] = channelID
	return nil
}

// Channels resolves named channels of one guild. In mock mode every lookup
// returns the mock channel so nothing reaches production channels.
type Channels struct {
	repo    ChannelRepository
	guildID string
	mockID  string
}

func NewChannels(repo ChannelRepository, guildID, mockChannelID string) *Channels {
	return &Channels{repo: repo, guildID: guildID, mockID: mockChannelID}
}

func (c *Channels) Resolve(ctx context.Context, name string) (string, error) {
	if c.mockID != "" {
		return c.mockID, nil
	}
	return c.repo.Channel(ctx, c.guildID, name)
}
