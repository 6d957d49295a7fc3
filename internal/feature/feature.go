package feature

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/park285/wot-clan-bot/internal/jsonfile"
	"github.com/park285/wot-clan-bot/internal/store"
)

// Flag names stored in feature_flipping.
const (
	Maintenance     = "maintenance"
	Trivia          = "trivia"
	FoldRecruitment = "fold_recruitment"
	News            = "news"
)

// defaults apply to flags missing from the table.
var defaults = map[string]bool{
	Maintenance:     false,
	Trivia:          true,
	FoldRecruitment: true,
	News:            true,
}

type Flags interface {
	Enabled(ctx context.Context, name string) (bool, error)
	Set(ctx context.Context, name string, enabled bool) error
}

type dbFlags struct {
	db *store.DB
}

func NewFlags(db *store.DB) Flags { return &dbFlags{db: db} }

func (f *dbFlags) Enabled(ctx context.Context, name string) (bool, error) {
	var on bool
	err := f.db.QueryRow(ctx, f.db.Select("enabled").From("feature_flipping").Where("name = ?", name), &on)
	if errors.Is(err, sql.ErrNoRows) {
		return defaults[name], nil
	}
	if err != nil {
		return false, fmt.Errorf("select feature %s: %w", name, err)
	}
	return on, nil
}

func (f *dbFlags) Set(ctx context.Context, name string, enabled bool) error {
	_, err := f.db.Exec(ctx, f.db.InsertInto("feature_flipping").
		Columns("name", "enabled").
		Values(name, enabled).
		Upsert([]string{"name"}, "enabled"))
	if err != nil {
		return fmt.Errorf("upsert feature %s: %w", name, err)
	}
	return nil
}

type memFlags struct {
	mu    sync.RWMutex
	flags map[string]bool
}

func NewMemoryFlags() Flags { return &memFlags{flags: make(map[string]bool)} }

func (m *memFlags) Enabled(ctx context.Context, name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if on, ok := m.flags[name]; ok {
		return on, nil
	}
	return defaults[name], nil
}

func (m *memFlags) Set(ctx context.Context, name string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flags[name] = enabled
	return nil
}

// File is the layout of feature.json.
type File struct {
	AutoReply      map[string]string `json:"auto_reply"`
	AutoDisconnect []string          `json:"auto_disconnect"`
}

// Settings are the per-user toggles kept in feature.json.
type Settings struct {
	file *jsonfile.Store[File]
}

func OpenSettings(path string) (*Settings, error) {
	f, err := jsonfile.Open[File](path)
	if err != nil {
		return nil, err
	}
	return &Settings{file: f}, nil
}

// AutoReply returns the text to answer when userID is mentioned.
func (s *Settings) AutoReply(userID string) (string, bool) {
	var (
		text string
		ok   bool
	)
	s.file.View(func(f File) { text, ok = f.AutoReply[userID] })
	return text, ok
}

// SetAutoReply stores text for userID; an empty text removes the entry.
func (s *Settings) SetAutoReply(userID, text string) error {
	return s.file.Update(func(f *File) error {
		if text == "" {
			delete(f.AutoReply, userID)
			return nil
		}
		if f.AutoReply == nil {
			f.AutoReply = make(map[string]string)
		}
		f.AutoReply[userID] = text
		return nil
	})
}

func (s *Settings) AutoDisconnect(userID string) bool {
	var on bool
	s.file.View(func(f File) { on = slices.Contains(f.AutoDisconnect, userID) })
	return on
}

// ToggleAutoDisconnect flips userID and returns the new state.
func (s *Settings) ToggleAutoDisconnect(userID string) (bool, error) {
	var on bool
	err := s.file.Update(func(f *File) error {
		if i := slices.Index(f.AutoDisconnect, userID); i >= 0 {
			f.AutoDisconnect = slices.Delete(f.AutoDisconnect, i, i+1)
			on = false
			return nil
		}
		f.AutoDisconnect = append(f.AutoDisconnect, userID)
		on = true
		return nil
	})
	return on, err
}
