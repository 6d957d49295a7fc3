package recruit

import (
	"context"
	"sort"
	"sync"
	"time"
)

// memrepo is an in-memory Repository for tests and database-less runs.
type memrepo struct {
	mu sync.RWMutex

	clans      map[int]WatchedClan
	blacklist  map[int]BlacklistedPlayer
	candidates map[int]Candidate
	potential  map[int]time.Time
}

func NewMemoryRepository() Repository {
	return &memrepo{
		clans:      make(map[int]WatchedClan),
		blacklist:  make(map[int]BlacklistedPlayer),
		candidates: make(map[int]Candidate),
		potential:  make(map[int]time.Time),
	}
}

func (m *memrepo) WatchedClans(ctx context.Context) ([]WatchedClan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]WatchedClan, 0, len(m.clans))
	for _, c := range m.clans {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tag < out[j].Tag })
	return out, nil
}

func (m *memrepo) WatchedClan(ctx context.Context, id int) (*WatchedClan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.clans[id]
	if !ok {
		return nil, ErrNotWatched
	}
	return &c, nil
}

func (m *memrepo) InsertWatchedClan(ctx context.Context, c WatchedClan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.clans[c.ID]; ok {
		return ErrAlreadyWatched
	}
	m.clans[c.ID] = c
	return nil
}

func (m *memrepo) DeleteWatchedClan(ctx context.Context, id int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.clans[id]
	delete(m.clans, id)
	return ok, nil
}

func (m *memrepo) UpdateLastActivity(ctx context.Context, id int, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.clans[id]; ok {
		c.LastActivity = at
		m.clans[id] = c
	}
	return nil
}

func (m *memrepo) IsBlacklisted(ctx context.Context, accountID int) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.blacklist[accountID]
	return ok, nil
}

func (m *memrepo) InsertBlacklisted(ctx context.Context, p BlacklistedPlayer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blacklist[p.AccountID] = p
	return nil
}

func (m *memrepo) DeleteBlacklisted(ctx context.Context, accountID int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.blacklist[accountID]
	delete(m.blacklist, accountID)
	return ok, nil
}

func (m *memrepo) Candidates(ctx context.Context) ([]Candidate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Candidate, 0, len(m.candidates))
	for _, c := range m.candidates {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PostedAt.Before(out[j].PostedAt) })
	return out, nil
}

func (m *memrepo) IsCandidate(ctx context.Context, accountID int) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.candidates[accountID]
	return ok, nil
}

func (m *memrepo) InsertCandidate(ctx context.Context, c Candidate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.candidates[c.AccountID] = c
	return nil
}

func (m *memrepo) DeleteCandidate(ctx context.Context, accountID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.candidates, accountID)
	return nil
}

func (m *memrepo) RecordPotentialClan(ctx context.Context, clanID int, tag string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.potential[clanID] = at
	return nil
}
