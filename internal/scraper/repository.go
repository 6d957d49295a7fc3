package scraper

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/park285/wot-clan-bot/internal/store"
)

type Repository interface {
	Sites(ctx context.Context) ([]Site, error)
	UpdateLastURL(ctx context.Context, id int64, lastURL string) error
}

type repository struct {
	db *store.DB
}

func NewRepository(db *store.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Sites(ctx context.Context) ([]Site, error) {
	rows, err := r.db.Query(ctx, r.db.Select("id", "name", "url", "last_url", "kind", "selector").
		From("news_websites").
		OrderBy("id ASC"))
	if err != nil {
		return nil, fmt.Errorf("select news_websites: %w", err)
	}
	defer rows.Close()

	var out []Site
	for rows.Next() {
		var s Site
		if err := rows.Scan(&s.ID, &s.Name, &s.URL, &s.LastURL, &s.Kind, &s.Selector); err != nil {
			return nil, fmt.Errorf("scan news_websites: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *repository) UpdateLastURL(ctx context.Context, id int64, lastURL string) error {
	_, err := r.db.Exec(ctx, r.db.Update("news_websites").Set("last_url", lastURL).Where("id = ?", id))
	if err != nil {
		return fmt.Errorf("update last_url: %w", err)
	}
	return nil
}

type memrepo struct {
	mu    sync.Mutex
	sites map[int64]Site
}

// NewMemoryRepository seeds an in-memory site list.
func NewMemoryRepository(sites ...Site) Repository {
	m := &memrepo{sites: make(map[int64]Site)}
	for _, s := range sites {
		m.sites[s.ID] = s
	}
	return m
}

func (m *memrepo) Sites(ctx context.Context) ([]Site, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Site, 0, len(m.sites))
	for _, s := range m.sites {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memrepo) UpdateLastURL(ctx context.Context, id int64, lastURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sites[id]; ok {
		s.LastURL = lastURL
		m.sites[id] = s
	}
	return nil
}
