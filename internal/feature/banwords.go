package feature

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/park285/wot-clan-bot/internal/store"
)

// BanWords loads ban_words and caches them for ttl.
type BanWords struct {
	db  *store.DB
	ttl time.Duration
	now func() time.Time

	mu       sync.Mutex
	words    []string
	loadedAt time.Time
}

func NewBanWords(db *store.DB, ttl time.Duration) *BanWords {
	return &BanWords{db: db, ttl: ttl, now: time.Now}
}

// NewStaticBanWords is a fixed list, used without a database.
func NewStaticBanWords(words ...string) *BanWords {
	b := &BanWords{now: time.Now}
	b.setWords(words)
	return b
}

func (b *BanWords) setWords(words []string) {
	b.words = b.words[:0]
	for _, w := range words {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			b.words = append(b.words, w)
		}
	}
}

func (b *BanWords) load(ctx context.Context) error {
	rows, err := b.db.Query(ctx, b.db.Select("word").From("ban_words"))
	if err != nil {
		return fmt.Errorf("select ban_words: %w", err)
	}
	defer rows.Close()
	var words []string
	for rows.Next() {
		var w string
		if err := rows.Scan(&w); err != nil {
			return err
		}
		words = append(words, w)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	b.setWords(words)
	return nil
}

// Match returns the first banned word contained in text.
// A failed refresh keeps the previous list for another ttl and is reported alongside the match.
func (b *BanWords) Match(ctx context.Context, text string) (string, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var err error
	if b.db != nil && b.now().Sub(b.loadedAt) >= b.ttl {
		b.loadedAt = b.now()
		err = b.load(ctx)
	}
	lower := strings.ToLower(text)
	for _, w := range b.words {
		if strings.Contains(lower, w) {
			return w, true, err
		}
	}
	return "", false, err
}
