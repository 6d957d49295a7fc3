package feature

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/park285/wot-clan-bot/internal/sqlbuild"
	"github.com/park285/wot-clan-bot/internal/store"
)

func TestMemoryFlagsDefaults(t *testing.T) {
	ctx := context.Background()
	f := NewMemoryFlags()
	if on, _ := f.Enabled(ctx, Maintenance); on { t.Fatalf("maintenance must default to off") }
	if on, _ := f.Enabled(ctx, Trivia); !on { t.Fatalf("trivia must default to on") }
	if err := f.Set(ctx, Maintenance, true); err != nil { t.Fatalf("Set: %v", err) }
	if on, _ := f.Enabled(ctx, Maintenance); !on { t.Fatalf("maintenance must be on after Set") }
}

func TestSettingsPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feature.json")
	s, err := OpenSettings(path)
	if err != nil { t.Fatalf("OpenSettings: %v", err) }
	if err := s.SetAutoReply("42", "en vacances"); err != nil { t.Fatalf("SetAutoReply: %v", err) }
	on, err := s.ToggleAutoDisconnect("7")
	if err != nil || !on { t.Fatalf("ToggleAutoDisconnect: %v %v", on, err) }

	reopened, err := OpenSettings(path)
	if err != nil { t.Fatalf("reopen: %v", err) }
	if text, ok := reopened.AutoReply("42"); !ok || text != "en vacances" { t.Fatalf("auto reply lost: %q %v", text, ok) }
	if !reopened.AutoDisconnect("7") { t.Fatalf("auto disconnect lost") }

	if on, _ := reopened.ToggleAutoDisconnect("7"); on { t.Fatalf("second toggle must disable") }
	if err := reopened.SetAutoReply("42", ""); err != nil { t.Fatalf("clear: %v", err) }
	if _, ok := reopened.AutoReply("42"); ok { t.Fatalf("auto reply must be removed") }
}

func TestStaticBanWords(t *testing.T) {
	b := NewStaticBanWords(" Triche ", "")
	w, ok, err := b.Match(context.Background(), "pas de TRICHE ici")
	if err != nil || !ok || w != "triche" { t.Fatalf("unexpected match: %q %v %v", w, ok, err) }
	if _, ok, _ := b.Match(context.Background(), "bonjour"); ok { t.Fatalf("clean text must not match") }
}

func TestBanWordsKeepCacheWhenRefreshFails(t *testing.T) {
	ctx := context.Background()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil { t.Fatalf("sqlmock: %v", err) }
	defer db.Close()

	now := time.Date(2026, 10, 14, 20, 0, 0, 0, time.UTC)
	b := NewBanWords(store.New(db, sqlbuild.MySQL, nil), time.Minute)
	b.now = func() time.Time { return now }

	mock.ExpectQuery("SELECT word FROM ban_words").WillReturnRows(sqlmock.NewRows([]string{"word"}).AddRow("Triche"))
	if _, ok, err := b.Match(ctx, "triche"); err != nil || !ok { t.Fatalf("initial load: %v %v", ok, err) }

	now = now.Add(2 * time.Minute)
	mock.ExpectQuery("SELECT word FROM ban_words").WillReturnError(errors.New("connection refused"))
	w, ok, err := b.Match(ctx, "encore de la triche")
	if err == nil { t.Fatalf("refresh failure must be reported") }
	if !ok || w != "triche" { t.Fatalf("cached words must still filter: %q %v", w, ok) }

	now = now.Add(30 * time.Second)
	if _, ok, err := b.Match(ctx, "triche"); err != nil || !ok { t.Fatalf("retry must wait for ttl: %v %v", ok, err) }
	if err := mock.ExpectationsWereMet(); err != nil { t.Fatalf("expectations: %v", err) }
}

func TestChannelsMockRedirect(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryChannels()
	if err := repo.SetChannel(ctx, "g1", ChannelNews, "c-news"); err != nil { t.Fatalf("SetChannel: %v", err) }

	prod := NewChannels(repo, "g1", "")
	if id, err := prod.Resolve(ctx, ChannelNews); err != nil || id != "c-news" { t.Fatalf("Resolve: %q %v", id, err) }
	if _, err := prod.Resolve(ctx, ChannelFold); !errors.Is(err, ErrChannelNotConfigured) {
		t.Fatalf("expected ErrChannelNotConfigured, got %v", err)
	}

	mock := NewChannels(repo, "g1", "c-mock")
	if id, _ := mock.Resolve(ctx, ChannelFold); id != "c-mock" { t.Fatalf("mock must redirect, got %q", id) }
}
