package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("DISCORD_APP_ID", "123")
	t.Setenv("DATABASE_URL", "mysql://bot:pw@localhost:3306/clan")
	t.Setenv("WARGAMING_APP_ID", "appid")
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("BOT_MODE", "")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)
	cfg, err := Load()
	if err != nil { t.Fatalf("Load: %v", err) }
	if cfg.Mock() { t.Fatalf("expected prod mode by default") }
	if cfg.Trivia.MaxPerDay != 4 || cfg.Trivia.ResponseLimit != 10*time.Second {
		t.Fatalf("unexpected trivia defaults: %+v", cfg.Trivia)
	}
}

func TestLoadRequiresToken(t *testing.T) {
	setRequired(t)
	t.Setenv("DISCORD_TOKEN", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error without DISCORD_TOKEN")
	}
}

func TestMockModeNeedsChannel(t *testing.T) {
	setRequired(t)
	t.Setenv("BOT_MODE", "mock")
	t.Setenv("MOCK_CHANNEL_ID", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error without MOCK_CHANNEL_ID")
	}
	t.Setenv("MOCK_CHANNEL_ID", "999")
	cfg, err := Load()
	if err != nil || !cfg.Mock() { t.Fatalf("expected mock config: %v", err) }
}

func TestFileOverlayAndEnvPrecedence(t *testing.T) {
	setRequired(t)
	path := filepath.Join(t.TempDir(), "bot.yaml")
	body := "trivia:\n  max_per_day: 6\n  question_duration: 45s\n  candidates: 5\nrecruitment:\n  min_wn8: 3000\nschedule:\n  news: 2m\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil { t.Fatalf("write: %v", err) }
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("TRIVIA_RESPONSE_LIMIT", "7")

	cfg, err := Load()
	if err != nil { t.Fatalf("Load: %v", err) }
	if cfg.Trivia.MaxPerDay != 6 || cfg.Trivia.QuestionDuration != 45*time.Second || cfg.Trivia.Candidates != 5 {
		t.Fatalf("overlay not applied: %+v", cfg.Trivia)
	}
	if cfg.Trivia.ResponseLimit != 7*time.Second {
		t.Fatalf("env seconds not applied: %v", cfg.Trivia.ResponseLimit)
	}
	if cfg.Recruit.MinWN8 != 3000 || cfg.Recruit.MinBattles != 5000 {
		t.Fatalf("unexpected recruitment config: %+v", cfg.Recruit)
	}
	if cfg.Schedule.News != 2*time.Minute {
		t.Fatalf("unexpected schedule: %+v", cfg.Schedule)
	}
}

func TestInvalidCandidates(t *testing.T) {
	setRequired(t)
	path := filepath.Join(t.TempDir(), "bot.yaml")
	if err := os.WriteFile(path, []byte("trivia:\n  candidates: 9\n"), 0o644); err != nil { t.Fatalf("write: %v", err) }
	t.Setenv("CONFIG_FILE", path)
	if _, err := Load(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestTriviaTimezone(t *testing.T) {
	setRequired(t)
	cfg, err := Load()
	if err != nil { t.Fatalf("Load: %v", err) }
	if cfg.Trivia.Location == nil || cfg.Trivia.Location.String() != "Europe/Paris" {
		t.Fatalf("unexpected default location: %v", cfg.Trivia.Location)
	}
	t.Setenv("TRIVIA_TIMEZONE", "Not/AZone")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for unknown timezone")
	}
}
