package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/park285/wot-clan-bot/internal/obslog"
	yaml "gopkg.in/yaml.v3"
)

const (
	ModeProd = "prod"
	ModeMock = "mock"
)

type TriviaConfig struct {
	MaxPerDay        int            `yaml:"max_per_day"`
	QuestionDuration time.Duration  `yaml:"question_duration"`
	ResponseLimit    time.Duration  `yaml:"response_limit"`
	Candidates       int            `yaml:"candidates"`
	VehiclePages     int            `yaml:"vehicle_pages"`
	// Timezone decides where a trivia day and month start.
	Timezone         string         `yaml:"timezone"`
	Location         *time.Location `yaml:"-"`
}

type RecruitConfig struct {
	MinWN8       int `yaml:"min_wn8"`
	MinBattles   int `yaml:"min_battles"`
	ActivityDays int `yaml:"activity_days"`
}

type ScheduleConfig struct {
	News          time.Duration `yaml:"news"`
	FoldRecruit   time.Duration `yaml:"fold_recruitment"`
	ActivityCheck time.Duration `yaml:"activity_check"`
	TriviaSelect  time.Duration `yaml:"trivia_select"`
}

type AppConfig struct {
	DiscordToken  string
	DiscordAppID  string
	GuildID       string
	Mode          string
	MockChannelID string
	AdminMention  string

	DatabaseURL string
	RedisURL    string

	WargamingAppID   string
	WargamingBaseURL string
	NewsfeedBaseURL  string
	TomatoBaseURL    string
	TomatoServer     string

	FeatureFile   string
	InventoryFile string
	MessageDir    string

	Log obslog.Options

	Trivia   TriviaConfig   `yaml:"trivia"`
	Recruit  RecruitConfig  `yaml:"recruitment"`
	Schedule ScheduleConfig `yaml:"schedule"`
}

// Mock reports whether channel targets must be redirected to the test guild.
func (c *AppConfig) Mock() bool { return c != nil && c.Mode == ModeMock }

func defaults() *AppConfig {
	return &AppConfig{
		Mode:             ModeProd,
		WargamingBaseURL: "https://api.worldoftanks.eu/wot",
		NewsfeedBaseURL:  "https://eu.wargaming.net",
		TomatoBaseURL:    "https://api.tomato.gg",
		TomatoServer:     "eu",
		FeatureFile:      "feature.json",
		InventoryFile:    "inventory.json",
		Trivia: TriviaConfig{
			MaxPerDay:        4,
			QuestionDuration: 60 * time.Second,
			ResponseLimit:    10 * time.Second,
			Candidates:       4,
			VehiclePages:     6,
			Timezone:         "Europe/Paris",
		},
		Recruit: RecruitConfig{
			MinWN8:       2500,
			MinBattles:   5000,
			ActivityDays: 28,
		},
		Schedule: ScheduleConfig{
			News:          5 * time.Minute,
			FoldRecruit:   30 * time.Minute,
			ActivityCheck: 24 * time.Hour,
			TriviaSelect:  time.Hour,
		},
	}
}

func Load() (*AppConfig, error) {
	cfg := defaults()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	cfg.DiscordToken = strings.TrimSpace(os.Getenv("DISCORD_TOKEN"))
	cfg.DiscordAppID = strings.TrimSpace(os.Getenv("DISCORD_APP_ID"))
	cfg.GuildID = strings.TrimSpace(os.Getenv("DISCORD_GUILD_ID"))
	cfg.MockChannelID = strings.TrimSpace(os.Getenv("MOCK_CHANNEL_ID"))
	cfg.AdminMention = strings.TrimSpace(os.Getenv("ADMIN_MENTION"))
	if v := strings.ToLower(strings.TrimSpace(os.Getenv("BOT_MODE"))); v == ModeMock || v == "dev" {
		cfg.Mode = ModeMock
	}

	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))

	cfg.WargamingAppID = strings.TrimSpace(os.Getenv("WARGAMING_APP_ID"))
	setString(&cfg.WargamingBaseURL, "WARGAMING_BASE_URL")
	setString(&cfg.NewsfeedBaseURL, "NEWSFEED_BASE_URL")
	setString(&cfg.TomatoBaseURL, "TOMATO_BASE_URL")
	setString(&cfg.TomatoServer, "TOMATO_SERVER")
	setString(&cfg.FeatureFile, "FEATURE_FILE")
	setString(&cfg.InventoryFile, "INVENTORY_FILE")
	cfg.MessageDir = strings.TrimSpace(os.Getenv("MESSAGE_DIR"))

	setInt(&cfg.Trivia.MaxPerDay, "TRIVIA_MAX_PER_DAY")
	setDuration(&cfg.Trivia.QuestionDuration, "TRIVIA_QUESTION_DURATION")
	setDuration(&cfg.Trivia.ResponseLimit, "TRIVIA_RESPONSE_LIMIT")
	setString(&cfg.Trivia.Timezone, "TRIVIA_TIMEZONE")
	setInt(&cfg.Recruit.MinWN8, "FOLD_MIN_WN8")
	setInt(&cfg.Recruit.MinBattles, "FOLD_MIN_BATTLES")

	cfg.Log = obslog.OptionsFromEnv()

	if cfg.DiscordToken == "" {
		return nil, errors.New("DISCORD_TOKEN is required")
	}
	if cfg.DiscordAppID == "" {
		return nil, errors.New("DISCORD_APP_ID is required")
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.WargamingAppID == "" {
		return nil, errors.New("WARGAMING_APP_ID is required")
	}
	if cfg.Mock() && cfg.MockChannelID == "" {
		return nil, errors.New("MOCK_CHANNEL_ID is required in mock mode")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFile overlays tunables from a YAML file. Secrets stay in the environment.
func (c *AppConfig) applyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *AppConfig) validate() error {
	if c.Trivia.MaxPerDay <= 0 {
		return errors.New("trivia.max_per_day must be positive")
	}
	if c.Trivia.Candidates < 2 || c.Trivia.Candidates > 5 {
		return errors.New("trivia.candidates must be between 2 and 5")
	}
	if c.Trivia.QuestionDuration <= 0 {
		return errors.New("trivia.question_duration must be positive")
	}
	loc, err := time.LoadLocation(c.Trivia.Timezone)
	if err != nil {
		return fmt.Errorf("trivia.timezone: %w", err)
	}
	c.Trivia.Location = loc
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*dst = n
		}
	}
}

// setDuration accepts Go durations ("90s") or plain seconds.
func setDuration(dst *time.Duration, key string) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		*dst = d
		return
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		*dst = time.Duration(n) * time.Second
	}
}
