package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/bwmarrin/discordgo"
	"github.com/park285/wot-clan-bot/internal/adapter/discordpresenter"
	appcfg "github.com/park285/wot-clan-bot/internal/config"
	"github.com/park285/wot-clan-bot/internal/discord"
	"github.com/park285/wot-clan-bot/internal/feature"
	"github.com/park285/wot-clan-bot/internal/jsonfile"
	"github.com/park285/wot-clan-bot/internal/msgcat"
	"github.com/park285/wot-clan-bot/internal/obslog"
	"github.com/park285/wot-clan-bot/internal/recruit"
	"github.com/park285/wot-clan-bot/internal/schedule"
	"github.com/park285/wot-clan-bot/internal/scraper"
	"github.com/park285/wot-clan-bot/internal/store"
	"github.com/park285/wot-clan-bot/internal/trivia"
	"github.com/park285/wot-clan-bot/internal/wgapi"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	banWordsTTL     = 5 * time.Minute
	inventoryMaxAge = 24 * time.Hour
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger, err := obslog.New(cfg.Log)
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal("database_open_failed", zap.Error(err))
	}
	defer db.Close()
	if err := db.EnsureSchema(ctx); err != nil {
		logger.Fatal("schema_failed", zap.Error(err))
	}

	sessions, closeRedis := triviaSessions(ctx, cfg.RedisURL, logger)
	defer closeRedis()

	// External APIs
	client := wgapi.NewClient(wgapi.WithLogger(logger), wgapi.WithTimeout(10*time.Second))
	game := wgapi.NewWargaming(client, cfg.WargamingBaseURL, cfg.WargamingAppID)
	feed := wgapi.NewNewsfeed(client, cfg.NewsfeedBaseURL)
	tomato := wgapi.NewTomato(client, cfg.TomatoBaseURL, cfg.TomatoServer)

	cat, err := msgcat.New(cfg.MessageDir)
	if err != nil {
		logger.Fatal("messages_failed", zap.Error(err))
	}
	format := discordpresenter.NewFormatter(cat, cfg.AdminMention)

	mockChannel := ""
	if cfg.Mock() {
		mockChannel = cfg.MockChannelID
	}
	channels := feature.NewChannels(feature.NewChannelRepository(db), cfg.GuildID, mockChannel)
	settings, err := feature.OpenSettings(cfg.FeatureFile)
	if err != nil {
		logger.Fatal("feature_file_failed", zap.Error(err))
	}
	flags := feature.NewFlags(db)

	// Trivia
	inventoryFile, err := jsonfile.Open[trivia.InventoryFile](cfg.InventoryFile)
	if err != nil {
		logger.Fatal("inventory_file_failed", zap.Error(err))
	}
	inventory := trivia.NewInventory(inventoryFile, game, inventoryMaxAge, logger)
	triviaRepo := trivia.NewRepository(db)
	selector := trivia.NewSelector(triviaRepo, inventory, cfg.Trivia.MaxPerDay, cfg.Trivia.Candidates, cfg.Trivia.VehiclePages, logger)
	triviaSvc := trivia.NewService(triviaRepo, sessions, selector, trivia.Options{
		PerDay:        cfg.Trivia.MaxPerDay,
		Duration:      cfg.Trivia.QuestionDuration,
		ResponseLimit: cfg.Trivia.ResponseLimit,
		Location:      cfg.Trivia.Location,
	}, logger)

	dg, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		logger.Fatal("discord_session_failed", zap.Error(err))
	}
	presenter := discordpresenter.NewPresenter(dg, channels, format)

	// Fold recruitment and news
	monitor := recruit.NewMonitor(recruit.NewRepository(db), game, feed, tomato, presenter, recruit.Thresholds{
		MinWN8:       float64(cfg.Recruit.MinWN8),
		MinBattles:   cfg.Recruit.MinBattles,
		ActivityDays: cfg.Recruit.ActivityDays,
	}, logger)
	news := scraper.New(scraper.NewRepository(db), client, presenter.News, logger)

	bot := discord.New(dg, discord.Deps{
		Trivia:   triviaSvc,
		Monitor:  monitor,
		Flags:    flags,
		Settings: settings,
		BanWords: feature.NewBanWords(db, banWordsTTL),
		Format:   format,
	}, discord.Options{
		AppID:        cfg.DiscordAppID,
		GuildID:      cfg.GuildID,
		ActivityDays: cfg.Recruit.ActivityDays,
	}, logger)
	if err := bot.Open(ctx); err != nil {
		logger.Fatal("discord_open_failed", zap.Error(err))
	}

	runner := schedule.NewRunner(logger)
	runner.Start(ctx,
		schedule.Job{Name: "news", Interval: cfg.Schedule.News, RunAtStart: true, Run: gated(flags, feature.News, news.Run)},
		schedule.Job{Name: "fold_recruitment", Interval: cfg.Schedule.FoldRecruit, RunAtStart: true, Run: gated(flags, feature.FoldRecruitment, monitor.Cycle)},
		schedule.Job{Name: "fold_activity", Interval: cfg.Schedule.ActivityCheck, Run: gated(flags, feature.FoldRecruitment, monitor.CheckPlayerActivity)},
		schedule.Job{Name: "trivia_select", Interval: cfg.Schedule.TriviaSelect, RunAtStart: true, Run: gated(flags, feature.Trivia, triviaSvc.Preselect)},
	)
	logger.Info("bot_started", zap.String("mode", cfg.Mode), zap.String("guild", cfg.GuildID))

	<-ctx.Done()
	logger.Info("bot_stopping")
	runner.Wait()
	if err := bot.Close(); err != nil {
		logger.Warn("discord_close_failed", zap.Error(err))
	}
}

// triviaSessions prefers Redis and falls back to process memory when it is not configured or unreachable.
func triviaSessions(ctx context.Context, redisURL string, logger *zap.Logger) (trivia.SessionStore, func()) {
	if redisURL == "" {
		logger.Warn("redis_not_configured", zap.String("fallback", "memory"))
		return trivia.NewMemorySessions(), func() {}
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Fatal("redis_url_invalid", zap.Error(err))
	}
	rdb := redis.NewClient(opts)
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		logger.Warn("redis_unreachable", zap.String("fallback", "memory"), zap.Error(err))
		_ = rdb.Close()
		return trivia.NewMemorySessions(), func() {}
	}
	return trivia.NewRedisSessions(rdb), func() { _ = rdb.Close() }
}

// gated skips a job while its feature flag is off.
func gated(flags feature.Flags, name string, run func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		on, err := flags.Enabled(ctx, name)
		if err != nil {
			return err
		}
		if !on {
			return nil
		}
		return run(ctx)
	}
}
