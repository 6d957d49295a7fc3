package discord

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/park285/wot-clan-bot/internal/adapter/discordpresenter"
	"github.com/park285/wot-clan-bot/internal/feature"
	"github.com/park285/wot-clan-bot/internal/recruit"
	"github.com/park285/wot-clan-bot/internal/trivia"
	"go.uber.org/zap"
)

const handlerTimeout = 15 * time.Second

// Session is the REST surface of *discordgo.Session the handlers use.
type Session interface {
	discordpresenter.API
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	FollowupMessageCreate(interaction *discordgo.Interaction, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendReply(channelID string, content string, reference *discordgo.MessageReference, options ...discordgo.RequestOption) (*discordgo.Message, error)
	GuildMemberMove(guildID string, userID string, channelID *string, options ...discordgo.RequestOption) error
}

// Deps are the services behind the commands.
type Deps struct {
	Trivia   *trivia.Service
	Monitor  *recruit.Monitor
	Flags    feature.Flags
	Settings *feature.Settings
	BanWords *feature.BanWords
	Format   *discordpresenter.Formatter
}

type Options struct {
	AppID   string
	GuildID string
	// ActivityDays is shown in the /clan-players-activity footer.
	ActivityDays int
}

type Bot struct {
	gateway *discordgo.Session
	api     Session
	deps    Deps
	opts    Options
	logger  *zap.Logger

	ctx context.Context

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// New binds the handlers to dg. Call Open to connect.
func New(dg *discordgo.Session, deps Deps, opts Options, logger *zap.Logger) *Bot {
	b := newBot(dg, deps, opts, logger)
	b.gateway = dg
	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentMessageContent
	dg.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		b.logger.Info("discord_ready", zap.String("user", r.User.Username), zap.Int("guilds", len(r.Guilds)))
	})
	dg.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) { b.onInteraction(i.Interaction) })
	dg.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) { b.onMessage(m.Message) })
	dg.AddHandler(func(s *discordgo.Session, v *discordgo.VoiceStateUpdate) { b.onVoiceState(v.VoiceState) })
	return b
}

func newBot(api Session, deps Deps, opts Options, logger *zap.Logger) *Bot {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bot{
		api:    api,
		deps:   deps,
		opts:   opts,
		logger: logger,
		ctx:    context.Background(),
		timers: make(map[string]*time.Timer),
	}
}

// Open connects the gateway and registers the guild commands.
func (b *Bot) Open(ctx context.Context) error {
	b.ctx = ctx
	if err := b.gateway.Open(); err != nil {
		return fmt.Errorf("discord open: %w", err)
	}
	cmds, err := b.gateway.ApplicationCommandBulkOverwrite(b.opts.AppID, b.opts.GuildID, Commands(), discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("register commands: %w", err)
	}
	b.logger.Info("discord_commands_registered", zap.Int("count", len(cmds)), zap.String("guild", b.opts.GuildID))
	return nil
}

// Close stops pending trivia timers and the gateway. Open sessions expire on their own.
func (b *Bot) Close() error {
	b.mu.Lock()
	for id, t := range b.timers {
		t.Stop()
		delete(b.timers, id)
	}
	b.mu.Unlock()
	if b.gateway == nil {
		return nil
	}
	return b.gateway.Close()
}

func (b *Bot) handlerContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(b.ctx, handlerTimeout)
}
