package discord

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/park285/wot-clan-bot/internal/feature"
	"github.com/park285/wot-clan-bot/internal/recruit"
	"github.com/park285/wot-clan-bot/internal/trivia"
	"github.com/park285/wot-clan-bot/internal/wgapi"
	"go.uber.org/zap"
)

// command is one parsed slash command invocation.
type command struct {
	i    *discordgo.Interaction
	name string
	sub  string
	opts map[string]*discordgo.ApplicationCommandInteractionDataOption
	data discordgo.ApplicationCommandInteractionData
}

func parseCommand(i *discordgo.Interaction) command {
	data := i.ApplicationCommandData()
	c := command{i: i, name: data.Name, data: data, opts: make(map[string]*discordgo.ApplicationCommandInteractionDataOption)}
	options := data.Options
	if len(options) == 1 && options[0].Type == discordgo.ApplicationCommandOptionSubCommand {
		c.sub = options[0].Name
		options = options[0].Options
	}
	for _, o := range options {
		c.opts[o.Name] = o
	}
	return c
}

func (c command) str(name string) string {
	if o, ok := c.opts[name]; ok {
		return strings.TrimSpace(o.StringValue())
	}
	return ""
}

// user returns the resolved user of a user option, or nil.
func (c command) user(name string) *discordgo.User {
	o, ok := c.opts[name]
	if !ok {
		return nil
	}
	id, _ := o.Value.(string)
	if c.data.Resolved != nil {
		if u, ok := c.data.Resolved.Users[id]; ok {
			return u
		}
	}
	return &discordgo.User{ID: id}
}

func interactionUser(i *discordgo.Interaction) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	if i.User != nil {
		return i.User
	}
	return &discordgo.User{}
}

func allowed(i *discordgo.Interaction, required int64) bool {
	if required == 0 {
		return true
	}
	if i.Member == nil {
		return false
	}
	p := i.Member.Permissions
	return p&discordgo.PermissionAdministrator != 0 || p&required != 0
}

func (b *Bot) onInteraction(i *discordgo.Interaction) {
	ctx, cancel := b.handlerContext()
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("interaction_panic", zap.Any("panic", r))
		}
	}()

	if b.maintenance(ctx) && !b.isMaintenanceCommand(i) {
		b.replyEphemeral(i, b.deps.Format.Text("maintenance.active", nil))
		return
	}

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		b.onCommand(ctx, parseCommand(i))
	case discordgo.InteractionMessageComponent:
		b.onComponent(ctx, i)
	}
}

func (b *Bot) maintenance(ctx context.Context) bool {
	on, err := b.deps.Flags.Enabled(ctx, feature.Maintenance)
	if err != nil {
		b.logger.Warn("feature_flag_failed", zap.String("flag", feature.Maintenance), zap.Error(err))
	}
	return on
}

func (b *Bot) isMaintenanceCommand(i *discordgo.Interaction) bool {
	return i.Type == discordgo.InteractionApplicationCommand && i.ApplicationCommandData().Name == cmdMaintenance
}

func (b *Bot) onCommand(ctx context.Context, c command) {
	if !allowed(c.i, requiredPermission[c.name]) {
		b.replyEphemeral(c.i, b.deps.Format.Text("error.permission", nil))
		return
	}
	b.logger.Info("command_received",
		zap.String("command", c.name),
		zap.String("sub", c.sub),
		zap.String("user", interactionUser(c.i).Username),
	)

	switch c.name {
	case cmdAutoDisconnect:
		b.handleAutoDisconnect(c)
	case cmdAutoReply:
		b.handleAutoReply(c)
	case cmdWatchClan:
		b.handleWatchClan(ctx, c)
	case cmdTrivia:
		b.handleTrivia(ctx, c)
	case cmdMaintenance:
		b.handleMaintenance(ctx, c)
	case cmdClanActivity:
		b.handleClanActivity(ctx, c)
	case cmdBlacklist:
		b.handleBlacklist(ctx, c)
	default:
		b.replyEphemeral(c.i, b.deps.Format.Text("error.unknown_command", nil))
	}
}

func (b *Bot) handleAutoDisconnect(c command) {
	u := c.user("user")
	if u == nil || u.ID == "" {
		b.replyEphemeral(c.i, b.deps.Format.Text("error.unknown_command", nil))
		return
	}
	on, err := b.deps.Settings.ToggleAutoDisconnect(u.ID)
	if err != nil {
		b.fail(c.i, err, nil)
		return
	}
	key := "auto_disconnect.removed"
	if on {
		key = "auto_disconnect.added"
	}
	b.replyEphemeral(c.i, b.deps.Format.Text(key, map[string]any{"User": u.Mention()}))
}

func (b *Bot) handleAutoReply(c command) {
	u := c.user("user")
	if u == nil || u.ID == "" {
		b.replyEphemeral(c.i, b.deps.Format.Text("error.unknown_command", nil))
		return
	}
	text := c.str("text")
	if err := b.deps.Settings.SetAutoReply(u.ID, text); err != nil {
		b.fail(c.i, err, nil)
		return
	}
	key := "auto_reply.set"
	if text == "" {
		key = "auto_reply.removed"
	}
	b.replyEphemeral(c.i, b.deps.Format.Text(key, map[string]any{"User": u.Mention()}))
}

func (b *Bot) handleWatchClan(ctx context.Context, c command) {
	tag := strings.ToUpper(c.str("tag"))
	b.deferReply(c.i, true)
	switch c.sub {
	case "add":
		wc, err := b.deps.Monitor.Watch(ctx, tag)
		if err != nil {
			b.failEdit(c.i, err, map[string]any{"Tag": tag})
			return
		}
		b.editText(c.i, b.deps.Format.Text("fold.watch_added", map[string]any{"Tag": wc.Tag, "Name": wc.Name}))
	case "remove":
		wc, err := b.deps.Monitor.Unwatch(ctx, tag)
		if err != nil {
			b.failEdit(c.i, err, map[string]any{"Tag": tag})
			return
		}
		b.editText(c.i, b.deps.Format.Text("fold.watch_removed", map[string]any{"Tag": wc.Tag}))
	default:
		b.editText(c.i, b.deps.Format.Text("error.unknown_command", nil))
	}
}

func (b *Bot) handleMaintenance(ctx context.Context, c command) {
	on := c.sub == "start"
	if err := b.deps.Flags.Set(ctx, feature.Maintenance, on); err != nil {
		b.fail(c.i, err, nil)
		return
	}
	b.logger.Info("maintenance_toggled", zap.Bool("enabled", on), zap.String("user", interactionUser(c.i).Username))
	key := "maintenance.ended"
	if on {
		key = "maintenance.started"
	}
	b.replyEphemeral(c.i, b.deps.Format.Text(key, nil))
}

func (b *Bot) handleClanActivity(ctx context.Context, c command) {
	tag := strings.ToUpper(c.str("clan"))
	b.deferReply(c.i, false)
	clan, rows, err := b.deps.Monitor.ClanPlayersActivity(ctx, tag)
	if err != nil {
		b.failEdit(c.i, err, map[string]any{"Tag": tag})
		return
	}
	b.editEmbeds(c.i, b.deps.Format.ClanActivity(clan, rows, b.opts.ActivityDays))
}

func (b *Bot) handleBlacklist(ctx context.Context, c command) {
	nickname := c.str("nickname")
	b.deferReply(c.i, true)
	data := map[string]any{"Name": nickname}
	switch c.sub {
	case "add":
		p, err := b.deps.Monitor.Blacklist(ctx, nickname, c.str("reason"))
		if err != nil {
			b.failEdit(c.i, err, data)
			return
		}
		b.editText(c.i, b.deps.Format.Text("fold.blacklist_added", map[string]any{"Name": p.Name}))
	case "remove":
		p, err := b.deps.Monitor.Unblacklist(ctx, nickname)
		if err != nil {
			b.failEdit(c.i, err, data)
			return
		}
		b.editText(c.i, b.deps.Format.Text("fold.blacklist_removed", map[string]any{"Name": p.Name}))
	default:
		b.editText(c.i, b.deps.Format.Text("error.unknown_command", nil))
	}
}

func (b *Bot) onComponent(ctx context.Context, i *discordgo.Interaction) {
	id := i.MessageComponentData().CustomID
	if strings.HasPrefix(id, "trivia:") {
		b.handleTriviaButton(ctx, i, id)
		return
	}
	b.logger.Warn("component_unknown", zap.String("custom_id", id))
}

// replies

// respond reports whether Discord accepted the response.
func (b *Bot) respond(i *discordgo.Interaction, resp *discordgo.InteractionResponse) bool {
	if err := b.api.InteractionRespond(i, resp); err != nil {
		b.logger.Warn("interaction_respond_failed", zap.String("interaction", i.ID), zap.Error(err))
		return false
	}
	return true
}

func (b *Bot) replyEphemeral(i *discordgo.Interaction, text string) {
	b.respond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: text, Flags: discordgo.MessageFlagsEphemeral},
	})
}

// deferReply acknowledges a slow command; the answer follows through edit calls.
func (b *Bot) deferReply(i *discordgo.Interaction, ephemeral bool) bool {
	data := &discordgo.InteractionResponseData{}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	return b.respond(i, &discordgo.InteractionResponse{Type: discordgo.InteractionResponseDeferredChannelMessageWithSource, Data: data})
}

func (b *Bot) edit(i *discordgo.Interaction, e *discordgo.WebhookEdit) bool {
	if _, err := b.api.InteractionResponseEdit(i, e); err != nil {
		b.logger.Warn("interaction_edit_failed", zap.String("interaction", i.ID), zap.Error(err))
		return false
	}
	return true
}

func (b *Bot) editText(i *discordgo.Interaction, text string) {
	b.edit(i, &discordgo.WebhookEdit{Content: &text})
}

func (b *Bot) editEmbeds(i *discordgo.Interaction, embeds ...*discordgo.MessageEmbed) {
	b.edit(i, &discordgo.WebhookEdit{Embeds: &embeds})
}

func (b *Bot) logFailure(i *discordgo.Interaction, err error) {
	if isUserError(err) {
		return
	}
	b.logger.Error("interaction_failed", zap.String("interaction", i.ID), zap.Error(err))
}

func (b *Bot) fail(i *discordgo.Interaction, err error, data map[string]any) {
	b.logFailure(i, err)
	b.replyEphemeral(i, b.deps.Format.Error(err, data))
}

func (b *Bot) failEdit(i *discordgo.Interaction, err error, data map[string]any) {
	b.logFailure(i, err)
	b.editText(i, b.deps.Format.Error(err, data))
}

// userErrors are answered to the user without an error log.
var userErrors = []error{
	trivia.ErrSessionInProgress,
	trivia.ErrDailyLimit,
	trivia.ErrNoQuestion,
	trivia.ErrSessionNotFound,
	trivia.ErrNotSessionOwner,
	trivia.ErrUnknownCandidate,
	trivia.ErrPlayerNotFound,
	recruit.ErrAlreadyWatched,
	recruit.ErrNotWatched,
	recruit.ErrNotBlacklisted,
	wgapi.ErrClanNotFound,
	wgapi.ErrAccountNotFound,
}

func isUserError(err error) bool {
	for _, target := range userErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
