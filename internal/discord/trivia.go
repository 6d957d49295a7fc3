package discord

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/park285/wot-clan-bot/internal/adapter/discordpresenter"
	"github.com/park285/wot-clan-bot/internal/feature"
	"github.com/park285/wot-clan-bot/internal/render"
	"github.com/park285/wot-clan-bot/internal/trivia"
	"go.uber.org/zap"
)

const leaderboardSize = 10

func (b *Bot) handleTrivia(ctx context.Context, c command) {
	switch c.sub {
	case "game":
		b.startTrivia(ctx, c.i)
	case "rule":
		b.replyEphemeral(c.i, b.deps.Format.Rule(b.deps.Trivia.Options()))
	case "statistics":
		b.triviaStatistics(ctx, c)
	case "leaderboard":
		b.triviaLeaderboard(ctx, c.i)
	default:
		b.replyEphemeral(c.i, b.deps.Format.Text("error.unknown_command", nil))
	}
}

// startTrivia acknowledges first since picking the day's questions may call the tankopedia.
// A question that cannot be delivered is abandoned so the player is neither locked nor scored.
func (b *Bot) startTrivia(ctx context.Context, i *discordgo.Interaction) {
	if on, err := b.deps.Flags.Enabled(ctx, feature.Trivia); err != nil || !on {
		b.replyEphemeral(i, b.deps.Format.Text("trivia.disabled", nil))
		return
	}
	if !b.deferReply(i, true) {
		return
	}
	u := interactionUser(i)
	q, err := b.deps.Trivia.StartGame(ctx, trivia.Identity{UserID: u.ID, Name: u.Username})
	if err != nil {
		b.failEdit(i, err, map[string]any{"PerDay": b.deps.Trivia.Options().PerDay})
		return
	}
	embed, components := b.deps.Format.Question(q)
	embeds := []*discordgo.MessageEmbed{embed}
	if !b.edit(i, &discordgo.WebhookEdit{Embeds: &embeds, Components: &components}) {
		if err := b.deps.Trivia.Abandon(context.WithoutCancel(ctx), q.SessionID); err != nil {
			b.logger.Error("trivia_abandon_failed", zap.String("session", q.SessionID), zap.Error(err))
		}
		return
	}
	b.scheduleFinish(i, q.SessionID, q.Duration)
}

func (b *Bot) scheduleFinish(i *discordgo.Interaction, sessionID string, after time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.timers[sessionID] = time.AfterFunc(after, func() {
		b.mu.Lock()
		delete(b.timers, sessionID)
		b.mu.Unlock()
		b.finishTrivia(i, sessionID)
	})
}

// finishTrivia scores the session and replaces the question with its result.
func (b *Bot) finishTrivia(i *discordgo.Interaction, sessionID string) {
	ctx, cancel := b.handlerContext()
	defer cancel()

	res, err := b.deps.Trivia.Finish(ctx, sessionID)
	if errors.Is(err, trivia.ErrSessionNotFound) {
		return
	}
	if res == nil {
		b.logger.Error("trivia_finish_failed", zap.String("session", sessionID), zap.Error(err))
		b.editText(i, b.deps.Format.Error(err, nil))
		return
	}
	embeds := []*discordgo.MessageEmbed{b.deps.Format.Result(res)}
	components := []discordgo.MessageComponent{}
	b.edit(i, &discordgo.WebhookEdit{Embeds: &embeds, Components: &components})

	if err != nil {
		b.logger.Error("trivia_persist_failed", zap.String("session", sessionID), zap.Error(err))
		if _, ferr := b.api.FollowupMessageCreate(i, false, &discordgo.WebhookParams{
			Content: b.deps.Format.Error(err, nil),
			Flags:   discordgo.MessageFlagsEphemeral,
		}); ferr != nil {
			b.logger.Warn("interaction_followup_failed", zap.Error(ferr))
		}
	}
}

func (b *Bot) handleTriviaButton(ctx context.Context, i *discordgo.Interaction, customID string) {
	sessionID, tankID, ok := discordpresenter.ParseTriviaButton(customID)
	if !ok {
		b.logger.Warn("trivia_button_invalid", zap.String("custom_id", customID))
		return
	}
	out, chosen, err := b.deps.Trivia.Answer(ctx, sessionID, interactionUser(i).ID, tankID)
	if err != nil {
		b.fail(i, err, nil)
		return
	}
	b.replyEphemeral(i, b.deps.Format.Answer(out, chosen))
}

func (b *Bot) triviaStatistics(ctx context.Context, c command) {
	u := c.user("user")
	if u == nil || u.Username == "" {
		u = interactionUser(c.i)
	}
	b.deferReply(c.i, false)

	st, err := b.deps.Trivia.Statistics(ctx, u.Username)
	if err != nil {
		b.failEdit(c.i, err, map[string]any{"Name": u.Username})
		return
	}
	chart, err := render.EloChartPNG(st.History, st.Player.Name+" "+st.Month)
	if err != nil && !errors.Is(err, render.ErrNoData) {
		b.logger.Warn("trivia_chart_failed", zap.String("player", st.Player.Name), zap.Error(err))
	}
	withChart := err == nil && len(chart) > 0
	embeds := []*discordgo.MessageEmbed{b.deps.Format.Statistics(st, withChart)}
	e := &discordgo.WebhookEdit{Embeds: &embeds}
	if withChart {
		e.Files = []*discordgo.File{{Name: discordpresenter.ChartFile, ContentType: "image/png", Reader: bytes.NewReader(chart)}}
	}
	b.edit(c.i, e)
}

func (b *Bot) triviaLeaderboard(ctx context.Context, i *discordgo.Interaction) {
	month, rows, err := b.deps.Trivia.Leaderboard(ctx, leaderboardSize)
	if err != nil {
		b.fail(i, err, nil)
		return
	}
	b.respond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Embeds: []*discordgo.MessageEmbed{b.deps.Format.Leaderboard(month, rows)}},
	})
}
