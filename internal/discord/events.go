package discord

import (
	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// onMessage deletes messages carrying a ban word and answers mentions of users with an auto reply.
func (b *Bot) onMessage(m *discordgo.Message) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	ctx, cancel := b.handlerContext()
	defer cancel()

	if b.deps.BanWords != nil {
		word, hit, err := b.deps.BanWords.Match(ctx, m.Content)
		if err != nil {
			b.logger.Warn("ban_words_failed", zap.Error(err))
		}
		if hit {
			if err := b.api.ChannelMessageDelete(m.ChannelID, m.ID); err != nil {
				b.logger.Warn("ban_word_delete_failed", zap.String("message", m.ID), zap.Error(err))
				return
			}
			b.logger.Info("ban_word_deleted", zap.String("author", m.Author.Username), zap.String("word", word))
			return
		}
	}

	seen := make(map[string]bool, len(m.Mentions))
	for _, u := range m.Mentions {
		if u == nil || seen[u.ID] || u.ID == m.Author.ID {
			continue
		}
		seen[u.ID] = true
		text, ok := b.deps.Settings.AutoReply(u.ID)
		if !ok {
			continue
		}
		if _, err := b.api.ChannelMessageSendReply(m.ChannelID, text, m.Reference()); err != nil {
			b.logger.Warn("auto_reply_failed", zap.String("user", u.ID), zap.Error(err))
		}
	}
}

// onVoiceState kicks flagged members out of any voice channel they join.
func (b *Bot) onVoiceState(v *discordgo.VoiceState) {
	if v == nil || v.ChannelID == "" || !b.deps.Settings.AutoDisconnect(v.UserID) {
		return
	}
	if err := b.api.GuildMemberMove(v.GuildID, v.UserID, nil); err != nil {
		b.logger.Warn("auto_disconnect_failed", zap.String("user", v.UserID), zap.Error(err))
		return
	}
	b.logger.Info("auto_disconnected", zap.String("user", v.UserID), zap.String("channel", v.ChannelID))
}
