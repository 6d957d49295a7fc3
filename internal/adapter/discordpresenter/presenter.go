package discordpresenter

import (
	"context"
	"errors"
	"net/http"

	"github.com/bwmarrin/discordgo"
	"github.com/park285/wot-clan-bot/internal/feature"
	"github.com/park285/wot-clan-bot/internal/recruit"
	"github.com/park285/wot-clan-bot/internal/scraper"
	"github.com/park285/wot-clan-bot/internal/wgapi"
)

// API is the part of *discordgo.Session used to post outside of interactions.
type API interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEditComplex(m *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
}

// Presenter delivers scheduled posts (fold candidates and news) to their channels.
type Presenter struct {
	api      API
	channels *feature.Channels
	format   *Formatter
}

func NewPresenter(api API, channels *feature.Channels, format *Formatter) *Presenter {
	return &Presenter{api: api, channels: channels, format: format}
}

func (p *Presenter) PostCandidate(ctx context.Context, posting recruit.Posting) (string, string, error) {
	channelID, err := p.channels.Resolve(ctx, feature.ChannelFold)
	if err != nil {
		return "", "", err
	}
	msg, err := p.api.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{p.format.Candidate(posting)},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", "", err
	}
	return msg.ChannelID, msg.ID, nil
}

// UpdateCandidate writes the recent battle counts above the candidate embed.
func (p *Presenter) UpdateCandidate(ctx context.Context, c recruit.Candidate, recent wgapi.BattleCounts) error {
	content := p.format.Activity(recent)
	edit := discordgo.NewMessageEdit(c.ChannelID, c.MessageID)
	edit.Content = &content
	_, err := p.api.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx))
	if isNotFound(err) {
		return nil
	}
	return err
}

// DeleteCandidate removes the posting. A message already gone counts as deleted.
func (p *Presenter) DeleteCandidate(ctx context.Context, c recruit.Candidate) error {
	err := p.api.ChannelMessageDelete(c.ChannelID, c.MessageID, discordgo.WithContext(ctx))
	if isNotFound(err) {
		return nil
	}
	return err
}

// News posts one scraped item; it satisfies scraper.Publish.
func (p *Presenter) News(ctx context.Context, site scraper.Site, item scraper.Item) error {
	channelID, err := p.channels.Resolve(ctx, feature.ChannelNews)
	if err != nil {
		return err
	}
	_, err = p.api.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content: p.format.News(site, item),
	}, discordgo.WithContext(ctx))
	return err
}

func isNotFound(err error) bool {
	var rest *discordgo.RESTError
	return errors.As(err, &rest) && rest.Response != nil && rest.Response.StatusCode == http.StatusNotFound
}
