package discord

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/park285/wot-clan-bot/internal/adapter/discordpresenter"
	"github.com/park285/wot-clan-bot/internal/feature"
	"github.com/park285/wot-clan-bot/internal/msgcat"
	"github.com/park285/wot-clan-bot/internal/trivia"
	"github.com/park285/wot-clan-bot/internal/wgapi"
)

type fakeSession struct {
	responses []*discordgo.InteractionResponse
	edits     []*discordgo.WebhookEdit
	followups []*discordgo.WebhookParams
	replies   []string
	deleted   []string
	moved     []string

	respondErr error
	editErr    error
}

func (f *fakeSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	return &discordgo.Message{ID: "m", ChannelID: channelID}, nil
}

func (f *fakeSession) ChannelMessageEditComplex(m *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	return &discordgo.Message{ID: m.ID, ChannelID: m.Channel}, nil
}

func (f *fakeSession) ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error {
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakeSession) InteractionRespond(i *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error {
	if f.respondErr != nil {
		return f.respondErr
	}
	f.responses = append(f.responses, resp)
	return nil
}

func (f *fakeSession) InteractionResponseEdit(i *discordgo.Interaction, e *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	if f.editErr != nil {
		return nil, f.editErr
	}
	f.edits = append(f.edits, e)
	return &discordgo.Message{}, nil
}

func (f *fakeSession) FollowupMessageCreate(i *discordgo.Interaction, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.followups = append(f.followups, data)
	return &discordgo.Message{}, nil
}

func (f *fakeSession) ChannelMessageSendReply(channelID, content string, ref *discordgo.MessageReference, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.replies = append(f.replies, content)
	return &discordgo.Message{}, nil
}

func (f *fakeSession) GuildMemberMove(guildID, userID string, channelID *string, options ...discordgo.RequestOption) error {
	f.moved = append(f.moved, userID)
	return nil
}

func (f *fakeSession) lastContent(t *testing.T) string {
	t.Helper()
	if len(f.responses) == 0 { t.Fatalf("no interaction response") }
	return f.responses[len(f.responses)-1].Data.Content
}

func (f *fakeSession) lastEdit(t *testing.T) *discordgo.WebhookEdit {
	t.Helper()
	if len(f.edits) == 0 { t.Fatalf("no interaction edit") }
	return f.edits[len(f.edits)-1]
}

// question returns the buttons of the last delivered trivia question.
func (f *fakeSession) question(t *testing.T) []discordgo.MessageComponent {
	t.Helper()
	e := f.lastEdit(t)
	if e.Embeds == nil || len(*e.Embeds) != 1 || e.Components == nil || len(*e.Components) != 1 {
		t.Fatalf("question not delivered: %+v", e)
	}
	return (*e.Components)[0].(discordgo.ActionsRow).Components
}

type vehicles struct{}

func (vehicles) Vehicles(ctx context.Context, page int) (*wgapi.VehiclePage, error) {
	p := &wgapi.VehiclePage{Page: page, PageTotal: 1}
	for i, alpha := range []int{110, 160, 240, 320, 390} {
		p.Vehicles = append(p.Vehicles, wgapi.VehicleData{
			TankID: i + 1,
			Name:   "tank" + string(rune('A'+i)),
			DefaultProfile: wgapi.VehicleProfile{Ammo: []wgapi.Ammo{{Type: "ARMOR_PIERCING", Damage: []int{alpha - 20, alpha, alpha + 20}}}},
		})
	}
	return p, nil
}

func newTestBot(t *testing.T) (*Bot, *fakeSession) {
	t.Helper()
	cat, err := msgcat.New("")
	if err != nil { t.Fatalf("msgcat: %v", err) }
	settings, err := feature.OpenSettings(filepath.Join(t.TempDir(), "feature.json"))
	if err != nil { t.Fatalf("settings: %v", err) }

	repo := trivia.NewMemoryRepository()
	sel := trivia.NewSelector(repo, vehicles{}, 2, 4, 1, nil)
	svc := trivia.NewService(repo, trivia.NewMemorySessions(), sel, trivia.Options{PerDay: 2, Duration: time.Minute}, nil)

	api := &fakeSession{}
	b := newBot(api, Deps{
		Trivia:   svc,
		Flags:    feature.NewMemoryFlags(),
		Settings: settings,
		BanWords: feature.NewStaticBanWords("triche"),
		Format:   discordpresenter.NewFormatter(cat, "<@&1>"),
	}, Options{GuildID: "g"}, nil)
	t.Cleanup(func() { _ = b.Close() })
	return b, api
}

func member(id string, perms int64) *discordgo.Member {
	return &discordgo.Member{User: &discordgo.User{ID: id, Username: "user" + id}, Permissions: perms}
}

func slash(name string, m *discordgo.Member, options ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.Interaction {
	return &discordgo.Interaction{
		ID:     "i-" + name,
		Type:   discordgo.InteractionApplicationCommand,
		Member: m,
		Data:   discordgo.ApplicationCommandInteractionData{Name: name, Options: options},
	}
}

func sub(name string, options ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionSubCommand, Options: options}
}

func userOpt(id string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: "user", Type: discordgo.ApplicationCommandOptionUser, Value: id}
}

func TestCommandsDeclarePermissions(t *testing.T) {
	for _, c := range Commands() {
		want, gated := requiredPermission[c.Name]
		if !gated {
			if c.DefaultMemberPermissions != nil { t.Fatalf("%s must be open to everyone", c.Name) }
			continue
		}
		if c.DefaultMemberPermissions == nil || *c.DefaultMemberPermissions != want {
			t.Fatalf("%s: unexpected permissions %v", c.Name, c.DefaultMemberPermissions)
		}
	}
}

func TestPermissionDenied(t *testing.T) {
	b, api := newTestBot(t)
	b.onInteraction(slash(cmdAutoDisconnect, member("1", 0), userOpt("2")))
	if got := api.lastContent(t); !strings.Contains(got, "permission") { t.Fatalf("expected refusal, got %q", got) }
	if b.deps.Settings.AutoDisconnect("2") { t.Fatalf("refused command must not change settings") }
}

func TestAutoDisconnectToggleAndVoiceMove(t *testing.T) {
	b, api := newTestBot(t)
	admin := member("1", discordgo.PermissionVoiceMoveMembers)
	b.onInteraction(slash(cmdAutoDisconnect, admin, userOpt("2")))
	if !b.deps.Settings.AutoDisconnect("2") { t.Fatalf("user must be flagged") }
	if got := api.lastContent(t); !strings.Contains(got, "<@2>") { t.Fatalf("reply %q", got) }

	b.onVoiceState(&discordgo.VoiceState{GuildID: "g", UserID: "2", ChannelID: "voice"})
	b.onVoiceState(&discordgo.VoiceState{GuildID: "g", UserID: "2", ChannelID: ""})
	b.onVoiceState(&discordgo.VoiceState{GuildID: "g", UserID: "3", ChannelID: "voice"})
	if len(api.moved) != 1 || api.moved[0] != "2" { t.Fatalf("unexpected moves: %v", api.moved) }
}

func TestMaintenanceGate(t *testing.T) {
	b, api := newTestBot(t)
	mod := member("1", discordgo.PermissionKickMembers)
	b.onInteraction(slash(cmdMaintenance, mod, sub("start")))
	if got := api.lastContent(t); !strings.Contains(got, "activé") { t.Fatalf("reply %q", got) }

	b.onInteraction(slash(cmdTrivia, member("2", 0), sub("rule")))
	if got := api.lastContent(t); !strings.Contains(got, "maintenance") { t.Fatalf("expected maintenance reply, got %q", got) }

	b.onInteraction(slash(cmdMaintenance, mod, sub("end")))
	b.onInteraction(slash(cmdTrivia, member("2", 0), sub("rule")))
	if got := api.lastContent(t); !strings.Contains(got, "Règles") { t.Fatalf("expected rules, got %q", got) }
}

func TestMessageBanWordAndAutoReply(t *testing.T) {
	b, api := newTestBot(t)
	if err := b.deps.Settings.SetAutoReply("9", "absent jusqu'à lundi"); err != nil { t.Fatalf("SetAutoReply: %v", err) }

	b.onMessage(&discordgo.Message{ID: "m1", ChannelID: "c", Content: "c'est de la TRICHE", Author: &discordgo.User{ID: "1"}})
	if len(api.deleted) != 1 || api.deleted[0] != "m1" { t.Fatalf("ban word must delete: %v", api.deleted) }

	b.onMessage(&discordgo.Message{ID: "m2", ChannelID: "c", Content: "hey", Author: &discordgo.User{ID: "1"},
		Mentions: []*discordgo.User{{ID: "9"}, {ID: "9"}}})
	if len(api.replies) != 1 || api.replies[0] != "absent jusqu'à lundi" { t.Fatalf("unexpected replies: %v", api.replies) }

	b.onMessage(&discordgo.Message{ID: "m3", ChannelID: "c", Content: "triche", Author: &discordgo.User{ID: "bot", Bot: true}})
	if len(api.deleted) != 1 { t.Fatalf("bot messages are ignored") }
}

func TestTriviaGameFlow(t *testing.T) {
	b, api := newTestBot(t)
	player := member("5", 0)
	game := slash(cmdTrivia, player, sub("game"))
	b.onInteraction(game)

	if api.responses[0].Type != discordgo.InteractionResponseDeferredChannelMessageWithSource {
		t.Fatalf("game must be deferred, got %v", api.responses[0].Type)
	}
	buttons := api.question(t)
	first := buttons[0].(discordgo.Button)
	sessionID, _, ok := discordpresenter.ParseTriviaButton(first.CustomID)
	if !ok { t.Fatalf("bad custom id %q", first.CustomID) }

	click := func(m *discordgo.Member) {
		b.onInteraction(&discordgo.Interaction{
			ID: "click", Type: discordgo.InteractionMessageComponent, Member: m,
			Data: discordgo.MessageComponentInteractionData{CustomID: first.CustomID, ComponentType: discordgo.ButtonComponent},
		})
	}
	click(player)
	if got := api.lastContent(t); !strings.Contains(got, first.Label) { t.Fatalf("answer reply %q", got) }
	click(member("6", 0))
	if got := api.lastContent(t); !strings.Contains(got, "pas destinée") { t.Fatalf("stranger reply %q", got) }

	b.onInteraction(slash(cmdTrivia, player, sub("game")))
	if got := api.lastEdit(t).Content; got == nil || !strings.Contains(*got, "déjà une question") { t.Fatalf("second game reply %v", got) }

	edits := len(api.edits)
	b.finishTrivia(game, sessionID)
	last := api.lastEdit(t)
	if len(api.edits) != edits+1 || len(*last.Embeds) != 1 || len(*last.Components) != 0 {
		t.Fatalf("result must replace the question: %+v", last)
	}
	b.finishTrivia(game, sessionID)
	if len(api.edits) != edits+1 { t.Fatalf("finished session must not be edited twice") }
}

func TestTriviaUndeliveredQuestionIsAbandoned(t *testing.T) {
	b, api := newTestBot(t)
	player := member("5", 0)

	api.respondErr = errors.New("unknown interaction")
	b.onInteraction(slash(cmdTrivia, player, sub("game")))
	api.respondErr = nil

	api.editErr = errors.New("unknown webhook")
	b.onInteraction(slash(cmdTrivia, player, sub("game")))
	api.editErr = nil
	b.mu.Lock()
	armed := len(b.timers)
	b.mu.Unlock()
	if armed != 0 { t.Fatalf("undelivered question must not be timed, %d timers", armed) }

	b.onInteraction(slash(cmdTrivia, player, sub("game")))
	if buttons := api.question(t); len(buttons) == 0 { t.Fatalf("question without buttons") }
	if title := (*api.lastEdit(t).Embeds)[0].Title; title != "Question 1/2" { t.Fatalf("player must get the first question again, got %q", title) }

	st, err := b.deps.Trivia.Statistics(context.Background(), player.User.Username)
	if err != nil { t.Fatalf("Statistics: %v", err) }
	if st.Answers != 0 { t.Fatalf("abandoned questions must not be scored, got %d answers", st.Answers) }
}
