package discordpresenter

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/park285/wot-clan-bot/internal/feature"
	"github.com/park285/wot-clan-bot/internal/msgcat"
	"github.com/park285/wot-clan-bot/internal/recruit"
	"github.com/park285/wot-clan-bot/internal/scraper"
	"github.com/park285/wot-clan-bot/internal/trivia"
	"github.com/park285/wot-clan-bot/internal/wgapi"
)

const (
	colorInfo  = 0x3498db
	colorRight = 0x2ecc71
	colorWrong = 0xe74c3c
	colorFold  = 0xf1c40f

	// ChartFile is the attachment name the statistics embed points at.
	ChartFile = "elo.png"

	maxDescription   = 4096
	triviaButtonKind = "trivia"
	tomatoProfileURL = "https://tomato.gg/stats/EU/%s=%d"
)

// Formatter renders domain results into Discord embeds and texts.
type Formatter struct {
	cat   *msgcat.Catalog
	admin string
}

func NewFormatter(cat *msgcat.Catalog, adminMention string) *Formatter {
	return &Formatter{cat: cat, admin: adminMention}
}

func (f *Formatter) text(key string, data map[string]any) string {
	return f.cat.Text(key, data, key)
}

// Text renders any catalog key.
func (f *Formatter) Text(key string, data map[string]any) string { return f.text(key, data) }

// TriviaButtonID encodes a candidate button as trivia:<session>:<tank>.
func TriviaButtonID(sessionID string, tankID int) string {
	return triviaButtonKind + ":" + sessionID + ":" + strconv.Itoa(tankID)
}

// ParseTriviaButton decodes a TriviaButtonID.
func ParseTriviaButton(customID string) (sessionID string, tankID int, ok bool) {
	parts := strings.Split(customID, ":")
	if len(parts) != 3 || parts[0] != triviaButtonKind || parts[1] == "" {
		return "", 0, false
	}
	id, err := strconv.Atoi(parts[2])
	if err != nil {
		return "", 0, false
	}
	return parts[1], id, true
}

// ammo names a shell type, falling back to the API's own label for unknown kinds.
func (f *Formatter) ammo(kind string) string {
	key := "ammo." + kind
	if !f.cat.Has(key) {
		return strings.ToLower(strings.ReplaceAll(kind, "_", " "))
	}
	return f.text(key, nil)
}

func (f *Formatter) Question(q *trivia.Question) (*discordgo.MessageEmbed, []discordgo.MessageComponent) {
	embed := &discordgo.MessageEmbed{
		Title: f.text("trivia.question.title", map[string]any{"Number": q.Slot + 1, "PerDay": q.PerDay}),
		Description: f.text("trivia.question.body", map[string]any{
			"Ammo":    f.ammo(q.AmmoType),
			"Alpha":   q.Alpha,
			"Seconds": int(q.Duration.Seconds()),
		}),
		Color:     colorInfo,
		Timestamp: q.StartedAt.Format(time.RFC3339),
	}
	buttons := make([]discordgo.MessageComponent, 0, len(q.Candidates))
	for _, c := range q.Candidates {
		buttons = append(buttons, discordgo.Button{
			Label:    c.Name,
			Style:    discordgo.SecondaryButton,
			CustomID: TriviaButtonID(q.SessionID, c.TankID),
		})
	}
	return embed, []discordgo.MessageComponent{discordgo.ActionsRow{Components: buttons}}
}

func (f *Formatter) Answer(out trivia.AnswerOutcome, c trivia.Candidate) string {
	switch out {
	case trivia.AnswerChanged:
		return f.text("trivia.changed", map[string]any{"Tank": c.Name})
	case trivia.AnswerAlreadySelected:
		return f.text("trivia.already_selected", nil)
	default:
		return f.text("trivia.selected", map[string]any{"Tank": c.Name})
	}
}

func (f *Formatter) Result(res *trivia.Result) *discordgo.MessageEmbed {
	chosen := ""
	if res.Chosen != nil {
		chosen = res.Chosen.Name
	}
	data := map[string]any{
		"Tank":      res.Target.Name,
		"OldElo":    res.OldElo,
		"NewElo":    res.NewElo,
		"Gain":      res.Gain(),
		"Streak":    res.Streak.Current,
		"MaxStreak": res.Streak.Max,
		"Chosen":    chosen,
	}
	key, color := "trivia.result.wrong", colorWrong
	switch {
	case !res.Answered:
		key = "trivia.result.none"
	case res.Correct:
		key, color = "trivia.result.right", colorRight
	}
	embed := &discordgo.MessageEmbed{
		Title:       res.Session.PlayerName,
		Description: f.text(key, data),
		Color:       color,
	}
	if icon := res.Target.Images.BigIcon; icon != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: icon}
	}
	return embed
}

func (f *Formatter) Rule(opts trivia.Options) string {
	return f.text("trivia.rule", map[string]any{
		"PerDay":  opts.PerDay,
		"Seconds": int(opts.Duration.Seconds()),
		"Limit":   int(opts.ResponseLimit.Seconds()),
	})
}

// Statistics renders the month summary. withChart points the embed image at ChartFile.
func (f *Formatter) Statistics(st *trivia.Stats, withChart bool) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: f.text("trivia.statistics.title", map[string]any{"Name": st.Player.Name, "Month": st.Month}),
		Color: colorInfo,
	}
	if st.Answers == 0 {
		embed.Description = f.text("trivia.statistics.none", map[string]any{"Name": st.Player.Name})
		return embed
	}
	embed.Description = f.text("trivia.statistics.body", map[string]any{
		"Elo":       st.Elo,
		"Rank":      st.Rank,
		"Players":   st.Players,
		"Answers":   st.Answers,
		"Right":     st.Right,
		"Ratio":     st.Ratio(),
		"AvgMS":     st.AvgAnswerMS,
		"Streak":    st.Streak.Current,
		"MaxStreak": st.Streak.Max,
	})
	if withChart {
		embed.Image = &discordgo.MessageEmbedImage{URL: "attachment://" + ChartFile}
	}
	return embed
}

func (f *Formatter) Leaderboard(month string, rows []trivia.Standing) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: f.text("trivia.leaderboard.title", map[string]any{"Month": month}),
		Color: colorInfo,
	}
	if len(rows) == 0 {
		embed.Description = f.text("trivia.leaderboard.empty", nil)
		return embed
	}
	lines := make([]string, 0, len(rows))
	for i, r := range rows {
		lines = append(lines, f.text("trivia.leaderboard.line", map[string]any{"Rank": i + 1, "Name": r.Name, "Elo": r.Elo}))
	}
	embed.Description = joinLimited(lines, maxDescription)
	return embed
}

func (f *Formatter) Candidate(p recruit.Posting) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: f.text("fold.candidate.title", map[string]any{"Name": p.Leaver.Name, "ClanTag": p.Clan.Tag}),
		URL:   fmt.Sprintf(tomatoProfileURL, p.Leaver.Name, p.Leaver.AccountID),
		Description: f.text("fold.candidate.body", map[string]any{
			"WN8":     fmt.Sprintf("%.0f", p.Stats.WN8),
			"Battles": p.Stats.Battles,
			"WinRate": decimal(p.Stats.WinRate),
		}),
		Color: colorFold,
	}
	if !p.Leaver.LeftAt.IsZero() {
		embed.Timestamp = p.Leaver.LeftAt.Format(time.RFC3339)
	}
	if p.Clan.ImageURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: p.Clan.ImageURL}
	}
	return embed
}

func (f *Formatter) Activity(recent wgapi.BattleCounts) string {
	return f.text("fold.activity", map[string]any{"Random": recent.Random, "Skirmish": recent.Skirmish, "Clan": recent.Clan})
}

func (f *Formatter) ClanActivity(clan *wgapi.Clan, rows []recruit.MemberActivity, days int) *discordgo.MessageEmbed {
	lines := make([]string, 0, len(rows))
	inactive := 0
	for _, r := range rows {
		if r.Inactive {
			inactive++
		}
		if r.IdleDays < 0 {
			lines = append(lines, f.text("clan_activity.never", map[string]any{"Name": r.Name}))
			continue
		}
		lines = append(lines, f.text("clan_activity.line", map[string]any{"Name": r.Name, "Days": r.IdleDays}))
	}
	embed := &discordgo.MessageEmbed{
		Title:       f.text("clan_activity.title", map[string]any{"Tag": clan.Tag}),
		Description: joinLimited(lines, maxDescription),
		Color:       colorInfo,
	}
	if inactive > 0 {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: f.text("clan_activity.inactive", map[string]any{"Count": inactive, "Days": days})}
	}
	return embed
}

func (f *Formatter) News(site scraper.Site, item scraper.Item) string {
	return f.text("news.post", map[string]any{"Site": site.Name, "URL": item.URL})
}

// Error maps a domain error to its reply. data fills the placeholders of the message.
func (f *Formatter) Error(err error, data map[string]any) string {
	merged := map[string]any{"Admin": f.admin}
	for k, v := range data {
		merged[k] = v
	}
	return f.text(errorKey(err), merged)
}

func errorKey(err error) string {
	switch {
	case errors.Is(err, trivia.ErrSessionInProgress):
		return "trivia.already_in_progress"
	case errors.Is(err, trivia.ErrDailyLimit):
		return "trivia.daily_limit"
	case errors.Is(err, trivia.ErrNoQuestion):
		return "trivia.no_question"
	case errors.Is(err, trivia.ErrSessionNotFound):
		return "trivia.expired"
	case errors.Is(err, trivia.ErrNotSessionOwner):
		return "trivia.not_yours"
	case errors.Is(err, trivia.ErrPlayerNotFound):
		return "trivia.statistics.none"
	case errors.Is(err, recruit.ErrAlreadyWatched):
		return "fold.watch_exists"
	case errors.Is(err, recruit.ErrNotWatched):
		return "fold.watch_missing"
	case errors.Is(err, recruit.ErrNotBlacklisted):
		return "fold.not_blacklisted"
	case errors.Is(err, wgapi.ErrClanNotFound):
		return "fold.watch_unknown"
	case errors.Is(err, wgapi.ErrAccountNotFound):
		return "fold.player_unknown"
	case errors.Is(err, feature.ErrChannelNotConfigured):
		return "error.channel_missing"
	default:
		return "error.generic"
	}
}

// joinLimited joins lines with newlines, dropping the tail past limit runes.
func joinLimited(lines []string, limit int) string {
	var b strings.Builder
	n := 0
	for _, l := range lines {
		size := len([]rune(l)) + 1
		if n+size > limit-1 {
			b.WriteString("…")
			break
		}
		b.WriteString(l)
		b.WriteByte('\n')
		n += size
	}
	return strings.TrimRight(b.String(), "\n")
}

func decimal(v float64) string {
	return strings.Replace(strconv.FormatFloat(v, 'f', 2, 64), ".", ",", 1)
}
