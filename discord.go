package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

// Bot wires the gateway handlers to the filter, classifier, store and router.
type Bot struct {
	cfg        Config
	db         *sql.DB
	classifier Classifier
	router     *Router
}

func NewBot(cfg Config, db *sql.DB, classifier Classifier, router *Router) *Bot {
	return &Bot{cfg: cfg, db: db, classifier: classifier, router: router}
}

func NewDiscordSession(token string) (*discordgo.Session, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentMessageContent
	return session, nil
}

func (b *Bot) OnReady(s *discordgo.Session, r *discordgo.Ready) {
	var names []string
	for _, guild := range r.Guilds {
		names = append(names, guild.Name)
	}
	log.Printf("bot logged in as %s, connected to %d servers: %s",
		r.User.Username, len(r.Guilds), strings.Join(names, ", "))
	log.Printf("monitoring channels: %s", strings.Join(b.cfg.MonitoredChannels, ", "))
}

// OnMessageCreate runs the inbound pipeline: allow-list, relevance filter,
// persist, classify, persist alert, route. Every failure is scoped to this
// one message.
func (b *Bot) OnMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.ID == s.State.User.ID {
		return
	}
	if b.cfg.GuildID != "" && m.GuildID != b.cfg.GuildID {
		return
	}

	channel, err := channelInfo(s, m.ChannelID)
	if err != nil {
		log.Printf("channel lookup error channel=%s: %v", m.ChannelID, err)
		return
	}
	if !b.cfg.IsMonitoredChannel(channel.Name) {
		return
	}

	msg := incomingFromDiscord(s, m, channel.Name)
	if !isRelevantMessage(msg, b.cfg.MinMessageLength) {
		log.Printf("skipping irrelevant message from %s in #%s", msg.AuthorName, msg.ChannelName)
		return
	}
	log.Printf("new message in #%s from %s", msg.ChannelName, msg.AuthorName)

	if err := StoreMessage(b.db, msg); err != nil {
		log.Printf("error storing message %s: %v", msg.MessageID, err)
		return
	}

	verdict, err := b.classifier.Classify(context.Background(), msg.Content)
	if err != nil {
		log.Printf("classification error message=%s: %v", msg.MessageID, err)
		return
	}

	if !verdict.RequiresAlert {
		log.Printf("no alert required message=%s category=%s", msg.MessageID, verdict.Category)
		return
	}
	log.Printf("alert triggered message=%s category=%s severity=%s", msg.MessageID, verdict.Category, verdict.Severity)

	alert := AlertRecord{
		MessageID:      msg.MessageID,
		Category:       verdict.Category,
		Severity:       verdict.Severity,
		Summary:        verdict.Summary,
		Recommendation: verdict.Recommendation,
		Timestamp:      time.Now().UTC(),
	}
	if err := StoreAlert(b.db, alert); err != nil {
		log.Printf("error storing alert message=%s: %v", msg.MessageID, err)
		return
	}

	b.router.RouteAlert(verdict, msg)
}

func channelInfo(s *discordgo.Session, channelID string) (*discordgo.Channel, error) {
	if channel, err := s.State.Channel(channelID); err == nil {
		return channel, nil
	}
	return s.Channel(channelID)
}

func incomingFromDiscord(s *discordgo.Session, m *discordgo.MessageCreate, channelName string) IncomingMessage {
	guildName := ""
	if guild, err := s.State.Guild(m.GuildID); err == nil {
		guildName = guild.Name
	}

	timestamp := m.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	var attachments []string
	for _, a := range m.Attachments {
		attachments = append(attachments, a.URL)
	}

	return IncomingMessage{
		MessageID:   m.ID,
		ChannelID:   m.ChannelID,
		ChannelName: channelName,
		GuildID:     m.GuildID,
		GuildName:   guildName,
		AuthorID:    m.Author.ID,
		AuthorName:  m.Author.Username,
		AuthorIsBot: m.Author.Bot,
		Content:     m.Content,
		Timestamp:   timestamp,
		URL:         messageURL(m.GuildID, m.ChannelID, m.ID),
		Attachments: attachments,
	}
}

func messageURL(guildID, channelID, messageID string) string {
	if guildID == "" || channelID == "" || messageID == "" {
		return ""
	}
	return fmt.Sprintf("https://discord.com/channels/%s/%s/%s", guildID, channelID, messageID)
}

// --- Slash commands ---

var slashCommands = []*discordgo.ApplicationCommand{
	{
		Name:        "recent-alerts",
		Description: "Show recent alerts from the feedback system",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "hours",
				Description: "Hours to look back (default: 24)",
			},
		},
	},
	{
		Name:        "stats",
		Description: "Show daily alert counts and per-channel activity",
	},
	{
		Name:        "search-alerts",
		Description: "Search alerts and messages",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "query",
				Description: "Search term",
				Required:    true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "category",
				Description: "Filter by category",
				Choices: []*discordgo.ApplicationCommandOptionChoice{
					{Name: "Bug", Value: CategoryBug},
					{Name: "Feature Request", Value: CategoryFeatureRequest},
					{Name: "Complaint", Value: CategoryComplaint},
				},
			},
		},
	},
}

func (b *Bot) RegisterCommands(s *discordgo.Session) {
	for _, cmd := range slashCommands {
		if _, err := s.ApplicationCommandCreate(s.State.User.ID, b.cfg.GuildID, cmd); err != nil {
			log.Printf("command registration error name=%s: %v", cmd.Name, err)
		}
	}
}

func (b *Bot) OnInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	userID := interactionUserID(i)
	if len(b.cfg.TeamMemberIDs) > 0 && !b.cfg.IsTeamMemberID(userID) {
		respondText(s, i, "Sorry, this command is limited to team members.")
		return
	}

	data := i.ApplicationCommandData()
	switch data.Name {
	case "recent-alerts":
		b.handleRecentAlerts(s, i, data)
	case "search-alerts":
		b.handleSearchAlerts(s, i, data)
	case "stats":
		b.handleStats(s, i)
	}
}

func (b *Bot) handleRecentAlerts(s *discordgo.Session, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	hours := 24
	for _, opt := range data.Options {
		if opt.Name == "hours" {
			hours = int(opt.IntValue())
		}
	}
	if hours < 1 {
		hours = 24
	}

	alerts, err := RecentAlerts(b.db, hours)
	if err != nil {
		log.Printf("recent-alerts query error: %v", err)
		respondText(s, i, "Error fetching alerts.")
		return
	}
	if len(alerts) == 0 {
		respondText(s, i, fmt.Sprintf("No alerts found in the last %d hours.", hours))
		return
	}
	respondEmbeds(s, i, alertListEmbeds(alerts))
}

func (b *Bot) handleSearchAlerts(s *discordgo.Session, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	var query, category string
	for _, opt := range data.Options {
		switch opt.Name {
		case "query":
			query = opt.StringValue()
		case "category":
			category = opt.StringValue()
		}
	}

	results, err := SearchAlerts(b.db, query, SearchFilters{Category: category})
	if err != nil {
		log.Printf("search-alerts query error: %v", err)
		respondText(s, i, "Error searching alerts.")
		return
	}
	if len(results) == 0 {
		respondText(s, i, "No results found for your search.")
		return
	}
	respondEmbeds(s, i, alertListEmbeds(results))
}

func (b *Bot) handleStats(s *discordgo.Session, i *discordgo.InteractionCreate) {
	counts, err := DailyCategoryCounts(b.db)
	if err != nil {
		log.Printf("stats query error: %v", err)
		respondText(s, i, "Error fetching stats.")
		return
	}
	channels, err := ChannelStats(b.db)
	if err != nil {
		log.Printf("stats query error: %v", err)
		respondText(s, i, "Error fetching stats.")
		return
	}
	respondEmbeds(s, i, statsEmbeds(counts, channels))
}

func statsEmbeds(counts []CategoryCount, channels []ChannelStat) []*discordgo.MessageEmbed {
	embeds := []*discordgo.MessageEmbed{digestEmbed(counts)}

	var lines []string
	for _, c := range channels {
		lines = append(lines, fmt.Sprintf("#%s: %d messages, %d authors, %d alerts",
			c.ChannelName, c.MessageCount, c.UniqueAuthors, c.AlertCount))
	}
	body := "No monitored channel activity yet."
	if len(lines) > 0 {
		body = strings.Join(lines, "\n")
	}
	embeds = append(embeds, &discordgo.MessageEmbed{
		Title:       "📈 Channel Activity",
		Description: body,
		Color:       defaultEmbedColor,
		Footer:      &discordgo.MessageEmbedFooter{Text: "Automated Feedback Analysis"},
	})
	return embeds
}

func alertListEmbeds(alerts []RecentAlert) []*discordgo.MessageEmbed {
	limit := 10
	if len(alerts) < limit {
		limit = len(alerts)
	}

	var embeds []*discordgo.MessageEmbed
	for _, alert := range alerts[:limit] {
		severity := "N/A"
		if alert.Severity != "" {
			severity = strings.ToUpper(alert.Severity)
		}
		embeds = append(embeds, &discordgo.MessageEmbed{
			Title:       categoryTitle(alert.Category),
			Description: alert.Summary,
			Color:       severityColor(alert.Severity),
			Fields: []*discordgo.MessageEmbedField{
				{Name: "Author", Value: alert.AuthorName, Inline: true},
				{Name: "Severity", Value: severity, Inline: true},
				{Name: "Message", Value: truncate(alert.Content, 100)},
			},
			Timestamp: alert.Timestamp.Format(time.RFC3339),
		})
	}
	return embeds
}

func respondText(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: content},
	})
	if err != nil {
		log.Printf("interaction respond error: %v", err)
	}
}

func respondEmbeds(s *discordgo.Session, i *discordgo.InteractionCreate, embeds []*discordgo.MessageEmbed) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Embeds: embeds},
	})
	if err != nil {
		log.Printf("interaction respond error: %v", err)
	}
}

func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}
