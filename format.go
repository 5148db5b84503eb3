package main

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
)

const embedFieldLimit = 1024
const defaultEmbedColor = 0x3498DB

var severityColors = map[string]int{
	SeverityCritical: 0xFF0000,
	SeverityHigh:     0xFF6600,
	SeverityMedium:   0xFFCC00,
	SeverityLow:      0x00CC00,
}

var categoryEmojis = map[string]string{
	CategoryBug:            "🐛",
	CategoryFeatureRequest: "✨",
	CategoryComplaint:      "⚠️",
	CategoryPraise:         "👍",
	CategoryDocumentation:  "📚",
	CategoryOther:          "💬",
}

func severityColor(severity string) int {
	if color, ok := severityColors[severity]; ok {
		return color
	}
	return defaultEmbedColor
}

func categoryTitle(category string) string {
	return strings.ToUpper(strings.ReplaceAll(category, "_", " "))
}

// truncate cuts s to at most limit bytes without splitting a rune.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func formatAlertEmbed(verdict Verdict, msg IncomingMessage) *discordgo.MessageEmbed {
	emoji, ok := categoryEmojis[verdict.Category]
	if !ok {
		emoji = categoryEmojis[CategoryOther]
	}

	content := truncate(msg.Content, embedFieldLimit)
	if content == "" {
		content = "No content"
	}
	severity := "N/A"
	if verdict.Severity != "" {
		severity = strings.ToUpper(verdict.Severity)
	}
	recommendation := verdict.Recommendation
	if recommendation == "" {
		recommendation = "Review message"
	}

	embed := &discordgo.MessageEmbed{
		Color: severityColor(verdict.Severity),
		Title: fmt.Sprintf("%s %s", emoji, categoryTitle(verdict.Category)),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Summary", Value: verdict.Summary},
			{Name: "Original Message", Value: content},
			{Name: "From", Value: fmt.Sprintf("%s in #%s", msg.AuthorName, msg.ChannelName), Inline: true},
			{Name: "Severity", Value: severity, Inline: true},
			{Name: "Recommendation", Value: recommendation},
		},
		Footer:    &discordgo.MessageEmbedFooter{Text: "Automated Feedback Analysis"},
		Timestamp: time.Now().Format(time.RFC3339),
	}

	if msg.URL != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "Message Link",
			Value: fmt.Sprintf("[Jump to message](%s)", msg.URL),
		})
	}
	if len(msg.Attachments) > 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "Attachments",
			Value: truncate(strings.Join(msg.Attachments, "\n"), embedFieldLimit),
		})
	}
	return embed
}

func formatExternalEmbed(rec ExternalRecord) *discordgo.MessageEmbed {
	emoji := "🐛"
	title := "NEW BUG REPORT (EXTERNAL)"
	if rec.Kind == KindFeature {
		emoji = "💡"
		title = "NEW FEATURE SUGGESTION (EXTERNAL)"
	}

	subject := rec.Title
	if subject == "" {
		subject = "No title"
	}
	description := rec.Description
	if description == "" {
		description = "No description"
	}
	status := "OPEN"
	if rec.Status != "" {
		status = strings.ToUpper(rec.Status)
	}
	severity := SeverityMedium
	if rec.Severity != "" {
		severity = rec.Severity
	}

	timestamp := rec.CreatedAt
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	embed := &discordgo.MessageEmbed{
		Color: severityColor(strings.ToLower(rec.Severity)),
		Title: fmt.Sprintf("%s %s", emoji, title),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Subject/Title", Value: subject},
			{Name: "Description", Value: truncate(description, embedFieldLimit)},
			{Name: "Status", Value: status, Inline: true},
			{Name: "Severity/Priority", Value: strings.ToUpper(severity), Inline: true},
		},
		Footer:    &discordgo.MessageEmbedFooter{Text: "Database Monitor"},
		Timestamp: timestamp.Format(time.RFC3339),
	}

	if rec.URL != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "URL",
			Value: rec.URL,
		})
	}
	return embed
}

// followUpMessage is the short confirmation posted after a bug or feature
// alert, stating that a derived row was logged. Empty for other categories.
func followUpMessage(category string) string {
	switch category {
	case CategoryBug:
		return "✅ **System Update**: This 🐛 Bug Report has been automatically logged in the database for the product team."
	case CategoryFeatureRequest:
		return "✅ **System Update**: This 💡 Feature Suggestion has been automatically logged in the database for the product team."
	}
	return ""
}
