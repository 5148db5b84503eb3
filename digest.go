package main

import (
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/robfig/cron/v3"
)

// StartDigestScheduler posts a daily-style summary of the last 24h of alerts
// to the first default destination channel of every server, on a standard
// 5-field cron schedule (minute hour day-of-month month day-of-week).
// Examples: "0 9 * * *" (daily 9am), "0 9 * * 1-5" (weekdays 9am).
func StartDigestScheduler(cfg Config, db *sql.DB, router *Router) {
	schedule := strings.TrimSpace(cfg.DigestSchedule)
	if schedule == "" {
		log.Println("Digest disabled (digest_schedule not set)")
		return
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(schedule)
	if err != nil {
		log.Printf("Invalid digest_schedule '%s': %v, digest disabled", schedule, err)
		return
	}
	log.Printf("Digest scheduled (cron: %s)", schedule)

	go func() {
		for {
			now := time.Now()
			next := sched.Next(now)
			wait := next.Sub(now)
			log.Printf("Next digest at %s (in %s)", next.Format("Mon Jan 2 15:04"), wait.Round(time.Minute))

			time.Sleep(wait)

			if err := postDigest(db, router); err != nil {
				log.Printf("Digest error: %v", err)
			}
		}
	}()
}

func postDigest(db *sql.DB, router *Router) error {
	counts, err := DailyCategoryCounts(db)
	if err != nil {
		return fmt.Errorf("digest query: %w", err)
	}

	embed := digestEmbed(counts)
	for _, guild := range router.guilds() {
		names := router.policy.DestinationsFor(guild.Name, CategoryOther)
		if len(names) == 0 {
			continue
		}
		channels, err := router.channels(guild.ID)
		if err != nil {
			log.Printf("digest channel list error guild=%s: %v", guild.Name, err)
			continue
		}
		channel := resolveChannelByName(channels, names[0])
		if channel == nil {
			log.Printf("digest warning: channel #%s not found in guild %q", names[0], guild.Name)
			continue
		}
		if err := router.sendEmbed(channel.ID, embed); err != nil {
			log.Printf("digest send error guild=%s channel=#%s: %v", guild.Name, names[0], err)
		}
	}
	return nil
}

func digestEmbed(counts []CategoryCount) *discordgo.MessageEmbed {
	var lines []string
	total := 0
	for _, c := range counts {
		emoji, ok := categoryEmojis[c.Category]
		if !ok {
			emoji = categoryEmojis[CategoryOther]
		}
		lines = append(lines, fmt.Sprintf("%s %s: %d", emoji, categoryTitle(c.Category), c.Count))
		total += c.Count
	}
	body := "No alerts in the last 24 hours."
	if len(lines) > 0 {
		body = strings.Join(lines, "\n")
	}

	return &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("📊 Daily Feedback Digest (%d alerts)", total),
		Description: body,
		Color:       defaultEmbedColor,
		Footer:      &discordgo.MessageEmbedFooter{Text: "Automated Feedback Analysis"},
		Timestamp:   time.Now().Format(time.RFC3339),
	}
}
