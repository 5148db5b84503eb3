package main

import (
	"log"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// RoutingPolicy maps (server name, category) to an ordered destination
// channel name set. Category channels fall back to the default channels;
// server overrides add channels and never remove any.
type RoutingPolicy struct {
	cfg RoutesConfig
}

func NewRoutingPolicy(cfg RoutesConfig) RoutingPolicy {
	return RoutingPolicy{cfg: cfg}
}

func (p RoutingPolicy) DestinationsFor(serverName, category string) []string {
	names := p.cfg.Channels[category]
	if len(names) == 0 {
		names = p.cfg.DefaultChannels
	}

	var out []string
	seen := make(map[string]bool)
	add := func(name string) {
		name = strings.TrimSpace(name)
		key := strings.ToLower(name)
		if name == "" || seen[key] {
			return
		}
		seen[key] = true
		out = append(out, name)
	}
	for _, name := range names {
		add(name)
	}

	server := strings.ToLower(serverName)
	for _, override := range p.cfg.Overrides {
		predicate := strings.ToLower(strings.TrimSpace(override.ServerContains))
		if predicate == "" || !strings.Contains(server, predicate) {
			continue
		}
		for _, name := range override.AddChannels {
			add(name)
		}
	}
	return out
}

// Router delivers formatted notifications to every destination channel of
// every server the bot belongs to. The Discord surface is held as funcs so
// tests can record sends without a live session.
type Router struct {
	policy    RoutingPolicy
	guilds    func() []*discordgo.Guild
	channels  func(guildID string) ([]*discordgo.Channel, error)
	sendEmbed func(channelID string, embed *discordgo.MessageEmbed) error
	sendText  func(channelID, content string) error
}

func NewRouter(session *discordgo.Session, policy RoutingPolicy) *Router {
	return &Router{
		policy: policy,
		guilds: func() []*discordgo.Guild {
			return session.State.Guilds
		},
		channels: func(guildID string) ([]*discordgo.Channel, error) {
			if guild, err := session.State.Guild(guildID); err == nil && len(guild.Channels) > 0 {
				return guild.Channels, nil
			}
			return session.GuildChannels(guildID)
		},
		sendEmbed: func(channelID string, embed *discordgo.MessageEmbed) error {
			_, err := session.ChannelMessageSendEmbed(channelID, embed)
			return err
		},
		sendText: func(channelID, content string) error {
			_, err := session.ChannelMessageSend(channelID, content)
			return err
		},
	}
}

// RouteAlert delivers an internal alert, plus a follow-up confirmation when
// a derived row was logged for it.
func (r *Router) RouteAlert(verdict Verdict, msg IncomingMessage) {
	embed := formatAlertEmbed(verdict, msg)
	r.deliver(verdict.Category, embed, followUpMessage(verdict.Category))
}

// RouteExternal delivers an externally authored record found by the monitor.
func (r *Router) RouteExternal(rec ExternalRecord) {
	embed := formatExternalEmbed(rec)
	r.deliver(rec.Category(), embed, "")
}

func (r *Router) deliver(category string, embed *discordgo.MessageEmbed, followUp string) {
	guilds := r.guilds()
	log.Printf("routing category=%s servers=%d", category, len(guilds))

	for _, guild := range guilds {
		names := r.policy.DestinationsFor(guild.Name, category)
		channels, err := r.channels(guild.ID)
		if err != nil {
			log.Printf("routing channel list error guild=%s: %v", guild.Name, err)
			continue
		}

		for _, name := range names {
			channel := resolveChannelByName(channels, name)
			if channel == nil {
				log.Printf("routing warning: channel #%s not found in guild %q", name, guild.Name)
				continue
			}
			if err := r.sendEmbed(channel.ID, embed); err != nil {
				log.Printf("routing send error guild=%s channel=#%s: %v", guild.Name, name, err)
				continue
			}
			log.Printf("alert sent guild=%s channel=#%s", guild.Name, name)
			if followUp != "" {
				if err := r.sendText(channel.ID, followUp); err != nil {
					log.Printf("routing follow-up error guild=%s channel=#%s: %v", guild.Name, name, err)
				}
			}
		}
	}
}

// resolveChannelByName finds a text channel by case-insensitive exact name
// match. Non-text channels never match.
func resolveChannelByName(channels []*discordgo.Channel, name string) *discordgo.Channel {
	for _, channel := range channels {
		if channel.Type != discordgo.ChannelTypeGuildText {
			continue
		}
		if strings.EqualFold(channel.Name, name) {
			return channel
		}
	}
	return nil
}
