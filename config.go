package main

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// RouteOverride adds channels for servers whose name contains the predicate.
// Overrides are additive only: they never remove the category's channels.
type RouteOverride struct {
	ServerContains string   `yaml:"server_contains"`
	AddChannels    []string `yaml:"add_channels"`
}

type RoutesConfig struct {
	DefaultChannels []string            `yaml:"default_channels"`
	Channels        map[string][]string `yaml:"channels"`
	Overrides       []RouteOverride     `yaml:"overrides"`
}

type Config struct {
	DiscordBotToken string `yaml:"discord_bot_token"`
	GuildID         string `yaml:"guild_id"` // optional: restrict to one server

	LLMProvider     string `yaml:"llm_provider"`
	LLMModel        string `yaml:"llm_model"`
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	OpenAIAPIKey    string `yaml:"openai_api_key"`

	DBPath string `yaml:"db_path"`

	MonitoredChannels []string `yaml:"monitored_channels"`
	ChannelMatch      string   `yaml:"channel_match"` // "exact" or "substring"
	MinMessageLength  int      `yaml:"min_message_length"`
	TeamMemberIDs     []string `yaml:"team_member_ids"`

	Routes RoutesConfig `yaml:"routes"`

	PollIntervalSeconds int    `yaml:"poll_interval_seconds"`
	DigestSchedule      string `yaml:"digest_schedule"` // 5-field cron, empty disables
}

func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

func LoadConfig() Config {
	var cfg Config

	// Load from config.yaml if it exists
	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Fatalf("Error parsing %s: %v", configPath, err)
		}
		log.Printf("Loaded config from %s", configPath)
	}

	// Env vars override YAML values
	envOverride(&cfg.DiscordBotToken, "DISCORD_BOT_TOKEN")
	envOverride(&cfg.GuildID, "GUILD_ID")
	envOverride(&cfg.LLMProvider, "LLM_PROVIDER")
	envOverride(&cfg.LLMModel, "LLM_MODEL")
	envOverride(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envOverride(&cfg.OpenAIAPIKey, "OPENAI_API_KEY")
	envOverride(&cfg.DBPath, "DB_PATH")
	envOverride(&cfg.ChannelMatch, "CHANNEL_MATCH")
	envOverrideInt(&cfg.MinMessageLength, "MIN_MESSAGE_LENGTH")
	envOverrideInt(&cfg.PollIntervalSeconds, "POLL_INTERVAL_SECONDS")
	envOverride(&cfg.DigestSchedule, "DIGEST_SCHEDULE")
	envOverrideList(&cfg.MonitoredChannels, "MONITORED_CHANNELS")
	envOverrideList(&cfg.TeamMemberIDs, "TEAM_MEMBER_IDS")
	envOverrideList(&cfg.Routes.DefaultChannels, "ALERT_CHANNELS")

	// Defaults
	if cfg.LLMProvider == "" {
		cfg.LLMProvider = "anthropic"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "./feedwatch.db"
	}
	if len(cfg.MonitoredChannels) == 0 {
		cfg.MonitoredChannels = []string{"truth-engine"}
	}
	if cfg.ChannelMatch == "" {
		cfg.ChannelMatch = "exact"
	}
	if cfg.MinMessageLength == 0 {
		cfg.MinMessageLength = 5
	}
	if cfg.PollIntervalSeconds == 0 {
		cfg.PollIntervalSeconds = 30
	}
	if len(cfg.Routes.DefaultChannels) == 0 {
		cfg.Routes.DefaultChannels = []string{"ai-insights"}
	}

	// Validate required fields
	if cfg.DiscordBotToken == "" {
		log.Fatalf("Required config 'discord_bot_token' is not set (via config.yaml or env var)")
	}

	switch cfg.LLMProvider {
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			log.Fatalf("anthropic_api_key is required when llm_provider=anthropic")
		}
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			log.Fatalf("openai_api_key is required when llm_provider=openai")
		}
	default:
		log.Fatalf("llm_provider must be 'anthropic' or 'openai', got '%s'", cfg.LLMProvider)
	}

	if cfg.ChannelMatch != "exact" && cfg.ChannelMatch != "substring" {
		log.Fatalf("channel_match must be 'exact' or 'substring', got '%s'", cfg.ChannelMatch)
	}
	if cfg.MinMessageLength < 1 {
		log.Fatalf("invalid min_message_length '%d': must be >= 1", cfg.MinMessageLength)
	}
	if cfg.PollIntervalSeconds < 1 {
		log.Fatalf("invalid poll_interval_seconds '%d': must be >= 1", cfg.PollIntervalSeconds)
	}
	for category := range cfg.Routes.Channels {
		if !validCategory(category) {
			log.Fatalf("invalid routes.channels category '%s'", category)
		}
	}

	return cfg
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
}

func envOverrideList(field *[]string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		var out []string
		for _, item := range strings.Split(val, ",") {
			item = strings.TrimSpace(item)
			if item != "" {
				out = append(out, item)
			}
		}
		*field = out
	}
}

// IsMonitoredChannel reports whether a channel name is on the allow-list,
// using exact or substring matching per channel_match.
func (c Config) IsMonitoredChannel(name string) bool {
	name = strings.ToLower(name)
	for _, monitored := range c.MonitoredChannels {
		monitored = strings.ToLower(strings.TrimSpace(monitored))
		if monitored == "" {
			continue
		}
		if c.ChannelMatch == "substring" {
			if strings.Contains(name, monitored) {
				return true
			}
		} else if name == monitored {
			return true
		}
	}
	return false
}

func (c Config) IsTeamMemberID(userID string) bool {
	for _, id := range c.TeamMemberIDs {
		if strings.TrimSpace(id) == userID {
			return true
		}
	}
	return false
}
