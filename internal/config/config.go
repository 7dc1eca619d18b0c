package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where the config file is looked up when no path is given
const DefaultPath = "config.yaml"

// ErrMissingToken is returned when a required credential is empty
var ErrMissingToken = errors.New("missing token")

// Config holds all configuration values for the bot
type Config struct {
	// Discord
	DiscordToken     string
	ExcludedChannels []string
	ExcludedAuthors  []string

	// Gemini
	GeminiAPIKey string
	GeminiModel  string
	AITimeout    time.Duration
	HistoryLimit int

	// StrawPoll
	StrawpollAPIKey  string
	StrawpollBaseURL string
	PollTitle        string

	// Notifications
	StartupAnnouncement string

	// Database
	DatabasePath string

	// Logging
	LogLevel string
}

// file mirrors the sectioned layout of config.yaml
type file struct {
	Discord struct {
		Token            string   `yaml:"token"`
		ExcludedChannels []string `yaml:"excluded_channels"`
		ExcludedAuthors  []string `yaml:"excluded_authors"`
	} `yaml:"discord"`
	Gemini struct {
		Token        string `yaml:"token"`
		Model        string `yaml:"model"`
		Timeout      string `yaml:"timeout"`
		HistoryLimit int    `yaml:"history_limit"`
	} `yaml:"gemini"`
	Strawpoll struct {
		Token     string `yaml:"token"`
		BaseURL   string `yaml:"base_url"`
		PollTitle string `yaml:"poll_title"`
	} `yaml:"strawpoll"`
	Notifications struct {
		StartupAnnouncement string `yaml:"startup_announcement"`
	} `yaml:"notifications"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	LogLevel string `yaml:"log_level"`
}

// Load reads the config file at path and applies environment overrides.
// The file must exist; its absence is fatal for the caller.
func Load(path string) (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	if path == "" {
		path = DefaultPath
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg := &Config{
		DiscordToken:        getEnvOrDefault("DISCORD_BOT_TOKEN", f.Discord.Token),
		ExcludedChannels:    f.Discord.ExcludedChannels,
		ExcludedAuthors:     f.Discord.ExcludedAuthors,
		GeminiAPIKey:        getEnvOrDefault("GEMINI_API_KEY", f.Gemini.Token),
		GeminiModel:         orDefault(f.Gemini.Model, "gemini-2.0-flash"),
		HistoryLimit:        f.Gemini.HistoryLimit,
		StrawpollAPIKey:     getEnvOrDefault("STRAWPOLL_API_KEY", f.Strawpoll.Token),
		StrawpollBaseURL:    orDefault(f.Strawpoll.BaseURL, "https://api.strawpoll.com/v3"),
		PollTitle:           orDefault(f.Strawpoll.PollTitle, "Who should be banned next?"),
		StartupAnnouncement: f.Notifications.StartupAnnouncement,
		DatabasePath:        getEnvOrDefault("DATABASE_PATH", orDefault(f.Database.Path, "./data/fumochan.db")),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", orDefault(f.LogLevel, "info")),
	}

	// Parse AI timeout
	timeout, err := time.ParseDuration(getEnvOrDefault("GEMINI_TIMEOUT", orDefault(f.Gemini.Timeout, "60s")))
	if err != nil {
		return nil, fmt.Errorf("invalid gemini timeout: %w", err)
	}
	cfg.AITimeout = timeout

	if v := os.Getenv("HISTORY_LIMIT"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid HISTORY_LIMIT: %w", err)
		}
		cfg.HistoryLimit = limit
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 6000
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that every credential is present
func (c *Config) Validate() error {
	if c.DiscordToken == "" {
		return fmt.Errorf("discord: %w", ErrMissingToken)
	}
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("gemini: %w", ErrMissingToken)
	}
	if c.StrawpollAPIKey == "" {
		return fmt.Errorf("strawpoll: %w", ErrMissingToken)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func orDefault(value, defaultValue string) string {
	if value != "" {
		return value
	}
	return defaultValue
}
