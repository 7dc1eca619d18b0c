package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/fumotel/fumochan-bot/internal/command"
	"github.com/fumotel/fumochan-bot/internal/config"
	"github.com/fumotel/fumochan-bot/internal/gemini"
	"github.com/fumotel/fumochan-bot/internal/notify"
	"github.com/fumotel/fumochan-bot/internal/storage"
	"github.com/fumotel/fumochan-bot/internal/strawpoll"
)

// Generator produces a reply for a prompt
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// PollCreator creates a poll and returns the decoded API response
type PollCreator interface {
	CreatePoll(ctx context.Context, title string, options []string, durationMinutes int) (map[string]any, error)
}

// discordAPI is the subset of *discordgo.Session the handlers call
type discordAPI interface {
	notify.Sender
	ChannelTyping(channelID string, options ...discordgo.RequestOption) error
	GuildMembers(guildID string, after string, limit int, options ...discordgo.RequestOption) ([]*discordgo.Member, error)
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// storeTimeout bounds each handler's database work
const storeTimeout = 10 * time.Second

// Bot represents the Discord bot instance
type Bot struct {
	config   *config.Config
	session  *discordgo.Session
	api      discordAPI
	repo     *storage.Repository
	ai       Generator
	polls    PollCreator
	notifier *notify.Notifier
	registry *command.Registry
	commands []*discordgo.ApplicationCommand

	self             atomic.Pointer[discordgo.User]
	excludedChannels map[string]struct{}

	// channelName resolves channel IDs for history summaries
	channelName func(channelID string) string
}

// New creates a new Bot instance
func New(cfg *config.Config) (*Bot, error) {
	// Create Discord session
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	// Set intents
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent |
		discordgo.IntentsGuildMembers

	ai, err := gemini.NewClient(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel, "")
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gemini client: %w", err)
	}

	polls := strawpoll.NewClient(cfg.StrawpollAPIKey, cfg.StrawpollBaseURL)

	// Initialize storage
	repo, err := storage.NewRepository(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	b := newBot(cfg, session, repo, ai, polls)
	b.session = session
	b.channelName = func(channelID string) string {
		if ch, err := session.State.Channel(channelID); err == nil {
			return ch.Name
		}
		return ""
	}

	// Register event handlers
	b.registerHandlers()

	return b, nil
}

// newBot wires a Bot from its collaborators without touching the network
func newBot(cfg *config.Config, api discordAPI, repo *storage.Repository, ai Generator, polls PollCreator) *Bot {
	excluded := make(map[string]struct{}, len(cfg.ExcludedChannels))
	for _, id := range cfg.ExcludedChannels {
		excluded[id] = struct{}{}
	}

	b := &Bot{
		config:           cfg,
		api:              api,
		repo:             repo,
		ai:               ai,
		polls:            polls,
		notifier:         notify.New(repo, api),
		excludedChannels: excluded,
	}
	b.registry = b.buildRegistry()
	return b
}

// Start opens the Discord connection and registers slash commands
func (b *Bot) Start(ctx context.Context) error {
	// Open Discord connection
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}

	slog.Info("Connected to Discord", "user", b.session.State.User.Username)
	b.self.Store(b.session.State.User)

	// Register slash commands
	if err := b.registerCommands(); err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}

	return nil
}

// Stop gracefully shuts down the bot
func (b *Bot) Stop() error {
	var errs []error

	// Close Discord session
	if b.session != nil {
		if err := b.session.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close session: %w", err))
		}
	}

	// Close storage
	if b.repo != nil {
		if err := b.repo.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close storage: %w", err))
		}
	}

	return errors.Join(errs...)
}

// registerHandlers sets up Discord event handlers
func (b *Bot) registerHandlers() {
	b.session.AddHandler(b.handleInteraction)
	b.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		b.handleMessage(context.Background(), m.Message)
	})
	b.session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		b.handleReady(context.Background(), r)
	})
}

// handleReady remembers the bot user and sends the startup announcement
func (b *Bot) handleReady(ctx context.Context, r *discordgo.Ready) {
	slog.Info("Bot is ready", "guilds", len(r.Guilds))
	b.self.Store(r.User)

	if b.config.StartupAnnouncement == "" {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	if _, err := b.notifier.Broadcast(ctx, b.config.StartupAnnouncement); err != nil {
		slog.Error("Failed to broadcast startup announcement", "error", err)
	}
}
