package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/fumotel/fumochan-bot/internal/command"
	"github.com/fumotel/fumochan-bot/internal/strawpoll"
)

// membersPageSize is the largest page the member list endpoint returns
const membersPageSize = 1000

// buildRegistry defines the slash commands and their handlers
func (b *Bot) buildRegistry() *command.Registry {
	r := command.NewRegistry()

	r.Register(&command.Command{
		Definition: command.AdminOnly(&discordgo.ApplicationCommand{
			Name:        "enable-notifications",
			Description: "Enables guild notifications",
		}),
		Handler: func(ctx context.Context, i *discordgo.InteractionCreate) {
			b.handleSetNotifications(ctx, i, true)
		},
	})
	r.Register(&command.Command{
		Definition: command.AdminOnly(&discordgo.ApplicationCommand{
			Name:        "disable-notifications",
			Description: "Disables guild notifications",
		}),
		Handler: func(ctx context.Context, i *discordgo.InteractionCreate) {
			b.handleSetNotifications(ctx, i, false)
		},
	})
	r.Register(&command.Command{
		Definition: command.AdminOnly(&discordgo.ApplicationCommand{
			Name:        "set-notification-channel",
			Description: "Sets the current channel as notification channel",
		}),
		Handler: b.handleSetNotificationChannel,
	})
	r.Register(&command.Command{
		Definition: command.GuildOnly(&discordgo.ApplicationCommand{
			Name:        "create-poll",
			Description: "Creates a poll with every member of this server",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "duration",
					Description: "Duration in minutes",
					Required:    true,
					MinValue:    &minPollDuration,
				},
			},
		}),
		Handler: b.handleCreatePoll,
	})

	return r
}

var minPollDuration = 1.0

// registerCommands registers all slash commands with Discord
func (b *Bot) registerCommands() error {
	slog.Info("Registering slash commands")

	cmds := b.registry.List()
	definitions := make([]*discordgo.ApplicationCommand, len(cmds))
	for idx, cmd := range cmds {
		definitions[idx] = cmd.Definition
	}

	registered, err := b.session.ApplicationCommandBulkOverwrite(
		b.session.State.User.ID,
		"", // Empty string = global command
		definitions,
	)
	if err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}

	b.commands = registered
	slog.Info("Slash commands registered", "count", len(registered))
	return nil
}

// handleInteraction processes slash command interactions
func (b *Bot) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	b.dispatch(context.Background(), i)
}

func (b *Bot) dispatch(ctx context.Context, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	data := i.ApplicationCommandData()
	slog.Debug("Received command", "command", data.Name, "guild", i.GuildID)

	cmd, err := b.registry.Get(data.Name)
	if err != nil {
		slog.Warn("Unknown command", "command", data.Name)
		return
	}
	cmd.Handler(ctx, i)
}

// handleSetNotifications handles /enable-notifications and /disable-notifications
func (b *Bot) handleSetNotifications(ctx context.Context, i *discordgo.InteractionCreate, enabled bool) {
	b.deferResponse(i, true)

	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	if err := b.repo.SetNotificationsEnabled(ctx, i.GuildID, enabled); err != nil {
		slog.Error("Failed to save notification setting", "guildID", i.GuildID, "error", err)
		b.editResponse(i, "Failed to update notifications. Please try again.")
		return
	}

	if enabled {
		b.editResponse(i, "Notifications enabled!")
	} else {
		b.editResponse(i, "Notifications disabled!")
	}
}

// handleSetNotificationChannel handles /set-notification-channel
func (b *Bot) handleSetNotificationChannel(ctx context.Context, i *discordgo.InteractionCreate) {
	b.deferResponse(i, true)

	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	if err := b.repo.SetNotificationChannel(ctx, i.GuildID, i.ChannelID); err != nil {
		slog.Error("Failed to save notification channel", "guildID", i.GuildID, "error", err)
		b.editResponse(i, "Failed to set notification channel. Please try again.")
		return
	}

	b.editResponse(i, "Channel set!")
}

// handleCreatePoll handles /create-poll
func (b *Bot) handleCreatePoll(ctx context.Context, i *discordgo.InteractionCreate) {
	var duration int64
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "duration" {
			duration = opt.IntValue()
		}
	}

	// Member paging and the poll API can take a while
	b.deferResponse(i, false)

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	names, err := b.memberNames(ctx, i.GuildID)
	if err != nil {
		slog.Error("Failed to fetch guild members", "guildID", i.GuildID, "error", err)
		b.editResponse(i, fmt.Sprintf("poll creation failed: %v", err))
		return
	}

	poll, err := b.polls.CreatePoll(ctx, b.config.PollTitle, names, int(duration))
	if err != nil {
		slog.Warn("Poll creation failed", "guildID", i.GuildID, "options", len(names), "error", err)
		b.editResponse(i, fmt.Sprintf("poll creation failed: %v", err))
		return
	}

	url := strawpoll.PollURL(poll)
	b.editResponse(i, fmt.Sprintf("poll created: %s", url))

	if url == strawpoll.NoURL {
		return
	}
	if _, err := b.notifier.Announce(ctx, i.GuildID, fmt.Sprintf("New poll: %s", url)); err != nil {
		slog.Error("Failed to announce poll", "guildID", i.GuildID, "error", err)
	}
}

// memberNames lists the usernames of every human member of the guild
func (b *Bot) memberNames(ctx context.Context, guildID string) ([]string, error) {
	var names []string
	after := ""
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := b.api.GuildMembers(guildID, after, membersPageSize, discordgo.WithContext(ctx))
		if err != nil {
			return nil, err
		}

		for _, m := range page {
			if m.User == nil || m.User.Bot {
				continue
			}
			names = append(names, m.User.Username)
		}

		if len(page) < membersPageSize || page[len(page)-1].User == nil {
			return names, nil
		}
		after = page[len(page)-1].User.ID
	}
}

// Helper functions

func (b *Bot) deferResponse(i *discordgo.InteractionCreate, ephemeral bool) {
	resp := &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}
	if ephemeral {
		resp.Data = &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral}
	}
	if err := b.api.InteractionRespond(i.Interaction, resp); err != nil {
		slog.Error("Failed to acknowledge interaction", "error", err)
	}
}

func (b *Bot) editResponse(i *discordgo.InteractionCreate, content string) {
	if _, err := b.api.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Content: &content,
	}); err != nil {
		slog.Error("Failed to edit interaction response", "error", err)
	}
}
