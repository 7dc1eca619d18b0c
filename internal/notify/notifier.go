package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"github.com/fumotel/fumochan-bot/internal/storage"
)

// Sender is the part of a Discord session the notifier posts through
type Sender interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Notifier posts announcements to the notification channels guilds opted into
type Notifier struct {
	repo    *storage.Repository
	discord Sender
}

// New creates a new Notifier
func New(repo *storage.Repository, discord Sender) *Notifier {
	return &Notifier{
		repo:    repo,
		discord: discord,
	}
}

// Announce sends text to the guild's notification channel. It reports false
// without error when the guild has notifications off or no channel set.
func (n *Notifier) Announce(ctx context.Context, guildID, text string) (bool, error) {
	guild, err := n.repo.GetGuild(ctx, guildID)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get guild settings: %w", err)
	}

	if !guild.NotificationsEnabled || guild.NotificationsChannelID == "" {
		slog.Debug("Notifications not configured for guild", "guildID", guildID)
		return false, nil
	}

	if _, err := n.discord.ChannelMessageSend(guild.NotificationsChannelID, text); err != nil {
		return false, fmt.Errorf("failed to send notification: %w", err)
	}

	slog.Info("Sent notification", "guildID", guildID, "channelID", guild.NotificationsChannelID)
	return true, nil
}

// Broadcast sends text to every guild with notifications enabled and returns
// how many guilds it reached. A failing guild does not stop the others.
func (n *Notifier) Broadcast(ctx context.Context, text string) (int, error) {
	guilds, err := n.repo.NotifiableGuilds(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get guilds: %w", err)
	}

	if len(guilds) == 0 {
		slog.Debug("No guilds to notify")
		return 0, nil
	}

	sent := 0
	for _, guild := range guilds {
		select {
		case <-ctx.Done():
			return sent, ctx.Err()
		default:
		}

		if _, err := n.discord.ChannelMessageSend(guild.NotificationsChannelID, text); err != nil {
			slog.Error("Failed to send notification", "guildID", guild.ID, "error", err)
			continue
		}
		sent++
	}

	slog.Info("Broadcast notification", "guilds", sent)
	return sent, nil
}
