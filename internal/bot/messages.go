package bot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"github.com/fumotel/fumochan-bot/internal/storage"
	"github.com/fumotel/fumochan-bot/internal/transcript"
)

// handleMessage logs a guild message and answers it if the bot was mentioned
func (b *Bot) handleMessage(ctx context.Context, m *discordgo.Message) {
	if m.GuildID == "" || m.Author == nil || m.Content == "" {
		return
	}

	storeCtx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	msg := &storage.Message{
		ID:        m.ID,
		Timestamp: m.Timestamp,
		Content:   m.Content,
		UserID:    m.Author.ID,
		ChannelID: m.ChannelID,
		GuildID:   m.GuildID,
	}
	if err := b.repo.IngestMessage(storeCtx, msg, authorName(m)); err != nil {
		slog.Error("Failed to store message", "messageID", m.ID, "guildID", m.GuildID, "error", err)
		return
	}

	if !b.shouldRespond(m) {
		return
	}

	if err := b.respondToMention(ctx, m); err != nil {
		slog.Error("Failed to answer mention", "messageID", m.ID, "channelID", m.ChannelID, "error", err)
	}
}

// shouldRespond reports whether m mentions the bot outside an excluded channel
func (b *Bot) shouldRespond(m *discordgo.Message) bool {
	me := b.self.Load()
	if me == nil {
		return false
	}
	if _, excluded := b.excludedChannels[m.ChannelID]; excluded {
		return false
	}
	for _, u := range m.Mentions {
		if u != nil && u.ID == me.ID {
			return true
		}
	}
	return false
}

// respondToMention answers m using the guild's logged history as context
func (b *Bot) respondToMention(ctx context.Context, m *discordgo.Message) error {
	if err := b.api.ChannelTyping(m.ChannelID); err != nil {
		slog.Debug("Failed to send typing indicator", "channelID", m.ChannelID, "error", err)
	}

	summary, err := b.summarizeGuild(ctx, m.GuildID)
	if err != nil {
		return err
	}

	aiCtx, cancel := context.WithTimeout(ctx, b.config.AITimeout)
	defer cancel()

	reply, err := b.ai.Generate(aiCtx, transcript.Prompt(authorName(m), m.Content, summary))
	if err != nil {
		return fmt.Errorf("failed to generate reply: %w", err)
	}

	chunks := transcript.Chunk(reply, transcript.MaxMessageLength)
	slog.Debug("Sending reply", "channelID", m.ChannelID, "chunks", len(chunks))
	for _, chunk := range chunks {
		if _, err := b.api.ChannelMessageSend(m.ChannelID, chunk); err != nil {
			return fmt.Errorf("failed to send reply: %w", err)
		}
	}
	return nil
}

// summarizeGuild renders the guild's recent history, one block per channel
func (b *Bot) summarizeGuild(ctx context.Context, guildID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	channelIDs, err := b.repo.GuildChannelIDs(ctx, guildID)
	if err != nil {
		return "", fmt.Errorf("failed to get channels: %w", err)
	}

	entries, err := b.repo.RecentGuildMessages(ctx, guildID, b.config.HistoryLimit)
	if err != nil {
		return "", fmt.Errorf("failed to get history: %w", err)
	}

	builder := transcript.NewBuilder(b.channelName, b.config.ExcludedAuthors...)
	// the bot's own replies are logged under its per-guild nickname
	if me := b.self.Load(); me != nil {
		builder.SkipUsers(me.ID)
	}

	return builder.Build(channelIDs, entries), nil
}

// authorName prefers the guild nickname over the account's display name
func authorName(m *discordgo.Message) string {
	if m.Member != nil && m.Member.Nick != "" {
		return m.Member.Nick
	}
	return m.Author.DisplayName()
}
