package storage

import "time"

// Guild is a Discord server the bot has seen
type Guild struct {
	ID                     string
	Name                   string
	NotificationsEnabled   bool
	NotificationsChannelID string
}

// Channel is a text channel inside a guild
type Channel struct {
	ID      string
	Name    string
	GuildID string
}

// User is a message author, scoped per guild
type User struct {
	ID      string
	Name    string // Display name at the time of the last message
	GuildID string
}

// Message is a logged guild message
type Message struct {
	ID        string
	Timestamp time.Time
	Content   string
	UserID    string
	ChannelID string
	GuildID   string
}

// HistoryEntry is a message joined with its author's display name
type HistoryEntry struct {
	MessageID string
	ChannelID string
	UserID    string
	Author    string
	Timestamp time.Time
	Content   string
}
