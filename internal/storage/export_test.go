package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// GetMessage finds a message by ID
func (r *Repository) GetMessage(ctx context.Context, id string) (*Message, error) {
	m := &Message{}
	var ts string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, timestamp, content, user_id, channel_id, guild_id FROM messages WHERE id = ?`,
		id,
	).Scan(&m.ID, &ts, &m.Content, &m.UserID, &m.ChannelID, &m.GuildID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	m.Timestamp, err = time.Parse(timestampLayout, ts)
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp %q: %w", ts, err)
	}
	return m, nil
}

// CountGuildMessages returns how many messages are stored for a guild
func (r *Repository) CountGuildMessages(ctx context.Context, guildID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE guild_id = ?`,
		guildID,
	).Scan(&n)
	return n, err
}

// GetChannel retrieves a channel by ID
func (r *Repository) GetChannel(ctx context.Context, channelID string) (*Channel, error) {
	c := &Channel{}
	var name, guildID sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, guild_id FROM channels WHERE id = ?`,
		channelID,
	).Scan(&c.ID, &name, &guildID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.Name = name.String
	c.GuildID = guildID.String
	return c, nil
}

// GetUser retrieves a user within a guild
func (r *Repository) GetUser(ctx context.Context, userID, guildID string) (*User, error) {
	u := &User{}
	var name sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, guild_id FROM users WHERE id = ? AND guild_id = ?`,
		userID, guildID,
	).Scan(&u.ID, &name, &u.GuildID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Name = name.String
	return u, nil
}

