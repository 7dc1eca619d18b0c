package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// timestampLayout is how message timestamps are stored in the messages table
const timestampLayout = "2006-01-02 15:04:05.999999-07:00"

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = errors.New("not found")

// Repository handles all database operations
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new repository with SQLite
func NewRepository(dbPath string) (*Repository, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	repo := &Repository{db: db}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}

// migrate creates the database schema
func (r *Repository) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS guilds (
			id INTEGER PRIMARY KEY,
			name TEXT,
			notifications_enabled INTEGER,
			notifications_channel_id INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS channels (
			id INTEGER PRIMARY KEY,
			name TEXT,
			guild_id INTEGER,
			FOREIGN KEY (guild_id) REFERENCES guilds(id)
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER,
			name TEXT,
			guild_id INTEGER,
			PRIMARY KEY (id, guild_id),
			FOREIGN KEY (guild_id) REFERENCES guilds(id)
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER,
			timestamp TEXT,
			content TEXT,
			user_id INTEGER,
			channel_id INTEGER,
			guild_id INTEGER,
			FOREIGN KEY (guild_id) REFERENCES guilds(id),
			FOREIGN KEY (user_id, guild_id) REFERENCES users(id, guild_id),
			FOREIGN KEY (channel_id) REFERENCES channels(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_guild ON messages(guild_id, id)`,
	}

	for _, migration := range migrations {
		if _, err := r.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// withTx runs fn inside a transaction and commits if it returns nil
func (r *Repository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Message operations

// IngestMessage records the guild, channel and author of msg and inserts the
// message itself, all in one transaction.
//
// Guild, channel and user rows are written with REPLACE, so any previously
// stored name or notification settings for those ids are reset.
func (r *Repository) IngestMessage(ctx context.Context, msg *Message, authorName string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`REPLACE INTO guilds (id) VALUES (?)`,
			msg.GuildID,
		); err != nil {
			return fmt.Errorf("failed to upsert guild: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`REPLACE INTO channels (id, guild_id) VALUES (?, ?)`,
			msg.ChannelID, msg.GuildID,
		); err != nil {
			return fmt.Errorf("failed to upsert channel: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`REPLACE INTO users (id, name, guild_id) VALUES (?, ?, ?)`,
			msg.UserID, authorName, msg.GuildID,
		); err != nil {
			return fmt.Errorf("failed to upsert user: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO messages (id, timestamp, content, user_id, channel_id, guild_id) VALUES (?, ?, ?, ?, ?, ?)`,
			msg.ID, msg.Timestamp.UTC().Format(timestampLayout), msg.Content, msg.UserID, msg.ChannelID, msg.GuildID,
		); err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}

		return nil
	})
}

// GuildChannelIDs returns every channel a message was logged in for the guild,
// in the order the channels were first seen.
func (r *Repository) GuildChannelIDs(ctx context.Context, guildID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT channel_id FROM messages WHERE guild_id = ? GROUP BY channel_id ORDER BY MIN(id)`,
		guildID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// RecentGuildMessages returns up to limit of the guild's newest messages,
// newest first, with their authors' display names.
func (r *Repository) RecentGuildMessages(ctx context.Context, guildID string, limit int) ([]*HistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT m.id, m.channel_id, m.user_id, COALESCE(u.name, ''), m.timestamp, m.content
		 FROM messages m
		 JOIN users u ON u.id = m.user_id AND u.guild_id = m.guild_id
		 WHERE m.guild_id = ?
		 ORDER BY m.id DESC
		 LIMIT ?`,
		guildID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*HistoryEntry
	for rows.Next() {
		e := &HistoryEntry{}
		var ts string
		if err := rows.Scan(&e.MessageID, &e.ChannelID, &e.UserID, &e.Author, &ts, &e.Content); err != nil {
			return nil, err
		}
		e.Timestamp, err = time.Parse(timestampLayout, ts)
		if err != nil {
			return nil, fmt.Errorf("invalid timestamp on message %s: %w", e.MessageID, err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// Guild operations

// SetNotificationsEnabled turns guild notifications on or off, creating the
// guild row if needed
func (r *Repository) SetNotificationsEnabled(ctx context.Context, guildID string, enabled bool) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO guilds (id) VALUES (?)`, guildID); err != nil {
			return fmt.Errorf("failed to insert guild: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE guilds SET notifications_enabled = ? WHERE id = ?`,
			enabled, guildID,
		); err != nil {
			return fmt.Errorf("failed to update guild: %w", err)
		}
		return nil
	})
}

// SetNotificationChannel makes channelID the guild's notification channel
func (r *Repository) SetNotificationChannel(ctx context.Context, guildID, channelID string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO guilds (id) VALUES (?)`, guildID); err != nil {
			return fmt.Errorf("failed to insert guild: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO channels (id, guild_id) VALUES (?, ?)`,
			channelID, guildID,
		); err != nil {
			return fmt.Errorf("failed to insert channel: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE guilds SET notifications_channel_id = ? WHERE id = ?`,
			channelID, guildID,
		); err != nil {
			return fmt.Errorf("failed to update guild: %w", err)
		}
		return nil
	})
}

// GetGuild retrieves a guild and its notification settings
func (r *Repository) GetGuild(ctx context.Context, guildID string) (*Guild, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, notifications_enabled, notifications_channel_id FROM guilds WHERE id = ?`,
		guildID,
	)
	g, err := scanGuild(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return g, err
}

// NotifiableGuilds returns guilds with notifications enabled and a channel set
func (r *Repository) NotifiableGuilds(ctx context.Context) ([]*Guild, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, notifications_enabled, notifications_channel_id FROM guilds
		 WHERE notifications_enabled = 1 AND notifications_channel_id IS NOT NULL
		 ORDER BY id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var guilds []*Guild
	for rows.Next() {
		g, err := scanGuild(rows)
		if err != nil {
			return nil, err
		}
		guilds = append(guilds, g)
	}

	return guilds, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanGuild(s scanner) (*Guild, error) {
	g := &Guild{}
	var name, channelID sql.NullString
	var enabled sql.NullBool
	if err := s.Scan(&g.ID, &name, &enabled, &channelID); err != nil {
		return nil, err
	}
	g.Name = name.String
	g.NotificationsEnabled = enabled.Valid && enabled.Bool
	g.NotificationsChannelID = channelID.String
	return g, nil
}
