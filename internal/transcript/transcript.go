// Package transcript turns logged guild history into a prompt for the
// assistant and splits long replies into Discord-sized messages.
package transcript

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/fumotel/fumochan-bot/internal/storage"
)

// MaxMessageLength is the longest reply sent as one Discord message. It leaves
// a margin under the platform limit of 2000.
const MaxMessageLength = 1990

const timeLayout = "2006-01-02 15:04"

// Builder assembles per-channel history blocks
type Builder struct {
	// ChannelName resolves a channel ID to a display name
	ChannelName func(channelID string) string

	excluded      map[string]struct{}
	excludedUsers map[string]struct{}
}

// NewBuilder creates a Builder that skips messages by any of excludedAuthors
func NewBuilder(channelName func(string) string, excludedAuthors ...string) *Builder {
	excluded := make(map[string]struct{}, len(excludedAuthors))
	for _, name := range excludedAuthors {
		if name != "" {
			excluded[name] = struct{}{}
		}
	}
	return &Builder{ChannelName: channelName, excluded: excluded, excludedUsers: map[string]struct{}{}}
}

// SkipUsers also leaves out every message written by one of userIDs, whatever
// display name it was logged under
func (b *Builder) SkipUsers(userIDs ...string) *Builder {
	if b.excludedUsers == nil {
		b.excludedUsers = make(map[string]struct{}, len(userIDs))
	}
	for _, id := range userIDs {
		if id != "" {
			b.excludedUsers[id] = struct{}{}
		}
	}
	return b
}

// Build returns one labeled block per channel, in the order of channelIDs.
// Within a block, entries keep the order they were given in.
func (b *Builder) Build(channelIDs []string, entries []*storage.HistoryEntry) string {
	var sb strings.Builder
	for _, channelID := range channelIDs {
		name := channelID
		if b.ChannelName != nil {
			if resolved := b.ChannelName(channelID); resolved != "" {
				name = resolved
			}
		}
		fmt.Fprintf(&sb, "\n\nChannel: %s", name)

		for _, e := range entries {
			if e.ChannelID != channelID {
				continue
			}
			if _, skip := b.excludedUsers[e.UserID]; skip {
				continue
			}
			if _, skip := b.excluded[e.Author]; skip {
				continue
			}
			fmt.Fprintf(&sb, "\n%s, %s: %s", e.Timestamp.Format(timeLayout), e.Author, e.Content)
		}
	}
	return sb.String()
}

// Prompt asks the model to answer author's question in a human tone, with
// summary as context
func Prompt(author, question, summary string) string {
	return fmt.Sprintf(
		"%s asks you the following: %s.\n"+
			"Answer the user like a human would. For context, here is the chat history sorted by channel with timestamps:\n%s",
		author, question, summary,
	)
}

// Chunk splits text into pieces of fewer than limit characters, breaking only
// between lines. Line terminators stay with their line, so joining the chunks
// gives back text. A single line of limit characters or more becomes its own
// oversized chunk.
func Chunk(text string, limit int) []string {
	if text == "" {
		return nil
	}
	if utf8.RuneCountInString(text) < limit {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder
	currentLen := 0

	for _, line := range splitLines(text) {
		lineLen := utf8.RuneCountInString(line)
		if currentLen+lineLen < limit {
			current.WriteString(line)
			currentLen += lineLen
			continue
		}
		if currentLen > 0 {
			chunks = append(chunks, current.String())
		}
		current.Reset()
		current.WriteString(line)
		currentLen = lineLen
	}

	if currentLen > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

// splitLines splits after every line boundary, keeping the terminator with
// its line. "\r\n" counts as one boundary; "\r", "\v", "\f", the file, group
// and record separators, NEL, and the Unicode line and paragraph separators
// each count as one too.
func splitLines(text string) []string {
	var lines []string
	start := 0
	for i, r := range text {
		if !isLineBreak(r) {
			continue
		}
		end := i + utf8.RuneLen(r)
		if r == '\r' && end < len(text) && text[end] == '\n' {
			continue
		}
		lines = append(lines, text[start:end])
		start = end
	}
	if start < len(text) {
		lines = append(lines, text[start:])
	}
	return lines
}

func isLineBreak(r rune) bool {
	switch r {
	case '\n', '\r', '\v', '\f', '\x1c', '\x1d', '\x1e', '\u0085', '\u2028', '\u2029':
		return true
	}
	return false
}
