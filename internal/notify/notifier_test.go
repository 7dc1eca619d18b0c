package notify

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fumotel/fumochan-bot/internal/storage"
)

type sent struct {
	channelID string
	content   string
}

type fakeSender struct {
	sent    []sent
	failFor string
}

func (f *fakeSender) ChannelMessageSend(channelID string, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	if channelID == f.failFor {
		return nil, errors.New("missing access")
	}
	f.sent = append(f.sent, sent{channelID, content})
	return &discordgo.Message{ChannelID: channelID, Content: content}, nil
}

func newTestRepository(t *testing.T) *storage.Repository {
	t.Helper()
	repo, err := storage.NewRepository(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestAnnounce(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	sender := &fakeSender{}
	n := New(repo, sender)

	ok, err := n.Announce(ctx, "1", "unknown guild")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.SetNotificationChannel(ctx, "1", "11"))
	ok, err = n.Announce(ctx, "1", "disabled")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.SetNotificationsEnabled(ctx, "1", true))
	ok, err = n.Announce(ctx, "1", "poll created")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, []sent{{"11", "poll created"}}, sender.sent)
}

func TestAnnounce_SendError(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	require.NoError(t, repo.SetNotificationsEnabled(ctx, "1", true))
	require.NoError(t, repo.SetNotificationChannel(ctx, "1", "11"))

	n := New(repo, &fakeSender{failFor: "11"})
	ok, err := n.Announce(ctx, "1", "hi")
	assert.False(t, ok)
	assert.ErrorContains(t, err, "missing access")
}

func TestBroadcast(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	for _, g := range []struct{ guild, channel string }{{"1", "11"}, {"2", "22"}, {"3", "33"}} {
		require.NoError(t, repo.SetNotificationsEnabled(ctx, g.guild, true))
		require.NoError(t, repo.SetNotificationChannel(ctx, g.guild, g.channel))
	}
	require.NoError(t, repo.SetNotificationsEnabled(ctx, "2", false))

	sender := &fakeSender{failFor: "33"}
	n := New(repo, sender)

	count, err := n.Broadcast(ctx, "online")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, []sent{{"11", "online"}}, sender.sent)
}
