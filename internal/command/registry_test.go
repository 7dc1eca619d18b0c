package command

import (
	"context"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	called := ""
	for _, name := range []string{"zeta", "alpha"} {
		name := name
		r.Register(&Command{
			Definition: &discordgo.ApplicationCommand{Name: name},
			Handler:    func(context.Context, *discordgo.InteractionCreate) { called = name },
		})
	}

	cmd, err := r.Get("zeta")
	require.NoError(t, err)
	cmd.Handler(context.Background(), nil)
	assert.Equal(t, "zeta", called)

	_, err = r.Get("missing")
	assert.EqualError(t, err, "unknown command: missing")

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "alpha", list[0].Name())
	assert.Equal(t, "zeta", list[1].Name())
}

func TestAdminOnly(t *testing.T) {
	def := AdminOnly(&discordgo.ApplicationCommand{Name: "x"})
	require.NotNil(t, def.DefaultMemberPermissions)
	assert.Equal(t, int64(discordgo.PermissionAdministrator), *def.DefaultMemberPermissions)
	require.NotNil(t, def.DMPermission)
	assert.False(t, *def.DMPermission)
}

func TestGuildOnly(t *testing.T) {
	def := GuildOnly(&discordgo.ApplicationCommand{Name: "x"})
	assert.Nil(t, def.DefaultMemberPermissions)
	require.NotNil(t, def.DMPermission)
	assert.False(t, *def.DMPermission)
}
