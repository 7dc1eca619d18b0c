package command

import (
	"context"

	"github.com/bwmarrin/discordgo"
)

// Handler runs a slash command interaction
type Handler func(ctx context.Context, i *discordgo.InteractionCreate)

// Command pairs a slash command definition with the handler that serves it
type Command struct {
	// Definition is what gets registered with Discord
	Definition *discordgo.ApplicationCommand

	// Handler is called for every invocation of the command
	Handler Handler
}

// Name returns the slash command name
func (c *Command) Name() string {
	return c.Definition.Name
}

// AdminOnly restricts def to guild administrators and disables it in DMs
func AdminOnly(def *discordgo.ApplicationCommand) *discordgo.ApplicationCommand {
	perms := int64(discordgo.PermissionAdministrator)
	def.DefaultMemberPermissions = &perms
	return GuildOnly(def)
}

// GuildOnly disables def in direct messages
func GuildOnly(def *discordgo.ApplicationCommand) *discordgo.ApplicationCommand {
	dm := false
	def.DMPermission = &dm
	return def
}
