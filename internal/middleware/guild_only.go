package middleware

import (
	"context"

	"github.com/bwmarrin/discordgo"

	"filmklub/internal/command"
	"filmklub/pkg/cmd"
)

// WithGuildOnly rejects invocations from direct messages.
func WithGuildOnly() cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			guildID, reply := target(inv)
			if reply != nil && guildID == "" {
				return reply.Respond(command.Ephemeral("You must be in a guild to use this command."))
			}
			return c.Run(ctx, inv)
		})
	}
}

// target extracts the guild and responder of a Discord invocation.
func target(inv *cmd.Invocation) (string, command.Responder) {
	switch v := inv.Data.(type) {
	case *command.SlashInteractionContext:
		return v.Event.GuildID, v.Reply
	case *command.UserCommandContext:
		return v.Event.GuildID, v.Reply
	case *command.ComponentInteractionContext:
		return v.Event.GuildID, v.Reply
	}
	return "", nil
}

func event(inv *cmd.Invocation) *discordgo.InteractionCreate {
	switch v := inv.Data.(type) {
	case *command.SlashInteractionContext:
		return v.Event
	case *command.UserCommandContext:
		return v.Event
	case *command.ComponentInteractionContext:
		return v.Event
	case *command.AutocompleteContext:
		return v.Event
	}
	return nil
}
