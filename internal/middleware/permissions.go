package middleware

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"filmklub/internal/command"
	"filmklub/pkg/cmd"
)

var PermissionNames = map[int64]string{
	discordgo.PermissionAdministrator:      "Administrator",
	discordgo.PermissionManageGuild:        "Manage Server",
	discordgo.PermissionManageMessages:     "Manage Messages",
	discordgo.PermissionManageNicknames:    "Manage Nicknames",
	discordgo.PermissionManageEvents:       "Manage Events",
	discordgo.PermissionVoiceConnect:       "Connect to Voice Channel",
	discordgo.PermissionVoiceSpeak:         "Speak",
	discordgo.PermissionAttachFiles:        "Attach Files",
	discordgo.PermissionChangeNickname:     "Change Nickname",
	discordgo.PermissionModerateMembers:    "Moderate Members",
	discordgo.PermissionManageChannels:     "Manage Channels",
	discordgo.PermissionManageRoles:        "Manage Roles",
	discordgo.PermissionManageWebhooks:     "Manage Webhooks",
	discordgo.PermissionSendMessages:       "Send Messages",
	discordgo.PermissionViewChannel:        "View Channel",
	discordgo.PermissionMentionEveryone:    "Mention Everyone",
	discordgo.PermissionKickMembers:        "Kick Members",
	discordgo.PermissionBanMembers:         "Ban Members",
	discordgo.PermissionEmbedLinks:         "Embed Links",
	discordgo.PermissionAddReactions:       "Add Reactions",
	discordgo.PermissionReadMessageHistory: "Read Message History",
}

// PermissionName returns a readable name for a permission bit.
func PermissionName(p int64) string {
	if name := PermissionNames[p]; name != "" {
		return name
	}
	return fmt.Sprintf("0x%x", p)
}

// WithUserPermissionCheck lets the caller through when they hold any of the
// command's UserPermissions, or Administrator. Permissions come from the
// interaction member, which Discord resolves for the invoking channel.
func WithUserPermissionCheck() cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			var e *discordgo.InteractionCreate
			var reply command.Responder
			switch v := inv.Data.(type) {
			case *command.SlashInteractionContext:
				e, reply = v.Event, v.Reply
			case *command.UserCommandContext:
				e, reply = v.Event, v.Reply
			case *command.ComponentInteractionContext:
				e, reply = v.Event, v.Reply
			default:
				return c.Run(ctx, inv)
			}
			if e.GuildID == "" || e.Member == nil {
				return c.Run(ctx, inv)
			}

			meta, ok := command.Meta(c)
			if !ok || len(meta.UserPermissions()) == 0 {
				return c.Run(ctx, inv)
			}
			perms := e.Member.Permissions
			if perms&discordgo.PermissionAdministrator != 0 {
				return c.Run(ctx, inv)
			}

			required := meta.UserPermissions()
			for _, p := range required {
				if perms&p != 0 {
					return c.Run(ctx, inv)
				}
			}

			allowed := make([]string, 0, len(required))
			for _, p := range required {
				allowed = append(allowed, PermissionName(p))
			}
			return reply.Respond(command.Ephemeral(fmt.Sprintf(
				"You need at least one of the following permissions to run this command:\n`%s`",
				strings.Join(allowed, "`, `"),
			)))
		})
	}
}
