package nick

import (
	"context"

	"github.com/bwmarrin/discordgo"

	"filmklub/internal/command"
)

// NickMenuCommand is the "Change nickname" user context menu entry. The
// modal it opens is handled by NickCommand.
type NickMenuCommand struct{}

func (c *NickMenuCommand) Name() string             { return "Change nickname" }
func (c *NickMenuCommand) Description() string      { return "" }
func (c *NickMenuCommand) Group() string            { return "utility" }
func (c *NickMenuCommand) Category() string         { return "📢 Utilities" }
func (c *NickMenuCommand) UserPermissions() []int64 { return []int64{} }

func (c *NickMenuCommand) ContextDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name: c.Name(),
		Type: discordgo.UserApplicationCommand,
	}
}

func (c *NickMenuCommand) Run(_ context.Context, ic any) error {
	uc, ok := ic.(*command.UserCommandContext)
	if !ok || uc.Target == nil {
		return nil
	}
	return uc.Reply.Modal(Modal(uc.Target.ID))
}
