package command

import (
	"context"

	"github.com/bwmarrin/discordgo"

	"filmklub/pkg/cmd"
)

// Discord-specific contexts passed as cmd.Invocation.Data.

type SlashInteractionContext struct {
	Session *discordgo.Session
	Event   *discordgo.InteractionCreate
	Reply   Responder
}

// UserCommandContext is a user context-menu invocation.
type UserCommandContext struct {
	Session *discordgo.Session
	Event   *discordgo.InteractionCreate
	Reply   Responder
	Target  *discordgo.User
}

// ComponentInteractionContext covers message components and modal submits.
type ComponentInteractionContext struct {
	Session *discordgo.Session
	Event   *discordgo.InteractionCreate
	Reply   Responder
}

type AutocompleteContext struct {
	Session *discordgo.Session
	Event   *discordgo.InteractionCreate
	Reply   Responder
}

// Providers describe how a command is registered with Discord.

type SlashProvider interface {
	SlashDefinition() *discordgo.ApplicationCommand
}

type ContextMenuProvider interface {
	ContextDefinition() *discordgo.ApplicationCommand
}

// ComponentInteractionHandler receives components whose custom id starts
// with the command name followed by ":".
type ComponentInteractionHandler interface {
	Component(ctx context.Context, c *ComponentInteractionContext) error
}

type AutocompleteHandler interface {
	Autocomplete(ctx context.Context, c *AutocompleteContext) error
}

// DiscordMeta lets middleware read Group/Category/Permissions without
// depending on concrete command types.
type DiscordMeta interface {
	Group() string
	Category() string
	UserPermissions() []int64
}

// DiscordCommand is implemented by every bot command. ic is one of the
// contexts above.
type DiscordCommand interface {
	Name() string
	Description() string
	Group() string
	Category() string
	UserPermissions() []int64
	Run(ctx context.Context, ic any) error
}

// DiscordAdapter adapts a DiscordCommand to cmd.Command and delegates the
// provider interfaces to it.
type DiscordAdapter struct {
	Cmd DiscordCommand
}

func (a *DiscordAdapter) Name() string             { return a.Cmd.Name() }
func (a *DiscordAdapter) Description() string      { return a.Cmd.Description() }
func (a *DiscordAdapter) Group() string            { return a.Cmd.Group() }
func (a *DiscordAdapter) Category() string         { return a.Cmd.Category() }
func (a *DiscordAdapter) UserPermissions() []int64 { return a.Cmd.UserPermissions() }

func (a *DiscordAdapter) Run(ctx context.Context, inv *cmd.Invocation) error {
	switch v := inv.Data.(type) {
	case *ComponentInteractionContext:
		if h, ok := a.Cmd.(ComponentInteractionHandler); ok {
			return h.Component(ctx, v)
		}
		return nil
	case *AutocompleteContext:
		if h, ok := a.Cmd.(AutocompleteHandler); ok {
			return h.Autocomplete(ctx, v)
		}
		return nil
	}
	return a.Cmd.Run(ctx, inv.Data)
}

func (a *DiscordAdapter) SlashDefinition() *discordgo.ApplicationCommand {
	if sp, ok := a.Cmd.(SlashProvider); ok {
		return sp.SlashDefinition()
	}
	return nil
}

func (a *DiscordAdapter) ContextDefinition() *discordgo.ApplicationCommand {
	if cp, ok := a.Cmd.(ContextMenuProvider); ok {
		return cp.ContextDefinition()
	}
	return nil
}

// Register adds a Discord command to reg with middlewares applied.
func Register(reg *cmd.Registry, dc DiscordCommand, mws ...cmd.Middleware) error {
	return reg.Register(cmd.Apply(&DiscordAdapter{Cmd: dc}, mws...))
}

// Definition returns the application command definition of a registered
// command, walking through middleware wrappers.
func Definition(c cmd.Command) *discordgo.ApplicationCommand {
	root := cmd.Root(c)
	if slash, ok := root.(SlashProvider); ok {
		if def := slash.SlashDefinition(); def != nil {
			if def.Type == 0 {
				def.Type = discordgo.ChatApplicationCommand
			}
			return def
		}
	}
	if menu, ok := root.(ContextMenuProvider); ok {
		if def := menu.ContextDefinition(); def != nil {
			if def.Type == 0 {
				def.Type = discordgo.UserApplicationCommand
			}
			return def
		}
	}
	return nil
}

// Meta returns the Discord metadata of a registered command.
func Meta(c cmd.Command) (DiscordMeta, bool) {
	m, ok := cmd.Root(c).(DiscordMeta)
	return m, ok
}
