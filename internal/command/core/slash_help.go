package core

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/bwmarrin/discordgo"

	"filmklub/internal/command"
	"filmklub/internal/config"
	"filmklub/pkg/cmd"
)

type HelpCommand struct {
	Registry *cmd.Registry
	AppName  string
}

func (c *HelpCommand) Name() string             { return "help" }
func (c *HelpCommand) Description() string      { return "Get a list of available commands" }
func (c *HelpCommand) Group() string            { return "core" }
func (c *HelpCommand) Category() string         { return "🕯️ Information" }
func (c *HelpCommand) UserPermissions() []int64 { return []int64{} }

func (c *HelpCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
	}
}

func (c *HelpCommand) Run(_ context.Context, ic any) error {
	sc, ok := ic.(*command.SlashInteractionContext)
	if !ok {
		return nil
	}
	return sc.Reply.Respond(command.EmbedEphemeral(&discordgo.MessageEmbed{
		Title:       c.AppName + " Help",
		Description: BuildHelp(c.Registry),
	}))
}

// BuildHelp lists slash commands grouped by category.
func BuildHelp(reg *cmd.Registry) string {
	byCategory := make(map[string][]*discordgo.ApplicationCommand)
	for _, c := range reg.All() {
		meta, ok := command.Meta(c)
		def := command.Definition(c)
		if !ok || def == nil || def.Type != discordgo.ChatApplicationCommand {
			continue
		}
		byCategory[meta.Category()] = append(byCategory[meta.Category()], def)
	}

	cats := make([]string, 0, len(byCategory))
	for cat := range byCategory {
		cats = append(cats, cat)
	}
	sort.Slice(cats, func(i, j int) bool {
		wi, wj := config.CategoryWeights[cats[i]], config.CategoryWeights[cats[j]]
		if wi != wj {
			return wi < wj
		}
		return cats[i] < cats[j]
	})

	var sb strings.Builder
	for _, cat := range cats {
		fmt.Fprintf(&sb, "**%s**\n", cat)
		for _, def := range byCategory[cat] {
			subs := subcommands(def)
			if len(subs) == 0 {
				fmt.Fprintf(&sb, "`/%s` - %s\n", def.Name, def.Description)
				continue
			}
			for _, o := range subs {
				fmt.Fprintf(&sb, "`/%s %s` - %s\n", def.Name, o.Name, o.Description)
			}
		}
		sb.WriteString("\n")
	}
	return strings.TrimSpace(sb.String())
}

func subcommands(def *discordgo.ApplicationCommand) []*discordgo.ApplicationCommandOption {
	var out []*discordgo.ApplicationCommandOption
	for _, o := range def.Options {
		if o.Type == discordgo.ApplicationCommandOptionSubCommand {
			out = append(out, o)
		}
	}
	return out
}
