package command

import (
	"strings"

	"github.com/bwmarrin/discordgo"
)

const EmbedColor = 0xb01e66

// Responder answers one interaction. The first Respond after Defer edits the
// deferred reply, later ones are sent as followups.
type Responder interface {
	Respond(data *discordgo.InteractionResponseData) error
	Defer(ephemeral bool) error
	Modal(data *discordgo.InteractionResponseData) error
	Autocomplete(choices []*discordgo.ApplicationCommandOptionChoice) error
}

// Text is a public plain-text reply.
func Text(content string) *discordgo.InteractionResponseData {
	return &discordgo.InteractionResponseData{Content: content}
}

// Ephemeral is a reply only the caller can see.
func Ephemeral(content string) *discordgo.InteractionResponseData {
	return &discordgo.InteractionResponseData{Content: content, Flags: discordgo.MessageFlagsEphemeral}
}

func Embed(content string, embed *discordgo.MessageEmbed) *discordgo.InteractionResponseData {
	if embed.Color == 0 {
		embed.Color = EmbedColor
	}
	return &discordgo.InteractionResponseData{Content: content, Embeds: []*discordgo.MessageEmbed{embed}}
}

func EmbedEphemeral(embed *discordgo.MessageEmbed) *discordgo.InteractionResponseData {
	data := Embed("", embed)
	data.Flags = discordgo.MessageFlagsEphemeral
	return data
}

// Options flattens the options of a slash command, descending into the
// chosen subcommand. It returns the subcommand name, if any.
func Options(data discordgo.ApplicationCommandInteractionData) (string, map[string]*discordgo.ApplicationCommandInteractionDataOption) {
	opts := data.Options
	sub := ""
	if len(opts) == 1 && opts[0].Type == discordgo.ApplicationCommandOptionSubCommand {
		sub = opts[0].Name
		opts = opts[0].Options
	}
	out := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(opts))
	for _, o := range opts {
		out[o.Name] = o
	}
	return sub, out
}

// StringOption returns a trimmed string option or "".
func StringOption(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	if o, ok := opts[name]; ok && o.Type == discordgo.ApplicationCommandOptionString {
		return strings.TrimSpace(o.StringValue())
	}
	return ""
}

func BoolOption(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) bool {
	if o, ok := opts[name]; ok && o.Type == discordgo.ApplicationCommandOptionBoolean {
		return o.BoolValue()
	}
	return false
}

// FocusedOption returns the option being autocompleted.
func FocusedOption(data discordgo.ApplicationCommandInteractionData) *discordgo.ApplicationCommandInteractionDataOption {
	_, opts := Options(data)
	for _, o := range opts {
		if o.Focused {
			return o
		}
	}
	return nil
}

// ModalValue returns the value of a text input in a submitted modal.
func ModalValue(data discordgo.ModalSubmitInteractionData, customID string) string {
	for _, row := range data.Components {
		var inner []discordgo.MessageComponent
		switch r := row.(type) {
		case *discordgo.ActionsRow:
			inner = r.Components
		case discordgo.ActionsRow:
			inner = r.Components
		}
		for _, c := range inner {
			switch in := c.(type) {
			case *discordgo.TextInput:
				if in.CustomID == customID {
					return in.Value
				}
			case discordgo.TextInput:
				if in.CustomID == customID {
					return in.Value
				}
			}
		}
	}
	return ""
}

// User returns the user behind an interaction.
func User(e *discordgo.InteractionCreate) *discordgo.User {
	if e.Member != nil && e.Member.User != nil {
		return e.Member.User
	}
	if e.User != nil {
		return e.User
	}
	return &discordgo.User{ID: "unknown", Username: "Unknown"}
}
