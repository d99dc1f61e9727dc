package soundboard

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"filmklub/internal/apperr"
	"filmklub/internal/command"
	sb "filmklub/internal/soundboard"
	"filmklub/internal/voice"
)

const maxChoices = 25

// VoiceLocator finds the voice channel a member is in.
type VoiceLocator interface {
	UserVoiceChannel(guildID, userID string) (string, bool)
}

type Player interface {
	PlaySound(ctx context.Context, guildID, channelID, path string, forceSwitch bool) (*voice.Task, error)
}

type SoundboardCommand struct {
	Library   *sb.Library
	Entrances *sb.Entrances
	Player    Player
	Voice     VoiceLocator
}

func (c *SoundboardCommand) Name() string             { return "soundboard" }
func (c *SoundboardCommand) Description() string      { return "Play and manage sounds" }
func (c *SoundboardCommand) Group() string            { return "soundboard" }
func (c *SoundboardCommand) Category() string         { return "🔊 Soundboard" }
func (c *SoundboardCommand) UserPermissions() []int64 { return []int64{} }

func (c *SoundboardCommand) SlashDefinition() *discordgo.ApplicationCommand {
	soundOption := func(required bool) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{
			Type:         discordgo.ApplicationCommandOptionString,
			Name:         "sound",
			Description:  "Sound name",
			Required:     required,
			Autocomplete: true,
		}
	}
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "list",
				Description: "List all sounds",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "play",
				Description: "Play a sound in your voice channel",
				Options:     []*discordgo.ApplicationCommandOption{soundOption(true)},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "upload",
				Description: "Upload a new sound",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "name",
						Description: "Enter a name for the sound",
						Required:    true,
						MaxLength:   sb.MaxNameLength,
					},
					{
						Type:        discordgo.ApplicationCommandOptionAttachment,
						Name:        "file",
						Description: "Sound file (mp3)",
						Required:    true,
					},
					{
						Type:        discordgo.ApplicationCommandOptionBoolean,
						Name:        "entrance",
						Description: "Set as your entrance sound",
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "entrance",
				Description: "Show, set or remove your entrance sound",
				Options: []*discordgo.ApplicationCommandOption{
					soundOption(false),
					{
						Type:        discordgo.ApplicationCommandOptionBoolean,
						Name:        "remove",
						Description: "Remove your entrance sound",
					},
				},
			},
		},
	}
}

func (c *SoundboardCommand) Run(ctx context.Context, ic any) error {
	sc, ok := ic.(*command.SlashInteractionContext)
	if !ok {
		return nil
	}
	e := sc.Event
	data := e.ApplicationCommandData()
	sub, opts := command.Options(data)
	user := command.User(e)

	switch sub {
	case "list":
		names, err := c.Library.List()
		if err != nil {
			return err
		}
		return sc.Reply.Respond(command.EmbedEphemeral(&discordgo.MessageEmbed{
			Title:       "Soundboard",
			Description: ListText(names),
		}))

	case "play":
		name := command.StringOption(opts, "sound")
		channelID, ok := c.Voice.UserVoiceChannel(e.GuildID, user.ID)
		if !ok {
			return sc.Reply.Respond(command.Ephemeral("You need to be in a voice channel to play sounds!"))
		}
		if !c.Library.Exists(name) {
			return apperr.NotFound("soundboard.play", "Sound not found.")
		}
		if _, err := c.Player.PlaySound(ctx, e.GuildID, channelID, c.Library.Path(name), true); err != nil {
			return err
		}
		return sc.Reply.Respond(command.Ephemeral(fmt.Sprintf("Playing **%s**", name)))

	case "upload":
		name := command.StringOption(opts, "name")
		att := attachment(data, opts, "file")
		if att == nil {
			return apperr.Empty("soundboard.upload", "No file uploaded.")
		}
		if err := sc.Reply.Defer(false); err != nil {
			return err
		}
		if err := c.Library.Upload(ctx, name, att.URL); err != nil {
			return err
		}
		msg := fmt.Sprintf("Uploaded sound: %q", name)
		if command.BoolOption(opts, "entrance") {
			if err := c.Entrances.Set(e.GuildID, user.ID, name); err != nil {
				return err
			}
			msg = fmt.Sprintf("Uploaded sound: %q and set as your entrance sound!", name)
		}
		return sc.Reply.Respond(command.Text(msg))

	case "entrance":
		name := command.StringOption(opts, "sound")
		switch {
		case command.BoolOption(opts, "remove"):
			if err := c.Entrances.Clear(e.GuildID, user.ID); err != nil {
				return err
			}
			return sc.Reply.Respond(command.Ephemeral("Entrance sound removed."))
		case name != "":
			if err := c.Entrances.Set(e.GuildID, user.ID, name); err != nil {
				return err
			}
			return sc.Reply.Respond(command.Ephemeral(fmt.Sprintf("✅ Entrance sound set to: **%s**", name)))
		}
		current, ok, err := c.Entrances.Get(e.GuildID, user.ID)
		if err != nil {
			return err
		}
		if !ok {
			return sc.Reply.Respond(command.Ephemeral("You don't have an entrance sound."))
		}
		return sc.Reply.Respond(command.Ephemeral(fmt.Sprintf("Your entrance sound is **%s**", current)))
	}

	return sc.Reply.Respond(command.Ephemeral("Unknown subcommand."))
}

func (c *SoundboardCommand) Autocomplete(_ context.Context, ac *command.AutocompleteContext) error {
	focused := command.FocusedOption(ac.Event.ApplicationCommandData())
	query := ""
	if focused != nil {
		query = focused.StringValue()
	}
	names := c.Library.Match(query, maxChoices)
	choices := make([]*discordgo.ApplicationCommandOptionChoice, len(names))
	for i, n := range names {
		choices[i] = &discordgo.ApplicationCommandOptionChoice{Name: n, Value: n}
	}
	return ac.Reply.Autocomplete(choices)
}

// ListText renders sound names for an embed, cut to Discord's limit.
func ListText(names []string) string {
	if len(names) == 0 {
		return "No sounds yet. Use `/soundboard upload` to add one."
	}
	const limit = 4000
	var b strings.Builder
	for i, n := range names {
		line := fmt.Sprintf("`%s`\n", n)
		if b.Len()+len(line) > limit {
			fmt.Fprintf(&b, "…and %d more", len(names)-i)
			break
		}
		b.WriteString(line)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func attachment(data discordgo.ApplicationCommandInteractionData, opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) *discordgo.MessageAttachment {
	o, ok := opts[name]
	if !ok || data.Resolved == nil {
		return nil
	}
	id, _ := o.Value.(string)
	return data.Resolved.Attachments[id]
}
