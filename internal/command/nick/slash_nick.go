package nick

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"filmklub/internal/apperr"
	"filmklub/internal/command"
)

const (
	maxNickLength = 32
	modalPrefix   = "nick:"
	inputID       = "nickname"
)

// Members reads and changes guild nicknames.
type Members interface {
	Member(guildID, userID string) (*discordgo.Member, error)
	SetNickname(guildID, userID, nickname string) error
}

type NickCommand struct {
	Members Members
}

func (c *NickCommand) Name() string             { return "nick" }
func (c *NickCommand) Description() string      { return "Change a user's nickname" }
func (c *NickCommand) Group() string            { return "utility" }
func (c *NickCommand) Category() string         { return "📢 Utilities" }
func (c *NickCommand) UserPermissions() []int64 { return []int64{} }

func (c *NickCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionUser,
				Name:        "user",
				Description: "The user whose nickname you want to change",
				Required:    true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "nickname",
				Description: "New nickname, leave out to open a form",
				MaxLength:   maxNickLength,
			},
		},
	}
}

func (c *NickCommand) Run(ctx context.Context, ic any) error {
	sc, ok := ic.(*command.SlashInteractionContext)
	if !ok {
		return nil
	}
	data := sc.Event.ApplicationCommandData()
	_, opts := command.Options(data)

	userOpt, ok := opts["user"]
	if !ok {
		return apperr.Empty("nick", "Pick a user.")
	}
	targetID, _ := userOpt.Value.(string)

	if _, given := opts["nickname"]; given {
		msg, err := Change(c.Members, sc.Event, targetID, command.StringOption(opts, "nickname"))
		if err != nil {
			return err
		}
		return sc.Reply.Respond(command.Text(msg))
	}
	return sc.Reply.Modal(Modal(targetID))
}

// Component handles the submitted nickname modal.
func (c *NickCommand) Component(_ context.Context, cc *command.ComponentInteractionContext) error {
	if cc.Event.Type != discordgo.InteractionModalSubmit {
		return nil
	}
	data := cc.Event.ModalSubmitData()
	targetID, ok := strings.CutPrefix(data.CustomID, modalPrefix)
	if !ok || targetID == "" {
		return nil
	}
	msg, err := Change(c.Members, cc.Event, targetID, command.ModalValue(data, inputID))
	if err != nil {
		return err
	}
	return cc.Reply.Respond(command.Text(msg))
}

// Modal asks for the new nickname of targetID.
func Modal(targetID string) *discordgo.InteractionResponseData {
	return &discordgo.InteractionResponseData{
		CustomID: modalPrefix + targetID,
		Title:    "Change nickname",
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.TextInput{
					CustomID:    inputID,
					Label:       "New Nickname",
					Style:       discordgo.TextInputShort,
					Placeholder: "Enter new nickname (leave empty to remove)",
					Required:    false,
					MaxLength:   maxNickLength,
				},
			}},
		},
	}
}

// Change sets targetID's nickname on behalf of the interaction's caller. An
// empty nickname removes it. Both the caller and the bot need Manage
// Nicknames.
func Change(members Members, e *discordgo.InteractionCreate, targetID, nickname string) (string, error) {
	const op = "nick.change"
	if e.GuildID == "" || e.Member == nil {
		return "", apperr.WrongKind(op, "You must be in a guild to use this command.")
	}
	if e.Member.Permissions&discordgo.PermissionManageNicknames == 0 &&
		e.Member.Permissions&discordgo.PermissionAdministrator == 0 {
		return "", apperr.WrongKind(op, "You don't have permission to change nicknames!")
	}
	if e.AppPermissions&discordgo.PermissionManageNicknames == 0 &&
		e.AppPermissions&discordgo.PermissionAdministrator == 0 {
		return "", apperr.WrongKind(op, "I don't have permission to change nicknames!")
	}

	member, err := members.Member(e.GuildID, targetID)
	if err != nil {
		return "", apperr.External(op, "There was an error while changing the nickname.", err)
	}
	nickname = strings.TrimSpace(nickname)
	if err := members.SetNickname(e.GuildID, targetID, nickname); err != nil {
		return "", apperr.External(op, "There was an error while changing the nickname.", err)
	}
	return fmt.Sprintf("Changed nickname: %s -> %s", orNone(member.Nick), orNone(nickname)), nil
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
