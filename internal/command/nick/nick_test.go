package nick

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filmklub/internal/apperr"
	"filmklub/internal/command"
)

type fakeMembers struct {
	nick   string
	set    []string
	setErr error
}

func (f *fakeMembers) Member(_, userID string) (*discordgo.Member, error) {
	return &discordgo.Member{User: &discordgo.User{ID: userID}, Nick: f.nick}, nil
}

func (f *fakeMembers) SetNickname(_, userID, nickname string) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.set = append(f.set, userID+"="+nickname)
	return nil
}

type recorder struct {
	replies []*discordgo.InteractionResponseData
	modals  []*discordgo.InteractionResponseData
}

func (r *recorder) Respond(data *discordgo.InteractionResponseData) error {
	r.replies = append(r.replies, data)
	return nil
}
func (r *recorder) Defer(bool) error { return nil }
func (r *recorder) Modal(data *discordgo.InteractionResponseData) error {
	r.modals = append(r.modals, data)
	return nil
}
func (r *recorder) Autocomplete([]*discordgo.ApplicationCommandOptionChoice) error { return nil }

const both = discordgo.PermissionManageNicknames

func modalSubmit(perms, appPerms int64, target, value string) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Type:           discordgo.InteractionModalSubmit,
		GuildID:        "g",
		Member:         &discordgo.Member{User: &discordgo.User{ID: "caller"}, Permissions: perms},
		AppPermissions: appPerms,
		Data: discordgo.ModalSubmitInteractionData{
			CustomID: modalPrefix + target,
			Components: []discordgo.MessageComponent{
				&discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					&discordgo.TextInput{CustomID: inputID, Value: value},
				}},
			},
		},
	}}
}

func TestModalSubmitChangesNickname(t *testing.T) {
	members := &fakeMembers{nick: "Old"}
	c := &NickCommand{Members: members}
	rec := &recorder{}

	err := c.Component(context.Background(), &command.ComponentInteractionContext{
		Event: modalSubmit(both, both, "target", "  New  "),
		Reply: rec,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"target=New"}, members.set)
	require.Len(t, rec.replies, 1)
	assert.Equal(t, "Changed nickname: Old -> New", rec.replies[0].Content)
}

func TestEmptyNicknameClears(t *testing.T) {
	members := &fakeMembers{nick: "Old"}
	msg, err := Change(members, modalSubmit(both, both, "t", ""), "t", "   ")
	require.NoError(t, err)
	assert.Equal(t, "Changed nickname: Old -> none", msg)
	assert.Equal(t, []string{"t="}, members.set)
}

func TestPermissionChecks(t *testing.T) {
	members := &fakeMembers{}

	_, err := Change(members, modalSubmit(0, both, "t", "x"), "t", "x")
	assert.ErrorIs(t, err, apperr.ErrWrongKind)
	assert.Equal(t, "You don't have permission to change nicknames!", apperr.UserMessage(err))

	_, err = Change(members, modalSubmit(both, 0, "t", "x"), "t", "x")
	assert.Equal(t, "I don't have permission to change nicknames!", apperr.UserMessage(err))

	assert.Empty(t, members.set)
}

func TestSetFailureIsExternal(t *testing.T) {
	members := &fakeMembers{setErr: errors.New("missing access")}
	_, err := Change(members, modalSubmit(both, both, "t", "x"), "t", "x")
	assert.ErrorIs(t, err, apperr.ErrExternalService)
}

func TestSlashWithoutNicknameOpensModal(t *testing.T) {
	c := &NickCommand{Members: &fakeMembers{}}
	rec := &recorder{}
	e := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Type:    discordgo.InteractionApplicationCommand,
		GuildID: "g",
		Data: discordgo.ApplicationCommandInteractionData{
			Name: "nick",
			Options: []*discordgo.ApplicationCommandInteractionDataOption{
				{Name: "user", Type: discordgo.ApplicationCommandOptionUser, Value: "target"},
			},
		},
	}}

	require.NoError(t, c.Run(context.Background(), &command.SlashInteractionContext{Event: e, Reply: rec}))
	require.Len(t, rec.modals, 1)
	assert.Equal(t, "nick:target", rec.modals[0].CustomID)
}

func TestContextMenuOpensModal(t *testing.T) {
	rec := &recorder{}
	err := (&NickMenuCommand{}).Run(context.Background(), &command.UserCommandContext{
		Event:  &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{}},
		Reply:  rec,
		Target: &discordgo.User{ID: "target"},
	})
	require.NoError(t, err)
	require.Len(t, rec.modals, 1)
	assert.Equal(t, "nick:target", rec.modals[0].CustomID)
	assert.Equal(t, discordgo.UserApplicationCommand, (&NickMenuCommand{}).ContextDefinition().Type)
}
