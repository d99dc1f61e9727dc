package soundboard

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filmklub/internal/apperr"
	"filmklub/internal/command"
	sb "filmklub/internal/soundboard"
	"filmklub/internal/storage"
	"filmklub/internal/voice"
)

type recorder struct {
	replies []*discordgo.InteractionResponseData
	choices []*discordgo.ApplicationCommandOptionChoice
}

func (r *recorder) Respond(data *discordgo.InteractionResponseData) error {
	r.replies = append(r.replies, data)
	return nil
}
func (r *recorder) Defer(bool) error                               { return nil }
func (r *recorder) Modal(*discordgo.InteractionResponseData) error { return nil }
func (r *recorder) Autocomplete(c []*discordgo.ApplicationCommandOptionChoice) error {
	r.choices = c
	return nil
}

type fakeVoice struct {
	channel string
	played  []string
}

func (f *fakeVoice) UserVoiceChannel(string, string) (string, bool) {
	return f.channel, f.channel != ""
}

func (f *fakeVoice) PlaySound(_ context.Context, _, channelID, path string, force bool) (*voice.Task, error) {
	f.played = append(f.played, channelID+"|"+filepath.Base(path))
	return nil, nil
}

type noJobs struct{}

func (noJobs) After(string, time.Duration, func(context.Context) error) {}
func (noJobs) Cancel(string) bool                                       { return false }

type noPlayer struct{}

func (noPlayer) IsConnected(string) bool            { return false }
func (noPlayer) ChannelID(string) (string, bool)    { return "", false }
func (noPlayer) LeaveIfAlone(string, time.Duration) {}
func (noPlayer) EnsureJoined(context.Context, string, string, bool) (voice.Connection, error) {
	return nil, nil
}
func (noPlayer) PlaySound(context.Context, string, string, string, bool) (*voice.Task, error) {
	return nil, nil
}

func newCommand(t *testing.T, client *http.Client, files ...string) (*SoundboardCommand, *fakeVoice) {
	t.Helper()
	dir := t.TempDir()
	for _, f := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte("x"), 0644))
	}
	repo, err := storage.New(filepath.Join(t.TempDir(), "movienight.json"), 0, zerolog.Nop())
	require.NoError(t, err)
	lib := sb.NewLibrary(dir, client, zerolog.Nop())
	fv := &fakeVoice{}
	return &SoundboardCommand{
		Library:   lib,
		Entrances: sb.NewEntrances(repo, lib, noPlayer{}, noJobs{}, zerolog.Nop()),
		Player:    fv,
		Voice:     fv,
	}, fv
}

func interaction(kind discordgo.InteractionType, sub string, opts []*discordgo.ApplicationCommandInteractionDataOption, resolved *discordgo.ApplicationCommandInteractionDataResolved) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Type:    kind,
		GuildID: "g",
		Member:  &discordgo.Member{User: &discordgo.User{ID: "u"}},
		Data: discordgo.ApplicationCommandInteractionData{
			Name: "soundboard",
			Options: []*discordgo.ApplicationCommandInteractionDataOption{
				{Name: sub, Type: discordgo.ApplicationCommandOptionSubCommand, Options: opts},
			},
			Resolved: resolved,
		},
	}}
}

func run(t *testing.T, c *SoundboardCommand, sub string, opts ...*discordgo.ApplicationCommandInteractionDataOption) (*recorder, error) {
	t.Helper()
	rec := &recorder{}
	e := interaction(discordgo.InteractionApplicationCommand, sub, opts, nil)
	return rec, c.Run(context.Background(), &command.SlashInteractionContext{Event: e, Reply: rec})
}

func str(name, value string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionString, Value: value}
}

func boolean(name string, value bool) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionBoolean, Value: value}
}

func TestList(t *testing.T) {
	c, _ := newCommand(t, nil, "b.mp3", "a.mp3")
	rec, err := run(t, c, "list")
	require.NoError(t, err)
	require.Len(t, rec.replies, 1)
	assert.Equal(t, "`a`\n`b`", rec.replies[0].Embeds[0].Description)
}

func TestPlayRequiresVoiceAndExistingSound(t *testing.T) {
	c, fv := newCommand(t, nil, "boom.mp3")

	rec, err := run(t, c, "play", str("sound", "boom"))
	require.NoError(t, err)
	assert.Equal(t, "You need to be in a voice channel to play sounds!", rec.replies[0].Content)

	fv.channel = "vc"
	_, err = run(t, c, "play", str("sound", "nope"))
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	rec, err = run(t, c, "play", str("sound", "boom"))
	require.NoError(t, err)
	assert.Equal(t, []string{"vc|boom.mp3"}, fv.played)
	assert.Equal(t, "Playing **boom**", rec.replies[0].Content)
}

func TestEntranceSetShowRemove(t *testing.T) {
	c, _ := newCommand(t, nil, "boom.mp3")

	rec, err := run(t, c, "entrance")
	require.NoError(t, err)
	assert.Equal(t, "You don't have an entrance sound.", rec.replies[0].Content)

	rec, err = run(t, c, "entrance", str("sound", "boom"))
	require.NoError(t, err)
	assert.Contains(t, rec.replies[0].Content, "**boom**")

	rec, err = run(t, c, "entrance")
	require.NoError(t, err)
	assert.Equal(t, "Your entrance sound is **boom**", rec.replies[0].Content)

	rec, err = run(t, c, "entrance", boolean("remove", true))
	require.NoError(t, err)
	assert.Equal(t, "Entrance sound removed.", rec.replies[0].Content)
}

func TestUploadAsEntrance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("mp3"))
	}))
	defer srv.Close()
	c, _ := newCommand(t, srv.Client())

	opts := []*discordgo.ApplicationCommandInteractionDataOption{
		str("name", "horn"),
		{Name: "file", Type: discordgo.ApplicationCommandOptionAttachment, Value: "att1"},
		boolean("entrance", true),
	}
	resolved := &discordgo.ApplicationCommandInteractionDataResolved{
		Attachments: map[string]*discordgo.MessageAttachment{"att1": {ID: "att1", URL: srv.URL + "/horn.mp3"}},
	}
	rec := &recorder{}
	e := interaction(discordgo.InteractionApplicationCommand, "upload", opts, resolved)
	require.NoError(t, c.Run(context.Background(), &command.SlashInteractionContext{Event: e, Reply: rec}))

	require.Len(t, rec.replies, 1)
	assert.Equal(t, `Uploaded sound: "horn" and set as your entrance sound!`, rec.replies[0].Content)
	assert.True(t, c.Library.Exists("horn"))
	name, ok, err := c.Entrances.Get("g", "u")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "horn", name)
}

func TestAutocomplete(t *testing.T) {
	c, _ := newCommand(t, nil, "airhorn.mp3", "clap.mp3")
	focused := str("sound", "hor")
	focused.Focused = true
	rec := &recorder{}
	e := interaction(discordgo.InteractionApplicationCommandAutocomplete, "play", []*discordgo.ApplicationCommandInteractionDataOption{focused}, nil)

	require.NoError(t, c.Autocomplete(context.Background(), &command.AutocompleteContext{Event: e, Reply: rec}))
	require.Len(t, rec.choices, 1)
	assert.Equal(t, "airhorn", rec.choices[0].Name)
}

func TestListTextTruncates(t *testing.T) {
	names := make([]string, 400)
	for i := range names {
		names[i] = strings.Repeat("x", 19)
	}
	text := ListText(names)
	assert.LessOrEqual(t, len(text), 4100)
	assert.Contains(t, text, "more")
	assert.Contains(t, ListText(nil), "No sounds yet")
}
