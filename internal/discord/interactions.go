package discord

import (
	"sync"

	"github.com/bwmarrin/discordgo"

	"filmklub/internal/command"
)

// responder answers a single interaction. Discord allows exactly one initial
// response; everything after it is an edit or a followup.
type responder struct {
	s *discordgo.Session
	i *discordgo.Interaction

	mu       sync.Mutex
	acked    bool
	deferred bool
	edited   bool
}

var _ command.Responder = (*responder)(nil)

func newResponder(s *discordgo.Session, i *discordgo.Interaction) *responder {
	return &responder{s: s, i: i}
}

func (r *responder) Respond(data *discordgo.InteractionResponseData) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case !r.acked:
		err := r.s.InteractionRespond(r.i, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: data,
		})
		if err == nil {
			r.acked = true
		}
		return err

	case r.deferred && !r.edited:
		content := data.Content
		embeds := data.Embeds
		if embeds == nil {
			embeds = []*discordgo.MessageEmbed{}
		}
		_, err := r.s.InteractionResponseEdit(r.i, &discordgo.WebhookEdit{
			Content: &content,
			Embeds:  &embeds,
		})
		if err == nil {
			r.edited = true
		}
		return err

	default:
		_, err := r.s.FollowupMessageCreate(r.i, true, &discordgo.WebhookParams{
			Content: data.Content,
			Embeds:  data.Embeds,
			Flags:   data.Flags,
		})
		return err
	}
}

// Defer acknowledges the interaction so the command can take longer than
// Discord's three second window. It is a no-op once acknowledged.
func (r *responder) Defer(ephemeral bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.acked {
		return nil
	}

	data := &discordgo.InteractionResponseData{}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	err := r.s.InteractionRespond(r.i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: data,
	})
	if err == nil {
		r.acked = true
		r.deferred = true
	}
	return err
}

func (r *responder) Modal(data *discordgo.InteractionResponseData) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	err := r.s.InteractionRespond(r.i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: data,
	})
	if err == nil {
		r.acked = true
	}
	return err
}

func (r *responder) Autocomplete(choices []*discordgo.ApplicationCommandOptionChoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	err := r.s.InteractionRespond(r.i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{Choices: choices},
	})
	if err == nil {
		r.acked = true
	}
	return err
}
