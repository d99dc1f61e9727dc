package discord

import (
	"context"
	"errors"
	"net/http"

	"github.com/bwmarrin/discordgo"

	"filmklub/internal/apperr"
	mn "filmklub/internal/movienight"
)

// PollService posts native Discord polls.
type PollService struct {
	s *discordgo.Session
}

var _ mn.PollService = (*PollService)(nil)

func NewPollService(s *discordgo.Session) *PollService {
	return &PollService{s: s}
}

func (p *PollService) CreatePoll(ctx context.Context, channelID string, spec mn.PollSpec) (string, error) {
	msg, err := p.s.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Poll: buildPoll(spec),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", classifyREST("poll.create", "Failed to create the poll.", err)
	}
	return msg.ID, nil
}

func (p *PollService) FetchPoll(ctx context.Context, channelID, messageID string) (mn.PollState, error) {
	msg, err := p.s.ChannelMessage(channelID, messageID, discordgo.WithContext(ctx))
	if err != nil {
		return mn.PollState{}, classifyREST("poll.fetch", "Failed to fetch the poll.", err)
	}
	return pollState(msg)
}

func (p *PollService) EndPoll(_ context.Context, channelID, messageID string) (mn.PollState, error) {
	msg, err := p.s.PollExpire(channelID, messageID)
	if err != nil {
		return mn.PollState{}, classifyREST("poll.end", "Failed to end the poll.", err)
	}
	return pollState(msg)
}

func (p *PollService) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	if err := p.s.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx)); err != nil {
		return classifyREST("poll.delete", "Failed to delete the message.", err)
	}
	return nil
}

func buildPoll(spec mn.PollSpec) *discordgo.Poll {
	answers := make([]discordgo.PollAnswer, len(spec.Answers))
	for i, text := range spec.Answers {
		answers[i] = discordgo.PollAnswer{Media: &discordgo.PollMedia{Text: text}}
	}
	return &discordgo.Poll{
		Question:         discordgo.PollMedia{Text: spec.Question},
		Answers:          answers,
		AllowMultiselect: spec.MultiSelect,
		Duration:         spec.Hours,
	}
}

// pollState reads the answers and tallies of a poll message. Answers
// without a tally entry have no votes.
func pollState(msg *discordgo.Message) (mn.PollState, error) {
	if msg == nil || msg.Poll == nil {
		return mn.PollState{}, apperr.NotFound("poll.read", "The message has no poll.")
	}

	counts := make(map[int]int)
	finalized := false
	if r := msg.Poll.Results; r != nil {
		finalized = r.Finalized
		for _, c := range r.AnswerCounts {
			if c != nil {
				counts[c.ID] = c.Count
			}
		}
	}

	state := mn.PollState{Finalized: finalized, Answers: make([]mn.PollAnswer, 0, len(msg.Poll.Answers))}
	for _, a := range msg.Poll.Answers {
		text := ""
		if a.Media != nil {
			text = a.Media.Text
		}
		state.Answers = append(state.Answers, mn.PollAnswer{ID: a.AnswerID, Text: text, Votes: counts[a.AnswerID]})
	}
	return state, nil
}

// classifyREST maps a 404 from Discord to NotFound and everything else to
// an external service error.
func classifyREST(op, msg string, err error) error {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound {
		return apperr.Wrap(apperr.KindNotFound, op, msg, err)
	}
	return apperr.External(op, msg, err)
}
