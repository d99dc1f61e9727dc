package movienight

import (
	"context"
	"errors"
	"fmt"
	"time"

	"filmklub/internal/apperr"
	"filmklub/internal/catalog"
	"filmklub/internal/metrics"
	"filmklub/internal/storage"
)

// Shuffle permutes movies in place with Fisher-Yates using intn.
func Shuffle(movies []storage.Movie, intn func(int) int) {
	for i := len(movies) - 1; i > 0; i-- {
		j := intn(i + 1)
		movies[i], movies[j] = movies[j], movies[i]
	}
}

// Candidates returns up to 10 unwatched movies in random order.
func Candidates(doc *storage.Document, intn func(int) int) []storage.Movie {
	movies := doc.UnwatchedMovies()
	Shuffle(movies, intn)
	if len(movies) > maxPollAnswers {
		movies = movies[:maxPollAnswers]
	}
	return movies
}

// OpenVote posts the vote poll in channelID and remembers it as the active
// poll. It returns the poll message id and the candidates.
func (c *Controller) OpenVote(ctx context.Context, channelID string) (string, []storage.Movie, error) {
	const op = "movienight.vote"

	var candidates []storage.Movie
	if err := c.repo.View(func(doc *storage.Document) error {
		candidates = Candidates(doc, c.opts.Intn)
		return nil
	}); err != nil {
		return "", nil, err
	}
	if len(candidates) == 0 {
		return "", nil, apperr.Empty(op, "No movies to vote on.")
	}

	answers := make([]string, len(candidates))
	for i, m := range candidates {
		answers[i] = m.MovieName
	}

	msgID, err := c.polls.CreatePoll(ctx, channelID, PollSpec{
		Question:    voteQuestion,
		Answers:     answers,
		MultiSelect: true,
		Hours:       pollDuration,
	})
	if err != nil {
		return "", nil, apperr.External(op, "could not create poll", err)
	}

	if err := c.repo.Update(func(doc *storage.Document) error {
		doc.ActivePollID = msgID
		doc.ActivePollChannelID = channelID
		return nil
	}); err != nil {
		c.log.Error().Err(err).Str("poll", msgID).Msg("Failed to store active poll")
		return "", nil, err
	}

	metrics.ObserveTransition("polled")
	c.log.Info().Str("poll", msgID).Int("candidates", len(candidates)).Msg("Vote poll opened")
	return msgID, candidates, nil
}

// Winner returns the answer with most votes. Ties go to the earliest answer.
func Winner(answers []PollAnswer) (PollAnswer, bool) {
	if len(answers) == 0 {
		return PollAnswer{}, false
	}
	best := answers[0]
	for _, a := range answers[1:] {
		if a.Votes > best.Votes {
			best = a
		}
	}
	return best, true
}

// Scheduled describes the event Start created.
type Scheduled struct {
	EventID string
	Title   *catalog.Title
	Start   time.Time
}

// Start closes the active vote poll and schedules an event for the winner.
func (c *Controller) Start(ctx context.Context, guildID, channelID string) (*Scheduled, error) {
	const op = "movienight.start"

	var pollID, pollChannel string
	if err := c.repo.View(func(doc *storage.Document) error {
		pollID = doc.ActivePollID
		pollChannel = doc.ActivePollChannelID
		return nil
	}); err != nil {
		return nil, err
	}
	if pollChannel == "" {
		pollChannel = channelID
	}
	if pollID == "" {
		return nil, apperr.NotFound(op, "No active poll found.")
	}

	state, err := c.polls.FetchPoll(ctx, pollChannel, pollID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.NotFound(op, "No active poll found.")
		}
		return nil, apperr.External(op, "could not fetch poll", err)
	}
	if state.Finalized {
		return nil, apperr.NotFound(op, "No active poll found.")
	}

	ended, err := c.polls.EndPoll(ctx, pollChannel, pollID)
	if err != nil {
		return nil, apperr.External(op, "could not end poll", err)
	}
	if len(ended.Answers) > 0 {
		state = ended
	}
	c.deleteLater(pollChannel, pollID)

	winner, ok := Winner(state.Answers)
	if !ok {
		return nil, apperr.NotFound(op, "The poll has no answers.")
	}

	var movie storage.Movie
	if err := c.repo.View(func(doc *storage.Document) error {
		m, ok := doc.MovieByName(winner.Text)
		if !ok {
			return apperr.NotFound(op, fmt.Sprintf("No suggested movie matches %q.", winner.Text))
		}
		movie = *m
		return nil
	}); err != nil {
		return nil, err
	}

	title, err := c.catalog.Title(ctx, movie.MovieID)
	if err != nil {
		c.log.Error().Err(err).Str("movie", movie.MovieID).Msg("Failed to fetch winning movie")
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
		return nil, apperr.External(op, "could not fetch movie details", err)
	}

	spec := c.eventSpec(title)
	eventID, err := c.events.CreateEvent(ctx, guildID, spec)
	if err != nil {
		c.log.Error().Err(err).Str("movie", movie.MovieID).Msg("Failed to create scheduled event")
		return nil, apperr.External(op, "could not create the event", err)
	}

	err = c.repo.Update(func(doc *storage.Document) error {
		doc.PendingEvents[eventID] = storage.PendingEvent{
			ChannelID: channelID,
			GuildID:   guildID,
			MovieID:   movie.MovieID,
			MovieName: title.PrimaryTitle,
		}
		if doc.ActivePollID == pollID {
			doc.ActivePollID = ""
			doc.ActivePollChannelID = ""
		}
		return nil
	})
	if err != nil {
		c.log.Error().Err(err).Str("event", eventID).Msg("Failed to store pending event")
		return nil, err
	}

	metrics.ObserveTransition("scheduled")
	c.log.Info().Str("event", eventID).Str("movie", movie.MovieID).Str("winner", winner.Text).Int("votes", winner.Votes).Msg("Movie night scheduled")
	return &Scheduled{EventID: eventID, Title: title, Start: spec.Start}, nil
}

func (c *Controller) eventSpec(t *catalog.Title) EventSpec {
	start := c.opts.Now().Add(c.opts.StartLead)
	end := start.Add(defaultRuntime)
	if t.RuntimeSeconds > 0 {
		end = start.Add(time.Duration(t.RuntimeSeconds) * time.Second)
	}
	return EventSpec{
		Name:        EventName(t),
		Description: Describe(t),
		Location:    c.opts.Location,
		Start:       start,
		End:         end,
		ImageURL:    t.PosterURL(),
		Reason:      "Scheduled for Movie Night: " + t.PrimaryTitle,
	}
}
