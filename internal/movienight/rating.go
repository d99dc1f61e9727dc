package movienight

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"filmklub/internal/apperr"
	"filmklub/internal/metrics"
	"filmklub/internal/storage"
)

// errNoChange aborts an Update without writing.
var errNoChange = errors.New("no change")

func ratingJob(messageID string) string { return "rating:" + messageID }

// History returns up to 15 nights, newest first.
func (c *Controller) History(ctx context.Context) ([]storage.Night, error) {
	var nights []storage.Night
	if err := c.repo.View(func(doc *storage.Document) error {
		nights = doc.RecentNights(historyLimit)
		return nil
	}); err != nil {
		return nil, err
	}
	if len(nights) == 0 {
		return nil, apperr.Empty("movienight.history", "No watched movies with ratings yet.")
	}
	return nights, nil
}

// RequestRating posts a 1-10 rating poll for the most recent unrated night
// and schedules its finalization.
func (c *Controller) RequestRating(ctx context.Context, channelID string) (*storage.Night, error) {
	const op = "movienight.rate"

	var night *storage.Night
	if err := c.repo.View(func(doc *storage.Document) error {
		for _, n := range doc.RecentNights(0) {
			if n.Unrated() {
				night = &n
				return nil
			}
		}
		return nil
	}); err != nil {
		return nil, err
	}
	if night == nil {
		return nil, apperr.NotFound(op, "No night without a rating found.")
	}

	name := night.MovieName
	if name == "" {
		name = "the movie"
	}
	answers := make([]string, 10)
	for i := range answers {
		answers[i] = fmt.Sprint(i + 1)
	}

	msgID, err := c.polls.CreatePoll(ctx, channelID, PollSpec{
		Question: fmt.Sprintf("How much did you enjoy %q?", name),
		Answers:  answers,
		Hours:    pollDuration,
	})
	if err != nil {
		return nil, apperr.External(op, "could not create rating poll", err)
	}

	err = c.repo.Update(func(doc *storage.Document) error {
		n, ok := doc.NightByEvent(night.EventID)
		if !ok {
			return apperr.NotFound(op, "The movie night was removed.")
		}
		n.RatingPollMessageID = msgID
		n.RatingPollChannelID = channelID
		*night = *n
		return nil
	})
	if err != nil {
		c.log.Error().Err(err).Str("poll", msgID).Msg("Failed to store rating poll")
		return nil, err
	}

	c.scheduleFinalize(channelID, msgID)
	c.log.Info().Str("event", night.EventID).Str("poll", msgID).Msg("Rating poll opened")
	return night, nil
}

func (c *Controller) scheduleFinalize(channelID, messageID string) {
	c.jobs.After(ratingJob(messageID), c.opts.RatingDelay, func(ctx context.Context) error {
		return c.FinalizeRating(ctx, channelID, messageID)
	})
}

// Resume re-arms finalization for rating polls that were still open when
// the process stopped.
func (c *Controller) Resume(ctx context.Context) error {
	var pending []storage.Night
	if err := c.repo.View(func(doc *storage.Document) error {
		for _, n := range doc.Nights {
			if n.RatingPollMessageID != "" && n.RatingScore == nil {
				pending = append(pending, n)
			}
		}
		return nil
	}); err != nil {
		return err
	}

	for _, n := range pending {
		ch := n.RatingPollChannelID
		if ch == "" {
			ch = n.ChannelID
		}
		c.scheduleFinalize(ch, n.RatingPollMessageID)
	}
	if len(pending) > 0 {
		c.log.Info().Int("polls", len(pending)).Msg("Re-armed rating polls")
	}
	return nil
}

// Score is the vote-weighted average of answers ordered by id, where the
// i-th answer is worth i. It is 0 when nobody voted.
func Score(answers []PollAnswer) (float64, int) {
	sorted := make([]PollAnswer, len(answers))
	copy(sorted, answers)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	var total, votes int
	for i, a := range sorted {
		total += (i + 1) * a.Votes
		votes += a.Votes
	}
	if votes == 0 {
		return 0, 0
	}
	return float64(total) / float64(votes), votes
}

// FinalizeRating closes the rating poll, stores the score on its night and
// marks the movie watched. A night or message that no longer exists aborts
// quietly. Safe to run against a poll that is already closed.
func (c *Controller) FinalizeRating(ctx context.Context, channelID, messageID string) error {
	log := c.log.With().Str("poll", messageID).Logger()

	found := false
	if err := c.repo.View(func(doc *storage.Document) error {
		_, found = doc.NightByRatingMessage(messageID)
		return nil
	}); err != nil {
		return err
	}
	if !found {
		log.Debug().Msg("Rating poll has no night anymore")
		return nil
	}

	state, err := c.polls.FetchPoll(ctx, channelID, messageID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			log.Debug().Msg("Rating poll message is gone")
			return nil
		}
		log.Warn().Err(err).Msg("Failed to fetch rating poll")
		return err
	}

	if !state.Finalized {
		ended, err := c.polls.EndPoll(ctx, channelID, messageID)
		if err != nil {
			log.Error().Err(err).Msg("Error ending rating poll")
			return err
		}
		if len(ended.Answers) > 0 {
			state = ended
		}
	}

	score, votes := Score(state.Answers)

	err = c.repo.Update(func(doc *storage.Document) error {
		night, ok := doc.NightByRatingMessage(messageID)
		if !ok {
			return errNoChange
		}
		night.RatingScore = &score
		night.RatingVotes = &votes
		doc.MarkWatched(night.MovieID)
		return nil
	})
	if errors.Is(err, errNoChange) {
		return nil
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to store rating")
		return err
	}

	metrics.ObserveTransition("rated")
	log.Info().Float64("score", score).Int("votes", votes).Msg("Rating poll finalized")
	c.deleteLater(channelID, messageID)
	return nil
}
