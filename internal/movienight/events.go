package movienight

import (
	"context"
	"errors"

	"filmklub/internal/metrics"
	"filmklub/internal/storage"
)

// OnEventStatusChange reconciles a scheduled event transition with the
// store. Events without the movie night marker are ignored.
func (c *Controller) OnEventStatusChange(ctx context.Context, ev Event, oldStatus, newStatus EventStatus) error {
	if !ev.IsMovieNight() {
		return nil
	}

	log := c.log.With().Str("event", ev.ID).Str("old", oldStatus.String()).Str("new", newStatus.String()).Logger()

	switch {
	case newStatus == StatusCanceled:
		return c.purge(ev, "canceled")

	case newStatus == StatusActive && oldStatus != StatusActive:
		created := false
		err := c.repo.Update(func(doc *storage.Document) error {
			created = c.materialize(doc, ev.ID)
			if !created {
				return errNoChange
			}
			return nil
		})
		if errors.Is(err, errNoChange) {
			log.Debug().Msg("No pending event for active movie night")
			return nil
		}
		if err != nil {
			log.Error().Err(err).Msg("Failed to record movie night")
			return err
		}
		metrics.ObserveTransition("active")
		log.Info().Msg("Movie night started")
		return nil

	case newStatus == StatusCompleted && oldStatus != StatusCompleted:
		err := c.repo.Update(func(doc *storage.Document) error {
			night, ok := doc.NightByEvent(ev.ID)
			if !ok {
				if !c.materialize(doc, ev.ID) {
					return errNoChange
				}
				night, _ = doc.NightByEvent(ev.ID)
			}
			delete(doc.PendingEvents, ev.ID)
			doc.MarkWatched(night.MovieID)
			return nil
		})
		if errors.Is(err, errNoChange) {
			log.Debug().Msg("Completed event has no night or pending entry")
			return nil
		}
		if err != nil {
			log.Error().Err(err).Msg("Failed to complete movie night")
			return err
		}
		metrics.ObserveTransition("completed")
		log.Info().Msg("Movie night completed")
		return nil
	}
	return nil
}

// OnEventDeleted drops everything recorded for a deleted event.
func (c *Controller) OnEventDeleted(ctx context.Context, ev Event) error {
	if !ev.IsMovieNight() {
		return nil
	}
	return c.purge(ev, "deleted")
}

func (c *Controller) purge(ev Event, reason string) error {
	err := c.repo.Update(func(doc *storage.Document) error {
		_, pending := doc.PendingEvents[ev.ID]
		delete(doc.PendingEvents, ev.ID)
		if doc.RemoveNights(ev.ID) == 0 && !pending {
			return errNoChange
		}
		return nil
	})
	if errors.Is(err, errNoChange) {
		return nil
	}
	if err != nil {
		c.log.Error().Err(err).Str("event", ev.ID).Msg("Failed to purge movie night")
		return err
	}
	metrics.ObserveTransition(reason)
	c.log.Info().Str("event", ev.ID).Str("reason", reason).Msg("Movie night removed")
	return nil
}

// materialize turns the pending entry into a night. It reports false when
// there is no pending entry or the night already exists.
func (c *Controller) materialize(doc *storage.Document, eventID string) bool {
	meta, ok := doc.PendingEvents[eventID]
	if !ok {
		return false
	}
	delete(doc.PendingEvents, eventID)
	if _, exists := doc.NightByEvent(eventID); exists {
		return true
	}

	night := storage.Night{
		EventID:   eventID,
		MovieID:   meta.MovieID,
		MovieName: meta.MovieName,
		ChannelID: meta.ChannelID,
		GuildID:   meta.GuildID,
		StartTime: c.opts.Now().UnixMilli(),
	}
	if m, ok := doc.Movie(meta.MovieID); ok {
		night.SuggestedByUserID = m.SuggestedByUserID
	}
	doc.Nights = append(doc.Nights, night)
	return true
}
