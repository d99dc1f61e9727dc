// Package movienight drives the movie night cycle: suggestions, the vote
// poll, the scheduled event, the recorded night and its rating.
package movienight

import (
	"context"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"filmklub/internal/catalog"
	"filmklub/internal/storage"
)

// EventMarker prefixes the name of every scheduled event the bot creates.
const EventMarker = "Movie Night:"

const (
	maxPollAnswers  = 10
	historyLimit    = 15
	maxPlotLength   = 500
	defaultRuntime  = 2 * time.Hour
	pollDuration    = 1 // hours
	voteQuestion    = "What movie should we watch?"
	defaultLocation = "Dalles Filmklub"
)

// Catalog looks up titles.
type Catalog interface {
	Title(ctx context.Context, id string) (*catalog.Title, error)
	Search(ctx context.Context, query string) ([]catalog.Title, error)
}

type PollSpec struct {
	Question    string
	Answers     []string
	MultiSelect bool
	Hours       int
}

type PollAnswer struct {
	ID    int
	Text  string
	Votes int
}

type PollState struct {
	Finalized bool
	Answers   []PollAnswer
}

// PollService posts and manages poll messages. FetchPoll and EndPoll return
// a NotFound error when the message is gone or carries no poll.
type PollService interface {
	CreatePoll(ctx context.Context, channelID string, spec PollSpec) (string, error)
	FetchPoll(ctx context.Context, channelID, messageID string) (PollState, error)
	EndPoll(ctx context.Context, channelID, messageID string) (PollState, error)
	DeleteMessage(ctx context.Context, channelID, messageID string) error
}

type EventSpec struct {
	Name        string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	ImageURL    string
	Reason      string
}

// EventScheduler creates guild scheduled events and returns their id.
type EventScheduler interface {
	CreateEvent(ctx context.Context, guildID string, spec EventSpec) (string, error)
}

// Scheduler runs named fire-once jobs.
type Scheduler interface {
	After(name string, delay time.Duration, fn func(ctx context.Context) error)
	Cancel(name string) bool
}

type EventStatus int

const (
	StatusUnknown EventStatus = iota
	StatusScheduled
	StatusActive
	StatusCompleted
	StatusCanceled
)

func (s EventStatus) String() string {
	switch s {
	case StatusScheduled:
		return "scheduled"
	case StatusActive:
		return "active"
	case StatusCompleted:
		return "completed"
	case StatusCanceled:
		return "canceled"
	}
	return "unknown"
}

// Event identifies a scheduled event in status notifications.
type Event struct {
	ID      string
	GuildID string
	Name    string
}

// IsMovieNight reports whether the event was created by the bot.
func (e Event) IsMovieNight() bool {
	return strings.HasPrefix(e.Name, EventMarker)
}

type Options struct {
	Location    string
	RatingDelay time.Duration // poll creation to finalization
	DeleteGrace time.Duration // before a closed poll message is deleted
	StartLead   time.Duration // now to event start
	Now         func() time.Time
	Intn        func(n int) int
}

func (o *Options) setDefaults() {
	if o.Location == "" {
		o.Location = defaultLocation
	}
	if o.RatingDelay <= 0 {
		o.RatingDelay = time.Minute
	}
	if o.DeleteGrace <= 0 {
		o.DeleteGrace = 5 * time.Second
	}
	if o.StartLead <= 0 {
		o.StartLead = 5 * time.Second
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Intn == nil {
		o.Intn = rand.IntN
	}
}

type Controller struct {
	repo    storage.Repository
	catalog Catalog
	polls   PollService
	events  EventScheduler
	jobs    Scheduler
	log     zerolog.Logger
	opts    Options
}

func New(repo storage.Repository, cat Catalog, polls PollService, events EventScheduler, jobs Scheduler, logger zerolog.Logger, opts Options) *Controller {
	opts.setDefaults()
	return &Controller{
		repo:    repo,
		catalog: cat,
		polls:   polls,
		events:  events,
		jobs:    jobs,
		log:     logger,
		opts:    opts,
	}
}

// deleteLater removes a message after the grace delay. Failures are logged.
func (c *Controller) deleteLater(channelID, messageID string) {
	c.jobs.After("delete:"+messageID, c.opts.DeleteGrace, func(ctx context.Context) error {
		if err := c.polls.DeleteMessage(ctx, channelID, messageID); err != nil {
			c.log.Warn().Err(err).Str("message", messageID).Msg("Failed to delete poll message")
			return err
		}
		return nil
	})
}
