package discord

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	mn "filmklub/internal/movienight"
)

const maxEventImageSize = 10 << 20

// EventScheduler creates external guild scheduled events. The cover image
// is fetched and inlined as a data URI.
type EventScheduler struct {
	s      *discordgo.Session
	client *http.Client
	log    zerolog.Logger
}

var _ mn.EventScheduler = (*EventScheduler)(nil)

func NewEventScheduler(s *discordgo.Session, client *http.Client, logger zerolog.Logger) *EventScheduler {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &EventScheduler{s: s, client: client, log: logger}
}

func (e *EventScheduler) CreateEvent(ctx context.Context, guildID string, spec mn.EventSpec) (string, error) {
	start, end := spec.Start, spec.End
	params := &discordgo.GuildScheduledEventParams{
		Name:               spec.Name,
		Description:        spec.Description,
		ScheduledStartTime: &start,
		ScheduledEndTime:   &end,
		PrivacyLevel:       discordgo.GuildScheduledEventPrivacyLevelGuildOnly,
		EntityType:         discordgo.GuildScheduledEventEntityTypeExternal,
		EntityMetadata:     &discordgo.GuildScheduledEventEntityMetadata{Location: spec.Location},
	}
	if spec.ImageURL != "" {
		img, err := e.fetchImage(ctx, spec.ImageURL)
		if err != nil {
			e.log.Warn().Err(err).Str("url", spec.ImageURL).Msg("Creating event without cover image")
		} else {
			params.Image = img
		}
	}

	ev, err := e.s.GuildScheduledEventCreate(guildID, params, discordgo.WithContext(ctx))
	if err != nil {
		return "", classifyREST("event.create", "Failed to create the scheduled event.", err)
	}
	e.log.Info().Str("guild", guildID).Str("event", ev.ID).Str("reason", spec.Reason).Msg("Scheduled event created")
	return ev.ID, nil
}

// fetchImage downloads url and returns it as a data URI.
func (e *EventScheduler) fetchImage(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("bad response: %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxEventImageSize+1))
	if err != nil {
		return "", err
	}
	if len(data) > maxEventImageSize {
		return "", fmt.Errorf("image larger than %d bytes", maxEventImageSize)
	}
	return dataURI(resp.Header.Get("Content-Type"), data), nil
}

func dataURI(contentType string, data []byte) string {
	contentType, _, _ = strings.Cut(contentType, ";")
	contentType = strings.TrimSpace(contentType)
	if !strings.HasPrefix(contentType, "image/") {
		contentType = http.DetectContentType(data)
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// eventTracker remembers the last status seen per scheduled event, since
// update payloads only carry the new one.
type eventTracker struct {
	mu     sync.Mutex
	status map[string]mn.EventStatus
}

func newEventTracker() *eventTracker {
	return &eventTracker{status: make(map[string]mn.EventStatus)}
}

// transition records status and returns the previous one. changed is false
// when the status did not move.
func (t *eventTracker) transition(eventID string, status mn.EventStatus) (old mn.EventStatus, changed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	old = t.status[eventID]
	t.status[eventID] = status
	return old, old != status
}

func (t *eventTracker) forget(eventID string) {
	t.mu.Lock()
	delete(t.status, eventID)
	t.mu.Unlock()
}

func toEvent(ev *discordgo.GuildScheduledEvent) mn.Event {
	return mn.Event{ID: ev.ID, GuildID: ev.GuildID, Name: ev.Name}
}

func toStatus(s discordgo.GuildScheduledEventStatus) mn.EventStatus {
	switch s {
	case discordgo.GuildScheduledEventStatusScheduled:
		return mn.StatusScheduled
	case discordgo.GuildScheduledEventStatusActive:
		return mn.StatusActive
	case discordgo.GuildScheduledEventStatusCompleted:
		return mn.StatusCompleted
	case discordgo.GuildScheduledEventStatusCanceled:
		return mn.StatusCanceled
	}
	return mn.StatusUnknown
}
