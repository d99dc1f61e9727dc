package storage

import (
	"slices"
	"sort"
)

type Movie struct {
	MovieID           string `json:"movieId"`
	MovieName         string `json:"movieName"`
	Watched           bool   `json:"watched"`
	SuggestedByUserID string `json:"suggestedByUserId,omitempty"`
}

type Night struct {
	EventID             string   `json:"eventId"`
	MovieID             string   `json:"movieId"`
	MovieName           string   `json:"movieName"`
	ChannelID           string   `json:"channelId"`
	GuildID             string   `json:"guildId"`
	StartTime           int64    `json:"startTime"` // unix milliseconds
	SuggestedByUserID   string   `json:"suggestedByUserId,omitempty"`
	RatingPollMessageID string   `json:"ratingPollMessageId,omitempty"`
	RatingPollChannelID string   `json:"ratingPollChannelId,omitempty"`
	RatingScore         *float64 `json:"ratingScore,omitempty"`
	RatingVotes         *int     `json:"ratingVotes,omitempty"`
}

// Unrated reports whether the night still needs a rating. A poll that
// closed with zero votes counts as unrated.
func (n Night) Unrated() bool {
	return n.RatingScore == nil || n.RatingVotes == nil || *n.RatingVotes == 0
}

// Rated reports whether both score and vote count are recorded.
func (n Night) Rated() bool {
	return n.RatingScore != nil && n.RatingVotes != nil
}

type PendingEvent struct {
	ChannelID string `json:"channelId"`
	GuildID   string `json:"guildId"`
	MovieID   string `json:"movieId"`
	MovieName string `json:"movieName"`
}

type Document struct {
	Movies              []Movie                      `json:"movies"`
	Nights              []Night                      `json:"nights"`
	ActivePollID        string                       `json:"activePollId,omitempty"`
	ActivePollChannelID string                       `json:"activePollChannelId,omitempty"`
	PendingEvents       map[string]PendingEvent      `json:"pendingEvents"`
	EntranceSounds      map[string]map[string]string `json:"entranceSounds"` // guild -> user -> file
}

func (d *Document) normalize() {
	if d.Movies == nil {
		d.Movies = []Movie{}
	}
	if d.Nights == nil {
		d.Nights = []Night{}
	}
	if d.PendingEvents == nil {
		d.PendingEvents = map[string]PendingEvent{}
	}
	if d.EntranceSounds == nil {
		d.EntranceSounds = map[string]map[string]string{}
	}
}

// Clone returns a deep copy.
func (d *Document) Clone() *Document {
	out := &Document{
		Movies:              slices.Clone(d.Movies),
		Nights:              make([]Night, len(d.Nights)),
		ActivePollID:        d.ActivePollID,
		ActivePollChannelID: d.ActivePollChannelID,
		PendingEvents:       make(map[string]PendingEvent, len(d.PendingEvents)),
		EntranceSounds:      make(map[string]map[string]string, len(d.EntranceSounds)),
	}
	if out.Movies == nil {
		out.Movies = []Movie{}
	}
	for i, n := range d.Nights {
		if n.RatingScore != nil {
			v := *n.RatingScore
			n.RatingScore = &v
		}
		if n.RatingVotes != nil {
			v := *n.RatingVotes
			n.RatingVotes = &v
		}
		out.Nights[i] = n
	}
	for k, v := range d.PendingEvents {
		out.PendingEvents[k] = v
	}
	for g, users := range d.EntranceSounds {
		m := make(map[string]string, len(users))
		for u, f := range users {
			m[u] = f
		}
		out.EntranceSounds[g] = m
	}
	return out
}

// Movie returns the movie with the given catalog id.
func (d *Document) Movie(movieID string) (*Movie, bool) {
	for i := range d.Movies {
		if d.Movies[i].MovieID == movieID {
			return &d.Movies[i], true
		}
	}
	return nil, false
}

func (d *Document) UnwatchedMovies() []Movie {
	out := []Movie{}
	for _, m := range d.Movies {
		if !m.Watched {
			out = append(out, m)
		}
	}
	return out
}

// MovieByName prefers an unwatched movie and falls back to any movie with
// that name.
func (d *Document) MovieByName(name string) (*Movie, bool) {
	var fallback *Movie
	for i := range d.Movies {
		if d.Movies[i].MovieName != name {
			continue
		}
		if !d.Movies[i].Watched {
			return &d.Movies[i], true
		}
		if fallback == nil {
			fallback = &d.Movies[i]
		}
	}
	return fallback, fallback != nil
}

func (d *Document) MarkWatched(movieID string) bool {
	if m, ok := d.Movie(movieID); ok {
		m.Watched = true
		return true
	}
	return false
}

func (d *Document) NightByEvent(eventID string) (*Night, bool) {
	for i := range d.Nights {
		if d.Nights[i].EventID == eventID {
			return &d.Nights[i], true
		}
	}
	return nil, false
}

func (d *Document) NightByRatingMessage(messageID string) (*Night, bool) {
	if messageID == "" {
		return nil, false
	}
	for i := range d.Nights {
		if d.Nights[i].RatingPollMessageID == messageID {
			return &d.Nights[i], true
		}
	}
	return nil, false
}

// RemoveNights deletes every night for the event and reports how many went.
func (d *Document) RemoveNights(eventID string) int {
	before := len(d.Nights)
	d.Nights = slices.DeleteFunc(d.Nights, func(n Night) bool { return n.EventID == eventID })
	return before - len(d.Nights)
}

// RecentNights returns up to limit nights, newest first.
func (d *Document) RecentNights(limit int) []Night {
	out := slices.Clone(d.Nights)
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartTime > out[j].StartTime })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (d *Document) EntranceSound(guildID, userID string) (string, bool) {
	f, ok := d.EntranceSounds[guildID][userID]
	return f, ok && f != ""
}

func (d *Document) SetEntranceSound(guildID, userID, file string) {
	if d.EntranceSounds == nil {
		d.EntranceSounds = map[string]map[string]string{}
	}
	users, ok := d.EntranceSounds[guildID]
	if !ok {
		users = map[string]string{}
		d.EntranceSounds[guildID] = users
	}
	users[userID] = file
}

// RemoveEntranceSound clears the user's entrance sound and drops the guild
// entry once it is empty.
func (d *Document) RemoveEntranceSound(guildID, userID string) bool {
	users, ok := d.EntranceSounds[guildID]
	if !ok {
		return false
	}
	if _, ok := users[userID]; !ok {
		return false
	}
	delete(users, userID)
	if len(users) == 0 {
		delete(d.EntranceSounds, guildID)
	}
	return true
}
