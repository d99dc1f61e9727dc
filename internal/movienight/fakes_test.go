package movienight

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"filmklub/internal/apperr"
	"filmklub/internal/catalog"
	"filmklub/internal/storage"
)

type fakeCatalog struct {
	titles map[string]*catalog.Title
	search []catalog.Title
	err    error
}

func (f *fakeCatalog) Title(_ context.Context, id string) (*catalog.Title, error) {
	if f.err != nil {
		return nil, f.err
	}
	t, ok := f.titles[id]
	if !ok {
		return nil, apperr.NotFound("catalog.title", "Movie not found.")
	}
	return t, nil
}

func (f *fakeCatalog) Search(context.Context, string) ([]catalog.Title, error) {
	return f.search, f.err
}

type createdPoll struct {
	channelID string
	spec      PollSpec
}

type fakePolls struct {
	mu      sync.Mutex
	nextID  int
	created []createdPoll
	states  map[string]PollState
	ended   []string
	deleted []string
	endErr  error
}

func newFakePolls() *fakePolls {
	return &fakePolls{states: map[string]PollState{}}
}

func (f *fakePolls) CreatePoll(_ context.Context, channelID string, spec PollSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := "msg" + string(rune('0'+f.nextID))
	f.created = append(f.created, createdPoll{channelID: channelID, spec: spec})
	answers := make([]PollAnswer, len(spec.Answers))
	for i, a := range spec.Answers {
		answers[i] = PollAnswer{ID: i + 1, Text: a}
	}
	f.states[id] = PollState{Answers: answers}
	return id, nil
}

func (f *fakePolls) FetchPoll(_ context.Context, _, messageID string) (PollState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.states[messageID]
	if !ok {
		return PollState{}, apperr.NotFound("poll.fetch", "message not found")
	}
	return s, nil
}

func (f *fakePolls) EndPoll(_ context.Context, _, messageID string) (PollState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.endErr != nil {
		return PollState{}, f.endErr
	}
	s := f.states[messageID]
	s.Finalized = true
	f.states[messageID] = s
	f.ended = append(f.ended, messageID)
	return s, nil
}

func (f *fakePolls) DeleteMessage(_ context.Context, _, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, messageID)
	delete(f.states, messageID)
	return nil
}

func (f *fakePolls) setVotes(messageID string, votes ...int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.states[messageID]
	for i := range s.Answers {
		if i < len(votes) {
			s.Answers[i].Votes = votes[i]
		}
	}
	f.states[messageID] = s
}

type fakeEvents struct {
	specs []EventSpec
	err   error
}

func (f *fakeEvents) CreateEvent(_ context.Context, _ string, spec EventSpec) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.specs = append(f.specs, spec)
	return "event" + string(rune('0'+len(f.specs))), nil
}

// fakeJobs records jobs and fires them on demand.
type fakeJobs struct {
	mu    sync.Mutex
	jobs  map[string]func(context.Context) error
	delay map[string]time.Duration
}

func newFakeJobs() *fakeJobs {
	return &fakeJobs{jobs: map[string]func(context.Context) error{}, delay: map[string]time.Duration{}}
}

func (f *fakeJobs) After(name string, d time.Duration, fn func(context.Context) error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[name] = fn
	f.delay[name] = d
}

func (f *fakeJobs) Cancel(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.jobs[name]
	delete(f.jobs, name)
	return ok
}

func (f *fakeJobs) has(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.jobs[name]
	return ok
}

func (f *fakeJobs) fire(t *testing.T, name string) error {
	t.Helper()
	f.mu.Lock()
	fn, ok := f.jobs[name]
	delete(f.jobs, name)
	f.mu.Unlock()
	require.True(t, ok, "job %s not scheduled", name)
	return fn(context.Background())
}

type harness struct {
	c       *Controller
	repo    *storage.Storage
	catalog *fakeCatalog
	polls   *fakePolls
	events  *fakeEvents
	jobs    *fakeJobs
	now     time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	repo, err := storage.New(filepath.Join(t.TempDir(), "movienight.json"), 0, zerolog.Nop())
	require.NoError(t, err)

	h := &harness{
		repo:    repo,
		catalog: &fakeCatalog{titles: map[string]*catalog.Title{}},
		polls:   newFakePolls(),
		events:  &fakeEvents{},
		jobs:    newFakeJobs(),
		now:     time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC),
	}
	h.c = New(repo, h.catalog, h.polls, h.events, h.jobs, zerolog.Nop(), Options{
		Now: func() time.Time { return h.now },
	})
	return h
}

func (h *harness) addTitle(id, name, kind string) *catalog.Title {
	t := &catalog.Title{ID: id, Type: kind, PrimaryTitle: name, StartYear: 1999, RuntimeSeconds: 8160}
	h.catalog.titles[id] = t
	return t
}

func (h *harness) seed(t *testing.T, fn func(doc *storage.Document)) {
	t.Helper()
	require.NoError(t, h.repo.Update(func(doc *storage.Document) error {
		fn(doc)
		return nil
	}))
}

func (h *harness) doc(t *testing.T) *storage.Document {
	t.Helper()
	var out *storage.Document
	require.NoError(t, h.repo.View(func(doc *storage.Document) error {
		out = doc
		return nil
	}))
	return out
}
