package movienight

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filmklub/internal/apperr"
	"filmklub/internal/catalog"
	"filmklub/internal/storage"
)

func seedMovies(t *testing.T, h *harness, n int) []string {
	t.Helper()
	names := make([]string, n)
	h.seed(t, func(doc *storage.Document) {
		for i := 0; i < n; i++ {
			names[i] = fmt.Sprintf("Movie %02d", i)
			doc.Movies = append(doc.Movies, storage.Movie{MovieID: fmt.Sprintf("tt%02d", i), MovieName: names[i]})
		}
		doc.Movies = append(doc.Movies, storage.Movie{MovieID: "ttw", MovieName: "Watched", Watched: true})
	})
	return names
}

func TestOpenVoteEmpty(t *testing.T) {
	h := newHarness(t)
	_, _, err := h.c.OpenVote(context.Background(), "c")
	assert.True(t, errors.Is(err, apperr.ErrEmpty))
	assert.Empty(t, h.polls.created)
}

func TestOpenVoteSmallSetIsExact(t *testing.T) {
	h := newHarness(t)
	names := seedMovies(t, h, 4)

	msgID, candidates, err := h.c.OpenVote(context.Background(), "chan")
	require.NoError(t, err)
	require.Len(t, h.polls.created, 1)

	poll := h.polls.created[0]
	assert.ElementsMatch(t, names, poll.spec.Answers)
	assert.Len(t, candidates, 4)
	assert.True(t, poll.spec.MultiSelect)
	assert.Equal(t, 1, poll.spec.Hours)
	assert.Equal(t, "What movie should we watch?", poll.spec.Question)

	doc := h.doc(t)
	assert.Equal(t, msgID, doc.ActivePollID)
	assert.Equal(t, "chan", doc.ActivePollChannelID)
}

func TestOpenVoteCapsAtTen(t *testing.T) {
	h := newHarness(t)
	seedMovies(t, h, 25)

	_, candidates, err := h.c.OpenVote(context.Background(), "chan")
	require.NoError(t, err)
	assert.Len(t, candidates, 10)

	seen := map[string]bool{}
	for _, m := range candidates {
		assert.False(t, seen[m.MovieID])
		assert.False(t, m.Watched)
		seen[m.MovieID] = true
	}
}

func TestCandidatesUniformSubset(t *testing.T) {
	doc := &storage.Document{}
	for i := 0; i < 12; i++ {
		doc.Movies = append(doc.Movies, storage.Movie{MovieID: fmt.Sprint(i)})
	}

	const runs = 12000
	counts := map[string]int{}
	for i := 0; i < runs; i++ {
		for _, m := range Candidates(doc, defaultIntn()) {
			counts[m.MovieID]++
		}
	}

	// each movie lands in the subset with probability 10/12
	want := float64(runs) * 10 / 12
	for id, n := range counts {
		assert.InDelta(t, want, float64(n), want*0.03, "movie %s", id)
	}
	assert.Len(t, counts, 12)
}

func TestShuffleIsUnbiased(t *testing.T) {
	// every permutation of 3 elements should come up about equally often
	const runs = 60000
	counts := map[string]int{}
	for i := 0; i < runs; i++ {
		ms := []storage.Movie{{MovieID: "a"}, {MovieID: "b"}, {MovieID: "c"}}
		Shuffle(ms, defaultIntn())
		counts[ms[0].MovieID+ms[1].MovieID+ms[2].MovieID]++
	}
	require.Len(t, counts, 6)
	for perm, n := range counts {
		assert.Less(t, math.Abs(float64(n)-runs/6), runs/6*0.05, perm)
	}
}

func TestWinnerTieGoesToFirst(t *testing.T) {
	answers := []PollAnswer{
		{ID: 1, Text: "A", Votes: 1},
		{ID: 2, Text: "B", Votes: 3},
		{ID: 3, Text: "C", Votes: 3},
	}
	for i := 0; i < 5; i++ {
		w, ok := Winner(answers)
		require.True(t, ok)
		assert.Equal(t, "B", w.Text)
	}

	w, _ := Winner([]PollAnswer{{Text: "X"}, {Text: "Y"}})
	assert.Equal(t, "X", w.Text)

	_, ok := Winner(nil)
	assert.False(t, ok)
}

func TestTruncatePlot(t *testing.T) {
	plot := strings.Repeat("a", 480) + " " + strings.Repeat("b", 119)
	require.Len(t, plot, 600)

	got := TruncatePlot(plot)
	assert.Equal(t, strings.Repeat("a", 480)+"...", got)
	assert.LessOrEqual(t, len(strings.TrimSuffix(got, "...")), 500)

	assert.Equal(t, "short plot", TruncatePlot("short plot"))

	noSpace := strings.Repeat("x", 600)
	assert.Equal(t, strings.Repeat("x", 500)+"...", TruncatePlot(noSpace))
}

func startFixture(t *testing.T) (*harness, string) {
	t.Helper()
	h := newHarness(t)
	title := h.addTitle("tt0133093", "The Matrix", catalog.TypeMovie)
	title.Plot = "A hacker learns the truth."
	title.Genres = []string{"Action", "Sci-Fi"}
	title.PrimaryImage = &catalog.Image{URL: "https://img/matrix.jpg"}
	h.addTitle("tt1", "Alien", catalog.TypeMovie)

	h.seed(t, func(doc *storage.Document) {
		doc.Movies = append(doc.Movies,
			storage.Movie{MovieID: "tt0133093", MovieName: "The Matrix", SuggestedByUserID: "u1"},
			storage.Movie{MovieID: "tt1", MovieName: "Alien"},
		)
	})

	h.c.opts.Intn = func(int) int { return 0 }
	msgID, _, err := h.c.OpenVote(context.Background(), "vote-chan")
	require.NoError(t, err)
	return h, msgID
}

func TestStartSchedulesEvent(t *testing.T) {
	h, msgID := startFixture(t)
	answers := h.polls.states[msgID].Answers
	votes := make([]int, len(answers))
	for i, a := range answers {
		if a.Text == "The Matrix" {
			votes[i] = 3
		}
	}
	h.polls.setVotes(msgID, votes...)

	sched, err := h.c.Start(context.Background(), "guild", "cmd-chan")
	require.NoError(t, err)

	assert.Equal(t, []string{msgID}, h.polls.ended)
	require.Len(t, h.events.specs, 1)
	spec := h.events.specs[0]
	assert.Equal(t, "Movie Night: The Matrix (1999)", spec.Name)
	assert.Equal(t, "Dalles Filmklub", spec.Location)
	assert.Equal(t, h.now.Add(5*time.Second), spec.Start)
	assert.Equal(t, spec.Start.Add(8160*time.Second), spec.End)
	assert.Equal(t, "https://img/matrix.jpg", spec.ImageURL)
	assert.Contains(t, spec.Description, "*A hacker learns the truth.*")
	assert.Contains(t, spec.Description, "**Genres:** Action, Sci-Fi")
	assert.Contains(t, spec.Description, "**Duration:** 136 minutes")
	assert.Equal(t, "event1", sched.EventID)

	doc := h.doc(t)
	assert.Empty(t, doc.ActivePollID)
	pending, ok := doc.PendingEvents["event1"]
	require.True(t, ok)
	assert.Equal(t, storage.PendingEvent{ChannelID: "cmd-chan", GuildID: "guild", MovieID: "tt0133093", MovieName: "The Matrix"}, pending)

	require.True(t, h.jobs.has("delete:"+msgID))
	assert.Equal(t, 5*time.Second, h.jobs.delay["delete:"+msgID])
	require.NoError(t, h.jobs.fire(t, "delete:"+msgID))
	assert.Equal(t, []string{msgID}, h.polls.deleted)
}

func TestStartWithoutRuntimeUsesTwoHours(t *testing.T) {
	h, _ := startFixture(t)
	h.catalog.titles["tt0133093"].RuntimeSeconds = 0
	h.catalog.titles["tt1"].RuntimeSeconds = 0

	_, err := h.c.Start(context.Background(), "guild", "cmd-chan")
	require.NoError(t, err)
	spec := h.events.specs[0]
	assert.Equal(t, spec.Start.Add(2*time.Hour), spec.End)
}

func TestStartWithoutPoll(t *testing.T) {
	h := newHarness(t)
	_, err := h.c.Start(context.Background(), "guild", "chan")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestStartFinalizedPoll(t *testing.T) {
	h, msgID := startFixture(t)
	_, err := h.polls.EndPoll(context.Background(), "", msgID)
	require.NoError(t, err)
	h.polls.ended = nil

	_, err = h.c.Start(context.Background(), "guild", "chan")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	assert.Empty(t, h.polls.ended)
	assert.Empty(t, h.events.specs)
}

func TestStartMissingPollMessage(t *testing.T) {
	h, msgID := startFixture(t)
	require.NoError(t, h.polls.DeleteMessage(context.Background(), "", msgID))

	_, err := h.c.Start(context.Background(), "guild", "chan")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestStartCatalogFailureLeavesPollClosed(t *testing.T) {
	h, msgID := startFixture(t)
	h.catalog.err = apperr.External("catalog.title", "catalog unavailable", errors.New("502"))

	_, err := h.c.Start(context.Background(), "guild", "chan")
	assert.True(t, errors.Is(err, apperr.ErrExternalService))
	assert.Equal(t, []string{msgID}, h.polls.ended)
	assert.Empty(t, h.events.specs)
	assert.Empty(t, h.doc(t).PendingEvents)
}

func TestStartEventFailure(t *testing.T) {
	h, _ := startFixture(t)
	h.events.err = errors.New("missing permissions")

	_, err := h.c.Start(context.Background(), "guild", "chan")
	assert.True(t, errors.Is(err, apperr.ErrExternalService))
	assert.Empty(t, h.doc(t).PendingEvents)
}

func defaultIntn() func(int) int {
	o := Options{}
	o.setDefaults()
	return o.Intn
}
