package movienight

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filmklub/internal/storage"
)

func pendingFixture(t *testing.T) *harness {
	t.Helper()
	h := newHarness(t)
	h.seed(t, func(doc *storage.Document) {
		doc.Movies = append(doc.Movies, storage.Movie{MovieID: "tt1", MovieName: "Alien", SuggestedByUserID: "u7"})
		doc.PendingEvents["ev1"] = storage.PendingEvent{ChannelID: "c", GuildID: "g", MovieID: "tt1", MovieName: "Alien"}
	})
	return h
}

var movieNight = Event{ID: "ev1", GuildID: "g", Name: "Movie Night: Alien (1979)"}

func TestActiveTwiceCreatesOneNight(t *testing.T) {
	h := pendingFixture(t)
	ctx := context.Background()

	require.NoError(t, h.c.OnEventStatusChange(ctx, movieNight, StatusScheduled, StatusActive))
	require.NoError(t, h.c.OnEventStatusChange(ctx, movieNight, StatusScheduled, StatusActive))

	doc := h.doc(t)
	require.Len(t, doc.Nights, 1)
	night := doc.Nights[0]
	assert.Equal(t, "ev1", night.EventID)
	assert.Equal(t, "u7", night.SuggestedByUserID)
	assert.Equal(t, h.now.UnixMilli(), night.StartTime)
	assert.Empty(t, doc.PendingEvents)
	assert.False(t, doc.Movies[0].Watched)
}

func TestActiveToActiveIsIgnored(t *testing.T) {
	h := pendingFixture(t)
	require.NoError(t, h.c.OnEventStatusChange(context.Background(), movieNight, StatusActive, StatusActive))
	assert.Empty(t, h.doc(t).Nights)
	assert.Contains(t, h.doc(t).PendingEvents, "ev1")
}

func TestActiveThenCompleted(t *testing.T) {
	h := pendingFixture(t)
	ctx := context.Background()

	require.NoError(t, h.c.OnEventStatusChange(ctx, movieNight, StatusScheduled, StatusActive))
	require.NoError(t, h.c.OnEventStatusChange(ctx, movieNight, StatusActive, StatusCompleted))

	doc := h.doc(t)
	require.Len(t, doc.Nights, 1)
	assert.True(t, doc.Movies[0].Watched)
}

func TestCompletedWithoutActive(t *testing.T) {
	h := pendingFixture(t)

	require.NoError(t, h.c.OnEventStatusChange(context.Background(), movieNight, StatusScheduled, StatusCompleted))

	doc := h.doc(t)
	require.Len(t, doc.Nights, 1)
	assert.Equal(t, "Alien", doc.Nights[0].MovieName)
	assert.Empty(t, doc.PendingEvents)
	assert.True(t, doc.Movies[0].Watched)
}

func TestCompletedWithNothingRecorded(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.c.OnEventStatusChange(context.Background(), movieNight, StatusActive, StatusCompleted))
	assert.Empty(t, h.doc(t).Nights)
}

func TestCanceledPurges(t *testing.T) {
	h := pendingFixture(t)
	ctx := context.Background()
	require.NoError(t, h.c.OnEventStatusChange(ctx, movieNight, StatusScheduled, StatusActive))

	require.NoError(t, h.c.OnEventStatusChange(ctx, movieNight, StatusActive, StatusCanceled))
	doc := h.doc(t)
	assert.Empty(t, doc.Nights)
	assert.Empty(t, doc.PendingEvents)
}

func TestDeletedPurges(t *testing.T) {
	h := pendingFixture(t)
	require.NoError(t, h.c.OnEventDeleted(context.Background(), movieNight))
	assert.Empty(t, h.doc(t).PendingEvents)
}

func TestForeignEventsIgnored(t *testing.T) {
	h := pendingFixture(t)
	other := Event{ID: "ev1", GuildID: "g", Name: "Game night"}
	ctx := context.Background()

	require.NoError(t, h.c.OnEventStatusChange(ctx, other, StatusScheduled, StatusActive))
	require.NoError(t, h.c.OnEventStatusChange(ctx, other, StatusScheduled, StatusCanceled))
	require.NoError(t, h.c.OnEventDeleted(ctx, other))

	doc := h.doc(t)
	assert.Empty(t, doc.Nights)
	assert.Contains(t, doc.PendingEvents, "ev1")
}
