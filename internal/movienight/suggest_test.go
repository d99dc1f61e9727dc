package movienight

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filmklub/internal/apperr"
	"filmklub/internal/catalog"
	"filmklub/internal/storage"
)

func TestParseIMDbID(t *testing.T) {
	id, ok := ParseIMDbID("https://www.imdb.com/title/tt0133093/?ref_=nv")
	assert.True(t, ok)
	assert.Equal(t, "tt0133093", id)

	id, ok = ParseIMDbID("tt0133093")
	assert.True(t, ok)
	assert.Equal(t, "tt0133093", id)

	_, ok = ParseIMDbID("https://example.com/title/tt1")
	assert.False(t, ok)
}

func TestSuggestDuplicateLeavesDocumentUnchanged(t *testing.T) {
	h := newHarness(t)
	h.addTitle("tt0133093", "The Matrix", catalog.TypeMovie)
	ctx := context.Background()

	title, err := h.c.Suggest(ctx, SuggestRequest{IMDbURL: "https://www.imdb.com/title/tt0133093/", UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "The Matrix", title.PrimaryTitle)

	before, err := os.ReadFile(h.repo.Path())
	require.NoError(t, err)

	_, err = h.c.Suggest(ctx, SuggestRequest{IMDbURL: "tt0133093", UserID: "u2"})
	assert.True(t, errors.Is(err, apperr.ErrDuplicate))
	assert.Equal(t, "This movie has already been suggested.", apperr.UserMessage(err))

	after, err := os.ReadFile(h.repo.Path())
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))

	doc := h.doc(t)
	require.Len(t, doc.Movies, 1)
	assert.Equal(t, "u1", doc.Movies[0].SuggestedByUserID)
}

func TestSuggestUnmarksWatched(t *testing.T) {
	h := newHarness(t)
	h.addTitle("tt1", "Alien", catalog.TypeMovie)
	h.seed(t, func(doc *storage.Document) {
		doc.Movies = append(doc.Movies, storage.Movie{MovieID: "tt1", MovieName: "Alien", Watched: true})
	})

	_, err := h.c.Suggest(context.Background(), SuggestRequest{IMDbURL: "tt1"})
	require.NoError(t, err)

	doc := h.doc(t)
	require.Len(t, doc.Movies, 1)
	assert.False(t, doc.Movies[0].Watched)
}

func TestSuggestInputErrors(t *testing.T) {
	h := newHarness(t)
	h.addTitle("tt2", "Some Show", "tvSeries")
	ctx := context.Background()

	_, err := h.c.Suggest(ctx, SuggestRequest{})
	assert.True(t, errors.Is(err, apperr.ErrAmbiguousInput))

	_, err = h.c.Suggest(ctx, SuggestRequest{IMDbURL: "tt1", Query: "alien"})
	assert.True(t, errors.Is(err, apperr.ErrAmbiguousInput))

	_, err = h.c.Suggest(ctx, SuggestRequest{IMDbURL: "https://imdb.example/title/1"})
	assert.True(t, errors.Is(err, apperr.ErrAmbiguousInput))
	assert.Equal(t, "Invalid IMDB URL.", apperr.UserMessage(err))

	_, err = h.c.Suggest(ctx, SuggestRequest{IMDbURL: "tt2"})
	assert.True(t, errors.Is(err, apperr.ErrWrongKind))

	_, err = h.c.Suggest(ctx, SuggestRequest{IMDbURL: "tt404"})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	_, err = h.c.Suggest(ctx, SuggestRequest{Query: "nothing"})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	assert.Empty(t, h.doc(t).Movies)
}

func TestSuggestBySearchPrefersMovie(t *testing.T) {
	h := newHarness(t)
	h.addTitle("tt0133093", "The Matrix", catalog.TypeMovie)
	h.catalog.search = []catalog.Title{
		{ID: "tt9", Type: "tvSeries", PrimaryTitle: "Matrix"},
		{ID: "tt0133093", Type: catalog.TypeMovie, PrimaryTitle: "The Matrix"},
	}

	title, err := h.c.Suggest(context.Background(), SuggestRequest{Query: "matrix"})
	require.NoError(t, err)
	assert.Equal(t, "tt0133093", title.ID)
}

func TestSuggestCatalogFailure(t *testing.T) {
	h := newHarness(t)
	h.catalog.err = apperr.External("catalog.title", "catalog unavailable", errors.New("502"))

	_, err := h.c.Suggest(context.Background(), SuggestRequest{IMDbURL: "tt1"})
	assert.True(t, errors.Is(err, apperr.ErrExternalService))
	assert.Empty(t, h.doc(t).Movies)
}
