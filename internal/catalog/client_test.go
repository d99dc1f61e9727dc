package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filmklub/internal/apperr"
	"filmklub/pkg/cache"
	"filmklub/pkg/retrylimit"
)

func newTestClient(t *testing.T, h http.HandlerFunc, c cache.Cache) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	client := NewClient(Config{BaseURL: srv.URL, CacheTTL: time.Minute}, c, zerolog.Nop())
	retry := retrylimit.DefaultRetryConfig()
	retry.InitialDelay = time.Millisecond
	retry.RateLimitDelay = time.Millisecond
	retry.Jitter = false
	client.SetRetryConfig(retry)
	return client
}

func TestTitle(t *testing.T) {
	var hits atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/titles/tt0133093", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"tt0133093","type":"movie","primaryTitle":"The Matrix","startYear":1999,
"runtimeSeconds":8160,"rating":{"aggregateRating":8.7,"voteCount":2000000},
"directors":[{"displayName":"Lana Wachowski"},{"displayName":"Lilly Wachowski"}],
"primaryImage":{"url":"https://img/matrix.jpg"}}`))
	}, cache.NewInMemory())

	title, err := client.Title(context.Background(), "tt0133093")
	require.NoError(t, err)
	assert.Equal(t, "The Matrix", title.PrimaryTitle)
	assert.True(t, title.IsMovie())
	assert.Equal(t, "8.7/10 (2000000 votes)", title.RatingText())
	assert.Equal(t, "N/A", title.MetacriticText())
	assert.Equal(t, "Lana Wachowski, Lilly Wachowski", JoinPeople(title.Directors))
	assert.Equal(t, "https://img/matrix.jpg", title.PosterURL())

	_, err = client.Title(context.Background(), "tt0133093")
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load(), "second lookup served from cache")
}

func TestTitleNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"not found"}`, http.StatusNotFound)
	}, nil)

	_, err := client.Title(context.Background(), "tt0000000")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestTitleRetriesThenFailsAsExternal(t *testing.T) {
	var hits atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}, nil)

	_, err := client.Title(context.Background(), "tt1")
	assert.True(t, errors.Is(err, apperr.ErrExternalService))
	assert.Equal(t, int32(4), hits.Load())
}

func TestSearch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search/titles", r.URL.Path)
		assert.Equal(t, "the matrix", r.URL.Query().Get("query"))
		w.Write([]byte(`{"titles":[{"id":"tt1","type":"tvSeries","primaryTitle":"Matrix"},{"id":"tt0133093","type":"movie","primaryTitle":"The Matrix"}]}`))
	}, nil)

	titles, err := client.Search(context.Background(), "the matrix")
	require.NoError(t, err)
	require.Len(t, titles, 2)
	assert.Equal(t, "tvSeries", titles[0].Type)
}

func TestOnRequestHook(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"titles":[]}`))
	}, nil)

	var ops []string
	client.OnRequest(func(op string, err error) { ops = append(ops, op) })
	_, err := client.Search(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []string{"search"}, ops)
}
