package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryExpiry(t *testing.T) {
	c := NewInMemory()
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
	v, ok := c.Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestInMemoryNoTTLAndDelete(t *testing.T) {
	c := NewInMemory()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", 0))
	_, ok := c.Get(ctx, "k")
	assert.True(t, ok)

	require.NoError(t, c.Delete(ctx, "k"))
	_, ok = c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestJSONHelpers(t *testing.T) {
	type title struct {
		ID   string `json:"id"`
		Year int    `json:"year"`
	}
	c := NewInMemory()
	ctx := context.Background()

	require.NoError(t, SetJSON(ctx, c, "t", title{ID: "tt1", Year: 1999}, time.Minute))
	got, ok := GetJSON[title](ctx, c, "t")
	require.True(t, ok)
	assert.Equal(t, title{ID: "tt1", Year: 1999}, got)

	require.NoError(t, c.Set(ctx, "bad", "{", time.Minute))
	_, ok = GetJSON[title](ctx, c, "bad")
	assert.False(t, ok)
}
