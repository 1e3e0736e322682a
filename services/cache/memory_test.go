package cachesvc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cached struct {
	Name  string
	Total string
}

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()

	t.Run("miss", func(t *testing.T) {
		c := NewMemoryCache(0)
		var dst cached
		found, _, err := c.Get(ctx, "k", "f", &dst)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("round trip per field", func(t *testing.T) {
		c := NewMemoryCache(0)
		require.NoError(t, c.Set(ctx, "k", "a", cached{Name: "a", Total: "1.50"}, 0))
		require.NoError(t, c.Set(ctx, "k", "b", cached{Name: "b"}, 0))

		var dst cached
		found, _, err := c.Get(ctx, "k", "a", &dst)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, cached{Name: "a", Total: "1.50"}, dst)

		found, _, err = c.Get(ctx, "k", "c", &dst)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("invalidate drops every field of the key", func(t *testing.T) {
		c := NewMemoryCache(0)
		require.NoError(t, c.Set(ctx, "k1", "a", cached{}, 0))
		require.NoError(t, c.Set(ctx, "k1", "b", cached{}, 0))
		require.NoError(t, c.Set(ctx, "k2", "a", cached{}, 0))

		require.NoError(t, c.Invalidate(ctx, "k1", "unknown"))
		assert.Equal(t, 1, c.Len())
		found, _, _ := c.Get(ctx, "k1", "b", &cached{})
		assert.False(t, found)
		found, _, _ = c.Get(ctx, "k2", "a", &cached{})
		assert.True(t, found)
	})

	t.Run("expires after ttl", func(t *testing.T) {
		now := time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC)
		c := NewMemoryCache(time.Minute)
		c.now = func() time.Time { return now }
		require.NoError(t, c.Set(ctx, "k", "a", cached{}, 0))

		now = now.Add(59 * time.Second)
		found, _, _ := c.Get(ctx, "k", "a", &cached{})
		assert.True(t, found)

		now = now.Add(time.Second)
		found, _, _ = c.Get(ctx, "k", "a", &cached{})
		assert.False(t, found)
		assert.Equal(t, 0, c.Len())
	})

	t.Run("stored values are detached", func(t *testing.T) {
		c := NewMemoryCache(0)
		v := cached{Name: "before"}
		require.NoError(t, c.Set(ctx, "k", "a", v, 0))
		v.Name = "after"

		var dst cached
		_, _, _ = c.Get(ctx, "k", "a", &dst)
		assert.Equal(t, "before", dst.Name)
	})

	t.Run("set computed before an invalidate is dropped", func(t *testing.T) {
		c := NewMemoryCache(0)
		found, gen, err := c.Get(ctx, "k", "a", &cached{})
		require.NoError(t, err)
		require.False(t, found)

		// a write lands while the value is being computed
		require.NoError(t, c.Invalidate(ctx, "k"))
		require.NoError(t, c.Set(ctx, "k", "a", cached{Name: "stale"}, gen))
		found, _, _ = c.Get(ctx, "k", "a", &cached{})
		assert.False(t, found)
		assert.Equal(t, 0, c.Len())

		// the next reader sees the new generation
		_, gen2, err := c.Get(ctx, "k", "a", &cached{})
		require.NoError(t, err)
		assert.Equal(t, gen+1, gen2)
		require.NoError(t, c.Set(ctx, "k", "a", cached{Name: "fresh"}, gen2))
		var dst cached
		found, _, _ = c.Get(ctx, "k", "a", &dst)
		assert.True(t, found)
		assert.Equal(t, "fresh", dst.Name)
	})
}
