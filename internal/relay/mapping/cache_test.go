package mapping

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lueurxax/telegram-relay-bot/internal/core/domain"
)

func key(id int) domain.SourceKey {
	return domain.SourceKey{ChannelID: -1001, MessageID: id}
}

func TestCache_EvictsOldestInserted(t *testing.T) {
	c := New(DefaultCapacity)

	for i := 1; i <= 4; i++ {
		c.Put(key(i), -2001, 100+i)
	}

	require.Equal(t, []domain.SourceKey{key(2), key(3), key(4)}, c.Keys())

	_, ok := c.Get(key(1))
	require.False(t, ok)

	dests, ok := c.Get(key(4))
	require.True(t, ok)
	require.Equal(t, Destinations{-2001: 104}, dests)
}

func TestCache_ExistingKeyKeepsPosition(t *testing.T) {
	c := New(DefaultCapacity)

	c.Put(key(1), -2001, 11)
	c.Put(key(2), -2001, 12)
	c.Put(key(3), -2001, 13)

	// Re-putting K1 adds a destination but must not refresh it.
	c.Put(key(1), -2002, 21)

	dests, ok := c.Get(key(1))
	require.True(t, ok)
	require.Equal(t, Destinations{-2001: 11, -2002: 21}, dests)

	// Reading K1 must not refresh it either.
	c.Put(key(4), -2001, 14)

	_, ok = c.Get(key(1))
	require.False(t, ok)
	require.Equal(t, 3, c.Len())
}

func TestCache_Remove(t *testing.T) {
	c := New(DefaultCapacity)

	c.Put(key(1), -2001, 11)
	c.Put(key(2), -2001, 12)
	c.Remove(key(1))
	c.Remove(key(42))

	require.Equal(t, []domain.SourceKey{key(2)}, c.Keys())

	c.Put(key(3), -2001, 13)
	c.Put(key(4), -2001, 14)
	require.Equal(t, []domain.SourceKey{key(2), key(3), key(4)}, c.Keys())
}

func TestCache_GetReturnsCopy(t *testing.T) {
	c := New(DefaultCapacity)
	c.Put(key(1), -2001, 11)

	dests, _ := c.Get(key(1))
	dests[-2001] = 999

	again, _ := c.Get(key(1))
	require.Equal(t, 11, again[-2001])
}

func TestCache_Forget(t *testing.T) {
	c := New(DefaultCapacity)
	c.Put(key(1), -2001, 11)
	c.Put(key(1), -2002, 12)

	c.Forget(key(1), -2001)

	dests, ok := c.Get(key(1))
	require.True(t, ok)
	require.Equal(t, Destinations{-2002: 12}, dests)
}

func TestCache_EvictHook(t *testing.T) {
	var evicted []domain.SourceKey

	c := New(2, WithEvictHook(func(k domain.SourceKey) {
		evicted = append(evicted, k)
	}))

	c.Put(key(1), -2001, 1)
	c.Put(key(2), -2001, 2)
	c.Put(key(3), -2001, 3)

	require.Equal(t, []domain.SourceKey{key(1)}, evicted)
}

func TestCache_BoundHoldsForRandomSequences(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for run := 0; run < 50; run++ {
		c := New(DefaultCapacity)

		var inserted []domain.SourceKey

		seen := map[domain.SourceKey]bool{}

		for i := 0; i < 40; i++ {
			k := key(rng.Intn(8))
			c.Put(k, int64(-2000-rng.Intn(3)), i)

			if !seen[k] {
				inserted = append(inserted, k)
				seen[k] = true
			}

			if len(inserted) > DefaultCapacity {
				delete(seen, inserted[0])
				inserted = inserted[1:]
			}

			require.LessOrEqual(t, c.Len(), DefaultCapacity)
			require.Equal(t, inserted, c.Keys())
		}
	}
}
