package idempotency

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_MarkProcessed(t *testing.T) {
	ctx := context.Background()

	t.Run("second claim is refused", func(t *testing.T) {
		s := NewMemoryStore(0)
		defer s.Close()

		fresh, err := s.MarkProcessed(ctx, "mpesa:QFT1", time.Hour)
		require.NoError(t, err)
		assert.True(t, fresh)

		fresh, err = s.MarkProcessed(ctx, "mpesa:QFT1", time.Hour)
		require.NoError(t, err)
		assert.False(t, fresh)
	})

	t.Run("expired key can be claimed again", func(t *testing.T) {
		s := NewMemoryStore(0)
		defer s.Close()
		now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
		s.now = func() time.Time { return now }

		fresh, _ := s.MarkProcessed(ctx, "k", time.Minute)
		assert.True(t, fresh)

		now = now.Add(2 * time.Minute)
		fresh, _ = s.MarkProcessed(ctx, "k", time.Minute)
		assert.True(t, fresh)
	})

	t.Run("release frees the key", func(t *testing.T) {
		s := NewMemoryStore(0)
		defer s.Close()

		_, _ = s.MarkProcessed(ctx, "k", time.Hour)
		require.NoError(t, s.Release(ctx, "k"))
		fresh, _ := s.MarkProcessed(ctx, "k", time.Hour)
		assert.True(t, fresh)
	})

	t.Run("exactly one concurrent claimer wins", func(t *testing.T) {
		s := NewMemoryStore(0)
		defer s.Close()

		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if fresh, _ := s.MarkProcessed(ctx, "race", time.Hour); fresh {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
	})
}

func TestMemoryStore_Sweep(t *testing.T) {
	s := NewMemoryStore(0)
	defer s.Close()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	_, _ = s.MarkProcessed(context.Background(), "short", time.Second)
	_, _ = s.MarkProcessed(context.Background(), "long", time.Hour)

	now = now.Add(time.Minute)
	s.sweep()
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStore_CloseIsIdempotent(t *testing.T) {
	s := NewMemoryStore(time.Millisecond)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}
