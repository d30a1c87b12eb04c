package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPerMinute(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		perMinute  float64
		wantBurst  float64
		wantRefill float64
	}{
		{"one per second", 60, 2, 1},
		{"default probe budget", 240, 8, 4},
		{"slow budget keeps one token", 6, 1, 0.1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			l := NewPerMinute(tt.perMinute)
			assert.InDelta(t, tt.wantBurst, l.maxTokens, 1e-9)
			assert.InDelta(t, tt.wantRefill, l.refillRate, 1e-9)
			assert.True(t, l.IsFull(), "new limiter starts full")
		})
	}
}

func TestAllow(t *testing.T) {
	t.Parallel()
	t.Run("burst then deny", func(t *testing.T) {
		t.Parallel()
		l := New(3, 0)
		for i := range 3 {
			assert.True(t, l.Allow(), "attempt %d", i+1)
		}
		assert.False(t, l.Allow())
		assert.InDelta(t, 0, l.Available(), 1e-9)
	})

	t.Run("refills over time", func(t *testing.T) {
		t.Parallel()
		l := New(1, 100)
		require.True(t, l.Allow())
		time.Sleep(30 * time.Millisecond)
		assert.True(t, l.Allow())
	})

	t.Run("never exceeds capacity", func(t *testing.T) {
		t.Parallel()
		l := New(2, 1000)
		time.Sleep(10 * time.Millisecond)
		assert.InDelta(t, 2, l.Available(), 1e-9)
	})
}

func TestWait(t *testing.T) {
	t.Parallel()
	t.Run("token available", func(t *testing.T) {
		t.Parallel()
		l := New(1, 0)
		require.NoError(t, l.Wait(context.Background()))
	})

	t.Run("waits for refill", func(t *testing.T) {
		t.Parallel()
		l := New(1, 50) // one token every 20ms
		require.True(t, l.Allow())

		start := time.Now()
		require.NoError(t, l.Wait(context.Background()))
		assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
	})

	t.Run("canceled while waiting", func(t *testing.T) {
		t.Parallel()
		l := New(0, 0.1)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, l.Wait(ctx), context.DeadlineExceeded)
	})

	t.Run("no refill", func(t *testing.T) {
		t.Parallel()
		l := New(0, 0)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, l.Wait(ctx), context.DeadlineExceeded)
	})
}

func TestIsFullAndReset(t *testing.T) {
	t.Parallel()
	l := New(4, 0)
	assert.True(t, l.IsFull())

	l.Allow()
	l.Allow()
	assert.False(t, l.IsFull())

	l.Reset()
	assert.True(t, l.IsFull())
	assert.InDelta(t, 4, l.Available(), 1e-9)
}

func TestAllow_Concurrent(t *testing.T) {
	t.Parallel()
	l := New(100, 0)

	var allowed atomic.Int64
	var wg sync.WaitGroup
	for range 50 {
		wg.Go(func() {
			for range 4 {
				if l.Allow() {
					allowed.Add(1)
				}
			}
		})
	}
	wg.Wait()

	assert.Equal(t, int64(100), allowed.Load())
}
