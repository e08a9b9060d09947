package ratelimit

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestTokenBucket(t *testing.T) {
	start := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)

	t.Run("Burst", func(t *testing.T) {
		bucket := newTokenBucketAt(3, 1.0, start)
		for i := 0; i < 3; i++ {
			if !bucket.AllowAt(start) {
				t.Fatalf("Expected request %d to be allowed", i+1)
			}
		}
		if bucket.AllowAt(start) {
			t.Error("Expected empty bucket to reject")
		}
	})

	t.Run("Refill", func(t *testing.T) {
		bucket := newTokenBucketAt(2, 2.0, start)
		bucket.AllowAt(start)
		bucket.AllowAt(start)

		if got := bucket.Tokens(start.Add(250 * time.Millisecond)); got != 0.5 {
			t.Errorf("Expected 0.5 tokens, got %f", got)
		}
		if !bucket.AllowAt(start.Add(500 * time.Millisecond)) {
			t.Error("Expected a token after 500ms")
		}
		// Capacity caps the refill.
		if got := bucket.Tokens(start.Add(time.Hour)); got != 2 {
			t.Errorf("Expected full bucket, got %f", got)
		}
	})

	t.Run("RetryAfter", func(t *testing.T) {
		bucket := newTokenBucketAt(1, 0.5, start)
		if d := bucket.RetryAfter(start); d != 0 {
			t.Errorf("Expected no wait, got %v", d)
		}
		bucket.AllowAt(start)
		if d := bucket.RetryAfter(start); d != 2*time.Second {
			t.Errorf("Expected 2s wait, got %v", d)
		}
		if d := bucket.RetryAfter(start.Add(time.Second)); d != time.Second {
			t.Errorf("Expected 1s wait, got %v", d)
		}
	})

	t.Run("Refund", func(t *testing.T) {
		bucket := newTokenBucketAt(1, 0, start)
		bucket.AllowAt(start)
		bucket.refund()
		bucket.refund()
		if got := bucket.Tokens(start); got != 1 {
			t.Errorf("Expected refund capped at capacity, got %f", got)
		}
	})

	t.Run("Concurrent", func(t *testing.T) {
		bucket := NewTokenBucket(50, 0)
		var allowed atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 100; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if bucket.Allow() {
					allowed.Add(1)
				}
			}()
		}
		wg.Wait()
		if allowed.Load() != 50 {
			t.Errorf("Expected exactly 50 allowed, got %d", allowed.Load())
		}
	})
}
