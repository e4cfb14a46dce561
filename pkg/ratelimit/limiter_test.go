package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSlidingWindow(t *testing.T) {
	sw := NewSlidingWindow(3, 100*time.Millisecond)

	for i := 0; i < 3; i++ {
		if !sw.Allow() {
			t.Errorf("Request %d should be allowed", i+1)
		}
	}
	if sw.Allow() {
		t.Error("Fourth request should be denied")
	}

	time.Sleep(120 * time.Millisecond)
	if !sw.Allow() {
		t.Error("Request should be allowed once the window slides")
	}

	sw.Reset()
	for i := 0; i < 3; i++ {
		if !sw.Allow() {
			t.Errorf("Request %d should be allowed after reset", i+1)
		}
	}
}

func TestSlidingWindowWait(t *testing.T) {
	sw := NewSlidingWindow(1, 50*time.Millisecond)
	sw.Allow()

	start := time.Now()
	if err := sw.Wait(context.Background()); err != nil {
		t.Fatalf("Wait returned %v", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("Wait returned too early: %v", elapsed)
	}
}

func TestSlidingWindowWaitCancelled(t *testing.T) {
	sw := NewSlidingWindow(1, time.Hour)
	sw.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := sw.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

func TestPerMinute(t *testing.T) {
	if _, ok := PerMinute(0).(Unlimited); !ok {
		t.Error("Zero rate should be unlimited")
	}
	if _, ok := PerMinute(30).(*SlidingWindow); !ok {
		t.Error("Positive rate should use a sliding window")
	}
}
