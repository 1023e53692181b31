package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSlidingWindow(t *testing.T) {
	clock := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	sw := NewSlidingWindow(2, time.Minute)
	sw.now = func() time.Time { return clock }

	if !sw.Allow() || !sw.Allow() {
		t.Fatal("Expected first two requests to be allowed")
	}
	if sw.Allow() {
		t.Fatal("Expected third request to be denied")
	}
	if wait := sw.reserve(); wait != time.Minute {
		t.Errorf("Expected to wait a full minute, got %v", wait)
	}

	clock = clock.Add(30 * time.Second)
	if wait := sw.reserve(); wait != 30*time.Second {
		t.Errorf("Expected 30s wait, got %v", wait)
	}

	clock = clock.Add(30 * time.Second)
	if !sw.Allow() {
		t.Error("Expected request to be allowed once the window moved")
	}

	sw.Reset()
	if !sw.Allow() {
		t.Error("Expected request to be allowed after reset")
	}
}

func TestSlidingWindowWaitHonorsContext(t *testing.T) {
	sw := NewSlidingWindow(1, time.Hour)
	if err := sw.Wait(context.Background()); err != nil {
		t.Fatalf("Expected first wait to pass, got %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := sw.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

func TestNew(t *testing.T) {
	if _, ok := New(0).(Unlimited); !ok {
		t.Error("Expected unlimited limiter for zero rate")
	}
	if _, ok := New(60).(*SlidingWindow); !ok {
		t.Error("Expected sliding window for positive rate")
	}

	u := Unlimited{}
	for i := 0; i < 100; i++ {
		if !u.Allow() {
			t.Fatal("Unlimited must always allow")
		}
	}
}

func TestSlidingWindowUntilDoesNotReserve(t *testing.T) {
	clock := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	sw := NewSlidingWindow(1, time.Minute)
	sw.now = func() time.Time { return clock }

	if d := sw.Until(); d != 0 {
		t.Fatalf("Expected no wait on an empty window, got %v", d)
	}
	if d := sw.Until(); d != 0 {
		t.Fatalf("Until must not consume capacity, got %v", d)
	}
	if !sw.Allow() {
		t.Fatal("Expected request to be allowed")
	}

	clock = clock.Add(20 * time.Second)
	if d := sw.Until(); d != 40*time.Second {
		t.Errorf("Expected 40s until next request, got %v", d)
	}
	if (Unlimited{}).Until() != 0 {
		t.Error("Unlimited should never wait")
	}
}
