package statestore

import (
	"context"
	"testing"
	"time"
)

func TestMemoryTrackerConsumeOnce(t *testing.T) {
	ctx := context.Background()
	tracker := NewMemoryTracker(time.Minute)

	if err := tracker.Save(ctx, "nonce-1"); err != nil {
		t.Fatal(err)
	}

	ok, err := tracker.Consume(ctx, "nonce-1")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected first consume to succeed")
	}

	ok, err = tracker.Consume(ctx, "nonce-1")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected second consume to fail")
	}
}

func TestMemoryTrackerUnknownNonce(t *testing.T) {
	tracker := NewMemoryTracker(time.Minute)
	ok, err := tracker.Consume(context.Background(), "never-saved")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected unknown nonce to fail")
	}
}

func TestMemoryTrackerExpiry(t *testing.T) {
	ctx := context.Background()
	tracker := NewMemoryTracker(time.Minute)

	now := time.Now()
	tracker.now = func() time.Time { return now }

	if err := tracker.Save(ctx, "nonce-1"); err != nil {
		t.Fatal(err)
	}

	tracker.now = func() time.Time { return now.Add(2 * time.Minute) }
	ok, err := tracker.Consume(ctx, "nonce-1")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected expired nonce to fail")
	}
}
