package discovery

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBrowseCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := Browse(ctx, ""); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestBrowseExpiredDeadline(t *testing.T) {
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	if _, err := Browse(ctx, ""); err == nil {
		t.Fatalf("expected error for expired deadline")
	}
}
