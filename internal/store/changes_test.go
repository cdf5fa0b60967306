package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestHubDeliversChanges(t *testing.T) {
	hub := NewHub()
	received := make(chan Change, 1)

	sub, err := hub.Subscribe(context.Background(), func(c Change) { received <- c })
	if err != nil {
		t.Fatalf("Subscribe returned error: %v", err)
	}
	defer sub.Close()

	hub.Publish(Change{Table: TableContent, Type: ChangeUpdate, Locale: "en", Section: "faq"})

	select {
	case c := <-received:
		if c.Section != "faq" || c.At.IsZero() {
			t.Fatalf("unexpected change %#v", c)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for change")
	}
}

func TestSubscriptionReleasedWhenContextEnds(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())

	sub, err := hub.Subscribe(ctx, func(Change) {})
	if err != nil {
		t.Fatalf("Subscribe returned error: %v", err)
	}
	if hub.Len() != 1 {
		t.Fatalf("expected 1 subscription, got %d", hub.Len())
	}

	cancel()

	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatal("subscription not released after cancel")
	}
	if hub.Len() != 0 {
		t.Fatalf("expected 0 subscriptions, got %d", hub.Len())
	}
}

func TestSubscriptionCloseIsIdempotent(t *testing.T) {
	hub := NewHub()
	sub, err := hub.Subscribe(context.Background(), func(Change) {})
	if err != nil {
		t.Fatalf("Subscribe returned error: %v", err)
	}

	if err := sub.Close(); err != nil {
		t.Fatalf("first Close returned error: %v", err)
	}
	if err := sub.Close(); err != nil {
		t.Fatalf("second Close returned error: %v", err)
	}
	if hub.Len() != 0 {
		t.Fatalf("expected 0 subscriptions, got %d", hub.Len())
	}
}

func TestClosedHubRejectsSubscribers(t *testing.T) {
	hub := NewHub()
	sub, _ := hub.Subscribe(context.Background(), func(Change) {})
	hub.Close()

	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatal("hub close should release subscribers")
	}

	if _, err := hub.Subscribe(context.Background(), func(Change) {}); !errors.Is(err, ErrSubscriptionClosed) {
		t.Fatalf("expected ErrSubscriptionClosed, got %v", err)
	}
}

func TestWrapKeepsDomainErrors(t *testing.T) {
	if err := Wrap("upsert", ErrVersionConflict); !errors.Is(err, ErrVersionConflict) || IsStoreError(err) {
		t.Fatalf("version conflict should pass through, got %v", err)
	}
	err := Wrap("get", errors.New("connection refused"))
	if !IsStoreError(err) {
		t.Fatalf("expected StoreError, got %v", err)
	}
	if Wrap("get", nil) != nil {
		t.Fatal("Wrap(nil) should be nil")
	}
}

func TestGalleryImageRowResolvedURL(t *testing.T) {
	row := GalleryImageRow{CaseID: 2, ImageType: ImageAfter, ImageNumber: 3}
	if got := row.ResolvedURL(); got != "/images/gallery/case2/after-3.jpg" {
		t.Fatalf("unexpected conventional path %q", got)
	}
	stored := "https://cdn.example.com/x.jpg"
	row.ImageURL = &stored
	if got := row.ResolvedURL(); got != stored {
		t.Fatalf("expected stored url, got %q", got)
	}
}
