package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shwanortho/site/internal/locale"
)

const (
	TableContent       = "content"
	TableGalleryImages = "gallery_images"

	ChangeInsert = "INSERT"
	ChangeUpdate = "UPDATE"
	ChangeDelete = "DELETE"
)

// subscriptionBuffer bounds undelivered changes per subscriber. Changes are reload hints,
// so a full buffer already guarantees the subscriber will reload.
const subscriptionBuffer = 16

// Change is the payload delivered to subscribers. It is a hint to reload, not a diff.
type Change struct {
	Table   string        `json:"table"`
	Type    string        `json:"type"`
	Locale  locale.Locale `json:"locale,omitempty"`
	Section string        `json:"section,omitempty"`
	CaseID  int           `json:"case_id,omitempty"`
	At      time.Time     `json:"at"`
}

// Hub fans changes out to subscribers. Backends publish into it from whatever feed they have.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]*Subscription
	closed bool
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]*Subscription)}
}

// Subscription is a registered change listener. It is released when the context given to
// Subscribe ends or when Close is called, whichever comes first.
type Subscription struct {
	id     string
	hub    *Hub
	fn     func(Change)
	events chan Change
	done   chan struct{}
	once   sync.Once
}

// Subscribe registers fn. fn runs on the subscription's own goroutine, one change at a time.
func (h *Hub) Subscribe(ctx context.Context, fn func(Change)) (*Subscription, error) {
	sub := &Subscription{
		id:     uuid.NewString(),
		hub:    h,
		fn:     fn,
		events: make(chan Change, subscriptionBuffer),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrSubscriptionClosed
	}
	h.subs[sub.id] = sub
	h.mu.Unlock()

	go sub.run(ctx)
	return sub, nil
}

// Publish delivers c to every subscriber without blocking the writer.
func (h *Hub) Publish(c Change) {
	if c.At.IsZero() {
		c.At = time.Now().UTC()
	}

	h.mu.Lock()
	subs := make([]*Subscription, 0, len(h.subs))
	for _, sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub.events <- c:
		default:
		}
	}
}

// Len returns the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close releases every subscription and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	subs := make([]*Subscription, 0, len(h.subs))
	for _, sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	delete(h.subs, id)
	h.mu.Unlock()
}

func (s *Subscription) run(ctx context.Context) {
	for {
		select {
		case c := <-s.events:
			s.fn(c)
		case <-ctx.Done():
			s.Close()
			return
		case <-s.done:
			return
		}
	}
}

// ID identifies the subscription in logs.
func (s *Subscription) ID() string {
	return s.id
}

// Done is closed once the subscription has been released.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Close releases the subscription. Safe to call more than once.
func (s *Subscription) Close() error {
	s.once.Do(func() {
		s.hub.remove(s.id)
		close(s.done)
	})
	return nil
}
