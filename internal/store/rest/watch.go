package rest

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/shwanortho/site/internal/locale"
	"github.com/shwanortho/site/internal/store"
)

// Subscribe registers fn for changes. Writes made through this client are delivered at once,
// writes made elsewhere are picked up by a poller started with the first subscription.
func (c *Client) Subscribe(ctx context.Context, fn func(store.Change)) (*store.Subscription, error) {
	sub, err := c.hub.Subscribe(ctx, fn)
	if err != nil {
		return nil, err
	}
	if c.configured {
		c.pollOnce.Do(func() { go c.poll() })
	}
	return sub, nil
}

type watermark struct {
	Locale    string    `json:"locale"`
	Section   string    `json:"section"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *Client) poll() {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	var last time.Time
	for {
		mark, err := c.latest(context.Background())
		if err != nil {
			c.log.Warn().Err(err).Msg("content change poll failed")
		} else if mark != nil {
			if !last.IsZero() && mark.UpdatedAt.After(last) {
				c.hub.Publish(store.Change{
					Table:   store.TableContent,
					Type:    store.ChangeUpdate,
					Locale:  locale.Locale(mark.Locale),
					Section: mark.Section,
					At:      mark.UpdatedAt,
				})
			}
			if mark.UpdatedAt.After(last) {
				last = mark.UpdatedAt
			}
		}

		select {
		case <-c.stop:
			return
		case <-ticker.C:
		}
	}
}

func (c *Client) latest(ctx context.Context) (*watermark, error) {
	ctx, cancel := context.WithTimeout(ctx, c.pollInterval)
	defer cancel()

	query := url.Values{}
	query.Set("select", "locale,section,updated_at")
	query.Set("order", "updated_at.desc")
	query.Set("limit", "1")

	var rows []watermark
	if err := c.do(ctx, "poll changes", http.MethodGet, store.TableContent, query, nil, nil, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}
