// Package rest talks to the hosted content store through its PostgREST API.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shwanortho/site/internal/locale"
	"github.com/shwanortho/site/internal/store"
)

// PlaceholderURL is used when no endpoint is configured. Every call against it fails.
const PlaceholderURL = "http://placeholder.invalid"

// ErrNotConfigured is the cause carried by StoreErrors from an unconfigured client.
var ErrNotConfigured = errors.New("content store endpoint or key not configured")

// Config selects the hosted store instance.
type Config struct {
	URL          string
	APIKey       string
	Timeout      time.Duration
	PollInterval time.Duration
	Logger       zerolog.Logger
}

// Client implements store.Store over PostgREST.
type Client struct {
	baseURL      string
	apiKey       string
	configured   bool
	http         *http.Client
	pollInterval time.Duration
	log          zerolog.Logger
	now          func() time.Time

	hub      *store.Hub
	pollOnce sync.Once
	stop     chan struct{}
	stopOnce sync.Once
}

var _ store.Store = (*Client)(nil)

// New builds a client. Missing URL or key yields a client bound to PlaceholderURL.
func New(cfg Config) *Client {
	base := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	key := strings.TrimSpace(cfg.APIKey)
	configured := base != "" && key != ""
	if !configured {
		base = PlaceholderURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = 15 * time.Second
	}

	return &Client{
		baseURL:      base,
		apiKey:       key,
		configured:   configured,
		http:         &http.Client{Timeout: timeout},
		pollInterval: poll,
		log:          cfg.Logger,
		now:          func() time.Time { return time.Now().UTC() },
		hub:          store.NewHub(),
		stop:         make(chan struct{}),
	}
}

// Configured reports whether a real endpoint and key were supplied.
func (c *Client) Configured() bool {
	return c.configured
}

type contentPayload struct {
	Locale    string          `json:"locale"`
	Section   string          `json:"section"`
	Data      json.RawMessage `json:"data"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type galleryPayload struct {
	CaseID      int     `json:"case_id"`
	ImageType   string  `json:"image_type"`
	ImageNumber int     `json:"image_number"`
	Description string  `json:"description"`
	Locale      string  `json:"locale"`
	ImageURL    *string `json:"image_url"`
}

type apiError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Details string `json:"details"`
}

// Get returns rows for l, optionally narrowed to section, newest first.
func (c *Client) Get(ctx context.Context, l locale.Locale, section string) ([]store.ContentRow, error) {
	if !l.Valid() {
		return nil, store.ErrInvalidLocale
	}

	query := url.Values{}
	query.Set("select", "*")
	query.Set("locale", "eq."+string(l))
	if section != "" {
		query.Set("section", "eq."+section)
	}
	query.Set("order", "updated_at.desc")

	var rows []store.ContentRow
	if err := c.do(ctx, "get content", http.MethodGet, store.TableContent, query, nil, nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// Upsert writes one row keyed by (locale, section). A non-zero ExpectedVersion turns the
// write into a conditional PATCH that matches only the expected version.
func (c *Client) Upsert(ctx context.Context, w store.ContentWrite) (store.ContentRow, error) {
	if err := w.Validate(); err != nil {
		return store.ContentRow{}, err
	}

	data := w.Data
	if len(data) == 0 {
		data = json.RawMessage("null")
	}
	now := c.now()

	var rows []store.ContentRow
	if w.ExpectedVersion > 0 {
		query := url.Values{}
		query.Set("locale", "eq."+string(w.Locale))
		query.Set("section", "eq."+w.Section)
		query.Set("version", "eq."+strconv.Itoa(w.ExpectedVersion))
		body := map[string]any{"data": data, "updated_at": now, "version": w.ExpectedVersion + 1}
		headers := map[string]string{"Prefer": "return=representation"}
		if err := c.do(ctx, "upsert content", http.MethodPatch, store.TableContent, query, headers, body, &rows); err != nil {
			return store.ContentRow{}, err
		}
		if len(rows) == 0 {
			return store.ContentRow{}, store.ErrVersionConflict
		}
	} else {
		query := url.Values{}
		query.Set("on_conflict", "locale,section")
		body := []contentPayload{{Locale: string(w.Locale), Section: w.Section, Data: data, UpdatedAt: now}}
		headers := map[string]string{"Prefer": "resolution=merge-duplicates,return=representation"}
		if err := c.do(ctx, "upsert content", http.MethodPost, store.TableContent, query, headers, body, &rows); err != nil {
			return store.ContentRow{}, err
		}
		if len(rows) == 0 {
			return store.ContentRow{}, &store.StoreError{Op: "upsert content", Err: errors.New("empty representation")}
		}
	}

	c.hub.Publish(store.Change{Table: store.TableContent, Type: store.ChangeUpdate, Locale: w.Locale, Section: w.Section, At: now})
	return rows[0], nil
}

// GalleryImages returns the photo rows of a case ordered by image number.
func (c *Client) GalleryImages(ctx context.Context, caseID int) ([]store.GalleryImageRow, error) {
	query := url.Values{}
	query.Set("select", "*")
	query.Set("case_id", "eq."+strconv.Itoa(caseID))
	query.Set("order", "image_number.asc")

	var rows []store.GalleryImageRow
	if err := c.do(ctx, "get gallery images", http.MethodGet, store.TableGalleryImages, query, nil, nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// UpsertGalleryImage writes one photo row keyed on the 4-tuple.
func (c *Client) UpsertGalleryImage(ctx context.Context, w store.GalleryImageWrite) (store.GalleryImageRow, error) {
	if err := w.Validate(); err != nil {
		return store.GalleryImageRow{}, err
	}

	query := url.Values{}
	query.Set("on_conflict", "case_id,image_type,image_number,locale")
	body := []galleryPayload{{
		CaseID:      w.CaseID,
		ImageType:   w.ImageType,
		ImageNumber: w.ImageNumber,
		Description: w.Description,
		Locale:      string(w.Locale),
		ImageURL:    w.ImageURL,
	}}
	headers := map[string]string{"Prefer": "resolution=merge-duplicates,return=representation"}

	var rows []store.GalleryImageRow
	if err := c.do(ctx, "upsert gallery image", http.MethodPost, store.TableGalleryImages, query, headers, body, &rows); err != nil {
		return store.GalleryImageRow{}, err
	}
	if len(rows) == 0 {
		return store.GalleryImageRow{}, &store.StoreError{Op: "upsert gallery image", Err: errors.New("empty representation")}
	}

	c.hub.Publish(store.Change{Table: store.TableGalleryImages, Type: store.ChangeUpdate, Locale: w.Locale, CaseID: w.CaseID})
	return rows[0], nil
}

// DeleteGalleryImages removes the rows selected by key.
func (c *Client) DeleteGalleryImages(ctx context.Context, key store.GalleryImageKey) (int, error) {
	if err := key.Validate(); err != nil {
		return 0, err
	}

	query := url.Values{}
	query.Set("case_id", "eq."+strconv.Itoa(key.CaseID))
	if key.ImageType != "" {
		query.Set("image_type", "eq."+key.ImageType)
	}
	if key.ImageNumber > 0 {
		query.Set("image_number", "eq."+strconv.Itoa(key.ImageNumber))
	}
	if key.Locale != "" {
		query.Set("locale", "eq."+string(key.Locale))
	}
	headers := map[string]string{"Prefer": "return=representation"}

	var rows []store.GalleryImageRow
	if err := c.do(ctx, "delete gallery images", http.MethodDelete, store.TableGalleryImages, query, headers, nil, &rows); err != nil {
		return 0, err
	}

	if len(rows) > 0 {
		c.hub.Publish(store.Change{Table: store.TableGalleryImages, Type: store.ChangeDelete, Locale: key.Locale, CaseID: key.CaseID})
	}
	return len(rows), nil
}

// MaxGalleryCaseID returns the largest case id in use.
func (c *Client) MaxGalleryCaseID(ctx context.Context) (int, error) {
	query := url.Values{}
	query.Set("select", "case_id")
	query.Set("order", "case_id.desc")
	query.Set("limit", "1")

	var rows []struct {
		CaseID int `json:"case_id"`
	}
	if err := c.do(ctx, "max gallery case", http.MethodGet, store.TableGalleryImages, query, nil, nil, &rows); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].CaseID, nil
}

// Ping issues the cheapest read the API allows.
func (c *Client) Ping(ctx context.Context) error {
	query := url.Values{}
	query.Set("select", "id")
	query.Set("limit", "1")
	var rows []json.RawMessage
	return c.do(ctx, "ping", http.MethodGet, store.TableContent, query, nil, nil, &rows)
}

// Close stops the change poller and releases subscribers.
func (c *Client) Close() error {
	c.stopOnce.Do(func() { close(c.stop) })
	c.hub.Close()
	return nil
}

func (c *Client) do(ctx context.Context, op, method, table string, query url.Values, headers map[string]string, body, out any) error {
	if !c.configured {
		return &store.StoreError{Op: op, Err: ErrNotConfigured}
	}

	endpoint := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, table)
	if encoded := query.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return &store.StoreError{Op: op, Err: fmt.Errorf("encode request: %w", err)}
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return &store.StoreError{Op: op, Err: err}
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &store.StoreError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return &store.StoreError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		message := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Message != "" {
			message = apiErr.Message
			if apiErr.Code != "" {
				message = apiErr.Code + ": " + message
			}
		}
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		return &store.StoreError{Op: op, Status: resp.StatusCode, Err: errors.New(message)}
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &store.StoreError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
