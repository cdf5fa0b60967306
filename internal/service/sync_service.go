package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shwanortho/site/internal/dictionary"
	"github.com/shwanortho/site/internal/locale"
	"github.com/shwanortho/site/internal/localfile"
	"github.com/shwanortho/site/internal/store"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// ErrLocalSourceMissing is returned by local writes when no locale directory is configured.
var ErrLocalSourceMissing = errors.New("local file source not configured")

// Versions maps section name to the version the editor loaded. Missing sections are
// written unconditionally.
type Versions map[string]int

// SyncError aggregates every failed write of one sync. Writes that succeeded stay written.
type SyncError struct {
	Failed []string
	Err    error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync failed for %d write(s) [%s]: %v", len(e.Failed), strings.Join(e.Failed, ", "), e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// SyncResult reports what one locale sync wrote.
type SyncResult struct {
	Locale    locale.Locale  `json:"locale"`
	Sections  []string       `json:"sections"`
	Versions  map[string]int `json:"versions"`
	Backup    string         `json:"backup,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// SyncOptions tunes a SyncService.
type SyncOptions struct {
	Concurrency   int
	MirrorToLocal bool
}

// SyncService writes edited dictionaries back to the store, one upsert per section.
type SyncService struct {
	store store.Store
	local *localfile.Source
	opts  SyncOptions
	cache *DictionaryCache
	log   zerolog.Logger
	now   func() time.Time
}

// NewSyncService creates a SyncService. local may be nil when mirroring is off.
func NewSyncService(st store.Store, local *localfile.Source, cache *DictionaryCache, opts SyncOptions, log zerolog.Logger) *SyncService {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}
	return &SyncService{store: st, local: local, opts: opts, cache: cache, log: log, now: time.Now}
}

type plannedWrite struct {
	key   string
	write store.ContentWrite
}

// SyncLocale decomposes doc and upserts seo, navbar and every page concurrently.
func (s *SyncService) SyncLocale(ctx context.Context, l locale.Locale, doc dictionary.Dictionary, versions Versions) (SyncResult, error) {
	results, err := s.SyncAll(ctx, map[locale.Locale]dictionary.Dictionary{l: doc}, map[locale.Locale]Versions{l: versions})
	if len(results) == 0 {
		return SyncResult{Locale: l, Timestamp: s.now().UTC()}, err
	}
	return results[0], err
}

// SyncAll syncs several locales at once. All upserts run concurrently and every failure is
// collected into one *SyncError; nothing is rolled back.
func (s *SyncService) SyncAll(ctx context.Context, docs map[locale.Locale]dictionary.Dictionary, versions map[locale.Locale]Versions) ([]SyncResult, error) {
	for l := range docs {
		if !l.Valid() {
			return nil, fmt.Errorf("sync %q: %w", l, store.ErrInvalidLocale)
		}
	}

	var plan []plannedWrite
	ordered := make([]locale.Locale, 0, len(docs))
	for _, l := range locale.Supported {
		doc, ok := docs[l]
		if !ok {
			continue
		}
		ordered = append(ordered, l)
		for _, section := range dictionary.Decompose(doc) {
			raw, err := json.Marshal(sanitizeCopy(section.Data))
			if err != nil {
				return nil, fmt.Errorf("encode %s/%s: %w", l, section.Name, err)
			}
			plan = append(plan, plannedWrite{
				key: string(l) + "/" + section.Name,
				write: store.ContentWrite{
					Locale:          l,
					Section:         section.Name,
					Data:            raw,
					ExpectedVersion: versions[l][section.Name],
				},
			})
		}
	}

	var (
		mu      sync.Mutex
		errs    error
		failed  []string
		written = make(map[string]store.ContentRow, len(plan))
	)

	g := new(errgroup.Group)
	g.SetLimit(s.opts.Concurrency)
	for _, item := range plan {
		g.Go(func() error {
			row, err := s.store.Upsert(ctx, item.write)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed = append(failed, item.key)
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", item.key, err))
				return nil
			}
			written[item.key] = row
			return nil
		})
	}
	_ = g.Wait()

	timestamp := s.now().UTC()
	results := make([]SyncResult, 0, len(ordered))
	for _, l := range ordered {
		result := SyncResult{Locale: l, Versions: map[string]int{}, Timestamp: timestamp}
		for _, item := range plan {
			if item.write.Locale != l {
				continue
			}
			if row, ok := written[item.key]; ok {
				result.Sections = append(result.Sections, item.write.Section)
				result.Versions[item.write.Section] = row.Version
			}
		}

		if s.opts.MirrorToLocal && s.local != nil {
			backup, err := s.local.Save(l, docs[l])
			if err != nil {
				failed = append(failed, string(l)+"/local")
				errs = multierr.Append(errs, fmt.Errorf("mirror %s to local file: %w", l, err))
			}
			result.Backup = backup
		}
		results = append(results, result)
	}

	s.cache.Invalidate()

	if errs != nil {
		s.log.Error().Err(errs).Strs("failed", failed).Msg("content sync incomplete")
		return results, &SyncError{Failed: failed, Err: errs}
	}
	s.log.Info().Int("writes", len(plan)).Msg("content synced")
	return results, nil
}

// SaveSection upserts one section. version 0 writes unconditionally.
func (s *SyncService) SaveSection(ctx context.Context, l locale.Locale, section string, data any, version int) (store.ContentRow, error) {
	raw, err := json.Marshal(sanitizeCopy(data))
	if err != nil {
		return store.ContentRow{}, fmt.Errorf("encode %s/%s: %w", l, section, err)
	}
	row, err := s.store.Upsert(ctx, store.ContentWrite{
		Locale:          l,
		Section:         strings.TrimSpace(section),
		Data:            raw,
		ExpectedVersion: version,
	})
	if err != nil {
		return store.ContentRow{}, err
	}
	s.cache.Invalidate()
	return row, nil
}

// SaveLocal writes doc to the local file source and returns the backup path.
func (s *SyncService) SaveLocal(l locale.Locale, doc dictionary.Dictionary) (string, error) {
	if s.local == nil {
		return "", ErrLocalSourceMissing
	}
	if err := dictionary.Validate(doc); err != nil {
		return "", err
	}
	backup, err := s.local.Save(l, doc)
	if err != nil {
		return backup, err
	}
	s.cache.Invalidate()
	return backup, nil
}
