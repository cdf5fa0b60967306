package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shwanortho/site/internal/dictionary"
	"github.com/shwanortho/site/internal/locale"
	"github.com/shwanortho/site/internal/localfile"
	"github.com/shwanortho/site/internal/store"
)

// ErrNoContent means the store answered but holds no rows for the locale.
var ErrNoContent = errors.New("no content stored for locale")

// Source names the stage a resolution came from.
type Source string

const (
	SourceRemote          Source = "remote"
	SourceLocal           Source = "local"
	SourceFallbackEnglish Source = "fallback-en"
	SourceDefault         Source = "default"
)

// Resolution is the result of Resolve. Dictionary may be shared with the cache and must be
// treated as read-only; Clone it before editing.
type Resolution struct {
	Dictionary dictionary.Dictionary
	Requested  locale.Locale
	Locale     locale.Locale
	Source     Source
}

// ContentService loads dictionaries for pages and the admin editor.
type ContentService struct {
	store store.Store
	local *localfile.Source
	cache *DictionaryCache
	log   zerolog.Logger
}

// NewContentService wires a resolver. local and cache may be nil.
func NewContentService(st store.Store, local *localfile.Source, cache *DictionaryCache, log zerolog.Logger) *ContentService {
	return &ContentService{store: st, local: local, cache: cache, log: log}
}

// Resolve returns a valid dictionary for l, trying the store, the local file, English and
// finally the embedded default. It never fails; absorbed errors are logged.
func (s *ContentService) Resolve(ctx context.Context, l locale.Locale) Resolution {
	if !l.Valid() {
		l = locale.English
	}
	if cached, ok := s.cache.Get(l); ok {
		return cached
	}

	res := s.resolve(ctx, l)
	s.cache.Set(l, res)
	return res
}

func (s *ContentService) resolve(ctx context.Context, l locale.Locale) Resolution {
	doc, err := s.Remote(ctx, l)
	if err == nil {
		err = dictionary.Validate(doc)
	}
	if err == nil {
		return Resolution{Dictionary: doc, Requested: l, Locale: l, Source: SourceRemote}
	}
	s.log.Warn().Err(err).Str("locale", l.String()).Msg("remote content unavailable, trying local file")

	if s.local != nil {
		doc, err = s.local.Load(l)
		if err == nil {
			err = dictionary.Validate(doc)
		}
		if err == nil {
			return Resolution{Dictionary: doc, Requested: l, Locale: l, Source: SourceLocal}
		}
		s.log.Warn().Err(err).Str("locale", l.String()).Msg("local content unavailable")
	}

	if l != locale.English {
		english := s.resolve(ctx, locale.English)
		english.Requested = l
		if english.Source != SourceDefault {
			english.Source = SourceFallbackEnglish
		}
		return english
	}

	s.log.Warn().Str("locale", l.String()).Msg("serving embedded default content")
	return Resolution{Dictionary: dictionary.Default(l), Requested: l, Locale: l, Source: SourceDefault}
}

// Remote assembles the dictionary for l straight from the store, without validation or fallback.
func (s *ContentService) Remote(ctx context.Context, l locale.Locale) (dictionary.Dictionary, error) {
	rows, err := s.store.Get(ctx, l, "")
	if err != nil {
		return nil, err
	}
	return assembleRows(rows)
}

// Section returns the stored payload of one section, or nil when the section does not exist.
func (s *ContentService) Section(ctx context.Context, l locale.Locale, section string) (json.RawMessage, *store.ContentRow, error) {
	rows, err := s.store.Get(ctx, l, section)
	if err != nil {
		return nil, nil, err
	}
	if len(rows) == 0 {
		return nil, nil, nil
	}
	row := rows[0]
	return row.Data, &row, nil
}

// Versions returns the current version of every stored section of l.
func (s *ContentService) Versions(ctx context.Context, l locale.Locale) (map[string]int, error) {
	rows, err := s.store.Get(ctx, l, "")
	if err != nil {
		return nil, err
	}
	versions := make(map[string]int, len(rows))
	for _, row := range rows {
		if _, seen := versions[row.Section]; !seen {
			versions[row.Section] = row.Version
		}
	}
	return versions, nil
}

// Online reports whether the store answers.
func (s *ContentService) Online(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Watch clears the cache on every store change until ctx ends.
func (s *ContentService) Watch(ctx context.Context) (*store.Subscription, error) {
	return s.store.Subscribe(ctx, func(c store.Change) {
		// 英文内容变化会影响阿语的回退结果，统一全部失效
		s.cache.Invalidate()
		s.log.Debug().Str("table", c.Table).Str("type", c.Type).Str("section", c.Section).Msg("content cache invalidated")
	})
}

// assembleRows decodes row payloads and assembles them. Rows arrive newest first, so they
// are applied oldest first and the newest duplicate wins.
func assembleRows(rows []store.ContentRow) (dictionary.Dictionary, error) {
	if len(rows) == 0 {
		return nil, ErrNoContent
	}
	parts := make([]dictionary.Row, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		var data any
		if err := json.Unmarshal(rows[i].Data, &data); err != nil {
			return nil, fmt.Errorf("decode section %s: %w", rows[i].Section, err)
		}
		parts = append(parts, dictionary.Row{Section: rows[i].Section, Data: data})
	}
	return dictionary.Assemble(parts), nil
}
