// Package localfile reads and writes one JSON dictionary per locale on disk.
//
// Save copies the current file to {locale}.backup.{epoch_ms}.json before writing the new
// document. The two steps are independent: a crash in between leaves a backup next to an
// unchanged primary file. Backups are never pruned.
package localfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shwanortho/site/internal/dictionary"
	"github.com/shwanortho/site/internal/locale"
)

// NotFoundError reports a missing locale file.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("locale file not found: %s", e.Path)
}

// ParseError reports a locale file that is not a JSON object.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse locale file %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Source is a directory of {locale}.json files.
type Source struct {
	dir string
	now func() time.Time
}

// New returns a Source rooted at dir.
func New(dir string) *Source {
	if strings.TrimSpace(dir) == "" {
		dir = "locales"
	}
	return &Source{dir: dir, now: time.Now}
}

// Dir returns the root directory.
func (s *Source) Dir() string {
	return s.dir
}

// Path returns the primary file for l.
func (s *Source) Path(l locale.Locale) string {
	return filepath.Join(s.dir, string(l)+".json")
}

// Load reads and parses the dictionary for l. Structural validation is left to the caller.
func (s *Source) Load(l locale.Locale) (dictionary.Dictionary, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("load %q: %w", l, errInvalidLocale)
	}

	path := s.Path(l)
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &NotFoundError{Path: path}
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var doc dictionary.Dictionary
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	if doc == nil {
		return nil, &ParseError{Path: path, Err: errors.New("document is not an object")}
	}
	return doc, nil
}

// Save backs up the existing file for l, then writes doc pretty-printed. backupPath is empty
// when there was nothing to back up.
func (s *Source) Save(l locale.Locale, doc dictionary.Dictionary) (backupPath string, err error) {
	if !l.Valid() {
		return "", fmt.Errorf("save %q: %w", l, errInvalidLocale)
	}

	content, err := encode(doc)
	if err != nil {
		return "", fmt.Errorf("encode %s dictionary: %w", l, err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create locale dir: %w", err)
	}

	path := s.Path(l)
	if _, statErr := os.Stat(path); statErr == nil {
		backupPath, err = s.backup(l, path)
		if err != nil {
			return "", err
		}
	} else if !errors.Is(statErr, os.ErrNotExist) {
		return "", fmt.Errorf("stat %s: %w", path, statErr)
	}

	if err := os.WriteFile(path, content, 0o644); err != nil {
		return backupPath, fmt.Errorf("write %s: %w", path, err)
	}
	return backupPath, nil
}

// Backups lists the backup files of l, newest first.
func (s *Source) Backups(l locale.Locale) ([]string, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("backups %q: %w", l, errInvalidLocale)
	}

	matches, err := filepath.Glob(filepath.Join(s.dir, string(l)+".backup.*.json"))
	if err != nil {
		return nil, err
	}

	type stamped struct {
		path string
		ms   int64
	}
	items := make([]stamped, 0, len(matches))
	for _, match := range matches {
		ms, ok := backupStamp(l, filepath.Base(match))
		if !ok {
			continue
		}
		items = append(items, stamped{path: match, ms: ms})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ms > items[j].ms })

	paths := make([]string, 0, len(items))
	for _, item := range items {
		paths = append(paths, item.path)
	}
	return paths, nil
}

// Snapshot copies every existing locale file into {destRoot}/{timestamp}/ and returns that directory.
func (s *Source) Snapshot(destRoot string) (string, error) {
	if strings.TrimSpace(destRoot) == "" {
		destRoot = filepath.Join(s.dir, "backups")
	}
	dest := filepath.Join(destRoot, s.now().Format("20060102-150405"))
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	copied := 0
	for _, l := range locale.Supported {
		src := s.Path(l)
		if _, err := os.Stat(src); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := copyFile(src, filepath.Join(dest, filepath.Base(src))); err != nil {
			return "", err
		}
		copied++
	}
	if copied == 0 {
		return "", &NotFoundError{Path: s.dir}
	}
	return dest, nil
}

var errInvalidLocale = errors.New("unsupported locale")

func (s *Source) backup(l locale.Locale, path string) (string, error) {
	ms := s.now().UnixMilli()
	target := filepath.Join(s.dir, fmt.Sprintf("%s.backup.%d.json", l, ms))
	// 同一毫秒内连续保存时顺延，避免覆盖已有备份
	for {
		if _, err := os.Stat(target); errors.Is(err, os.ErrNotExist) {
			break
		}
		ms++
		target = filepath.Join(s.dir, fmt.Sprintf("%s.backup.%d.json", l, ms))
	}

	if err := copyFile(path, target); err != nil {
		return "", fmt.Errorf("backup %s: %w", path, err)
	}
	return target, nil
}

func backupStamp(l locale.Locale, name string) (int64, bool) {
	prefix := string(l) + ".backup."
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".json") {
		return 0, false
	}
	ms, err := strconv.ParseInt(strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".json"), 10, 64)
	if err != nil {
		return 0, false
	}
	return ms, true
}

func encode(doc dictionary.Dictionary) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
