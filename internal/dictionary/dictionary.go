// Package dictionary assembles the per-locale site copy from flat section rows and
// breaks it back down again for persistence.
package dictionary

import (
	"encoding/json"
	"fmt"
	"sort"
)

const (
	SectionSEO    = "seo"
	SectionNavbar = "navbar"

	keyPages = "pages"
)

// Dictionary is the full nested document for one locale.
// Top-level keys are "seo", "navbar" and "pages"; pages holds one entry per section.
type Dictionary map[string]any

// Section is one (section, data) fragment of a Dictionary.
type Section struct {
	Name string
	Data any
}

// Row is the minimal view of a stored content row the assembler needs.
type Row struct {
	Section string
	Data    any
}

// ValidationError reports a document that parsed but lacks required structure.
type ValidationError struct {
	Missing string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("dictionary missing %q object", e.Missing)
}

// Assemble groups rows into a Dictionary. seo and navbar become top-level keys and every
// other section nests under pages. A repeated section keeps the last occurrence.
func Assemble(rows []Row) Dictionary {
	doc := Dictionary{}
	for _, row := range rows {
		switch row.Section {
		case SectionSEO:
			doc[SectionSEO] = row.Data
		case SectionNavbar:
			doc[SectionNavbar] = row.Data
		default:
			doc.pagesForWrite()[row.Section] = row.Data
		}
	}
	return doc
}

// Validate checks that doc carries both a pages object and a navbar object.
func Validate(doc Dictionary) error {
	if doc == nil {
		return &ValidationError{Missing: keyPages}
	}
	if _, ok := asObject(doc[keyPages]); !ok {
		return &ValidationError{Missing: keyPages}
	}
	if _, ok := asObject(doc[SectionNavbar]); !ok {
		return &ValidationError{Missing: SectionNavbar}
	}
	return nil
}

// Decompose is the inverse of Assemble: seo, navbar, then pages in key order.
// Absent seo/navbar are skipped.
func Decompose(doc Dictionary) []Section {
	sections := make([]Section, 0, 8)
	if v, ok := doc[SectionSEO]; ok && v != nil {
		sections = append(sections, Section{Name: SectionSEO, Data: v})
	}
	if v, ok := doc[SectionNavbar]; ok && v != nil {
		sections = append(sections, Section{Name: SectionNavbar, Data: v})
	}
	pages := doc.Pages()
	names := make([]string, 0, len(pages))
	for name := range pages {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		sections = append(sections, Section{Name: name, Data: pages[name]})
	}
	return sections
}

// Pages returns the pages map, or nil when absent.
func (d Dictionary) Pages() map[string]any {
	pages, _ := asObject(d[keyPages])
	return pages
}

// Page returns one page section as an object.
func (d Dictionary) Page(name string) (map[string]any, bool) {
	return asObject(d.Pages()[name])
}

// Navbar returns the navbar labels.
func (d Dictionary) Navbar() map[string]any {
	navbar, _ := asObject(d[SectionNavbar])
	return navbar
}

// SEO returns the seo metadata.
func (d Dictionary) SEO() map[string]any {
	seo, _ := asObject(d[SectionSEO])
	return seo
}

// SetPage replaces one page section.
func (d Dictionary) SetPage(name string, data any) {
	d.pagesForWrite()[name] = data
}

func (d Dictionary) pagesForWrite() map[string]any {
	if pages, ok := asObject(d[keyPages]); ok {
		return pages
	}
	pages := map[string]any{}
	d[keyPages] = pages
	return pages
}

// Clone returns a deep copy by JSON round trip, so edits never alias cached values.
func (d Dictionary) Clone() Dictionary {
	if d == nil {
		return nil
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return Dictionary{}
	}
	var out Dictionary
	if err := json.Unmarshal(raw, &out); err != nil {
		return Dictionary{}
	}
	return out
}

// String looks up a dotted path ("pages.home.title") and returns it when it is a string.
func (d Dictionary) String(path ...string) string {
	var cur any = map[string]any(d)
	for _, key := range path {
		obj, ok := asObject(cur)
		if !ok {
			return ""
		}
		cur = obj[key]
	}
	s, _ := cur.(string)
	return s
}

func asObject(v any) (map[string]any, bool) {
	switch typed := v.(type) {
	case map[string]any:
		return typed, true
	case Dictionary:
		return typed, true
	default:
		return nil, false
	}
}
