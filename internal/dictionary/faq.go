package dictionary

import (
	"errors"
	"strings"
)

const (
	SectionFAQ     = "faq"
	SectionGallery = "gallery"
)

var (
	ErrFAQIndexOutOfRange = errors.New("faq index out of range")
	ErrFAQQuestionMissing = errors.New("faq question is required")
)

// FAQ is one question/answer pair under pages.faq.questions.
type FAQ struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// GalleryCase is one entry of pages.gallery.cases. Photos live in gallery rows, not here.
type GalleryCase struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

// FAQs returns the questions in display order.
func (d Dictionary) FAQs() []FAQ {
	page, ok := d.Page(SectionFAQ)
	if !ok {
		return nil
	}
	items, _ := page["questions"].([]any)
	out := make([]FAQ, 0, len(items))
	for _, item := range items {
		obj, ok := asObject(item)
		if !ok {
			continue
		}
		q, _ := obj["question"].(string)
		a, _ := obj["answer"].(string)
		out = append(out, FAQ{Question: q, Answer: a})
	}
	return out
}

// AddFAQ appends a question, creating pages.faq when needed.
func (d Dictionary) AddFAQ(item FAQ) error {
	if strings.TrimSpace(item.Question) == "" {
		return ErrFAQQuestionMissing
	}
	page := d.faqPage()
	items, _ := page["questions"].([]any)
	page["questions"] = append(items, map[string]any{
		"question": strings.TrimSpace(item.Question),
		"answer":   strings.TrimSpace(item.Answer),
	})
	return nil
}

// DeleteFAQ removes the question at index (0-based).
func (d Dictionary) DeleteFAQ(index int) (FAQ, error) {
	page, ok := d.Page(SectionFAQ)
	if !ok {
		return FAQ{}, ErrFAQIndexOutOfRange
	}
	items, _ := page["questions"].([]any)
	if index < 0 || index >= len(items) {
		return FAQ{}, ErrFAQIndexOutOfRange
	}
	obj, _ := asObject(items[index])
	removed := FAQ{Question: stringOf(obj["question"]), Answer: stringOf(obj["answer"])}
	page["questions"] = append(items[:index:index], items[index+1:]...)
	return removed, nil
}

func (d Dictionary) faqPage() map[string]any {
	if page, ok := d.Page(SectionFAQ); ok {
		return page
	}
	page := map[string]any{"questions": []any{}}
	d.SetPage(SectionFAQ, page)
	return page
}

// GalleryCases returns pages.gallery.cases. Legacy entries that still carry photos are
// read for id and title only.
func (d Dictionary) GalleryCases() []GalleryCase {
	page, ok := d.Page(SectionGallery)
	if !ok {
		return nil
	}
	items, _ := page["cases"].([]any)
	out := make([]GalleryCase, 0, len(items))
	for _, item := range items {
		obj, ok := asObject(item)
		if !ok {
			continue
		}
		out = append(out, GalleryCase{ID: toInt(obj["id"]), Title: stringOf(obj["title"])})
	}
	return out
}

// SetGalleryCases replaces pages.gallery.cases, keeping the rest of the gallery page.
func (d Dictionary) SetGalleryCases(cases []GalleryCase) {
	page, ok := d.Page(SectionGallery)
	if !ok {
		page = map[string]any{}
		d.SetPage(SectionGallery, page)
	}
	items := make([]any, 0, len(cases))
	for _, c := range cases {
		items = append(items, map[string]any{"id": c.ID, "title": c.Title})
	}
	page["cases"] = items
}

// LegacyPhoto is a photo entry embedded in an older pages.gallery.cases[].photos array.
type LegacyPhoto struct {
	Before      string
	After       string
	Description string
}

// LegacyGalleryPhotos returns embedded photos keyed by case id.
func (d Dictionary) LegacyGalleryPhotos() map[int][]LegacyPhoto {
	page, ok := d.Page(SectionGallery)
	if !ok {
		return nil
	}
	items, _ := page["cases"].([]any)
	out := map[int][]LegacyPhoto{}
	for _, item := range items {
		obj, ok := asObject(item)
		if !ok {
			continue
		}
		photos, _ := obj["photos"].([]any)
		if len(photos) == 0 {
			continue
		}
		id := toInt(obj["id"])
		for _, p := range photos {
			po, ok := asObject(p)
			if !ok {
				continue
			}
			out[id] = append(out[id], LegacyPhoto{
				Before:      stringOf(po["before"]),
				After:       stringOf(po["after"]),
				Description: stringOf(po["description"]),
			})
		}
	}
	return out
}

func toInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	default:
		return 0
	}
}

func stringOf(v any) string {
	s, _ := v.(string)
	return s
}
