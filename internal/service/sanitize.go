package service

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html/atom"
)

var (
	copyPolicy = bluemonday.StrictPolicy()

	// markupTag matches a complete start/end tag or comment; group 1 is the tag name.
	markupTag  = regexp.MustCompile(`(?s)<!--.*?-->|</?([a-zA-Z][a-zA-Z0-9-]*)(?:\s[^<>]*)?/?>`)
	textEscape = strings.NewReplacer("&", "&amp;", "<", "&lt;")
)

// sanitizeCopy strips markup from every string in an edited payload. Plain text is left
// byte-for-byte alone so entities like "&" are not rewritten.
func sanitizeCopy(v any) any {
	switch typed := v.(type) {
	case string:
		return sanitizeString(typed)
	case map[string]any:
		for key, value := range typed {
			typed[key] = sanitizeCopy(value)
		}
		return typed
	case []any:
		for i, value := range typed {
			typed[i] = sanitizeCopy(value)
		}
		return typed
	default:
		return v
	}
}

// sanitizeString only touches strings holding real HTML tags. Text around the tags is escaped
// before sanitising so a stray "<" in copy such as "a<b" is kept instead of read as a tag.
func sanitizeString(s string) string {
	matches := markupTag.FindAllStringSubmatchIndex(s, -1)
	var b strings.Builder
	last, tags := 0, 0
	for _, m := range matches {
		if m[2] >= 0 && atom.Lookup([]byte(strings.ToLower(s[m[2]:m[3]]))) == 0 {
			continue // 不是 HTML 元素，按普通文本处理
		}
		b.WriteString(textEscape.Replace(s[last:m[0]]))
		b.WriteString(s[m[0]:m[1]])
		last = m[1]
		tags++
	}
	if tags == 0 {
		return s
	}
	b.WriteString(textEscape.Replace(s[last:]))
	return html.UnescapeString(copyPolicy.Sanitize(b.String()))
}
