package locale

import (
	"strings"

	"golang.org/x/text/language"
)

// Locale is one of the two languages the site is published in.
type Locale string

const (
	English Locale = "en"
	Arabic  Locale = "ar"
)

// Supported lists the published locales, English first.
var Supported = []Locale{English, Arabic}

var matcher = language.NewMatcher([]language.Tag{language.English, language.Arabic})

// Preference describes how a locale is presented in HTML.
type Preference struct {
	Locale   Locale
	HTMLLang string
	Dir      string
	Label    string
}

// Valid reports whether l is a published locale.
func (l Locale) Valid() bool {
	return l == English || l == Arabic
}

// RTL reports whether the locale is written right to left.
func (l Locale) RTL() bool {
	return l == Arabic
}

func (l Locale) String() string {
	return string(l)
}

// Parse returns the exact locale for raw, or false when raw is not "en" or "ar".
// It is the strict check used by the API; Normalize is the lenient one used for browsing.
func Parse(raw string) (Locale, bool) {
	l := Locale(strings.TrimSpace(raw))
	if !l.Valid() {
		return "", false
	}
	return l, true
}

// Normalize maps region-tagged or loosely cased values ("en-US", "AR_iq") onto a locale.
func Normalize(raw string) Locale {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "ar") {
		return Arabic
	}
	if strings.HasPrefix(trimmed, "en") {
		return English
	}
	return ""
}

// FromAcceptLanguage picks the best locale for an Accept-Language header.
func FromAcceptLanguage(header string) Locale {
	trimmed := strings.TrimSpace(header)
	if trimmed == "" {
		return ""
	}
	tags, _, err := language.ParseAcceptLanguage(trimmed)
	if err != nil || len(tags) == 0 {
		return ""
	}
	_, index, confidence := matcher.Match(tags...)
	if confidence == language.No {
		return ""
	}
	return Supported[index]
}

// PreferenceFor returns presentation details, defaulting to English.
func PreferenceFor(l Locale) Preference {
	if Normalize(string(l)) == Arabic {
		return Preference{Locale: Arabic, HTMLLang: "ar", Dir: "rtl", Label: "العربية"}
	}
	return Preference{Locale: English, HTMLLang: "en", Dir: "ltr", Label: "English"}
}

// Other returns the alternate locale, used by the language switcher.
func (l Locale) Other() Locale {
	if l == Arabic {
		return English
	}
	return Arabic
}

var arabicCountries = map[string]struct{}{
	"AE": {}, "BH": {}, "DZ": {}, "EG": {}, "IQ": {}, "JO": {}, "KW": {}, "LB": {}, "LY": {},
	"MA": {}, "OM": {}, "PS": {}, "QA": {}, "SA": {}, "SD": {}, "SY": {}, "TN": {}, "YE": {},
}

// FromCountryCode maps a geo header country (e.g. CF-IPCountry) onto a locale.
func FromCountryCode(code string) Locale {
	trimmed := strings.ToUpper(strings.TrimSpace(code))
	if trimmed == "" {
		return ""
	}
	if _, ok := arabicCountries[trimmed]; ok {
		return Arabic
	}
	return English
}
