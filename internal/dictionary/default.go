package dictionary

import (
	"embed"
	"encoding/json"
	"fmt"

	"github.com/shwanortho/site/internal/locale"
)

//go:embed defaults/*.json
var defaultFiles embed.FS

var defaults = map[locale.Locale]Dictionary{}

func init() {
	for _, l := range locale.Supported {
		raw, err := defaultFiles.ReadFile(fmt.Sprintf("defaults/%s.json", l))
		if err != nil {
			panic(fmt.Sprintf("dictionary: embedded default for %s: %v", l, err))
		}
		var doc Dictionary
		if err := json.Unmarshal(raw, &doc); err != nil {
			panic(fmt.Sprintf("dictionary: embedded default for %s: %v", l, err))
		}
		if err := Validate(doc); err != nil {
			panic(fmt.Sprintf("dictionary: embedded default for %s: %v", l, err))
		}
		defaults[l] = doc
	}
}

// Default returns a fresh copy of the compiled-in copy for l, English for anything else.
func Default(l locale.Locale) Dictionary {
	doc, ok := defaults[l]
	if !ok {
		doc = defaults[locale.English]
	}
	return doc.Clone()
}
