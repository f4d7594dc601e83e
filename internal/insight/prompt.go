package insight

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

const (
	DefaultMaxDataChars = 4000
	truncationMarker    = "\n...[truncated]"
)

const promptTemplate = `You are a retail analytics assistant for a multi-city store chain.
Using only the aggregated business data below, write a concise analysis in %s.
Answer with exactly three markdown sections, in this order:
## Highlights
## Risks
## Recommendations
Use short bullet points, quote concrete figures from the data, and do not mention any city or store that is not in the data.

Data (JSON):
%s`

// PromptBuilder renders an Input into the single instruction sent to every
// provider. Build is pure: the same input always yields the same prompt.
type PromptBuilder struct {
	languageName string
	maxDataChars int
}

func NewPromptBuilder(lang language.Tag, maxDataChars int) *PromptBuilder {
	if maxDataChars <= 0 {
		maxDataChars = DefaultMaxDataChars
	}
	name := display.English.Tags().Name(lang)
	if name == "" {
		name = lang.String()
	}
	return &PromptBuilder{
		languageName: name,
		maxDataChars: maxDataChars,
	}
}

func (b *PromptBuilder) Build(in *Input) string {
	if in == nil {
		in = &Input{}
	}
	return fmt.Sprintf(promptTemplate, b.languageName, b.serialize(in))
}

func (b *PromptBuilder) serialize(in *Input) string {
	data, err := json.Marshal(in)
	if err != nil {
		// Only reachable with NaN/Inf values; the prompt must still be built.
		data = []byte(fmt.Sprintf("%+v", *in))
	}
	return truncateUTF8(string(data), b.maxDataChars)
}

// truncateUTF8 cuts s to at most max bytes without splitting a rune.
func truncateUTF8(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + truncationMarker
}
