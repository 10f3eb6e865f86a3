// Package threat turns post text into a threat category and a 0-100 level.
package threat

import "strings"

type Category string

const (
	Neutral    Category = "neutral"
	Harassment Category = "harassment"
	Threat     Category = "threat"
	HighThreat Category = "high_threat"
)

func (c Category) Valid() bool {
	switch c {
	case Neutral, Harassment, Threat, HighThreat:
		return true
	}
	return false
}

// Lexicon holds the tiered keyword lists and the known locations. Tiers are
// checked high, medium, low; the first tier with any match decides.
type Lexicon struct {
	High      []string
	Medium    []string
	Low       []string
	Locations []string
}

// DefaultLexicon is the bilingual (English + Swahili) list the monitor ships with.
func DefaultLexicon() Lexicon {
	return Lexicon{
		High:      []string{"kill", "kukuua", "attack", "shambulio", "stab", "choma", "murder"},
		Medium:    []string{"beat", "hurt", "napiga", "nitakupiga", "nitakuchapa", "threat", "harm"},
		Low:       []string{"insult", "matusi", "stupid", "idiot"},
		Locations: []string{"nairobi", "kibera", "mathare", "mombasa", "kisumu", "nakuru"},
	}
}

// NewLexicon lower-cases and de-blanks the configured lists.
func NewLexicon(high, medium, low, locations []string) Lexicon {
	return Lexicon{
		High:      normalize(high),
		Medium:    normalize(medium),
		Low:       normalize(low),
		Locations: normalize(locations),
	}
}

func normalize(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}

func (l Lexicon) Classify(text string) Category {
	if text == "" {
		return Neutral
	}

	lower := strings.ToLower(text)

	switch {
	case containsAny(lower, l.High):
		return HighThreat
	case containsAny(lower, l.Medium):
		return Threat
	case containsAny(lower, l.Low):
		return Harassment
	}
	return Neutral
}

// MentionsLocation reports whether text names one of the known locations.
func (l Lexicon) MentionsLocation(text string) bool {
	return containsAny(strings.ToLower(text), l.Locations)
}

func containsAny(lower string, words []string) bool {
	for _, w := range words {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}
