// Package moderation screens comments before they reach a room. Forbidden
// words are matched with an Aho-Corasick automaton over a normalized view
// of the text, so leet speak and punctuation tricks do not slip through,
// and the comment's language is detected for downstream display.
package moderation

import (
	"log/slog"
	"unicode"

	"github.com/abadojack/whatlanggo"
	goahocorasick "github.com/anknown/ahocorasick"
)

type Moderator struct {
	matcher      *goahocorasick.Machine
	censoredChar rune
	log          *slog.Logger
}

type textMapping struct {
	normalized []rune
	origIdx    []int
}

// NewModerator builds the automaton from a normalized version of the
// blacklist. Entries that normalize to nothing (pure punctuation) are
// dropped rather than rejected.
func NewModerator(censoredWords []string, censoredChar rune, log *slog.Logger) (*Moderator, error) {
	patterns := make([][]rune, 0, len(censoredWords))
	for _, word := range censoredWords {
		if norm := normalizeRunes([]rune(word)); len(norm) > 0 {
			patterns = append(patterns, norm)
		}
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	return &Moderator{matcher: m, censoredChar: censoredChar, log: log}, nil
}

// Review censors the text, detects its language and reports whether
// anything was masked. The returned text preserves the original length
// and spacing.
func (m *Moderator) Review(text string) (string, string, bool) {
	clean, matched := m.censor(text)
	lang := whatlanggo.Detect(text).Lang.Iso6393()

	if len(matched) > 0 {
		m.log.Debug("Blacklisted words masked", "count", len(matched), "lang", lang)
	}
	return clean, lang, len(matched) > 0
}

// censor replaces every span matching a blacklist entry with the
// replacement character and returns the masked words.
func (m *Moderator) censor(original string) (string, []string) {
	mapping := m.normalize(original)
	if len(mapping.normalized) == 0 {
		return original, nil
	}

	spans := m.matcher.MultiPatternSearch(mapping.normalized, false)
	if len(spans) == 0 {
		return original, nil
	}

	origRunes := []rune(original)
	var matched []string
	for _, span := range spans {
		normStart := span.Pos
		normEnd := normStart + len(span.Word)
		if normStart < 0 || normEnd > len(mapping.origIdx) {
			continue
		}

		origStart := mapping.origIdx[normStart]
		origEnd := mapping.origIdx[normEnd-1] + 1
		for i := origStart; i < origEnd; i++ {
			origRunes[i] = m.censoredChar
		}
		matched = append(matched, string(span.Word))
	}
	return string(origRunes), matched
}

// normalize produces the searchable view of the input and remembers which
// original rune each normalized rune came from, so censoring can mask the
// original spelling including its noise characters.
func (m *Moderator) normalize(input string) textMapping {
	origRunes := []rune(input)
	norm := make([]rune, 0, len(origRunes))
	origIdx := make([]int, 0, len(origRunes))

	for i, r := range origRunes {
		clean := simplifyRune(r)
		if isNoise(clean) {
			continue
		}
		norm = append(norm, unicode.ToLower(clean))
		origIdx = append(origIdx, i)
	}
	return textMapping{normalized: norm, origIdx: origIdx}
}

func normalizeRunes(input []rune) []rune {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		clean := simplifyRune(r)
		if isNoise(clean) {
			continue
		}
		out = append(out, unicode.ToLower(clean))
	}
	return out
}

// simplifyRune maps common leet speak substitutions back to their letter.
func simplifyRune(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3', '€':
		return 'e'
	case '1', '!', '|':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	default:
		return r
	}
}

// isNoise identifies characters ignored during pattern matching.
func isNoise(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
}
