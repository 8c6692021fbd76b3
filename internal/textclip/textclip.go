// Package textclip shortens text to a character budget counted in runes.
package textclip

import (
	"strings"
	"unicode/utf8"

	"github.com/ikawaha/kagome-dict/ipa"
	"github.com/ikawaha/kagome/v2/tokenizer"
)

// Clipper cuts s so that it holds at most budget runes.
type Clipper interface {
	Clip(s string, budget int) string
}

// Runes cuts on the exact rune boundary.
type Runes struct{}

// Clip implements Clipper.
func (Runes) Clip(s string, budget int) string {
	if budget <= 0 || utf8.RuneCountInString(s) <= budget {
		return s
	}
	n := 0
	for i := range s {
		if n == budget {
			return s[:i]
		}
		n++
	}
	return s
}

// Morphemes cuts Japanese text on the last morpheme that still fits,
// so words are not split in half. It falls back to Runes.
type Morphemes struct {
	tok *tokenizer.Tokenizer
}

// NewMorphemes loads the IPA dictionary.
func NewMorphemes() (*Morphemes, error) {
	tok, err := tokenizer.New(ipa.Dict(), tokenizer.OmitBosEos())
	if err != nil {
		return nil, err
	}
	return &Morphemes{tok: tok}, nil
}

// Clip implements Clipper.
func (m *Morphemes) Clip(s string, budget int) string {
	if budget <= 0 || utf8.RuneCountInString(s) <= budget {
		return s
	}

	cut, pos := 0, 0
	for _, surface := range m.tok.Wakati(s) {
		idx := strings.Index(s[pos:], surface)
		if idx < 0 {
			break
		}
		end := pos + idx + len(surface)
		if utf8.RuneCountInString(s[:end]) > budget {
			break
		}
		cut, pos = end, end
	}

	if cut == 0 {
		return Runes{}.Clip(s, budget)
	}
	return strings.TrimRight(s[:cut], " ")
}
