// Package punctuate restores sentence casing and terminal punctuation in
// recognizer output, which usually arrives as bare lowercase words.
package punctuate

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/obiente/translate/subtitler/internal/subtitle"
)

// Punctuator rewrites a batch of text blocks, one output per input.
type Punctuator interface {
	Punctuate(ctx context.Context, blocks []string) ([]string, error)
}

// Rules capitalizes the first letter of each block and the first letter
// after a sentence end, and closes blocks that end mid-sentence with a
// period.
type Rules struct{}

func (Rules) Punctuate(_ context.Context, blocks []string) ([]string, error) {
	out := make([]string, len(blocks))
	for i, b := range blocks {
		out[i] = punctuate(b)
	}
	return out, nil
}

// Subtitle applies p to every content block of a subtitle document.
func Subtitle(ctx context.Context, p Punctuator, text string) (string, error) {
	return subtitle.RewriteContent(text, func(blocks []string) ([]string, error) {
		return p.Punctuate(ctx, blocks)
	})
}

func punctuate(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return s
	}
	var b strings.Builder
	upper := true
	for _, r := range s {
		if upper && unicode.IsLetter(r) {
			r = unicode.ToUpper(r)
			upper = false
		} else if unicode.IsLetter(r) || unicode.IsDigit(r) {
			upper = false
		}
		if isSentenceEnd(r) {
			upper = true
		}
		b.WriteRune(r)
	}
	out := b.String()
	last, _ := utf8.DecodeLastRuneInString(out)
	if unicode.IsLetter(last) || unicode.IsDigit(last) {
		if hasCJK(out) {
			out += "。"
		} else {
			out += "."
		}
	}
	return out
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？':
		return true
	}
	return false
}

func hasCJK(s string) bool {
	for _, r := range s {
		if unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana) {
			return true
		}
	}
	return false
}
