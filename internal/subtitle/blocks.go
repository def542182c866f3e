package subtitle

import (
	"strings"

	"github.com/obiente/translate/subtitler/internal/errdefs"
)

// BlockDelimiter joins content blocks for services that take one string.
const BlockDelimiter = "@"

// delimiterEscape replaces a literal delimiter inside spoken text so it
// cannot split a block in two. RestoreContentBlocks turns it back.
const delimiterEscape = "＠"

// ParseContentBlocks returns only the spoken text of a document: each
// block's lines collapsed to one line, blocks joined by BlockDelimiter.
func ParseContentBlocks(text string) (string, error) {
	lines, blocks, err := scan(text)
	if err != nil {
		return "", err
	}
	parts := make([]string, len(blocks))
	for i, bl := range blocks {
		body := make([]string, 0, bl.textEnd-bl.textStart)
		for _, l := range lines[bl.textStart:bl.textEnd] {
			if l = strings.TrimSpace(l); l != "" {
				body = append(body, l)
			}
		}
		parts[i] = strings.ReplaceAll(strings.Join(body, " "), BlockDelimiter, delimiterEscape)
	}
	return strings.Join(parts, BlockDelimiter), nil
}

// SplitContentBlocks undoes the join done by ParseContentBlocks.
func SplitContentBlocks(s string) []string {
	return strings.Split(s, BlockDelimiter)
}

// RestoreContentBlocks puts replacement text back under the original index
// and timing lines, which are copied untouched. Missing trailing
// replacements leave their blocks with empty text; extra ones are ignored.
func RestoreContentBlocks(original string, replacements []string) (string, error) {
	lines, blocks, err := scan(original)
	if err != nil {
		return "", err
	}
	hadBOM := strings.HasPrefix(original, "\ufeff")

	out := make([]string, 0, len(lines))
	prev := 0
	for i, bl := range blocks {
		out = append(out, lines[prev:bl.textStart]...)
		var repl string
		if i < len(replacements) {
			repl = strings.ReplaceAll(strings.TrimSpace(replacements[i]), delimiterEscape, BlockDelimiter)
		}
		if repl != "" {
			if crlf(lines[bl.index]) {
				repl += "\r"
			}
			out = append(out, repl)
		}
		prev = bl.textEnd
	}
	out = append(out, lines[prev:]...)

	s := strings.Join(out, "\n")
	if hadBOM {
		s = "\ufeff" + s
	}
	return s, nil
}

// RestoreContentBlocksStrict is RestoreContentBlocks that refuses a
// replacement count different from the document's block count.
func RestoreContentBlocksStrict(original string, replacements []string) (string, error) {
	_, blocks, err := scan(original)
	if err != nil {
		return "", err
	}
	if len(blocks) != len(replacements) {
		return "", errdefs.Formatf("restore content blocks", "document has %d blocks, got %d replacements", len(blocks), len(replacements))
	}
	return RestoreContentBlocks(original, replacements)
}

func crlf(line string) bool { return strings.HasSuffix(line, "\r") }

// RewriteContent runs fn over the document's content blocks and restores the
// result under the original headers. fn must return one block per input
// block; a different count is a FormatError rather than silent loss.
// Speaker labels are held back from fn and put in front of its output.
func RewriteContent(text string, fn func(blocks []string) ([]string, error)) (string, error) {
	joined, err := ParseContentBlocks(text)
	if err != nil {
		return "", err
	}
	if joined == "" {
		return text, nil
	}
	blocks := SplitContentBlocks(joined)
	labels := make([]string, len(blocks))
	for i, b := range blocks {
		if m := reSpeaker.FindString(b); m != "" {
			labels[i] = m
			blocks[i] = b[len(m):]
		}
	}
	out, err := fn(blocks)
	if err != nil {
		return "", err
	}
	if len(out) == len(labels) {
		for i, l := range labels {
			if l != "" {
				out[i] = l + strings.TrimSpace(out[i])
			}
		}
	}
	return RestoreContentBlocksStrict(text, out)
}
