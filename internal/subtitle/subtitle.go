// Package subtitle reads and writes the numbered subtitle block format:
//
//	1
//	00:00:00,000 --> 00:00:02,000
//	text
//
// and extracts or restores just the spoken text of a document so it can go
// through per-line services such as translation.
package subtitle

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/obiente/translate/subtitler/internal/errdefs"
)

// Entry is one subtitle block. Start and End are seconds.
type Entry struct {
	Index int
	Start float64
	End   float64
	Text  string
	// Speaker is 1-based; 0 means no speaker label.
	Speaker int
}

type Document struct {
	Entries []Entry
}

func (d Document) String() string { return Serialize(d) }

var (
	reIndex   = regexp.MustCompile(`^\d+$`)
	reHeader  = regexp.MustCompile(`^(\d{2,}:\d{2}:\d{2},\d{3}) --> (\d{2,}:\d{2}:\d{2},\d{3})$`)
	reStamp   = regexp.MustCompile(`^(\d{2,}):(\d{2}):(\d{2}),(\d{3})$`)
	reSpeaker = regexp.MustCompile(`^\[Speaker (\d+)\] `)
)

// Serialize renders d. Entries with a speaker get a "[Speaker N] " prefix.
func Serialize(d Document) string {
	var b strings.Builder
	for _, e := range d.Entries {
		fmt.Fprintf(&b, "%d\n%s --> %s\n", e.Index, FormatTimestamp(e.Start), FormatTimestamp(e.End))
		if e.Speaker > 0 {
			fmt.Fprintf(&b, "[Speaker %d] ", e.Speaker)
		}
		b.WriteString(e.Text)
		b.WriteString("\n\n")
	}
	return b.String()
}

// Parse reads a full document. Multi-line text is kept with "\n".
func Parse(text string) (Document, error) {
	lines, blocks, err := scan(text)
	if err != nil {
		return Document{}, err
	}
	doc := Document{Entries: make([]Entry, 0, len(blocks))}
	for _, bl := range blocks {
		idx, _ := strconv.Atoi(strings.TrimSpace(lines[bl.index]))
		m := reHeader.FindStringSubmatch(strings.TrimSpace(lines[bl.index+1]))
		start, _ := ParseTimestamp(m[1])
		end, _ := ParseTimestamp(m[2])
		body := make([]string, 0, bl.textEnd-bl.textStart)
		for _, l := range lines[bl.textStart:bl.textEnd] {
			body = append(body, strings.TrimRight(l, "\r"))
		}
		e := Entry{Index: idx, Start: start, End: end, Text: strings.Join(body, "\n")}
		if sm := reSpeaker.FindStringSubmatch(e.Text); sm != nil {
			e.Speaker, _ = strconv.Atoi(sm[1])
			e.Text = e.Text[len(sm[0]):]
		}
		doc.Entries = append(doc.Entries, e)
	}
	return doc, nil
}

// FormatTimestamp renders seconds as HH:MM:SS,mmm. Negative input clamps to
// zero; hours widen past two digits when needed.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	ms := int64(math.Round(seconds * 1000))
	h := ms / 3_600_000
	m := ms / 60_000 % 60
	s := ms / 1000 % 60
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms%1000)
}

// ParseTimestamp is the inverse of FormatTimestamp.
func ParseTimestamp(s string) (float64, error) {
	m := reStamp.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, errdefs.Formatf("parse timestamp", "%q is not HH:MM:SS,mmm", s)
	}
	h, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	sec, _ := strconv.Atoi(m[3])
	ms, _ := strconv.Atoi(m[4])
	if min > 59 || sec > 59 {
		return 0, errdefs.Formatf("parse timestamp", "%q out of range", s)
	}
	return float64(h*3600+min*60+sec) + float64(ms)/1000, nil
}

// block holds line offsets into the split document.
type block struct {
	index     int // index line; the header follows it
	textStart int
	textEnd   int // exclusive
}

func scan(text string) ([]string, []block, error) {
	text = strings.TrimPrefix(text, "\ufeff")
	lines := strings.Split(text, "\n")
	var blocks []block
	i := 0
	for i < len(lines) {
		if strings.TrimSpace(lines[i]) == "" {
			i++
			continue
		}
		if !reIndex.MatchString(strings.TrimSpace(lines[i])) {
			return nil, nil, &errdefs.FormatError{Op: "parse subtitle", Line: i + 1, Msg: fmt.Sprintf("expected block index, got %q", lines[i])}
		}
		if i+1 >= len(lines) || !reHeader.MatchString(strings.TrimSpace(lines[i+1])) {
			return nil, nil, &errdefs.FormatError{Op: "parse subtitle", Line: i + 2, Msg: "expected \"HH:MM:SS,mmm --> HH:MM:SS,mmm\""}
		}
		bl := block{index: i, textStart: i + 2}
		j := i + 2
		for j < len(lines) && strings.TrimSpace(lines[j]) != "" {
			j++
		}
		bl.textEnd = j
		blocks = append(blocks, bl)
		i = j
	}
	return lines, blocks, nil
}
