package subtitle

import (
	"errors"
	"strings"
	"testing"

	"github.com/obiente/translate/subtitler/internal/errdefs"
)

const scenario = "1\n00:00:00,000 --> 00:00:02,000\nHello world\n\n2\n00:00:02,000 --> 00:00:04,000\nBye\n"

func TestFormatTimestamp(t *testing.T) {
	for _, tt := range []struct {
		in   float64
		want string
	}{
		{0, "00:00:00,000"},
		{3661.5, "01:01:01,500"},
		{59.9996, "00:01:00,000"},
		{0.001, "00:00:00,001"},
		{-3, "00:00:00,000"},
		{360000, "100:00:00,000"},
	} {
		if got := FormatTimestamp(tt.in); got != tt.want {
			t.Errorf("FormatTimestamp(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseTimestamp(t *testing.T) {
	got, err := ParseTimestamp("01:01:01,500")
	if err != nil || got != 3661.5 {
		t.Fatalf("got %v, %v", got, err)
	}
	for _, bad := range []string{"1:01:01,500", "00:61:00,000", "00:00:00.000", ""} {
		if _, err := ParseTimestamp(bad); !errors.Is(err, errdefs.ErrFormat) {
			t.Errorf("ParseTimestamp(%q) err = %v", bad, err)
		}
	}
}

func TestSerialize(t *testing.T) {
	doc := Document{Entries: []Entry{
		{Index: 1, Start: 0, End: 2, Text: "Hello world"},
		{Index: 2, Start: 2, End: 4, Text: "Bye", Speaker: 2},
	}}
	want := "1\n00:00:00,000 --> 00:00:02,000\nHello world\n\n2\n00:00:02,000 --> 00:00:04,000\n[Speaker 2] Bye\n\n"
	if got := Serialize(doc); got != want {
		t.Fatalf("got %q\nwant %q", got, want)
	}
}

func TestParseSerializeRoundTrip(t *testing.T) {
	doc := Document{Entries: []Entry{
		{Index: 1, Start: 0.25, End: 1.75, Text: "first line\nsecond line"},
		{Index: 2, Start: 2, End: 3.5, Text: "next", Speaker: 1},
	}}
	got, err := Parse(Serialize(doc))
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Entries) != 2 {
		t.Fatalf("entries = %d", len(got.Entries))
	}
	for i := range doc.Entries {
		if got.Entries[i] != doc.Entries[i] {
			t.Errorf("entry %d = %+v, want %+v", i, got.Entries[i], doc.Entries[i])
		}
	}
}

func TestParseMalformed(t *testing.T) {
	for name, text := range map[string]string{
		"missing index":  "00:00:00,000 --> 00:00:02,000\nHi\n",
		"bad header":     "1\n00:00:00.000 -> 00:00:02,000\nHi\n",
		"truncated":      "1\n",
		"header as text": "1\nHello\n",
	} {
		t.Run(name, func(t *testing.T) {
			var fe *errdefs.FormatError
			_, err := Parse(text)
			if !errors.As(err, &fe) || !errors.Is(err, errdefs.ErrFormat) {
				t.Fatalf("err = %v", err)
			}
			if fe.Line == 0 {
				t.Error("missing line number")
			}
		})
	}
}

func TestParseContentBlocksScenario(t *testing.T) {
	got, err := ParseContentBlocks(scenario)
	if err != nil {
		t.Fatal(err)
	}
	if got != "Hello world@Bye" {
		t.Fatalf("got %q", got)
	}
	restored, err := RestoreContentBlocks(scenario, SplitContentBlocks("안녕@잘가"))
	if err != nil {
		t.Fatal(err)
	}
	want := "1\n00:00:00,000 --> 00:00:02,000\n안녕\n\n2\n00:00:02,000 --> 00:00:04,000\n잘가\n"
	if restored != want {
		t.Fatalf("got %q\nwant %q", restored, want)
	}
}

func TestRestoreRoundTripExact(t *testing.T) {
	docs := []string{
		scenario,
		Serialize(Document{Entries: []Entry{{Index: 1, End: 1, Text: "a"}, {Index: 2, Start: 1, End: 2, Text: "b"}, {Index: 3, Start: 2, End: 3, Text: "c"}}}),
		"1\r\n00:00:00,000 --> 00:00:01,000\r\nwindows\r\n\r\n2\r\n00:00:01,000 --> 00:00:02,000\r\nline endings\r\n",
		"1\n00:00:00,000 --> 00:00:02,000\nmail me at a@b.com\n\n2\n00:00:02,000 --> 00:00:03,000\n@@ twice\n",
	}
	for _, doc := range docs {
		blocks, err := ParseContentBlocks(doc)
		if err != nil {
			t.Fatal(err)
		}
		got, err := RestoreContentBlocks(doc, SplitContentBlocks(blocks))
		if err != nil {
			t.Fatal(err)
		}
		if got != doc {
			t.Errorf("round trip changed document:\n%q\n%q", doc, got)
		}
	}
}

func TestContentBlocksCollapseMultiline(t *testing.T) {
	doc := "1\n00:00:00,000 --> 00:00:02,000\nline one\n  line two \n\n2\n00:00:02,000 --> 00:00:03,000\nuser@example.com\n"
	got, err := ParseContentBlocks(doc)
	if err != nil {
		t.Fatal(err)
	}
	parts := SplitContentBlocks(got)
	if len(parts) != 2 || parts[0] != "line one line two" || !strings.Contains(parts[1], "example.com") {
		t.Fatalf("got %q", got)
	}
}

func TestRestoreFewerBlocksFillsEmpty(t *testing.T) {
	got, err := RestoreContentBlocks(scenario, []string{"Hallo Welt"})
	if err != nil {
		t.Fatal(err)
	}
	doc, err := Parse(got)
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Entries) != 2 || doc.Entries[0].Text != "Hallo Welt" || doc.Entries[1].Text != "" {
		t.Fatalf("entries = %+v", doc.Entries)
	}
	if doc.Entries[1].Start != 2 || doc.Entries[1].End != 4 {
		t.Errorf("header of empty block changed: %+v", doc.Entries[1])
	}
}

func TestRestoreStrictRejectsCountMismatch(t *testing.T) {
	if _, err := RestoreContentBlocksStrict(scenario, []string{"only one"}); !errors.Is(err, errdefs.ErrFormat) {
		t.Fatalf("err = %v", err)
	}
	if _, err := RestoreContentBlocksStrict(scenario, []string{"a", "b"}); err != nil {
		t.Fatal(err)
	}
}

func TestRewriteContent(t *testing.T) {
	got, err := RewriteContent(scenario, func(blocks []string) ([]string, error) {
		out := make([]string, len(blocks))
		for i, b := range blocks {
			out[i] = strings.ToUpper(b)
		}
		return out, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "\nHELLO WORLD\n") || !strings.Contains(got, "\nBYE\n") {
		t.Fatalf("got %q", got)
	}

	_, err = RewriteContent(scenario, func(blocks []string) ([]string, error) {
		return blocks[:1], nil
	})
	if !errors.Is(err, errdefs.ErrFormat) {
		t.Fatalf("err = %v", err)
	}
}

func TestRewriteContentKeepsAtSign(t *testing.T) {
	doc := "1\n00:00:00,000 --> 00:00:02,000\nmail me at a@b.com\n\n2\n00:00:02,000 --> 00:00:03,000\nok\n"
	var seen []string
	got, err := RewriteContent(doc, func(blocks []string) ([]string, error) {
		seen = blocks
		return blocks, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(seen) != 2 {
		t.Fatalf("blocks = %q", seen)
	}
	if got != doc {
		t.Fatalf("got %q\nwant %q", got, doc)
	}
}

func TestRewriteContentHoldsBackSpeakerLabels(t *testing.T) {
	doc := Serialize(Document{Entries: []Entry{
		{Index: 1, End: 1, Text: "hello", Speaker: 1},
		{Index: 2, Start: 1, End: 2, Text: "hi there", Speaker: 2},
		{Index: 3, Start: 2, End: 3, Text: "no label"},
	}})
	var seen []string
	got, err := RewriteContent(doc, func(blocks []string) ([]string, error) {
		seen = append([]string(nil), blocks...)
		out := make([]string, len(blocks))
		for i, b := range blocks {
			out[i] = strings.ToUpper(b)
		}
		return out, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, b := range seen {
		if strings.Contains(b, "Speaker") {
			t.Errorf("label passed to rewrite: %q", b)
		}
	}
	parsed, err := Parse(got)
	if err != nil {
		t.Fatal(err)
	}
	want := []Entry{
		{Index: 1, End: 1, Text: "HELLO", Speaker: 1},
		{Index: 2, Start: 1, End: 2, Text: "HI THERE", Speaker: 2},
		{Index: 3, Start: 2, End: 3, Text: "NO LABEL"},
	}
	for i, w := range want {
		if parsed.Entries[i] != w {
			t.Errorf("entry %d = %+v, want %+v", i, parsed.Entries[i], w)
		}
	}
}
