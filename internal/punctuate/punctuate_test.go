package punctuate

import (
	"context"
	"strings"
	"testing"
)

func TestRules(t *testing.T) {
	for _, tt := range []struct{ in, want string }{
		{"hello world", "Hello world."},
		{"  hello   there. how are you ", "Hello there. How are you."},
		{"is it? yes", "Is it? Yes."},
		{"already done!", "Already done!"},
		{"42 apples", "42 apples."},
		{"こんにちは", "こんにちは。"},
		{"", ""},
	} {
		got, err := Rules{}.Punctuate(context.Background(), []string{tt.in})
		if err != nil {
			t.Fatal(err)
		}
		if got[0] != tt.want {
			t.Errorf("punctuate(%q) = %q, want %q", tt.in, got[0], tt.want)
		}
	}
}

func TestSubtitlePass(t *testing.T) {
	doc := "1\n00:00:00,000 --> 00:00:02,000\nhello world\n\n2\n00:00:02,000 --> 00:00:04,000\nbye\n"
	got, err := Subtitle(context.Background(), Rules{}, doc)
	if err != nil {
		t.Fatal(err)
	}
	want := "1\n00:00:00,000 --> 00:00:02,000\nHello world.\n\n2\n00:00:02,000 --> 00:00:04,000\nBye.\n"
	if got != want {
		t.Fatalf("got %q", got)
	}
	if !strings.HasPrefix(got, "1\n00:00:00,000") {
		t.Error("header changed")
	}
}
