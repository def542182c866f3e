package translation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/obiente/translate/subtitler/internal/subtitle"
)

// Translator translates a batch of text blocks, one output per input.
type Translator interface {
	Translate(ctx context.Context, texts []string, source, target string) ([]string, error)
}

// Detector guesses the language code of text.
type Detector interface {
	Detect(ctx context.Context, text string) (string, error)
}

// Client talks to a LibreTranslate compatible server.
type Client struct {
	base    string
	http    *http.Client
	timeout time.Duration
}

func New(base string, timeoutSec int) *Client {
	if timeoutSec <= 0 {
		timeoutSec = 8
	}
	return &Client{
		base:    strings.TrimRight(base, "/"),
		http:    &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		timeout: time.Duration(timeoutSec) * time.Second,
	}
}

// Translate ships texts as one request, joined with the subtitle block
// delimiter, and splits the translated text back on it. A reply with a
// different number of blocks is returned as is; callers that restore blocks
// into a document check the count.
func (c *Client) Translate(ctx context.Context, texts []string, source, target string) ([]string, error) {
	if c == nil || c.base == "" {
		return nil, fmt.Errorf("translation: no server configured")
	}
	if len(texts) == 0 {
		return nil, nil
	}
	src := strings.TrimSpace(source)
	if src == "" {
		src = "auto"
	}

	var lr struct {
		TranslatedText   string   `json:"translatedText"`
		DetectedLanguage struct {
			Language string `json:"language"`
		} `json:"detectedLanguage"`
	}
	payload := map[string]any{
		"q":      strings.Join(texts, subtitle.BlockDelimiter),
		"source": src,
		"target": target,
		"format": "text",
	}
	if err := c.post(ctx, "/translate", payload, &lr); err != nil {
		return nil, fmt.Errorf("translate %s->%s: %w", src, target, err)
	}
	out := strings.Split(lr.TranslatedText, subtitle.BlockDelimiter)
	for i := range out {
		out[i] = strings.TrimSpace(out[i])
	}
	return out, nil
}

// Detect returns the most confident language LibreTranslate reports.
func (c *Client) Detect(ctx context.Context, text string) (string, error) {
	if c == nil || c.base == "" {
		return "", fmt.Errorf("translation: no server configured")
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("detect: empty text")
	}
	var res []struct {
		Language   string  `json:"language"`
		Confidence float64 `json:"confidence"`
	}
	if err := c.post(ctx, "/detect", map[string]any{"q": text}, &res); err != nil {
		return "", fmt.Errorf("detect: %w", err)
	}
	if len(res) == 0 {
		return "", fmt.Errorf("detect: no language returned")
	}
	best := res[0]
	for _, r := range res[1:] {
		if r.Confidence > best.Confidence {
			best = r
		}
	}
	return best.Language, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// TranslateSubtitle translates the spoken text of a subtitle document and
// keeps its index and timing lines untouched.
func TranslateSubtitle(ctx context.Context, t Translator, text, source, target string) (string, error) {
	return subtitle.RewriteContent(text, func(blocks []string) ([]string, error) {
		return t.Translate(ctx, blocks, source, target)
	})
}

// DetectSubtitle detects the language of a document's spoken text.
func DetectSubtitle(ctx context.Context, d Detector, text string) (string, error) {
	joined, err := subtitle.ParseContentBlocks(text)
	if err != nil {
		return "", err
	}
	return d.Detect(ctx, strings.Join(subtitle.SplitContentBlocks(joined), " "))
}
