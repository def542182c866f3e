package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/obiente/translate/subtitler/internal/audio"
)

// HTTPRecognizer posts each segment as a WAV file to an OpenAI-compatible
// /v1/audio/transcriptions endpoint.
type HTTPRecognizer struct {
	url    string
	model  string
	apiKey string
	lang   string
	http   *http.Client
}

func NewHTTP(cfg Config) (*HTTPRecognizer, error) {
	if cfg.HTTPURL == "" {
		return nil, fmt.Errorf("stt http: empty endpoint url")
	}
	lang := cfg.Language
	if lang == "auto" {
		lang = ""
	}
	return &HTTPRecognizer{
		url:    cfg.HTTPURL,
		model:  cfg.HTTPModel,
		apiKey: cfg.APIKey,
		lang:   lang,
		http:   &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (h *HTTPRecognizer) Name() string { return "http" }
func (h *HTTPRecognizer) Close() error {
	h.http.CloseIdleConnections()
	return nil
}

func (h *HTTPRecognizer) Recognize(ctx context.Context, in Input) (string, error) {
	wav, err := audio.EncodeWAV(in.Samples, audio.TargetSampleRate)
	if err != nil {
		return "", err
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "segment.wav")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(wav); err != nil {
		return "", err
	}
	if h.model != "" {
		_ = writer.WriteField("model", h.model)
	}
	_ = writer.WriteField("response_format", "json")
	if h.lang != "" {
		_ = writer.WriteField("language", h.lang)
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if h.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.apiKey)
	}

	resp, err := h.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("stt http %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("stt response parse error: %w", err)
	}
	return strings.TrimSpace(out.Text), nil
}
