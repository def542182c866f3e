//go:build !whisper_cpp

package stt

import "fmt"

// Default stub (no cgo) so the project builds without the whisper_cpp tag.
func newWhisper(cfg Config) (Recognizer, error) {
	return nil, fmt.Errorf("whisper (model %s): built without whisper_cpp tag: %w", cfg.ModelPath, ErrUnavailable)
}
