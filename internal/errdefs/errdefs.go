// Package errdefs holds the error kinds shared across the pipeline.
package errdefs

import (
	"errors"
	"fmt"
)

var (
	// ErrFormat marks malformed input: odd-length PCM or subtitle text that
	// does not match the block grammar.
	ErrFormat = errors.New("format error")
	// ErrNotInitialized is returned when a model, VAD or diarization handle
	// is used before Initialize completed or after Release.
	ErrNotInitialized = errors.New("resource not initialized")
	// ErrSegmentInference wraps a single segment's recognizer failure.
	ErrSegmentInference = errors.New("segment inference failed")
	// ErrPersist wraps storage failures of the final document.
	ErrPersist = errors.New("persist failed")
)

// FormatError describes where and why input failed to parse.
type FormatError struct {
	Op   string
	Line int // 1-based, 0 when not line oriented
	Msg  string
}

func (e *FormatError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: line %d: %s", e.Op, e.Line, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Msg)
}

func (e *FormatError) Is(target error) bool { return target == ErrFormat }

// Formatf builds a FormatError without a line number.
func Formatf(op, format string, args ...any) error {
	return &FormatError{Op: op, Msg: fmt.Sprintf(format, args...)}
}
