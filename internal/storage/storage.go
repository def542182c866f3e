// Package storage persists subtitle documents under opaque identifiers.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/obiente/translate/subtitler/internal/errdefs"
)

// ErrNotFound is returned by Read for an unknown identifier.
var ErrNotFound = errors.New("subtitle not found")

// Store is the persistence collaborator of a transcription job. Write must be
// all-or-nothing: a failed write never leaves partial content behind.
type Store interface {
	Write(ctx context.Context, id, content string) error
	// Read returns the stored content split on "\n"; joining the lines with
	// "\n" gives back exactly what was written.
	Read(ctx context.Context, id string) ([]string, error)
	Close() error
}

type Config struct {
	// Backend is "file" or "sqlite".
	Backend string
	Dir     string
	Path    string
}

func New(cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", "file":
		return NewFileStore(cfg.Dir)
	case "sqlite":
		return NewSQLiteStore(cfg.Path)
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", cfg.Backend)
	}
}

// ReadText reads id back as one string.
func ReadText(ctx context.Context, s Store, id string) (string, error) {
	lines, err := s.Read(ctx, id)
	if err != nil {
		return "", err
	}
	return strings.Join(lines, "\n"), nil
}

func validID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) || strings.ContainsRune(id, 0) {
		return errdefs.Formatf("storage", "invalid identifier %q", id)
	}
	return nil
}
