// Package resource manages stateful, single-instance handles (models, VAD,
// diarizers) that need an explicit initialize/release pair.
package resource

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/obiente/translate/subtitler/internal/errdefs"
)

type State int

const (
	Uninitialized State = iota
	Ready
	Released
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Ready:
		return "ready"
	case Released:
		return "released"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Lifecycle guards one handle. Do holds the lock for the whole callback, so
// callers sharing a Lifecycle are serialized.
type Lifecycle struct {
	name    string
	init    func() error
	release func() error

	mu    sync.Mutex
	state State
}

// New builds a Lifecycle. Either hook may be nil.
func New(name string, init, release func() error) *Lifecycle {
	return &Lifecycle{name: name, init: init, release: release}
}

func (l *Lifecycle) Name() string { return l.name }

func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Initialize runs the init hook once. It is a no-op when already Ready and an
// error after Release.
func (l *Lifecycle) Initialize() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch l.state {
	case Ready:
		return nil
	case Released:
		return fmt.Errorf("%s: initialize after release: %w", l.name, errdefs.ErrNotInitialized)
	}
	if l.init != nil {
		if err := l.init(); err != nil {
			return fmt.Errorf("%s: initialize: %w", l.name, err)
		}
	}
	l.state = Ready
	log.Debug().Str("resource", l.name).Msg("resource: ready")
	return nil
}

// Release runs the release hook if the handle was Ready. Releasing twice is
// allowed.
func (l *Lifecycle) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != Ready {
		l.state = Released
		return nil
	}
	l.state = Released
	if l.release != nil {
		if err := l.release(); err != nil {
			return fmt.Errorf("%s: release: %w", l.name, err)
		}
	}
	log.Debug().Str("resource", l.name).Msg("resource: released")
	return nil
}

// Do runs fn with exclusive access to the handle. It fails with
// ErrNotInitialized unless the handle is Ready.
func (l *Lifecycle) Do(fn func() error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != Ready {
		return fmt.Errorf("%s is %s: %w", l.name, l.state, errdefs.ErrNotInitialized)
	}
	return fn()
}

// Scoped initializes l, runs fn and releases l on every exit path, panics
// included.
func Scoped(l *Lifecycle, fn func() error) (err error) {
	if err := l.Initialize(); err != nil {
		return err
	}
	defer func() {
		if rerr := l.Release(); rerr != nil && err == nil {
			err = rerr
		}
	}()
	return fn()
}
