package transcript

import "fmt"

// State is the engine's position in its job cycle.
type State int

const (
	Idle State = iota
	Loading
	Ready
	Processing
	Finalizing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Processing:
		return "processing"
	case Finalizing:
		return "finalizing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}
