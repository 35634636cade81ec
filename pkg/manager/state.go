package manager

import "fmt"

// State is the lifecycle state of a Manager.
//
//	Closed -> Opening -> Validating -> Open -> Closing -> Closed
//
// OpenFailed and ValidationFailed end a failed attempt; the manager passes
// through them back to Closed.
type State int32

const (
	StateClosed State = iota
	StateOpening
	StateValidating
	StateOpen
	StateClosing
	StateOpenFailed
	StateValidationFailed
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpening:
		return "opening"
	case StateValidating:
		return "validating"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateOpenFailed:
		return "open-failed"
	case StateValidationFailed:
		return "validation-failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
