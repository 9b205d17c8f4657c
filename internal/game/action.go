package game

import (
	"encoding/json"
	"fmt"
)

// Action is a player move against the active hand
type Action int

const (
	Hit Action = iota
	Stand
	Double
	Split
)

// String returns the wire name of the action
func (a Action) String() string {
	switch a {
	case Hit:
		return "hit"
	case Stand:
		return "stand"
	case Double:
		return "double"
	case Split:
		return "split"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// ParseAction converts a wire name into an Action
func ParseAction(s string) (Action, error) {
	switch s {
	case "hit":
		return Hit, nil
	case "stand":
		return Stand, nil
	case "double":
		return Double, nil
	case "split":
		return Split, nil
	default:
		return 0, fmt.Errorf("unknown action %q", s)
	}
}

// MarshalJSON encodes the action by its wire name
func (a Action) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON decodes the action from its wire name
func (a *Action) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseAction(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Legal is the set of actions currently available to the active hand.
// The four flags are not mutually exclusive.
type Legal struct {
	Hit    bool `json:"hit"`
	Stand  bool `json:"stand"`
	Double bool `json:"double"`
	Split  bool `json:"split"`
}

// Allows reports whether the given action is in the legal set
func (l Legal) Allows(a Action) bool {
	switch a {
	case Hit:
		return l.Hit
	case Stand:
		return l.Stand
	case Double:
		return l.Double
	case Split:
		return l.Split
	default:
		return false
	}
}

// HandStatus is the per-hand state machine position
type HandStatus int

const (
	StatusActive HandStatus = iota
	StatusStanding
	StatusBusted
	StatusDoubledStanding
)

// String returns the wire name of the status
func (s HandStatus) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusStanding:
		return "standing"
	case StatusBusted:
		return "busted"
	case StatusDoubledStanding:
		return "doubled_standing"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Terminal reports whether the hand can take no further action
func (s HandStatus) Terminal() bool {
	return s != StatusActive
}
