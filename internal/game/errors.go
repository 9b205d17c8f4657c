package game

import "fmt"

// IllegalActionError rejects an action that is not in the current legal
// set. The round state is untouched; the caller should refetch a snapshot
// and resubmit.
type IllegalActionError struct {
	Action Action
	Reason string
}

func (e *IllegalActionError) Error() string {
	return fmt.Sprintf("illegal action %s: %s", e.Action, e.Reason)
}

// StaleActionError rejects an out-of-order or replayed action. Turn is
// the counter the round expects next; Got is what the caller sent. No
// state is mutated.
type StaleActionError struct {
	Turn uint64
	Got  uint64
}

func (e *StaleActionError) Error() string {
	return fmt.Sprintf("stale action: round is at turn %d, request carried turn %d", e.Turn, e.Got)
}

// PhaseError rejects an operation attempted in the wrong round phase,
// such as dealing before commitments are exchanged.
type PhaseError struct {
	Op    string
	Phase Phase
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("cannot %s while round is %s", e.Op, e.Phase)
}
