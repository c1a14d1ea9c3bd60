package tx

import (
	"context"
	"errors"
	"fmt"

	"github.com/looplab/fsm"
)

// State is the stage a transaction has reached.
type State string

const (
	StatePrepared    State = "prepared"
	StateSigned      State = "signed"
	StateSubmitted   State = "submitted"
	StateIncluded    State = "included"
	StateConflicting State = "conflicting"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateIncluded || s == StateConflicting
}

// Lifecycle events.
const (
	EventSign     = "sign"
	EventSubmit   = "submit"
	EventReissue  = "reissue"
	EventInclude  = "include"
	EventConflict = "conflict"
)

var lifecycleEvents = fsm.Events{
	{Name: EventSign, Src: []string{string(StatePrepared)}, Dst: string(StateSigned)},
	{Name: EventSubmit, Src: []string{string(StateSigned)}, Dst: string(StateSubmitted)},
	{Name: EventReissue, Src: []string{string(StateSubmitted)}, Dst: string(StateSubmitted)},
	{Name: EventInclude, Src: []string{string(StateSubmitted)}, Dst: string(StateIncluded)},
	{Name: EventConflict, Src: []string{string(StateSubmitted)}, Dst: string(StateConflicting)},
}

// Lifecycle tracks one transaction through
// prepared → signed → submitted → included | conflicting.
// A timed-out inclusion wait is not a state: the transaction stays
// submitted and may be reissued in a fresh block.
type Lifecycle struct {
	machine *fsm.FSM
}

// NewLifecycle starts a lifecycle in state s.
func NewLifecycle(s State) *Lifecycle {
	return &Lifecycle{machine: fsm.NewFSM(string(s), lifecycleEvents, fsm.Callbacks{})}
}

// State returns the current state.
func (l *Lifecycle) State() State {
	return State(l.machine.Current())
}

// Can reports whether event is allowed now.
func (l *Lifecycle) Can(event string) bool {
	return l.machine.Can(event)
}

// Fire applies event. Self-transitions such as reissue succeed.
func (l *Lifecycle) Fire(ctx context.Context, event string) error {
	err := l.machine.Event(ctx, event)
	var noTransition fsm.NoTransitionError
	if err == nil || (errors.As(err, &noTransition) && noTransition.Err == nil) {
		return nil
	}
	return fmt.Errorf("%w: %s in state %s: %w", ErrInvalidTransition, event, l.State(), err)
}
