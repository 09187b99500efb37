package provisioning

import (
	"fmt"
	"slices"
)

// State is a step of the provisioning saga.
type State string

const (
	StateUnknown State = ""

	StateValidating        State = "validating"
	StateAuthorizing       State = "authorizing"
	StateCreatingPrincipal State = "creating_principal"
	StateWritingDirectory  State = "writing_directory"
	StateCompensating      State = "compensating_after_directory_failure"

	// terminal states
	StateSuccess                State = "success"
	StateReplayed               State = "replayed"
	StateValidationFailed       State = "validation_failed"
	StateAuthorizationFailed    State = "authorization_failed"
	StateIdempotencyRejected    State = "idempotency_rejected"
	StateIdentityCreationFailed State = "identity_creation_failed"
	StateCompensatedFailure     State = "compensated_failure"
	StateUncompensatedFailure   State = "uncompensated_failure"
)

// transitions lists the legal successors of every non-terminal state. The saga
// never moves backwards.
var transitions = map[State][]State{
	StateValidating:        {StateAuthorizing, StateValidationFailed},
	StateAuthorizing:       {StateCreatingPrincipal, StateAuthorizationFailed, StateIdempotencyRejected, StateReplayed},
	StateCreatingPrincipal: {StateWritingDirectory, StateIdentityCreationFailed},
	StateWritingDirectory:  {StateSuccess, StateCompensating},
	StateCompensating:      {StateCompensatedFailure, StateUncompensatedFailure},
}

// IsTerminal returns true for states the saga finishes in.
func (s State) IsTerminal() bool {
	_, ok := transitions[s]
	return !ok && s != StateUnknown
}

func (s State) String() string {
	return string(s)
}

// CanTransition reports whether the saga may move from one state to another.
func CanTransition(from, to State) bool {
	return slices.Contains(transitions[from], to)
}

// saga tracks the state of a single provisioning request. It is owned by one
// goroutine.
type saga struct {
	state   State
	history []State
}

func newSaga() *saga {
	return &saga{state: StateValidating, history: []State{StateValidating}}
}

// advance moves to the next state. An illegal transition is a bug in the
// orchestrator and panics.
func (s *saga) advance(to State) {
	if !CanTransition(s.state, to) {
		panic(fmt.Sprintf("provisioning: illegal saga transition %s -> %s", s.state, to))
	}
	s.state = to
	s.history = append(s.history, to)
}
