package controller

import "sync/atomic"

// Mode is the derived display state. It is computed from the persisted
// session and never stored on its own.
type Mode int

const (
	LoggedOut Mode = iota
	LoggedIn
)

func (m Mode) String() string {
	switch m {
	case LoggedIn:
		return "logged-in"
	default:
		return "logged-out"
	}
}

// Event drives the session state machine.
type Event int

const (
	EventLoginSucceeded Event = iota
	EventLoginFailed
	EventLogout
	EventUnauthorized
	// EventGuardedAction is an add, complete or list attempted without a token.
	EventGuardedAction
)

func (e Event) String() string {
	switch e {
	case EventLoginSucceeded:
		return "login-succeeded"
	case EventLoginFailed:
		return "login-failed"
	case EventLogout:
		return "logout"
	case EventUnauthorized:
		return "unauthorized"
	case EventGuardedAction:
		return "guarded-action"
	default:
		return "unknown"
	}
}

// Transition returns the mode after e. Pairs not listed leave m unchanged.
//
//	LoggedOut --login succeeded--> LoggedIn
//	any       --login failed-----> LoggedOut
//	LoggedIn  --logout-----------> LoggedOut
//	LoggedIn  --unauthorized-----> LoggedOut
//	any       --guarded action---> LoggedOut (the token is already gone)
func Transition(m Mode, e Event) Mode {
	switch e {
	case EventLoginSucceeded:
		return LoggedIn
	case EventLoginFailed, EventGuardedAction:
		return LoggedOut
	case EventLogout, EventUnauthorized:
		if m == LoggedIn {
			return LoggedOut
		}
	}
	return m
}

// Action names a logical user action for request sequencing.
type Action int

const (
	ActionFetch Action = iota
	ActionAdd
	ActionComplete
	ActionLogin
	ActionRegister
	ActionLogout
	numActions
)

func (a Action) String() string {
	return [...]string{"fetch", "add", "complete", "login", "register", "logout"}[a]
}

// sequencer hands out monotonically increasing numbers per action. A response
// whose number is no longer the latest for its action has been superseded.
type sequencer struct {
	counters [numActions]atomic.Uint64
}

func (s *sequencer) next(a Action) uint64 {
	return s.counters[a].Add(1)
}

func (s *sequencer) superseded(a Action, seq uint64) bool {
	return s.counters[a].Load() != seq
}
