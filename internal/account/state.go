package account

import (
	"errors"
	"fmt"
	"sync"

	"reasy/internal/model"
)

// State is one step of a login or sign up attempt: Initial, Loading,
// Success or Error.
type State interface {
	Name() string
	isState()
}

type Initial struct{}

type Loading struct{}

type Success struct {
	User *model.User
}

type Error struct {
	Message string
	Err     error
}

func (Initial) Name() string { return "initial" }
func (Loading) Name() string { return "loading" }
func (Success) Name() string { return "success" }
func (Error) Name() string { return "error" }

func (Initial) isState() {}
func (Loading) isState() {}
func (Success) isState() {}
func (Error) isState() {}

// Unwrap exposes the cause so callers can match it with errors.Is.
func (e Error) Unwrap() error { return e.Err }

func (e Error) Error() string { return e.Message }

// ErrBadTransition is returned when a flow step is not allowed.
var ErrBadTransition = errors.New("state transition not allowed")

var transitions = map[string][]string{
	"initial": {"loading"},
	"loading": {"success", "error"},
	"success": {"loading", "initial"},
	"error":   {"loading", "initial"},
}

func canTransition(from, to State) bool {
	for _, next := range transitions[from.Name()] {
		if next == to.Name() {
			return true
		}
	}
	return false
}

// Flow drives one form (login or sign up) through its states and notifies
// subscribers on each change.
type Flow struct {
	mu        sync.Mutex
	state     State
	listeners []func(State)
	prefix    string
}

// NewLoginFlow reports unexpected failures as "Login failed: ...".
func NewLoginFlow() *Flow { return &Flow{state: Initial{}, prefix: "Login failed"} }

// NewSignUpFlow reports unexpected failures as "Sign up failed: ...".
func NewSignUpFlow() *Flow { return &Flow{state: Initial{}, prefix: "Sign up failed"} }

// State returns the current state.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Subscribe registers fn for every later state change.
func (f *Flow) Subscribe(fn func(State)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners = append(f.listeners, fn)
}

// Reset returns a finished flow to Initial.
func (f *Flow) Reset() error {
	return f.set(Initial{})
}

// Run moves to Loading, calls attempt and settles on Success or Error.
// Calling Run while another attempt is loading fails with ErrBadTransition.
func (f *Flow) Run(attempt func() (*model.User, error)) (State, error) {
	if err := f.set(Loading{}); err != nil {
		return f.State(), err
	}

	user, err := attempt()
	var next State = Success{User: user}
	if err != nil {
		next = Error{Message: f.message(err), Err: err}
	}
	if err := f.set(next); err != nil {
		return f.State(), err
	}
	return next, nil
}

func (f *Flow) set(to State) error {
	f.mu.Lock()
	if !canTransition(f.state, to) {
		from := f.state
		f.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrBadTransition, from.Name(), to.Name())
	}
	f.state = to
	listeners := append([]func(State)(nil), f.listeners...)
	f.mu.Unlock()

	for _, fn := range listeners {
		fn(to)
	}
	return nil
}

// message turns an attempt error into the text shown to the user.
func (f *Flow) message(err error) string {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid username or password"
	case errors.Is(err, ErrRoleMismatch):
		return "Invalid user type for selected login mode"
	case errors.Is(err, ErrUsernameTaken):
		return "Username already exists"
	case errors.Is(err, ErrPasswordMismatch):
		return "Passwords do not match"
	case errors.Is(err, ErrInvalidInput):
		return "Please enter username and password"
	case errors.Is(err, ErrInvalidRole):
		return "Please choose client or business"
	}
	return fmt.Sprintf("%s: %v", f.prefix, err)
}
