package inject

import (
	"errors"
	"strings"
)

// Kind classifies why a strategy failed.
type Kind int

const (
	// Unavailable means a required daemon or session is absent. No
	// subprocess was spawned.
	Unavailable Kind = iota + 1
	// LaunchFailed means the injector binary could not be started.
	LaunchFailed
	// ExecutionFailed means the injector ran and exited nonzero.
	ExecutionFailed
	// IOFailed means the clipboard could not be written.
	IOFailed
)

func (k Kind) String() string {
	switch k {
	case Unavailable:
		return "unavailable"
	case LaunchFailed:
		return "launch failed"
	case ExecutionFailed:
		return "execution failed"
	case IOFailed:
		return "io failed"
	default:
		return "unknown"
	}
}

// AttemptError is the failure of one strategy. Msg is the human-readable
// reason shown to the operator.
type AttemptError struct {
	Strategy string
	Kind     Kind
	Msg      string
	Err      error
}

func (e *AttemptError) Error() string { return e.Msg }

func (e *AttemptError) Unwrap() error { return e.Err }

// InjectionError is returned when the requested backend failed or, in auto
// mode, when every strategy failed.
type InjectionError struct {
	Attempts []*AttemptError
	// Exhausted is set when the whole cascade ran out.
	Exhausted bool
}

func (e *InjectionError) Error() string {
	if !e.Exhausted && len(e.Attempts) == 1 {
		return e.Attempts[0].Msg
	}
	reasons := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		reasons[i] = a.Msg
	}
	return "no supported injection backends available (" + strings.Join(reasons, "; ") + ")"
}

func (e *InjectionError) Unwrap() []error {
	errs := make([]error, len(e.Attempts))
	for i, a := range e.Attempts {
		errs[i] = a
	}
	return errs
}

// Reasons returns the per-strategy messages in attempt order.
func (e *InjectionError) Reasons() []string {
	out := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		out[i] = a.Msg
	}
	return out
}

// KindOf returns the Kind of the first AttemptError in err's tree, or 0.
func KindOf(err error) Kind {
	var ae *AttemptError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return 0
}
