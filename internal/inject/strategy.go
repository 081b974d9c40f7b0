package inject

import (
	"context"
	"errors"
	"fmt"

	"github.com/AKuederle/soundvibes/internal/procrun"
)

const (
	ydotoolHint = "install ydotool and run `systemctl --user start ydotool.service`"
	wtypeHint   = "install wtype to enable Wayland text injection"
	xdotoolHint = "install xdotool to enable X11 text injection"

	msgPasteNeedsDaemon = "clipboard paste requires ydotool for key simulation"
	msgYdotoolNoDaemon  = "ydotoold not running; start with `systemctl --user start ydotool.service` " +
		"(see README for uinput permissions setup)"
	msgNoWayland = "wayland session not detected"
	msgNoX11     = "x11 session not detected"
)

// strategy is one way of getting text into the focused window. attempt
// returns nil on success.
type strategy interface {
	name() string
	attempt(ctx context.Context, text string) *AttemptError
}

// runTool runs an injector and turns its failure into an AttemptError. A
// missing binary carries hint; the message is prefixed with prefix when set.
func runTool(ctx context.Context, r procrun.Runner, strat, prefix, hint, program string, args ...string) *AttemptError {
	err := r.Run(ctx, program, args...)
	if err == nil {
		return nil
	}

	kind := ExecutionFailed
	msg := err.Error()
	var exitErr *procrun.ExitError
	switch {
	case procrun.IsNotFound(err):
		kind = LaunchFailed
		msg = fmt.Sprintf("%s not found; %s", program, hint)
	case ctx.Err() != nil:
		// Killed by the per-call timeout.
		err = ctx.Err()
		msg = fmt.Sprintf("%s: %v", program, err)
	case errors.As(err, &exitErr):
	default:
		kind = LaunchFailed
	}
	if prefix != "" {
		msg = prefix + ": " + msg
	}
	return &AttemptError{Strategy: strat, Kind: kind, Msg: msg, Err: err}
}

func unavailable(strat, msg string) *AttemptError {
	return &AttemptError{Strategy: strat, Kind: Unavailable, Msg: msg}
}

// ydotoolStrategy types through the uinput daemon.
type ydotoolStrategy struct {
	runner procrun.Runner
	daemon DaemonProbe
}

func (s *ydotoolStrategy) name() string { return Ydotool.String() }

func (s *ydotoolStrategy) attempt(ctx context.Context, text string) *AttemptError {
	if _, ok := s.daemon(); !ok {
		return unavailable(s.name(), msgYdotoolNoDaemon)
	}
	return runTool(ctx, s.runner, s.name(), "ydotool", ydotoolHint,
		"ydotool", "type", "-d", "0", "--", text)
}

// sessionCheck is the part of session.Detector the native strategies need.
type sessionCheck interface {
	HasWayland() bool
	HasX11() bool
}

// wtypeStrategy types through the Wayland virtual-keyboard protocol.
type wtypeStrategy struct {
	runner  procrun.Runner
	session sessionCheck
}

func (s *wtypeStrategy) name() string { return Wtype.String() }

func (s *wtypeStrategy) attempt(ctx context.Context, text string) *AttemptError {
	if !s.session.HasWayland() {
		return unavailable(s.name(), msgNoWayland)
	}
	return runTool(ctx, s.runner, s.name(), "wayland", wtypeHint,
		"wtype", "--", text)
}

// xdotoolStrategy types through XTEST.
type xdotoolStrategy struct {
	runner  procrun.Runner
	session sessionCheck
}

func (s *xdotoolStrategy) name() string { return Xdotool.String() }

func (s *xdotoolStrategy) attempt(ctx context.Context, text string) *AttemptError {
	if !s.session.HasX11() {
		return unavailable(s.name(), msgNoX11)
	}
	return runTool(ctx, s.runner, s.name(), "x11", xdotoolHint,
		"xdotool", "type", "--clearmodifiers", "--delay", "0", "--", text)
}
