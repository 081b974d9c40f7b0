// Package inject types text into the focused window on Linux desktops.
//
// Four strategies are available: clipboard paste through ydotool, ydotool
// typing, wtype (Wayland) and xdotool (X11). In Auto mode they run in that
// order and the first success wins; otherwise exactly the requested one
// runs. Every failure is collected into an *InjectionError whose message
// names the fix for each layer.
//
// An Engine is safe for concurrent use only if the caller serializes
// Inject: the paste strategy's clipboard save and restore would otherwise
// interleave.
package inject

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AKuederle/soundvibes/internal/clip"
	"github.com/AKuederle/soundvibes/internal/logging"
	"github.com/AKuederle/soundvibes/internal/procrun"
	"github.com/AKuederle/soundvibes/internal/session"
	"github.com/AKuederle/soundvibes/internal/window"
)

// DefaultSettleDelay is how long the paste strategy waits after the paste
// shortcut before restoring the clipboard.
const DefaultSettleDelay = 200 * time.Millisecond

// CascadeOrder is the order Auto tries strategies in.
var CascadeOrder = []Backend{Paste, Ydotool, Wtype, Xdotool}

// Options configures an Engine. Zero fields get production defaults.
type Options struct {
	Runner    procrun.Runner
	Session   *session.Detector
	Clipboard Clipboard
	Window    TerminalDetector
	Daemon    DaemonProbe

	// SettleDelay defaults to DefaultSettleDelay.
	SettleDelay time.Duration
	// Timeout bounds one Inject call. Zero means no limit.
	Timeout time.Duration
	// Sleep is used for the settle delay; defaults to time.Sleep.
	Sleep func(time.Duration)
}

// Engine runs injection strategies. It keeps no state between calls.
type Engine struct {
	timeout    time.Duration
	settle     time.Duration
	strategies map[Backend]strategy
}

// New builds an Engine from o.
func New(o Options) *Engine {
	if o.Runner == nil {
		o.Runner = procrun.Exec{}
	}
	if o.Session == nil {
		o.Session = session.New()
	}
	if o.Clipboard == nil {
		o.Clipboard = clip.NewManager(clip.New(o.Session))
	}
	if o.Window == nil {
		o.Window = window.New(o.Runner)
	}
	if o.Daemon == nil {
		o.Daemon = YdotoolSocket
	}
	if o.SettleDelay <= 0 {
		o.SettleDelay = DefaultSettleDelay
	}
	if o.Sleep == nil {
		o.Sleep = time.Sleep
	}

	return &Engine{
		timeout: o.Timeout,
		settle:  o.SettleDelay,
		strategies: map[Backend]strategy{
			Paste: &pasteStrategy{
				runner: o.Runner,
				daemon: o.Daemon,
				clip:   o.Clipboard,
				window: o.Window,
				settle: o.SettleDelay,
				sleep:  o.Sleep,
			},
			Ydotool: &ydotoolStrategy{runner: o.Runner, daemon: o.Daemon},
			Wtype:   &wtypeStrategy{runner: o.Runner, session: o.Session},
			Xdotool: &xdotoolStrategy{runner: o.Runner, session: o.Session},
		},
	}
}

// SettleDelay returns the configured post-paste delay.
func (e *Engine) SettleDelay() time.Duration { return e.settle }

// Inject types text with backend. Empty text succeeds without running
// anything. The returned error, if any, is an *InjectionError.
func (e *Engine) Inject(ctx context.Context, text string, backend Backend) error {
	if text == "" {
		return nil
	}
	var chain []strategy
	if backend == Auto {
		for _, b := range CascadeOrder {
			chain = append(chain, e.strategies[b])
		}
	} else {
		s, ok := e.strategies[backend]
		if !ok {
			return &InjectionError{Attempts: []*AttemptError{
				unavailable(backend.String(), fmt.Sprintf("unknown backend %s", backend)),
			}}
		}
		chain = []strategy{s}
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	return run(ctx, text, chain, backend == Auto)
}

func run(ctx context.Context, text string, chain []strategy, cascade bool) error {
	var failed []*AttemptError
	for _, s := range chain {
		ae := s.attempt(ctx, text)
		if ae == nil {
			slog.Info("text injected", "strategy", s.name(), logging.Text(text))
			return nil
		}
		slog.Debug("injection strategy failed",
			"strategy", ae.Strategy,
			"kind", ae.Kind.String(),
			"reason", ae.Msg,
		)
		failed = append(failed, ae)
		if ctx.Err() != nil {
			break
		}
	}
	return &InjectionError{Attempts: failed, Exhausted: cascade}
}
