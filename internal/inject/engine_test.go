package inject

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AKuederle/soundvibes/internal/clip"
	"github.com/AKuederle/soundvibes/internal/procrun"
	"github.com/AKuederle/soundvibes/internal/session"
	"github.com/AKuederle/soundvibes/internal/window"
)

// memBackend is an in-memory clipboard. The current content is the first
// non-hint item of the last offer.
type memBackend struct {
	cur      *clip.Snapshot
	offers   [][]clip.Item
	offerErr error
}

func (m *memBackend) Name() string { return "memory" }

func (m *memBackend) Read() (*clip.Snapshot, error) {
	if m.cur == nil {
		return nil, nil
	}
	return &clip.Snapshot{MIME: m.cur.MIME, Data: append([]byte(nil), m.cur.Data...)}, nil
}

func (m *memBackend) Offer(items []clip.Item) error {
	if m.offerErr != nil {
		return m.offerErr
	}
	m.offers = append(m.offers, items)
	for _, it := range items {
		if it.MIME != clip.HintMIME {
			m.cur = &clip.Snapshot{MIME: it.MIME, Data: it.Data}
			break
		}
	}
	return nil
}

func (m *memBackend) Clear() error {
	m.cur = nil
	return nil
}

type harness struct {
	runner *procrun.Fake
	clip   *memBackend
	slept  []time.Duration
	engine *Engine
}

func newHarness(env session.MapEnv, daemon bool) *harness {
	h := &harness{runner: procrun.NewFake(), clip: &memBackend{}}
	h.engine = New(Options{
		Runner:    h.runner,
		Session:   &session.Detector{Env: env},
		Clipboard: clip.NewManager(h.clip),
		Window:    window.New(h.runner),
		Daemon: func() (string, bool) {
			if daemon {
				return "/run/user/1000/.ydotool_socket", true
			}
			return "", false
		},
		Sleep: func(d time.Duration) { h.slept = append(h.slept, d) },
	})
	return h
}

// injectorCalls drops window probes from the recorded calls.
func (h *harness) injectorCalls() []procrun.Call {
	var out []procrun.Call
	for _, c := range h.runner.Calls() {
		if len(c.Args) > 0 && c.Args[0] == "getactivewindow" {
			continue
		}
		out = append(out, c)
	}
	return out
}

func exitErr(program string, code int) procrun.Result {
	return procrun.Result{Err: &procrun.ExitError{Program: program, Code: code}}
}

func TestAutoPasteSendsCtrlV(t *testing.T) {
	h := newHarness(session.MapEnv{"WAYLAND_DISPLAY": "wayland-0"}, true)
	h.runner.Set("kdotool", procrun.Result{Out: []byte("firefox\n")}).Set("ydotool", procrun.Result{})

	require.NoError(t, h.engine.Inject(context.Background(), "hello", Auto))

	assert.Equal(t, []procrun.Call{
		{Name: "ydotool", Args: []string{"key", "29:1", "47:1", "47:0", "29:0"}},
	}, h.injectorCalls())
	assert.Equal(t, []time.Duration{DefaultSettleDelay}, h.slept)
}

func TestAutoPasteTerminalSendsCtrlShiftV(t *testing.T) {
	h := newHarness(session.MapEnv{"WAYLAND_DISPLAY": "wayland-0"}, true)
	h.runner.Set("kdotool", procrun.Result{Out: []byte("org.kde.konsole\n")}).Set("ydotool", procrun.Result{})

	require.NoError(t, h.engine.Inject(context.Background(), "ls -la", Auto))

	calls := h.injectorCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"key", "29:1", "42:1", "47:1", "47:0", "42:0", "29:0"}, calls[0].Args)
}

func TestPasteClassifierFallsBackToXdotool(t *testing.T) {
	h := newHarness(session.MapEnv{"DISPLAY": ":0"}, true)
	h.runner.Set("xdotool", procrun.Result{Out: []byte("Alacritty\n")}).Set("ydotool", procrun.Result{})

	require.NoError(t, h.engine.Inject(context.Background(), "x", Paste))

	calls := h.runner.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, "kdotool", calls[0].Name)
	assert.Equal(t, "xdotool", calls[1].Name)
	assert.Equal(t, terminalPasteKeys, calls[2].Args[1:])
}

func TestPasteWritesSecretAndRestores(t *testing.T) {
	tests := []struct {
		name    string
		prev    *clip.Snapshot
		ydotool procrun.Result
		wantErr bool
	}{
		{"prior content, paste ok", &clip.Snapshot{MIME: "text/plain", Data: []byte("keep me")}, procrun.Result{}, false},
		{"prior content, paste fails", &clip.Snapshot{MIME: "text/plain", Data: []byte("keep me")}, exitErr("ydotool", 1), true},
		{"prior image", &clip.Snapshot{MIME: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}}, procrun.Result{}, false},
		{"empty clipboard, paste ok", nil, procrun.Result{}, false},
		{"empty clipboard, paste fails", nil, exitErr("ydotool", 2), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(session.MapEnv{}, true)
			h.clip.cur = tt.prev
			h.runner.Set("ydotool", tt.ydotool)

			err := h.engine.Inject(context.Background(), "dictated", Paste)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, ExecutionFailed, KindOf(err))
			} else {
				require.NoError(t, err)
			}

			require.NotEmpty(t, h.clip.offers)
			assert.Equal(t, []clip.Item{
				{MIME: clip.MIMEText, Data: []byte("dictated")},
				{MIME: clip.HintMIME, Data: []byte("secret")},
			}, h.clip.offers[0])
			assert.Equal(t, tt.prev, h.clip.cur)
			assert.Len(t, h.slept, 1)
		})
	}
}

func TestPasteWriteFailureSkipsKeystroke(t *testing.T) {
	h := newHarness(session.MapEnv{}, true)
	h.clip.cur = &clip.Snapshot{MIME: "text/plain", Data: []byte("old")}
	h.clip.offerErr = errors.New("compositor went away")
	h.runner.Set("ydotool", procrun.Result{})

	err := h.engine.Inject(context.Background(), "new", Paste)
	require.Error(t, err)
	assert.Equal(t, IOFailed, KindOf(err))
	assert.Equal(t, "clipboard copy failed: compositor went away", err.Error())
	assert.Empty(t, h.runner.Calls())
	assert.Empty(t, h.slept)
	assert.Equal(t, "old", string(h.clip.cur.Data))
}

func TestYdotoolWithoutDaemonSpawnsNothing(t *testing.T) {
	h := newHarness(session.MapEnv{"WAYLAND_DISPLAY": "wayland-0"}, false)

	err := h.engine.Inject(context.Background(), "hi", Ydotool)
	require.Error(t, err)

	var ae *AttemptError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, Unavailable, ae.Kind)
	assert.Contains(t, err.Error(), "systemctl --user start ydotool.service")
	assert.Empty(t, h.runner.Calls())
}

func TestYdotoolTypes(t *testing.T) {
	h := newHarness(session.MapEnv{}, true)
	h.runner.Set("ydotool", procrun.Result{})

	require.NoError(t, h.engine.Inject(context.Background(), "-n flag-like", Ydotool))
	assert.Equal(t, []procrun.Call{
		{Name: "ydotool", Args: []string{"type", "-d", "0", "--", "-n flag-like"}},
	}, h.runner.Calls())
}

func TestXdotoolMissingIsLaunchFailed(t *testing.T) {
	h := newHarness(session.MapEnv{"DISPLAY": ":0"}, false)

	err := h.engine.Inject(context.Background(), "hi", Xdotool)
	require.Error(t, err)
	assert.Equal(t, LaunchFailed, KindOf(err))
	assert.Equal(t, "x11: xdotool not found; install xdotool to enable X11 text injection", err.Error())
}

func TestXdotoolArgs(t *testing.T) {
	h := newHarness(session.MapEnv{"XDG_SESSION_TYPE": "x11"}, false)
	h.runner.Set("xdotool", procrun.Result{})

	require.NoError(t, h.engine.Inject(context.Background(), "--help", Xdotool))
	assert.Equal(t, []procrun.Call{
		{Name: "xdotool", Args: []string{"type", "--clearmodifiers", "--delay", "0", "--", "--help"}},
	}, h.runner.Calls())
}

func TestWtypeExitStatus(t *testing.T) {
	h := newHarness(session.MapEnv{"WAYLAND_DISPLAY": "wayland-0"}, false)
	h.runner.Set("wtype", exitErr("wtype", 1))

	err := h.engine.Inject(context.Background(), "hi", Wtype)
	require.Error(t, err)
	assert.Equal(t, ExecutionFailed, KindOf(err))
	assert.Equal(t, "wayland: wtype exited with status 1", err.Error())
}

func TestNativeStrategiesNeedSession(t *testing.T) {
	h := newHarness(session.MapEnv{}, false)

	err := h.engine.Inject(context.Background(), "hi", Wtype)
	assert.Equal(t, "wayland session not detected", err.Error())
	assert.Equal(t, Unavailable, KindOf(err))

	err = h.engine.Inject(context.Background(), "hi", Xdotool)
	assert.Equal(t, "x11 session not detected", err.Error())
	assert.Empty(t, h.runner.Calls())
}

func TestAutoFallsThroughToWtype(t *testing.T) {
	h := newHarness(session.MapEnv{"WAYLAND_DISPLAY": "wayland-0", "DISPLAY": ":0"}, false)
	h.runner.Set("wtype", procrun.Result{}).Set("xdotool", procrun.Result{})

	require.NoError(t, h.engine.Inject(context.Background(), "hi", Auto))
	assert.Equal(t, []procrun.Call{{Name: "wtype", Args: []string{"--", "hi"}}}, h.runner.Calls())
	assert.Empty(t, h.clip.offers)
}

func TestAutoExhaustion(t *testing.T) {
	h := newHarness(session.MapEnv{}, false)

	err := h.engine.Inject(context.Background(), "hi", Auto)
	require.Error(t, err)

	want := "no supported injection backends available (" +
		"clipboard paste requires ydotool for key simulation; " +
		"ydotoold not running; start with `systemctl --user start ydotool.service` (see README for uinput permissions setup); " +
		"wayland session not detected; " +
		"x11 session not detected)"
	assert.Equal(t, want, err.Error())
	assert.Empty(t, h.runner.Calls())

	var ie *InjectionError
	require.ErrorAs(t, err, &ie)
	assert.True(t, ie.Exhausted)
	assert.Len(t, ie.Reasons(), 4)
}

func TestAutoExhaustionMixedKinds(t *testing.T) {
	h := newHarness(session.MapEnv{"WAYLAND_DISPLAY": "wayland-0", "DISPLAY": ":0"}, true)
	h.runner.Set("ydotool", exitErr("ydotool", 1)).Set("wtype", exitErr("wtype", 1))

	err := h.engine.Inject(context.Background(), "hi", Auto)
	require.Error(t, err)

	var ie *InjectionError
	require.ErrorAs(t, err, &ie)
	kinds := make([]Kind, len(ie.Attempts))
	for i, a := range ie.Attempts {
		kinds[i] = a.Kind
	}
	assert.Equal(t, []Kind{ExecutionFailed, ExecutionFailed, ExecutionFailed, LaunchFailed}, kinds)
	assert.True(t, strings.HasSuffix(err.Error(), "x11: xdotool not found; install xdotool to enable X11 text injection)"))
}

func TestEmptyTextIsNoop(t *testing.T) {
	h := newHarness(session.MapEnv{}, false)
	require.NoError(t, h.engine.Inject(context.Background(), "", Auto))
	require.NoError(t, h.engine.Inject(context.Background(), "", Xdotool))
	assert.Empty(t, h.runner.Calls())
}

func TestUnknownBackendIsInjectionError(t *testing.T) {
	h := newHarness(session.MapEnv{"WAYLAND_DISPLAY": "wayland-0"}, true)
	err := h.engine.Inject(context.Background(), "hello", Backend(99))

	var ie *InjectionError
	require.ErrorAs(t, err, &ie)
	require.Len(t, ie.Attempts, 1)
	assert.Equal(t, Unavailable, KindOf(err))
	assert.Equal(t, "unknown backend backend(99)", err.Error())
	assert.Empty(t, h.runner.Calls())
}

// stubStrategy reports a fixed outcome and counts invocations.
type stubStrategy struct {
	id    string
	fail  bool
	calls int
}

func (s *stubStrategy) name() string { return s.id }

func (s *stubStrategy) attempt(context.Context, string) *AttemptError {
	s.calls++
	if s.fail {
		return &AttemptError{Strategy: s.id, Kind: ExecutionFailed, Msg: s.id + " failed"}
	}
	return nil
}

func TestCascadeStopsAtFirstSuccess(t *testing.T) {
	for winner := range 4 {
		chain := make([]*stubStrategy, 4)
		strategies := make([]strategy, 4)
		for i := range chain {
			chain[i] = &stubStrategy{id: CascadeOrder[i].String(), fail: i < winner}
			strategies[i] = chain[i]
		}

		require.NoError(t, run(context.Background(), "x", strategies, true))
		for i, s := range chain {
			if i <= winner {
				assert.Equal(t, 1, s.calls, "winner %d strategy %d", winner, i)
			} else {
				assert.Zero(t, s.calls, "winner %d strategy %d", winner, i)
			}
		}
	}
}

func TestCascadeJoinsReasonsInOrder(t *testing.T) {
	strategies := []strategy{
		&stubStrategy{id: "a", fail: true},
		&stubStrategy{id: "b", fail: true},
		&stubStrategy{id: "c", fail: true},
		&stubStrategy{id: "d", fail: true},
	}
	err := run(context.Background(), "x", strategies, true)
	assert.EqualError(t, err, "no supported injection backends available (a failed; b failed; c failed; d failed)")
}

// blockingRunner never finishes before ctx does.
type blockingRunner struct{}

func (blockingRunner) Run(ctx context.Context, name string, _ ...string) error {
	<-ctx.Done()
	return &procrun.ExitError{Program: name, Code: -1}
}

func (r blockingRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	return nil, r.Run(ctx, name, args...)
}

func TestTimeout(t *testing.T) {
	e := New(Options{
		Runner:    blockingRunner{},
		Session:   &session.Detector{Env: session.MapEnv{"WAYLAND_DISPLAY": "wayland-0"}},
		Clipboard: clip.NewManager(&memBackend{}),
		Daemon:    func() (string, bool) { return "", false },
		Timeout:   20 * time.Millisecond,
	})

	err := e.Inject(context.Background(), "hi", Wtype)
	require.Error(t, err)
	assert.Equal(t, "wayland: wtype: context deadline exceeded", err.Error())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
