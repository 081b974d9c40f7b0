package main

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AKuederle/soundvibes/internal/inject"
	"github.com/AKuederle/soundvibes/internal/ipc"
	"github.com/AKuederle/soundvibes/internal/message"
)

type recordedCall struct {
	text    string
	backend inject.Backend
}

// fakeInjector records calls and detects overlapping Inject calls.
type fakeInjector struct {
	mu      sync.Mutex
	calls   []recordedCall
	active  int
	overlap bool
	delay   time.Duration
	err     error
}

func (f *fakeInjector) Inject(_ context.Context, text string, b inject.Backend) error {
	f.mu.Lock()
	f.active++
	if f.active > 1 {
		f.overlap = true
	}
	f.calls = append(f.calls, recordedCall{text, b})
	f.mu.Unlock()

	time.Sleep(f.delay)

	f.mu.Lock()
	f.active--
	f.mu.Unlock()
	return f.err
}

func startDaemon(t *testing.T, inj *fakeInjector, backend inject.Backend) *daemon {
	t.Helper()
	d := &daemon{
		path: filepath.Join(t.TempDir(), "sv.sock"),
		load: func() (engineConfig, error) {
			return engineConfig{engine: inj, backend: backend, settle: 200 * time.Millisecond}, nil
		},
		status: func(context.Context) *message.Status {
			return &message.Status{Version: "test", Session: "wayland"}
		},
	}
	require.NoError(t, d.Start(nil))
	t.Cleanup(func() { _ = d.Stop(nil) })
	return d
}

func call(t *testing.T, d *daemon, req *message.Message) *message.Message {
	t.Helper()
	resp, err := ipc.Call(d.path, req, 5*time.Second)
	require.NoError(t, err)
	return resp
}

func TestDaemonInjectUsesConfiguredBackend(t *testing.T) {
	inj := &fakeInjector{}
	d := startDaemon(t, inj, inject.Wtype)

	resp := call(t, d, &message.Message{Type: message.TypeInject, Text: "hello"})
	assert.Equal(t, message.TypeResult, resp.Type)
	assert.NoError(t, resp.Err())

	resp = call(t, d, &message.Message{Type: message.TypeInject, Text: "again", Backend: "x11"})
	assert.NoError(t, resp.Err())

	assert.Equal(t, []recordedCall{{"hello", inject.Wtype}, {"again", inject.Xdotool}}, inj.calls)
}

func TestDaemonInjectFailureCarriesAttempts(t *testing.T) {
	inj := &fakeInjector{err: &inject.InjectionError{
		Exhausted: true,
		Attempts: []*inject.AttemptError{
			{Strategy: "wtype", Kind: inject.Unavailable, Msg: "wayland session not detected"},
			{Strategy: "xdotool", Kind: inject.LaunchFailed, Msg: "x11: xdotool not found"},
		},
	}}
	d := startDaemon(t, inj, inject.Auto)

	resp := call(t, d, &message.Message{Type: message.TypeInject, Text: "hi"})
	err := resp.Err()
	require.Error(t, err)
	assert.Equal(t, "no supported injection backends available (wayland session not detected; x11: xdotool not found)", err.Error())
	assert.Equal(t, []string{"wayland session not detected", "x11: xdotool not found"}, resp.Attempts)
}

func TestDaemonRejectsUnknownBackend(t *testing.T) {
	inj := &fakeInjector{}
	d := startDaemon(t, inj, inject.Auto)

	resp := call(t, d, &message.Message{Type: message.TypeInject, Text: "hi", Backend: "robotgo"})
	assert.ErrorContains(t, resp.Err(), "unknown backend")
	assert.Empty(t, inj.calls)
}

func TestDaemonSerializesInjections(t *testing.T) {
	inj := &fakeInjector{delay: 20 * time.Millisecond}
	d := startDaemon(t, inj, inject.Auto)

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := ipc.Call(d.path, &message.Message{Type: message.TypeInject, Text: "x"}, 5*time.Second)
			if err == nil {
				assert.NoError(t, resp.Err())
			}
		}()
	}
	wg.Wait()

	assert.Len(t, inj.calls, 5)
	assert.False(t, inj.overlap)
}

func TestDaemonPingAndStatus(t *testing.T) {
	inj := &fakeInjector{}
	d := startDaemon(t, inj, inject.Paste)

	assert.Equal(t, message.TypePong, call(t, d, &message.Message{Type: message.TypePing}).Type)

	call(t, d, &message.Message{Type: message.TypeInject, Text: "one"})
	resp := call(t, d, &message.Message{Type: message.TypeStatus})
	require.Equal(t, message.TypeStatusResponse, resp.Type)
	require.NotNil(t, resp.Status)
	assert.Equal(t, "paste", resp.Status.Backend)
	assert.Equal(t, int64(200), resp.Status.SettleDelayMS)
	assert.Equal(t, uint64(1), resp.Status.InjectionCount)
	assert.Equal(t, "wayland", resp.Status.Session)
}

func TestDaemonUnsupportedRequest(t *testing.T) {
	d := startDaemon(t, &fakeInjector{}, inject.Auto)

	resp := call(t, d, &message.Message{Type: message.TypeOffer})
	assert.Equal(t, message.TypeError, resp.Type)
	assert.ErrorContains(t, resp.Err(), "unsupported request OFFER")
}

func TestDaemonReload(t *testing.T) {
	inj := &fakeInjector{}
	backend := inject.Auto
	fail := false
	d := &daemon{
		path: filepath.Join(t.TempDir(), "sv.sock"),
		load: func() (engineConfig, error) {
			if fail {
				return engineConfig{}, errors.New("bad backend")
			}
			return engineConfig{engine: inj, backend: backend}, nil
		},
	}
	require.NoError(t, d.Start(nil))
	t.Cleanup(func() { _ = d.Stop(nil) })

	backend = inject.Ydotool
	d.reload()
	assert.Equal(t, inject.Ydotool, d.config().backend)

	fail = true
	d.reload()
	assert.Equal(t, inject.Ydotool, d.config().backend)
}

func TestDaemonStopRemovesSocket(t *testing.T) {
	d := startDaemon(t, &fakeInjector{}, inject.Auto)
	assert.True(t, ipc.IsRunning(d.path))

	require.NoError(t, d.Stop(nil))
	assert.False(t, ipc.IsRunning(d.path))
	assert.NoFileExists(t, d.path)
}
