package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/kardianos/service"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/AKuederle/soundvibes/internal/clip"
	"github.com/AKuederle/soundvibes/internal/inject"
	"github.com/AKuederle/soundvibes/internal/ipc"
	"github.com/AKuederle/soundvibes/internal/logging"
	"github.com/AKuederle/soundvibes/internal/message"
	"github.com/AKuederle/soundvibes/internal/wire"
)

// requestReadTimeout bounds how long a connected client may take to send
// its request.
const requestReadTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the injection daemon",
		Long: `Starts the soundvibes daemon. It listens on a Unix socket for requests
from "soundvibes type" and other local clients and runs one injection at a
time, so clipboard save/restore never interleaves between callers.

Changes to backend and settle-delay in the config file are picked up
without a restart.

Config file search order:
  /etc/soundvibes/soundvibes.toml
  $HOME/.config/soundvibes/soundvibes.toml
  path supplied via --config

Precedence (lowest → highest): defaults → config file → SOUNDVIBES_* env vars → flags`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(_ *cobra.Command, _ []string) error { return runServe(v) },
	}

	addEngineFlags(cmd)
	addSocketFlag(cmd)
	addLoggingFlags(cmd)
	addConfigFlag(cmd)

	return cmd
}

func runServe(v *viper.Viper) error {
	setupLogging(v)

	det := newDetector(v)
	clipboard := clip.NewManager(clip.New(det))

	d := &daemon{
		path: socketFrom(v),
		load: func() (engineConfig, error) {
			backend, err := backendFrom(v)
			if err != nil {
				return engineConfig{}, err
			}
			e := newEngine(v, det, clipboard)
			return engineConfig{engine: e, backend: backend, settle: e.SettleDelay()}, nil
		},
		status: func(ctx context.Context) *message.Status {
			return collectStatus(ctx, det, clipboard.BackendName())
		},
	}

	if file := v.ConfigFileUsed(); file != "" {
		v.OnConfigChange(func(e fsnotify.Event) {
			slog.Debug("config file changed", "file", e.Name, "op", e.Op.String())
			d.reload()
		})
		v.WatchConfig()
	}

	s, err := service.New(d, serviceConfig(v))
	if err != nil {
		return fmt.Errorf("service: %w", err)
	}

	slog.Info("soundvibes daemon starting",
		"version", Version,
		"socket", d.path,
		"session", det.Describe(),
		"clipboard", clipboard.BackendName(),
	)
	return s.Run()
}

// injector is the part of *inject.Engine the daemon drives.
type injector interface {
	Inject(ctx context.Context, text string, backend inject.Backend) error
}

// engineConfig is the reloadable part of the daemon.
type engineConfig struct {
	engine  injector
	backend inject.Backend
	settle  time.Duration
}

// daemon serves IPC requests. It implements service.Interface.
type daemon struct {
	path   string
	load   func() (engineConfig, error)
	status func(ctx context.Context) *message.Status

	// injectMu serializes Inject calls across connections.
	injectMu   sync.Mutex
	cfgMu      sync.RWMutex
	cfg        engineConfig
	injections atomic.Uint64

	ln net.Listener
	wg sync.WaitGroup
}

// Start implements service.Interface. It must not block.
func (d *daemon) Start(_ service.Service) error {
	cfg, err := d.load()
	if err != nil {
		return err
	}
	d.setConfig(cfg)

	ln, err := ipc.Listen(d.path)
	if err != nil {
		return fmt.Errorf("listen %s: %w", d.path, err)
	}
	d.ln = ln
	slog.Info("IPC socket listening", "path", d.path, "backend", cfg.backend, "settle_delay", cfg.settle)

	d.wg.Add(1)
	go d.serve()
	return nil
}

// Stop implements service.Interface.
func (d *daemon) Stop(_ service.Service) error {
	if d.ln == nil {
		return nil
	}
	err := d.ln.Close()
	d.wg.Wait()
	_ = os.Remove(d.path)
	slog.Info("soundvibes daemon stopped", "injections", d.injections.Load())
	return err
}

func (d *daemon) config() engineConfig {
	d.cfgMu.RLock()
	defer d.cfgMu.RUnlock()
	return d.cfg
}

func (d *daemon) setConfig(cfg engineConfig) {
	d.cfgMu.Lock()
	d.cfg = cfg
	d.cfgMu.Unlock()
}

// reload rebuilds the engine from the current configuration. A bad value
// keeps the previous engine.
func (d *daemon) reload() {
	cfg, err := d.load()
	if err != nil {
		slog.Warn("config reload rejected", "err", err)
		return
	}
	d.setConfig(cfg)
	slog.Info("config reloaded", "backend", cfg.backend, "settle_delay", cfg.settle)
}

func (d *daemon) serve() {
	defer d.wg.Done()
	for {
		conn, err := d.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			slog.Error("accept failed", "err", err)
			continue
		}
		go d.handleConn(conn)
	}
}

func (d *daemon) handleConn(conn net.Conn) {
	wc := wire.New(conn)
	defer wc.Close()

	wc.SetReadDeadline(requestReadTimeout)
	msg, err := wc.ReadMsg()
	if err != nil {
		slog.Debug("ipc: read failed", "err", err)
		return
	}
	wc.SetReadDeadline(0)

	if err := wc.WriteMsg(d.dispatch(context.Background(), msg)); err != nil {
		slog.Debug("ipc: write failed", "type", msg.Type, "err", err)
	}
}

func (d *daemon) dispatch(ctx context.Context, msg *message.Message) *message.Message {
	switch msg.Type {
	case message.TypeInject:
		return d.inject(ctx, msg)

	case message.TypePing:
		return &message.Message{Type: message.TypePong}

	case message.TypeStatus:
		st := d.status(ctx)
		cfg := d.config()
		st.Backend = cfg.backend.String()
		st.SettleDelayMS = cfg.settle.Milliseconds()
		st.InjectionCount = d.injections.Load()
		return &message.Message{Type: message.TypeStatusResponse, Status: st}

	default:
		return &message.Message{
			Type:  message.TypeError,
			Error: fmt.Sprintf("unsupported request %s", msg.Type),
		}
	}
}

func (d *daemon) inject(ctx context.Context, msg *message.Message) *message.Message {
	resp := &message.Message{Type: message.TypeResult}

	d.injectMu.Lock()
	defer d.injectMu.Unlock()

	cfg := d.config()
	backend := cfg.backend
	if msg.Backend != "" {
		b, err := inject.ParseBackend(msg.Backend)
		if err != nil {
			resp.Error = err.Error()
			return resp
		}
		backend = b
	}

	slog.Debug("ipc: inject", "source", msg.Source, "backend", backend, logging.Text(msg.Text))
	err := cfg.engine.Inject(ctx, msg.Text, backend)
	d.injections.Add(1)
	if err != nil {
		slog.Warn("injection failed", "backend", backend, "err", err)
		resp.Error = err.Error()
		var ie *inject.InjectionError
		if errors.As(err, &ie) {
			resp.Attempts = ie.Reasons()
		}
	}
	return resp
}
