package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/viper"

	"github.com/AKuederle/soundvibes/internal/clip"
	"github.com/AKuederle/soundvibes/internal/inject"
	"github.com/AKuederle/soundvibes/internal/ipc"
	"github.com/AKuederle/soundvibes/internal/procrun"
	"github.com/AKuederle/soundvibes/internal/session"
	"github.com/AKuederle/soundvibes/internal/window"
)

// newDetector returns a session detector, with the logind probe when
// enabled.
func newDetector(v *viper.Viper) *session.Detector {
	d := session.New()
	if v.GetBool("logind") {
		d.Logind = session.LogindProbe{}
	}
	return d
}

// newEngine builds an injection engine from viper settings. clipboard may
// be nil, in which case one is chosen for the detected session.
func newEngine(v *viper.Viper, d *session.Detector, clipboard *clip.Manager) *inject.Engine {
	runner := procrun.Exec{}
	if clipboard == nil {
		clipboard = clip.NewManager(clip.New(d))
	}
	return inject.New(inject.Options{
		Runner:      runner,
		Session:     d,
		Clipboard:   clipboard,
		Window:      window.New(runner),
		Daemon:      inject.YdotoolSocket,
		SettleDelay: v.GetDuration("settle-delay"),
		Timeout:     v.GetDuration("timeout"),
	})
}

func backendFrom(v *viper.Viper) (inject.Backend, error) {
	return inject.ParseBackend(v.GetString("backend"))
}

func socketFrom(v *viper.Viper) string {
	return ipc.SocketPath(v.GetString("socket"))
}

// readText joins args, or reads r when there are none. A single trailing
// newline from piped input is dropped.
func readText(args []string, r io.Reader) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	text := strings.TrimSuffix(string(data), "\n")
	return strings.TrimSuffix(text, "\r"), nil
}
