//go:build linux

package clip

import (
	"fmt"
	"log/slog"

	"github.com/atotto/clipboard"

	"github.com/AKuederle/soundvibes/internal/session"
)

// New returns the best clipboard backend for the detected session, falling
// back to the plain tool-based backend and finally to headless.
func New(d *session.Detector) Backend {
	if d.HasWayland() {
		b, err := newWaylandBackend()
		if err == nil {
			return b
		}
		slog.Debug("wayland data-control unavailable", "err", err)
	}
	if d.HasX11() {
		b, err := newX11Backend()
		if err == nil {
			return b
		}
		slog.Debug("x11 clipboard unavailable", "err", err)
	}
	if (d.HasWayland() || d.HasX11()) && !clipboard.Unsupported {
		return plainBackend{}
	}
	slog.Warn("clipboard unavailable, running headless")
	return headlessBackend{}
}

func newOwner(backend string) (owner, error) {
	switch backend {
	case helperWayland:
		return &waylandOwner{}, nil
	case helperX11:
		return &x11Owner{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownHelper, backend)
	}
}
