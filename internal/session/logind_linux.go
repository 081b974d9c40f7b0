//go:build linux

package session

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

const (
	login1Dest     = "org.freedesktop.login1"
	login1UserSelf = dbus.ObjectPath("/org/freedesktop/login1/user/self")
)

// LogindProbe asks systemd-logind for the type of the calling user's
// graphical session. Useful when running from a user unit that never saw
// the session environment.
type LogindProbe struct{}

// SessionType implements TypeProbe.
func (LogindProbe) SessionType() (string, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return "", fmt.Errorf("system bus: %w", err)
	}
	defer conn.Close()

	v, err := conn.Object(login1Dest, login1UserSelf).
		GetProperty("org.freedesktop.login1.User.Display")
	if err != nil {
		return "", fmt.Errorf("user display session: %w", err)
	}
	var display struct {
		ID   string
		Path dbus.ObjectPath
	}
	if err := v.Store(&display); err != nil {
		return "", fmt.Errorf("user display session: %w", err)
	}
	if display.ID == "" || !display.Path.IsValid() {
		return "", fmt.Errorf("no graphical session for user")
	}

	t, err := conn.Object(login1Dest, display.Path).
		GetProperty("org.freedesktop.login1.Session.Type")
	if err != nil {
		return "", fmt.Errorf("session %s type: %w", display.ID, err)
	}
	var kind string
	if err := t.Store(&kind); err != nil {
		return "", fmt.Errorf("session %s type: %w", display.ID, err)
	}
	return kind, nil
}
