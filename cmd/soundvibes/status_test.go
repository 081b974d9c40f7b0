package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/kardianos/service"
	"github.com/stretchr/testify/assert"

	"github.com/AKuederle/soundvibes/internal/message"
)

func TestPrintStatus(t *testing.T) {
	var out bytes.Buffer
	printStatus(&out, &message.Status{
		Version:       "1.2.3",
		Session:       "wayland+x11",
		Env:           map[string]string{"WAYLAND_DISPLAY": "wayland-0", "DISPLAY": ":0"},
		YdotoolSocket: "/run/user/1000/.ydotool_socket",
		FocusedClass:  "org.kde.konsole",
		FocusedIsTerm: true,
		Tools:         map[string]string{"ydotool": "/usr/bin/ydotool", "wtype": ""},
		Clipboard:     "wayland data-control",
		Backend:       "auto",
		SettleDelayMS: 200,
	}, "local")

	s := out.String()
	assert.Contains(t, s, "wayland+x11")
	assert.Contains(t, s, `DISPLAY:`)
	assert.Contains(t, s, "org.kde.konsole (terminal)")
	assert.Contains(t, s, "200ms")
	assert.Contains(t, s, "/usr/bin/ydotool")
	assert.Contains(t, s, "not installed")
	assert.NotContains(t, s, "xdotool")
	assert.NotContains(t, s, "Injections")
}

func TestPrintStatusUnknownWindow(t *testing.T) {
	var out bytes.Buffer
	printStatus(&out, &message.Status{Session: "unknown", InjectionCount: 3}, "daemon (/run/user/1000/soundvibes.sock)")

	s := out.String()
	assert.Regexp(t, `Focused window:\s+-`, s)
	assert.Regexp(t, `ydotool socket:\s+-`, s)
	assert.Regexp(t, `Injections:\s+3`, s)
}

func TestServiceStatusText(t *testing.T) {
	assert.Equal(t, "running", serviceStatusText(service.StatusRunning, nil))
	assert.Equal(t, "stopped", serviceStatusText(service.StatusStopped, nil))
	assert.Equal(t, "unknown", serviceStatusText(service.StatusUnknown, nil))
	assert.Equal(t, "not installed", serviceStatusText(service.StatusUnknown, service.ErrNotInstalled))
	assert.Equal(t, "unknown", serviceStatusText(service.StatusUnknown, errors.New("dbus")))
}
