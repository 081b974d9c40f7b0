package inject

import (
	"fmt"
	"strings"
)

// Backend selects how text is injected.
type Backend int

const (
	// Auto tries every strategy in cascade order.
	Auto Backend = iota
	// Paste copies to the clipboard and sends the paste shortcut via ydotool.
	Paste
	// Ydotool types through the kernel uinput daemon.
	Ydotool
	// Wtype types through the Wayland virtual-keyboard protocol.
	Wtype
	// Xdotool types through XTEST.
	Xdotool
)

var backendNames = map[Backend]string{
	Auto:    "auto",
	Paste:   "paste",
	Ydotool: "ydotool",
	Wtype:   "wtype",
	Xdotool: "xdotool",
}

func (b Backend) String() string {
	if s, ok := backendNames[b]; ok {
		return s
	}
	return fmt.Sprintf("backend(%d)", int(b))
}

// ParseBackend accepts a backend name or one of its aliases.
func ParseBackend(s string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return Auto, nil
	case "paste", "clipboard":
		return Paste, nil
	case "ydotool", "uinput":
		return Ydotool, nil
	case "wtype", "wayland":
		return Wtype, nil
	case "xdotool", "x11":
		return Xdotool, nil
	default:
		return Auto, fmt.Errorf("unknown backend %q (want auto, paste, ydotool, wtype or xdotool)", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (b Backend) MarshalText() ([]byte, error) { return []byte(b.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *Backend) UnmarshalText(text []byte) error {
	v, err := ParseBackend(string(text))
	if err != nil {
		return err
	}
	*b = v
	return nil
}
