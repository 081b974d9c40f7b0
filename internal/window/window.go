// Package window asks the window system which application has input focus
// and decides whether it is a terminal emulator, which rebinds paste to
// Ctrl+Shift+V.
package window

import (
	"context"
	"log/slog"
	"strings"

	"github.com/AKuederle/soundvibes/internal/procrun"
)

// terminalClasses are lowercase window class fragments of known terminal
// emulators. Matching is by substring so prefixed classes still hit.
var terminalClasses = []string{
	"konsole",
	"org.kde.konsole",
	"kitty",
	"alacritty",
	"gnome-terminal",
	"org.gnome.terminal",
	"xterm",
	"urxvt",
	"terminator",
	"tilix",
	"xfce4-terminal",
	"mate-terminal",
	"lxterminal",
	"st",
	"foot",
	"wezterm",
	"com.mitchellh.ghostty",
	"ghostty",
}

// TerminalClasses returns a copy of the known terminal class table.
func TerminalClasses() []string {
	return append([]string(nil), terminalClasses...)
}

// IsTerminalClass reports whether class names a terminal emulator.
func IsTerminalClass(class string) bool {
	class = strings.ToLower(strings.TrimSpace(class))
	if class == "" {
		return false
	}
	for _, t := range terminalClasses {
		if strings.Contains(class, t) {
			return true
		}
	}
	return false
}

// Probe is one window-introspection command that prints the class of the
// focused window.
type Probe struct {
	Program string
	Args    []string
}

// DefaultProbes tries kdotool (KDE Wayland) before xdotool (X11).
var DefaultProbes = []Probe{
	{Program: "kdotool", Args: []string{"getactivewindow", "getwindowclassname"}},
	{Program: "xdotool", Args: []string{"getactivewindow", "getwindowclassname"}},
}

// Classifier runs Probes in order; the first one that exits 0 decides.
type Classifier struct {
	Runner procrun.Runner
	Probes []Probe
}

// New returns a Classifier using DefaultProbes.
func New(r procrun.Runner) *Classifier {
	return &Classifier{Runner: r, Probes: DefaultProbes}
}

// FocusedClass returns the focused window's class as printed by the first
// successful probe. ok is false when no probe succeeded.
func (c *Classifier) FocusedClass(ctx context.Context) (class string, ok bool) {
	for _, p := range c.Probes {
		out, err := c.Runner.Output(ctx, p.Program, p.Args...)
		if err != nil {
			slog.Debug("window probe failed", "probe", p.Program, "err", err)
			continue
		}
		return strings.TrimSpace(string(out)), true
	}
	return "", false
}

// IsFocusedTerminal reports whether the focused window is a terminal.
// When the class cannot be determined it answers false: a wrong guess only
// costs a swallowed paste shortcut.
func (c *Classifier) IsFocusedTerminal(ctx context.Context) bool {
	class, ok := c.FocusedClass(ctx)
	if !ok {
		slog.Debug("focused window class unknown, assuming non-terminal")
		return false
	}
	term := IsTerminalClass(class)
	slog.Debug("focused window", "class", class, "terminal", term)
	return term
}
