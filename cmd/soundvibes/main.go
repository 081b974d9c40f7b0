// soundvibes: type dictated text into the focused window.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AKuederle/soundvibes/internal/logging"
)

// Version is set at build time via -ldflags "-X main.Version=x.y.z".
var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "soundvibes",
		Short: "Inject text into the focused window on Linux desktops",
		Long: `soundvibes types text into whichever window has keyboard focus, on
Wayland and X11, choosing the first injection method that works:

  paste    clipboard + Ctrl+V (Ctrl+Shift+V in terminals) via ydotool
  ydotool  kernel uinput typing
  wtype    Wayland virtual keyboard
  xdotool  X11 XTEST typing

The clipboard is saved before a paste and restored afterwards; the pasted
text is marked secret so clipboard managers keep it out of their history.

Run "soundvibes serve" (or "soundvibes service install") to keep a daemon
that serializes injections from several callers.

Config file search order (first found wins):
  /etc/soundvibes/soundvibes.toml
  $HOME/.config/soundvibes/soundvibes.toml
  path supplied via --config

All flags can be set via SOUNDVIBES_<FLAG> env vars or config-file keys.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newTypeCmd(),
		newServeCmd(),
		newStatusCmd(),
		newClipboardCmd(),
		newServiceCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "soundvibes %s\n", Version)
		},
	}
}

// resolveLogging sets up the global slog logger after flags are parsed.
func resolveLogging(interactive bool, formatStr, levelStr string) {
	format := logging.ParseFormat(formatStr)
	level := logging.ParseLevel(levelStr)
	if levelStr == "" {
		if interactive {
			level = logging.ParseLevel("debug")
		} else {
			level = logging.ParseLevel("info")
		}
	}
	logging.Setup(format, level)
}
