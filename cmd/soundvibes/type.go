package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/AKuederle/soundvibes/internal/ipc"
	"github.com/AKuederle/soundvibes/internal/logging"
	"github.com/AKuederle/soundvibes/internal/message"
)

func newTypeCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "type [text...]",
		Short: "Type text into the focused window",
		Long: `Types the given text (or stdin when no arguments are given) into the
window that has keyboard focus.

If a soundvibes daemon is running the request is sent to it over the IPC
socket so concurrent callers are serialized; pass --local to inject from
this process instead.

Examples:
  soundvibes type "hello world"
  echo -n "hello" | soundvibes type --backend wtype`,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, args []string) error { return runType(cmd, v, args) },
	}

	addEngineFlags(cmd)
	cmd.Flags().Bool("local", false, "inject in-process even if a daemon is running")
	addSocketFlag(cmd)
	addLoggingFlags(cmd)
	addConfigFlag(cmd)

	return cmd
}

func runType(cmd *cobra.Command, v *viper.Viper, args []string) error {
	setupLogging(v)

	text, err := readText(args, cmd.InOrStdin())
	if err != nil {
		return err
	}
	backend, err := backendFrom(v)
	if err != nil {
		return err
	}
	if text == "" {
		return nil
	}

	if path := socketFrom(v); !v.GetBool("local") && ipc.IsRunning(path) {
		req := &message.Message{Type: message.TypeInject, Text: text}
		// Without an explicit flag the daemon's configured backend applies.
		if cmd.Flags().Changed("backend") {
			req.Backend = backend.String()
		}
		slog.Debug("sending to daemon", "socket", path, logging.Text(text))
		resp, err := ipc.Call(path, req, 0)
		if err != nil {
			// The daemon may already have typed the text; never retry locally.
			return fmt.Errorf("daemon: %w", err)
		}
		if resp.Type != message.TypeResult {
			return fmt.Errorf("daemon: unexpected %s", resp.Type)
		}
		return resp.Err()
	}

	engine := newEngine(v, newDetector(v), nil)
	return engine.Inject(context.Background(), text, backend)
}
