package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/AKuederle/soundvibes/internal/clip"
)

func newClipboardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clipboard",
		Short: "Read, write or clear the clipboard the way the paste backend does",
		Args:  cobra.NoArgs,
	}
	cmd.AddCommand(
		newClipboardCopyCmd(),
		newClipboardPasteCmd(),
		newClipboardClearCmd(),
		newClipboardServeCmd(),
	)
	return cmd
}

// clipboardSubCmd builds a clipboard sub-command whose run function gets a
// Manager for the detected session.
func clipboardSubCmd(use, short string, args cobra.PositionalArgs, run func(*cobra.Command, *clip.Manager, []string) error) *cobra.Command {
	v := viper.New()
	cmd := &cobra.Command{
		Use:     use,
		Short:   short,
		Args:    args,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE: func(cmd *cobra.Command, a []string) error {
			setupLogging(v)
			return run(cmd, clip.NewManager(clip.New(newDetector(v))), a)
		},
	}
	cmd.Flags().Bool("logind", false, "ask systemd-logind for the session type when XDG_SESSION_TYPE is unset")
	addLoggingFlags(cmd)
	addConfigFlag(cmd)
	return cmd
}

func newClipboardCopyCmd() *cobra.Command {
	return clipboardSubCmd("copy [text...]",
		"Copy text (or stdin) marked as secret for clipboard managers",
		cobra.ArbitraryArgs,
		func(cmd *cobra.Command, m *clip.Manager, args []string) error {
			text, err := readText(args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			return m.CopySecret(text)
		})
}

func newClipboardPasteCmd() *cobra.Command {
	return clipboardSubCmd("paste",
		"Print the clipboard to stdout",
		cobra.NoArgs,
		func(cmd *cobra.Command, m *clip.Manager, _ []string) error {
			snap := m.Save()
			if snap == nil {
				return nil
			}
			_, err := cmd.OutOrStdout().Write(snap.Data)
			return err
		})
}

func newClipboardClearCmd() *cobra.Command {
	return clipboardSubCmd("clear",
		"Clear the clipboard",
		cobra.NoArgs,
		func(_ *cobra.Command, m *clip.Manager, _ []string) error {
			return m.Clear()
		})
}

// newClipboardServeCmd is the offer helper started by the native clipboard
// backends. It reads one offer from stdin and keeps the selection until
// another client replaces it.
func newClipboardServeCmd() *cobra.Command {
	var backend string
	cmd := &cobra.Command{
		Use:    "serve",
		Short:  "Hold a clipboard offer (internal)",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := clip.Serve(ctx, backend, os.Stdin, os.Stdout); err != nil {
				return fmt.Errorf("clipboard helper: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&backend, "backend", "", "clipboard protocol: wayland|x11")
	return cmd
}
