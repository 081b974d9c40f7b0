package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/AKuederle/soundvibes/internal/clip"
	"github.com/AKuederle/soundvibes/internal/inject"
	"github.com/AKuederle/soundvibes/internal/ipc"
	"github.com/AKuederle/soundvibes/internal/message"
	"github.com/AKuederle/soundvibes/internal/procrun"
	"github.com/AKuederle/soundvibes/internal/session"
	"github.com/AKuederle/soundvibes/internal/window"
)

// injectionTools are the external programs the strategies and the window
// classifier rely on.
var injectionTools = []string{"ydotool", "wtype", "xdotool", "kdotool"}

func newStatusCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show session, tool and daemon diagnostics",
		Long: `Reports what soundvibes can see: the detected session, the ydotool
daemon socket, the focused window class, installed injection tools and the
clipboard backend.

If a daemon is running its view is shown (it may differ from this shell's
environment); pass --local to inspect this process instead.`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, _ []string) error { return runStatus(cmd, v) },
	}

	f := cmd.Flags()
	f.Bool("json", false, "output raw JSON")
	f.Bool("local", false, "inspect this process even if a daemon is running")
	addEngineFlags(cmd)
	addSocketFlag(cmd)
	addConfigFlag(cmd)

	return cmd
}

func runStatus(cmd *cobra.Command, v *viper.Viper) error {
	ctx := context.Background()
	path := socketFrom(v)

	var (
		st        *message.Status
		transport = "local"
	)
	if !v.GetBool("local") && ipc.IsRunning(path) {
		resp, err := ipc.Call(path, &message.Message{Type: message.TypeStatus}, 5*time.Second)
		switch {
		case err != nil:
			slog.Warn("daemon status failed", "socket", path, "err", err)
		case resp.Status == nil:
			slog.Warn("daemon sent no status", "socket", path, "type", resp.Type)
		default:
			st = resp.Status
			transport = fmt.Sprintf("daemon (%s)", path)
		}
	}

	if st == nil {
		backend, err := backendFrom(v)
		if err != nil {
			return err
		}
		det := newDetector(v)
		st = collectStatus(ctx, det, clip.New(det).Name())
		st.Backend = backend.String()
		st.SettleDelayMS = v.GetDuration("settle-delay").Milliseconds()
	}

	if v.GetBool("json") {
		enc, _ := json.MarshalIndent(st, "", "  ")
		fmt.Fprintln(cmd.OutOrStdout(), string(enc))
		return nil
	}

	printStatus(cmd.OutOrStdout(), st, transport)
	return nil
}

// collectStatus gathers diagnostics visible from this process.
func collectStatus(ctx context.Context, det *session.Detector, clipboard string) *message.Status {
	st := &message.Status{
		Version:   Version,
		Session:   det.Describe(),
		Env:       det.Vars(),
		Tools:     make(map[string]string, len(injectionTools)),
		Clipboard: clipboard,
	}
	if p, ok := inject.YdotoolSocket(); ok {
		st.YdotoolSocket = p
	}
	for _, tool := range injectionTools {
		p, err := exec.LookPath(tool)
		if err != nil {
			p = ""
		}
		st.Tools[tool] = p
	}
	if class, ok := window.New(procrun.Exec{}).FocusedClass(ctx); ok {
		st.FocusedClass = class
		st.FocusedIsTerm = window.IsTerminalClass(class)
	}
	return st
}

func printStatus(out io.Writer, st *message.Status, transport string) {
	w := tabwriter.NewWriter(out, 1, 0, 2, ' ', 0)

	fmt.Fprintf(w, "Transport:\t%s\n", transport)
	fmt.Fprintf(w, "Version:\t%s\n", st.Version)
	fmt.Fprintf(w, "Session:\t%s\n", st.Session)
	keys := make([]string, 0, len(st.Env))
	for k := range st.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %s:\t%q\n", k, st.Env[k])
	}
	fmt.Fprintf(w, "ydotool socket:\t%s\n", orDash(st.YdotoolSocket))
	switch {
	case st.FocusedClass == "":
		fmt.Fprintf(w, "Focused window:\t-\n")
	case st.FocusedIsTerm:
		fmt.Fprintf(w, "Focused window:\t%s (terminal)\n", st.FocusedClass)
	default:
		fmt.Fprintf(w, "Focused window:\t%s\n", st.FocusedClass)
	}
	fmt.Fprintf(w, "Clipboard:\t%s\n", st.Clipboard)
	fmt.Fprintf(w, "Backend:\t%s\n", st.Backend)
	fmt.Fprintf(w, "Settle delay:\t%s\n", time.Duration(st.SettleDelayMS)*time.Millisecond)
	if st.InjectionCount > 0 {
		fmt.Fprintf(w, "Injections:\t%d\n", st.InjectionCount)
	}
	fmt.Fprintln(w)
	_ = w.Flush()

	tw := tabwriter.NewWriter(out, 1, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "TOOL\tPATH\n")
	_, _ = fmt.Fprintf(tw, "----\t----\n")
	for _, tool := range injectionTools {
		p, ok := st.Tools[tool]
		if !ok {
			continue
		}
		if p == "" {
			p = "not installed"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\n", tool, p)
	}
	_ = tw.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
