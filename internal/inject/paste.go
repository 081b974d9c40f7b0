package inject

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AKuederle/soundvibes/internal/clip"
	"github.com/AKuederle/soundvibes/internal/procrun"
)

// Linux input event codes.
const (
	keyLeftCtrl  = 29
	keyLeftShift = 42
	keyV         = 47
)

var (
	terminalPasteKeys = chord(keyLeftCtrl, keyLeftShift, keyV)
	pasteKeys         = chord(keyLeftCtrl, keyV)
)

// chord presses codes in order and releases them in reverse, as
// "code:state" arguments for ydotool key.
func chord(codes ...int) []string {
	out := make([]string, 0, 2*len(codes))
	for _, c := range codes {
		out = append(out, fmt.Sprintf("%d:1", c))
	}
	for i := len(codes) - 1; i >= 0; i-- {
		out = append(out, fmt.Sprintf("%d:0", codes[i]))
	}
	return out
}

// Clipboard is the part of clip.Manager the paste strategy uses.
type Clipboard interface {
	Save() *clip.Snapshot
	CopySecret(text string) error
	// Restore puts s back, or clears the clipboard when s is nil.
	Restore(s *clip.Snapshot) error
}

// TerminalDetector decides whether the focused window is a terminal.
type TerminalDetector interface {
	IsFocusedTerminal(ctx context.Context) bool
}

// pasteStrategy writes text to the clipboard and sends the paste shortcut
// through ydotool. The previous clipboard is put back on every path that
// reached the clipboard write.
type pasteStrategy struct {
	runner procrun.Runner
	daemon DaemonProbe
	clip   Clipboard
	window TerminalDetector
	settle time.Duration
	sleep  func(time.Duration)
}

func (s *pasteStrategy) name() string { return Paste.String() }

func (s *pasteStrategy) attempt(ctx context.Context, text string) *AttemptError {
	if _, ok := s.daemon(); !ok {
		return unavailable(s.name(), msgPasteNeedsDaemon)
	}

	prev := s.clip.Save()
	if err := s.clip.CopySecret(text); err != nil {
		return &AttemptError{Strategy: s.name(), Kind: IOFailed, Msg: err.Error(), Err: err}
	}
	defer s.restore(prev)

	keys := pasteKeys
	if s.window.IsFocusedTerminal(ctx) {
		keys = terminalPasteKeys
	}
	args := append([]string{"key"}, keys...)
	return runTool(ctx, s.runner, s.name(), "", ydotoolHint, "ydotool", args...)
}

// restore waits for the target to read the clipboard, then puts prev back.
// Failures are logged and never replace the injection outcome.
func (s *pasteStrategy) restore(prev *clip.Snapshot) {
	s.sleep(s.settle)
	if err := s.clip.Restore(prev); err != nil {
		slog.Warn("clipboard restore failed", "err", err)
	}
}
