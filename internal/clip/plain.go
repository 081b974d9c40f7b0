package clip

import (
	"fmt"
	"log/slog"

	"github.com/atotto/clipboard"
)

// plainBackend shells out through atotto/clipboard (wl-copy, xclip, xsel).
// Those tools take one MIME type per write, so the secrecy hint cannot ride
// along and non-text snapshots cannot be restored.
type plainBackend struct{}

func (plainBackend) Name() string { return "plain (wl-clipboard/xclip/xsel)" }

func (plainBackend) Read() (*Snapshot, error) {
	text, err := clipboard.ReadAll()
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, nil
	}
	return &Snapshot{MIME: MIMEText, Data: []byte(text)}, nil
}

func (plainBackend) Offer(items []Item) error {
	var text *Item
	for i := range items {
		switch {
		case items[i].MIME == HintMIME:
			slog.Debug("plain clipboard backend cannot carry the secrecy hint")
		case IsText(items[i].MIME) && text == nil:
			text = &items[i]
		case !IsText(items[i].MIME):
			return fmt.Errorf("plain clipboard backend cannot offer %s", items[i].MIME)
		}
	}
	if text == nil {
		return fmt.Errorf("plain clipboard backend: nothing to offer")
	}
	return clipboard.WriteAll(string(text.Data))
}

func (plainBackend) Clear() error {
	return clipboard.WriteAll("")
}

// headlessBackend is used when no display server is reachable. Reads are
// empty and writes fail so the paste strategy reports a clear reason.
type headlessBackend struct{}

func (headlessBackend) Name() string             { return "headless" }
func (headlessBackend) Read() (*Snapshot, error) { return nil, nil }
func (headlessBackend) Offer(_ []Item) error     { return ErrUnavailable }
func (headlessBackend) Clear() error             { return ErrUnavailable }
