package clip

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/AKuederle/soundvibes/internal/message"
	"github.com/AKuederle/soundvibes/internal/wire"
)

// Helper backend names passed to "soundvibes clipboard serve --backend".
const (
	helperWayland = "wayland"
	helperX11     = "x11"
)

// HelperArgs are the arguments that start the offer helper, after the
// executable path. The CLI registers a hidden command with this shape.
var HelperArgs = []string{"clipboard", "serve", "--backend"}

const helperReadyTimeout = 3 * time.Second

// owner holds the selection inside the helper process.
type owner interface {
	own(items []Item) error
	serve(ctx context.Context) error
	close()
}

// handoff sends the OFFER and waits for READY.
func handoff(wc *wire.Conn, items []Item, timeout time.Duration) error {
	msg := &message.Message{Type: message.TypeOffer}
	for _, it := range items {
		msg.Items = append(msg.Items, message.NewBinaryItem(it.MIME, it.Data))
	}
	if err := wc.WriteMsg(msg); err != nil {
		return fmt.Errorf("clipboard helper: %w", err)
	}
	wc.SetReadDeadline(timeout)
	resp, err := wc.ReadMsg()
	if err != nil {
		return fmt.Errorf("clipboard helper: %w", err)
	}
	switch resp.Type {
	case message.TypeReady:
		return nil
	case message.TypeError:
		return resp.Err()
	default:
		return fmt.Errorf("clipboard helper: unexpected %s", resp.Type)
	}
}

// ownerFor picks the selection owner for a helper backend name.
var ownerFor = newOwner

// Serve is the body of the offer helper. It reads one OFFER from r, takes
// the selection with the named backend, answers READY or ERROR on w and
// then serves the selection until it is replaced or ctx ends.
//
// The OFFER carries whatever Save returned, so its size is not capped. The
// only writer is the parent that spawned this process.
func Serve(ctx context.Context, backend string, r io.Reader, w io.Writer) error {
	wc := wire.NewStream(r, w, nil)
	wc.SetMaxMessageSize(0)
	msg, err := wc.ReadMsg()
	if err != nil {
		return fmt.Errorf("read offer: %w", err)
	}
	if msg.Type != message.TypeOffer {
		return fmt.Errorf("expected %s, got %s", message.TypeOffer, msg.Type)
	}
	items := make([]Item, 0, len(msg.Items))
	for _, it := range msg.Items {
		data, err := it.Decode()
		if err != nil {
			return fmt.Errorf("decode %s: %w", it.MIME, err)
		}
		items = append(items, Item{MIME: it.MIME, Data: data})
	}

	o, err := ownerFor(backend)
	if err == nil {
		err = o.own(items)
	}
	if err != nil {
		if o != nil {
			o.close()
		}
		_ = wc.WriteMsg(&message.Message{Type: message.TypeError, Error: err.Error()})
		return err
	}
	defer o.close()
	if err := wc.WriteMsg(&message.Message{Type: message.TypeReady}); err != nil {
		return err
	}
	slog.Debug("clipboard helper owns selection", "backend", backend, "items", len(items))
	return o.serve(ctx)
}

var errUnknownHelper = errors.New("unknown clipboard helper backend")
