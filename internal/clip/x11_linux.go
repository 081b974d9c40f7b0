//go:build linux

package clip

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
	"golang.design/x/clipboard"
)

var (
	designInitOnce sync.Once
	designInitErr  error
)

// x11Backend owns CLIPBOARD through a helper that speaks xgb, and reads it
// through golang.design/x/clipboard.
type x11Backend struct {
	spawn func(backend string, items []Item) error
}

func newX11Backend() (*x11Backend, error) {
	x, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("x11 connect: %w", err)
	}
	x.Close()
	return &x11Backend{spawn: spawnHelper}, nil
}

func (b *x11Backend) Name() string { return "x11 selection" }

func (b *x11Backend) Read() (*Snapshot, error) {
	// clipboard.Init is called lazily so status-only invocations on
	// headless systems stay quiet.
	designInitOnce.Do(func() { designInitErr = clipboard.Init() })
	if designInitErr != nil {
		return nil, fmt.Errorf("clipboard init: %w", designInitErr)
	}
	if text := clipboard.Read(clipboard.FmtText); text != nil {
		return &Snapshot{MIME: MIMEText, Data: text}, nil
	}
	if img := clipboard.Read(clipboard.FmtImage); img != nil {
		return &Snapshot{MIME: "image/png", Data: img}, nil
	}
	return nil, nil
}

func (b *x11Backend) Offer(items []Item) error {
	return b.spawn(helperX11, items)
}

// Clear takes ownership with a throwaway window and disconnects; the server
// drops the selection together with the window.
func (b *x11Backend) Clear() error {
	o := &x11Owner{}
	if err := o.connect(); err != nil {
		return err
	}
	defer o.close()
	return o.takeSelection()
}

// incrGrace bounds how long a replaced owner keeps feeding unfinished
// INCR transfers before it exits.
const incrGrace = 10 * time.Second

// x11Owner serves CLIPBOARD conversions inside the helper process.
// Payloads larger than one request are sent with the ICCCM INCR protocol.
type x11Owner struct {
	x         *xgb.Conn
	win       xproto.Window
	clipboard xproto.Atom
	targets   xproto.Atom
	incr      xproto.Atom
	offered   []xproto.Atom
	data      map[xproto.Atom][]byte
	maxBytes  int
	transfers *incrTransfers
	cleared   bool
}

func (o *x11Owner) connect() error {
	x, err := xgb.NewConn()
	if err != nil {
		return fmt.Errorf("x11 connect: %w", err)
	}
	o.x = x

	setup := xproto.Setup(x)
	screen := setup.DefaultScreen(x)
	// Leave room for the ChangeProperty request header.
	o.maxBytes = int(setup.MaximumRequestLength)*4 - 64

	win, err := xproto.NewWindowId(x)
	if err != nil {
		return fmt.Errorf("x11 window id: %w", err)
	}
	err = xproto.CreateWindowChecked(x, screen.RootDepth, win, screen.Root,
		0, 0, 1, 1, 0, xproto.WindowClassInputOutput, screen.RootVisual, 0, nil).Check()
	if err != nil {
		return fmt.Errorf("x11 create window: %w", err)
	}
	o.win = win

	if o.clipboard, err = o.atom("CLIPBOARD"); err != nil {
		return err
	}
	if o.targets, err = o.atom("TARGETS"); err != nil {
		return err
	}
	if o.incr, err = o.atom("INCR"); err != nil {
		return err
	}
	o.transfers = newIncrTransfers(o.maxBytes)
	return nil
}

func (o *x11Owner) atom(name string) (xproto.Atom, error) {
	reply, err := xproto.InternAtom(o.x, false, uint16(len(name)), name).Reply()
	if err != nil {
		return xproto.AtomNone, fmt.Errorf("intern %s: %w", name, err)
	}
	return reply.Atom, nil
}

func (o *x11Owner) takeSelection() error {
	err := xproto.SetSelectionOwnerChecked(o.x, o.win, o.clipboard, xproto.TimeCurrentTime).Check()
	if err != nil {
		return fmt.Errorf("set selection owner: %w", err)
	}
	reply, err := xproto.GetSelectionOwner(o.x, o.clipboard).Reply()
	if err != nil {
		return fmt.Errorf("get selection owner: %w", err)
	}
	if reply.Owner != o.win {
		return errors.New("another client kept the clipboard")
	}
	return nil
}

func (o *x11Owner) own(items []Item) error {
	if err := o.connect(); err != nil {
		return err
	}
	o.data = make(map[xproto.Atom][]byte)
	o.offered = []xproto.Atom{o.targets}
	for _, it := range expand(items) {
		a, err := o.atom(it.MIME)
		if err != nil {
			return err
		}
		o.data[a] = it.Data
		o.offered = append(o.offered, a)
	}
	return o.takeSelection()
}

func (o *x11Owner) serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { o.x.Close() })
	defer stop()

	for {
		ev, err := o.x.WaitForEvent()
		if ev == nil && err == nil {
			// Connection closed.
			return nil
		}
		if err != nil {
			slog.Debug("x11 error", "err", err)
			continue
		}
		switch e := ev.(type) {
		case xproto.SelectionRequestEvent:
			o.answer(e)
		case xproto.PropertyNotifyEvent:
			if e.State == xproto.PropertyDelete {
				o.sendChunk(e.Window, e.Atom)
			}
		case xproto.SelectionClearEvent:
			slog.Debug("clipboard selection replaced", "pending_transfers", o.transfers.pending())
			o.cleared = true
			if o.transfers.pending() > 0 {
				time.AfterFunc(incrGrace, func() { o.x.Close() })
			}
		}
		if o.cleared && o.transfers.pending() == 0 {
			slog.Debug("clipboard helper exiting")
			return nil
		}
	}
}

func (o *x11Owner) answer(e xproto.SelectionRequestEvent) {
	prop := e.Property
	if prop == xproto.AtomNone {
		// Obsolete requestors.
		prop = e.Target
	}

	switch data, ok := o.data[e.Target]; {
	case o.cleared:
		prop = xproto.AtomNone
	case e.Target == o.targets:
		buf := make([]byte, 4*len(o.offered))
		for i, a := range o.offered {
			xgb.Put32(buf[i*4:], uint32(a))
		}
		xproto.ChangeProperty(o.x, xproto.PropModeReplace, e.Requestor, prop,
			xproto.AtomAtom, 32, uint32(len(o.offered)), buf)
	case ok && len(data) <= o.maxBytes:
		xproto.ChangeProperty(o.x, xproto.PropModeReplace, e.Requestor, prop,
			e.Target, 8, uint32(len(data)), data)
	case ok:
		o.startIncr(e.Requestor, prop, e.Target, data)
	default:
		prop = xproto.AtomNone
	}

	notify := xproto.SelectionNotifyEvent{
		Time:      e.Time,
		Requestor: e.Requestor,
		Selection: e.Selection,
		Target:    e.Target,
		Property:  prop,
	}
	xproto.SendEvent(o.x, false, e.Requestor, xproto.EventMaskNoEvent, string(notify.Bytes()))
}

// startIncr announces an INCR transfer. The requestor deletes the INCR
// property to ask for the first chunk.
func (o *x11Owner) startIncr(win xproto.Window, prop, target xproto.Atom, data []byte) {
	slog.Debug("clipboard transfer uses INCR", "size_bytes", len(data))
	xproto.ChangeWindowAttributes(o.x, win, xproto.CwEventMask, []uint32{xproto.EventMaskPropertyChange})
	size := make([]byte, 4)
	xgb.Put32(size, uint32(len(data)))
	xproto.ChangeProperty(o.x, xproto.PropModeReplace, win, prop, o.incr, 32, 1, size)
	o.transfers.start(win, prop, target, data)
}

// sendChunk answers a property deletion with the next chunk. The final,
// zero-length chunk ends the transfer.
func (o *x11Owner) sendChunk(win xproto.Window, prop xproto.Atom) {
	chunk, target, last, ok := o.transfers.next(win, prop)
	if !ok {
		return
	}
	xproto.ChangeProperty(o.x, xproto.PropModeReplace, win, prop, target, 8, uint32(len(chunk)), chunk)
	if last {
		xproto.ChangeWindowAttributes(o.x, win, xproto.CwEventMask, []uint32{xproto.EventMaskNoEvent})
	}
}

func (o *x11Owner) close() {
	if o.x != nil {
		o.x.Close()
	}
}

type incrKey struct {
	win  xproto.Window
	prop xproto.Atom
}

type incrTransfer struct {
	target xproto.Atom
	data   []byte
	off    int
}

// incrTransfers tracks in-flight INCR transfers by requestor window and
// property.
type incrTransfers struct {
	chunk  int
	active map[incrKey]*incrTransfer
}

func newIncrTransfers(chunk int) *incrTransfers {
	return &incrTransfers{chunk: chunk, active: make(map[incrKey]*incrTransfer)}
}

func (t *incrTransfers) start(win xproto.Window, prop, target xproto.Atom, data []byte) {
	t.active[incrKey{win, prop}] = &incrTransfer{target: target, data: data}
}

// next returns the chunk to write for (win, prop). last is set for the
// empty terminating chunk, after which the transfer is forgotten. ok is
// false for properties no transfer is waiting on.
func (t *incrTransfers) next(win xproto.Window, prop xproto.Atom) (chunk []byte, target xproto.Atom, last, ok bool) {
	key := incrKey{win, prop}
	tr, ok := t.active[key]
	if !ok {
		return nil, xproto.AtomNone, false, false
	}
	end := min(tr.off+t.chunk, len(tr.data))
	chunk = tr.data[tr.off:end]
	tr.off = end
	if len(chunk) == 0 {
		delete(t.active, key)
		return chunk, tr.target, true, true
	}
	return chunk, tr.target, false, true
}

func (t *incrTransfers) pending() int { return len(t.active) }
