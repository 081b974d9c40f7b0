//go:build linux

package clip

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"
)

// Data-control manager globals, most preferred first. Both protocols share
// request and event opcodes.
var dataControlManagers = []string{
	"ext_data_control_manager_v1",
	"zwlr_data_control_manager_v1",
}

const wlReadTimeout = 2 * time.Second

var errNoDataControl = errors.New("compositor offers no data-control protocol")

// dataControl is a bound data-control device on the first seat.
type dataControl struct {
	conn    *wlConn
	iface   string
	manager uint32
	device  uint32
}

type wlGlobal struct {
	name    uint32
	iface   string
	version uint32
}

// openDataControl connects to the compositor and binds a data-control
// device. Events emitted by device creation (the current selection) are
// delivered to onEvent during the setup roundtrip.
func openDataControl(onEvent func(*dataControl, wlEvent) error) (*dataControl, error) {
	conn, err := dialWayland()
	if err != nil {
		return nil, err
	}
	dc := &dataControl{conn: conn}
	if err := dc.bind(onEvent); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return dc, nil
}

func (dc *dataControl) bind(onEvent func(*dataControl, wlEvent) error) error {
	c := dc.conn
	registry := c.newID()
	if err := c.request(wlDisplayID, wlDisplayGetRegistry, new(wlArgs).u32(registry)); err != nil {
		return err
	}

	var globals []wlGlobal
	err := c.roundtrip(func(ev wlEvent) error {
		if ev.sender != registry || ev.opcode != wlRegistryEvGlobal {
			return nil
		}
		d := wlDecoder{b: ev.args}
		g := wlGlobal{name: d.u32(), iface: d.str(), version: d.u32()}
		if d.err != nil {
			return d.err
		}
		globals = append(globals, g)
		return nil
	})
	if err != nil {
		return fmt.Errorf("wayland registry: %w", err)
	}

	seat, ok := findGlobal(globals, "wl_seat")
	if !ok {
		return errors.New("compositor has no seat")
	}
	var manager wlGlobal
	for _, name := range dataControlManagers {
		if g, ok := findGlobal(globals, name); ok {
			manager = g
			break
		}
	}
	if manager.iface == "" {
		return errNoDataControl
	}
	dc.iface = manager.iface

	seatID, err := dc.bindGlobal(registry, seat, 1)
	if err != nil {
		return err
	}
	if dc.manager, err = dc.bindGlobal(registry, manager, 1); err != nil {
		return err
	}
	dc.device = c.newID()
	if err := c.request(dc.manager, dcManagerGetDevice, new(wlArgs).u32(dc.device).u32(seatID)); err != nil {
		return err
	}
	return c.roundtrip(func(ev wlEvent) error {
		if onEvent == nil {
			return nil
		}
		return onEvent(dc, ev)
	})
}

func findGlobal(globals []wlGlobal, iface string) (wlGlobal, bool) {
	for _, g := range globals {
		if g.iface == iface {
			return g, true
		}
	}
	return wlGlobal{}, false
}

func (dc *dataControl) bindGlobal(registry uint32, g wlGlobal, version uint32) (uint32, error) {
	if g.version < version {
		version = g.version
	}
	id := dc.conn.newID()
	args := new(wlArgs).u32(g.name).str(g.iface).u32(version).u32(id)
	if err := dc.conn.request(registry, wlRegistryBind, args); err != nil {
		return 0, err
	}
	return id, nil
}

func (dc *dataControl) Close() error { return dc.conn.Close() }

// selectionTracker follows data_offer / offer / selection events.
type selectionTracker struct {
	offers    map[uint32][]string
	selection uint32
}

func newSelectionTracker() *selectionTracker {
	return &selectionTracker{offers: make(map[uint32][]string)}
}

func (t *selectionTracker) handle(dc *dataControl, ev wlEvent) error {
	d := wlDecoder{b: ev.args}
	switch {
	case ev.sender == dc.device && ev.opcode == dcDeviceEvDataOffer:
		t.offers[d.u32()] = nil
	case ev.sender == dc.device && ev.opcode == dcDeviceEvSelection:
		t.selection = d.u32()
	case ev.sender == dc.device && ev.opcode == dcDeviceEvFinished:
		return errors.New("data-control device finished")
	default:
		if mimes, ok := t.offers[ev.sender]; ok && ev.opcode == dcOfferEvOffer {
			t.offers[ev.sender] = append(mimes, d.str())
		}
	}
	return d.err
}

// waylandBackend talks data-control directly. Reads and clears happen in
// process; offers are handed to a detached helper that keeps serving the
// selection after this process exits.
type waylandBackend struct {
	spawn func(backend string, items []Item) error
}

func newWaylandBackend() (*waylandBackend, error) {
	dc, err := openDataControl(nil)
	if err != nil {
		return nil, err
	}
	_ = dc.Close()
	return &waylandBackend{spawn: spawnHelper}, nil
}

func (b *waylandBackend) Name() string { return "wayland data-control" }

func (b *waylandBackend) Read() (*Snapshot, error) {
	tracker := newSelectionTracker()
	dc, err := openDataControl(tracker.handle)
	if err != nil {
		return nil, err
	}
	defer dc.Close()

	defer func() {
		for id := range tracker.offers {
			_ = dc.conn.request(id, dcOfferDestroy, nil)
		}
	}()

	if tracker.selection == 0 {
		return nil, nil
	}
	mime := preferredMIME(tracker.offers[tracker.selection])
	if mime == "" {
		return nil, nil
	}
	data, err := dc.receive(tracker.selection, mime)
	if err != nil {
		return nil, err
	}
	return &Snapshot{MIME: mime, Data: data}, nil
}

// receive asks the selection owner to write mime into a pipe and reads it.
func (dc *dataControl) receive(offer uint32, mime string) ([]byte, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("pipe: %w", err)
	}
	defer r.Close()

	err = dc.conn.request(offer, dcOfferReceive, new(wlArgs).str(mime).fd(int(w.Fd())))
	_ = w.Close()
	if err != nil {
		return nil, err
	}
	// Flush the request through the compositor before blocking on the pipe.
	if err := dc.conn.roundtrip(nil); err != nil {
		return nil, err
	}
	_ = r.SetReadDeadline(time.Now().Add(wlReadTimeout))
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", mime, err)
	}
	return data, nil
}

func (b *waylandBackend) Offer(items []Item) error {
	return b.spawn(helperWayland, items)
}

func (b *waylandBackend) Clear() error {
	dc, err := openDataControl(nil)
	if err != nil {
		return err
	}
	defer dc.Close()
	if err := dc.conn.request(dc.device, dcDeviceSetSelection, new(wlArgs).u32(0)); err != nil {
		return err
	}
	return dc.conn.roundtrip(nil)
}

// waylandOwner holds a data-control source inside the helper process.
type waylandOwner struct {
	dc     *dataControl
	source uint32
	data   map[string][]byte
}

func (o *waylandOwner) own(items []Item) error {
	dc, err := openDataControl(nil)
	if err != nil {
		return err
	}
	o.dc = dc
	o.data = make(map[string][]byte)

	o.source = dc.conn.newID()
	if err := dc.conn.request(dc.manager, dcManagerCreateSource, new(wlArgs).u32(o.source)); err != nil {
		return err
	}
	for _, it := range expand(items) {
		o.data[it.MIME] = it.Data
		if err := dc.conn.request(o.source, dcSourceOffer, new(wlArgs).str(it.MIME)); err != nil {
			return err
		}
	}
	if err := dc.conn.request(dc.device, dcDeviceSetSelection, new(wlArgs).u32(o.source)); err != nil {
		return err
	}
	return dc.conn.roundtrip(nil)
}

// serve answers send requests until another client takes the selection.
func (o *waylandOwner) serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = o.dc.Close() })
	defer stop()

	for {
		ev, err := o.dc.conn.readEvent()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		switch {
		case ev.sender == wlDisplayID && ev.opcode == wlDisplayEvError:
			return displayError(ev)
		case ev.sender == o.source && ev.opcode == dcSourceEvSend:
			d := wlDecoder{b: ev.args}
			mime := d.str()
			if d.err != nil {
				return d.err
			}
			fd, err := o.dc.conn.takeFd()
			if err != nil {
				return err
			}
			go o.send(mime, fd)
		case ev.sender == o.source && ev.opcode == dcSourceEvCancelled:
			slog.Debug("clipboard selection replaced, helper exiting")
			return nil
		case ev.sender == o.dc.device && ev.opcode == dcDeviceEvDataOffer:
			// Our own selection echoed back; we never read it.
			d := wlDecoder{b: ev.args}
			_ = o.dc.conn.request(d.u32(), dcOfferDestroy, nil)
		case ev.sender == o.dc.device && ev.opcode == dcDeviceEvFinished:
			return errors.New("data-control device finished")
		}
	}
}

func (o *waylandOwner) send(mime string, fd int) {
	f := os.NewFile(uintptr(fd), "wayland-send")
	defer f.Close()
	if _, err := f.Write(o.data[mime]); err != nil {
		slog.Debug("clipboard send failed", "mime", mime, "err", err)
	}
}

func (o *waylandOwner) close() {
	if o.dc != nil {
		_ = o.dc.Close()
	}
}
