//go:build linux

package clip

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// Minimal Wayland wire protocol client: just enough of wl_display,
// wl_registry and the data-control protocols to read, offer and clear the
// selection. Messages are
//
//	[ object id : u32 ][ size<<16 | opcode : u32 ][ args … ]
//
// in host byte order with 4-byte aligned arguments. File descriptors travel
// out of band as SCM_RIGHTS.

const (
	wlDisplayID = 1

	// wl_display
	wlDisplaySync        = 0
	wlDisplayGetRegistry = 1
	wlDisplayEvError     = 0

	// wl_registry
	wlRegistryBind     = 0
	wlRegistryEvGlobal = 0

	// wl_callback
	wlCallbackEvDone = 0

	// {ext,zwlr}_data_control_manager
	dcManagerCreateSource = 0
	dcManagerGetDevice    = 1

	// {ext,zwlr}_data_control_device
	dcDeviceSetSelection = 0
	dcDeviceEvDataOffer  = 0
	dcDeviceEvSelection  = 1
	dcDeviceEvFinished   = 2

	// {ext,zwlr}_data_control_source
	dcSourceOffer       = 0
	dcSourceEvSend      = 0
	dcSourceEvCancelled = 1

	// {ext,zwlr}_data_control_offer
	dcOfferReceive = 0
	dcOfferDestroy = 1
	dcOfferEvOffer = 0

	wlHeaderSize = 8
	wlMaxFds     = 28
)

var hostOrder = binary.NativeEndian

// wlEvent is one decoded message header plus its raw argument bytes.
type wlEvent struct {
	sender uint32
	opcode uint16
	args   []byte
}

// wlConn is a client connection to the compositor.
type wlConn struct {
	c      *net.UnixConn
	nextID uint32
	in     []byte
	fds    []int
}

// wlSocketPath resolves the compositor socket from WAYLAND_DISPLAY and
// XDG_RUNTIME_DIR the way libwayland does.
func wlSocketPath(lookup func(string) (string, bool)) (string, error) {
	name, _ := lookup("WAYLAND_DISPLAY")
	if name == "" {
		name = "wayland-0"
	}
	if filepath.IsAbs(name) {
		return name, nil
	}
	dir, _ := lookup("XDG_RUNTIME_DIR")
	if dir == "" {
		return "", errors.New("XDG_RUNTIME_DIR not set")
	}
	return filepath.Join(dir, name), nil
}

func dialWayland() (*wlConn, error) {
	path, err := wlSocketPath(os.LookupEnv)
	if err != nil {
		return nil, err
	}
	c, err := net.DialUnix("unix", nil, &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", path, err)
	}
	return &wlConn{c: c, nextID: wlDisplayID + 1}, nil
}

func (c *wlConn) Close() error {
	for _, fd := range c.fds {
		_ = unix.Close(fd)
	}
	c.fds = nil
	return c.c.Close()
}

func (c *wlConn) newID() uint32 {
	id := c.nextID
	c.nextID++
	return id
}

// wlArgs accumulates request arguments.
type wlArgs struct {
	buf []byte
	fds []int
}

func (a *wlArgs) u32(v uint32) *wlArgs {
	a.buf = hostOrder.AppendUint32(a.buf, v)
	return a
}

func (a *wlArgs) str(s string) *wlArgs {
	n := len(s) + 1
	a.buf = hostOrder.AppendUint32(a.buf, uint32(n))
	a.buf = append(a.buf, s...)
	a.buf = append(a.buf, 0)
	for pad := (4 - n%4) % 4; pad > 0; pad-- {
		a.buf = append(a.buf, 0)
	}
	return a
}

func (a *wlArgs) fd(fd int) *wlArgs {
	a.fds = append(a.fds, fd)
	return a
}

// marshal frames a request for object obj.
func marshal(obj uint32, opcode uint16, a *wlArgs) []byte {
	var args []byte
	if a != nil {
		args = a.buf
	}
	size := wlHeaderSize + len(args)
	msg := make([]byte, 0, size)
	msg = hostOrder.AppendUint32(msg, obj)
	msg = hostOrder.AppendUint32(msg, uint32(size)<<16|uint32(opcode))
	return append(msg, args...)
}

func (c *wlConn) request(obj uint32, opcode uint16, a *wlArgs) error {
	msg := marshal(obj, opcode, a)
	var oob []byte
	if a != nil && len(a.fds) > 0 {
		oob = unix.UnixRights(a.fds...)
	}
	if _, _, err := c.c.WriteMsgUnix(msg, oob, nil); err != nil {
		return fmt.Errorf("wayland request %d.%d: %w", obj, opcode, err)
	}
	return nil
}

// readEvent returns the next complete event, reading from the socket as
// needed and queueing any passed file descriptors.
func (c *wlConn) readEvent() (wlEvent, error) {
	for {
		if ev, rest, ok := splitEvent(c.in); ok {
			c.in = rest
			return ev, nil
		}
		buf := make([]byte, 4096)
		oob := make([]byte, unix.CmsgSpace(wlMaxFds*4))
		n, oobn, _, _, err := c.c.ReadMsgUnix(buf, oob)
		if err != nil {
			return wlEvent{}, err
		}
		if oobn > 0 {
			fds, err := parseRights(oob[:oobn])
			if err != nil {
				return wlEvent{}, err
			}
			c.fds = append(c.fds, fds...)
		}
		c.in = append(c.in, buf[:n]...)
	}
}

// splitEvent decodes one event from the front of b.
func splitEvent(b []byte) (wlEvent, []byte, bool) {
	if len(b) < wlHeaderSize {
		return wlEvent{}, b, false
	}
	sender := hostOrder.Uint32(b[0:4])
	word := hostOrder.Uint32(b[4:8])
	size := int(word >> 16)
	if size < wlHeaderSize || len(b) < size {
		return wlEvent{}, b, false
	}
	args := make([]byte, size-wlHeaderSize)
	copy(args, b[wlHeaderSize:size])
	return wlEvent{sender: sender, opcode: uint16(word & 0xffff), args: args}, b[size:], true
}

func parseRights(oob []byte) ([]int, error) {
	msgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return nil, fmt.Errorf("parse control message: %w", err)
	}
	var fds []int
	for i := range msgs {
		rights, err := unix.ParseUnixRights(&msgs[i])
		if err != nil {
			continue
		}
		fds = append(fds, rights...)
	}
	return fds, nil
}

// takeFd pops the oldest received file descriptor.
func (c *wlConn) takeFd() (int, error) {
	if len(c.fds) == 0 {
		return -1, errors.New("wayland: expected file descriptor, none received")
	}
	fd := c.fds[0]
	c.fds = c.fds[1:]
	return fd, nil
}

// wlDecoder reads event arguments in order. The first failure sticks.
type wlDecoder struct {
	b   []byte
	err error
}

func (d *wlDecoder) u32() uint32 {
	if d.err != nil {
		return 0
	}
	if len(d.b) < 4 {
		d.err = errors.New("wayland: short event")
		return 0
	}
	v := hostOrder.Uint32(d.b)
	d.b = d.b[4:]
	return v
}

func (d *wlDecoder) str() string {
	n := int(d.u32())
	if d.err != nil || n == 0 {
		return ""
	}
	padded := (n + 3) &^ 3
	if len(d.b) < padded {
		d.err = errors.New("wayland: short string")
		return ""
	}
	s := string(d.b[:n-1])
	d.b = d.b[padded:]
	return s
}

// roundtrip sends wl_display.sync and dispatches every event that arrives
// before the callback fires. A wl_display.error aborts with an error.
func (c *wlConn) roundtrip(handle func(wlEvent) error) error {
	cb := c.newID()
	if err := c.request(wlDisplayID, wlDisplaySync, new(wlArgs).u32(cb)); err != nil {
		return err
	}
	for {
		ev, err := c.readEvent()
		if err != nil {
			return err
		}
		switch {
		case ev.sender == cb && ev.opcode == wlCallbackEvDone:
			return nil
		case ev.sender == wlDisplayID && ev.opcode == wlDisplayEvError:
			return displayError(ev)
		case ev.sender == wlDisplayID:
			// delete_id
		case handle != nil:
			if err := handle(ev); err != nil {
				return err
			}
		}
	}
}

func displayError(ev wlEvent) error {
	d := wlDecoder{b: ev.args}
	obj := d.u32()
	code := d.u32()
	msg := d.str()
	return fmt.Errorf("wayland protocol error on object %d (code %d): %s", obj, code, msg)
}
