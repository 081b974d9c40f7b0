//go:build linux

package clip

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalSync(t *testing.T) {
	msg := marshal(wlDisplayID, wlDisplaySync, new(wlArgs).u32(2))
	require.Len(t, msg, 12)
	assert.Equal(t, uint32(1), hostOrder.Uint32(msg[0:4]))
	assert.Equal(t, uint32(12<<16), hostOrder.Uint32(msg[4:8]))
	assert.Equal(t, uint32(2), hostOrder.Uint32(msg[8:12]))
}

func TestStringPadding(t *testing.T) {
	tests := []struct {
		s    string
		size int
	}{
		{"", 8},       // len 1 + 3 pad
		{"abc", 8},    // len 4, no pad
		{"abcd", 12},  // len 5 + 3 pad
		{"wl_seat", 12},
	}
	for _, tt := range tests {
		a := new(wlArgs).str(tt.s)
		assert.Len(t, a.buf, tt.size, "%q", tt.s)

		d := wlDecoder{b: a.buf}
		assert.Equal(t, tt.s, d.str())
		assert.NoError(t, d.err)
		assert.Empty(t, d.b)
	}
}

func TestSplitEvent(t *testing.T) {
	// registry.global(name=7, "wl_seat", version=8) followed by a partial header.
	ev := marshal(3, wlRegistryEvGlobal, new(wlArgs).u32(7).str("wl_seat").u32(8))
	stream := append(append([]byte(nil), ev...), 0x01, 0x02)

	got, rest, ok := splitEvent(stream)
	require.True(t, ok)
	assert.Equal(t, uint32(3), got.sender)
	assert.Equal(t, uint16(wlRegistryEvGlobal), got.opcode)
	assert.Equal(t, []byte{0x01, 0x02}, rest)

	d := wlDecoder{b: got.args}
	assert.Equal(t, uint32(7), d.u32())
	assert.Equal(t, "wl_seat", d.str())
	assert.Equal(t, uint32(8), d.u32())
	require.NoError(t, d.err)

	_, _, ok = splitEvent(rest)
	assert.False(t, ok)
}

func TestDecoderShortEvent(t *testing.T) {
	d := wlDecoder{b: []byte{1, 0}}
	d.u32()
	assert.Error(t, d.err)
	assert.Equal(t, "", d.str())
}

func TestSelectionTracker(t *testing.T) {
	dc := &dataControl{device: 5}
	tr := newSelectionTracker()

	const offer = 0xff000001
	require.NoError(t, tr.handle(dc, wlEvent{sender: 5, opcode: dcDeviceEvDataOffer, args: new(wlArgs).u32(offer).buf}))
	require.NoError(t, tr.handle(dc, wlEvent{sender: offer, opcode: dcOfferEvOffer, args: new(wlArgs).str("text/plain").buf}))
	require.NoError(t, tr.handle(dc, wlEvent{sender: offer, opcode: dcOfferEvOffer, args: new(wlArgs).str(HintMIME).buf}))
	require.NoError(t, tr.handle(dc, wlEvent{sender: 5, opcode: dcDeviceEvSelection, args: new(wlArgs).u32(offer).buf}))

	assert.Equal(t, uint32(offer), tr.selection)
	assert.Equal(t, []string{"text/plain", HintMIME}, tr.offers[offer])

	err := tr.handle(dc, wlEvent{sender: 5, opcode: dcDeviceEvFinished})
	assert.Error(t, err)
}

func TestSocketPath(t *testing.T) {
	env := map[string]string{"XDG_RUNTIME_DIR": "/run/user/1000"}
	lookup := func(k string) (string, bool) { v, ok := env[k]; return v, ok }

	p, err := wlSocketPath(lookup)
	require.NoError(t, err)
	assert.Equal(t, "/run/user/1000/wayland-0", p)

	env["WAYLAND_DISPLAY"] = "wayland-1"
	p, _ = wlSocketPath(lookup)
	assert.Equal(t, "/run/user/1000/wayland-1", p)

	env["WAYLAND_DISPLAY"] = "/tmp/wl.sock"
	p, _ = wlSocketPath(lookup)
	assert.Equal(t, "/tmp/wl.sock", p)

	delete(env, "XDG_RUNTIME_DIR")
	env["WAYLAND_DISPLAY"] = "wayland-0"
	_, err = wlSocketPath(lookup)
	assert.Error(t, err)
}
