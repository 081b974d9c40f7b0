// Package ipc provides helpers for the local Unix-socket channel used by
// CLI tools (type/status) to talk to a running soundvibes daemon instead of
// injecting in-process.
//
// The channel speaks the newline-delimited JSON protocol from package
// message, one request and one response per connection. The daemon listens
// on the socket; CLI sub-commands probe for it and fall back to in-process
// injection if it is absent.
package ipc

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/AKuederle/soundvibes/internal/message"
	"github.com/AKuederle/soundvibes/internal/wire"
)

const dialTimeout = 2 * time.Second

// SocketPath returns the IPC socket path.
//
//   - override, when non-empty
//   - $SOUNDVIBES_SOCKET
//   - $XDG_RUNTIME_DIR/soundvibes.sock
//   - $TMPDIR/soundvibes-<uid>.sock
func SocketPath(override string) string {
	if override != "" {
		return override
	}
	if s := os.Getenv("SOUNDVIBES_SOCKET"); s != "" {
		return s
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "soundvibes.sock")
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("soundvibes-%d.sock", os.Getuid()))
}

// IsRunning reports whether a daemon appears to be listening on path. It
// does a cheap dial-and-close; no data is exchanged.
func IsRunning(path string) bool {
	c, err := net.DialTimeout("unix", path, dialTimeout)
	if err != nil {
		return false
	}
	_ = c.Close()
	return true
}

// Listen creates a listener on path, removing any stale socket file first.
// The socket is made owner-only.
func Listen(path string) (net.Listener, error) {
	// Remove stale socket from a previous (crashed) run.
	_ = os.Remove(path)
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(path, 0o600); err != nil {
		_ = ln.Close()
		return nil, fmt.Errorf("chmod %s: %w", path, err)
	}
	return ln, nil
}

// Call sends req to the daemon on path and returns its single response.
// timeout bounds the wait for the response; 0 waits forever, since an
// injection may legitimately block on a slow external tool.
func Call(path string, req *message.Message, timeout time.Duration) (*message.Message, error) {
	conn, err := net.DialTimeout("unix", path, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", path, err)
	}
	wc := wire.New(conn)
	defer wc.Close()

	if err := wc.WriteMsg(req); err != nil {
		return nil, fmt.Errorf("send %s: %w", req.Type, err)
	}
	wc.SetReadDeadline(timeout)
	resp, err := wc.ReadMsg()
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return resp, nil
}
