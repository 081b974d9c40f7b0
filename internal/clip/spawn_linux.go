//go:build linux

package clip

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/AKuederle/soundvibes/internal/wire"
)

// spawnHelper starts a detached copy of this executable that takes the
// selection with items and keeps serving it. It returns once the helper
// reports ownership or failure.
func spawnHelper(backend string, items []Item) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}
	cmd := exec.Command(exe, append(append([]string(nil), HelperArgs...), backend)...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start clipboard helper: %w", err)
	}

	wc := wire.NewStream(stdout, stdin, stdin)
	err = handoff(wc, items, helperReadyTimeout)
	_ = wc.Close()
	if err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return err
	}
	// Reap the helper when it eventually loses the selection.
	go func() { _ = cmd.Wait() }()
	return nil
}
