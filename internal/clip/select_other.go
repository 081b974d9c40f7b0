//go:build !linux

package clip

import (
	"fmt"

	"github.com/atotto/clipboard"

	"github.com/AKuederle/soundvibes/internal/session"
)

// New returns the tool-based backend where available, otherwise headless.
func New(_ *session.Detector) Backend {
	if !clipboard.Unsupported {
		return plainBackend{}
	}
	return headlessBackend{}
}

func newOwner(backend string) (owner, error) {
	return nil, fmt.Errorf("%w: %q", errUnknownHelper, backend)
}
