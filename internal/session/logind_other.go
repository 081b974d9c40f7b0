//go:build !linux

package session

import "errors"

// LogindProbe is unavailable off Linux.
type LogindProbe struct{}

func (LogindProbe) SessionType() (string, error) {
	return "", errors.New("logind not available on this platform")
}
