// Package session classifies the graphical session the process runs in.
//
// Detection is environment-only and recomputed on every call: an explicit
// XDG_SESSION_TYPE wins, otherwise the presence of WAYLAND_DISPLAY or
// DISPLAY is enough. Both checks are independent, so an XWayland session
// reports Wayland and X11 at the same time.
package session

import (
	"os"
	"strings"
)

const (
	envSessionType    = "XDG_SESSION_TYPE"
	envWaylandDisplay = "WAYLAND_DISPLAY"
	envX11Display     = "DISPLAY"
)

// Kind is the primary session type.
type Kind string

const (
	Wayland Kind = "wayland"
	X11     Kind = "x11"
	Unknown Kind = "unknown"
)

// Env is the read-only view of the process environment used for detection.
type Env interface {
	LookupEnv(key string) (string, bool)
}

// OSEnv reads the real process environment.
type OSEnv struct{}

func (OSEnv) LookupEnv(key string) (string, bool) { return os.LookupEnv(key) }

// MapEnv is a fixed environment, handy for tests and for requests that
// carry their own session variables.
type MapEnv map[string]string

func (m MapEnv) LookupEnv(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// TypeProbe supplies a session type when XDG_SESSION_TYPE is absent, for
// example from logind. Errors mean "no signal".
type TypeProbe interface {
	SessionType() (string, error)
}

// Detector answers session questions from an Env.
type Detector struct {
	Env Env
	// Logind is consulted only when XDG_SESSION_TYPE is unset. May be nil.
	Logind TypeProbe
}

// New returns a Detector over the real environment without a logind probe.
func New() *Detector {
	return &Detector{Env: OSEnv{}}
}

// HasWayland reports whether a Wayland session is detected.
func (d *Detector) HasWayland() bool {
	return d.has(string(Wayland), envWaylandDisplay)
}

// HasX11 reports whether an X11 session is detected.
func (d *Detector) HasX11() bool {
	return d.has(string(X11), envX11Display)
}

// Kind returns Wayland when a Wayland session is detected, X11 when only
// X11 is, and Unknown otherwise.
func (d *Detector) Kind() Kind {
	switch {
	case d.HasWayland():
		return Wayland
	case d.HasX11():
		return X11
	default:
		return Unknown
	}
}

// Describe names every detected session type, e.g. "wayland+x11".
func (d *Detector) Describe() string {
	var parts []string
	if d.HasWayland() {
		parts = append(parts, string(Wayland))
	}
	if d.HasX11() {
		parts = append(parts, string(X11))
	}
	if len(parts) == 0 {
		return string(Unknown)
	}
	return strings.Join(parts, "+")
}

// Vars returns the session variables that are set, for diagnostics.
func (d *Detector) Vars() map[string]string {
	out := make(map[string]string)
	for _, k := range []string{envSessionType, envWaylandDisplay, envX11Display} {
		if v, ok := d.env().LookupEnv(k); ok {
			out[k] = v
		}
	}
	return out
}

func (d *Detector) has(kind, displayVar string) bool {
	if strings.EqualFold(d.sessionType(), kind) {
		return true
	}
	_, ok := d.env().LookupEnv(displayVar)
	return ok
}

func (d *Detector) sessionType() string {
	if v, ok := d.env().LookupEnv(envSessionType); ok {
		return v
	}
	if d.Logind == nil {
		return ""
	}
	v, err := d.Logind.SessionType()
	if err != nil {
		return ""
	}
	return v
}

func (d *Detector) env() Env {
	if d.Env == nil {
		return OSEnv{}
	}
	return d.Env
}
