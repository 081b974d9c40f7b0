// Package clip reads, writes and clears the system clipboard on behalf of
// the clipboard-paste injection strategy. Build constraints and the running
// session select the backend:
//
//	wayland   native data-control client (ext/wlr), multi-MIME offers
//	x11       CLIPBOARD selection owner over xgb, reads via golang.design/x/clipboard
//	plain     atotto/clipboard (wl-copy / xclip / xsel), no secrecy hint
//	headless  no display; writes fail, reads are empty
//
// Every write carries the x-kde-passwordManagerHint MIME entry in the same
// offer as the content so clipboard-history tools skip it.
package clip

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

const (
	// MIMEText is the canonical plain-text MIME type.
	MIMEText = "text/plain"

	// HintMIME marks an offer as secret for Klipper, cliphist and friends.
	HintMIME  = "x-kde-passwordManagerHint"
	hintValue = "secret"
)

// textAliases are the names text is offered under so both Wayland and X11
// readers find it.
var textAliases = []string{
	"text/plain;charset=utf-8",
	MIMEText,
	"UTF8_STRING",
	"TEXT",
	"STRING",
}

// ErrUnavailable is returned by writes when no clipboard is reachable.
var ErrUnavailable = errors.New("no clipboard available")

// Item is one MIME representation inside a single clipboard offer.
type Item struct {
	MIME string
	Data []byte
}

// Snapshot is clipboard content captured before an injection so it can be
// put back afterwards. It lives for one injection call only.
type Snapshot struct {
	MIME string
	Data []byte
}

// Backend is the interface all clipboard implementations satisfy.
type Backend interface {
	// Name returns a human-readable name for the backend.
	Name() string

	// Read returns the current clipboard content in its preferred
	// representation. Returns nil, nil if the clipboard is empty.
	Read() (*Snapshot, error)

	// Offer replaces the clipboard with a single offer carrying every item.
	Offer(items []Item) error

	// Clear removes all clipboard content.
	Clear() error
}

// Manager implements save / copy-secret / restore / clear on a Backend.
type Manager struct {
	backend Backend
}

// NewManager wraps b.
func NewManager(b Backend) *Manager {
	return &Manager{backend: b}
}

// BackendName returns the name of the underlying backend.
func (m *Manager) BackendName() string { return m.backend.Name() }

// Save captures the current clipboard. Read failures are indistinguishable
// from an empty clipboard: both return nil.
func (m *Manager) Save() *Snapshot {
	snap, err := m.backend.Read()
	if err != nil {
		slog.Debug("clipboard read failed, treating as empty", "backend", m.backend.Name(), "err", err)
		return nil
	}
	if snap == nil || len(snap.Data) == 0 {
		return nil
	}
	slog.Debug("clipboard saved", "mime", snap.MIME, "size_bytes", len(snap.Data))
	return snap
}

// CopySecret places text on the clipboard together with the secrecy hint.
func (m *Manager) CopySecret(text string) error {
	items := secretItems(MIMEText, []byte(text))
	if err := m.backend.Offer(items); err != nil {
		return fmt.Errorf("clipboard copy failed: %w", err)
	}
	m.logOffer("clipboard copied", items)
	return nil
}

// Restore re-offers a saved snapshot, again with the secrecy hint so the
// restore is not recorded as a new history entry.
func (m *Manager) Restore(s *Snapshot) error {
	if s == nil {
		return m.Clear()
	}
	items := secretItems(s.MIME, s.Data)
	if err := m.backend.Offer(items); err != nil {
		return fmt.Errorf("clipboard restore failed: %w", err)
	}
	m.logOffer("clipboard restored", items)
	return nil
}

// logOffer records the types and sizes of an offer at DEBUG. Content is
// never logged.
func (m *Manager) logOffer(event string, items []Item) {
	if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	mimes := make([]string, len(items))
	size := 0
	for i, it := range items {
		mimes[i] = it.MIME
		size += len(it.Data)
	}
	slog.Debug(event, "backend", m.backend.Name(), "types", mimes, "size_bytes", size)
}

// Clear empties the clipboard.
func (m *Manager) Clear() error {
	if err := m.backend.Clear(); err != nil {
		return fmt.Errorf("clipboard clear failed: %w", err)
	}
	return nil
}

func secretItems(mime string, data []byte) []Item {
	if mime == "" {
		mime = MIMEText
	}
	return []Item{
		{MIME: mime, Data: data},
		{MIME: HintMIME, Data: []byte(hintValue)},
	}
}

// IsText reports whether mime is one of the plain-text names.
func IsText(mime string) bool {
	for _, a := range textAliases {
		if strings.EqualFold(mime, a) {
			return true
		}
	}
	return false
}

// expand returns items with every text item also offered under all text
// aliases. Order is preserved and duplicates are dropped.
func expand(items []Item) []Item {
	seen := make(map[string]bool)
	var out []Item
	add := func(it Item) {
		if seen[it.MIME] {
			return
		}
		seen[it.MIME] = true
		out = append(out, it)
	}
	for _, it := range items {
		if IsText(it.MIME) {
			for _, a := range textAliases {
				add(Item{MIME: a, Data: it.Data})
			}
			continue
		}
		add(it)
	}
	return out
}

// preferredMIME picks the representation to save from an offer: text
// first, otherwise the first non-hint type.
func preferredMIME(offered []string) string {
	for _, a := range textAliases {
		for _, m := range offered {
			if m == a {
				return m
			}
		}
	}
	for _, m := range offered {
		if m != HintMIME {
			return m
		}
	}
	return ""
}
