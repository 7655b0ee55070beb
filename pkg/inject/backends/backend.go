// Package backends provides the concrete Injection Strategy Manager
// backends: AT-SPI accessibility, clipboard-paste, synthetic keystroke, and
// a no-op fallback.
package backends

import "context"

// Mode is the centrally-decided injection mechanism for one call; backends
// honor it when set and fall back to their own config otherwise.
type Mode int

const (
	ModeUnset Mode = iota
	ModePaste
	ModeKeystroke
)

type modeKey struct{}

// WithMode attaches mode to ctx for a backend to read via ModeFromContext.
func WithMode(ctx context.Context, mode Mode) context.Context {
	return context.WithValue(ctx, modeKey{}, mode)
}

// ModeFromContext reads back a Mode attached by WithMode, or ModeUnset.
func ModeFromContext(ctx context.Context) Mode {
	if m, ok := ctx.Value(modeKey{}).(Mode); ok {
		return m
	}
	return ModeUnset
}

// FocusInfo describes the best-effort resolved focused application.
type FocusInfo struct {
	AppID         string // "Unknown" if indeterminate
	Editable      bool
	EditableKnown bool
}

// Backend is one concrete injection mechanism, per §9's polymorphism note.
type Backend interface {
	// ID is the stable backend identifier used in allow_methods and ranking.
	ID() string

	// Priority is the fixed tie-break order (lower runs first on a tie).
	Priority() int

	// Available reports whether this backend can run at all on the current
	// platform/session (e.g. a required binary is on PATH).
	Available() bool

	// Inject delivers text to the currently focused target. ctx carries
	// the centrally-decided Mode via ModeFromContext and a per-method
	// timeout as its deadline.
	Inject(ctx context.Context, text string, focus FocusInfo) error
}
