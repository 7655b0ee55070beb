// Package backends provides the concrete Injection Strategy Manager
// backends: AT-SPI accessibility, clipboard-paste, synthetic keystroke, and
// a no-op fallback.
package backends

import "context"

// NoOp is always available and always succeeds without doing anything. It
// is the last-resort candidate when allow_methods excludes everything else,
// and is used directly in tests.
type NoOp struct {
	PriorityValue int
}

func (n *NoOp) ID() string       { return "noop" }
func (n *NoOp) Priority() int    { return n.PriorityValue }
func (n *NoOp) Available() bool { return true }

func (n *NoOp) Inject(ctx context.Context, text string, focus FocusInfo) error {
	return nil
}

var _ Backend = (*NoOp)(nil)
