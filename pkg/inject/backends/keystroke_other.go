//go:build !linux

package backends

import "context"

// Keystroke is unavailable outside Linux; §1 names desktop Linux as the
// primary target with hooks for Windows/macOS.
type Keystroke struct {
	PriorityValue int
}

func NewKeystroke(priority int) *Keystroke { return &Keystroke{PriorityValue: priority} }

func (k *Keystroke) ID() string      { return "keystroke" }
func (k *Keystroke) Priority() int   { return k.PriorityValue }
func (k *Keystroke) Available() bool { return false }
func (k *Keystroke) Close() error    { return nil }

func (k *Keystroke) Inject(ctx context.Context, text string, focus FocusInfo) error {
	return errUnavailable
}

func (k *Keystroke) PasteCombo(ctx context.Context) error {
	return errUnavailable
}

var _ Backend = (*Keystroke)(nil)
