//go:build !linux

package hotkey

// Spawn is unimplemented outside Linux; §1 names desktop Linux as the
// primary target with hooks for Windows/macOS.
func Spawn(cfg Config, initialMode Mode) (*Handle, error) {
	return nil, ErrUnsupportedPlatform
}
