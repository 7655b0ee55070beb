//go:build linux

package backends

import (
	"context"
	"unsafe"

	"github.com/gvalkov/golang-evdev"
	"golang.org/x/sys/unix"
)

// uinput ioctl/event constants, per linux/uinput.h and linux/input.h. There
// is no Go uinput-writing library in the retrieval pack, so the virtual
// keyboard device is created directly against /dev/uinput; keycode names
// are resolved through golang-evdev's evdev.KEY table, the same table the
// Hotkey Supervisor reads from, so both directions of the keyboard share
// one source of truth.
const (
	evSyn = 0x00
	evKey = 0x01

	synReport = 0

	uiSetEvBit  = 0x40045564
	uiSetKeyBit = 0x40045565
	uiDevCreate = 0x5501
	uiDevDestroy = 0x5502

	absCnt = 64
)

type inputID struct {
	BusType uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

type uinputUserDev struct {
	Name       [80]byte
	ID         inputID
	EffectsMax uint32
	Absmax     [absCnt]int32
	Absmin     [absCnt]int32
	Absfuzz    [absCnt]int32
	Absflat    [absCnt]int32
}

type inputEvent struct {
	Time  unix.Timeval
	Type  uint16
	Code  uint16
	Value int32
}

// asciiKeymap maps a printable ASCII rune to the evdev keycode and whether
// Shift must be held. Punctuation outside this small table is skipped.
var asciiKeymap = buildASCIIKeymap()

func buildASCIIKeymap() map[rune][2]int {
	m := map[rune][2]int{}
	lower := "abcdefghijklmnopqrstuvwxyz"
	for _, c := range lower {
		if code, ok := evdev.KEY["KEY_"+string([]rune{c - 32})]; ok {
			m[c] = [2]int{code, 0}
			m[c-32] = [2]int{code, 1}
		}
	}
	digits := map[rune]string{
		'0': "KEY_0", '1': "KEY_1", '2': "KEY_2", '3': "KEY_3", '4': "KEY_4",
		'5': "KEY_5", '6': "KEY_6", '7': "KEY_7", '8': "KEY_8", '9': "KEY_9",
	}
	for r, name := range digits {
		if code, ok := evdev.KEY[name]; ok {
			m[r] = [2]int{code, 0}
		}
	}
	if code, ok := evdev.KEY["KEY_SPACE"]; ok {
		m[' '] = [2]int{code, 0}
	}
	if code, ok := evdev.KEY["KEY_ENTER"]; ok {
		m['\n'] = [2]int{code, 0}
	}
	punct := map[rune]struct {
		name  string
		shift int
	}{
		'.': {"KEY_DOT", 0}, ',': {"KEY_COMMA", 0}, '!': {"KEY_1", 1},
		'?': {"KEY_SLASH", 1}, '-': {"KEY_MINUS", 0}, '\'': {"KEY_APOSTROPHE", 0},
	}
	for r, p := range punct {
		if code, ok := evdev.KEY[p.name]; ok {
			m[r] = [2]int{code, p.shift}
		}
	}
	return m
}

// Keystroke is the synthetic-key-based backend: it creates a virtual
// keyboard via /dev/uinput and emits key down/up events for each character
// of the injected text.
type Keystroke struct {
	PriorityValue int

	fd        int
	available bool
}

// NewKeystroke opens /dev/uinput and registers a virtual keyboard device.
// Available reports false (without erroring) if /dev/uinput cannot be
// opened, e.g. missing permissions or kernel module.
func NewKeystroke(priority int) *Keystroke {
	k := &Keystroke{PriorityValue: priority}
	fd, err := unix.Open("/dev/uinput", unix.O_WRONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return k
	}
	if err := setupUinputDevice(fd); err != nil {
		unix.Close(fd)
		return k
	}
	k.fd = fd
	k.available = true
	return k
}

func setupUinputDevice(fd int) error {
	if err := ioctlInt(fd, uiSetEvBit, evKey); err != nil {
		return err
	}
	for _, code := range evdev.KEY {
		if err := ioctlInt(fd, uiSetKeyBit, code); err != nil {
			return err
		}
	}

	var dev uinputUserDev
	copy(dev.Name[:], "coldvox-virtual-keyboard")
	dev.ID = inputID{BusType: 0x03, Vendor: 0x1, Product: 0x1, Version: 1}

	buf := (*[unsafe.Sizeof(dev)]byte)(unsafe.Pointer(&dev))[:]
	if _, err := unix.Write(fd, buf); err != nil {
		return err
	}
	return ioctlNoArg(fd, uiDevCreate)
}

func ioctlInt(fd int, req uint, arg int) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(req), uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

func ioctlNoArg(fd int, req uint) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(req), 0)
	if errno != 0 {
		return errno
	}
	return nil
}

func (k *Keystroke) ID() string       { return "keystroke" }
func (k *Keystroke) Priority() int    { return k.PriorityValue }
func (k *Keystroke) Available() bool  { return k.available }

// Close destroys the virtual device. Safe to call on an unavailable
// Keystroke.
func (k *Keystroke) Close() error {
	if !k.available {
		return nil
	}
	ioctlNoArg(k.fd, uiDevDestroy)
	return unix.Close(k.fd)
}

// Inject types text one key event at a time. Runes with no keymap entry are
// skipped rather than aborting the whole injection.
func (k *Keystroke) Inject(ctx context.Context, text string, focus FocusInfo) error {
	if !k.available {
		return errUnavailable
	}
	for _, r := range text {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		mapping, ok := asciiKeymap[r]
		if !ok {
			continue
		}
		code, shift := mapping[0], mapping[1] == 1
		if err := k.pressKey(code, shift); err != nil {
			return newErr(k.ID(), "emitting key event", err)
		}
	}
	return nil
}

// PasteCombo synthesizes Ctrl+V, used by Clipboard as its paste step.
func (k *Keystroke) PasteCombo(ctx context.Context) error {
	if !k.available {
		return errUnavailable
	}
	ctrlCode, ok := evdev.KEY["KEY_LEFTCTRL"]
	if !ok {
		return newErr(k.ID(), "no KEY_LEFTCTRL in keymap", nil)
	}
	vCode, ok := evdev.KEY["KEY_V"]
	if !ok {
		return newErr(k.ID(), "no KEY_V in keymap", nil)
	}
	if err := k.emit(ctrlCode, 1); err != nil {
		return err
	}
	if err := k.emit(vCode, 1); err != nil {
		return err
	}
	if err := k.emit(vCode, 0); err != nil {
		return err
	}
	return k.emit(ctrlCode, 0)
}

func (k *Keystroke) pressKey(code int, shift bool) error {
	shiftCode, _ := evdev.KEY["KEY_LEFTSHIFT"]
	if shift {
		if err := k.emit(shiftCode, 1); err != nil {
			return err
		}
	}
	if err := k.emit(code, 1); err != nil {
		return err
	}
	if err := k.emit(code, 0); err != nil {
		return err
	}
	if shift {
		if err := k.emit(shiftCode, 0); err != nil {
			return err
		}
	}
	return nil
}

func (k *Keystroke) emit(code int, value int32) error {
	ev := inputEvent{Type: evKey, Code: uint16(code), Value: value}
	buf := (*[unsafe.Sizeof(ev)]byte)(unsafe.Pointer(&ev))[:]
	if _, err := unix.Write(k.fd, buf); err != nil {
		return err
	}
	syn := inputEvent{Type: evSyn, Code: synReport, Value: 0}
	synBuf := (*[unsafe.Sizeof(syn)]byte)(unsafe.Pointer(&syn))[:]
	_, err := unix.Write(k.fd, synBuf)
	return err
}

var _ Backend = (*Keystroke)(nil)
