package backends

import (
	"context"
	"log"
	"sync"

	"github.com/godbus/dbus/v5"
)

// ATSPI is the accessibility-based backend: it tracks the AT-SPI focus
// event stream over D-Bus and, on Inject, calls the focused accessible
// object's EditableText.SetTextContents method directly — no external
// binary, the a11y bus itself is the out-of-scope collaborator per §1.
type ATSPI struct {
	PriorityValue int

	mu           sync.Mutex
	conn         *dbus.Conn
	focusSender  string
	focusPath    dbus.ObjectPath
	focusEditable bool
	haveFocus    bool
}

// NewATSPI connects to the accessibility bus (discovered via the session
// bus's org.a11y.Bus.GetAddress) and subscribes to StateChanged "focused"
// events. Available reports false if the accessibility bus cannot be
// reached.
func NewATSPI(priority int) *ATSPI {
	a := &ATSPI{PriorityValue: priority}
	conn, err := dialAccessibilityBus()
	if err != nil {
		log.Printf("[inject-atspi] accessibility bus unavailable: %v", err)
		return a
	}
	a.conn = conn

	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface("org.a11y.atspi.Event.Object"),
		dbus.WithMatchMember("StateChanged"),
	); err != nil {
		log.Printf("[inject-atspi] subscribing to focus events: %v", err)
		return a
	}

	signals := make(chan *dbus.Signal, 16)
	conn.Signal(signals)
	go a.trackFocus(signals)

	return a
}

func dialAccessibilityBus() (*dbus.Conn, error) {
	sessionConn, err := dbus.SessionBus()
	if err != nil {
		return nil, err
	}
	var address string
	obj := sessionConn.Object("org.a11y.Bus", "/org/a11y/bus")
	if err := obj.Call("org.a11y.Bus.GetAddress", 0).Store(&address); err != nil {
		return nil, err
	}
	return dbus.Dial(address)
}

func (a *ATSPI) trackFocus(signals chan *dbus.Signal) {
	for sig := range signals {
		if sig.Name != "org.a11y.atspi.Event.Object.StateChanged" {
			continue
		}
		if len(sig.Body) < 1 {
			continue
		}
		kind, ok := sig.Body[0].(string)
		if !ok || kind != "focused" {
			continue
		}

		a.mu.Lock()
		a.focusSender = sig.Sender
		a.focusPath = sig.Path
		a.haveFocus = true
		a.focusEditable = a.isEditableLocked()
		a.mu.Unlock()
	}
}

// isEditableLocked queries the focused object's supported interfaces for
// org.a11y.atspi.EditableText. Caller must hold a.mu.
func (a *ATSPI) isEditableLocked() bool {
	obj := a.conn.Object(a.focusSender, a.focusPath)
	var ifaces []string
	if err := obj.Call("org.a11y.atspi.Accessible.GetInterfaces", 0).Store(&ifaces); err != nil {
		return false
	}
	for _, iface := range ifaces {
		if iface == "org.a11y.atspi.EditableText" {
			return true
		}
	}
	return false
}

func (a *ATSPI) ID() string      { return "atspi" }
func (a *ATSPI) Priority() int   { return a.PriorityValue }
func (a *ATSPI) Available() bool { return a.conn != nil }

// ResolveFocus implements pkg/inject's FocusResolver, giving the Injection
// Strategy Manager a best-effort editable-focus signal independent of which
// backend ultimately performs the injection.
func (a *ATSPI) ResolveFocus(ctx context.Context) FocusInfo {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.haveFocus {
		return FocusInfo{AppID: "Unknown"}
	}
	return FocusInfo{AppID: string(a.focusSender), Editable: a.focusEditable, EditableKnown: true}
}

// Inject calls SetTextContents on the currently focused accessible object.
func (a *ATSPI) Inject(ctx context.Context, text string, focus FocusInfo) error {
	a.mu.Lock()
	sender, path, have := a.focusSender, a.focusPath, a.haveFocus
	a.mu.Unlock()

	if !have {
		return newErr(a.ID(), "no focused accessible object known", nil)
	}

	obj := a.conn.Object(sender, path)
	call := obj.CallWithContext(ctx, "org.a11y.atspi.EditableText.SetTextContents", 0, text)
	if call.Err != nil {
		return newErr(a.ID(), "SetTextContents failed", call.Err)
	}
	return nil
}

var _ Backend = (*ATSPI)(nil)
