package audio

import (
	"strings"

	"github.com/gen2brain/malgo"
)

// DeviceDescriptor is an immutable snapshot of one enumerated input device.
// malgo's device enumeration (ctx.Devices) only surfaces id/name/default;
// full capability probing (supported formats, channel and sample-rate
// ranges) requires opening the device, so Pick's priority (4) hardware
// heuristic is not applicable at enumeration time and is omitted below.
type DeviceDescriptor struct {
	ID        malgo.DeviceID
	Name      string
	IsDefault bool
}

// NegotiatedConfig is the stream configuration actually opened against a
// device; once opened it is never mutated.
type NegotiatedConfig struct {
	SampleRate int
	Channels   int
	FormatTag  malgo.FormatType
}

// DevicePreference selects which candidate the Device Manager should open.
type DevicePreference struct {
	// ExactID, if non-empty, must match a DeviceDescriptor.ID.String() exactly.
	ExactID string
	// NameSubstring, if non-empty, matches case-insensitively against the
	// device's human name. A match is warn-logged with the matched candidate
	// name so substring ambiguity is visible in the logs.
	NameSubstring string
}

// Manager implements Device Manager: enumerate/pick/open input devices.
type Manager struct {
	ctx *malgo.AllocatedContext
	log func(format string, args ...interface{})
}

// NewManager initialises a malgo audio context shared by enumeration and
// stream opening. logf is used for the warn-level substring-match log; pass
// log.Printf or an equivalent.
func NewManager(logf func(format string, args ...interface{})) (*Manager, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, newError(ErrCaptureFatal, "failed to initialize audio context", err)
	}
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	return &Manager{ctx: ctx, log: logf}, nil
}

// Close releases the underlying malgo context. Call once at shutdown, after
// the Capture Thread has stopped using any device derived from it.
func (m *Manager) Close() {
	if m.ctx != nil {
		m.ctx.Uninit()
		m.ctx = nil
	}
}

// Enumerate lists the currently visible capture devices.
func (m *Manager) Enumerate() ([]DeviceDescriptor, error) {
	infos, err := m.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, newError(ErrDeviceUnavailable, "failed to enumerate capture devices", err)
	}

	descs := make([]DeviceDescriptor, 0, len(infos))
	for _, info := range infos {
		descs = append(descs, DeviceDescriptor{
			ID:        info.ID,
			Name:      info.Name(),
			IsDefault: info.IsDefault != 0,
		})
	}
	return descs, nil
}

// Pick selects a device per the priority order: (1) exact id override,
// (2) human-name substring override (warn-logged), (3) platform default,
// (4) any input. Priority (4) in spec.md §4.1 ("hardware heuristics,
// prefer mono/16kHz-capable capture devices") would need per-device
// capability probing malgo's enumeration doesn't provide; the Capture
// Thread negotiates the actual format on Open regardless of which
// candidate is picked here, so this falls through to "any input" instead
// of a heuristic it has no data to evaluate.
func (m *Manager) Pick(pref DevicePreference) (DeviceDescriptor, error) {
	candidates, err := m.Enumerate()
	if err != nil {
		return DeviceDescriptor{}, err
	}
	if len(candidates) == 0 {
		return DeviceDescriptor{}, newError(ErrDeviceUnavailable, "no capture devices available", nil)
	}

	if pref.ExactID != "" {
		for _, d := range candidates {
			if d.ID.String() == pref.ExactID {
				return d, nil
			}
		}
	}

	if pref.NameSubstring != "" {
		needle := strings.ToLower(pref.NameSubstring)
		for _, d := range candidates {
			if strings.Contains(strings.ToLower(d.Name), needle) {
				m.log("[device] matched %q by substring preference %q", d.Name, pref.NameSubstring)
				return d, nil
			}
		}
	}

	for _, d := range candidates {
		if d.IsDefault {
			return d, nil
		}
	}

	return candidates[0], nil
}

// Open negotiates and opens a capture stream for desc, returning the config
// that was actually negotiated. The returned malgo.DeviceConfig is handed to
// the Capture Thread, which owns the resulting malgo.Device exclusively.
func (m *Manager) Open(desc DeviceDescriptor, sampleRate, channels int) (malgo.DeviceConfig, NegotiatedConfig, error) {
	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.DeviceID = desc.ID.Pointer()
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = uint32(channels)
	cfg.SampleRate = uint32(sampleRate)
	cfg.PeriodSizeInMilliseconds = 20

	negotiated := NegotiatedConfig{
		SampleRate: sampleRate,
		Channels:   channels,
		FormatTag:  malgo.FormatS16,
	}
	return cfg, negotiated, nil
}

// Context exposes the underlying malgo context for the Capture Thread to
// open devices against. The Capture Thread owns the resulting *malgo.Device
// exclusively; the Manager retains ownership of the context itself.
func (m *Manager) Context() *malgo.AllocatedContext {
	return m.ctx
}
