package watchdog

import (
	"context"
	"log"
	"time"

	"github.com/coldvox/coldvox/pkg/audio"
)

// pollInterval is the Device Monitor's re-enumeration cadence. §4.12
// requires >= 2s to avoid spurious hot-plug churn.
const pollInterval = 3 * time.Second

// DeviceMonitor polls the Device Manager's enumeration at pollInterval and
// calls onChanged whenever the previously selected device disappears or the
// platform default changes.
type DeviceMonitor struct {
	mgr       *audio.Manager
	onChanged func(reason string)

	selectedID string
	wasDefault string

	cancel context.CancelFunc
	done   chan struct{}
}

// NewDeviceMonitor creates a DeviceMonitor tracking selectedID (the device
// the Capture Thread currently has open). onChanged is called with a
// human-readable reason whenever re-enumeration observes a change worth
// reacting to.
func NewDeviceMonitor(mgr *audio.Manager, selectedID string, onChanged func(reason string)) *DeviceMonitor {
	return &DeviceMonitor{mgr: mgr, selectedID: selectedID, onChanged: onChanged, done: make(chan struct{})}
}

// SetSelected updates which device ID the monitor should watch for
// disappearance, e.g. after the Capture Thread opens a new device following
// its own restart.
func (d *DeviceMonitor) SetSelected(id string) {
	d.selectedID = id
}

// Start launches the polling goroutine.
func (d *DeviceMonitor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	go d.run(ctx)
}

// Stop ends the polling goroutine and waits for it to exit.
func (d *DeviceMonitor) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	<-d.done
}

func (d *DeviceMonitor) run(ctx context.Context) {
	defer close(d.done)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.poll()
		}
	}
}

func (d *DeviceMonitor) poll() {
	devices, err := d.mgr.Enumerate()
	if err != nil {
		log.Printf("[device-monitor] enumeration failed: %v", err)
		return
	}

	var currentDefault string
	selectedStillPresent := d.selectedID == ""
	for _, dev := range devices {
		if dev.ID.String() == d.selectedID {
			selectedStillPresent = true
		}
		if dev.IsDefault {
			currentDefault = dev.ID.String()
		}
	}

	if !selectedStillPresent {
		log.Printf("[device-monitor] selected device %s disappeared", d.selectedID)
		d.notify("selected device disappeared")
		return
	}

	if d.wasDefault != "" && currentDefault != "" && currentDefault != d.wasDefault && d.selectedID != currentDefault {
		log.Printf("[device-monitor] platform default changed from %s to %s", d.wasDefault, currentDefault)
		d.notify("platform default changed")
	}
	d.wasDefault = currentDefault
}

func (d *DeviceMonitor) notify(reason string) {
	if d.onChanged != nil {
		d.onChanged(reason)
	}
}
