// Package pipeline provides the lifecycle scaffolding shared by every
// ColdVox component: a typed publish/subscribe Bus for control/diagnostic
// events, a common Element lifecycle contract, and a Registry that starts
// and stops a graph of Elements in a well-defined order.
package pipeline

import (
	"context"
	"sync"
)

// Registry holds the set of Elements that make up a running engine instance
// and coordinates their startup and shutdown. Unlike the teacher's linear
// Pipeline (Push/Pull/Link between adjacent elements), ColdVox's dataflow
// fans out from the Broadcast Bus to multiple independent consumers, so the
// Registry only owns lifecycle ordering and the shared Bus; data paths
// between components are wired directly by cmd/coldvoxd with their own
// typed channels.
type Registry struct {
	mu       sync.Mutex
	name     string
	bus      Bus
	elements []Element
}

// NewRegistry creates an empty Registry with a fresh EventBus.
func NewRegistry(name string) *Registry {
	return &Registry{
		name: name,
		bus:  NewEventBus(),
	}
}

// Add registers element, giving it the Registry's shared Bus.
func (r *Registry) Add(element Element) {
	r.mu.Lock()
	defer r.mu.Unlock()
	element.SetBus(r.bus)
	r.elements = append(r.elements, element)
}

// Bus returns the shared event bus.
func (r *Registry) Bus() Bus {
	return r.bus
}

// Start initialises and starts every element in registration order, then
// starts the bus. If any element fails to start, elements already started
// are left running; the caller is expected to call Stop to unwind.
func (r *Registry) Start(ctx context.Context) error {
	r.mu.Lock()
	elements := append([]Element(nil), r.elements...)
	r.mu.Unlock()

	for _, e := range elements {
		if err := e.Init(ctx); err != nil {
			return err
		}
	}
	for _, e := range elements {
		if err := e.Start(ctx); err != nil {
			return err
		}
	}
	return r.bus.Start(ctx)
}

// Stop tears down every element in reverse registration order, then stops
// the bus. The first error encountered is returned, but every element is
// still given a chance to stop.
func (r *Registry) Stop() error {
	r.mu.Lock()
	elements := append([]Element(nil), r.elements...)
	r.mu.Unlock()

	var first error
	for i := len(elements) - 1; i >= 0; i-- {
		if err := elements[i].Stop(); err != nil && first == nil {
			first = err
		}
	}
	r.bus.Stop()
	return first
}
