package pipeline

import (
	"context"
	"fmt"
	"reflect"
)

// PropertyDesc describes a single runtime-tunable parameter exposed by an
// Element: its type and whether it can be read and/or written after
// construction.
type PropertyDesc struct {
	Name     string
	Type     reflect.Type
	Writable bool
	Readable bool
	Default  interface{}
}

// Element is the lifecycle contract a Registry drives: Init/Start/Stop plus
// Bus and property plumbing. The engine components that cmd/coldvoxd wires
// (capture, chunker, VAD, STT, injection, watchdog) do not implement it;
// cmd/coldvoxd starts and stops each of them directly.
type Element interface {
	Init(ctx context.Context) error
	Start(ctx context.Context) error
	Stop() error

	SetBus(bus Bus)
	SetProperty(name string, value interface{}) error
	GetProperty(name string) (interface{}, error)
}

// BaseElement supplies the property registry and Bus plumbing so concrete
// elements only need to implement the behaviour that makes them unique.
type BaseElement struct {
	propertyDescs map[string]PropertyDesc
	properties    map[string]interface{}
	bus           Bus
}

// NewBaseElement returns a BaseElement with an empty property registry.
func NewBaseElement() *BaseElement {
	return &BaseElement{
		propertyDescs: make(map[string]PropertyDesc),
		properties:    make(map[string]interface{}),
	}
}

func (b *BaseElement) Init(ctx context.Context) error { return nil }
func (b *BaseElement) Start(ctx context.Context) error { return nil }
func (b *BaseElement) Stop() error { return nil }

func (b *BaseElement) SetBus(bus Bus) {
	b.bus = bus
}

// Bus returns the bus set via SetBus, or nil if none was set.
func (b *BaseElement) Bus() Bus {
	return b.bus
}

// RegisterProperty adds name to the element's property registry with its
// default value. It is an error to register the same name twice.
func (b *BaseElement) RegisterProperty(desc PropertyDesc) error {
	if _, exists := b.propertyDescs[desc.Name]; exists {
		return fmt.Errorf("property %s already registered", desc.Name)
	}
	b.propertyDescs[desc.Name] = desc
	b.properties[desc.Name] = desc.Default
	return nil
}

func (b *BaseElement) SetProperty(name string, value interface{}) error {
	desc, ok := b.propertyDescs[name]
	if !ok {
		return fmt.Errorf("unknown property %q", name)
	}
	if !desc.Writable {
		return fmt.Errorf("property %q is not writable", name)
	}
	if reflect.TypeOf(value) != desc.Type {
		return fmt.Errorf("property %q expects type %v, but got %v", name, desc.Type, reflect.TypeOf(value))
	}
	b.properties[name] = value
	return nil
}

func (b *BaseElement) GetProperty(name string) (interface{}, error) {
	desc, ok := b.propertyDescs[name]
	if !ok {
		return nil, fmt.Errorf("unknown property %q", name)
	}
	if !desc.Readable {
		return nil, fmt.Errorf("property %q is not readable", name)
	}
	return b.properties[name], nil
}
