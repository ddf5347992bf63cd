// Package drivers defines the peripheral capability interfaces the core
// device packages consume (spec.md §6: "Driver interfaces consumed by
// the core, polymorphic over {display, touch} variants"), plus
// simulated implementations for running the device process without
// hardware.
package drivers

import (
	"errors"
	"fmt"
	"sync"
)

// ErrInvalidPayload is returned by DisplayDriver.FlushRegion when the
// rect/pixel buffer is malformed (spec.md §6: "fails with InvalidPayload
// when w=0 | h=0 | area != |pixels| | rect exceeds bounds").
var ErrInvalidPayload = errors.New("drivers: invalid flush payload")

// Rect is an on-display pixel region.
type Rect struct {
	X, Y, W, H uint16
}

// DisplayDriver is the capability set the device core uses to drive the
// physical (or simulated) screen.
type DisplayDriver interface {
	Init() error
	Deinit() error
	Width() uint16
	Height() uint16
	Rotation() int
	SetBrightness(level uint8) error
	FlushRegion(rect Rect, pixels []byte) error
}

// SimulatedDisplay is a DisplayDriver that records the last flushed
// region instead of driving real hardware, for running the device
// process without a screen attached.
type SimulatedDisplay struct {
	mu sync.Mutex

	width, height uint16
	rotation      int
	brightness    uint8
	initialized   bool

	flushCount int
	lastRect   Rect
}

// NewSimulatedDisplay creates a SimulatedDisplay with the given
// dimensions.
func NewSimulatedDisplay(width, height uint16) *SimulatedDisplay {
	return &SimulatedDisplay{width: width, height: height, brightness: 255}
}

func (d *SimulatedDisplay) Init() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.initialized = true
	return nil
}

func (d *SimulatedDisplay) Deinit() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.initialized = false
	return nil
}

func (d *SimulatedDisplay) Width() uint16  { return d.width }
func (d *SimulatedDisplay) Height() uint16 { return d.height }
func (d *SimulatedDisplay) Rotation() int  { return d.rotation }

func (d *SimulatedDisplay) SetBrightness(level uint8) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.brightness = level
	return nil
}

// FlushRegion validates rect/pixels the same way a real driver would,
// then records it.
func (d *SimulatedDisplay) FlushRegion(rect Rect, pixels []byte) error {
	if rect.W == 0 || rect.H == 0 {
		return fmt.Errorf("%w: zero-sized rect", ErrInvalidPayload)
	}
	if int(rect.W)*int(rect.H) != len(pixels) {
		return fmt.Errorf("%w: area %d != len(pixels) %d", ErrInvalidPayload, int(rect.W)*int(rect.H), len(pixels))
	}
	if uint32(rect.X)+uint32(rect.W) > uint32(d.width) || uint32(rect.Y)+uint32(rect.H) > uint32(d.height) {
		return fmt.Errorf("%w: rect exceeds bounds", ErrInvalidPayload)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.flushCount++
	d.lastRect = rect
	return nil
}

// FlushCount returns how many successful FlushRegion calls have been
// made, for test assertions.
func (d *SimulatedDisplay) FlushCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.flushCount
}

var _ DisplayDriver = (*SimulatedDisplay)(nil)
