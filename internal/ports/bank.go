// Package ports models the emulator side of the pin interface: three 8-bit
// IO registers with change listeners and forced single-bit writes.
package ports

import (
	"errors"
	"fmt"
	"sync"

	"github.com/KevinKickass/OpenCircuitCore/internal/pubsub"
	"github.com/KevinKickass/OpenCircuitCore/internal/types"
)

var (
	ErrUnknownPort = errors.New("unknown port")
	ErrInvalidBit  = errors.New("bit index out of range")
)

// Change is delivered to listeners whenever a register value changes.
type Change struct {
	Port     types.Port `json:"port"`
	Value    uint8      `json:"value"`
	Previous uint8      `json:"previous"`
}

// Changed returns the mask of bits that differ from the previous value.
func (c Change) Changed() uint8 {
	return c.Value ^ c.Previous
}

// Emulator is the register contract consumed by the signal engine and the
// component connector.
type Emulator interface {
	Value(port types.Port) uint8
	Subscribe(port types.Port, fn func(Change)) (pubsub.Token, error)
	Unsubscribe(port types.Port, token pubsub.Token) bool
	SetPin(port types.Port, bit uint8, high bool) error
}

// Bank is an in-memory register file. A real emulator core drives it through
// Write; peripherals force bits through SetPin.
type Bank struct {
	// writeMu serializes writers across the read-modify-write and the
	// listener fan-out, so listeners see changes in store order. Listeners
	// may read values but must not write back into the bank.
	writeMu sync.Mutex

	mu        sync.Mutex
	values    [types.PortCount]uint8
	listeners [types.PortCount]pubsub.Registry[Change]
}

func NewBank() *Bank {
	return &Bank{}
}

// Value returns the current register value, zero for unknown ports.
func (b *Bank) Value(port types.Port) uint8 {
	if !port.Valid() {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.values[port]
}

// Snapshot returns all register values indexed by port.
func (b *Bank) Snapshot() [types.PortCount]uint8 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.values
}

// Write stores a full register value. Listeners run synchronously, and only
// when the value actually changed.
func (b *Bank) Write(port types.Port, value uint8) error {
	if !port.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownPort, port)
	}

	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	b.store(port, value)
	return nil
}

func (b *Bank) store(port types.Port, value uint8) {
	b.mu.Lock()
	prev := b.values[port]
	b.values[port] = value
	b.mu.Unlock()

	if prev != value {
		b.listeners[port].Publish(Change{Port: port, Value: value, Previous: prev})
	}
}

// SetPin forces one bit of a register high or low.
func (b *Bank) SetPin(port types.Port, bit uint8, high bool) error {
	if !port.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownPort, port)
	}
	if bit > 7 {
		return fmt.Errorf("%w: %d", ErrInvalidBit, bit)
	}

	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	value := b.Value(port)
	mask := uint8(1) << bit
	if high {
		value |= mask
	} else {
		value &^= mask
	}
	b.store(port, value)
	return nil
}

func (b *Bank) Subscribe(port types.Port, fn func(Change)) (pubsub.Token, error) {
	if !port.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrUnknownPort, port)
	}
	return b.listeners[port].Subscribe(fn), nil
}

func (b *Bank) Unsubscribe(port types.Port, token pubsub.Token) bool {
	if !port.Valid() {
		return false
	}
	return b.listeners[port].Unsubscribe(token)
}

// Listeners returns the number of live subscriptions across all ports.
func (b *Bank) Listeners() int {
	n := 0
	for i := range b.listeners {
		n += b.listeners[i].Len()
	}
	return n
}

// Reset zeroes every register without notifying listeners.
func (b *Bank) Reset() {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.values = [types.PortCount]uint8{}
}
