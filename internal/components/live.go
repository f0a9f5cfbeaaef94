package components

import (
	"sync"

	"github.com/KevinKickass/OpenCircuitCore/internal/pubsub"
)

// Live is the runtime side of a placed component.
type Live interface {
	ID() string
	Kind() Kind
}

// Indicator accepts the derived value of an output adapter.
type Indicator interface {
	Live
	SetIndicated(on bool)
}

type Event string

const (
	EventPress   Event = "press"
	EventRelease Event = "release"
)

// Interactive emits discrete interaction events.
type Interactive interface {
	Live
	SubscribeEvents(fn func(Event)) pubsub.Token
	UnsubscribeEvents(token pubsub.Token) bool
}

// Resetter returns a peripheral to its power-on state.
type Resetter interface {
	Reset()
}

// LED is a two-terminal indicator.
type LED struct {
	id   string
	kind Kind

	mu      sync.RWMutex
	lit     bool
	toggles int

	changes pubsub.Registry[bool]
}

func NewLED(id string) *LED {
	return &LED{id: id, kind: KindLED}
}

// NewBoardLED returns the built-in "L" LED of the board.
func NewBoardLED() *LED {
	return &LED{id: "board:L", kind: KindBoard}
}

func (l *LED) ID() string { return l.id }
func (l *LED) Kind() Kind { return l.kind }

func (l *LED) SetIndicated(on bool) {
	l.mu.Lock()
	if l.lit == on {
		l.mu.Unlock()
		return
	}
	l.lit = on
	l.toggles++
	l.mu.Unlock()

	l.changes.Publish(on)
}

func (l *LED) Lit() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lit
}

// Toggles counts state changes since creation or the last Reset.
func (l *LED) Toggles() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.toggles
}

func (l *LED) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lit = false
	l.toggles = 0
}

func (l *LED) Subscribe(fn func(bool)) pubsub.Token {
	return l.changes.Subscribe(fn)
}

func (l *LED) Unsubscribe(token pubsub.Token) bool {
	return l.changes.Unsubscribe(token)
}

// PushButton is a momentary switch.
type PushButton struct {
	id string

	mu      sync.RWMutex
	pressed bool

	events pubsub.Registry[Event]
}

func NewPushButton(id string) *PushButton {
	return &PushButton{id: id}
}

func (b *PushButton) ID() string { return b.id }
func (b *PushButton) Kind() Kind { return KindPushButton }

func (b *PushButton) Press() {
	b.set(true, EventPress)
}

func (b *PushButton) Release() {
	b.set(false, EventRelease)
}

func (b *PushButton) set(pressed bool, ev Event) {
	b.mu.Lock()
	b.pressed = pressed
	b.mu.Unlock()
	b.events.Publish(ev)
}

func (b *PushButton) Pressed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.pressed
}

func (b *PushButton) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pressed = false
}

func (b *PushButton) SubscribeEvents(fn func(Event)) pubsub.Token {
	return b.events.Subscribe(fn)
}

func (b *PushButton) UnsubscribeEvents(token pubsub.Token) bool {
	return b.events.Unsubscribe(token)
}

// Passive covers kinds with no runtime behavior (resistor, potentiometer).
type Passive struct {
	id   string
	kind Kind
}

func (p *Passive) ID() string { return p.id }
func (p *Passive) Kind() Kind { return p.kind }

// NewLive creates the runtime peripheral for c.
func NewLive(c Component) Live {
	switch c.Kind {
	case KindLED:
		return NewLED(c.ID)
	case KindPushButton:
		return NewPushButton(c.ID)
	default:
		return &Passive{id: c.ID, kind: c.Kind}
	}
}
