// Package connector installs adapters between live peripherals and emulator
// port bits: output adapters drive indicators from register changes, input
// adapters force bits from interaction events.
package connector

import (
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"

	"github.com/KevinKickass/OpenCircuitCore/internal/components"
	"github.com/KevinKickass/OpenCircuitCore/internal/pins"
	"github.com/KevinKickass/OpenCircuitCore/internal/ports"
	"github.com/KevinKickass/OpenCircuitCore/internal/pubsub"
	"github.com/KevinKickass/OpenCircuitCore/internal/types"
	"go.uber.org/zap"
)

// Mapping maps a component pin name to the board address it is wired to.
type Mapping map[string]types.PinAddress

type Resolver interface {
	Resolve(label string) (types.PinAddress, bool)
}

// MappingsFromWires groups the addressable board connections of every
// component. Wires to unaddressable board pins (GND, 5V) are skipped.
func MappingsFromWires(wires []types.Wire, resolver Resolver) map[string]Mapping {
	out := make(map[string]Mapping)
	for _, w := range wires {
		board, ok := w.BoardEndpoint()
		if !ok {
			continue
		}
		peer := w.Peer()
		if peer.IsBoard() {
			continue
		}
		addr, ok := resolver.Resolve(board.PinName)
		if !ok {
			continue
		}
		m := out[peer.ComponentID]
		if m == nil {
			m = make(Mapping)
			out[peer.ComponentID] = m
		}
		m[peer.PinName] = addr
	}
	return out
}

// portSub is one port listener installed by an adapter.
type portSub struct {
	port  types.Port
	token pubsub.Token
}

// binding records everything installed for one component so it can be torn
// down exhaustively.
type binding struct {
	live     components.Live
	kind     components.Kind
	mapping  Mapping
	portSubs []portSub
	source   components.Interactive
	event    pubsub.Token
}

// Connector owns all adapters of one simulation run.
type Connector struct {
	emu    ports.Emulator
	logger *zap.Logger

	mu       sync.Mutex
	bindings map[string]*binding
}

func New(emu ports.Emulator, logger *zap.Logger) *Connector {
	return &Connector{
		emu:      emu,
		logger:   logger,
		bindings: make(map[string]*binding),
	}
}

// Bind installs the adapters for c. Any previous binding of the same
// component is removed first, so repeated calls never accumulate listeners.
func (c *Connector) Bind(live components.Live, mapping Mapping) error {
	c.Unbind(live.ID())

	b := &binding{live: live, kind: live.Kind(), mapping: mapping}
	var err error

	switch live.Kind() {
	case components.KindLED, components.KindBoard:
		if ind, ok := live.(components.Indicator); ok {
			err = c.bindIndicator(b, ind, mapping)
		}
	case components.KindPushButton:
		if src, ok := live.(components.Interactive); ok {
			c.bindButton(b, src, mapping)
		}
	}
	if err != nil {
		c.teardown(b)
		return fmt.Errorf("failed to bind %s: %w", live.ID(), err)
	}

	c.mu.Lock()
	c.bindings[live.ID()] = b
	c.mu.Unlock()

	c.logger.Debug("Component bound",
		zap.String("component_id", live.ID()),
		zap.String("kind", string(live.Kind())),
		zap.Int("port_listeners", len(b.portSubs)),
		zap.Bool("input_adapter", b.source != nil))
	return nil
}

// Unbind removes every adapter of a component. Unknown ids are ignored.
func (c *Connector) Unbind(componentID string) {
	c.mu.Lock()
	b, ok := c.bindings[componentID]
	delete(c.bindings, componentID)
	c.mu.Unlock()

	if ok {
		c.teardown(b)
		c.logger.Debug("Component unbound", zap.String("component_id", componentID))
	}
}

// UnbindAll tears down every binding.
func (c *Connector) UnbindAll() {
	c.mu.Lock()
	all := c.bindings
	c.bindings = make(map[string]*binding)
	c.mu.Unlock()

	for _, b := range all {
		c.teardown(b)
	}
	if len(all) > 0 {
		c.logger.Info("All components unbound", zap.Int("count", len(all)))
	}
}

// Sync rebinds the given peripherals against a fresh wire list. Bindings
// whose mapping is unchanged are left in place. Components that are no
// longer present, or have lost all addressable wires, are unbound.
func (c *Connector) Sync(live []components.Live, mappings map[string]Mapping) error {
	keep := make(map[string]bool, len(live))
	for _, l := range live {
		m, ok := mappings[l.ID()]
		if !ok || len(m) == 0 {
			continue
		}
		keep[l.ID()] = true
		if c.boundTo(l, m) {
			continue
		}
		if err := c.Bind(l, m); err != nil {
			return err
		}
	}
	for _, id := range c.Bound() {
		if !keep[id] {
			c.Unbind(id)
		}
	}
	return nil
}

func (c *Connector) boundTo(live components.Live, m Mapping) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.bindings[live.ID()]
	return ok && b.live == live && maps.Equal(b.mapping, m)
}

// Bound returns the ids of bound components, sorted.
func (c *Connector) Bound() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.bindings))
	for id := range c.bindings {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Listeners counts installed port and event subscriptions.
func (c *Connector) Listeners() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, b := range c.bindings {
		n += len(b.portSubs)
		if b.source != nil {
			n++
		}
	}
	return n
}

func (c *Connector) teardown(b *binding) {
	for _, s := range b.portSubs {
		c.emu.Unsubscribe(s.port, s.token)
	}
	b.portSubs = nil
	if b.source != nil {
		b.source.UnsubscribeEvents(b.event)
		b.source = nil
	}
}

// bindIndicator drives ind with "anode high AND cathode low". An unmapped
// anode is treated as tied high, an unmapped cathode as tied to ground.
func (c *Connector) bindIndicator(b *binding, ind components.Indicator, mapping Mapping) error {
	anode, hasAnode := pinAddress(mapping, "A")
	cathode, hasCathode := pinAddress(mapping, "C")
	if !hasAnode && !hasCathode {
		return nil
	}

	last := false
	update := func() {
		on := (!hasAnode || c.emu.Value(anode.Port)&anode.Mask() != 0) &&
			(!hasCathode || c.emu.Value(cathode.Port)&cathode.Mask() == 0)
		if on != last {
			last = on
			ind.SetIndicated(on)
		}
	}

	watched := make(map[types.Port]uint8)
	if hasAnode {
		watched[anode.Port] |= anode.Mask()
	}
	if hasCathode {
		watched[cathode.Port] |= cathode.Mask()
	}
	for port, mask := range watched {
		tok, err := c.emu.Subscribe(port, func(ch ports.Change) {
			if ch.Changed()&mask != 0 {
				update()
			}
		})
		if err != nil {
			return err
		}
		b.portSubs = append(b.portSubs, portSub{port: port, token: tok})
	}
	update()
	return nil
}

// bindButton wires the signal side ("2.*" pins) as active-low with pull-up.
func (c *Connector) bindButton(b *binding, src components.Interactive, mapping Mapping) {
	var targets []types.PinAddress
	for name, addr := range mapping {
		if strings.HasPrefix(name, "2") {
			targets = append(targets, addr)
		}
	}
	if len(targets) == 0 {
		return
	}

	force := func(high bool) {
		for _, addr := range targets {
			if err := c.emu.SetPin(addr.Port, addr.Bit, high); err != nil {
				c.logger.Warn("Failed to force pin",
					zap.String("component_id", src.ID()),
					zap.Stringer("address", addr),
					zap.Error(err))
			}
		}
	}

	b.source = src
	b.event = src.SubscribeEvents(func(ev components.Event) {
		force(ev == components.EventRelease)
	})
	// idle level of the pull-up
	force(true)
}

func pinAddress(m Mapping, name string) (types.PinAddress, bool) {
	for pin, addr := range m {
		if strings.EqualFold(pin, name) {
			return addr, true
		}
	}
	return types.PinAddress{}, false
}

// BoardLEDMapping returns the mapping that drives the built-in LED.
func BoardLEDMapping(table *pins.Table) Mapping {
	addr, ok := table.Resolve(components.BuiltinLEDPin)
	if !ok {
		return nil
	}
	return Mapping{"A": addr}
}
