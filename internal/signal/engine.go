// Package signal derives per-wire runtime states from emulator port writes.
package signal

import (
	"sort"
	"sync"

	"github.com/KevinKickass/OpenCircuitCore/internal/pins"
	"github.com/KevinKickass/OpenCircuitCore/internal/ports"
	"github.com/KevinKickass/OpenCircuitCore/internal/pubsub"
	"github.com/KevinKickass/OpenCircuitCore/internal/types"
	"github.com/KevinKickass/OpenCircuitCore/internal/wiring"
)

// Resolver maps a board label to its hardware address.
type Resolver interface {
	Resolve(label string) (types.PinAddress, bool)
}

// target is one wired board label sitting on a port bit.
type target struct {
	mask  uint8
	label string
	links []link
}

// Engine owns the runtime state of every wire. The reverse index is rebuilt
// through Rebuild whenever the wire network changes; OnPortChanged only reads
// it.
type Engine struct {
	resolver Resolver

	// tick serializes OnPortChanged so updates are published in the order
	// they were applied. Subscribers must not feed ports back into the engine.
	tick sync.Mutex

	mu      sync.RWMutex
	index   map[string][]link
	byWire  map[types.WireID]link
	targets [types.PortCount][]target
	known   []types.WireID
	states  map[types.WireID]types.WireRuntimeState

	// reused across ticks
	updatedIDs    []types.WireID
	updatedStates []types.WireRuntimeState

	updates pubsub.Registry[types.WireRuntimeState]
}

func NewEngine(resolver Resolver) *Engine {
	return &Engine{
		resolver: resolver,
		index:    make(map[string][]link),
		byWire:   make(map[types.WireID]link),
		states:   make(map[types.WireID]types.WireRuntimeState),
	}
}

// Rebuild recomputes the reverse index from the full wire list. States of
// deleted wires are dropped; wires whose board link changed start floating.
func (e *Engine) Rebuild(wires []types.Wire) {
	index := make(map[string][]link)
	byWire := make(map[types.WireID]link, len(wires))
	known := make([]types.WireID, 0, len(wires))

	for _, w := range wires {
		known = append(known, w.ID)
		board, ok := w.BoardEndpoint()
		if !ok {
			continue
		}
		label := pins.NormalizeLabel(board.PinName)
		l := link{wire: w.ID, label: label, boardIsSource: w.From.IsBoard(), signal: w.Signal}
		index[label] = append(index[label], l)
		byWire[w.ID] = l
	}
	sort.Slice(known, func(i, j int) bool { return known[i] < known[j] })

	var targets [types.PortCount][]target
	labels := make([]string, 0, len(index))
	for label := range index {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		addr, ok := e.resolver.Resolve(label)
		if !ok {
			continue
		}
		targets[addr.Port] = append(targets[addr.Port], target{
			mask:  addr.Mask(),
			label: label,
			links: index[label],
		})
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for id := range e.states {
		next, ok := byWire[id]
		if !ok || next != e.byWire[id] {
			delete(e.states, id)
		}
	}
	e.index = index
	e.byWire = byWire
	e.targets = targets
	e.known = known
}

// Attach keeps the index in sync with n. The returned token unsubscribes.
func (e *Engine) Attach(n *wiring.Network) pubsub.Token {
	e.Rebuild(n.Wires())
	return n.Subscribe(func(wiring.Change) {
		e.Rebuild(n.Wires())
	})
}

// OnPortChanged applies a new register value and returns the ids of wires
// whose state changed. The returned slice is reused by the next call.
func (e *Engine) OnPortChanged(port types.Port, value uint8) []types.WireID {
	if !port.Valid() {
		return nil
	}

	e.tick.Lock()
	defer e.tick.Unlock()

	e.mu.Lock()
	e.updatedIDs = e.updatedIDs[:0]
	e.updatedStates = e.updatedStates[:0]
	for _, t := range e.targets[port] {
		logical := types.LogicalLow
		if value&t.mask != 0 {
			logical = types.LogicalHigh
		}
		for _, l := range t.links {
			next := Derive(l.wire, l.signal, l.boardIsSource, logical)
			prev, ok := e.states[l.wire]
			if !ok {
				prev = types.FloatingState(l.wire)
			}
			if !Significant(prev, next) {
				continue
			}
			e.states[l.wire] = next
			e.updatedIDs = append(e.updatedIDs, l.wire)
			e.updatedStates = append(e.updatedStates, next)
		}
	}
	updated := e.updatedStates
	e.mu.Unlock()

	for _, s := range updated {
		e.updates.Publish(s)
	}
	return e.updatedIDs
}

// HandlePortChange adapts OnPortChanged to a port listener.
func (e *Engine) HandlePortChange(c ports.Change) {
	e.OnPortChanged(c.Port, c.Value)
}

// Bind subscribes the engine to every port of emu. Tokens are returned in
// port order for Unbind.
func (e *Engine) Bind(emu ports.Emulator) ([types.PortCount]pubsub.Token, error) {
	var tokens [types.PortCount]pubsub.Token
	for p := types.Port(0); p < types.PortCount; p++ {
		tok, err := emu.Subscribe(p, e.HandlePortChange)
		if err != nil {
			e.Unbind(emu, tokens)
			return tokens, err
		}
		tokens[p] = tok
	}
	return tokens, nil
}

// Unbind removes the subscriptions returned by Bind.
func (e *Engine) Unbind(emu ports.Emulator, tokens [types.PortCount]pubsub.Token) {
	for p, tok := range tokens {
		if tok != 0 {
			emu.Unsubscribe(types.Port(p), tok)
		}
	}
}

// State returns the runtime state of a wire; absent entries are floating.
func (e *Engine) State(id types.WireID) types.WireRuntimeState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if s, ok := e.states[id]; ok {
		return s
	}
	return types.FloatingState(id)
}

// States returns a snapshot of every known wire ordered by id.
func (e *Engine) States() []types.WireRuntimeState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]types.WireRuntimeState, 0, len(e.known))
	for _, id := range e.known {
		if s, ok := e.states[id]; ok {
			out = append(out, s)
		} else {
			out = append(out, types.FloatingState(id))
		}
	}
	return out
}

// Labels returns the wired board labels, normalized and sorted.
func (e *Engine) Labels() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, 0, len(e.index))
	for label := range e.index {
		out = append(out, label)
	}
	sort.Strings(out)
	return out
}

// Reset returns every wire to floating without notifying subscribers.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	clear(e.states)
}

// Subscribe delivers every significant state update.
func (e *Engine) Subscribe(fn func(types.WireRuntimeState)) pubsub.Token {
	return e.updates.Subscribe(fn)
}

func (e *Engine) Unsubscribe(token pubsub.Token) bool {
	return e.updates.Unsubscribe(token)
}
