package wiring

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/KevinKickass/OpenCircuitCore/internal/pubsub"
	"github.com/KevinKickass/OpenCircuitCore/internal/types"
	"go.uber.org/zap"
)

var (
	ErrWireNotFound   = errors.New("wire not found")
	ErrComponentWired = errors.New("component still has wires attached")
)

type ChangeKind string

const (
	ChangeAdded   ChangeKind = "added"
	ChangeUpdated ChangeKind = "updated"
	ChangeRemoved ChangeKind = "removed"
)

// Change is published synchronously after every mutation.
type Change struct {
	Kind ChangeKind
	Wire types.Wire
}

// Network is the arena owning every wire of a circuit. Ids are issued
// monotonically and never reused.
type Network struct {
	roles  RoleResolver
	clock  func() time.Time
	logger *zap.Logger

	mu    sync.RWMutex
	wires map[types.WireID]types.Wire
	next  types.WireID

	changes pubsub.Registry[Change]
}

type NetworkOption func(*Network)

// WithClock overrides time.Now for metadata stamping.
func WithClock(clock func() time.Time) NetworkOption {
	return func(n *Network) { n.clock = clock }
}

func NewNetwork(roles RoleResolver, logger *zap.Logger, opts ...NetworkOption) *Network {
	n := &Network{
		roles:  roles,
		clock:  time.Now,
		logger: logger,
		wires:  make(map[types.WireID]types.Wire),
		next:   1,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Subscribe registers fn for every subsequent change.
func (n *Network) Subscribe(fn func(Change)) pubsub.Token {
	return n.changes.Subscribe(fn)
}

func (n *Network) Unsubscribe(token pubsub.Token) bool {
	return n.changes.Unsubscribe(token)
}

// Create validates d, stores the canonical wire and returns it.
func (n *Network) Create(d Draft) (types.Wire, error) {
	if err := Validate(d); err != nil {
		return types.Wire{}, err
	}

	n.mu.Lock()
	id := n.next
	n.next++
	w := Build(id, d, n.clock(), n.roles)
	n.wires[id] = w
	n.mu.Unlock()

	n.logger.Debug("Wire created",
		zap.Stringer("wire_id", w.ID),
		zap.Stringer("from", w.From),
		zap.Stringer("to", w.To),
		zap.String("signal", string(w.Signal)))

	n.changes.Publish(Change{Kind: ChangeAdded, Wire: w})
	return w, nil
}

// Update applies a partial edit to an existing wire.
func (n *Network) Update(id types.WireID, u Update) (types.Wire, error) {
	n.mu.Lock()
	current, ok := n.wires[id]
	if !ok {
		n.mu.Unlock()
		return types.Wire{}, fmt.Errorf("%w: %s", ErrWireNotFound, id)
	}
	if err := Validate(Merge(current, u)); err != nil {
		n.mu.Unlock()
		return types.Wire{}, err
	}
	w := Rebuild(current, u, n.clock(), n.roles)
	n.wires[id] = w
	n.mu.Unlock()

	n.changes.Publish(Change{Kind: ChangeUpdated, Wire: w})
	return w, nil
}

// Delete removes a wire.
func (n *Network) Delete(id types.WireID) error {
	n.mu.Lock()
	w, ok := n.wires[id]
	if !ok {
		n.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrWireNotFound, id)
	}
	delete(n.wires, id)
	n.mu.Unlock()

	n.logger.Debug("Wire deleted", zap.Stringer("wire_id", id))
	n.changes.Publish(Change{Kind: ChangeRemoved, Wire: w})
	return nil
}

// Get returns the wire with the given id.
func (n *Network) Get(id types.WireID) (types.Wire, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	w, ok := n.wires[id]
	return w, ok
}

// Wires returns every wire ordered by id.
func (n *Network) Wires() []types.Wire {
	n.mu.RLock()
	out := make([]types.Wire, 0, len(n.wires))
	for _, w := range n.wires {
		out = append(out, w)
	}
	n.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// WiresOf returns the wires touching componentID ordered by id.
func (n *Network) WiresOf(componentID string) []types.Wire {
	var out []types.Wire
	for _, w := range n.Wires() {
		if w.Touches(componentID) {
			out = append(out, w)
		}
	}
	return out
}

// RequireDetached is the precondition for deleting a component: its wires
// must be removed by the owner first.
func (n *Network) RequireDetached(componentID string) error {
	if wired := n.WiresOf(componentID); len(wired) > 0 {
		return fmt.Errorf("%w: %s (%d wires)", ErrComponentWired, componentID, len(wired))
	}
	return nil
}

func (n *Network) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.wires)
}
