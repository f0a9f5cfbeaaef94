package circuit

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/KevinKickass/OpenCircuitCore/internal/analysis"
	"github.com/KevinKickass/OpenCircuitCore/internal/components"
	"github.com/KevinKickass/OpenCircuitCore/internal/pins"
	"github.com/KevinKickass/OpenCircuitCore/internal/types"
	"github.com/KevinKickass/OpenCircuitCore/internal/wiring"
)

var (
	ErrUnknownComponent   = errors.New("unknown component")
	ErrDuplicateComponent = errors.New("duplicate component id")
)

// Circuit is a composed, editable circuit: the board, its peripherals and
// the wire network between them.
type Circuit struct {
	Name        string
	Description string
	Variant     pins.Variant
	Table       *pins.Table
	Board       components.Descriptor
	Network     *wiring.Network

	mu         sync.RWMutex
	components []components.Component
	physical   map[types.WireID]analysis.WireProperties
}

// Components returns the peripherals in placement order.
func (c *Circuit) Components() []components.Component {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]components.Component, len(c.components))
	copy(out, c.components)
	return out
}

func (c *Circuit) Component(id string) (components.Component, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, comp := range c.components {
		if comp.ID == id {
			return comp, true
		}
	}
	return components.Component{}, false
}

// Descriptor returns the pin contract of a component id, board included.
func (c *Circuit) Descriptor(componentID string) (components.Descriptor, error) {
	if componentID == types.BoardComponentID {
		return c.Board, nil
	}
	comp, ok := c.Component(componentID)
	if !ok {
		return components.Descriptor{}, fmt.Errorf("%w: %s", ErrUnknownComponent, componentID)
	}
	return comp.Descriptor()
}

// CheckPin verifies that a wire endpoint names a declared pin. Board labels
// are normalized and may use an alias ("D13", "SDA", "TX0").
func (c *Circuit) CheckPin(p types.PinIdentifier) error {
	d, err := c.Descriptor(p.ComponentID)
	if err != nil {
		return err
	}
	if _, ok := d.Pin(p.PinName); ok {
		return nil
	}
	if p.IsBoard() {
		if _, ok := c.BoardPinName(p.PinName); ok {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", components.ErrUnknownPin, p)
}

// BoardPinName returns the declared board pin a label refers to.
func (c *Circuit) BoardPinName(label string) (string, bool) {
	norm := pins.NormalizeLabel(label)
	for _, bp := range c.Board.Pins {
		if strings.EqualFold(bp.Name, norm) {
			return bp.Name, true
		}
		for _, alias := range bp.Aliases {
			if alias == norm {
				return bp.Name, true
			}
		}
	}
	return "", false
}

// Canonical returns w with board endpoints renamed to declared pin names.
func (c *Circuit) Canonical(w types.Wire) types.Wire {
	for _, p := range []*types.PinIdentifier{&w.From, &w.To} {
		if !p.IsBoard() {
			continue
		}
		if name, ok := c.BoardPinName(p.PinName); ok {
			p.PinName = name
		}
	}
	return w
}

// AddComponent places a new peripheral.
func (c *Circuit) AddComponent(comp components.Component) error {
	if err := comp.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.components {
		if existing.ID == comp.ID {
			return fmt.Errorf("%w: %s", ErrDuplicateComponent, comp.ID)
		}
	}
	c.components = append(c.components, comp)
	return nil
}

// RemoveComponent deletes a peripheral. Its wires must be deleted first.
func (c *Circuit) RemoveComponent(id string) error {
	if err := c.Network.RequireDetached(id); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, comp := range c.components {
		if comp.ID == id {
			c.components = append(c.components[:i], c.components[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownComponent, id)
}

// ComponentIDs returns the ids of all peripherals.
func (c *Circuit) ComponentIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.components))
	for i, comp := range c.components {
		out[i] = comp.ID
	}
	return out
}

// CreateWire checks both endpoints against the declared pins and adds the
// wire. phys may be nil.
func (c *Circuit) CreateWire(d wiring.Draft, phys *analysis.WireProperties) (types.Wire, error) {
	if err := c.CheckPin(d.From); err != nil {
		return types.Wire{}, err
	}
	if err := c.CheckPin(d.To); err != nil {
		return types.Wire{}, err
	}
	w, err := c.Network.Create(d)
	if err != nil {
		return types.Wire{}, err
	}
	if phys != nil {
		c.mu.Lock()
		c.physical[w.ID] = *phys
		c.mu.Unlock()
	}
	return w, nil
}

// UpdateWire checks changed endpoints and applies the edit.
func (c *Circuit) UpdateWire(id types.WireID, u wiring.Update) (types.Wire, error) {
	for _, p := range []*types.PinIdentifier{u.From, u.To} {
		if p == nil {
			continue
		}
		if err := c.CheckPin(*p); err != nil {
			return types.Wire{}, err
		}
	}
	return c.Network.Update(id, u)
}

func (c *Circuit) DeleteWire(id types.WireID) error {
	if err := c.Network.Delete(id); err != nil {
		return err
	}
	c.mu.Lock()
	delete(c.physical, id)
	c.mu.Unlock()
	return nil
}

// WireProperties returns the physical parameters of a wire. Declared
// values win; the wire's metadata length and defaults fill the rest.
func (c *Circuit) WireProperties(w types.Wire, defaults analysis.WireProperties) analysis.WireProperties {
	c.mu.RLock()
	p, ok := c.physical[w.ID]
	c.mu.RUnlock()
	if !ok {
		p = analysis.WireProperties{}
	}
	if p.Length == 0 {
		if w.Metadata.Length != nil {
			p.Length = *w.Metadata.Length
		} else {
			p.Length = defaults.Length
		}
	}
	if p.CrossSection == 0 {
		p.CrossSection = defaults.CrossSection
	}
	if p.Material == "" {
		p.Material = defaults.Material
	}
	return p
}

// Export renders the circuit back into a document.
func (c *Circuit) Export() *Document {
	doc := &Document{
		Name:        c.Name,
		Description: c.Description,
		Board:       string(c.Variant),
		Components:  c.Components(),
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, w := range c.Network.Wires() {
		spec := WireSpec{
			From:   w.From,
			To:     w.To,
			Signal: w.Signal,
			Color:  w.Color,
			Label:  w.Metadata.Label,
			Length: w.Metadata.Length,
		}
		if p, ok := c.physical[w.ID]; ok {
			spec.CrossSection = p.CrossSection
			spec.Material = p.Material
		}
		doc.Wires = append(doc.Wires, spec)
	}
	return doc
}
