package circuit

import (
	"fmt"

	"github.com/KevinKickass/OpenCircuitCore/internal/analysis"
	"github.com/KevinKickass/OpenCircuitCore/internal/components"
	"github.com/KevinKickass/OpenCircuitCore/internal/pins"
	"github.com/KevinKickass/OpenCircuitCore/internal/types"
	"github.com/KevinKickass/OpenCircuitCore/internal/wiring"
	"go.uber.org/zap"
)

type Composer struct {
	validator *Validator
	logger    *zap.Logger
}

func NewComposer(validator *Validator, logger *zap.Logger) *Composer {
	return &Composer{
		validator: validator,
		logger:    logger,
	}
}

// Compose builds a circuit from a document: the board descriptor for the
// document's variant, every component, then every wire in document order.
func (c *Composer) Compose(doc *Document) (*Circuit, error) {
	if err := c.validator.ValidateDocument(doc); err != nil {
		return nil, err
	}

	variant, err := pins.ParseVariant(doc.Board)
	if err != nil {
		return nil, err
	}
	board, err := components.BoardDescriptor(variant)
	if err != nil {
		return nil, err
	}

	c.logger.Info("Composing circuit",
		zap.String("name", doc.Name),
		zap.String("board", string(variant)),
		zap.Int("components", len(doc.Components)),
		zap.Int("wires", len(doc.Wires)))

	table := pins.NewTable(variant)
	circ := &Circuit{
		Name:        doc.Name,
		Description: doc.Description,
		Variant:     variant,
		Table:       table,
		Board:       board,
		Network:     wiring.NewNetwork(table, c.logger),
		physical:    make(map[types.WireID]analysis.WireProperties),
	}

	for _, comp := range doc.Components {
		kind, err := components.ParseKind(string(comp.Kind))
		if err != nil {
			return nil, fmt.Errorf("component %s: %w", comp.ID, err)
		}
		comp.Kind = kind
		if err := circ.AddComponent(comp); err != nil {
			return nil, err
		}
	}

	for i, spec := range doc.Wires {
		var phys *analysis.WireProperties
		if spec.CrossSection != 0 || spec.Material != "" {
			phys = &analysis.WireProperties{CrossSection: spec.CrossSection, Material: spec.Material}
		}
		w, err := circ.CreateWire(wiring.Draft{
			From:   spec.From,
			To:     spec.To,
			Signal: spec.Signal,
			Color:  spec.Color,
			Length: spec.Length,
			Label:  spec.Label,
		}, phys)
		if err != nil {
			return nil, fmt.Errorf("wire %d (%s -> %s): %w", i, spec.From, spec.To, err)
		}

		c.logger.Debug("Wire composed",
			zap.Stringer("wire_id", w.ID),
			zap.String("signal", string(w.Signal)))
	}

	c.logger.Info("Circuit composition complete",
		zap.String("name", doc.Name),
		zap.Int("wires", circ.Network.Len()))

	return circ, nil
}

// Empty returns an unwired circuit for a board variant.
func (c *Composer) Empty(variant pins.Variant) (*Circuit, error) {
	return c.Compose(&Document{Board: string(variant)})
}
