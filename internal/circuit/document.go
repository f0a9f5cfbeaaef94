// Package circuit loads circuit documents (YAML or JSON), validates them
// against the embedded schema and composes them into a wire network plus
// component set.
package circuit

import (
	"github.com/KevinKickass/OpenCircuitCore/internal/analysis"
	"github.com/KevinKickass/OpenCircuitCore/internal/components"
	"github.com/KevinKickass/OpenCircuitCore/internal/types"
)

// Document is the on-disk form of a circuit. Wire ids are not stored; they
// are issued in document order when the circuit is composed.
type Document struct {
	Name        string                 `json:"name,omitempty" yaml:"name,omitempty"`
	Description string                 `json:"description,omitempty" yaml:"description,omitempty"`
	Board       string                 `json:"board" yaml:"board"`
	Components  []components.Component `json:"components,omitempty" yaml:"components,omitempty"`
	Wires       []WireSpec             `json:"wires,omitempty" yaml:"wires,omitempty"`
}

// WireSpec is one wire of a document.
type WireSpec struct {
	From   types.PinIdentifier `json:"from" yaml:"from"`
	To     types.PinIdentifier `json:"to" yaml:"to"`
	Signal types.SignalClass   `json:"signal,omitempty" yaml:"signal,omitempty"`
	Color  string              `json:"color,omitempty" yaml:"color,omitempty"`
	Label  string              `json:"label,omitempty" yaml:"label,omitempty"`

	Length       *float64          `json:"length,omitempty" yaml:"length,omitempty"`
	CrossSection float64           `json:"cross_section,omitempty" yaml:"cross_section,omitempty"`
	Material     analysis.Material `json:"material,omitempty" yaml:"material,omitempty"`
}
