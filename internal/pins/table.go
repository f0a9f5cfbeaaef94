package pins

import (
	"github.com/KevinKickass/OpenCircuitCore/internal/types"
)

// Table is the per-board lookup table produced once per board selection.
type Table struct {
	variant   Variant
	byAddress [types.PortCount][8]int
	mapped    [types.PortCount]uint8
}

// NewTable builds the lookup table for v.
func NewTable(v Variant) *Table {
	t := &Table{variant: v}
	for p := range t.byAddress {
		for b := range t.byAddress[p] {
			t.byAddress[p][b] = -1
		}
	}
	for n, addr := range numberTables[v] {
		t.byAddress[addr.Port][addr.Bit] = n
		t.mapped[addr.Port] |= addr.Mask()
	}
	return t
}

func (t *Table) Variant() Variant {
	return t.variant
}

// Resolve is Resolve bound to the table's variant.
func (t *Table) Resolve(label string) (types.PinAddress, bool) {
	return Resolve(t.variant, label)
}

// Format returns the canonical label at addr, or "" for an unmapped address.
func (t *Table) Format(addr types.PinAddress) string {
	if !addr.Port.Valid() || addr.Bit > 7 {
		return ""
	}
	n := t.byAddress[addr.Port][addr.Bit]
	if n < 0 {
		return ""
	}
	return FormatNumber(n)
}

// MappedMask returns the bits of port that carry a board pin.
func (t *Table) MappedMask(port types.Port) uint8 {
	if !port.Valid() {
		return 0
	}
	return t.mapped[port]
}

// Aliases returns the alias labels that resolve to the same address as label,
// excluding label itself. Used to find the role-specific name of a pin, e.g.
// "A4" -> ["SDA"] on an uno.
func (t *Table) Aliases(label string) []string {
	addr, ok := t.Resolve(label)
	if !ok {
		return nil
	}
	self := NormalizeLabel(label)
	var out []string
	for _, alias := range Aliases(t.variant) {
		if alias == self {
			continue
		}
		if a, ok := t.Resolve(alias); ok && a == addr {
			out = append(out, alias)
		}
	}
	return out
}
