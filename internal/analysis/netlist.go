package analysis

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/KevinKickass/OpenCircuitCore/internal/components"
	"github.com/KevinKickass/OpenCircuitCore/internal/types"
)

// Netlist renders a SPICE-style netlist: one R element per wire, one
// element per resistor or LED, and a DC source per wired supply pin. Ground
// pins, and pins on ground-class wires, map to node 0.
func Netlist(comps []Component, wires []Wire, generated time.Time) string {
	byID := make(map[string]Component, len(comps))
	for _, c := range comps {
		byID[c.ID] = c
	}
	grounded := make(map[types.PinIdentifier]bool)
	for _, w := range wires {
		if w.Signal == types.SignalGround {
			grounded[w.From] = true
			grounded[w.To] = true
		}
	}
	node := func(id types.PinIdentifier) string {
		if grounded[id] {
			return "0"
		}
		if p, err := lookupPin(byID, id); err == nil && p.Signal == types.SignalGround {
			return "0"
		}
		return sanitizeNode(id.ComponentID + "_" + id.PinName)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "* circuitcore netlist\n* %s\n\n", generated.UTC().Format(time.RFC3339))

	for _, c := range comps {
		fmt.Fprintf(&b, "* component %s (%s)\n", c.ID, c.Kind)
		switch c.Kind {
		case components.KindResistor:
			if c.Resistance > 0 {
				fmt.Fprintf(&b, "R%s %s %s %s\n", sanitizeNode(c.ID),
					node(types.PinIdentifier{ComponentID: c.ID, PinName: "1"}),
					node(types.PinIdentifier{ComponentID: c.ID, PinName: "2"}),
					formatValue(c.Resistance))
			}
		case components.KindLED:
			fmt.Fprintf(&b, "D%s %s %s LED\n", sanitizeNode(c.ID),
				node(types.PinIdentifier{ComponentID: c.ID, PinName: "A"}),
				node(types.PinIdentifier{ComponentID: c.ID, PinName: "C"}))
		}
	}
	b.WriteString("\n")

	supplies := make(map[string]float64)
	var order []string
	for n, w := range wires {
		fmt.Fprintf(&b, "* %s %s\n", w.ID, w.Signal)
		fmt.Fprintf(&b, "RW%d %s %s %s\n", n+1, node(w.From), node(w.To), formatValue(WireResistance(w.Properties)))
		for _, end := range []types.PinIdentifier{w.From, w.To} {
			p, err := lookupPin(byID, end)
			if err != nil || p.Signal != types.SignalPower {
				continue
			}
			name := node(end)
			if _, seen := supplies[name]; !seen {
				supplies[name] = p.MaxVoltage
				order = append(order, name)
			}
		}
	}
	for i, name := range order {
		fmt.Fprintf(&b, "V%d %s 0 DC %s\n", i+1, name, formatValue(supplies[name]))
	}

	b.WriteString(".end\n")
	return b.String()
}

func sanitizeNode(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		}
		return '_'
	}, s)
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}

// Netlist renders the model's current components and wires.
func (m *Model) Netlist() string {
	return Netlist(m.Components(), m.Wires(), time.Now())
}
