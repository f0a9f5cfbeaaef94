package pins

import (
	"fmt"
	"strings"

	"github.com/KevinKickass/OpenCircuitCore/internal/types"
)

// Variant selects a board pin layout.
type Variant string

const (
	VariantUno  Variant = "uno"
	VariantNano Variant = "nano"
	VariantMega Variant = "mega"
)

// Variants lists the supported boards.
var Variants = []Variant{VariantUno, VariantNano, VariantMega}

// ParseVariant accepts "uno", "arduino-uno", "Nano", ...
func ParseVariant(s string) (Variant, error) {
	v := Variant(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "arduino-"))
	switch v {
	case VariantUno, VariantNano, VariantMega:
		return v, nil
	}
	return "", fmt.Errorf("unknown board variant: %q", s)
}

// AnalogOffset is the digital pin number of A0. Analog inputs are numbered
// above the digital range.
const AnalogOffset = 14

// analogInputs is the number of A<n> labels formatted back as analog.
const analogInputs = 16

// atmega328 digital pin number -> PORTx bit.
var atmega328 = map[int]types.PinAddress{
	0: {Port: types.PortD, Bit: 0},
	1: {Port: types.PortD, Bit: 1},
	2: {Port: types.PortD, Bit: 2},
	3: {Port: types.PortD, Bit: 3},
	4: {Port: types.PortD, Bit: 4},
	5: {Port: types.PortD, Bit: 5},
	6: {Port: types.PortD, Bit: 6},
	7: {Port: types.PortD, Bit: 7},

	8:  {Port: types.PortB, Bit: 0},
	9:  {Port: types.PortB, Bit: 1},
	10: {Port: types.PortB, Bit: 2},
	11: {Port: types.PortB, Bit: 3},
	12: {Port: types.PortB, Bit: 4},
	13: {Port: types.PortB, Bit: 5},

	14: {Port: types.PortC, Bit: 0},
	15: {Port: types.PortC, Bit: 1},
	16: {Port: types.PortC, Bit: 2},
	17: {Port: types.PortC, Bit: 3},
	18: {Port: types.PortC, Bit: 4},
	19: {Port: types.PortC, Bit: 5},
}

// The mega emulation shares the 328 register layout; pins beyond 19 have no
// address and resolve to nothing.
var numberTables = map[Variant]map[int]types.PinAddress{
	VariantUno:  atmega328,
	VariantNano: atmega328,
	VariantMega: atmega328,
}

var sharedAliases = map[string]int{
	"TX0": 1,
	"RX0": 0,
}

var boardAliases = map[Variant]map[string]int{
	VariantUno:  {"SDA": 18, "SCL": 19},
	VariantNano: {"SDA": 18, "SCL": 19},
	// The mega reuses the 328 port layout, so 18 and 19 resolve to PC4 and
	// PC5, the same bits as A4 and A5. TX1 and RX1 share them on purpose.
	VariantMega: {"SDA": 20, "SCL": 21, "TX1": 18, "RX1": 19},
}
