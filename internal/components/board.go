package components

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/KevinKickass/OpenCircuitCore/internal/pins"
	"github.com/KevinKickass/OpenCircuitCore/internal/types"
)

// BuiltinLEDPin is the board label of the on-board "L" LED.
const BuiltinLEDPin = "13"

type boardLayout struct {
	label   string
	digital int
	analog  int
	pwm     []int
	serial  []int
	current float64
}

var boardLayouts = map[pins.Variant]boardLayout{
	pins.VariantUno:  {label: "Arduino Uno", digital: 14, analog: 6, pwm: []int{3, 5, 6, 9, 10, 11}, serial: []int{0, 1}, current: 0.05},
	pins.VariantNano: {label: "Arduino Nano", digital: 14, analog: 8, pwm: []int{3, 5, 6, 9, 10, 11}, serial: []int{0, 1}, current: 0.019},
	pins.VariantMega: {label: "Arduino Mega", digital: 54, analog: 16,
		pwm: []int{2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 44, 45, 46}, serial: []int{0, 1, 14, 15, 16, 17, 18, 19}, current: 0.07},
}

// BoardDescriptor returns the pin list of a board variant. Alias labels come
// from the variant's pin table.
func BoardDescriptor(v pins.Variant) (Descriptor, error) {
	layout, ok := boardLayouts[v]
	if !ok {
		return Descriptor{}, fmt.Errorf("unknown board variant: %q", v)
	}
	table := pins.NewTable(v)

	d := Descriptor{
		Kind:  KindBoard,
		Label: layout.label,
		Electrical: ElectricalModel{
			PowerConsumption: 5 * layout.current,
			OperatingVoltage: Range{Min: 4.5, Max: 5.5},
			OperatingCurrent: Range{Min: 0.01, Max: layout.current},
		},
	}

	for n := 0; n < layout.digital; n++ {
		label := strconv.Itoa(n)
		p := gpio(label, types.SignalDigital)
		switch {
		case slices.Contains(layout.serial, n):
			p.Signal = types.SignalSerial
			p.Description = "serial"
		case slices.Contains(layout.pwm, n):
			p.Signal = types.SignalPWM
			p.Description = "pwm"
		}
		p.Aliases = table.Aliases(label)
		d.Pins = append(d.Pins, p)
	}
	for n := 0; n < layout.analog; n++ {
		label := fmt.Sprintf("A%d", n)
		p := gpio(label, types.SignalAnalog)
		p.Description = "analog input"
		p.Aliases = table.Aliases(label)
		d.Pins = append(d.Pins, p)
	}

	d.Pins = append(d.Pins,
		Pin{Name: "5V", Role: RolePower, Signal: types.SignalPower, MaxVoltage: 5, MaxCurrent: 0.5, InternalResistance: 0.1},
		Pin{Name: "3.3V", Role: RolePower, Signal: types.SignalPower, MaxVoltage: 3.3, MaxCurrent: 0.15, InternalResistance: 0.5},
		Pin{Name: "VIN", Role: RolePower, Signal: types.SignalPower, MaxVoltage: 12, MaxCurrent: 1},
		Pin{Name: "GND", Role: RoleGround, Signal: types.SignalGround},
	)
	return d, nil
}

func gpio(label string, signal types.SignalClass) Pin {
	return Pin{
		Name:   label,
		Role:   RoleBidirectional,
		Signal: signal,
		Supported: []types.SignalClass{
			types.SignalDigital, types.SignalAnalog, types.SignalPWM, types.SignalSerial,
		},
		MaxVoltage:         5,
		MaxCurrent:         0.04,
		InternalResistance: 25,
	}
}
