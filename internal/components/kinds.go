// Package components describes peripheral kinds as a closed set of tagged
// descriptors: declared pins with roles, plus an electrical model.
package components

import (
	"fmt"
	"strings"

	"github.com/KevinKickass/OpenCircuitCore/internal/types"
)

type Kind string

const (
	KindBoard         Kind = "board"
	KindLED           Kind = "led"
	KindPushButton    Kind = "pushbutton"
	KindResistor      Kind = "resistor"
	KindPotentiometer Kind = "potentiometer"
)

// Kinds lists every peripheral kind. The board is described per variant.
var Kinds = []Kind{KindLED, KindPushButton, KindResistor, KindPotentiometer}

func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case KindBoard, KindLED, KindPushButton, KindResistor, KindPotentiometer:
		return k, nil
	case "button":
		return KindPushButton, nil
	}
	return "", fmt.Errorf("unknown component kind: %q", s)
}

type PinRole string

const (
	RoleInput         PinRole = "input"
	RoleOutput        PinRole = "output"
	RoleBidirectional PinRole = "bidirectional"
	RolePower         PinRole = "power"
	RoleGround        PinRole = "ground"
)

// Pin is one declared terminal of a component kind.
type Pin struct {
	Name        string              `json:"name" yaml:"name"`
	Role        PinRole             `json:"role" yaml:"role"`
	Signal      types.SignalClass   `json:"signal" yaml:"signal"`
	Supported   []types.SignalClass `json:"supported,omitempty" yaml:"supported,omitempty"`
	Description string              `json:"description,omitempty" yaml:"description,omitempty"`
	Aliases     []string            `json:"aliases,omitempty" yaml:"aliases,omitempty"`

	MaxVoltage         float64 `json:"max_voltage" yaml:"max_voltage"`
	MaxCurrent         float64 `json:"max_current" yaml:"max_current"`
	InternalResistance float64 `json:"internal_resistance" yaml:"internal_resistance"`
}

// Supports reports whether the pin accepts signal class s.
func (p Pin) Supports(s types.SignalClass) bool {
	if p.Signal == s {
		return true
	}
	for _, c := range p.Supported {
		if c == s {
			return true
		}
	}
	return false
}

type Range struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// ElectricalModel is the declared consumption of one component instance.
type ElectricalModel struct {
	PowerConsumption float64 `json:"power_consumption" yaml:"power_consumption"`
	OperatingVoltage Range   `json:"operating_voltage" yaml:"operating_voltage"`
	OperatingCurrent Range   `json:"operating_current" yaml:"operating_current"`
}

// Descriptor is the pin contract and electrical model of a kind.
type Descriptor struct {
	Kind       Kind            `json:"kind" yaml:"kind"`
	Label      string          `json:"label" yaml:"label"`
	Pins       []Pin           `json:"pins" yaml:"pins"`
	Electrical ElectricalModel `json:"electrical" yaml:"electrical"`
}

// Pin looks up a declared pin by name, case-insensitively.
func (d Descriptor) Pin(name string) (Pin, bool) {
	for _, p := range d.Pins {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return Pin{}, false
}

func (d Descriptor) PinNames() []string {
	out := make([]string, len(d.Pins))
	for i, p := range d.Pins {
		out[i] = p.Name
	}
	return out
}

const (
	logicVoltage   = 5.0
	inputImpedance = 100e6
)

var descriptors = map[Kind]Descriptor{
	KindLED: {
		Kind:  KindLED,
		Label: "LED",
		Pins: []Pin{
			{Name: "A", Role: RoleInput, Signal: types.SignalDigital, Supported: []types.SignalClass{types.SignalPWM},
				Description: "anode", MaxVoltage: logicVoltage, MaxCurrent: 0.02, InternalResistance: 100},
			{Name: "C", Role: RoleGround, Signal: types.SignalDigital, Supported: []types.SignalClass{types.SignalGround},
				Description: "cathode", MaxVoltage: logicVoltage, MaxCurrent: 0.02, InternalResistance: 0},
		},
		Electrical: ElectricalModel{
			PowerConsumption: 0.04,
			OperatingVoltage: Range{Min: 1.8, Max: 3.3},
			OperatingCurrent: Range{Min: 0.005, Max: 0.02},
		},
	},
	KindPushButton: {
		Kind:  KindPushButton,
		Label: "Push Button",
		Pins: []Pin{
			{Name: "1.l", Role: RoleBidirectional, Signal: types.SignalDigital, Supported: []types.SignalClass{types.SignalGround, types.SignalPower},
				MaxVoltage: logicVoltage, MaxCurrent: 0.05},
			{Name: "2.l", Role: RoleOutput, Signal: types.SignalDigital,
				MaxVoltage: logicVoltage, MaxCurrent: 0.05, InternalResistance: inputImpedance},
			{Name: "1.r", Role: RoleBidirectional, Signal: types.SignalDigital, Supported: []types.SignalClass{types.SignalGround, types.SignalPower},
				MaxVoltage: logicVoltage, MaxCurrent: 0.05},
			{Name: "2.r", Role: RoleOutput, Signal: types.SignalDigital,
				MaxVoltage: logicVoltage, MaxCurrent: 0.05, InternalResistance: inputImpedance},
		},
	},
	KindResistor: {
		Kind:  KindResistor,
		Label: "Resistor",
		Pins: []Pin{
			{Name: "1", Role: RoleBidirectional, Signal: types.SignalDigital,
				Supported:  []types.SignalClass{types.SignalPower, types.SignalGround, types.SignalAnalog, types.SignalPWM},
				MaxVoltage: 50, MaxCurrent: 0.05},
			{Name: "2", Role: RoleBidirectional, Signal: types.SignalDigital,
				Supported:  []types.SignalClass{types.SignalPower, types.SignalGround, types.SignalAnalog, types.SignalPWM},
				MaxVoltage: 50, MaxCurrent: 0.05},
		},
	},
	KindPotentiometer: {
		Kind:  KindPotentiometer,
		Label: "Potentiometer",
		Pins: []Pin{
			{Name: "GND", Role: RoleGround, Signal: types.SignalGround, MaxVoltage: logicVoltage, MaxCurrent: 0.01},
			{Name: "SIG", Role: RoleOutput, Signal: types.SignalAnalog, MaxVoltage: logicVoltage, MaxCurrent: 0.01, InternalResistance: 5000},
			{Name: "VCC", Role: RolePower, Signal: types.SignalPower, MaxVoltage: logicVoltage, MaxCurrent: 0.01},
		},
		Electrical: ElectricalModel{
			PowerConsumption: 0.0025,
			OperatingVoltage: Range{Min: 0, Max: logicVoltage},
			OperatingCurrent: Range{Min: 0, Max: 0.001},
		},
	},
}

// Describe returns the descriptor of a peripheral kind.
func Describe(k Kind) (Descriptor, bool) {
	d, ok := descriptors[k]
	return d, ok
}
