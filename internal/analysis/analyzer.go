package analysis

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/KevinKickass/OpenCircuitCore/internal/components"
	"github.com/KevinKickass/OpenCircuitCore/internal/types"
)

// Thresholds drive the warnings of a snapshot.
type Thresholds struct {
	Overcurrent float64 `json:"overcurrent" mapstructure:"overcurrent"` // A
	Overvoltage float64 `json:"overvoltage" mapstructure:"overvoltage"` // V
	Temperature float64 `json:"temperature" mapstructure:"temperature"` // °C
	VoltageDrop float64 `json:"voltage_drop" mapstructure:"voltage_drop"`
	Power       float64 `json:"power" mapstructure:"power"` // W
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		Overcurrent: 2.0,
		Overvoltage: 6.0,
		Temperature: 85,
		VoltageDrop: 0.5,
		Power:       10,
	}
}

// ElectricalPin is a pin with the electrical characteristics the analyzer
// needs.
type ElectricalPin struct {
	types.PinIdentifier
	Signal             types.SignalClass   `json:"signal"`
	Supported          []types.SignalClass `json:"supported,omitempty"`
	MaxVoltage         float64             `json:"max_voltage"`
	MaxCurrent         float64             `json:"max_current"`
	InternalResistance float64             `json:"internal_resistance"`
}

// ClassFor returns the class the pin takes on when carrying signal: the
// wire's class if the pin supports it, the pin's own class otherwise.
func (p ElectricalPin) ClassFor(signal types.SignalClass) types.SignalClass {
	if signal == p.Signal {
		return signal
	}
	for _, s := range p.Supported {
		if s == signal {
			return signal
		}
	}
	return p.Signal
}

// Component is the electrical view of one placed component.
type Component struct {
	ID               string          `json:"id"`
	Kind             components.Kind `json:"kind"`
	Pins             []ElectricalPin `json:"pins"`
	PowerConsumption float64         `json:"power_consumption"`
	Temperature      float64         `json:"temperature"`
	Resistance       float64         `json:"resistance,omitempty"`
}

func (c Component) Pin(name string) (ElectricalPin, bool) {
	for _, p := range c.Pins {
		if strings.EqualFold(p.PinName, name) {
			return p, true
		}
	}
	return ElectricalPin{}, false
}

// FromDescriptor builds the electrical view of a component from its kind
// descriptor.
func FromDescriptor(id string, d components.Descriptor, temperature float64) Component {
	c := Component{
		ID:               id,
		Kind:             d.Kind,
		PowerConsumption: d.Electrical.PowerConsumption,
		Temperature:      temperature,
	}
	for _, p := range d.Pins {
		c.Pins = append(c.Pins, ElectricalPin{
			PinIdentifier:      types.PinIdentifier{ComponentID: id, PinName: p.Name},
			Signal:             p.Signal,
			Supported:          p.Supported,
			MaxVoltage:         p.MaxVoltage,
			MaxCurrent:         p.MaxCurrent,
			InternalResistance: p.InternalResistance,
		})
	}
	return c
}

// FromComponent builds the electrical view of a placed peripheral.
func FromComponent(pc components.Component) (Component, error) {
	d, err := pc.Descriptor()
	if err != nil {
		return Component{}, err
	}
	c := FromDescriptor(pc.ID, d, pc.EffectiveTemperature())
	c.Resistance = pc.Resistance
	return c, nil
}

// PWM carries signal metadata; it is never derived.
type PWM struct {
	Frequency float64 `json:"frequency"`
	DutyCycle float64 `json:"duty_cycle"`
}

// Wire is a network wire with physical parameters and its present source
// voltage. Current, when set, overrides the Ohm's-law estimate.
type Wire struct {
	types.Wire
	Properties WireProperties `json:"properties"`
	Voltage    float64        `json:"voltage"`
	Current    *float64       `json:"current,omitempty"`
	PWM        *PWM           `json:"pwm,omitempty"`
}

// Reading is the interpreted signal at the receiving end of a wire.
type Reading struct {
	Signal        types.SignalClass `json:"signal"`
	Resistance    float64           `json:"resistance"`
	Current       float64           `json:"current"`
	VoltageDrop   float64           `json:"voltage_drop"`
	OutputVoltage float64           `json:"output_voltage"`
	Digital       *bool             `json:"digital,omitempty"`
	Analog        *int              `json:"analog,omitempty"`
	PWM           *PWM              `json:"pwm,omitempty"`
}

// Propagate computes the reading at the receiving pin of w.
func Propagate(w Wire, receiver ElectricalPin) Reading {
	r := WireResistance(w.Properties)
	i := Current(w.Voltage, r, receiver.InternalResistance)
	if w.Current != nil {
		i = *w.Current
	}
	drop := VoltageDrop(i, r)
	out := w.Voltage - drop

	reading := Reading{
		Signal:        w.Signal,
		Resistance:    r,
		Current:       i,
		VoltageDrop:   drop,
		OutputVoltage: out,
	}
	switch w.Signal {
	case types.SignalDigital:
		level := DigitalLevel(out)
		reading.Digital = &level
	case types.SignalAnalog:
		n := ADCValue(out)
		reading.Analog = &n
	case types.SignalPWM:
		pwm := PWM{Frequency: 1000, DutyCycle: 0.5}
		if w.PWM != nil {
			pwm = *w.PWM
		}
		reading.OutputVoltage = PWMAverage(out, pwm.DutyCycle)
		reading.PWM = &pwm
	}
	return reading
}

// Snapshot is the result of one analysis pass. It is never mutated after
// Analyze returns.
type Snapshot struct {
	TakenAt                time.Time                `json:"taken_at"`
	TotalPowerConsumption  float64                  `json:"total_power_consumption"`
	TotalDissipation       float64                  `json:"total_dissipation"`
	VoltageDropByWire      map[types.WireID]float64 `json:"voltage_drop_by_wire"`
	CurrentByWire          map[types.WireID]float64 `json:"current_by_wire"`
	PowerDissipationByWire map[types.WireID]float64 `json:"power_dissipation_by_wire"`
	Readings               map[types.WireID]Reading `json:"readings"`
	Efficiency             float64                  `json:"efficiency"`
	Temperatures           map[string]float64       `json:"temperatures"`
	Warnings               []string                 `json:"warnings"`
	Errors                 []string                 `json:"errors"`
}

// TotalCurrent sums the current of every wire.
func (s Snapshot) TotalCurrent() float64 {
	total := 0.0
	for _, i := range s.CurrentByWire {
		total += i
	}
	return total
}

// Analyze computes a snapshot. Wires that reference unknown components or
// pins are reported in Errors and skipped; malformed physical parameters
// fall back to defaults.
func Analyze(comps []Component, wires []Wire, th Thresholds) Snapshot {
	s := Snapshot{
		TakenAt:                time.Now(),
		VoltageDropByWire:      make(map[types.WireID]float64, len(wires)),
		CurrentByWire:          make(map[types.WireID]float64, len(wires)),
		PowerDissipationByWire: make(map[types.WireID]float64, len(wires)),
		Readings:               make(map[types.WireID]Reading, len(wires)),
		Temperatures:           make(map[string]float64, len(comps)),
		Warnings:               []string{},
		Errors:                 []string{},
	}

	byID := make(map[string]Component, len(comps))
	for _, c := range comps {
		byID[c.ID] = c
	}

	for _, w := range wires {
		receiver, err := lookupPin(byID, w.To)
		if err == nil {
			_, err = lookupPin(byID, w.From)
		}
		if err != nil {
			s.Errors = append(s.Errors, fmt.Sprintf("wire %s: %v", w.ID, err))
			continue
		}

		reading := Propagate(w, receiver)
		dissipation := Dissipation(reading.Current, reading.Resistance)

		s.Readings[w.ID] = reading
		s.CurrentByWire[w.ID] = reading.Current
		s.VoltageDropByWire[w.ID] = reading.VoltageDrop
		s.PowerDissipationByWire[w.ID] = dissipation
		s.TotalDissipation += dissipation

		if reading.Current > th.Overcurrent {
			s.Warnings = append(s.Warnings, fmt.Sprintf("high current on wire %s: %.3fA", w.ID, reading.Current))
		}
		if w.Voltage > th.Overvoltage {
			s.Warnings = append(s.Warnings, fmt.Sprintf("overvoltage on wire %s: %.3fV", w.ID, w.Voltage))
		}
		if th.VoltageDrop > 0 && reading.VoltageDrop > th.VoltageDrop {
			s.Warnings = append(s.Warnings, fmt.Sprintf("significant voltage drop on wire %s: %.3fV", w.ID, reading.VoltageDrop))
		}
	}

	for _, c := range comps {
		s.TotalPowerConsumption += c.PowerConsumption
		temp := componentTemperature(c, wires)
		s.Temperatures[c.ID] = temp
		if temp > th.Temperature {
			s.Warnings = append(s.Warnings, fmt.Sprintf("high temperature on component %s: %.1f°C", c.ID, temp))
		}
	}
	if th.Power > 0 && s.TotalPowerConsumption > th.Power {
		s.Warnings = append(s.Warnings, fmt.Sprintf("total power consumption %.3fW exceeds %.3fW", s.TotalPowerConsumption, th.Power))
	}

	if s.TotalPowerConsumption > 0 {
		s.Efficiency = max(0, (s.TotalPowerConsumption-s.TotalDissipation)/s.TotalPowerConsumption)
	}
	return s
}

// componentTemperature is the body temperature of c. Resistors heat above
// their ambient by the power they dissipate: the largest explicit current of
// their wires, or the highest source voltage across the resistance.
func componentTemperature(c Component, wires []Wire) float64 {
	if c.Kind != components.KindResistor || c.Resistance <= 0 {
		return c.Temperature
	}
	var voltage, current float64
	explicit := false
	for _, w := range wires {
		if !w.Touches(c.ID) {
			continue
		}
		voltage = max(voltage, w.Voltage)
		if w.Current != nil {
			current = max(current, math.Abs(*w.Current))
			explicit = true
		}
	}
	if !explicit {
		current = voltage / c.Resistance
	}
	return SimulateResistor(c.Resistance, voltage, current, c.Temperature).Temperature
}

func lookupPin(byID map[string]Component, id types.PinIdentifier) (ElectricalPin, error) {
	c, ok := byID[id.ComponentID]
	if !ok {
		return ElectricalPin{}, fmt.Errorf("%w: %s", ErrUnknownComponent, id.ComponentID)
	}
	p, ok := c.Pin(id.PinName)
	if !ok {
		return ElectricalPin{}, fmt.Errorf("%w: %s", ErrUnknownPin, id)
	}
	return p, nil
}
