// Package analysis is the Ohm's-law model of a wired circuit: per-wire
// resistance, current, voltage drop and dissipation, aggregated into a
// snapshot with threshold alerts.
package analysis

import (
	"math"
	"strings"
)

type Material string

const (
	Copper   Material = "copper"
	Aluminum Material = "aluminum"
	Silver   Material = "silver"
)

// Resistivity in Ω·m at 20 °C.
var resistivity = map[Material]float64{
	Copper:   1.68e-8,
	Aluminum: 2.65e-8,
	Silver:   1.59e-8,
}

const (
	// MinLength replaces zero, negative or NaN lengths (meters).
	MinLength = 1e-3
	// DefaultCrossSection replaces non-positive cross sections (mm²).
	DefaultCrossSection = 0.5

	// LogicHighThreshold is the fixed TTL input threshold in volts.
	LogicHighThreshold = 2.0
	// ReferenceVoltage of the ADC.
	ReferenceVoltage = 5.0
	// ADCMax is the top of the 10-bit conversion range.
	ADCMax = 1023
)

// Resistivity returns the resistivity of m, falling back to copper.
func Resistivity(m Material) float64 {
	if r, ok := resistivity[Material(strings.ToLower(string(m)))]; ok {
		return r
	}
	return resistivity[Copper]
}

// WireProperties are the physical parameters of a conductor.
type WireProperties struct {
	Length       float64  `json:"length" yaml:"length"`               // m
	CrossSection float64  `json:"cross_section" yaml:"cross_section"` // mm²
	Material     Material `json:"material" yaml:"material"`
}

// Sanitized returns p with malformed values replaced by safe defaults.
func (p WireProperties) Sanitized() WireProperties {
	if !(p.Length > 0) || math.IsInf(p.Length, 0) {
		p.Length = MinLength
	}
	if !(p.CrossSection > 0) || math.IsInf(p.CrossSection, 0) {
		p.CrossSection = DefaultCrossSection
	}
	if _, ok := resistivity[Material(strings.ToLower(string(p.Material)))]; !ok {
		p.Material = Copper
	}
	return p
}

// WireResistance is R = ρ·L/A with A converted from mm² to m².
func WireResistance(p WireProperties) float64 {
	p = p.Sanitized()
	return Resistivity(p.Material) * p.Length / (p.CrossSection * 1e-6)
}

// Current is I = V / (R_wire + R_pin). A non-positive total resistance
// yields zero.
func Current(voltage, wireResistance, pinResistance float64) float64 {
	total := wireResistance + pinResistance
	if !(total > 0) || math.IsNaN(voltage) {
		return 0
	}
	return voltage / total
}

func VoltageDrop(current, resistance float64) float64 {
	return current * resistance
}

func Dissipation(current, resistance float64) float64 {
	return current * current * resistance
}

// DigitalLevel interprets a received voltage as a logic level.
func DigitalLevel(v float64) bool {
	return v > LogicHighThreshold
}

// ADCValue maps a voltage onto 0..ADCMax against ReferenceVoltage.
func ADCValue(v float64) int {
	n := int(math.Round(v / ReferenceVoltage * ADCMax))
	return max(0, min(ADCMax, n))
}

// PWMAverage is the mean voltage of a PWM signal.
func PWMAverage(v, dutyCycle float64) float64 {
	return v * dutyCycle
}

// ThermalResistance of a through-hole resistor in °C/W.
const ThermalResistance = 50.0

type ResistorResult struct {
	OutputVoltage    float64 `json:"output_voltage"`
	PowerDissipation float64 `json:"power_dissipation"`
	Temperature      float64 `json:"temperature"`
}

// SimulateResistor computes the output voltage, dissipation and body
// temperature of a resistor carrying current at ambient °C.
func SimulateResistor(resistance, inputVoltage, current, ambient float64) ResistorResult {
	dissipation := Dissipation(current, resistance)
	return ResistorResult{
		OutputVoltage:    inputVoltage - VoltageDrop(current, resistance),
		PowerDissipation: dissipation,
		Temperature:      ambient + dissipation*ThermalResistance,
	}
}
