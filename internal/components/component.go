package components

import (
	"errors"
	"fmt"
)

var ErrUnknownPin = errors.New("unknown pin")

// Component is one placed instance. Kind-specific parameters are explicit
// fields; fields a kind does not use stay zero.
type Component struct {
	ID    string `json:"id" yaml:"id"`
	Kind  Kind   `json:"kind" yaml:"kind"`
	Label string `json:"label,omitempty" yaml:"label,omitempty"`

	// led
	Color string `json:"color,omitempty" yaml:"color,omitempty"`
	// resistor, potentiometer (ohms)
	Resistance float64 `json:"resistance,omitempty" yaml:"resistance,omitempty"`
	// resistor (watts)
	PowerRating float64 `json:"power_rating,omitempty" yaml:"power_rating,omitempty"`
	// Ambient or measured temperature in °C; zero means ambient.
	Temperature float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
}

// AmbientTemperature is assumed when a component declares none.
const AmbientTemperature = 25.0

func (c Component) EffectiveTemperature() float64 {
	if c.Temperature == 0 {
		return AmbientTemperature
	}
	return c.Temperature
}

// Descriptor returns the pin contract of the component's kind.
func (c Component) Descriptor() (Descriptor, error) {
	d, ok := Describe(c.Kind)
	if !ok {
		return Descriptor{}, fmt.Errorf("no descriptor for kind %q", c.Kind)
	}
	return d, nil
}

// Validate checks the kind and the kind-specific parameters.
func (c Component) Validate() error {
	if c.ID == "" {
		return errors.New("component id is required")
	}
	if c.Kind == KindBoard {
		return fmt.Errorf("component %s: the board is implicit", c.ID)
	}
	if _, ok := Describe(c.Kind); !ok {
		return fmt.Errorf("component %s: unknown kind %q", c.ID, c.Kind)
	}
	if c.Resistance < 0 {
		return fmt.Errorf("component %s: negative resistance", c.ID)
	}
	if c.Kind == KindResistor && c.Resistance == 0 {
		return fmt.Errorf("component %s: resistor needs a resistance", c.ID)
	}
	return nil
}

// RequirePin reports ErrUnknownPin if the kind declares no such pin.
func (c Component) RequirePin(name string) error {
	d, err := c.Descriptor()
	if err != nil {
		return err
	}
	if _, ok := d.Pin(name); !ok {
		return fmt.Errorf("%w: %s has no pin %q", ErrUnknownPin, c.ID, name)
	}
	return nil
}
