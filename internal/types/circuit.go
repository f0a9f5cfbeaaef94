package types

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// BoardComponentID is the reserved component id of the microcontroller board.
const BoardComponentID = "board"

// PinIdentifier identifies one terminal of one component instance.
type PinIdentifier struct {
	ComponentID string `json:"component_id" yaml:"component"`
	PinName     string `json:"pin_name" yaml:"pin"`
}

// IsBoard reports whether the pin belongs to the board component.
func (p PinIdentifier) IsBoard() bool {
	return p.ComponentID == BoardComponentID
}

func (p PinIdentifier) String() string {
	return p.ComponentID + ":" + p.PinName
}

// Port is one of the emulator's 8-bit IO port registers.
type Port uint8

const (
	PortB Port = iota
	PortC
	PortD
)

// PortCount is the number of addressable ports.
const PortCount = 3

func (p Port) String() string {
	switch p {
	case PortB:
		return "B"
	case PortC:
		return "C"
	case PortD:
		return "D"
	default:
		return "?"
	}
}

// Valid reports whether p names a known port.
func (p Port) Valid() bool {
	return p < PortCount
}

// ParsePort accepts "B", "portB", "PORTB" and friends.
func ParsePort(s string) (Port, error) {
	switch strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(s)), "PORT") {
	case "B":
		return PortB, nil
	case "C":
		return PortC, nil
	case "D":
		return PortD, nil
	}
	return 0, fmt.Errorf("unknown port: %q", s)
}

// PinAddress is a hardware (port, bit) address inside the emulator register space.
type PinAddress struct {
	Port Port  `json:"port"`
	Bit  uint8 `json:"bit"`
}

func (a PinAddress) String() string {
	return fmt.Sprintf("PORT%s%d", a.Port, a.Bit)
}

// Mask returns the register mask of the addressed bit.
func (a PinAddress) Mask() uint8 {
	return 1 << (a.Bit & 7)
}

// SignalClass is the electrical role assigned to a wire.
// The empty value means "not specified" and triggers inference.
type SignalClass string

const (
	SignalUnset   SignalClass = ""
	SignalDigital SignalClass = "digital"
	SignalAnalog  SignalClass = "analog"
	SignalPower   SignalClass = "power"
	SignalGround  SignalClass = "ground"
	SignalSerial  SignalClass = "serial"
	SignalPWM     SignalClass = "pwm"
)

// SignalClasses lists every concrete class in declaration order.
var SignalClasses = []SignalClass{
	SignalDigital, SignalAnalog, SignalPower, SignalGround, SignalSerial, SignalPWM,
}

// Valid reports whether s is one of the concrete classes.
func (s SignalClass) Valid() bool {
	switch s {
	case SignalDigital, SignalAnalog, SignalPower, SignalGround, SignalSerial, SignalPWM:
		return true
	}
	return false
}

// WireID is issued monotonically by the wire network arena.
type WireID uint64

const wireIDPrefix = "wire-"

func (id WireID) String() string {
	return wireIDPrefix + strconv.FormatUint(uint64(id), 10)
}

func (id WireID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *WireID) UnmarshalText(b []byte) error {
	parsed, err := ParseWireID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParseWireID accepts both "wire-12" and "12".
func ParseWireID(s string) (WireID, error) {
	n, err := strconv.ParseUint(strings.TrimPrefix(s, wireIDPrefix), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid wire id %q: %w", s, err)
	}
	return WireID(n), nil
}

type WireMetadata struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	// Length in meters; nil when never measured.
	Length *float64 `json:"length,omitempty"`
	Label  string   `json:"label,omitempty"`
}

// Wire is a canonical point-to-point connection. If exactly one endpoint
// belongs to the board, that endpoint is From.
type Wire struct {
	ID       WireID        `json:"id"`
	From     PinIdentifier `json:"from"`
	To       PinIdentifier `json:"to"`
	Signal   SignalClass   `json:"signal"`
	Color    string        `json:"color"`
	Metadata WireMetadata  `json:"metadata"`
}

// Touches reports whether either endpoint belongs to componentID.
func (w Wire) Touches(componentID string) bool {
	return w.From.ComponentID == componentID || w.To.ComponentID == componentID
}

// BoardEndpoint returns the board side of the wire, if any.
func (w Wire) BoardEndpoint() (PinIdentifier, bool) {
	switch {
	case w.From.IsBoard():
		return w.From, true
	case w.To.IsBoard():
		return w.To, true
	}
	return PinIdentifier{}, false
}

// Peer returns the endpoint opposite to the board side.
func (w Wire) Peer() PinIdentifier {
	if w.From.IsBoard() {
		return w.To
	}
	return w.From
}
