// Package wiring holds the wire network model: canonical wire construction,
// signal-class inference and the wire arena that owns every Wire.
package wiring

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/KevinKickass/OpenCircuitCore/internal/types"
)

var (
	ErrInvalidEndpoint = errors.New("invalid wire endpoint")
	ErrSelfLoop        = errors.New("wire endpoints are the same pin")
	ErrInvalidSignal   = errors.New("invalid signal class")
)

// Draft describes a wire that does not exist yet, or the merged state of an
// edit. An empty Signal or Color means "infer".
type Draft struct {
	From      types.PinIdentifier
	To        types.PinIdentifier
	Signal    types.SignalClass
	Color     string
	CreatedAt time.Time
	Length    *float64
	Label     string
}

// Update carries a partial edit; nil fields are left unchanged.
type Update struct {
	From   *types.PinIdentifier
	To     *types.PinIdentifier
	Signal *types.SignalClass
	Color  *string
	Length *float64
	Label  *string
}

// RoleResolver knows the alternative labels of a board pin ("A4" -> "SDA").
// *pins.Table satisfies it.
type RoleResolver interface {
	Aliases(label string) []string
}

var signalColors = map[types.SignalClass]string{
	types.SignalDigital: "#6b7280",
	types.SignalAnalog:  "#10b981",
	types.SignalPower:   "#ef4444",
	types.SignalGround:  "#111827",
	types.SignalSerial:  "#8b5cf6",
	types.SignalPWM:     "#f59e0b",
}

// SignalColor returns the default color of a class; unknown classes get the
// digital color.
func SignalColor(s types.SignalClass) string {
	if c, ok := signalColors[s]; ok {
		return c
	}
	return signalColors[types.SignalDigital]
}

var analogPin = regexp.MustCompile(`^A\d+$`)

// Evaluated in order; first match wins.
var inferenceRules = []struct {
	signal types.SignalClass
	test   func(pin string) bool
}{
	{types.SignalGround, func(pin string) bool {
		return strings.Contains(pin, "GND") || strings.Contains(pin, "GROUND")
	}},
	{types.SignalPower, func(pin string) bool {
		for _, kw := range []string{"5V", "VIN", "VCC", "3V", "3.3V"} {
			if strings.Contains(pin, kw) {
				return true
			}
		}
		return false
	}},
	{types.SignalAnalog, func(pin string) bool {
		return analogPin.MatchString(pin) || strings.HasPrefix(pin, "AN")
	}},
	{types.SignalSerial, func(pin string) bool {
		return strings.HasPrefix(pin, "SCL") || strings.HasPrefix(pin, "SDA") ||
			strings.Contains(pin, "RX") || strings.Contains(pin, "TX")
	}},
	{types.SignalPWM, func(pin string) bool {
		return strings.Contains(pin, "PWM") || pin == "SIG"
	}},
}

func normalizePin(pin string) string {
	return strings.ToUpper(strings.TrimSpace(pin))
}

// InferSignal returns d.Signal when set, otherwise the class implied by the
// endpoint names.
func InferSignal(d Draft) types.SignalClass {
	if d.Signal != types.SignalUnset {
		return d.Signal
	}
	candidates := [2]string{normalizePin(d.From.PinName), normalizePin(d.To.PinName)}
	for _, rule := range inferenceRules {
		if rule.test(candidates[0]) || rule.test(candidates[1]) {
			return rule.signal
		}
	}
	return types.SignalDigital
}

// Standardize puts the board endpoint in From when exactly one endpoint is on
// the board. It is idempotent.
func Standardize(d Draft) Draft {
	if !d.From.IsBoard() && d.To.IsBoard() {
		d.From, d.To = d.To, d.From
	}
	return d
}

// RoleLabels substitutes the board endpoint's label with the alias matching
// the peer pin name, if there is one. The result is only meant for
// inference; stored wires keep the label the user picked.
func RoleLabels(d Draft, roles RoleResolver) Draft {
	if roles == nil {
		return d
	}
	d = Standardize(d)
	if !d.From.IsBoard() || d.To.IsBoard() {
		return d
	}
	peer := normalizePin(d.To.PinName)
	for _, alias := range roles.Aliases(d.From.PinName) {
		if alias == peer {
			d.From.PinName = alias
			break
		}
	}
	return d
}

// Validate checks the structural preconditions of a draft.
func Validate(d Draft) error {
	for _, p := range []types.PinIdentifier{d.From, d.To} {
		if strings.TrimSpace(p.ComponentID) == "" || strings.TrimSpace(p.PinName) == "" {
			return fmt.Errorf("%w: %q", ErrInvalidEndpoint, p.String())
		}
	}
	if d.From == d.To {
		return fmt.Errorf("%w: %s", ErrSelfLoop, d.From)
	}
	if d.Signal != types.SignalUnset && !d.Signal.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidSignal, d.Signal)
	}
	return nil
}

// Build creates the canonical wire for d.
func Build(id types.WireID, d Draft, now time.Time, roles RoleResolver) types.Wire {
	s := Standardize(d)
	signal := InferSignal(RoleLabels(s, roles))

	color := s.Color
	if color == "" {
		color = SignalColor(signal)
	}

	created := s.CreatedAt
	if created.IsZero() {
		created = now
	}

	return types.Wire{
		ID:     id,
		From:   s.From,
		To:     s.To,
		Signal: signal,
		Color:  color,
		Metadata: types.WireMetadata{
			CreatedAt: created,
			UpdatedAt: now,
			Length:    copyLength(s.Length),
			Label:     s.Label,
		},
	}
}

// Merge applies u on top of w and returns the (non-canonical) draft.
func Merge(w types.Wire, u Update) Draft {
	d := Draft{
		From:      w.From,
		To:        w.To,
		Signal:    w.Signal,
		Color:     w.Color,
		CreatedAt: w.Metadata.CreatedAt,
		Length:    w.Metadata.Length,
		Label:     w.Metadata.Label,
	}
	if u.From != nil {
		d.From = *u.From
	}
	if u.To != nil {
		d.To = *u.To
	}
	if u.Signal != nil {
		d.Signal = *u.Signal
	}
	if u.Color != nil {
		d.Color = *u.Color
	}
	if u.Length != nil {
		d.Length = u.Length
	}
	if u.Label != nil {
		d.Label = *u.Label
	}
	return d
}

// Rebuild applies u to w. Signal and color are re-inferred only when an
// endpoint changes and the caller did not override them.
func Rebuild(w types.Wire, u Update, now time.Time, roles RoleResolver) types.Wire {
	s := Standardize(Merge(w, u))
	endpointChanged := u.From != nil || u.To != nil

	signal := w.Signal
	switch {
	case u.Signal != nil && *u.Signal != types.SignalUnset:
		signal = *u.Signal
	case endpointChanged || u.Signal != nil:
		inferFrom := s
		inferFrom.Signal = types.SignalUnset
		signal = InferSignal(RoleLabels(inferFrom, roles))
	}

	color := w.Color
	switch {
	case u.Color != nil && *u.Color != "":
		color = *u.Color
	case endpointChanged && u.Signal == nil, u.Color != nil:
		color = SignalColor(signal)
	}

	created := w.Metadata.CreatedAt
	if created.IsZero() {
		created = now
	}

	return types.Wire{
		ID:     w.ID,
		From:   s.From,
		To:     s.To,
		Signal: signal,
		Color:  color,
		Metadata: types.WireMetadata{
			CreatedAt: created,
			UpdatedAt: now,
			Length:    copyLength(s.Length),
			Label:     s.Label,
		},
	}
}

func copyLength(l *float64) *float64 {
	if l == nil {
		return nil
	}
	v := *l
	return &v
}
