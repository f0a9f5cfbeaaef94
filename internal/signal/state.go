package signal

import (
	"math"

	"github.com/KevinKickass/OpenCircuitCore/internal/types"
)

// Tolerance is the smallest magnitude delta that counts as a visible change.
const Tolerance = 0.02

const defaultBase = 0.6

var magnitudeBase = map[types.SignalClass]float64{
	types.SignalPower:   1,
	types.SignalGround:  0.9,
	types.SignalAnalog:  0.75,
	types.SignalPWM:     0.85,
	types.SignalSerial:  0.8,
	types.SignalDigital: 0.7,
}

// link is one wire interested in a board label. A wire whose link differs
// after a rebuild, including a move to another label, loses its state.
type link struct {
	wire          types.WireID
	label         string
	boardIsSource bool
	signal        types.SignalClass
}

// Direction models current flowing from the logical-high side toward the
// logical-low side.
func Direction(signal types.SignalClass, boardIsSource bool, logical types.WireLogicalState) types.Direction {
	switch {
	case logical == types.LogicalFloating:
		return types.DirectionNone
	case signal == types.SignalAnalog:
		return types.DirectionBidirectional
	case signal == types.SignalGround:
		if boardIsSource {
			return types.DirectionReverse
		}
		return types.DirectionForward
	}

	// The board drives high outward; low pulls current in.
	if boardIsSource != (logical == types.LogicalLow) {
		return types.DirectionForward
	}
	return types.DirectionReverse
}

// Magnitude is the display strength of a wire in [0, 1].
func Magnitude(signal types.SignalClass, logical types.WireLogicalState) float64 {
	if logical == types.LogicalFloating {
		return 0
	}
	base, ok := magnitudeBase[signal]
	if !ok {
		base = defaultBase
	}
	switch signal {
	case types.SignalAnalog:
		return base
	case types.SignalGround:
		// A grounded wire is active when low.
		if logical == types.LogicalLow {
			return base
		}
		return base * 0.5
	}
	if logical == types.LogicalLow {
		return base * 0.35
	}
	return base
}

// Derive computes the runtime state of one wire for a logical level.
func Derive(id types.WireID, signal types.SignalClass, boardIsSource bool, logical types.WireLogicalState) types.WireRuntimeState {
	return types.WireRuntimeState{
		ID:        id,
		Logical:   logical,
		Direction: Direction(signal, boardIsSource, logical),
		Magnitude: Magnitude(signal, logical),
	}
}

// Significant reports whether next differs visibly from prev.
func Significant(prev, next types.WireRuntimeState) bool {
	return prev.Logical != next.Logical ||
		prev.Direction != next.Direction ||
		math.Abs(prev.Magnitude-next.Magnitude) >= Tolerance
}
