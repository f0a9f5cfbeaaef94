package types

// WireLogicalState is the derived logical level of a wire.
type WireLogicalState string

const (
	LogicalFloating WireLogicalState = "floating"
	LogicalLow      WireLogicalState = "low"
	LogicalHigh     WireLogicalState = "high"
)

// Direction of modeled current flow along a wire.
type Direction string

const (
	DirectionForward       Direction = "forward"
	DirectionReverse       Direction = "reverse"
	DirectionBidirectional Direction = "bidirectional"
	DirectionNone          Direction = "none"
)

// WireRuntimeState is the per-tick visualization state of one wire.
type WireRuntimeState struct {
	ID        WireID           `json:"id"`
	Logical   WireLogicalState `json:"logical"`
	Direction Direction        `json:"direction"`
	Magnitude float64          `json:"magnitude"`
}

// FloatingState is the state of a wire that has no entry.
func FloatingState(id WireID) WireRuntimeState {
	return WireRuntimeState{
		ID:        id,
		Logical:   LogicalFloating,
		Direction: DirectionNone,
		Magnitude: 0,
	}
}
