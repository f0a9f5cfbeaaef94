package analysis

import (
	"errors"
	"fmt"

	"github.com/KevinKickass/OpenCircuitCore/internal/types"
)

var ErrIncompatibleSignal = errors.New("incompatible signal types")

// compatibility lists, per source class, the classes it may drive.
var compatibility = map[types.SignalClass][]types.SignalClass{
	types.SignalDigital: {types.SignalDigital, types.SignalPWM},
	types.SignalAnalog:  {types.SignalAnalog, types.SignalDigital},
	types.SignalPower:   {types.SignalPower},
	types.SignalGround:  {types.SignalGround},
	types.SignalSerial:  {types.SignalSerial, types.SignalDigital},
	types.SignalPWM:     {types.SignalPWM, types.SignalDigital, types.SignalAnalog},
}

// Compatible reports whether a from-class pin may be wired to a to-class pin.
func Compatible(from, to types.SignalClass) bool {
	for _, c := range compatibility[from] {
		if c == to {
			return true
		}
	}
	return false
}

// CheckCompatible returns a descriptive ErrIncompatibleSignal.
func CheckCompatible(from, to types.SignalClass) error {
	if !Compatible(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIncompatibleSignal, from, to)
	}
	return nil
}
