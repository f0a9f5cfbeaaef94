package signal

import (
	"math"
	"sync"
	"testing"

	"github.com/KevinKickass/OpenCircuitCore/internal/pins"
	"github.com/KevinKickass/OpenCircuitCore/internal/ports"
	"github.com/KevinKickass/OpenCircuitCore/internal/types"
	"github.com/KevinKickass/OpenCircuitCore/internal/wiring"
	"go.uber.org/zap/zaptest"
)

func pin(component, name string) types.PinIdentifier {
	return types.PinIdentifier{ComponentID: component, PinName: name}
}

func boardWire(id types.WireID, label, peer string, signal types.SignalClass) types.Wire {
	return types.Wire{ID: id, From: pin("board", label), To: pin("led-1", peer), Signal: signal}
}

func newEngine() *Engine {
	return NewEngine(pins.NewTable(pins.VariantUno))
}

func TestOnPortChangedSilentSkip(t *testing.T) {
	e := newEngine()
	e.Rebuild([]types.Wire{
		boardWire(1, "13", "A", types.SignalDigital),
		boardWire(2, "GND", "C", types.SignalGround),
	})

	if got := e.OnPortChanged(types.PortD, 0xff); len(got) != 0 {
		t.Fatalf("PortD produced updates %v", got)
	}
	if got := e.OnPortChanged(types.Port(7), 0xff); len(got) != 0 {
		t.Fatalf("invalid port produced updates %v", got)
	}
	if s := e.State(2); s != types.FloatingState(2) {
		t.Fatalf("unaddressed wire changed: %+v", s)
	}
}

func TestOnPortChangedUnrelatedBits(t *testing.T) {
	e := newEngine()
	e.Rebuild([]types.Wire{boardWire(1, "D13", "A", types.SignalDigital)})

	if got := e.OnPortChanged(types.PortB, 0x20); len(got) != 1 || got[0] != 1 {
		t.Fatalf("bit 5 high: %v", got)
	}
	// Other bits of PORTB toggle; bit 5 stays high.
	if got := e.OnPortChanged(types.PortB, 0x3f); len(got) != 0 {
		t.Fatalf("unrelated bits produced %v", got)
	}
	if got := e.OnPortChanged(types.PortB, 0x1f); len(got) != 1 {
		t.Fatalf("bit 5 low: %v", got)
	}
	s := e.State(1)
	if s.Logical != types.LogicalLow || s.Direction != types.DirectionReverse {
		t.Fatalf("state = %+v", s)
	}
}

func TestToleranceSuppression(t *testing.T) {
	e := newEngine()
	e.Rebuild([]types.Wire{boardWire(1, "13", "A", types.SignalDigital)})

	var events []types.WireRuntimeState
	e.Subscribe(func(s types.WireRuntimeState) { events = append(events, s) })

	e.OnPortChanged(types.PortB, 0x20)
	e.OnPortChanged(types.PortB, 0x20)
	e.OnPortChanged(types.PortB, 0x21)

	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
}

func TestSignificant(t *testing.T) {
	base := types.WireRuntimeState{ID: 1, Logical: types.LogicalHigh, Direction: types.DirectionForward, Magnitude: 0.5}
	cases := []struct {
		name string
		next types.WireRuntimeState
		want bool
	}{
		{"same", base, false},
		{"small delta", types.WireRuntimeState{ID: 1, Logical: types.LogicalHigh, Direction: types.DirectionForward, Magnitude: 0.51}, false},
		{"large delta", types.WireRuntimeState{ID: 1, Logical: types.LogicalHigh, Direction: types.DirectionForward, Magnitude: 0.6}, true},
		{"logical", types.WireRuntimeState{ID: 1, Logical: types.LogicalLow, Direction: types.DirectionForward, Magnitude: 0.5}, true},
		{"direction", types.WireRuntimeState{ID: 1, Logical: types.LogicalHigh, Direction: types.DirectionReverse, Magnitude: 0.5}, true},
	}
	for _, tc := range cases {
		if got := Significant(base, tc.next); got != tc.want {
			t.Errorf("%s: Significant = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestGroundWire(t *testing.T) {
	e := newEngine()
	// A ground-class wire on an addressable board pin, board as source.
	e.Rebuild([]types.Wire{boardWire(1, "12", "C", types.SignalGround)})

	e.OnPortChanged(types.PortB, 0x00)
	low := e.State(1)
	want := types.WireRuntimeState{ID: 1, Logical: types.LogicalLow, Direction: types.DirectionReverse, Magnitude: 0.9}
	if low != want {
		t.Fatalf("low = %+v, want %+v", low, want)
	}

	e.OnPortChanged(types.PortB, 0x10)
	high := e.State(1)
	if high.Logical != types.LogicalHigh || high.Direction != types.DirectionReverse {
		t.Fatalf("high = %+v", high)
	}
	if math.Abs(high.Magnitude-0.45) > 1e-9 {
		t.Fatalf("high magnitude = %v, want 0.45", high.Magnitude)
	}
}

func TestDirection(t *testing.T) {
	cases := []struct {
		signal        types.SignalClass
		boardIsSource bool
		logical       types.WireLogicalState
		want          types.Direction
	}{
		{types.SignalDigital, true, types.LogicalFloating, types.DirectionNone},
		{types.SignalDigital, true, types.LogicalHigh, types.DirectionForward},
		{types.SignalDigital, true, types.LogicalLow, types.DirectionReverse},
		{types.SignalDigital, false, types.LogicalHigh, types.DirectionReverse},
		{types.SignalDigital, false, types.LogicalLow, types.DirectionForward},
		{types.SignalAnalog, true, types.LogicalLow, types.DirectionBidirectional},
		{types.SignalGround, true, types.LogicalHigh, types.DirectionReverse},
		{types.SignalGround, false, types.LogicalHigh, types.DirectionForward},
	}
	for _, tc := range cases {
		if got := Direction(tc.signal, tc.boardIsSource, tc.logical); got != tc.want {
			t.Errorf("Direction(%s, %v, %s) = %s, want %s", tc.signal, tc.boardIsSource, tc.logical, got, tc.want)
		}
	}
}

func TestMagnitude(t *testing.T) {
	cases := []struct {
		signal  types.SignalClass
		logical types.WireLogicalState
		want    float64
	}{
		{types.SignalPower, types.LogicalHigh, 1},
		{types.SignalDigital, types.LogicalHigh, 0.7},
		{types.SignalDigital, types.LogicalLow, 0.7 * 0.35},
		{types.SignalAnalog, types.LogicalLow, 0.75},
		{types.SignalPWM, types.LogicalLow, 0.85 * 0.35},
		{types.SignalSerial, types.LogicalFloating, 0},
		{types.SignalUnset, types.LogicalHigh, 0.6},
	}
	for _, tc := range cases {
		if got := Magnitude(tc.signal, tc.logical); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("Magnitude(%s, %s) = %v, want %v", tc.signal, tc.logical, got, tc.want)
		}
	}
}

func TestFanOutAndDelete(t *testing.T) {
	n := wiring.NewNetwork(pins.NewTable(pins.VariantUno), zaptest.NewLogger(t))
	e := newEngine()
	e.Attach(n)

	a, _ := n.Create(wiring.Draft{From: pin("board", "13"), To: pin("led-1", "A")})
	b, _ := n.Create(wiring.Draft{From: pin("led-2", "A"), To: pin("board", "D13")})

	got := e.OnPortChanged(types.PortB, 0x20)
	if len(got) != 2 {
		t.Fatalf("fan-out updated %v", got)
	}

	if err := n.Delete(a.ID); err != nil {
		t.Fatal(err)
	}
	got = e.OnPortChanged(types.PortB, 0x00)
	if len(got) != 1 || got[0] != b.ID {
		t.Fatalf("after delete updated %v", got)
	}
	if s := e.State(a.ID); s != types.FloatingState(a.ID) {
		t.Fatalf("deleted wire kept state %+v", s)
	}
	if s := e.State(b.ID); s.Logical != types.LogicalLow {
		t.Fatalf("surviving wire = %+v", s)
	}
}

func TestRebuildResetsChangedLinks(t *testing.T) {
	e := newEngine()
	e.Rebuild([]types.Wire{
		boardWire(1, "13", "A", types.SignalDigital),
		boardWire(2, "12", "A", types.SignalDigital),
	})
	e.OnPortChanged(types.PortB, 0x30)

	// Wire 1 moves to pin 11; wire 2 is untouched.
	e.Rebuild([]types.Wire{
		boardWire(1, "11", "A", types.SignalDigital),
		boardWire(2, "12", "A", types.SignalDigital),
	})
	if s := e.State(1); s != types.FloatingState(1) {
		t.Errorf("moved wire kept state %+v", s)
	}
	if s := e.State(2); s.Logical != types.LogicalHigh {
		t.Errorf("untouched wire lost state %+v", s)
	}
	if labels := e.Labels(); len(labels) != 2 || labels[0] != "11" {
		t.Errorf("Labels() = %v", labels)
	}
}

func TestResetAndStates(t *testing.T) {
	e := newEngine()
	e.Rebuild([]types.Wire{
		boardWire(2, "13", "A", types.SignalDigital),
		{ID: 1, From: pin("led-1", "C"), To: pin("res-1", "1"), Signal: types.SignalDigital},
	})
	e.OnPortChanged(types.PortB, 0x20)

	states := e.States()
	if len(states) != 2 || states[0].ID != 1 || states[1].Logical != types.LogicalHigh {
		t.Fatalf("States() = %+v", states)
	}

	e.Reset()
	for _, s := range e.States() {
		if s != types.FloatingState(s.ID) {
			t.Fatalf("after Reset: %+v", s)
		}
	}
}

func TestBindToBank(t *testing.T) {
	bank := ports.NewBank()
	e := newEngine()
	e.Rebuild([]types.Wire{boardWire(1, "A0", "SIG", types.SignalAnalog)})

	tokens, err := e.Bind(bank)
	if err != nil {
		t.Fatal(err)
	}
	bank.SetPin(types.PortC, 0, true)
	if s := e.State(1); s.Direction != types.DirectionBidirectional {
		t.Fatalf("state = %+v", s)
	}

	e.Unbind(bank, tokens)
	if bank.Listeners() != 0 {
		t.Fatalf("listeners left: %d", bank.Listeners())
	}
}

func TestConcurrentPortChangesPublishLatestState(t *testing.T) {
	e := newEngine()
	e.Rebuild([]types.Wire{
		boardWire(1, "13", "A", types.SignalDigital),
		boardWire(2, "8", "A", types.SignalDigital),
	})

	var mu sync.Mutex
	last := map[types.WireID]types.WireRuntimeState{}
	e.Subscribe(func(s types.WireRuntimeState) {
		mu.Lock()
		last[s.ID] = s
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				e.OnPortChanged(types.PortB, uint8(g+i)*0x21)
			}
		}(g)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	for _, id := range []types.WireID{1, 2} {
		got, ok := last[id]
		if !ok {
			t.Fatalf("wire %d never published", id)
		}
		if want := e.State(id); got != want {
			t.Errorf("wire %d: last published %+v, engine holds %+v", id, got, want)
		}
	}
}
