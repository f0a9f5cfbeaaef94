package connector

import (
	"testing"

	"github.com/KevinKickass/OpenCircuitCore/internal/components"
	"github.com/KevinKickass/OpenCircuitCore/internal/pins"
	"github.com/KevinKickass/OpenCircuitCore/internal/ports"
	"github.com/KevinKickass/OpenCircuitCore/internal/types"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

var pb5 = types.PinAddress{Port: types.PortB, Bit: 5}

func pin(component, name string) types.PinIdentifier {
	return types.PinIdentifier{ComponentID: component, PinName: name}
}

func recordLED(led *components.LED) *[]bool {
	var seen []bool
	led.Subscribe(func(on bool) { seen = append(seen, on) })
	return &seen
}

func TestLEDToggleFollowsAnode(t *testing.T) {
	bank := ports.NewBank()
	c := New(bank, zaptest.NewLogger(t))
	led := components.NewLED("led-1")
	seen := recordLED(led)

	// Anode on pin 13, cathode on GND (unaddressed).
	if err := c.Bind(led, Mapping{"A": pb5}); err != nil {
		t.Fatal(err)
	}

	bank.Write(types.PortB, 0x20)
	if !led.Lit() {
		t.Fatal("LED should be lit")
	}
	// Unrelated bits in the same byte.
	bank.Write(types.PortB, 0x2f)
	bank.Write(types.PortB, 0x21)
	bank.Write(types.PortB, 0x01)
	if led.Lit() {
		t.Fatal("LED should be off")
	}

	if len(*seen) != 2 || !(*seen)[0] || (*seen)[1] {
		t.Fatalf("indicated values = %v, want [true false]", *seen)
	}
}

func TestLEDAnodeAndCathode(t *testing.T) {
	bank := ports.NewBank()
	c := New(bank, zaptest.NewLogger(t))
	led := components.NewLED("led-1")

	anode := types.PinAddress{Port: types.PortB, Bit: 4}
	cathode := types.PinAddress{Port: types.PortD, Bit: 7}
	c.Bind(led, Mapping{"A": anode, "C": cathode})

	bank.SetPin(types.PortB, 4, true)
	if !led.Lit() {
		t.Fatal("anode high, cathode low: want lit")
	}
	bank.SetPin(types.PortD, 7, true)
	if led.Lit() {
		t.Fatal("cathode high: want off")
	}
}

func TestLEDInitialStateDelivered(t *testing.T) {
	bank := ports.NewBank()
	c := New(bank, zaptest.NewLogger(t))
	led := components.NewLED("led-1")

	// Anode to 5V, cathode low on a GPIO pin.
	c.Bind(led, Mapping{"C": pb5})
	if !led.Lit() {
		t.Fatal("cathode low with anode tied high: want lit")
	}
}

func TestUnbindTeardownCompleteness(t *testing.T) {
	bank := ports.NewBank()
	c := New(bank, zaptest.NewLogger(t))
	led := components.NewLED("led-1")
	seen := recordLED(led)

	c.Bind(led, Mapping{"A": pb5})
	c.Unbind("led-1")
	c.Unbind("led-1")

	bank.Write(types.PortB, 0x20)
	if len(*seen) != 0 || led.Lit() {
		t.Fatalf("unbound LED changed: %v", *seen)
	}
	if bank.Listeners() != 0 || c.Listeners() != 0 {
		t.Fatalf("listeners left: bank %d, connector %d", bank.Listeners(), c.Listeners())
	}
}

func TestRebindDoesNotAccumulate(t *testing.T) {
	bank := ports.NewBank()
	c := New(bank, zaptest.NewLogger(t))
	led := components.NewLED("led-1")
	seen := recordLED(led)

	for i := 0; i < 5; i++ {
		c.Bind(led, Mapping{"A": pb5})
	}
	if bank.Listeners() != 1 {
		t.Fatalf("bank listeners = %d, want 1", bank.Listeners())
	}

	bank.Write(types.PortB, 0x20)
	if len(*seen) != 1 {
		t.Fatalf("indicated %d times, want 1", len(*seen))
	}
}

func TestPushButtonActiveLow(t *testing.T) {
	bank := ports.NewBank()
	c := New(bank, zaptest.NewLogger(t))
	btn := components.NewPushButton("btn-1")
	pd2 := types.PinAddress{Port: types.PortD, Bit: 2}

	c.Bind(btn, Mapping{"2.l": pd2, "1.l": {Port: types.PortD, Bit: 3}})
	if bank.Value(types.PortD) != 0x04 {
		t.Fatalf("idle = %#x, want pull-up on bit 2 only", bank.Value(types.PortD))
	}

	btn.Press()
	if bank.Value(types.PortD)&0x04 != 0 {
		t.Fatal("press should force bit low")
	}
	btn.Release()
	if bank.Value(types.PortD)&0x04 == 0 {
		t.Fatal("release should restore bit high")
	}
	btn.Release()
	if bank.Value(types.PortD) != 0x04 {
		t.Fatal("release must not toggle")
	}

	c.Unbind("btn-1")
	btn.Press()
	if bank.Value(types.PortD)&0x04 == 0 {
		t.Fatal("unbound button still drives the pin")
	}
}

func TestSyncUnbindsRemoved(t *testing.T) {
	bank := ports.NewBank()
	c := New(bank, zaptest.NewLogger(t))
	led1 := components.NewLED("led-1")
	led2 := components.NewLED("led-2")
	table := pins.NewTable(pins.VariantUno)

	wires := []types.Wire{
		{ID: 1, From: pin("board", "13"), To: pin("led-1", "A")},
		{ID: 2, From: pin("board", "12"), To: pin("led-2", "A")},
		{ID: 3, From: pin("board", "GND"), To: pin("led-2", "C")},
	}
	live := []components.Live{led1, led2}
	if err := c.Sync(live, MappingsFromWires(wires, table)); err != nil {
		t.Fatal(err)
	}
	if got := c.Bound(); len(got) != 2 {
		t.Fatalf("Bound() = %v", got)
	}

	if err := c.Sync(live, MappingsFromWires(wires[1:], table)); err != nil {
		t.Fatal(err)
	}
	if got := c.Bound(); len(got) != 1 || got[0] != "led-2" {
		t.Fatalf("Bound() = %v", got)
	}

	c.UnbindAll()
	if bank.Listeners() != 0 {
		t.Fatalf("listeners after UnbindAll: %d", bank.Listeners())
	}
}

func TestSyncKeepsUnchangedBindings(t *testing.T) {
	bank := ports.NewBank()
	c := New(bank, zaptest.NewLogger(t))
	led := components.NewLED("led-1")
	table := pins.NewTable(pins.VariantUno)
	live := []components.Live{led}

	wires := []types.Wire{{ID: 1, From: pin("board", "13"), To: pin("led-1", "A")}}
	if err := c.Sync(live, MappingsFromWires(wires, table)); err != nil {
		t.Fatal(err)
	}
	before := c.bindings["led-1"]
	listeners := bank.Listeners()

	if err := c.Sync(live, MappingsFromWires(wires, table)); err != nil {
		t.Fatal(err)
	}
	if c.bindings["led-1"] != before || bank.Listeners() != listeners {
		t.Fatal("unchanged mapping was rebound")
	}

	moved := []types.Wire{{ID: 1, From: pin("board", "12"), To: pin("led-1", "A")}}
	if err := c.Sync(live, MappingsFromWires(moved, table)); err != nil {
		t.Fatal(err)
	}
	if c.bindings["led-1"] == before || bank.Listeners() != listeners {
		t.Fatalf("moved wire: rebound = %v, listeners = %d", c.bindings["led-1"] != before, bank.Listeners())
	}
	bank.Write(types.PortB, 1<<4)
	if !led.Lit() {
		t.Fatal("LED does not follow the new pin")
	}
}

func TestMappingsFromWires(t *testing.T) {
	table := pins.NewTable(pins.VariantUno)
	wires := []types.Wire{
		{ID: 1, From: pin("board", "D13"), To: pin("led-1", "A")},
		{ID: 2, From: pin("board", "GND"), To: pin("led-1", "C")},
		{ID: 3, From: pin("led-1", "C"), To: pin("r-1", "1")},
		{ID: 4, From: pin("board", "A0"), To: pin("pot-1", "SIG")},
	}
	m := MappingsFromWires(wires, table)
	if len(m) != 2 {
		t.Fatalf("mappings = %v", m)
	}
	if m["led-1"]["A"] != pb5 || len(m["led-1"]) != 1 {
		t.Fatalf("led-1 = %v", m["led-1"])
	}
	if m["pot-1"]["SIG"] != (types.PinAddress{Port: types.PortC, Bit: 0}) {
		t.Fatalf("pot-1 = %v", m["pot-1"])
	}
}

func TestBoardLED(t *testing.T) {
	bank := ports.NewBank()
	core, logs := observer.New(zap.DebugLevel)
	c := New(bank, zap.New(core))
	led := components.NewBoardLED()

	if err := c.Bind(led, BoardLEDMapping(pins.NewTable(pins.VariantNano))); err != nil {
		t.Fatal(err)
	}
	bank.SetPin(types.PortB, 5, true)
	if !led.Lit() {
		t.Fatal("board LED should follow pin 13")
	}
	if logs.FilterMessage("Component bound").Len() != 1 {
		t.Fatal("expected one bind log entry")
	}
}
