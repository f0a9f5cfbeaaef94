package circuit

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/KevinKickass/OpenCircuitCore/internal/analysis"
	"github.com/KevinKickass/OpenCircuitCore/internal/components"
	"github.com/KevinKickass/OpenCircuitCore/internal/pins"
	"github.com/KevinKickass/OpenCircuitCore/internal/types"
	"github.com/KevinKickass/OpenCircuitCore/internal/wiring"
	"go.uber.org/zap/zaptest"
)

const blinkYAML = `
name: blink
board: arduino-uno
components:
  - id: led-1
    kind: led
    color: red
  - id: r-1
    kind: resistor
    resistance: 220
  - id: sensor-1
    kind: potentiometer
wires:
  - from: {component: led-1, pin: A}
    to: {component: board, pin: D13}
    length: 0.15
  - from: {component: board, pin: GND}
    to: {component: led-1, pin: C}
    material: silver
  - from: {component: board, pin: A4}
    to: {component: sensor-1, pin: SIG}
    signal: analog
`

func newLoader(t *testing.T, files map[string]string) *Loader {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	l, err := NewLoader([]string{filepath.Join(dir, "missing"), dir})
	if err != nil {
		t.Fatal(err)
	}
	return l
}

func compose(t *testing.T, doc *Document) *Circuit {
	t.Helper()
	v, err := NewValidator()
	if err != nil {
		t.Fatal(err)
	}
	c, err := NewComposer(v, zaptest.NewLogger(t)).Compose(doc)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestLoaderSearchesExtensions(t *testing.T) {
	l := newLoader(t, map[string]string{"blink.yaml": blinkYAML})
	doc, err := l.Load("blink")
	if err != nil {
		t.Fatal(err)
	}
	if doc.Name != "blink" || len(doc.Components) != 3 || len(doc.Wires) != 3 {
		t.Fatalf("doc = %+v", doc)
	}
	if doc.Wires[0].Length == nil || *doc.Wires[0].Length != 0.15 {
		t.Fatalf("length not decoded: %+v", doc.Wires[0])
	}

	again, _ := l.Load("blink")
	if again != doc {
		t.Fatal("second Load should hit the cache")
	}
	l.ClearCache()
	if fresh, _ := l.Load("blink"); fresh == doc {
		t.Fatal("ClearCache did not drop the entry")
	}

	if _, err := l.Load("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load(nope) = %v", err)
	}
}

func TestLoaderAcceptsJSON(t *testing.T) {
	l := newLoader(t, map[string]string{"empty.json": `{"board": "nano", "components": []}`})
	doc, err := l.Load("empty")
	if err != nil {
		t.Fatal(err)
	}
	if doc.Board != "nano" {
		t.Fatalf("board = %q", doc.Board)
	}
}

func TestSchemaRejections(t *testing.T) {
	v, err := NewValidator()
	if err != nil {
		t.Fatal(err)
	}
	cases := map[string]string{
		"missing board":  `components: []`,
		"unknown board":  `board: due`,
		"unknown kind":   "board: uno\ncomponents:\n  - {id: s-1, kind: servo}",
		"board as part":  "board: uno\ncomponents:\n  - {id: board, kind: led}",
		"bad signal":     "board: uno\nwires:\n  - {from: {component: board, pin: '13'}, to: {component: led-1, pin: A}, signal: rf}",
		"missing pin":    "board: uno\nwires:\n  - {from: {component: board}, to: {component: led-1, pin: A}}",
		"extra field":    "board: uno\nrevision: 3",
		"not a document": `[1, 2]`,
	}
	for name, body := range cases {
		if err := v.Validate([]byte(body)); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
	if err := v.Validate([]byte(blinkYAML)); err != nil {
		t.Errorf("blink: %v", err)
	}
}

func TestComposeBlink(t *testing.T) {
	l := newLoader(t, map[string]string{"blink.yaml": blinkYAML})
	doc, err := l.Load("blink")
	if err != nil {
		t.Fatal(err)
	}
	c := compose(t, doc)

	if c.Variant != pins.VariantUno {
		t.Fatalf("variant = %s", c.Variant)
	}
	wires := c.Network.Wires()
	if len(wires) != 3 {
		t.Fatalf("wires = %d", len(wires))
	}
	if !wires[0].From.IsBoard() || wires[0].From.PinName != "D13" || wires[0].Signal != types.SignalDigital {
		t.Fatalf("wire 1 = %+v", wires[0])
	}
	if wires[1].Signal != types.SignalGround {
		t.Fatalf("wire 2 signal = %s", wires[1].Signal)
	}
	if wires[2].Signal != types.SignalAnalog {
		t.Fatalf("explicit signal lost: %s", wires[2].Signal)
	}

	defaults := analysis.WireProperties{Length: 0.1, CrossSection: 0.5, Material: analysis.Copper}
	p1 := c.WireProperties(wires[0], defaults)
	if p1.Length != 0.15 || p1.Material != analysis.Copper {
		t.Fatalf("wire 1 properties = %+v", p1)
	}
	p2 := c.WireProperties(wires[1], defaults)
	if p2.Length != 0.1 || p2.Material != analysis.Silver || p2.CrossSection != 0.5 {
		t.Fatalf("wire 2 properties = %+v", p2)
	}
}

func TestComposeAcceptsBoardAliases(t *testing.T) {
	c := compose(t, &Document{
		Board:      "uno",
		Components: []components.Component{{ID: "pot-1", Kind: components.KindPotentiometer}},
		Wires: []WireSpec{
			{From: types.PinIdentifier{ComponentID: "board", PinName: "SDA"}, To: types.PinIdentifier{ComponentID: "pot-1", PinName: "SIG"}},
			{From: types.PinIdentifier{ComponentID: "board", PinName: "tx0"}, To: types.PinIdentifier{ComponentID: "pot-1", PinName: "VCC"}},
		},
	})
	wires := c.Network.Wires()
	if wires[0].Signal != types.SignalSerial {
		t.Fatalf("SDA wire inferred %s, want serial", wires[0].Signal)
	}
	if len(wires) != 2 {
		t.Fatalf("wires = %v", wires)
	}
}

func TestComposeRejectsUnknownPins(t *testing.T) {
	v, _ := NewValidator()
	composer := NewComposer(v, zaptest.NewLogger(t))
	docs := []*Document{
		{Board: "uno", Wires: []WireSpec{{
			From: types.PinIdentifier{ComponentID: "board", PinName: "13"},
			To:   types.PinIdentifier{ComponentID: "led-9", PinName: "A"},
		}}},
		{Board: "uno",
			Components: []components.Component{{ID: "led-1", Kind: components.KindLED}},
			Wires: []WireSpec{{
				From: types.PinIdentifier{ComponentID: "board", PinName: "99"},
				To:   types.PinIdentifier{ComponentID: "led-1", PinName: "A"},
			}}},
		{Board: "uno", Components: []components.Component{
			{ID: "led-1", Kind: components.KindLED},
			{ID: "led-1", Kind: components.KindLED},
		}},
	}
	for i, doc := range docs {
		if _, err := composer.Compose(doc); err == nil {
			t.Errorf("doc %d: expected error", i)
		}
	}
}

func TestCircuitEditing(t *testing.T) {
	c := compose(t, &Document{Board: "uno"})

	if err := c.AddComponent(components.Component{ID: "led-1", Kind: components.KindLED}); err != nil {
		t.Fatal(err)
	}
	if err := c.AddComponent(components.Component{ID: "led-1", Kind: components.KindLED}); !errors.Is(err, ErrDuplicateComponent) {
		t.Fatalf("duplicate add = %v", err)
	}

	w, err := c.CreateWire(wiring.Draft{
		From: types.PinIdentifier{ComponentID: "board", PinName: "13"},
		To:   types.PinIdentifier{ComponentID: "led-1", PinName: "A"},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	bad := types.PinIdentifier{ComponentID: "led-1", PinName: "Q"}
	if _, err := c.UpdateWire(w.ID, wiring.Update{To: &bad}); !errors.Is(err, components.ErrUnknownPin) {
		t.Fatalf("update to unknown pin = %v", err)
	}

	if err := c.RemoveComponent("led-1"); !errors.Is(err, wiring.ErrComponentWired) {
		t.Fatalf("remove wired component = %v", err)
	}
	if err := c.DeleteWire(w.ID); err != nil {
		t.Fatal(err)
	}
	if err := c.RemoveComponent("led-1"); err != nil {
		t.Fatal(err)
	}
	if err := c.RemoveComponent("led-1"); !errors.Is(err, ErrUnknownComponent) {
		t.Fatalf("second remove = %v", err)
	}
}

func TestExportRoundTrip(t *testing.T) {
	l := newLoader(t, map[string]string{"blink.yaml": blinkYAML})
	doc, _ := l.Load("blink")
	c := compose(t, doc)

	exported := c.Export()
	if err := l.Validator().ValidateDocument(exported); err != nil {
		t.Fatalf("exported document invalid: %v", err)
	}
	again := compose(t, exported)
	a, b := c.Network.Wires(), again.Network.Wires()
	if len(a) != len(b) {
		t.Fatalf("wire count %d != %d", len(a), len(b))
	}
	for i := range a {
		if a[i].From != b[i].From || a[i].To != b[i].To || a[i].Signal != b[i].Signal || a[i].Color != b[i].Color {
			t.Errorf("wire %d: %+v != %+v", i, a[i], b[i])
		}
	}
}

func TestNextComponentID(t *testing.T) {
	existing := []string{"led-1", "led-3", "ledstrip-9", "pushbutton-2", "led-x"}
	if got := NextComponentID(components.KindLED, existing); got != "led-4" {
		t.Errorf("led: %s", got)
	}
	if got := NextComponentID(components.KindResistor, existing); got != "resistor-1" {
		t.Errorf("resistor: %s", got)
	}
}

func TestParseTrace(t *testing.T) {
	tr, err := ParseTrace([]byte(`
name: blink
steps:
  - {action: write, port: B, value: 0x20}
  - {action: set, pin: "2", high: false, delay: 10ms}
  - {action: press, component: btn-1}
  - {action: analyze}
`))
	if err != nil {
		t.Fatal(err)
	}
	if len(tr.Steps) != 4 || tr.Steps[0].Value != 0x20 || tr.Steps[1].Delay != 10*time.Millisecond {
		t.Fatalf("trace = %+v", tr)
	}

	for _, body := range []string{
		"steps:\n  - {action: write, port: Z}",
		"steps:\n  - {action: press}",
		"steps:\n  - {action: jump}",
	} {
		if _, err := ParseTrace([]byte(body)); err == nil || !strings.Contains(err.Error(), "step 0") {
			t.Errorf("ParseTrace(%q) = %v", body, err)
		}
	}
}
