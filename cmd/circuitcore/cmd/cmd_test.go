package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KevinKickass/OpenCircuitCore/internal/circuit"
	"github.com/KevinKickass/OpenCircuitCore/internal/config"
	"github.com/KevinKickass/OpenCircuitCore/internal/simulation"
	"go.uber.org/zap/zaptest"
	"gopkg.in/yaml.v3"
)

const blinkYAML = `
name: blink
board: uno
components:
  - id: led-1
    kind: led
wires:
  - from: {component: board, pin: "13"}
    to: {component: led-1, pin: A}
  - from: {component: board, pin: GND}
    to: {component: led-1, pin: C}
`

func testSession(t *testing.T) *simulation.Session {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "blink.yaml"), []byte(blinkYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg.Circuits.SearchPaths = []string{dir}

	session, err := openSession(cfg, "blink", zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(session.Close)
	return session
}

func TestResolveCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"resolve", "D13", "A4", "GND", "--board", "uno"})
	defer rootCmd.SetArgs(nil)

	if err := rootCmd.Execute(); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("output:\n%s", out.String())
	}
	if !strings.Contains(lines[0], "PORTB5") || !strings.Contains(lines[0], "pin 13") {
		t.Errorf("D13 line = %q", lines[0])
	}
	if !strings.Contains(lines[1], "PORTC4") || !strings.Contains(lines[1], "SDA") {
		t.Errorf("A4 line = %q", lines[1])
	}
	if !strings.Contains(lines[2], "not connected") {
		t.Errorf("GND line = %q", lines[2])
	}
}

func TestReplay(t *testing.T) {
	session := testSession(t)
	trace, err := circuit.ParseTrace([]byte(`
name: on-off
steps:
  - action: write
    port: B
    value: 32
  - action: set
    pin: "13"
    high: true
`))
	if err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := replay(context.Background(), &out, session, trace); err != nil {
		t.Fatal(err)
	}
	text := out.String()
	for _, want := range []string{
		"trace on-off: 2 steps",
		"step 0: write PORTB=0x20",
		"wire-1 high forward",
		"step 1: set 13 high=true",
		"led-1 on",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
}

func TestAnalysisReport(t *testing.T) {
	session := testSession(t)
	report := newAnalysisReport("blink", session.Analyze())
	if report.Circuit != "blink" || len(report.Wires) == 0 {
		t.Fatalf("report = %+v", report)
	}
	for i := 1; i < len(report.Wires); i++ {
		if report.Wires[i-1].ID > report.Wires[i].ID {
			t.Fatalf("wires not sorted: %+v", report.Wires)
		}
	}

	var out bytes.Buffer
	if err := writeReport(&out, report); err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := yaml.Unmarshal(out.Bytes(), &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["circuit"] != "blink" {
		t.Fatalf("decoded = %v", decoded)
	}
	if _, ok := decoded["wires"].([]any); !ok {
		t.Fatalf("wires = %T", decoded["wires"])
	}
}
