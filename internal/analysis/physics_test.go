package analysis

import (
	"math"
	"testing"
)

const eps = 1e-9

func near(a, b float64) bool {
	return math.Abs(a-b) < eps
}

func TestOneMeterCopperWire(t *testing.T) {
	p := WireProperties{Length: 1, CrossSection: 0.5, Material: Copper}
	r := WireResistance(p)
	if !near(r, 0.0336) {
		t.Fatalf("resistance = %v, want 0.0336", r)
	}
	if d := VoltageDrop(1, r); !near(d, 0.0336) {
		t.Fatalf("drop = %v", d)
	}
	if d := Dissipation(1, r); !near(d, 0.0336) {
		t.Fatalf("dissipation = %v", d)
	}
}

func TestMalformedPropertiesStayFinite(t *testing.T) {
	cases := []WireProperties{
		{Length: 0, CrossSection: 0.5},
		{Length: -3, CrossSection: 0.5},
		{Length: math.NaN(), CrossSection: 0.5},
		{Length: 1, CrossSection: 0},
		{Length: math.Inf(1), CrossSection: -1},
		{Length: 1, CrossSection: 0.5, Material: "unobtainium"},
	}
	limit := WireResistance(WireProperties{Length: 1, CrossSection: DefaultCrossSection, Material: Aluminum})
	for _, p := range cases {
		r := WireResistance(p)
		if math.IsNaN(r) || math.IsInf(r, 0) || r < 0 || r > limit {
			t.Errorf("WireResistance(%+v) = %v", p, r)
		}
		i := Current(5, r, 0)
		if math.IsNaN(i) || math.IsInf(i, 0) {
			t.Errorf("Current through %+v = %v", p, i)
		}
	}
}

func TestZeroLengthUsesMinimum(t *testing.T) {
	r := WireResistance(WireProperties{CrossSection: 0.5})
	want := 1.68e-8 * MinLength / 0.5e-6
	if !near(r, want) {
		t.Fatalf("resistance = %v, want %v", r, want)
	}
}

func TestResistivityFallback(t *testing.T) {
	if Resistivity("Silver") != 1.59e-8 {
		t.Error("case-insensitive lookup failed")
	}
	if Resistivity("gold") != Resistivity(Copper) {
		t.Error("unknown material should fall back to copper")
	}
}

func TestCurrent(t *testing.T) {
	if i := Current(5, 0.0336, 219.9664); !near(i, 5.0/220) {
		t.Errorf("Current = %v", i)
	}
	if i := Current(5, 0, 0); i != 0 {
		t.Errorf("zero resistance current = %v", i)
	}
}

func TestInterpretation(t *testing.T) {
	if DigitalLevel(2.0) || !DigitalLevel(2.01) {
		t.Error("threshold is strictly above 2V")
	}
	for v, want := range map[float64]int{0: 0, 2.5: 512, 5: 1023, 7: 1023, -1: 0} {
		if got := ADCValue(v); got != want {
			t.Errorf("ADCValue(%v) = %d, want %d", v, got, want)
		}
	}
	if !near(PWMAverage(5, 0.25), 1.25) {
		t.Error("PWMAverage")
	}
}

func TestSimulateResistor(t *testing.T) {
	r := SimulateResistor(220, 5, 0.02, 25)
	if !near(r.OutputVoltage, 0.6) {
		t.Errorf("output = %v", r.OutputVoltage)
	}
	if !near(r.PowerDissipation, 0.088) {
		t.Errorf("dissipation = %v", r.PowerDissipation)
	}
	if !near(r.Temperature, 25+0.088*50) {
		t.Errorf("temperature = %v", r.Temperature)
	}
}
