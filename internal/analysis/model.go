package analysis

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/KevinKickass/OpenCircuitCore/internal/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrUnknownComponent = errors.New("unknown component")
	ErrUnknownPin       = errors.New("unknown pin")
	ErrWireAttached     = errors.New("wire already attached")
	ErrWireNotAttached  = errors.New("wire not attached")
)

type EventType string

const (
	EventConnection      EventType = "connection"
	EventDisconnection   EventType = "disconnection"
	EventSignalChange    EventType = "signal_change"
	EventOvercurrent     EventType = "overcurrent"
	EventOvervoltage     EventType = "overvoltage"
	EventOvertemperature EventType = "overtemperature"
)

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Event is one entry of the model's bounded event log.
type Event struct {
	ID          uuid.UUID      `json:"id"`
	Timestamp   time.Time      `json:"timestamp"`
	Type        EventType      `json:"type"`
	ComponentID string         `json:"component_id"`
	PinID       string         `json:"pin_id,omitempty"`
	WireID      types.WireID   `json:"wire_id,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
	Severity    Severity       `json:"severity"`
}

// MonitorData is the real-time summary refreshed by every analysis pass.
type MonitorData struct {
	TotalCurrent float64 `json:"total_current"`
	TotalPower   float64 `json:"total_power"`
	Efficiency   float64 `json:"efficiency"`
	Temperature  float64 `json:"temperature"`
}

// DefaultEventLogSize bounds the event log when no size is given.
const DefaultEventLogSize = 1000

// signalChangeVoltage is the smallest source voltage change logged.
const signalChangeVoltage = 0.01

// Model is the stricter electrical tier of a circuit: wires are only
// attached when both pin classes are compatible.
type Model struct {
	logger     *zap.Logger
	thresholds Thresholds
	logSize    int

	mu         sync.RWMutex
	components map[string]Component
	wires      map[types.WireID]Wire
	events     []Event
	monitor    MonitorData
	last       *Snapshot
}

func NewModel(thresholds Thresholds, logSize int, logger *zap.Logger) *Model {
	if logSize <= 0 {
		logSize = DefaultEventLogSize
	}
	return &Model{
		logger:     logger,
		thresholds: thresholds,
		logSize:    logSize,
		components: make(map[string]Component),
		wires:      make(map[types.WireID]Wire),
		monitor:    MonitorData{Temperature: 25},
	}
}

func (m *Model) Thresholds() Thresholds {
	return m.thresholds
}

// AddComponent registers or replaces a component.
func (m *Model) AddComponent(c Component) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components[c.ID] = c
	m.emit(Event{
		Type:        EventConnection,
		ComponentID: c.ID,
		Data:        map[string]any{"action": "component_added", "kind": string(c.Kind)},
		Severity:    SeverityInfo,
	})
}

// RemoveComponent detaches every wire of the component, then removes it.
func (m *Model) RemoveComponent(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.components[id]; !ok {
		return false
	}
	for wid, w := range m.wires {
		if w.Touches(id) {
			m.detach(wid, w)
		}
	}
	delete(m.components, id)
	m.emit(Event{
		Type:        EventDisconnection,
		ComponentID: id,
		Data:        map[string]any{"action": "component_removed"},
		Severity:    SeverityInfo,
	})
	return true
}

// Attach adds a wire after checking that both pins exist and that their
// classes are compatible. A rejected wire is not stored.
func (m *Model) Attach(w Wire) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.wires[w.ID]; ok {
		return fmt.Errorf("%w: %s", ErrWireAttached, w.ID)
	}
	from, err := lookupPin(m.components, w.From)
	if err != nil {
		return err
	}
	to, err := lookupPin(m.components, w.To)
	if err != nil {
		return err
	}
	if err := CheckCompatible(from.ClassFor(w.Signal), to.ClassFor(w.Signal)); err != nil {
		return fmt.Errorf("wire %s (%s -> %s): %w", w.ID, w.From, w.To, err)
	}

	m.wires[w.ID] = w
	m.emit(Event{
		Type:        EventConnection,
		ComponentID: w.From.ComponentID,
		WireID:      w.ID,
		Data:        map[string]any{"action": "wire_added", "signal": string(w.Signal)},
		Severity:    SeverityInfo,
	})
	return nil
}

// Detach removes a wire.
func (m *Model) Detach(id types.WireID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wires[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrWireNotAttached, id)
	}
	m.detach(id, w)
	return nil
}

func (m *Model) detach(id types.WireID, w Wire) {
	delete(m.wires, id)
	m.emit(Event{
		Type:        EventDisconnection,
		ComponentID: w.From.ComponentID,
		WireID:      id,
		Data:        map[string]any{"action": "wire_removed"},
		Severity:    SeverityInfo,
	})
}

// SetSource updates the source voltage of an attached wire. Changes above
// 10 mV are logged as signal changes.
func (m *Model) SetSource(id types.WireID, voltage float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wires[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrWireNotAttached, id)
	}
	if math.Abs(w.Voltage-voltage) > signalChangeVoltage {
		m.emit(Event{
			Type:        EventSignalChange,
			ComponentID: w.From.ComponentID,
			WireID:      id,
			Data:        map[string]any{"old_voltage": w.Voltage, "new_voltage": voltage},
			Severity:    SeverityInfo,
		})
	}
	w.Voltage = voltage
	m.wires[id] = w
	return nil
}

// Components returns the registered components ordered by id.
func (m *Model) Components() []Component {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Component, 0, len(m.components))
	for _, c := range m.components {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Wires returns the attached wires ordered by id.
func (m *Model) Wires() []Wire {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sortedWires()
}

func (m *Model) sortedWires() []Wire {
	out := make([]Wire, 0, len(m.wires))
	for _, w := range m.wires {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Analyze runs one pass over the model, refreshes the monitor data and logs
// threshold alerts.
func (m *Model) Analyze() Snapshot {
	comps := m.Components()
	wires := m.Wires()
	snap := Analyze(comps, wires, m.thresholds)

	m.mu.Lock()
	defer m.mu.Unlock()

	maxTemp := 25.0
	for _, temp := range snap.Temperatures {
		maxTemp = max(maxTemp, temp)
	}
	m.monitor = MonitorData{
		TotalCurrent: snap.TotalCurrent(),
		TotalPower:   snap.TotalPowerConsumption,
		Efficiency:   snap.Efficiency,
		Temperature:  maxTemp,
	}

	for _, w := range wires {
		if i, ok := snap.CurrentByWire[w.ID]; ok && i > m.thresholds.Overcurrent {
			m.emit(Event{
				Type:        EventOvercurrent,
				ComponentID: "monitor",
				WireID:      w.ID,
				Data:        map[string]any{"current": i, "threshold": m.thresholds.Overcurrent},
				Severity:    SeverityWarning,
			})
		}
		if w.Voltage > m.thresholds.Overvoltage {
			m.emit(Event{
				Type:        EventOvervoltage,
				ComponentID: w.From.ComponentID,
				WireID:      w.ID,
				Data:        map[string]any{"voltage": w.Voltage, "threshold": m.thresholds.Overvoltage},
				Severity:    SeverityWarning,
			})
		}
	}
	for _, c := range comps {
		if temp := snap.Temperatures[c.ID]; temp > m.thresholds.Temperature {
			m.emit(Event{
				Type:        EventOvertemperature,
				ComponentID: c.ID,
				Data:        map[string]any{"temperature": temp, "threshold": m.thresholds.Temperature},
				Severity:    SeverityWarning,
			})
		}
	}

	if len(snap.Errors) > 0 {
		m.logger.Warn("Circuit analysis reported errors", zap.Strings("errors", snap.Errors))
	}
	m.last = &snap
	return snap
}

// Last returns the most recent snapshot.
func (m *Model) Last() (Snapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.last == nil {
		return Snapshot{}, false
	}
	return *m.last, true
}

func (m *Model) Monitor() MonitorData {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.monitor
}

// Events returns a copy of the event log, oldest first.
func (m *Model) Events() []Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// Reset drops every component, wire and event.
func (m *Model) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.components)
	clear(m.wires)
	m.events = nil
	m.monitor = MonitorData{Temperature: 25}
	m.last = nil
}

// emit must be called with mu held.
func (m *Model) emit(ev Event) {
	ev.ID = uuid.New()
	ev.Timestamp = time.Now()
	m.events = append(m.events, ev)
	if over := len(m.events) - m.logSize; over > 0 {
		m.events = append(m.events[:0:0], m.events[over:]...)
	}
	if ev.Severity != SeverityInfo {
		m.logger.Warn("Electrical alert",
			zap.String("type", string(ev.Type)),
			zap.String("component_id", ev.ComponentID),
			zap.Stringer("wire_id", ev.WireID))
	}
}
