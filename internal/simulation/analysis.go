package simulation

import (
	"github.com/KevinKickass/OpenCircuitCore/internal/analysis"
	"github.com/KevinKickass/OpenCircuitCore/internal/components"
	"github.com/KevinKickass/OpenCircuitCore/internal/types"
	"go.uber.org/zap"
)

// Analyze reconciles the electrical model with the circuit, drives every
// wire's source voltage from its runtime state and runs one pass.
func (s *Session) Analyze() analysis.Snapshot {
	s.syncModel()
	for _, w := range s.model.Wires() {
		if err := s.model.SetSource(w.ID, s.sourceVoltage(w.Wire)); err != nil {
			s.logger.Debug("Failed to set source voltage", zap.Stringer("wire_id", w.ID), zap.Error(err))
		}
	}
	snap := s.model.Analyze()
	s.snapshotSubs.Publish(snap)
	return snap
}

// Netlist exports the reconciled electrical model.
func (s *Session) Netlist() string {
	s.syncModel()
	return s.model.Netlist()
}

// sourceVoltage maps a wire to the voltage at its source end: supply pins
// carry their rated voltage, ground carries none, and signal wires follow
// their logical level.
func (s *Session) sourceVoltage(w types.Wire) float64 {
	switch w.Signal {
	case types.SignalGround:
		return 0
	case types.SignalPower:
		if board, ok := w.BoardEndpoint(); ok {
			if p, ok := s.circuit.Board.Pin(board.PinName); ok && p.Role == components.RolePower {
				return p.MaxVoltage
			}
		}
		return s.opts.SupplyVoltage
	}
	if s.engine.State(w.ID).Logical == types.LogicalHigh {
		return s.opts.SupplyVoltage
	}
	return 0
}

// syncModel brings the electrical model in line with the circuit: missing
// components and wires are added, stale ones removed, edited wires
// re-attached. Wires the model rejects are logged once per revision.
func (s *Session) syncModel() {
	s.modelMu.Lock()
	defer s.modelMu.Unlock()

	want := map[string]analysis.Component{
		types.BoardComponentID: analysis.FromDescriptor(types.BoardComponentID, s.circuit.Board, components.AmbientTemperature),
	}
	for _, comp := range s.circuit.Components() {
		ec, err := analysis.FromComponent(comp)
		if err != nil {
			s.logger.Warn("Component excluded from electrical model",
				zap.String("component_id", comp.ID), zap.Error(err))
			continue
		}
		want[comp.ID] = ec
	}

	have := make(map[string]bool)
	for _, c := range s.model.Components() {
		if _, ok := want[c.ID]; !ok {
			s.model.RemoveComponent(c.ID)
			continue
		}
		have[c.ID] = true
	}
	for id, c := range want {
		if !have[id] {
			s.model.AddComponent(c)
		}
	}

	current := make(map[types.WireID]analysis.Wire)
	for _, w := range s.circuit.Network.Wires() {
		current[w.ID] = analysis.Wire{
			Wire:       s.circuit.Canonical(w),
			Properties: s.circuit.WireProperties(w, s.opts.WireDefaults),
		}
	}

	attached := make(map[types.WireID]bool)
	for _, mw := range s.model.Wires() {
		cw, ok := current[mw.ID]
		if ok && sameWire(mw, cw) {
			attached[mw.ID] = true
			continue
		}
		if err := s.model.Detach(mw.ID); err != nil {
			s.logger.Debug("Failed to detach wire", zap.Stringer("wire_id", mw.ID), zap.Error(err))
		}
	}
	for id := range s.excluded {
		if _, ok := current[id]; !ok {
			delete(s.excluded, id)
		}
	}

	for id, cw := range current {
		if attached[id] {
			continue
		}
		if rev, ok := s.excluded[id]; ok && rev.Equal(cw.Metadata.UpdatedAt) {
			continue
		}
		if err := s.model.Attach(cw); err != nil {
			s.excluded[id] = cw.Metadata.UpdatedAt
			s.logger.Warn("Wire excluded from electrical model",
				zap.Stringer("wire_id", id), zap.Error(err))
			continue
		}
		delete(s.excluded, id)
	}
}

func sameWire(a, b analysis.Wire) bool {
	return a.From == b.From && a.To == b.To && a.Signal == b.Signal &&
		a.Metadata.UpdatedAt.Equal(b.Metadata.UpdatedAt) &&
		a.Properties == b.Properties
}
