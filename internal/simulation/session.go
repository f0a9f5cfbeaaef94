// Package simulation runs a composed circuit against the port bank: it owns
// the run lifecycle, keeps the adapters in sync with circuit edits and feeds
// the electrical model from the derived wire states.
package simulation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/KevinKickass/OpenCircuitCore/internal/analysis"
	"github.com/KevinKickass/OpenCircuitCore/internal/circuit"
	"github.com/KevinKickass/OpenCircuitCore/internal/components"
	"github.com/KevinKickass/OpenCircuitCore/internal/connector"
	"github.com/KevinKickass/OpenCircuitCore/internal/ports"
	"github.com/KevinKickass/OpenCircuitCore/internal/pubsub"
	"github.com/KevinKickass/OpenCircuitCore/internal/signal"
	"github.com/KevinKickass/OpenCircuitCore/internal/types"
	"github.com/KevinKickass/OpenCircuitCore/internal/wiring"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Options tune the electrical side of a session.
type Options struct {
	Thresholds    analysis.Thresholds
	WireDefaults  analysis.WireProperties
	SupplyVoltage float64
	EventLogSize  int
}

func DefaultOptions() Options {
	return Options{
		Thresholds: analysis.DefaultThresholds(),
		WireDefaults: analysis.WireProperties{
			Length:       0.1,
			CrossSection: analysis.DefaultCrossSection,
			Material:     analysis.Copper,
		},
		SupplyVoltage: 5,
		EventLogSize:  analysis.DefaultEventLogSize,
	}
}

// Session is one simulated board with its peripherals. The engine index
// follows the wire network for the whole lifetime of the session; adapters
// exist only while running.
type Session struct {
	logger  *zap.Logger
	opts    Options
	circuit *circuit.Circuit

	bank     *ports.Bank
	engine   *signal.Engine
	conn     *connector.Connector
	model    *analysis.Model
	boardLED *components.LED

	engineToken  pubsub.Token
	networkToken pubsub.Token

	mu         sync.RWMutex
	state      State
	runID      uuid.UUID
	startedAt  time.Time
	lastChange time.Time
	errMsg     string
	writes     int
	live       map[string]components.Live
	portTokens [types.PortCount]pubsub.Token

	// model bookkeeping, guarded by modelMu
	modelMu  sync.Mutex
	excluded map[types.WireID]time.Time

	statusSubs    pubsub.Registry[Status]
	snapshotSubs  pubsub.Registry[analysis.Snapshot]
	indicatorSubs pubsub.Registry[IndicatorChange]
}

// IndicatorChange reports an LED switching on or off.
type IndicatorChange struct {
	ComponentID string
	Lit         bool
}

func NewSession(c *circuit.Circuit, opts Options, logger *zap.Logger) *Session {
	bank := ports.NewBank()
	s := &Session{
		logger:     logger,
		opts:       opts,
		circuit:    c,
		bank:       bank,
		engine:     signal.NewEngine(c.Table),
		conn:       connector.New(bank, logger),
		model:      analysis.NewModel(opts.Thresholds, opts.EventLogSize, logger),
		boardLED:   components.NewBoardLED(),
		state:      StateIdle,
		lastChange: time.Now(),
		live:       make(map[string]components.Live),
		excluded:   make(map[types.WireID]time.Time),
	}
	// engine first: adapters resync against a fresh index
	s.engineToken = s.engine.Attach(c.Network)
	s.networkToken = c.Network.Subscribe(s.onNetworkChange)
	s.watchLED(s.boardLED)
	s.syncModel()
	return s
}

func (s *Session) Circuit() *circuit.Circuit       { return s.circuit }
func (s *Session) Bank() *ports.Bank               { return s.bank }
func (s *Session) Engine() *signal.Engine          { return s.engine }
func (s *Session) Model() *analysis.Model          { return s.model }
func (s *Session) Connector() *connector.Connector { return s.conn }
func (s *Session) BoardLED() *components.LED       { return s.boardLED }

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.statusLocked()
}

func (s *Session) statusLocked() Status {
	st := Status{
		State:           s.state,
		Circuit:         s.circuit.Name,
		Board:           string(s.circuit.Variant),
		PortWrites:      s.writes,
		BoundComponents: s.conn.Bound(),
		ErrorMessage:    s.errMsg,
		LastStateChange: s.lastChange,
	}
	if s.runID != uuid.Nil {
		st.RunID = s.runID.String()
	}
	if !s.startedAt.IsZero() {
		started := s.startedAt
		st.StartedAt = &started
	}
	return st
}

// ExecuteCommand dispatches a lifecycle command.
func (s *Session) ExecuteCommand(cmd Command) error {
	s.logger.Info("Simulation command received",
		zap.String("command", string(cmd)),
		zap.String("current_state", string(s.State())))

	switch cmd {
	case CommandStart:
		_, err := s.Start()
		return err
	case CommandStop:
		return s.Stop()
	case CommandReset:
		return s.Reset()
	default:
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

// Start binds the engine and every peripheral to the port bank and returns
// the id of the new run.
func (s *Session) Start() (uuid.UUID, error) {
	s.mu.Lock()
	if err := ValidateTransition(s.state, StateRunning); err != nil {
		s.mu.Unlock()
		return uuid.Nil, err
	}

	tokens, err := s.engine.Bind(s.bank)
	if err != nil {
		status := s.failLocked(err)
		s.mu.Unlock()
		s.statusSubs.Publish(status)
		return uuid.Nil, fmt.Errorf("failed to bind engine: %w", err)
	}
	s.portTokens = tokens

	s.live = make(map[string]components.Live)
	for _, comp := range s.circuit.Components() {
		s.live[comp.ID] = s.newLive(comp)
	}
	if err := s.syncLocked(); err != nil {
		s.teardownLocked()
		status := s.failLocked(err)
		s.mu.Unlock()
		s.statusSubs.Publish(status)
		return uuid.Nil, err
	}

	s.runID = uuid.New()
	s.startedAt = time.Now()
	s.writes = 0
	status := s.setStateLocked(StateRunning, "")
	runID := s.runID
	s.mu.Unlock()

	s.logger.Info("Simulation started",
		zap.String("run_id", runID.String()),
		zap.String("circuit", s.circuit.Name),
		zap.Strings("bound", status.BoundComponents))
	s.statusSubs.Publish(status)
	return runID, nil
}

// Stop tears down every adapter and returns wires, peripherals and
// registers to their power-on state.
func (s *Session) Stop() error {
	s.mu.Lock()
	if err := ValidateTransition(s.state, StateStopped); err != nil {
		s.mu.Unlock()
		return err
	}
	s.teardownLocked()
	status := s.setStateLocked(StateStopped, "")
	s.mu.Unlock()

	s.logger.Info("Simulation stopped",
		zap.String("run_id", status.RunID),
		zap.Int("port_writes", status.PortWrites))
	s.statusSubs.Publish(status)
	return nil
}

// Reset returns a stopped or failed session to idle and clears the
// electrical event log.
func (s *Session) Reset() error {
	s.mu.Lock()
	if err := ValidateTransition(s.state, StateIdle); err != nil {
		s.mu.Unlock()
		return err
	}
	s.runID = uuid.Nil
	s.startedAt = time.Time{}
	s.writes = 0
	status := s.setStateLocked(StateIdle, "")
	s.mu.Unlock()

	s.model.Reset()
	s.modelMu.Lock()
	clear(s.excluded)
	s.modelMu.Unlock()
	s.syncModel()

	s.logger.Info("Simulation reset")
	s.statusSubs.Publish(status)
	return nil
}

// Close stops a running session and detaches it from the wire network.
func (s *Session) Close() {
	if s.State() == StateRunning {
		if err := s.Stop(); err != nil {
			s.logger.Warn("Failed to stop session on close", zap.Error(err))
		}
	}
	s.circuit.Network.Unsubscribe(s.networkToken)
	s.circuit.Network.Unsubscribe(s.engineToken)
}

func (s *Session) teardownLocked() {
	s.conn.UnbindAll()
	s.engine.Unbind(s.bank, s.portTokens)
	s.portTokens = [types.PortCount]pubsub.Token{}
	s.engine.Reset()
	for _, l := range s.live {
		if r, ok := l.(components.Resetter); ok {
			r.Reset()
		}
	}
	s.boardLED.Reset()
	s.bank.Reset()
}

func (s *Session) setStateLocked(state State, errMsg string) Status {
	s.state = state
	s.errMsg = errMsg
	s.lastChange = time.Now()
	return s.statusLocked()
}

func (s *Session) failLocked(err error) Status {
	s.logger.Error("Simulation failed", zap.Error(err))
	return s.setStateLocked(StateError, err.Error())
}

// syncLocked rebinds the peripherals and the board LED against the current
// wire list.
func (s *Session) syncLocked() error {
	live := make([]components.Live, 0, len(s.live)+1)
	for _, l := range s.live {
		live = append(live, l)
	}
	mappings := connector.MappingsFromWires(s.circuit.Network.Wires(), s.circuit.Table)
	if m := connector.BoardLEDMapping(s.circuit.Table); m != nil {
		live = append(live, s.boardLED)
		mappings[s.boardLED.ID()] = m
	}
	return s.conn.Sync(live, mappings)
}

func (s *Session) onNetworkChange(ch wiring.Change) {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return
	}
	err := s.syncLocked()
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("Failed to resync components",
			zap.String("change", string(ch.Kind)),
			zap.Stringer("wire_id", ch.Wire.ID),
			zap.Error(err))
	}
}

// AddComponent places a peripheral. A running session binds it right away.
func (s *Session) AddComponent(comp components.Component) error {
	if err := s.circuit.AddComponent(comp); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRunning {
		return nil
	}
	s.live[comp.ID] = s.newLive(comp)
	return s.syncLocked()
}

// RemoveComponent deletes an unwired peripheral.
func (s *Session) RemoveComponent(id string) error {
	if err := s.circuit.RemoveComponent(id); err != nil {
		return err
	}
	s.conn.Unbind(id)
	s.mu.Lock()
	delete(s.live, id)
	s.mu.Unlock()
	return nil
}

// Live returns the runtime peripheral of a running session.
func (s *Session) Live(id string) (components.Live, bool) {
	if id == s.boardLED.ID() {
		return s.boardLED, true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.live[id]
	return l, ok
}

func (s *Session) newLive(comp components.Component) components.Live {
	l := components.NewLive(comp)
	if led, ok := l.(*components.LED); ok {
		s.watchLED(led)
	}
	return l
}

func (s *Session) watchLED(led *components.LED) {
	id := led.ID()
	led.Subscribe(func(on bool) {
		s.indicatorSubs.Publish(IndicatorChange{ComponentID: id, Lit: on})
	})
}

// Indicators reports the lit state of every LED, the board LED included.
func (s *Session) Indicators() map[string]bool {
	out := map[string]bool{s.boardLED.ID(): s.boardLED.Lit()}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, l := range s.live {
		if led, ok := l.(*components.LED); ok {
			out[id] = led.Lit()
		}
	}
	return out
}

// Write stores a full register value, as the emulator core would.
func (s *Session) Write(port types.Port, value uint8) error {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return ErrNotRunning
	}
	s.writes++
	s.mu.Unlock()
	return s.bank.Write(port, value)
}

// SetPin forces the bit behind a board label.
func (s *Session) SetPin(label string, high bool) error {
	if s.State() != StateRunning {
		return ErrNotRunning
	}
	addr, ok := s.circuit.Table.Resolve(label)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnmappedPin, label)
	}
	return s.bank.SetPin(addr.Port, addr.Bit, high)
}

func (s *Session) Press(componentID string) error {
	b, err := s.button(componentID)
	if err != nil {
		return err
	}
	b.Press()
	return nil
}

func (s *Session) Release(componentID string) error {
	b, err := s.button(componentID)
	if err != nil {
		return err
	}
	b.Release()
	return nil
}

func (s *Session) button(componentID string) (*components.PushButton, error) {
	if s.State() != StateRunning {
		return nil, ErrNotRunning
	}
	l, ok := s.Live(componentID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownComponent, componentID)
	}
	b, ok := l.(*components.PushButton)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotInteractive, componentID)
	}
	return b, nil
}

// States returns the runtime state of every wire.
func (s *Session) States() []types.WireRuntimeState {
	return s.engine.States()
}

// Apply runs one trace step after its delay and returns the wire states it
// changed.
func (s *Session) Apply(ctx context.Context, step circuit.Step) ([]types.WireRuntimeState, error) {
	if step.Delay > 0 {
		timer := time.NewTimer(step.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	var (
		mu      sync.Mutex
		changed []types.WireRuntimeState
	)
	tok := s.engine.Subscribe(func(st types.WireRuntimeState) {
		mu.Lock()
		changed = append(changed, st)
		mu.Unlock()
	})
	defer s.engine.Unsubscribe(tok)

	var err error
	switch step.Action {
	case circuit.ActionWrite:
		var port types.Port
		if port, err = types.ParsePort(step.Port); err == nil {
			err = s.Write(port, step.Value)
		}
	case circuit.ActionSet:
		err = s.SetPin(step.Pin, step.High)
	case circuit.ActionPress:
		err = s.Press(step.Component)
	case circuit.ActionRelease:
		err = s.Release(step.Component)
	case circuit.ActionAnalyze:
		s.Analyze()
	default:
		err = fmt.Errorf("unknown action %q", step.Action)
	}
	if err != nil {
		return nil, fmt.Errorf("%s step: %w", step.Action, err)
	}

	mu.Lock()
	defer mu.Unlock()
	return changed, nil
}

// Run replays a whole trace. The callback sees the changes of each step.
func (s *Session) Run(ctx context.Context, t *circuit.Trace, fn func(int, circuit.Step, []types.WireRuntimeState)) error {
	for i, step := range t.Steps {
		changed, err := s.Apply(ctx, step)
		if err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
		if fn != nil {
			fn(i, step, changed)
		}
	}
	return nil
}

func (s *Session) SubscribeStatus(fn func(Status)) pubsub.Token {
	return s.statusSubs.Subscribe(fn)
}

func (s *Session) UnsubscribeStatus(token pubsub.Token) bool {
	return s.statusSubs.Unsubscribe(token)
}

func (s *Session) SubscribeSnapshots(fn func(analysis.Snapshot)) pubsub.Token {
	return s.snapshotSubs.Subscribe(fn)
}

func (s *Session) UnsubscribeSnapshots(token pubsub.Token) bool {
	return s.snapshotSubs.Unsubscribe(token)
}

func (s *Session) SubscribeIndicators(fn func(IndicatorChange)) pubsub.Token {
	return s.indicatorSubs.Subscribe(fn)
}

func (s *Session) UnsubscribeIndicators(token pubsub.Token) bool {
	return s.indicatorSubs.Unsubscribe(token)
}
