package system

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/KevinKickass/OpenCircuitCore/internal/analysis"
	"github.com/KevinKickass/OpenCircuitCore/internal/api/rest"
	"github.com/KevinKickass/OpenCircuitCore/internal/api/websocket"
	"github.com/KevinKickass/OpenCircuitCore/internal/circuit"
	"github.com/KevinKickass/OpenCircuitCore/internal/config"
	"github.com/KevinKickass/OpenCircuitCore/internal/interfaces"
	"github.com/KevinKickass/OpenCircuitCore/internal/pins"
	"github.com/KevinKickass/OpenCircuitCore/internal/pubsub"
	"github.com/KevinKickass/OpenCircuitCore/internal/simulation"
	"github.com/KevinKickass/OpenCircuitCore/internal/storage"
	"github.com/KevinKickass/OpenCircuitCore/internal/types"
	"github.com/KevinKickass/OpenCircuitCore/internal/wiring"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const persistTimeout = 5 * time.Second

type LifecycleManager struct {
	config   *config.Config
	storage  *storage.PostgresClient
	loader   *circuit.Loader
	composer *circuit.Composer
	wsHub    *websocket.Hub
	logger   *zap.Logger

	restServer *rest.Server

	sessionMu sync.RWMutex
	session   *simulation.Session
	sampler   *simulation.Sampler
	tokens    sessionTokens

	stateMu      sync.RWMutex
	currentState SystemState
	lastError    string

	hubCancel    context.CancelFunc
	shutdownChan chan struct{}
	shutdownOnce sync.Once
}

// sessionTokens are the hub feeds of one session.
type sessionTokens struct {
	engine     pubsub.Token
	network    pubsub.Token
	status     pubsub.Token
	snapshots  pubsub.Token
	indicators pubsub.Token
}

// SessionOptions derives the electrical options of a session from cfg.
func SessionOptions(cfg *config.Config) simulation.Options {
	return simulation.Options{
		Thresholds:    cfg.Analysis.Thresholds,
		WireDefaults:  cfg.Analysis.Wire.Properties(),
		SupplyVoltage: cfg.Analysis.SupplyVoltage,
		EventLogSize:  cfg.Simulation.EventLogSize,
	}
}

// NewLifecycleManager composes the configured circuit, or an empty board
// when none is set. db may be nil.
func NewLifecycleManager(db *storage.PostgresClient, cfg *config.Config, logger *zap.Logger) (*LifecycleManager, error) {
	loader, err := circuit.NewLoader(cfg.Circuits.SearchPaths)
	if err != nil {
		return nil, fmt.Errorf("failed to create circuit loader: %w", err)
	}

	lm := &LifecycleManager{
		config:       cfg,
		storage:      db,
		loader:       loader,
		composer:     circuit.NewComposer(loader.Validator(), logger),
		wsHub:        websocket.NewHub(logger),
		logger:       logger,
		currentState: StateInitializing,
		shutdownChan: make(chan struct{}),
	}
	lm.wsHub.SetStateProvider(lm)

	circ, err := lm.initialCircuit()
	if err != nil {
		return nil, err
	}
	lm.install(simulation.NewSession(circ, SessionOptions(cfg), logger))
	return lm, nil
}

func (lm *LifecycleManager) initialCircuit() (*circuit.Circuit, error) {
	if name := lm.config.Simulation.Circuit; name != "" {
		doc, err := lm.loader.Load(name)
		if err != nil {
			return nil, fmt.Errorf("failed to load circuit: %w", err)
		}
		return lm.composer.Compose(doc)
	}
	variant, err := pins.ParseVariant(lm.config.Simulation.Board)
	if err != nil {
		return nil, err
	}
	return lm.composer.Empty(variant)
}

// Start starts the hub, the REST API and the analysis sampler.
func (lm *LifecycleManager) Start() error {
	lm.logger.Info("Starting OpenCircuitCore")

	ctx, cancel := context.WithCancel(context.Background())
	lm.hubCancel = cancel
	go lm.wsHub.Run(ctx)

	if err := lm.startRESTServer(); err != nil {
		lm.setError(fmt.Errorf("failed to start REST API: %w", err))
		return err
	}

	session := lm.Session()
	if lm.config.Simulation.AutoStart {
		if _, err := session.Start(); err != nil {
			lm.logger.Warn("Failed to auto-start simulation", zap.Error(err))
		}
	}
	lm.currentSampler().Start()

	lm.setState(StateRunning)
	lm.broadcastStatus()

	lm.logger.Info("System started successfully",
		zap.Int("http_port", lm.config.Server.HTTPPort),
		zap.String("circuit", session.Circuit().Name),
		zap.String("board", string(session.Circuit().Variant)),
		zap.Bool("persistence", lm.storage != nil))

	return nil
}

func (lm *LifecycleManager) startRESTServer() error {
	lm.restServer = rest.NewServer(lm.config, lm, lm.logger, lm.wsHub)
	return lm.restServer.Start()
}

// LoadCircuit replaces the active session. A session that was running keeps
// running on the new circuit.
func (lm *LifecycleManager) LoadCircuit(ctx context.Context, doc *circuit.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	circ, err := lm.composer.Compose(doc)
	if err != nil {
		return err
	}

	lm.stateMu.RLock()
	systemRunning := lm.currentState == StateRunning
	lm.stateMu.RUnlock()
	if systemRunning {
		lm.setState(StateReloading)
		lm.broadcastStatus()
	}

	lm.sessionMu.Lock()
	old := lm.session
	wasRunning := old.State() == simulation.StateRunning
	lm.sampler.Stop()
	lm.detach(old, lm.tokens)
	old.Close()
	lm.sessionMu.Unlock()

	session := simulation.NewSession(circ, SessionOptions(lm.config), lm.logger)
	lm.install(session)

	if wasRunning {
		if _, err := session.Start(); err != nil {
			lm.logger.Warn("Failed to restart simulation", zap.Error(err))
		}
	}
	if systemRunning {
		lm.currentSampler().Start()
		lm.setState(StateRunning)
	}

	lm.logger.Info("Circuit loaded",
		zap.String("name", circ.Name),
		zap.String("board", string(circ.Variant)),
		zap.Int("wires", circ.Network.Len()))

	lm.wsHub.Broadcast(websocket.NewSimulationStateMessage(session.Status()))
	lm.wsHub.Broadcast(websocket.NewWireStatesMessage(session.States()))
	lm.broadcastStatus()
	return nil
}

func (lm *LifecycleManager) install(session *simulation.Session) {
	tokens := lm.attach(session)
	sampler := simulation.NewSampler(session, lm.config.Simulation.AnalysisInterval, lm.logger)

	lm.sessionMu.Lock()
	lm.session = session
	lm.sampler = sampler
	lm.tokens = tokens
	lm.sessionMu.Unlock()
}

// attach feeds every session event into the hub.
func (lm *LifecycleManager) attach(session *simulation.Session) sessionTokens {
	hub := lm.wsHub
	return sessionTokens{
		engine: session.Engine().Subscribe(func(st types.WireRuntimeState) {
			hub.Broadcast(websocket.NewWireStateMessage(st))
		}),
		network: session.Circuit().Network.Subscribe(func(ch wiring.Change) {
			hub.Broadcast(websocket.NewNetworkChangeMessage(string(ch.Kind), ch.Wire))
		}),
		status: session.SubscribeStatus(func(st simulation.Status) {
			hub.Broadcast(websocket.NewSimulationStateMessage(st))
			// stop resets LEDs without a change event
			for id, lit := range session.Indicators() {
				hub.Broadcast(websocket.NewIndicatorMessage(id, lit))
			}
		}),
		snapshots: session.SubscribeSnapshots(func(snap analysis.Snapshot) {
			hub.Broadcast(websocket.NewAnalysisMessage(snap))
			lm.persistSnapshot(session, snap)
		}),
		indicators: session.SubscribeIndicators(func(ch simulation.IndicatorChange) {
			hub.Broadcast(websocket.NewIndicatorMessage(ch.ComponentID, ch.Lit))
		}),
	}
}

func (lm *LifecycleManager) detach(session *simulation.Session, t sessionTokens) {
	session.Engine().Unsubscribe(t.engine)
	session.Circuit().Network.Unsubscribe(t.network)
	session.UnsubscribeStatus(t.status)
	session.UnsubscribeSnapshots(t.snapshots)
	session.UnsubscribeIndicators(t.indicators)
}

// persistSnapshot stores snapshots of a run in the background. Analyses
// outside a run are not stored.
func (lm *LifecycleManager) persistSnapshot(session *simulation.Session, snap analysis.Snapshot) {
	if lm.storage == nil || !lm.config.Simulation.PersistSnapshots {
		return
	}
	status := session.Status()
	runID, err := uuid.Parse(status.RunID)
	if err != nil {
		return
	}
	rec := storage.NewSnapshotRecord(runID, status.Circuit, snap)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := lm.storage.SaveSnapshot(ctx, rec); err != nil {
			lm.logger.Warn("Failed to persist analysis snapshot",
				zap.String("run_id", rec.RunID.String()),
				zap.Error(err))
		}
	}()
}

// InitialMessages greets a new websocket client with the full state.
func (lm *LifecycleManager) InitialMessages() []websocket.Message {
	session := lm.Session()
	msgs := []websocket.Message{
		websocket.NewMessage(websocket.MessageTypeSystemStatus, lm.GetCurrentStatus()),
		websocket.NewSimulationStateMessage(session.Status()),
		websocket.NewWireStatesMessage(session.States()),
	}
	for id, lit := range session.Indicators() {
		msgs = append(msgs, websocket.NewIndicatorMessage(id, lit))
	}
	if snap, ok := session.Model().Last(); ok {
		msgs = append(msgs, websocket.NewAnalysisMessage(snap))
	}
	return msgs
}

// Shutdown gracefully shuts down the system
func (lm *LifecycleManager) Shutdown(ctx context.Context) error {
	var shutdownErr error

	lm.shutdownOnce.Do(func() {
		lm.logger.Info("Shutting down system")

		lm.setState(StateStopping)
		lm.broadcastStatus()

		shutdownErr = lm.gracefulShutdown(ctx)

		lm.setState(StateStopped)
		close(lm.shutdownChan)
	})

	return shutdownErr
}

func (lm *LifecycleManager) gracefulShutdown(ctx context.Context) error {
	lm.sessionMu.Lock()
	lm.sampler.Stop()
	lm.detach(lm.session, lm.tokens)
	lm.session.Close()
	lm.sessionMu.Unlock()

	var err error
	if lm.restServer != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, lm.config.Server.ShutdownTimeout)
		defer cancel()
		if shutdownErr := lm.restServer.Shutdown(shutdownCtx); shutdownErr != nil {
			err = fmt.Errorf("rest api shutdown failed: %w", shutdownErr)
		}
	}

	if lm.hubCancel != nil {
		lm.hubCancel()
		<-lm.wsHub.Done()
	}

	if err == nil {
		lm.logger.Info("Graceful shutdown completed")
	}
	return err
}

// Done is closed once shutdown has finished.
func (lm *LifecycleManager) Done() <-chan struct{} {
	return lm.shutdownChan
}

func (lm *LifecycleManager) setState(state SystemState) {
	lm.stateMu.Lock()
	defer lm.stateMu.Unlock()
	if err := ValidateTransition(lm.currentState, state); err != nil {
		lm.logger.Debug("Unexpected system state change", zap.Error(err))
	}
	lm.currentState = state
	if state != StateError {
		lm.lastError = ""
	}
}

func (lm *LifecycleManager) setError(err error) {
	lm.logger.Error("System error", zap.Error(err))
	lm.stateMu.Lock()
	defer lm.stateMu.Unlock()
	lm.currentState = StateError
	lm.lastError = err.Error()
}

func (lm *LifecycleManager) broadcastStatus() {
	lm.wsHub.Broadcast(websocket.NewMessage(websocket.MessageTypeSystemStatus, lm.GetCurrentStatus()))
}

// GetCurrentStatus returns current system status (Interface implementation)
func (lm *LifecycleManager) GetCurrentStatus() interfaces.SystemStatus {
	lm.stateMu.RLock()
	state, lastError := lm.currentState, lm.lastError
	lm.stateMu.RUnlock()

	session := lm.Session()
	circ := session.Circuit()
	return interfaces.SystemStatus{
		State:            state.String(),
		Circuit:          circ.Name,
		Board:            string(circ.Variant),
		Simulation:       string(session.State()),
		Wires:            circ.Network.Len(),
		Components:       len(circ.Components()),
		ConnectedClients: lm.wsHub.GetClientCount(),
		Database:         lm.storage != nil,
		Error:            lastError,
	}
}

// Session returns the active simulation session
func (lm *LifecycleManager) Session() *simulation.Session {
	lm.sessionMu.RLock()
	defer lm.sessionMu.RUnlock()
	return lm.session
}

func (lm *LifecycleManager) currentSampler() *simulation.Sampler {
	lm.sessionMu.RLock()
	defer lm.sessionMu.RUnlock()
	return lm.sampler
}

// Hub returns the websocket hub
func (lm *LifecycleManager) Hub() *websocket.Hub {
	return lm.wsHub
}

// Loader returns the circuit loader
func (lm *LifecycleManager) Loader() *circuit.Loader {
	return lm.loader
}

// Storage returns the storage client
func (lm *LifecycleManager) Storage() *storage.PostgresClient {
	return lm.storage
}

// Config returns the configuration
func (lm *LifecycleManager) Config() *config.Config {
	return lm.config
}
