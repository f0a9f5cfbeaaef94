package rest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/KevinKickass/OpenCircuitCore/internal/api/websocket"
	"github.com/KevinKickass/OpenCircuitCore/internal/auth"
	"github.com/KevinKickass/OpenCircuitCore/internal/config"
	"github.com/KevinKickass/OpenCircuitCore/internal/interfaces"
	"github.com/gin-gonic/gin"
	gws "github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type Server struct {
	router   *gin.Engine
	lm       interfaces.LifecycleManager
	logger   *zap.Logger
	server   *http.Server
	wsHub    *websocket.Hub
	upgrader gws.Upgrader
	// guard is nil when auth is disabled.
	guard *auth.Guard
}

func NewServer(cfg *config.Config, lm interfaces.LifecycleManager, logger *zap.Logger, wsHub *websocket.Hub) *Server {
	s := &Server{
		router:   gin.New(),
		lm:       lm,
		logger:   logger,
		wsHub:    wsHub,
		upgrader: websocket.Upgrader(cfg.Server.AllowedOrigins),
	}
	s.router.Use(gin.Recovery())
	s.router.Use(LoggerMiddleware(s.logger))
	s.router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))
	if cfg.Auth.Enabled {
		s.guard = auth.NewGuard(cfg.Auth, logger)
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.logger.Info("Starting REST API server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("REST server failed", zap.Error(err))
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down REST API server")
	return s.server.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthCheck)

	var guarded []gin.HandlerFunc
	if s.guard != nil {
		s.router.POST("/api/v1/auth/token", s.guard.LoginHandler)
		guarded = append(guarded, s.guard.Middleware())
	}

	v1 := s.router.Group("/api/v1", guarded...)
	{
		v1.GET("/system/status", s.getSystemStatus)

		// ==================== BOARDS & KINDS ====================
		boards := v1.Group("/boards")
		{
			boards.GET("", s.listBoards)
			boards.GET("/:variant", s.getBoard)
			boards.GET("/:variant/pins/:label", s.resolvePin)
		}
		v1.GET("/components/kinds", s.listKinds)

		// ==================== ACTIVE CIRCUIT ====================
		circuit := v1.Group("/circuit")
		{
			circuit.GET("", s.getCircuit)
			circuit.PUT("", s.replaceCircuit)
			circuit.GET("/netlist", s.getNetlist)

			circuit.POST("/components", s.addComponent)
			circuit.DELETE("/components/:id", s.removeComponent)

			circuit.GET("/wires", s.listWires)
			circuit.POST("/wires", s.createWire)
			circuit.GET("/wires/states", s.listWireStates)
			circuit.GET("/wires/:id", s.getWire)
			circuit.PATCH("/wires/:id", s.updateWire)
			circuit.DELETE("/wires/:id", s.deleteWire)
			circuit.GET("/wires/:id/state", s.getWireState)
		}

		// ==================== SIMULATION ====================
		sim := v1.Group("/simulation")
		{
			sim.GET("/status", s.getSimulationStatus)
			sim.POST("/command", s.executeSimulationCommand)
			sim.GET("/ports", s.getPorts)
			sim.POST("/ports/:port", s.writePort)
			sim.POST("/pins/:label", s.setPin)
			sim.POST("/components/:id/press", s.pressComponent)
			sim.POST("/components/:id/release", s.releaseComponent)
			sim.GET("/indicators", s.listIndicators)
		}

		// ==================== ANALYSIS ====================
		an := v1.Group("/analysis")
		{
			an.POST("", s.runAnalysis)
			an.GET("/last", s.getLastAnalysis)
			an.GET("/monitor", s.getMonitor)
			an.GET("/events", s.listEvents)
			an.GET("/snapshots/:run_id", s.listSnapshots)
		}

		// ==================== STORED CIRCUITS ====================
		stored := v1.Group("/circuits")
		{
			stored.GET("", s.listStoredCircuits)
			stored.POST("", s.saveCircuit)
			stored.GET("/:name", s.getStoredCircuit)
			stored.DELETE("/:name", s.deleteStoredCircuit)
			stored.POST("/:name/load", s.loadStoredCircuit)
		}

		// ==================== WEBSOCKET ====================
		ws := v1.Group("/ws")
		{
			ws.GET("/live", s.wsLiveConnection)
			ws.GET("/status", s.wsStatus)
		}
	}
}

func (s *Server) wsLiveConnection(c *gin.Context) {
	websocket.ServeWs(s.wsHub, s.upgrader, c.Writer, c.Request)
}

func (s *Server) wsStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"connected_clients": s.wsHub.GetClientCount(),
	})
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	})
}

// GET /api/v1/system/status
func (s *Server) getSystemStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.lm.GetCurrentStatus())
}
