package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/KevinKickass/OpenCircuitCore/internal/storage"
	"github.com/KevinKickass/OpenCircuitCore/internal/system"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	serveCircuit   string
	servePort      int
	serveAutoStart bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the simulator with its REST and websocket API",
	Long: `Starts the simulation service. The active circuit is served over REST
under /api/v1, live wire states and analysis snapshots over /api/v1/ws/live.

Examples:
  circuitcore serve                                  # Empty board from config
  circuitcore serve --circuit blink --auto-start     # Load and start a circuit
  OCC_DATABASE_ENABLED=true circuitcore serve        # With PostgreSQL persistence`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveCircuit, "circuit", "", "circuit name or path (overrides simulation.circuit)")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "HTTP port (overrides server.http_port)")
	serveCmd.Flags().BoolVar(&serveAutoStart, "auto-start", false, "start the simulation right away")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if serveCircuit != "" {
		cfg.Simulation.Circuit = serveCircuit
	}
	if servePort != 0 {
		cfg.Server.HTTPPort = servePort
	}
	if serveAutoStart {
		cfg.Simulation.AutoStart = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger.Info("Config loaded successfully")

	var db *storage.PostgresClient
	if cfg.Database.Enabled {
		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Server.ShutdownTimeout)
		db, err = storage.NewPostgresClient(ctx, cfg.Database)
		if err == nil {
			err = db.EnsureSchema(ctx)
		}
		cancel()
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()
		logger.Info("Database connected successfully",
			zap.String("host", cfg.Database.Host),
			zap.String("database", cfg.Database.Database))
	}

	lifecycle, err := system.NewLifecycleManager(db, cfg, logger)
	if err != nil {
		return err
	}
	if err := lifecycle.Start(); err != nil {
		return fmt.Errorf("failed to start system: %w", err)
	}
	logger.Info("OpenCircuitCore started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := lifecycle.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	logger.Info("OpenCircuitCore stopped successfully")
	return nil
}
