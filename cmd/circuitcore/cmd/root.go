package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/KevinKickass/OpenCircuitCore/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const defaultConfigPath = "configs/config.yaml"

var (
	// Global flags
	verbose    bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "circuitcore",
	Short: "Microcontroller board and circuit simulator",
	Long: `OpenCircuitCore simulates a microcontroller board with attached
peripherals: it maps board pins to port registers, derives the runtime state
of every wire from register writes and analyzes the circuit electrically.

Examples:
  circuitcore serve --circuit blink                  # REST + websocket API
  circuitcore run blink circuits/blink.trace.yaml    # Replay a stimulus trace
  circuitcore resolve D13 A4 SDA --board uno         # Show pin addresses
  circuitcore analyze blink --netlist                # Export a netlist
  circuitcore hash-password 'secret'                 # Hash for auth.password_hash`,
	Version:       "0.3.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "config file")
}

func newLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// loadConfig reads the config file. A missing default file falls back to
// built-in defaults; a missing explicit file is an error.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := configPath
	if !cmd.Flags().Changed("config") {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			path = ""
		}
	}
	return config.Load(path)
}
