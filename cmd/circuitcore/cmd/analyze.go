package cmd

import (
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/KevinKickass/OpenCircuitCore/internal/analysis"
	"github.com/KevinKickass/OpenCircuitCore/internal/circuit"
	"github.com/KevinKickass/OpenCircuitCore/internal/types"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	analyzeTrace   string
	analyzeNetlist bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <circuit>",
	Short: "Run one electrical analysis pass and print the report",
	Long: `Composes the circuit and runs the electrical analyzer once. With --trace
the trace is replayed first so the analysis sees the resulting pin levels.
The report is written as YAML; --netlist prints the SPICE-style netlist of
the electrical model instead.

Examples:
  circuitcore analyze blink
  circuitcore analyze blink --trace circuits/blink.trace.yaml
  circuitcore analyze blink --netlist > blink.cir`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVarP(&analyzeTrace, "trace", "t", "", "trace to replay before analyzing")
	analyzeCmd.Flags().BoolVar(&analyzeNetlist, "netlist", false, "print the netlist instead of the report")
}

type wireReport struct {
	ID          types.WireID `yaml:"id"`
	Current     float64      `yaml:"current"`
	VoltageDrop float64      `yaml:"voltage_drop"`
	Dissipation float64      `yaml:"dissipation"`
}

type analysisReport struct {
	Circuit          string       `yaml:"circuit"`
	TakenAt          time.Time    `yaml:"taken_at"`
	TotalPower       float64      `yaml:"total_power"`
	TotalDissipation float64      `yaml:"total_dissipation"`
	TotalCurrent     float64      `yaml:"total_current"`
	Efficiency       float64      `yaml:"efficiency"`
	Wires            []wireReport `yaml:"wires"`
	Warnings         []string     `yaml:"warnings,omitempty"`
	Errors           []string     `yaml:"errors,omitempty"`
}

func newAnalysisReport(name string, snap analysis.Snapshot) analysisReport {
	r := analysisReport{
		Circuit:          name,
		TakenAt:          snap.TakenAt,
		TotalPower:       snap.TotalPowerConsumption,
		TotalDissipation: snap.TotalDissipation,
		TotalCurrent:     snap.TotalCurrent(),
		Efficiency:       snap.Efficiency,
		Wires:            []wireReport{},
		Warnings:         snap.Warnings,
		Errors:           snap.Errors,
	}
	for id, current := range snap.CurrentByWire {
		r.Wires = append(r.Wires, wireReport{
			ID:          id,
			Current:     current,
			VoltageDrop: snap.VoltageDropByWire[id],
			Dissipation: snap.PowerDissipationByWire[id],
		})
	}
	slices.SortFunc(r.Wires, func(a, b wireReport) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return r
}

func writeReport(w io.Writer, r analysisReport) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return enc.Close()
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	session, err := openSession(cfg, args[0], logger)
	if err != nil {
		return err
	}
	defer session.Close()

	if analyzeTrace != "" {
		trace, err := circuit.LoadTrace(analyzeTrace)
		if err != nil {
			return err
		}
		if _, err := session.Start(); err != nil {
			return err
		}
		if err := session.Run(cmd.Context(), trace, nil); err != nil {
			return err
		}
	}

	if analyzeNetlist {
		_, err := io.WriteString(cmd.OutOrStdout(), session.Netlist())
		return err
	}
	return writeReport(cmd.OutOrStdout(), newAnalysisReport(session.Circuit().Name, session.Analyze()))
}
