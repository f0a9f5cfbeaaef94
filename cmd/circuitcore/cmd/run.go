package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strings"

	"github.com/KevinKickass/OpenCircuitCore/internal/circuit"
	"github.com/KevinKickass/OpenCircuitCore/internal/config"
	"github.com/KevinKickass/OpenCircuitCore/internal/simulation"
	"github.com/KevinKickass/OpenCircuitCore/internal/system"
	"github.com/KevinKickass/OpenCircuitCore/internal/types"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run <circuit> <trace>",
	Short: "Replay a stimulus trace against a circuit",
	Long: `Composes the circuit, starts a simulation and replays the trace step by
step. Every wire whose state changed is printed after its step, followed by
the final LED states.

Examples:
  circuitcore run blink circuits/blink.trace.yaml
  circuitcore run ./my-circuit.yaml trace.yaml -v`,
	Args: cobra.ExactArgs(2),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
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

	trace, err := circuit.LoadTrace(args[1])
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	return replay(ctx, cmd.OutOrStdout(), session, trace)
}

// openSession loads and composes a circuit into an idle session.
func openSession(cfg *config.Config, name string, logger *zap.Logger) (*simulation.Session, error) {
	loader, err := circuit.NewLoader(cfg.Circuits.SearchPaths)
	if err != nil {
		return nil, err
	}
	doc, err := loader.Load(name)
	if err != nil {
		return nil, err
	}
	c, err := circuit.NewComposer(loader.Validator(), logger).Compose(doc)
	if err != nil {
		return nil, err
	}
	return simulation.NewSession(c, system.SessionOptions(cfg), logger), nil
}

// replay starts the session and writes one block per trace step.
func replay(ctx context.Context, w io.Writer, session *simulation.Session, trace *circuit.Trace) error {
	if _, err := session.Start(); err != nil {
		return err
	}
	fmt.Fprintf(w, "circuit %s (%s), trace %s: %d steps\n",
		session.Circuit().Name, session.Circuit().Variant, trace.Name, len(trace.Steps))

	err := session.Run(ctx, trace, func(i int, step circuit.Step, changed []types.WireRuntimeState) {
		fmt.Fprintf(w, "step %d: %s\n", i, describeStep(step))
		for _, st := range changed {
			fmt.Fprintf(w, "  %s\n", formatState(st))
		}
	})
	if err != nil {
		return err
	}

	indicators := session.Indicators()
	ids := make([]string, 0, len(indicators))
	for id := range indicators {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fmt.Fprintln(w, "indicators:")
	for _, id := range ids {
		state := "off"
		if indicators[id] {
			state = "on"
		}
		fmt.Fprintf(w, "  %s %s\n", id, state)
	}
	return nil
}

func describeStep(s circuit.Step) string {
	var b strings.Builder
	b.WriteString(string(s.Action))
	switch s.Action {
	case circuit.ActionWrite:
		if port, err := types.ParsePort(s.Port); err == nil {
			fmt.Fprintf(&b, " PORT%s=0x%02x", port, s.Value)
		}
	case circuit.ActionSet:
		fmt.Fprintf(&b, " %s high=%t", s.Pin, s.High)
	case circuit.ActionPress, circuit.ActionRelease:
		fmt.Fprintf(&b, " %s", s.Component)
	}
	if s.Delay > 0 {
		fmt.Fprintf(&b, " after %s", s.Delay)
	}
	return b.String()
}

func formatState(st types.WireRuntimeState) string {
	return fmt.Sprintf("%s %s %s %.2f", st.ID, st.Logical, st.Direction, st.Magnitude)
}
