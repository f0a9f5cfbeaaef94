package cmd

import (
	"fmt"

	"github.com/KevinKickass/OpenCircuitCore/internal/pins"
	"github.com/spf13/cobra"
)

var resolveBoard string

var resolveCmd = &cobra.Command{
	Use:   "resolve <label>...",
	Short: "Translate board pin labels into port/bit addresses",
	Long: `Resolves each label against the board's pin table and prints the
emulator address together with the canonical label and any aliases.
Labels without a controllable pin are reported as not connected.

Examples:
  circuitcore resolve D13 A0 SDA
  circuitcore resolve --board nano LED_BUILTIN GND`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResolve,
}

func init() {
	rootCmd.AddCommand(resolveCmd)

	resolveCmd.Flags().StringVarP(&resolveBoard, "board", "b", string(pins.VariantUno), "board variant (uno, nano, mega)")
}

func runResolve(cmd *cobra.Command, args []string) error {
	variant, err := pins.ParseVariant(resolveBoard)
	if err != nil {
		return err
	}
	table := pins.NewTable(variant)
	w := cmd.OutOrStdout()
	for _, label := range args {
		addr, ok := table.Resolve(label)
		if !ok {
			fmt.Fprintf(w, "%-12s not connected\n", label)
			continue
		}
		canonical := table.Format(addr)
		fmt.Fprintf(w, "%-12s %-8s pin %s", label, addr, canonical)
		if aliases := table.Aliases(canonical); len(aliases) > 0 {
			fmt.Fprintf(w, " %v", aliases)
		}
		fmt.Fprintln(w)
	}
	return nil
}
