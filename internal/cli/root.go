package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "trustprobe",
	Short: "Structural compliance evaluation for governance invariants",
	Long: "Evaluates event sequences against a reference governance model:\n" +
		"delegation, consent, telemetry influence, boundaries, and enforcement\n" +
		"legibility. Finds violations by adversarial search, shrinks them, and\n" +
		"captures minimal exemplars.",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
