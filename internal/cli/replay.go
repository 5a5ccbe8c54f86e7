package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pkarpov/trustprobe/internal/adapter"
	"github.com/pkarpov/trustprobe/internal/ledger"
	"github.com/pkarpov/trustprobe/internal/rules"
)

var (
	replayContext string
	replayFormat  string
)

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().StringVar(&replayContext, "context", "", "Only replay events from this context")
	replayCmd.Flags().StringVarP(&replayFormat, "format", "f", "text", "Output format (text|json)")
}

var replayCmd = &cobra.Command{
	Use:   "replay <ledger-file>",
	Short: "Re-evaluate a recorded ledger file",
	Long: "Reads a JSONL ledger file, folds every event through the reference\n" +
		"model, and prints the resulting violation set. Replaying the same\n" +
		"file always produces the same output.",
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

type replayOutput struct {
	File       string            `json:"file"`
	Events     int               `json:"events"`
	Violations []rules.Violation `json:"violations"`
}

func runReplay(cmd *cobra.Command, args []string) error {
	events, err := ledger.ReadFile(args[0])
	if err != nil {
		return err
	}

	ref := adapter.NewReference(rules.DefaultConfig())
	replayed := 0
	for _, ev := range events {
		if replayContext != "" && ev.Context != replayContext {
			continue
		}
		if err := ref.Observe(ev); err != nil {
			return err
		}
		replayed++
	}
	ref.Finalize()

	out := replayOutput{
		File:       args[0],
		Events:     replayed,
		Violations: ref.CurrentViolations(),
	}

	switch replayFormat {
	case "json":
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal replay output: %w", err)
		}
		fmt.Println(string(data))
	default:
		fmt.Printf("Replayed %d events from %s\n", out.Events, out.File)
		if len(out.Violations) == 0 {
			fmt.Println("No violations.")
			return nil
		}
		fmt.Printf("Violations (%d):\n", len(out.Violations))
		for _, v := range out.Violations {
			fmt.Printf("  %-24s caused by %s\n", v.Kind, strings.Join(v.CauseIDs, ", "))
		}
	}
	return nil
}
