package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pkarpov/trustprobe/internal/exemplar"
	"github.com/pkarpov/trustprobe/internal/ledger"
)

var (
	exemplarsDir  string
	exportOutPath string
)

func init() {
	rootCmd.AddCommand(exemplarsCmd)
	exemplarsCmd.AddCommand(exemplarsListCmd)
	exemplarsCmd.AddCommand(exemplarsShowCmd)
	exemplarsCmd.AddCommand(exemplarsExportCmd)
	exemplarsCmd.PersistentFlags().StringVarP(&exemplarsDir, "dir", "d", "exemplars", "Exemplar store directory")
	exemplarsExportCmd.Flags().StringVarP(&exportOutPath, "out", "o", "", "Output chain file (default <id>.jsonl)")
}

var exemplarsCmd = &cobra.Command{
	Use:   "exemplars",
	Short: "Inspect captured exemplars",
}

var exemplarsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List captured exemplar IDs",
	RunE: func(cmd *cobra.Command, args []string) error {
		store := exemplar.NewStore(exemplarsDir)
		ids, err := store.List()
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			fmt.Println("No exemplars captured.")
			return nil
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		return nil
	},
}

var exemplarsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print one exemplar's rendered page",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := filepath.Join(exemplarsDir, "rendered", args[0]+".md")
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("exemplar %q not found in %s", args[0], exemplarsDir)
		}
		fmt.Print(string(data))
		return nil
	},
}

var exemplarsExportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Export an exemplar's events as a replayable chain file",
	Long: "Rebuilds the exemplar's event sequence into a hash-chained JSONL file\n" +
		"that `trustprobe replay` and `trustprobe verify` accept.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := filepath.Join(exemplarsDir, "captures", args[0]+".json")
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("exemplar %q not found in %s", args[0], exemplarsDir)
		}
		var b exemplar.Bundle
		if err := json.Unmarshal(data, &b); err != nil {
			return fmt.Errorf("parse exemplar %q: %w", args[0], err)
		}

		l := ledger.New()
		for _, ev := range b.Events {
			if _, err := l.Append(ev); err != nil {
				return fmt.Errorf("rebuild chain: %w", err)
			}
		}

		out := exportOutPath
		if out == "" {
			out = args[0] + ".jsonl"
		}
		if err := ledger.WriteFile(out, l, b.Context); err != nil {
			return err
		}
		fmt.Printf("Exported %d event(s) to %s\n", len(b.Events), out)
		return nil
	},
}
