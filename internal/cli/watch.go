package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pkarpov/trustprobe/internal/rules"
	"github.com/pkarpov/trustprobe/internal/scenario"
	"github.com/pkarpov/trustprobe/internal/watch"
)

var watchScenario string

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVar(&watchScenario, "scenario", "", "Glob pattern for scenario YAML files (required)")
	watchCmd.MarkFlagRequired("scenario")
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-run scenario checks when files change",
	Long: "Watches the scenario files matching the glob pattern and re-runs\n" +
		"the checks whenever one is written. Ctrl-C stops the watcher.",
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	matches, err := filepath.Glob(watchScenario)
	if err != nil {
		return fmt.Errorf("invalid glob pattern: %w", err)
	}
	if len(matches) == 0 {
		return fmt.Errorf("no scenario files match pattern: %s", watchScenario)
	}

	check := func() {
		cfg := rules.DefaultConfig()
		var results []*scenario.RunResult
		for _, path := range matches {
			r, err := scenario.LoadAndRun(path, cfg)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
				continue
			}
			results = append(results, r)
		}
		fmt.Print(scenario.FormatText(results))
	}

	w, err := watch.New(matches, check)
	if err != nil {
		return err
	}

	fmt.Printf("Watching %d file(s). Ctrl-C to stop.\n", len(w.Paths()))
	check()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return w.Run(ctx)
}
