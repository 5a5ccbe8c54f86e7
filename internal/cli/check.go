package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pkarpov/trustprobe/internal/rules"
	"github.com/pkarpov/trustprobe/internal/scenario"
)

var (
	checkScenario  string
	checkWindow    int
	checkThreshold int
	checkFormat    string
)

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().StringVar(&checkScenario, "scenario", "", "Glob pattern for scenario YAML files (default: built-in suite)")
	checkCmd.Flags().IntVar(&checkWindow, "report-window", 0, "Report window in events (0 uses the default)")
	checkCmd.Flags().IntVar(&checkThreshold, "influence-threshold", 0, "Unexplained influence threshold (0 uses the default)")
	checkCmd.Flags().StringVarP(&checkFormat, "format", "f", "text", "Output format (text|json)")
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run governance assertions from scenario files",
	Long: "Loads scenario YAML files matching a glob pattern, runs each event\n" +
		"sequence through the reference model, and compares the violation set\n" +
		"against the scenario's expectations. Without --scenario, runs the\n" +
		"built-in suite covering every violation family.\n\n" +
		"Exit code 0 if all checks pass, 1 if any fail.",
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg := rules.DefaultConfig()
	if checkWindow > 0 {
		cfg.ReportWindow = checkWindow
	}
	if checkThreshold > 0 {
		cfg.InfluenceThreshold = checkThreshold
	}

	var results []*scenario.RunResult
	if checkScenario == "" {
		var err error
		results, err = scenario.RunBuiltin(cfg)
		if err != nil {
			return err
		}
	} else {
		matches, err := filepath.Glob(checkScenario)
		if err != nil {
			return fmt.Errorf("invalid glob pattern: %w", err)
		}
		if len(matches) == 0 {
			return fmt.Errorf("no scenario files match pattern: %s", checkScenario)
		}
		for _, path := range matches {
			r, err := scenario.LoadAndRun(path, cfg)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			results = append(results, r)
		}
	}

	switch checkFormat {
	case "json":
		out, err := scenario.FormatJSON(results)
		if err != nil {
			return err
		}
		fmt.Println(out)
	default:
		fmt.Print(scenario.FormatText(results))
	}

	for _, r := range results {
		if r.Failed > 0 {
			os.Exit(1)
		}
	}
	return nil
}
