package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pkarpov/trustprobe/internal/adapter"
	"github.com/pkarpov/trustprobe/internal/rules"
	"github.com/pkarpov/trustprobe/internal/search"
)

var (
	searchProfile    string
	searchSeed       int64
	searchSequences  int
	searchCaptureDir string
	searchFormat     string
	searchSelfTest   bool
)

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringVarP(&searchProfile, "profile", "p", "fast", "Search profile (see 'trustprobe profiles')")
	searchCmd.Flags().Int64Var(&searchSeed, "seed", 0, "Override the profile's base seed")
	searchCmd.Flags().IntVar(&searchSequences, "sequences", 0, "Override the profile's sequence budget")
	searchCmd.Flags().StringVar(&searchCaptureDir, "capture-dir", "", "Override the profile's exemplar directory")
	searchCmd.Flags().StringVarP(&searchFormat, "format", "f", "text", "Output format (text|json)")
	searchCmd.Flags().BoolVar(&searchSelfTest, "self-test", false, "Run a second reference adapter as the system under test and check divergence")
}

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Run an adversarial search under a named profile",
	Long: "Generates seeded candidate sequences, evaluates each against the\n" +
		"reference model, shrinks failures to minimal sequences, and captures\n" +
		"exemplars when the profile asks for it. Interrupting the run stops\n" +
		"cleanly at a sequence boundary.\n\n" +
		"Exit code 0 on a clean run, 1 when findings were recorded.",
	RunE: runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	p, err := search.Load(searchProfile)
	if err != nil {
		return err
	}
	if searchSeed != 0 {
		p.Seed = searchSeed
	}
	if searchSequences > 0 {
		p.MaxSequences = searchSequences
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := search.Options{CaptureDir: searchCaptureDir}
	if searchSelfTest {
		cfg := rules.Config{
			ReportWindow:       p.ReportWindow,
			InfluenceThreshold: p.InfluenceThreshold,
		}
		opts.SUTFactory = func() adapter.SUT { return adapter.NewReference(cfg) }
	}

	report, err := search.Run(ctx, p, opts)
	if err != nil {
		return err
	}

	switch searchFormat {
	case "json":
		out, err := search.FormatJSON(report)
		if err != nil {
			return err
		}
		fmt.Println(out)
	default:
		fmt.Print(search.FormatText(report))
	}

	if len(report.Findings) > 0 || len(report.Divergences) > 0 {
		os.Exit(1)
	}
	return nil
}
