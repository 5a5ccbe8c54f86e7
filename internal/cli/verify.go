package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pkarpov/trustprobe/internal/ledger"
)

var verifyFormat string

func init() {
	rootCmd.AddCommand(verifyCmd)
	verifyCmd.Flags().StringVarP(&verifyFormat, "format", "f", "text", "Output format (text|json)")
}

var verifyCmd = &cobra.Command{
	Use:   "verify <ledger-file>",
	Short: "Verify a ledger file's hash chain",
	Long: "Recomputes the per-context hash chain from genesis and reports the\n" +
		"first line where the file was tampered with, if any.\n\n" +
		"Exit code 0 if the chain is intact, 1 if broken.",
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func runVerify(cmd *cobra.Command, args []string) error {
	result := ledger.VerifyFile(args[0])

	switch verifyFormat {
	case "json":
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal verify result: %w", err)
		}
		fmt.Println(string(data))
	default:
		if result.Valid {
			fmt.Printf("OK: %d entries, chain intact\n", result.Lines)
		} else {
			fmt.Printf("BROKEN at line %d: %s\n", result.ErrorLine, result.Error)
		}
	}

	if !result.Valid {
		os.Exit(1)
	}
	return nil
}
