package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pkarpov/trustprobe/internal/search"
)

func init() {
	rootCmd.AddCommand(profilesCmd)
}

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List available search profiles",
	Long: "Lists built-in profiles plus user profiles from\n" +
		"~/.trustprobe/profiles/.",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, name := range search.List() {
			p, err := search.Load(name)
			if err != nil {
				fmt.Printf("  %-10s (unreadable: %v)\n", name, err)
				continue
			}
			fmt.Printf("  %-10s %5d sequences x %3d events  %s\n",
				name, p.MaxSequences, p.MaxEvents, p.Description)
		}
		return nil
	},
}
