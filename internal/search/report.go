package search

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// FormatText renders a run report as human-readable text.
func FormatText(r *RunReport) string {
	var b strings.Builder

	header := fmt.Sprintf("Search: profile %s, seed %d", r.Profile, r.Seed)
	fmt.Fprintln(&b, header)
	fmt.Fprintln(&b, strings.Repeat("═", len(header)))

	fmt.Fprintf(&b, "Sequences executed: %d\n", r.Executed)
	if r.Cancelled {
		fmt.Fprintln(&b, "Run cancelled before the budget was exhausted.")
	}

	if len(r.ViolationCounts) == 0 {
		fmt.Fprintln(&b, "No violations found within the search budget.")
	} else {
		kinds := make([]string, 0, len(r.ViolationCounts))
		for k := range r.ViolationCounts {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		fmt.Fprintln(&b, "Distinct violations by kind:")
		for _, k := range kinds {
			fmt.Fprintf(&b, "  %-24s %d\n", k, r.ViolationCounts[k])
		}
	}

	for _, f := range r.Findings {
		line := fmt.Sprintf("  seq %d (seed %d): %s caused by %s",
			f.Sequence, f.Seed, f.Kind, strings.Join(f.CauseIDs, ", "))
		if f.Exemplar != "" {
			line += " [" + f.Exemplar + "]"
		}
		fmt.Fprintln(&b, line)
	}

	if len(r.Divergences) > 0 {
		fmt.Fprintf(&b, "Divergences from system under test: %d\n", len(r.Divergences))
		for _, d := range r.Divergences {
			fmt.Fprintf(&b, "  pos %d event %s: %s\n", d.Position, d.EventID, d.Reason)
		}
	}

	if len(r.Exemplars) > 0 {
		fmt.Fprintf(&b, "Exemplars captured: %s\n", strings.Join(r.Exemplars, ", "))
	}

	fmt.Fprintln(&b, strings.Repeat("─", len(header)))
	status := "CLEAN"
	if len(r.Findings) > 0 || len(r.Divergences) > 0 {
		status = "FINDINGS"
	}
	fmt.Fprintf(&b, "Result: %s\n", status)
	return b.String()
}

// FormatJSON renders a run report as JSON.
func FormatJSON(r *RunReport) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal run report: %w", err)
	}
	return string(data), nil
}
