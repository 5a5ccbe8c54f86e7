package exemplar

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/pkarpov/trustprobe/internal/rules"
)

// narratives explains each violation family in one sentence. Used for the
// rendered page only, never for evaluation.
var narratives = map[rules.Kind]string{
	rules.Opacity:              "A decision's basis or report obligation stayed hidden past the accountability window.",
	rules.AuthorityDrift:       "Authority was exercised or constructed outside a live, legal delegation.",
	rules.ConsentErosion:       "An action proceeded without informed, specific, standing consent.",
	rules.BoundaryCollapse:     "A shared environment was acted on outside its declared boundary.",
	rules.EnforcementAsymmetry: "A restriction was imposed without a legible report to the restricted actor.",
	rules.AmbiguousInput:       "Input was malformed or unclassifiable and was recorded rather than guessed at.",
}

// remedies names the structural change that would make the sequence valid.
var remedies = map[rules.Kind]string{
	rules.Opacity:              "Report decisions to the affected S-User within the window and disclose telemetry influence.",
	rules.AuthorityDrift:       "Grant explicit, scoped, revocable delegation before the authority is exercised.",
	rules.ConsentErosion:       "Collect informed, specific consent per purpose; never bundle, coerce, or assume it.",
	rules.BoundaryCollapse:     "Declare the environment's boundary first and keep actions inside its scopes.",
	rules.EnforcementAsymmetry: "Pair every restriction with a report naming the restricted actor.",
	rules.AmbiguousInput:       "Emit well-formed events of a known kind with the fields the kind requires.",
}

// RenderMarkdown produces the human-readable exemplar page.
func (b *Bundle) RenderMarkdown() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Exemplar %s\n\n", b.ID)
	fmt.Fprintf(&sb, "## Context\n\n")
	fmt.Fprintf(&sb, "- Created: %s\n", b.CreatedUTC)
	fmt.Fprintf(&sb, "- Origin: %s\n", b.Source.Origin)
	if b.Source.Profile != "" {
		fmt.Fprintf(&sb, "- Profile: %s\n", b.Source.Profile)
		fmt.Fprintf(&sb, "- Seed: %d\n", b.Source.Seed)
	}
	fmt.Fprintf(&sb, "- Evaluation context: %s\n", b.Context)

	kinds := violationKinds(b.RefViolations)

	fmt.Fprintf(&sb, "\n## Violations\n\n")
	if len(b.RefViolations) == 0 {
		sb.WriteString("- (none)\n")
	}
	for _, v := range b.RefViolations {
		fmt.Fprintf(&sb, "- `%s` caused by %s\n", v.Kind, strings.Join(v.CauseIDs, ", "))
	}

	fmt.Fprintf(&sb, "\n## Events\n\n")
	sb.WriteString(jsonBlock(b.Events))

	fmt.Fprintf(&sb, "\n## Narrative\n\n")
	for _, k := range kinds {
		fmt.Fprintf(&sb, "- %s\n", narratives[k])
	}

	fmt.Fprintf(&sb, "\n## What Would Make This Valid\n\n")
	for _, k := range kinds {
		fmt.Fprintf(&sb, "- %s\n", remedies[k])
	}

	if b.Notes != "" {
		fmt.Fprintf(&sb, "\n## Notes\n\n%s\n", b.Notes)
	}
	return sb.String()
}

func violationKinds(vs []rules.Violation) []rules.Kind {
	seen := make(map[rules.Kind]bool)
	for _, v := range vs {
		seen[v.Kind] = true
	}
	kinds := make([]rules.Kind, 0, len(seen))
	for k := range seen {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

func jsonBlock(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "```\n(unrenderable)\n```\n"
	}
	return "```json\n" + string(data) + "\n```\n"
}
