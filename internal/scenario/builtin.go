package scenario

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed suites/governance.yaml
var governanceSuiteYAML []byte

// Builtin returns the embedded governance suite. Each invariant family has
// at least one triggering scenario, plus one fully governed flow that must
// stay clean.
func Builtin() ([]*Scenario, error) {
	var suite []*Scenario
	if err := yaml.Unmarshal(governanceSuiteYAML, &suite); err != nil {
		return nil, fmt.Errorf("parse built-in suite: %w", err)
	}
	return suite, nil
}
