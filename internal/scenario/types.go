package scenario

import "github.com/pkarpov/trustprobe/internal/event"

// Scenario is a named event sequence with the violation kinds it must and
// must not produce.
type Scenario struct {
	Name        string        `yaml:"name"`
	Description string        `yaml:"description,omitempty"`
	Context     string        `yaml:"context,omitempty"`
	Events      []event.Event `yaml:"events"`
	// Expect lists violation kinds that must be present after the run.
	Expect []string `yaml:"expect"`
	// Forbid lists violation kinds that must be absent after the run.
	Forbid []string `yaml:"forbid,omitempty"`
}

// KindResult is the outcome of one expectation within a scenario.
type KindResult struct {
	Index    int    `json:"index"`
	Passed   bool   `json:"passed"`
	Kind     string `json:"kind"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
	CauseIDs string `json:"cause_ids,omitempty"`
}

// RunResult is the outcome of running one scenario.
type RunResult struct {
	File   string       `json:"file,omitempty"`
	Name   string       `json:"name"`
	Total  int          `json:"total"`
	Passed int          `json:"passed"`
	Failed int          `json:"failed"`
	Error  string       `json:"error,omitempty"`
	Kinds  []KindResult `json:"kinds"`
}
