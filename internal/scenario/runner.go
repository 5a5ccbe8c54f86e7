// Package scenario runs hand-written event sequences through the reference
// model and checks the resulting violation set against expectations.
package scenario

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pkarpov/trustprobe/internal/adapter"
	"github.com/pkarpov/trustprobe/internal/event"
	"github.com/pkarpov/trustprobe/internal/rules"
)

// Run evaluates one scenario with a fresh reference adapter. Events missing
// an id or context get defaults so scenario files stay short.
func Run(s *Scenario, cfg rules.Config) *RunResult {
	result := &RunResult{
		Name:  s.Name,
		Total: len(s.Expect) + len(s.Forbid),
	}

	context := s.Context
	if context == "" {
		context = "scenario"
	}

	ref := adapter.NewReference(cfg)
	for _, ev := range s.Events {
		if ev.ID == "" {
			ev.ID = event.NewEventID()
		}
		if ev.Context == "" {
			ev.Context = context
		}
		if err := ref.Observe(ev); err != nil {
			result.Error = err.Error()
			result.Failed = result.Total
			return result
		}
	}
	ref.Finalize()

	present := make(map[string][]string)
	for _, v := range ref.CurrentViolations() {
		present[string(v.Kind)] = v.CauseIDs
	}

	idx := 0
	for _, kind := range s.Expect {
		idx++
		kr := KindResult{Index: idx, Kind: kind, Expected: "present"}
		if causes, ok := present[kind]; ok {
			kr.Passed = true
			kr.Actual = "present"
			kr.CauseIDs = joinIDs(causes)
			result.Passed++
		} else {
			kr.Actual = "absent"
			result.Failed++
		}
		result.Kinds = append(result.Kinds, kr)
	}
	for _, kind := range s.Forbid {
		idx++
		kr := KindResult{Index: idx, Kind: kind, Expected: "absent"}
		if causes, ok := present[kind]; ok {
			kr.Actual = "present"
			kr.CauseIDs = joinIDs(causes)
			result.Failed++
		} else {
			kr.Passed = true
			kr.Actual = "absent"
			result.Passed++
		}
		result.Kinds = append(result.Kinds, kr)
	}
	return result
}

func joinIDs(ids []string) string {
	out := ""
	for i, id := range ids {
		if i > 0 {
			out += ","
		}
		out += id
	}
	return out
}

// Load parses one scenario YAML file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario %s: %w", path, err)
	}
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if s.Name == "" {
		return nil, fmt.Errorf("scenario %s: missing name", path)
	}
	return &s, nil
}

// LoadAndRun loads a scenario file and runs it.
func LoadAndRun(path string, cfg rules.Config) (*RunResult, error) {
	s, err := Load(path)
	if err != nil {
		return nil, err
	}
	r := Run(s, cfg)
	r.File = path
	return r, nil
}

// RunBuiltin runs the embedded governance suite, one scenario per invariant
// family.
func RunBuiltin(cfg rules.Config) ([]*RunResult, error) {
	suite, err := Builtin()
	if err != nil {
		return nil, err
	}
	results := make([]*RunResult, 0, len(suite))
	for _, s := range suite {
		r := Run(s, cfg)
		r.File = "builtin"
		results = append(results, r)
	}
	return results, nil
}
