package search

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkarpov/trustprobe/internal/adapter"
	"github.com/pkarpov/trustprobe/internal/event"
	"github.com/pkarpov/trustprobe/internal/exemplar"
	"github.com/pkarpov/trustprobe/internal/rules"
	"github.com/pkarpov/trustprobe/internal/seqgen"
)

// Options adjusts a run beyond what the profile carries.
type Options struct {
	// SUTFactory builds a fresh system under test per sequence. Nil runs
	// the reference model alone.
	SUTFactory func() adapter.SUT
	// CaptureDir overrides the profile's capture directory.
	CaptureDir string
}

// Finding is one distinct violation discovered during a run.
type Finding struct {
	Kind     string   `json:"kind"`
	CauseIDs []string `json:"cause_ids"`
	Sequence int      `json:"sequence"`
	Seed     int64    `json:"seed"`
	Exemplar string   `json:"exemplar,omitempty"`
}

// RunReport summarizes one search run. BudgetExhausted distinguishes "the
// budget ran out without findings" from any claim that no violation exists.
type RunReport struct {
	RunID           string               `json:"run_id"`
	Profile         string               `json:"profile"`
	Seed            int64                `json:"seed"`
	Executed        int                  `json:"executed"`
	Findings        []Finding            `json:"findings"`
	ViolationCounts map[string]int       `json:"violation_counts"`
	Divergences     []adapter.Divergence `json:"divergences,omitempty"`
	Exemplars       []string             `json:"exemplars,omitempty"`
	Cancelled       bool                 `json:"cancelled,omitempty"`
	BudgetExhausted bool                 `json:"budget_exhausted"`
	CoverageNote    string               `json:"coverage_note,omitempty"`
}

type seqResult struct {
	index       int
	seed        int64
	violations  []rules.Violation
	divergences []adapter.Divergence
	bundle      *exemplar.Bundle
}

// Run executes the profile's budget of generated sequences. Sequences are
// independent: each gets a fresh generator, reference adapter, and SUT, and
// a fixed pool of workers processes them. Cancellation is checked between
// sequences only; a sequence that has started always completes.
func Run(ctx context.Context, p *Profile, opts Options) (*RunReport, error) {
	if p.MaxSequences <= 0 {
		return nil, fmt.Errorf("search: profile %q has no sequence budget", p.Name)
	}
	workers := p.Workers
	if workers <= 0 {
		workers = 1
	}

	cfg := rules.Config{
		ReportWindow:       p.ReportWindow,
		InfluenceThreshold: p.InfluenceThreshold,
	}

	captureDir := opts.CaptureDir
	if captureDir == "" {
		captureDir = p.CaptureDir
	}
	capture := p.Capture && captureDir != ""

	runID := event.NewRunID()

	jobs := make(chan int)
	results := make(chan seqResult)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results <- runSequence(p, cfg, i, runID, opts.SUTFactory, capture)
			}
		}()
	}

	cancelled := false
	go func() {
		defer close(jobs)
		for i := 0; i < p.MaxSequences; i++ {
			select {
			case <-ctx.Done():
				cancelled = true
				return
			case jobs <- i:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	report := &RunReport{
		RunID:           runID,
		Profile:         p.Name,
		Seed:            p.Seed,
		ViolationCounts: make(map[string]int),
	}
	var store *exemplar.Store
	if capture {
		store = exemplar.NewStore(captureDir)
	}

	// A write failure must not abort the receive loop: workers block sending
	// to results until the channel is drained.
	var writeErr error

	seen := make(map[string]bool)
	for res := range results {
		report.Executed++
		report.Divergences = append(report.Divergences, res.divergences...)

		var exemplarID string
		if res.bundle != nil && store != nil && writeErr == nil {
			if _, err := store.Write(res.bundle); err != nil {
				writeErr = err
				continue
			}
			exemplarID = res.bundle.ID
			if !seenString(report.Exemplars, exemplarID) {
				report.Exemplars = append(report.Exemplars, exemplarID)
			}
		}

		for _, v := range res.violations {
			key := v.Key()
			if seen[key] {
				continue
			}
			seen[key] = true
			report.ViolationCounts[string(v.Kind)]++
			report.Findings = append(report.Findings, Finding{
				Kind:     string(v.Kind),
				CauseIDs: v.CauseIDs,
				Sequence: res.index,
				Seed:     res.seed,
				Exemplar: exemplarID,
			})
		}
	}
	if writeErr != nil {
		return nil, writeErr
	}
	report.Cancelled = cancelled
	report.BudgetExhausted = !cancelled && report.Executed == p.MaxSequences
	report.CoverageNote = fmt.Sprintf("%d of %d sequences explored", report.Executed, p.MaxSequences)
	return report, nil
}

func seenString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func runSequence(p *Profile, cfg rules.Config, index int, runID string, sutFactory func() adapter.SUT, capture bool) seqResult {
	seed := p.Seed + int64(index)
	contextName := fmt.Sprintf("seq-%04d", index)
	gen := seqgen.New(seqgen.Config{
		Seed:      seed,
		MaxEvents: p.MaxEvents,
		Context:   contextName,
	})
	seq := gen.Sequence()

	res := seqResult{index: index, seed: seed}

	ref := adapter.NewReference(cfg)
	var sut adapter.SUT
	var check *adapter.Checker
	if sutFactory != nil {
		sut = sutFactory()
		check = adapter.NewChecker()
	}

	for pos, ev := range seq {
		if err := ref.Observe(ev); err != nil {
			// Generator output is ordered; a reject here means the
			// sequence is unusable, not that evaluation failed.
			break
		}
		if sut != nil {
			if err := sut.Observe(ev); err == nil {
				check.Compare(pos, ev, ref.CurrentViolations(), sut.CurrentViolations())
			}
		}
	}
	ref.Finalize()
	if sut != nil {
		if f, ok := sut.(adapter.Finalizer); ok {
			f.Finalize()
		}
		if len(seq) > 0 {
			check.Compare(len(seq)-1, seq[len(seq)-1], ref.CurrentViolations(), sut.CurrentViolations())
		}
		res.divergences = check.Divergences()
	}

	res.violations = ref.CurrentViolations()
	if len(res.violations) == 0 || !capture {
		return res
	}

	// Shrink against the first finding so the exemplar stays pinned to a
	// single violation key.
	target := res.violations[0].Key()
	shrunk := seqgen.Shrink(seq, func(cand []event.Event) bool {
		return reproduces(cfg, cand, target)
	})

	min := adapter.NewReference(cfg)
	for _, ev := range shrunk {
		if err := min.Observe(ev); err != nil {
			return res
		}
	}
	min.Finalize()

	res.bundle = exemplar.New(
		exemplar.Source{Origin: "search", Profile: p.Name, Seed: seed, RunID: runID},
		contextName,
		shrunk,
		min.CurrentViolations(),
		nil,
	)
	return res
}

// reproduces reports whether evaluating the candidate still yields the
// target violation key.
func reproduces(cfg rules.Config, seq []event.Event, target string) bool {
	ref := adapter.NewReference(cfg)
	for _, ev := range seq {
		if err := ref.Observe(ev); err != nil {
			return false
		}
	}
	ref.Finalize()
	for _, v := range ref.CurrentViolations() {
		if v.Key() == target {
			return true
		}
	}
	return false
}
