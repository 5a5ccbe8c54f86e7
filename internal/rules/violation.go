// Package rules evaluates the fixed invariant set against reference-model
// state and accumulates violations. Violations are data, never errors, and
// the recorded set is monotone: no later event removes an earlier entry.
package rules

import (
	"sort"
	"strings"
)

// Kind is the closed violation taxonomy. Keeping it a fixed enumeration lets
// the divergence checker and the tests pattern-match exhaustively.
type Kind string

const (
	Opacity              Kind = "opacity_violation"
	AuthorityDrift       Kind = "authority_drift"
	ConsentErosion       Kind = "consent_erosion"
	BoundaryCollapse     Kind = "boundary_collapse"
	EnforcementAsymmetry Kind = "enforcement_asymmetry"
	AmbiguousInput       Kind = "ambiguous_input"
)

// Kinds lists every violation kind in stable order.
func Kinds() []Kind {
	return []Kind{
		Opacity,
		AuthorityDrift,
		ConsentErosion,
		BoundaryCollapse,
		EnforcementAsymmetry,
		AmbiguousInput,
	}
}

// Violation is one immutable recorded finding.
type Violation struct {
	Kind       Kind     `json:"kind"`
	CauseIDs   []string `json:"cause_ids"`
	DetectedAt int64    `json:"detected_at"`
	Scope      string   `json:"scope,omitempty"`
	Detail     string   `json:"detail,omitempty"`
}

// Key identifies a violation for deduplication: same kind, same cause set.
func (v Violation) Key() string {
	causes := append([]string(nil), v.CauseIDs...)
	sort.Strings(causes)
	return string(v.Kind) + "|" + strings.Join(causes, ",")
}

// Set is an append-only violation collection keyed by (kind, cause ids).
// Adding never removes and re-adding the same cause is a no-op, which models
// the cannot-be-erased-retroactively requirement structurally.
type Set struct {
	order []Violation
	seen  map[string]struct{}
}

// NewSet returns an empty violation set.
func NewSet() *Set {
	return &Set{seen: make(map[string]struct{})}
}

// Add records v unless a violation with the same key exists. Reports whether
// the violation was newly recorded.
func (s *Set) Add(v Violation) bool {
	key := v.Key()
	if _, ok := s.seen[key]; ok {
		return false
	}
	s.seen[key] = struct{}{}
	s.order = append(s.order, v)
	return true
}

// All returns the recorded violations in detection order. The slice is a
// copy; the set cannot be mutated through it.
func (s *Set) All() []Violation {
	out := make([]Violation, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of recorded violations.
func (s *Set) Len() int {
	return len(s.order)
}

// Has reports whether any violation of the given kind was recorded.
func (s *Set) Has(kind Kind) bool {
	for _, v := range s.order {
		if v.Kind == kind {
			return true
		}
	}
	return false
}

// HasKey reports whether a violation with the exact key was recorded.
func (s *Set) HasKey(key string) bool {
	_, ok := s.seen[key]
	return ok
}

// Counts returns per-kind violation counts.
func (s *Set) Counts() map[Kind]int {
	counts := make(map[Kind]int)
	for _, v := range s.order {
		counts[v.Kind]++
	}
	return counts
}
