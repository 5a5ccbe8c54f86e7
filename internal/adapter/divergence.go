package adapter

import (
	"github.com/pkarpov/trustprobe/internal/event"
	"github.com/pkarpov/trustprobe/internal/rules"
)

// Divergence records one position where the SUT's violation set fell out of
// step with the reference model. It is a reportable outcome, not an error.
type Divergence struct {
	Position  int               `json:"position"`
	EventID   string            `json:"event_id"`
	Reason    string            `json:"reason"`
	Missing   []rules.Violation `json:"missing,omitempty"`
	PrevCount int               `json:"prev_count,omitempty"`
	Count     int               `json:"count,omitempty"`
}

const (
	// ReasonOmission marks a reference violation the SUT never reported.
	ReasonOmission = "omission"
	// ReasonNonMonotonic marks a SUT violation count that decreased.
	ReasonNonMonotonic = "non_monotonic"
)

// Checker compares the reference and SUT violation sets after each event.
// A SUT may detect a violation at the same or an earlier position than the
// reference; only omissions and shrinking sets diverge.
type Checker struct {
	prevCount int
	divs      []Divergence
}

// NewChecker returns a checker with no recorded divergences.
func NewChecker() *Checker {
	return &Checker{}
}

// Compare inspects both violation sets at one ledger position.
func (c *Checker) Compare(pos int, ev event.Event, ref, sut []rules.Violation) {
	sutKeys := make(map[string]struct{}, len(sut))
	for _, v := range sut {
		sutKeys[v.Key()] = struct{}{}
	}

	var missing []rules.Violation
	for _, v := range ref {
		if _, ok := sutKeys[v.Key()]; !ok {
			missing = append(missing, v)
		}
	}
	if len(missing) > 0 {
		c.divs = append(c.divs, Divergence{
			Position: pos,
			EventID:  ev.ID,
			Reason:   ReasonOmission,
			Missing:  missing,
		})
	}

	if len(sut) < c.prevCount {
		c.divs = append(c.divs, Divergence{
			Position:  pos,
			EventID:   ev.ID,
			Reason:    ReasonNonMonotonic,
			PrevCount: c.prevCount,
			Count:     len(sut),
		})
	}
	c.prevCount = len(sut)
}

// Divergences returns everything recorded so far.
func (c *Checker) Divergences() []Divergence {
	out := make([]Divergence, len(c.divs))
	copy(out, c.divs)
	return out
}
