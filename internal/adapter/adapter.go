// Package adapter defines the only point of contact with a system under
// test, the reference-backed default binding, and the divergence checker
// that compares the two violation streams.
package adapter

import (
	"fmt"

	"github.com/pkarpov/trustprobe/internal/event"
	"github.com/pkarpov/trustprobe/internal/ledger"
	"github.com/pkarpov/trustprobe/internal/refmodel"
	"github.com/pkarpov/trustprobe/internal/rules"
)

// SUT is the abstract system under test. Implementations must be total:
// malformed input surfaces as a violation or a returned error, never a
// panic, and all observable effects flow through this interface.
type SUT interface {
	// Observe feeds one event to the implementation.
	Observe(ev event.Event) error
	// CurrentViolations returns the implementation's violation set so far.
	CurrentViolations() []rules.Violation
}

// Finalizer is implemented by SUTs that judge open obligations when the
// sequence ends.
type Finalizer interface {
	Finalize()
}

// Reference binds the SUT interface to the engine's own ledger, reference
// model, and rule engine. It is the default system under test and the
// baseline every external adapter is compared against.
type Reference struct {
	ledger *ledger.Ledger
	states map[string]*refmodel.State
	engine *rules.Engine
	pos    int
}

// NewReference returns a fresh reference adapter. Each candidate sequence
// must get its own instance; nothing is shared across sequences.
func NewReference(cfg rules.Config) *Reference {
	return &Reference{
		ledger: ledger.New(),
		states: make(map[string]*refmodel.State),
		engine: rules.NewEngine(cfg),
	}
}

// Observe appends the event to the ledger, folds it into the context's
// derived state, and evaluates the invariant set. An out-of-order append is
// fatal to the sequence and is returned as an error.
func (r *Reference) Observe(ev event.Event) error {
	if _, err := r.ledger.Append(ev); err != nil {
		return fmt.Errorf("adapter: observe %q: %w", ev.ID, err)
	}
	st := r.states[ev.Context]
	if st == nil {
		st = refmodel.NewState()
		r.states[ev.Context] = st
	}
	st.Apply(ev, r.pos)
	r.engine.Evaluate(st, ev, r.pos)
	r.pos++
	return nil
}

// CurrentViolations returns the recorded violations in detection order.
func (r *Reference) CurrentViolations() []rules.Violation {
	return r.engine.Violations()
}

// Finalize judges obligations still open at end of sequence.
func (r *Reference) Finalize() {
	for _, ctx := range r.ledger.Contexts() {
		r.engine.Finalize(r.states[ctx])
	}
}

// Ledger exposes the underlying ledger for capture and chain verification.
func (r *Reference) Ledger() *ledger.Ledger {
	return r.ledger
}

// State returns the derived state for a context, or nil if none was folded.
func (r *Reference) State(context string) *refmodel.State {
	return r.states[context]
}
