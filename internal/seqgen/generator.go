// Package seqgen produces adversarial candidate event sequences and shrinks
// failing ones. Generation is driven by a seeded deterministic source so any
// reported sequence can be regenerated from its seed.
package seqgen

import (
	"fmt"
	"math/rand"

	"github.com/pkarpov/trustprobe/internal/event"
)

// Config bounds one generated sequence.
type Config struct {
	Seed      int64
	MaxEvents int
	// Context is the logical context the sequence runs in.
	Context string
}

// Generator builds candidate sequences probing invariant edges: temporal
// attacks, partial-visibility attacks, and compliance gaming.
type Generator struct {
	rnd *rand.Rand
	cfg Config

	counter int
	clock   int64

	susers   []string
	services []string
	telem    []string
	scopes   []string
	envs     []string

	grants    []grantRef
	decisions []decisionRef
	exercised []event.Event
}

type grantRef struct {
	delegationID string
	grantor      string
	grantee      string
	scope        string
}

type decisionRef struct {
	decisionID string
	subject    string
}

// New returns a generator for one sequence. Two generators built from the
// same config produce identical sequences.
func New(cfg Config) *Generator {
	if cfg.MaxEvents < 5 {
		cfg.MaxEvents = 30
	}
	if cfg.Context == "" {
		cfg.Context = "ctx-main"
	}
	return &Generator{
		rnd:      rand.New(rand.NewSource(cfg.Seed)),
		cfg:      cfg,
		susers:   []string{"user-a", "user-b"},
		services: []string{"svc-alpha", "svc-beta"},
		telem:    []string{"tm-load", "tm-usage", "tm-errs"},
		scopes:   []string{"scope-x", "scope-y", "scope-z"},
		envs:     []string{"env-shared", "env-lab"},
	}
}

// Sequence produces one candidate sequence of at most MaxEvents events.
// Roughly the last fifth is reserved for compliance-gaming events that try
// to make the earlier part of the sequence look clean.
func (g *Generator) Sequence() []event.Event {
	n := 3 + g.rnd.Intn(g.cfg.MaxEvents-2)
	body := n - n/5
	events := make([]event.Event, 0, n)
	for i := 0; i < body; i++ {
		events = append(events, g.next())
	}
	for len(events) < n {
		events = append(events, g.gaming())
	}
	return events
}

func (g *Generator) next() event.Event {
	switch g.rnd.Intn(14) {
	case 0:
		return g.delegationGranted()
	case 1:
		return g.delegationRevoked()
	case 2:
		return g.consentGiven()
	case 3:
		return g.consentRevoked()
	case 4, 5:
		return g.telemetryInfluenced()
	case 6:
		return g.report()
	case 7, 8:
		return g.serviceAction()
	case 9:
		return g.boundaryDeclared()
	case 10:
		return g.authorityExercised()
	case 11:
		return g.boundaryViolationObserved()
	case 12:
		return g.timeAdvance()
	default:
		if g.rnd.Intn(6) == 0 {
			return g.unknownKind()
		}
		return g.redactionApplied()
	}
}

// gaming appends a compliant-looking event aimed at an earlier misstep: a
// late grant for an exercised scope, a late report, or a late consent. A
// naive evaluator that re-derives state from the tail would be fooled; a
// monotonic one must not be.
func (g *Generator) gaming() event.Event {
	switch g.rnd.Intn(3) {
	case 0:
		if len(g.exercised) > 0 {
			ex := g.exercised[g.rnd.Intn(len(g.exercised))]
			ev := g.base(event.DelegationGranted)
			ev.Scope = ex.Scope
			ev.Payload.Grantor = g.suser()
			ev.Payload.Grantee = ex.Source
			ev.Payload.Explicit = event.BoolPtr(true)
			ev.Payload.Scoped = event.BoolPtr(true)
			ev.Payload.Revocable = event.BoolPtr(true)
			return ev
		}
	case 1:
		if len(g.decisions) > 0 {
			d := g.decisions[g.rnd.Intn(len(g.decisions))]
			ev := g.base(event.Report)
			ev.Source = g.service()
			ev.Payload.InResponseTo = d.decisionID
			ev.Payload.ReportTo = d.subject
			return ev
		}
	case 2:
		ev := g.base(event.ConsentGiven)
		ev.Payload.Subject = g.suser()
		ev.Payload.Purpose = g.scope()
		ev.Payload.Informed = event.BoolPtr(true)
		ev.Payload.Specific = event.BoolPtr(true)
		return ev
	}
	return g.timeAdvance()
}

func (g *Generator) base(kind event.Kind) event.Event {
	g.counter++
	return event.Event{
		ID:      fmt.Sprintf("e%03d", g.counter),
		Context: g.cfg.Context,
		Kind:    kind,
		Time:    g.clock,
	}
}

func (g *Generator) suser() string   { return g.susers[g.rnd.Intn(len(g.susers))] }
func (g *Generator) service() string { return g.services[g.rnd.Intn(len(g.services))] }
func (g *Generator) scope() string   { return g.scopes[g.rnd.Intn(len(g.scopes))] }
func (g *Generator) env() string     { return g.envs[g.rnd.Intn(len(g.envs))] }

// chance returns true with probability num/den.
func (g *Generator) chance(num, den int) bool {
	return g.rnd.Intn(den) < num
}

func (g *Generator) delegationGranted() event.Event {
	ev := g.base(event.DelegationGranted)
	ev.Scope = g.scope()
	ev.Payload.DelegationID = fmt.Sprintf("dl-%02d", g.counter)
	ev.Payload.Grantor = g.suser()
	ev.Payload.Grantee = g.service()
	ev.Payload.Explicit = event.BoolPtr(g.chance(4, 5))
	ev.Payload.Scoped = event.BoolPtr(g.chance(4, 5))
	if g.chance(1, 5) {
		ev.Payload.Revocable = event.BoolPtr(false)
	} else {
		ev.Payload.Revocable = event.BoolPtr(true)
	}
	// Occasionally invert the hierarchy: a service "granting" to a user.
	if g.chance(1, 8) {
		ev.Payload.Grantor, ev.Payload.Grantee = ev.Payload.Grantee, ev.Payload.Grantor
		ev.SourceKind = event.ActorService
	}
	g.grants = append(g.grants, grantRef{
		delegationID: ev.Payload.DelegationID,
		grantor:      ev.Payload.Grantor,
		grantee:      ev.Payload.Grantee,
		scope:        ev.Scope,
	})
	return ev
}

func (g *Generator) delegationRevoked() event.Event {
	ev := g.base(event.DelegationRevoked)
	if len(g.grants) > 0 {
		gr := g.grants[g.rnd.Intn(len(g.grants))]
		ev.Scope = gr.scope
		ev.Payload.DelegationID = gr.delegationID
		ev.Payload.Grantor = gr.grantor
		ev.Payload.Grantee = gr.grantee
	} else {
		ev.Scope = g.scope()
		ev.Payload.DelegationID = "dl-missing"
	}
	if g.chance(1, 4) {
		ev.Payload.RevokeDelay = int64(1 + g.rnd.Intn(10))
		ev.Payload.DelayDisclosed = event.BoolPtr(g.chance(1, 2))
	}
	return ev
}

func (g *Generator) consentGiven() event.Event {
	ev := g.base(event.ConsentGiven)
	ev.Payload.Subject = g.suser()
	ev.Payload.Purpose = g.scope()
	ev.Payload.Informed = event.BoolPtr(g.chance(3, 4))
	ev.Payload.Specific = event.BoolPtr(g.chance(3, 4))
	if g.chance(1, 6) {
		ev.Payload.Bundled = true
	}
	if g.chance(1, 10) {
		ev.Payload.AssumedByUse = true
	}
	return ev
}

func (g *Generator) consentRevoked() event.Event {
	ev := g.base(event.ConsentRevoked)
	ev.Payload.Subject = g.suser()
	ev.Payload.Purpose = g.scope()
	return ev
}

func (g *Generator) telemetryInfluenced() event.Event {
	ev := g.base(event.TelemetryInfluenced)
	ev.Source = g.service()
	ev.Scope = g.scope()
	ev.Payload.DecisionID = fmt.Sprintf("dc-%02d", g.counter)
	ev.Payload.TelemetryRefs = []string{g.telem[g.rnd.Intn(len(g.telem))]}
	if g.chance(1, 3) {
		ev.Payload.TelemetryRefs = append(ev.Payload.TelemetryRefs, g.telem[g.rnd.Intn(len(g.telem))])
	}
	ev.Payload.Explained = event.BoolPtr(g.chance(1, 3))
	if g.chance(1, 2) {
		ev.Payload.Subject = g.suser()
	}
	// Partial-visibility attack: hide the decision basis.
	if g.chance(1, 5) {
		ev.Visibility = event.VisibilityPartial
		ev.Payload.RedactedFields = []string{"telemetry_refs"}
	}
	g.decisions = append(g.decisions, decisionRef{
		decisionID: ev.Payload.DecisionID,
		subject:    ev.Payload.Subject,
	})
	return ev
}

func (g *Generator) report() event.Event {
	ev := g.base(event.Report)
	ev.Source = g.service()
	if len(g.decisions) > 0 && g.chance(3, 4) {
		d := g.decisions[g.rnd.Intn(len(g.decisions))]
		ev.Payload.InResponseTo = d.decisionID
		ev.Payload.ReportTo = d.subject
	} else {
		ev.Payload.ReportTo = g.suser()
	}
	return ev
}

func (g *Generator) serviceAction() event.Event {
	ev := g.base(event.ServiceAction)
	ev.Source = g.service()
	ev.Scope = g.scope()
	if g.chance(2, 3) {
		ev.Payload.Environment = g.env()
	}
	if g.chance(1, 2) {
		ev.Payload.Subject = g.suser()
	}
	if g.chance(1, 4) {
		ev.Payload.AffectedActors = []string{g.suser()}
		ev.Payload.MutualConsent = g.chance(1, 3)
	}
	return ev
}

func (g *Generator) boundaryDeclared() event.Event {
	ev := g.base(event.BoundaryDeclared)
	ev.Source = g.service()
	ev.Payload.Environment = g.env()
	ev.Payload.DeclaredScopes = []string{g.scope()}
	if g.chance(1, 2) {
		ev.Payload.DeclaredScopes = append(ev.Payload.DeclaredScopes, g.scope())
	}
	ev.Payload.InfluenceModes = []string{"observe", "suggest"}
	return ev
}

func (g *Generator) authorityExercised() event.Event {
	ev := g.base(event.AuthorityExercised)
	ev.Source = g.service()
	ev.Scope = g.scope()
	if len(g.grants) > 0 && g.chance(1, 2) {
		gr := g.grants[g.rnd.Intn(len(g.grants))]
		ev.Source = gr.grantee
		ev.Scope = gr.scope
		ev.OnBehalfOf = gr.grantor
	}
	g.exercised = append(g.exercised, ev)
	return ev
}

func (g *Generator) boundaryViolationObserved() event.Event {
	ev := g.base(event.BoundaryViolationObserved)
	ev.Source = g.service()
	ev.Payload.Environment = g.env()
	ev.Payload.RestrictedActor = g.service()
	return ev
}

// timeAdvance is the temporal attack primitive: large jumps push pending
// report obligations past their window.
func (g *Generator) timeAdvance() event.Event {
	ev := g.base(event.TimeAdvance)
	ev.Payload.Ticks = int64(1 + g.rnd.Intn(12))
	g.clock += ev.Payload.Ticks
	return ev
}

func (g *Generator) redactionApplied() event.Event {
	ev := g.base(event.RedactionApplied)
	ev.Source = g.service()
	ev.Payload.RedactedFields = []string{"explanation"}
	return ev
}

func (g *Generator) unknownKind() event.Event {
	ev := g.base(event.Kind("mystery_event"))
	ev.Source = g.service()
	return ev
}
