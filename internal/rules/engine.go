package rules

import (
	"fmt"

	"github.com/pkarpov/trustprobe/internal/event"
	"github.com/pkarpov/trustprobe/internal/refmodel"
)

// Config holds the bounds the governance document leaves open. Both are
// profile-configurable rather than guessed constants.
type Config struct {
	// ReportWindow is the number of subsequent events within which a
	// TelemetryInfluenced decision must be reported to the affected S-User.
	ReportWindow int `yaml:"report_window"`
	// InfluenceThreshold is the number of cumulative unexplained influences
	// from one telemetry source that crosses into an opacity violation.
	InfluenceThreshold int `yaml:"influence_threshold"`
}

// DefaultConfig returns the bounds used when a profile does not set them.
func DefaultConfig() Config {
	return Config{ReportWindow: 8, InfluenceThreshold: 5}
}

func (c Config) normalized() Config {
	d := DefaultConfig()
	if c.ReportWindow <= 0 {
		c.ReportWindow = d.ReportWindow
	}
	if c.InfluenceThreshold <= 0 {
		c.InfluenceThreshold = d.InfluenceThreshold
	}
	return c
}

// Engine evaluates every invariant family after each fold step. All
// applicable violations are recorded for an event (no first-match
// short-circuit) and redacted fields required by a check fail closed.
type Engine struct {
	cfg Config
	set *Set
}

// NewEngine returns an engine with an empty violation set.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg.normalized(), set: NewSet()}
}

// Violations returns the recorded set in detection order.
func (e *Engine) Violations() []Violation {
	return e.set.All()
}

// Set exposes the underlying violation set for divergence comparison.
func (e *Engine) Set() *Set {
	return e.set
}

// Evaluate runs the invariant families against the state after ev was
// folded at position pos.
func (e *Engine) Evaluate(st *refmodel.State, ev event.Event, pos int) {
	e.recordAmbiguities(st)
	e.checkAuthorityGraph(st)
	e.checkTrustOrdering(st, ev, pos)
	e.checkDelegationValidity(st, ev)
	e.checkConsentIntegrity(st, ev)
	e.checkRevocability(st, ev)
	e.checkBoundaryGovernance(st, ev)
	e.checkNonInterference(st, ev)
	e.checkEnforcementLegibility(st, pos)
}

// Finalize judges obligations still open when the sequence ends: an
// unreported influence or restriction does not get the benefit of a report
// that never arrived.
func (e *Engine) Finalize(st *refmodel.State) {
	for _, ob := range st.Obligations {
		if ob.Satisfied {
			continue
		}
		e.set.Add(Violation{
			Kind:       Opacity,
			CauseIDs:   []string{ob.EventID},
			DetectedAt: st.Clock,
			Detail:     "telemetry-influenced decision never reported to the affected S-User",
		})
	}
	for _, r := range st.Restrictions {
		if r.Reported {
			continue
		}
		e.set.Add(Violation{
			Kind:       EnforcementAsymmetry,
			CauseIDs:   []string{r.EventID},
			DetectedAt: st.Clock,
			Detail:     fmt.Sprintf("restriction on %s never reported to the restricted actor", r.RestrictedActor),
		})
	}
}

// recordAmbiguities surfaces everything the fold flagged. Evaluation treats
// ambiguity as a finding, never as a pass.
func (e *Engine) recordAmbiguities(st *refmodel.State) {
	for _, a := range st.Ambiguities {
		e.set.Add(Violation{
			Kind:       AmbiguousInput,
			CauseIDs:   []string{a.EventID},
			DetectedAt: st.Clock,
			Detail:     a.Reason,
		})
	}
}

// checkAuthorityGraph flags structurally illegal edges at construction time,
// not at use time.
func (e *Engine) checkAuthorityGraph(st *refmodel.State) {
	for _, edge := range st.Edges {
		if edge.Legal {
			continue
		}
		e.set.Add(Violation{
			Kind:       AuthorityDrift,
			CauseIDs:   []string{edge.EventID},
			DetectedAt: st.Clock,
			Detail:     fmt.Sprintf("authority edge %s -> %s inverts the hierarchy", edge.From, edge.To),
		})
	}
}

// checkTrustOrdering covers the TRUST ordering family: influenced decisions
// must be reported within the window, a redacted decision basis fails closed,
// and cumulative unexplained micro-influence crosses into opacity.
func (e *Engine) checkTrustOrdering(st *refmodel.State, ev event.Event, pos int) {
	if ev.Kind == event.TelemetryInfluenced {
		if ev.Visibility == event.VisibilityRedacted ||
			ev.FieldRedacted("telemetry_refs") || ev.FieldRedacted("decision_id") {
			e.set.Add(Violation{
				Kind:       Opacity,
				CauseIDs:   []string{ev.ID},
				DetectedAt: st.Clock,
				Scope:      ev.Scope,
				Detail:     "decision basis redacted; opacity assumed",
			})
		}
	}

	for _, ob := range st.Obligations {
		if ob.Satisfied || pos-ob.Position <= e.cfg.ReportWindow {
			continue
		}
		e.set.Add(Violation{
			Kind:       Opacity,
			CauseIDs:   []string{ob.EventID},
			DetectedAt: st.Clock,
			Detail:     fmt.Sprintf("no report reached the affected S-User within %d events", e.cfg.ReportWindow),
		})
	}

	for src, ids := range st.Influence {
		if len(ids) < e.cfg.InfluenceThreshold {
			continue
		}
		// Cite the events up to the crossing so the violation key stays
		// stable as further influence accumulates.
		e.set.Add(Violation{
			Kind:       Opacity,
			CauseIDs:   append([]string(nil), ids[:e.cfg.InfluenceThreshold]...),
			DetectedAt: st.Clock,
			Detail:     fmt.Sprintf("cumulative unexplained influence from %s crossed threshold %d", src, e.cfg.InfluenceThreshold),
		})
	}
}

// checkDelegationValidity covers the delegation family: authority exercised
// without a live chain entry covering its scope is drift.
func (e *Engine) checkDelegationValidity(st *refmodel.State, ev event.Event) {
	if ev.Kind != event.AuthorityExercised {
		return
	}
	if ev.Visibility == event.VisibilityRedacted || ev.FieldRedacted("scope") {
		e.set.Add(Violation{
			Kind:       AuthorityDrift,
			CauseIDs:   []string{ev.ID},
			DetectedAt: st.Clock,
			Detail:     "authority exercised with redacted scope; drift assumed",
		})
		return
	}
	d := st.LiveDelegationFor(ev.Source, ev.Scope, st.Clock)
	if d == nil || (ev.OnBehalfOf != "" && d.Grantor != ev.OnBehalfOf) {
		e.set.Add(Violation{
			Kind:       AuthorityDrift,
			CauseIDs:   []string{ev.ID},
			DetectedAt: st.Clock,
			Scope:      ev.Scope,
			Detail:     fmt.Sprintf("%s exercised authority over %q with no live delegation", ev.Source, ev.Scope),
		})
	}
}

// checkConsentIntegrity covers the consent family. Events acting on a
// subject require Granted consent for their purpose at the time of the
// event; coercion markers on a grant are erosion in themselves.
func (e *Engine) checkConsentIntegrity(st *refmodel.State, ev event.Event) {
	p := ev.Payload
	if ev.Kind == event.ConsentGiven && (p.Bundled || p.Coerced || p.AssumedByUse) {
		e.set.Add(Violation{
			Kind:       ConsentErosion,
			CauseIDs:   []string{ev.ID},
			DetectedAt: st.Clock,
			Detail:     "consent obtained through bundling, coercion, or assumed-by-use",
		})
	}

	if ev.Kind != event.ServiceAction && ev.Kind != event.TelemetryInfluenced {
		return
	}
	if p.Subject == "" && !ev.FieldRedacted("subject") {
		return
	}
	purpose := p.Purpose
	if purpose == "" {
		purpose = ev.Scope
	}
	if ev.Visibility == event.VisibilityRedacted || ev.FieldRedacted("subject") {
		e.set.Add(Violation{
			Kind:       ConsentErosion,
			CauseIDs:   []string{ev.ID},
			DetectedAt: st.Clock,
			Scope:      purpose,
			Detail:     "consent basis redacted; erosion assumed",
		})
		return
	}
	if st.ConsentStatus(p.Subject, purpose) != refmodel.ConsentGranted {
		e.set.Add(Violation{
			Kind:       ConsentErosion,
			CauseIDs:   []string{ev.ID},
			DetectedAt: st.Clock,
			Scope:      purpose,
			Detail:     fmt.Sprintf("action on %s without granted consent for %q", p.Subject, purpose),
		})
	}
}

// checkRevocability flags structurally irrevocable grants at grant time and
// revocations whose delay was never disclosed.
func (e *Engine) checkRevocability(st *refmodel.State, ev event.Event) {
	p := ev.Payload
	switch ev.Kind {
	case event.DelegationGranted, event.ConsentGiven:
		if p.Revocable != nil && !*p.Revocable {
			e.set.Add(Violation{
				Kind:       AuthorityDrift,
				CauseIDs:   []string{ev.ID},
				DetectedAt: st.Clock,
				Detail:     "grant marks revocation structurally impossible",
			})
		}
	case event.DelegationRevoked:
		if p.RevokeDelay > 0 && !event.Bool(p.DelayDisclosed) {
			e.set.Add(Violation{
				Kind:       AuthorityDrift,
				CauseIDs:   []string{ev.ID},
				DetectedAt: st.Clock,
				Detail:     "revocation delay not disclosed to the grantor",
			})
		}
	}
}

// checkBoundaryGovernance covers service actions inside environments: a
// missing declaration or an action beyond the declared scope collapses the
// boundary.
func (e *Engine) checkBoundaryGovernance(st *refmodel.State, ev event.Event) {
	if ev.Kind != event.ServiceAction {
		return
	}
	env := ev.Payload.Environment
	if env == "" && !ev.FieldRedacted("environment") {
		return
	}
	if ev.Visibility == event.VisibilityRedacted || ev.FieldRedacted("environment") {
		e.set.Add(Violation{
			Kind:       BoundaryCollapse,
			CauseIDs:   []string{ev.ID},
			DetectedAt: st.Clock,
			Detail:     "environment redacted; boundary collapse assumed",
		})
		return
	}
	b := st.BoundaryFor(ev.Source, env)
	if b == nil {
		e.set.Add(Violation{
			Kind:       BoundaryCollapse,
			CauseIDs:   []string{ev.ID},
			DetectedAt: st.Clock,
			Scope:      env,
			Detail:     fmt.Sprintf("%s acted in %q without a boundary declaration", ev.Source, env),
		})
		return
	}
	if ev.Scope != "" && !b.CoversScope(ev.Scope) {
		e.set.Add(Violation{
			Kind:       BoundaryCollapse,
			CauseIDs:   []string{ev.ID, b.EventID},
			DetectedAt: st.Clock,
			Scope:      env,
			Detail:     fmt.Sprintf("action scope %q exceeds declared scope of %s in %q", ev.Scope, ev.Source, env),
		})
	}
}

// checkNonInterference covers actions that affect S-Users other than the one
// in scope: without mutual consent, that is a boundary collapse.
func (e *Engine) checkNonInterference(st *refmodel.State, ev event.Event) {
	if ev.Kind != event.ServiceAction {
		return
	}
	p := ev.Payload
	for _, affected := range p.AffectedActors {
		if affected == "" || affected == p.Subject {
			continue
		}
		if p.MutualConsent {
			continue
		}
		purpose := p.Purpose
		if purpose == "" {
			purpose = ev.Scope
		}
		if st.ConsentStatus(affected, purpose) == refmodel.ConsentGranted {
			continue
		}
		e.set.Add(Violation{
			Kind:       BoundaryCollapse,
			CauseIDs:   []string{ev.ID},
			DetectedAt: st.Clock,
			Scope:      purpose,
			Detail:     fmt.Sprintf("action affects %s without mutual consent", affected),
		})
	}
}

// checkEnforcementLegibility covers restrictions that linger past the report
// window without a paired report to the restricted actor.
func (e *Engine) checkEnforcementLegibility(st *refmodel.State, pos int) {
	for _, r := range st.Restrictions {
		if r.Reported || pos-r.Position <= e.cfg.ReportWindow {
			continue
		}
		e.set.Add(Violation{
			Kind:       EnforcementAsymmetry,
			CauseIDs:   []string{r.EventID},
			DetectedAt: st.Clock,
			Detail:     fmt.Sprintf("restriction on %s not reported within %d events", r.RestrictedActor, e.cfg.ReportWindow),
		})
	}
}
