package refmodel

import (
	"fmt"

	"github.com/pkarpov/trustprobe/internal/event"
)

// Apply folds one event into the derived state. The fold is total: every
// event either transitions state or records an ambiguity. Malformed input is
// never silently discarded and never aborts the fold. pos is the event's
// zero-based position in the stream, used for report-window bookkeeping.
func (s *State) Apply(ev event.Event, pos int) {
	s.Folded++

	if !ev.Kind.Known() {
		s.flag(ev, fmt.Sprintf("unknown event kind %q", ev.Kind))
		return
	}

	s.register(ev.Source, ev.SourceKind)
	s.register(ev.OnBehalfOf, event.ActorSUser)

	switch ev.Kind {
	case event.TimeAdvance:
		s.applyTimeAdvance(ev)
	case event.ScopeAmendment:
		s.applyScopeAmendment(ev)
	case event.DelegationGranted:
		s.applyDelegationGranted(ev)
	case event.DelegationRevoked:
		s.applyDelegationRevoked(ev)
	case event.ConsentGiven:
		s.applyConsentGiven(ev)
	case event.ConsentRevoked:
		s.applyConsentRevoked(ev)
	case event.TelemetryRecorded:
		s.register(ev.Payload.TelemetryID, event.ActorTelemetry)
	case event.TelemetryInfluenced:
		s.applyTelemetryInfluenced(ev, pos)
	case event.ServiceAction, event.AuthorityExercised:
		s.register(ev.Payload.Subject, event.ActorSUser)
		for _, a := range ev.Payload.AffectedActors {
			s.register(a, event.ActorSUser)
		}
	case event.Report:
		s.applyReport(ev)
	case event.BoundaryDeclared:
		s.applyBoundaryDeclared(ev)
	case event.BoundaryViolationObserved:
		s.applyBoundaryViolationObserved(ev, pos)
	case event.RedactionApplied:
		// Redaction is recorded, never applied retroactively: the ledger and
		// the relations derived from it are immutable.
		s.Redactions = append(s.Redactions, ev.ID)
	}
}

func (s *State) applyTimeAdvance(ev event.Event) {
	if ev.Payload.Ticks < 0 {
		s.flag(ev, "time advance with negative ticks")
		return
	}
	s.Clock += ev.Payload.Ticks
}

func (s *State) applyScopeAmendment(ev event.Event) {
	if ev.Source == "" {
		s.flag(ev, "scope amendment without a source actor")
		return
	}
	actor, ok := s.Actors[ev.Source]
	if !ok {
		s.flag(ev, "scope amendment for unknown actor")
		return
	}
	actor.Scopes = append([]string(nil), ev.Payload.NewScopes...)
	s.Actors[ev.Source] = actor
}

func (s *State) applyDelegationGranted(ev event.Event) {
	p := ev.Payload
	if p.Grantor == "" || p.Grantee == "" {
		s.flag(ev, "delegation grant missing grantor or grantee")
		return
	}
	s.register(p.Grantor, event.ActorSUser)
	s.register(p.Grantee, event.ActorService)

	// The authority edge is constructed and judged here, not at use time.
	s.Edges = append(s.Edges, AuthorityEdge{
		From:    p.Grantor,
		To:      p.Grantee,
		EventID: ev.ID,
		Legal:   s.AuthorityEdgeLegal(p.Grantor, p.Grantee),
	})

	// A chain entry exists only for grants whose payload is readably marked
	// explicit and scoped. Redacted markers fail closed: no entry.
	if ev.FieldRedacted("explicit") || ev.FieldRedacted("scoped") {
		s.flag(ev, "delegation grant markers redacted")
		return
	}
	if !event.Bool(p.Explicit) || !event.Bool(p.Scoped) {
		s.flag(ev, "delegation grant not marked explicit and scoped")
		return
	}

	revocable := true
	if p.Revocable != nil {
		revocable = *p.Revocable
	}
	s.Delegations[ev.ID] = &Delegation{
		GrantEventID: ev.ID,
		DelegationID: p.DelegationID,
		Grantor:      p.Grantor,
		Grantee:      p.Grantee,
		Scope:        ev.Scope,
		GrantedAt:    s.Clock,
		Revocable:    revocable,
	}
}

func (s *State) applyDelegationRevoked(ev event.Event) {
	p := ev.Payload
	matched := false
	for _, d := range s.Delegations {
		if d.Revoked || (d.RevocationPending && s.Clock >= d.EffectiveAt) {
			// Revocation is terminal per entry; a fresh grant is a new entry.
			continue
		}
		byID := p.DelegationID != "" && d.DelegationID == p.DelegationID
		byTriple := p.DelegationID == "" && d.Grantor == p.Grantor && d.Grantee == p.Grantee && d.Scope == ev.Scope
		if !byID && !byTriple {
			continue
		}
		matched = true
		if p.RevokeDelay <= 0 {
			d.Revoked = true
		} else {
			d.RevocationPending = true
			d.EffectiveAt = s.Clock + p.RevokeDelay
		}
	}
	if !matched {
		s.flag(ev, "revocation without a matching live delegation")
	}
}

func (s *State) applyConsentGiven(ev event.Event) {
	p := ev.Payload
	subject := p.Subject
	purpose := p.Purpose
	if purpose == "" {
		purpose = ev.Scope
	}
	if subject == "" || purpose == "" {
		s.flag(ev, "consent missing subject or purpose")
		return
	}
	s.register(subject, event.ActorSUser)

	// Markers must be readable and true for a transition; anything less
	// leaves the status at NeverGiven and flags the event itself.
	if ev.FieldRedacted("informed") || ev.FieldRedacted("specific") {
		s.flag(ev, "consent markers redacted")
		return
	}
	if !event.Bool(p.Informed) || !event.Bool(p.Specific) {
		s.flag(ev, "consent lacking informed and specific markers")
		return
	}

	key := consentKey(subject, purpose)
	if existing, ok := s.Consents[key]; ok {
		// Granted stays granted; Revoked is terminal and never re-granted
		// by a later ConsentGiven for the same pair.
		if existing.Status == ConsentWithdrawn {
			s.flag(ev, "consent re-grant after revocation ignored")
		}
		return
	}
	s.Consents[key] = &Consent{
		Subject:      subject,
		Purpose:      purpose,
		Status:       ConsentGranted,
		GrantEventID: ev.ID,
	}
}

func (s *State) applyConsentRevoked(ev event.Event) {
	p := ev.Payload
	subject := p.Subject
	purpose := p.Purpose
	if purpose == "" {
		purpose = ev.Scope
	}
	c, ok := s.Consents[consentKey(subject, purpose)]
	if !ok || c.Status != ConsentGranted {
		s.flag(ev, "revocation of consent that was never granted")
		return
	}
	c.Status = ConsentWithdrawn
}

func (s *State) applyTelemetryInfluenced(ev event.Event, pos int) {
	p := ev.Payload
	sources := p.TelemetryRefs
	if len(sources) == 0 && ev.Source != "" {
		sources = []string{ev.Source}
	}
	for _, src := range sources {
		s.register(src, event.ActorTelemetry)
	}

	explained := event.Bool(p.Explained) && !ev.FieldRedacted("explained")
	if !explained {
		for _, src := range sources {
			s.Influence[src] = append(s.Influence[src], ev.ID)
		}
	}

	// A redacted decision basis is judged immediately by the rule engine;
	// only readable decisions enter the report-window bookkeeping.
	if ev.FieldRedacted("telemetry_refs") || ev.FieldRedacted("decision_id") {
		return
	}
	suser := p.Subject
	if suser == "" {
		suser = ev.OnBehalfOf
	}
	s.Obligations = append(s.Obligations, &ReportObligation{
		EventID:    ev.ID,
		DecisionID: p.DecisionID,
		SUser:      suser,
		Position:   pos,
	})
}

func (s *State) applyReport(ev event.Event) {
	p := ev.Payload
	satisfied := false
	for _, ob := range s.Obligations {
		if ob.Satisfied {
			continue
		}
		linked := p.InResponseTo != "" && (p.InResponseTo == ob.DecisionID || p.InResponseTo == ob.EventID)
		if !linked {
			continue
		}
		if ob.SUser != "" && p.ReportTo != "" && p.ReportTo != ob.SUser {
			continue
		}
		ob.Satisfied = true
		satisfied = true
	}
	for _, r := range s.Restrictions {
		if r.Reported {
			continue
		}
		if p.ReportTo != r.RestrictedActor {
			continue
		}
		if p.InResponseTo != "" && p.InResponseTo != r.EventID {
			continue
		}
		r.Reported = true
		satisfied = true
	}
	_ = satisfied // an unlinked report is still a valid standalone event
}

func (s *State) applyBoundaryDeclared(ev event.Event) {
	p := ev.Payload
	if ev.Source == "" || p.Environment == "" {
		s.flag(ev, "boundary declaration missing actor or environment")
		return
	}
	scopes := p.DeclaredScopes
	if len(scopes) == 0 && ev.Scope != "" {
		scopes = []string{ev.Scope}
	}
	s.Boundaries[boundaryKey(ev.Source, p.Environment)] = &Boundary{
		Actor:          ev.Source,
		Environment:    p.Environment,
		Scopes:         scopes,
		InfluenceModes: p.InfluenceModes,
		DeclaredAt:     s.Clock,
		EventID:        ev.ID,
	}
}

func (s *State) applyBoundaryViolationObserved(ev event.Event, pos int) {
	if ev.Payload.RestrictedActor == "" {
		s.flag(ev, "boundary violation observed without a restricted actor")
		return
	}
	s.register(ev.Payload.RestrictedActor, event.ActorService)
	s.Restrictions = append(s.Restrictions, &Restriction{
		EventID:         ev.ID,
		RestrictedActor: ev.Payload.RestrictedActor,
		Position:        pos,
	})
}

// register creates an actor on first reference. Identity is immutable: a
// later reference with a conflicting explicit kind is flagged, not applied.
func (s *State) register(id string, kind event.ActorKind) {
	if id == "" {
		return
	}
	if existing, ok := s.Actors[id]; ok {
		if kind != "" && existing.Kind != kind {
			s.Ambiguities = append(s.Ambiguities, Ambiguity{
				EventID: id,
				Reason:  fmt.Sprintf("actor %q referenced as %s but registered as %s", id, kind, existing.Kind),
			})
		}
		return
	}
	if kind == "" {
		kind = event.ActorService
	}
	s.Actors[id] = event.Actor{ID: id, Kind: kind}
}

func (s *State) flag(ev event.Event, reason string) {
	s.Ambiguities = append(s.Ambiguities, Ambiguity{EventID: ev.ID, Reason: reason})
}
