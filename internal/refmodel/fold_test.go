package refmodel

import (
	"fmt"
	"testing"

	"github.com/pkarpov/trustprobe/internal/event"
)

func grant(id, grantor, grantee, scope string) event.Event {
	return event.Event{
		ID:      id,
		Context: "ctx-test",
		Kind:    event.DelegationGranted,
		Scope:   scope,
		Payload: event.Payload{
			DelegationID: "dl-" + id,
			Grantor:      grantor,
			Grantee:      grantee,
			Explicit:     event.BoolPtr(true),
			Scoped:       event.BoolPtr(true),
			Revocable:    event.BoolPtr(true),
		},
	}
}

func consent(id, subject, purpose string) event.Event {
	return event.Event{
		ID:      id,
		Context: "ctx-test",
		Kind:    event.ConsentGiven,
		Payload: event.Payload{
			Subject:  subject,
			Purpose:  purpose,
			Informed: event.BoolPtr(true),
			Specific: event.BoolPtr(true),
		},
	}
}

func applyAll(t *testing.T, events ...event.Event) *State {
	t.Helper()
	s := NewState()
	for i, ev := range events {
		s.Apply(ev, i)
	}
	return s
}

func TestDelegationLifecycle(t *testing.T) {
	s := applyAll(t, grant("g1", "user-a", "svc-alpha", "scope-x"))

	if got := s.DelegationStatus("user-a", "svc-alpha", "scope-x"); got != DelegationLive {
		t.Fatalf("expected live delegation, got %s", got)
	}
	if s.LiveDelegationFor("svc-alpha", "scope-x", 0) == nil {
		t.Fatal("expected a live delegation for the grantee")
	}

	revoke := event.Event{
		ID:      "r1",
		Context: "ctx-test",
		Kind:    event.DelegationRevoked,
		Scope:   "scope-x",
		Payload: event.Payload{DelegationID: "dl-g1"},
	}
	s.Apply(revoke, 1)

	if got := s.DelegationStatus("user-a", "svc-alpha", "scope-x"); got != DelegationRevoked {
		t.Fatalf("expected revoked delegation, got %s", got)
	}
	if s.LiveDelegationFor("svc-alpha", "scope-x", 0) != nil {
		t.Fatal("revoked delegation must not be live")
	}
}

func TestDelayedRevocationStaysLiveUntilEffective(t *testing.T) {
	s := applyAll(t,
		grant("g1", "user-a", "svc-alpha", "scope-x"),
		event.Event{
			ID:      "r1",
			Context: "ctx-test",
			Kind:    event.DelegationRevoked,
			Scope:   "scope-x",
			Payload: event.Payload{
				DelegationID:   "dl-g1",
				RevokeDelay:    5,
				DelayDisclosed: event.BoolPtr(true),
			},
		},
	)

	if s.LiveDelegationFor("svc-alpha", "scope-x", 3) == nil {
		t.Fatal("delegation should stay live before the delay elapses")
	}
	if s.LiveDelegationFor("svc-alpha", "scope-x", 5) != nil {
		t.Fatal("delegation must be dead once the delay elapses")
	}
}

func TestRevocationWithoutMatchIsFlagged(t *testing.T) {
	s := applyAll(t, event.Event{
		ID:      "r1",
		Context: "ctx-test",
		Kind:    event.DelegationRevoked,
		Payload: event.Payload{DelegationID: "dl-missing"},
	})
	if len(s.Ambiguities) == 0 {
		t.Fatal("expected the unmatched revocation to be flagged")
	}
}

func TestGrantWithoutMarkersCreatesNoChainEntry(t *testing.T) {
	ev := grant("g1", "user-a", "svc-alpha", "scope-x")
	ev.Payload.Explicit = event.BoolPtr(false)
	s := applyAll(t, ev)

	if got := s.DelegationStatus("user-a", "svc-alpha", "scope-x"); got != DelegationNone {
		t.Fatalf("expected no delegation, got %s", got)
	}
	if len(s.Ambiguities) == 0 {
		t.Fatal("expected the unmarked grant to be flagged")
	}
}

func TestGrantWithRedactedMarkersFailsClosed(t *testing.T) {
	ev := grant("g1", "user-a", "svc-alpha", "scope-x")
	ev.Visibility = event.VisibilityPartial
	ev.Payload.RedactedFields = []string{"explicit"}
	s := applyAll(t, ev)

	if got := s.DelegationStatus("user-a", "svc-alpha", "scope-x"); got != DelegationNone {
		t.Fatalf("redacted markers must not produce a delegation, got %s", got)
	}
}

func TestConsentTransitions(t *testing.T) {
	s := NewState()
	if got := s.ConsentStatus("user-a", "scope-x"); got != ConsentNeverGiven {
		t.Fatalf("expected never given, got %s", got)
	}

	s.Apply(consent("c1", "user-a", "scope-x"), 0)
	if got := s.ConsentStatus("user-a", "scope-x"); got != ConsentGranted {
		t.Fatalf("expected granted, got %s", got)
	}

	s.Apply(event.Event{
		ID:      "c2",
		Context: "ctx-test",
		Kind:    event.ConsentRevoked,
		Payload: event.Payload{Subject: "user-a", Purpose: "scope-x"},
	}, 1)
	if got := s.ConsentStatus("user-a", "scope-x"); got != ConsentWithdrawn {
		t.Fatalf("expected withdrawn, got %s", got)
	}
}

func TestConsentRevocationIsTerminal(t *testing.T) {
	s := applyAll(t,
		consent("c1", "user-a", "scope-x"),
		event.Event{
			ID:      "c2",
			Context: "ctx-test",
			Kind:    event.ConsentRevoked,
			Payload: event.Payload{Subject: "user-a", Purpose: "scope-x"},
		},
		consent("c3", "user-a", "scope-x"),
	)

	if got := s.ConsentStatus("user-a", "scope-x"); got != ConsentWithdrawn {
		t.Fatalf("re-grant after revocation must be ignored, got %s", got)
	}
	flagged := false
	for _, a := range s.Ambiguities {
		if a.EventID == "c3" {
			flagged = true
		}
	}
	if !flagged {
		t.Fatal("the ignored re-grant must be flagged")
	}
}

func TestConsentWithoutMarkersIsNeverGiven(t *testing.T) {
	ev := consent("c1", "user-a", "scope-x")
	ev.Payload.Informed = nil
	s := applyAll(t, ev)

	if got := s.ConsentStatus("user-a", "scope-x"); got != ConsentNeverGiven {
		t.Fatalf("absent informed marker must not grant, got %s", got)
	}
}

func TestClockAdvancesOnlyByTimeAdvance(t *testing.T) {
	s := applyAll(t,
		event.Event{ID: "e1", Context: "ctx-test", Kind: event.ServiceAction, Time: 50, Source: "svc-alpha"},
	)
	if s.Clock != 0 {
		t.Fatalf("event timestamps must not move the clock, got %d", s.Clock)
	}

	s.Apply(event.Event{
		ID:      "t1",
		Context: "ctx-test",
		Kind:    event.TimeAdvance,
		Payload: event.Payload{Ticks: 7},
	}, 1)
	if s.Clock != 7 {
		t.Fatalf("expected clock 7, got %d", s.Clock)
	}
}

func TestNegativeTimeAdvanceIsFlagged(t *testing.T) {
	s := applyAll(t, event.Event{
		ID:      "t1",
		Context: "ctx-test",
		Kind:    event.TimeAdvance,
		Payload: event.Payload{Ticks: -3},
	})
	if s.Clock != 0 {
		t.Fatalf("negative ticks must not move the clock, got %d", s.Clock)
	}
	if len(s.Ambiguities) == 0 {
		t.Fatal("expected negative ticks to be flagged")
	}
}

func TestUnknownKindIsFlaggedNotFatal(t *testing.T) {
	s := applyAll(t,
		event.Event{ID: "e1", Context: "ctx-test", Kind: "telepathy"},
		grant("g1", "user-a", "svc-alpha", "scope-x"),
	)
	if len(s.Ambiguities) != 1 {
		t.Fatalf("expected exactly one ambiguity, got %d", len(s.Ambiguities))
	}
	if got := s.DelegationStatus("user-a", "svc-alpha", "scope-x"); got != DelegationLive {
		t.Fatal("fold must continue past unknown kinds")
	}
}

func TestReportSatisfiesObligation(t *testing.T) {
	s := applyAll(t,
		event.Event{
			ID:      "d1",
			Context: "ctx-test",
			Kind:    event.TelemetryInfluenced,
			Source:  "svc-alpha",
			Payload: event.Payload{
				DecisionID:    "dc-1",
				TelemetryRefs: []string{"tm-load"},
				Subject:       "user-a",
				Explained:     event.BoolPtr(true),
			},
		},
		event.Event{
			ID:      "rp1",
			Context: "ctx-test",
			Kind:    event.Report,
			Source:  "svc-alpha",
			Payload: event.Payload{InResponseTo: "dc-1", ReportTo: "user-a"},
		},
	)

	if len(s.Obligations) != 1 {
		t.Fatalf("expected one obligation, got %d", len(s.Obligations))
	}
	if !s.Obligations[0].Satisfied {
		t.Fatal("report must satisfy the obligation")
	}
}

func TestUnexplainedInfluenceAccumulates(t *testing.T) {
	s := NewState()
	for i := 0; i < 3; i++ {
		s.Apply(event.Event{
			ID:      fmt.Sprintf("d%d", i),
			Context: "ctx-test",
			Kind:    event.TelemetryInfluenced,
			Source:  "svc-alpha",
			Payload: event.Payload{
				DecisionID:    fmt.Sprintf("dc-%d", i),
				TelemetryRefs: []string{"tm-load"},
			},
		}, i)
	}
	ids := s.Influence["tm-load"]
	if len(ids) != 3 {
		t.Fatalf("expected 3 unexplained influences, got %d", len(ids))
	}
	for i, id := range ids {
		if want := fmt.Sprintf("d%d", i); id != want {
			t.Fatalf("influence %d cites %q, want %q", i, id, want)
		}
	}
}

func TestFingerprintIsDeterministic(t *testing.T) {
	seq := []event.Event{
		grant("g1", "user-a", "svc-alpha", "scope-x"),
		consent("c1", "user-a", "scope-x"),
		{ID: "t1", Context: "ctx-test", Kind: event.TimeAdvance, Payload: event.Payload{Ticks: 3}},
		{ID: "e1", Context: "ctx-test", Kind: event.ServiceAction, Source: "svc-alpha", Scope: "scope-x", Payload: event.Payload{Subject: "user-a"}},
	}

	a := NewState()
	b := NewState()
	for i, ev := range seq {
		a.Apply(ev, i)
		b.Apply(ev, i)
		if a.Fingerprint() != b.Fingerprint() {
			t.Fatalf("fingerprints diverge after event %d", i)
		}
	}
}
