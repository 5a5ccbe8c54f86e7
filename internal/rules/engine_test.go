package rules

import (
	"fmt"
	"testing"

	"github.com/pkarpov/trustprobe/internal/event"
	"github.com/pkarpov/trustprobe/internal/refmodel"
)

// run folds the sequence and evaluates after every event, mirroring the
// adapter's loop, then finalizes.
func run(t *testing.T, cfg Config, events ...event.Event) *Engine {
	t.Helper()
	e := NewEngine(cfg)
	st := refmodel.NewState()
	for i, ev := range events {
		st.Apply(ev, i)
		e.Evaluate(st, ev, i)
	}
	e.Finalize(st)
	return e
}

func fullGrant(id, grantor, grantee, scope string) event.Event {
	return event.Event{
		ID:    id,
		Kind:  event.DelegationGranted,
		Scope: scope,
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

func fullConsent(id, subject, purpose string) event.Event {
	return event.Event{
		ID:   id,
		Kind: event.ConsentGiven,
		Payload: event.Payload{
			Subject:  subject,
			Purpose:  purpose,
			Informed: event.BoolPtr(true),
			Specific: event.BoolPtr(true),
		},
	}
}

func TestAuthorityExercisedWithoutDelegation(t *testing.T) {
	e := run(t, DefaultConfig(), event.Event{
		ID:     "x1",
		Kind:   event.AuthorityExercised,
		Source: "svc-alpha",
		Scope:  "scope-x",
	})
	if !e.Set().Has(AuthorityDrift) {
		t.Fatal("expected authority drift")
	}
}

func TestAuthorityExercisedUnderLiveDelegation(t *testing.T) {
	e := run(t, DefaultConfig(),
		fullGrant("g1", "user-a", "svc-alpha", "scope-x"),
		event.Event{
			ID:         "x1",
			Kind:       event.AuthorityExercised,
			Source:     "svc-alpha",
			Scope:      "scope-x",
			OnBehalfOf: "user-a",
		},
	)
	if e.Set().Has(AuthorityDrift) {
		t.Fatal("delegated exercise must not drift")
	}
}

func TestLateGrantDoesNotEraseDrift(t *testing.T) {
	e := run(t, DefaultConfig(),
		event.Event{ID: "x1", Kind: event.AuthorityExercised, Source: "svc-alpha", Scope: "scope-x"},
		fullGrant("g1", "user-a", "svc-alpha", "scope-x"),
	)
	if !e.Set().Has(AuthorityDrift) {
		t.Fatal("a grant after the fact must not launder the drift")
	}
}

func TestViolationSetIsMonotone(t *testing.T) {
	e := NewEngine(DefaultConfig())
	st := refmodel.NewState()

	drift := event.Event{ID: "x1", Kind: event.AuthorityExercised, Source: "svc-alpha", Scope: "scope-x"}
	st.Apply(drift, 0)
	e.Evaluate(st, drift, 0)
	before := e.Set().Len()
	if before == 0 {
		t.Fatal("expected a violation to be recorded")
	}

	fix := fullGrant("g1", "user-a", "svc-alpha", "scope-x")
	st.Apply(fix, 1)
	e.Evaluate(st, fix, 1)
	if e.Set().Len() < before {
		t.Fatal("violation set shrank")
	}
}

func TestExerciseAfterRevocationIsDrift(t *testing.T) {
	e := run(t, DefaultConfig(),
		fullGrant("g1", "user-a", "svc-alpha", "scope-x"),
		event.Event{
			ID:      "r1",
			Kind:    event.DelegationRevoked,
			Scope:   "scope-x",
			Payload: event.Payload{DelegationID: "dl-g1"},
		},
		event.Event{
			ID:         "x1",
			Kind:       event.AuthorityExercised,
			Source:     "svc-alpha",
			Scope:      "scope-x",
			OnBehalfOf: "user-a",
		},
	)
	if !e.Set().Has(AuthorityDrift) {
		t.Fatal("exercise after revocation must drift")
	}
}

func TestIrrevocableGrantIsDriftAtGrantTime(t *testing.T) {
	g := fullGrant("g1", "user-a", "svc-alpha", "scope-x")
	g.Payload.Revocable = event.BoolPtr(false)
	e := run(t, DefaultConfig(), g)
	if !e.Set().Has(AuthorityDrift) {
		t.Fatal("an irrevocable grant is drift when constructed")
	}
}

func TestUndisclosedRevocationDelay(t *testing.T) {
	e := run(t, DefaultConfig(),
		fullGrant("g1", "user-a", "svc-alpha", "scope-x"),
		event.Event{
			ID:      "r1",
			Kind:    event.DelegationRevoked,
			Scope:   "scope-x",
			Payload: event.Payload{DelegationID: "dl-g1", RevokeDelay: 5},
		},
	)
	if !e.Set().Has(AuthorityDrift) {
		t.Fatal("an undisclosed revocation delay is drift")
	}
}

func TestIllegalAuthorityEdge(t *testing.T) {
	// The source is known as telemetry before it appears as a grantor, so
	// the constructed edge points up the hierarchy.
	e := run(t, DefaultConfig(),
		event.Event{ID: "t1", Kind: event.TelemetryRecorded, Payload: event.Payload{TelemetryID: "tm-load"}},
		fullGrant("g1", "tm-load", "svc-alpha", "scope-x"),
	)
	if !e.Set().Has(AuthorityDrift) {
		t.Fatal("telemetry granting authority to a service inverts the hierarchy")
	}
}

func TestActionWithoutConsent(t *testing.T) {
	e := run(t, DefaultConfig(), event.Event{
		ID:      "a1",
		Kind:    event.ServiceAction,
		Source:  "svc-alpha",
		Scope:   "scope-x",
		Payload: event.Payload{Subject: "user-a"},
	})
	if !e.Set().Has(ConsentErosion) {
		t.Fatal("expected consent erosion")
	}
}

func TestActionAfterConsentRevoked(t *testing.T) {
	e := run(t, DefaultConfig(),
		fullConsent("c1", "user-a", "scope-x"),
		event.Event{
			ID:      "c2",
			Kind:    event.ConsentRevoked,
			Payload: event.Payload{Subject: "user-a", Purpose: "scope-x"},
		},
		event.Event{
			ID:      "a1",
			Kind:    event.ServiceAction,
			Source:  "svc-alpha",
			Scope:   "scope-x",
			Payload: event.Payload{Subject: "user-a"},
		},
	)
	if !e.Set().Has(ConsentErosion) {
		t.Fatal("acting after revocation is erosion")
	}
}

func TestCoercionMarkersAreErosion(t *testing.T) {
	for _, marker := range []string{"bundled", "coerced", "assumed_by_use"} {
		t.Run(marker, func(t *testing.T) {
			c := fullConsent("c1", "user-a", "scope-x")
			switch marker {
			case "bundled":
				c.Payload.Bundled = true
			case "coerced":
				c.Payload.Coerced = true
			case "assumed_by_use":
				c.Payload.AssumedByUse = true
			}
			e := run(t, DefaultConfig(), c)
			if !e.Set().Has(ConsentErosion) {
				t.Fatalf("%s consent must be erosion", marker)
			}
		})
	}
}

func TestRedactedSubjectFailsClosed(t *testing.T) {
	e := run(t, DefaultConfig(), event.Event{
		ID:         "a1",
		Kind:       event.ServiceAction,
		Source:     "svc-alpha",
		Scope:      "scope-x",
		Visibility: event.VisibilityPartial,
		Payload: event.Payload{
			Subject:        "user-a",
			RedactedFields: []string{"subject"},
		},
	})
	if !e.Set().Has(ConsentErosion) {
		t.Fatal("a redacted consent basis must fail closed")
	}
}

func TestActionInUndeclaredEnvironment(t *testing.T) {
	e := run(t, DefaultConfig(), event.Event{
		ID:      "a1",
		Kind:    event.ServiceAction,
		Source:  "svc-alpha",
		Scope:   "scope-x",
		Payload: event.Payload{Environment: "env-shared"},
	})
	if !e.Set().Has(BoundaryCollapse) {
		t.Fatal("expected boundary collapse")
	}
}

func TestActionBeyondDeclaredScope(t *testing.T) {
	e := run(t, DefaultConfig(),
		event.Event{
			ID:     "b1",
			Kind:   event.BoundaryDeclared,
			Source: "svc-alpha",
			Payload: event.Payload{
				Environment:    "env-shared",
				DeclaredScopes: []string{"scope-x"},
			},
		},
		event.Event{
			ID:      "a1",
			Kind:    event.ServiceAction,
			Source:  "svc-alpha",
			Scope:   "scope-y",
			Payload: event.Payload{Environment: "env-shared"},
		},
	)
	found := false
	for _, v := range e.Violations() {
		if v.Kind == BoundaryCollapse {
			found = true
			if len(v.CauseIDs) != 2 {
				t.Fatalf("expected both the action and the declaration as causes, got %v", v.CauseIDs)
			}
		}
	}
	if !found {
		t.Fatal("expected boundary collapse")
	}
}

func TestAffectedActorWithoutMutualConsent(t *testing.T) {
	e := run(t, DefaultConfig(),
		event.Event{
			ID:     "b1",
			Kind:   event.BoundaryDeclared,
			Source: "svc-alpha",
			Payload: event.Payload{
				Environment:    "env-shared",
				DeclaredScopes: []string{"scope-x"},
			},
		},
		event.Event{
			ID:     "a1",
			Kind:   event.ServiceAction,
			Source: "svc-alpha",
			Scope:  "scope-x",
			Payload: event.Payload{
				Environment:    "env-shared",
				AffectedActors: []string{"user-b"},
			},
		},
	)
	if !e.Set().Has(BoundaryCollapse) {
		t.Fatal("affecting a bystander without mutual consent collapses the boundary")
	}
}

func TestUnreportedDecisionIsOpacityAtFinalize(t *testing.T) {
	e := run(t, DefaultConfig(),
		fullConsent("c1", "user-a", "scope-x"),
		event.Event{
			ID:     "d1",
			Kind:   event.TelemetryInfluenced,
			Source: "svc-alpha",
			Scope:  "scope-x",
			Payload: event.Payload{
				DecisionID:    "dc-1",
				TelemetryRefs: []string{"tm-load"},
				Subject:       "user-a",
				Explained:     event.BoolPtr(true),
			},
		},
	)
	if !e.Set().Has(Opacity) {
		t.Fatal("an unreported decision is opacity at end of sequence")
	}
}

func TestReportedDecisionStaysClean(t *testing.T) {
	e := run(t, DefaultConfig(),
		fullConsent("c1", "user-a", "scope-x"),
		event.Event{
			ID:     "d1",
			Kind:   event.TelemetryInfluenced,
			Source: "svc-alpha",
			Scope:  "scope-x",
			Payload: event.Payload{
				DecisionID:    "dc-1",
				TelemetryRefs: []string{"tm-load"},
				Subject:       "user-a",
				Explained:     event.BoolPtr(true),
			},
		},
		event.Event{
			ID:      "rp1",
			Kind:    event.Report,
			Source:  "svc-alpha",
			Payload: event.Payload{InResponseTo: "dc-1", ReportTo: "user-a"},
		},
	)
	if e.Set().Has(Opacity) {
		t.Fatal("a reported decision must not be opacity")
	}
}

func TestRedactedDecisionBasisFailsClosed(t *testing.T) {
	e := run(t, DefaultConfig(), event.Event{
		ID:         "d1",
		Kind:       event.TelemetryInfluenced,
		Source:     "svc-alpha",
		Visibility: event.VisibilityPartial,
		Payload: event.Payload{
			DecisionID:     "dc-1",
			TelemetryRefs:  []string{"tm-load"},
			RedactedFields: []string{"telemetry_refs"},
		},
	})
	if !e.Set().Has(Opacity) {
		t.Fatal("a redacted decision basis is opacity immediately")
	}
}

func TestInfluenceThresholdCrossing(t *testing.T) {
	cfg := Config{ReportWindow: 100, InfluenceThreshold: 3}
	e := NewEngine(cfg)
	st := refmodel.NewState()
	for i := 0; i < 3; i++ {
		ev := event.Event{
			ID:     fmt.Sprintf("d%d", i),
			Kind:   event.TelemetryInfluenced,
			Source: "svc-alpha",
			Payload: event.Payload{
				DecisionID:    fmt.Sprintf("dc-%d", i),
				TelemetryRefs: []string{"tm-load"},
			},
		}
		st.Apply(ev, i)
		e.Evaluate(st, ev, i)
	}
	if !e.Set().Has(Opacity) {
		t.Fatal("accumulated unexplained influence must cross into opacity")
	}
	for _, v := range e.Violations() {
		if v.Kind != Opacity {
			continue
		}
		want := []string{"d0", "d1", "d2"}
		if len(v.CauseIDs) != len(want) {
			t.Fatalf("causes = %v, want %v", v.CauseIDs, want)
		}
		for i := range want {
			if v.CauseIDs[i] != want[i] {
				t.Fatalf("causes = %v, want %v", v.CauseIDs, want)
			}
		}
	}
}

func TestUnreportedRestrictionIsAsymmetry(t *testing.T) {
	e := run(t, DefaultConfig(), event.Event{
		ID:      "bv1",
		Kind:    event.BoundaryViolationObserved,
		Source:  "svc-alpha",
		Payload: event.Payload{Environment: "env-shared", RestrictedActor: "svc-beta"},
	})
	if !e.Set().Has(EnforcementAsymmetry) {
		t.Fatal("an unreported restriction is enforcement asymmetry")
	}
}

func TestReportedRestrictionStaysClean(t *testing.T) {
	e := run(t, DefaultConfig(),
		event.Event{
			ID:      "bv1",
			Kind:    event.BoundaryViolationObserved,
			Source:  "svc-alpha",
			Payload: event.Payload{Environment: "env-shared", RestrictedActor: "svc-beta"},
		},
		event.Event{
			ID:      "rp1",
			Kind:    event.Report,
			Source:  "svc-alpha",
			Payload: event.Payload{ReportTo: "svc-beta"},
		},
	)
	if e.Set().Has(EnforcementAsymmetry) {
		t.Fatal("a reported restriction must not be asymmetry")
	}
}

func TestAmbiguousInputIsRecorded(t *testing.T) {
	e := run(t, DefaultConfig(), event.Event{ID: "e1", Kind: "telepathy"})
	if !e.Set().Has(AmbiguousInput) {
		t.Fatal("unknown kinds must surface as ambiguous input")
	}
}

func TestDuplicateViolationsAreDeduplicated(t *testing.T) {
	e := NewEngine(DefaultConfig())
	st := refmodel.NewState()
	ev := event.Event{ID: "e1", Kind: "telepathy"}
	st.Apply(ev, 0)
	e.Evaluate(st, ev, 0)
	e.Evaluate(st, ev, 0)
	if e.Set().Len() != 1 {
		t.Fatalf("expected one deduplicated violation, got %d", e.Set().Len())
	}
}

func TestViolationKeySortsCauses(t *testing.T) {
	a := Violation{Kind: BoundaryCollapse, CauseIDs: []string{"b", "a"}}
	b := Violation{Kind: BoundaryCollapse, CauseIDs: []string{"a", "b"}}
	if a.Key() != b.Key() {
		t.Fatal("keys must be order-insensitive over causes")
	}
}

func TestConfigNormalization(t *testing.T) {
	e := NewEngine(Config{})
	if e.cfg.ReportWindow != DefaultConfig().ReportWindow {
		t.Fatalf("zero report window must normalize, got %d", e.cfg.ReportWindow)
	}
	if e.cfg.InfluenceThreshold != DefaultConfig().InfluenceThreshold {
		t.Fatalf("zero threshold must normalize, got %d", e.cfg.InfluenceThreshold)
	}
}

func BenchmarkFoldAndEvaluate(b *testing.B) {
	events := []event.Event{
		fullGrant("g1", "user-a", "svc-alpha", "scope-x"),
		fullConsent("c1", "user-a", "scope-x"),
		{ID: "x1", Kind: event.AuthorityExercised, Source: "svc-alpha", Scope: "scope-x",
			Payload: event.Payload{DelegationID: "dl-g1", Subject: "user-a", Explained: event.BoolPtr(true)}},
		{ID: "r1", Kind: event.Report, Source: "svc-alpha",
			Payload: event.Payload{InResponseTo: "x1", ReportTo: "user-a"}},
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e := NewEngine(DefaultConfig())
		st := refmodel.NewState()
		for i, ev := range events {
			st.Apply(ev, i)
			e.Evaluate(st, ev, i)
		}
		e.Finalize(st)
	}
}
