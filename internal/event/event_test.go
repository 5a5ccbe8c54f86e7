package event

import (
	"strings"
	"testing"
)

func TestKindKnown(t *testing.T) {
	known := []Kind{
		DelegationGranted, DelegationRevoked, ConsentGiven, ConsentRevoked,
		TelemetryRecorded, TelemetryInfluenced, ServiceAction,
		AuthorityExercised, Report, BoundaryDeclared,
		BoundaryViolationObserved, RedactionApplied, ScopeAmendment,
		TimeAdvance,
	}
	for _, k := range known {
		if !k.Known() {
			t.Errorf("kind %q should be known", k)
		}
	}
	for _, k := range []Kind{"", "telepathy", "DELEGATION_GRANTED"} {
		if k.Known() {
			t.Errorf("kind %q should be unknown", k)
		}
	}
}

func TestFieldRedacted(t *testing.T) {
	tests := []struct {
		name       string
		visibility Visibility
		redacted   []string
		field      string
		want       bool
	}{
		{"full visibility hides nothing", VisibilityFull, nil, "scope", false},
		{"zero visibility hides nothing", "", nil, "scope", false},
		{"redacted hides everything", VisibilityRedacted, nil, "scope", true},
		{"partial hides listed field", VisibilityPartial, []string{"scope"}, "scope", true},
		{"partial leaves other fields readable", VisibilityPartial, []string{"scope"}, "subject", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := Event{
				Visibility: tt.visibility,
				Payload:    Payload{RedactedFields: tt.redacted},
			}
			if got := ev.FieldRedacted(tt.field); got != tt.want {
				t.Errorf("FieldRedacted(%q) = %v, want %v", tt.field, got, tt.want)
			}
		})
	}
}

func TestEdgeLegal(t *testing.T) {
	tests := []struct {
		from, to ActorKind
		want     bool
	}{
		{ActorSUser, ActorService, true},
		{ActorSUser, ActorTelemetry, true},
		{ActorSUser, ActorSUser, true},
		{ActorService, ActorService, true},
		{ActorService, ActorTelemetry, true},
		{ActorService, ActorSUser, false},
		{ActorTelemetry, ActorService, false},
		{ActorTelemetry, ActorSUser, false},
	}
	for _, tt := range tests {
		if got := EdgeLegal(tt.from, tt.to); got != tt.want {
			t.Errorf("EdgeLegal(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestNewEventID(t *testing.T) {
	a := NewEventID()
	b := NewEventID()
	if !strings.HasPrefix(a, "ev-") {
		t.Errorf("expected ev- prefix, got %q", a)
	}
	if len(a) != len("ev-")+12 {
		t.Errorf("unexpected id length: %q", a)
	}
	if a == b {
		t.Error("two generated ids should differ")
	}
}

func TestBoolHelpers(t *testing.T) {
	if Bool(nil) {
		t.Error("Bool(nil) should be false")
	}
	if !Bool(BoolPtr(true)) {
		t.Error("Bool(BoolPtr(true)) should be true")
	}
	if Bool(BoolPtr(false)) {
		t.Error("Bool(BoolPtr(false)) should be false")
	}
}
