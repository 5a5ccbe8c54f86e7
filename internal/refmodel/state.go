// Package refmodel folds ledger events into derived governance state:
// delegation chains, consent records, the authority graph, and boundary
// declarations. All relations are derived exclusively by the fold; nothing
// mutates them directly, and replaying the same prefix twice yields
// identical state.
package refmodel

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/pkarpov/trustprobe/internal/event"
)

// DelegationStatus is the liveness of a delegation chain entry at query time.
type DelegationStatus string

const (
	DelegationLive    DelegationStatus = "live"
	DelegationRevoked DelegationStatus = "revoked"
	DelegationNone    DelegationStatus = "none"
)

// ConsentStatus is the derived consent state for a (subject, purpose) pair.
// Transitions are monotone: absent→Granted and Granted→Revoked only.
type ConsentStatus string

const (
	ConsentGranted    ConsentStatus = "granted"
	ConsentWithdrawn  ConsentStatus = "revoked"
	ConsentNeverGiven ConsentStatus = "never_given"
)

// Delegation is one chain entry. An entry exists only if its grant event was
// marked explicit and scoped; once revoked it is never reinstated, a fresh
// grant creates a fresh entry.
type Delegation struct {
	GrantEventID string `json:"grant_event_id"`
	DelegationID string `json:"delegation_id"`
	Grantor      string `json:"grantor"`
	Grantee      string `json:"grantee"`
	Scope        string `json:"scope"`
	GrantedAt    int64  `json:"granted_at"`
	Revocable    bool   `json:"revocable"`
	Revoked      bool   `json:"revoked"`
	// EffectiveAt is the logical time a requested revocation takes effect.
	EffectiveAt       int64 `json:"effective_at,omitempty"`
	RevocationPending bool  `json:"revocation_pending,omitempty"`
}

// ActiveAt reports whether the entry conveys authority at logical time t.
func (d *Delegation) ActiveAt(t int64) bool {
	if t < d.GrantedAt {
		return false
	}
	if d.RevocationPending && t >= d.EffectiveAt {
		return false
	}
	return !d.Revoked
}

// Consent is the derived record for one (subject, purpose) pair.
type Consent struct {
	Subject      string        `json:"subject"`
	Purpose      string        `json:"purpose"`
	Status       ConsentStatus `json:"status"`
	GrantEventID string        `json:"grant_event_id,omitempty"`
}

// AuthorityEdge is one edge of the derived authority graph. Legality is fixed
// at construction from the actor-kind partial order, not at use time.
type AuthorityEdge struct {
	From    string `json:"from"`
	To      string `json:"to"`
	EventID string `json:"event_id"`
	Legal   bool   `json:"legal"`
}

// Boundary is a declared (actor, environment) participation envelope.
type Boundary struct {
	Actor          string   `json:"actor"`
	Environment    string   `json:"environment"`
	Scopes         []string `json:"scopes"`
	InfluenceModes []string `json:"influence_modes,omitempty"`
	DeclaredAt     int64    `json:"declared_at"`
	EventID        string   `json:"event_id"`
}

// CoversScope reports whether the declaration's scope set includes scope.
func (b *Boundary) CoversScope(scope string) bool {
	for _, s := range b.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// ReportObligation tracks a decision that must be reported to an S-User
// within a bounded number of subsequent events.
type ReportObligation struct {
	EventID    string `json:"event_id"`
	DecisionID string `json:"decision_id,omitempty"`
	SUser      string `json:"suser,omitempty"`
	Position   int    `json:"position"`
	Satisfied  bool   `json:"satisfied"`
}

// Restriction tracks a BoundaryViolationObserved-triggered access restriction
// that must be paired with a Report to the restricted actor.
type Restriction struct {
	EventID         string `json:"event_id"`
	RestrictedActor string `json:"restricted_actor"`
	Position        int    `json:"position"`
	Reported        bool   `json:"reported"`
}

// Ambiguity records a malformed, unknown, or marker-deficient input. It is
// data, never an error: evaluation continues and the rule engine surfaces it.
type Ambiguity struct {
	EventID string `json:"event_id"`
	Reason  string `json:"reason"`
}

// State is the full derived state for one context's fold. It is owned by a
// single sequence evaluation; fresh sequences get fresh state.
type State struct {
	Clock       int64                  `json:"clock"`
	Folded      int                    `json:"folded"`
	Actors      map[string]event.Actor `json:"actors"`
	Delegations map[string]*Delegation `json:"delegations"`
	Consents    map[string]*Consent    `json:"consents"`
	Edges       []AuthorityEdge        `json:"edges"`
	Boundaries  map[string]*Boundary   `json:"boundaries"`

	// Influence lists the ids of unexplained TelemetryInfluenced events per
	// source, in arrival order, so threshold violations can cite them.
	Influence map[string][]string `json:"influence"`

	Obligations  []*ReportObligation `json:"obligations"`
	Restrictions []*Restriction      `json:"restrictions"`
	Ambiguities  []Ambiguity         `json:"ambiguities"`

	// Redactions lists RedactionApplied event ids in arrival order. They are
	// recorded, never applied: no derived relation is erased by them.
	Redactions []string `json:"redactions,omitempty"`
}

// NewState returns an empty derived state.
func NewState() *State {
	return &State{
		Actors:      make(map[string]event.Actor),
		Delegations: make(map[string]*Delegation),
		Consents:    make(map[string]*Consent),
		Boundaries:  make(map[string]*Boundary),
		Influence:   make(map[string][]string),
	}
}

func consentKey(subject, purpose string) string {
	return subject + "\x00" + purpose
}

func boundaryKey(actor, environment string) string {
	return actor + "\x00" + environment
}

// DelegationStatus reports the status of the newest chain entry matching
// (grantor, grantee, scope) at the current clock.
func (s *State) DelegationStatus(grantor, grantee, scope string) DelegationStatus {
	found := DelegationNone
	for _, d := range s.Delegations {
		if d.Grantor != grantor || d.Grantee != grantee || d.Scope != scope {
			continue
		}
		if d.ActiveAt(s.Clock) {
			return DelegationLive
		}
		found = DelegationRevoked
	}
	return found
}

// LiveDelegationFor returns a live entry granting grantee authority over
// scope at logical time t, or nil.
func (s *State) LiveDelegationFor(grantee, scope string, t int64) *Delegation {
	for _, d := range s.Delegations {
		if d.Grantee == grantee && d.Scope == scope && d.ActiveAt(t) {
			return d
		}
	}
	return nil
}

// ConsentStatus reports the derived consent status for (subject, purpose).
func (s *State) ConsentStatus(subject, purpose string) ConsentStatus {
	if c, ok := s.Consents[consentKey(subject, purpose)]; ok {
		return c.Status
	}
	return ConsentNeverGiven
}

// AuthorityEdgeLegal reports whether an authority edge between two known
// actors would respect the Users > Services > Telemetry partial order.
// Unknown actors are never legal sources or targets.
func (s *State) AuthorityEdgeLegal(from, to string) bool {
	f, ok := s.Actors[from]
	if !ok {
		return false
	}
	t, ok := s.Actors[to]
	if !ok {
		return false
	}
	return event.EdgeLegal(f.Kind, t.Kind)
}

// BoundaryDeclared reports whether actor has declared participation in env.
func (s *State) BoundaryDeclared(actor, env string) bool {
	_, ok := s.Boundaries[boundaryKey(actor, env)]
	return ok
}

// BoundaryFor returns the declaration for (actor, env), or nil.
func (s *State) BoundaryFor(actor, env string) *Boundary {
	return s.Boundaries[boundaryKey(actor, env)]
}

// Fingerprint returns a stable digest of the derived state. Two folds of the
// same event prefix must produce equal fingerprints; the determinism property
// tests assert exactly that.
func (s *State) Fingerprint() string {
	data, err := json.Marshal(s)
	if err != nil {
		// State is plain data; marshal cannot fail on well-formed state.
		return "unhashable"
	}
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
