package event

// Kind is the closed enumeration of governance event kinds. New kinds require
// a matching fold rule in refmodel and an invariant review in rules.
type Kind string

const (
	DelegationGranted         Kind = "delegation_granted"
	DelegationRevoked         Kind = "delegation_revoked"
	ConsentGiven              Kind = "consent_given"
	ConsentRevoked            Kind = "consent_revoked"
	TelemetryRecorded         Kind = "telemetry_recorded"
	TelemetryInfluenced       Kind = "telemetry_influenced"
	ServiceAction             Kind = "service_action"
	AuthorityExercised        Kind = "authority_exercised"
	Report                    Kind = "report"
	BoundaryDeclared          Kind = "boundary_declared"
	BoundaryViolationObserved Kind = "boundary_violation_observed"
	RedactionApplied          Kind = "redaction_applied"
	ScopeAmendment            Kind = "scope_amendment"
	TimeAdvance               Kind = "time_advance"
)

var knownKinds = map[Kind]bool{
	DelegationGranted:         true,
	DelegationRevoked:         true,
	ConsentGiven:              true,
	ConsentRevoked:            true,
	TelemetryRecorded:         true,
	TelemetryInfluenced:       true,
	ServiceAction:             true,
	AuthorityExercised:        true,
	Report:                    true,
	BoundaryDeclared:          true,
	BoundaryViolationObserved: true,
	RedactionApplied:          true,
	ScopeAmendment:            true,
	TimeAdvance:               true,
}

// Known reports whether k is part of the closed event vocabulary.
func (k Kind) Known() bool {
	return knownKinds[k]
}

// Visibility describes how much of an event's payload observers may read.
type Visibility string

const (
	VisibilityFull     Visibility = "full"
	VisibilityPartial  Visibility = "partial"
	VisibilityRedacted Visibility = "redacted"
)

// Payload carries the kind-specific fields of an event. All fields are flat
// struct members (no map[string]any) to guarantee deterministic json.Marshal
// field order for reproducible hashing. Tri-state markers use *bool: nil means
// the marker was absent, which evaluation treats differently from false.
type Payload struct {
	// Delegation lifecycle.
	DelegationID   string `json:"delegation_id,omitempty" yaml:"delegation_id,omitempty"`
	Grantor        string `json:"grantor,omitempty" yaml:"grantor,omitempty"`
	Grantee        string `json:"grantee,omitempty" yaml:"grantee,omitempty"`
	Explicit       *bool  `json:"explicit,omitempty" yaml:"explicit,omitempty"`
	Scoped         *bool  `json:"scoped,omitempty" yaml:"scoped,omitempty"`
	Revocable      *bool  `json:"revocable,omitempty" yaml:"revocable,omitempty"`
	RevokeDelay    int64  `json:"revoke_delay,omitempty" yaml:"revoke_delay,omitempty"`
	DelayDisclosed *bool  `json:"delay_disclosed,omitempty" yaml:"delay_disclosed,omitempty"`

	// Consent lifecycle.
	Subject      string `json:"subject,omitempty" yaml:"subject,omitempty"`
	Purpose      string `json:"purpose,omitempty" yaml:"purpose,omitempty"`
	Informed     *bool  `json:"informed,omitempty" yaml:"informed,omitempty"`
	Specific     *bool  `json:"specific,omitempty" yaml:"specific,omitempty"`
	Bundled      bool   `json:"bundled,omitempty" yaml:"bundled,omitempty"`
	Coerced      bool   `json:"coerced,omitempty" yaml:"coerced,omitempty"`
	AssumedByUse bool   `json:"assumed_by_use,omitempty" yaml:"assumed_by_use,omitempty"`

	// Telemetry and decisions.
	TelemetryID   string   `json:"telemetry_id,omitempty" yaml:"telemetry_id,omitempty"`
	DecisionID    string   `json:"decision_id,omitempty" yaml:"decision_id,omitempty"`
	TelemetryRefs []string `json:"telemetry_refs,omitempty" yaml:"telemetry_refs,omitempty"`
	Explained     *bool    `json:"explained,omitempty" yaml:"explained,omitempty"`

	// Reporting.
	ReportTo     string `json:"report_to,omitempty" yaml:"report_to,omitempty"`
	InResponseTo string `json:"in_response_to,omitempty" yaml:"in_response_to,omitempty"`

	// Service actions and boundaries.
	Environment     string   `json:"environment,omitempty" yaml:"environment,omitempty"`
	AffectedActors  []string `json:"affected_actors,omitempty" yaml:"affected_actors,omitempty"`
	MutualConsent   bool     `json:"mutual_consent,omitempty" yaml:"mutual_consent,omitempty"`
	DeclaredScopes  []string `json:"declared_scopes,omitempty" yaml:"declared_scopes,omitempty"`
	InfluenceModes  []string `json:"influence_modes,omitempty" yaml:"influence_modes,omitempty"`
	RestrictedActor string   `json:"restricted_actor,omitempty" yaml:"restricted_actor,omitempty"`

	// Redaction.
	RedactedFields []string `json:"redacted_fields,omitempty" yaml:"redacted_fields,omitempty"`

	// Scope amendment.
	NewScopes []string `json:"new_scopes,omitempty" yaml:"new_scopes,omitempty"`

	// Logical time.
	Ticks int64 `json:"ticks,omitempty" yaml:"ticks,omitempty"`
}

// Event is one immutable, logically-timestamped record in a context's stream.
// Ordering within a context is total; across contexts only partial.
type Event struct {
	ID         string     `json:"id" yaml:"id"`
	Context    string     `json:"context" yaml:"context"`
	Kind       Kind       `json:"kind" yaml:"kind"`
	Time       int64      `json:"time" yaml:"time"`
	Source     string     `json:"source,omitempty" yaml:"source,omitempty"`
	SourceKind ActorKind  `json:"source_kind,omitempty" yaml:"source_kind,omitempty"`
	OnBehalfOf string     `json:"on_behalf_of,omitempty" yaml:"on_behalf_of,omitempty"`
	Scope      string     `json:"scope,omitempty" yaml:"scope,omitempty"`
	Visibility Visibility `json:"visibility,omitempty" yaml:"visibility,omitempty"`
	Payload    Payload    `json:"payload" yaml:"payload"`
}

// FieldRedacted reports whether a named payload field is unreadable to an
// evaluator. A fully redacted event hides every field; a partial event hides
// the fields it lists.
func (e Event) FieldRedacted(name string) bool {
	if e.Visibility == VisibilityRedacted {
		return true
	}
	if e.Visibility != VisibilityPartial {
		return false
	}
	for _, f := range e.Payload.RedactedFields {
		if f == name {
			return true
		}
	}
	return false
}

// Bool dereferences a tri-state marker, treating absence as false.
func Bool(p *bool) bool {
	return p != nil && *p
}

// BoolPtr builds a tri-state marker for literal payloads.
func BoolPtr(v bool) *bool {
	return &v
}
