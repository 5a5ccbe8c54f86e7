package event

// ActorKind places an actor in the authority partial order:
// S-Users above services, services above telemetry sources.
type ActorKind string

const (
	ActorSUser     ActorKind = "suser"
	ActorService   ActorKind = "service"
	ActorTelemetry ActorKind = "telemetry"
	ActorAgent     ActorKind = "agent"
)

// actorRank orders kinds for the authority direction check. Lower rank sits
// higher in the hierarchy; legitimate authority flows from lower rank to
// higher rank, never the reverse.
var actorRank = map[ActorKind]int{
	ActorSUser:     0,
	ActorAgent:     1,
	ActorService:   1,
	ActorTelemetry: 2,
}

// Actor is an identity created on first reference in an event. Identity is
// immutable; scopes change only via explicit ScopeAmendment events.
type Actor struct {
	ID     string    `json:"id" yaml:"id"`
	Kind   ActorKind `json:"kind" yaml:"kind"`
	Scopes []string  `json:"scopes,omitempty" yaml:"scopes,omitempty"`
}

// HasScope reports whether the actor's scope set includes scope.
func (a Actor) HasScope(scope string) bool {
	for _, s := range a.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// EdgeLegal reports whether an authority edge from → to respects the
// Users > Services > Telemetry partial order. An edge flowing upward
// (service to user, telemetry to service) is structurally illegal.
func EdgeLegal(from, to ActorKind) bool {
	fr, ok := actorRank[from]
	if !ok {
		return false
	}
	tr, ok := actorRank[to]
	if !ok {
		return false
	}
	return fr <= tr
}
