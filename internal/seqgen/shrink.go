package seqgen

import "github.com/pkarpov/trustprobe/internal/event"

// Shrink minimizes a failing sequence. failing reports whether a candidate
// sequence still reproduces the original failure; callers typically close
// over the violation kind and root cause id so the shrunk sequence keeps
// the same finding, not just any finding.
//
// The pass structure is delta debugging followed by payload simplification:
// first remove chunks of halving size until no single event can be dropped,
// then clear optional payload detail event by event. Every accepted step
// strictly reduces the candidate, so the loop terminates.
func Shrink(seq []event.Event, failing func([]event.Event) bool) []event.Event {
	cur := append([]event.Event(nil), seq...)
	if !failing(cur) {
		return cur
	}

	for chunk := len(cur) / 2; chunk >= 1; {
		removed := false
		for start := 0; start+chunk <= len(cur); {
			cand := without(cur, start, chunk)
			if failing(cand) {
				cur = cand
				removed = true
			} else {
				start += chunk
			}
		}
		if !removed {
			chunk /= 2
		}
	}

	for i := range cur {
		cand := append([]event.Event(nil), cur...)
		cand[i] = simplify(cand[i])
		if failing(cand) {
			cur = cand
		}
	}
	return cur
}

func without(seq []event.Event, start, n int) []event.Event {
	out := make([]event.Event, 0, len(seq)-n)
	out = append(out, seq[:start]...)
	return append(out, seq[start+n:]...)
}

// simplify strips detail that is usually incidental to a finding. Fields
// that invariants key on directly, ids and scopes and the visibility
// markers, are left alone; Shrink only keeps the result if the failure
// survives anyway.
func simplify(ev event.Event) event.Event {
	ev.Payload.AffectedActors = nil
	ev.Payload.InfluenceModes = nil
	if len(ev.Payload.TelemetryRefs) > 1 {
		ev.Payload.TelemetryRefs = ev.Payload.TelemetryRefs[:1]
	}
	return ev
}
