// Package exemplar captures minimal failing sequences as reviewable
// artifacts: a canonical JSON bundle plus a rendered Markdown page, indexed
// in an append-only README.
package exemplar

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkarpov/trustprobe/internal/event"
	"github.com/pkarpov/trustprobe/internal/rules"
)

// Source records where a bundle came from, enough to regenerate it. RunID
// identifies the capturing run and stays out of the content hash, so the
// same finding recaptured by a later run dedupes to one bundle.
type Source struct {
	Origin  string `json:"origin"`
	Profile string `json:"profile,omitempty"`
	Seed    int64  `json:"seed,omitempty"`
	RunID   string `json:"run_id,omitempty"`
}

// Bundle is one captured exemplar. ID is content-addressed over the
// sequence and the violation keys, so re-capturing the same finding from a
// different run produces the same file.
type Bundle struct {
	ID            string            `json:"id"`
	CreatedUTC    string            `json:"created_utc"`
	Source        Source            `json:"source"`
	Context       string            `json:"context"`
	Events        []event.Event     `json:"events"`
	RefViolations []rules.Violation `json:"ref_violations"`
	SUTViolations []rules.Violation `json:"sut_violations,omitempty"`
	Notes         string            `json:"notes,omitempty"`
}

// New builds a bundle from a shrunk sequence and the violations it
// produces. Volatile per-run detail (detection timestamps) is stripped so
// the content hash is stable across runs.
func New(src Source, context string, events []event.Event, refViolations, sutViolations []rules.Violation) *Bundle {
	b := &Bundle{
		CreatedUTC:    time.Now().UTC().Format(time.RFC3339),
		Source:        src,
		Context:       context,
		Events:        events,
		RefViolations: stripVolatile(refViolations),
		SUTViolations: stripVolatile(sutViolations),
	}
	b.ID = contentID(b)
	return b
}

// stripVolatile zeroes fields that vary between otherwise identical
// captures.
func stripVolatile(vs []rules.Violation) []rules.Violation {
	out := make([]rules.Violation, len(vs))
	for i, v := range vs {
		v.DetectedAt = 0
		out[i] = v
	}
	return out
}

func contentID(b *Bundle) string {
	hashable := struct {
		Context    string            `json:"context"`
		Events     []event.Event     `json:"events"`
		Violations []rules.Violation `json:"violations"`
	}{b.Context, b.Events, b.RefViolations}

	data, err := json.Marshal(hashable)
	if err != nil {
		// Bundle fields are all plain data; Marshal cannot fail here.
		panic(fmt.Sprintf("exemplar: marshal bundle: %v", err))
	}
	sum := sha256.Sum256(data)
	return "ex-" + hex.EncodeToString(sum[:6])
}

// CanonicalJSON serializes the bundle with stable field order for
// diff-friendly storage.
func (b *Bundle) CanonicalJSON() ([]byte, error) {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("exemplar: marshal bundle %s: %w", b.ID, err)
	}
	return append(data, '\n'), nil
}
