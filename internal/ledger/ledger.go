// Package ledger implements the append-only, hash-chained substrate every
// evaluation reads from. Entries are chained per context with SHA-256 over
// canonical JSON, so any prefix can be independently verified as untampered.
package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/pkarpov/trustprobe/internal/event"
)

// GenesisHash is the prev_hash for the first entry in a context's chain.
const GenesisHash = "sha256:0000000000000000000000000000000000000000000000000000000000000000"

// Position locates an appended entry within its context's chain.
type Position struct {
	Context string `json:"context"`
	Index   int    `json:"index"`
}

// Entry is one appended event plus its chain metadata. Entries are immutable
// once appended; nothing is ever removed.
type Entry struct {
	Position int         `json:"position"`
	Event    event.Event `json:"event"`
	PrevHash string      `json:"prev_hash"`
	Hash     string      `json:"hash"`
}

// OutOfOrderError reports an append whose logical timestamp precedes the
// last-appended event in the same context. It is fatal to that sequence only.
type OutOfOrderError struct {
	Context string
	Last    int64
	Got     int64
}

func (e *OutOfOrderError) Error() string {
	return fmt.Sprintf("ledger: out-of-order append in context %q: time %d precedes last %d", e.Context, e.Got, e.Last)
}

type chain struct {
	entries  []Entry
	lastTime int64
	prevHash string
	hasAny   bool
}

// Ledger holds per-context hash chains for one evaluation run. A Ledger is
// owned by a single sequence evaluation and is not safe for concurrent use;
// each candidate sequence gets a fresh instance.
type Ledger struct {
	contexts map[string]*chain
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{contexts: make(map[string]*chain)}
}

// Append records an event at the tail of its context's chain. Timestamps must
// be monotonically non-decreasing per context; violations return
// *OutOfOrderError and leave the chain untouched.
func (l *Ledger) Append(ev event.Event) (Position, error) {
	c := l.contexts[ev.Context]
	if c == nil {
		c = &chain{prevHash: GenesisHash}
		l.contexts[ev.Context] = c
	}
	if c.hasAny && ev.Time < c.lastTime {
		return Position{}, &OutOfOrderError{Context: ev.Context, Last: c.lastTime, Got: ev.Time}
	}

	h, err := chainHash(c.prevHash, ev)
	if err != nil {
		return Position{}, fmt.Errorf("ledger: hash event %q: %w", ev.ID, err)
	}
	entry := Entry{
		Position: len(c.entries),
		Event:    ev,
		PrevHash: c.prevHash,
		Hash:     h,
	}
	c.entries = append(c.entries, entry)
	c.prevHash = h
	c.lastTime = ev.Time
	c.hasAny = true
	return Position{Context: ev.Context, Index: entry.Position}, nil
}

// Iterate returns the entries of a context in append order. The returned
// slice is a copy; the ledger's own entries cannot be mutated through it.
func (l *Ledger) Iterate(context string) []Entry {
	c := l.contexts[context]
	if c == nil {
		return nil
	}
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Hash returns the chain hash at a position within a context. The second
// return is false when the position does not exist.
func (l *Ledger) Hash(context string, pos int) (string, bool) {
	c := l.contexts[context]
	if c == nil || pos < 0 || pos >= len(c.entries) {
		return "", false
	}
	return c.entries[pos].Hash, true
}

// Len returns the number of entries appended to a context.
func (l *Ledger) Len(context string) int {
	c := l.contexts[context]
	if c == nil {
		return 0
	}
	return len(c.entries)
}

// Contexts returns the sorted names of all contexts with at least one entry.
func (l *Ledger) Contexts() []string {
	names := make([]string, 0, len(l.contexts))
	for name := range l.contexts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// VerifyChain recomputes a context's hash chain from genesis and reports
// whether every link is intact.
func (l *Ledger) VerifyChain(context string) bool {
	c := l.contexts[context]
	if c == nil {
		return true
	}
	prev := GenesisHash
	for _, entry := range c.entries {
		if entry.PrevHash != prev {
			return false
		}
		h, err := chainHash(prev, entry.Event)
		if err != nil || h != entry.Hash {
			return false
		}
		prev = entry.Hash
	}
	return true
}

// chainHash computes "sha256:<hex>" over the canonical JSON of the previous
// hash and the event. Event payloads are flat structs, so json.Marshal field
// order is deterministic and the hash is reproducible.
func chainHash(prevHash string, ev event.Event) (string, error) {
	material := struct {
		PrevHash string      `json:"prev_hash"`
		Event    event.Event `json:"event"`
	}{PrevHash: prevHash, Event: ev}
	data, err := json.Marshal(material)
	if err != nil {
		return "", err
	}
	h := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(h[:]), nil
}
