package ledger

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkarpov/trustprobe/internal/event"
)

// WriteFile serializes one context's chain as JSONL, one entry per line, so a
// captured sequence can be replayed or verified out of process.
func WriteFile(path string, l *Ledger, context string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("ledger: create directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("ledger: open file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, entry := range l.Iterate(context) {
		line, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("ledger: marshal entry %d: %w", entry.Position, err)
		}
		if _, err := w.Write(append(line, '\n')); err != nil {
			return fmt.Errorf("ledger: write entry %d: %w", entry.Position, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("ledger: flush: %w", err)
	}
	return f.Sync()
}

// ReadFile loads the events of a JSONL chain file in append order. The chain
// metadata on each line is ignored; callers re-append into a fresh ledger so
// the chain is rebuilt locally.
func ReadFile(path string) ([]event.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ledger: open file: %w", err)
	}
	defer f.Close()

	var events []event.Event
	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		var entry Entry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			return nil, fmt.Errorf("ledger: parse line %d: %w", lineNum, err)
		}
		events = append(events, entry.Event)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("ledger: scan: %w", err)
	}
	return events, nil
}

// VerifyResult holds the outcome of verifying a chain file.
type VerifyResult struct {
	Valid     bool   `json:"valid"`
	Lines     int    `json:"lines"`
	Error     string `json:"error,omitempty"`
	ErrorLine int    `json:"error_line,omitempty"`
}

// VerifyFile reads a JSONL chain file and validates every hash link without
// loading the whole file into memory. Returns details about the first broken
// link, if any.
func VerifyFile(path string) VerifyResult {
	f, err := os.Open(path)
	if err != nil {
		return VerifyResult{Error: fmt.Sprintf("open: %v", err)}
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNum := 0
	prev := GenesisHash
	for scanner.Scan() {
		lineNum++
		var entry Entry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			return VerifyResult{
				Error:     fmt.Sprintf("parse error: %v", err),
				ErrorLine: lineNum,
			}
		}
		if entry.PrevHash != prev {
			return VerifyResult{
				Error:     fmt.Sprintf("prev_hash mismatch: expected %s, got %s", prev, entry.PrevHash),
				ErrorLine: lineNum,
			}
		}
		h, err := chainHash(prev, entry.Event)
		if err != nil {
			return VerifyResult{
				Error:     fmt.Sprintf("hash entry: %v", err),
				ErrorLine: lineNum,
			}
		}
		if h != entry.Hash {
			return VerifyResult{
				Error:     fmt.Sprintf("hash mismatch: expected %s, got %s", h, entry.Hash),
				ErrorLine: lineNum,
			}
		}
		prev = entry.Hash
	}
	if err := scanner.Err(); err != nil {
		return VerifyResult{Error: fmt.Sprintf("scan: %v", err)}
	}
	return VerifyResult{Valid: true, Lines: lineNum}
}
