package history

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"
)

// Ledger is the append-only history of a session. Loading a recording
// resets it exactly once, before the data_loaded entry is appended, so
// the first entry is always data_loaded. Safe for concurrent use.
type Ledger struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{entries: []Entry{}}
}

// Reset discards all entries.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = []Entry{}
}

// Append adds an entry at the end. Entries are never modified or removed
// afterwards.
func (l *Ledger) Append(e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
}

// Len returns the number of entries.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Entries returns a copy of the ledger contents in append order.
func (l *Ledger) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Serialize renders the ledger as an indented JSON array. The output is
// stable: the same entries always produce the same bytes. An empty
// ledger serializes to "[]".
func (l *Ledger) Serialize() ([]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.entries) == 0 {
		return []byte("[]"), nil
	}
	data, err := json.MarshalIndent(l.entries, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize history: %w", err)
	}
	return data, nil
}

// Parse decodes a serialized ledger. Params are re-compacted so that a
// parsed ledger serializes to the same bytes it was parsed from.
func Parse(data []byte) (*Ledger, error) {
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse history: %w", err)
	}
	for i := range entries {
		var buf bytes.Buffer
		if err := json.Compact(&buf, entries[i].Params); err != nil {
			return nil, fmt.Errorf("failed to parse history entry %d params: %w", i, err)
		}
		entries[i].Params = json.RawMessage(buf.Bytes())
	}
	if entries == nil {
		entries = []Entry{}
	}
	return &Ledger{entries: entries}, nil
}
