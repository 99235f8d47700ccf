package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/distrubuted-game-mechanic/round-engine/internal/types"
)

const (
	sessionRecordKey = "session"
	entryKeyPrefix   = "entry:"
	roundKeyPrefix   = "round:"
)

// Ledger is the set of records belonging to one session: the header, one
// entry per joined player and one result per opened round.
//
// Mutations are only persisted for records marked through Touch, PutEntry or
// PutRound.
type Ledger struct {
	Session *types.GameSession
	Entries map[string]*types.PlayerEntry
	Rounds  map[int]*types.RoundResult

	version int64
	dirty   map[string]struct{}
}

// NewLedger starts a ledger for a freshly created session.
func NewLedger(session *types.GameSession) *Ledger {
	l := &Ledger{
		Session: session,
		Entries: make(map[string]*types.PlayerEntry),
		Rounds:  make(map[int]*types.RoundResult),
		dirty:   make(map[string]struct{}),
	}
	l.Touch()
	return l
}

// Version is the stored version this ledger was loaded at (0 for new ledgers).
func (l *Ledger) Version() int64 {
	return l.version
}

// Touch marks the session header as modified.
func (l *Ledger) Touch() {
	l.dirty[sessionRecordKey] = struct{}{}
}

// Entry returns the player's entry or nil.
func (l *Ledger) Entry(player string) *types.PlayerEntry {
	return l.Entries[player]
}

// PutEntry stores or replaces an entry and marks it modified.
func (l *Ledger) PutEntry(e *types.PlayerEntry) {
	l.Entries[e.Player] = e
	l.dirty[entryKeyPrefix+e.Player] = struct{}{}
}

// Round returns the result for round n or nil.
func (l *Ledger) Round(n int) *types.RoundResult {
	return l.Rounds[n]
}

// PutRound stores or replaces a round result and marks it modified.
func (l *Ledger) PutRound(r *types.RoundResult) {
	l.Rounds[r.RoundNumber] = r
	l.dirty[roundKey(r.RoundNumber)] = struct{}{}
}

// EntriesBySlot lists entries in arrival order.
func (l *Ledger) EntriesBySlot() []*types.PlayerEntry {
	entries := make([]*types.PlayerEntry, 0, len(l.Entries))
	for _, e := range l.Entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].EntrySlot < entries[j].EntrySlot
	})
	return entries
}

// Dirty reports whether any record was marked modified.
func (l *Ledger) Dirty() bool {
	return len(l.dirty) > 0
}

// EncodeDirty serializes every modified record keyed by record key.
func (l *Ledger) EncodeDirty() (map[string][]byte, error) {
	out := make(map[string][]byte, len(l.dirty))
	for key := range l.dirty {
		var v any
		switch {
		case key == sessionRecordKey:
			v = l.Session
		case strings.HasPrefix(key, entryKeyPrefix):
			v = l.Entries[strings.TrimPrefix(key, entryKeyPrefix)]
		case strings.HasPrefix(key, roundKeyPrefix):
			n, _ := strconv.Atoi(strings.TrimPrefix(key, roundKeyPrefix))
			v = l.Rounds[n]
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal record %s: %w", key, err)
		}
		out[key] = data
	}
	return out, nil
}

// Committed clears dirty marks after a successful write at the new version.
func (l *Ledger) Committed(version int64) {
	l.version = version
	l.dirty = make(map[string]struct{})
}

// DecodeLedger rebuilds a ledger from stored records.
func DecodeLedger(version int64, records map[string][]byte) (*Ledger, error) {
	l := &Ledger{
		Entries: make(map[string]*types.PlayerEntry),
		Rounds:  make(map[int]*types.RoundResult),
		version: version,
		dirty:   make(map[string]struct{}),
	}

	for key, data := range records {
		switch {
		case key == sessionRecordKey:
			var s types.GameSession
			if err := json.Unmarshal(data, &s); err != nil {
				return nil, fmt.Errorf("failed to unmarshal session: %w", err)
			}
			l.Session = &s
		case strings.HasPrefix(key, entryKeyPrefix):
			var e types.PlayerEntry
			if err := json.Unmarshal(data, &e); err != nil {
				return nil, fmt.Errorf("failed to unmarshal %s: %w", key, err)
			}
			l.Entries[e.Player] = &e
		case strings.HasPrefix(key, roundKeyPrefix):
			var r types.RoundResult
			if err := json.Unmarshal(data, &r); err != nil {
				return nil, fmt.Errorf("failed to unmarshal %s: %w", key, err)
			}
			l.Rounds[r.RoundNumber] = &r
		}
	}

	if l.Session == nil {
		return nil, ErrSessionNotFound
	}
	return l, nil
}

func roundKey(n int) string {
	return roundKeyPrefix + strconv.Itoa(n)
}
