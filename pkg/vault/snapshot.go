package vault

import (
	"encoding/json"
	"fmt"
	"sort"
)

// SnapshotVersion is the current serialization format version.
const SnapshotVersion = 1

// Snapshot is the full record set, ordered by ID. It is the only unit
// that is ever serialized: every mutation re-encodes the whole
// snapshot, so the blob on disk is always internally consistent.
type Snapshot struct {
	records map[string]Record
}

// NewSnapshot returns an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{records: make(map[string]Record)}
}

// Len returns the number of records.
func (s *Snapshot) Len() int { return len(s.records) }

// Get returns the record with the given ID.
func (s *Snapshot) Get(id string) (Record, bool) {
	r, ok := s.records[id]
	return r, ok
}

// Add inserts a record. The ID must not already exist.
func (s *Snapshot) Add(r Record) error {
	id := r.Ref().ID
	if id == "" {
		return fmt.Errorf("vault: record missing id")
	}
	if _, ok := s.records[id]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}
	s.records[id] = r
	return nil
}

// Update replaces the record with the same ID.
func (s *Snapshot) Update(r Record) error {
	id := r.Ref().ID
	if _, ok := s.records[id]; !ok {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	s.records[id] = r
	return nil
}

// Delete removes the record with the given ID.
func (s *Snapshot) Delete(id string) error {
	if _, ok := s.records[id]; !ok {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	delete(s.records, id)
	return nil
}

// Records returns all records sorted by ID.
func (s *Snapshot) Records() []Record {
	out := make([]Record, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ref().ID < out[j].Ref().ID })
	return out
}

// RecordsByKind returns the records of one kind sorted by ID.
func (s *Snapshot) RecordsByKind(k Kind) []Record {
	var out []Record
	for _, r := range s.records {
		if r.Kind() == k {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ref().ID < out[j].Ref().ID })
	return out
}

// Stats returns the record count per kind.
func (s *Snapshot) Stats() map[Kind]int {
	stats := make(map[Kind]int, len(Kinds()))
	for _, k := range Kinds() {
		stats[k] = 0
	}
	for _, r := range s.records {
		stats[r.Kind()]++
	}
	return stats
}

type snapshotWire struct {
	Version int               `json:"version"`
	Records []json.RawMessage `json:"records"`
}

// Encode serializes the snapshot to its versioned JSON wire form with
// records in ID order.
func (s *Snapshot) Encode() ([]byte, error) {
	wire := snapshotWire{Version: SnapshotVersion, Records: make([]json.RawMessage, 0, len(s.records))}
	for _, r := range s.Records() {
		raw, err := encodeRecord(r)
		if err != nil {
			return nil, err
		}
		wire.Records = append(wire.Records, raw)
	}
	data, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("vault: failed to encode snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot parses a serialized snapshot. It returns a fully
// valid snapshot or an error; a snapshot with any undecodable or
// duplicate record is rejected as a whole.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var wire snapshotWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("vault: failed to decode snapshot: %w", err)
	}
	if wire.Version != SnapshotVersion {
		return nil, fmt.Errorf("%w: %d", ErrSnapshotVersion, wire.Version)
	}
	s := NewSnapshot()
	for _, raw := range wire.Records {
		r, err := decodeRecord(raw)
		if err != nil {
			return nil, err
		}
		if err := s.Add(r); err != nil {
			return nil, err
		}
	}
	return s, nil
}
