package core

import (
	"fmt"
	"math/rand"
	"time"
)

// Record is one synthetic product row, the unit every snapshot is built from.
type Record struct {
	ID         string
	Name       string
	Category   string
	Price      float64
	LastUpdate time.Time
}

// Snapshot is one generation's complete record set. IDs are unique within a
// snapshot; row order carries no meaning.
type Snapshot []Record

// IDs returns the record identifiers in snapshot order.
func (s Snapshot) IDs() []string {
	ids := make([]string, len(s))
	for i, rec := range s {
		ids[i] = rec.ID
	}
	return ids
}

// IDSet returns the identifiers as a set, for membership tests.
func (s Snapshot) IDSet() map[string]bool {
	set := make(map[string]bool, len(s))
	for _, rec := range s {
		set[rec.ID] = true
	}
	return set
}

// ByID indexes the snapshot by record identifier.
func (s Snapshot) ByID() map[string]Record {
	m := make(map[string]Record, len(s))
	for _, rec := range s {
		m[rec.ID] = rec
	}
	return m
}

// KeySequence allocates record identifiers for a generation run. Identifiers
// are monotonic and never reused, even after the record carrying one is
// deleted by a later generation.
type KeySequence struct {
	next int
}

func NewKeySequence() *KeySequence {
	return &KeySequence{}
}

// Next returns a fresh identifier together with its numeric index.
func (s *KeySequence) Next() (string, int) {
	n := s.next
	s.next++
	return fmt.Sprintf("key_%05d", n), n
}

// Allocated returns how many identifiers have been handed out so far.
func (s *KeySequence) Allocated() int {
	return s.next
}

// DateWindow is an inclusive range of calendar dates. Every generation draws
// its last-update dates from windows designated for it alone, so a record's
// date places it in time.
type DateWindow struct {
	Start time.Time
	End   time.Time
}

// Days returns the number of calendar days the window spans, inclusive.
func (w DateWindow) Days() int {
	return int(w.End.Sub(w.Start).Hours()/24) + 1
}

// Contains reports whether d falls inside the window.
func (w DateWindow) Contains(d time.Time) bool {
	return !d.Before(w.Start) && !d.After(w.End)
}

// Before reports whether the whole window ends before other begins.
func (w DateWindow) Before(other DateWindow) bool {
	return w.End.Before(other.Start)
}

// Random draws a date uniformly from the window.
func (w DateWindow) Random(rng *rand.Rand) time.Time {
	return w.Start.AddDate(0, 0, rng.Intn(w.Days()))
}
