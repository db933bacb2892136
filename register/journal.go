package register

import (
	"fmt"
	"strings"

	"github.com/joshuapare/objcload/image"
)

// Journal records every pointer word a session rewrote, in order. It backs
// the report and lets a caller restore the image's original words.
type Journal struct {
	entries []JournalEntry
}

// JournalEntry records a single slot write.
type JournalEntry struct {
	Stage string // stage that wrote the slot
	Addr  uint64 // slot address
	Old   uint64 // value before the write
	New   uint64 // value written
}

// NewJournal returns an empty journal.
func NewJournal() *Journal {
	return &Journal{entries: make([]JournalEntry, 0, 64)}
}

// write stores v at addr through mem and records it. Equal values are not
// written.
func (j *Journal) write(mem image.Memory, stage string, addr, old, v uint64) (bool, error) {
	if old == v {
		return false, nil
	}
	if err := mem.WritePtr(addr, v); err != nil {
		return false, err
	}
	j.entries = append(j.entries, JournalEntry{Stage: stage, Addr: addr, Old: old, New: v})
	return true, nil
}

// rollback restores, newest first, every write recorded after the first
// mark entries and forgets them.
func (j *Journal) rollback(mem image.Memory, mark int) error {
	for i := len(j.entries) - 1; i >= mark; i-- {
		e := j.entries[i]
		if err := mem.WritePtr(e.Addr, e.Old); err != nil {
			j.entries = j.entries[:i+1]
			return fmt.Errorf("rollback %s slot 0x%X: %w", e.Stage, e.Addr, err)
		}
	}
	j.entries = j.entries[:mark]
	return nil
}

// Len returns the number of recorded writes.
func (j *Journal) Len() int { return len(j.entries) }

// Entries returns a copy of the recorded writes.
func (j *Journal) Entries() []JournalEntry {
	out := make([]JournalEntry, len(j.entries))
	copy(out, j.entries)
	return out
}

// Revert writes the original values back in reverse order and returns how
// many slots it restored. Only meaningful once the classes made live by the
// session are gone.
func (j *Journal) Revert(mem image.Memory) (int, error) {
	n := 0
	for i := len(j.entries) - 1; i >= 0; i-- {
		e := j.entries[i]
		if err := mem.WritePtr(e.Addr, e.Old); err != nil {
			return n, fmt.Errorf("revert %s slot 0x%X: %w", e.Stage, e.Addr, err)
		}
		n++
	}
	j.entries = j.entries[:0]
	return n, nil
}

// Export renders the journal for humans.
func (j *Journal) Export() string {
	if len(j.entries) == 0 {
		return "Slot journal: empty"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Slot journal: %d writes\n", len(j.entries))
	sb.WriteString(strings.Repeat("=", 60))
	sb.WriteString("\n")
	for i, e := range j.entries {
		fmt.Fprintf(&sb, "[%d] %-10s 0x%012X  0x%012X -> 0x%012X\n", i+1, e.Stage, e.Addr, e.Old, e.New)
	}
	return sb.String()
}
