package sfs

import (
	"github.com/bits-and-blooms/bitset"
)

// EntryIndex holds entries in on-disk order from the start marker
// (inclusive) to the volume-id entry (exclusive). It is an index-based
// arena rather than a linked list: entries is a slice keyed by position
// (positions shift when entries are spliced in or out; an entry's on-disk
// Offset does not), and reusable tracks which positions are currently
// overwritable.
type EntryIndex struct {
	entries []Entry

	// reusable has one bit per entry in entries, set when that entry's
	// Kind.reusable() is true, kept as an in-memory fast-path instead of a
	// linear Kind scan on every insertion attempt.
	reusable *bitset.BitSet
}

// newEntryIndex builds an EntryIndex from entries already in on-disk
// order (start marker first, volume-id excluded).
func newEntryIndex(entries []Entry) *EntryIndex {
	idx := &EntryIndex{entries: entries, reusable: bitset.New(uint(len(entries)))}
	for i, e := range entries {
		if e.Kind.reusable() {
			idx.reusable.Set(uint(i))
		}
	}
	return idx
}

// Len returns the number of entries, including non-live ones (unused,
// tombstones, the start marker).
func (idx *EntryIndex) Len() int { return len(idx.entries) }

// At returns a copy of the entry at position i.
func (idx *EntryIndex) At(i int) Entry { return idx.entries[i] }

// findEntry returns the unique live directory or file named name, and its
// position, or ok=false.
func (idx *EntryIndex) findEntry(name string) (Entry, int, bool) {
	for i, e := range idx.entries {
		if e.Kind.isLive() && e.Name == name {
			return e, i, true
		}
	}
	return Entry{}, -1, false
}

// findFile is findEntry restricted to KindFile.
func (idx *EntryIndex) findFile(name string) (Entry, int, bool) {
	e, i, ok := idx.findEntry(name)
	if !ok || e.Kind != KindFile {
		return Entry{}, -1, false
	}
	return e, i, true
}

// findDir is findEntry restricted to KindDirectory.
func (idx *EntryIndex) findDir(name string) (Entry, int, bool) {
	e, i, ok := idx.findEntry(name)
	if !ok || e.Kind != KindDirectory {
		return Entry{}, -1, false
	}
	return e, i, true
}

// listChildren returns the basenames of the direct live children of dir
// (path normalized, no leading separator; "" means the volume root).
// Deleted and unusable entries, and children of deleted directories, are
// never surfaced.
func (idx *EntryIndex) listChildren(dir string) []string {
	for p := dir; p != ""; p = parent(p) {
		if _, _, ok := idx.findDir(p); !ok {
			return nil
		}
	}
	var out []string
	for _, e := range idx.entries {
		if !e.Kind.isLive() {
			continue
		}
		if isDirectChild(dir, e.Name) {
			out = append(out, basename(e.Name))
		}
	}
	return out
}

// findPosByOffset returns the current slice position of the entry at the
// given on-disk offset. Used to re-locate an entry after a splice may
// have shifted positions.
func (idx *EntryIndex) findPosByOffset(offset int64) (int, bool) {
	for i, e := range idx.entries {
		if e.Offset == offset {
			return i, true
		}
	}
	return 0, false
}

// nameExists reports whether any live entry already has this exact name.
func (idx *EntryIndex) nameExists(name string) bool {
	_, _, ok := idx.findEntry(name)
	return ok
}

// hasLiveDescendant reports whether any live entry's name lies at or under
// dirPath + "/" (used by rmdir's emptiness check).
func (idx *EntryIndex) hasLiveDescendant(dirPath string) bool {
	prefix := dirPath + "/"
	for _, e := range idx.entries {
		if e.Kind.isLive() && len(e.Name) > len(prefix) && e.Name[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}

// setEntry replaces the entry at position i and refreshes its reusable
// bit.
func (idx *EntryIndex) setEntry(i int, e Entry) {
	idx.entries[i] = e
	idx.reusable.SetTo(uint(i), e.Kind.reusable())
}

// reusableRun scans from the head for the first run of consecutive
// reusable entries whose combined slot count (continuations included) is
// >= need. The run stops at the first entry that brings the count to need
// or more; reusable entries after it are not included. It returns the
// run's start position, its exclusive end position, and its total slot
// length, or ok=false.
func (idx *EntryIndex) reusableRun(need int) (startPos, endPos, slotLength int, ok bool) {
	runStart := -1
	runSlots := 0
	for i := 0; i < len(idx.entries); i++ {
		if idx.reusable.Test(uint(i)) {
			if runStart == -1 {
				runStart = i
			}
			runSlots += idx.entries[i].Slots
			if runSlots >= need {
				return runStart, i + 1, runSlots, true
			}
		} else {
			runStart = -1
			runSlots = 0
		}
	}
	return 0, 0, 0, false
}

// spliceReplace replaces the entries in [pos, pos+removeCount) with
// newEntries, keeping the reusable bitmap in sync. Positions after the
// splice shift by len(newEntries)-removeCount.
func (idx *EntryIndex) spliceReplace(pos, removeCount int, newEntries []Entry) {
	tail := append([]Entry{}, idx.entries[pos+removeCount:]...)
	idx.entries = append(idx.entries[:pos], newEntries...)
	idx.entries = append(idx.entries, tail...)
	idx.rebuildReusable()
}

// rebuildReusable recomputes the reusable bitmap from scratch; used after
// structural splices where incremental bit tracking would be error-prone.
func (idx *EntryIndex) rebuildReusable() {
	idx.reusable = bitset.New(uint(len(idx.entries)))
	for i, e := range idx.entries {
		if e.Kind.reusable() {
			idx.reusable.Set(uint(i))
		}
	}
}
