package sfs

import "sort"

// noTombstone marks a plain free extent (an offset field can never
// legitimately be negative).
const noTombstone int64 = -1

// extent is a contiguous, inclusive block range. A tombstone extent
// carries the on-disk offset of the deleted-file entry it still belongs
// to, rather than a raw back-pointer: an offset is stable across
// EntryIndex splices, unlike a slice position, so no rebinding is needed
// when entries are spliced in or out.
type extent struct {
	Start  int64
	Length int64

	tombstoneOffset int64
}

func (x extent) end() int64         { return x.Start + x.Length - 1 }
func (x extent) isTombstone() bool  { return x.tombstoneOffset != noTombstone }

// FreeMap is the ordered-by-start-block list of extents in the data
// region: free extents (available for allocation) and tombstone extents
// (a deleted file's blocks, still addressable by a reclaiming insertion).
type FreeMap struct {
	extents []extent
}

// buildFreeMap derives the FreeMap by differencing live-file, unusable,
// and tombstoned-deleted-file extents against [reservedBlocks,
// dataEndBlock), mirroring block_list_from_entries + sort_block_list +
// block_list_to_free_list. dataEndBlock is exclusive.
func buildFreeMap(idx *EntryIndex, reservedBlocks, dataEndBlock int64) *FreeMap {
	var occupied []extent
	for _, e := range idx.entries {
		switch e.Kind {
		case KindFile, KindUnusableExtent:
			if e.EndBlock < e.StartBlock {
				continue // empty-file sentinel: no extent occupied.
			}
			occupied = append(occupied, extent{Start: e.StartBlock, Length: e.EndBlock - e.StartBlock + 1, tombstoneOffset: noTombstone})
		case KindDeletedFile:
			if e.EndBlock < e.StartBlock {
				continue
			}
			occupied = append(occupied, extent{Start: e.StartBlock, Length: e.EndBlock - e.StartBlock + 1, tombstoneOffset: e.Offset})
		}
	}

	// Sort ascending by start block. A straightforward stable sort stands
	// in for the source's merge-sort-by-successive-doubling
	// (sort_block_list/conquer); the result is identical, a list ordered
	// by start block, which is all later code depends on.
	sort.SliceStable(occupied, func(a, b int) bool { return occupied[a].Start < occupied[b].Start })

	fm := &FreeMap{}
	cursor := reservedBlocks
	for _, o := range occupied {
		if o.Start > cursor {
			fm.appendFree(cursor, o.Start-cursor)
		}
		if o.isTombstone() {
			fm.extents = append(fm.extents, o)
		}
		cursor = o.end() + 1
	}
	if cursor < dataEndBlock {
		fm.appendFree(cursor, dataEndBlock-cursor)
	}
	return fm
}

// appendFree appends a plain free extent, coalescing with the previous
// entry if it is also free and adjacent. Tombstones are never coalesced
// with neighboring free extents, so a reclaim can still address one
// individually by its entry offset.
func (fm *FreeMap) appendFree(start, length int64) {
	if length <= 0 {
		return
	}
	if n := len(fm.extents); n > 0 {
		last := &fm.extents[n-1]
		if !last.isTombstone() && last.end()+1 == start {
			last.Length += length
			return
		}
	}
	fm.extents = append(fm.extents, extent{Start: start, Length: length, tombstoneOffset: noTombstone})
}

// findRun locates the earliest contiguous chain of free (non-tombstone)
// extents whose combined length is at least need. When startHint is
// nonzero, the search restarts whenever the chain would not continue
// contiguously from startHint (free_list_find's "next != start_block"
// restart rule); otherwise it is a plain first-fit scan from the head.
func (fm *FreeMap) findRun(startHint, need int64) (begin, count int, total int64, ok bool) {
	i := 0
	for i < len(fm.extents) {
		if fm.extents[i].isTombstone() || (startHint != 0 && fm.extents[i].Start != startHint) {
			i++
			continue
		}
		j := i
		sum := int64(0)
		next := fm.extents[i].Start
		for j < len(fm.extents) && !fm.extents[j].isTombstone() && fm.extents[j].Start == next {
			sum += fm.extents[j].Length
			next = fm.extents[j].end() + 1
			if sum >= need {
				return i, j - i + 1, sum, true
			}
			j++
		}
		if startHint != 0 {
			return 0, 0, 0, false
		}
		i++
	}
	return 0, 0, 0, false
}

// allocate consumes length blocks from the head of the run starting at
// extent index begin (as returned by findRun), shrinking or removing
// extents as needed. It returns the absolute starting block of the
// allocation and the on-disk offsets of any tombstoned deleted-file
// entries that were reclaimed, so the caller can remove them from
// EntryIndex.
func (fm *FreeMap) allocate(begin int, length int64) (start int64, reclaimedOffsets []int64) {
	start = fm.extents[begin].Start
	remaining := length
	i := begin
	for remaining > 0 {
		e := &fm.extents[i]
		if e.isTombstone() {
			reclaimedOffsets = append(reclaimedOffsets, e.tombstoneOffset)
		}
		if e.Length > remaining {
			e.Start += remaining
			e.Length -= remaining
			remaining = 0
			break
		}
		remaining -= e.Length
		fm.extents = append(fm.extents[:i], fm.extents[i+1:]...)
		// do not advance i: the slice shifted left.
	}
	return start, reclaimedOffsets
}

// release inserts a plain free extent in sorted position, coalescing with
// adjacent free (non-tombstone) extents. It is the allocation-reversing
// counterpart to allocate.
func (fm *FreeMap) release(start, length int64) {
	if length <= 0 {
		return
	}
	i := sort.Search(len(fm.extents), func(i int) bool { return fm.extents[i].Start >= start })
	fm.extents = append(fm.extents, extent{})
	copy(fm.extents[i+1:], fm.extents[i:])
	fm.extents[i] = extent{Start: start, Length: length, tombstoneOffset: noTombstone}
	fm.coalesceAt(i)
}

// coalesceAt merges fm.extents[i] with its free neighbors.
func (fm *FreeMap) coalesceAt(i int) {
	if i+1 < len(fm.extents) {
		n := fm.extents[i+1]
		if !fm.extents[i].isTombstone() && !n.isTombstone() && fm.extents[i].end()+1 == n.Start {
			fm.extents[i].Length += n.Length
			fm.extents = append(fm.extents[:i+1], fm.extents[i+2:]...)
		}
	}
	if i > 0 {
		p := fm.extents[i-1]
		if !p.isTombstone() && !fm.extents[i].isTombstone() && p.end()+1 == fm.extents[i].Start {
			fm.extents[i-1].Length += fm.extents[i].Length
			fm.extents = append(fm.extents[:i], fm.extents[i+1:]...)
		}
	}
}

// releaseTombstone inserts a tombstone extent referencing the deleted-file
// entry at offset entryOffset, keeping the list sorted by start block
// (free_list_insert).
func (fm *FreeMap) releaseTombstone(start, length, entryOffset int64) {
	i := sort.Search(len(fm.extents), func(i int) bool { return fm.extents[i].Start >= start })
	fm.extents = append(fm.extents, extent{})
	copy(fm.extents[i+1:], fm.extents[i:])
	fm.extents[i] = extent{Start: start, Length: length, tombstoneOffset: entryOffset}
}

// removeTombstoneAt deletes the tombstone extent owned by the entry at
// entryOffset (used when a deleted file is permanently reclaimed outside
// the general allocate() path, e.g. a displaced deleted-file entry whose
// slot is overwritten by the insertion protocol's reusable-slot scan).
func (fm *FreeMap) removeTombstoneAt(entryOffset int64) (start, length int64, ok bool) {
	for i, e := range fm.extents {
		if e.tombstoneOffset == entryOffset {
			fm.extents = append(fm.extents[:i], fm.extents[i+1:]...)
			return e.Start, e.Length, true
		}
	}
	return 0, 0, false
}
