package sfs

// insertEntry implements the insertion protocol: first try the
// reusable-slot scan, and if no run is found, fall back to prepending the
// index. e.Offset is ignored on input and set by whichever path succeeds.
func (v *Volume) insertEntry(op string, e Entry) error {
	need := e.Slots
	if startPos, endPos, slotLen, ok := v.idx.reusableRun(need); ok {
		return v.insertIntoRun(op, e, startPos, endPos, slotLen)
	}
	return v.prependEntry(op, e)
}

// insertIntoRun writes e at the offset of the reusable run
// [startPos,endPos), reclaiming any deleted-file tombstones it displaces,
// padding the remainder with individual unused slots, and splicing
// EntryIndex. Mirrors insert_entry's write-then-splice order.
func (v *Volume) insertIntoRun(op string, e Entry, startPos, endPos, slotLen int) error {
	need := e.Slots
	offset := v.idx.entries[startPos].Offset
	for i := startPos; i < endPos; i++ {
		cur := v.idx.entries[i]
		if cur.Kind == KindDeletedFile {
			if start, length, ok := v.fm.removeTombstoneAt(cur.Offset); ok {
				v.fm.release(start, length)
			}
		}
	}

	e.Offset = offset
	if err := v.writeEntryBytes(e); err != nil {
		return newErr(op, "", KindIoError, err)
	}

	newEntries := []Entry{e}
	leftover := slotLen - need
	if leftover > 0 {
		unused, err := v.writeUnusedRun(offset+int64(need*entrySize), leftover)
		if err != nil {
			return newErr(op, "", KindIoError, err)
		}
		newEntries = append(newEntries, unused...)
	}
	v.idx.spliceReplace(startPos, endPos-startPos, newEntries)
	return nil
}

// writeUnusedRun overwrites count consecutive entrySize slots starting at
// offset with individual single-slot KindUnused entries, each carrying
// its own checksum. The on-disk unused record has no continuation count,
// so a multi-slot free run must be written and later read back as that
// many separate records, not one record spanning several slots. It
// returns the new entries in on-disk order.
func (v *Volume) writeUnusedRun(offset int64, count int) ([]Entry, error) {
	entries := make([]Entry, count)
	for i := 0; i < count; i++ {
		u := Entry{Kind: KindUnused, Offset: offset + int64(i)*entrySize, Slots: 1}
		if err := v.writeEntryBytes(u); err != nil {
			return nil, err
		}
		entries[i] = u
	}
	return entries, nil
}

// prependEntry grows the index region toward the data region: the
// start-marker offset moves down by k*64 bytes, the superblock's
// index_size grows to match, and if that crosses a block boundary the
// trailing free extent shrinks by the difference (or the operation fails
// NoSpace). Mirrors prepend_entry.
func (v *Volume) prependEntry(op string, e Entry) error {
	k := int64(e.Slots)
	oldIndexSize := int64(v.sb.IndexSize)
	newIndexSize := oldIndexSize + k*entrySize

	blockSize := v.blockSize()
	blocksBefore := ceilDiv(oldIndexSize, blockSize)
	blocksAfter := ceilDiv(newIndexSize, blockSize)
	extra := blocksAfter - blocksBefore

	if extra > 0 {
		dataEnd := v.dataEndBlock()
		n := len(v.fm.extents)
		if n == 0 {
			return newErr(op, "", KindNoSpace, nil)
		}
		last := &v.fm.extents[n-1]
		if last.isTombstone() || last.end()+1 != dataEnd || last.Length < extra {
			return newErr(op, "", KindNoSpace, nil)
		}
		last.Length -= extra
		if last.Length == 0 {
			v.fm.extents = v.fm.extents[:n-1]
		}
	}

	oldMarker := v.idx.entries[0]
	newMarkerOffset := oldMarker.Offset - k*entrySize
	newEntryOffset := newMarkerOffset + entrySize

	e.Offset = newEntryOffset
	if err := v.writeEntryBytes(e); err != nil {
		return newErr(op, "", KindIoError, err)
	}

	newMarker := oldMarker
	newMarker.Offset = newMarkerOffset
	if err := v.writeEntryBytes(newMarker); err != nil {
		return newErr(op, "", KindIoError, err)
	}

	v.sb.IndexSize = uint64(newIndexSize)
	if err := v.writeSuperblock(); err != nil {
		return newErr(op, "", KindIoError, err)
	}

	rest := append([]Entry{}, v.idx.entries[1:]...)
	v.idx.entries = append([]Entry{newMarker, e}, rest...)
	v.idx.rebuildReusable()
	return nil
}
