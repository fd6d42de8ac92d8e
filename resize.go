package sfs

// Resize grows a file in place when adjacent free blocks exist, otherwise
// relocates it to a new extent large enough for the whole file, copying
// data and zero-filling the grown tail. Shrinking always happens at the
// tail in place.
func (v *Volume) Resize(path string, newLength int64) error {
	name := normalize(path)
	e, pos, ok := v.idx.findFile(name)
	if !ok {
		return newErr("resize", path, KindNotFound, nil)
	}
	bs := v.blockSize()
	b0 := ceilDiv(e.Length, bs)
	b1 := ceilDiv(newLength, bs)
	s0 := e.StartBlock

	switch {
	case b1 > b0:
		grow := b1 - b0
		hint := e.EndBlock + 1
		if e.EndBlock < e.StartBlock {
			hint = e.StartBlock // empty-file sentinel: nothing occupied yet.
		}
		if begin, _, _, ok := v.fm.findRun(hint, grow); ok {
			_, reclaimed := v.fm.allocate(begin, grow)
			if err := v.reclaimTombstones(reclaimed); err != nil {
				return newErr("resize", path, KindIoError, err)
			}
			e.EndBlock = e.StartBlock + b1 - 1
			if e.EndBlock < e.StartBlock {
				e.EndBlock = e.StartBlock
			}
		} else if begin, _, _, ok := v.fm.findRun(0, b1); ok {
			newStart, reclaimed := v.fm.allocate(begin, b1)
			if err := v.reclaimTombstones(reclaimed); err != nil {
				return newErr("resize", path, KindIoError, err)
			}
			if b0 > 0 {
				buf := make([]byte, b0*bs)
				if err := readExact(v.file, "resize", buf, s0*bs); err != nil {
					return err
				}
				if err := writeExact(v.file, "resize", buf, newStart*bs); err != nil {
					return err
				}
			}
			if e.EndBlock >= e.StartBlock {
				v.fm.release(e.StartBlock, e.EndBlock-e.StartBlock+1)
			}
			e.StartBlock = newStart
			e.EndBlock = newStart + b1 - 1
		} else {
			return newErr("resize", path, KindNoSpace, nil)
		}
	case b0 > b1:
		shrink := b0 - b1
		if b1 == 0 {
			if e.EndBlock >= e.StartBlock {
				v.fm.release(e.StartBlock, e.EndBlock-e.StartBlock+1)
			}
			e.EndBlock = e.StartBlock - 1
		} else {
			tailStart := e.EndBlock - shrink + 1
			v.fm.release(tailStart, shrink)
			e.EndBlock = tailStart - 1
		}
	}

	if newLength > e.Length {
		gapStart := e.StartBlock*bs + e.Length
		gapLen := newLength - e.Length
		if err := zeroFill(v.file, gapStart, gapLen); err != nil {
			return newErr("resize", path, KindIoError, err)
		}
	}
	e.Length = newLength
	if err := v.writeEntryBytes(e); err != nil {
		return newErr("resize", path, KindIoError, err)
	}
	v.idx.setEntry(pos, e)
	v.log.WithField("path", path).WithField("new_length", newLength).Debug("resize")
	return nil
}

// reclaimTombstones removes the EntryIndex entries for any tombstoned
// deleted-file slots an allocation just consumed, overwriting them with
// unused slots on disk.
func (v *Volume) reclaimTombstones(offsets []int64) error {
	for _, off := range offsets {
		pos, ok := v.idx.findPosByOffset(off)
		if !ok {
			continue
		}
		e := v.idx.entries[pos]
		unused, err := v.writeUnusedRun(e.Offset, e.Slots)
		if err != nil {
			return err
		}
		v.idx.spliceReplace(pos, 1, unused)
	}
	return nil
}

// zeroFill writes length zero bytes starting at offset, in bounded
// chunks.
func zeroFill(f File, offset, length int64) error {
	const chunk = 64 * 1024
	buf := make([]byte, chunk)
	for length > 0 {
		n := int64(len(buf))
		if n > length {
			n = length
		}
		if err := writeExact(f, "resize", buf[:n], offset); err != nil {
			return err
		}
		offset += n
		length -= n
	}
	return nil
}
