package sfs

import "time"

// checkValidNew validates that name does not already name a live entry,
// its basename is non-empty, and its parent (if any) is a live directory.
func (v *Volume) checkValidNew(op, path, name string) error {
	if basename(name) == "" {
		return newErr(op, path, KindInvalidName, nil)
	}
	if v.idx.nameExists(name) {
		return newErr(op, path, KindAlreadyExists, nil)
	}
	if p := parent(name); p != "" {
		if _, _, ok := v.idx.findDir(p); !ok {
			return newErr(op, path, KindInvalidName, nil)
		}
	}
	return nil
}

func nowTimestamp() Timestamp {
	now := time.Now()
	return EncodeTimestamp(now.Unix(), int64(now.Nanosecond()))
}

// Create validates path and inserts a new, empty file entry with the
// empty-extent sentinel start_block=reserved_blocks,
// end_block=reserved_blocks-1.
func (v *Volume) Create(path string) error {
	name := normalize(path)
	if err := v.checkValidNew("create", path, name); err != nil {
		return err
	}
	cont := continuationsFor(KindFile, name)
	e := Entry{
		Kind:       KindFile,
		Slots:      1 + cont,
		Name:       name,
		Time:       nowTimestamp(),
		StartBlock: int64(v.sb.RsvdBlocks),
		EndBlock:   int64(v.sb.RsvdBlocks) - 1,
		Length:     0,
	}
	if err := v.insertEntry("create", e); err != nil {
		return err
	}
	v.log.WithField("path", path).Debug("create")
	return nil
}

// Mkdir validates path and inserts a new directory entry.
func (v *Volume) Mkdir(path string) error {
	name := normalize(path)
	if err := v.checkValidNew("mkdir", path, name); err != nil {
		return err
	}
	cont := continuationsFor(KindDirectory, name)
	e := Entry{
		Kind:  KindDirectory,
		Slots: 1 + cont,
		Name:  name,
		Time:  nowTimestamp(),
	}
	if err := v.insertEntry("mkdir", e); err != nil {
		return err
	}
	v.log.WithField("path", path).Debug("mkdir")
	return nil
}

// Delete requires a live file. An empty file is removed immediately
// (overwritten with unused slots); a non-empty file becomes a
// deleted-file tombstone, recoverable until its slot is reclaimed.
func (v *Volume) Delete(path string) error {
	name := normalize(path)
	e, pos, ok := v.idx.findFile(name)
	if !ok {
		if _, _, ok2 := v.idx.findDir(name); ok2 {
			return newErr("delete", path, KindNotAFile, nil)
		}
		return newErr("delete", path, KindNotFound, nil)
	}
	if e.Length == 0 {
		unused, err := v.writeUnusedRun(e.Offset, e.Slots)
		if err != nil {
			return newErr("delete", path, KindIoError, err)
		}
		v.idx.spliceReplace(pos, 1, unused)
		v.log.WithField("path", path).Debug("delete (empty, reclaimed immediately)")
		return nil
	}
	e.Kind = KindDeletedFile
	if err := v.writeEntryBytes(e); err != nil {
		return newErr("delete", path, KindIoError, err)
	}
	v.idx.setEntry(pos, e)
	if e.EndBlock >= e.StartBlock {
		v.fm.releaseTombstone(e.StartBlock, e.EndBlock-e.StartBlock+1, e.Offset)
	}
	v.log.WithField("path", path).Debug("delete (tombstoned)")
	return nil
}

// Rmdir requires a live, empty directory (no live descendants). The
// directory's children, if any (unreachable but still present), are left
// untouched.
func (v *Volume) Rmdir(path string) error {
	name := normalize(path)
	e, pos, ok := v.idx.findDir(name)
	if !ok {
		if _, _, ok2 := v.idx.findFile(name); ok2 {
			return newErr("rmdir", path, KindNotADirectory, nil)
		}
		return newErr("rmdir", path, KindNotFound, nil)
	}
	if v.idx.hasLiveDescendant(name) {
		return newErr("rmdir", path, KindNotEmpty, nil)
	}
	e.Kind = KindDeletedDirectory
	if err := v.writeEntryBytes(e); err != nil {
		return newErr("rmdir", path, KindIoError, err)
	}
	v.idx.setEntry(pos, e)
	v.log.WithField("path", path).Debug("rmdir")
	return nil
}

// GetTime returns path's entry timestamp.
func (v *Volume) GetTime(path string) (Timestamp, error) {
	name := normalize(path)
	e, _, ok := v.idx.findEntry(name)
	if !ok {
		return 0, newErr("get-time", path, KindNotFound, nil)
	}
	return e.Time, nil
}

// SetTime rewrites path's entry timestamp.
func (v *Volume) SetTime(path string, ts Timestamp) error {
	name := normalize(path)
	e, pos, ok := v.idx.findEntry(name)
	if !ok {
		return newErr("set-time", path, KindNotFound, nil)
	}
	e.Time = ts
	if err := v.writeEntryBytes(e); err != nil {
		return newErr("set-time", path, KindIoError, err)
	}
	v.idx.setEntry(pos, e)
	return nil
}

// Rename moves source to dest. If dest exists and replace is false, it
// fails AlreadyExists. If it exists and replace is true, source and dest
// must be the same kind (directories must be empty); the existing dest
// entry is deleted first. Renaming a directory also rewrites every live
// entry whose name begins with source+"/", replacing the prefix
// byte-exact.
func (v *Volume) Rename(srcPath, dstPath string, replace bool) error {
	src := normalize(srcPath)
	dst := normalize(dstPath)
	if src == dst {
		return nil // renaming a path onto itself is a no-op.
	}

	e, pos, ok := v.idx.findEntry(src)
	if !ok {
		return newErr("rename", srcPath, KindNotFound, nil)
	}
	if basename(dst) == "" {
		return newErr("rename", dstPath, KindInvalidName, nil)
	}
	if p := parent(dst); p != "" {
		if _, _, ok := v.idx.findDir(p); !ok {
			return newErr("rename", dstPath, KindInvalidName, nil)
		}
	}

	if existing, existingPos, ok := v.idx.findEntry(dst); ok {
		if !replace {
			return newErr("rename", dstPath, KindAlreadyExists, nil)
		}
		if existing.Kind != e.Kind {
			if existing.Kind == KindDirectory || e.Kind == KindDirectory {
				return newErr("rename", dstPath, KindNotAFile, nil)
			}
		}
		if existing.Kind == KindDirectory && v.idx.hasLiveDescendant(dst) {
			return newErr("rename", dstPath, KindNotEmpty, nil)
		}
		if err := v.deleteInPlace(existingPos); err != nil {
			return newErr("rename", dstPath, KindIoError, err)
		}
		// deleteInPlace may have spliced entries; re-resolve src.
		e, pos, ok = v.idx.findEntry(src)
		if !ok {
			return newErr("rename", srcPath, KindIoError, nil)
		}
	}

	if err := v.renameEntryInPlace(pos, src, dst); err != nil {
		return newErr("rename", srcPath, KindIoError, err)
	}
	if e.Kind == KindDirectory {
		if err := v.renameDescendants(src, dst); err != nil {
			return newErr("rename", srcPath, KindIoError, err)
		}
	}
	v.log.WithField("src", srcPath).WithField("dst", dstPath).Debug("rename")
	return nil
}

// deleteInPlace is Delete applied by index position, for the rename
// replace path (the existing destination may be a file or an empty
// directory).
func (v *Volume) deleteInPlace(pos int) error {
	e := v.idx.entries[pos]
	switch e.Kind {
	case KindFile:
		if e.Length == 0 {
			unused, err := v.writeUnusedRun(e.Offset, e.Slots)
			if err != nil {
				return err
			}
			v.idx.spliceReplace(pos, 1, unused)
			return nil
		}
		e.Kind = KindDeletedFile
		if err := v.writeEntryBytes(e); err != nil {
			return err
		}
		v.idx.setEntry(pos, e)
		if e.EndBlock >= e.StartBlock {
			v.fm.releaseTombstone(e.StartBlock, e.EndBlock-e.StartBlock+1, e.Offset)
		}
		return nil
	case KindDirectory:
		e.Kind = KindDeletedDirectory
		if err := v.writeEntryBytes(e); err != nil {
			return err
		}
		v.idx.setEntry(pos, e)
		return nil
	}
	return nil
}

// renameEntryInPlace rewrites the entry at pos with its new name,
// re-inserting it via the insertion protocol if the continuation count
// changes (growing or shrinking the name no longer fits its current
// slots), otherwise writing it back at the same offset.
func (v *Volume) renameEntryInPlace(pos int, oldName, newName string) error {
	e := v.idx.entries[pos]
	e.Name = newName
	newCont := continuationsFor(e.Kind, newName)
	if 1+newCont == e.Slots {
		if err := v.writeEntryBytes(e); err != nil {
			return err
		}
		v.idx.setEntry(pos, e)
		return nil
	}

	// Shape changed: free the old slot run as unused, then insert fresh.
	old := v.idx.entries[pos]
	unused, err := v.writeUnusedRun(old.Offset, old.Slots)
	if err != nil {
		return err
	}
	v.idx.spliceReplace(pos, 1, unused)

	e.Slots = 1 + newCont
	e.Offset = 0
	return v.insertEntry("rename", e)
}

// renameDescendants rewrites every live entry whose name begins with
// oldDir+"/", replacing that prefix with newDir, byte-exact (no
// renormalization), mirroring move_dir.
func (v *Volume) renameDescendants(oldDir, newDir string) error {
	prefix := oldDir + "/"

	// Snapshot offsets first: renameEntryInPlace may re-insert an entry
	// via the insertion protocol when its continuation count changes,
	// which splices EntryIndex and shifts slice positions. Offsets are
	// stable, so re-resolve each entry's position just before touching it.
	var offsets []int64
	for _, e := range v.idx.entries {
		if e.Kind.isLive() && len(e.Name) > len(prefix) && e.Name[:len(prefix)] == prefix {
			offsets = append(offsets, e.Offset)
		}
	}

	for _, off := range offsets {
		pos, ok := v.idx.findPosByOffset(off)
		if !ok {
			continue // already moved by an earlier iteration's splice.
		}
		e := v.idx.entries[pos]
		newName := newDir + "/" + e.Name[len(prefix):]
		if err := v.renameEntryInPlace(pos, e.Name, newName); err != nil {
			return err
		}
	}
	return nil
}
