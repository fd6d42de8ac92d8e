package sfs

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"
	satoriuuid "github.com/satori/go.uuid"
)

// EntryStat is the result of Stat: kind, size (files only), and timestamp.
type EntryStat struct {
	Kind EntryKind
	Size int64
	Time Timestamp
}

// Volume is the top-level mounted object: it owns the backing File,
// Superblock, EntryIndex, and FreeMap for the mount's lifetime and
// exposes the public operation surface, enforcing cross-component
// invariants.
type Volume struct {
	file   File
	osFile *os.File // non-nil only when Mount opened the path itself; used for the advisory lock.
	locked bool

	sb  *superblock
	idx *EntryIndex
	fm  *FreeMap

	volume Entry // the volume-id entry, offset fixed at totalBlocks*blockSize-64.

	mountID string
	log     *logrus.Entry
}

// Mount opens path, parses its superblock, volume-id entry, and index,
// and builds the in-memory EntryIndex/FreeMap. It takes a best-effort
// advisory exclusive lock on the file (byteio.go's lockImage).
func Mount(path string) (*Volume, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, newErr("mount", path, KindIoError, err)
	}
	v, err := MountFile(NewOSFile(f))
	if err != nil {
		f.Close()
		return nil, err
	}
	v.osFile = f
	if err := lockImage(f); err != nil {
		v.Unmount()
		return nil, err
	}
	v.locked = true
	return v, nil
}

// MountFile mounts an already-open File, for callers (and tests) that do
// not want Mount's OS-file-open-and-lock behavior.
func MountFile(f File) (*Volume, error) {
	mountUUID, err := satoriuuid.NewV4()
	if err != nil {
		return nil, newErr("mount", "", KindIoError, err)
	}
	mountID := mountUUID.String()
	log := logrus.WithField("mount", mountID)

	sbBuf := make([]byte, superblockSize)
	if err := readExact(f, "mount", sbBuf, superblockStart); err != nil {
		return nil, err
	}
	sb, err := superblockFromBytes(sbBuf)
	if err != nil {
		return nil, err
	}

	volOffset := int64(sb.TotalBlocks)*sb.blockSize() - entrySize
	volBuf := make([]byte, entrySize)
	if err := readExact(f, "mount", volBuf, volOffset); err != nil {
		return nil, err
	}
	vol, err := entryFromBytes(volBuf, volOffset)
	if err != nil {
		return nil, err
	}
	if vol.Kind != KindVolumeID {
		return nil, newErr("mount", "", KindCorruptImage, nil)
	}

	indexStart := int64(sb.TotalBlocks)*sb.blockSize() - int64(sb.IndexSize)
	entries, err := readEntries(f, indexStart, volOffset)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 || entries[0].Kind != KindStartMarker {
		return nil, newErr("mount", "", KindCorruptImage, nil)
	}

	idx := newEntryIndex(entries)
	dataEndBlock := int64(sb.TotalBlocks) - ceilDiv(int64(sb.IndexSize), sb.blockSize())
	fm := buildFreeMap(idx, int64(sb.RsvdBlocks), dataEndBlock)

	v := &Volume{
		file:    f,
		sb:      sb,
		idx:     idx,
		fm:      fm,
		volume:  *vol,
		mountID: mountID,
		log:     log,
	}
	log.Info("mounted")
	return v, nil
}

// readEntries reads consecutive entrySize-byte slots from start to end
// (exclusive), resolving continuations as needed, mirroring
// sfs_read_entries/sfs_read_entry.
func readEntries(f File, start, end int64) ([]Entry, error) {
	var out []Entry
	off := start
	for off < end {
		head := make([]byte, entrySize)
		if err := readExact(f, "mount", head, off); err != nil {
			return nil, err
		}
		kind := EntryKind(head[entryTypeOff])
		numCont := 0
		switch kind {
		case KindDirectory, KindDeletedDirectory, KindFile, KindDeletedFile:
			numCont = int(head[2])
		}
		buf := head
		if numCont > 0 {
			rest := make([]byte, numCont*entrySize)
			if err := readExact(f, "mount", rest, off+entrySize); err != nil {
				return nil, err
			}
			buf = append(buf, rest...)
		}
		e, err := entryFromBytes(buf, off)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
		off += int64(len(buf))
	}
	return out, nil
}

// ceilDiv computes ceil(a/b) for positive a, b.
func ceilDiv(a, b int64) int64 {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}

// Unmount releases the advisory lock (if Mount took one) and the backing
// handle. The Volume must not be used afterward.
func (v *Volume) Unmount() error {
	v.log.Info("unmounted")
	if v.locked && v.osFile != nil {
		unlockImage(v.osFile)
	}
	if v.osFile != nil {
		return v.osFile.Close()
	}
	return nil
}

// writeEntryBytes writes e (plus continuations) to disk at e.Offset.
func (v *Volume) writeEntryBytes(e Entry) error {
	return writeExact(v.file, "write-entry", e.toBytes(), e.Offset)
}

// writeSuperblock persists the current superblock, stamping a fresh
// timestamp as sfs_write_super does.
func (v *Volume) writeSuperblock() error {
	now := time.Now()
	v.sb.TimeStamp = EncodeTimestamp(now.Unix(), int64(now.Nanosecond()))
	return writeExact(v.file, "write-superblock", v.sb.toBytes(), superblockStart)
}

func (v *Volume) blockSize() int64 { return v.sb.blockSize() }

// dataEndBlock is the exclusive upper bound of the data region, i.e. the
// first block occupied by the index.
func (v *Volume) dataEndBlock() int64 {
	return int64(v.sb.TotalBlocks) - ceilDiv(int64(v.sb.IndexSize), v.blockSize())
}

// VolumeName returns the volume-id entry's name field.
func (v *Volume) VolumeName() string { return v.volume.Name }

// SetVolumeName rewrites the volume-id entry's name and refreshes its
// checksum.
func (v *Volume) SetVolumeName(name string) error {
	v.volume.Name = name
	return v.writeEntryBytes(v.volume)
}

// GetVolumeTime returns the volume-id entry's timestamp.
func (v *Volume) GetVolumeTime() Timestamp { return v.volume.Time }

// SetVolumeTime rewrites the volume-id entry's timestamp.
func (v *Volume) SetVolumeTime(ts Timestamp) error {
	v.volume.Time = ts
	return v.writeEntryBytes(v.volume)
}

// Stat returns kind, size, and timestamp for path, or NotFound.
func (v *Volume) Stat(path string) (EntryStat, error) {
	name := normalize(path)
	e, _, ok := v.idx.findEntry(name)
	if !ok {
		return EntryStat{}, newErr("stat", path, KindNotFound, nil)
	}
	return EntryStat{Kind: e.Kind, Size: e.Length, Time: e.Time}, nil
}

// List returns the basenames of the direct live children of path.
func (v *Volume) List(path string) ([]string, error) {
	name := normalize(path)
	if name != "" {
		if _, _, ok := v.idx.findDir(name); !ok {
			if _, _, ok2 := v.idx.findEntry(name); ok2 {
				return nil, newErr("list", path, KindNotADirectory, nil)
			}
			return nil, newErr("list", path, KindNotFound, nil)
		}
	}
	return v.idx.listChildren(name), nil
}

// Read locates the file at path and reads min(size, file_length-offset)
// bytes from start_block*block_size+offset.
func (v *Volume) Read(path string, buf []byte, size int, offset int64) (int, error) {
	name := normalize(path)
	e, _, ok := v.idx.findFile(name)
	if !ok {
		return 0, newErr("read", path, KindNotFound, nil)
	}
	if offset > e.Length {
		return 0, nil
	}
	n := size
	if int64(n) > e.Length-offset {
		n = int(e.Length - offset)
	}
	if n <= 0 {
		return 0, nil
	}
	if n > len(buf) {
		n = len(buf)
	}
	base := e.StartBlock*v.blockSize() + offset
	if err := readExact(v.file, "read", buf[:n], base); err != nil {
		return 0, err
	}
	v.log.WithField("path", path).Debug("read")
	return n, nil
}

// Write writes in place into the file's existing extent only, clamping
// to file_length; it never extends the file. Call Resize first to grow.
func (v *Volume) Write(path string, buf []byte, size int, offset int64) (int, error) {
	name := normalize(path)
	e, _, ok := v.idx.findFile(name)
	if !ok {
		return 0, newErr("write", path, KindNotFound, nil)
	}
	if offset > e.Length {
		return 0, nil
	}
	n := size
	if int64(n) > e.Length-offset {
		n = int(e.Length - offset)
	}
	if n <= 0 {
		return 0, nil
	}
	if n > len(buf) {
		n = len(buf)
	}
	base := e.StartBlock*v.blockSize() + offset
	if err := writeExact(v.file, "write", buf[:n], base); err != nil {
		return 0, err
	}
	v.log.WithField("path", path).Debug("write")
	return n, nil
}
