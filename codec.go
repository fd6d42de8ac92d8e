package sfs

import (
	"encoding/binary"
	"fmt"
)

// superblock is the in-memory mirror of the 42-byte on-disk record at
// byte offset superblockStart.
type superblock struct {
	TimeStamp   Timestamp
	DataSize    uint64
	IndexSize   uint64
	TotalBlocks uint64
	RsvdBlocks  uint32
	BlockShift  uint8
}

// blockSize returns the logical block size, 128*2^shift.
func (s *superblock) blockSize() int64 {
	return 128 << s.BlockShift
}

// superblockFromBytes decodes a superblockSize-byte record, validating
// magic, version, and the modular-256 checksum over the range starting at
// the magic (offset superblockMagicOff).
func superblockFromBytes(b []byte) (*superblock, error) {
	if len(b) != superblockSize {
		return nil, fmt.Errorf("superblock record must be %d bytes, got %d", superblockSize, len(b))
	}
	if !checksumOK(b[superblockMagicOff:]) {
		return nil, newErr("mount", "", KindCorruptChecksum, fmt.Errorf("superblock checksum"))
	}
	magic := string(b[24:27])
	version := b[27]
	if magic != "SFS" || version != formatVersion {
		return nil, newErr("mount", "", KindCorruptImage, fmt.Errorf("bad magic %q or version 0x%02x", magic, version))
	}
	s := &superblock{
		TimeStamp:   Timestamp(int64(binary.LittleEndian.Uint64(b[0:8]))),
		DataSize:    binary.LittleEndian.Uint64(b[8:16]),
		IndexSize:   binary.LittleEndian.Uint64(b[16:24]),
		TotalBlocks: binary.LittleEndian.Uint64(b[28:36]),
		RsvdBlocks:  binary.LittleEndian.Uint32(b[36:40]),
		BlockShift:  b[40],
	}
	return s, nil
}

// toBytes is the inverse of superblockFromBytes; it computes and writes the
// checksum byte.
func (s *superblock) toBytes() []byte {
	b := make([]byte, superblockSize)
	binary.LittleEndian.PutUint64(b[0:8], uint64(s.TimeStamp))
	binary.LittleEndian.PutUint64(b[8:16], s.DataSize)
	binary.LittleEndian.PutUint64(b[16:24], s.IndexSize)
	copy(b[24:27], "SFS")
	b[27] = formatVersion
	binary.LittleEndian.PutUint64(b[28:36], s.TotalBlocks)
	binary.LittleEndian.PutUint32(b[36:40], s.RsvdBlocks)
	b[40] = s.BlockShift
	setChecksum(b[superblockMagicOff:], superblockChecksumOff-superblockMagicOff)
	return b
}

// entryFromBytes decodes one index entry given its full slot run (the
// first 64-byte slot plus any continuation slots).
func entryFromBytes(b []byte, offset int64) (*Entry, error) {
	if len(b) < entrySize || len(b)%entrySize != 0 {
		return nil, fmt.Errorf("entry record must be a positive multiple of %d bytes, got %d", entrySize, len(b))
	}
	kind := EntryKind(b[entryTypeOff])
	slots := len(b) / entrySize
	e := &Entry{Kind: kind, Offset: offset, Slots: slots}

	switch kind {
	case KindVolumeID, KindStartMarker, KindUnused:
		if !checksumOK(b[:entrySize]) {
			return nil, newErr("mount", "", KindCorruptChecksum, fmt.Errorf("entry at 0x%x", offset))
		}
		if kind == KindVolumeID {
			e.Time = Timestamp(int64(binary.LittleEndian.Uint64(b[4:12])))
			e.Name = nulString(b[12 : 12+volNameLen])
		}
	case KindDirectory, KindDeletedDirectory:
		if !checksumOK(b) {
			return nil, newErr("mount", "", KindCorruptChecksum, fmt.Errorf("entry at 0x%x", offset))
		}
		numCont := int(b[2])
		e.Time = Timestamp(int64(binary.LittleEndian.Uint64(b[3:11])))
		nameLen := dirNameLen + numCont*entrySize
		e.Name = nulString(b[11 : 11+nameLen])
	case KindFile, KindDeletedFile:
		if !checksumOK(b) {
			return nil, newErr("mount", "", KindCorruptChecksum, fmt.Errorf("entry at 0x%x", offset))
		}
		numCont := int(b[2])
		e.Time = Timestamp(int64(binary.LittleEndian.Uint64(b[3:11])))
		e.StartBlock = int64(binary.LittleEndian.Uint64(b[11:19]))
		e.EndBlock = int64(binary.LittleEndian.Uint64(b[19:27]))
		e.Length = int64(binary.LittleEndian.Uint64(b[27:35]))
		nameLen := fileNameLen + numCont*entrySize
		e.Name = nulString(b[35 : 35+nameLen])
	case KindUnusableExtent:
		if !checksumOK(b[:entrySize]) {
			return nil, newErr("mount", "", KindCorruptChecksum, fmt.Errorf("entry at 0x%x", offset))
		}
		e.StartBlock = int64(binary.LittleEndian.Uint64(b[10:18]))
		e.EndBlock = int64(binary.LittleEndian.Uint64(b[18:26]))
	default:
		return nil, newErr("mount", "", KindCorruptImage, fmt.Errorf("unknown entry type 0x%02x at 0x%x", byte(kind), offset))
	}
	return e, nil
}

// toBytes encodes e, including continuations, and writes the checksum at
// entryChecksumOff so the whole run sums to zero mod 256, mirroring the
// original write_entry/write_*_data functions.
func (e *Entry) toBytes() []byte {
	b := make([]byte, entrySize*e.Slots)
	b[entryTypeOff] = byte(e.Kind)
	switch e.Kind {
	case KindVolumeID:
		binary.LittleEndian.PutUint64(b[4:12], uint64(e.Time))
		copy(b[12:12+volNameLen], padName(e.Name, volNameLen))
	case KindStartMarker, KindUnused:
		// no payload beyond the type byte.
	case KindDirectory, KindDeletedDirectory:
		b[2] = byte(e.Slots - 1)
		binary.LittleEndian.PutUint64(b[3:11], uint64(e.Time))
		nameLen := dirNameLen + (e.Slots-1)*entrySize
		copy(b[11:11+nameLen], padName(e.Name, nameLen))
	case KindFile, KindDeletedFile:
		b[2] = byte(e.Slots - 1)
		binary.LittleEndian.PutUint64(b[3:11], uint64(e.Time))
		binary.LittleEndian.PutUint64(b[11:19], uint64(e.StartBlock))
		binary.LittleEndian.PutUint64(b[19:27], uint64(e.EndBlock))
		binary.LittleEndian.PutUint64(b[27:35], uint64(e.Length))
		nameLen := fileNameLen + (e.Slots-1)*entrySize
		copy(b[35:35+nameLen], padName(e.Name, nameLen))
	case KindUnusableExtent:
		binary.LittleEndian.PutUint64(b[10:18], uint64(e.StartBlock))
		binary.LittleEndian.PutUint64(b[18:26], uint64(e.EndBlock))
	}
	setChecksum(b, entryChecksumOff)
	return b
}

// nulString trims b at the first NUL byte (or its end), the decode rule
// for name fields.
func nulString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// padName copies s into a zero-padded buffer of length n, truncating if
// s is somehow longer than its allocated region.
func padName(s string, n int) []byte {
	b := make([]byte, n)
	copy(b, s)
	return b
}
