package sfs

// memFile is an in-memory File used by tests instead of an OS-backed
// image, so filesystem logic can be exercised without real device I/O.
type memFile struct {
	data []byte
}

func newMemFile(size int64) *memFile {
	return &memFile{data: make([]byte, size)}
}

func (m *memFile) ReadAt(b []byte, off int64) (int, error) {
	n := copy(b, m.data[off:])
	return n, nil
}

func (m *memFile) WriteAt(b []byte, off int64) (int, error) {
	n := copy(m.data[off:], b)
	return n, nil
}

func (m *memFile) Size() (int64, error) { return int64(len(m.data)), nil }

// buildImage lays out a minimal SFS image in memory: a superblock,
// zero or more index entries starting with a start marker, and a
// volume-id entry occupying the last 64 bytes of the device.
//
// entries must not include the start marker or volume-id entry; both are
// synthesized. Their Offset fields are assigned by this function in
// on-disk order (ascending, immediately above the start marker) and
// returned so callers can build expectations.
func buildImage(t testingT, totalBlocks uint64, rsvdBlocks uint32, blockShift uint8, fileEntries []Entry) (*memFile, []Entry) {
	blockSize := int64(128) << blockShift
	deviceSize := int64(totalBlocks) * blockSize

	all := append([]Entry{{Kind: KindStartMarker, Slots: 1}}, fileEntries...)
	indexSize := int64(0)
	for _, e := range all {
		indexSize += int64(e.Slots) * entrySize
	}
	indexSize += entrySize // volume-id

	volOffset := deviceSize - entrySize
	indexStart := volOffset - (indexSize - entrySize)

	off := indexStart
	for i := range all {
		all[i].Offset = off
		off += int64(all[i].Slots) * entrySize
	}
	if off != volOffset {
		t.Fatalf("buildImage: computed entries end at 0x%x, want volume offset 0x%x", off, volOffset)
	}

	mf := newMemFile(deviceSize)

	sb := &superblock{
		TimeStamp:   EncodeTimestamp(1700000000, 0),
		DataSize:    uint64(deviceSize),
		IndexSize:   uint64(indexSize),
		TotalBlocks: totalBlocks,
		RsvdBlocks:  rsvdBlocks,
		BlockShift:  blockShift,
	}
	copy(mf.data[superblockStart:], sb.toBytes())

	for _, e := range all {
		copy(mf.data[e.Offset:], e.toBytes())
	}

	vol := Entry{Kind: KindVolumeID, Offset: volOffset, Slots: 1, Name: "test volume", Time: EncodeTimestamp(1, 0)}
	copy(mf.data[volOffset:], vol.toBytes())

	return mf, all[1:] // drop the synthesized start marker from the returned list
}

// testingT is the subset of *testing.T buildImage needs, so it can be
// called from table-driven helpers without importing "testing" into a
// non-_test.go file (it lives in a _test.go file already, but keeping the
// signature narrow keeps it usable from other small test helpers.
type testingT interface {
	Fatalf(format string, args ...interface{})
}
