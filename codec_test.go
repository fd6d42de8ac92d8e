package sfs

import (
	"testing"

	"github.com/go-test/deep"
)

func TestSuperblockRoundTrip(t *testing.T) {
	sb := &superblock{
		TimeStamp:   EncodeTimestamp(1700000000, 0),
		DataSize:    1 << 20,
		IndexSize:   4096,
		TotalBlocks: 8192,
		RsvdBlocks:  4,
		BlockShift:  0,
	}
	b := sb.toBytes()
	if len(b) != superblockSize {
		t.Fatalf("toBytes() length = %d, want %d", len(b), superblockSize)
	}
	got, err := superblockFromBytes(b)
	if err != nil {
		t.Fatalf("superblockFromBytes: %v", err)
	}
	if diff := deep.Equal(sb, got); diff != nil {
		t.Errorf("superblock round trip mismatch: %v", diff)
	}
}

func TestSuperblockBadChecksum(t *testing.T) {
	sb := &superblock{BlockShift: 0, TotalBlocks: 1, RsvdBlocks: 1}
	b := sb.toBytes()
	b[30] ^= 0xFF
	if _, err := superblockFromBytes(b); err == nil {
		t.Fatalf("expected checksum error, got nil")
	}
}

func TestEntryRoundTripFile(t *testing.T) {
	e := &Entry{
		Kind:       KindFile,
		Offset:     0x1000,
		Slots:      1,
		Name:       "short-name.txt",
		Time:       EncodeTimestamp(1700000000, 123456789),
		StartBlock: 10,
		EndBlock:   12,
		Length:     300,
	}
	b := e.toBytes()
	got, err := entryFromBytes(b, e.Offset)
	if err != nil {
		t.Fatalf("entryFromBytes: %v", err)
	}
	if diff := deep.Equal(e, got); diff != nil {
		t.Errorf("file entry round trip mismatch: %v", diff)
	}
}

func TestEntryRoundTripFileWithContinuation(t *testing.T) {
	longName := ""
	for i := 0; i < 40; i++ {
		longName += "x"
	}
	cont := continuationsFor(KindFile, longName)
	if cont == 0 {
		t.Fatalf("expected continuationsFor to require at least one continuation for a %d-byte name", len(longName))
	}
	e := &Entry{
		Kind:       KindFile,
		Offset:     0x2000,
		Slots:      1 + cont,
		Name:       longName,
		Time:       EncodeTimestamp(1, 0),
		StartBlock: 1,
		EndBlock:   1,
		Length:     10,
	}
	b := e.toBytes()
	if len(b) != entrySize*(1+cont) {
		t.Fatalf("toBytes() length = %d, want %d", len(b), entrySize*(1+cont))
	}
	got, err := entryFromBytes(b, e.Offset)
	if err != nil {
		t.Fatalf("entryFromBytes: %v", err)
	}
	if diff := deep.Equal(e, got); diff != nil {
		t.Errorf("continued file entry round trip mismatch: %v", diff)
	}
}

func TestEntryRoundTripDirectory(t *testing.T) {
	e := &Entry{
		Kind:  KindDirectory,
		Offset: 0x3000,
		Slots: 1,
		Name:  "docs",
		Time:  EncodeTimestamp(2, 0),
	}
	b := e.toBytes()
	got, err := entryFromBytes(b, e.Offset)
	if err != nil {
		t.Fatalf("entryFromBytes: %v", err)
	}
	if diff := deep.Equal(e, got); diff != nil {
		t.Errorf("directory entry round trip mismatch: %v", diff)
	}
}

func TestEntryRoundTripVolumeID(t *testing.T) {
	e := &Entry{
		Kind: KindVolumeID,
		Offset: 0x4000,
		Slots: 1,
		Name: "my volume",
		Time: EncodeTimestamp(3, 0),
	}
	b := e.toBytes()
	got, err := entryFromBytes(b, e.Offset)
	if err != nil {
		t.Fatalf("entryFromBytes: %v", err)
	}
	if diff := deep.Equal(e, got); diff != nil {
		t.Errorf("volume-id entry round trip mismatch: %v", diff)
	}
}

func TestEntryRoundTripUnusable(t *testing.T) {
	e := &Entry{
		Kind:       KindUnusableExtent,
		Offset:     0x5000,
		Slots:      1,
		StartBlock: 7,
		EndBlock:   9,
	}
	b := e.toBytes()
	got, err := entryFromBytes(b, e.Offset)
	if err != nil {
		t.Fatalf("entryFromBytes: %v", err)
	}
	if diff := deep.Equal(e, got); diff != nil {
		t.Errorf("unusable entry round trip mismatch: %v", diff)
	}
}

func TestEntryChecksumIsZero(t *testing.T) {
	e := &Entry{Kind: KindFile, Slots: 1, Name: "a", StartBlock: 4, EndBlock: 4, Length: 50}
	b := e.toBytes()
	if !checksumOK(b) {
		t.Errorf("entry checksum not zero: sum = %d", modSum256(b))
	}
}

func TestEntryCorruptChecksumDetected(t *testing.T) {
	e := &Entry{Kind: KindFile, Slots: 1, Name: "a", StartBlock: 4, EndBlock: 4, Length: 50}
	b := e.toBytes()
	b[5] ^= 0xFF
	if _, err := entryFromBytes(b, 0); err == nil {
		t.Fatalf("expected checksum error, got nil")
	}
}
