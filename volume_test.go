package sfs

import (
	"errors"
	"sort"
	"testing"
)

func mustMount(t *testing.T, mf *memFile) *Volume {
	t.Helper()
	v, err := MountFile(mf)
	if err != nil {
		t.Fatalf("MountFile: %v", err)
	}
	return v
}

// TestMountIdentity checks that mounting an image and reading back an
// existing file's stat and contents round-trips exactly.
func TestMountIdentity(t *testing.T) {
	fileA := Entry{Kind: KindFile, Slots: 1, Name: "a", Time: EncodeTimestamp(1, 0), StartBlock: 4, EndBlock: 4, Length: 50}
	mf, _ := buildImage(t, 128, 4, 0, []Entry{fileA})
	v := mustMount(t, mf)
	defer v.Unmount()

	st, err := v.Stat("a")
	if err != nil {
		t.Fatalf("Stat(a): %v", err)
	}
	if st.Size != 50 {
		t.Errorf("Stat(a).Size = %d, want 50", st.Size)
	}

	buf := make([]byte, 64)
	if n, err := v.Read("/a", buf, 50, 0); err != nil || n != 50 {
		t.Errorf("Read(/a,...,50,0) = (%d,%v), want (50,nil)", n, err)
	}
	if n, err := v.Read("a", buf, 10, 45); err != nil || n != 5 {
		t.Errorf("Read(a,...,10,45) = (%d,%v), want (5,nil)", n, err)
	}
	if n, err := v.Read("a", buf, 10, 60); err != nil || n != 0 {
		t.Errorf("Read(a,...,10,60) = (%d,%v), want (0,nil)", n, err)
	}
}

// TestCreateThenDeleteEmpty checks that creating then deleting an
// empty file leaves an unused slot behind and removes it from listings.
func TestCreateThenDeleteEmpty(t *testing.T) {
	fileA := Entry{Kind: KindFile, Slots: 1, Name: "a", Time: EncodeTimestamp(1, 0), StartBlock: 4, EndBlock: 4, Length: 50}
	mf, _ := buildImage(t, 128, 4, 0, []Entry{fileA})
	v := mustMount(t, mf)
	defer v.Unmount()

	if err := v.Create("b"); err != nil {
		t.Fatalf("Create(b): %v", err)
	}
	names, err := v.List("")
	if err != nil {
		t.Fatalf("List(\"\"): %v", err)
	}
	sort.Strings(names)
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("List after create = %v, want [a b]", names)
	}

	if err := v.Delete("b"); err != nil {
		t.Fatalf("Delete(b): %v", err)
	}
	names, err = v.List("")
	if err != nil {
		t.Fatalf("List(\"\"): %v", err)
	}
	if len(names) != 1 || names[0] != "a" {
		t.Errorf("List after delete = %v, want [a]", names)
	}

	e, _, ok := v.idx.findEntry("b")
	if ok {
		t.Errorf("expected b to have no live entry after delete, found %+v", e)
	}
	foundUnused := false
	for _, ent := range v.idx.entries {
		if ent.Kind == KindUnused {
			foundUnused = true
		}
	}
	if !foundUnused {
		t.Errorf("expected an unused slot after deleting an empty file")
	}
}

// TestDeleteNonemptyRecoverable checks that deleting a non-empty file
// tombstones it instead of removing it outright, and that a later
// create reclaims the tombstoned extent.
func TestDeleteNonemptyRecoverable(t *testing.T) {
	fileA := Entry{Kind: KindFile, Slots: 1, Name: "a", Time: EncodeTimestamp(1, 0), StartBlock: 4, EndBlock: 4, Length: 50}
	mf, _ := buildImage(t, 128, 4, 0, []Entry{fileA})
	v := mustMount(t, mf)
	defer v.Unmount()

	if err := v.Delete("a"); err != nil {
		t.Fatalf("Delete(a): %v", err)
	}
	if _, err := v.Stat("a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Stat(a) after delete = %v, want NotFound", err)
	}

	foundTombstone := false
	for _, e := range v.fm.extents {
		if e.isTombstone() && e.Start == 4 {
			foundTombstone = true
		}
	}
	if !foundTombstone {
		t.Fatalf("expected a tombstone extent at block 4")
	}

	if err := v.Create("c"); err != nil {
		t.Fatalf("Create(c): %v", err)
	}
	for _, e := range v.fm.extents {
		if e.isTombstone() && e.Start == 4 {
			t.Errorf("expected tombstone at block 4 to be reclaimed by Create(c)")
		}
	}
}

// TestResizeInPlace checks that growing a file into the free blocks
// right after its extent zero-fills the new tail and updates its length
// and end block.
func TestResizeInPlace(t *testing.T) {
	fileA := Entry{Kind: KindFile, Slots: 1, Name: "a", Time: EncodeTimestamp(1, 0), StartBlock: 4, EndBlock: 4, Length: 50}
	mf, _ := buildImage(t, 128, 4, 0, []Entry{fileA})
	v := mustMount(t, mf)
	defer v.Unmount()

	if err := v.Resize("a", 300); err != nil {
		t.Fatalf("Resize(a,300): %v", err)
	}
	e, _, ok := v.idx.findFile("a")
	if !ok {
		t.Fatalf("file a missing after resize")
	}
	if e.EndBlock != 6 {
		t.Errorf("EndBlock after resize = %d, want 6", e.EndBlock)
	}
	if e.Length != 300 {
		t.Errorf("Length after resize = %d, want 300", e.Length)
	}

	buf := make([]byte, 250)
	if _, err := v.Read("a", buf, 250, 50); err != nil {
		t.Fatalf("Read after resize: %v", err)
	}
	for i, b := range buf {
		if b != 0 {
			t.Fatalf("grown region not zero-filled at byte %d: got %d", i, b)
			break
		}
	}
}

func TestRenameIdempotent(t *testing.T) {
	fileA := Entry{Kind: KindFile, Slots: 1, Name: "a", Time: EncodeTimestamp(1, 0), StartBlock: 4, EndBlock: 4, Length: 50}
	mf, _ := buildImage(t, 128, 4, 0, []Entry{fileA})
	v := mustMount(t, mf)
	defer v.Unmount()

	if err := v.Rename("a", "a", false); err != nil {
		t.Fatalf("Rename(a,a): %v", err)
	}
	st, err := v.Stat("a")
	if err != nil || st.Size != 50 {
		t.Errorf("Stat(a) after no-op rename = (%+v,%v), want (size=50,nil)", st, err)
	}
}

func TestMkdirAndRmdirRequiresEmpty(t *testing.T) {
	mf, _ := buildImage(t, 128, 4, 0, nil)
	v := mustMount(t, mf)
	defer v.Unmount()

	if err := v.Mkdir("d"); err != nil {
		t.Fatalf("Mkdir(d): %v", err)
	}
	if err := v.Create("d/f"); err != nil {
		t.Fatalf("Create(d/f): %v", err)
	}
	if err := v.Rmdir("d"); !errors.Is(err, ErrNotEmpty) {
		t.Errorf("Rmdir(d) with a live child = %v, want NotEmpty", err)
	}
	if err := v.Delete("d/f"); err != nil {
		t.Fatalf("Delete(d/f): %v", err)
	}
	if err := v.Rmdir("d"); err != nil {
		t.Fatalf("Rmdir(d) once empty: %v", err)
	}
}

func TestNameUniqueness(t *testing.T) {
	fileA := Entry{Kind: KindFile, Slots: 1, Name: "a", Time: EncodeTimestamp(1, 0), StartBlock: 4, EndBlock: 4, Length: 50}
	mf, _ := buildImage(t, 128, 4, 0, []Entry{fileA})
	v := mustMount(t, mf)
	defer v.Unmount()

	if err := v.Create("a"); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("Create(a) when a exists = %v, want AlreadyExists", err)
	}
}
