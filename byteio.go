package sfs

import (
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// File is the random-access byte stream every other component of this
// package consumes. It is satisfied by *os.File; tests may satisfy it with
// an in-memory implementation backed by a byte slice.
type File interface {
	io.ReaderAt
	io.WriterAt
	Size() (int64, error)
}

// OSFile adapts *os.File to File.
type OSFile struct {
	f *os.File
}

// NewOSFile wraps an already-open *os.File.
func NewOSFile(f *os.File) *OSFile { return &OSFile{f: f} }

func (o *OSFile) ReadAt(b []byte, off int64) (int, error)  { return o.f.ReadAt(b, off) }
func (o *OSFile) WriteAt(b []byte, off int64) (int, error) { return o.f.WriteAt(b, off) }

func (o *OSFile) Size() (int64, error) {
	fi, err := o.f.Stat()
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

// readExact reads exactly len(b) bytes at off or returns an IoError.
func readExact(f File, op string, b []byte, off int64) error {
	n, err := f.ReadAt(b, off)
	if err != nil && !(err == io.EOF && n == len(b)) {
		return newErr(op, "", KindIoError, err)
	}
	if n != len(b) {
		return newErr(op, "", KindIoError, io.ErrUnexpectedEOF)
	}
	return nil
}

// writeExact writes exactly len(b) bytes at off or returns an IoError.
func writeExact(f File, op string, b []byte, off int64) error {
	n, err := f.WriteAt(b, off)
	if err != nil {
		return newErr(op, "", KindIoError, err)
	}
	if n != len(b) {
		return newErr(op, "", KindIoError, io.ErrShortWrite)
	}
	return nil
}

// lockImage takes a best-effort, non-blocking advisory exclusive lock on
// the backing file descriptor so that a second accidental Mount of the
// same file from the same process tree fails fast with an IoError instead
// of racing the first mount's writes. It does not protect against mounts
// from unrelated processes or duplicated file descriptors; the
// single-mount contract remains the caller's responsibility.
func lockImage(f *os.File) error {
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		return newErr("mount", "", KindIoError, err)
	}
	return nil
}

// unlockImage releases the lock taken by lockImage.
func unlockImage(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_UN)
}
