// Package store implements the flat, named-file storage layer the index is
// written to. A Directory hands out buffered InputStreams and OutputStreams
// that share one set of primitive encodings (big-endian fixed-width integers,
// variable-length integers and length-prefixed strings), so every file in a
// segment is read and written through the same codec.
package store

import (
	"fmt"
	"sync"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/segment-search/pkg/errors"
)

// Directory is a flat list of files. Files may be written once, when created.
// Once a file is created it may only be opened for read, renamed or deleted.
type Directory interface {
	// List returns the names of all files in the directory.
	List() ([]string, error)
	FileExists(name string) bool
	FileModified(name string) (time.Time, error)
	FileLength(name string) (int64, error)
	DeleteFile(name string) error
	// RenameFile renames from to to, replacing to if it already exists.
	RenameFile(from, to string) error
	// CreateFile creates a new, empty file. It fails if name already exists.
	CreateFile(name string) (*OutputStream, error)
	OpenFile(name string) (*InputStream, error)
	// MakeLock returns a lock on name within this directory. The lock is not
	// held until Obtain succeeds.
	MakeLock(name string) Lock
	// Locker serializes in-process readers and writers of the segments file.
	Locker() sync.Locker
	Close() error
}

// Lock is an exclusive lock on a named resource inside a Directory.
type Lock interface {
	// Obtain attempts to take the lock without blocking and reports whether
	// it was acquired.
	Obtain() (bool, error)
	Release() error
	IsLocked() bool
}

// Open returns the directory of the given kind: "fs", "mmap" or "ram".
// path is ignored for "ram"; create only applies to "fs".
func Open(kind, path string, create bool) (Directory, error) {
	switch kind {
	case "fs":
		return OpenFSDirectory(path, create)
	case "mmap":
		return OpenMMapDirectory(path)
	case "ram":
		return NewRAMDirectory(), nil
	default:
		return nil, fmt.Errorf("%w: unknown directory kind %q", apperrors.ErrInvalidInput, kind)
	}
}
