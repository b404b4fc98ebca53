package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	apperrors "github.com/Adithya-Monish-Kumar-K/segment-search/pkg/errors"
)

var (
	registryMu sync.Mutex
	registry   = make(map[string]*FSDirectory)
)

// FSDirectory is a Directory backed by a filesystem directory. Instances are
// shared per canonical path: every OpenFSDirectory call for the same path
// returns the same value and must be paired with a Close.
type FSDirectory struct {
	path     string
	mu       sync.Mutex
	refCount int
}

// OpenFSDirectory returns the directory at path, creating it if needed. When
// create is true any existing files in it are removed first.
func OpenFSDirectory(path string, create bool) (*FSDirectory, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving directory path %s: %w", path, err)
	}
	abs = filepath.Clean(abs)

	registryMu.Lock()
	defer registryMu.Unlock()
	d, ok := registry[abs]
	if !ok {
		d = &FSDirectory{path: abs}
		if err := os.MkdirAll(abs, 0755); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", abs, err)
		}
		registry[abs] = d
	}
	d.refCount++
	if create {
		if err := d.clear(); err != nil {
			d.release()
			return nil, err
		}
	}
	return d, nil
}

func (d *FSDirectory) clear() error {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return fmt.Errorf("listing %s: %w", d.path, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(d.path, e.Name())); err != nil {
			return fmt.Errorf("clearing %s: %w", e.Name(), err)
		}
	}
	return nil
}

// Path returns the absolute path of the directory.
func (d *FSDirectory) Path() string {
	return d.path
}

func (d *FSDirectory) List() ([]string, error) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", d.path, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func (d *FSDirectory) FileExists(name string) bool {
	_, err := os.Stat(d.file(name))
	return err == nil
}

func (d *FSDirectory) FileModified(name string) (time.Time, error) {
	info, err := os.Stat(d.file(name))
	if err != nil {
		return time.Time{}, notFound(name, err)
	}
	return info.ModTime(), nil
}

func (d *FSDirectory) FileLength(name string) (int64, error) {
	info, err := os.Stat(d.file(name))
	if err != nil {
		return 0, notFound(name, err)
	}
	return info.Size(), nil
}

func (d *FSDirectory) DeleteFile(name string) error {
	if err := os.Remove(d.file(name)); err != nil {
		return fmt.Errorf("deleting %s: %w", name, notFound(name, err))
	}
	return nil
}

func (d *FSDirectory) RenameFile(from, to string) error {
	if err := os.Rename(d.file(from), d.file(to)); err != nil {
		return fmt.Errorf("renaming %s to %s: %w", from, to, notFound(from, err))
	}
	return nil
}

func (d *FSDirectory) CreateFile(name string) (*OutputStream, error) {
	f, err := os.OpenFile(d.file(name), os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("creating %s: %w", name, apperrors.ErrFileExists)
		}
		return nil, fmt.Errorf("creating %s: %w", name, err)
	}
	return newOutputStream(f, f.Sync), nil
}

func (d *FSDirectory) OpenFile(name string) (*InputStream, error) {
	f, err := os.Open(d.file(name))
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", name, notFound(name, err))
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", name, err)
	}
	return newInputStream(f, info.Size(), f), nil
}

func (d *FSDirectory) MakeLock(name string) Lock {
	return &fileLock{flock: flock.New(d.file(name))}
}

func (d *FSDirectory) Locker() sync.Locker {
	return &d.mu
}

// Close releases this reference. The directory leaves the registry when the
// last reference is closed.
func (d *FSDirectory) Close() error {
	registryMu.Lock()
	defer registryMu.Unlock()
	if d.refCount <= 0 {
		return apperrors.ErrDirectoryClosed
	}
	d.release()
	return nil
}

// release must be called with registryMu held.
func (d *FSDirectory) release() {
	d.refCount--
	if d.refCount == 0 {
		delete(registry, d.path)
	}
}

func (d *FSDirectory) file(name string) string {
	return filepath.Join(d.path, name)
}

func notFound(name string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s: %w", name, apperrors.ErrFileNotFound)
	}
	return err
}

// fileLock is a cross-process lock file held with flock(2).
type fileLock struct {
	flock *flock.Flock
}

func (l *fileLock) Obtain() (bool, error) {
	ok, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("acquiring lock %s: %w", l.flock.Path(), err)
	}
	return ok, nil
}

func (l *fileLock) Release() error {
	if !l.flock.Locked() {
		return nil
	}
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("releasing lock %s: %w", l.flock.Path(), err)
	}
	return nil
}

func (l *fileLock) IsLocked() bool {
	if l.flock.Locked() {
		return true
	}
	probe := flock.New(l.flock.Path())
	ok, err := probe.TryLock()
	if err != nil {
		return false
	}
	if ok {
		probe.Unlock()
		return false
	}
	return true
}
