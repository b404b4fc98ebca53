package store

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/segment-search/pkg/errors"
)

// RAMDirectory is an in-memory Directory. The index writer uses one to buffer
// freshly written single-document segments before merging them to disk.
type RAMDirectory struct {
	mu     sync.RWMutex
	files  map[string]*ramFile
	locks  map[string]bool
	commit sync.Mutex
}

type ramFile struct {
	mu       sync.RWMutex
	data     []byte
	modified time.Time
}

// NewRAMDirectory returns an empty in-memory directory.
func NewRAMDirectory() *RAMDirectory {
	return &RAMDirectory{
		files: make(map[string]*ramFile),
		locks: make(map[string]bool),
	}
}

func (d *RAMDirectory) List() ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.files))
	for name := range d.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (d *RAMDirectory) FileExists(name string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.files[name]
	return ok
}

func (d *RAMDirectory) FileModified(name string) (time.Time, error) {
	f, err := d.lookup(name)
	if err != nil {
		return time.Time{}, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.modified, nil
}

func (d *RAMDirectory) FileLength(name string) (int64, error) {
	f, err := d.lookup(name)
	if err != nil {
		return 0, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	return int64(len(f.data)), nil
}

func (d *RAMDirectory) DeleteFile(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.files[name]; !ok {
		return fmt.Errorf("deleting %s: %w", name, apperrors.ErrFileNotFound)
	}
	delete(d.files, name)
	return nil
}

func (d *RAMDirectory) RenameFile(from, to string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	f, ok := d.files[from]
	if !ok {
		return fmt.Errorf("renaming %s: %w", from, apperrors.ErrFileNotFound)
	}
	delete(d.files, from)
	d.files[to] = f
	return nil
}

func (d *RAMDirectory) CreateFile(name string) (*OutputStream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.files[name]; ok {
		return nil, fmt.Errorf("creating %s: %w", name, apperrors.ErrFileExists)
	}
	f := &ramFile{modified: time.Now()}
	d.files[name] = f
	return newOutputStream(f, nil), nil
}

func (d *RAMDirectory) OpenFile(name string) (*InputStream, error) {
	f, err := d.lookup(name)
	if err != nil {
		return nil, err
	}
	f.mu.RLock()
	data := f.data
	f.mu.RUnlock()
	return newInputStream(bytes.NewReader(data), int64(len(data)), nil), nil
}

func (d *RAMDirectory) MakeLock(name string) Lock {
	return &ramLock{dir: d, name: name}
}

func (d *RAMDirectory) Locker() sync.Locker {
	return &d.commit
}

// Close drops all files.
func (d *RAMDirectory) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.files = make(map[string]*ramFile)
	return nil
}

func (d *RAMDirectory) lookup(name string) (*ramFile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	f, ok := d.files[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, apperrors.ErrFileNotFound)
	}
	return f, nil
}

func (f *ramFile) WriteAt(p []byte, off int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	end := int(off) + len(p)
	if end > len(f.data) {
		grown := make([]byte, end, max(end, 2*cap(f.data)))
		copy(grown, f.data)
		f.data = grown
	}
	copy(f.data[off:], p)
	f.modified = time.Now()
	return len(p), nil
}

func (f *ramFile) Close() error {
	return nil
}

type ramLock struct {
	dir  *RAMDirectory
	name string
	held bool
}

func (l *ramLock) Obtain() (bool, error) {
	l.dir.mu.Lock()
	defer l.dir.mu.Unlock()
	if l.dir.locks[l.name] {
		return false, nil
	}
	l.dir.locks[l.name] = true
	l.held = true
	return true, nil
}

func (l *ramLock) Release() error {
	l.dir.mu.Lock()
	defer l.dir.mu.Unlock()
	if l.held {
		delete(l.dir.locks, l.name)
		l.held = false
	}
	return nil
}

func (l *ramLock) IsLocked() bool {
	l.dir.mu.RLock()
	defer l.dir.mu.RUnlock()
	return l.dir.locks[l.name]
}
