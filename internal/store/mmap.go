package store

import (
	"fmt"

	"golang.org/x/exp/mmap"
)

// MMapDirectory is an FSDirectory whose files are read through read-only
// memory mappings. Writes, renames and deletes go to the filesystem as usual.
// Clones of an opened stream share the one mapping.
type MMapDirectory struct {
	*FSDirectory
}

// OpenMMapDirectory returns a memory-mapping view of the directory at path.
// It shares the FSDirectory registry entry for that path.
func OpenMMapDirectory(path string) (*MMapDirectory, error) {
	fsd, err := OpenFSDirectory(path, false)
	if err != nil {
		return nil, err
	}
	return &MMapDirectory{FSDirectory: fsd}, nil
}

func (d *MMapDirectory) OpenFile(name string) (*InputStream, error) {
	r, err := mmap.Open(d.file(name))
	if err != nil {
		return nil, fmt.Errorf("mapping %s: %w", name, notFound(name, err))
	}
	return newInputStream(r, int64(r.Len()), r), nil
}
