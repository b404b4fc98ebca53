package index

import (
	"fmt"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/store"
)

const (
	segmentsFileName    = "segments"
	segmentsNewFileName = "segments.new"
)

// SegmentInfo names a segment and the directory it lives in.
type SegmentInfo struct {
	Name     string
	DocCount int
	Dir      store.Directory
}

// SegmentInfos is the ordered segment list of an index, as recorded in the
// segments file.
type SegmentInfos struct {
	// Counter names new segments; it only ever increases.
	Counter  int
	Segments []SegmentInfo
}

// ReadSegmentInfos loads the segments file of dir. Callers must hold
// dir.Locker().
func ReadSegmentInfos(dir store.Directory) (*SegmentInfos, error) {
	in, err := dir.OpenFile(segmentsFileName)
	if err != nil {
		return nil, fmt.Errorf("opening segments file: %w", err)
	}
	defer in.Close()

	counter, err := in.ReadInt()
	if err != nil {
		return nil, fmt.Errorf("reading segment counter: %w", err)
	}
	count, err := in.ReadInt()
	if err != nil {
		return nil, fmt.Errorf("reading segment count: %w", err)
	}
	infos := &SegmentInfos{Counter: int(counter), Segments: make([]SegmentInfo, 0, max(count, 0))}
	for i := int32(0); i < count; i++ {
		name, err := in.ReadString()
		if err != nil {
			return nil, fmt.Errorf("reading segment %d name: %w", i, err)
		}
		docCount, err := in.ReadInt()
		if err != nil {
			return nil, fmt.Errorf("reading segment %d doc count: %w", i, err)
		}
		infos.Segments = append(infos.Segments, SegmentInfo{Name: name, DocCount: int(docCount), Dir: dir})
	}
	return infos, nil
}

// Write replaces the segments file of dir by writing segments.new and
// renaming it into place. Callers must hold dir.Locker().
func (s *SegmentInfos) Write(dir store.Directory) error {
	if dir.FileExists(segmentsNewFileName) {
		if err := dir.DeleteFile(segmentsNewFileName); err != nil {
			return fmt.Errorf("removing stale %s: %w", segmentsNewFileName, err)
		}
	}
	out, err := dir.CreateFile(segmentsNewFileName)
	if err != nil {
		return fmt.Errorf("creating %s: %w", segmentsNewFileName, err)
	}
	out.WriteInt(int32(s.Counter))
	out.WriteInt(int32(len(s.Segments)))
	for _, si := range s.Segments {
		out.WriteString(si.Name)
		out.WriteInt(int32(si.DocCount))
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", segmentsNewFileName, err)
	}
	if err := dir.RenameFile(segmentsNewFileName, segmentsFileName); err != nil {
		return fmt.Errorf("installing segments file: %w", err)
	}
	return nil
}

// NewSegmentName returns a fresh segment name and advances the counter.
func (s *SegmentInfos) NewSegmentName() string {
	name := "_" + strconv.FormatInt(int64(s.Counter), 36)
	s.Counter++
	return name
}

// DocCount returns the number of documents across all segments, including
// deleted ones.
func (s *SegmentInfos) DocCount() int {
	n := 0
	for _, si := range s.Segments {
		n += si.DocCount
	}
	return n
}
