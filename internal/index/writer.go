package index

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/store"
	apperrors "github.com/Adithya-Monish-Kumar-K/segment-search/pkg/errors"
)

// WriterConfig tunes segment creation and merging.
type WriterConfig struct {
	// MaxFieldLength caps the number of terms indexed per field name in a
	// document.
	MaxFieldLength int
	// MergeFactor is how many segments of one size class accumulate before
	// they are merged. Small values merge often and keep searches fast;
	// large values make bulk indexing faster.
	MergeFactor int
	// MaxMergeDocs is the largest segment, in documents, produced by an
	// automatic merge. Optimize ignores it.
	MaxMergeDocs int
}

// DefaultWriterConfig returns the default tuning.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		MaxFieldLength: DefaultMaxFieldLength,
		MergeFactor:    10,
		MaxMergeDocs:   int(^uint32(0) >> 1),
	}
}

// Writer adds documents to an index. Each document is first written as its
// own segment in memory; memory segments are merged into the index
// directory as they accumulate, and on-disk segments are merged in turn
// whenever MergeFactor of them have the same size class.
//
// Only one Writer may be open on a directory; the write lock enforces this
// across processes.
type Writer struct {
	mu       sync.Mutex
	dir      store.Directory
	ramDir   *store.RAMDirectory
	analyzer analysis.Analyzer
	cfg      WriterConfig
	lock     store.Lock
	logger   *slog.Logger

	infos     *SegmentInfos
	deletable []string
	closed    bool
}

// NewWriter opens an index for writing. With create set, any existing index
// in dir is replaced by an empty one.
func NewWriter(dir store.Directory, a analysis.Analyzer, create bool, cfg WriterConfig) (*Writer, error) {
	defaults := DefaultWriterConfig()
	if cfg.MaxFieldLength <= 0 {
		cfg.MaxFieldLength = defaults.MaxFieldLength
	}
	if cfg.MergeFactor < 2 {
		cfg.MergeFactor = defaults.MergeFactor
	}
	if cfg.MaxMergeDocs <= 0 {
		cfg.MaxMergeDocs = defaults.MaxMergeDocs
	}

	lock := dir.MakeLock(WriteLockName)
	ok, err := lock.Obtain()
	if err != nil {
		return nil, fmt.Errorf("obtaining write lock: %w", err)
	}
	if !ok {
		return nil, apperrors.ErrLockHeld
	}

	w := &Writer{
		dir:      dir,
		ramDir:   store.NewRAMDirectory(),
		analyzer: a,
		cfg:      cfg,
		lock:     lock,
		logger:   slog.Default().With("component", "index-writer"),
	}

	locker := dir.Locker()
	locker.Lock()
	defer locker.Unlock()
	if create || !IndexExists(dir) {
		w.infos = &SegmentInfos{}
		if err = clearIndex(dir); err == nil {
			err = w.infos.Write(dir)
		}
	} else {
		w.infos, err = ReadSegmentInfos(dir)
	}
	if err != nil {
		lock.Release()
		return nil, err
	}
	return w, nil
}

// DocCount returns the number of documents in the index, including deleted
// ones not yet merged away.
func (w *Writer) DocCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.infos.DocCount()
}

// AddDocument indexes doc.
func (w *Writer) AddDocument(doc *document.Document) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("adding document: %w", apperrors.ErrDirectoryClosed)
	}

	name := w.infos.NewSegmentName()
	dw := NewDocumentWriter(w.ramDir, w.analyzer, w.cfg.MaxFieldLength)
	if err := dw.AddDocument(name, doc); err != nil {
		w.discardRAMSegment(name)
		return fmt.Errorf("inverting document: %w", err)
	}
	w.infos.Segments = append(w.infos.Segments, SegmentInfo{Name: name, DocCount: 1, Dir: w.ramDir})
	return w.maybeMergeSegments()
}

func (w *Writer) discardRAMSegment(name string) {
	files, err := w.ramDir.List()
	if err != nil {
		return
	}
	for _, f := range files {
		if isSegmentFile(f, name) {
			w.ramDir.DeleteFile(f)
		}
	}
}

// removeStale deletes files left behind in the index directory by a failed
// merge into segment name, whose number was never committed.
func (w *Writer) removeStale(name string) error {
	files, err := w.dir.List()
	if err != nil {
		return err
	}
	for _, f := range files {
		if isSegmentFile(f, name) {
			if err := w.dir.DeleteFile(f); err != nil {
				return fmt.Errorf("removing stale file %s: %w", f, err)
			}
		}
	}
	return nil
}

// clearIndex removes every file of a previous index from dir.
func clearIndex(dir store.Directory) error {
	files, err := dir.List()
	if err != nil {
		return err
	}
	for _, f := range files {
		if f == WriteLockName {
			continue
		}
		if err := dir.DeleteFile(f); err != nil {
			return fmt.Errorf("clearing %s: %w", f, err)
		}
	}
	return nil
}

// maybeMergeSegments merges the trailing segments of each size class once
// MergeFactor of them have accumulated.
func (w *Writer) maybeMergeSegments() error {
	for target := w.cfg.MergeFactor; target <= w.cfg.MaxMergeDocs; target *= w.cfg.MergeFactor {
		minSegment := len(w.infos.Segments)
		mergeDocs := 0
		for minSegment > 0 {
			si := w.infos.Segments[minSegment-1]
			if si.DocCount >= target {
				break
			}
			mergeDocs += si.DocCount
			minSegment--
		}
		if mergeDocs < target {
			return nil
		}
		if err := w.mergeSegments(minSegment); err != nil {
			return err
		}
	}
	return nil
}

// flushRAMSegments merges the trailing memory segments into the directory,
// together with the last disk segment when that keeps it small.
func (w *Writer) flushRAMSegments() error {
	n := len(w.infos.Segments)
	minSegment := n - 1
	docCount := 0
	for minSegment >= 0 && w.infos.Segments[minSegment].Dir == store.Directory(w.ramDir) {
		docCount += w.infos.Segments[minSegment].DocCount
		minSegment--
	}
	if minSegment < 0 ||
		docCount+w.infos.Segments[minSegment].DocCount > w.cfg.MergeFactor ||
		n == 0 || w.infos.Segments[n-1].Dir != store.Directory(w.ramDir) {
		minSegment++
	}
	if minSegment >= n {
		return nil
	}
	return w.mergeSegments(minSegment)
}

// Optimize merges the whole index into a single segment without deletions.
func (w *Writer) Optimize() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.flushRAMSegments(); err != nil {
		return err
	}
	for w.needsOptimize() {
		minSegment := max(len(w.infos.Segments)-w.cfg.MergeFactor, 0)
		if err := w.mergeSegments(minSegment); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) needsOptimize() bool {
	switch len(w.infos.Segments) {
	case 0:
		return false
	case 1:
		si := w.infos.Segments[0]
		return si.Dir != w.dir || si.Dir.FileExists(si.Name+".del")
	default:
		return true
	}
}

// mergeSegments merges every segment from minSegment on into one new
// segment in the index directory and commits the new segment list.
func (w *Writer) mergeSegments(minSegment int) error {
	name := w.infos.NewSegmentName()
	if err := w.removeStale(name); err != nil {
		return err
	}
	merger := NewSegmentMerger(w.dir, name)

	var obsolete []SegmentInfo
	for _, si := range w.infos.Segments[minSegment:] {
		r, err := OpenSegmentReader(si)
		if err != nil {
			for _, opened := range merger.readers {
				opened.Close()
			}
			return fmt.Errorf("opening segment %s for merge: %w", si.Name, err)
		}
		merger.Add(r)
		obsolete = append(obsolete, si)
	}

	docCount, err := merger.Merge()
	if err != nil {
		return fmt.Errorf("merging into %s: %w", name, err)
	}

	w.infos.Segments = append(w.infos.Segments[:minSegment], SegmentInfo{Name: name, DocCount: docCount, Dir: w.dir})

	locker := w.dir.Locker()
	locker.Lock()
	defer locker.Unlock()
	if err := w.infos.Write(w.dir); err != nil {
		return err
	}
	w.logger.Info("segments merged",
		"segment", name,
		"merged", len(obsolete),
		"doc_count", docCount,
		"segments", len(w.infos.Segments),
	)
	w.deleteSegments(obsolete)
	return nil
}

// deleteSegments removes the files of obsolete segments. Files that cannot
// be removed yet are retried after the next commit.
func (w *Writer) deleteSegments(obsolete []SegmentInfo) {
	retry := w.deletable
	w.deletable = nil
	for _, name := range retry {
		w.deleteFile(w.dir, name)
	}
	for _, si := range obsolete {
		files, err := si.Dir.List()
		if err != nil {
			w.logger.Warn("listing obsolete segment files", "segment", si.Name, "error", err)
			continue
		}
		for _, f := range files {
			if isSegmentFile(f, si.Name) {
				w.deleteFile(si.Dir, f)
			}
		}
	}
}

func (w *Writer) deleteFile(dir store.Directory, name string) {
	if !dir.FileExists(name) {
		return
	}
	if err := dir.DeleteFile(name); err != nil {
		if dir == w.dir {
			w.deletable = append(w.deletable, name)
		}
		w.logger.Warn("deferring deletion of obsolete file", "file", name, "error", err)
	}
}

func isSegmentFile(file, segment string) bool {
	return len(file) > len(segment) && file[:len(segment)] == segment && file[len(segment)] == '.'
}

// Close flushes buffered documents, commits and releases the write lock.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	err := w.flushRAMSegments()
	return errors.Join(err, w.ramDir.Close(), w.lock.Release())
}
