package index

import (
	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/store"
	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/util"
)

// SegmentTermDocs reads one term's postings from a segment's .frq file,
// skipping deleted documents.
type SegmentTermDocs struct {
	tis        *TermInfosReader
	deleted    *util.BitVector
	freqStream *store.InputStream
	freqCount  int
	doc        int
	freq       int

	// skipping is called for each deleted document passed over, after its
	// frequency has been read.
	skipping func() error
}

func newSegmentTermDocs(r *SegmentReader) *SegmentTermDocs {
	return &SegmentTermDocs{
		tis:        r.tis,
		deleted:    r.deletedDocs(),
		freqStream: r.freqStream.Clone(),
	}
}

// Seek positions the enumerator at the postings of term. A term absent from
// the segment yields no documents.
func (d *SegmentTermDocs) Seek(term Term) error {
	ti, ok, err := d.tis.Get(term)
	if err != nil {
		return err
	}
	return d.seekInfo(ti, ok)
}

func (d *SegmentTermDocs) seekInfo(ti TermInfo, found bool) error {
	d.doc = 0
	if !found {
		d.freqCount = 0
		return nil
	}
	d.freqCount = ti.DocFreq
	return d.freqStream.Seek(ti.FreqPointer)
}

// Doc returns the current document number.
func (d *SegmentTermDocs) Doc() int { return d.doc }

// Freq returns the term frequency in the current document.
func (d *SegmentTermDocs) Freq() int { return d.freq }

// Next advances to the next live document.
func (d *SegmentTermDocs) Next() (bool, error) {
	for {
		if d.freqCount == 0 {
			return false, nil
		}
		code, err := d.freqStream.ReadVInt()
		if err != nil {
			return false, err
		}
		d.doc += code >> 1
		if code&1 != 0 {
			d.freq = 1
		} else if d.freq, err = d.freqStream.ReadVInt(); err != nil {
			return false, err
		}
		d.freqCount--

		if d.deleted == nil || !d.deleted.Get(d.doc) {
			return true, nil
		}
		if d.skipping != nil {
			if err := d.skipping(); err != nil {
				return false, err
			}
		}
	}
}

// Read fills docs and freqs with up to len(docs) live postings and returns
// how many were read. Zero means the postings are exhausted.
func (d *SegmentTermDocs) Read(docs, freqs []int) (int, error) {
	n := min(len(docs), len(freqs))
	i := 0
	for i < n && d.freqCount > 0 {
		code, err := d.freqStream.ReadVInt()
		if err != nil {
			return i, err
		}
		d.doc += code >> 1
		if code&1 != 0 {
			d.freq = 1
		} else if d.freq, err = d.freqStream.ReadVInt(); err != nil {
			return i, err
		}
		d.freqCount--

		if d.deleted == nil || !d.deleted.Get(d.doc) {
			docs[i] = d.doc
			freqs[i] = d.freq
			i++
		}
	}
	return i, nil
}

// SkipTo advances to the first live document >= target.
func (d *SegmentTermDocs) SkipTo(target int) (bool, error) {
	for {
		ok, err := d.Next()
		if err != nil || !ok {
			return false, err
		}
		if d.doc >= target {
			return true, nil
		}
	}
}

func (d *SegmentTermDocs) Close() error {
	return d.freqStream.Close()
}

// SegmentTermPositions extends SegmentTermDocs with the positions of each
// occurrence, read from the .prx file.
type SegmentTermPositions struct {
	*SegmentTermDocs
	proxStream *store.InputStream
	proxCount  int
	position   int
}

func newSegmentTermPositions(r *SegmentReader) *SegmentTermPositions {
	p := &SegmentTermPositions{
		SegmentTermDocs: newSegmentTermDocs(r),
		proxStream:      r.proxStream.Clone(),
	}
	p.skipping = p.skipPositions
	return p
}

// Seek positions the enumerator at the postings of term.
func (p *SegmentTermPositions) Seek(term Term) error {
	ti, ok, err := p.tis.Get(term)
	if err != nil {
		return err
	}
	return p.seekInfo(ti, ok)
}

func (p *SegmentTermPositions) seekInfo(ti TermInfo, found bool) error {
	if err := p.SegmentTermDocs.seekInfo(ti, found); err != nil {
		return err
	}
	p.proxCount = 0
	if !found {
		return nil
	}
	return p.proxStream.Seek(ti.ProxPointer)
}

// Next advances to the next live document, discarding any positions of the
// current document that were not read.
func (p *SegmentTermPositions) Next() (bool, error) {
	for ; p.proxCount > 0; p.proxCount-- {
		if _, err := p.proxStream.ReadVInt(); err != nil {
			return false, err
		}
	}
	ok, err := p.SegmentTermDocs.Next()
	if err != nil || !ok {
		return false, err
	}
	p.proxCount = p.freq
	p.position = 0
	return true, nil
}

// NextPosition returns the next position of the term in the current
// document. It must be called at most Freq times per document.
func (p *SegmentTermPositions) NextPosition() (int, error) {
	p.proxCount--
	delta, err := p.proxStream.ReadVInt()
	if err != nil {
		return 0, err
	}
	p.position += delta
	return p.position, nil
}

// SkipTo advances to the first live document >= target.
func (p *SegmentTermPositions) SkipTo(target int) (bool, error) {
	for {
		ok, err := p.Next()
		if err != nil || !ok {
			return false, err
		}
		if p.doc >= target {
			return true, nil
		}
	}
}

// Read fills docs and freqs through Next so that the .prx stream stays
// aligned with the current document.
func (p *SegmentTermPositions) Read(docs, freqs []int) (int, error) {
	i := 0
	for i < min(len(docs), len(freqs)) {
		ok, err := p.Next()
		if err != nil || !ok {
			return i, err
		}
		docs[i], freqs[i] = p.doc, p.freq
		i++
	}
	return i, nil
}

func (p *SegmentTermPositions) skipPositions() error {
	for i := 0; i < p.freq; i++ {
		if _, err := p.proxStream.ReadVInt(); err != nil {
			return err
		}
	}
	return nil
}

func (p *SegmentTermPositions) Close() error {
	return store.CloseAll(p.SegmentTermDocs, p.proxStream)
}
