package index

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/store"
	apperrors "github.com/Adithya-Monish-Kumar-K/segment-search/pkg/errors"
)

// DefaultMaxFieldLength is the number of terms indexed per field name in a
// document. Further terms are silently dropped.
const DefaultMaxFieldLength = 10000

type posting struct {
	term      Term
	freq      int
	positions []int
}

// DocumentWriter inverts one document into a complete single-document
// segment.
type DocumentWriter struct {
	dir            store.Directory
	analyzer       analysis.Analyzer
	maxFieldLength int

	fieldInfos   *FieldInfos
	postingTable map[Term]*posting
	fieldLengths []int
}

// NewDocumentWriter returns a writer producing segments in dir.
func NewDocumentWriter(dir store.Directory, a analysis.Analyzer, maxFieldLength int) *DocumentWriter {
	if maxFieldLength <= 0 {
		maxFieldLength = DefaultMaxFieldLength
	}
	return &DocumentWriter{dir: dir, analyzer: a, maxFieldLength: maxFieldLength}
}

// AddDocument writes doc as segment.
func (w *DocumentWriter) AddDocument(segment string, doc *document.Document) error {
	w.fieldInfos = NewFieldInfos()
	if err := w.fieldInfos.AddDocument(doc); err != nil {
		return err
	}
	if err := w.fieldInfos.Write(w.dir, segment+".fnm"); err != nil {
		return err
	}

	fields, err := NewFieldsWriter(w.dir, segment, w.fieldInfos)
	if err != nil {
		return err
	}
	err = fields.AddDocument(doc)
	if err = errors.Join(err, fields.Close()); err != nil {
		return fmt.Errorf("writing stored fields: %w", err)
	}

	w.postingTable = make(map[Term]*posting)
	w.fieldLengths = make([]int, w.fieldInfos.Size())
	if err := w.invertDocument(doc); err != nil {
		return err
	}
	postings := w.sortPostingTable()
	if err := w.writePostings(postings, segment); err != nil {
		return err
	}
	return w.writeNorms(segment)
}

func (w *DocumentWriter) invertDocument(doc *document.Document) error {
	tokenized := make(map[string]bool)
	for _, field := range doc.Fields() {
		if !field.IsIndexed() {
			continue
		}
		name := field.Name()
		if prev, seen := tokenized[name]; seen && prev != field.IsTokenized() {
			return fmt.Errorf("%w: field %q is both tokenized and untokenized", apperrors.ErrFieldConflict, name)
		}
		tokenized[name] = field.IsTokenized()

		num := w.fieldInfos.FieldNumber(name)
		position := w.fieldLengths[num]

		if !field.IsTokenized() {
			w.addPosition(name, field.StringValue(), position)
			position++
		} else {
			if !field.HasValue() {
				return fmt.Errorf("%w: %s", apperrors.ErrNoFieldValue, name)
			}
			r := field.ReaderValue()
			if r == nil {
				r = strings.NewReader(field.StringValue())
			}
			var err error
			if position, err = w.invertStream(name, r, position); err != nil {
				return fmt.Errorf("analyzing field %q: %w", name, err)
			}
		}
		w.fieldLengths[num] = position
	}
	return nil
}

func (w *DocumentWriter) invertStream(field string, r io.Reader, position int) (int, error) {
	stream := w.analyzer.TokenStream(field, r)
	defer stream.Close()
	for position < w.maxFieldLength {
		tok, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return position, err
		}
		w.addPosition(field, tok.Text, position)
		position++
	}
	return position, nil
}

func (w *DocumentWriter) addPosition(field, text string, position int) {
	term := Term{Field: field, Text: text}
	p, ok := w.postingTable[term]
	if !ok {
		w.postingTable[term] = &posting{term: term, freq: 1, positions: []int{position}}
		return
	}
	if p.freq == len(p.positions) {
		grown := make([]int, 2*len(p.positions))
		copy(grown, p.positions)
		p.positions = grown
	}
	p.positions[p.freq] = position
	p.freq++
}

func (w *DocumentWriter) sortPostingTable() []*posting {
	postings := make([]*posting, 0, len(w.postingTable))
	for _, p := range w.postingTable {
		postings = append(postings, p)
	}
	sort.Slice(postings, func(i, j int) bool {
		return postings[i].term.Less(postings[j].term)
	})
	return postings
}

func (w *DocumentWriter) writePostings(postings []*posting, segment string) (err error) {
	freq, err := w.dir.CreateFile(segment + ".frq")
	if err != nil {
		return fmt.Errorf("creating freq file: %w", err)
	}
	prox, err := w.dir.CreateFile(segment + ".prx")
	if err != nil {
		freq.Close()
		return fmt.Errorf("creating prox file: %w", err)
	}
	tis, err := NewTermInfosWriter(w.dir, segment, w.fieldInfos)
	if err != nil {
		store.CloseAll(freq, prox)
		return err
	}
	defer func() {
		if cerr := store.CloseAll(freq, prox, tis); cerr != nil {
			err = errors.Join(err, fmt.Errorf("closing postings: %w", cerr))
		}
	}()

	for _, p := range postings {
		ti := TermInfo{DocFreq: 1, FreqPointer: freq.FilePointer(), ProxPointer: prox.FilePointer()}
		if err := tis.Add(p.term, ti); err != nil {
			return err
		}

		// Only one document, so the doc delta is zero and the low bit flags
		// a frequency of one.
		if p.freq == 1 {
			freq.WriteVInt(1)
		} else {
			freq.WriteVInt(0)
			freq.WriteVInt(p.freq)
		}

		last := 0
		for _, pos := range p.positions[:p.freq] {
			prox.WriteVInt(pos - last)
			last = pos
		}
	}
	return errors.Join(freq.Err(), prox.Err())
}

func (w *DocumentWriter) writeNorms(segment string) error {
	for n := 0; n < w.fieldInfos.Size(); n++ {
		fi := w.fieldInfos.ByNumber(n)
		if !fi.IsIndexed {
			continue
		}
		out, err := w.dir.CreateFile(normFileName(segment, n))
		if err != nil {
			return fmt.Errorf("creating norms for %q: %w", fi.Name, err)
		}
		out.WriteByte(EncodeNorm(w.fieldLengths[n]))
		if err := out.Close(); err != nil {
			return fmt.Errorf("writing norms for %q: %w", fi.Name, err)
		}
	}
	return nil
}

func normFileName(segment string, field int) string {
	return segment + ".f" + strconv.Itoa(field)
}
