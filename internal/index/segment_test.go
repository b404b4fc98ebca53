package index

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/store"
	apperrors "github.com/Adithya-Monish-Kumar-K/segment-search/pkg/errors"
)

func writeDoc(t *testing.T, dir store.Directory, segment string, doc *document.Document) SegmentInfo {
	t.Helper()
	dw := NewDocumentWriter(dir, analysis.SimpleAnalyzer(), DefaultMaxFieldLength)
	require.NoError(t, dw.AddDocument(segment, doc))
	return SegmentInfo{Name: segment, DocCount: 1, Dir: dir}
}

func openSegment(t *testing.T, si SegmentInfo) *SegmentReader {
	t.Helper()
	r, err := OpenSegmentReader(si)
	require.NoError(t, err)
	return r
}

type positionsOf map[int][]int

func readPositions(t *testing.T, r Reader, term Term) positionsOf {
	t.Helper()
	tp, err := r.TermPositions(term)
	require.NoError(t, err)
	defer tp.Close()
	got := positionsOf{}
	for {
		ok, err := tp.Next()
		require.NoError(t, err)
		if !ok {
			return got
		}
		positions := make([]int, tp.Freq())
		for i := range positions {
			positions[i], err = tp.NextPosition()
			require.NoError(t, err)
		}
		got[tp.Doc()] = positions
	}
}

func TestDocumentWriterSegment(t *testing.T) {
	dir := store.NewRAMDirectory()
	doc := document.New(
		document.Keyword("id", "doc-1"),
		document.Text("contents", "a b c a b a"),
		document.UnIndexed("path", "/tmp/a.txt"),
		document.UnStored("contents", "z a"),
	)
	r := openSegment(t, writeDoc(t, dir, "_0", doc))
	defer r.Close()

	assert.Equal(t, 1, r.MaxDoc())
	assert.Equal(t, 1, r.NumDocs())

	stored, err := r.Document(0)
	require.NoError(t, err)
	assert.Equal(t, "doc-1", stored.Get("id"))
	assert.Equal(t, "/tmp/a.txt", stored.Get("path"))
	assert.Equal(t, []string{"a b c a b a"}, stored.GetValues("contents"))
	assert.True(t, stored.GetField("contents").IsTokenized())
	assert.False(t, stored.GetField("id").IsTokenized())

	// The second contents field continues the positions of the first.
	assert.Equal(t, positionsOf{0: {0, 3, 5, 7}}, readPositions(t, r, NewTerm("contents", "a")))
	assert.Equal(t, positionsOf{0: {6}}, readPositions(t, r, NewTerm("contents", "z")))
	assert.Equal(t, positionsOf{0: {0}}, readPositions(t, r, NewTerm("id", "doc-1")))
	assert.Empty(t, readPositions(t, r, NewTerm("contents", "missing")))

	df, err := r.DocFreq(NewTerm("contents", "b"))
	require.NoError(t, err)
	assert.Equal(t, 1, df)
	df, err = r.DocFreq(NewTerm("path", "/tmp/a.txt"))
	require.NoError(t, err)
	assert.Zero(t, df)

	norms, err := r.Norms("contents")
	require.NoError(t, err)
	assert.Equal(t, []byte{EncodeNorm(8)}, norms)
	norms, err = r.Norms("path")
	require.NoError(t, err)
	assert.Nil(t, norms)

	assert.Equal(t, []string{"contents", "id", "path"}, r.FieldNames())
	assert.ElementsMatch(t, []string{
		"_0.fnm", "_0.fdx", "_0.fdt", "_0.tii", "_0.tis", "_0.frq", "_0.prx", "_0.f1", "_0.f2",
	}, r.Files())
}

func TestDocumentWriterTermOrder(t *testing.T) {
	dir := store.NewRAMDirectory()
	r := openSegment(t, writeDoc(t, dir, "_0", document.New(
		document.Text("b", "zeta alpha mid"),
		document.Text("a", "omega beta"),
	)))
	defer r.Close()

	e, err := r.Terms()
	require.NoError(t, err)
	defer e.Close()
	var terms []string
	for {
		ok, err := e.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		terms = append(terms, e.Term().String())
		assert.Equal(t, 1, e.DocFreq())
	}
	assert.Equal(t, []string{"a:beta", "a:omega", "b:alpha", "b:mid", "b:zeta"}, terms)
}

func TestDocumentWriterMaxFieldLength(t *testing.T) {
	dir := store.NewRAMDirectory()
	dw := NewDocumentWriter(dir, analysis.SimpleAnalyzer(), 3)
	require.NoError(t, dw.AddDocument("_0", document.New(document.Text("f", "a b c d e"))))
	r := openSegment(t, SegmentInfo{Name: "_0", DocCount: 1, Dir: dir})
	defer r.Close()

	df, err := r.DocFreq(NewTerm("f", "c"))
	require.NoError(t, err)
	assert.Equal(t, 1, df)
	df, err = r.DocFreq(NewTerm("f", "d"))
	require.NoError(t, err)
	assert.Zero(t, df)
	norms, err := r.Norms("f")
	require.NoError(t, err)
	assert.Equal(t, EncodeNorm(3), norms[0])
}

func TestDocumentWriterCallerErrors(t *testing.T) {
	dw := NewDocumentWriter(store.NewRAMDirectory(), analysis.SimpleAnalyzer(), 0)
	err := dw.AddDocument("_0", document.New(
		document.Text("f", "a"),
		document.Keyword("f", "a"),
	))
	assert.ErrorIs(t, err, apperrors.ErrFieldConflict)

	dw = NewDocumentWriter(store.NewRAMDirectory(), analysis.SimpleAnalyzer(), 0)
	err = dw.AddDocument("_0", document.New(document.TextReader("f", nil)))
	assert.ErrorIs(t, err, apperrors.ErrNoFieldValue)

	dw = NewDocumentWriter(store.NewRAMDirectory(), analysis.SimpleAnalyzer(), 0)
	err = dw.AddDocument("_0", document.New(
		document.Text("f", "a"),
		document.UnIndexed("f", "b"),
	))
	assert.ErrorIs(t, err, apperrors.ErrFieldConflict)
}

func TestSegmentReaderDeletions(t *testing.T) {
	dir := store.NewRAMDirectory()
	si := writeDoc(t, dir, "_0", document.New(document.Text("f", "x")))

	r := openSegment(t, si)
	assert.False(t, r.HasDeletions())
	require.NoError(t, r.Delete(0))
	assert.True(t, r.IsDeleted(0))
	assert.Equal(t, 0, r.NumDocs())
	_, err := r.Document(0)
	assert.ErrorIs(t, err, apperrors.ErrDocumentDeleted)
	assert.Empty(t, readPositions(t, r, NewTerm("f", "x")))
	assert.False(t, dir.FileExists("_0.del"))
	require.NoError(t, r.Close())
	assert.True(t, dir.FileExists("_0.del"))
	assert.False(t, dir.FileExists("_0.tmp"))

	r = openSegment(t, si)
	defer r.Close()
	assert.True(t, r.IsDeleted(0))
	assert.Equal(t, 1, r.MaxDoc())
	assert.Equal(t, 0, r.NumDocs())
	assert.Contains(t, r.Files(), "_0.del")
}

// randomSegments writes n one-document segments drawn from a tiny
// vocabulary so terms are shared across segments.
func randomSegments(t *testing.T, dir store.Directory, rng *rand.Rand, prefix string, n int) []SegmentInfo {
	t.Helper()
	vocab := []string{"red", "green", "blue", "cyan", "black"}
	infos := make([]SegmentInfo, n)
	for i := range infos {
		words := make([]string, 1+rng.Intn(6))
		for j := range words {
			words[j] = vocab[rng.Intn(len(vocab))]
		}
		doc := document.New(
			document.Keyword("id", fmt.Sprintf("%s-%d", prefix, i)),
			document.Text("body", strings.Join(words, " ")),
		)
		infos[i] = writeDoc(t, dir, fmt.Sprintf("_%s%d", prefix, i), doc)
	}
	return infos
}

func TestSegmentMergerDropsDeletedDocuments(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	src := store.NewRAMDirectory()
	infos := randomSegments(t, src, rng, "s", 3)

	// Build three multi-document inputs by merging singles first.
	var inputs []SegmentInfo
	for g := 0; g < 3; g++ {
		group := randomSegments(t, src, rng, fmt.Sprintf("g%dd", g), 7)
		name := fmt.Sprintf("_g%d", g)
		m := NewSegmentMerger(src, name)
		for _, si := range group {
			m.Add(openSegment(t, si))
		}
		count, err := m.Merge()
		require.NoError(t, err)
		require.Equal(t, 7, count)
		inputs = append(inputs, SegmentInfo{Name: name, DocCount: count, Dir: src})
	}
	inputs = append(inputs, infos...)

	var liveIDs []string
	live := 0
	for _, si := range inputs {
		r := openSegment(t, si)
		for d := 0; d < r.MaxDoc(); d++ {
			doc, err := r.Document(d)
			require.NoError(t, err)
			if rng.Intn(3) == 0 {
				require.NoError(t, r.Delete(d))
			} else {
				liveIDs = append(liveIDs, doc.Get("id"))
				live++
			}
		}
		require.NoError(t, r.Close())
	}

	dst := store.NewRAMDirectory()
	m := NewSegmentMerger(dst, "_m")
	for _, si := range inputs {
		m.Add(openSegment(t, si))
	}
	count, err := m.Merge()
	require.NoError(t, err)
	assert.Equal(t, live, count)

	merged := openSegment(t, SegmentInfo{Name: "_m", DocCount: count, Dir: dst})
	defer merged.Close()
	assert.Equal(t, live, merged.MaxDoc())
	assert.Equal(t, live, merged.NumDocs())
	assert.False(t, merged.HasDeletions())

	var mergedIDs []string
	for d := 0; d < merged.MaxDoc(); d++ {
		doc, err := merged.Document(d)
		require.NoError(t, err)
		mergedIDs = append(mergedIDs, doc.Get("id"))
	}
	assert.Equal(t, liveIDs, mergedIDs, "live documents keep their relative order")

	norms, err := merged.Norms("body")
	require.NoError(t, err)
	require.Len(t, norms, live)
	for d, b := range norms {
		assert.NotZero(t, b, "doc %d", d)
	}

	terms, err := merged.Terms()
	require.NoError(t, err)
	defer terms.Close()
	for {
		ok, err := terms.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		term := *terms.Term()
		docs := readPositions(t, merged, term)
		assert.Equal(t, terms.DocFreq(), len(docs), "term %s", term)

		td, err := merged.TermDocs(term)
		require.NoError(t, err)
		last := -1
		for {
			ok, err := td.Next()
			require.NoError(t, err)
			if !ok {
				break
			}
			assert.Greater(t, td.Doc(), last, "term %s", term)
			last = td.Doc()
		}
		require.NoError(t, td.Close())
	}
}

func TestSegmentTermDocsRead(t *testing.T) {
	dir := store.NewRAMDirectory()
	var infos []SegmentInfo
	for i := 0; i < 5; i++ {
		infos = append(infos, writeDoc(t, dir, fmt.Sprintf("_%d", i),
			document.New(document.Text("f", strings.Repeat("w ", i+1)))))
	}
	m := NewSegmentMerger(dir, "_all")
	for _, si := range infos {
		m.Add(openSegment(t, si))
	}
	_, err := m.Merge()
	require.NoError(t, err)

	r := openSegment(t, SegmentInfo{Name: "_all", DocCount: 5, Dir: dir})
	require.NoError(t, r.Delete(2))
	defer r.Close()

	td, err := r.TermDocs(NewTerm("f", "w"))
	require.NoError(t, err)
	defer td.Close()
	docs, freqs := make([]int, 3), make([]int, 3)
	n, err := td.Read(docs, freqs)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []int{0, 1, 3}, docs)
	assert.Equal(t, []int{1, 2, 4}, freqs)

	td2, err := r.TermDocs(NewTerm("f", "w"))
	require.NoError(t, err)
	defer td2.Close()
	ok, err := td2.SkipTo(2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3, td2.Doc())
	assert.Equal(t, 4, td2.Freq())
}
