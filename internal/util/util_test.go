package util

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/store"
	apperrors "github.com/Adithya-Monish-Kumar-K/segment-search/pkg/errors"
)

func TestBitVectorCount(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	const n = 1000
	v := NewBitVector(n)
	ref := make(map[int]bool)
	for i := 0; i < 5000; i++ {
		bit := rng.Intn(n)
		if rng.Intn(3) == 0 {
			v.Clear(bit)
			delete(ref, bit)
		} else {
			v.Set(bit)
			ref[bit] = true
		}
		if i%250 == 0 {
			require.Equal(t, len(ref), v.Count())
		}
	}
	assert.Equal(t, len(ref), v.Count())
	for i := 0; i < n; i++ {
		assert.Equal(t, ref[i], v.Get(i), "bit %d", i)
	}
}

func TestBitVectorPersistence(t *testing.T) {
	dir := store.NewRAMDirectory()
	v := NewBitVector(77)
	for _, i := range []int{0, 7, 8, 41, 76} {
		v.Set(i)
	}
	v.Clear(41)
	require.NoError(t, v.Write(dir, "_1.del"))

	got, err := ReadBitVector(dir, "_1.del")
	require.NoError(t, err)
	assert.Equal(t, 77, got.Size())
	assert.Equal(t, 4, got.Count())
	for i := 0; i < 77; i++ {
		assert.Equal(t, v.Get(i), got.Get(i), "bit %d", i)
	}

	length, err := dir.FileLength("_1.del")
	require.NoError(t, err)
	assert.Equal(t, int64(8+(77>>3)+1), length)
}

func TestReadBitVectorRejectsNegativeSize(t *testing.T) {
	dir := store.NewRAMDirectory()
	out, err := dir.CreateFile("_2.del")
	require.NoError(t, err)
	out.WriteInt(-8)
	out.WriteInt(0)
	require.NoError(t, out.Close())

	v, err := ReadBitVector(dir, "_2.del")
	assert.Nil(t, v)
	assert.ErrorIs(t, err, apperrors.ErrCorruptIndex)
}

func TestPriorityQueueOrdering(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	q := NewPriorityQueue(0, func(a, b int) bool { return a < b })
	values := make([]int, 10000)
	for i := range values {
		values[i] = rng.Int()
		q.Put(values[i])
	}
	sort.Ints(values)
	require.Equal(t, len(values), q.Size())
	for _, want := range values {
		got, ok := q.Pop()
		require.True(t, ok)
		require.Equal(t, want, got)
	}
	_, ok := q.Pop()
	assert.False(t, ok)
}

func TestPriorityQueueBoundedTopK(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	const k = 10
	q := NewPriorityQueue(k, func(a, b float64) bool { return a < b })
	scores := make([]float64, 500)
	for i := range scores {
		scores[i] = rng.Float64()
		q.Insert(scores[i])
	}
	sort.Float64s(scores)
	want := scores[len(scores)-k:]

	require.Equal(t, k, q.Size())
	for _, w := range want {
		got, ok := q.Pop()
		require.True(t, ok)
		assert.Equal(t, w, got)
	}
}

func TestPriorityQueueAdjustTop(t *testing.T) {
	type cursor struct{ v int }
	q := NewPriorityQueue(0, func(a, b *cursor) bool { return a.v < b.v })
	for _, v := range []int{5, 1, 3} {
		q.Put(&cursor{v})
	}
	top, _ := q.Top()
	top.v = 10
	q.AdjustTop()
	top, _ = q.Top()
	assert.Equal(t, 3, top.v)

	q.Clear()
	assert.Equal(t, 0, q.Size())
	_, ok := q.Top()
	assert.False(t, ok)
}

func BenchmarkPriorityQueuePutPop(b *testing.B) {
	q := NewPriorityQueue(0, func(a, b int) bool { return a < b })
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		q.Put(i ^ 0x5555)
		if q.Size() > 1024 {
			q.Pop()
		}
	}
}
