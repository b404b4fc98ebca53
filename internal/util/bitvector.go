// Package util holds the small data structures shared by the index and
// search packages.
package util

import (
	"fmt"
	"math/bits"

	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/store"
	apperrors "github.com/Adithya-Monish-Kumar-K/segment-search/pkg/errors"
)

// BitVector is a fixed-size bitset with a cached population count. Segment
// readers use it to mark deleted documents.
type BitVector struct {
	bits  []byte
	size  int
	count int
}

// NewBitVector returns a vector of n cleared bits.
func NewBitVector(n int) *BitVector {
	return &BitVector{
		bits: make([]byte, (n>>3)+1),
		size: n,
	}
}

// Set sets bit i.
func (v *BitVector) Set(i int) {
	v.bits[i>>3] |= 1 << (uint(i) & 7)
	v.count = -1
}

// Clear clears bit i.
func (v *BitVector) Clear(i int) {
	v.bits[i>>3] &^= 1 << (uint(i) & 7)
	v.count = -1
}

// Get reports whether bit i is set.
func (v *BitVector) Get(i int) bool {
	return v.bits[i>>3]&(1<<(uint(i)&7)) != 0
}

// Size returns the number of bits in the vector.
func (v *BitVector) Size() int {
	return v.size
}

// Count returns the number of set bits, computing it once after each change.
func (v *BitVector) Count() int {
	if v.count == -1 {
		c := 0
		for _, b := range v.bits {
			c += bits.OnesCount8(b)
		}
		v.count = c
	}
	return v.count
}

// Write stores the vector as size, count and the raw bytes.
func (v *BitVector) Write(dir store.Directory, name string) error {
	out, err := dir.CreateFile(name)
	if err != nil {
		return fmt.Errorf("creating bit vector %s: %w", name, err)
	}
	out.WriteInt(int32(v.size))
	out.WriteInt(int32(v.Count()))
	out.WriteBytes(v.bits)
	return out.Close()
}

// ReadBitVector loads a vector written by Write.
func ReadBitVector(dir store.Directory, name string) (*BitVector, error) {
	in, err := dir.OpenFile(name)
	if err != nil {
		return nil, fmt.Errorf("opening bit vector %s: %w", name, err)
	}
	defer in.Close()
	size, err := in.ReadInt()
	if err != nil {
		return nil, fmt.Errorf("reading bit vector size: %w", err)
	}
	count, err := in.ReadInt()
	if err != nil {
		return nil, fmt.Errorf("reading bit vector count: %w", err)
	}
	if size < 0 || count < 0 || count > size {
		return nil, apperrors.Corruptf("bit vector %s: size %d, count %d", name, size, count)
	}
	v := &BitVector{
		bits:  make([]byte, (size>>3)+1),
		size:  int(size),
		count: int(count),
	}
	if err := in.ReadBytes(v.bits); err != nil {
		return nil, fmt.Errorf("reading bit vector bits: %w", err)
	}
	return v, nil
}
