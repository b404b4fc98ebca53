package index

import "math"

var normTable = func() [256]float32 {
	var t [256]float32
	for i := range t {
		t[i] = float32(i) / 255
	}
	return t
}()

// EncodeNorm scales 1/sqrt(numTerms) into a byte. The result is never zero,
// which is reserved for empty and deleted documents. An empty field gets the
// maximum norm.
func EncodeNorm(numTerms int) byte {
	if numTerms <= 1 {
		return 255
	}
	return byte(math.Ceil(255 / math.Sqrt(float64(numTerms))))
}

// DecodeNorm maps a norm byte back to approximately 1/sqrt(numTerms).
func DecodeNorm(b byte) float32 {
	return normTable[b]
}
