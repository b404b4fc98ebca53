package store

import (
	"errors"
	"unicode/utf16"
)

type fileSink interface {
	WriteAt(p []byte, off int64) (int, error)
	Close() error
}

// OutputStream is a buffered writer over one newly created file. Write
// methods do not return errors: the first failure is kept and reported by
// Flush, Err and Close, after which further writes are dropped.
type OutputStream struct {
	dst      fileSink
	sync     func() error
	buf      [bufferSize]byte
	bufStart int64
	bufPos   int
	size     int64
	err      error
	closed   bool
}

func newOutputStream(dst fileSink, sync func() error) *OutputStream {
	return &OutputStream{dst: dst, sync: sync}
}

// WriteByte appends one byte. It satisfies io.ByteWriter; the returned error
// is the sticky stream error.
func (out *OutputStream) WriteByte(b byte) error {
	if out.bufPos >= bufferSize {
		out.Flush()
	}
	out.buf[out.bufPos] = b
	out.bufPos++
	return out.err
}

// WriteBytes appends b.
func (out *OutputStream) WriteBytes(b []byte) {
	for _, c := range b {
		out.WriteByte(c)
	}
}

// WriteInt writes v as four big-endian bytes.
func (out *OutputStream) WriteInt(v int32) {
	out.WriteByte(byte(v >> 24))
	out.WriteByte(byte(v >> 16))
	out.WriteByte(byte(v >> 8))
	out.WriteByte(byte(v))
}

// WriteVInt writes a non-negative int in the variable-length format.
func (out *OutputStream) WriteVInt(v int) {
	u := uint32(v)
	for u&^0x7F != 0 {
		out.WriteByte(byte(u&0x7F | 0x80))
		u >>= 7
	}
	out.WriteByte(byte(u))
}

// WriteLong writes v as eight big-endian bytes.
func (out *OutputStream) WriteLong(v int64) {
	out.WriteInt(int32(v >> 32))
	out.WriteInt(int32(v))
}

// WriteVLong writes a non-negative int64 in the variable-length format.
func (out *OutputStream) WriteVLong(v int64) {
	u := uint64(v)
	for u&^0x7F != 0 {
		out.WriteByte(byte(u&0x7F | 0x80))
		u >>= 7
	}
	out.WriteByte(byte(u))
}

// WriteString writes the UTF-16 length of s followed by its characters.
func (out *OutputStream) WriteString(s string) {
	chars := utf16.Encode([]rune(s))
	out.WriteVInt(len(chars))
	out.WriteChars(chars)
}

// WriteChars writes UTF-16 code units in the modified UTF-8 form: one byte
// for 0x01-0x7F, two bytes for 0x80-0x7FF and for zero, three otherwise.
func (out *OutputStream) WriteChars(chars []uint16) {
	for _, c := range chars {
		switch {
		case c >= 0x01 && c <= 0x7F:
			out.WriteByte(byte(c))
		case (c >= 0x80 && c <= 0x7FF) || c == 0:
			out.WriteByte(byte(0xC0 | c>>6))
			out.WriteByte(byte(0x80 | c&0x3F))
		default:
			out.WriteByte(byte(0xE0 | c>>12))
			out.WriteByte(byte(0x80 | (c>>6)&0x3F))
			out.WriteByte(byte(0x80 | c&0x3F))
		}
	}
}

// FilePointer returns the offset the next byte will be written at.
func (out *OutputStream) FilePointer() int64 {
	return out.bufStart + int64(out.bufPos)
}

// Seek flushes pending bytes and moves the write position.
func (out *OutputStream) Seek(pos int64) {
	out.Flush()
	out.bufStart = pos
}

// Length returns the current length of the file.
func (out *OutputStream) Length() int64 {
	if fp := out.FilePointer(); fp > out.size {
		return fp
	}
	return out.size
}

// Flush writes buffered bytes to the file and returns the sticky error.
func (out *OutputStream) Flush() error {
	if out.err == nil && out.bufPos > 0 {
		if _, err := out.dst.WriteAt(out.buf[:out.bufPos], out.bufStart); err != nil {
			out.err = err
		}
	}
	out.bufStart += int64(out.bufPos)
	out.bufPos = 0
	if out.bufStart > out.size {
		out.size = out.bufStart
	}
	return out.err
}

// Err returns the first error encountered by this stream, if any.
func (out *OutputStream) Err() error {
	return out.err
}

// Close flushes, syncs and closes the file. It returns the first error the
// stream encountered.
func (out *OutputStream) Close() error {
	if out == nil {
		return nil
	}
	if out.closed {
		return out.err
	}
	out.closed = true
	err := out.Flush()
	if err == nil && out.sync != nil {
		err = out.sync()
	}
	return errors.Join(err, out.dst.Close())
}
