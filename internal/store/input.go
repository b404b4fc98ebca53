package store

import (
	"fmt"
	"io"
	"unicode/utf16"
)

const bufferSize = 1024

// InputStream is a buffered, seekable reader over one file. Clones share the
// underlying bytes and file handle but keep their own cursor and buffer.
type InputStream struct {
	src     io.ReaderAt
	closer  io.Closer
	length  int64
	isClone bool

	buf      []byte
	bufStart int64
	bufLen   int
	bufPos   int
}

func newInputStream(src io.ReaderAt, length int64, closer io.Closer) *InputStream {
	return &InputStream{
		src:    src,
		closer: closer,
		length: length,
	}
}

// ReadByte reads and returns a single byte.
func (in *InputStream) ReadByte() (byte, error) {
	if in.bufPos >= in.bufLen {
		if err := in.refill(); err != nil {
			return 0, err
		}
	}
	b := in.buf[in.bufPos]
	in.bufPos++
	return b, nil
}

// ReadBytes fills b completely.
func (in *InputStream) ReadBytes(b []byte) error {
	if len(b) < bufferSize {
		for i := range b {
			c, err := in.ReadByte()
			if err != nil {
				return err
			}
			b[i] = c
		}
		return nil
	}
	pos := in.FilePointer()
	if pos+int64(len(b)) > in.length {
		return fmt.Errorf("reading %d bytes at %d: %w", len(b), pos, io.ErrUnexpectedEOF)
	}
	if n, err := in.src.ReadAt(b, pos); n < len(b) {
		return fmt.Errorf("reading %d bytes at %d: %w", len(b), pos, err)
	}
	in.bufStart = pos + int64(len(b))
	in.bufPos = 0
	in.bufLen = 0
	return nil
}

// ReadInt reads four bytes as a big-endian int32.
func (in *InputStream) ReadInt() (int32, error) {
	var v uint32
	for i := 0; i < 4; i++ {
		b, err := in.ReadByte()
		if err != nil {
			return 0, err
		}
		v = v<<8 | uint32(b)
	}
	return int32(v), nil
}

// ReadVInt reads an integer stored in the variable-length format: seven bits
// per byte, low-order groups first, high bit set on every byte but the last.
func (in *InputStream) ReadVInt() (int, error) {
	b, err := in.ReadByte()
	if err != nil {
		return 0, err
	}
	v := int(b & 0x7F)
	for shift := 7; b&0x80 != 0; shift += 7 {
		if b, err = in.ReadByte(); err != nil {
			return 0, err
		}
		v |= int(b&0x7F) << shift
	}
	return v, nil
}

// ReadLong reads eight bytes as a big-endian int64.
func (in *InputStream) ReadLong() (int64, error) {
	hi, err := in.ReadInt()
	if err != nil {
		return 0, err
	}
	lo, err := in.ReadInt()
	if err != nil {
		return 0, err
	}
	return int64(hi)<<32 | int64(uint32(lo)), nil
}

// ReadVLong reads a 64-bit value in the variable-length format.
func (in *InputStream) ReadVLong() (int64, error) {
	b, err := in.ReadByte()
	if err != nil {
		return 0, err
	}
	v := int64(b & 0x7F)
	for shift := 7; b&0x80 != 0; shift += 7 {
		if b, err = in.ReadByte(); err != nil {
			return 0, err
		}
		v |= int64(b&0x7F) << shift
	}
	return v, nil
}

// ReadString reads a string written by OutputStream.WriteString.
func (in *InputStream) ReadString() (string, error) {
	n, err := in.ReadVInt()
	if err != nil {
		return "", err
	}
	chars := make([]uint16, n)
	if err := in.ReadChars(chars); err != nil {
		return "", err
	}
	return string(utf16.Decode(chars)), nil
}

// ReadChars decodes len(dst) UTF-16 code units from the modified UTF-8 form.
func (in *InputStream) ReadChars(dst []uint16) error {
	for i := range dst {
		b, err := in.ReadByte()
		if err != nil {
			return err
		}
		switch {
		case b&0x80 == 0:
			dst[i] = uint16(b & 0x7F)
		case b&0xE0 != 0xE0:
			b2, err := in.ReadByte()
			if err != nil {
				return err
			}
			dst[i] = uint16(b&0x1F)<<6 | uint16(b2&0x3F)
		default:
			b2, err := in.ReadByte()
			if err != nil {
				return err
			}
			b3, err := in.ReadByte()
			if err != nil {
				return err
			}
			dst[i] = uint16(b&0x0F)<<12 | uint16(b2&0x3F)<<6 | uint16(b3&0x3F)
		}
	}
	return nil
}

// FilePointer returns the current read position in the file.
func (in *InputStream) FilePointer() int64 {
	return in.bufStart + int64(in.bufPos)
}

// Seek moves the read position. The next read refills the buffer unless pos
// already falls inside it.
func (in *InputStream) Seek(pos int64) error {
	if pos < 0 || pos > in.length {
		return fmt.Errorf("seeking to %d in file of length %d: %w", pos, in.length, io.ErrUnexpectedEOF)
	}
	if pos >= in.bufStart && pos < in.bufStart+int64(in.bufLen) {
		in.bufPos = int(pos - in.bufStart)
		return nil
	}
	in.bufStart = pos
	in.bufPos = 0
	in.bufLen = 0
	return nil
}

// Length returns the file length in bytes.
func (in *InputStream) Length() int64 {
	return in.length
}

// Clone returns an independent cursor over the same file, positioned where
// this stream is. Closing a clone never closes the shared file.
func (in *InputStream) Clone() *InputStream {
	c := *in
	c.isClone = true
	if in.buf != nil {
		c.buf = make([]byte, bufferSize)
		copy(c.buf, in.buf[:in.bufLen])
	}
	return &c
}

// Close releases the file if this stream is the original; it is a no-op for
// clones.
func (in *InputStream) Close() error {
	if in == nil || in.isClone || in.closer == nil {
		return nil
	}
	closer := in.closer
	in.closer = nil
	return closer.Close()
}

func (in *InputStream) refill() error {
	start := in.bufStart + int64(in.bufPos)
	end := start + bufferSize
	if end > in.length {
		end = in.length
	}
	n := int(end - start)
	if n <= 0 {
		return fmt.Errorf("read past end of file at %d: %w", start, io.EOF)
	}
	if in.buf == nil {
		in.buf = make([]byte, bufferSize)
	}
	if got, err := in.src.ReadAt(in.buf[:n], start); got < n {
		return fmt.Errorf("filling buffer at %d: %w", start, err)
	}
	in.bufStart = start
	in.bufLen = n
	in.bufPos = 0
	return nil
}
