// Package wire is the byte-stream substrate every packet is serialized with.
// All integers are fixed width and big-endian.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var be = binary.BigEndian

// Encoded widths, for Size() calculations.
const (
	SizeUint8  = 1
	SizeUint16 = 2
	SizeUint32 = 4
	SizeUint64 = 8
	SizeBool   = SizeUint8
)

// ErrUnderflow is returned when a read needs more bytes than remain.
var ErrUnderflow = errors.New("wire: buffer underflow")

// Writer appends fixed-width values to a buffer pre-sized to the declared capacity.
type Writer struct {
	buf []byte
}

// NewWriter allocates a writer for exactly size bytes (header + payload).
func NewWriter(size int) *Writer {
	return &Writer{buf: make([]byte, 0, size)}
}

// PutUint8 appends one byte.
func (w *Writer) PutUint8(v uint8) { w.buf = append(w.buf, v) }

// PutUint16 appends v in two big-endian bytes.
func (w *Writer) PutUint16(v uint16) { w.buf = be.AppendUint16(w.buf, v) }

// PutUint32 appends v in four big-endian bytes.
func (w *Writer) PutUint32(v uint32) { w.buf = be.AppendUint32(w.buf, v) }

// PutUint64 appends v in eight big-endian bytes.
func (w *Writer) PutUint64(v uint64) { w.buf = be.AppendUint64(w.buf, v) }

// PutInt64 writes v two's-complement as a uint64.
func (w *Writer) PutInt64(v int64) { w.PutUint64(uint64(v)) }

// PutBool writes v as a single 0 or 1 byte.
func (w *Writer) PutBool(v bool) {
	if v {
		w.PutUint8(1)
		return
	}
	w.PutUint8(0)
}

// PutBytes appends an opaque span without a length prefix.
func (w *Writer) PutBytes(b []byte) { w.buf = append(w.buf, b...) }

// Len is the number of bytes written so far.
func (w *Writer) Len() int { return len(w.buf) }

// Cap is the capacity declared at construction.
func (w *Writer) Cap() int { return cap(w.buf) }

// Bytes returns the encoded buffer. It aliases the writer.
func (w *Writer) Bytes() []byte { return w.buf }

// Reader consumes fixed-width values from a byte slice.
type Reader struct {
	buf []byte
	off int
}

// NewReader reads from b without copying it.
func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

// Remaining reports how many unread bytes are left.
func (r *Reader) Remaining() int { return len(r.buf) - r.off }

func (r *Reader) take(n int) ([]byte, error) {
	if n < 0 || r.Remaining() < n {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrUnderflow, n, r.Remaining())
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

// Uint8 consumes one byte.
func (r *Reader) Uint8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// Uint16 consumes a big-endian uint16.
func (r *Reader) Uint16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return be.Uint16(b), nil
}

// Uint32 consumes a big-endian uint32.
func (r *Reader) Uint32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return be.Uint32(b), nil
}

// Uint64 consumes a big-endian uint64.
func (r *Reader) Uint64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return be.Uint64(b), nil
}

// Int64 consumes a uint64 and reinterprets it as two's-complement.
func (r *Reader) Int64() (int64, error) {
	v, err := r.Uint64()
	return int64(v), err
}

// Bool consumes one byte; any non-zero value is true.
func (r *Reader) Bool() (bool, error) {
	v, err := r.Uint8()
	return v != 0, err
}

// Bytes returns the next n bytes. The slice aliases the reader's buffer.
func (r *Reader) Bytes(n int) ([]byte, error) {
	return r.take(n)
}
