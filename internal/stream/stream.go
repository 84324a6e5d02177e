// Package stream implements the little-endian primitives of the timeline
// binary format: fixed-width integers and floats, colors, and length-prefixed
// strings stored with a fixed XOR key.
//
// Reader and Writer keep the first error they hit and turn every later call
// into a no-op, so codecs can read a whole record and check Err once.
package stream

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image/color"
	"io"
	"math"
)

// StringKey is the XOR key applied to every byte of a stored string.
const StringKey int8 = -13

// MaxStringLen bounds string lengths read from untrusted input.
const MaxStringLen = 1 << 20

var ErrNegativeLength = errors.New("stream: negative length")

func obfuscate(b []byte) {
	k := StringKey
	for i := range b {
		b[i] ^= byte(k)
	}
}

// Writer appends encoded values to an in-memory buffer.
type Writer struct {
	buf bytes.Buffer
	err error
	tmp [8]byte
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer {
	return &Writer{}
}

func (w *Writer) write(p []byte) {
	if w.err != nil {
		return
	}
	_, w.err = w.buf.Write(p)
}

func (w *Writer) Byte(v byte) {
	if w.err != nil {
		return
	}
	w.err = w.buf.WriteByte(v)
}

func (w *Writer) Bool(v bool) {
	if v {
		w.Byte(1)
		return
	}
	w.Byte(0)
}

func (w *Writer) Int32(v int32) {
	binary.LittleEndian.PutUint32(w.tmp[:4], uint32(v))
	w.write(w.tmp[:4])
}

func (w *Writer) Float32(v float32) {
	binary.LittleEndian.PutUint32(w.tmp[:4], math.Float32bits(v))
	w.write(w.tmp[:4])
}

// String writes an int32 byte length followed by the obfuscated UTF-8 bytes.
func (w *Writer) String(s string) {
	b := []byte(s)
	obfuscate(b)
	w.Int32(int32(len(b)))
	w.write(b)
}

// Color writes a color32 as R, G, B, A bytes.
func (w *Writer) Color(c color.RGBA) {
	w.write([]byte{c.R, c.G, c.B, c.A})
}

// Blob writes an int32 length followed by raw bytes.
func (w *Writer) Blob(b []byte) {
	w.Int32(int32(len(b)))
	w.write(b)
}

// Err returns the first write error.
func (w *Writer) Err() error { return w.err }

// Len reports the number of bytes written so far.
func (w *Writer) Len() int { return w.buf.Len() }

// Bytes returns a copy of the encoded data.
func (w *Writer) Bytes() []byte {
	out := make([]byte, w.buf.Len())
	copy(out, w.buf.Bytes())
	return out
}

// Reader decodes values from an in-memory buffer.
type Reader struct {
	r   *bytes.Reader
	err error
	tmp [8]byte
}

// NewReader returns a Reader over data. The slice is not copied.
func NewReader(data []byte) *Reader {
	return &Reader{r: bytes.NewReader(data)}
}

func (r *Reader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *Reader) read(p []byte) bool {
	if r.err != nil {
		return false
	}
	if _, err := io.ReadFull(r.r, p); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		r.fail(fmt.Errorf("stream: read %d bytes at offset %d: %w", len(p), r.Offset(), err))
		return false
	}
	return true
}

func (r *Reader) Byte() byte {
	if !r.read(r.tmp[:1]) {
		return 0
	}
	return r.tmp[0]
}

func (r *Reader) Bool() bool {
	return r.Byte() != 0
}

func (r *Reader) Int32() int32 {
	if !r.read(r.tmp[:4]) {
		return 0
	}
	return int32(binary.LittleEndian.Uint32(r.tmp[:4]))
}

func (r *Reader) Float32() float32 {
	if !r.read(r.tmp[:4]) {
		return 0
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(r.tmp[:4]))
}

func (r *Reader) length() int {
	n := r.Int32()
	if r.err != nil {
		return 0
	}
	if n < 0 {
		r.fail(fmt.Errorf("%w: %d", ErrNegativeLength, n))
		return 0
	}
	if n > MaxStringLen || int64(n) > int64(r.r.Len()) {
		r.fail(fmt.Errorf("stream: length %d exceeds remaining %d bytes: %w", n, r.r.Len(), io.ErrUnexpectedEOF))
		return 0
	}
	return int(n)
}

// String reads a length-prefixed obfuscated string.
func (r *Reader) String() string {
	n := r.length()
	if r.err != nil || n == 0 {
		return ""
	}
	b := make([]byte, n)
	if !r.read(b) {
		return ""
	}
	obfuscate(b)
	return string(b)
}

func (r *Reader) Color() color.RGBA {
	if !r.read(r.tmp[:4]) {
		return color.RGBA{}
	}
	return color.RGBA{R: r.tmp[0], G: r.tmp[1], B: r.tmp[2], A: r.tmp[3]}
}

// Blob reads a length-prefixed raw byte slice.
func (r *Reader) Blob() []byte {
	n := r.length()
	if r.err != nil {
		return nil
	}
	b := make([]byte, n)
	if !r.read(b) {
		return nil
	}
	return b
}

// Err returns the first decode error.
func (r *Reader) Err() error { return r.err }

// Remaining reports the number of unread bytes.
func (r *Reader) Remaining() int { return r.r.Len() }

// Offset reports the current read position.
func (r *Reader) Offset() int64 {
	return r.r.Size() - int64(r.r.Len())
}
