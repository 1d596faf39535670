package binary

import (
	"bytes"
	"encoding/binary"
)

// Writer provides buffered writing utilities for ECMA-335 metadata encoding.
type Writer struct {
	buf *bytes.Buffer
}

// NewWriter creates a new Writer.
func NewWriter() *Writer {
	return &Writer{buf: &bytes.Buffer{}}
}

// Bytes returns the written bytes.
func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}

// Len returns the number of bytes written.
func (w *Writer) Len() int {
	return w.buf.Len()
}

// Byte writes a single byte.
func (w *Writer) Byte(b byte) {
	w.buf.WriteByte(b)
}

// WriteBytes writes a byte slice.
func (w *Writer) WriteBytes(data []byte) {
	w.buf.Write(data)
}

// WriteU16LE writes a little-endian uint16.
func (w *Writer) WriteU16LE(v uint16) {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	w.buf.Write(buf[:])
}

// WriteU32LE writes a little-endian uint32 (fixed 4 bytes).
func (w *Writer) WriteU32LE(v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	w.buf.Write(buf[:])
}

// WriteU64LE writes a little-endian uint64.
func (w *Writer) WriteU64LE(v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	w.buf.Write(buf[:])
}

// WriteIndex writes a 2 or 4 byte index.
func (w *Writer) WriteIndex(v uint32, wide bool) {
	if wide {
		w.WriteU32LE(v)
		return
	}
	w.WriteU16LE(uint16(v))
}

// WriteCompressed writes an ECMA-335 compressed unsigned integer.
// Values above 0x1FFFFFFF cannot be encoded and are truncated.
func (w *Writer) WriteCompressed(v uint32) {
	w.buf.Write(AppendCompressed(nil, v))
}

// WriteCString writes s followed by a NUL byte.
func (w *Writer) WriteCString(s string) {
	w.buf.WriteString(s)
	w.buf.WriteByte(0)
}

// Align pads with zero bytes to the next multiple of n.
func (w *Writer) Align(n int) {
	for w.buf.Len()%n != 0 {
		w.buf.WriteByte(0)
	}
}

// AppendCompressed appends the compressed encoding of v to dst.
func AppendCompressed(dst []byte, v uint32) []byte {
	switch {
	case v < 0x80:
		return append(dst, byte(v))
	case v < 0x4000:
		return append(dst, byte(v>>8)|0x80, byte(v))
	default:
		v &= 0x1FFFFFFF
		return append(dst, byte(v>>24)|0xC0, byte(v>>16), byte(v>>8), byte(v))
	}
}
