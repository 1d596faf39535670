package binary

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrBadCompressed is returned when a compressed integer has an invalid lead byte.
var ErrBadCompressed = errors.New("compressed integer: invalid encoding")

// Reader wraps an io.ByteReader with position tracking and ECMA-335 read methods.
type Reader struct {
	r   io.ByteReader
	pos int
}

// NewReader creates a new Reader wrapping the given io.ByteReader.
func NewReader(r io.ByteReader) *Reader {
	return &Reader{r: r, pos: 0}
}

// Position returns the current byte position.
func (r *Reader) Position() int {
	return r.pos
}

// Reset seeks to the given position. Only works with bytes.Reader.
func (r *Reader) Reset(pos int) error {
	if br, ok := r.r.(*bytes.Reader); ok {
		_, err := br.Seek(int64(pos), io.SeekStart)
		if err != nil {
			return err
		}
		r.pos = pos
		return nil
	}
	return errors.New("Reset not supported on this reader type")
}

// Len returns the number of unread bytes. Only works with bytes.Reader.
func (r *Reader) Len() int {
	if br, ok := r.r.(*bytes.Reader); ok {
		return br.Len()
	}
	return -1
}

// ReadByte reads a single byte and advances the position.
func (r *Reader) ReadByte() (byte, error) {
	b, err := r.r.ReadByte()
	if err != nil {
		return 0, err
	}
	r.pos++
	return b, nil
}

// ReadBytes reads exactly n bytes.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, r.wrapError(fmt.Errorf("negative length %d", n))
	}
	if br, ok := r.r.(*bytes.Reader); ok && n > br.Len() {
		return nil, r.wrapError(io.ErrUnexpectedEOF)
	}
	buf := make([]byte, n)
	for i := 0; i < n; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		buf[i] = b
	}
	return buf, nil
}

// Skip advances the position by n bytes.
func (r *Reader) Skip(n int) error {
	_, err := r.ReadBytes(n)
	return err
}

// ReadU16LE reads a little-endian uint16.
func (r *Reader) ReadU16LE() (uint16, error) {
	buf, err := r.ReadBytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf), nil
}

// ReadU32LE reads a little-endian uint32 (fixed 4 bytes).
func (r *Reader) ReadU32LE() (uint32, error) {
	buf, err := r.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf), nil
}

// ReadU64LE reads a little-endian uint64.
func (r *Reader) ReadU64LE() (uint64, error) {
	buf, err := r.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf), nil
}

// ReadIndex reads a heap or table index that is either 2 or 4 bytes wide.
func (r *Reader) ReadIndex(wide bool) (uint32, error) {
	if wide {
		return r.ReadU32LE()
	}
	v, err := r.ReadU16LE()
	return uint32(v), err
}

// ReadCompressed reads an ECMA-335 compressed unsigned integer (II.23.2).
func (r *Reader) ReadCompressed() (uint32, error) {
	b0, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	switch {
	case b0&0x80 == 0:
		return uint32(b0), nil
	case b0&0xC0 == 0x80:
		b1, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		return uint32(b0&0x3F)<<8 | uint32(b1), nil
	case b0&0xE0 == 0xC0:
		rest, err := r.ReadBytes(3)
		if err != nil {
			return 0, err
		}
		return uint32(b0&0x1F)<<24 | uint32(rest[0])<<16 | uint32(rest[1])<<8 | uint32(rest[2]), nil
	default:
		return 0, r.wrapError(ErrBadCompressed)
	}
}

// ReadCString reads a NUL-terminated string of at most limit bytes.
func (r *Reader) ReadCString(limit int) (string, error) {
	var buf []byte
	for i := 0; i < limit; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return "", err
		}
		if b == 0 {
			return string(buf), nil
		}
		buf = append(buf, b)
	}
	return "", r.wrapError(errors.New("unterminated string"))
}

// Align advances the position to the next multiple of n.
func (r *Reader) Align(n int) error {
	if rem := r.pos % n; rem != 0 {
		return r.Skip(n - rem)
	}
	return nil
}

// DecodeCompressed decodes a compressed unsigned integer at the start of data,
// returning the value and the number of bytes consumed.
func DecodeCompressed(data []byte) (uint32, int, error) {
	if len(data) == 0 {
		return 0, 0, io.ErrUnexpectedEOF
	}
	b0 := data[0]
	switch {
	case b0&0x80 == 0:
		return uint32(b0), 1, nil
	case b0&0xC0 == 0x80:
		if len(data) < 2 {
			return 0, 0, io.ErrUnexpectedEOF
		}
		return uint32(b0&0x3F)<<8 | uint32(data[1]), 2, nil
	case b0&0xE0 == 0xC0:
		if len(data) < 4 {
			return 0, 0, io.ErrUnexpectedEOF
		}
		return uint32(b0&0x1F)<<24 | uint32(data[1])<<16 | uint32(data[2])<<8 | uint32(data[3]), 4, nil
	default:
		return 0, 0, ErrBadCompressed
	}
}

func (r *Reader) wrapError(err error) error {
	return fmt.Errorf("at position %d: %w", r.pos, err)
}

// ParseError represents an error during metadata parsing with position information.
type ParseError struct {
	Err      error
	Section  string
	Position int
}

func (e *ParseError) Error() string {
	if e.Section != "" {
		return fmt.Sprintf("metadata: %s at position %d: %v", e.Section, e.Position, e.Err)
	}
	return fmt.Sprintf("metadata: at position %d: %v", e.Position, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// WrapError creates a ParseError with the current position.
func (r *Reader) WrapError(section string, err error) error {
	return &ParseError{
		Position: r.pos,
		Section:  section,
		Err:      err,
	}
}
