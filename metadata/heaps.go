package metadata

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"

	mdbinary "github.com/wippyai/winrt-bindgen/metadata/internal/binary"
)

// heaps holds the string, blob and GUID heaps of one source
type heaps struct {
	strings []byte
	blobs   []byte
	guids   []byte
}

func (h *heaps) checkString(i uint32) error {
	if uint64(i) >= uint64(len(h.strings)) {
		if i == 0 {
			return nil
		}
		return fmt.Errorf("string index %d outside heap of %d bytes", i, len(h.strings))
	}
	end := bytes.IndexByte(h.strings[i:], 0)
	if end < 0 {
		return fmt.Errorf("string at %d is not terminated", i)
	}
	if !utf8.Valid(h.strings[i : int(i)+end]) {
		return fmt.Errorf("string at %d is not valid UTF-8", i)
	}
	return nil
}

// str returns the NUL-terminated string at index i. Indexes are validated at load.
func (h *heaps) str(i uint32) string {
	if uint64(i) >= uint64(len(h.strings)) {
		return ""
	}
	s := h.strings[i:]
	if end := bytes.IndexByte(s, 0); end >= 0 {
		s = s[:end]
	}
	return string(s)
}

func (h *heaps) checkBlob(i uint32) error {
	if i == 0 && len(h.blobs) == 0 {
		return nil
	}
	if uint64(i) >= uint64(len(h.blobs)) {
		return fmt.Errorf("blob index %d outside heap of %d bytes", i, len(h.blobs))
	}
	n, size, err := mdbinary.DecodeCompressed(h.blobs[i:])
	if err != nil {
		return fmt.Errorf("blob at %d: %w", i, err)
	}
	if uint64(i)+uint64(size)+uint64(n) > uint64(len(h.blobs)) {
		return fmt.Errorf("blob at %d of length %d runs past heap end", i, n)
	}
	return nil
}

// blob returns the blob at index i. Indexes are validated at load.
func (h *heaps) blob(i uint32) []byte {
	if uint64(i) >= uint64(len(h.blobs)) {
		return nil
	}
	n, size, err := mdbinary.DecodeCompressed(h.blobs[i:])
	if err != nil {
		return nil
	}
	start := int(i) + size
	return h.blobs[start : start+int(n)]
}

func (h *heaps) checkGUID(i uint32) error {
	if uint64(i)*16 > uint64(len(h.guids)) {
		return fmt.Errorf("guid index %d outside heap of %d entries", i, len(h.guids)/16)
	}
	return nil
}

// guid returns the 1-based GUID heap entry i; 0 is the nil GUID.
func (h *heaps) guid(i uint32) uuid.UUID {
	var g uuid.UUID
	if i == 0 || uint64(i)*16 > uint64(len(h.guids)) {
		return g
	}
	raw := h.guids[(i-1)*16 : i*16]
	return guidFromMemory(raw)
}

// guidFromMemory converts the in-memory GUID layout (little-endian Data1..Data3)
// into the RFC 4122 byte order used by uuid.UUID.
func guidFromMemory(raw []byte) uuid.UUID {
	var g uuid.UUID
	g[0], g[1], g[2], g[3] = raw[3], raw[2], raw[1], raw[0]
	g[4], g[5] = raw[5], raw[4]
	g[6], g[7] = raw[7], raw[6]
	copy(g[8:], raw[8:16])
	return g
}

// GUIDToMemory converts g into the in-memory GUID layout.
func GUIDToMemory(g uuid.UUID) [16]byte {
	var raw [16]byte
	raw[0], raw[1], raw[2], raw[3] = g[3], g[2], g[1], g[0]
	raw[4], raw[5] = g[5], g[4]
	raw[6], raw[7] = g[7], g[6]
	copy(raw[8:], g[8:])
	return raw
}
