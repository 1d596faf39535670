package metadata

import (
	"bytes"
	"debug/pe"
	"encoding/binary"
	"errors"
	"fmt"

	mdbinary "github.com/wippyai/winrt-bindgen/metadata/internal/binary"
)

// RootSignature is the magic number of a metadata root ("BSJB")
const RootSignature = 0x424A5342

const (
	clrDataDirectory = 14
	maxStreams       = 16
	maxVersionLength = 255
)

// root is a parsed metadata root with its streams
type root struct {
	version string
	streams map[string][]byte
}

// locateRoot returns the metadata root bytes of a PE image or the blob itself
// when it already starts with the BSJB signature.
func locateRoot(blob []byte) ([]byte, error) {
	if len(blob) >= 4 && binary.LittleEndian.Uint32(blob) == RootSignature {
		return blob, nil
	}
	if len(blob) < 2 || blob[0] != 'M' || blob[1] != 'Z' {
		return nil, errors.New("neither a PE image nor a metadata root")
	}

	f, err := pe.NewFile(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("pe: %w", err)
	}
	defer f.Close()

	var dir pe.DataDirectory
	switch oh := f.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		if oh.NumberOfRvaAndSizes <= clrDataDirectory {
			return nil, errors.New("pe: no CLI header directory")
		}
		dir = oh.DataDirectory[clrDataDirectory]
	case *pe.OptionalHeader64:
		if oh.NumberOfRvaAndSizes <= clrDataDirectory {
			return nil, errors.New("pe: no CLI header directory")
		}
		dir = oh.DataDirectory[clrDataDirectory]
	default:
		return nil, errors.New("pe: missing optional header")
	}
	if dir.VirtualAddress == 0 || dir.Size < 16 {
		return nil, errors.New("pe: image has no CLI header")
	}

	cli, err := sliceRVA(f, blob, dir.VirtualAddress, dir.Size)
	if err != nil {
		return nil, fmt.Errorf("pe: CLI header: %w", err)
	}
	mdRVA := binary.LittleEndian.Uint32(cli[8:])
	mdSize := binary.LittleEndian.Uint32(cli[12:])
	md, err := sliceRVA(f, blob, mdRVA, mdSize)
	if err != nil {
		return nil, fmt.Errorf("pe: metadata directory: %w", err)
	}
	return md, nil
}

// sliceRVA maps a relative virtual address range to a slice of the file
func sliceRVA(f *pe.File, blob []byte, rva, size uint32) ([]byte, error) {
	for _, s := range f.Sections {
		extent := s.VirtualSize
		if extent < s.Size {
			extent = s.Size
		}
		if rva < s.VirtualAddress || uint64(rva)+uint64(size) > uint64(s.VirtualAddress)+uint64(extent) {
			continue
		}
		start := uint64(rva-s.VirtualAddress) + uint64(s.Offset)
		end := start + uint64(size)
		if end > uint64(len(blob)) {
			return nil, fmt.Errorf("rva 0x%x+%d beyond end of file", rva, size)
		}
		return blob[start:end], nil
	}
	return nil, fmt.Errorf("rva 0x%x not inside any section", rva)
}

// parseRoot decodes the metadata root header and its stream directory.
// Every stream must lie inside the root.
func parseRoot(data []byte) (*root, error) {
	br := getReader(data)
	defer putReader(br)
	r := mdbinary.NewReader(br)

	sig, err := r.ReadU32LE()
	if err != nil {
		return nil, r.WrapError("root", err)
	}
	if sig != RootSignature {
		return nil, r.WrapError("root", fmt.Errorf("bad signature 0x%08x", sig))
	}
	if err := r.Skip(8); err != nil { // major, minor, reserved
		return nil, r.WrapError("root", err)
	}
	vlen, err := r.ReadU32LE()
	if err != nil {
		return nil, r.WrapError("root", err)
	}
	if vlen > maxVersionLength+1 {
		return nil, r.WrapError("root", fmt.Errorf("version length %d too large", vlen))
	}
	vbytes, err := r.ReadBytes(int(vlen))
	if err != nil {
		return nil, r.WrapError("root", err)
	}
	if err := r.Align(4); err != nil {
		return nil, r.WrapError("root", err)
	}
	if err := r.Skip(2); err != nil { // flags
		return nil, r.WrapError("root", err)
	}
	count, err := r.ReadU16LE()
	if err != nil {
		return nil, r.WrapError("root", err)
	}
	if count > maxStreams {
		return nil, r.WrapError("root", fmt.Errorf("too many streams: %d", count))
	}

	rt := &root{
		version: string(bytes.TrimRight(vbytes, "\x00")),
		streams: make(map[string][]byte, count),
	}
	for i := 0; i < int(count); i++ {
		off, err := r.ReadU32LE()
		if err != nil {
			return nil, r.WrapError("stream header", err)
		}
		size, err := r.ReadU32LE()
		if err != nil {
			return nil, r.WrapError("stream header", err)
		}
		name, err := r.ReadCString(32)
		if err != nil {
			return nil, r.WrapError("stream header", err)
		}
		if err := r.Align(4); err != nil {
			return nil, r.WrapError("stream header", err)
		}
		if uint64(off)+uint64(size) > uint64(len(data)) {
			return nil, r.WrapError("stream header", fmt.Errorf("stream %s [%d, %d) exceeds root of %d bytes", name, off, uint64(off)+uint64(size), len(data)))
		}
		if _, dup := rt.streams[name]; dup {
			return nil, r.WrapError("stream header", fmt.Errorf("duplicate stream %s", name))
		}
		rt.streams[name] = data[off : off+size]
	}

	if _, ok := rt.tableStream(); !ok {
		return nil, errors.New("missing #~ stream")
	}
	if _, ok := rt.streams["#Strings"]; !ok {
		return nil, errors.New("missing #Strings stream")
	}
	return rt, nil
}

func (rt *root) tableStream() ([]byte, bool) {
	if s, ok := rt.streams["#~"]; ok {
		return s, true
	}
	s, ok := rt.streams["#-"]
	return s, ok
}
