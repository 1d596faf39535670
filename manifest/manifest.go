// Package manifest records what a generation run produced.
//
// A manifest is written next to the generated packages. It lists the
// requested roots, the digests of the metadata sources, one entry per
// emitted type and one per file, so a later run can tell which files are
// unchanged. A run that rejected any root records the rejection report
// instead of nodes and files.
package manifest

import (
	"bytes"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/zeebo/xxh3"

	"github.com/wippyai/winrt-bindgen/errors"
)

// FileName is the name of the manifest in the output directory
const FileName = "bindgen.manifest"

// SchemaVersion changes whenever the encoded layout changes
const SchemaVersion uint16 = 1

// Manifest is the record of one run
type Manifest struct {
	ImportRoot string      `msgpack:"import_root"`
	Roots      []string    `msgpack:"roots"`
	Sources    []Source    `msgpack:"sources"`
	Nodes      []Node      `msgpack:"nodes,omitempty"`
	Files      []File      `msgpack:"files,omitempty"`
	Rejections []Rejection `msgpack:"rejections,omitempty"`
	Version    uint16      `msgpack:"version"`
}

// Source identifies one metadata source of the run
type Source struct {
	Name   string `msgpack:"name"`
	Path   string `msgpack:"path,omitempty"`
	Digest uint64 `msgpack:"digest"`
	// Dependency is set for sources that contribute definitions only
	Dependency bool `msgpack:"dependency,omitempty"`
}

// Node is one emitted type or generic instance
type Node struct {
	Key     string `msgpack:"key"`
	Kind    string `msgpack:"kind"`
	Package string `msgpack:"package"`
	Name    string `msgpack:"name"`
	IID     string `msgpack:"iid,omitempty"`
	Slots   int    `msgpack:"slots,omitempty"`
	Size    uint32 `msgpack:"size,omitempty"`
	Align   uint32 `msgpack:"align,omitempty"`
}

// File is one written source file; Path is relative to the output directory
type File struct {
	Path       string `msgpack:"path"`
	ImportPath string `msgpack:"import_path"`
	Digest     uint64 `msgpack:"digest"`
}

// Rejection is one entry of the run's rejection report
type Rejection struct {
	Root   string `msgpack:"root"`
	Type   string `msgpack:"type,omitempty"`
	Phase  string `msgpack:"phase"`
	Kind   string `msgpack:"kind"`
	Detail string `msgpack:"detail"`
}

// New returns an empty manifest of the current schema
func New(importRoot string, roots []string) *Manifest {
	return &Manifest{
		Version:    SchemaVersion,
		ImportRoot: importRoot,
		Roots:      append([]string(nil), roots...),
	}
}

// Digest hashes generated source the way file entries do
func Digest(src []byte) uint64 {
	return xxh3.Hash(src)
}

// AddFile records a generated file
func (m *Manifest) AddFile(path, importPath string, src []byte) {
	m.Files = append(m.Files, File{Path: filepath.ToSlash(path), ImportPath: importPath, Digest: Digest(src)})
}

// AddReport records every rejection of rep
func (m *Manifest) AddReport(rep *errors.RejectionReport) {
	if rep == nil {
		return
	}
	for _, r := range rep.Rejections() {
		m.Rejections = append(m.Rejections, Rejection{
			Root:   r.Root,
			Type:   r.Type,
			Phase:  string(r.Err.Phase),
			Kind:   string(r.Err.Kind),
			Detail: r.Err.Detail,
		})
	}
}

// Rejected reports whether the run rejected any root
func (m *Manifest) Rejected() bool {
	return len(m.Rejections) > 0
}

// File returns the entry for path
func (m *Manifest) File(path string) (File, bool) {
	path = filepath.ToSlash(path)
	for _, f := range m.Files {
		if f.Path == path {
			return f, true
		}
	}
	return File{}, false
}

// Unchanged reports whether m already records path with the digest of src
func (m *Manifest) Unchanged(path string, src []byte) bool {
	if m == nil {
		return false
	}
	f, ok := m.File(path)
	return ok && f.Digest == Digest(src)
}

// Stale returns the files recorded in m that next no longer produces
func (m *Manifest) Stale(next *Manifest) []string {
	if m == nil {
		return nil
	}
	keep := make(map[string]bool, len(next.Files))
	for _, f := range next.Files {
		keep[f.Path] = true
	}
	var stale []string
	for _, f := range m.Files {
		if !keep[f.Path] {
			stale = append(stale, f.Path)
		}
	}
	sort.Strings(stale)
	return stale
}

// Encode writes m to w
func (m *Manifest) Encode(w io.Writer) error {
	enc := msgpack.NewEncoder(w)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(m); err != nil {
		return errors.Wrap(errors.PhaseEmit, errors.KindInvalidInput, err, "encode manifest")
	}
	return nil
}

// Decode reads a manifest from r. Manifests of another schema version are
// refused.
func Decode(r io.Reader) (*Manifest, error) {
	var m Manifest
	if err := msgpack.NewDecoder(r).Decode(&m); err != nil {
		return nil, errors.Malformed(FileName, "cannot decode manifest", err)
	}
	if m.Version != SchemaVersion {
		return nil, errors.New(errors.PhaseLoad, errors.KindUnsupported).
			Source(FileName).
			Value(m.Version).
			Detail("manifest schema %d, want %d", m.Version, SchemaVersion).
			Build()
	}
	return &m, nil
}

// Marshal encodes m into a byte slice
func (m *Manifest) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	if err := m.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write stores m as FileName in dir, replacing any previous manifest
// atomically
func (m *Manifest) Write(dir string) (err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(errors.PhaseEmit, errors.KindInvalidInput, err, "create "+dir)
	}
	f, err := os.CreateTemp(dir, "tmp-*")
	if err != nil {
		return errors.Wrap(errors.PhaseEmit, errors.KindInvalidInput, err, "create manifest")
	}
	defer func() {
		if rmErr := os.Remove(f.Name()); rmErr != nil && !stderrors.Is(rmErr, os.ErrNotExist) && err == nil {
			err = rmErr
		}
	}()

	if err := m.Encode(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(errors.PhaseEmit, errors.KindInvalidInput, err, "write manifest")
	}
	if err := os.Rename(f.Name(), filepath.Join(dir, FileName)); err != nil {
		return errors.Wrap(errors.PhaseEmit, errors.KindInvalidInput, err, "replace manifest")
	}
	return nil
}

// Read loads the manifest in dir. A missing manifest is not an error: Read
// returns nil, nil.
func Read(dir string) (*Manifest, error) {
	f, err := os.Open(filepath.Join(dir, FileName))
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.New(errors.PhaseLoad, errors.KindNotFound).
			Source(filepath.Join(dir, FileName)).
			Cause(err).
			Build()
	}
	defer f.Close()
	return Decode(f)
}
