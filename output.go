package bindgen

import (
	stderrors "errors"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/wippyai/winrt-bindgen/errors"
	"github.com/wippyai/winrt-bindgen/manifest"
)

// WriteStats lists what Write did, by path relative to the output directory
type WriteStats struct {
	Written   []string
	Unchanged []string
	Removed   []string
}

// Write stores the generated files and the manifest below dir. Files the
// previous manifest in dir records with identical content are left alone
// and files it records that this run no longer produces are removed. A
// rejected run writes only its manifest.
func (r *Result) Write(dir string) (WriteStats, error) {
	var stats WriteStats
	if r == nil || r.Manifest == nil {
		return stats, errors.InvalidInput(errors.PhaseEmit, "nothing to write")
	}
	log := Logger()

	prev, err := manifest.Read(dir)
	if err != nil {
		// An unreadable manifest only costs the skip of unchanged files
		log.Warn("ignoring previous manifest", zap.String("dir", dir), zap.Error(err))
		prev = nil
	}

	if !r.Manifest.Rejected() {
		for _, f := range r.Files {
			path := filepath.Join(dir, filepath.FromSlash(f.Path))
			if prev.Unchanged(f.Path, f.Source) && exists(path) {
				stats.Unchanged = append(stats.Unchanged, f.Path)
				continue
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return stats, errors.Wrap(errors.PhaseEmit, errors.KindInvalidInput, err, "create "+filepath.Dir(path))
			}
			if err := os.WriteFile(path, f.Source, 0o644); err != nil {
				return stats, errors.Wrap(errors.PhaseEmit, errors.KindInvalidInput, err, "write "+path)
			}
			stats.Written = append(stats.Written, f.Path)
		}
		for _, p := range prev.Stale(r.Manifest) {
			err := os.Remove(filepath.Join(dir, filepath.FromSlash(p)))
			if err != nil && !stderrors.Is(err, os.ErrNotExist) {
				return stats, errors.Wrap(errors.PhaseEmit, errors.KindInvalidInput, err, "remove "+p)
			}
			stats.Removed = append(stats.Removed, p)
		}
	}

	if err := r.Manifest.Write(dir); err != nil {
		return stats, err
	}
	log.Debug("wrote output",
		zap.String("dir", dir),
		zap.Int("written", len(stats.Written)),
		zap.Int("unchanged", len(stats.Unchanged)),
		zap.Int("removed", len(stats.Removed)))
	return stats, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
