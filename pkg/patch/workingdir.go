package patch

import (
	"os"
	"path/filepath"

	"github.com/Faultbox/midgard-ro/pkg/archiveerr"
)

// WorkingDir abstracts a scratch directory for intermediate files, such as
// downloaded patch archives staged before they are handed to
// Orchestrator.Apply, replacing a process-wide temp path with a
// caller-supplied collaborator (spec.md §9 redesign flag). The Orchestrator
// itself does not use one.
type WorkingDir interface {
	Path() string
	TempFile(pattern string) (*os.File, error)
}

// DirWorkingDir is a WorkingDir backed by a single caller-supplied
// directory on disk.
type DirWorkingDir struct {
	dir string
}

// NewDirWorkingDir wraps dir as a WorkingDir, creating it (and any missing
// parents) if it does not exist.
func NewDirWorkingDir(dir string) (*DirWorkingDir, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, archiveerr.Wrap(archiveerr.Io, err, "creating working directory %s", dir)
	}
	return &DirWorkingDir{dir: dir}, nil
}

// Path returns the working directory's root.
func (d *DirWorkingDir) Path() string {
	return d.dir
}

// TempFile creates a new temp file under the working directory.
func (d *DirWorkingDir) TempFile(pattern string) (*os.File, error) {
	f, err := os.CreateTemp(d.dir, pattern)
	if err != nil {
		return nil, archiveerr.Wrap(archiveerr.Io, err, "creating temp file in %s", d.dir)
	}
	return f, nil
}

// JoinPath is a convenience for building a path inside the working
// directory without creating the file.
func (d *DirWorkingDir) JoinPath(name string) string {
	return filepath.Join(d.dir, name)
}
