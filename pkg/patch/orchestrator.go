package patch

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-ro/internal/config"
	"github.com/Faultbox/midgard-ro/internal/logger"
	"github.com/Faultbox/midgard-ro/pkg/archiveerr"
	"github.com/Faultbox/midgard-ro/pkg/grf"
)

// Orchestrator applies a patch archive of any supported format to a target
// GRF. It is the only component in this module that spans multiple patch
// formats; each codec it drives is single-format.
type Orchestrator struct {
	cfg *config.Config
}

// NewOrchestrator constructs an Orchestrator bound to cfg. Staging and
// commit both operate on the already-open target archive; no temp directory
// is needed here; WorkingDir (pkg/patch/workingdir.go) exists for a
// downloader collaborator to stage fetched patch files before handing their
// on-disk paths to Apply, not for Apply itself.
func NewOrchestrator(cfg *config.Config) *Orchestrator {
	return &Orchestrator{cfg: cfg}
}

// Apply classifies archivePath by extension, parses it, and stages its
// contents into target, committing once all entries are processed.
func (o *Orchestrator) Apply(ctx context.Context, archivePath string, target *grf.Archive) error {
	if o.cfg != nil && !o.cfg.Patcher.AllowManualPatch {
		return pkgerrors.New("manual patch application is disabled by configuration")
	}

	ext := strings.ToLower(filepath.Ext(archivePath))

	logger.Info("applying patch", zap.String("path", archivePath), zap.String("format", ext))

	var err error
	switch ext {
	case ".beam":
		err = o.applyBeam(ctx, archivePath, target)
	case ".thor":
		err = o.applyThor(ctx, archivePath, target)
	case ".rgz":
		err = o.applyRGZ(ctx, archivePath, target)
	case ".gpf":
		err = o.applyGPF(ctx, archivePath, target)
	default:
		return archiveerr.New(archiveerr.UnknownPatchFormat, "%s", ext)
	}
	if err != nil {
		return pkgerrors.Wrap(err, "applying patch "+archivePath)
	}

	if err := target.Commit(); err != nil {
		return pkgerrors.Wrap(err, "committing target GRF after "+archivePath)
	}

	logger.Info("patch applied", zap.String("path", archivePath))
	return nil
}

func (o *Orchestrator) applyBeam(ctx context.Context, archivePath string, target *grf.Archive) error {
	beam, err := OpenBeam(archivePath)
	if err != nil {
		return err
	}

	names := beam.List()

	// BEAM MD5 verification happens for every entry before any staging, so
	// a bad archive leaves the target untouched (spec.md §4.8 step 2, §7).
	// This is unconditional: VerifyChecksums (spec.md §6) scopes only the
	// patch-list and downloader layers, not BEAM's own integrity check.
	for _, name := range names {
		ok, err := beam.Verify(name)
		if err != nil {
			return err
		}
		if !ok {
			return archiveerr.New(archiveerr.ChecksumMismatch, "%s", name)
		}
	}

	for _, name := range names {
		if err := checkCancel(ctx); err != nil {
			return err
		}
		data, err := beam.Extract(name)
		if err != nil {
			return err
		}
		logger.Debug("staging BEAM entry", zap.String("filename", name), zap.Int("bytes", len(data)))
		target.Stage(name, data)
	}
	return nil
}

func (o *Orchestrator) applyThor(ctx context.Context, archivePath string, target *grf.Archive) error {
	data, err := os.ReadFile(archivePath)
	if err != nil {
		return archiveerr.Wrap(archiveerr.Io, err, "reading %s", archivePath)
	}
	entries, err := ParseThor(data)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if err := checkCancel(ctx); err != nil {
			return err
		}
		switch e := entry.(type) {
		case ThorAdd:
			logger.Debug("staging THOR add", zap.String("filename", e.Filename), zap.Int("bytes", len(e.Data)))
			target.Stage(e.Filename, e.Data)
		case ThorRemove:
			// The rebuild protocol has no delete step; removal requests
			// are logged and otherwise ignored (spec.md §9 open question).
			logger.Debug("ignoring THOR remove", zap.String("filename", e.Filename))
		}
	}
	return nil
}

func (o *Orchestrator) applyRGZ(ctx context.Context, archivePath string, target *grf.Archive) error {
	data, err := os.ReadFile(archivePath)
	if err != nil {
		return archiveerr.Wrap(archiveerr.Io, err, "reading %s", archivePath)
	}
	entries, err := ParseRGZ(data)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if err := checkCancel(ctx); err != nil {
			return err
		}
		switch e := entry.(type) {
		case RGZFile:
			logger.Debug("staging RGZ file", zap.String("name", e.Name), zap.Int("bytes", len(e.Data)))
			target.Stage(e.Name, e.Data)
		case RGZDirectory:
			logger.Debug("ignoring RGZ directory", zap.String("name", e.Name))
		}
	}
	return nil
}

func (o *Orchestrator) applyGPF(ctx context.Context, archivePath string, target *grf.Archive) error {
	source, err := grf.OpenGPF(archivePath)
	if err != nil {
		return err
	}
	defer source.Close()

	for _, name := range source.List() {
		if err := checkCancel(ctx); err != nil {
			return err
		}
		data, err := source.Extract(name)
		if err != nil {
			return err
		}
		logger.Debug("staging GPF entry", zap.String("filename", name), zap.Int("bytes", len(data)))
		target.Stage(name, data)
	}
	return nil
}

func checkCancel(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
