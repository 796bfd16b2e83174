package patch

import (
	"bytes"
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/Faultbox/midgard-ro/internal/config"
	"github.com/Faultbox/midgard-ro/pkg/archiveerr"
	"github.com/Faultbox/midgard-ro/pkg/binio"
	"github.com/Faultbox/midgard-ro/pkg/grf"
)

func newTestTarget(t *testing.T) (*grf.Archive, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "target.grf")
	target, err := grf.CreateNew(path)
	if err != nil {
		t.Fatalf("CreateNew: %v", err)
	}
	return target, path
}

func TestOrchestratorAppliesBeamPatch(t *testing.T) {
	target, _ := newTestTarget(t)

	b := NewBeam()
	b.Add("data/one.txt", []byte("hello"))
	beamPath := filepath.Join(t.TempDir(), "patch.beam")
	if err := b.Save(beamPath); err != nil {
		t.Fatalf("Save: %v", err)
	}

	o := NewOrchestrator(nil)
	if err := o.Apply(context.Background(), beamPath, target); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	data, err := target.Extract("data/one.txt")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("got %q", data)
	}
}

func TestOrchestratorBeamCorruptedMD5LeavesTargetUntouched(t *testing.T) {
	target, targetPath := newTestTarget(t)

	b := NewBeam()
	b.Add("data/one.txt", []byte("hello"))
	beamPath := filepath.Join(t.TempDir(), "patch.beam")
	if err := b.Save(beamPath); err != nil {
		t.Fatalf("Save: %v", err)
	}

	raw, err := os.ReadFile(beamPath)
	if err != nil {
		t.Fatal(err)
	}
	needle := append([]byte{byte(len("data/one.txt"))}, []byte("data/one.txt")...)
	idx := bytes.Index(raw[beamHeaderSize:], needle)
	if idx < 0 {
		t.Fatal("could not locate entry record")
	}
	md5Offset := beamHeaderSize + idx + len(needle)
	raw[md5Offset] ^= 0xFF
	if err := os.WriteFile(beamPath, raw, 0o644); err != nil {
		t.Fatal(err)
	}

	statBefore, err := os.Stat(targetPath)
	if err != nil {
		t.Fatal(err)
	}

	o := NewOrchestrator(nil)
	err = o.Apply(context.Background(), beamPath, target)
	if !archiveerr.Is(err, archiveerr.ChecksumMismatch) {
		t.Fatalf("expected ChecksumMismatch, got %v", err)
	}

	if _, ok := target.GetEntry("data/one.txt"); ok {
		t.Fatal("expected target to remain untouched by a failed BEAM patch")
	}

	statAfter, err := os.Stat(targetPath)
	if err != nil {
		t.Fatal(err)
	}
	if statBefore.Size() != statAfter.Size() {
		t.Fatalf("target file changed size: before=%d after=%d", statBefore.Size(), statAfter.Size())
	}
}

func TestOrchestratorAppliesThorAddAndIgnoresRemove(t *testing.T) {
	target, _ := newTestTarget(t)

	w := binio.NewWriter()
	w.Uint8(thorModeAdd)
	w.Uint8(uint8(len("x")))
	w.Raw([]byte("x"))
	w.Uint32(1)
	w.Raw([]byte("1"))
	w.Uint8(thorModeRemove)
	w.Uint8(uint8(len("y")))
	w.Raw([]byte("y"))

	var gz bytes.Buffer
	gw := gzip.NewWriter(&gz)
	if _, err := gw.Write(w.Bytes()); err != nil {
		t.Fatal(err)
	}
	if err := gw.Close(); err != nil {
		t.Fatal(err)
	}

	var thorFile bytes.Buffer
	thorFile.WriteString(thorMagic)
	thorFile.Write(gz.Bytes())

	thorPath := filepath.Join(t.TempDir(), "patch.thor")
	if err := os.WriteFile(thorPath, thorFile.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	o := NewOrchestrator(nil)
	if err := o.Apply(context.Background(), thorPath, target); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	data, err := target.Extract("x")
	if err != nil {
		t.Fatalf("Extract x: %v", err)
	}
	if string(data) != "1" {
		t.Fatalf("got %q", data)
	}

	if _, ok := target.GetEntry("y"); ok {
		t.Fatal("expected y to never have been staged")
	}
}

func TestOrchestratorClassifierIsCaseInsensitive(t *testing.T) {
	for _, ext := range []string{"patch.beam", "patch.BEAM", "Patch.Beam"} {
		target, _ := newTestTarget(t)

		b := NewBeam()
		b.Add("a.txt", []byte("z"))
		beamPath := filepath.Join(t.TempDir(), ext)
		if err := b.Save(beamPath); err != nil {
			t.Fatalf("Save: %v", err)
		}

		o := NewOrchestrator(nil)
		if err := o.Apply(context.Background(), beamPath, target); err != nil {
			t.Fatalf("Apply(%s): %v", ext, err)
		}
		if _, err := target.Extract("a.txt"); err != nil {
			t.Fatalf("Extract after %s: %v", ext, err)
		}
	}
}

func TestOrchestratorRejectsUnknownExtension(t *testing.T) {
	target, _ := newTestTarget(t)
	path := filepath.Join(t.TempDir(), "patch.zip")
	if err := os.WriteFile(path, []byte("irrelevant"), 0o644); err != nil {
		t.Fatal(err)
	}

	o := NewOrchestrator(nil)
	err := o.Apply(context.Background(), path, target)
	if !archiveerr.Is(err, archiveerr.UnknownPatchFormat) {
		t.Fatalf("expected UnknownPatchFormat, got %v", err)
	}
}

func TestOrchestratorRejectsManualPatchWhenDisabled(t *testing.T) {
	target, _ := newTestTarget(t)

	b := NewBeam()
	b.Add("a.txt", []byte("z"))
	beamPath := filepath.Join(t.TempDir(), "patch.beam")
	if err := b.Save(beamPath); err != nil {
		t.Fatalf("Save: %v", err)
	}

	cfg := &config.Config{Patcher: config.PatcherConfig{AllowManualPatch: false}}
	o := NewOrchestrator(cfg)
	if err := o.Apply(context.Background(), beamPath, target); err == nil {
		t.Fatal("expected Apply to fail when AllowManualPatch is false")
	}
	if _, ok := target.GetEntry("a.txt"); ok {
		t.Fatal("expected target to remain untouched when manual patching is disabled")
	}
}
