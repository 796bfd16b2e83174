package patch

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/Faultbox/midgard-ro/pkg/archiveerr"
)

func TestBeamAddSaveRoundTrip(t *testing.T) {
	b := NewBeam()
	b.Add("a.txt", []byte("hello"))
	b.Add("b.txt", []byte("world"))

	path := filepath.Join(t.TempDir(), "patch.beam")
	if err := b.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	opened, err := OpenBeam(path)
	if err != nil {
		t.Fatalf("OpenBeam: %v", err)
	}

	data, err := opened.Extract("a.txt")
	if err != nil {
		t.Fatalf("Extract a.txt: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("got %q", data)
	}

	ok, err := opened.Verify("b.txt")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Fatal("expected b.txt to verify")
	}
}

func TestBeamExtractDetectsCorruptedMD5(t *testing.T) {
	b := NewBeam()
	b.Add("a.txt", []byte("X"))
	b.Add("b.txt", []byte("Y"))

	path := filepath.Join(t.TempDir(), "patch.beam")
	if err := b.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	// Flip a bit of a.txt's stored MD5 in the on-disk entry record. The
	// entry record starts with 1 length byte + filename bytes, then 16
	// bytes of MD5.
	md5Start := bytes.Index(raw[beamHeaderSize:], append([]byte{byte(len("a.txt"))}, []byte("a.txt")...))
	if md5Start < 0 {
		t.Fatal("could not locate a.txt entry record")
	}
	md5Offset := beamHeaderSize + md5Start + 1 + len("a.txt")
	raw[md5Offset] ^= 0xFF
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatal(err)
	}

	reopened, err := OpenBeam(path)
	if err != nil {
		t.Fatalf("OpenBeam after corruption: %v", err)
	}

	_, err = reopened.Extract("a.txt")
	if !archiveerr.Is(err, archiveerr.ChecksumMismatch) {
		t.Fatalf("expected ChecksumMismatch, got %v", err)
	}

	got, err := reopened.Extract("b.txt")
	if err != nil {
		t.Fatalf("Extract b.txt: %v", err)
	}
	if string(got) != "Y" {
		t.Fatalf("got %q", got)
	}
}

func TestOpenBeamRejectsBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.beam")
	if err := os.WriteFile(path, make([]byte, beamHeaderSize), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := OpenBeam(path)
	if !archiveerr.Is(err, archiveerr.InvalidHeader) {
		t.Fatalf("expected InvalidHeader, got %v", err)
	}
}
