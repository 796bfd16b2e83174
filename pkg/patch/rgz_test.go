package patch

import (
	"bytes"
	"compress/gzip"
	"testing"

	"github.com/Faultbox/midgard-ro/pkg/archiveerr"
	"github.com/Faultbox/midgard-ro/pkg/binio"
)

func buildRGZArchive(t *testing.T, body func(w *binio.Writer)) []byte {
	t.Helper()
	w := binio.NewWriter()
	body(w)

	var gz bytes.Buffer
	gw := gzip.NewWriter(&gz)
	if _, err := gw.Write(w.Bytes()); err != nil {
		t.Fatal(err)
	}
	if err := gw.Close(); err != nil {
		t.Fatal(err)
	}
	return gz.Bytes()
}

func TestParseRGZDirectoryThenEnd(t *testing.T) {
	data := buildRGZArchive(t, func(w *binio.Writer) {
		w.Uint8(rgzTagDirectory)
		w.Uint8(uint8(len("d")))
		w.Raw([]byte("d"))
		w.Uint8(rgzTagEnd)
	})

	entries, err := ParseRGZ(data)
	if err != nil {
		t.Fatalf("ParseRGZ: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	dir, ok := entries[0].(RGZDirectory)
	if !ok || dir.Name != "d" {
		t.Fatalf("unexpected entry: %#v", entries[0])
	}
}

func TestParseRGZFileAndDirectory(t *testing.T) {
	data := buildRGZArchive(t, func(w *binio.Writer) {
		w.Uint8(rgzTagFile)
		w.Uint8(uint8(len("a.txt")))
		w.Raw([]byte("a.txt"))
		w.Uint32(uint32(len("hello")))
		w.Raw([]byte("hello"))

		w.Uint8(rgzTagDirectory)
		w.Uint8(uint8(len("sub")))
		w.Raw([]byte("sub"))

		w.Uint8(rgzTagEnd)
	})

	entries, err := ParseRGZ(data)
	if err != nil {
		t.Fatalf("ParseRGZ: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	file, ok := entries[0].(RGZFile)
	if !ok || file.Name != "a.txt" || string(file.Data) != "hello" {
		t.Fatalf("unexpected first entry: %#v", entries[0])
	}
	dir, ok := entries[1].(RGZDirectory)
	if !ok || dir.Name != "sub" {
		t.Fatalf("unexpected second entry: %#v", entries[1])
	}
}

func TestParseRGZEndTagAloneYieldsNoEntries(t *testing.T) {
	data := buildRGZArchive(t, func(w *binio.Writer) {
		w.Uint8(rgzTagEnd)
	})

	entries, err := ParseRGZ(data)
	if err != nil {
		t.Fatalf("ParseRGZ: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected 0 entries, got %d", len(entries))
	}
}

func TestParseRGZRejectsUnknownTag(t *testing.T) {
	data := buildRGZArchive(t, func(w *binio.Writer) {
		w.Uint8('x')
	})

	_, err := ParseRGZ(data)
	if !archiveerr.Is(err, archiveerr.InvalidFormat) {
		t.Fatalf("expected InvalidFormat, got %v", err)
	}
}

func TestParseRGZRejectsNonGzipData(t *testing.T) {
	_, err := ParseRGZ([]byte("not gzip data at all"))
	if err == nil {
		t.Fatal("expected error parsing non-gzip data")
	}
}
