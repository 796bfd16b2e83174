package grf

import (
	"github.com/Faultbox/midgard-ro/pkg/binio"
)

// flagDeflate marks an entry's body as deflate-compressed.
const flagDeflate = 0x01

// Entry describes one file record in a GRF's file table.
//
// Invariant: CompressedSize <= AlignedSize, and AlignedSize-CompressedSize
// bytes of zero padding occupy the remainder of the entry's body region.
type Entry struct {
	Name             string
	CompressedSize   uint32
	AlignedSize      uint32
	UncompressedSize uint32
	Flags            uint8
	Offset           uint32
}

// compressed reports whether the entry's body is deflate-compressed.
func (e *Entry) compressed() bool { return e.Flags&flagDeflate != 0 }

// encrypted reports whether any flag bit beyond the compression bit is set,
// indicating an encryption variant this codec cannot decode.
func (e *Entry) encrypted() bool { return e.Flags&^uint8(flagDeflate) != 0 }

func roundUp8(n uint32) uint32 {
	return (n + alignment - 1) &^ (alignment - 1)
}

// readLegacyTable parses the length-prefixed entry table used by GRF
// versions below 0x200 (spec §4.3.2).
func readLegacyTable(buf []byte, count uint32) (map[string]*Entry, error) {
	r := binio.NewReader(buf)
	entries := make(map[string]*Entry, count)

	for i := uint32(0); i < count; i++ {
		nameLen, err := r.Uint32()
		if err != nil {
			return nil, err
		}
		nameBytes, err := r.Fixed(int(nameLen))
		if err != nil {
			return nil, err
		}
		compressedSize, err := r.Uint32()
		if err != nil {
			return nil, err
		}
		alignedSize, err := r.Uint32()
		if err != nil {
			return nil, err
		}
		uncompressedSize, err := r.Uint32()
		if err != nil {
			return nil, err
		}
		flags, err := r.Uint8()
		if err != nil {
			return nil, err
		}
		offset, err := r.Uint32()
		if err != nil {
			return nil, err
		}

		name := string(nameBytes)
		entries[name] = &Entry{
			Name:             name,
			CompressedSize:   compressedSize,
			AlignedSize:      alignedSize,
			UncompressedSize: uncompressedSize,
			Flags:            flags,
			Offset:           offset,
		}
	}
	return entries, nil
}

// readModernTable parses the null-terminated entry table used by GRF
// versions 0x200 and 0x300, continuing until the decompressed table buffer
// is exhausted (spec §4.3.2).
func readModernTable(buf []byte) (map[string]*Entry, error) {
	r := binio.NewReader(buf)
	entries := make(map[string]*Entry)

	for r.Len() > 0 {
		name, err := r.CString()
		if err != nil {
			return nil, err
		}
		if name == "" {
			break
		}
		compressedSize, err := r.Uint32()
		if err != nil {
			return nil, err
		}
		alignedSize, err := r.Uint32()
		if err != nil {
			return nil, err
		}
		uncompressedSize, err := r.Uint32()
		if err != nil {
			return nil, err
		}
		flags, err := r.Uint8()
		if err != nil {
			return nil, err
		}
		offset, err := r.Uint32()
		if err != nil {
			return nil, err
		}

		entries[name] = &Entry{
			Name:             name,
			CompressedSize:   compressedSize,
			AlignedSize:      alignedSize,
			UncompressedSize: uncompressedSize,
			Flags:            flags,
			Offset:           offset,
		}
	}
	return entries, nil
}

// writeModernTable serializes entries in the null-terminated format shared
// by GRF 0x200 and 0x300 (spec §4.3.4 step 5).
func writeModernTable(entries map[string]*Entry) []byte {
	w := binio.NewWriter()
	for _, e := range entries {
		w.CString(e.Name)
		w.Uint32(e.CompressedSize)
		w.Uint32(e.AlignedSize)
		w.Uint32(e.UncompressedSize)
		w.Uint8(e.Flags)
		w.Uint32(e.Offset)
	}
	return w.Bytes()
}
