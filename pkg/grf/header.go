// Package grf provides reading and writing functionality for Ragnarok
// Online GRF archives: parsing of all five on-disk GRF versions, random
// access extraction, in-memory patch staging, and a rebuild-and-swap
// commit that writes a structurally valid, reloadable GRF.
package grf

import (
	"github.com/Faultbox/midgard-ro/pkg/archiveerr"
	"github.com/Faultbox/midgard-ro/pkg/binio"
)

const (
	grfMagic     = "Master of Magic"
	headerSize   = 46
	magicLen     = 15
	obfKeyLen    = 14
	alignment    = 8
	smallPayload = 1024
)

// Version identifies one of the five on-disk GRF container layouts.
type Version uint32

// The GRF versions this codec can parse. Only V0x200 and V0x300 can be
// rebuilt by Commit; the others are read-only.
const (
	V0x101 Version = 0x101
	V0x102 Version = 0x102
	V0x103 Version = 0x103
	V0x200 Version = 0x200
	V0x300 Version = 0x300
)

func (v Version) valid() bool {
	switch v {
	case V0x101, V0x102, V0x103, V0x200, V0x300:
		return true
	default:
		return false
	}
}

// header mirrors the 46-byte fixed GRF header (spec §4.3.1).
type header struct {
	TableOffset uint32
	Seed        uint32
	FileCount   uint32
	Version     Version
}

// obfuscationKey is the fixed 14-byte key the format embeds; this codec
// never applies the classic GRF filename-table encryption, so the key is
// always the identity constant 01..0E on write.
var obfuscationKey = [obfKeyLen]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14}

// parseHeaderFields decodes the fixed 46-byte header from buf, without
// judging whether the version field is one this codec knows about. Callers
// decide what error kind an unenumerated version deserves for their
// context (parseHeader's Open-facing UnsupportedVersion vs DetectVersion's
// own InvalidHeader).
func parseHeaderFields(buf []byte) (header, error) {
	if len(buf) < headerSize {
		return header{}, archiveerr.New(archiveerr.InvalidHeader, "header truncated: got %d bytes, want %d", len(buf), headerSize)
	}
	if string(buf[:magicLen]) != grfMagic {
		return header{}, archiveerr.New(archiveerr.InvalidHeader, "magic mismatch")
	}

	r := binio.NewReader(buf)
	if err := r.Seek(30); err != nil {
		return header{}, err
	}
	tableOffset, err := r.Uint32()
	if err != nil {
		return header{}, err
	}
	seed, err := r.Uint32()
	if err != nil {
		return header{}, err
	}
	fileCount, err := r.Uint32()
	if err != nil {
		return header{}, err
	}
	version, err := r.Uint32()
	if err != nil {
		return header{}, err
	}

	return header{TableOffset: tableOffset, Seed: seed, FileCount: fileCount, Version: Version(version)}, nil
}

// parseHeader decodes the fixed 46-byte header from buf for Open, rejecting
// an unenumerated version with UnsupportedVersion.
func parseHeader(buf []byte) (header, error) {
	h, err := parseHeaderFields(buf)
	if err != nil {
		return header{}, err
	}
	if !h.Version.valid() {
		return header{}, archiveerr.New(archiveerr.UnsupportedVersion, "version 0x%x is not in the enumerated GRF version set", uint32(h.Version))
	}
	return h, nil
}

// writeHeader serializes the fixed header into w, with the obfuscation key
// and separator byte at their fixed positions.
func writeHeader(w *binio.Writer, h header) {
	w.Raw([]byte(grfMagic))
	w.Uint8(0)
	w.Raw(obfuscationKey[:])
	w.Uint32(h.TableOffset)
	w.Uint32(h.Seed)
	w.Uint32(h.FileCount)
	w.Uint32(uint32(h.Version))
}
