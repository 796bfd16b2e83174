package patch

import (
	"crypto/md5"
	"io"
	"os"

	"github.com/Faultbox/midgard-ro/pkg/archiveerr"
	"github.com/Faultbox/midgard-ro/pkg/bincompress"
	"github.com/Faultbox/midgard-ro/pkg/binio"
)

const (
	beamMagic      = "BEAM"
	beamHeaderSize = 64
	beamVersion    = 1
)

// BeamEntry describes one file record in a BEAM patch archive.
type BeamEntry struct {
	Filename         string
	MD5              [16]byte
	CompressedSize   uint32
	UncompressedSize uint32
	Offset           uint64
}

// Beam is a BEAM patch archive: a fixed header followed by a contiguous
// entry table and, after that, deflate-compressed bodies in table order.
type Beam struct {
	version uint32
	path    string
	entries map[string]*BeamEntry
	staged  map[string][]byte
}

// OpenBeam parses an existing BEAM archive's header and entry table.
func OpenBeam(path string) (*Beam, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, archiveerr.Wrap(archiveerr.Io, err, "opening %s", path)
	}
	defer f.Close()

	header := make([]byte, beamHeaderSize)
	if _, err := io.ReadFull(f, header); err != nil {
		return nil, archiveerr.Wrap(archiveerr.InvalidHeader, err, "reading BEAM header of %s", path)
	}
	if string(header[:4]) != beamMagic {
		return nil, archiveerr.New(archiveerr.InvalidHeader, "%s: bad BEAM magic", path)
	}
	r := binio.NewReader(header[4:])
	version, _ := r.Uint32()
	entryCount, err := r.Uint32()
	if err != nil {
		return nil, err
	}

	entries := make(map[string]*BeamEntry, entryCount)
	for i := uint32(0); i < entryCount; i++ {
		entry, err := readBeamEntry(f)
		if err != nil {
			return nil, err
		}
		entries[entry.Filename] = entry
	}

	return &Beam{
		version: version,
		path:    path,
		entries: entries,
		staged:  make(map[string][]byte),
	}, nil
}

// NewBeam creates an empty in-memory BEAM archive ready for Add and Save.
func NewBeam() *Beam {
	return &Beam{
		version: beamVersion,
		entries: make(map[string]*BeamEntry),
		staged:  make(map[string][]byte),
	}
}

func readBeamEntry(f *os.File) (*BeamEntry, error) {
	lenBuf := make([]byte, 1)
	if _, err := io.ReadFull(f, lenBuf); err != nil {
		return nil, archiveerr.Wrap(archiveerr.MalformedArchive, err, "reading BEAM filename length")
	}
	nameBuf := make([]byte, lenBuf[0])
	if _, err := io.ReadFull(f, nameBuf); err != nil {
		return nil, archiveerr.Wrap(archiveerr.MalformedArchive, err, "reading BEAM filename")
	}
	rest := make([]byte, 16+4+4+8)
	if _, err := io.ReadFull(f, rest); err != nil {
		return nil, archiveerr.Wrap(archiveerr.MalformedArchive, err, "reading BEAM entry fields")
	}
	r := binio.NewReader(rest)
	md5Bytes, _ := r.Fixed(16)
	compressedSize, _ := r.Uint32()
	uncompressedSize, _ := r.Uint32()
	offset, _ := r.Uint64()

	entry := &BeamEntry{
		Filename:         string(nameBuf),
		CompressedSize:   compressedSize,
		UncompressedSize: uncompressedSize,
		Offset:           offset,
	}
	copy(entry.MD5[:], md5Bytes)
	return entry, nil
}

// List returns the filenames of every entry in the archive's table.
func (b *Beam) List() []string {
	out := make([]string, 0, len(b.entries))
	for name := range b.entries {
		out = append(out, name)
	}
	return out
}

// GetEntry looks up an entry's table record by filename.
func (b *Beam) GetEntry(name string) (*BeamEntry, bool) {
	e, ok := b.entries[name]
	return e, ok
}

// Extract reads, decompresses, and MD5-verifies a single entry's payload.
func (b *Beam) Extract(name string) ([]byte, error) {
	entry, ok := b.entries[name]
	if !ok {
		return nil, archiveerr.New(archiveerr.FileNotFound, "%s", name)
	}

	f, err := os.Open(b.path)
	if err != nil {
		return nil, archiveerr.Wrap(archiveerr.Io, err, "opening %s", b.path)
	}
	defer f.Close()

	if _, err := f.Seek(int64(entry.Offset), io.SeekStart); err != nil {
		return nil, archiveerr.Wrap(archiveerr.Io, err, "seeking to %s", name)
	}
	compressed := make([]byte, entry.CompressedSize)
	if _, err := io.ReadFull(f, compressed); err != nil {
		return nil, archiveerr.Wrap(archiveerr.Io, err, "reading body of %s", name)
	}

	uncompressed, err := bincompress.InflateZlib(compressed, int(entry.UncompressedSize))
	if err != nil {
		return nil, err
	}

	sum := md5.Sum(uncompressed)
	if sum != entry.MD5 {
		return nil, archiveerr.New(archiveerr.ChecksumMismatch, "%s: MD5 mismatch", name)
	}
	return uncompressed, nil
}

// Verify reports whether an entry's stored payload matches its recorded
// MD5, without returning the bytes to the caller.
func (b *Beam) Verify(name string) (bool, error) {
	_, err := b.Extract(name)
	if archiveerr.Is(err, archiveerr.ChecksumMismatch) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Add stages filename/data for inclusion at the next Save. Staging is
// in-memory only.
func (b *Beam) Add(filename string, data []byte) {
	staged := make([]byte, len(data))
	copy(staged, data)
	b.staged[filename] = staged

	sum := md5.Sum(data)
	b.entries[filename] = &BeamEntry{
		Filename:         filename,
		MD5:              sum,
		UncompressedSize: uint32(len(data)),
	}
}

// Save writes the archive's header, entry table, and compressed payloads
// to path, patching each entry's Offset to its post-table position.
func (b *Beam) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return archiveerr.Wrap(archiveerr.Io, err, "creating %s", path)
	}
	defer f.Close()

	type compressedEntry struct {
		name string
		body []byte
	}
	bodies := make([]compressedEntry, 0, len(b.entries))

	tableSize := int64(0)
	for name, entry := range b.entries {
		data, ok := b.staged[name]
		if !ok {
			var err error
			data, err = b.Extract(name)
			if err != nil {
				return err
			}
		}
		compressed, err := bincompress.DeflateZlib(data)
		if err != nil {
			return err
		}
		entry.CompressedSize = uint32(len(compressed))
		bodies = append(bodies, compressedEntry{name: name, body: compressed})
		tableSize += 1 + int64(len(name)) + 16 + 4 + 4 + 8
	}

	hw := binio.NewWriter()
	hw.Raw([]byte(beamMagic))
	hw.Uint32(b.version)
	hw.Uint32(uint32(len(b.entries)))
	hw.Pad(52)
	if _, err := f.Write(hw.Bytes()); err != nil {
		return archiveerr.Wrap(archiveerr.Io, err, "writing BEAM header")
	}

	currentOffset := uint64(beamHeaderSize) + uint64(tableSize)
	for _, be := range bodies {
		entry := b.entries[be.name]
		entry.Offset = currentOffset

		ew := binio.NewWriter()
		ew.Uint8(uint8(len(entry.Filename)))
		ew.Raw([]byte(entry.Filename))
		ew.Raw(entry.MD5[:])
		ew.Uint32(entry.CompressedSize)
		ew.Uint32(entry.UncompressedSize)
		ew.Uint64(entry.Offset)
		if _, err := f.Write(ew.Bytes()); err != nil {
			return archiveerr.Wrap(archiveerr.Io, err, "writing BEAM entry for %s", be.name)
		}

		currentOffset += uint64(len(be.body))
	}

	for _, be := range bodies {
		if _, err := f.Write(be.body); err != nil {
			return archiveerr.Wrap(archiveerr.Io, err, "writing BEAM body for %s", be.name)
		}
	}

	b.path = path
	b.staged = make(map[string][]byte)
	return nil
}
