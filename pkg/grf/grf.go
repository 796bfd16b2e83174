package grf

import (
	"io"
	"os"
	"sync"

	"github.com/Faultbox/midgard-ro/pkg/archiveerr"
	"github.com/Faultbox/midgard-ro/pkg/bincompress"
	"github.com/Faultbox/midgard-ro/pkg/binio"
)

// Archive is an opened GRF container. Stage records in-memory intents that
// only take effect on disk once Commit succeeds.
type Archive struct {
	mu      sync.Mutex
	file    *os.File
	path    string
	version Version
	entries map[string]*Entry
	pending map[string][]byte
}

// DetectVersion reads just enough of path to report its GRF version,
// without parsing the file table.
func DetectVersion(path string) (Version, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, archiveerr.Wrap(archiveerr.Io, err, "opening %s", path)
	}
	defer f.Close()

	buf := make([]byte, headerSize)
	if _, err := io.ReadFull(f, buf); err != nil {
		return 0, archiveerr.Wrap(archiveerr.InvalidHeader, err, "reading header of %s", path)
	}
	h, err := parseHeaderFields(buf)
	if err != nil {
		return 0, err
	}
	if !h.Version.valid() {
		return 0, archiveerr.New(archiveerr.InvalidHeader, "version 0x%x is not in the enumerated GRF version set", uint32(h.Version))
	}
	return h.Version, nil
}

// Open parses the file table of an existing GRF archive. No body bytes are
// loaded up front; extraction is random access against the open handle.
func Open(path string) (*Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, archiveerr.Wrap(archiveerr.Io, err, "opening %s", path)
	}

	buf := make([]byte, headerSize)
	if _, err := io.ReadFull(f, buf); err != nil {
		f.Close()
		return nil, archiveerr.Wrap(archiveerr.InvalidHeader, err, "reading header of %s", path)
	}
	h, err := parseHeader(buf)
	if err != nil {
		f.Close()
		return nil, err
	}

	entries, err := readFileTable(f, h)
	if err != nil {
		f.Close()
		return nil, err
	}

	return &Archive{
		file:    f,
		path:    path,
		version: h.Version,
		entries: entries,
		pending: make(map[string][]byte),
	}, nil
}

// CreateNew writes a minimal empty 0x200 container: a 46-byte header, zero
// file count, no body, no table.
func CreateNew(path string) (*Archive, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, archiveerr.Wrap(archiveerr.Io, err, "creating %s", path)
	}

	w := binio.NewWriter()
	writeHeader(w, header{TableOffset: 0, Seed: 0, FileCount: 0, Version: V0x200})
	if _, err := f.Write(w.Bytes()); err != nil {
		f.Close()
		return nil, archiveerr.Wrap(archiveerr.Io, err, "writing header of %s", path)
	}
	f.Close()

	f, err = os.Open(path)
	if err != nil {
		return nil, archiveerr.Wrap(archiveerr.Io, err, "reopening %s", path)
	}

	return &Archive{
		file:    f,
		path:    path,
		version: V0x200,
		entries: make(map[string]*Entry),
		pending: make(map[string][]byte),
	}, nil
}

// Close releases the archive's underlying file descriptor.
func (a *Archive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file == nil {
		return nil
	}
	err := a.file.Close()
	a.file = nil
	return err
}

// Version reports the archive's on-disk GRF version.
func (a *Archive) Version() Version {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.version
}

// List returns every filename present in the archive's current file table,
// exactly as stored, case-sensitive and unsorted.
func (a *Archive) List() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.entries))
	for name := range a.entries {
		out = append(out, name)
	}
	return out
}

// GetEntry looks up a file's table entry by exact, case-sensitive name.
func (a *Archive) GetEntry(name string) (*Entry, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, ok := a.entries[name]
	return e, ok
}

// Extract reads and, if necessary, decompresses a file's body.
func (a *Archive) Extract(name string) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	entry, ok := a.entries[name]
	if !ok {
		return nil, archiveerr.New(archiveerr.FileNotFound, "%s", name)
	}
	if entry.encrypted() {
		return nil, archiveerr.New(archiveerr.EncryptedEntry, "%s uses an unsupported encryption variant (flags=0x%02x)", name, entry.Flags)
	}

	if _, err := a.file.Seek(int64(entry.Offset)+headerSize, io.SeekStart); err != nil {
		return nil, archiveerr.Wrap(archiveerr.Io, err, "seeking to %s", name)
	}
	body := make([]byte, entry.AlignedSize)
	if _, err := io.ReadFull(a.file, body); err != nil {
		return nil, archiveerr.Wrap(archiveerr.Io, err, "reading body of %s", name)
	}
	if entry.CompressedSize > uint32(len(body)) {
		return nil, archiveerr.New(archiveerr.MalformedArchive, "%s: compressed size %d exceeds aligned size %d", name, entry.CompressedSize, len(body))
	}
	payload := body[:entry.CompressedSize]

	if entry.compressed() {
		return bincompress.InflateZlib(payload, int(entry.UncompressedSize))
	}

	out := make([]byte, len(payload))
	copy(out, payload)
	return out, nil
}

// Stage records an intent to add or replace filename with data at the next
// Commit. Staging is pure in-memory and replaces any prior staged value for
// the same filename; it never touches the archive on disk.
func (a *Archive) Stage(name string, data []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	staged := make([]byte, len(data))
	copy(staged, data)
	a.pending[name] = staged
}

// Commit rebuilds the archive on disk, folding in every staged file, via a
// rename-backup / rewrite / delete-backup sequence so a crash mid-write
// never leaves the original archive missing (spec §4.3.4).
func (a *Archive) Commit() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.version < V0x200 {
		return archiveerr.New(archiveerr.UnsupportedVersion, "commit is not supported for GRF version 0x%x", uint32(a.version))
	}

	if len(a.pending) == 0 {
		return nil
	}

	backupPath := a.path + ".bak"
	if err := a.file.Close(); err != nil {
		return archiveerr.Wrap(archiveerr.Io, err, "closing archive before rebuild")
	}
	if err := os.Rename(a.path, backupPath); err != nil {
		return archiveerr.Wrap(archiveerr.Io, err, "renaming %s to backup", a.path)
	}

	if err := a.rebuild(backupPath); err != nil {
		os.Rename(backupPath, a.path) // best-effort restore
		return err
	}

	if err := os.Remove(backupPath); err != nil {
		return archiveerr.Wrap(archiveerr.Io, err, "removing backup %s", backupPath)
	}

	f, err := os.Open(a.path)
	if err != nil {
		return archiveerr.Wrap(archiveerr.Io, err, "reopening rebuilt %s", a.path)
	}
	a.file = f
	a.version = V0x200
	a.pending = make(map[string][]byte)
	return nil
}

// rebuild writes a fresh archive at a.path from the entries of the backup
// copy at backupPath plus a.pending, always producing a 0x200-style
// container regardless of the source version.
func (a *Archive) rebuild(backupPath string) error {
	src, err := os.Open(backupPath)
	if err != nil {
		return archiveerr.Wrap(archiveerr.Io, err, "opening backup %s", backupPath)
	}
	defer src.Close()

	dst, err := os.Create(a.path)
	if err != nil {
		return archiveerr.Wrap(archiveerr.Io, err, "creating rebuilt %s", a.path)
	}
	defer dst.Close()

	// Placeholder header; TableOffset and FileCount are patched in place
	// once the table's real position and entry count are known.
	hw := binio.NewWriter()
	writeHeader(hw, header{Version: V0x200})
	if _, err := dst.Write(hw.Bytes()); err != nil {
		return archiveerr.Wrap(archiveerr.Io, err, "writing placeholder header")
	}

	newEntries := make(map[string]*Entry, len(a.entries)+len(a.pending))
	var bodyOffset uint32

	writeBody := func(name string, compressedSize, alignedSize, uncompressedSize uint32, flags uint8, body []byte) error {
		if _, err := dst.Write(body); err != nil {
			return archiveerr.Wrap(archiveerr.Io, err, "writing body of %s", name)
		}
		if padding := int(alignedSize) - len(body); padding > 0 {
			if _, err := dst.Write(make([]byte, padding)); err != nil {
				return archiveerr.Wrap(archiveerr.Io, err, "writing padding for %s", name)
			}
		}
		newEntries[name] = &Entry{
			Name:             name,
			CompressedSize:   compressedSize,
			AlignedSize:      alignedSize,
			UncompressedSize: uncompressedSize,
			Flags:            flags,
			Offset:           bodyOffset,
		}
		bodyOffset += alignedSize
		return nil
	}

	// Copy forward every entry that isn't being replaced by a pending
	// patch. Encrypted entries are copied through verbatim: this preserves
	// their ciphertext bytes but not any table-level cipher the source
	// container applied (spec's accepted limitation for rebuilt output).
	for name, entry := range a.entries {
		if _, replaced := a.pending[name]; replaced {
			continue
		}
		if _, err := src.Seek(int64(entry.Offset)+headerSize, io.SeekStart); err != nil {
			return archiveerr.Wrap(archiveerr.Io, err, "seeking to %s in backup", name)
		}
		body := make([]byte, entry.AlignedSize)
		if _, err := io.ReadFull(src, body); err != nil {
			return archiveerr.Wrap(archiveerr.Io, err, "reading %s from backup", name)
		}
		if err := writeBody(name, entry.CompressedSize, entry.AlignedSize, entry.UncompressedSize, entry.Flags, body); err != nil {
			return err
		}
	}

	// Write every pending (new or replaced) file, compressing when the
	// payload is larger than smallPayload bytes and compression shrinks it.
	for name, data := range a.pending {
		uncompressedSize := uint32(len(data))
		body := data
		flags := uint8(0)

		if len(data) > smallPayload {
			if compressed, err := bincompress.DeflateZlib(data); err == nil && len(compressed) < len(data) {
				body = compressed
				flags = flagDeflate
			}
		}

		compressedSize := uint32(len(body))
		alignedSize := roundUp8(compressedSize)
		if err := writeBody(name, compressedSize, alignedSize, uncompressedSize, flags, body); err != nil {
			return err
		}
	}

	tableOffset := bodyOffset
	tableBytes := writeModernTable(newEntries)
	compressedTable, err := bincompress.DeflateZlib(tableBytes)
	if err != nil {
		return err
	}

	tw := binio.NewWriter()
	tw.Uint32(uint32(len(compressedTable)))
	tw.Uint32(uint32(len(tableBytes)))
	tw.Raw(compressedTable)
	if _, err := dst.Write(tw.Bytes()); err != nil {
		return archiveerr.Wrap(archiveerr.Io, err, "writing file table")
	}

	// Patch TableOffset, Seed and FileCount in place at their fixed offset
	// (spec §4.3.4 step 8); Version and the obfuscation key are untouched.
	patch := binio.NewWriter()
	patch.Uint32(tableOffset)
	patch.Uint32(0)
	patch.Uint32(uint32(len(newEntries)))
	if _, err := dst.WriteAt(patch.Bytes(), 30); err != nil {
		return archiveerr.Wrap(archiveerr.Io, err, "patching header")
	}

	a.entries = newEntries
	return nil
}

func readFileTable(f *os.File, h header) (map[string]*Entry, error) {
	switch h.Version {
	case V0x101, V0x102, V0x103:
		if _, err := f.Seek(headerSize, io.SeekStart); err != nil {
			return nil, archiveerr.Wrap(archiveerr.Io, err, "seeking to legacy table")
		}
		rest, err := io.ReadAll(f)
		if err != nil {
			return nil, archiveerr.Wrap(archiveerr.Io, err, "reading legacy table")
		}
		return readLegacyTable(rest, h.FileCount)

	case V0x200:
		// A container written by CreateNew has a zero file count and no
		// table at all.
		if h.FileCount == 0 {
			return make(map[string]*Entry), nil
		}
		return readCompressedTable(f, h.TableOffset)

	case V0x300:
		meta, err := read0x300TableMeta(f)
		if err != nil {
			return nil, err
		}
		return read0x300Table(f, meta)

	default:
		return nil, archiveerr.New(archiveerr.UnsupportedVersion, "0x%x", uint32(h.Version))
	}
}

// grf300Meta is the 0x300-specific table metadata block read starting at
// offset 34 (spec §4.3.2, resolved against the original implementation):
// file_count, seed, table_offset, table_size, table_compressed_size, in
// that order, overlapping the tail of the fixed header. Unlike 0x200,
// 0x300's compressed and uncompressed table lengths are carried here rather
// than in an 8-byte prefix before the zlib bytes.
type grf300Meta struct {
	tableOffset         uint32
	tableSize           uint32
	tableCompressedSize uint32
}

func read0x300TableMeta(f *os.File) (grf300Meta, error) {
	if _, err := f.Seek(34, io.SeekStart); err != nil {
		return grf300Meta{}, archiveerr.Wrap(archiveerr.Io, err, "seeking to 0x300 table metadata")
	}
	buf := make([]byte, 20)
	if _, err := io.ReadFull(f, buf); err != nil {
		return grf300Meta{}, archiveerr.Wrap(archiveerr.MalformedArchive, err, "reading 0x300 table metadata")
	}
	r := binio.NewReader(buf)
	r.Uint32() // file_count, unused: the generic header already carries it
	r.Uint32() // seed, unused
	tableOffset, _ := r.Uint32()
	tableSize, _ := r.Uint32()
	tableCompressedSize, _ := r.Uint32()
	return grf300Meta{
		tableOffset:         tableOffset,
		tableSize:           tableSize,
		tableCompressedSize: tableCompressedSize,
	}, nil
}

// read0x300Table reads the zlib-compressed file table of a 0x300 archive.
// Unlike 0x200, the compressed and uncompressed lengths come from the
// offset-34 metadata block rather than an 8-byte prefix immediately before
// the zlib bytes, so the compressed stream starts directly at
// meta.tableOffset relative to the end of the fixed header.
func read0x300Table(f *os.File, meta grf300Meta) (map[string]*Entry, error) {
	if _, err := f.Seek(int64(meta.tableOffset)+headerSize, io.SeekStart); err != nil {
		return nil, archiveerr.Wrap(archiveerr.Io, err, "seeking to 0x300 file table")
	}
	compressed := make([]byte, meta.tableCompressedSize)
	if _, err := io.ReadFull(f, compressed); err != nil {
		return nil, archiveerr.Wrap(archiveerr.MalformedArchive, err, "reading 0x300 compressed table")
	}

	table, err := bincompress.InflateZlib(compressed, int(meta.tableSize))
	if err != nil {
		return nil, err
	}
	return readModernTable(table)
}

// readCompressedTable reads the two-u32-length-prefixed, zlib-compressed
// file table used by GRF 0x200, located at tableOffset relative to the end
// of the fixed header.
func readCompressedTable(f *os.File, tableOffset uint32) (map[string]*Entry, error) {
	if _, err := f.Seek(int64(tableOffset)+headerSize, io.SeekStart); err != nil {
		return nil, archiveerr.Wrap(archiveerr.Io, err, "seeking to file table")
	}
	sizes := make([]byte, 8)
	if _, err := io.ReadFull(f, sizes); err != nil {
		return nil, archiveerr.Wrap(archiveerr.MalformedArchive, err, "reading table size prefix")
	}
	r := binio.NewReader(sizes)
	compressedLen, _ := r.Uint32()
	uncompressedLen, _ := r.Uint32()

	compressed := make([]byte, compressedLen)
	if _, err := io.ReadFull(f, compressed); err != nil {
		return nil, archiveerr.Wrap(archiveerr.MalformedArchive, err, "reading compressed table")
	}

	table, err := bincompress.InflateZlib(compressed, int(uncompressedLen))
	if err != nil {
		return nil, err
	}
	return readModernTable(table)
}
