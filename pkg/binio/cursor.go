// Package binio provides little-endian binary cursor helpers used by the
// GRF, BEAM, THOR, and RGZ codecs to read and write fixed-width and
// length-delimited fields over in-memory buffers.
package binio

import (
	"bytes"
	"encoding/binary"

	"github.com/Faultbox/midgard-ro/pkg/archiveerr"
)

// Reader is a read cursor over an in-memory buffer; reads advance it and
// Seek repositions it anywhere within the buffer.
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps buf in a Reader starting at offset 0.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Tell returns the current read position.
func (r *Reader) Tell() int { return r.pos }

// Len returns the number of unread bytes.
func (r *Reader) Len() int { return len(r.buf) - r.pos }

// Seek moves the read position to an absolute offset.
func (r *Reader) Seek(offset int) error {
	if offset < 0 || offset > len(r.buf) {
		return archiveerr.AtOffset(archiveerr.MalformedArchive, offset, "seek out of bounds")
	}
	r.pos = offset
	return nil
}

// Bytes returns a slice referencing the next n unread bytes without copying,
// advancing the cursor. The returned slice aliases the underlying buffer.
func (r *Reader) Bytes(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.buf) {
		return nil, archiveerr.AtOffset(archiveerr.MalformedArchive, r.pos, "read of %d bytes overruns buffer", n)
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// Fixed reads exactly n bytes into a freshly allocated slice.
func (r *Reader) Fixed(n int) ([]byte, error) {
	b, err := r.Bytes(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

// Uint8 reads a single byte.
func (r *Reader) Uint8() (uint8, error) {
	b, err := r.Bytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// Uint32 reads a little-endian uint32.
func (r *Reader) Uint32() (uint32, error) {
	b, err := r.Bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// Uint64 reads a little-endian uint64.
func (r *Reader) Uint64() (uint64, error) {
	b, err := r.Bytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// CString reads bytes up to (and consuming) the next NUL byte. If no NUL is
// found before the end of the buffer it returns MalformedArchive and leaves
// the cursor unmoved.
func (r *Reader) CString() (string, error) {
	idx := bytes.IndexByte(r.buf[r.pos:], 0)
	if idx < 0 {
		return "", archiveerr.AtOffset(archiveerr.MalformedArchive, r.pos, "unterminated string")
	}
	s := string(r.buf[r.pos : r.pos+idx])
	r.pos += idx + 1
	return s, nil
}

// Writer is a little-endian write cursor backed by a growable buffer.
type Writer struct {
	buf bytes.Buffer
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Bytes returns the accumulated buffer.
func (w *Writer) Bytes() []byte { return w.buf.Bytes() }

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return w.buf.Len() }

// Raw appends raw bytes verbatim.
func (w *Writer) Raw(b []byte) { w.buf.Write(b) }

// Uint8 appends a single byte.
func (w *Writer) Uint8(v uint8) { w.buf.WriteByte(v) }

// Uint32 appends a little-endian uint32.
func (w *Writer) Uint32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

// Uint64 appends a little-endian uint64.
func (w *Writer) Uint64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

// CString appends s followed by a NUL terminator.
func (w *Writer) CString(s string) {
	w.buf.WriteString(s)
	w.buf.WriteByte(0)
}

// Pad appends n zero bytes.
func (w *Writer) Pad(n int) {
	for i := 0; i < n; i++ {
		w.buf.WriteByte(0)
	}
}
