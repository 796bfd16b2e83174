// Package bincompress adapts compress/zlib and compress/gzip to the byte
// buffer-in, byte buffer-out shape the archive codecs need.
package bincompress

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"io"

	"github.com/Faultbox/midgard-ro/pkg/archiveerr"
)

// InflateZlib decompresses a zlib-wrapped deflate stream. sizeHint only
// pre-sizes the output buffer; a mismatch between sizeHint and the actual
// decoded length is not an error, since some producers pad their declared
// uncompressed size.
func InflateZlib(data []byte, sizeHint int) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, archiveerr.Wrap(archiveerr.Decompression, err, "opening zlib stream")
	}
	defer r.Close()

	var out bytes.Buffer
	if sizeHint > 0 {
		out.Grow(sizeHint)
	}
	if _, err := io.Copy(&out, r); err != nil {
		return nil, archiveerr.Wrap(archiveerr.Decompression, err, "inflating zlib stream")
	}
	return out.Bytes(), nil
}

// DeflateZlib compresses data with zlib at the default compression level.
func DeflateZlib(data []byte) ([]byte, error) {
	var out bytes.Buffer
	w := zlib.NewWriter(&out)
	if _, err := w.Write(data); err != nil {
		return nil, archiveerr.Wrap(archiveerr.Compression, err, "deflating zlib stream")
	}
	if err := w.Close(); err != nil {
		return nil, archiveerr.Wrap(archiveerr.Compression, err, "closing zlib stream")
	}
	return out.Bytes(), nil
}

// InflateGzip decompresses a gzip stream in full.
func InflateGzip(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, archiveerr.Wrap(archiveerr.Decompression, err, "opening gzip stream")
	}
	defer r.Close()

	var out bytes.Buffer
	if _, err := io.Copy(&out, r); err != nil {
		return nil, archiveerr.Wrap(archiveerr.Decompression, err, "inflating gzip stream")
	}
	return out.Bytes(), nil
}
