// Package archiveerr defines the error taxonomy shared by the GRF, BEAM,
// THOR, and RGZ codecs and the patch orchestrator.
package archiveerr

import (
	"errors"
	"fmt"
)

// Kind identifies the category of an archive-engine failure.
type Kind int

const (
	// InvalidHeader indicates a magic or fixed-field mismatch at container open.
	InvalidHeader Kind = iota
	// UnsupportedVersion indicates a version field outside the enumerated set,
	// or a commit attempted on a readable-only version.
	UnsupportedVersion
	// MalformedArchive indicates a cursor ran off the end of a table or body mid-record.
	MalformedArchive
	// Decompression indicates a deflate/gzip stream refused the input.
	Decompression
	// Compression indicates a deflate stream failed to encode the input.
	Compression
	// ChecksumMismatch indicates a BEAM entry's MD5 did not match its uncompressed bytes.
	ChecksumMismatch
	// FileNotFound indicates a requested filename absent from a container.
	FileNotFound
	// EncryptedEntry indicates extraction was requested for an entry whose flags
	// demand an unsupported cipher.
	EncryptedEntry
	// UnknownPatchFormat indicates the orchestrator could not classify a patch extension.
	UnknownPatchFormat
	// Io wraps an underlying filesystem error.
	Io
	// InvalidFormat indicates a decoded stream contains a record tag or field
	// value outside what its format defines, distinct from MalformedArchive's
	// truncated-cursor case.
	InvalidFormat
)

func (k Kind) String() string {
	switch k {
	case InvalidHeader:
		return "InvalidHeader"
	case UnsupportedVersion:
		return "UnsupportedVersion"
	case MalformedArchive:
		return "MalformedArchive"
	case Decompression:
		return "Decompression"
	case Compression:
		return "Compression"
	case ChecksumMismatch:
		return "ChecksumMismatch"
	case FileNotFound:
		return "FileNotFound"
	case EncryptedEntry:
		return "EncryptedEntry"
	case UnknownPatchFormat:
		return "UnknownPatchFormat"
	case Io:
		return "Io"
	case InvalidFormat:
		return "InvalidFormat"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type returned by every archive-engine package.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is/errors.As to reach the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error of the given kind that wraps an underlying cause.
func Wrap(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// AtOffset is a convenience constructor for cursor overruns, carrying the
// byte offset at which the read was attempted (spec requires this for
// MalformedArchive).
func AtOffset(kind Kind, offset int, format string, args ...interface{}) *Error {
	msg := fmt.Sprintf(format, args...)
	return &Error{Kind: kind, Message: fmt.Sprintf("%s (at offset %d)", msg, offset)}
}
