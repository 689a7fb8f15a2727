package parzip

import (
	"errors"

	"parzip/internal/zipspec"
)

// Errors re-exported from the parse layer.
var (
	// ErrTruncated is returned when a bounds-checked read would run past
	// the end of the archive bytes.
	ErrTruncated = zipspec.ErrTruncated

	// ErrMissingEOCD is returned when no plausible end-of-central-directory
	// record is found.
	ErrMissingEOCD = zipspec.ErrMissingEOCD

	// ErrMalformed is returned on signature mismatches and structurally
	// impossible values.
	ErrMalformed = zipspec.ErrMalformed

	// ErrMalformedZip64 is returned when a Zip64 extra record declares a
	// size inconsistent with the sentinel fields it must override.
	ErrMalformedZip64 = zipspec.ErrMalformedZip64

	// ErrInvalidName is returned when an entry name fails UTF-8 validation,
	// or contains forbidden path components.
	ErrInvalidName = zipspec.ErrInvalidName

	// ErrUnsupported is returned for encrypted entries, compression
	// methods other than Stored and Deflate, and multi-disk archives.
	ErrUnsupported = zipspec.ErrUnsupported
)

// Errors specific to readers and the file tree.
var (
	// ErrChecksumMismatch is returned at end of stream when the CRC-32 of
	// the decompressed bytes does not match the central directory.
	ErrChecksumMismatch = errors.New("parzip: checksum mismatch")

	// ErrSizeMismatch is returned when the decompressed byte count does not
	// match the central directory: at end of stream when it falls short,
	// and on the first read that takes it past the recorded size.
	ErrSizeMismatch = errors.New("parzip: size mismatch")

	// ErrLocalHeaderMismatch is returned by the optional local header
	// cross-check when a local header disagrees with the central directory.
	ErrLocalHeaderMismatch = errors.New("parzip: local header disagrees with central directory")

	// ErrDuplicatePath is returned by NewTree when two entries resolve to
	// the same path.
	ErrDuplicatePath = errors.New("parzip: duplicate path")

	// ErrPathConflict is returned by NewTree when a directory component of
	// one entry's path is an existing file.
	ErrPathConflict = errors.New("parzip: path conflicts with a file")

	// ErrNotFound is returned by Tree.Lookup for paths absent from the
	// archive.
	ErrNotFound = errors.New("parzip: no such file or directory")
)
