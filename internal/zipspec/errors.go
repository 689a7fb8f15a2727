package zipspec

import "errors"

// Sentinel errors for the parse layer. The root package re-exports these
// so callers can match with errors.Is without importing internal packages.
var (
	// ErrTruncated is returned when a bounds-checked read would run past
	// the end of the archive bytes.
	ErrTruncated = errors.New("parzip: truncated archive")

	// ErrMissingEOCD is returned when no plausible end-of-central-directory
	// record is found.
	ErrMissingEOCD = errors.New("parzip: end of central directory record not found")

	// ErrMalformed is returned on signature mismatches and structurally
	// impossible values (negative prefix offset, entry count disagreement).
	ErrMalformed = errors.New("parzip: malformed archive")

	// ErrMalformedZip64 is returned when a Zip64 extra record declares a
	// size inconsistent with the sentinel fields it must override.
	ErrMalformedZip64 = errors.New("parzip: malformed zip64 extra field")

	// ErrInvalidName is returned when an entry name fails UTF-8 validation
	// while the archive flags it as UTF-8, or contains forbidden components.
	ErrInvalidName = errors.New("parzip: invalid entry name")

	// ErrUnsupported is returned for multi-disk archives, encrypted
	// entries, and compression methods other than Stored and Deflate.
	ErrUnsupported = errors.New("parzip: unsupported archive feature")
)
