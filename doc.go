// Package parzip reads ZIP archives from an immutable in-memory byte
// range, such as a memory map, and decompresses entries in parallel.
//
// Because each member of a ZIP archive is compressed independently, any
// number of readers returned by [Archive.Open] can be driven from
// separate goroutines with no locking: the archive bytes are shared
// immutably and every reader carries only its own decoder state.
//
// The package never performs I/O. Callers supply the bytes however they
// wish and keep them alive for as long as the Archive and its readers
// are in use.
//
//	data, err := os.ReadFile("foo.zip")
//	if err != nil { ... }
//	archive, err := parzip.NewArchive(data)
//	if err != nil { ... }
//	for _, entry := range archive.Entries() {
//		rc, err := archive.Open(entry)
//		...
//	}
//
// Archives with arbitrary prepended data (self-extractor stubs,
// concatenated files) are handled transparently: all stored offsets are
// corrected by the detected prefix length, reported by
// [Archive.PrefixOffset]. Use [NewArchiveStrict] to reject such archives
// instead.
//
// Stored and DEFLATE entries are supported. Encrypted entries, other
// compression methods, and multi-disk archives are rejected.
package parzip
