// Package zipspec implements the ZIP wire format: record layouts, the
// backward search for the end-of-central-directory record, Zip64 handling,
// and prefix-offset correction for archives with prepended data.
//
// Field layouts follow APPNOTE.TXT section 4.3. Everything that knows a
// byte offset lives here; higher-level concerns (trees, readers, caching)
// belong to the root package.
package zipspec

import (
	"fmt"
	"time"
)

// Record signatures, little-endian.
const (
	sigLocalFileHeader  = 0x04034b50
	sigCentralDirectory = 0x02014b50
	sigEOCD             = 0x06054b50
	sigZip64EOCD        = 0x06064b50
	sigZip64Locator     = 0x07064b50
)

const (
	eocdFixedSize         = 22
	maxCommentSize        = 65535
	eocdSearchWindow      = eocdFixedSize + maxCommentSize
	zip64LocatorSize      = 20
	zip64EOCDFixedSize    = 56
	sentinel32            = 0xFFFFFFFF
	sentinel16            = 0xFFFF
	dosDirectoryAttribute = 0x10
)

// General-purpose flag bits the decoder consumes.
const (
	flagEncrypted      = 1 << 0
	flagDataDescriptor = 1 << 3
	flagUTF8           = 1 << 11
)

// Method is a ZIP compression method code.
type Method uint16

const (
	// MethodStored stores the payload without compression.
	MethodStored Method = 0
	// MethodDeflate compresses the payload with raw DEFLATE.
	MethodDeflate Method = 8
)

func (m Method) String() string {
	switch m {
	case MethodStored:
		return "stored"
	case MethodDeflate:
		return "deflate"
	default:
		return fmt.Sprintf("method(%d)", uint16(m))
	}
}

// Entry holds the metadata for one archive member, decoded from its central
// directory record. Entries are immutable after parsing; HeaderOffset is
// already corrected for any prefix bytes.
type Entry struct {
	// Path is the entry's relative slash-separated path. Directory entries
	// have their trailing slash stripped; IsDir records it.
	Path string

	// IsDir reports whether the entry is a directory: the archived name
	// ended with a slash or the MS-DOS directory attribute is set.
	IsDir bool

	// Modified is the MS-DOS timestamp of the entry. Zeroed date/time
	// fields decode as the ZIP epoch, 1980-01-01 00:00:00.
	Modified time.Time

	// CRC32 is the expected IEEE CRC-32 of the uncompressed payload.
	CRC32 uint32

	// CompressedSize and UncompressedSize are byte counts, Zip64-corrected.
	CompressedSize   uint64
	UncompressedSize uint64

	// Method is the compression method. Methods other than Stored and
	// Deflate are carried through and rejected at read time.
	Method Method

	// HeaderOffset is the absolute offset of the entry's local file header
	// within the archive bytes, prefix-corrected.
	HeaderOffset uint64

	// Encrypted is bit 0 of the general-purpose flags. Reading an
	// encrypted entry fails.
	Encrypted bool

	// HasDataDescriptor is bit 3: local header sizes and CRC may be zero,
	// with the central directory values authoritative.
	HasDataDescriptor bool
}

// eocd is the end-of-central-directory record.
type eocd struct {
	diskNumber     uint16
	diskWithCD     uint16
	entriesOnDisk  uint16
	entries        uint16
	directorySize  uint32
	directoryStart uint32
	comment        []byte
}

// parseEOCD decodes the record at data[off:]. The signature has already
// been matched by the search. A comment length running past the end of
// data is clamped rather than rejected, since junk may trail the archive.
func parseEOCD(data []byte, off int) (eocd, error) {
	r := newSliceReader(data[off:])
	var rec eocd
	var err error
	if err = r.skip(4); err != nil {
		return rec, err
	}
	if rec.diskNumber, err = r.u16(); err != nil {
		return rec, err
	}
	if rec.diskWithCD, err = r.u16(); err != nil {
		return rec, err
	}
	if rec.entriesOnDisk, err = r.u16(); err != nil {
		return rec, err
	}
	if rec.entries, err = r.u16(); err != nil {
		return rec, err
	}
	if rec.directorySize, err = r.u32(); err != nil {
		return rec, err
	}
	if rec.directoryStart, err = r.u32(); err != nil {
		return rec, err
	}
	commentLen, err := r.u16()
	if err != nil {
		return rec, err
	}
	n := int(commentLen)
	if n > r.remaining() {
		n = r.remaining()
	}
	rec.comment, err = r.bytes(n)
	return rec, err
}

// zip64Locator points from just before the EOCD record to the Zip64 EOCD.
type zip64Locator struct {
	diskWithCD  uint32
	zip64Offset uint64
	disks       uint32
}

func parseZip64Locator(data []byte, off int) (zip64Locator, error) {
	r := newSliceReader(data[off:])
	var rec zip64Locator
	var err error
	if err = r.skip(4); err != nil {
		return rec, err
	}
	if rec.diskWithCD, err = r.u32(); err != nil {
		return rec, err
	}
	if rec.zip64Offset, err = r.u64(); err != nil {
		return rec, err
	}
	rec.disks, err = r.u32()
	return rec, err
}

// zip64EOCD is the Zip64 end-of-central-directory record. Its 64-bit
// fields override the sentinel values in the classic record.
type zip64EOCD struct {
	entries        uint64
	directorySize  uint64
	directoryStart uint64
}

func parseZip64EOCD(data []byte, off int) (zip64EOCD, error) {
	r := newSliceReader(data[off:])
	var rec zip64EOCD
	if err := r.skip(4); err != nil {
		return rec, err
	}
	recordSize, err := r.u64()
	if err != nil {
		return rec, err
	}
	// 4.3.14.1: the stored size excludes the leading 12 bytes.
	if recordSize+12 < zip64EOCDFixedSize {
		return rec, fmt.Errorf("zip64 record size %d: %w", recordSize, ErrMalformed)
	}
	if err := r.skip(4); err != nil { // version made by, version needed
		return rec, err
	}
	diskNumber, err := r.u32()
	if err != nil {
		return rec, err
	}
	diskWithCD, err := r.u32()
	if err != nil {
		return rec, err
	}
	if diskNumber != diskWithCD {
		return rec, fmt.Errorf("zip64 directory on disk %d of %d: %w", diskWithCD, diskNumber, ErrUnsupported)
	}
	entriesOnDisk, err := r.u64()
	if err != nil {
		return rec, err
	}
	if rec.entries, err = r.u64(); err != nil {
		return rec, err
	}
	if entriesOnDisk != rec.entries {
		return rec, fmt.Errorf("zip64 entry counts disagree (%d vs %d): %w", entriesOnDisk, rec.entries, ErrMalformed)
	}
	if rec.directorySize, err = r.u64(); err != nil {
		return rec, err
	}
	rec.directoryStart, err = r.u64()
	return rec, err
}

// centralRecord is the raw central directory file header, before name
// decoding and Zip64 correction.
type centralRecord struct {
	flags            uint16
	method           uint16
	modTime          uint16
	modDate          uint16
	crc32            uint32
	compressedSize   uint32
	uncompressedSize uint32
	diskNumber       uint16
	externalAttrs    uint32
	headerOffset     uint32
	name             []byte
	extra            []byte
}

// parseCentralRecord consumes one central directory file header.
func parseCentralRecord(r *sliceReader) (centralRecord, error) {
	var rec centralRecord
	sig, err := r.u32()
	if err != nil {
		return rec, err
	}
	if sig != sigCentralDirectory {
		return rec, fmt.Errorf("central directory signature %#08x: %w", sig, ErrMalformed)
	}
	if err := r.skip(4); err != nil { // version made by, version needed
		return rec, err
	}
	if rec.flags, err = r.u16(); err != nil {
		return rec, err
	}
	if rec.method, err = r.u16(); err != nil {
		return rec, err
	}
	if rec.modTime, err = r.u16(); err != nil {
		return rec, err
	}
	if rec.modDate, err = r.u16(); err != nil {
		return rec, err
	}
	if rec.crc32, err = r.u32(); err != nil {
		return rec, err
	}
	if rec.compressedSize, err = r.u32(); err != nil {
		return rec, err
	}
	if rec.uncompressedSize, err = r.u32(); err != nil {
		return rec, err
	}
	nameLen, err := r.u16()
	if err != nil {
		return rec, err
	}
	extraLen, err := r.u16()
	if err != nil {
		return rec, err
	}
	commentLen, err := r.u16()
	if err != nil {
		return rec, err
	}
	if rec.diskNumber, err = r.u16(); err != nil {
		return rec, err
	}
	if err := r.skip(2); err != nil { // internal file attributes
		return rec, err
	}
	if rec.externalAttrs, err = r.u32(); err != nil {
		return rec, err
	}
	if rec.headerOffset, err = r.u32(); err != nil {
		return rec, err
	}
	if rec.name, err = r.bytes(int(nameLen)); err != nil {
		return rec, err
	}
	if rec.extra, err = r.bytes(int(extraLen)); err != nil {
		return rec, err
	}
	if err := r.skip(int(commentLen)); err != nil {
		return rec, err
	}
	return rec, nil
}

// LocalHeader is the fixed portion of a local file header, parsed at read
// time to locate the payload and optionally cross-check the central
// directory.
type LocalHeader struct {
	Flags            uint16
	Method           Method
	CRC32            uint32
	CompressedSize   uint32
	UncompressedSize uint32

	// PayloadStart is the absolute offset of the first payload byte:
	// the header offset plus the fixed header and the variable name and
	// extra regions.
	PayloadStart uint64
}

// ParseLocalHeader decodes the local file header at the given absolute
// offset. Only the lengths of the variable regions matter here; their
// content may legitimately differ from the central directory.
func ParseLocalHeader(data []byte, off uint64) (LocalHeader, error) {
	var h LocalHeader
	if off > uint64(len(data)) {
		return h, fmt.Errorf("local header at offset %d: %w", off, ErrTruncated)
	}
	r := newSliceReader(data[off:])
	sig, err := r.u32()
	if err != nil {
		return h, err
	}
	if sig != sigLocalFileHeader {
		return h, fmt.Errorf("local file header signature %#08x at offset %d: %w", sig, off, ErrMalformed)
	}
	if err := r.skip(2); err != nil { // version needed
		return h, err
	}
	if h.Flags, err = r.u16(); err != nil {
		return h, err
	}
	method, err := r.u16()
	if err != nil {
		return h, err
	}
	h.Method = Method(method)
	if err := r.skip(4); err != nil { // mod time, mod date
		return h, err
	}
	if h.CRC32, err = r.u32(); err != nil {
		return h, err
	}
	if h.CompressedSize, err = r.u32(); err != nil {
		return h, err
	}
	if h.UncompressedSize, err = r.u32(); err != nil {
		return h, err
	}
	nameLen, err := r.u16()
	if err != nil {
		return h, err
	}
	extraLen, err := r.u16()
	if err != nil {
		return h, err
	}
	if err := r.skip(int(nameLen) + int(extraLen)); err != nil {
		return h, err
	}
	h.PayloadStart = off + uint64(r.off)
	return h, nil
}
