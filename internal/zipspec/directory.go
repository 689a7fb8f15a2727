package zipspec

import (
	"fmt"
	"strings"
)

// Directory is the decoded central directory of an archive.
type Directory struct {
	// Entries holds one record per archive member, in central directory
	// order. That order is definitive for iteration; local headers may be
	// laid out differently.
	Entries []Entry

	// PrefixOffset is the number of bytes preceding the logical start of
	// the ZIP structure (self-extractor stubs, concatenated data). It has
	// already been folded into every HeaderOffset.
	PrefixOffset uint64

	// Comment is the archive comment from the end-of-central-directory
	// record.
	Comment []byte
}

// entryPrealloc caps the initial entry allocation so a hostile entry
// count cannot force a huge allocation before parsing fails.
const entryPrealloc = 1 << 16

// Parse locates and decodes the central directory of the archive in data.
func Parse(data []byte) (*Directory, error) {
	bounds, err := locateDirectory(data)
	if err != nil {
		return nil, err
	}

	prealloc := bounds.entries
	if prealloc > entryPrealloc {
		prealloc = entryPrealloc
	}
	dir := &Directory{
		Entries:      make([]Entry, 0, prealloc),
		PrefixOffset: uint64(bounds.prefixOffset),
		Comment:      bounds.comment,
	}

	r := newSliceReader(data[bounds.start:])
	for i := uint64(0); i < bounds.entries; i++ {
		rec, err := parseCentralRecord(r)
		if err != nil {
			return nil, fmt.Errorf("central directory entry %d: %w", i, err)
		}
		entry, err := entryFromRecord(rec, uint64(bounds.prefixOffset))
		if err != nil {
			return nil, fmt.Errorf("central directory entry %d: %w", i, err)
		}
		dir.Entries = append(dir.Entries, entry)
	}
	return dir, nil
}

// entryFromRecord decodes one central directory record into an Entry,
// applying Zip64 overrides and the prefix correction.
func entryFromRecord(rec centralRecord, prefix uint64) (Entry, error) {
	e := Entry{
		Modified:          dosTime(rec.modDate, rec.modTime),
		CRC32:             rec.crc32,
		CompressedSize:    uint64(rec.compressedSize),
		UncompressedSize:  uint64(rec.uncompressedSize),
		Method:            Method(rec.method),
		HeaderOffset:      uint64(rec.headerOffset),
		Encrypted:         rec.flags&flagEncrypted != 0,
		HasDataDescriptor: rec.flags&flagDataDescriptor != 0,
	}

	name, err := decodeName(rec.name, rec.flags&flagUTF8 != 0)
	if err != nil {
		return e, err
	}
	e.IsDir = strings.HasSuffix(name, "/") || rec.externalAttrs&dosDirectoryAttribute != 0
	e.Path = strings.TrimSuffix(name, "/")

	want := zip64Overrides{
		uncompressedSize: rec.uncompressedSize == sentinel32,
		compressedSize:   rec.compressedSize == sentinel32,
		headerOffset:     rec.headerOffset == sentinel32,
		diskNumber:       rec.diskNumber == sentinel16,
	}
	disk := uint32(rec.diskNumber)
	if want.any() {
		zip64Disk, err := applyExtraField(rec.extra, want, &e)
		if err != nil {
			return e, err
		}
		if want.diskNumber {
			disk = zip64Disk
		}
	}
	if disk != 0 {
		return e, fmt.Errorf("entry %q on disk %d: %w", e.Path, disk, ErrUnsupported)
	}

	e.HeaderOffset += prefix
	return e, nil
}
