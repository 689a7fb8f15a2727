package zipspec

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// directoryBounds is the result of locating the central directory: where
// it physically starts, how many entries it holds, and how many prefix
// bytes precede the logical start of the ZIP structure.
type directoryBounds struct {
	start        int
	entries      uint64
	prefixOffset int
	comment      []byte
}

// searchWindow is how far back from E−S the locator will look for the
// first central directory signature when it does not sit exactly at E−S.
const searchWindow = 1 << 10

var (
	eocdSig         = leSig(sigEOCD)
	zip64EOCDSig    = leSig(sigZip64EOCD)
	zip64LocatorSig = leSig(sigZip64Locator)
)

func leSig(sig uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, sig)
	return b
}

// findEOCD scans the tail of the archive backward for the
// end-of-central-directory signature. The record has no unique framing,
// so the tiebreak is: prefer the highest-offset occurrence whose declared
// comment length makes the record end exactly at the end of data (the
// comment may itself contain the signature as payload); fall back to the
// highest-offset occurrence, tolerating trailing junk.
func findEOCD(data []byte) (int, error) {
	windowStart := 0
	if len(data) > eocdSearchWindow {
		windowStart = len(data) - eocdSearchWindow
	}
	window := data[windowStart:]

	fallback := -1
	for limit := len(window); limit >= 4; {
		i := bytes.LastIndex(window[:limit], eocdSig)
		if i < 0 {
			break
		}
		if fallback < 0 {
			fallback = i
		}
		if i+eocdFixedSize <= len(window) {
			commentLen := int(binary.LittleEndian.Uint16(window[i+20:]))
			if i+eocdFixedSize+commentLen == len(window) {
				return windowStart + i, nil
			}
		}
		limit = i + 3
	}
	if fallback < 0 {
		return 0, ErrMissingEOCD
	}
	return windowStart + fallback, nil
}

// locateDirectory finds the EOCD record, follows the Zip64 locator when
// present, and computes the prefix offset: the distance between the
// physical position of the ZIP structure and the offsets it stores.
func locateDirectory(data []byte) (directoryBounds, error) {
	var b directoryBounds

	eocdOff, err := findEOCD(data)
	if err != nil {
		return b, err
	}
	rec, err := parseEOCD(data, eocdOff)
	if err != nil {
		return b, err
	}
	if rec.diskNumber != rec.diskWithCD {
		return b, fmt.Errorf("directory on disk %d of a %d-disk archive: %w", rec.diskWithCD, rec.diskNumber, ErrUnsupported)
	}
	if rec.entries != rec.entriesOnDisk {
		return b, fmt.Errorf("entry counts disagree (%d on disk, %d total): %w", rec.entriesOnDisk, rec.entries, ErrMalformed)
	}
	b.comment = rec.comment

	// The Zip64 locator, when present, sits in the 20 bytes immediately
	// before the EOCD record.
	locOff := eocdOff - zip64LocatorSize
	if locOff >= 0 && bytes.Equal(data[locOff:locOff+4], zip64LocatorSig) {
		return locateZip64(data, eocdOff, locOff, b)
	}

	start := eocdOff - int(rec.directorySize)
	if start < 0 {
		return b, fmt.Errorf("directory size %d exceeds space before its record: %w", rec.directorySize, ErrMalformed)
	}
	if rec.entries > 0 {
		start, err = confirmDirectoryStart(data, start)
		if err != nil {
			return b, err
		}
	}
	prefix := start - int(rec.directoryStart)
	if prefix < 0 {
		return b, fmt.Errorf("directory start %d beyond physical position %d: %w", rec.directoryStart, start, ErrMalformed)
	}
	b.start = start
	b.entries = uint64(rec.entries)
	b.prefixOffset = prefix
	return b, nil
}

// locateZip64 follows the locator to the Zip64 EOCD record. The stored
// pointer is uncorrected, so the record is searched for between its
// nominal position and the locator; the distance found is the prefix.
func locateZip64(data []byte, eocdOff, locOff int, b directoryBounds) (directoryBounds, error) {
	loc, err := parseZip64Locator(data, locOff)
	if err != nil {
		return b, err
	}
	if loc.disks != 1 {
		return b, fmt.Errorf("zip64 locator reports %d disks: %w", loc.disks, ErrUnsupported)
	}
	if loc.zip64Offset > uint64(locOff) {
		return b, fmt.Errorf("zip64 record offset %d beyond its locator: %w", loc.zip64Offset, ErrMalformed)
	}
	searchStart := int(loc.zip64Offset)
	i := bytes.Index(data[searchStart:locOff], zip64EOCDSig)
	if i < 0 {
		return b, fmt.Errorf("zip64 end of central directory record not found: %w", ErrMalformed)
	}
	prefix := i
	rec, err := parseZip64EOCD(data, searchStart+i)
	if err != nil {
		return b, err
	}
	start := rec.directoryStart + uint64(prefix)
	if start > uint64(len(data)) {
		return b, fmt.Errorf("zip64 directory start %d beyond archive: %w", rec.directoryStart, ErrMalformed)
	}
	b.start = int(start)
	b.entries = rec.entries
	b.prefixOffset = prefix
	return b, nil
}

// confirmDirectoryStart verifies the central directory signature at the
// computed start, scanning a small window downward when the directory
// does not abut its end record exactly.
func confirmDirectoryStart(data []byte, start int) (int, error) {
	if start+4 <= len(data) && binary.LittleEndian.Uint32(data[start:]) == sigCentralDirectory {
		return start, nil
	}
	windowStart := start - searchWindow
	if windowStart < 0 {
		windowStart = 0
	}
	i := bytes.LastIndex(data[windowStart:start], leSig(sigCentralDirectory))
	if i < 0 {
		return 0, fmt.Errorf("central directory not found at computed offset %d: %w", start, ErrMalformed)
	}
	return windowStart + i, nil
}
