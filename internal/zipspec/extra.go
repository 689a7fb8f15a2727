package zipspec

import (
	"encoding/binary"
	"fmt"
)

// zip64ExtraTag keys the Zip64 extended information record in the
// tag-length-value extra field stream.
const zip64ExtraTag = 0x0001

// zip64Overrides says which fixed-header fields were sentinel-max and must
// be read from the Zip64 extra record. The record compacts its fields
// positionally: uncompressed size, compressed size, header offset, disk
// number, each present only when the corresponding flag is set.
type zip64Overrides struct {
	uncompressedSize bool
	compressedSize   bool
	headerOffset     bool
	diskNumber       bool
}

func (o zip64Overrides) any() bool {
	return o.uncompressedSize || o.compressedSize || o.headerOffset || o.diskNumber
}

// size returns the number of bytes the Zip64 record must carry for the
// flagged fields: 8 each for the sizes and offset, 4 for the disk number.
func (o zip64Overrides) size() int {
	n := 0
	if o.uncompressedSize {
		n += 8
	}
	if o.compressedSize {
		n += 8
	}
	if o.headerOffset {
		n += 8
	}
	if o.diskNumber {
		n += 4
	}
	return n
}

// applyExtraField walks the extra field's tag-length-value records and
// applies Zip64 overrides to the entry. Unknown tags are skipped; a record
// whose declared size exceeds the remaining slice ends parsing of this
// entry's extras. A Zip64 record too small for the flagged fields fails
// with ErrMalformedZip64.
func applyExtraField(extra []byte, want zip64Overrides, e *Entry) (diskNumber uint32, err error) {
	for len(extra) >= 4 {
		tag := binary.LittleEndian.Uint16(extra)
		size := int(binary.LittleEndian.Uint16(extra[2:]))
		extra = extra[4:]
		if size > len(extra) {
			if tag == zip64ExtraTag && want.any() {
				return 0, fmt.Errorf("zip64 extra record size %d exceeds extra field: %w", size, ErrMalformedZip64)
			}
			break
		}
		if tag == zip64ExtraTag {
			if size < want.size() {
				return 0, fmt.Errorf("zip64 extra record size %d, need %d: %w", size, want.size(), ErrMalformedZip64)
			}
			data := extra[:size]
			if want.uncompressedSize {
				e.UncompressedSize = binary.LittleEndian.Uint64(data)
				data = data[8:]
			}
			if want.compressedSize {
				e.CompressedSize = binary.LittleEndian.Uint64(data)
				data = data[8:]
			}
			if want.headerOffset {
				e.HeaderOffset = binary.LittleEndian.Uint64(data)
				data = data[8:]
			}
			if want.diskNumber {
				diskNumber = binary.LittleEndian.Uint32(data)
			}
		}
		extra = extra[size:]
	}
	return diskNumber, nil
}
