package parzip

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"io"
	"testing"
)

// fileSpec describes one member of a test archive.
type fileSpec struct {
	name    string
	content string
	method  uint16 // zip.Store or zip.Deflate
}

// helloFiles is the baseline fixture: small text files under hello/.
var helloFiles = []fileSpec{
	{name: "hello/README", content: "Hello, world!\n", method: zip.Deflate},
	{name: "hello/a.txt", content: "alpha\n", method: zip.Deflate},
	{name: "hello/sub/b.txt", content: "beta beta beta beta beta beta\n", method: zip.Deflate},
	{name: "hello/stored.bin", content: "stored, not compressed", method: zip.Store},
}

// buildZip assembles an archive in memory with the standard library
// writer.
func buildZip(t *testing.T, comment string, files []fileSpec) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	if comment != "" {
		if err := zw.SetComment(comment); err != nil {
			t.Fatalf("setting comment: %v", err)
		}
	}
	for _, f := range files {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: f.name, Method: f.method})
		if err != nil {
			t.Fatalf("creating %s: %v", f.name, err)
		}
		if _, err := w.Write([]byte(f.content)); err != nil {
			t.Fatalf("writing %s: %v", f.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("closing writer: %v", err)
	}
	return buf.Bytes()
}

type leWriter struct {
	buf *bytes.Buffer
}

func (w leWriter) u16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.buf.Write(b[:])
}

func (w leWriter) u32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

func (w leWriter) u64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

// buildZip64 hand-assembles a single-member archive whose central
// directory stores every 32-bit field as a sentinel and carries the real
// values in a Zip64 extra record, trailed by a Zip64 EOCD record and
// locator. The payload is stored uncompressed.
func buildZip64(t *testing.T, name string, payload []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := leWriter{&buf}
	crc := crc32.ChecksumIEEE(payload)

	// Local file header.
	w.u32(0x04034b50)
	w.u16(45) // version needed
	w.u16(0)  // flags
	w.u16(0)  // method: stored
	w.u16(0)  // mod time
	w.u16(0)  // mod date
	w.u32(crc)
	w.u32(uint32(len(payload)))
	w.u32(uint32(len(payload)))
	w.u16(uint16(len(name)))
	w.u16(0) // extra length
	buf.WriteString(name)
	buf.Write(payload)

	cdStart := buf.Len()

	// Central directory file header, all redirectable fields sentinel.
	w.u32(0x02014b50)
	w.u16(45) // version made by
	w.u16(45) // version needed
	w.u16(0)  // flags
	w.u16(0)  // method: stored
	w.u16(0)  // mod time
	w.u16(0)  // mod date
	w.u32(crc)
	w.u32(0xFFFFFFFF) // compressed size
	w.u32(0xFFFFFFFF) // uncompressed size
	w.u16(uint16(len(name)))
	w.u16(32)     // extra length: 4-byte header + 28 bytes of fields
	w.u16(0)      // comment length
	w.u16(0xFFFF) // disk number
	w.u16(0)      // internal attributes
	w.u32(0)      // external attributes
	w.u32(0xFFFFFFFF) // header offset
	buf.WriteString(name)
	w.u16(0x0001) // zip64 extended information
	w.u16(28)
	w.u64(uint64(len(payload))) // uncompressed
	w.u64(uint64(len(payload))) // compressed
	w.u64(0)                    // header offset
	w.u32(0)                    // disk number

	cdSize := buf.Len() - cdStart
	zip64Start := buf.Len()

	// Zip64 end of central directory record.
	w.u32(0x06064b50)
	w.u64(44) // record size, excluding the leading 12 bytes
	w.u16(45)
	w.u16(45)
	w.u32(0) // disk number
	w.u32(0) // disk with central directory
	w.u64(1) // entries on this disk
	w.u64(1) // entries
	w.u64(uint64(cdSize))
	w.u64(uint64(cdStart))

	// Zip64 end of central directory locator.
	w.u32(0x07064b50)
	w.u32(0) // disk with zip64 EOCD
	w.u64(uint64(zip64Start))
	w.u32(1) // total disks

	// Classic end of central directory record, sentinel values.
	w.u32(0x06054b50)
	w.u16(0)
	w.u16(0)
	w.u16(0xFFFF)
	w.u16(0xFFFF)
	w.u32(0xFFFFFFFF)
	w.u32(0xFFFFFFFF)
	w.u16(0)

	return buf.Bytes()
}

// buildZip64CompressedOnly hand-assembles an archive whose central entry
// uses Zip64 for the compressed size only, with a classic EOCD. The
// declared compressed size is far past the end of the data, so the
// archive parses but cannot be read.
func buildZip64CompressedOnly(t *testing.T, name string, compressedSize uint64, uncompressedSize uint32) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := leWriter{&buf}

	// Local file header with no payload; the member is never read.
	w.u32(0x04034b50)
	w.u16(45)
	w.u16(0)
	w.u16(8) // method: deflate
	w.u16(0)
	w.u16(0)
	w.u32(0)
	w.u32(0)
	w.u32(0)
	w.u16(uint16(len(name)))
	w.u16(0)
	buf.WriteString(name)

	cdStart := buf.Len()

	w.u32(0x02014b50)
	w.u16(45)
	w.u16(45)
	w.u16(0)
	w.u16(8)
	w.u16(0)
	w.u16(0)
	w.u32(0)
	w.u32(0xFFFFFFFF)      // compressed size: redirected
	w.u32(uncompressedSize) // uncompressed size: plain
	w.u16(uint16(len(name)))
	w.u16(12) // extra: header + one 8-byte field
	w.u16(0)
	w.u16(0)
	w.u16(0)
	w.u32(0)
	w.u32(0) // header offset
	buf.WriteString(name)
	w.u16(0x0001)
	w.u16(8)
	w.u64(compressedSize)

	cdSize := buf.Len() - cdStart

	w.u32(0x06054b50)
	w.u16(0)
	w.u16(0)
	w.u16(1)
	w.u16(1)
	w.u32(uint32(cdSize))
	w.u32(uint32(cdStart))
	w.u16(0)

	return buf.Bytes()
}

// payloadOffset computes where an entry's payload starts by reading the
// variable-length fields of its local file header from the raw bytes.
func payloadOffset(data []byte, headerOffset uint64) uint64 {
	nameLen := binary.LittleEndian.Uint16(data[headerOffset+26:])
	extraLen := binary.LittleEndian.Uint16(data[headerOffset+28:])
	return headerOffset + 30 + uint64(nameLen) + uint64(extraLen)
}

// readEntry drains one entry through a fresh reader.
func readEntry(t *testing.T, a *Archive, e *Entry) ([]byte, error) {
	t.Helper()
	rc, err := a.Open(e)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	var out bytes.Buffer
	buf := make([]byte, 1024)
	for {
		n, err := rc.Read(buf)
		out.Write(buf[:n])
		if err == io.EOF {
			return out.Bytes(), nil
		}
		if err != nil {
			return out.Bytes(), err
		}
	}
}
