package zipspec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

// extraRecord assembles one tag-length-value record.
func extraRecord(tag uint16, data []byte) []byte {
	var buf bytes.Buffer
	var hdr [4]byte
	binary.LittleEndian.PutUint16(hdr[0:], tag)
	binary.LittleEndian.PutUint16(hdr[2:], uint16(len(data)))
	buf.Write(hdr[:])
	buf.Write(data)
	return buf.Bytes()
}

func u64le(v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return b[:]
}

func u32le(v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return b[:]
}

func TestApplyExtraField(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		extra    []byte
		want     zip64Overrides
		wantErr  error
		check    func(t *testing.T, e Entry, disk uint32)
	}{
		{
			name: "all four fields in order",
			extra: extraRecord(zip64ExtraTag, bytes.Join([][]byte{
				u64le(5_000_000_000), u64le(4_000_000_000), u64le(123), u32le(0),
			}, nil)),
			want: zip64Overrides{uncompressedSize: true, compressedSize: true, headerOffset: true, diskNumber: true},
			check: func(t *testing.T, e Entry, disk uint32) {
				if e.UncompressedSize != 5_000_000_000 {
					t.Errorf("UncompressedSize = %d", e.UncompressedSize)
				}
				if e.CompressedSize != 4_000_000_000 {
					t.Errorf("CompressedSize = %d", e.CompressedSize)
				}
				if e.HeaderOffset != 123 {
					t.Errorf("HeaderOffset = %d", e.HeaderOffset)
				}
				if disk != 0 {
					t.Errorf("disk = %d", disk)
				}
			},
		},
		{
			name:  "only compressed size flagged reads first slot",
			extra: extraRecord(zip64ExtraTag, u64le(4_900_000_000)),
			want:  zip64Overrides{compressedSize: true},
			check: func(t *testing.T, e Entry, _ uint32) {
				if e.CompressedSize != 4_900_000_000 {
					t.Errorf("CompressedSize = %d", e.CompressedSize)
				}
				if e.UncompressedSize != 0 {
					t.Errorf("UncompressedSize = %d, want untouched", e.UncompressedSize)
				}
			},
		},
		{
			name: "zip64 record after unknown tag",
			extra: append(
				extraRecord(0x7075, []byte("unicode path data")),
				extraRecord(zip64ExtraTag, u64le(77))...),
			want: zip64Overrides{uncompressedSize: true},
			check: func(t *testing.T, e Entry, _ uint32) {
				if e.UncompressedSize != 77 {
					t.Errorf("UncompressedSize = %d", e.UncompressedSize)
				}
			},
		},
		{
			name:    "record smaller than flagged fields",
			extra:   extraRecord(zip64ExtraTag, u64le(1)),
			want:    zip64Overrides{uncompressedSize: true, compressedSize: true},
			wantErr: ErrMalformedZip64,
		},
		{
			name:    "zip64 record overruns the extra field",
			extra:   extraRecord(zip64ExtraTag, bytes.Join([][]byte{u64le(1), u64le(2)}, nil))[:10],
			want:    zip64Overrides{uncompressedSize: true, compressedSize: true},
			wantErr: ErrMalformedZip64,
		},
		{
			name:  "oversized unknown tag ends parsing quietly",
			extra: extraRecord(0x5455, bytes.Repeat([]byte{1}, 40))[:12],
			want:  zip64Overrides{},
			check: func(t *testing.T, e Entry, _ uint32) {},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var e Entry
			disk, err := applyExtraField(tt.extra, tt.want, &e)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("applyExtraField() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("applyExtraField() error = %v", err)
			}
			tt.check(t, e, disk)
		})
	}
}
