package parzip

import (
	"bytes"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"io/fs"
	"sync"

	"github.com/klauspost/compress/flate"

	"parzip/internal/zipspec"
)

// flatePool reuses DEFLATE decoders across reads. A decoder's window and
// tables dominate per-reader memory, so recycling them keeps the hot path
// allocation-free.
var flatePool = sync.Pool{
	New: func() any {
		return flate.NewReader(nil)
	},
}

// getFlateReader returns a pooled decoder reset onto r, and a release
// function returning it to the pool.
func getFlateReader(r io.Reader) (io.ReadCloser, func(), error) {
	fr := flatePool.Get().(io.ReadCloser)
	if err := fr.(flate.Resetter).Reset(r, nil); err != nil {
		return nil, nil, err
	}
	return fr, func() {
		flatePool.Put(fr)
	}, nil
}

// Open returns an independent reader for the decompressed content of the
// given entry.
//
// The reader borrows the archive bytes immutably and holds no locks; any
// number of readers, for the same or different entries, may be driven
// concurrently. The CRC-32 and size recorded in the central directory are
// verified when the reader reaches end of stream: the final read that
// observes io.EOF fails with ErrChecksumMismatch or ErrSizeMismatch
// instead if the payload disagrees.
//
// Encrypted entries and compression methods other than Stored and Deflate
// fail with ErrUnsupported.
func (a *Archive) Open(entry *Entry) (io.ReadCloser, error) {
	if entry.Encrypted {
		return nil, fmt.Errorf("open %s: encrypted entry: %w", entry.Path, ErrUnsupported)
	}

	local, err := zipspec.ParseLocalHeader(a.data, entry.HeaderOffset)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", entry.Path, err)
	}
	if a.checkLocal {
		if err := crossCheckLocal(entry, local); err != nil {
			return nil, fmt.Errorf("open %s: %w", entry.Path, err)
		}
	}

	end := local.PayloadStart + entry.CompressedSize
	if end < local.PayloadStart || end > uint64(len(a.data)) {
		return nil, fmt.Errorf("open %s: payload runs past end of archive: %w", entry.Path, ErrTruncated)
	}
	payload := a.data[local.PayloadStart:end]

	switch entry.Method {
	case MethodStored:
		return newVerifyingReader(bytes.NewReader(payload), entry, nil), nil
	case MethodDeflate:
		fr, release, err := getFlateReader(bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", entry.Path, err)
		}
		return newVerifyingReader(fr, entry, release), nil
	default:
		return nil, fmt.Errorf("open %s: compression %s: %w", entry.Path, entry.Method, ErrUnsupported)
	}
}

// crossCheckLocal compares a local file header against the entry's
// central directory record. When the entry uses a data descriptor the
// local sizes and CRC may legitimately be zero; central values are
// authoritative and zeros are accepted.
func crossCheckLocal(entry *Entry, local zipspec.LocalHeader) error {
	if local.Method != entry.Method {
		return fmt.Errorf("method %s vs %s: %w", local.Method, entry.Method, ErrLocalHeaderMismatch)
	}
	deferred := entry.HasDataDescriptor &&
		local.CRC32 == 0 && local.CompressedSize == 0 && local.UncompressedSize == 0
	if deferred {
		return nil
	}
	if local.CRC32 != entry.CRC32 {
		return fmt.Errorf("crc32 %08x vs %08x: %w", local.CRC32, entry.CRC32, ErrLocalHeaderMismatch)
	}
	if v := uint64(local.CompressedSize); v != entry.CompressedSize && local.CompressedSize != 0xFFFFFFFF {
		return fmt.Errorf("compressed size %d vs %d: %w", v, entry.CompressedSize, ErrLocalHeaderMismatch)
	}
	if v := uint64(local.UncompressedSize); v != entry.UncompressedSize && local.UncompressedSize != 0xFFFFFFFF {
		return fmt.Errorf("uncompressed size %d vs %d: %w", v, entry.UncompressedSize, ErrLocalHeaderMismatch)
	}
	return nil
}

// verifyingReader accumulates a CRC-32 and byte count over the
// decompressed stream and compares both against the central directory on
// end of stream. The check fires exactly once, on the read that observes
// a clean EOF.
type verifyingReader struct {
	inner   io.Reader
	release func()

	expectedCRC  uint32
	expectedSize uint64
	hasher       hash.Hash32
	count        uint64

	verified bool
	closed   bool
}

func newVerifyingReader(inner io.Reader, entry *Entry, release func()) *verifyingReader {
	return &verifyingReader{
		inner:        inner,
		release:      release,
		expectedCRC:  entry.CRC32,
		expectedSize: entry.UncompressedSize,
		hasher:       crc32.NewIEEE(),
	}
}

func (r *verifyingReader) Read(p []byte) (int, error) {
	if r.closed {
		return 0, fs.ErrClosed
	}
	if r.verified {
		return 0, io.EOF
	}

	n, err := r.inner.Read(p)
	if n > 0 {
		r.hasher.Write(p[:n])
		r.count += uint64(n)
		if r.count > r.expectedSize {
			return n, fmt.Errorf("stream longer than %d bytes: %w", r.expectedSize, ErrSizeMismatch)
		}
	}
	if err == io.EOF {
		if verifyErr := r.verify(); verifyErr != nil {
			return n, verifyErr
		}
		r.verified = true
		return n, io.EOF
	}
	if err != nil {
		return n, fmt.Errorf("decompressing: %w", err)
	}
	return n, nil
}

func (r *verifyingReader) verify() error {
	if r.count != r.expectedSize {
		return fmt.Errorf("stream ended at %d of %d bytes: %w", r.count, r.expectedSize, ErrSizeMismatch)
	}
	if sum := r.hasher.Sum32(); sum != r.expectedCRC {
		return fmt.Errorf("crc32 %08x, want %08x: %w", sum, r.expectedCRC, ErrChecksumMismatch)
	}
	return nil
}

// Close releases the reader's decoder state. Dropping a reader mid-stream
// is well-defined; the archive bytes are unaffected.
func (r *verifyingReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if r.release != nil {
		r.release()
		r.release = nil
	}
	return nil
}
