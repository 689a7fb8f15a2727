package parzip

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"parzip/cache"
	"parzip/internal/zipspec"
)

// Re-export parse-layer types for the public API.
type (
	// Entry is the metadata of one archive member, decoded from the
	// central directory. Entries are immutable after parsing.
	Entry = zipspec.Entry

	// Method identifies a ZIP compression method.
	Method = zipspec.Method
)

// Supported compression methods. Other method codes parse fine and fail
// at read time.
const (
	MethodStored  = zipspec.MethodStored
	MethodDeflate = zipspec.MethodDeflate
)

// Archive is a parsed, read-only ZIP archive over a shared byte range.
//
// The central directory is decoded eagerly by NewArchive. Entries and the
// backing bytes are immutable afterwards, so an Archive may be shared
// freely across goroutines; readers returned by Open are independent of
// one another.
type Archive struct {
	data    []byte
	entries []*Entry
	prefix  uint64
	comment []byte

	checkLocal bool
	cache      cache.Cache
	logger     *slog.Logger

	treeOnce  sync.Once
	tree      *Tree
	treeErr   error
	readGroup singleflight.Group
}

// Option configures an Archive.
type Option func(*Archive)

// WithLocalHeaderCheck enables cross-checking each entry's local file
// header against its central directory record at read time. Disagreement
// fails with ErrLocalHeaderMismatch. Off by default: many writers emit
// local headers that legitimately differ in the variable regions.
func WithLocalHeaderCheck(enabled bool) Option {
	return func(a *Archive) {
		a.checkLocal = enabled
	}
}

// WithCache enables content caching for ReadFile.
//
// Decompressed content is cached after first read and served from cache on
// subsequent reads. Concurrent misses for the same entry are deduplicated.
// Callers must not modify returned slices when a cache is configured.
func WithCache(c cache.Cache) Option {
	return func(a *Archive) {
		a.cache = c
	}
}

// WithLogger sets the logger for parse and read events.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Archive) {
		a.logger = logger
	}
}

// log returns the logger, falling back to a discard logger if nil.
func (a *Archive) log() *slog.Logger {
	if a.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return a.logger
}

// NewArchive parses the central directory of the ZIP archive in data.
//
// The data is retained by the Archive and borrowed by every reader it
// produces; callers must keep it alive and unmodified for as long as any
// of them is in use. Arbitrary bytes before the start of the ZIP
// structure are tolerated; all stored offsets are corrected by the
// detected prefix length.
func NewArchive(data []byte, opts ...Option) (*Archive, error) {
	a := &Archive{data: data}
	for _, opt := range opts {
		opt(a)
	}

	dir, err := zipspec.Parse(data)
	if err != nil {
		return nil, err
	}
	a.prefix = dir.PrefixOffset
	a.comment = dir.Comment
	a.entries = make([]*Entry, len(dir.Entries))
	for i := range dir.Entries {
		a.entries[i] = &dir.Entries[i]
	}

	a.log().Debug("parsed central directory",
		"entries", len(a.entries),
		"prefix_offset", a.prefix)
	return a, nil
}

// NewArchiveStrict is NewArchive, but fails with ErrMalformed when the
// archive is preceded by unknown bytes.
func NewArchiveStrict(data []byte, opts ...Option) (*Archive, error) {
	a, err := NewArchive(data, opts...)
	if err != nil {
		return nil, err
	}
	if a.prefix != 0 {
		return nil, fmt.Errorf("archive prepended with %d unknown bytes: %w", a.prefix, ErrMalformed)
	}
	return a, nil
}

// Entries returns the archive members in central directory order, which
// is the definitive iteration order. No deduplication or path validation
// is performed here; build a Tree for that.
func (a *Archive) Entries() []*Entry {
	return a.entries
}

// Len returns the number of entries in the archive.
func (a *Archive) Len() int {
	return len(a.entries)
}

// PrefixOffset returns the number of bytes preceding the logical start of
// the ZIP structure.
func (a *Archive) PrefixOffset() uint64 {
	return a.prefix
}

// Comment returns the archive comment, which may be empty.
func (a *Archive) Comment() []byte {
	return a.comment
}

// Tree returns the validated file tree of the archive, building it on
// first use. Construction fails on duplicate or invalid paths even though
// the raw entry list tolerates them.
func (a *Archive) Tree() (*Tree, error) {
	a.treeOnce.Do(func() {
		a.tree, a.treeErr = NewTree(a.entries)
	})
	return a.tree, a.treeErr
}

// ReadFile reads and returns the entire decompressed content of the file
// at path, verified against its CRC-32 and size.
//
// With a cache configured (via WithCache), content is served from and
// populated into the cache, and concurrent misses for the same entry are
// deduplicated. Returned slices are shared in that case and must not be
// modified.
func (a *Archive) ReadFile(path string) ([]byte, error) {
	tree, err := a.Tree()
	if err != nil {
		return nil, err
	}
	node, err := tree.Lookup(path)
	if err != nil {
		return nil, err
	}
	if node.IsDir() {
		return nil, fmt.Errorf("read %s: is a directory: %w", path, ErrNotFound)
	}
	entry := node.Entry()

	if a.cache == nil {
		return a.readAll(entry)
	}

	key := cacheKey(entry)
	if content, ok := a.cache.Get(key); ok {
		a.log().Debug("content cache hit", "path", path)
		return content, nil
	}
	a.log().Debug("content cache miss", "path", path)

	result, err, _ := a.readGroup.Do(key, func() (any, error) {
		if content, ok := a.cache.Get(key); ok {
			return content, nil
		}
		content, err := a.readAll(entry)
		if err != nil {
			return nil, err
		}
		a.cache.Put(key, content)
		return content, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

// readAll drains a reader for the entry into a sized buffer.
func (a *Archive) readAll(entry *Entry) ([]byte, error) {
	rc, err := a.Open(entry)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	// Preallocation is capped so hostile metadata cannot force a huge
	// allocation before the first read fails.
	prealloc := entry.UncompressedSize
	if prealloc > 1<<20 {
		prealloc = 1 << 20
	}
	content := make([]byte, 0, prealloc)
	buf := make([]byte, 32<<10)
	for {
		n, err := rc.Read(buf)
		content = append(content, buf[:n]...)
		if err == io.EOF {
			return content, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// cacheKey identifies an entry's content within its archive. The header
// offset is unique per entry; the CRC guards against reuse across
// archives sharing one cache.
func cacheKey(e *Entry) string {
	return fmt.Sprintf("%d/%d/%08x", e.HeaderOffset, e.UncompressedSize, e.CRC32)
}
