package parzip

import (
	"io"
	"io/fs"
	"path"
	"slices"
	"strings"
	"time"
)

// FS returns an fs.FS view of the archive, backed by its validated tree.
//
// The returned filesystem implements fs.StatFS and fs.ReadDirFS. Opened
// files stream through the same verifying readers as Archive.Open, so
// reading one to EOF checks its CRC-32 and size.
func (a *Archive) FS() (fs.FS, error) {
	tree, err := a.Tree()
	if err != nil {
		return nil, err
	}
	return &archiveFS{a: a, tree: tree}, nil
}

type archiveFS struct {
	a    *Archive
	tree *Tree
}

// Interface compliance.
var (
	_ fs.FS        = (*archiveFS)(nil)
	_ fs.StatFS    = (*archiveFS)(nil)
	_ fs.ReadDirFS = (*archiveFS)(nil)
)

// node resolves an fs path, mapping "." to the root.
func (afs *archiveFS) node(op, name string) (*Node, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: op, Path: name, Err: fs.ErrInvalid}
	}
	if name == "." {
		return afs.tree.Root(), nil
	}
	node, err := afs.tree.Lookup(name)
	if err != nil {
		return nil, &fs.PathError{Op: op, Path: name, Err: fs.ErrNotExist}
	}
	return node, nil
}

func (afs *archiveFS) Open(name string) (fs.File, error) {
	node, err := afs.node("open", name)
	if err != nil {
		return nil, err
	}
	if node.IsDir() {
		return &openDir{fs: afs, name: name, node: node}, nil
	}
	rc, err := afs.a.Open(node.Entry())
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	return &openFile{ReadCloser: rc, entry: node.Entry(), base: path.Base(name)}, nil
}

func (afs *archiveFS) Stat(name string) (fs.FileInfo, error) {
	node, err := afs.node("stat", name)
	if err != nil {
		return nil, err
	}
	return nodeInfo(node, baseName(name)), nil
}

func (afs *archiveFS) ReadDir(name string) ([]fs.DirEntry, error) {
	node, err := afs.node("readdir", name)
	if err != nil {
		return nil, err
	}
	if !node.IsDir() {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrInvalid}
	}
	return dirEntries(node), nil
}

// dirEntries lists a directory's children sorted by name, as fs.ReadDir
// requires.
func dirEntries(node *Node) []fs.DirEntry {
	entries := make([]fs.DirEntry, 0, len(node.Children()))
	for _, child := range node.Children() {
		entries = append(entries, fs.FileInfoToDirEntry(nodeInfo(child, child.Name())))
	}
	slices.SortFunc(entries, func(a, b fs.DirEntry) int {
		return strings.Compare(a.Name(), b.Name())
	})
	return entries
}

func baseName(name string) string {
	if name == "." {
		return "."
	}
	return path.Base(name)
}

// fileInfo adapts a tree node to fs.FileInfo.
type fileInfo struct {
	name  string
	entry *Entry // nil for synthesized directories
	isDir bool
}

func nodeInfo(node *Node, name string) *fileInfo {
	return &fileInfo{name: name, entry: node.Entry(), isDir: node.IsDir()}
}

func (fi *fileInfo) Name() string { return fi.name }

func (fi *fileInfo) Size() int64 {
	if fi.entry == nil || fi.isDir {
		return 0
	}
	return int64(fi.entry.UncompressedSize)
}

func (fi *fileInfo) Mode() fs.FileMode {
	if fi.isDir {
		return fs.ModeDir | 0o755
	}
	return 0o644
}

func (fi *fileInfo) ModTime() time.Time {
	if fi.entry == nil {
		return time.Time{}
	}
	return fi.entry.Modified
}

func (fi *fileInfo) IsDir() bool { return fi.isDir }
func (fi *fileInfo) Sys() any    { return fi.entry }

// openFile is an opened archive file.
type openFile struct {
	io.ReadCloser
	entry *Entry
	base  string
}

func (f *openFile) Stat() (fs.FileInfo, error) {
	return &fileInfo{name: f.base, entry: f.entry}, nil
}

// openDir implements fs.ReadDirFile for directories.
type openDir struct {
	fs     *archiveFS
	name   string
	node   *Node
	listed []fs.DirEntry
	offset int
}

func (d *openDir) Read(_ []byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.name, Err: fs.ErrInvalid}
}

func (d *openDir) Stat() (fs.FileInfo, error) {
	return nodeInfo(d.node, baseName(d.name)), nil
}

func (d *openDir) Close() error {
	return nil
}

func (d *openDir) ReadDir(n int) ([]fs.DirEntry, error) {
	if d.listed == nil {
		d.listed = dirEntries(d.node)
	}
	remaining := d.listed[d.offset:]
	if n <= 0 {
		d.offset = len(d.listed)
		return remaining, nil
	}
	if len(remaining) == 0 {
		return nil, io.EOF
	}
	if n > len(remaining) {
		n = len(remaining)
	}
	d.offset += n
	return remaining[:n], nil
}
