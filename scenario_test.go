package parzip

import (
	"archive/zip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The raw parser tolerates whatever the central directory holds; the
// tree is where hostile archives are rejected.

func TestDuplicatePathArchive(t *testing.T) {
	t.Parallel()

	data := buildZip(t, "", []fileSpec{
		{name: "a/b", content: "first", method: zip.Deflate},
		{name: "a/b", content: "second", method: zip.Deflate},
	})

	a, err := NewArchive(data)
	require.NoError(t, err)
	require.Len(t, a.Entries(), 2, "both entries survive the parse")

	for i, want := range []string{"first", "second"} {
		content, err := readEntry(t, a, a.Entries()[i])
		require.NoError(t, err)
		assert.Equal(t, want, string(content))
	}

	_, err = a.Tree()
	require.ErrorIs(t, err, ErrDuplicatePath)
}

func TestPathEscapeArchive(t *testing.T) {
	t.Parallel()

	data := buildZip(t, "", []fileSpec{
		{name: "../etc/passwd", content: "root:x:0:0", method: zip.Store},
	})

	a, err := NewArchive(data)
	require.NoError(t, err)
	require.Len(t, a.Entries(), 1)
	assert.Equal(t, "../etc/passwd", a.Entries()[0].Path)

	_, err = a.Tree()
	require.ErrorIs(t, err, ErrInvalidName)

	// Extraction goes through the tree, so the escape never reaches the
	// filesystem.
	err = a.Extract(t.TempDir())
	require.ErrorIs(t, err, ErrInvalidName)
}
