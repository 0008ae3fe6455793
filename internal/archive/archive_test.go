package archive

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkZip(t *testing.T, entries ...Document) []byte {
	t.Helper()
	w := NewWriter()
	for _, e := range entries {
		require.NoError(t, w.Add(e.Name, e.Content))
	}
	blob, err := w.Bytes()
	require.NoError(t, err)
	return blob
}

func TestOpenZipKeepsOrderAndFiltersDocuments(t *testing.T) {
	blob := mkZip(t,
		Document{Name: "b.pdf", Content: []byte("B")},
		Document{Name: "notes.txt", Content: []byte("x")},
		Document{Name: "sub/A.PDF", Content: []byte("A")},
		Document{Name: "__MACOSX/sub/._A.PDF", Content: []byte("fork")},
		Document{Name: "sub/._c.pdf", Content: []byte("fork")},
	)

	src, err := OpenZip(blob)
	require.NoError(t, err)
	assert.Len(t, src.Names(), 5)
	assert.Equal(t, []string{"b.pdf", "sub/A.PDF"}, DocumentNames(src))

	content, err := src.Read("sub/A.PDF")
	require.NoError(t, err)
	assert.Equal(t, "A", string(content))

	_, err = src.Read("missing.pdf")
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

func TestOpenZipRejectsGarbage(t *testing.T) {
	_, err := OpenZip([]byte("definitely not a zip"))
	assert.ErrorIs(t, err, ErrInvalidArchive)
}

func TestWriterMembershipAndSerialization(t *testing.T) {
	w := NewWriter()
	require.NoError(t, w.Add("x.pdf", []byte("1")))
	assert.True(t, w.Has("x.pdf"))
	assert.False(t, w.Has("y.pdf"))
	assert.ErrorIs(t, w.Add("x.pdf", []byte("2")), ErrDuplicateEntry)

	encoded, err := w.Base64()
	require.NoError(t, err)
	blob, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)

	src, err := OpenZip(blob)
	require.NoError(t, err)
	assert.Equal(t, []string{"x.pdf"}, src.Names())
	assert.Error(t, w.Add("z.pdf", nil))
}

func TestMemorySourceRenamesDuplicates(t *testing.T) {
	m := NewMemorySource(Document{Name: "a.pdf", Content: []byte("1")})
	assert.Equal(t, "a (2).pdf", m.Put("a.pdf", []byte("2")))
	assert.Equal(t, []string{"a.pdf", "a (2).pdf"}, m.Names())

	content, err := m.Read("a (2).pdf")
	require.NoError(t, err)
	assert.Equal(t, "2", string(content))
}
