package vault

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateNote(t *testing.T) {
	v := New(t.TempDir())

	out, err := v.CreateNote("Example Domain.md", "[Example](https://example.com)")
	require.NoError(t, err)
	assert.Equal(t, "", out)

	got, err := v.ReadNote("Example Domain.md")
	require.NoError(t, err)
	assert.Equal(t, "[Example](https://example.com)", got)
}

func TestCreateNoteNested(t *testing.T) {
	dir := t.TempDir()
	v := New(dir)

	_, err := v.CreateNote("clips/2024/note.md", "body")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "clips", "2024", "note.md"))
	require.NoError(t, err)
	assert.Equal(t, "body", string(data))
}

func TestCreateNoteExisting(t *testing.T) {
	v := New(t.TempDir())
	_, err := v.CreateNote("a.md", "first")
	require.NoError(t, err)

	_, err = v.CreateNote("a.md", "second")
	assert.ErrorIs(t, err, ErrExists)

	got, err := v.ReadNote("a.md")
	require.NoError(t, err)
	assert.Equal(t, "first", got)
}

func TestPathRejectsEscapes(t *testing.T) {
	v := New(t.TempDir())
	for _, name := range []string{"../evil.md", "a/../../evil.md", "/etc/passwd"} {
		_, err := v.Path(name)
		assert.ErrorIs(t, err, ErrOutside, name)
	}

	_, err := v.Path("  ")
	assert.Error(t, err)
}
