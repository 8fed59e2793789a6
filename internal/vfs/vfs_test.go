package vfs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteReadRoundTrip(t *testing.T) {
	t.Parallel()

	m := New()
	require.NoError(t, m.Write("mem:/diff/original.go", []byte("const x = 1")))

	data, err := m.Read("mem:/diff/original.go")
	require.NoError(t, err)
	require.Equal(t, "const x = 1", string(data))

	require.True(t, m.Exists("mem:/diff/original.go"))
	require.False(t, m.Exists("mem:/diff/other.go"))
}

func TestIsMemPath(t *testing.T) {
	t.Parallel()

	require.True(t, IsMemPath("mem:/a/b"))
	require.False(t, IsMemPath("/tmp/a/b"))
}

func TestLastWriterWins(t *testing.T) {
	t.Parallel()

	m := New()
	require.NoError(t, m.Write("mem:/f", []byte("one")))
	require.NoError(t, m.Write("mem:/f", []byte("two")))

	data, err := m.Read("mem:/f")
	require.NoError(t, err)
	require.Equal(t, "two", string(data))
}

func TestRename(t *testing.T) {
	t.Parallel()

	m := New()
	require.NoError(t, m.Write("mem:/a", []byte("x")))
	require.NoError(t, m.Rename("mem:/a", "mem:/b"))

	require.False(t, m.Exists("mem:/a"))
	data, err := m.Read("mem:/b")
	require.NoError(t, err)
	require.Equal(t, "x", string(data))
}

func TestDeleteAll(t *testing.T) {
	t.Parallel()

	m := New()
	for _, p := range []string{"mem:/a", "mem:/sub/b", "mem:/sub/c"} {
		require.NoError(t, m.Write(p, []byte("x")))
	}
	require.NoError(t, m.DeleteAll())

	require.Empty(t, m.Paths())
	require.False(t, m.Exists("mem:/a"))
	require.False(t, m.Exists("mem:/sub/b"))

	// Idempotent.
	require.NoError(t, m.DeleteAll())
}

func TestRemoveMissingIsNoError(t *testing.T) {
	t.Parallel()

	m := New()
	require.NoError(t, m.Remove("mem:/never"))
}
