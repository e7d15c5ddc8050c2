package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_SaveLoadList(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(filepath.Join(dir, "recordings"))
	require.NoError(t, err)

	path, err := s.Save("session_match1recording1.cfg", []byte("<matchrecording/>"))
	require.NoError(t, err)
	assert.FileExists(t, path)

	data, err := s.Load("session_match1recording1.cfg")
	require.NoError(t, err)
	assert.Equal(t, "<matchrecording/>", string(data))

	_, err = s.Save("session_match1recording2.cfg", []byte("x"))
	require.NoError(t, err)

	names, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"session_match1recording1.cfg", "session_match1recording2.cfg"}, names)
}

func TestFileStore_DirReportsRoot(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "recordings")
	s, err := NewFileStore(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, s.Dir())
}

func TestFileStore_RejectsPathTraversal(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = s.Save("../escape.cfg", []byte("x"))
	assert.Error(t, err)
	_, err = s.Save("", []byte("x"))
	assert.Error(t, err)
}

func TestMemStore_RoundTrip(t *testing.T) {
	s := NewMemStore()

	loc, err := s.Save("a.cfg", []byte("one"))
	require.NoError(t, err)
	assert.Equal(t, "mem://a.cfg", loc)

	data, err := s.Load("a.cfg")
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))

	_, err = s.Load("missing.cfg")
	assert.Error(t, err)
}
