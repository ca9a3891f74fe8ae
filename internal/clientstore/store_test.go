package clientstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndLoadRoundTrip(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.SaveKeys("alice", []byte("key-bytes")))
	got, err := s.LoadKeys("alice")
	require.NoError(t, err)
	assert.Equal(t, []byte("key-bytes"), got)
}

func TestLoadMissingClientReturnsNilNotError(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	got, err := s.LoadKeys("nobody")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestReadyRequiresBothArtifacts(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	ready, err := s.Ready("bob")
	require.NoError(t, err)
	assert.False(t, ready)

	require.NoError(t, s.SaveKeys("bob", []byte("k")))
	ready, err = s.Ready("bob")
	require.NoError(t, err)
	assert.False(t, ready, "keys alone must not be enough")

	require.NoError(t, s.SaveOneCiphertext("bob", []byte("c")))
	ready, err = s.Ready("bob")
	require.NoError(t, err)
	assert.True(t, ready)
}

func TestClientDirRejectsPathTraversal(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	err = s.SaveKeys("../escape", []byte("x"))
	assert.Error(t, err)

	err = s.SaveKeys("a/b", []byte("x"))
	assert.Error(t, err)

	err = s.SaveKeys("", []byte("x"))
	assert.Error(t, err)
}

func TestSaveOverwritesPreviousUpload(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.SaveKeys("carol", []byte("first")))
	require.NoError(t, s.SaveKeys("carol", []byte("second")))

	got, err := s.LoadKeys("carol")
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), got)
}
