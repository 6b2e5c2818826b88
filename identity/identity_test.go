package identity

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreatePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "client_id")

	first := New(path, nil).GetOrCreate()
	_, err := uuid.Parse(first)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, first, strings.TrimSpace(string(data)))

	// A fresh store, as after a reload, sees the same value.
	assert.Equal(t, first, New(path, nil).GetOrCreate())
}

func TestGetOrCreateStableWithinStore(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "client_id"), nil)
	assert.Equal(t, s.GetOrCreate(), s.GetOrCreate())
}

func TestGetOrCreateKeepsExistingValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client_id")
	require.NoError(t, os.WriteFile(path, []byte("k3j2h4g5\n"), 0o600))

	assert.Equal(t, "k3j2h4g5", New(path, nil).GetOrCreate())
}

func TestGetOrCreateReplacesEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client_id")
	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o600))

	id := New(path, nil).GetOrCreate()
	assert.NotEmpty(t, id)
	assert.Equal(t, id, New(path, nil).GetOrCreate())
}

func TestGetOrCreateFallsBackToMemory(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	// The parent of the id file is a regular file, so nothing can be persisted.
	s := New(filepath.Join(blocker, "client_id"), nil)
	id := s.GetOrCreate()
	assert.NotEmpty(t, id)
	assert.Equal(t, id, s.GetOrCreate())
}

func TestInMemoryStore(t *testing.T) {
	s := New("", nil)
	id := s.GetOrCreate()
	assert.NotEmpty(t, id)
	assert.Equal(t, id, s.GetOrCreate())
}
