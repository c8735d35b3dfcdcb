// SPDX-License-Identifier: MIT

package secrets

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	m := NewMemory()
	m.Set("cam-1", "hunter2")

	s, ok, err := m.Get(context.Background(), "cam-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "hunter2", s)

	_, ok, err = m.Get(context.Background(), "cam-2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDir(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "cam-1"), []byte("p@ss\n"), 0o600))

	d := NewDir(root)

	s, ok, err := d.Get(context.Background(), "cam-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "p@ss", s)

	_, ok, err = d.Get(context.Background(), "cam-2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDir_RejectsPathTraversal(t *testing.T) {
	d := NewDir(t.TempDir())
	for _, id := range []string{"", "../etc/passwd", "a/b", ".hidden"} {
		_, _, err := d.Get(context.Background(), id)
		assert.Error(t, err, "id %q", id)
	}
}
