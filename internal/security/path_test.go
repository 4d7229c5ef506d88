package security

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateFilePath(t *testing.T) {
	accepted := []string{
		"config/orderbridge.json",
		"/etc/orderbridge/config.json",
		"config/app..json",
		"./orderbridge.db",
	}
	for _, path := range accepted {
		assert.NoError(t, ValidateFilePath(path), path)
	}

	rejected := map[string]string{
		"":                    "empty",
		"../../../etc/passwd": "directory traversal",
		"config/../../secret": "directory traversal",
		`..\secret`:           "directory traversal",
		"config\x00.json":     "NUL",
	}
	for path, reason := range rejected {
		err := ValidateFilePath(path)
		require.ErrorIs(t, err, ErrUnsafePath, "%q", path)
		assert.Contains(t, err.Error(), reason)
	}
}

func TestValidateFilename(t *testing.T) {
	root := t.TempDir()

	path, err := ValidateFilename("media_1700000000000000000_deadbeef.jpg", root)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "media_1700000000000000000_deadbeef.jpg"), path)

	for _, name := range []string{"", ".", "..", "../etc/passwd", "..%2fetc", "sub/file.jpg", `sub\file.jpg`, "/etc/passwd", "a\x00.jpg"} {
		path, err := ValidateFilename(name, root)
		assert.ErrorIs(t, err, ErrUnsafePath, "%q", name)
		assert.Empty(t, path)
	}
}

func TestValidateFilename_RelativeRoot(t *testing.T) {
	path, err := ValidateFilename("a.jpg", "uploads/media")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(path))
	assert.Equal(t, "a.jpg", filepath.Base(path))
}
