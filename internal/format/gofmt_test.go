package format

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat_NonGoFilesAreNoOp(t *testing.T) {
	f := NewGoFormatter()
	f.Binary = "definitely-not-a-binary"

	// Never invokes the binary for non-Go paths.
	assert.NoError(t, f.Format("styles.css"))
	assert.NoError(t, f.Format("index.html"))
	assert.NoError(t, f.Format("app.js"))
}

func TestFormat_MissingBinaryFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.go")
	require.NoError(t, os.WriteFile(path, []byte("package main\n"), 0644))

	f := NewGoFormatter()
	f.Binary = "definitely-not-a-binary"
	assert.Error(t, f.Format(path))
}
