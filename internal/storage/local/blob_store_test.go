package local

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPutObjectWritesFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := New(Config{BaseDir: dir})
	require.NoError(t, err)

	uri, err := store.PutObject(context.Background(), "documents/24CV428648/Complaint.pdf", "application/pdf", bytes.NewReader([]byte("pdf")))
	require.NoError(t, err)
	require.Contains(t, uri, "file://")

	content, err := os.ReadFile(filepath.Join(dir, "documents", "24CV428648", "Complaint.pdf"))
	require.NoError(t, err)
	require.Equal(t, []byte("pdf"), content)
}

func TestPutObjectRejectsTraversal(t *testing.T) {
	t.Parallel()

	store, err := New(Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	_, err = store.PutObject(context.Background(), "../outside.pdf", "", bytes.NewReader(nil))
	require.Error(t, err)
}

func TestNewRequiresBaseDir(t *testing.T) {
	t.Parallel()

	_, err := New(Config{})
	require.Error(t, err)
}
