package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_RequiresBaseDir(t *testing.T) {
	t.Parallel()

	_, err := New(Config{})
	require.Error(t, err)
}

func TestPutObject_WritesFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := New(Config{BaseDir: dir})
	require.NoError(t, err)

	uri, err := store.PutObject(context.Background(), "captures/job-1/shot.jpg", "image/jpeg", []byte("jpegdata"))
	require.NoError(t, err)
	require.Equal(t, "file://"+filepath.Join(dir, "captures", "job-1", "shot.jpg"), uri)

	data, err := os.ReadFile(filepath.Join(dir, "captures", "job-1", "shot.jpg"))
	require.NoError(t, err)
	require.Equal(t, []byte("jpegdata"), data)
}

func TestPutObject_RejectsTraversal(t *testing.T) {
	t.Parallel()

	store, err := New(Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	_, err = store.PutObject(context.Background(), "../escape.jpg", "image/jpeg", []byte("x"))
	require.Error(t, err)
}

func TestPutObject_RequiresPath(t *testing.T) {
	t.Parallel()

	store, err := New(Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	_, err = store.PutObject(context.Background(), "  ", "image/jpeg", []byte("x"))
	require.Error(t, err)
}
