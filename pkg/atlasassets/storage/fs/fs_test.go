package fs_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlas-labs/atlas-assets/pkg/atlasassets"
	fsstorage "github.com/atlas-labs/atlas-assets/pkg/atlasassets/storage/fs"
)

func newBackend(t *testing.T) (*fsstorage.Backend, string) {
	t.Helper()
	dir := t.TempDir()
	backend, err := fsstorage.New(fsstorage.Config{BaseDir: dir})
	require.NoError(t, err)
	return backend, dir
}

func TestUploadCreatesNestedDirectories(t *testing.T) {
	ctx := context.Background()
	backend, dir := newBackend(t)

	err := backend.Upload(ctx, "invoice/42/doc.pdf", strings.NewReader("pdf"), atlasassets.UploadParams{})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "invoice", "42", "doc.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "pdf", string(data))
}

func TestUploadDownloadRoundTrip(t *testing.T) {
	ctx := context.Background()
	backend, _ := newBackend(t)

	require.NoError(t, backend.Upload(ctx, "a/b.txt", strings.NewReader("content"), atlasassets.UploadParams{}))

	rc, err := backend.Download(ctx, "a/b.txt")
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))
}

func TestPrivateVisibilityTightensPermissions(t *testing.T) {
	ctx := context.Background()
	backend, dir := newBackend(t)

	require.NoError(t, backend.Upload(ctx, "secret.txt", strings.NewReader("s"), atlasassets.UploadParams{
		Visibility: atlasassets.VisibilityPrivate,
	}))
	require.NoError(t, backend.Upload(ctx, "open.txt", strings.NewReader("o"), atlasassets.UploadParams{
		Visibility: atlasassets.VisibilityPublic,
	}))

	private, err := os.Stat(filepath.Join(dir, "secret.txt"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), private.Mode().Perm())

	public, err := os.Stat(filepath.Join(dir, "open.txt"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), public.Mode().Perm())
}

func TestExistsAndDelete(t *testing.T) {
	ctx := context.Background()
	backend, dir := newBackend(t)

	require.NoError(t, backend.Upload(ctx, "x/y/z.bin", strings.NewReader("b"), atlasassets.UploadParams{}))

	exists, err := backend.Exists(ctx, "x/y/z.bin")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, backend.Delete(ctx, "x/y/z.bin"))

	exists, err = backend.Exists(ctx, "x/y/z.bin")
	require.NoError(t, err)
	assert.False(t, exists)

	// Empty parent directories are swept up with the file.
	_, err = os.Stat(filepath.Join(dir, "x"))
	assert.True(t, os.IsNotExist(err))
}

func TestPathTraversalRejected(t *testing.T) {
	ctx := context.Background()
	backend, _ := newBackend(t)

	err := backend.Upload(ctx, "../escape.txt", strings.NewReader("x"), atlasassets.UploadParams{})
	assert.Error(t, err)

	_, err = backend.Download(ctx, "../../etc/passwd")
	assert.Error(t, err)
}

func TestTemporaryURLUnsupported(t *testing.T) {
	backend, _ := newBackend(t)

	_, err := backend.TemporaryURL(context.Background(), "k", time.Minute)
	assert.ErrorIs(t, err, atlasassets.ErrTemporaryURLUnsupported)
}
