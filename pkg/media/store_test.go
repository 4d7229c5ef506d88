package media

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"orderbridge/internal/constants"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var generatedName = regexp.MustCompile(`^media_\d+_[0-9a-f]{8}\.[a-z0-9.+-]+$`)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "media"), quietLogger())
	require.NoError(t, err)
	return store
}

func listFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestStore_SaveAndOpen(t *testing.T) {
	store := newTestStore(t)
	payload := bytes.Repeat([]byte{0xFF, 0xD8, 0x01}, 700)

	stored, err := store.Save(context.Background(), bytes.NewReader(payload), "image/jpeg", int64(len(payload)))
	require.NoError(t, err)

	assert.Regexp(t, generatedName, stored.Filename)
	assert.Equal(t, ".jpg", filepath.Ext(stored.Filename))
	assert.Equal(t, "/uploads/media/"+stored.Filename, stored.RelativePath)
	assert.Equal(t, "image/jpeg", stored.MimeType)
	assert.Equal(t, int64(len(payload)), stored.ByteSize)
	assert.False(t, stored.CreatedAt.IsZero())
	assert.Equal(t, []string{stored.Filename}, listFiles(t, store.Root()))

	served, err := store.Open(stored.Filename)
	require.NoError(t, err)
	defer served.File.Close()

	assert.Equal(t, "image/jpeg", served.ContentType)
	assert.Equal(t, int64(len(payload)), served.Size)

	got, err := io.ReadAll(served.File)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestStore_SaveUnknownSize(t *testing.T) {
	store := newTestStore(t)

	stored, err := store.Save(context.Background(), bytes.NewReader([]byte("voice note")), "audio/ogg; codecs=opus", -1)
	require.NoError(t, err)

	assert.Equal(t, "audio/ogg", stored.MimeType)
	assert.Equal(t, ".ogg", filepath.Ext(stored.Filename))
	assert.Equal(t, int64(10), stored.ByteSize)
}

func TestStore_SaveUnknownMimeUsesSubtype(t *testing.T) {
	store := newTestStore(t)

	stored, err := store.Save(context.Background(), bytes.NewReader([]byte("x")), "application/octet-stream", 1)
	require.NoError(t, err)
	assert.True(t, filepath.Ext(stored.Filename) == ".octet-stream", stored.Filename)

	stored, err = store.Save(context.Background(), bytes.NewReader([]byte("x")), "", 1)
	require.NoError(t, err)
	assert.Equal(t, constants.DefaultMimeType, stored.MimeType)
}

func TestStore_SaveTruncatedLeavesNothing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Save(context.Background(), bytes.NewReader([]byte("short")), "image/png", 100)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStorageWrite))
	assert.Empty(t, listFiles(t, store.Root()))
}

type failingReader struct {
	sent bool
}

func (f *failingReader) Read(p []byte) (int, error) {
	if !f.sent {
		f.sent = true
		return copy(p, "some bytes"), nil
	}
	return 0, errors.New("connection reset by peer")
}

func TestStore_SaveReaderErrorLeavesNothing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Save(context.Background(), &failingReader{}, "video/mp4", -1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStorageWrite))
	assert.Contains(t, err.Error(), "connection reset by peer")
	assert.Empty(t, listFiles(t, store.Root()))
}

func TestStore_SaveCancelledContext(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Save(ctx, bytes.NewReader([]byte("data")), "image/png", -1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, listFiles(t, store.Root()))
}

func TestStore_SaveMissingRoot(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, os.RemoveAll(store.Root()))

	_, err := store.Save(context.Background(), bytes.NewReader([]byte("data")), "image/png", 4)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStorageWrite))
}

func TestStore_FilenamesAreUnique(t *testing.T) {
	store := newTestStore(t)
	fixed := time.Unix(1700000000, 0)
	store.now = func() time.Time { return fixed }

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		stored, err := store.Save(context.Background(), bytes.NewReader([]byte{byte(i)}), "image/png", 1)
		require.NoError(t, err)
		assert.False(t, seen[stored.Filename], "duplicate filename %s", stored.Filename)
		seen[stored.Filename] = true
	}
	assert.Len(t, listFiles(t, store.Root()), 50)
}

func TestStore_OpenRejectsInvalidNames(t *testing.T) {
	store := newTestStore(t)

	for _, name := range []string{"", ".", "..", "../secret", "a/b.jpg", `a\b.jpg`, "/etc/passwd", ".tmp-123", "a\x00.jpg"} {
		_, err := store.Open(name)
		assert.True(t, errors.Is(err, ErrInvalidFilename), "name %q: %v", name, err)
	}
}

func TestStore_OpenMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Open("media_1_deadbeef.jpg")
	assert.True(t, errors.Is(err, ErrMediaNotFound))
}

func TestStore_OpenDirectoryIsNotFound(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, os.Mkdir(filepath.Join(store.Root(), "media_dir.jpg"), 0750))

	_, err := store.Open("media_dir.jpg")
	assert.True(t, errors.Is(err, ErrMediaNotFound))
}

// Serving a stored file yields a content type whose canonical extension is
// the one chosen when the file was written.
func TestStore_MimeRoundTrip(t *testing.T) {
	store := newTestStore(t)

	for mimeType, ext := range constants.MimeTypeToExtension {
		stored, err := store.Save(context.Background(), bytes.NewReader([]byte("x")), mimeType, 1)
		require.NoError(t, err, mimeType)

		served, err := store.Open(stored.Filename)
		require.NoError(t, err, mimeType)
		served.File.Close()

		assert.Equal(t, ext, constants.MimeTypeToExtension[served.ContentType], "mime %s served as %s", mimeType, served.ContentType)
	}
}

func TestNewStore_RootIsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0600))

	_, err := NewStore(path, quietLogger())
	assert.Error(t, err)
}
