package adapters

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// exerciseStorage checks the behaviour every StorageAdapter shares.
func exerciseStorage(t *testing.T, storage StorageAdapter) {
	t.Helper()
	ctx := context.Background()

	t.Run("should report no recording before the first save", func(t *testing.T) {
		_, err := storage.Load(ctx)
		require.ErrorIs(t, err, ErrNoRecording)
	})

	t.Run("should load what was saved", func(t *testing.T) {
		require.NoError(t, storage.Save(ctx, []byte("first")))
		data, err := storage.Load(ctx)
		require.NoError(t, err)
		require.Equal(t, []byte("first"), data)
	})

	t.Run("should replace on save", func(t *testing.T) {
		require.NoError(t, storage.Save(ctx, []byte("second")))
		data, err := storage.Load(ctx)
		require.NoError(t, err)
		require.Equal(t, []byte("second"), data)
	})

	t.Run("should clear", func(t *testing.T) {
		require.NoError(t, storage.Clear(ctx))
		_, err := storage.Load(ctx)
		require.ErrorIs(t, err, ErrNoRecording)
	})

	t.Run("should clear an empty location", func(t *testing.T) {
		require.NoError(t, storage.Clear(ctx))
	})

	require.NotEmpty(t, storage.Location())
}

func TestFileStorageAdapter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recording.crw")
	exerciseStorage(t, NewFileStorageAdapter(path))
}

func TestFileStorageAdapter_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	adapter := NewFileStorageAdapter(filepath.Join(dir, "recording.crw"))
	require.NoError(t, adapter.Save(context.Background(), []byte("data")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "recording.crw", entries[0].Name())
}

func TestFileStorageAdapter_SaveError(t *testing.T) {
	adapter := NewFileStorageAdapter("/invalid/path/recording.crw")
	require.Error(t, adapter.Save(context.Background(), []byte("data")))
}

func TestFileStorageAdapter_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	adapter := NewFileStorageAdapter(filepath.Join(t.TempDir(), "recording.crw"))
	require.ErrorIs(t, adapter.Save(ctx, []byte("data")), context.Canceled)
	_, err := adapter.Load(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestMemoryStorageAdapter(t *testing.T) {
	adapter := NewMemoryStorageAdapter()
	exerciseStorage(t, adapter)
	require.Equal(t, 2, adapter.Saves())
}

func TestMemoryStorageAdapter_CopiesData(t *testing.T) {
	ctx := context.Background()
	adapter := NewMemoryStorageAdapter()
	data := []byte("abc")
	require.NoError(t, adapter.Save(ctx, data))
	data[0] = 'x'

	loaded, err := adapter.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), loaded)

	t.Run("should keep an empty save distinct from no recording", func(t *testing.T) {
		require.NoError(t, adapter.Save(ctx, nil))
		loaded, err := adapter.Load(ctx)
		require.NoError(t, err)
		require.Empty(t, loaded)
	})
}

func TestNoOpStorageAdapter(t *testing.T) {
	ctx := context.Background()
	adapter := NewNoOpStorageAdapter()

	require.NoError(t, adapter.Save(ctx, []byte("data")))
	_, err := adapter.Load(ctx)
	require.ErrorIs(t, err, ErrNoRecording)
	require.NoError(t, adapter.Clear(ctx))
	require.Equal(t, "noop", adapter.Location())
}
