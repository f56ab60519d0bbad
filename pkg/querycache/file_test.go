package querycache

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qerrors "github.com/otherjamesbrown/qidlink/pkg/errors"
	"github.com/otherjamesbrown/qidlink/pkg/linking"
)

func TestFileStore_MissingFileIsEmpty(t *testing.T) {
	store, err := OpenFileStore(filepath.Join(t.TempDir(), "cache.json"))
	require.NoError(t, err)
	defer store.Close()

	entries, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFileStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "cache.json")

	store, err := OpenFileStore(path)
	require.NoError(t, err)

	c := New(store, nil)
	require.NoError(t, c.Load(ctx))
	c.Put("Basilica di San Pietro", []linking.SearchResult{
		{Identifier: "Q12512", Label: "St. Peter's Basilica", Description: "church in Vatican City", Origin: linking.OriginEntitySearch},
	})
	c.Put("教堂", nil)
	require.NoError(t, c.Close(ctx))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "教堂", "non-ASCII keys are written unescaped")

	reopened, err := OpenFileStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	entries, err := reopened.Load(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Q12512", entries["Basilica di San Pietro"][0].Identifier)
	assert.Empty(t, entries["教堂"])
}

func TestFileStore_TruncatedFileIsCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"Rome": [{"id": "Q220", "label": "Ro`), 0o644))

	store, err := OpenFileStore(path)
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Load(context.Background())
	require.Error(t, err)
	assert.True(t, qerrors.IsCacheCorrupt(err))
}

func TestCache_CorruptFileYieldsEmptyCacheAndStillSaves(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte("not json at all"), 0o644))

	store, err := OpenFileStore(path)
	require.NoError(t, err)

	c := New(store, nil)
	require.NoError(t, c.Load(ctx))
	assert.Equal(t, 0, c.Stats().Entries)

	c.Put("Rome", nil)
	require.NoError(t, c.Close(ctx))

	reopened, err := OpenFileStore(path)
	require.NoError(t, err)
	defer reopened.Close()
	entries, err := reopened.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFileStore_EmptyFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o644))

	store, err := OpenFileStore(path)
	require.NoError(t, err)
	defer store.Close()

	entries, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFileStore_SecondWriterIsLockedOut(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")

	first, err := OpenFileStore(path)
	require.NoError(t, err)

	_, err = OpenFileStore(path)
	require.Error(t, err)
	assert.True(t, qerrors.IsLocked(err))

	require.NoError(t, first.Close())

	second, err := OpenFileStore(path)
	require.NoError(t, err)
	require.NoError(t, second.Close())
}
