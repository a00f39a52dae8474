package backup

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aleister1102/siteguardian/internal/common"
	"github.com/aleister1102/siteguardian/internal/config"
	"github.com/aleister1102/siteguardian/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := config.NewDefaultBackupConfig()
	cfg.Root = t.TempDir()
	store, err := NewStore(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func countObjects(t *testing.T, root string) int {
	t.Helper()
	count := 0
	err := filepath.WalkDir(filepath.Join(root, objectsDir), func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			count++
		}
		return nil
	})
	require.NoError(t, err)
	return count
}

func TestStore_PutGetRoundTrip(t *testing.T) {
	store := newTestStore(t)
	data := []byte("<html><body>hello</body></html>")
	hash := common.ContentHash(data)

	record, err := store.Put(hash, data)
	require.NoError(t, err)
	assert.Equal(t, hash, record.Hash)
	assert.Equal(t, int64(len(data)), record.Size)
	assert.False(t, record.Reused)
	assert.Equal(t, "objects/"+hash[0:2]+"/"+hash[2:4]+"/"+hash, record.Path)

	got, err := store.Get(hash)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.True(t, store.Exists(hash))
}

func TestStore_PutIdempotent(t *testing.T) {
	store := newTestStore(t)
	data := []byte("same bytes")
	hash := common.ContentHash(data)

	first, err := store.Put(hash, data)
	require.NoError(t, err)
	second, err := store.Put(hash, data)
	require.NoError(t, err)

	assert.True(t, second.Reused)
	assert.Equal(t, first.Path, second.Path)
	assert.Equal(t, 1, countObjects(t, store.Root()))
}

func TestStore_ConcurrentPutSameHash(t *testing.T) {
	store := newTestStore(t)
	data := []byte("contended content")
	hash := common.ContentHash(data)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Put(hash, data)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, countObjects(t, store.Root()))
	got, err := store.Get(hash)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	entries, err := os.ReadDir(filepath.Join(store.Root(), tmpDir))
	require.NoError(t, err)
	assert.Empty(t, entries, "no temp files are left behind")
}

func TestStore_GetMissing(t *testing.T) {
	store := newTestStore(t)
	hash := common.ContentHash([]byte("never stored"))

	_, err := store.Get(hash)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrNotFound))

	var storageErr *models.StorageError
	require.True(t, errors.As(err, &storageErr))
	assert.Equal(t, models.StorageNotFound, storageErr.Kind)
	assert.False(t, store.Exists(hash))
	assert.False(t, store.Exists("not-a-hash"))
}

func TestStore_PutRejectsMismatchedHash(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Put(common.ContentHash([]byte("a")), []byte("b"))
	var storageErr *models.StorageError
	require.True(t, errors.As(err, &storageErr))
	assert.Equal(t, models.StorageWriteFailed, storageErr.Kind)

	_, err = store.Put("../escape", []byte("b"))
	require.True(t, errors.As(err, &storageErr))
	assert.Equal(t, 0, countObjects(t, store.Root()))
}

func TestStore_DetectsCorruption(t *testing.T) {
	store := newTestStore(t)
	data := []byte("original")
	hash := common.ContentHash(data)
	_, err := store.Put(hash, data)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(store.objectPath(hash), []byte("tampered"), 0644))

	_, err = store.Get(hash)
	var storageErr *models.StorageError
	require.True(t, errors.As(err, &storageErr))
	assert.Equal(t, models.StorageCorrupt, storageErr.Kind)
}

func TestStore_ArchiveIsTransparent(t *testing.T) {
	store := newTestStore(t)
	data := []byte("line one\nline two\nline three\n")
	hash := common.ContentHash(data)
	_, err := store.Put(hash, data)
	require.NoError(t, err)

	archived, err := store.Archive(hash)
	require.NoError(t, err)
	assert.True(t, archived)

	archived, err = store.Archive(hash)
	require.NoError(t, err)
	assert.False(t, archived, "second archive is a no-op")

	assert.NoFileExists(t, store.objectPath(hash))
	assert.FileExists(t, store.archivePath(hash))

	record, err := store.Record(hash)
	require.NoError(t, err)
	assert.True(t, record.Compressed)

	got, err := store.Get(hash)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	// putting archived content again is still a no-op
	again, err := store.Put(hash, data)
	require.NoError(t, err)
	assert.True(t, again.Reused)
	assert.Equal(t, 1, countObjects(t, store.Root()))
}

func TestStore_Delete(t *testing.T) {
	store := newTestStore(t)
	data := []byte("short lived")
	hash := common.ContentHash(data)
	_, err := store.Put(hash, data)
	require.NoError(t, err)

	require.NoError(t, store.Delete(hash))
	assert.False(t, store.Exists(hash))
	require.NoError(t, store.Delete(hash), "deleting twice is fine")
}

func TestNewStore_RemovesStaleTempFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, tmpDir), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, tmpDir, "put-123"), []byte("partial"), 0644))

	cfg := config.NewDefaultBackupConfig()
	cfg.Root = root
	store, err := NewStore(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer store.Close()

	entries, err := os.ReadDir(filepath.Join(root, tmpDir))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestNewStore_RequiresRoot(t *testing.T) {
	_, err := NewStore(config.BackupConfig{}, zerolog.Nop())
	assert.Error(t, err)
}

func TestStore_CommitRunsRecordUnderLock(t *testing.T) {
	store := newTestStore(t)
	data := []byte("committed")
	hash := common.ContentHash(data)

	var seen *models.BackupRecord
	record, err := store.Commit(hash, data, func(stored *models.BackupRecord) error {
		seen = stored
		return nil
	})
	require.NoError(t, err)
	require.NotNil(t, seen)
	assert.Equal(t, record.Path, seen.Path)

	failure := errors.New("insert failed")
	_, err = store.Commit(hash, data, func(*models.BackupRecord) error { return failure })
	assert.ErrorIs(t, err, failure)
	assert.True(t, store.Exists(hash), "bytes stay when recording fails")
}

func TestStore_DeleteIfUnreferenced(t *testing.T) {
	store := newTestStore(t)
	data := []byte("maybe shared")
	hash := common.ContentHash(data)
	_, err := store.Put(hash, data)
	require.NoError(t, err)

	deleted, err := store.DeleteIfUnreferenced(hash, func() (int, error) { return 1, nil })
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.True(t, store.Exists(hash))

	_, err = store.DeleteIfUnreferenced(hash, func() (int, error) { return 0, errors.New("db locked") })
	assert.Error(t, err)
	assert.True(t, store.Exists(hash))

	deleted, err = store.DeleteIfUnreferenced(hash, func() (int, error) { return 0, nil })
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.False(t, store.Exists(hash))
}
