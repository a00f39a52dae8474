package backup

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aleister1102/siteguardian/internal/common"
	"github.com/aleister1102/siteguardian/internal/config"
	"github.com/aleister1102/siteguardian/internal/models"

	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog"
)

const (
	objectsDir       = "objects"
	tmpDir           = "tmp"
	archiveExtension = ".zst"
)

// Store is a content-addressed, deduplicated store of snapshot bytes.
// Objects live at objects/<h[0:2]>/<h[2:4]>/<hash>, or <hash>.zst once archived.
type Store struct {
	root         string
	verifyOnRead bool
	logger       zerolog.Logger
	locks        *common.KeyedMutex
	encoder      *zstd.Encoder
	decoder      *zstd.Decoder
}

// NewStore opens or creates a store rooted at cfg.Root.
func NewStore(cfg config.BackupConfig, logger zerolog.Logger) (*Store, error) {
	if strings.TrimSpace(cfg.Root) == "" {
		return nil, common.NewValidationError("root", cfg.Root, "backup root is required")
	}

	for _, dir := range []string{cfg.Root, filepath.Join(cfg.Root, objectsDir), filepath.Join(cfg.Root, tmpDir)} {
		if err := common.EnsureDir(dir); err != nil {
			return nil, err
		}
	}

	// Check for write permissions.
	probe, err := os.CreateTemp(filepath.Join(cfg.Root, tmpDir), ".writable-*")
	if err != nil {
		return nil, common.WrapError(err, "backup root is not writable")
	}
	probe.Close()
	_ = os.Remove(probe.Name())

	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, common.WrapError(err, "failed to create zstd encoder")
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, common.WrapError(err, "failed to create zstd decoder")
	}

	s := &Store{
		root:         cfg.Root,
		verifyOnRead: cfg.VerifyHashOnRead,
		logger:       logger.With().Str("component", "BackupStore").Logger(),
		locks:        common.NewKeyedMutex(),
		encoder:      encoder,
		decoder:      decoder,
	}
	s.cleanupTemp()
	return s, nil
}

// Close releases the compression codecs.
func (s *Store) Close() error {
	s.decoder.Close()
	return s.encoder.Close()
}

// Root returns the store's base directory.
func (s *Store) Root() string {
	return s.root
}

// Put stores data under hash. Storing a hash that already exists returns the
// existing record without rewriting it. Bytes become visible under their final
// name only through an atomic rename of a fully written temp file.
func (s *Store) Put(hash string, data []byte) (*models.BackupRecord, error) {
	return s.Commit(hash, data, nil)
}

// Commit stores data like Put and then runs record while the hash is still
// locked. DeleteIfUnreferenced takes the same lock, so a reference written by
// record is always visible to it. An error from record is returned as is; the
// stored bytes stay for the next attempt.
func (s *Store) Commit(hash string, data []byte, record func(*models.BackupRecord) error) (*models.BackupRecord, error) {
	if !common.IsContentHash(hash) {
		return nil, &models.StorageError{Kind: models.StorageWriteFailed, Hash: hash, Err: fmt.Errorf("malformed content hash")}
	}
	if actual := common.ContentHash(data); actual != hash {
		return nil, &models.StorageError{Kind: models.StorageWriteFailed, Hash: hash, Err: fmt.Errorf("content hashes to %s", actual)}
	}

	unlock := s.locks.Lock(hash)
	defer unlock()

	stored, err := s.putLocked(hash, data)
	if err != nil {
		return nil, err
	}
	if record != nil {
		if err := record(stored); err != nil {
			return nil, err
		}
	}
	return stored, nil
}

func (s *Store) putLocked(hash string, data []byte) (*models.BackupRecord, error) {
	if record, err := s.stat(hash); err == nil {
		record.Reused = true
		return record, nil
	}

	finalPath := s.objectPath(hash)
	if err := s.writeAtomic(finalPath, data); err != nil {
		s.logger.Error().Err(err).Str("hash", hash).Msg("Failed to write backup object")
		return nil, &models.StorageError{Kind: models.StorageWriteFailed, Hash: hash, Err: err}
	}

	s.logger.Debug().Str("hash", hash).Int("size", len(data)).Msg("Stored backup object")
	return &models.BackupRecord{
		Hash:      hash,
		Size:      int64(len(data)),
		Path:      s.relPath(finalPath),
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Get returns the bytes stored under hash.
func (s *Store) Get(hash string) ([]byte, error) {
	if !common.IsContentHash(hash) {
		return nil, &models.StorageError{Kind: models.StorageNotFound, Hash: hash}
	}

	data, err := os.ReadFile(s.objectPath(hash))
	if os.IsNotExist(err) {
		compressed, zerr := os.ReadFile(s.archivePath(hash))
		if os.IsNotExist(zerr) {
			return nil, &models.StorageError{Kind: models.StorageNotFound, Hash: hash}
		}
		if zerr != nil {
			return nil, common.WrapErrorf(zerr, "failed to read archived object %s", hash)
		}
		data, err = s.decoder.DecodeAll(compressed, nil)
		if err != nil {
			return nil, &models.StorageError{Kind: models.StorageCorrupt, Hash: hash, Err: err}
		}
	} else if err != nil {
		return nil, common.WrapErrorf(err, "failed to read object %s", hash)
	}

	if s.verifyOnRead {
		if actual := common.ContentHash(data); actual != hash {
			s.logger.Error().Str("hash", hash).Str("actual", actual).Msg("Backup object failed hash verification")
			return nil, &models.StorageError{Kind: models.StorageCorrupt, Hash: hash, Err: fmt.Errorf("content hashes to %s", actual)}
		}
	}
	return data, nil
}

// Exists reports whether hash is stored in either form. It never fails.
func (s *Store) Exists(hash string) bool {
	if !common.IsContentHash(hash) {
		return false
	}
	_, err := s.stat(hash)
	return err == nil
}

// Record returns metadata for a stored object.
func (s *Store) Record(hash string) (*models.BackupRecord, error) {
	if !common.IsContentHash(hash) {
		return nil, &models.StorageError{Kind: models.StorageNotFound, Hash: hash}
	}
	return s.stat(hash)
}

// Archive compresses a stored object in place. Archiving an archived object
// is a no-op.
func (s *Store) Archive(hash string) (bool, error) {
	if !common.IsContentHash(hash) {
		return false, &models.StorageError{Kind: models.StorageNotFound, Hash: hash}
	}

	unlock := s.locks.Lock(hash)
	defer unlock()

	plainPath := s.objectPath(hash)
	data, err := os.ReadFile(plainPath)
	if os.IsNotExist(err) {
		if _, zerr := os.Stat(s.archivePath(hash)); zerr == nil {
			return false, nil
		}
		return false, &models.StorageError{Kind: models.StorageNotFound, Hash: hash}
	}
	if err != nil {
		return false, common.WrapErrorf(err, "failed to read object %s", hash)
	}

	compressed := s.encoder.EncodeAll(data, make([]byte, 0, len(data)/2))
	if err := s.writeAtomic(s.archivePath(hash), compressed); err != nil {
		return false, &models.StorageError{Kind: models.StorageWriteFailed, Hash: hash, Err: err}
	}
	if err := os.Remove(plainPath); err != nil && !os.IsNotExist(err) {
		return false, common.WrapErrorf(err, "failed to remove plain object %s", hash)
	}

	s.logger.Debug().Str("hash", hash).Int("size", len(data)).Int("compressed_size", len(compressed)).Msg("Archived backup object")
	return true, nil
}

// Delete removes both forms of an object. Missing objects are not an error.
func (s *Store) Delete(hash string) error {
	if !common.IsContentHash(hash) {
		return nil
	}

	unlock := s.locks.Lock(hash)
	defer unlock()
	return s.deleteLocked(hash)
}

// DeleteIfUnreferenced removes the object only when refs reports no remaining
// references. refs runs under the hash lock, serialized with Commit.
func (s *Store) DeleteIfUnreferenced(hash string, refs func() (int, error)) (bool, error) {
	if !common.IsContentHash(hash) {
		return false, nil
	}

	unlock := s.locks.Lock(hash)
	defer unlock()

	count, err := refs()
	if err != nil {
		return false, common.WrapErrorf(err, "failed to count references to %s", hash)
	}
	if count > 0 {
		return false, nil
	}
	if err := s.deleteLocked(hash); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) deleteLocked(hash string) error {
	var ec common.ErrorCollector
	for _, path := range []string{s.objectPath(hash), s.archivePath(hash)} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			ec.Add(err)
		}
	}
	return ec.Error()
}

func (s *Store) stat(hash string) (*models.BackupRecord, error) {
	if info, err := os.Stat(s.objectPath(hash)); err == nil {
		return &models.BackupRecord{
			Hash:      hash,
			Size:      info.Size(),
			Path:      s.relPath(s.objectPath(hash)),
			CreatedAt: info.ModTime().UTC(),
		}, nil
	}
	if info, err := os.Stat(s.archivePath(hash)); err == nil {
		return &models.BackupRecord{
			Hash:       hash,
			Size:       info.Size(),
			Path:       s.relPath(s.archivePath(hash)),
			Compressed: true,
			CreatedAt:  info.ModTime().UTC(),
		}, nil
	}
	return nil, &models.StorageError{Kind: models.StorageNotFound, Hash: hash}
}

// writeAtomic writes data to a temp file in the store and renames it over path.
func (s *Store) writeAtomic(path string, data []byte) error {
	if err := common.EnsureParentDir(path); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Join(s.root, tmpDir), "put-*")
	if err != nil {
		return common.WrapError(err, "failed to create temp file")
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.ReadFrom(bytes.NewReader(data)); err != nil {
		tmp.Close()
		return common.WrapError(err, "failed to write temp file")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return common.WrapError(err, "failed to sync temp file")
	}
	if err := tmp.Close(); err != nil {
		return common.WrapError(err, "failed to close temp file")
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return common.WrapError(err, "failed to set object permissions")
	}
	if err := os.Rename(tmpName, path); err != nil {
		return common.WrapError(err, "failed to promote temp file")
	}
	committed = true
	syncDir(filepath.Dir(path))
	return nil
}

// cleanupTemp removes temp files left behind by an interrupted write.
func (s *Store) cleanupTemp() {
	entries, err := os.ReadDir(filepath.Join(s.root, tmpDir))
	if err != nil {
		return
	}
	removed := 0
	for _, entry := range entries {
		if err := os.Remove(filepath.Join(s.root, tmpDir, entry.Name())); err == nil {
			removed++
		}
	}
	if removed > 0 {
		s.logger.Info().Int("removed", removed).Msg("Removed stale temp files from backup store")
	}
}

func (s *Store) objectPath(hash string) string {
	return filepath.Join(s.root, objectsDir, hash[0:2], hash[2:4], hash)
}

func (s *Store) archivePath(hash string) string {
	return s.objectPath(hash) + archiveExtension
}

func (s *Store) relPath(path string) string {
	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

func syncDir(dir string) {
	f, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = f.Sync()
	f.Close()
}
