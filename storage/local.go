package storage

import (
	"audio-service/apperror"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// LocalStore keeps blobs on the local filesystem under a single root.
type LocalStore struct {
	root string
}

// NewLocalStore creates root if it is missing.
func NewLocalStore(root string) (*LocalStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("storage root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, apperror.Storage("Could not initialize storage location", err)
	}
	return &LocalStore{root: abs}, nil
}

func (s *LocalStore) Root() string {
	return s.root
}

func (s *LocalStore) Store(ctx context.Context, blob Blob, ownerID, audioID int64) (string, error) {
	if blob.Reader == nil || blob.Size == 0 {
		return "", apperror.Storage("Failed to store empty file", nil)
	}
	filename, err := SanitizeFilename(blob.Filename)
	if err != nil {
		return "", apperror.Storage("Original filename cannot be null or empty", err)
	}

	key := ObjectKey(ownerID, audioID, filename)
	target := filepath.Join(s.root, filepath.FromSlash(key))
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", apperror.Storage("Failed to store file", err)
	}

	// Write next to the target and rename, so a failed copy never leaves a
	// truncated blob at the key.
	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return "", apperror.Storage("Failed to store file", err)
	}
	tmpName := tmp.Name()
	n, copyErr := io.Copy(tmp, ctxReader{ctx: ctx, r: blob.Reader})
	closeErr := tmp.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		discard(tmpName)
		return "", apperror.Storage("Failed to store file", err)
	}
	if n == 0 {
		discard(tmpName)
		return "", apperror.Storage("Failed to store empty file", nil)
	}
	if err := os.Rename(tmpName, target); err != nil {
		discard(tmpName)
		return "", apperror.Storage("Failed to store file", err)
	}

	zerolog.Ctx(ctx).Debug().Str("storage_key", key).Int64("bytes", n).Msg("blob stored")
	return key, nil
}

func (s *LocalStore) Load(ctx context.Context, key string) (io.ReadCloser, error) {
	target, err := s.resolve(key)
	if err != nil {
		return nil, apperror.Storage("Could not read file: "+key, err)
	}
	f, err := os.Open(target)
	if err != nil {
		return nil, apperror.Storage("Could not read file: "+key, err)
	}
	info, err := f.Stat()
	if err != nil || info.IsDir() {
		_ = f.Close()
		if err == nil {
			err = fmt.Errorf("%s is a directory", key)
		}
		return nil, apperror.Storage("Could not read file: "+key, err)
	}
	return f, nil
}

func (s *LocalStore) Delete(ctx context.Context, key string) error {
	target, err := s.resolve(key)
	if err != nil {
		return apperror.Storage("Could not delete file: "+key, err)
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return apperror.Storage("Could not delete file: "+key, err)
	}
	// The per-audio directory only ever holds this blob; drop it when empty.
	if dir := filepath.Dir(target); dir != s.root {
		_ = os.Remove(dir)
	}
	zerolog.Ctx(ctx).Debug().Str("storage_key", key).Msg("blob deleted")
	return nil
}

// discard removes a temp file and its directory when nothing else lives there.
func discard(name string) {
	_ = os.Remove(name)
	_ = os.Remove(filepath.Dir(name))
}

func (s *LocalStore) resolve(key string) (string, error) {
	cleaned, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	target := filepath.Join(s.root, filepath.FromSlash(cleaned))
	rel, err := filepath.Rel(s.root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return target, nil
}
