// Package storage keeps raw audio bytes under deterministic keys of the
// form "{ownerId}/{audioId}/{filename}". It knows nothing about metadata.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	ErrInvalidFilename = errors.New("invalid filename")
	ErrInvalidKey      = errors.New("invalid storage key")
)

var invalidCharsRegex = regexp.MustCompile(`[<>:"|?*\x00-\x1F]`)

// Blob is an incoming byte stream together with what the client declared
// about it.
type Blob struct {
	Reader      io.Reader
	Filename    string
	ContentType string
	Size        int64
}

type BlobStore interface {
	// Store writes the blob, replacing any existing one at the same key, and
	// returns the key relative to the store root.
	Store(ctx context.Context, blob Blob, ownerID, audioID int64) (string, error)
	Load(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes the blob. A missing blob is not an error.
	Delete(ctx context.Context, key string) error
}

// SanitizeFilename drops any directory part of name, including traversal
// segments and leading slashes, and replaces characters that are not legal
// in file names. The extension is kept.
func SanitizeFilename(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", ErrInvalidFilename
	}

	cleaned := path.Base(path.Clean("/" + strings.ReplaceAll(name, "\\", "/")))
	if cleaned == "/" || cleaned == "." || cleaned == ".." || strings.TrimSpace(cleaned) == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidFilename, name)
	}
	cleaned = invalidCharsRegex.ReplaceAllString(cleaned, "_")

	base, ext := cleaned, ""
	if i := strings.LastIndex(cleaned, "."); i >= 0 {
		base, ext = cleaned[:i], cleaned[i+1:]
	}
	if ext == "" {
		return base, nil
	}
	return base + "." + ext, nil
}

// ObjectKey builds the storage key for a sanitized filename.
func ObjectKey(ownerID, audioID int64, filename string) string {
	return fmt.Sprintf("%d/%d/%s", ownerID, audioID, filename)
}

// cleanKey normalizes key and rejects keys that would resolve outside the
// store root.
func cleanKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", ErrInvalidKey
	}
	key = strings.ReplaceAll(key, "\\", "/")
	if path.IsAbs(key) || filepath.IsAbs(key) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return cleaned, nil
}

// ctxReader fails reads once ctx is done, so an abandoned upload surfaces as
// an I/O error on the copy.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
