package storage

import (
	"audio-service/apperror"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/rs/zerolog"
)

// MinioStore keeps blobs in a MinIO/S3 bucket using the same key layout as
// LocalStore.
type MinioStore struct {
	client *minio.Client
	bucket string
}

// NewMinioStore creates bucket if it does not exist yet.
func NewMinioStore(ctx context.Context, client *minio.Client, bucket string) (*MinioStore, error) {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, apperror.Storage("Could not initialize storage location", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, apperror.Storage("Could not initialize storage location", err)
		}
		zerolog.Ctx(ctx).Info().Str("bucket", bucket).Msg("created storage bucket")
	}
	return &MinioStore{client: client, bucket: bucket}, nil
}

func (s *MinioStore) Store(ctx context.Context, blob Blob, ownerID, audioID int64) (string, error) {
	if blob.Reader == nil || blob.Size == 0 {
		return "", apperror.Storage("Failed to store empty file", nil)
	}
	filename, err := SanitizeFilename(blob.Filename)
	if err != nil {
		return "", apperror.Storage("Original filename cannot be null or empty", err)
	}

	key := ObjectKey(ownerID, audioID, filename)
	info, err := s.client.PutObject(ctx, s.bucket, key, ctxReader{ctx: ctx, r: blob.Reader}, blob.Size, minio.PutObjectOptions{
		ContentType: blob.ContentType,
	})
	if err != nil {
		return "", apperror.Storage("Failed to store file", err)
	}
	if info.Size == 0 {
		_ = s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
		return "", apperror.Storage("Failed to store empty file", nil)
	}

	zerolog.Ctx(ctx).Debug().Str("storage_key", key).Int64("bytes", info.Size).Msg("blob stored")
	return key, nil
}

func (s *MinioStore) Load(ctx context.Context, key string) (io.ReadCloser, error) {
	cleaned, err := cleanKey(key)
	if err != nil {
		return nil, apperror.Storage("Could not read file: "+key, err)
	}
	obj, err := s.client.GetObject(ctx, s.bucket, cleaned, minio.GetObjectOptions{})
	if err != nil {
		return nil, apperror.Storage("Could not read file: "+key, err)
	}
	// GetObject is lazy; Stat surfaces a missing object.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, apperror.Storage("Could not read file: "+key, err)
	}
	return obj, nil
}

func (s *MinioStore) Delete(ctx context.Context, key string) error {
	cleaned, err := cleanKey(key)
	if err != nil {
		return apperror.Storage("Could not delete file: "+key, err)
	}
	err = s.client.RemoveObject(ctx, s.bucket, cleaned, minio.RemoveObjectOptions{})
	if err != nil && minio.ToErrorResponse(err).Code != "NoSuchKey" {
		return apperror.Storage(fmt.Sprintf("Could not delete file: %s", key), err)
	}
	zerolog.Ctx(ctx).Debug().Str("storage_key", key).Msg("blob deleted")
	return nil
}
