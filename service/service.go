package service

import (
	"audio-service/apperror"
	"audio-service/constant"
	"audio-service/dto"
	"audio-service/entities"
	"audio-service/repository"
	"audio-service/storage"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// UploadAudio is a validated upload on its way to storage.
type UploadAudio struct {
	Reader      io.Reader
	Filename    string
	ContentType string
	Size        int64
	Title       string
	Description string
	Language    string
}

type AudioService interface {
	StoreAudio(ctx context.Context, upload UploadAudio, username string) (*entities.AudioFile, error)
	GetAudioFileById(ctx context.Context, audioId int64, username string) (*entities.AudioFile, error)
	OpenAudioContent(ctx context.Context, audioId int64, username string) (*entities.AudioFile, io.ReadCloser, error)
	ListUserAudioFiles(ctx context.Context, username string) ([]dto.AudioDetails, error)
	DeleteAudio(ctx context.Context, audioId int64, username string) error
	RecordAnalysis(ctx context.Context, message dto.AudioAnalyzedMessage) error
	PurgeFailedUploads(ctx context.Context, olderThan time.Duration) (int, error)
}

// Publisher delivers events to the message broker.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

type audioService struct {
	repo      repository.AudioRepository
	blobs     storage.BlobStore
	publisher Publisher
	now       func() time.Time
}

// StoreAudio runs the two-phase upload: the row is inserted as UPLOADING,
// the blob is written, and the row is finalized as UPLOADED. When the blob
// write fails the row is committed as FAILED and a storage error returned.
//
// Only the blob write observes cancellation of ctx. The database work runs
// on a detached context so a disconnected client still leaves a FAILED row.
func (s *audioService) StoreAudio(ctx context.Context, upload UploadAudio, username string) (*entities.AudioFile, error) {
	var (
		audio    *entities.AudioFile
		storeErr error
	)
	dbCtx := context.WithoutCancel(ctx)
	err := s.repo.Transaction(dbCtx, func(txCtx context.Context) error {
		user, err := s.findUser(txCtx, username)
		if err != nil {
			return err
		}

		audio = &entities.AudioFile{
			Title:            upload.Title,
			Description:      optional(upload.Description),
			OriginalFilename: upload.Filename,
			ContentType:      upload.ContentType,
			FileSize:         upload.Size,
			Status:           constant.AudioStatusUploading,
			UploadedAt:       s.now().UTC(),
			Language:         upload.Language,
			UserID:           user.ID,
			Owner:            user,
		}
		if err := s.repo.InsertAudioFile(txCtx, audio); err != nil {
			return fmt.Errorf("insert audio file: %w", err)
		}
		logger := zerolog.Ctx(txCtx).With().Int64("audio_id", audio.ID).Int64("user_id", user.ID).Logger()
		logger.Info().Str("filename", upload.Filename).Int64("size", upload.Size).Msg("audio upload started")

		key, err := s.blobs.Store(ctx, storage.Blob{
			Reader:      upload.Reader,
			Filename:    upload.Filename,
			ContentType: upload.ContentType,
			Size:        upload.Size,
		}, user.ID, audio.ID)
		if err != nil {
			logger.Error().Err(err).Msg("failed to store audio blob")
			storeErr = apperror.Storage("Failed to store audio file", err)
			audio.Status = constant.AudioStatusFailed
			if updateErr := s.repo.UpdateAudioFile(txCtx, audio); updateErr != nil {
				return errors.Join(storeErr, fmt.Errorf("mark audio file failed: %w", updateErr))
			}
			// Commit the FAILED row; the error is surfaced after commit.
			return nil
		}

		audio.StorageKey = &key
		audio.Status = constant.AudioStatusUploaded
		if err := s.repo.UpdateAudioFile(txCtx, audio); err != nil {
			return fmt.Errorf("finalize audio file: %w", err)
		}
		logger.Info().Str("storage_key", key).Msg("audio uploaded")
		return nil
	})
	if err != nil {
		// The row never committed, so a blob written for it would be a leak.
		if audio != nil && audio.Key() != "" {
			if delErr := s.blobs.Delete(dbCtx, audio.Key()); delErr != nil {
				zerolog.Ctx(dbCtx).Error().Err(delErr).Str("storage_key", audio.Key()).Msg("failed to remove orphaned blob")
			}
		}
		return nil, err
	}
	if storeErr != nil {
		return nil, storeErr
	}

	s.publishUploaded(dbCtx, audio)
	return audio, nil
}

func (s *audioService) GetAudioFileById(ctx context.Context, audioId int64, username string) (*entities.AudioFile, error) {
	audio, err := s.repo.FindAudioFileById(ctx, audioId)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.NotFound("Audio file not found")
		}
		return nil, fmt.Errorf("find audio file: %w", err)
	}

	if !audio.OwnedBy(username) {
		zerolog.Ctx(ctx).Warn().Int64("audio_id", audioId).Str("username", username).Msg("audio access denied")
		return nil, apperror.PermissionDenied("You don't have permission to access this file")
	}

	return audio, nil
}

// OpenAudioContent returns the record and a reader over its blob. The caller
// closes the reader.
func (s *audioService) OpenAudioContent(ctx context.Context, audioId int64, username string) (*entities.AudioFile, io.ReadCloser, error) {
	audio, err := s.GetAudioFileById(ctx, audioId, username)
	if err != nil {
		return nil, nil, err
	}
	if audio.Status != constant.AudioStatusUploaded || audio.Key() == "" {
		return nil, nil, apperror.NotFound("Audio content not available")
	}

	rc, err := s.blobs.Load(ctx, audio.Key())
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("audio_id", audioId).Msg("failed to load audio blob")
		return nil, nil, err
	}
	return audio, rc, nil
}

func (s *audioService) ListUserAudioFiles(ctx context.Context, username string) ([]dto.AudioDetails, error) {
	user, err := s.findUser(ctx, username)
	if err != nil {
		return nil, err
	}

	files, err := s.repo.FindAudioFilesByUserOrderedByUploadedAtDesc(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("list audio files: %w", err)
	}

	details := make([]dto.AudioDetails, 0, len(files))
	for _, f := range files {
		details = append(details, dto.NewAudioDetails(f))
	}
	return details, nil
}

// DeleteAudio removes the blob and then the row in one transaction. A blob
// deletion failure leaves the row in place so the caller can retry.
func (s *audioService) DeleteAudio(ctx context.Context, audioId int64, username string) error {
	return s.repo.Transaction(ctx, func(ctx context.Context) error {
		audio, err := s.GetAudioFileById(ctx, audioId, username)
		if err != nil {
			return err
		}

		if key := audio.Key(); key != "" {
			if err := s.blobs.Delete(ctx, key); err != nil {
				zerolog.Ctx(ctx).Error().Err(err).Str("storage_key", key).Msg("failed to delete audio blob")
				return err
			}
		}

		if err := s.repo.DeleteAudioFile(ctx, audio); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperror.NotFound("Audio file not found")
			}
			return fmt.Errorf("delete audio file: %w", err)
		}

		zerolog.Ctx(ctx).Info().Int64("audio_id", audioId).Str("storage_key", audio.Key()).Msg("audio deleted")
		return nil
	})
}

func (s *audioService) RecordAnalysis(ctx context.Context, message dto.AudioAnalyzedMessage) error {
	if message.DurationSeconds < 0 {
		return apperror.InvalidRequest("Duration cannot be negative")
	}
	if err := s.repo.UpdateAudioDuration(ctx, message.AudioId, message.DurationSeconds); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.NotFound("Audio file not found")
		}
		return fmt.Errorf("update audio duration: %w", err)
	}
	zerolog.Ctx(ctx).Info().Int64("audio_id", message.AudioId).Int("duration_seconds", message.DurationSeconds).Msg("audio analysis recorded")
	return nil
}

// PurgeFailedUploads deletes FAILED and abandoned UPLOADING rows older than
// olderThan together with any blob they reference.
func (s *audioService) PurgeFailedUploads(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := s.now().UTC().Add(-olderThan)
	stale, err := s.repo.FindStaleAudioFiles(ctx, []constant.AudioStatus{constant.AudioStatusFailed, constant.AudioStatusUploading}, cutoff)
	if err != nil {
		return 0, fmt.Errorf("find stale audio files: %w", err)
	}

	var (
		purged int
		errs   []error
	)
	for _, audio := range stale {
		err := s.repo.Transaction(ctx, func(ctx context.Context) error {
			if key := audio.Key(); key != "" {
				if err := s.blobs.Delete(ctx, key); err != nil {
					return err
				}
			}
			return s.repo.DeleteAudioFile(ctx, audio)
		})
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Int64("audio_id", audio.ID).Msg("failed to purge audio file")
			errs = append(errs, fmt.Errorf("purge audio %d: %w", audio.ID, err))
			continue
		}
		purged++
	}

	zerolog.Ctx(ctx).Info().Int("purged", purged).Time("cutoff", cutoff).Msg("stale uploads purged")
	return purged, errors.Join(errs...)
}

func (s *audioService) findUser(ctx context.Context, username string) (*entities.User, error) {
	user, err := s.repo.FindUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.NotFound("User not found")
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

func (s *audioService) publishUploaded(ctx context.Context, audio *entities.AudioFile) {
	if s.publisher == nil {
		return
	}
	message := dto.AudioUploadedMessage{
		EventId:     uuid.New(),
		AudioId:     audio.ID,
		OwnerId:     audio.UserID,
		StorageKey:  audio.Key(),
		ContentType: audio.ContentType,
		FileSize:    audio.FileSize,
		Language:    audio.Language,
		UploadedAt:  audio.UploadedAt,
	}
	if err := s.publisher.Publish(ctx, constant.RoutingKeyAudioUploaded, message); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("audio_id", audio.ID).Msg("failed to publish upload event")
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func NewAudioService(repo repository.AudioRepository, blobs storage.BlobStore, publisher Publisher) AudioService {
	return &audioService{
		repo:      repo,
		blobs:     blobs,
		publisher: publisher,
		now:       time.Now,
	}
}
