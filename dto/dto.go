package dto

import (
	"audio-service/entities"
	"time"

	"github.com/google/uuid"
)

type AudioUploadRequest struct {
	Title       string `form:"title" binding:"required,max=100"`
	Description string `form:"description" binding:"max=1000"`
	Language    string `form:"language" binding:"required,max=10"`
}

type AudioUploadResponse struct {
	Id      int64  `json:"id"`
	Title   string `json:"title"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type AudioDetails struct {
	Id               int64     `json:"id"`
	Title            string    `json:"title"`
	Description      *string   `json:"description"`
	OriginalFilename string    `json:"originalFilename"`
	ContentType      string    `json:"contentType"`
	FileSize         int64     `json:"fileSize"`
	DurationSeconds  *int      `json:"durationSeconds"`
	Status           string    `json:"status"`
	UploadedAt       time.Time `json:"uploadedAt"`
	Language         string    `json:"language"`
}

func NewAudioDetails(a *entities.AudioFile) AudioDetails {
	return AudioDetails{
		Id:               a.ID,
		Title:            a.Title,
		Description:      a.Description,
		OriginalFilename: a.OriginalFilename,
		ContentType:      a.ContentType,
		FileSize:         a.FileSize,
		DurationSeconds:  a.DurationSeconds,
		Status:           a.Status.String(),
		UploadedAt:       a.UploadedAt,
		Language:         a.Language,
	}
}

type ErrorResponse struct {
	Message string `json:"message"`
}

// AudioUploadedMessage announces a finalized upload to the transcription
// pipeline.
type AudioUploadedMessage struct {
	EventId     uuid.UUID `json:"eventId"`
	AudioId     int64     `json:"audioId"`
	OwnerId     int64     `json:"ownerId"`
	StorageKey  string    `json:"storageKey"`
	ContentType string    `json:"contentType"`
	FileSize    int64     `json:"fileSize"`
	Language    string    `json:"language"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

// AudioAnalyzedMessage carries what the downstream pipeline learned after
// decoding an upload.
type AudioAnalyzedMessage struct {
	AudioId         int64 `json:"audioId"`
	DurationSeconds int   `json:"durationSeconds"`
}
