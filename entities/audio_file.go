package entities

import (
	"audio-service/constant"
	"time"
)

type AudioFile struct {
	ID               int64                `json:"id" gorm:"primaryKey"`
	Title            string               `json:"title" gorm:"type:varchar(100);not null"`
	Description      *string              `json:"description" gorm:"type:varchar(1000)"`
	OriginalFilename string               `json:"original_filename" gorm:"type:varchar(255);not null"`
	ContentType      string               `json:"content_type" gorm:"type:varchar(100);not null"`
	FileSize         int64                `json:"file_size" gorm:"not null"`
	StorageKey       *string              `json:"storage_key" gorm:"type:varchar(500);uniqueIndex"`
	DurationSeconds  *int                 `json:"duration_seconds"`
	Status           constant.AudioStatus `json:"status" gorm:"type:varchar(20);not null;check:status IN ('UPLOADING', 'UPLOADED', 'FAILED')"`
	UploadedAt       time.Time            `json:"uploaded_at" gorm:"type:timestamptz;not null"`
	Language         string               `json:"language" gorm:"type:varchar(10);not null"`
	UserID           int64                `json:"user_id" gorm:"not null;index:idx_audio_files_user_uploaded"`

	// Owner is loaded eagerly on single-record reads for the ownership check.
	Owner *User `json:"-" gorm:"foreignKey:UserID"`
}

func (AudioFile) TableName() string {
	return "audio_files"
}

// OwnedBy reports whether username is the owner of the record. The owner
// must have been loaded.
func (a *AudioFile) OwnedBy(username string) bool {
	return a.Owner != nil && a.Owner.Username == username
}

func (a *AudioFile) Key() string {
	if a.StorageKey == nil {
		return ""
	}
	return *a.StorageKey
}
