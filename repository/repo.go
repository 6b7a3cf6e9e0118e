package repository

import (
	"audio-service/constant"
	"audio-service/entities"
	"context"
	"database/sql"
	"errors"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var ErrNotFound = errors.New("record not found")

type AudioRepository interface {
	Transaction(ctx context.Context, callback func(ctx context.Context) error, opts ...*sql.TxOptions) error
	GetDB() *gorm.DB

	FindUserByUsername(ctx context.Context, username string) (*entities.User, error)
	UserExistsByUsername(ctx context.Context, username string) (bool, error)
	UserExistsByEmail(ctx context.Context, email string) (bool, error)
	CreateUser(ctx context.Context, user *entities.User) error

	InsertAudioFile(ctx context.Context, audio *entities.AudioFile) error
	UpdateAudioFile(ctx context.Context, audio *entities.AudioFile) error
	UpdateAudioDuration(ctx context.Context, id int64, seconds int) error
	FindAudioFileById(ctx context.Context, id int64) (*entities.AudioFile, error)
	FindAudioFilesByUserOrderedByUploadedAtDesc(ctx context.Context, ownerId int64) ([]*entities.AudioFile, error)
	FindStaleAudioFiles(ctx context.Context, statuses []constant.AudioStatus, before time.Time) ([]*entities.AudioFile, error)
	DeleteAudioFile(ctx context.Context, audio *entities.AudioFile) error
}

type txKey struct{}

type repo struct {
	db *gorm.DB
}

func NewRepo(db *sql.DB, logLevel logger.LogLevel) (AudioRepository, error) {
	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db}),
		&gorm.Config{
			Logger: logger.Default.LogMode(logLevel),
		},
	)
	if err != nil {
		return nil, err
	}
	return &repo{
		db: gormDB,
	}, nil
}

func (r *repo) GetDB() *gorm.DB {
	return r.db
}

// conn returns the transaction bound to ctx, if any.
func (r *repo) conn(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return r.db.WithContext(ctx)
}

// Transaction runs callback inside a database transaction. Repository calls
// made with the context handed to callback join that transaction; the
// transaction commits when callback returns nil.
func (r *repo) Transaction(ctx context.Context, callback func(ctx context.Context) error, opts ...*sql.TxOptions) error {
	return r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		return callback(context.WithValue(ctx, txKey{}, tx))
	}, opts...)
}

func (r *repo) FindUserByUsername(ctx context.Context, username string) (*entities.User, error) {
	user := &entities.User{}
	err := r.conn(ctx).First(user, "username = ?", username).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return user, nil
}

func (r *repo) UserExistsByUsername(ctx context.Context, username string) (bool, error) {
	var count int64
	err := r.conn(ctx).Model(&entities.User{}).Where("username = ?", username).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) UserExistsByEmail(ctx context.Context, email string) (bool, error) {
	var count int64
	err := r.conn(ctx).Model(&entities.User{}).Where("email = ?", email).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) CreateUser(ctx context.Context, user *entities.User) error {
	return r.conn(ctx).Create(user).Error
}

func (r *repo) InsertAudioFile(ctx context.Context, audio *entities.AudioFile) error {
	return r.conn(ctx).Omit(clause.Associations).Create(audio).Error
}

func (r *repo) UpdateAudioFile(ctx context.Context, audio *entities.AudioFile) error {
	updates := map[string]interface{}{
		"title":             audio.Title,
		"description":       audio.Description,
		"original_filename": audio.OriginalFilename,
		"content_type":      audio.ContentType,
		"file_size":         audio.FileSize,
		"storage_key":       audio.StorageKey,
		"duration_seconds":  audio.DurationSeconds,
		"status":            audio.Status,
		"language":          audio.Language,
	}
	res := r.conn(ctx).Model(&entities.AudioFile{}).Where("id = ?", audio.ID).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repo) UpdateAudioDuration(ctx context.Context, id int64, seconds int) error {
	res := r.conn(ctx).Model(&entities.AudioFile{}).Where("id = ?", id).Update("duration_seconds", seconds)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repo) FindAudioFileById(ctx context.Context, id int64) (*entities.AudioFile, error) {
	audio := &entities.AudioFile{}
	err := r.conn(ctx).Preload("Owner").First(audio, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return audio, nil
}

func (r *repo) FindAudioFilesByUserOrderedByUploadedAtDesc(ctx context.Context, ownerId int64) ([]*entities.AudioFile, error) {
	var files []*entities.AudioFile
	err := r.conn(ctx).Where("user_id = ?", ownerId).Order("uploaded_at DESC").Order("id DESC").Find(&files).Error
	if err != nil {
		return nil, err
	}
	return files, nil
}

func (r *repo) FindStaleAudioFiles(ctx context.Context, statuses []constant.AudioStatus, before time.Time) ([]*entities.AudioFile, error) {
	var files []*entities.AudioFile
	err := r.conn(ctx).Where("status IN ?", statuses).Where("uploaded_at < ?", before).Order("id ASC").Find(&files).Error
	if err != nil {
		return nil, err
	}
	return files, nil
}

func (r *repo) DeleteAudioFile(ctx context.Context, audio *entities.AudioFile) error {
	res := r.conn(ctx).Delete(&entities.AudioFile{}, audio.ID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
