package repository

import (
	"audio-service/constant"
	"audio-service/entities"
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

func newRepoWithMock(t *testing.T) (AudioRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	r, err := NewRepo(db, logger.Silent)
	require.NoError(t, err)
	return r, mock
}

var audioColumns = []string{
	"id", "title", "description", "original_filename", "content_type", "file_size",
	"storage_key", "duration_seconds", "status", "uploaded_at", "language", "user_id",
}

func TestFindUserByUsername(t *testing.T) {
	r, mock := newRepoWithMock(t)

	mock.ExpectQuery(`SELECT \* FROM "users" WHERE username = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email", "credential"}).
			AddRow(1, "alice", "alice@example.com", "hash"))

	user, err := r.FindUserByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), user.ID)
	assert.Equal(t, "alice@example.com", user.Email)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindUserByUsername_NotFound(t *testing.T) {
	r, mock := newRepoWithMock(t)

	mock.ExpectQuery(`SELECT \* FROM "users" WHERE username = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email", "credential"}))

	user, err := r.FindUserByUsername(context.Background(), "ghost")
	assert.Nil(t, user)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserExistsByEmail(t *testing.T) {
	r, mock := newRepoWithMock(t)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "users" WHERE email = \$1`).
		WithArgs("bob@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	exists, err := r.UserExistsByEmail(context.Background(), "bob@example.com")
	require.NoError(t, err)
	assert.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertAudioFile_AssignsID(t *testing.T) {
	r, mock := newRepoWithMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "audio_files"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))
	mock.ExpectCommit()

	audio := &entities.AudioFile{
		Title:            "Kickoff",
		OriginalFilename: "talk.mp3",
		ContentType:      "audio/mpeg",
		FileSize:         12 * 1024,
		Status:           constant.AudioStatusUploading,
		UploadedAt:       time.Now(),
		Language:         "en",
		UserID:           1,
	}
	require.NoError(t, r.InsertAudioFile(context.Background(), audio))
	assert.Equal(t, int64(42), audio.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateAudioFile_NoRows(t *testing.T) {
	r, mock := newRepoWithMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "audio_files" SET .* WHERE id = \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := r.UpdateAudioFile(context.Background(), &entities.AudioFile{ID: 9, Status: constant.AudioStatusFailed})
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindAudioFileById_LoadsOwner(t *testing.T) {
	r, mock := newRepoWithMock(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT \* FROM "audio_files" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows(audioColumns).
			AddRow(7, "Kickoff", nil, "talk.mp3", "audio/mpeg", 12288, "1/7/talk.mp3", nil, "UPLOADED", now, "en", 1))
	mock.ExpectQuery(`SELECT \* FROM "users" WHERE "users"."id" = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email", "credential"}).
			AddRow(1, "alice", "alice@example.com", "hash"))

	audio, err := r.FindAudioFileById(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "1/7/talk.mp3", audio.Key())
	assert.True(t, audio.OwnedBy("alice"))
	assert.False(t, audio.OwnedBy("bob"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindAudioFileById_NotFound(t *testing.T) {
	r, mock := newRepoWithMock(t)

	mock.ExpectQuery(`SELECT \* FROM "audio_files" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows(audioColumns))

	_, err := r.FindAudioFileById(context.Background(), 7)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindAudioFilesByUser_OrdersNewestFirst(t *testing.T) {
	r, mock := newRepoWithMock(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT \* FROM "audio_files" WHERE user_id = \$1 ORDER BY uploaded_at DESC,\s*id DESC`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(audioColumns).
			AddRow(8, "B", nil, "b.mp3", "audio/mpeg", 10, "1/8/b.mp3", nil, "UPLOADED", now, "en", 1).
			AddRow(7, "A", nil, "a.mp3", "audio/mpeg", 10, "1/7/a.mp3", nil, "UPLOADED", now.Add(-time.Hour), "en", 1))

	files, err := r.FindAudioFilesByUserOrderedByUploadedAtDesc(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, int64(8), files[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteAudioFile_InsideTransaction(t *testing.T) {
	r, mock := newRepoWithMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "audio_files" WHERE "audio_files"."id" = \$1`).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := r.Transaction(context.Background(), func(ctx context.Context) error {
		return r.DeleteAudioFile(ctx, &entities.AudioFile{ID: 7})
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransaction_RollsBackOnError(t *testing.T) {
	r, mock := newRepoWithMock(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := r.Transaction(context.Background(), func(ctx context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_UsesEmbeddedFS(t *testing.T) {
	called := false
	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		called = true
		assert.Equal(t, ".", dir)
		return nil
	}
	t.Cleanup(func() { gooseUpContext = orig })

	require.NoError(t, RunMigrations(context.Background(), nil))
	assert.True(t, called)
}

func TestUpdateAudioDuration(t *testing.T) {
	r, mock := newRepoWithMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "audio_files" SET "duration_seconds"=\$1 WHERE id = \$2`).
		WithArgs(125, int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, r.UpdateAudioDuration(context.Background(), 7, 125))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindStaleAudioFiles(t *testing.T) {
	r, mock := newRepoWithMock(t)
	cutoff := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT \* FROM "audio_files" WHERE status IN \(\$1,\$2\) AND uploaded_at < \$3 ORDER BY id ASC`).
		WithArgs(constant.AudioStatusFailed, constant.AudioStatusUploading, cutoff).
		WillReturnRows(sqlmock.NewRows(audioColumns).
			AddRow(3, "t", nil, "a.mp3", "audio/mpeg", 10, nil, nil, "FAILED", cutoff.Add(-time.Hour), "en", 1))

	files, err := r.FindStaleAudioFiles(context.Background(), []constant.AudioStatus{constant.AudioStatusFailed, constant.AudioStatusUploading}, cutoff)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, constant.AudioStatusFailed, files[0].Status)
	assert.Nil(t, files[0].StorageKey)
	require.NoError(t, mock.ExpectationsWereMet())
}
