package service

import (
	"audio-service/constant"
	"audio-service/entities"
	"audio-service/repository"
	"context"
	"database/sql"
	"slices"
	"sync"
	"time"

	"gorm.io/gorm"
)

// fakeRepo is an in-memory AudioRepository. Transactions snapshot the
// tables and restore them when the callback fails. Like database/sql, a
// cancelled context fails every write and rolls back the transaction.
type fakeRepo struct {
	mu     sync.Mutex
	txMu   sync.Mutex
	users  map[int64]entities.User
	audios map[int64]entities.AudioFile
	nextID int64

	failUpdate error
}

func newFakeRepo(users ...entities.User) *fakeRepo {
	r := &fakeRepo{
		users:  map[int64]entities.User{},
		audios: map[int64]entities.AudioFile{},
	}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *fakeRepo) Transaction(ctx context.Context, callback func(ctx context.Context) error, _ ...*sql.TxOptions) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()

	r.mu.Lock()
	users := cloneMap(r.users)
	audios := cloneMap(r.audios)
	r.mu.Unlock()

	err := callback(ctx)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		r.mu.Lock()
		r.users, r.audios = users, audios
		r.mu.Unlock()
		return err
	}
	return nil
}

func (r *fakeRepo) GetDB() *gorm.DB { return nil }

func (r *fakeRepo) FindUserByUsername(ctx context.Context, username string) (*entities.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			u := u
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeRepo) UserExistsByUsername(ctx context.Context, username string) (bool, error) {
	_, err := r.FindUserByUsername(ctx, username)
	return err == nil, nil
}

func (r *fakeRepo) UserExistsByEmail(_ context.Context, email string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeRepo) CreateUser(_ context.Context, user *entities.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	user.ID = 1000 + r.nextID
	r.users[user.ID] = *user
	return nil
}

func (r *fakeRepo) InsertAudioFile(ctx context.Context, audio *entities.AudioFile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	audio.ID = r.nextID
	row := *audio
	row.Owner = nil
	r.audios[audio.ID] = row
	return nil
}

func (r *fakeRepo) UpdateAudioFile(ctx context.Context, audio *entities.AudioFile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failUpdate != nil && audio.Status == constant.AudioStatusUploaded {
		return r.failUpdate
	}
	if _, ok := r.audios[audio.ID]; !ok {
		return repository.ErrNotFound
	}
	row := *audio
	row.Owner = nil
	r.audios[audio.ID] = row
	return nil
}

func (r *fakeRepo) UpdateAudioDuration(_ context.Context, id int64, seconds int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.audios[id]
	if !ok {
		return repository.ErrNotFound
	}
	row.DurationSeconds = &seconds
	r.audios[id] = row
	return nil
}

func (r *fakeRepo) FindAudioFileById(_ context.Context, id int64) (*entities.AudioFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.audios[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if owner, ok := r.users[row.UserID]; ok {
		row.Owner = &owner
	}
	return &row, nil
}

func (r *fakeRepo) FindAudioFilesByUserOrderedByUploadedAtDesc(_ context.Context, ownerId int64) ([]*entities.AudioFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var files []*entities.AudioFile
	for _, row := range r.audios {
		if row.UserID == ownerId {
			row := row
			files = append(files, &row)
		}
	}
	slices.SortFunc(files, func(a, b *entities.AudioFile) int {
		if c := b.UploadedAt.Compare(a.UploadedAt); c != 0 {
			return c
		}
		return int(b.ID - a.ID)
	})
	return files, nil
}

func (r *fakeRepo) FindStaleAudioFiles(_ context.Context, statuses []constant.AudioStatus, before time.Time) ([]*entities.AudioFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var files []*entities.AudioFile
	for _, row := range r.audios {
		if slices.Contains(statuses, row.Status) && row.UploadedAt.Before(before) {
			row := row
			files = append(files, &row)
		}
	}
	slices.SortFunc(files, func(a, b *entities.AudioFile) int { return int(a.ID - b.ID) })
	return files, nil
}

func (r *fakeRepo) DeleteAudioFile(ctx context.Context, audio *entities.AudioFile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.audios[audio.ID]; !ok {
		return repository.ErrNotFound
	}
	delete(r.audios, audio.ID)
	return nil
}

func (r *fakeRepo) rows() []entities.AudioFile {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]entities.AudioFile, 0, len(r.audios))
	for _, row := range r.audios {
		out = append(out, row)
	}
	return out
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
