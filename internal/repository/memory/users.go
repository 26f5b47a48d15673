package memory

import (
	"context"
	"sync"
	"time"

	"github.com/NordCoder/Stocker/internal/domain"
	"github.com/NordCoder/Stocker/internal/domain/user"
)

var _ user.Repo = (*UserRepo)(nil)

type UserRepo struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]user.User
	now    func() time.Time
}

func NewUserRepo(now func() time.Time) *UserRepo {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &UserRepo{byID: make(map[int64]user.User), now: now}
}

func (r *UserRepo) Create(_ context.Context, u *user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.byID {
		if existing.Username == u.Username || existing.Email == u.Email {
			return domain.ErrConflict
		}
	}
	r.nextID++
	u.ID = r.nextID
	u.CreatedAt = r.now()
	u.UpdatedAt = u.CreatedAt
	r.byID[u.ID] = *u
	return nil
}

func (r *UserRepo) GetByID(_ context.Context, id int64) (*user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &u, nil
}

func (r *UserRepo) GetByUsername(_ context.Context, username string) (*user.User, error) {
	return r.find(func(u user.User) bool { return u.Username == username })
}

func (r *UserRepo) GetByEmail(_ context.Context, email string) (*user.User, error) {
	return r.find(func(u user.User) bool { return u.Email == email })
}

func (r *UserRepo) UpdatePassword(_ context.Context, id int64, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = r.now()
	r.byID[id] = u
	return nil
}

// SetActive toggles the active flag.
func (r *UserRepo) SetActive(id int64, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.Active = active
	r.byID[id] = u
	return nil
}

func (r *UserRepo) find(match func(user.User) bool) (*user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.byID {
		if match(u) {
			return &u, nil
		}
	}
	return nil, domain.ErrNotFound
}
