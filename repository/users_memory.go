package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/princinho/jobportal/apperror"
	"github.com/princinho/jobportal/models"
	"github.com/princinho/jobportal/utils"
)

// MemoryUserStore keeps accounts in process memory. It backs DATA_STORE=memory
// and the tests; every method holds the lock for its whole read-modify-write.
type MemoryUserStore struct {
	mu      sync.Mutex
	byID    map[bson.ObjectID]*models.User
	byEmail map[string]bson.ObjectID
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		byID:    make(map[bson.ObjectID]*models.User),
		byEmail: make(map[string]bson.ObjectID),
	}
}

func (s *MemoryUserStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[utils.NormalizeEmail(email)]
	if !ok {
		return nil, apperror.NotFound("user")
	}
	return cloneUser(s.byID[id]), nil
}

func (s *MemoryUserStore) FindByID(_ context.Context, id string) (*models.User, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperror.NotFound("user")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[oid]
	if !ok {
		return nil, apperror.NotFound("user")
	}
	return cloneUser(u), nil
}

func (s *MemoryUserStore) Create(_ context.Context, user *models.User) error {
	user.Email = utils.NormalizeEmail(user.Email)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byEmail[user.Email]; taken {
		return apperror.ErrDuplicateEmail
	}
	if user.ID.IsZero() {
		user.ID = bson.NewObjectID()
	}
	s.byID[user.ID] = cloneUser(user)
	s.byEmail[user.Email] = user.ID
	return nil
}

func (s *MemoryUserStore) Save(_ context.Context, user *models.User) error {
	user.Email = utils.NormalizeEmail(user.Email)

	s.mu.Lock()
	defer s.mu.Unlock()

	if owner, taken := s.byEmail[user.Email]; taken && owner != user.ID {
		return apperror.ErrDuplicateEmail
	}
	if prev, ok := s.byID[user.ID]; ok && prev.Email != user.Email {
		delete(s.byEmail, prev.Email)
	}
	s.byID[user.ID] = cloneUser(user)
	s.byEmail[user.Email] = user.ID
	return nil
}

func (s *MemoryUserStore) UpdateName(_ context.Context, userID, name string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.lookup(userID)
	if err != nil {
		return err
	}
	u.Name = name
	u.UpdatedAt = now.UTC()
	return nil
}

func (s *MemoryUserStore) UpdatePassword(_ context.Context, userID, currentHash, newHash string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.lookup(userID)
	if err != nil || u.PasswordHash != currentHash {
		return apperror.NotFound("user")
	}
	u.PasswordHash = newHash
	u.ClearReset()
	u.UpdatedAt = now.UTC()
	return nil
}

// lookup returns the stored record itself; callers hold s.mu.
func (s *MemoryUserStore) lookup(userID string) (*models.User, error) {
	oid, err := bson.ObjectIDFromHex(userID)
	if err != nil {
		return nil, apperror.NotFound("user")
	}
	u, ok := s.byID[oid]
	if !ok {
		return nil, apperror.NotFound("user")
	}
	return u, nil
}

func (s *MemoryUserStore) SetResetToken(_ context.Context, userID string, tokenHash string, expiry time.Time) error {
	oid, err := bson.ObjectIDFromHex(userID)
	if err != nil {
		return apperror.NotFound("user")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[oid]
	if !ok {
		return apperror.NotFound("user")
	}
	exp := expiry.UTC()
	u.ResetTokenHash = &tokenHash
	u.ResetTokenExpiry = &exp
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryUserStore) ConsumeResetToken(_ context.Context, tokenHash, passwordHash string, now time.Time) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.byID {
		if !u.HasPendingReset() || *u.ResetTokenHash != tokenHash {
			continue
		}
		if !u.ResetTokenExpiry.After(now) {
			break
		}
		u.PasswordHash = passwordHash
		u.ClearReset()
		u.UpdatedAt = now.UTC()
		return cloneUser(u), nil
	}
	return nil, apperror.NotFound("reset token")
}

func (s *MemoryUserStore) UpsertAdmin(_ context.Context, email, name, passwordHash string, now time.Time) (bool, error) {
	email = utils.NormalizeEmail(email)

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byEmail[email]; ok {
		if s.byID[id].Role != models.RoleAdmin {
			return false, ErrAccountNotAdmin
		}
		return false, nil
	}

	u := &models.User{
		ID:           bson.NewObjectID(),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         models.RoleAdmin,
		CreatedAt:    now.UTC(),
		UpdatedAt:    now.UTC(),
	}
	s.byID[u.ID] = u
	s.byEmail[email] = u.ID
	return true, nil
}

func (s *MemoryUserStore) SetRole(_ context.Context, userID string, role models.Role) error {
	oid, err := bson.ObjectIDFromHex(userID)
	if err != nil {
		return apperror.NotFound("user")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[oid]
	if !ok {
		return apperror.NotFound("user")
	}
	u.Role = role
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryUserStore) List(_ context.Context, page, limit int) ([]models.User, int64, error) {
	all := s.snapshot()
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return paginate(all, page, limit), int64(len(all)), nil
}

func (s *MemoryUserStore) Count(_ context.Context, since time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, u := range s.byID {
		if since.IsZero() || !u.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryUserStore) EachUser(ctx context.Context, fn func(models.User) error) error {
	for _, u := range s.snapshot() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(u); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryUserStore) snapshot() []models.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.User, 0, len(s.byID))
	for _, u := range s.byID {
		out = append(out, *cloneUser(u))
	}
	return out
}

func cloneUser(u *models.User) *models.User {
	c := *u
	if u.ResetTokenHash != nil {
		h := *u.ResetTokenHash
		c.ResetTokenHash = &h
	}
	if u.ResetTokenExpiry != nil {
		e := *u.ResetTokenExpiry
		c.ResetTokenExpiry = &e
	}
	return &c
}

func paginate[T any](items []T, page, limit int) []T {
	start := (page - 1) * limit
	if start < 0 || start >= len(items) {
		return make([]T, 0)
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
