// Package repository holds the credential store and the listing stores, each
// with a MongoDB implementation and an in-memory one.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/princinho/jobportal/models"
)

// UserStore is the credential store. Lookups by email are case-insensitive;
// absent records return apperror.ErrNotFound and Create reports an existing
// email as apperror.ErrDuplicateEmail.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	// Save writes every field of user, including cleared reset fields. It is
	// for callers that own the whole record; a read-modify-write on a live
	// account goes through UpdateName or UpdatePassword.
	Save(ctx context.Context, user *models.User) error
	// UpdateName sets only the display name.
	UpdateName(ctx context.Context, userID, name string, now time.Time) error
	// UpdatePassword replaces the password hash only while the stored hash is
	// still currentHash, and clears any pending reset. A changed or missing
	// account returns apperror.ErrNotFound.
	UpdatePassword(ctx context.Context, userID, currentHash, newHash string, now time.Time) error

	SetResetToken(ctx context.Context, userID string, tokenHash string, expiry time.Time) error
	// ConsumeResetToken finds the account holding tokenHash with an expiry
	// after now and, in the same document update, sets the new password hash
	// and clears both reset fields.
	ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (*models.User, error)

	// UpsertAdmin makes sure an admin account exists for email. The password
	// hash is only written when the account is created. An existing account
	// without the admin role is left alone and reported as ErrAccountNotAdmin.
	UpsertAdmin(ctx context.Context, email, name, passwordHash string, now time.Time) (created bool, err error)
	SetRole(ctx context.Context, userID string, role models.Role) error

	List(ctx context.Context, page, limit int) ([]models.User, int64, error)
	// Count returns accounts created at or after since; a zero since counts all.
	Count(ctx context.Context, since time.Time) (int64, error)
	// EachUser streams every account to fn, stopping at fn's first error.
	EachUser(ctx context.Context, fn func(models.User) error) error
}

// ErrAccountNotAdmin means the seed email belongs to an ordinary account.
var ErrAccountNotAdmin = errors.New("account exists without the admin role")
