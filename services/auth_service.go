// Package services holds the portal's business logic. Controllers call these
// types and never touch the stores directly.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/princinho/jobportal/apperror"
	"github.com/princinho/jobportal/config"
	"github.com/princinho/jobportal/mailer"
	"github.com/princinho/jobportal/models"
	"github.com/princinho/jobportal/repository"
	"github.com/princinho/jobportal/utils"
)

const (
	minPasswordLen = 6
	maxPasswordLen = 72 // bcrypt input limit in bytes
)

// Session is the result of a successful login.
type Session struct {
	Token     string
	Claims    *utils.SessionClaims
	User      models.UserSummary
	ExpiresAt time.Time
}

type AuthService struct {
	users  repository.UserStore
	mail   mailer.Mailer
	secret []byte
	ttl    time.Duration
	appURL string
	now    func() time.Time

	// pending tracks reset emails still in flight.
	pending sync.WaitGroup
}

func NewAuthService(users repository.UserStore, mail mailer.Mailer, cfg *config.Config) *AuthService {
	return &AuthService{
		users:  users,
		mail:   mail,
		secret: []byte(cfg.JWTSecret),
		ttl:    cfg.SessionTTL(),
		appURL: cfg.AppURL,
		now:    time.Now,
	}
}

func (s *AuthService) Register(ctx context.Context, name, email, password string) (*models.UserSummary, error) {
	name = strings.TrimSpace(name)
	email = utils.NormalizeEmail(email)
	if name == "" {
		return nil, apperror.Validation("name is required")
	}
	if !utils.ValidEmail(email) {
		return nil, apperror.Validation("please enter a valid email")
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("hashing password: %w", err))
	}

	now := s.now().UTC()
	user := &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         models.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrDuplicateEmail) {
			return nil, apperror.ErrDuplicateEmail
		}
		return nil, apperror.Internal(fmt.Errorf("creating user: %w", err))
	}

	slog.InfoContext(ctx, "user registered", "user_id", user.ID.Hex(), "email", user.Email)
	summary := user.Summary()
	return &summary, nil
}

// Login verifies email and password. An unknown email and a wrong password
// both return apperror.ErrInvalidCredentials after the same bcrypt work.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	email = utils.NormalizeEmail(email)
	if email == "" || password == "" {
		utils.DummyCheck(password)
		return nil, apperror.ErrInvalidCredentials
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			utils.DummyCheck(password)
			return nil, apperror.ErrInvalidCredentials
		}
		return nil, apperror.Internal(fmt.Errorf("finding user: %w", err))
	}

	if err := utils.CheckPassword(user.PasswordHash, password); err != nil {
		slog.InfoContext(ctx, "login rejected", "user_id", user.ID.Hex())
		return nil, apperror.ErrInvalidCredentials
	}

	token, claims, err := utils.IssueSessionToken(user.ID.Hex(), user.Role, s.secret, s.ttl, s.now())
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("signing session: %w", err))
	}

	slog.InfoContext(ctx, "user logged in", "user_id", user.ID.Hex(), "role", user.Role)
	return &Session{
		Token:     token,
		Claims:    claims,
		User:      user.Summary(),
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Decode validates a session token without touching the store.
func (s *AuthService) Decode(token string) (*utils.SessionClaims, error) {
	claims, err := utils.ParseSessionToken(token, s.secret)
	if err != nil {
		return nil, apperror.ErrUnauthorized
	}
	return claims, nil
}

// IssueReset starts a password reset for email. The result is the same
// whether or not the account exists; the email goes out in the background.
func (s *AuthService) IssueReset(ctx context.Context, email string) error {
	email = utils.NormalizeEmail(email)
	if email == "" {
		return apperror.Validation("email is required")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			slog.DebugContext(ctx, "password reset requested for unknown email")
			return nil
		}
		return apperror.Internal(fmt.Errorf("finding user: %w", err))
	}

	plaintext, hash, err := utils.NewResetToken()
	if err != nil {
		return apperror.Internal(err)
	}
	expiry := s.now().Add(utils.ResetTokenTTL)
	if err := s.users.SetResetToken(ctx, user.ID.Hex(), hash, expiry); err != nil {
		return apperror.Internal(fmt.Errorf("storing reset token: %w", err))
	}

	msg := mailer.PasswordResetMessage(user.Email, user.Name, s.ResetURL(plaintext))
	userID := user.ID.Hex()
	bg := context.WithoutCancel(ctx)

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if err := s.mail.Send(bg, msg); err != nil {
			slog.ErrorContext(bg, "password reset email failed", "user_id", userID, "error", err)
			return
		}
		slog.InfoContext(bg, "password reset email sent", "user_id", userID)
	}()
	return nil
}

func (s *AuthService) ResetURL(token string) string {
	return s.appURL + "/auth/reset-password/" + token
}

// RedeemReset sets a new password using a reset token. Unknown, expired and
// already used tokens all return apperror.ErrInvalidOrExpiredToken.
func (s *AuthService) RedeemReset(ctx context.Context, token, newPassword string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return apperror.ErrInvalidOrExpiredToken
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	hash, err := utils.HashPassword(newPassword)
	if err != nil {
		return apperror.Internal(fmt.Errorf("hashing password: %w", err))
	}

	user, err := s.users.ConsumeResetToken(ctx, utils.HashResetToken(token), hash, s.now())
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.ErrInvalidOrExpiredToken
		}
		return apperror.Internal(fmt.Errorf("consuming reset token: %w", err))
	}

	slog.InfoContext(ctx, "password reset completed", "user_id", user.ID.Hex())
	return nil
}

// ChangePassword is the signed-in flow; it also voids any pending reset.
func (s *AuthService) ChangePassword(ctx context.Context, userID, current, next string) error {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := utils.CheckPassword(user.PasswordHash, current); err != nil {
		return apperror.ErrInvalidCredentials
	}
	if err := validatePassword(next); err != nil {
		return err
	}

	hash, err := utils.HashPassword(next)
	if err != nil {
		return apperror.Internal(fmt.Errorf("hashing password: %w", err))
	}
	// only lands if nobody changed the password since it was checked
	if err := s.users.UpdatePassword(ctx, userID, user.PasswordHash, hash, s.now()); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.ErrInvalidCredentials
		}
		return apperror.Internal(fmt.Errorf("updating password: %w", err))
	}
	slog.InfoContext(ctx, "password changed", "user_id", userID)
	return nil
}

func (s *AuthService) Profile(ctx context.Context, userID string) (*models.UserSummary, error) {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	summary := user.Summary()
	return &summary, nil
}

func (s *AuthService) UpdateProfile(ctx context.Context, userID, name string) (*models.UserSummary, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperror.Validation("name is required")
	}

	if err := s.users.UpdateName(ctx, userID, name, s.now()); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotFound("user")
		}
		return nil, apperror.Internal(fmt.Errorf("updating name: %w", err))
	}
	return s.Profile(ctx, userID)
}

// SetRole changes a stored role. Sessions already issued keep their old role
// until the user signs in again.
func (s *AuthService) SetRole(ctx context.Context, userID string, role models.Role) error {
	if !role.Valid() {
		return apperror.Validation("role must be user or admin")
	}
	if err := s.users.SetRole(ctx, userID, role); err != nil {
		return apperror.From(err)
	}
	slog.InfoContext(ctx, "user role changed", "user_id", userID, "role", role)
	return nil
}

func (s *AuthService) ListUsers(ctx context.Context, page, limit int) (models.Page[models.UserSummary], error) {
	users, total, err := s.users.List(ctx, page, limit)
	if err != nil {
		return models.Page[models.UserSummary]{}, apperror.Internal(err)
	}
	items := make([]models.UserSummary, 0, len(users))
	for i := range users {
		items = append(items, users[i].Summary())
	}
	return models.NewPage(items, page, limit, total), nil
}

// SeedAdmin makes sure the configured administrator exists as a regular
// account with role admin. An existing account keeps its password.
func (s *AuthService) SeedAdmin(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		slog.WarnContext(ctx, "ADMIN_EMAIL or ADMIN_PASSWORD not set, skipping admin seed")
		return nil
	}
	email = utils.NormalizeEmail(email)
	if !utils.ValidEmail(email) {
		return fmt.Errorf("seed admin: invalid email %q", email)
	}
	if err := validatePassword(password); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return fmt.Errorf("seed admin: hash password: %w", err)
	}
	created, err := s.users.UpsertAdmin(ctx, email, "Admin", hash, s.now())
	if errors.Is(err, repository.ErrAccountNotAdmin) {
		return fmt.Errorf("seed admin: %s is a registered non-admin account, pick another ADMIN_EMAIL or grant the role from an admin session: %w", email, err)
	}
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	if created {
		slog.InfoContext(ctx, "admin account created", "email", email)
	} else {
		slog.InfoContext(ctx, "admin account already exists", "email", email)
	}
	return nil
}

// Wait blocks until queued reset emails have been handed to the mailer.
func (s *AuthService) Wait() {
	s.pending.Wait()
}

func (s *AuthService) findUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, apperror.From(err)
	}
	return user, nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLen {
		return apperror.Validation(fmt.Sprintf("password must be at least %d characters", minPasswordLen))
	}
	if len(password) > maxPasswordLen {
		return apperror.Validation(fmt.Sprintf("password must be at most %d bytes", maxPasswordLen))
	}
	return nil
}
