package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/golang-jwt/jwt/v5"

	"github.com/peakscape/tours-api/internal/apperr"
	"github.com/peakscape/tours-api/internal/domain"
	"github.com/peakscape/tours-api/internal/mailer"
	"github.com/peakscape/tours-api/internal/repository"
	"github.com/peakscape/tours-api/pkg/auth"
	"github.com/peakscape/tours-api/pkg/config"
	"github.com/peakscape/tours-api/pkg/events"
	"github.com/peakscape/tours-api/pkg/logger"
)

type AuthService interface {
	Signup(ctx context.Context, req *domain.SignupRequest) (*domain.User, string, error)
	Login(ctx context.Context, req *domain.LoginRequest) (*domain.User, string, error)

	// VerifyToken parses a session token and resolves it to a live account,
	// rejecting tokens issued before the account's last password change.
	VerifyToken(ctx context.Context, tokenString string) (*domain.User, error)

	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token string, req *domain.ResetPasswordRequest) (*domain.User, string, error)
	UpdatePassword(ctx context.Context, userID int64, req *domain.UpdatePasswordRequest) (*domain.User, string, error)
}

type authService struct {
	users    repository.UserRepository
	mailer   mailer.Service
	eventBus events.Publisher
	config   *config.Config

	// Injected clock so token-staleness ordering is testable.
	now func() time.Time
}

func NewAuthService(
	users repository.UserRepository,
	mail mailer.Service,
	eventBus events.Publisher,
	cfg *config.Config,
) AuthService {
	return &authService{
		users:    users,
		mailer:   mail,
		eventBus: eventBus,
		config:   cfg,
		now:      time.Now,
	}
}

func (s *authService) hashParams() *argon2id.Params {
	return &argon2id.Params{
		Memory:      s.config.Auth.HashMemory,
		Iterations:  s.config.Auth.HashIterations,
		Parallelism: s.config.Auth.HashParallelism,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func (s *authService) signToken(userID int64) (string, error) {
	return auth.NewToken(userID, s.config.Auth.JWTSecret, s.config.Auth.TokenTTL, s.now())
}

func (s *authService) Signup(ctx context.Context, req *domain.SignupRequest) (*domain.User, string, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, "", err
	}

	passwordHash, err := argon2id.CreateHash(req.Password, s.hashParams())
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.users.CreateWithPassword(ctx, req, passwordHash)
	if err != nil {
		if apperr.IsKind(err, apperr.Conflict) {
			return nil, "", apperr.NewConflict("a user with this email already exists")
		}
		return nil, "", fmt.Errorf("failed to create user: %w", err)
	}

	token, err := s.signToken(user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to sign token: %w", err)
	}

	// Welcome mail and the signup event are best effort; the account exists
	// either way.
	if err := s.mailer.SendWelcomeEmail(user.Email, user.Name); err != nil {
		logger.ErrorContext(ctx, "Failed to send welcome email", "error", err, "user_id", user.ID)
	}
	if err := s.eventBus.Publish(ctx, events.UserSignedUp, events.UserSignedUpEvent{
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.Name,
		CreatedAt: user.CreatedAt,
	}); err != nil {
		logger.WarnContext(ctx, "Failed to publish signup event", "error", err, "user_id", user.ID)
	}

	return user, token, nil
}

func (s *authService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.User, string, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, "", err
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, "", fmt.Errorf("failed to find user: %w", err)
	}
	// Same answer whether the account is missing or the password is wrong.
	if user == nil {
		return nil, "", apperr.NewAuth("incorrect email or password")
	}

	valid, err := argon2id.ComparePasswordAndHash(req.Password, user.PasswordHash)
	if err != nil {
		return nil, "", fmt.Errorf("failed to verify password: %w", err)
	}
	if !valid {
		return nil, "", apperr.NewAuth("incorrect email or password")
	}

	token, err := s.signToken(user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to sign token: %w", err)
	}

	return user, token, nil
}

func (s *authService) VerifyToken(ctx context.Context, tokenString string) (*domain.User, error) {
	claims, err := auth.Parse(tokenString, s.config.Auth.JWTSecret)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperr.NewAuth("your token has expired; please log in again")
		}
		return nil, apperr.NewAuth("invalid token; please log in again")
	}

	user, err := s.users.FindByID(ctx, claims.Sub)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, apperr.NewAuth("the user belonging to this token no longer exists")
	}

	if claims.IssuedAt != nil && user.PasswordChangedAfter(claims.IssuedAt.Time) {
		return nil, apperr.NewAuth("password was recently changed; please log in again")
	}

	return user, nil
}

func (s *authService) ForgotPassword(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return apperr.NewValidation("please provide an email address")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return apperr.NewNotFound("there is no user with that email address")
	}

	rawToken, tokenHash, err := newResetToken()
	if err != nil {
		return fmt.Errorf("failed to generate reset token: %w", err)
	}

	expires := s.now().Add(s.config.Auth.ResetTokenTTL)
	if err := s.users.SetResetToken(ctx, user.ID, tokenHash, expires); err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}

	resetURL := fmt.Sprintf("%s/api/v1/users/resetPassword/%s", s.config.API.BaseURL, rawToken)
	if err := s.mailer.SendPasswordResetEmail(user.Email, user.Name, resetURL); err != nil {
		// A token that never reached the user is a liability; clear it.
		if clearErr := s.users.ClearResetToken(ctx, user.ID); clearErr != nil {
			logger.ErrorContext(ctx, "Failed to clear undelivered reset token", "error", clearErr, "user_id", user.ID)
		}
		logger.ErrorContext(ctx, "Failed to send password reset email", "error", err, "user_id", user.ID)
		return apperr.NewInternal("there was an error sending the email; try again later", err)
	}

	return nil
}

func (s *authService) ResetPassword(ctx context.Context, token string, req *domain.ResetPasswordRequest) (*domain.User, string, error) {
	if err := validateNewPassword(req.Password, req.PasswordConfirm); err != nil {
		return nil, "", err
	}

	tokenHash := hashResetToken(token)
	user, err := s.users.FindByResetToken(ctx, tokenHash, s.now())
	if err != nil {
		return nil, "", fmt.Errorf("failed to look up reset token: %w", err)
	}
	if user == nil {
		return nil, "", apperr.NewInvalidOrExpired("token is invalid or has expired")
	}

	return s.changePassword(ctx, user, req.Password)
}

func (s *authService) UpdatePassword(ctx context.Context, userID int64, req *domain.UpdatePasswordRequest) (*domain.User, string, error) {
	if err := validateNewPassword(req.Password, req.PasswordConfirm); err != nil {
		return nil, "", err
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, "", apperr.NewAuth("the user belonging to this token no longer exists")
	}

	valid, err := argon2id.ComparePasswordAndHash(req.PasswordCurrent, user.PasswordHash)
	if err != nil {
		return nil, "", fmt.Errorf("failed to verify password: %w", err)
	}
	if !valid {
		return nil, "", apperr.NewAuth("your current password is wrong")
	}

	return s.changePassword(ctx, user, req.Password)
}

// changePassword persists a new hash and issues a fresh token. The change
// timestamp is backdated one second so the token issued here is never judged
// stale against it.
func (s *authService) changePassword(ctx context.Context, user *domain.User, password string) (*domain.User, string, error) {
	passwordHash, err := argon2id.CreateHash(password, s.hashParams())
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}

	changedAt := s.now().Add(-time.Second)
	if err := s.users.UpdatePassword(ctx, user.ID, passwordHash, changedAt); err != nil {
		return nil, "", fmt.Errorf("failed to update password: %w", err)
	}

	token, err := s.signToken(user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to sign token: %w", err)
	}

	user.PasswordHash = passwordHash
	user.PasswordChangedAt = &changedAt
	user.ResetTokenHash = nil
	user.ResetTokenExpires = nil
	return user, token, nil
}

func validateNewPassword(password, confirm string) error {
	if len(password) < 8 {
		return apperr.NewValidation("password must be at least 8 characters")
	}
	if password != confirm {
		return apperr.NewValidation("password and passwordConfirm do not match")
	}
	return nil
}

// newResetToken returns the raw token sent to the user and the sha256 hex
// digest stored server side.
func newResetToken() (raw, hash string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	raw = hex.EncodeToString(buf)
	return raw, hashResetToken(raw), nil
}

func hashResetToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
