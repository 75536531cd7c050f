package domain

import (
	"regexp"
	"strings"
	"time"

	"github.com/peakscape/tours-api/internal/apperr"
)

type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Photo        string    `json:"photo"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"-"`
	// Timestamp of the last password change; tokens issued at or before it
	// are stale.
	PasswordChangedAt *time.Time `json:"-"`
	ResetTokenHash    *string    `json:"-"`
	ResetTokenExpires *time.Time `json:"-"`
	Active            bool       `json:"-"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"-"`
}

// Valid account roles
const (
	RoleUser      = "user"
	RoleGuide     = "guide"
	RoleLeadGuide = "lead-guide"
	RoleAdmin     = "admin"
)

var validRoles = map[string]bool{
	RoleUser:      true,
	RoleGuide:     true,
	RoleLeadGuide: true,
	RoleAdmin:     true,
}

func IsValidRole(role string) bool {
	return validRoles[role]
}

// PasswordChangedAfter reports whether the password changed at or after the
// given token issuance time. JWT carries second precision, so both sides are
// truncated before comparing.
func (u *User) PasswordChangedAfter(issuedAt time.Time) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return !u.PasswordChangedAt.Truncate(time.Second).Before(issuedAt.Truncate(time.Second))
}

type SignupRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
	Role            string `json:"role,omitempty"`
}

func (r *SignupRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	if r.Role == "" {
		r.Role = RoleUser
	}
}

func (r *SignupRequest) Validate() error {
	if r.Name == "" {
		return apperr.NewValidation("name is required")
	}
	if r.Email == "" {
		return apperr.NewValidation("email is required")
	}
	if !isValidEmail(r.Email) {
		return apperr.NewValidation("invalid email format")
	}
	if len(r.Password) < 8 {
		return apperr.NewValidation("password must be at least 8 characters")
	}
	if r.Password != r.PasswordConfirm {
		return apperr.NewValidation("password and passwordConfirm do not match")
	}
	if !validRoles[r.Role] {
		return apperr.NewValidation("invalid role")
	}
	return nil
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *LoginRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
}

func (r *LoginRequest) Validate() error {
	if r.Email == "" || r.Password == "" {
		return apperr.NewValidation("please provide email and password")
	}
	return nil
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

type UpdatePasswordRequest struct {
	PasswordCurrent string `json:"passwordCurrent"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

// UpdateMeRequest is the self-service profile patch. Password changes go
// through their own endpoint; the password fields exist only so that a body
// carrying them can be rejected instead of silently dropped.
type UpdateMeRequest struct {
	Name            *string `json:"name,omitempty"`
	Email           *string `json:"email,omitempty"`
	Photo           *string `json:"photo,omitempty"`
	Password        string  `json:"password,omitempty"`
	PasswordConfirm string  `json:"passwordConfirm,omitempty"`
}

func (r *UpdateMeRequest) Validate() error {
	if r.Password != "" || r.PasswordConfirm != "" {
		return apperr.NewValidation("this route is not for password updates; use /updateMyPassword")
	}
	if r.Email != nil && !isValidEmail(strings.ToLower(*r.Email)) {
		return apperr.NewValidation("invalid email format")
	}
	return nil
}

// UserPatch is the admin-facing patch.
type UserPatch struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
	Photo *string `json:"photo,omitempty"`
	Role  *string `json:"role,omitempty"`
}

func (p *UserPatch) Validate() error {
	if p.Role != nil && !validRoles[*p.Role] {
		return apperr.NewValidation("invalid role")
	}
	if p.Email != nil && !isValidEmail(strings.ToLower(*p.Email)) {
		return apperr.NewValidation("invalid email format")
	}
	return nil
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func isValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}
