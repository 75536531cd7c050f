package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/peakscape/tours-api/internal/apperr"
	"github.com/peakscape/tours-api/internal/domain"
	"github.com/peakscape/tours-api/internal/query"
)

type UserRepository interface {
	CreateWithPassword(ctx context.Context, req *domain.SignupRequest, passwordHash string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id int64) (*domain.User, error)
	FindByResetToken(ctx context.Context, tokenHash string, now time.Time) (*domain.User, error)
	SetResetToken(ctx context.Context, id int64, tokenHash string, expires time.Time) error
	ClearResetToken(ctx context.Context, id int64) error
	UpdatePassword(ctx context.Context, id int64, passwordHash string, changedAt time.Time) error
	UpdateMe(ctx context.Context, id int64, req *domain.UpdateMeRequest) (*domain.User, error)
	Deactivate(ctx context.Context, id int64) error

	// Admin-facing resource capability set.
	Get(ctx context.Context, id int64, expand []string) (*domain.User, error)
	Update(ctx context.Context, id int64, patch *domain.UserPatch) (*domain.User, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, q query.Query) ([]domain.User, error)
}

type userRepository struct {
	pool   *pgxpool.Pool
	schema query.Schema
}

func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{
		pool: pool,
		schema: query.Schema{
			Table: "users",
			Columns: map[string]string{
				"id":        "id",
				"name":      "name",
				"email":     "email",
				"role":      "role",
				"active":    "active",
				"createdAt": "created_at",
			},
			DefaultSort: []query.SortKey{{Field: "createdAt", Desc: true}},
		},
	}
}

const userCols = `id, name, email, photo, role, password_hash, password_changed_at, reset_token_hash, reset_token_expires, active, created_at, updated_at`

// Token resolution only sees live accounts; the admin lookup sees all of them.
const (
	userByIDQuery      = `SELECT ` + userCols + ` FROM users WHERE id = $1 AND active`
	adminUserByIDQuery = `SELECT ` + userCols + ` FROM users WHERE id = $1`
)

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.Photo, &u.Role, &u.PasswordHash,
		&u.PasswordChangedAt, &u.ResetTokenHash, &u.ResetTokenExpires,
		&u.Active, &u.CreatedAt, &u.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (r *userRepository) CreateWithPassword(ctx context.Context, req *domain.SignupRequest, passwordHash string) (*domain.User, error) {
	const q = `
		INSERT INTO users (name, email, photo, role, password_hash)
		VALUES ($1, $2, 'default.jpg', $3, $4)
		RETURNING ` + userCols

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return scanUser(r.pool.QueryRow(ctx, q, req.Name, req.Email, req.Role, passwordHash))
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE lower(email) = lower($1) AND active`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return scanUser(r.pool.QueryRow(ctx, q, email))
}

func (r *userRepository) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	const q = userByIDQuery

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return scanUser(r.pool.QueryRow(ctx, q, id))
}

func (r *userRepository) FindByResetToken(ctx context.Context, tokenHash string, now time.Time) (*domain.User, error) {
	const q = `
		SELECT ` + userCols + `
		FROM users
		WHERE reset_token_hash = $1 AND reset_token_expires > $2 AND active`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return scanUser(r.pool.QueryRow(ctx, q, tokenHash, now))
}

func (r *userRepository) SetResetToken(ctx context.Context, id int64, tokenHash string, expires time.Time) error {
	const q = `
		UPDATE users
		SET reset_token_hash = $2, reset_token_expires = $3, updated_at = now()
		WHERE id = $1`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, id, tokenHash, expires)
	return translate(err)
}

func (r *userRepository) ClearResetToken(ctx context.Context, id int64) error {
	const q = `
		UPDATE users
		SET reset_token_hash = NULL, reset_token_expires = NULL, updated_at = now()
		WHERE id = $1`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, id)
	return translate(err)
}

// UpdatePassword stores a new credential hash and the change timestamp, and
// clears any pending reset token in the same statement.
func (r *userRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string, changedAt time.Time) error {
	const q = `
		UPDATE users
		SET password_hash = $2,
		    password_changed_at = $3,
		    reset_token_hash = NULL,
		    reset_token_expires = NULL,
		    updated_at = now()
		WHERE id = $1`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.pool.Exec(ctx, q, id, passwordHash, changedAt)
	if err != nil {
		return translate(err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NewNotFound("no record found with that ID")
	}
	return nil
}

func (r *userRepository) UpdateMe(ctx context.Context, id int64, req *domain.UpdateMeRequest) (*domain.User, error) {
	const q = `
		UPDATE users
		SET name = COALESCE($2, name),
		    email = COALESCE($3, email),
		    photo = COALESCE($4, photo),
		    updated_at = now()
		WHERE id = $1 AND active
		RETURNING ` + userCols

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return scanUser(r.pool.QueryRow(ctx, q, id, req.Name, req.Email, req.Photo))
}

// Deactivate soft-deletes an account. The row stays; every read path scopes
// on active.
func (r *userRepository) Deactivate(ctx context.Context, id int64) error {
	const q = `UPDATE users SET active = false, updated_at = now() WHERE id = $1`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, id)
	return translate(err)
}

// Get serves the admin surface and deliberately skips the active scope, so a
// soft-deleted account can still be inspected by ID.
func (r *userRepository) Get(ctx context.Context, id int64, expand []string) (*domain.User, error) {
	const q = adminUserByIDQuery

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return scanUser(r.pool.QueryRow(ctx, q, id))
}

func (r *userRepository) Update(ctx context.Context, id int64, patch *domain.UserPatch) (*domain.User, error) {
	const q = `
		UPDATE users
		SET name = COALESCE($2, name),
		    email = COALESCE($3, email),
		    photo = COALESCE($4, photo),
		    role = COALESCE($5, role),
		    updated_at = now()
		WHERE id = $1 AND active
		RETURNING ` + userCols

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return scanUser(r.pool.QueryRow(ctx, q, id, patch.Name, patch.Email, patch.Photo, patch.Role))
}

// Delete hard-deletes; only the admin surface reaches it. Owner-initiated
// deletion goes through Deactivate.
func (r *userRepository) Delete(ctx context.Context, id int64) error {
	const q = `DELETE FROM users WHERE id = $1`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return translate(err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NewNotFound("no record found with that ID")
	}
	return nil
}

func (r *userRepository) List(ctx context.Context, q query.Query) ([]domain.User, error) {
	// Deactivated accounts never show up in listings.
	q.Predicates = append([]query.Predicate{{Field: "active", Op: query.OpEq, Value: true}}, q.Predicates...)

	sql, args, err := r.schema.Compile(userCols, q)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(
			&u.ID, &u.Name, &u.Email, &u.Photo, &u.Role, &u.PasswordHash,
			&u.PasswordChangedAt, &u.ResetTokenHash, &u.ResetTokenExpires,
			&u.Active, &u.CreatedAt, &u.UpdatedAt,
		); err != nil {
			return nil, translate(err)
		}
		users = append(users, u)
	}

	return users, translate(rows.Err())
}
