package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/membership-portal/backend/internal/models"
	"github.com/membership-portal/backend/pkg/database"
)

const userColumns = `id, email, password_hash, first_name, last_name, COALESCE(picture,''),
	access_type, state, COALESCE(access_code,''), graduation_year, major, COALESCE(bio,''),
	points, last_login, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.Password, &u.FirstName, &u.LastName, &u.Picture,
		&u.AccessType, &u.State, &u.AccessCode, &u.GraduationYear, &u.Major, &u.Bio,
		&u.Points, &u.LastLogin, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// Repository handles user persistence. It runs against a pool or a transaction.
type Repository struct {
	db database.DBTX
}

// NewRepository creates a users repository.
func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

// GetByID returns a user by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetByEmail returns a user by email (case-insensitive).
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email))
}

// ListByEmails returns the users matching emails; unknown emails are simply absent.
func (r *Repository) ListByEmails(ctx context.Context, emails []string) ([]*models.User, error) {
	rows, err := r.db.Query(ctx, `SELECT `+userColumns+` FROM users
		WHERE LOWER(email) = ANY(SELECT LOWER(e) FROM UNNEST($1::text[]) AS e) ORDER BY email`, emails)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, u)
	}
	return list, rows.Err()
}

// Create inserts a new user and fills generated fields.
func (r *Repository) Create(ctx context.Context, u *models.User) error {
	const q = `INSERT INTO users (email, password_hash, first_name, last_name, access_type, state, access_code, graduation_year, major)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7,''), $8, $9)
		RETURNING id, points, created_at, updated_at`
	err := r.db.QueryRow(ctx, q, u.Email, u.Password, u.FirstName, u.LastName, u.AccessType, u.State,
		u.AccessCode, u.GraduationYear, u.Major).Scan(&u.ID, &u.Points, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return models.ErrEmailTaken
		}
		return err
	}
	return nil
}

// Activate moves a pending account with the given access code to ACTIVE.
func (r *Repository) Activate(ctx context.Context, accessCode string) (*models.User, error) {
	const q = `UPDATE users SET state = 'ACTIVE', access_code = NULL, updated_at = NOW()
		WHERE access_code = $1 AND state = 'PENDING'
		RETURNING ` + userColumns
	return scanUser(r.db.QueryRow(ctx, q, accessCode))
}

// SetAccessCode replaces the email verification code.
func (r *Repository) SetAccessCode(ctx context.Context, id uuid.UUID, code string) error {
	return r.execOne(ctx, `UPDATE users SET access_code = $1, updated_at = NOW() WHERE id = $2`, code, id)
}

// ProfileUpdate holds the member-editable profile fields; nil fields are left unchanged.
type ProfileUpdate struct {
	FirstName      *string
	LastName       *string
	GraduationYear *int
	Major          *string
	Bio            *string
	PasswordHash   *string
}

// UpdateProfile applies the non-nil fields of p and returns the updated user.
func (r *Repository) UpdateProfile(ctx context.Context, id uuid.UUID, p ProfileUpdate) (*models.User, error) {
	const q = `UPDATE users SET
		first_name = COALESCE($1, first_name),
		last_name = COALESCE($2, last_name),
		graduation_year = COALESCE($3, graduation_year),
		major = COALESCE($4, major),
		bio = COALESCE($5, bio),
		password_hash = COALESCE($6, password_hash),
		updated_at = NOW()
		WHERE id = $7
		RETURNING ` + userColumns
	return scanUser(r.db.QueryRow(ctx, q, p.FirstName, p.LastName, p.GraduationYear, p.Major, p.Bio, p.PasswordHash, id))
}

// UpdatePicture stores the profile picture URL.
func (r *Repository) UpdatePicture(ctx context.Context, id uuid.UUID, url string) error {
	return r.execOne(ctx, `UPDATE users SET picture = $1, updated_at = NOW() WHERE id = $2`, url, id)
}

// TouchLastLogin records a successful login.
func (r *Repository) TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.execOne(ctx, `UPDATE users SET last_login = $1 WHERE id = $2`, at, id)
}

// SetAccessType changes the user's privilege level.
func (r *Repository) SetAccessType(ctx context.Context, id uuid.UUID, access models.AccessType) error {
	return r.execOne(ctx, `UPDATE users SET access_type = $1, updated_at = NOW() WHERE id = $2`, access, id)
}

// AddPoints atomically increments the user's points and returns the new total.
// Points are never read and written back from application code.
func (r *Repository) AddPoints(ctx context.Context, id uuid.UUID, delta int) (int, error) {
	const q = `UPDATE users SET points = points + $1, updated_at = NOW() WHERE id = $2 RETURNING points`
	var total int
	if err := r.db.QueryRow(ctx, q, delta, id).Scan(&total); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, models.ErrUserNotFound
		}
		return 0, fmt.Errorf("add points: %w", err)
	}
	return total, nil
}

// Leaderboard returns active members ordered by points, highest first.
func (r *Repository) Leaderboard(ctx context.Context, offset, limit int) ([]models.UserPublic, error) {
	rows, err := r.db.Query(ctx, `SELECT id, first_name, last_name, COALESCE(picture,''), graduation_year, major, COALESCE(bio,''), points
		FROM users WHERE state = 'ACTIVE' AND access_type <> 'RESTRICTED'
		ORDER BY points DESC, last_name, first_name, id
		OFFSET $1 LIMIT $2`, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := make([]models.UserPublic, 0, limit)
	for rows.Next() {
		var u models.UserPublic
		if err := rows.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Picture, &u.GraduationYear, &u.Major, &u.Bio, &u.Points); err != nil {
			return nil, err
		}
		list = append(list, u)
	}
	return list, rows.Err()
}

func (r *Repository) execOne(ctx context.Context, q string, args ...any) error {
	tag, err := r.db.Exec(ctx, q, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrUserNotFound
	}
	return nil
}
