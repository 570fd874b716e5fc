package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/membership-portal/backend/internal/models"
	"github.com/membership-portal/backend/pkg/database"
)

const eventColumns = `id, title, description, committee, location, COALESCE(cover,''),
	start_date, end_date, attendance_code, attendance_points, staff_points, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (*models.Event, error) {
	var e models.Event
	err := row.Scan(&e.ID, &e.Title, &e.Description, &e.Committee, &e.Location, &e.Cover,
		&e.StartDate, &e.EndDate, &e.AttendanceCode, &e.AttendancePoints, &e.StaffPoints, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrEventNotFound
		}
		return nil, err
	}
	return &e, nil
}

// Repository handles event persistence.
type Repository struct {
	db database.DBTX
}

// NewRepository creates an events repository.
func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

// Create inserts a new event.
func (r *Repository) Create(ctx context.Context, e *models.Event) error {
	const q = `INSERT INTO events (title, description, committee, location, cover, start_date, end_date, attendance_code, attendance_points, staff_points)
		VALUES ($1, $2, $3, $4, NULLIF($5,''), $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`
	err := r.db.QueryRow(ctx, q, e.Title, e.Description, e.Committee, e.Location, e.Cover,
		e.StartDate, e.EndDate, e.AttendanceCode, e.AttendancePoints, e.StaffPoints).
		Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if database.IsUniqueViolation(err) {
		return models.ErrCodeTaken
	}
	return err
}

// GetByID returns an event by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	return scanEvent(r.db.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
}

// GetByAttendanceCode resolves the event a member is checking into. Codes compare case-insensitively.
func (r *Repository) GetByAttendanceCode(ctx context.Context, code string) (*models.Event, error) {
	return scanEvent(r.db.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE LOWER(attendance_code) = LOWER($1)`, code))
}

// ListFilter narrows event listings.
type ListFilter struct {
	Before    *time.Time // events that ended before
	After     *time.Time // events that end after
	Committee string
	Offset    int
	Limit     int
}

// List returns events matching f, ordered by start date (descending for past listings).
func (r *Repository) List(ctx context.Context, f ListFilter) ([]*models.Event, error) {
	q := `SELECT ` + eventColumns + ` FROM events WHERE ($1::timestamptz IS NULL OR end_date < $1)
		AND ($2::timestamptz IS NULL OR end_date >= $2)
		AND ($3 = '' OR LOWER(committee) = LOWER($3))`
	if f.Before != nil {
		q += ` ORDER BY start_date DESC`
	} else {
		q += ` ORDER BY start_date ASC`
	}
	q += ` OFFSET $4`
	args := []any{f.Before, f.After, f.Committee, f.Offset}
	if f.Limit > 0 {
		q += ` LIMIT $5`
		args = append(args, f.Limit)
	}
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

// Update writes the editable fields of e. The attendance code is read back, never written.
func (r *Repository) Update(ctx context.Context, e *models.Event) error {
	const q = `UPDATE events SET title = $1, description = $2, committee = $3, location = $4, cover = NULLIF($5,''),
		start_date = $6, end_date = $7, attendance_points = $8, staff_points = $9, updated_at = NOW()
		WHERE id = $10
		RETURNING attendance_code, updated_at`
	err := r.db.QueryRow(ctx, q, e.Title, e.Description, e.Committee, e.Location, e.Cover,
		e.StartDate, e.EndDate, e.AttendancePoints, e.StaffPoints, e.ID).Scan(&e.AttendanceCode, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrEventNotFound
	}
	return err
}

// Delete removes an event that nobody has attended.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		if database.PgCode(err) == database.CodeForeignKeyViolation {
			return models.ErrEventHasAttendees
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrEventNotFound
	}
	return nil
}
