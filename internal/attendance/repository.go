package attendance

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/membership-portal/backend/internal/models"
	"github.com/membership-portal/backend/pkg/database"
)

// Repository is the attendance ledger. Rows are inserted once and never updated;
// the (user_id, event_id) unique constraint backs the one-row-per-pair invariant.
type Repository struct {
	db database.DBTX
}

// NewRepository creates an attendance repository on a pool or a transaction.
func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

// Record inserts the attendance fact. A second row for the same pair yields models.ErrAlreadyAttended.
func (r *Repository) Record(ctx context.Context, a *models.Attendance) error {
	const q = `INSERT INTO attendances (user_id, event_id, as_staff, points_earned, timestamp)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, timestamp`
	err := r.db.QueryRow(ctx, q, a.UserID, a.EventID, a.AsStaff, a.PointsEarned, a.Timestamp).Scan(&a.ID, &a.Timestamp)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return models.ErrAlreadyAttended
		}
		return fmt.Errorf("insert attendance: %w", err)
	}
	return nil
}

// HasAttended reports whether the user already attended the event. Inside a
// transaction it reads from that transaction's snapshot.
func (r *Repository) HasAttended(ctx context.Context, userID, eventID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM attendances WHERE user_id = $1 AND event_id = $2)`,
		userID, eventID).Scan(&exists)
	return exists, err
}

// CountForEvent returns how many members attended the event.
func (r *Repository) CountForEvent(ctx context.Context, eventID uuid.UUID) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM attendances WHERE event_id = $1`, eventID).Scan(&n)
	return n, err
}

// ListForUser returns the user's attendance joined with the public event, newest first.
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.PublicAttendance, error) {
	rows, err := r.db.Query(ctx, `SELECT a.id, a.as_staff, a.points_earned, a.timestamp,
			e.id, e.title, e.description, e.committee, e.location, COALESCE(e.cover,''), e.start_date, e.end_date, e.attendance_points
		FROM attendances a
		INNER JOIN events e ON e.id = a.event_id
		WHERE a.user_id = $1
		ORDER BY a.timestamp DESC, a.id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.PublicAttendance{}
	for rows.Next() {
		var (
			a models.PublicAttendance
			e models.PublicEvent
		)
		if err := rows.Scan(&a.ID, &a.AsStaff, &a.PointsEarned, &a.Timestamp,
			&e.ID, &e.Title, &e.Description, &e.Committee, &e.Location, &e.Cover, &e.StartDate, &e.EndDate, &e.AttendancePoints); err != nil {
			return nil, err
		}
		a.Event = &e
		list = append(list, a)
	}
	return list, rows.Err()
}

// ListForEvent returns who attended the event, in check-in order.
func (r *Repository) ListForEvent(ctx context.Context, eventID uuid.UUID) ([]models.PublicAttendance, error) {
	rows, err := r.db.Query(ctx, `SELECT a.id, a.as_staff, a.points_earned, a.timestamp,
			u.id, u.first_name, u.last_name, COALESCE(u.picture,''), u.graduation_year, u.major, COALESCE(u.bio,''), u.points
		FROM attendances a
		INNER JOIN users u ON u.id = a.user_id
		WHERE a.event_id = $1
		ORDER BY a.timestamp ASC, a.id`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.PublicAttendance{}
	for rows.Next() {
		var (
			a models.PublicAttendance
			u models.UserPublic
		)
		if err := rows.Scan(&a.ID, &a.AsStaff, &a.PointsEarned, &a.Timestamp,
			&u.ID, &u.FirstName, &u.LastName, &u.Picture, &u.GraduationYear, &u.Major, &u.Bio, &u.Points); err != nil {
			return nil, err
		}
		a.User = &u
		list = append(list, a)
	}
	return list, rows.Err()
}
