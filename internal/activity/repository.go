package activity

import (
	"context"

	"github.com/google/uuid"

	"github.com/membership-portal/backend/internal/models"
	"github.com/membership-portal/backend/pkg/database"
)

// Repository appends and reads the per-user activity log.
type Repository struct {
	db database.DBTX
}

// NewRepository creates an activity repository.
func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

// Append inserts an activity entry and fills its ID and timestamp.
func (r *Repository) Append(ctx context.Context, a *models.Activity) error {
	const q = `INSERT INTO activities (user_id, type, description, points_earned, public)
		VALUES ($1, $2, NULLIF($3,''), NULLIF($4, 0), $5)
		RETURNING id, timestamp`
	return r.db.QueryRow(ctx, q, a.UserID, a.Type, a.Description, a.PointsEarned, a.Public).
		Scan(&a.ID, &a.Timestamp)
}

// ListForUser returns a user's activity, newest first. publicOnly hides account bookkeeping entries.
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID, publicOnly bool) ([]models.Activity, error) {
	rows, err := r.db.Query(ctx, `SELECT id, user_id, type, COALESCE(description,''), COALESCE(points_earned,0), public, timestamp
		FROM activities WHERE user_id = $1 AND (public OR NOT $2)
		ORDER BY timestamp DESC`, userID, publicOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Activity{}
	for rows.Next() {
		var a models.Activity
		if err := rows.Scan(&a.ID, &a.UserID, &a.Type, &a.Description, &a.PointsEarned, &a.Public, &a.Timestamp); err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}
