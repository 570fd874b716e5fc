package attendance

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/membership-portal/backend/internal/activity"
	"github.com/membership-portal/backend/internal/models"
	"github.com/membership-portal/backend/internal/users"
	"github.com/membership-portal/backend/pkg/database"
)

// IsoLevel is the isolation every award path runs at. It forbids dirty and
// non-repeatable reads, so the in-transaction re-check sees a stable snapshot and
// a concurrent committer surfaces as a unique violation or a serialization failure.
const IsoLevel = pgx.RepeatableRead

// PgStore runs award transactions on PostgreSQL.
type PgStore struct {
	db database.TxBeginner
}

// NewPgStore creates a transactional store on db (normally *pgxpool.Pool).
func NewPgStore(db database.TxBeginner) *PgStore {
	return &PgStore{db: db}
}

// WithinTx runs fn in one RepeatableRead transaction; see database.WithTx for retry semantics.
func (s *PgStore) WithinTx(ctx context.Context, fn func(Tx) error) error {
	return database.WithTx(ctx, s.db, pgx.TxOptions{IsoLevel: IsoLevel}, func(tx pgx.Tx) error {
		return fn(&pgTx{
			ledger:     NewRepository(tx),
			activities: activity.NewRepository(tx),
			users:      users.NewRepository(tx),
		})
	})
}

type pgTx struct {
	ledger     *Repository
	activities *activity.Repository
	users      *users.Repository
}

func (t *pgTx) HasAttended(ctx context.Context, userID, eventID uuid.UUID) (bool, error) {
	return t.ledger.HasAttended(ctx, userID, eventID)
}

func (t *pgTx) Record(ctx context.Context, a *models.Attendance) error {
	return t.ledger.Record(ctx, a)
}

func (t *pgTx) AppendActivity(ctx context.Context, a *models.Activity) error {
	return t.activities.Append(ctx, a)
}

func (t *pgTx) AddPoints(ctx context.Context, userID uuid.UUID, delta int) (int, error) {
	return t.users.AddPoints(ctx, userID, delta)
}
