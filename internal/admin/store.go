package admin

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/membership-portal/backend/internal/activity"
	"github.com/membership-portal/backend/internal/models"
	"github.com/membership-portal/backend/internal/users"
	"github.com/membership-portal/backend/pkg/database"
)

// Tx is the set of writes an admin batch performs inside one transaction.
type Tx interface {
	AppendActivity(ctx context.Context, a *models.Activity) error
	AddPoints(ctx context.Context, userID uuid.UUID, delta int) (int, error)
	SetAccessType(ctx context.Context, userID uuid.UUID, access models.AccessType) error
}

// Store opens admin batch transactions.
type Store interface {
	WithinTx(ctx context.Context, fn func(Tx) error) error
}

// PgStore runs admin batches on PostgreSQL. Points still move only through the
// atomic increment, so ReadCommitted is enough here.
type PgStore struct {
	db database.TxBeginner
}

// NewPgStore creates a transactional store on db.
func NewPgStore(db database.TxBeginner) *PgStore {
	return &PgStore{db: db}
}

// WithinTx runs fn in one transaction.
func (s *PgStore) WithinTx(ctx context.Context, fn func(Tx) error) error {
	return database.WithTx(ctx, s.db, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(&pgTx{activities: activity.NewRepository(tx), users: users.NewRepository(tx)})
	})
}

type pgTx struct {
	activities *activity.Repository
	users      *users.Repository
}

func (t *pgTx) AppendActivity(ctx context.Context, a *models.Activity) error {
	return t.activities.Append(ctx, a)
}

func (t *pgTx) AddPoints(ctx context.Context, userID uuid.UUID, delta int) (int, error) {
	return t.users.AddPoints(ctx, userID, delta)
}

func (t *pgTx) SetAccessType(ctx context.Context, userID uuid.UUID, access models.AccessType) error {
	return t.users.SetAccessType(ctx, userID, access)
}
