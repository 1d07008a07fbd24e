package periods

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-his/meridian/internal/audit"
	"github.com/meridian-his/meridian/internal/platform/db"
)

// TxRepository exposes transactional lock operations.
type TxRepository interface {
	GetLock(ctx context.Context, tenantID int64) (BookLock, error)
	GetLockForUpdate(ctx context.Context, tenantID int64) (BookLock, error)
	UpsertLock(ctx context.Context, in AdvanceLockInput) (BookLock, error)
	InsertAuditRecord(ctx context.Context, rec audit.Record) error
}

// Repository persists book locks in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx executes fn within a RepeatableRead transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("periods repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) getLock(ctx context.Context, tenantID int64, forUpdate bool) (BookLock, error) {
	if forUpdate {
		// Exclusive tenant advisory lock, paired with the shared one the
		// posting path takes. Unlike FOR UPDATE it also covers the tenant's
		// first advance, when there is no row to lock yet.
		if _, err := r.tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, tenantID); err != nil {
			return BookLock{}, err
		}
	}
	query := `SELECT tenant_id, lock_date, updated_by, updated_at FROM book_locks WHERE tenant_id=$1`
	var lock BookLock
	err := r.tx.QueryRow(ctx, query, tenantID).Scan(&lock.TenantID, &lock.LockDate, &lock.UpdatedBy, &lock.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return BookLock{}, ErrLockNotFound
		}
		return BookLock{}, err
	}
	return lock, nil
}

func (r *txRepository) GetLock(ctx context.Context, tenantID int64) (BookLock, error) {
	return r.getLock(ctx, tenantID, false)
}

func (r *txRepository) GetLockForUpdate(ctx context.Context, tenantID int64) (BookLock, error) {
	return r.getLock(ctx, tenantID, true)
}

func (r *txRepository) UpsertLock(ctx context.Context, in AdvanceLockInput) (BookLock, error) {
	var lock BookLock
	err := r.tx.QueryRow(ctx, `INSERT INTO book_locks (tenant_id, lock_date, updated_by)
VALUES ($1,$2,$3)
ON CONFLICT (tenant_id) DO UPDATE SET lock_date = EXCLUDED.lock_date, updated_by = EXCLUDED.updated_by, updated_at = NOW()
RETURNING tenant_id, lock_date, updated_by, updated_at`, in.TenantID, in.LockDate, in.ActorID).
		Scan(&lock.TenantID, &lock.LockDate, &lock.UpdatedBy, &lock.UpdatedAt)
	if err != nil {
		return BookLock{}, err
	}
	return lock, nil
}

func (r *txRepository) InsertAuditRecord(ctx context.Context, rec audit.Record) error {
	return audit.InsertRecordTx(ctx, r.tx, rec)
}
