package periods

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/meridian-his/meridian/internal/audit"
)

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// Service owns the tenant book lock lifecycle. The lock date is the only
// piece of state with a monotonicity check-and-set; the comparison and the
// update always run under one row lock.
type Service struct {
	repo RepositoryPort
	now  func() time.Time
}

// NewService constructs the period lock service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// IsLocked reports whether the date falls in a closed period for the tenant.
func (s *Service) IsLocked(ctx context.Context, tenantID int64, date time.Time) (bool, error) {
	var locked bool
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		lock, err := tx.GetLock(ctx, tenantID)
		if err != nil {
			if errors.Is(err, ErrLockNotFound) {
				return nil
			}
			return err
		}
		locked = !date.After(lock.LockDate)
		return nil
	})
	return locked, err
}

// GetLock returns the current book lock for the tenant.
func (s *Service) GetLock(ctx context.Context, tenantID int64) (BookLock, error) {
	var lock BookLock
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		lock, err = tx.GetLock(ctx, tenantID)
		return err
	})
	return lock, err
}

// AdvanceLock raises the tenant lock date. A date earlier than the current
// lock is rejected and leaves state untouched. Once committed, any posting
// transaction observes the new lock: the posting path holds the shared tenant
// advisory lock that the exclusive one taken here conflicts with, including
// on the tenant's very first advance.
func (s *Service) AdvanceLock(ctx context.Context, in AdvanceLockInput) (BookLock, error) {
	if err := in.Validate(); err != nil {
		return BookLock{}, err
	}
	var lock BookLock
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetLockForUpdate(ctx, in.TenantID)
		if err != nil && !errors.Is(err, ErrLockNotFound) {
			return err
		}
		var before map[string]any
		if err == nil {
			if in.LockDate.Before(current.LockDate) {
				return ErrLockRegression
			}
			before = map[string]any{"lock_date": current.LockDate.Format("2006-01-02")}
		}
		lock, err = tx.UpsertLock(ctx, in)
		if err != nil {
			return err
		}
		return tx.InsertAuditRecord(ctx, audit.Record{
			TenantID:   in.TenantID,
			EntityType: "book_lock",
			EntityID:   fmt.Sprintf("%d", in.TenantID),
			Action:     audit.ActionUpdate,
			ActorID:    &in.ActorID,
			Before:     before,
			After:      map[string]any{"lock_date": in.LockDate.Format("2006-01-02")},
			At:         s.now(),
		})
	})
	if err != nil {
		return BookLock{}, err
	}
	return lock, nil
}
