package periods

import (
	"errors"
	"time"
)

// BookLock closes every period up to and including LockDate for a tenant.
// Lock dates only ever move forward.
type BookLock struct {
	TenantID  int64
	LockDate  time.Time
	UpdatedBy *int64
	UpdatedAt time.Time
}

// AdvanceLockInput bundles parameters for a close-of-period action.
type AdvanceLockInput struct {
	TenantID int64
	LockDate time.Time
	ActorID  int64
}

var (
	// ErrLockRegression indicates an attempt to move the lock date backward.
	ErrLockRegression = errors.New("periods: lock date may only advance")
	// ErrLockNotFound indicates the tenant has never locked a period.
	ErrLockNotFound = errors.New("periods: no book lock for tenant")
)

// Validate ensures the advance input is coherent.
func (in AdvanceLockInput) Validate() error {
	if in.TenantID == 0 {
		return errors.New("periods: tenant required")
	}
	if in.LockDate.IsZero() {
		return errors.New("periods: lock date required")
	}
	return nil
}
