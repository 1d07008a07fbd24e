package assets

import (
	"errors"
	"strings"
	"time"
)

// Method enumerates supported depreciation methods.
type Method string

const (
	MethodStraightLine     Method = "STRAIGHT_LINE"
	MethodDecliningBalance Method = "DECLINING_BALANCE"
)

// Valid reports whether the method is supported.
func (m Method) Valid() bool {
	return m == MethodStraightLine || m == MethodDecliningBalance
}

// Account mapping keys the scheduler resolves per tenant before posting.
const (
	MappingDepreciationExpense     = "DEPRECIATION_EXPENSE"
	MappingAccumulatedDepreciation = "ACCUM_DEPRECIATION"
)

// Asset is a depreciable fixed asset. All amounts are integer cents.
type Asset struct {
	ID               int64
	TenantID         int64
	Name             string
	PurchaseDate     time.Time
	CostCents        int64
	SalvageCents     int64
	UsefulLifeMonths int
	Method           Method
	IsActive         bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ScheduleEntry records the depreciation recognized for one asset in one
// calendar month. The (asset, month) pair is unique; that constraint is the
// idempotency key of the monthly batch. Entries are never mutated.
type ScheduleEntry struct {
	ID          int64
	TenantID    int64
	AssetID     int64
	Month       time.Time
	AmountCents int64
	EntryID     *int64
	CreatedAt   time.Time
}

// RegisterAssetInput bundles parameters for a new asset.
type RegisterAssetInput struct {
	TenantID         int64
	Name             string
	PurchaseDate     time.Time
	CostCents        int64
	SalvageCents     int64
	UsefulLifeMonths int
	Method           Method
	ActorID          int64
}

// Validate enforces the asset invariants: salvage ≤ cost, useful life > 0.
func (in RegisterAssetInput) Validate() error {
	if in.TenantID == 0 {
		return errors.New("assets: tenant required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return errors.New("assets: name required")
	}
	if in.PurchaseDate.IsZero() {
		return errors.New("assets: purchase date required")
	}
	if in.CostCents < 0 {
		return errors.New("assets: cost must not be negative")
	}
	if in.SalvageCents < 0 || in.SalvageCents > in.CostCents {
		return ErrSalvageExceedsCost
	}
	if in.UsefulLifeMonths <= 0 {
		return ErrInvalidUsefulLife
	}
	if !in.Method.Valid() {
		return ErrUnknownMethod
	}
	return nil
}

// Outcome classifies how one asset fared in a monthly batch run.
type Outcome string

const (
	OutcomePosted          Outcome = "posted"
	OutcomePlanned         Outcome = "planned"
	OutcomeSkippedExisting Outcome = "skipped_existing"
	OutcomeSkippedLocked   Outcome = "skipped_locked"
	OutcomeSkippedZero     Outcome = "skipped_zero"
	OutcomeError           Outcome = "error"
)

// RunLine reports one asset's result within a batch run.
type RunLine struct {
	AssetID     int64
	AssetName   string
	AmountCents int64
	Outcome     Outcome
	EntryID     *int64
	Error       string
}

// RunReport summarises a run_monthly invocation. One asset's failure never
// aborts the rest of the batch; it lands here as an error line.
type RunReport struct {
	TenantID int64
	Month    time.Time
	DryRun   bool
	Lines    []RunLine
}

// Count returns the number of lines with the given outcome.
func (r RunReport) Count(outcome Outcome) int {
	n := 0
	for _, line := range r.Lines {
		if line.Outcome == outcome {
			n++
		}
	}
	return n
}

var (
	// ErrAssetNotFound indicates a missing asset.
	ErrAssetNotFound = errors.New("assets: asset not found")
	// ErrSalvageExceedsCost indicates salvage above cost or below zero.
	ErrSalvageExceedsCost = errors.New("assets: salvage value must be between zero and cost")
	// ErrInvalidUsefulLife indicates a non-positive useful life.
	ErrInvalidUsefulLife = errors.New("assets: useful life must be positive")
	// ErrUnknownMethod indicates an unsupported depreciation method.
	ErrUnknownMethod = errors.New("assets: unknown depreciation method")
	// ErrScheduleExists indicates the (asset, month) entry was already
	// created, by this run or a concurrent one.
	ErrScheduleExists = errors.New("assets: schedule entry already exists for month")
	// ErrMappingNotFound indicates a missing tenant account mapping.
	ErrMappingNotFound = errors.New("assets: account mapping not found")
)
