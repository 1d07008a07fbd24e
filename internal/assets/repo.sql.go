package assets

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-his/meridian/internal/ledger"
	"github.com/meridian-his/meridian/internal/platform/db"
)

// TxRepository exposes transactional depreciation operations. It embeds the
// ledger transaction surface so a schedule entry and its journal entry commit
// or roll back together.
type TxRepository interface {
	ledger.TxRepository
	ListActiveAssets(ctx context.Context, tenantID int64) ([]Asset, error)
	ListAssetTenants(ctx context.Context) ([]int64, error)
	GetAsset(ctx context.Context, tenantID, assetID int64) (Asset, error)
	InsertAsset(ctx context.Context, in RegisterAssetInput) (Asset, error)
	DeactivateAsset(ctx context.Context, tenantID, assetID int64) error
	ScheduleExists(ctx context.Context, assetID int64, month time.Time) (bool, error)
	AccumulatedCents(ctx context.Context, assetID int64) (int64, error)
	InsertScheduleEntry(ctx context.Context, entry ScheduleEntry) (ScheduleEntry, error)
	ListScheduleEntries(ctx context.Context, tenantID, assetID int64) ([]ScheduleEntry, error)
	GetAccountMapping(ctx context.Context, tenantID int64, key string) (int64, error)
}

// Repository persists assets and schedule entries in PostgreSQL.
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
		return errors.New("assets repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{TxRepository: ledger.NewTxRepository(tx), tx: tx})
	})
}

type txRepository struct {
	ledger.TxRepository
	tx pgx.Tx
}

const assetColumns = `id, tenant_id, name, purchase_date, cost_cents, salvage_cents, useful_life_months, method, is_active, created_at, updated_at`

func scanAsset(row pgx.Row) (Asset, error) {
	var a Asset
	err := row.Scan(&a.ID, &a.TenantID, &a.Name, &a.PurchaseDate, &a.CostCents, &a.SalvageCents, &a.UsefulLifeMonths, &a.Method, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Asset{}, ErrAssetNotFound
		}
		return Asset{}, err
	}
	return a, nil
}

func (r *txRepository) ListActiveAssets(ctx context.Context, tenantID int64) ([]Asset, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+assetColumns+` FROM assets WHERE tenant_id=$1 AND is_active ORDER BY id`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Asset
	for rows.Next() {
		var a Asset
		if err := rows.Scan(&a.ID, &a.TenantID, &a.Name, &a.PurchaseDate, &a.CostCents, &a.SalvageCents, &a.UsefulLifeMonths, &a.Method, &a.IsActive, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *txRepository) ListAssetTenants(ctx context.Context) ([]int64, error) {
	rows, err := r.tx.Query(ctx, `SELECT DISTINCT tenant_id FROM assets WHERE is_active ORDER BY tenant_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *txRepository) GetAsset(ctx context.Context, tenantID, assetID int64) (Asset, error) {
	return scanAsset(r.tx.QueryRow(ctx, `SELECT `+assetColumns+` FROM assets WHERE tenant_id=$1 AND id=$2`, tenantID, assetID))
}

func (r *txRepository) InsertAsset(ctx context.Context, in RegisterAssetInput) (Asset, error) {
	return scanAsset(r.tx.QueryRow(ctx, `INSERT INTO assets (tenant_id, name, purchase_date, cost_cents, salvage_cents, useful_life_months, method, is_active)
VALUES ($1,$2,$3,$4,$5,$6,$7,TRUE) RETURNING `+assetColumns,
		in.TenantID, in.Name, in.PurchaseDate, in.CostCents, in.SalvageCents, in.UsefulLifeMonths, in.Method))
}

func (r *txRepository) DeactivateAsset(ctx context.Context, tenantID, assetID int64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE assets SET is_active=FALSE, updated_at=NOW() WHERE tenant_id=$1 AND id=$2`, tenantID, assetID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAssetNotFound
	}
	return nil
}

func (r *txRepository) ScheduleExists(ctx context.Context, assetID int64, month time.Time) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM depreciation_schedule WHERE asset_id=$1 AND month=$2)`, assetID, MonthStart(month)).Scan(&exists)
	return exists, err
}

func (r *txRepository) AccumulatedCents(ctx context.Context, assetID int64) (int64, error) {
	var cents int64
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(SUM(amount_cents), 0) FROM depreciation_schedule WHERE asset_id=$1`, assetID).Scan(&cents)
	return cents, err
}

func (r *txRepository) InsertScheduleEntry(ctx context.Context, entry ScheduleEntry) (ScheduleEntry, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO depreciation_schedule (tenant_id, asset_id, month, amount_cents, entry_id)
VALUES ($1,$2,$3,$4,$5) RETURNING id, created_at`,
		entry.TenantID, entry.AssetID, MonthStart(entry.Month), entry.AmountCents, entry.EntryID)
	if err := row.Scan(&entry.ID, &entry.CreatedAt); err != nil {
		if db.IsUniqueViolation(err, "uq_depreciation_schedule_asset_month") {
			return ScheduleEntry{}, ErrScheduleExists
		}
		return ScheduleEntry{}, err
	}
	entry.Month = MonthStart(entry.Month)
	return entry, nil
}

func (r *txRepository) ListScheduleEntries(ctx context.Context, tenantID, assetID int64) ([]ScheduleEntry, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, tenant_id, asset_id, month, amount_cents, entry_id, created_at
FROM depreciation_schedule WHERE tenant_id=$1 AND asset_id=$2 ORDER BY month`, tenantID, assetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ScheduleEntry
	for rows.Next() {
		var e ScheduleEntry
		if err := rows.Scan(&e.ID, &e.TenantID, &e.AssetID, &e.Month, &e.AmountCents, &e.EntryID, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *txRepository) GetAccountMapping(ctx context.Context, tenantID int64, key string) (int64, error) {
	var accountID int64
	err := r.tx.QueryRow(ctx, `SELECT account_id FROM account_mappings WHERE tenant_id=$1 AND key=$2`, tenantID, key).Scan(&accountID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrMappingNotFound
		}
		return 0, err
	}
	return accountID, nil
}
