package assets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/meridian-his/meridian/internal/audit"
	"github.com/meridian-his/meridian/internal/ledger"
)

// SourceModule tags scheduler-originated journal entries.
const SourceModule = "DEPRECIATION"

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// Service computes depreciation schedules and emits monthly postings through
// the ledger engine.
type Service struct {
	repo        RepositoryPort
	now         func() time.Time
	concurrency int
}

// NewService constructs the depreciation service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo, now: time.Now, concurrency: 4}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithConcurrency bounds how many assets a batch run processes in parallel.
func (s *Service) WithConcurrency(n int) {
	if n > 0 {
		s.concurrency = n
	}
}

// RegisterAsset inserts a new depreciable asset.
func (s *Service) RegisterAsset(ctx context.Context, in RegisterAssetInput) (Asset, error) {
	if err := in.Validate(); err != nil {
		return Asset{}, err
	}
	var asset Asset
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inserted, err := tx.InsertAsset(ctx, in)
		if err != nil {
			return err
		}
		asset = inserted
		actor := in.ActorID
		return tx.InsertAuditRecord(ctx, audit.Record{
			TenantID:   in.TenantID,
			EntityType: "asset",
			EntityID:   fmt.Sprintf("%d", inserted.ID),
			Action:     audit.ActionCreate,
			ActorID:    &actor,
			After: map[string]any{
				"name":          inserted.Name,
				"cost_cents":    inserted.CostCents,
				"salvage_cents": inserted.SalvageCents,
				"life_months":   inserted.UsefulLifeMonths,
				"method":        string(inserted.Method),
			},
			At: s.now(),
		})
	})
	if err != nil {
		return Asset{}, err
	}
	return asset, nil
}

// DeactivateAsset removes an asset from future batch runs.
func (s *Service) DeactivateAsset(ctx context.Context, tenantID, assetID, actorID int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		asset, err := tx.GetAsset(ctx, tenantID, assetID)
		if err != nil {
			return err
		}
		if err := tx.DeactivateAsset(ctx, tenantID, assetID); err != nil {
			return err
		}
		return tx.InsertAuditRecord(ctx, audit.Record{
			TenantID:   tenantID,
			EntityType: "asset",
			EntityID:   fmt.Sprintf("%d", assetID),
			Action:     audit.ActionUpdate,
			ActorID:    &actorID,
			Before:     map[string]any{"is_active": asset.IsActive},
			After:      map[string]any{"is_active": false},
			At:         s.now(),
		})
	})
}

// GetAsset loads one asset.
func (s *Service) GetAsset(ctx context.Context, tenantID, assetID int64) (Asset, error) {
	var asset Asset
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		asset, err = tx.GetAsset(ctx, tenantID, assetID)
		return err
	})
	return asset, err
}

// ListSchedule returns the recorded schedule entries for an asset.
func (s *Service) ListSchedule(ctx context.Context, tenantID, assetID int64) ([]ScheduleEntry, error) {
	var entries []ScheduleEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entries, err = tx.ListScheduleEntries(ctx, tenantID, assetID)
		return err
	})
	return entries, err
}

// TenantIDs lists tenants owning at least one active asset.
func (s *Service) TenantIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		ids, err = tx.ListAssetTenants(ctx)
		return err
	})
	return ids, err
}

// RunMonthly processes every active asset of the tenant for the month
// containing asOf. Re-running a month is always safe: assets with an existing
// schedule entry are skipped, and concurrent runs race on the (asset, month)
// unique constraint with the loser treating the conflict as already
// processed. A locked period or a missing account mapping skips the asset
// without failing the batch.
func (s *Service) RunMonthly(ctx context.Context, tenantID int64, asOf time.Time, dryRun bool) (RunReport, error) {
	if tenantID == 0 {
		return RunReport{}, errors.New("assets: tenant required")
	}
	month := MonthStart(asOf)
	report := RunReport{TenantID: tenantID, Month: month, DryRun: dryRun}

	var batch []Asset
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		batch, err = tx.ListActiveAssets(ctx, tenantID)
		return err
	})
	if err != nil {
		return RunReport{}, err
	}

	lines := make([]RunLine, len(batch))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, asset := range batch {
		g.Go(func() error {
			lines[i] = s.processAsset(gctx, asset, month, dryRun)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return RunReport{}, err
	}
	report.Lines = lines
	return report, nil
}

func (s *Service) processAsset(ctx context.Context, asset Asset, month time.Time, dryRun bool) RunLine {
	line := RunLine{AssetID: asset.ID, AssetName: asset.Name}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		exists, err := tx.ScheduleExists(ctx, asset.ID, month)
		if err != nil {
			return err
		}
		if exists {
			line.Outcome = OutcomeSkippedExisting
			return nil
		}
		accumulated, err := tx.AccumulatedCents(ctx, asset.ID)
		if err != nil {
			return err
		}
		amount := MonthlyAmount(asset, month, accumulated)
		line.AmountCents = amount
		if amount == 0 {
			line.Outcome = OutcomeSkippedZero
			return nil
		}
		expenseAccount, err := tx.GetAccountMapping(ctx, asset.TenantID, MappingDepreciationExpense)
		if err != nil {
			return err
		}
		contraAccount, err := tx.GetAccountMapping(ctx, asset.TenantID, MappingAccumulatedDepreciation)
		if err != nil {
			return err
		}
		if dryRun {
			line.Outcome = OutcomePlanned
			return nil
		}
		entry, err := ledger.PostWithinTx(ctx, tx, ledger.PostingInput{
			TenantID:     asset.TenantID,
			Date:         month.AddDate(0, 1, -1),
			Description:  fmt.Sprintf("Depreciation %s %s", asset.Name, month.Format("2006-01")),
			SourceModule: SourceModule,
			SourceID:     uuid.New(),
			Lines: []ledger.PostingLineInput{
				{AccountID: expenseAccount, DebitCents: amount},
				{AccountID: contraAccount, CreditCents: amount},
			},
		}, s.now())
		if err != nil {
			return err
		}
		inserted, err := tx.InsertScheduleEntry(ctx, ScheduleEntry{
			TenantID:    asset.TenantID,
			AssetID:     asset.ID,
			Month:       month,
			AmountCents: amount,
			EntryID:     &entry.ID,
		})
		if err != nil {
			return err
		}
		line.EntryID = inserted.EntryID
		line.Outcome = OutcomePosted
		return tx.InsertAuditRecord(ctx, audit.Record{
			TenantID:   asset.TenantID,
			EntityType: "depreciation_schedule",
			EntityID:   fmt.Sprintf("%d", inserted.ID),
			Action:     audit.ActionSystem,
			After: map[string]any{
				"asset_id":     asset.ID,
				"month":        month.Format("2006-01"),
				"amount_cents": amount,
				"entry_id":     entry.ID,
			},
			At: s.now(),
		})
	})
	switch {
	case err == nil:
	case errors.Is(err, ErrScheduleExists):
		// A concurrent run won the (asset, month) race; ours rolled back.
		line.Outcome = OutcomeSkippedExisting
		line.EntryID = nil
	case errors.Is(err, ledger.ErrPeriodLocked):
		line.Outcome = OutcomeSkippedLocked
	default:
		line.Outcome = OutcomeError
		line.Error = err.Error()
	}
	return line
}
