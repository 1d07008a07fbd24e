package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-his/meridian/internal/audit"
)

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// HierarchyPolicy decides whether a child account type may nest under a
// parent account type.
type HierarchyPolicy func(parent, child AccountType) bool

// DefaultHierarchyPolicy requires parent and child to share the same type, so
// a revenue account can never nest under an asset subtree.
func DefaultHierarchyPolicy(parent, child AccountType) bool {
	return parent == child
}

// BalancePort caches account running balances. Implementations must be safe
// to skip: a miss always falls through to storage.
type BalancePort interface {
	Get(ctx context.Context, tenantID, accountID int64) (int64, bool)
	Set(ctx context.Context, tenantID, accountID, cents int64)
	Invalidate(ctx context.Context, tenantID int64)
}

// Service coordinates chart of accounts maintenance and journal posting.
type Service struct {
	repo     RepositoryPort
	policy   HierarchyPolicy
	balances BalancePort
	now      func() time.Time
}

// NewService constructs the ledger service.
func NewService(repo RepositoryPort, balances BalancePort) *Service {
	return &Service{repo: repo, policy: DefaultHierarchyPolicy, balances: balances, now: time.Now}
}

// WithHierarchyPolicy overrides the parent/child account type policy.
func (s *Service) WithHierarchyPolicy(policy HierarchyPolicy) {
	if policy != nil {
		s.policy = policy
	}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateAccount inserts a chart of accounts node.
func (s *Service) CreateAccount(ctx context.Context, in CreateAccountInput) (Account, error) {
	if err := in.Validate(); err != nil {
		return Account{}, err
	}
	var account Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if in.ParentID != nil {
			parent, err := tx.GetAccountByID(ctx, in.TenantID, *in.ParentID)
			if err != nil {
				if errors.Is(err, ErrAccountNotFound) {
					return ErrInvalidParent
				}
				return err
			}
			if !s.policy(parent.Type, in.Type) {
				return ErrInvalidHierarchy
			}
		}
		inserted, err := tx.InsertAccount(ctx, in)
		if err != nil {
			return err
		}
		account = inserted
		return tx.InsertAuditRecord(ctx, audit.Record{
			TenantID:   in.TenantID,
			EntityType: "account",
			EntityID:   fmt.Sprintf("%d", inserted.ID),
			Action:     audit.ActionCreate,
			ActorID:    nullableActor(in.ActorID),
			After: map[string]any{
				"code": inserted.Code,
				"name": inserted.Name,
				"type": string(inserted.Type),
			},
			At: s.now(),
		})
	})
	if err != nil {
		return Account{}, err
	}
	return account, nil
}

// ResolveAccount finds a tenant account by its unique code.
func (s *Service) ResolveAccount(ctx context.Context, tenantID int64, code string) (Account, error) {
	var account Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		account, err = tx.GetAccountByCode(ctx, tenantID, code)
		return err
	})
	return account, err
}

// DeactivateAccount soft-deactivates an account; accounts referenced by
// ledger lines are never deleted.
func (s *Service) DeactivateAccount(ctx context.Context, tenantID, accountID, actorID int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		account, err := tx.GetAccountByID(ctx, tenantID, accountID)
		if err != nil {
			return err
		}
		if err := tx.DeactivateAccount(ctx, tenantID, accountID); err != nil {
			return err
		}
		return tx.InsertAuditRecord(ctx, audit.Record{
			TenantID:   tenantID,
			EntityType: "account",
			EntityID:   fmt.Sprintf("%d", accountID),
			Action:     audit.ActionUpdate,
			ActorID:    nullableActor(actorID),
			Before:     map[string]any{"is_active": account.IsActive},
			After:      map[string]any{"is_active": false},
			At:         s.now(),
		})
	})
}

// PostJournal validates and commits a balanced entry atomically with its
// lines, balance projections, and audit record.
func (s *Service) PostJournal(ctx context.Context, in PostingInput) (JournalEntry, error) {
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entry, err = PostWithinTx(ctx, tx, in, s.now())
		return err
	})
	if err != nil {
		return JournalEntry{}, err
	}
	if s.balances != nil {
		s.balances.Invalidate(ctx, in.TenantID)
	}
	return entry, nil
}

// ReverseJournal creates a new entry with every line's debit and credit
// swapped, dated now, and marks the original REVERSED. Reversal is the only
// correction mechanism for posted entries.
func (s *Service) ReverseJournal(ctx context.Context, in ReverseInput) (JournalEntry, error) {
	if in.EntryID == 0 || in.TenantID == 0 {
		return JournalEntry{}, errors.New("ledger: tenant and entry id required")
	}
	var reversal JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		original, err := tx.GetEntryWithLines(ctx, in.TenantID, in.EntryID)
		if err != nil {
			return err
		}
		if original.Status != EntryStatusPosted {
			return ErrInvalidStatus
		}
		posting := PostingInput{
			TenantID:     in.TenantID,
			Date:         s.now(),
			Description:  reversalDescription(in.Description, original.Number),
			SourceModule: original.SourceModule + ":REVERSAL",
			SourceID:     uuid.New(),
			PostedBy:     nullableActor(in.ActorID),
			ReversesID:   &original.ID,
			Lines:        swapLines(original.Lines),
		}
		reversal, err = PostWithinTx(ctx, tx, posting, s.now())
		if err != nil {
			return err
		}
		if err := tx.MarkEntryReversed(ctx, in.TenantID, original.ID); err != nil {
			return err
		}
		return tx.InsertAuditRecord(ctx, audit.Record{
			TenantID:   in.TenantID,
			EntityType: "journal_entry",
			EntityID:   fmt.Sprintf("%d", original.ID),
			Action:     audit.ActionUpdate,
			ActorID:    nullableActor(in.ActorID),
			Before:     map[string]any{"status": string(EntryStatusPosted)},
			After:      map[string]any{"status": string(EntryStatusReversed), "reversal_id": reversal.ID},
			At:         s.now(),
		})
	})
	if err != nil {
		return JournalEntry{}, err
	}
	if s.balances != nil {
		s.balances.Invalidate(ctx, in.TenantID)
	}
	return reversal, nil
}

// GetJournal loads one entry with its lines.
func (s *Service) GetJournal(ctx context.Context, tenantID, entryID int64) (JournalEntry, error) {
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entry, err = tx.GetEntryWithLines(ctx, tenantID, entryID)
		return err
	})
	return entry, err
}

// ListAccounts retrieves the tenant's chart of accounts ordered by code.
func (s *Service) ListAccounts(ctx context.Context, tenantID int64) ([]Account, error) {
	var accounts []Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		accounts, err = tx.ListAccounts(ctx, tenantID)
		return err
	})
	return accounts, err
}

// AccountBalance returns the running balance projection in cents, signed
// positive on the debit side. Reads go through the cache when configured.
func (s *Service) AccountBalance(ctx context.Context, tenantID, accountID int64) (int64, error) {
	if s.balances != nil {
		if cents, ok := s.balances.Get(ctx, tenantID, accountID); ok {
			return cents, nil
		}
	}
	var cents int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		cents, err = tx.GetAccountBalance(ctx, tenantID, accountID)
		return err
	})
	if err != nil {
		return 0, err
	}
	if s.balances != nil {
		s.balances.Set(ctx, tenantID, accountID, cents)
	}
	return cents, nil
}

// PostWithinTx runs the full posting validation sequence and persists the
// entry, its lines, the source link, balance deltas, and the audit record on
// the supplied transaction. Collaborating modules use it to commit companion
// rows atomically with the posting. Validation failures are reported in a
// fixed order: empty entry, unknown account, locked period, imbalance,
// malformed line.
func PostWithinTx(ctx context.Context, tx TxRepository, in PostingInput, now time.Time) (JournalEntry, error) {
	if in.TenantID == 0 {
		return JournalEntry{}, errors.New("ledger: tenant required")
	}
	if len(in.Lines) == 0 {
		return JournalEntry{}, ErrEmptyEntry
	}
	if in.SourceModule == "" || in.SourceID == uuid.Nil {
		return JournalEntry{}, errors.New("ledger: source module and id required")
	}

	ids := make([]int64, 0, len(in.Lines))
	for _, line := range in.Lines {
		ids = append(ids, line.AccountID)
	}
	accounts, err := tx.GetAccountsByIDs(ctx, in.TenantID, ids)
	if err != nil {
		return JournalEntry{}, err
	}
	for idx, line := range in.Lines {
		if _, ok := accounts[line.AccountID]; !ok {
			return JournalEntry{}, fmt.Errorf("%w: line %d account %d", ErrUnknownAccount, idx, line.AccountID)
		}
	}

	lockDate, err := tx.GetBookLockDate(ctx, in.TenantID)
	if err != nil {
		return JournalEntry{}, err
	}
	if lockDate != nil && !in.Date.After(*lockDate) {
		return JournalEntry{}, ErrPeriodLocked
	}

	var debits, credits int64
	for _, line := range in.Lines {
		debits += line.DebitCents
		credits += line.CreditCents
	}
	if debits != credits {
		return JournalEntry{}, UnbalancedError{DeltaCents: debits - credits}
	}
	for idx, line := range in.Lines {
		if line.DebitCents < 0 || line.CreditCents < 0 || (line.DebitCents > 0 && line.CreditCents > 0) {
			return JournalEntry{}, fmt.Errorf("%w: line %d", ErrMalformedLine, idx)
		}
	}

	entry, err := tx.InsertJournalEntry(ctx, in)
	if err != nil {
		return JournalEntry{}, err
	}
	lines, err := tx.InsertLedgerLines(ctx, entry.ID, in.Lines)
	if err != nil {
		return JournalEntry{}, err
	}
	entry.Lines = lines
	if err := tx.LinkSource(ctx, in.TenantID, in.SourceModule, in.SourceID, entry.ID); err != nil {
		return JournalEntry{}, err
	}
	for _, line := range in.Lines {
		if err := tx.ApplyBalanceDelta(ctx, in.TenantID, line.AccountID, line.BalanceDelta()); err != nil {
			return JournalEntry{}, err
		}
	}

	action := audit.ActionCreate
	if in.PostedBy == nil {
		action = audit.ActionSystem
	}
	err = tx.InsertAuditRecord(ctx, audit.Record{
		TenantID:   in.TenantID,
		EntityType: "journal_entry",
		EntityID:   fmt.Sprintf("%d", entry.ID),
		Action:     action,
		ActorID:    in.PostedBy,
		After: map[string]any{
			"number":        entry.Number,
			"date":          in.Date.Format("2006-01-02"),
			"source_module": in.SourceModule,
			"source_id":     in.SourceID.String(),
			"total_cents":   debits,
		},
		At: now,
	})
	if err != nil {
		return JournalEntry{}, err
	}
	return entry, nil
}

func swapLines(lines []LedgerLine) []PostingLineInput {
	out := make([]PostingLineInput, 0, len(lines))
	for _, line := range lines {
		out = append(out, PostingLineInput{
			AccountID:   line.AccountID,
			DebitCents:  line.CreditCents,
			CreditCents: line.DebitCents,
			CostCenter:  line.CostCenter,
			Department:  line.Department,
		})
	}
	return out
}

func reversalDescription(description string, number int64) string {
	if description != "" {
		return description
	}
	return fmt.Sprintf("Reversal of JE %d", number)
}

func nullableActor(actorID int64) *int64 {
	if actorID == 0 {
		return nil
	}
	return &actorID
}
