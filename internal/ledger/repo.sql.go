package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-his/meridian/internal/audit"
	"github.com/meridian-his/meridian/internal/platform/db"
)

// TxRepository exposes the transactional operations of the posting engine.
type TxRepository interface {
	ListAccounts(ctx context.Context, tenantID int64) ([]Account, error)
	GetAccountByID(ctx context.Context, tenantID, accountID int64) (Account, error)
	GetAccountByCode(ctx context.Context, tenantID int64, code string) (Account, error)
	GetAccountsByIDs(ctx context.Context, tenantID int64, ids []int64) (map[int64]Account, error)
	InsertAccount(ctx context.Context, in CreateAccountInput) (Account, error)
	DeactivateAccount(ctx context.Context, tenantID, accountID int64) error
	GetBookLockDate(ctx context.Context, tenantID int64) (*time.Time, error)
	InsertJournalEntry(ctx context.Context, in PostingInput) (JournalEntry, error)
	InsertLedgerLines(ctx context.Context, entryID int64, lines []PostingLineInput) ([]LedgerLine, error)
	LinkSource(ctx context.Context, tenantID int64, module string, ref uuid.UUID, entryID int64) error
	ApplyBalanceDelta(ctx context.Context, tenantID, accountID, deltaCents int64) error
	GetAccountBalance(ctx context.Context, tenantID, accountID int64) (int64, error)
	GetEntryWithLines(ctx context.Context, tenantID, entryID int64) (JournalEntry, error)
	MarkEntryReversed(ctx context.Context, tenantID, entryID int64) error
	InsertAuditRecord(ctx context.Context, rec audit.Record) error
}

// Repository persists ledger entities in PostgreSQL.
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
		return errors.New("ledger repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewTxRepository(tx))
	})
}

// NewTxRepository wraps an open transaction. Collaborating modules embed it
// so their companion rows commit atomically with a posting.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

type txRepository struct {
	tx pgx.Tx
}

const accountColumns = `id, tenant_id, code, name, type, parent_id, is_active, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.TenantID, &a.Code, &a.Name, &a.Type, &a.ParentID, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	return a, nil
}

func (r *txRepository) ListAccounts(ctx context.Context, tenantID int64) ([]Account, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE tenant_id=$1 ORDER BY code`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.TenantID, &a.Code, &a.Name, &a.Type, &a.ParentID, &a.IsActive, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *txRepository) GetAccountByID(ctx context.Context, tenantID, accountID int64) (Account, error) {
	return scanAccount(r.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE tenant_id=$1 AND id=$2`, tenantID, accountID))
}

func (r *txRepository) GetAccountByCode(ctx context.Context, tenantID int64, code string) (Account, error) {
	return scanAccount(r.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE tenant_id=$1 AND code=$2`, tenantID, code))
}

func (r *txRepository) GetAccountsByIDs(ctx context.Context, tenantID int64, ids []int64) (map[int64]Account, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE tenant_id=$1 AND id = ANY($2)`, tenantID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	accounts := make(map[int64]Account, len(ids))
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.TenantID, &a.Code, &a.Name, &a.Type, &a.ParentID, &a.IsActive, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		accounts[a.ID] = a
	}
	return accounts, rows.Err()
}

func (r *txRepository) InsertAccount(ctx context.Context, in CreateAccountInput) (Account, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO accounts (tenant_id, code, name, type, parent_id, is_active)
VALUES ($1,$2,$3,$4,$5,TRUE) RETURNING `+accountColumns, in.TenantID, in.Code, in.Name, in.Type, in.ParentID)
	account, err := scanAccount(row)
	if err != nil {
		if db.IsUniqueViolation(err, "uq_accounts_tenant_code") {
			return Account{}, ErrDuplicateCode
		}
		return Account{}, err
	}
	return account, nil
}

func (r *txRepository) DeactivateAccount(ctx context.Context, tenantID, accountID int64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE accounts SET is_active=FALSE, updated_at=NOW() WHERE tenant_id=$1 AND id=$2`, tenantID, accountID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// GetBookLockDate reads the tenant lock date under a shared tenant advisory
// lock. The advisory pair serializes postings against a concurrent
// advance_lock in the periods module even before the tenant's first
// book_locks row exists, where a FOR SHARE read finds nothing to lock.
func (r *txRepository) GetBookLockDate(ctx context.Context, tenantID int64) (*time.Time, error) {
	if _, err := r.tx.Exec(ctx, `SELECT pg_advisory_xact_lock_shared($1)`, tenantID); err != nil {
		return nil, err
	}
	var lockDate time.Time
	err := r.tx.QueryRow(ctx, `SELECT lock_date FROM book_locks WHERE tenant_id=$1`, tenantID).Scan(&lockDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &lockDate, nil
}

func (r *txRepository) InsertJournalEntry(ctx context.Context, in PostingInput) (JournalEntry, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO journal_entries (tenant_id, date, description, source_module, source_id, posted_by, reverses_id, status)
VALUES ($1,$2,$3,$4,$5,$6,$7,'POSTED') RETURNING id, number, posted_at, created_at, updated_at`,
		in.TenantID, in.Date, in.Description, in.SourceModule, in.SourceID, in.PostedBy, in.ReversesID)
	entry := JournalEntry{
		TenantID:     in.TenantID,
		Date:         in.Date,
		Description:  in.Description,
		SourceModule: in.SourceModule,
		SourceID:     in.SourceID,
		PostedBy:     in.PostedBy,
		ReversesID:   in.ReversesID,
		Status:       EntryStatusPosted,
	}
	if err := row.Scan(&entry.ID, &entry.Number, &entry.PostedAt, &entry.CreatedAt, &entry.UpdatedAt); err != nil {
		return JournalEntry{}, err
	}
	return entry, nil
}

func (r *txRepository) InsertLedgerLines(ctx context.Context, entryID int64, lines []PostingLineInput) ([]LedgerLine, error) {
	out := make([]LedgerLine, 0, len(lines))
	for _, line := range lines {
		var inserted LedgerLine
		err := r.tx.QueryRow(ctx, `INSERT INTO ledger_lines (entry_id, account_id, debit_cents, credit_cents, cost_center, department)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id, created_at`,
			entryID, line.AccountID, line.DebitCents, line.CreditCents, line.CostCenter, line.Department).
			Scan(&inserted.ID, &inserted.CreatedAt)
		if err != nil {
			return nil, err
		}
		inserted.EntryID = entryID
		inserted.AccountID = line.AccountID
		inserted.DebitCents = line.DebitCents
		inserted.CreditCents = line.CreditCents
		inserted.CostCenter = line.CostCenter
		inserted.Department = line.Department
		out = append(out, inserted)
	}
	return out, nil
}

func (r *txRepository) LinkSource(ctx context.Context, tenantID int64, module string, ref uuid.UUID, entryID int64) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO source_links (tenant_id, module, ref_id, entry_id) VALUES ($1,$2,$3,$4)`, tenantID, module, ref, entryID)
	if err != nil {
		if db.IsUniqueViolation(err, "uq_source_links") {
			return ErrSourceAlreadyLinked
		}
		return err
	}
	return nil
}

func (r *txRepository) ApplyBalanceDelta(ctx context.Context, tenantID, accountID, deltaCents int64) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO account_balances (tenant_id, account_id, balance_cents)
VALUES ($1,$2,$3)
ON CONFLICT (tenant_id, account_id) DO UPDATE SET balance_cents = account_balances.balance_cents + EXCLUDED.balance_cents, updated_at = NOW()`,
		tenantID, accountID, deltaCents)
	return err
}

func (r *txRepository) GetAccountBalance(ctx context.Context, tenantID, accountID int64) (int64, error) {
	var cents int64
	err := r.tx.QueryRow(ctx, `SELECT balance_cents FROM account_balances WHERE tenant_id=$1 AND account_id=$2`, tenantID, accountID).Scan(&cents)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return cents, nil
}

func (r *txRepository) GetEntryWithLines(ctx context.Context, tenantID, entryID int64) (JournalEntry, error) {
	var entry JournalEntry
	err := r.tx.QueryRow(ctx, `SELECT id, tenant_id, number, date, description, source_module, source_id, posted_by, posted_at, status, reverses_id, created_at, updated_at
FROM journal_entries WHERE tenant_id=$1 AND id=$2`, tenantID, entryID).
		Scan(&entry.ID, &entry.TenantID, &entry.Number, &entry.Date, &entry.Description, &entry.SourceModule, &entry.SourceID,
			&entry.PostedBy, &entry.PostedAt, &entry.Status, &entry.ReversesID, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, ErrEntryNotFound
		}
		return JournalEntry{}, err
	}
	rows, err := r.tx.Query(ctx, `SELECT id, entry_id, account_id, debit_cents, credit_cents, cost_center, department, created_at
FROM ledger_lines WHERE entry_id=$1 ORDER BY id ASC`, entryID)
	if err != nil {
		return JournalEntry{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line LedgerLine
		if err := rows.Scan(&line.ID, &line.EntryID, &line.AccountID, &line.DebitCents, &line.CreditCents, &line.CostCenter, &line.Department, &line.CreatedAt); err != nil {
			return JournalEntry{}, err
		}
		entry.Lines = append(entry.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return JournalEntry{}, err
	}
	return entry, nil
}

// MarkEntryReversed transitions POSTED to REVERSED. The status predicate in
// the update is the guard against double reversal.
func (r *txRepository) MarkEntryReversed(ctx context.Context, tenantID, entryID int64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET status='REVERSED', updated_at=NOW() WHERE tenant_id=$1 AND id=$2 AND status='POSTED'`, tenantID, entryID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrInvalidStatus
	}
	return nil
}

func (r *txRepository) InsertAuditRecord(ctx context.Context, rec audit.Record) error {
	return audit.InsertRecordTx(ctx, r.tx, rec)
}
