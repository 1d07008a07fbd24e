package ledger

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/meridian-his/meridian/internal/audit"
)

type memRepo struct {
	accounts    map[int64]Account
	nextAccount int64
	entries     map[int64]*JournalEntry
	nextEntry   int64
	nextLine    int64
	links       map[string]int64
	balances    map[string]int64
	lockDate    *time.Time
	audits      []audit.Record
}

func newMemRepo() *memRepo {
	return &memRepo{
		accounts: make(map[int64]Account),
		entries:  make(map[int64]*JournalEntry),
		links:    make(map[string]int64),
		balances: make(map[string]int64),
	}
}

func (m *memRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, m)
}

func (m *memRepo) ListAccounts(_ context.Context, tenantID int64) ([]Account, error) {
	var out []Account
	for _, a := range m.accounts {
		if a.TenantID == tenantID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memRepo) GetAccountByID(_ context.Context, tenantID, accountID int64) (Account, error) {
	a, ok := m.accounts[accountID]
	if !ok || a.TenantID != tenantID {
		return Account{}, ErrAccountNotFound
	}
	return a, nil
}

func (m *memRepo) GetAccountByCode(_ context.Context, tenantID int64, code string) (Account, error) {
	for _, a := range m.accounts {
		if a.TenantID == tenantID && a.Code == code {
			return a, nil
		}
	}
	return Account{}, ErrAccountNotFound
}

func (m *memRepo) GetAccountsByIDs(_ context.Context, tenantID int64, ids []int64) (map[int64]Account, error) {
	out := make(map[int64]Account, len(ids))
	for _, id := range ids {
		if a, ok := m.accounts[id]; ok && a.TenantID == tenantID {
			out[id] = a
		}
	}
	return out, nil
}

func (m *memRepo) InsertAccount(_ context.Context, in CreateAccountInput) (Account, error) {
	for _, a := range m.accounts {
		if a.TenantID == in.TenantID && a.Code == in.Code {
			return Account{}, ErrDuplicateCode
		}
	}
	m.nextAccount++
	account := Account{
		ID:       m.nextAccount,
		TenantID: in.TenantID,
		Code:     in.Code,
		Name:     in.Name,
		Type:     in.Type,
		ParentID: in.ParentID,
		IsActive: true,
	}
	m.accounts[account.ID] = account
	return account, nil
}

func (m *memRepo) DeactivateAccount(_ context.Context, tenantID, accountID int64) error {
	a, ok := m.accounts[accountID]
	if !ok || a.TenantID != tenantID {
		return ErrAccountNotFound
	}
	a.IsActive = false
	m.accounts[accountID] = a
	return nil
}

func (m *memRepo) GetBookLockDate(_ context.Context, _ int64) (*time.Time, error) {
	return m.lockDate, nil
}

func (m *memRepo) InsertJournalEntry(_ context.Context, in PostingInput) (JournalEntry, error) {
	m.nextEntry++
	entry := &JournalEntry{
		ID:           m.nextEntry,
		TenantID:     in.TenantID,
		Number:       m.nextEntry,
		Date:         in.Date,
		Description:  in.Description,
		SourceModule: in.SourceModule,
		SourceID:     in.SourceID,
		PostedBy:     in.PostedBy,
		ReversesID:   in.ReversesID,
		Status:       EntryStatusPosted,
		PostedAt:     time.Now(),
	}
	m.entries[entry.ID] = entry
	return *entry, nil
}

func (m *memRepo) InsertLedgerLines(_ context.Context, entryID int64, lines []PostingLineInput) ([]LedgerLine, error) {
	entry, ok := m.entries[entryID]
	if !ok {
		return nil, ErrEntryNotFound
	}
	out := make([]LedgerLine, 0, len(lines))
	for _, line := range lines {
		m.nextLine++
		inserted := LedgerLine{
			ID:          m.nextLine,
			EntryID:     entryID,
			AccountID:   line.AccountID,
			DebitCents:  line.DebitCents,
			CreditCents: line.CreditCents,
			CostCenter:  line.CostCenter,
			Department:  line.Department,
		}
		entry.Lines = append(entry.Lines, inserted)
		out = append(out, inserted)
	}
	return out, nil
}

func (m *memRepo) LinkSource(_ context.Context, tenantID int64, module string, ref uuid.UUID, entryID int64) error {
	key := fmt.Sprintf("%d|%s|%s", tenantID, module, ref)
	if _, ok := m.links[key]; ok {
		return ErrSourceAlreadyLinked
	}
	m.links[key] = entryID
	return nil
}

func (m *memRepo) ApplyBalanceDelta(_ context.Context, tenantID, accountID, deltaCents int64) error {
	m.balances[fmt.Sprintf("%d|%d", tenantID, accountID)] += deltaCents
	return nil
}

func (m *memRepo) GetAccountBalance(_ context.Context, tenantID, accountID int64) (int64, error) {
	return m.balances[fmt.Sprintf("%d|%d", tenantID, accountID)], nil
}

func (m *memRepo) GetEntryWithLines(_ context.Context, tenantID, entryID int64) (JournalEntry, error) {
	entry, ok := m.entries[entryID]
	if !ok || entry.TenantID != tenantID {
		return JournalEntry{}, ErrEntryNotFound
	}
	return *entry, nil
}

func (m *memRepo) MarkEntryReversed(_ context.Context, tenantID, entryID int64) error {
	entry, ok := m.entries[entryID]
	if !ok || entry.TenantID != tenantID || entry.Status != EntryStatusPosted {
		return ErrInvalidStatus
	}
	entry.Status = EntryStatusReversed
	return nil
}

func (m *memRepo) InsertAuditRecord(_ context.Context, rec audit.Record) error {
	m.audits = append(m.audits, rec)
	return nil
}

func seedAccounts(t *testing.T, repo *memRepo, tenantID int64) (cash, revenue Account) {
	t.Helper()
	ctx := context.Background()
	var err error
	cash, err = repo.InsertAccount(ctx, CreateAccountInput{TenantID: tenantID, Code: "1000", Name: "Cash", Type: AccountTypeAsset})
	require.NoError(t, err)
	revenue, err = repo.InsertAccount(ctx, CreateAccountInput{TenantID: tenantID, Code: "4000", Name: "Patient Revenue", Type: AccountTypeRevenue})
	require.NoError(t, err)
	return cash, revenue
}

func actorPtr(id int64) *int64 { return &id }

func TestPostJournalBalanced(t *testing.T) {
	repo := newMemRepo()
	service := NewService(repo, nil)
	cash, revenue := seedAccounts(t, repo, 1)

	entry, err := service.PostJournal(context.Background(), PostingInput{
		TenantID:     1,
		Date:         time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		Description:  "Consultation fee",
		SourceModule: "BILLING",
		SourceID:     uuid.New(),
		PostedBy:     actorPtr(7),
		Lines: []PostingLineInput{
			{AccountID: cash.ID, DebitCents: 50_000},
			{AccountID: revenue.ID, CreditCents: 50_000},
		},
	})
	require.NoError(t, err)
	require.NotZero(t, entry.ID)
	require.Equal(t, EntryStatusPosted, entry.Status)
	require.Len(t, entry.Lines, 2)

	cashBalance, err := service.AccountBalance(context.Background(), 1, cash.ID)
	require.NoError(t, err)
	require.Equal(t, int64(50_000), cashBalance)

	revenueBalance, err := service.AccountBalance(context.Background(), 1, revenue.ID)
	require.NoError(t, err)
	require.Equal(t, int64(-50_000), revenueBalance)

	require.Len(t, repo.audits, 1)
	require.Equal(t, audit.ActionCreate, repo.audits[0].Action)
	require.Equal(t, "journal_entry", repo.audits[0].EntityType)
}

func TestPostJournalSystemActor(t *testing.T) {
	repo := newMemRepo()
	service := NewService(repo, nil)
	cash, revenue := seedAccounts(t, repo, 1)

	_, err := service.PostJournal(context.Background(), PostingInput{
		TenantID:     1,
		Date:         time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		SourceModule: "DEPRECIATION",
		SourceID:     uuid.New(),
		Lines: []PostingLineInput{
			{AccountID: cash.ID, DebitCents: 750},
			{AccountID: revenue.ID, CreditCents: 750},
		},
	})
	require.NoError(t, err)
	last := repo.audits[len(repo.audits)-1]
	require.Equal(t, audit.ActionSystem, last.Action)
	require.Nil(t, last.ActorID)
}

func TestPostJournalUnbalanced(t *testing.T) {
	repo := newMemRepo()
	service := NewService(repo, nil)
	cash, revenue := seedAccounts(t, repo, 1)

	_, err := service.PostJournal(context.Background(), PostingInput{
		TenantID:     1,
		Date:         time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		SourceModule: "BILLING",
		SourceID:     uuid.New(),
		Lines: []PostingLineInput{
			{AccountID: cash.ID, DebitCents: 60_000},
			{AccountID: revenue.ID, CreditCents: 50_000},
		},
	})
	require.ErrorIs(t, err, ErrUnbalanced)

	var unbalanced UnbalancedError
	require.ErrorAs(t, err, &unbalanced)
	require.Equal(t, int64(10_000), unbalanced.DeltaCents)
	require.Empty(t, repo.entries)
}

func TestPostJournalEmptyEntry(t *testing.T) {
	repo := newMemRepo()
	service := NewService(repo, nil)

	_, err := service.PostJournal(context.Background(), PostingInput{
		TenantID:     1,
		Date:         time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		SourceModule: "BILLING",
		SourceID:     uuid.New(),
	})
	require.ErrorIs(t, err, ErrEmptyEntry)
}

func TestPostJournalUnknownAccount(t *testing.T) {
	repo := newMemRepo()
	service := NewService(repo, nil)
	cash, _ := seedAccounts(t, repo, 1)

	_, err := service.PostJournal(context.Background(), PostingInput{
		TenantID:     1,
		Date:         time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		SourceModule: "BILLING",
		SourceID:     uuid.New(),
		Lines: []PostingLineInput{
			{AccountID: cash.ID, DebitCents: 100},
			{AccountID: 999, CreditCents: 100},
		},
	})
	require.ErrorIs(t, err, ErrUnknownAccount)
}

func TestPostJournalMalformedLine(t *testing.T) {
	repo := newMemRepo()
	service := NewService(repo, nil)
	cash, revenue := seedAccounts(t, repo, 1)

	// Balanced in aggregate, but one line carries both sides.
	_, err := service.PostJournal(context.Background(), PostingInput{
		TenantID:     1,
		Date:         time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		SourceModule: "BILLING",
		SourceID:     uuid.New(),
		Lines: []PostingLineInput{
			{AccountID: cash.ID, DebitCents: 100, CreditCents: 50},
			{AccountID: revenue.ID, CreditCents: 50},
		},
	})
	require.ErrorIs(t, err, ErrMalformedLine)
}

func TestPostJournalPeriodLocked(t *testing.T) {
	repo := newMemRepo()
	service := NewService(repo, nil)
	cash, revenue := seedAccounts(t, repo, 1)
	lock := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	repo.lockDate = &lock

	post := func(date time.Time) error {
		_, err := service.PostJournal(context.Background(), PostingInput{
			TenantID:     1,
			Date:         date,
			SourceModule: "BILLING",
			SourceID:     uuid.New(),
			Lines: []PostingLineInput{
				{AccountID: cash.ID, DebitCents: 100},
				{AccountID: revenue.ID, CreditCents: 100},
			},
		})
		return err
	}

	require.ErrorIs(t, post(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)), ErrPeriodLocked)
	require.ErrorIs(t, post(lock), ErrPeriodLocked)
	require.NoError(t, post(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)))
}

func TestPostJournalDuplicateSource(t *testing.T) {
	repo := newMemRepo()
	service := NewService(repo, nil)
	cash, revenue := seedAccounts(t, repo, 1)
	sourceID := uuid.New()

	post := func() error {
		_, err := service.PostJournal(context.Background(), PostingInput{
			TenantID:     1,
			Date:         time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
			SourceModule: "BILLING",
			SourceID:     sourceID,
			Lines: []PostingLineInput{
				{AccountID: cash.ID, DebitCents: 100},
				{AccountID: revenue.ID, CreditCents: 100},
			},
		})
		return err
	}

	require.NoError(t, post())
	require.ErrorIs(t, post(), ErrSourceAlreadyLinked)
}

func TestReverseJournal(t *testing.T) {
	repo := newMemRepo()
	service := NewService(repo, nil)
	service.WithNow(func() time.Time { return time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC) })
	cash, revenue := seedAccounts(t, repo, 1)

	entry, err := service.PostJournal(context.Background(), PostingInput{
		TenantID:     1,
		Date:         time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		SourceModule: "BILLING",
		SourceID:     uuid.New(),
		PostedBy:     actorPtr(7),
		Lines: []PostingLineInput{
			{AccountID: cash.ID, DebitCents: 50_000},
			{AccountID: revenue.ID, CreditCents: 50_000},
		},
	})
	require.NoError(t, err)

	reversal, err := service.ReverseJournal(context.Background(), ReverseInput{TenantID: 1, EntryID: entry.ID, ActorID: 7})
	require.NoError(t, err)
	require.NotNil(t, reversal.ReversesID)
	require.Equal(t, entry.ID, *reversal.ReversesID)
	require.Equal(t, "BILLING:REVERSAL", reversal.SourceModule)
	require.Equal(t, time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC), reversal.Date)

	original, err := service.GetJournal(context.Background(), 1, entry.ID)
	require.NoError(t, err)
	require.Equal(t, EntryStatusReversed, original.Status)

	cashBalance, err := service.AccountBalance(context.Background(), 1, cash.ID)
	require.NoError(t, err)
	require.Zero(t, cashBalance)

	revenueBalance, err := service.AccountBalance(context.Background(), 1, revenue.ID)
	require.NoError(t, err)
	require.Zero(t, revenueBalance)

	// A reversed entry cannot be reversed again.
	_, err = service.ReverseJournal(context.Background(), ReverseInput{TenantID: 1, EntryID: entry.ID, ActorID: 7})
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestCreateAccountDuplicateCode(t *testing.T) {
	repo := newMemRepo()
	service := NewService(repo, nil)

	_, err := service.CreateAccount(context.Background(), CreateAccountInput{TenantID: 1, Code: "1000", Name: "Cash", Type: AccountTypeAsset})
	require.NoError(t, err)
	_, err = service.CreateAccount(context.Background(), CreateAccountInput{TenantID: 1, Code: "1000", Name: "Petty Cash", Type: AccountTypeAsset})
	require.ErrorIs(t, err, ErrDuplicateCode)
}

func TestCreateAccountHierarchy(t *testing.T) {
	repo := newMemRepo()
	service := NewService(repo, nil)

	parent, err := service.CreateAccount(context.Background(), CreateAccountInput{TenantID: 1, Code: "1000", Name: "Current Assets", Type: AccountTypeAsset})
	require.NoError(t, err)

	_, err = service.CreateAccount(context.Background(), CreateAccountInput{TenantID: 1, Code: "4000", Name: "Revenue", Type: AccountTypeRevenue, ParentID: &parent.ID})
	require.ErrorIs(t, err, ErrInvalidHierarchy)

	missing := int64(999)
	_, err = service.CreateAccount(context.Background(), CreateAccountInput{TenantID: 1, Code: "1100", Name: "Cash", Type: AccountTypeAsset, ParentID: &missing})
	require.ErrorIs(t, err, ErrInvalidParent)

	child, err := service.CreateAccount(context.Background(), CreateAccountInput{TenantID: 1, Code: "1100", Name: "Cash", Type: AccountTypeAsset, ParentID: &parent.ID})
	require.NoError(t, err)
	require.Equal(t, parent.ID, *child.ParentID)
}

func TestNormalBalance(t *testing.T) {
	require.Equal(t, SideDebit, AccountTypeAsset.NormalBalance())
	require.Equal(t, SideDebit, AccountTypeExpense.NormalBalance())
	require.Equal(t, SideCredit, AccountTypeLiability.NormalBalance())
	require.Equal(t, SideCredit, AccountTypeRevenue.NormalBalance())
	require.Equal(t, SideCredit, AccountTypeEquity.NormalBalance())
}

func TestUnbalancedErrorIs(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", UnbalancedError{DeltaCents: 5})
	require.True(t, errors.Is(err, ErrUnbalanced))
}
