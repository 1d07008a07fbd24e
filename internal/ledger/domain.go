package ledger

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AccountType enumerates chart of accounts categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// Side identifies the debit or credit column of a line.
type Side string

const (
	SideDebit  Side = "DEBIT"
	SideCredit Side = "CREDIT"
)

// NormalBalance returns the side that increases the balance of this type.
func (t AccountType) NormalBalance() Side {
	switch t {
	case AccountTypeAsset, AccountTypeExpense:
		return SideDebit
	default:
		return SideCredit
	}
}

// Valid reports whether the account type is one of the known categories.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	default:
		return false
	}
}

// EntryStatus enumerates the journal entry lifecycle. Entries are committed
// as POSTED and may only ever transition to REVERSED.
type EntryStatus string

const (
	EntryStatusDraft    EntryStatus = "DRAFT"
	EntryStatusPosted   EntryStatus = "POSTED"
	EntryStatusReversed EntryStatus = "REVERSED"
)

// Account models a chart of accounts node. The type is immutable once any
// ledger line references the account; no update path for it is exposed.
type Account struct {
	ID        int64
	TenantID  int64
	Code      string
	Name      string
	Type      AccountType
	ParentID  *int64
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// JournalEntry captures one committed business transaction.
type JournalEntry struct {
	ID           int64
	TenantID     int64
	Number       int64
	Date         time.Time
	Description  string
	SourceModule string
	SourceID     uuid.UUID
	PostedBy     *int64
	PostedAt     time.Time
	Status       EntryStatus
	ReversesID   *int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Lines        []LedgerLine
}

// LedgerLine stores a debit or credit amount in integer cents. At most one of
// the two amounts is non-zero. Lines are immutable once their entry is posted.
type LedgerLine struct {
	ID          int64
	EntryID     int64
	AccountID   int64
	DebitCents  int64
	CreditCents int64
	CostCenter  *string
	Department  *string
	CreatedAt   time.Time
}

// PostingLineInput describes a ledger line for a posting request.
type PostingLineInput struct {
	AccountID   int64
	DebitCents  int64
	CreditCents int64
	CostCenter  *string
	Department  *string
}

// PostingInput groups fields required to post a journal entry. SourceModule
// and SourceID identify the originating business event; the pair is unique so
// an invoking module can retry without double posting.
type PostingInput struct {
	TenantID     int64
	Date         time.Time
	Description  string
	SourceModule string
	SourceID     uuid.UUID
	PostedBy     *int64
	ReversesID   *int64
	Lines        []PostingLineInput
}

// CreateAccountInput bundles parameters for a new account.
type CreateAccountInput struct {
	TenantID int64
	Code     string
	Name     string
	Type     AccountType
	ParentID *int64
	ActorID  int64
}

// ReverseInput bundles parameters for reversing a posted entry.
type ReverseInput struct {
	TenantID    int64
	EntryID     int64
	ActorID     int64
	Description string
}

var (
	// ErrEmptyEntry indicates a posting with no lines.
	ErrEmptyEntry = errors.New("ledger: entry requires at least one line")
	// ErrUnknownAccount indicates a line referencing no resolvable account.
	ErrUnknownAccount = errors.New("ledger: line references unknown account")
	// ErrPeriodLocked indicates the posting date falls in a closed period.
	ErrPeriodLocked = errors.New("ledger: posting date falls within a locked period")
	// ErrUnbalanced indicates total debits differ from total credits.
	ErrUnbalanced = errors.New("ledger: entry debits and credits do not balance")
	// ErrMalformedLine indicates a line with both debit and credit set, or a
	// negative amount.
	ErrMalformedLine = errors.New("ledger: line must carry exactly one non-negative amount")
	// ErrDuplicateCode indicates the account code is taken within the tenant.
	ErrDuplicateCode = errors.New("ledger: account code already exists")
	// ErrInvalidParent indicates the parent account does not exist.
	ErrInvalidParent = errors.New("ledger: parent account not found")
	// ErrInvalidHierarchy indicates a parent/child type policy violation.
	ErrInvalidHierarchy = errors.New("ledger: account type conflicts with parent")
	// ErrAccountNotFound indicates a missing account.
	ErrAccountNotFound = errors.New("ledger: account not found")
	// ErrEntryNotFound indicates a missing journal entry.
	ErrEntryNotFound = errors.New("ledger: journal entry not found")
	// ErrSourceAlreadyLinked indicates the business event was posted before.
	ErrSourceAlreadyLinked = errors.New("ledger: source already linked to an entry")
	// ErrInvalidStatus indicates a disallowed entry status transition.
	ErrInvalidStatus = errors.New("ledger: invalid entry status transition")
)

// UnbalancedError carries the imbalance in cents (debits minus credits).
type UnbalancedError struct {
	DeltaCents int64
}

func (e UnbalancedError) Error() string {
	return fmt.Sprintf("ledger: entry unbalanced by %d cents", e.DeltaCents)
}

// Is lets errors.Is(err, ErrUnbalanced) match the typed error.
func (e UnbalancedError) Is(target error) bool {
	return target == ErrUnbalanced
}

// Validate ensures create input is coherent before touching storage.
func (in CreateAccountInput) Validate() error {
	if in.TenantID == 0 {
		return errors.New("ledger: tenant required")
	}
	if strings.TrimSpace(in.Code) == "" {
		return errors.New("ledger: account code required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return errors.New("ledger: account name required")
	}
	if !in.Type.Valid() {
		return fmt.Errorf("ledger: unknown account type %q", in.Type)
	}
	return nil
}

// BalanceDelta returns the signed effect of the line on an account balance,
// positive on the debit side.
func (l PostingLineInput) BalanceDelta() int64 {
	return l.DebitCents - l.CreditCents
}
