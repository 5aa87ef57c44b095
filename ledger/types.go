/*
Package ledger is the savings-cooperative ledger and allocation engine.

PURPOSE:
  This package contains the entity model and the deposit/withdrawal rule
  engines for member accounts. It knows nothing about HTTP, forms, or
  document generation - callers load an account, apply an operation, and
  read back typed records.

KEY CONCEPTS IN THIS FILE (types.go):
  - Account: A member account with a kind (Fixed, Mixed, Locked) and balance
  - FixedPlan / LockedPlan: Kind-specific extension records
  - BookletPage: One page of a fixed account's deposit booklet
  - DepositRecord / WithdrawalRecord: Immutable operation records
  - AuditEntry: Append-only journal row written alongside every mutation

DESIGN PRINCIPLES:
  1. Precision: All monetary amounts use decimal.Decimal. The rule engines
     rely on exact equality ("balance == unitAmount", multiple-of checks)
     that binary floats cannot provide.
  2. Typed records: Rows are converted to these structs once, at the store
     boundary. Rule engines never touch raw rows.
  3. Atomicity: Balance mutates only inside a transaction that also writes
     the operation record and an audit entry.

SEE ALSO:
  - booklet.go: The fixed-account booklet capacity allocator
  - deposit.go / withdraw.go: The rule engines
  - store.go: Persistence interfaces implemented by store/sqlite
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Money is the fixed-point monetary amount type used throughout the engine.
// An alias rather than a wrapper so decimal arithmetic stays direct.
type Money = decimal.Decimal

// =============================================================================
// ACCOUNT
// =============================================================================

// Kind classifies an account. It is fixed at enrollment and never changes.
type Kind string

const (
	// KindFixed accounts deposit in multiples of a unit amount tracked on a
	// paginated booklet (8 pages of 31 cases).
	KindFixed Kind = "fixed"

	// KindMixed accounts accept free-form deposits above a configured floor
	// and pay interest-style commission on global withdrawals.
	KindMixed Kind = "mixed"

	// KindLocked accounts accept any deposit but restrict withdrawals until
	// a target amount is reached, then cap them at a percentage of balance.
	KindLocked Kind = "locked"
)

// Valid reports whether k is a known account kind.
func (k Kind) Valid() bool {
	switch k {
	case KindFixed, KindMixed, KindLocked:
		return true
	}
	return false
}

// Status is the lifecycle state of an account.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusBlocked  Status = "blocked"
)

// Account is a member account. Balance is never mutated directly by callers;
// it only changes through the deposit/withdrawal engines, inside a committed
// transaction that also records the operation and an audit entry.
type Account struct {
	ID           int64
	ClientNumber string // 4-digit, unique
	CardNumber   string // 10-digit, unique

	LastName   string
	MiddleName string
	FirstName  string
	Gender     string
	BirthDate  string
	BirthPlace string
	Address    string
	Phone      string

	// Deputy is the emergency contact person registered at enrollment.
	Deputy        string
	DeputyContact string

	Kind            Kind
	Balance         decimal.Decimal
	Status          Status
	EnrolledAt      time.Time
	LastOperationAt *time.Time
}

// HolderName returns the member's display name (first middle last).
func (a *Account) HolderName() string {
	name := a.FirstName
	if a.MiddleName != "" {
		name += " " + a.MiddleName
	}
	if a.LastName != "" {
		name += " " + a.LastName
	}
	return name
}

// =============================================================================
// KIND EXTENSIONS
// =============================================================================

// FixedPlan is the 1:1 extension of a Fixed account. Every deposit against
// the account must be a positive integer multiple of UnitAmount.
type FixedPlan struct {
	AccountRef string // client number
	UnitAmount decimal.Decimal
	StartDate  time.Time
	EndDate    time.Time
}

// LockedPlan is the 1:1 extension of a Locked account. Withdrawals are
// rejected while balance < TargetAmount and capped at
// balance * WithdrawalPercent / 100 afterwards.
//
// WithdrawalFrequency is recorded for operator reference only; no execution
// path enforces it against elapsed time.
type LockedPlan struct {
	AccountRef          string
	TargetAmount        decimal.Decimal
	WithdrawalPercent   int // [1,100]
	WithdrawalFrequency string
}

// =============================================================================
// BOOKLET
// =============================================================================

// Booklet geometry. A fixed account's booklet holds at most MaxPages pages
// of CasesPerPage cases each.
const (
	CasesPerPage = 31
	MaxPages     = 8
	MaxCases     = CasesPerPage * MaxPages // 248
)

// BookletPage is one page of a fixed account's booklet. Pages are created
// lazily by the allocator in increasing page order and only deleted by an
// explicit account reset.
type BookletPage struct {
	PageNumber  int // [1,MaxPages]
	FilledCases int // [0,CasesPerPage]
}

// TotalCases returns the number of filled cases across pages.
func TotalCases(pages []BookletPage) int {
	total := 0
	for _, p := range pages {
		total += p.FilledCases
	}
	return total
}

// =============================================================================
// OPERATION RECORDS - Created once, never mutated
// =============================================================================

// DepositRecord is the immutable record of an accepted deposit. Rows are
// deleted only by the explicit duplicate-cleanup and account-reset
// operations.
type DepositRecord struct {
	ID            int64
	AccountRef    string
	Amount        decimal.Decimal
	Reference     string // unique, e.g. DEP20250830-1a2b3c4d
	HolderName    string // member name snapshot at deposit time
	Operator      string
	PaymentMethod string
	RecordedAt    time.Time
}

// WithdrawalStatus of a withdrawal record.
type WithdrawalStatus string

const (
	WithdrawalCompleted WithdrawalStatus = "completed"
)

// WithdrawalRecord is the immutable record of an accepted withdrawal.
// GrossAmount is what was debited from the balance; NetAmount is what was
// delivered to the member; Commission is the difference retained or charged.
type WithdrawalRecord struct {
	ID          int64
	AccountRef  string
	GrossAmount decimal.Decimal
	Commission  decimal.Decimal
	NetAmount   decimal.Decimal
	Reference   string // unique, e.g. RET20250830-1a2b3c4d
	Operator    string
	Status      WithdrawalStatus
	RecordedAt  time.Time
}

// =============================================================================
// AUDIT LOG - Append-only, written in the mutating transaction
// =============================================================================

// AuditEntry records who did what when. Entries are appended in the same
// transaction as the mutation they describe and are never updated.
type AuditEntry struct {
	ID         int64
	Action     string // "enroll", "deposit", "withdrawal", "reset", "duplicate-cleanup"
	Actor      string
	Target     string // client number, when applicable
	Detail     string
	RecordedAt time.Time
}

// =============================================================================
// VIEWS
// =============================================================================

// AccountView is an account together with its kind extension, as consumed by
// the GUI/export layer.
type AccountView struct {
	Account Account
	Fixed   *FixedPlan  // non-nil iff Kind == KindFixed
	Locked  *LockedPlan // non-nil iff Kind == KindLocked
}

// OperationType tags entries returned by ListRecentOperations.
type OperationType string

const (
	OpDeposit    OperationType = "deposit"
	OpWithdrawal OperationType = "withdrawal"
)

// Operation is a merged deposit/withdrawal history entry, newest first.
type Operation struct {
	Type       OperationType
	Amount     decimal.Decimal // gross amount for withdrawals
	Reference  string
	Operator   string
	RecordedAt time.Time
}

// =============================================================================
// PARAMETERS
// =============================================================================

// Params are operator-tunable business parameters, persisted alongside the
// accounts so every instance sharing the store agrees on them.
type Params struct {
	// InterestRate is the mixed-account commission rate as a fraction
	// (0.05 == 5%).
	InterestRate decimal.Decimal

	// MinimumDeposit is the floor for mixed-account deposits.
	MinimumDeposit decimal.Decimal

	// MinimumWithdrawal applies to partial and mixed-global withdrawals.
	MinimumWithdrawal decimal.Decimal
}
