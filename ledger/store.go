/*
store.go - Persistence interfaces consumed by the rule engines

PURPOSE:
  Defines the contract between the engine and the durable store. The
  concrete implementation lives in store/sqlite; tests may substitute
  their own.

TRANSACTION MODEL:
  Every state-changing operation runs inside exactly one transaction
  scoped by Store.WithTx. The repository methods on Tx perform no
  implicit commits; if the callback returns an error the whole
  transaction rolls back and no partial state survives. Retry on lock
  contention happens inside WithTx (the gateway), never at call sites.

SEE ALSO:
  - store/sqlite/sqlite.go: SQLite implementation (WAL, busy retry,
    lock diagnostics)
  - engine.go: The only caller of these interfaces
*/
package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Store opens transactions against the durable store. Implementations own
// connection configuration (durability mode, foreign keys, lock-wait
// budget) and the contention retry policy.
type Store interface {
	// WithTx executes fn within one transaction. If fn returns an error
	// the transaction is rolled back; otherwise it is committed. If the
	// store is locked by another process the whole callback is retried
	// with backoff, and a StoreUnavailableError surfaces once the retry
	// budget is exhausted. fn must therefore be safe to re-run from the
	// top (it is: engines re-read all state inside the callback).
	WithTx(ctx context.Context, fn func(Tx) error) error

	Close() error
}

// Tx is the repository surface available inside a transaction. Reads return
// ErrNotFound when no row matches.
type Tx interface {
	// Accounts
	AccountByClientNumber(ctx context.Context, clientNumber string) (*Account, error)
	AccountByCardNumber(ctx context.Context, cardNumber string) (*Account, error)
	ClientNumberExists(ctx context.Context, clientNumber string) (bool, error)
	CardNumberExists(ctx context.Context, cardNumber string) (bool, error)
	InsertAccount(ctx context.Context, a *Account) error
	// UpdateBalance sets the account balance and last-operation timestamp.
	// Only the engines call this, always alongside an operation record and
	// an audit entry in the same transaction.
	UpdateBalance(ctx context.Context, clientNumber string, balance decimal.Decimal, at time.Time) error

	// Kind extensions
	FixedPlanFor(ctx context.Context, clientNumber string) (*FixedPlan, error)
	LockedPlanFor(ctx context.Context, clientNumber string) (*LockedPlan, error)
	InsertFixedPlan(ctx context.Context, p *FixedPlan) error
	InsertLockedPlan(ctx context.Context, p *LockedPlan) error

	// Booklet pages, ascending page order.
	BookletPages(ctx context.Context, clientNumber string) ([]BookletPage, error)
	SaveBookletPages(ctx context.Context, clientNumber string, pages []BookletPage) error
	DeleteBookletPages(ctx context.Context, clientNumber string) error

	// Operation records
	InsertDeposit(ctx context.Context, d *DepositRecord) error
	InsertWithdrawal(ctx context.Context, w *WithdrawalRecord) error
	RecentOperations(ctx context.Context, clientNumber string, limit int) ([]Operation, error)
	// DeleteOperations purges all deposit and withdrawal rows for the
	// account. Used only by the administrative fixed-account reset.
	DeleteOperations(ctx context.Context, clientNumber string) error

	// Duplicate cleanup (administrative, see engine.go)
	DuplicateDeposits(ctx context.Context) ([]DuplicateGroup, error)
	DepositsAt(ctx context.Context, clientNumber string, amount decimal.Decimal, at time.Time) ([]DepositRecord, error)
	DeleteDepositsByID(ctx context.Context, ids []int64) error

	// Audit
	AppendAudit(ctx context.Context, e AuditEntry) error
	// AuditEntriesFor returns the audit rows targeting a client number,
	// oldest first.
	AuditEntriesFor(ctx context.Context, target string) ([]AuditEntry, error)

	// Business parameters
	Params(ctx context.Context) (Params, error)
}

// DuplicateGroup identifies deposit rows sharing account, amount and
// timestamp - the signature of an accidental double entry.
type DuplicateGroup struct {
	AccountRef string
	Amount     decimal.Decimal
	RecordedAt time.Time
	IDs        []int64
}
