/*
engine.go - Collaborator-facing facade over the rule engines

PURPOSE:
  The Engine is what form handlers and export tooling call into. Every
  state-changing method opens exactly one transaction through the Store,
  validates, mutates, appends an audit entry and commits - atomically or
  not at all. Read methods run in a transaction too so views are
  consistent snapshots.

OPERATIONS:
  Enroll                   Create an account with its kind extension
  Deposit                  deposit.go
  Withdraw                 withdraw.go
  GetAccount               Lookup by client or card number
  GetBooklet               Fixed-account page list
  ListRecentOperations     Merged deposit/withdrawal history
  ResetFixedAccount        Administrative, destructive
  FindDuplicateDeposits    Administrative duplicate listing
  CleanupDuplicateDeposits Administrative duplicate removal
*/
package ledger

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Engine applies deposits, withdrawals and administrative operations to
// member accounts. It holds no mutable state of its own: all state lives in
// the Store, and every method is safe to call from multiple goroutines.
type Engine struct {
	store Store

	// Now supplies operation timestamps. Tests override it for
	// deterministic references and history ordering.
	Now func() time.Time
}

// NewEngine returns an Engine backed by store.
func NewEngine(store Store) *Engine {
	return &Engine{store: store, Now: time.Now}
}

// =============================================================================
// ENROLLMENT
// =============================================================================

// EnrollRequest carries the data captured at member enrollment. Kind-specific
// fields are required only for their kind.
type EnrollRequest struct {
	LastName   string
	MiddleName string
	FirstName  string
	Gender     string
	BirthDate  string
	BirthPlace string
	Address    string
	Phone      string

	Deputy        string
	DeputyContact string

	Kind Kind

	// Fixed accounts
	UnitAmount decimal.Decimal
	StartDate  time.Time
	EndDate    time.Time

	// Locked accounts
	TargetAmount        decimal.Decimal
	WithdrawalPercent   int
	WithdrawalFrequency string

	Operator string
}

// Enroll creates a new account with a zero balance, generating unique client
// and card numbers. The kind is fixed for the lifetime of the account.
func (e *Engine) Enroll(ctx context.Context, req EnrollRequest) (*Account, error) {
	if req.LastName == "" && req.FirstName == "" {
		return nil, &ValidationError{Reason: "member name is required"}
	}
	if !req.Kind.Valid() {
		return nil, &ValidationError{Reason: fmt.Sprintf("unknown account kind %q", req.Kind)}
	}
	switch req.Kind {
	case KindFixed:
		if !req.UnitAmount.IsPositive() {
			return nil, &ValidationError{Reason: "fixed account requires a positive unit amount"}
		}
		if req.EndDate.Before(req.StartDate) {
			return nil, &ValidationError{Reason: "fixed plan end date before start date"}
		}
	case KindLocked:
		if !req.TargetAmount.IsPositive() {
			return nil, &ValidationError{Reason: "locked account requires a positive target amount"}
		}
		if req.WithdrawalPercent < 1 || req.WithdrawalPercent > 100 {
			return nil, &ValidationError{Reason: "withdrawal percent must be within [1,100]"}
		}
	}

	now := e.Now()
	account := &Account{
		LastName:      req.LastName,
		MiddleName:    req.MiddleName,
		FirstName:     req.FirstName,
		Gender:        req.Gender,
		BirthDate:     req.BirthDate,
		BirthPlace:    req.BirthPlace,
		Address:       req.Address,
		Phone:         req.Phone,
		Deputy:        req.Deputy,
		DeputyContact: req.DeputyContact,
		Kind:          req.Kind,
		Balance:       decimal.Zero,
		Status:        StatusActive,
		EnrolledAt:    now,
	}

	err := e.store.WithTx(ctx, func(tx Tx) error {
		clientNumber, err := e.uniqueClientNumber(ctx, tx)
		if err != nil {
			return err
		}
		cardNumber, err := e.uniqueCardNumber(ctx, tx)
		if err != nil {
			return err
		}
		account.ClientNumber = clientNumber
		account.CardNumber = cardNumber

		if err := tx.InsertAccount(ctx, account); err != nil {
			return err
		}

		switch req.Kind {
		case KindFixed:
			plan := &FixedPlan{
				AccountRef: clientNumber,
				UnitAmount: req.UnitAmount,
				StartDate:  req.StartDate,
				EndDate:    req.EndDate,
			}
			if err := tx.InsertFixedPlan(ctx, plan); err != nil {
				return err
			}
		case KindLocked:
			plan := &LockedPlan{
				AccountRef:          clientNumber,
				TargetAmount:        req.TargetAmount,
				WithdrawalPercent:   req.WithdrawalPercent,
				WithdrawalFrequency: req.WithdrawalFrequency,
			}
			if err := tx.InsertLockedPlan(ctx, plan); err != nil {
				return err
			}
		}

		return tx.AppendAudit(ctx, AuditEntry{
			Action:     "enroll",
			Actor:      req.Operator,
			Target:     clientNumber,
			Detail:     fmt.Sprintf("kind: %s, card: %s", req.Kind, cardNumber),
			RecordedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// uniqueClientNumber draws 4-digit numbers until one is free. Uniqueness is
// re-checked inside the enrollment transaction, so a concurrent enrollment
// cannot race it past the UNIQUE constraint.
func (e *Engine) uniqueClientNumber(ctx context.Context, tx Tx) (string, error) {
	for {
		n := fmt.Sprintf("%04d", 1000+rand.IntN(9000))
		exists, err := tx.ClientNumberExists(ctx, n)
		if err != nil {
			return "", err
		}
		if !exists {
			return n, nil
		}
	}
}

func (e *Engine) uniqueCardNumber(ctx context.Context, tx Tx) (string, error) {
	for {
		n := fmt.Sprintf("%010d", 1000000000+rand.Int64N(9000000000))
		exists, err := tx.CardNumberExists(ctx, n)
		if err != nil {
			return "", err
		}
		if !exists {
			return n, nil
		}
	}
}

// =============================================================================
// READS
// =============================================================================

// GetAccount looks an account up by client number or card number and returns
// it with its kind extension.
func (e *Engine) GetAccount(ctx context.Context, number string) (*AccountView, error) {
	var view AccountView
	err := e.store.WithTx(ctx, func(tx Tx) error {
		account, err := e.findAccount(ctx, tx, number)
		if err != nil {
			return err
		}
		view.Account = *account

		switch account.Kind {
		case KindFixed:
			view.Fixed, err = tx.FixedPlanFor(ctx, account.ClientNumber)
		case KindLocked:
			view.Locked, err = tx.LockedPlanFor(ctx, account.ClientNumber)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// GetBooklet returns a fixed account's pages in ascending page order.
func (e *Engine) GetBooklet(ctx context.Context, number string) ([]BookletPage, error) {
	var pages []BookletPage
	err := e.store.WithTx(ctx, func(tx Tx) error {
		account, err := e.findAccount(ctx, tx, number)
		if err != nil {
			return err
		}
		if account.Kind != KindFixed {
			return &ValidationError{Reason: "account has no booklet"}
		}
		pages, err = tx.BookletPages(ctx, account.ClientNumber)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pages, nil
}

// ListRecentOperations returns the account's merged deposit/withdrawal
// history, newest first.
func (e *Engine) ListRecentOperations(ctx context.Context, number string, limit int) ([]Operation, error) {
	if limit <= 0 {
		limit = 20
	}
	var ops []Operation
	err := e.store.WithTx(ctx, func(tx Tx) error {
		account, err := e.findAccount(ctx, tx, number)
		if err != nil {
			return err
		}
		ops, err = tx.RecentOperations(ctx, account.ClientNumber, limit)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ops, nil
}

// findAccount resolves a client number (4 digits) or card number (10 digits)
// to an account, trying the client number first.
func (e *Engine) findAccount(ctx context.Context, tx Tx, number string) (*Account, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, ErrNotFound
	}
	account, err := tx.AccountByClientNumber(ctx, number)
	if err == nil {
		return account, nil
	}
	if !IsNotFound(err) {
		return nil, err
	}
	return tx.AccountByCardNumber(ctx, number)
}

// =============================================================================
// ADMINISTRATIVE OPERATIONS
// =============================================================================

// ResetFixedAccount wipes a fixed account back to its enrolled state: booklet
// pages and operation history are purged and the balance returns to zero.
// Destructive; intended for operator use only.
func (e *Engine) ResetFixedAccount(ctx context.Context, number, actor string) error {
	return e.store.WithTx(ctx, func(tx Tx) error {
		account, err := e.findAccount(ctx, tx, number)
		if err != nil {
			return err
		}
		if account.Kind != KindFixed {
			return &ValidationError{Reason: "only fixed accounts can be reset"}
		}
		if err := tx.DeleteBookletPages(ctx, account.ClientNumber); err != nil {
			return err
		}
		if err := tx.DeleteOperations(ctx, account.ClientNumber); err != nil {
			return err
		}
		now := e.Now()
		if err := tx.UpdateBalance(ctx, account.ClientNumber, decimal.Zero, now); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, AuditEntry{
			Action:     "reset",
			Actor:      actor,
			Target:     account.ClientNumber,
			Detail:     fmt.Sprintf("previous balance: %s", account.Balance.String()),
			RecordedAt: now,
		})
	})
}

// AuditTrail returns the audit entries recorded against the account, oldest
// first. Audit rows survive the fixed-account reset; the trail is the one
// record of what happened that nothing deletes.
func (e *Engine) AuditTrail(ctx context.Context, number string) ([]AuditEntry, error) {
	var entries []AuditEntry
	err := e.store.WithTx(ctx, func(tx Tx) error {
		account, err := e.findAccount(ctx, tx, number)
		if err != nil {
			return err
		}
		entries, err = tx.AuditEntriesFor(ctx, account.ClientNumber)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// CleanupMode selects how CleanupDuplicateDeposits treats a duplicate group.
type CleanupMode string

const (
	// CleanupKeepOne removes all but the oldest row of the group.
	CleanupKeepOne CleanupMode = "keep-one"

	// CleanupRemoveAll removes every row of the group.
	CleanupRemoveAll CleanupMode = "remove-all"
)

// FindDuplicateDeposits lists groups of deposit rows sharing account, amount
// and timestamp. Duplicates are not removed automatically; cleanup is an
// explicit operator decision.
func (e *Engine) FindDuplicateDeposits(ctx context.Context) ([]DuplicateGroup, error) {
	var groups []DuplicateGroup
	err := e.store.WithTx(ctx, func(tx Tx) error {
		var err error
		groups, err = tx.DuplicateDeposits(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return groups, nil
}

// CleanupDuplicateDeposits removes the duplicate rows identified by
// (clientNumber, amount, at) and debits the account by the aggregate removed
// amount, all in one transaction. The group membership is re-derived inside
// the transaction so a stale listing cannot delete fresh rows.
//
// Returns the number of rows removed.
func (e *Engine) CleanupDuplicateDeposits(ctx context.Context, clientNumber string, amount decimal.Decimal, at time.Time, mode CleanupMode, actor string) (int, error) {
	if mode != CleanupKeepOne && mode != CleanupRemoveAll {
		return 0, &ValidationError{Reason: fmt.Sprintf("unknown cleanup mode %q", mode)}
	}

	removed := 0
	err := e.store.WithTx(ctx, func(tx Tx) error {
		removed = 0
		account, err := tx.AccountByClientNumber(ctx, clientNumber)
		if err != nil {
			return err
		}

		rows, err := tx.DepositsAt(ctx, clientNumber, amount, at)
		if err != nil {
			return err
		}
		if len(rows) < 2 {
			return &ValidationError{Reason: "no duplicate rows match"}
		}

		toDelete := rows
		if mode == CleanupKeepOne {
			toDelete = rows[1:] // rows are ordered by id, keep the original
		}

		ids := make([]int64, 0, len(toDelete))
		debit := decimal.Zero
		for _, r := range toDelete {
			ids = append(ids, r.ID)
			debit = debit.Add(r.Amount)
		}

		if err := tx.DeleteDepositsByID(ctx, ids); err != nil {
			return err
		}
		now := e.Now()
		balance := account.Balance.Sub(debit)
		if balance.IsNegative() {
			// The duplicates were partially withdrawn already; clamping
			// would hide the inconsistency, so refuse instead.
			return &ValidationError{Reason: "removing duplicates would drive the balance negative"}
		}
		if err := tx.UpdateBalance(ctx, clientNumber, balance, now); err != nil {
			return err
		}
		removed = len(ids)
		return tx.AppendAudit(ctx, AuditEntry{
			Action:     "duplicate-cleanup",
			Actor:      actor,
			Target:     clientNumber,
			Detail:     fmt.Sprintf("mode: %s, rows: %d, debited: %s", mode, removed, debit.String()),
			RecordedAt: now,
		})
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// =============================================================================
// REFERENCES
// =============================================================================

// newReference builds a unique operation reference such as
// DEP20250830-1a2b3c4d.
func newReference(prefix string, at time.Time) string {
	return fmt.Sprintf("%s%s-%s", prefix, at.Format("20060102"), uuid.NewString()[:8])
}
