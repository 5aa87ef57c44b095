/*
deposit.go - Deposit rule engine

PURPOSE:
  Validates and applies a deposit against an account's kind-specific
  constraints, invoking the booklet allocator for fixed accounts.

RULES BY KIND:
  Mixed:  amount >= the configured minimum deposit.
  Fixed:  amount must be a positive integer multiple of the plan's unit
          amount; the resulting cases must fit on the booklet, otherwise
          the whole deposit is rejected (no partial allocation).
  Locked: accepted unconditionally - locked accounts only restrict
          withdrawals.

ATOMICITY:
  Balance update, booklet pages, the deposit record and the audit entry
  are written in one transaction. Any rule failure aborts all of it.
*/
package ledger

import (
	"context"
	"fmt"
)

// DepositRequest describes a deposit to apply. Number may be a client or
// card number.
type DepositRequest struct {
	Number        string
	Amount        Money
	Operator      string
	PaymentMethod string
}

// Deposit validates req against the account's kind rules and applies it.
// On success the returned record reflects the committed row.
func (e *Engine) Deposit(ctx context.Context, req DepositRequest) (*DepositRecord, error) {
	if !req.Amount.IsPositive() {
		return nil, &ValidationError{Reason: "deposit amount must be positive"}
	}

	var record *DepositRecord
	err := e.store.WithTx(ctx, func(tx Tx) error {
		account, err := e.findAccount(ctx, tx, req.Number)
		if err != nil {
			return err
		}
		if account.Status == StatusBlocked {
			return ErrAccountBlocked
		}

		switch account.Kind {
		case KindFixed:
			if err := e.applyFixedDeposit(ctx, tx, account, req.Amount); err != nil {
				return err
			}
		case KindMixed:
			params, err := tx.Params(ctx)
			if err != nil {
				return err
			}
			if req.Amount.LessThan(params.MinimumDeposit) {
				limit := params.MinimumDeposit
				return &ValidationError{
					Reason: fmt.Sprintf("deposit below the %s minimum", limit.String()),
					Limit:  &limit,
				}
			}
		case KindLocked:
			// No deposit constraint; only withdrawals are restricted.
		}

		now := e.Now()
		balance := account.Balance.Add(req.Amount)
		if err := tx.UpdateBalance(ctx, account.ClientNumber, balance, now); err != nil {
			return err
		}

		record = &DepositRecord{
			AccountRef:    account.ClientNumber,
			Amount:        req.Amount,
			Reference:     newReference("DEP", now),
			HolderName:    account.HolderName(),
			Operator:      req.Operator,
			PaymentMethod: req.PaymentMethod,
			RecordedAt:    now,
		}
		if err := tx.InsertDeposit(ctx, record); err != nil {
			return err
		}

		return tx.AppendAudit(ctx, AuditEntry{
			Action:     "deposit",
			Actor:      req.Operator,
			Target:     account.ClientNumber,
			Detail:     fmt.Sprintf("amount: %s, ref: %s", req.Amount.String(), record.Reference),
			RecordedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// applyFixedDeposit enforces the unit-multiple rule and places the purchased
// cases on the booklet. Pages are only persisted when everything fits.
func (e *Engine) applyFixedDeposit(ctx context.Context, tx Tx, account *Account, amount Money) error {
	plan, err := tx.FixedPlanFor(ctx, account.ClientNumber)
	if err != nil {
		return err
	}
	if !plan.UnitAmount.IsPositive() {
		return &ValidationError{Reason: "fixed plan has no unit amount configured"}
	}

	unit := plan.UnitAmount
	if amount.LessThan(unit) {
		return &ValidationError{
			Reason: fmt.Sprintf("fixed deposit below the %s unit amount", unit.String()),
			Limit:  &unit,
		}
	}
	if !amount.Mod(unit).IsZero() {
		return &ValidationError{
			Reason: fmt.Sprintf("fixed deposit must be a multiple of %s", unit.String()),
			Limit:  &unit,
		}
	}

	cases := int(amount.Div(unit).IntPart())
	pages, err := tx.BookletPages(ctx, account.ClientNumber)
	if err != nil {
		return err
	}

	updated, leftover := Allocate(pages, cases)
	if leftover > 0 {
		return &CapacityExceededError{
			Filled:    TotalCases(pages),
			Requested: cases,
			Leftover:  leftover,
		}
	}

	return tx.SaveBookletPages(ctx, account.ClientNumber, updated)
}
