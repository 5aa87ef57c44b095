/*
withdraw.go - Withdrawal rule engine

PURPOSE:
  Validates and applies a withdrawal, computing commission/interest and
  shortfall caps per account kind.

MODES:
  Partial: withdraw an arbitrary sub-amount.
  Global:  liquidate under the kind-specific payout formula selected by
           the request's Payout field. The payout must match the account
           kind - a fixed account only takes the fixed payout, a mixed
           account never does.

RULES BY KIND:
  Fixed, Partial:  the account must retain at least one unit; otherwise
                   the error reports the maximum withdrawable amount.
  Fixed, Global:   whole balance paid out, commission of one unit retained.
  Mixed, Global:   caller requests a net amount r; commission = r * rate;
                   gross = r + commission. When gross exceeds the balance
                   the error reports r_max = floor(balance / (1 + rate)).
  Locked:          permitted only once balance >= targetAmount, and capped
                   at balance * withdrawalPercent / 100. Both modes.

Every error leaves the account untouched; success debits the gross amount,
records gross/commission/net and appends an audit entry atomically.
*/
package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// WithdrawMode selects between a partial withdrawal and a global payout.
type WithdrawMode string

const (
	ModePartial WithdrawMode = "partial"
	ModeGlobal  WithdrawMode = "global"
)

// WithdrawRequest describes a withdrawal. Amount is the requested (net)
// amount; it is ignored for the fixed global payout, which always pays the
// whole balance. Payout selects the global formula and must match the
// account kind.
type WithdrawRequest struct {
	Number   string
	Amount   Money
	Mode     WithdrawMode
	Payout   Kind // Global mode only
	Operator string
}

// Withdraw validates req against the account's kind rules and applies it.
func (e *Engine) Withdraw(ctx context.Context, req WithdrawRequest) (*WithdrawalRecord, error) {
	if req.Mode != ModePartial && req.Mode != ModeGlobal {
		return nil, &ValidationError{Reason: fmt.Sprintf("unknown withdrawal mode %q", req.Mode)}
	}

	var record *WithdrawalRecord
	err := e.store.WithTx(ctx, func(tx Tx) error {
		account, err := e.findAccount(ctx, tx, req.Number)
		if err != nil {
			return err
		}
		if account.Status == StatusBlocked {
			return ErrAccountBlocked
		}
		params, err := tx.Params(ctx)
		if err != nil {
			return err
		}

		if err := checkMode(account, req); err != nil {
			return err
		}
		if usesRequestedAmount(account.Kind, req) {
			if !req.Amount.IsPositive() {
				return &ValidationError{Reason: "withdrawal amount must be positive"}
			}
			if req.Amount.LessThan(params.MinimumWithdrawal) {
				limit := params.MinimumWithdrawal
				return &ValidationError{
					Reason: fmt.Sprintf("withdrawal below the %s minimum", limit.String()),
					Limit:  &limit,
				}
			}
		}

		if account.Kind == KindLocked {
			if err := checkLockedGate(ctx, tx, account, req.Amount); err != nil {
				return err
			}
		}

		gross, commission, net, err := e.payout(ctx, tx, account, req, params)
		if err != nil {
			return err
		}
		if gross.GreaterThan(account.Balance) {
			return &InsufficientFundsError{Balance: account.Balance, Requested: req.Amount}
		}

		now := e.Now()
		balance := account.Balance.Sub(gross)
		if err := tx.UpdateBalance(ctx, account.ClientNumber, balance, now); err != nil {
			return err
		}

		record = &WithdrawalRecord{
			AccountRef:  account.ClientNumber,
			GrossAmount: gross,
			Commission:  commission,
			NetAmount:   net,
			Reference:   newReference("RET", now),
			Operator:    req.Operator,
			Status:      WithdrawalCompleted,
			RecordedAt:  now,
		}
		if err := tx.InsertWithdrawal(ctx, record); err != nil {
			return err
		}

		return tx.AppendAudit(ctx, AuditEntry{
			Action:     "withdrawal",
			Actor:      req.Operator,
			Target:     account.ClientNumber,
			Detail:     fmt.Sprintf("gross: %s, commission: %s, ref: %s", gross.String(), commission.String(), record.Reference),
			RecordedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// checkMode enforces the kind/payout cross rules for global withdrawals.
func checkMode(account *Account, req WithdrawRequest) error {
	if req.Mode != ModeGlobal {
		return nil
	}
	switch {
	case account.Kind == KindFixed && req.Payout != KindFixed:
		return &ValidationError{Reason: "a fixed account only takes the fixed global payout"}
	case account.Kind == KindMixed && req.Payout == KindFixed:
		return &ValidationError{Reason: "a mixed account cannot take the fixed global payout"}
	case !req.Payout.Valid():
		return &ValidationError{Reason: fmt.Sprintf("unknown global payout %q", req.Payout)}
	case req.Payout != account.Kind:
		return &ValidationError{Reason: fmt.Sprintf("%s payout does not apply to a %s account", req.Payout, account.Kind)}
	}
	return nil
}

// usesRequestedAmount reports whether the mode consumes req.Amount. The
// fixed global payout ignores it and liquidates the whole balance.
func usesRequestedAmount(kind Kind, req WithdrawRequest) bool {
	return !(req.Mode == ModeGlobal && kind == KindFixed)
}

// checkLockedGate enforces the locked-account rules: no withdrawal before
// the target is reached, and never more than the percent cap.
func checkLockedGate(ctx context.Context, tx Tx, account *Account, amount Money) error {
	plan, err := tx.LockedPlanFor(ctx, account.ClientNumber)
	if err != nil {
		return err
	}
	if account.Balance.LessThan(plan.TargetAmount) {
		return &ValidationError{
			Reason: fmt.Sprintf("balance below the %s target; withdrawals locked", plan.TargetAmount.String()),
		}
	}
	ceiling := account.Balance.Mul(decimal.NewFromInt(int64(plan.WithdrawalPercent))).Div(decimal.NewFromInt(100))
	if amount.GreaterThan(ceiling) {
		return &ValidationError{
			Reason: fmt.Sprintf("withdrawal above the %d%% cap", plan.WithdrawalPercent),
			Limit:  &ceiling,
		}
	}
	return nil
}

// payout computes (gross, commission, net) for the request, or the rule
// error that rejects it.
func (e *Engine) payout(ctx context.Context, tx Tx, account *Account, req WithdrawRequest, params Params) (gross, commission, net Money, err error) {
	zero := decimal.Zero

	if req.Mode == ModePartial {
		if account.Kind == KindFixed {
			plan, perr := tx.FixedPlanFor(ctx, account.ClientNumber)
			if perr != nil {
				return zero, zero, zero, perr
			}
			// The account must retain at least one unit.
			if account.Balance.Sub(req.Amount).LessThan(plan.UnitAmount) {
				max := account.Balance.Sub(plan.UnitAmount)
				if max.IsNegative() {
					max = zero
				}
				return zero, zero, zero, &InsufficientFundsError{
					Balance:   account.Balance,
					Requested: req.Amount,
					Max:       &max,
				}
			}
		}
		return req.Amount, zero, req.Amount, nil
	}

	switch req.Payout {
	case KindFixed:
		plan, perr := tx.FixedPlanFor(ctx, account.ClientNumber)
		if perr != nil {
			return zero, zero, zero, perr
		}
		if account.Balance.LessThan(plan.UnitAmount) {
			return zero, zero, zero, &InsufficientFundsError{
				Balance:   account.Balance,
				Requested: plan.UnitAmount,
			}
		}
		// Whole balance paid out; one unit retained as commission.
		return account.Balance, plan.UnitAmount, account.Balance.Sub(plan.UnitAmount), nil

	case KindMixed:
		rate := params.InterestRate
		commission = req.Amount.Mul(rate)
		gross = req.Amount.Add(commission)
		if gross.GreaterThan(account.Balance) {
			rMax := account.Balance.Div(decimal.NewFromInt(1).Add(rate)).Floor()
			return zero, zero, zero, &InsufficientFundsError{
				Balance:   account.Balance,
				Requested: req.Amount,
				Max:       &rMax,
			}
		}
		return gross, commission, req.Amount, nil

	default: // KindLocked, already gated by checkLockedGate
		return req.Amount, zero, req.Amount, nil
	}
}
