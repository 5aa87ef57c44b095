package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splane2030/SplaneDev/ledger"
	"github.com/splane2030/SplaneDev/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestEngine(t *testing.T) *ledger.Engine {
	store, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return ledger.NewEngine(store)
}

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func enrollFixed(t *testing.T, e *ledger.Engine, unit int64) *ledger.Account {
	t.Helper()
	account, err := e.Enroll(context.Background(), ledger.EnrollRequest{
		LastName:   "Kamara",
		FirstName:  "Aissata",
		Kind:       ledger.KindFixed,
		UnitAmount: d(unit),
		StartDate:  time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
		EndDate:    time.Date(2025, time.December, 31, 0, 0, 0, 0, time.UTC),
		Operator:   "op-1",
	})
	require.NoError(t, err)
	return account
}

func enrollMixed(t *testing.T, e *ledger.Engine) *ledger.Account {
	t.Helper()
	account, err := e.Enroll(context.Background(), ledger.EnrollRequest{
		LastName:  "Diallo",
		FirstName: "Moussa",
		Kind:      ledger.KindMixed,
		Operator:  "op-1",
	})
	require.NoError(t, err)
	return account
}

func enrollLocked(t *testing.T, e *ledger.Engine, target int64, percent int) *ledger.Account {
	t.Helper()
	account, err := e.Enroll(context.Background(), ledger.EnrollRequest{
		LastName:          "Toure",
		FirstName:         "Fanta",
		Kind:              ledger.KindLocked,
		TargetAmount:      d(target),
		WithdrawalPercent: percent,
		Operator:          "op-1",
	})
	require.NoError(t, err)
	return account
}

func deposit(t *testing.T, e *ledger.Engine, number string, amount int64) *ledger.DepositRecord {
	t.Helper()
	record, err := e.Deposit(context.Background(), ledger.DepositRequest{
		Number:   number,
		Amount:   d(amount),
		Operator: "op-1",
	})
	require.NoError(t, err)
	return record
}

func balanceOf(t *testing.T, e *ledger.Engine, number string) decimal.Decimal {
	t.Helper()
	view, err := e.GetAccount(context.Background(), number)
	require.NoError(t, err)
	return view.Account.Balance
}

// =============================================================================
// ENROLLMENT TESTS
// =============================================================================

func TestEnroll_GeneratesUniqueNumbers(t *testing.T) {
	e := newTestEngine(t)

	a := enrollMixed(t, e)
	b := enrollMixed(t, e)

	assert.Len(t, a.ClientNumber, 4)
	assert.Len(t, a.CardNumber, 10)
	assert.NotEqual(t, a.ClientNumber, b.ClientNumber)
	assert.NotEqual(t, a.CardNumber, b.CardNumber)
	assert.True(t, a.Balance.IsZero())
	assert.Equal(t, ledger.StatusActive, a.Status)
}

func TestEnroll_LookupByCardNumber(t *testing.T) {
	e := newTestEngine(t)
	a := enrollMixed(t, e)

	view, err := e.GetAccount(context.Background(), a.CardNumber)

	require.NoError(t, err)
	assert.Equal(t, a.ClientNumber, view.Account.ClientNumber)
}

func TestEnroll_FixedWithoutUnitAmount_Rejected(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.Enroll(context.Background(), ledger.EnrollRequest{
		LastName: "Kamara",
		Kind:     ledger.KindFixed,
		Operator: "op-1",
	})

	var vErr *ledger.ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestEnroll_LockedCarriesPlan(t *testing.T) {
	e := newTestEngine(t)
	a := enrollLocked(t, e, 5000, 30)

	view, err := e.GetAccount(context.Background(), a.ClientNumber)

	require.NoError(t, err)
	require.NotNil(t, view.Locked)
	assert.True(t, view.Locked.TargetAmount.Equal(d(5000)))
	assert.Equal(t, 30, view.Locked.WithdrawalPercent)
}

func TestGetAccount_Unknown_NotFound(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.GetAccount(context.Background(), "0000")

	assert.True(t, ledger.IsNotFound(err))
}

// =============================================================================
// FIXED DEPOSIT TESTS
// =============================================================================

func TestDeposit_Fixed_MultipleOfUnit_FillsBooklet(t *testing.T) {
	// GIVEN: A fixed account with a 500 unit
	// WHEN: 1500 is deposited
	// THEN: 3 cases land on page 1 and the balance is 1500

	e := newTestEngine(t)
	a := enrollFixed(t, e, 500)

	deposit(t, e, a.ClientNumber, 1500)

	pages, err := e.GetBooklet(context.Background(), a.ClientNumber)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, 3, pages[0].FilledCases)
	assert.True(t, balanceOf(t, e, a.ClientNumber).Equal(d(1500)))
}

func TestDeposit_Fixed_NotAMultiple_RejectedUnchanged(t *testing.T) {
	// GIVEN: A fixed account with a 500 unit and a 1500 balance
	// WHEN: 1300 (not a multiple) is deposited
	// THEN: The error carries the unit amount and nothing changed

	e := newTestEngine(t)
	a := enrollFixed(t, e, 500)
	deposit(t, e, a.ClientNumber, 1500)

	_, err := e.Deposit(context.Background(), ledger.DepositRequest{
		Number: a.ClientNumber, Amount: d(1300), Operator: "op-1",
	})

	var vErr *ledger.ValidationError
	require.ErrorAs(t, err, &vErr)
	require.NotNil(t, vErr.Limit)
	assert.True(t, vErr.Limit.Equal(d(500)))

	assert.True(t, balanceOf(t, e, a.ClientNumber).Equal(d(1500)))
	pages, err := e.GetBooklet(context.Background(), a.ClientNumber)
	require.NoError(t, err)
	assert.Equal(t, 3, ledger.TotalCases(pages))
}

func TestDeposit_Fixed_BelowUnit_Rejected(t *testing.T) {
	e := newTestEngine(t)
	a := enrollFixed(t, e, 500)

	_, err := e.Deposit(context.Background(), ledger.DepositRequest{
		Number: a.ClientNumber, Amount: d(300), Operator: "op-1",
	})

	var vErr *ledger.ValidationError
	require.ErrorAs(t, err, &vErr)
}

func TestDeposit_Fixed_BookletOverflow_WholeDepositRejected(t *testing.T) {
	// GIVEN: A fixed account whose booklet is completely full (248 cases)
	// WHEN: One more unit is deposited
	// THEN: CapacityExceededError, and neither balance nor pages moved

	e := newTestEngine(t)
	a := enrollFixed(t, e, 10)
	deposit(t, e, a.ClientNumber, 10*ledger.MaxCases)

	_, err := e.Deposit(context.Background(), ledger.DepositRequest{
		Number: a.ClientNumber, Amount: d(10), Operator: "op-1",
	})

	var cErr *ledger.CapacityExceededError
	require.ErrorAs(t, err, &cErr)
	assert.Equal(t, ledger.MaxCases, cErr.Filled)
	assert.Equal(t, 1, cErr.Leftover)
	assert.True(t, balanceOf(t, e, a.ClientNumber).Equal(d(10*ledger.MaxCases)))
}

// =============================================================================
// MIXED DEPOSIT TESTS
// =============================================================================

func TestDeposit_Mixed_BelowMinimum_Rejected(t *testing.T) {
	// The seeded minimum deposit is 500.
	e := newTestEngine(t)
	a := enrollMixed(t, e)

	_, err := e.Deposit(context.Background(), ledger.DepositRequest{
		Number: a.ClientNumber, Amount: d(499), Operator: "op-1",
	})

	var vErr *ledger.ValidationError
	require.ErrorAs(t, err, &vErr)
	require.NotNil(t, vErr.Limit)
	assert.True(t, vErr.Limit.Equal(d(500)))
}

func TestDeposit_Mixed_AtMinimum_Accepted(t *testing.T) {
	e := newTestEngine(t)
	a := enrollMixed(t, e)

	record := deposit(t, e, a.ClientNumber, 500)

	assert.True(t, record.Amount.Equal(d(500)))
	assert.Contains(t, record.Reference, "DEP")
	assert.True(t, balanceOf(t, e, a.ClientNumber).Equal(d(500)))
}

func TestDeposit_NonPositive_Rejected(t *testing.T) {
	e := newTestEngine(t)
	a := enrollMixed(t, e)

	_, err := e.Deposit(context.Background(), ledger.DepositRequest{
		Number: a.ClientNumber, Amount: d(0), Operator: "op-1",
	})

	var vErr *ledger.ValidationError
	assert.ErrorAs(t, err, &vErr)
}

// =============================================================================
// FIXED WITHDRAWAL TESTS
// =============================================================================

func TestWithdraw_FixedPartial_MustRetainOneUnit(t *testing.T) {
	// GIVEN: Balance 1500, unit 500
	// WHEN: 1200 is withdrawn (would leave 300 < one unit)
	// THEN: Rejected, reporting the 1000 maximum

	e := newTestEngine(t)
	a := enrollFixed(t, e, 500)
	deposit(t, e, a.ClientNumber, 1500)

	_, err := e.Withdraw(context.Background(), ledger.WithdrawRequest{
		Number: a.ClientNumber, Amount: d(1200), Mode: ledger.ModePartial, Operator: "op-1",
	})

	var fErr *ledger.InsufficientFundsError
	require.ErrorAs(t, err, &fErr)
	require.NotNil(t, fErr.Max)
	assert.True(t, fErr.Max.Equal(d(1000)))
	assert.True(t, balanceOf(t, e, a.ClientNumber).Equal(d(1500)))
}

func TestWithdraw_FixedPartial_AtMaximum_Succeeds(t *testing.T) {
	e := newTestEngine(t)
	a := enrollFixed(t, e, 500)
	deposit(t, e, a.ClientNumber, 1500)

	record, err := e.Withdraw(context.Background(), ledger.WithdrawRequest{
		Number: a.ClientNumber, Amount: d(1000), Mode: ledger.ModePartial, Operator: "op-1",
	})

	require.NoError(t, err)
	assert.True(t, record.GrossAmount.Equal(d(1000)))
	assert.True(t, record.Commission.IsZero())
	assert.True(t, record.NetAmount.Equal(d(1000)))
	assert.True(t, balanceOf(t, e, a.ClientNumber).Equal(d(500)))
}

func TestWithdraw_FixedGlobal_PaysBalanceLessOneUnit(t *testing.T) {
	// GIVEN: Balance 1500, unit 500
	// WHEN: The account is liquidated
	// THEN: Gross 1500, commission one unit, net 1000, balance zero

	e := newTestEngine(t)
	a := enrollFixed(t, e, 500)
	deposit(t, e, a.ClientNumber, 1500)

	record, err := e.Withdraw(context.Background(), ledger.WithdrawRequest{
		Number: a.ClientNumber, Mode: ledger.ModeGlobal, Payout: ledger.KindFixed, Operator: "op-1",
	})

	require.NoError(t, err)
	assert.True(t, record.GrossAmount.Equal(d(1500)))
	assert.True(t, record.Commission.Equal(d(500)))
	assert.True(t, record.NetAmount.Equal(d(1000)))
	assert.Contains(t, record.Reference, "RET")
	assert.True(t, balanceOf(t, e, a.ClientNumber).IsZero())
}

func TestWithdraw_FixedGlobal_WrongPayout_Rejected(t *testing.T) {
	e := newTestEngine(t)
	a := enrollFixed(t, e, 500)
	deposit(t, e, a.ClientNumber, 1500)

	_, err := e.Withdraw(context.Background(), ledger.WithdrawRequest{
		Number: a.ClientNumber, Amount: d(1000), Mode: ledger.ModeGlobal,
		Payout: ledger.KindMixed, Operator: "op-1",
	})

	var vErr *ledger.ValidationError
	assert.ErrorAs(t, err, &vErr)
}

// =============================================================================
// MIXED WITHDRAWAL TESTS
// =============================================================================

func TestWithdraw_MixedGlobal_CommissionOnNet(t *testing.T) {
	// GIVEN: Balance 10500, rate 5%
	// WHEN: A net 10000 is requested
	// THEN: Commission 500, gross 10500, balance zero

	e := newTestEngine(t)
	a := enrollMixed(t, e)
	deposit(t, e, a.ClientNumber, 10500)

	record, err := e.Withdraw(context.Background(), ledger.WithdrawRequest{
		Number: a.ClientNumber, Amount: d(10000), Mode: ledger.ModeGlobal,
		Payout: ledger.KindMixed, Operator: "op-1",
	})

	require.NoError(t, err)
	assert.True(t, record.NetAmount.Equal(d(10000)))
	assert.True(t, record.Commission.Equal(d(500)))
	assert.True(t, record.GrossAmount.Equal(d(10500)))
	assert.True(t, balanceOf(t, e, a.ClientNumber).IsZero())
}

func TestWithdraw_MixedGlobal_OverBalance_ReportsMaximumNet(t *testing.T) {
	// GIVEN: Balance 10500, rate 5%
	// WHEN: A net 10001 is requested (gross 10501.05 > balance)
	// THEN: Rejected, reporting r_max = floor(10500 / 1.05) = 10000

	e := newTestEngine(t)
	a := enrollMixed(t, e)
	deposit(t, e, a.ClientNumber, 10500)

	_, err := e.Withdraw(context.Background(), ledger.WithdrawRequest{
		Number: a.ClientNumber, Amount: d(10001), Mode: ledger.ModeGlobal,
		Payout: ledger.KindMixed, Operator: "op-1",
	})

	var fErr *ledger.InsufficientFundsError
	require.ErrorAs(t, err, &fErr)
	require.NotNil(t, fErr.Max)
	assert.True(t, fErr.Max.Equal(d(10000)))
	assert.True(t, balanceOf(t, e, a.ClientNumber).Equal(d(10500)))
}

func TestWithdraw_BelowMinimum_Rejected(t *testing.T) {
	// The seeded minimum withdrawal is 1000.
	e := newTestEngine(t)
	a := enrollMixed(t, e)
	deposit(t, e, a.ClientNumber, 5000)

	_, err := e.Withdraw(context.Background(), ledger.WithdrawRequest{
		Number: a.ClientNumber, Amount: d(999), Mode: ledger.ModePartial, Operator: "op-1",
	})

	var vErr *ledger.ValidationError
	require.ErrorAs(t, err, &vErr)
	require.NotNil(t, vErr.Limit)
	assert.True(t, vErr.Limit.Equal(d(1000)))
}

// =============================================================================
// LOCKED WITHDRAWAL TESTS
// =============================================================================

func TestWithdraw_Locked_BeforeTarget_Rejected(t *testing.T) {
	// GIVEN: A locked account targeting 5000, holding 2000
	// WHEN: Any withdrawal is attempted
	// THEN: Rejected by the target gate

	e := newTestEngine(t)
	a := enrollLocked(t, e, 5000, 30)
	deposit(t, e, a.ClientNumber, 2000)

	_, err := e.Withdraw(context.Background(), ledger.WithdrawRequest{
		Number: a.ClientNumber, Amount: d(1000), Mode: ledger.ModePartial, Operator: "op-1",
	})

	var vErr *ledger.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.True(t, balanceOf(t, e, a.ClientNumber).Equal(d(2000)))
}

func TestWithdraw_Locked_AboveCap_ReportsCeiling(t *testing.T) {
	// GIVEN: A locked account at balance 6000, target reached, 30% cap
	// WHEN: 2000 is requested (ceiling is 1800)
	// THEN: Rejected, the error carries the 1800 ceiling

	e := newTestEngine(t)
	a := enrollLocked(t, e, 5000, 30)
	deposit(t, e, a.ClientNumber, 6000)

	_, err := e.Withdraw(context.Background(), ledger.WithdrawRequest{
		Number: a.ClientNumber, Amount: d(2000), Mode: ledger.ModePartial, Operator: "op-1",
	})

	var vErr *ledger.ValidationError
	require.ErrorAs(t, err, &vErr)
	require.NotNil(t, vErr.Limit)
	assert.True(t, vErr.Limit.Equal(d(1800)))
}

func TestWithdraw_Locked_WithinCap_Succeeds(t *testing.T) {
	e := newTestEngine(t)
	a := enrollLocked(t, e, 5000, 30)
	deposit(t, e, a.ClientNumber, 6000)

	record, err := e.Withdraw(context.Background(), ledger.WithdrawRequest{
		Number: a.ClientNumber, Amount: d(1500), Mode: ledger.ModePartial, Operator: "op-1",
	})

	require.NoError(t, err)
	assert.True(t, record.Commission.IsZero())
	assert.True(t, balanceOf(t, e, a.ClientNumber).Equal(d(4500)))
}

// =============================================================================
// OPERATION HISTORY TESTS
// =============================================================================

func TestListRecentOperations_MergedNewestFirst(t *testing.T) {
	e := newTestEngine(t)
	a := enrollMixed(t, e)

	// Deterministic, strictly increasing clock
	base := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	e.Now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	deposit(t, e, a.ClientNumber, 5000)
	deposit(t, e, a.ClientNumber, 600)
	_, err := e.Withdraw(context.Background(), ledger.WithdrawRequest{
		Number: a.ClientNumber, Amount: d(1000), Mode: ledger.ModePartial, Operator: "op-1",
	})
	require.NoError(t, err)

	ops, err := e.ListRecentOperations(context.Background(), a.ClientNumber, 10)

	require.NoError(t, err)
	require.Len(t, ops, 3)
	assert.Equal(t, ledger.OpWithdrawal, ops[0].Type)
	assert.True(t, ops[0].Amount.Equal(d(1000)))
	assert.Equal(t, ledger.OpDeposit, ops[1].Type)
	assert.True(t, ops[1].Amount.Equal(d(600)))
	assert.True(t, ops[2].Amount.Equal(d(5000)))
}

func TestListRecentOperations_HonorsLimit(t *testing.T) {
	e := newTestEngine(t)
	a := enrollMixed(t, e)

	for i := 0; i < 5; i++ {
		deposit(t, e, a.ClientNumber, 500)
	}

	ops, err := e.ListRecentOperations(context.Background(), a.ClientNumber, 3)

	require.NoError(t, err)
	assert.Len(t, ops, 3)
}

// =============================================================================
// RESET TESTS
// =============================================================================

func TestResetFixedAccount_WipesEverything(t *testing.T) {
	// GIVEN: A fixed account with a balance, pages and history
	// WHEN: The account is reset
	// THEN: Balance zero, no pages, no operations

	e := newTestEngine(t)
	a := enrollFixed(t, e, 500)
	deposit(t, e, a.ClientNumber, 2500)

	err := e.ResetFixedAccount(context.Background(), a.ClientNumber, "admin")
	require.NoError(t, err)

	assert.True(t, balanceOf(t, e, a.ClientNumber).IsZero())

	pages, err := e.GetBooklet(context.Background(), a.ClientNumber)
	require.NoError(t, err)
	assert.Empty(t, pages)

	ops, err := e.ListRecentOperations(context.Background(), a.ClientNumber, 10)
	require.NoError(t, err)
	assert.Empty(t, ops)
}

func TestResetFixedAccount_NonFixed_Rejected(t *testing.T) {
	e := newTestEngine(t)
	a := enrollMixed(t, e)

	err := e.ResetFixedAccount(context.Background(), a.ClientNumber, "admin")

	var vErr *ledger.ValidationError
	assert.ErrorAs(t, err, &vErr)
}

// =============================================================================
// DUPLICATE CLEANUP TESTS
// =============================================================================

func TestCleanupDuplicateDeposits_KeepOne(t *testing.T) {
	// GIVEN: The same 600 deposit recorded twice at the same instant
	// WHEN: Cleanup runs in keep-one mode
	// THEN: One row is removed and the balance is debited once

	e := newTestEngine(t)
	a := enrollMixed(t, e)

	frozen := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	e.Now = func() time.Time { return frozen }
	deposit(t, e, a.ClientNumber, 600)
	deposit(t, e, a.ClientNumber, 600)

	groups, err := e.FindDuplicateDeposits(context.Background())
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, a.ClientNumber, groups[0].AccountRef)
	assert.Len(t, groups[0].IDs, 2)

	removed, err := e.CleanupDuplicateDeposits(context.Background(),
		a.ClientNumber, d(600), groups[0].RecordedAt, ledger.CleanupKeepOne, "admin")

	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.True(t, balanceOf(t, e, a.ClientNumber).Equal(d(600)))

	groups, err = e.FindDuplicateDeposits(context.Background())
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestCleanupDuplicateDeposits_RemoveAll(t *testing.T) {
	e := newTestEngine(t)
	a := enrollMixed(t, e)

	frozen := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	e.Now = func() time.Time { return frozen }
	deposit(t, e, a.ClientNumber, 600)
	deposit(t, e, a.ClientNumber, 600)
	deposit(t, e, a.ClientNumber, 600)

	removed, err := e.CleanupDuplicateDeposits(context.Background(),
		a.ClientNumber, d(600), frozen, ledger.CleanupRemoveAll, "admin")

	require.NoError(t, err)
	assert.Equal(t, 3, removed)
	assert.True(t, balanceOf(t, e, a.ClientNumber).IsZero())
}

func TestCleanupDuplicateDeposits_NoMatch_Rejected(t *testing.T) {
	e := newTestEngine(t)
	a := enrollMixed(t, e)
	deposit(t, e, a.ClientNumber, 600)

	_, err := e.CleanupDuplicateDeposits(context.Background(),
		a.ClientNumber, d(600), time.Now().UTC(), ledger.CleanupKeepOne, "admin")

	var vErr *ledger.ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestCleanupDuplicateDeposits_WouldGoNegative_Refused(t *testing.T) {
	// GIVEN: Duplicates whose aggregate exceeds the remaining balance
	// WHEN: Cleanup runs in remove-all mode
	// THEN: Refused rather than clamped

	e := newTestEngine(t)
	a := enrollMixed(t, e)

	frozen := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	e.Now = func() time.Time { return frozen }
	deposit(t, e, a.ClientNumber, 600)
	deposit(t, e, a.ClientNumber, 600)

	// Drain most of the balance first.
	e.Now = time.Now
	_, err := e.Withdraw(context.Background(), ledger.WithdrawRequest{
		Number: a.ClientNumber, Amount: d(1000), Mode: ledger.ModePartial, Operator: "op-1",
	})
	require.NoError(t, err)

	_, err = e.CleanupDuplicateDeposits(context.Background(),
		a.ClientNumber, d(600), frozen, ledger.CleanupRemoveAll, "admin")

	var vErr *ledger.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.True(t, balanceOf(t, e, a.ClientNumber).Equal(d(200)))
}

// =============================================================================
// BLOCKED ACCOUNT TESTS
// =============================================================================

func TestBlockedAccount_RejectsDepositAndWithdrawal(t *testing.T) {
	// GIVEN: An account whose status is blocked
	// WHEN: A deposit and a withdrawal are attempted
	// THEN: Both fail with ErrAccountBlocked and the balance is untouched

	store, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	e := ledger.NewEngine(store)

	ctx := context.Background()
	err = store.WithTx(ctx, func(tx ledger.Tx) error {
		return tx.InsertAccount(ctx, &ledger.Account{
			ClientNumber: "1234",
			CardNumber:   "1234567890",
			LastName:     "Bah",
			Kind:         ledger.KindMixed,
			Balance:      d(3000),
			Status:       ledger.StatusBlocked,
			EnrolledAt:   time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC),
		})
	})
	require.NoError(t, err)

	_, err = e.Deposit(ctx, ledger.DepositRequest{
		Number: "1234", Amount: d(600), Operator: "op-1",
	})
	assert.ErrorIs(t, err, ledger.ErrAccountBlocked)

	_, err = e.Withdraw(ctx, ledger.WithdrawRequest{
		Number: "1234", Amount: d(1000), Mode: ledger.ModePartial, Operator: "op-1",
	})
	assert.ErrorIs(t, err, ledger.ErrAccountBlocked)

	assert.True(t, balanceOf(t, e, "1234").Equal(d(3000)))
}

// =============================================================================
// AUDIT TRAIL TESTS
// =============================================================================

func auditActions(t *testing.T, e *ledger.Engine, number string) []string {
	t.Helper()
	entries, err := e.AuditTrail(context.Background(), number)
	require.NoError(t, err)

	actions := make([]string, 0, len(entries))
	for _, entry := range entries {
		actions = append(actions, entry.Action)
	}
	return actions
}

func TestAuditTrail_RowPerCommittedMutation(t *testing.T) {
	// Every committed mutation writes its audit row in the same transaction.
	e := newTestEngine(t)
	a := enrollMixed(t, e)

	deposit(t, e, a.ClientNumber, 5000)
	_, err := e.Withdraw(context.Background(), ledger.WithdrawRequest{
		Number: a.ClientNumber, Amount: d(1000), Mode: ledger.ModePartial, Operator: "op-1",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"enroll", "deposit", "withdrawal"},
		auditActions(t, e, a.ClientNumber))
}

func TestAuditTrail_RejectedMutationLeavesNoRow(t *testing.T) {
	// GIVEN: A fixed account with a 500 unit
	// WHEN: A non-multiple deposit is rejected
	// THEN: The rolled-back operation left no audit row behind

	e := newTestEngine(t)
	a := enrollFixed(t, e, 500)

	_, err := e.Deposit(context.Background(), ledger.DepositRequest{
		Number: a.ClientNumber, Amount: d(1300), Operator: "op-1",
	})
	require.Error(t, err)

	assert.Equal(t, []string{"enroll"}, auditActions(t, e, a.ClientNumber))
}

func TestAuditTrail_SurvivesReset(t *testing.T) {
	// The reset purges operations and pages but never the audit journal.
	e := newTestEngine(t)
	a := enrollFixed(t, e, 500)
	deposit(t, e, a.ClientNumber, 1500)

	require.NoError(t, e.ResetFixedAccount(context.Background(), a.ClientNumber, "admin"))

	assert.Equal(t, []string{"enroll", "deposit", "reset"},
		auditActions(t, e, a.ClientNumber))
}

func TestAuditTrail_CleanupRecorded(t *testing.T) {
	e := newTestEngine(t)
	a := enrollMixed(t, e)

	frozen := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	e.Now = func() time.Time { return frozen }
	deposit(t, e, a.ClientNumber, 600)
	deposit(t, e, a.ClientNumber, 600)

	_, err := e.CleanupDuplicateDeposits(context.Background(),
		a.ClientNumber, d(600), frozen, ledger.CleanupKeepOne, "admin")
	require.NoError(t, err)

	actions := auditActions(t, e, a.ClientNumber)
	assert.Equal(t, "duplicate-cleanup", actions[len(actions)-1])
}

// =============================================================================
// BOOKLET ACCESS TESTS
// =============================================================================

func TestGetBooklet_NonFixed_Rejected(t *testing.T) {
	e := newTestEngine(t)
	a := enrollMixed(t, e)

	_, err := e.GetBooklet(context.Background(), a.ClientNumber)

	var vErr *ledger.ValidationError
	assert.ErrorAs(t, err, &vErr)
}
