/*
Package sqlite is the persistence gateway and repository over a local
SQLite store.

PURPOSE:
  Implements ledger.Store and ledger.Tx. The engine sees typed records
  and scoped transactions; everything SQL-shaped lives here.

DURABILITY:
  The store is opened with WAL journaling, foreign-key enforcement and a
  bounded busy timeout. Multiple readers don't block; a single writer at
  a time; crash recovery via the write-ahead log.

CONTENTION:
  The store file may be held by another process (a second instance, a
  backup tool). Open retries with exponential backoff (1s doubling,
  capped at 10s) up to 5 attempts; the transaction runner retries the
  whole callback the same way when a commit hits the lock. After the
  budget is exhausted a ledger.StoreUnavailableError surfaces with an
  operator-facing lock diagnosis (see diagnose.go). No operation ever
  commits twice.

SCHEMA:
  accounts, fixed_plans, locked_plans, booklet_pages, deposits,
  withdrawals, audit_log, parameters. Auto-migrated on Open; business
  parameters are seeded with their defaults on first run.

USAGE:
  store, err := sqlite.Open("./data/epargne.db")
  if err != nil {
      // errors.Is(err, ledger.ErrStoreUnavailable) after retries
  }
  defer store.Close()
  engine := ledger.NewEngine(store)

SEE ALSO:
  - ledger/store.go: Interface contracts
  - diagnose.go: Lock diagnostics attached to StoreUnavailableError
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/splane2030/SplaneDev/ledger"
)

const (
	maxOpenAttempts = 5
	maxTxAttempts   = 5
	baseBackoff     = time.Second
	maxBackoff      = 10 * time.Second
	busyTimeoutMS   = 30000
)

// Store implements ledger.Store over a SQLite database file.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open opens (creating if necessary) the database at path, configures it
// for durable concurrent access and migrates the schema. Use ":memory:"
// for an in-memory database.
//
// Transient open failures (another process holding the lock) are retried
// with exponential backoff; after maxOpenAttempts a StoreUnavailableError
// is returned with a lock diagnosis attached. Permanent failures (missing
// directory, bad permissions, schema errors) return immediately.
func Open(path string) (*Store, error) {
	dsn := path + "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=" + strconv.Itoa(busyTimeoutMS)

	var lastErr error
	for attempt := 0; attempt < maxOpenAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(backoff(attempt - 1))
		}

		db, err := sql.Open("sqlite3", dsn)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		// One connection: transactions serialize on s.mu anyway, and a
		// ":memory:" database would otherwise exist per connection.
		db.SetMaxOpenConns(1)
		// sql.Open is lazy; probe the file now.
		if _, err := db.Exec("SELECT 1"); err != nil {
			db.Close()
			if !isBusyError(err) {
				return nil, fmt.Errorf("open database: %w", err)
			}
			lastErr = err
			continue
		}
		if _, err := db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
			db.Close()
			if !isBusyError(err) {
				return nil, fmt.Errorf("open database: %w", err)
			}
			lastErr = err
			continue
		}

		s := &Store{db: db, path: path}
		if err := s.migrate(); err != nil {
			db.Close()
			if !isBusyError(err) {
				return nil, fmt.Errorf("migrate: %w", err)
			}
			lastErr = fmt.Errorf("migrate: %w", err)
			continue
		}
		return s, nil
	}

	return nil, &ledger.StoreUnavailableError{
		Attempts:  maxOpenAttempts,
		Diagnosis: Diagnose(path).Report(),
		Err:       lastErr,
	}
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// backoff returns the delay before retry number attempt+1: 1s, 2s, 4s, 8s,
// then capped at 10s.
func backoff(attempt int) time.Duration {
	d := baseBackoff << attempt
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}

// migrate creates the database schema and seeds default parameters.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS accounts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		client_number TEXT UNIQUE NOT NULL,
		card_number TEXT UNIQUE NOT NULL,
		last_name TEXT NOT NULL,
		middle_name TEXT,
		first_name TEXT,
		gender TEXT CHECK(gender IN ('M', 'F', '')),
		birth_date TEXT,
		birth_place TEXT,
		address TEXT,
		phone TEXT,
		deputy TEXT,
		deputy_contact TEXT,
		kind TEXT NOT NULL CHECK(kind IN ('fixed', 'mixed', 'locked')),
		balance TEXT NOT NULL DEFAULT '0',
		status TEXT NOT NULL DEFAULT 'active' CHECK(status IN ('active', 'inactive', 'blocked')),
		enrolled_at TEXT NOT NULL,
		last_operation_at TEXT
	);

	CREATE TABLE IF NOT EXISTS fixed_plans (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		account_ref TEXT UNIQUE NOT NULL REFERENCES accounts(client_number),
		unit_amount TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS locked_plans (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		account_ref TEXT UNIQUE NOT NULL REFERENCES accounts(client_number),
		target_amount TEXT NOT NULL,
		withdrawal_percent INTEGER NOT NULL,
		withdrawal_frequency TEXT
	);

	CREATE TABLE IF NOT EXISTS booklet_pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		account_ref TEXT NOT NULL REFERENCES accounts(client_number),
		page_number INTEGER NOT NULL,
		filled_cases INTEGER NOT NULL DEFAULT 0,
		UNIQUE(account_ref, page_number)
	);

	CREATE TABLE IF NOT EXISTS deposits (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		account_ref TEXT NOT NULL REFERENCES accounts(client_number),
		amount TEXT NOT NULL,
		reference TEXT UNIQUE NOT NULL,
		holder_name TEXT,
		operator TEXT NOT NULL,
		payment_method TEXT,
		recorded_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_deposits_account
		ON deposits(account_ref, recorded_at DESC);
	-- Duplicate detection groups on this triple
	CREATE INDEX IF NOT EXISTS idx_deposits_dup
		ON deposits(account_ref, amount, recorded_at);

	CREATE TABLE IF NOT EXISTS withdrawals (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		account_ref TEXT NOT NULL REFERENCES accounts(client_number),
		gross_amount TEXT NOT NULL,
		commission TEXT NOT NULL,
		net_amount TEXT NOT NULL,
		reference TEXT UNIQUE NOT NULL,
		operator TEXT NOT NULL,
		status TEXT NOT NULL,
		recorded_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_withdrawals_account
		ON withdrawals(account_ref, recorded_at DESC);

	CREATE TABLE IF NOT EXISTS audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		action TEXT NOT NULL,
		actor TEXT NOT NULL,
		target TEXT,
		detail TEXT,
		recorded_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS parameters (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		description TEXT
	);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	// interest_rate is stored as a percentage, as operators enter it.
	seed := `
	INSERT OR IGNORE INTO parameters (key, value, description) VALUES
		('interest_rate', '5.0', 'Mixed-account commission rate (%)'),
		('minimum_deposit', '500', 'Minimum mixed-account deposit'),
		('minimum_withdrawal', '1000', 'Minimum partial/mixed withdrawal');
	`
	_, err := s.db.Exec(seed)
	return err
}

// =============================================================================
// TRANSACTION RUNNER (ledger.Store interface)
// =============================================================================

// WithTx executes fn within one database transaction. Lock contention on
// begin or commit retries the whole callback with backoff; fn never sees a
// partially committed state and no operation commits twice.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Tx) error) error {
	var lastErr error
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff(attempt - 1)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := s.runTx(ctx, fn)
		if err == nil || !isBusyError(err) {
			return err
		}
		lastErr = err
	}

	return &ledger.StoreUnavailableError{
		Attempts:  maxTxAttempts,
		Diagnosis: Diagnose(s.path).Report(),
		Err:       lastErr,
	}
}

func (s *Store) runTx(ctx context.Context, fn func(ledger.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer sqlTx.Rollback()

	if err := fn(&tx{t: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// tx implements ledger.Tx over one *sql.Tx.
type tx struct {
	t *sql.Tx
}

// =============================================================================
// ACCOUNTS
// =============================================================================

const accountColumns = `id, client_number, card_number, last_name, middle_name, first_name,
	gender, birth_date, birth_place, address, phone, deputy, deputy_contact,
	kind, balance, status, enrolled_at, last_operation_at`

func (x *tx) AccountByClientNumber(ctx context.Context, clientNumber string) (*ledger.Account, error) {
	row := x.t.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE client_number = ?", clientNumber)
	return scanAccount(row)
}

func (x *tx) AccountByCardNumber(ctx context.Context, cardNumber string) (*ledger.Account, error) {
	row := x.t.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE card_number = ?", cardNumber)
	return scanAccount(row)
}

func scanAccount(row *sql.Row) (*ledger.Account, error) {
	var (
		a               ledger.Account
		middleName      sql.NullString
		firstName       sql.NullString
		gender          sql.NullString
		birthDate       sql.NullString
		birthPlace      sql.NullString
		address         sql.NullString
		phone           sql.NullString
		deputy          sql.NullString
		deputyContact   sql.NullString
		balance         string
		enrolledAt      string
		lastOperationAt sql.NullString
	)

	err := row.Scan(
		&a.ID, &a.ClientNumber, &a.CardNumber, &a.LastName, &middleName, &firstName,
		&gender, &birthDate, &birthPlace, &address, &phone, &deputy, &deputyContact,
		&a.Kind, &balance, &a.Status, &enrolledAt, &lastOperationAt,
	)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan account: %w", err)
	}

	a.MiddleName = middleName.String
	a.FirstName = firstName.String
	a.Gender = gender.String
	a.BirthDate = birthDate.String
	a.BirthPlace = birthPlace.String
	a.Address = address.String
	a.Phone = phone.String
	a.Deputy = deputy.String
	a.DeputyContact = deputyContact.String
	if a.Balance, err = parseMoney(balance); err != nil {
		return nil, fmt.Errorf("account %s: %w", a.ClientNumber, err)
	}
	if a.EnrolledAt, err = parseTime(enrolledAt); err != nil {
		return nil, fmt.Errorf("account %s: %w", a.ClientNumber, err)
	}
	if lastOperationAt.Valid {
		t, err := parseTime(lastOperationAt.String)
		if err != nil {
			return nil, fmt.Errorf("account %s: %w", a.ClientNumber, err)
		}
		a.LastOperationAt = &t
	}
	return &a, nil
}

func (x *tx) ClientNumberExists(ctx context.Context, clientNumber string) (bool, error) {
	var count int
	err := x.t.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM accounts WHERE client_number = ?", clientNumber).Scan(&count)
	return count > 0, err
}

func (x *tx) CardNumberExists(ctx context.Context, cardNumber string) (bool, error) {
	var count int
	err := x.t.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM accounts WHERE card_number = ?", cardNumber).Scan(&count)
	return count > 0, err
}

func (x *tx) InsertAccount(ctx context.Context, a *ledger.Account) error {
	res, err := x.t.ExecContext(ctx, `
		INSERT INTO accounts
		(client_number, card_number, last_name, middle_name, first_name,
		 gender, birth_date, birth_place, address, phone, deputy, deputy_contact,
		 kind, balance, status, enrolled_at, last_operation_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ClientNumber, a.CardNumber, a.LastName, a.MiddleName, a.FirstName,
		a.Gender, a.BirthDate, a.BirthPlace, a.Address, a.Phone, a.Deputy, a.DeputyContact,
		string(a.Kind), a.Balance.String(), string(a.Status),
		formatTime(a.EnrolledAt), nullTime(a.LastOperationAt),
	)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	a.ID, _ = res.LastInsertId()
	return nil
}

func (x *tx) UpdateBalance(ctx context.Context, clientNumber string, balance decimal.Decimal, at time.Time) error {
	res, err := x.t.ExecContext(ctx,
		"UPDATE accounts SET balance = ?, last_operation_at = ? WHERE client_number = ?",
		balance.String(), formatTime(at), clientNumber)
	if err != nil {
		return fmt.Errorf("update balance: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

// =============================================================================
// KIND EXTENSIONS
// =============================================================================

func (x *tx) FixedPlanFor(ctx context.Context, clientNumber string) (*ledger.FixedPlan, error) {
	var (
		p          ledger.FixedPlan
		unitAmount string
		startDate  string
		endDate    string
	)
	err := x.t.QueryRowContext(ctx,
		"SELECT account_ref, unit_amount, start_date, end_date FROM fixed_plans WHERE account_ref = ?",
		clientNumber,
	).Scan(&p.AccountRef, &unitAmount, &startDate, &endDate)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if p.UnitAmount, err = parseMoney(unitAmount); err != nil {
		return nil, err
	}
	if p.StartDate, err = parseTime(startDate); err != nil {
		return nil, err
	}
	if p.EndDate, err = parseTime(endDate); err != nil {
		return nil, err
	}
	return &p, nil
}

func (x *tx) LockedPlanFor(ctx context.Context, clientNumber string) (*ledger.LockedPlan, error) {
	var (
		p            ledger.LockedPlan
		targetAmount string
		frequency    sql.NullString
	)
	err := x.t.QueryRowContext(ctx,
		"SELECT account_ref, target_amount, withdrawal_percent, withdrawal_frequency FROM locked_plans WHERE account_ref = ?",
		clientNumber,
	).Scan(&p.AccountRef, &targetAmount, &p.WithdrawalPercent, &frequency)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if p.TargetAmount, err = parseMoney(targetAmount); err != nil {
		return nil, err
	}
	p.WithdrawalFrequency = frequency.String
	return &p, nil
}

func (x *tx) InsertFixedPlan(ctx context.Context, p *ledger.FixedPlan) error {
	_, err := x.t.ExecContext(ctx,
		"INSERT INTO fixed_plans (account_ref, unit_amount, start_date, end_date) VALUES (?, ?, ?, ?)",
		p.AccountRef, p.UnitAmount.String(), formatTime(p.StartDate), formatTime(p.EndDate))
	return err
}

func (x *tx) InsertLockedPlan(ctx context.Context, p *ledger.LockedPlan) error {
	_, err := x.t.ExecContext(ctx,
		"INSERT INTO locked_plans (account_ref, target_amount, withdrawal_percent, withdrawal_frequency) VALUES (?, ?, ?, ?)",
		p.AccountRef, p.TargetAmount.String(), p.WithdrawalPercent, p.WithdrawalFrequency)
	return err
}

// =============================================================================
// BOOKLET PAGES
// =============================================================================

func (x *tx) BookletPages(ctx context.Context, clientNumber string) ([]ledger.BookletPage, error) {
	rows, err := x.t.QueryContext(ctx,
		"SELECT page_number, filled_cases FROM booklet_pages WHERE account_ref = ? ORDER BY page_number",
		clientNumber)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pages []ledger.BookletPage
	for rows.Next() {
		var p ledger.BookletPage
		if err := rows.Scan(&p.PageNumber, &p.FilledCases); err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

func (x *tx) SaveBookletPages(ctx context.Context, clientNumber string, pages []ledger.BookletPage) error {
	for _, p := range pages {
		_, err := x.t.ExecContext(ctx, `
			INSERT INTO booklet_pages (account_ref, page_number, filled_cases)
			VALUES (?, ?, ?)
			ON CONFLICT(account_ref, page_number) DO UPDATE SET
				filled_cases = excluded.filled_cases`,
			clientNumber, p.PageNumber, p.FilledCases)
		if err != nil {
			return fmt.Errorf("save booklet page %d: %w", p.PageNumber, err)
		}
	}
	return nil
}

func (x *tx) DeleteBookletPages(ctx context.Context, clientNumber string) error {
	_, err := x.t.ExecContext(ctx, "DELETE FROM booklet_pages WHERE account_ref = ?", clientNumber)
	return err
}

// =============================================================================
// OPERATION RECORDS
// =============================================================================

func (x *tx) InsertDeposit(ctx context.Context, d *ledger.DepositRecord) error {
	res, err := x.t.ExecContext(ctx, `
		INSERT INTO deposits
		(account_ref, amount, reference, holder_name, operator, payment_method, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.AccountRef, d.Amount.String(), d.Reference, d.HolderName,
		d.Operator, d.PaymentMethod, formatTime(d.RecordedAt))
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.ErrDuplicateReference
		}
		return fmt.Errorf("insert deposit: %w", err)
	}
	d.ID, _ = res.LastInsertId()
	return nil
}

func (x *tx) InsertWithdrawal(ctx context.Context, w *ledger.WithdrawalRecord) error {
	res, err := x.t.ExecContext(ctx, `
		INSERT INTO withdrawals
		(account_ref, gross_amount, commission, net_amount, reference, operator, status, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		w.AccountRef, w.GrossAmount.String(), w.Commission.String(), w.NetAmount.String(),
		w.Reference, w.Operator, string(w.Status), formatTime(w.RecordedAt))
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.ErrDuplicateReference
		}
		return fmt.Errorf("insert withdrawal: %w", err)
	}
	w.ID, _ = res.LastInsertId()
	return nil
}

func (x *tx) RecentOperations(ctx context.Context, clientNumber string, limit int) ([]ledger.Operation, error) {
	rows, err := x.t.QueryContext(ctx, `
		SELECT op_type, amount, reference, operator, recorded_at FROM (
			SELECT 'deposit' AS op_type, amount, reference, operator, recorded_at, id
			FROM deposits WHERE account_ref = ?
			UNION ALL
			SELECT 'withdrawal', gross_amount, reference, operator, recorded_at, id
			FROM withdrawals WHERE account_ref = ?
		)
		ORDER BY recorded_at DESC, id DESC
		LIMIT ?`,
		clientNumber, clientNumber, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ops []ledger.Operation
	for rows.Next() {
		var (
			op         ledger.Operation
			amount     string
			recordedAt string
		)
		if err := rows.Scan(&op.Type, &amount, &op.Reference, &op.Operator, &recordedAt); err != nil {
			return nil, err
		}
		var err error
		if op.Amount, err = parseMoney(amount); err != nil {
			return nil, err
		}
		if op.RecordedAt, err = parseTime(recordedAt); err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

func (x *tx) DeleteOperations(ctx context.Context, clientNumber string) error {
	if _, err := x.t.ExecContext(ctx, "DELETE FROM deposits WHERE account_ref = ?", clientNumber); err != nil {
		return err
	}
	_, err := x.t.ExecContext(ctx, "DELETE FROM withdrawals WHERE account_ref = ?", clientNumber)
	return err
}

// =============================================================================
// DUPLICATE CLEANUP
// =============================================================================

func (x *tx) DuplicateDeposits(ctx context.Context) ([]ledger.DuplicateGroup, error) {
	rows, err := x.t.QueryContext(ctx, `
		SELECT account_ref, amount, recorded_at, GROUP_CONCAT(id)
		FROM deposits
		GROUP BY account_ref, amount, recorded_at
		HAVING COUNT(*) > 1
		ORDER BY account_ref, recorded_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []ledger.DuplicateGroup
	for rows.Next() {
		var (
			g          ledger.DuplicateGroup
			amount     string
			recordedAt string
			idList     string
		)
		if err := rows.Scan(&g.AccountRef, &amount, &recordedAt, &idList); err != nil {
			return nil, err
		}
		var err error
		if g.Amount, err = parseMoney(amount); err != nil {
			return nil, err
		}
		if g.RecordedAt, err = parseTime(recordedAt); err != nil {
			return nil, err
		}
		for _, raw := range strings.Split(idList, ",") {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("parse duplicate id %q: %w", raw, err)
			}
			g.IDs = append(g.IDs, id)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (x *tx) DepositsAt(ctx context.Context, clientNumber string, amount decimal.Decimal, at time.Time) ([]ledger.DepositRecord, error) {
	rows, err := x.t.QueryContext(ctx, `
		SELECT id, account_ref, amount, reference, holder_name, operator, payment_method, recorded_at
		FROM deposits
		WHERE account_ref = ? AND amount = ? AND recorded_at = ?
		ORDER BY id`,
		clientNumber, amount.String(), formatTime(at))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []ledger.DepositRecord
	for rows.Next() {
		var (
			d             ledger.DepositRecord
			rawAmount     string
			holderName    sql.NullString
			paymentMethod sql.NullString
			recordedAt    string
		)
		if err := rows.Scan(&d.ID, &d.AccountRef, &rawAmount, &d.Reference,
			&holderName, &d.Operator, &paymentMethod, &recordedAt); err != nil {
			return nil, err
		}
		var err error
		if d.Amount, err = parseMoney(rawAmount); err != nil {
			return nil, err
		}
		if d.RecordedAt, err = parseTime(recordedAt); err != nil {
			return nil, err
		}
		d.HolderName = holderName.String
		d.PaymentMethod = paymentMethod.String
		records = append(records, d)
	}
	return records, rows.Err()
}

func (x *tx) DeleteDepositsByID(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	_, err := x.t.ExecContext(ctx, "DELETE FROM deposits WHERE id IN ("+placeholders+")", args...)
	return err
}

// =============================================================================
// AUDIT LOG
// =============================================================================

func (x *tx) AppendAudit(ctx context.Context, e ledger.AuditEntry) error {
	_, err := x.t.ExecContext(ctx,
		"INSERT INTO audit_log (action, actor, target, detail, recorded_at) VALUES (?, ?, ?, ?, ?)",
		e.Action, e.Actor, e.Target, e.Detail, formatTime(e.RecordedAt))
	if err != nil {
		return fmt.Errorf("append audit: %w", err)
	}
	return nil
}

func (x *tx) AuditEntriesFor(ctx context.Context, target string) ([]ledger.AuditEntry, error) {
	rows, err := x.t.QueryContext(ctx,
		"SELECT id, action, actor, target, detail, recorded_at FROM audit_log WHERE target = ? ORDER BY id",
		target)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []ledger.AuditEntry
	for rows.Next() {
		var (
			e          ledger.AuditEntry
			rowTarget  sql.NullString
			detail     sql.NullString
			recordedAt string
		)
		if err := rows.Scan(&e.ID, &e.Action, &e.Actor, &rowTarget, &detail, &recordedAt); err != nil {
			return nil, err
		}
		e.Target = rowTarget.String
		e.Detail = detail.String
		var perr error
		if e.RecordedAt, perr = parseTime(recordedAt); perr != nil {
			return nil, perr
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// PARAMETERS
// =============================================================================

func (x *tx) Params(ctx context.Context) (ledger.Params, error) {
	rows, err := x.t.QueryContext(ctx, "SELECT key, value FROM parameters")
	if err != nil {
		return ledger.Params{}, err
	}
	defer rows.Close()

	values := map[string]string{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return ledger.Params{}, err
		}
		values[key] = value
	}
	if err := rows.Err(); err != nil {
		return ledger.Params{}, err
	}

	rate, err := parseMoney(values["interest_rate"])
	if err != nil {
		return ledger.Params{}, err
	}
	minDeposit, err := parseMoney(values["minimum_deposit"])
	if err != nil {
		return ledger.Params{}, err
	}
	minWithdrawal, err := parseMoney(values["minimum_withdrawal"])
	if err != nil {
		return ledger.Params{}, err
	}

	// interest_rate is stored as a percentage.
	return ledger.Params{
		InterestRate:      rate.Div(decimal.NewFromInt(100)),
		MinimumDeposit:    minDeposit,
		MinimumWithdrawal: minWithdrawal,
	}, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// parseMoney and parseTime refuse corrupted rows instead of reading them
// back as zero values; a balance that fails to parse is a store-integrity
// problem the caller must see.
func parseMoney(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return d, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// isBusyError matches the lock-contention errors SQLite reports while
// another process holds the database.
func isBusyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}
