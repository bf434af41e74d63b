package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ledger-service/ledger_service/internal/domain/entities"
	domainerrors "github.com/ledger-service/ledger_service/internal/domain/errors"
	"github.com/ledger-service/ledger_service/pkg/money"
)

// Postgres error codes the processor cares about
const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
)

// LedgerRepository handles ledger data persistence. It is the only component
// that talks to the store; all balance mutation flows through a Session.
type LedgerRepository struct {
	db          *sqlx.DB
	lockTimeout time.Duration
}

// NewLedgerRepository creates a new ledger repository. lockTimeout bounds row
// lock acquisition inside each session; zero disables the bound.
func NewLedgerRepository(db *sqlx.DB, lockTimeout time.Duration) *LedgerRepository {
	return &LedgerRepository{db: db, lockTimeout: lockTimeout}
}

// classifyStoreError maps driver errors onto the domain taxonomy.
// Serialization aborts and lock timeouts are retryable; everything else from
// the transport is reported as store unavailability.
func classifyStoreError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
			return domainerrors.SerializationError(err)
		}
	}
	return domainerrors.StoreUnavailableError(err)
}

// ===== Account Operations =====

// CreateAccount persists a new account with its initial balance
func (r *LedgerRepository) CreateAccount(ctx context.Context, account *entities.Account) error {
	if err := account.Validate(); err != nil {
		return domainerrors.ValidationError("account", err.Error())
	}

	query := `
		INSERT INTO accounts (id, name, currency, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	now := time.Now().UTC()
	account.CreatedAt = now
	account.UpdatedAt = now

	_, err := r.db.ExecContext(
		ctx,
		query,
		account.ID,
		account.Name,
		account.Currency,
		account.Balance,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		return classifyStoreError(err)
	}

	return nil
}

// GetAccountByID retrieves an account by ID without locking it
func (r *LedgerRepository) GetAccountByID(ctx context.Context, accountID uuid.UUID) (*entities.Account, error) {
	query := `
		SELECT id, name, currency, balance, created_at, updated_at
		FROM accounts
		WHERE id = $1
	`

	var account entities.Account
	err := r.db.GetContext(ctx, &account, query, accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainerrors.AccountNotFoundError(accountID.String())
		}
		return nil, classifyStoreError(err)
	}

	return &account, nil
}

// FindTransactionByKey is the idempotency pre-check read. A miss returns
// (nil, nil); only store failures surface as errors.
func (r *LedgerRepository) FindTransactionByKey(ctx context.Context, key string) (*entities.Transaction, error) {
	query := `
		SELECT id, idempotency_key, type, status, reference, created_at
		FROM transactions
		WHERE idempotency_key = $1
	`

	var tx entities.Transaction
	err := r.db.GetContext(ctx, &tx, query, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, classifyStoreError(err)
	}

	return &tx, nil
}

// GetEntriesByAccountID retrieves ledger entries for an account ordered by
// created_at descending
func (r *LedgerRepository) GetEntriesByAccountID(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*entities.LedgerEntry, error) {
	query := `
		SELECT id, transaction_id, account_id, amount, direction, created_at
		FROM ledger_entries
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	entries := []*entities.LedgerEntry{}
	err := r.db.SelectContext(ctx, &entries, query, accountID, limit, offset)
	if err != nil {
		return nil, classifyStoreError(err)
	}

	return entries, nil
}

// ===== Session =====

// Begin opens an interactive store transaction at READ COMMITTED isolation.
// Explicit row locks provide the ordering; SERIALIZABLE is not required.
func (r *LedgerRepository) Begin(ctx context.Context) (*Session, error) {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, classifyStoreError(err)
	}

	if r.lockTimeout > 0 {
		timeout := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.lockTimeout.Milliseconds())
		if _, err := tx.ExecContext(ctx, timeout); err != nil {
			tx.Rollback()
			return nil, classifyStoreError(err)
		}
	}

	return &Session{tx: tx}, nil
}

// Session is one interactive store transaction. Row locks taken through it
// are released by Commit or Rollback.
type Session struct {
	tx   *sqlx.Tx
	done bool
}

// LockAccounts selects all rows whose id is in ids with an exclusive row
// lock, in a single statement so the store grants the locks atomically in id
// order. Rows not present are simply absent from the result.
func (s *Session) LockAccounts(ctx context.Context, ids []uuid.UUID) ([]*entities.Account, error) {
	query := `
		SELECT id, name, currency, balance, created_at, updated_at
		FROM accounts
		WHERE id = ANY($1)
		FOR UPDATE
	`

	accounts := []*entities.Account{}
	err := s.tx.SelectContext(ctx, &accounts, query, pq.Array(ids))
	if err != nil {
		return nil, classifyStoreError(err)
	}

	return accounts, nil
}

// InsertTransaction writes a new transaction row. A unique violation on
// idempotency_key is the authoritative duplicate check and maps to
// DuplicateIdempotencyKey.
func (s *Session) InsertTransaction(ctx context.Context, tx *entities.Transaction) error {
	if err := tx.Validate(); err != nil {
		return domainerrors.ValidationError("transaction", err.Error())
	}

	query := `
		INSERT INTO transactions (id, idempotency_key, type, status, reference, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.tx.ExecContext(
		ctx,
		query,
		tx.ID,
		tx.IdempotencyKey,
		tx.Type,
		tx.Status,
		tx.Reference,
		tx.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pgUniqueViolation {
			key := ""
			if tx.IdempotencyKey != nil {
				key = *tx.IdempotencyKey
			}
			return domainerrors.DuplicateIdempotencyKeyError(key)
		}
		return classifyStoreError(err)
	}

	return nil
}

// InsertEntries writes a batch of ledger entries
func (s *Session) InsertEntries(ctx context.Context, entries []*entities.LedgerEntry) error {
	query := `
		INSERT INTO ledger_entries (id, transaction_id, account_id, amount, direction, created_at)
		VALUES (:id, :transaction_id, :account_id, :amount, :direction, :created_at)
	`

	for _, entry := range entries {
		if err := entry.Validate(); err != nil {
			return domainerrors.ValidationError("entry", err.Error())
		}
	}

	if _, err := s.tx.NamedExecContext(ctx, query, entries); err != nil {
		return classifyStoreError(err)
	}

	return nil
}

// UpdateBalance writes an account's balance. The caller must hold the row
// lock on the account within this session.
func (s *Session) UpdateBalance(ctx context.Context, accountID uuid.UUID, balance money.Money) error {
	query := `
		UPDATE accounts
		SET balance = $1, updated_at = $2
		WHERE id = $3
	`

	result, err := s.tx.ExecContext(ctx, query, balance, time.Now().UTC(), accountID)
	if err != nil {
		return classifyStoreError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return classifyStoreError(err)
	}
	if rowsAffected == 0 {
		return domainerrors.AccountNotFoundError(accountID.String())
	}

	return nil
}

// Commit finalizes the session and releases all row locks
func (s *Session) Commit() error {
	s.done = true
	if err := s.tx.Commit(); err != nil {
		return classifyStoreError(err)
	}
	return nil
}

// Rollback abandons the session. Safe to call after Commit; it becomes a
// no-op so callers can defer it on every exit path.
func (s *Session) Rollback() error {
	if s.done {
		return nil
	}
	s.done = true
	if err := s.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return classifyStoreError(err)
	}
	return nil
}

// ===== Reconciliation Queries =====

// BalanceMismatch describes an account whose stored balance has drifted from
// the sum of its ledger entries.
type BalanceMismatch struct {
	AccountID uuid.UUID   `db:"account_id"`
	Balance   money.Money `db:"balance"`
	EntrySum  money.Money `db:"entry_sum"`
}

// FindBalanceMismatches returns accounts whose stored balance differs from
// the sum of their ledger entries
func (r *LedgerRepository) FindBalanceMismatches(ctx context.Context) ([]BalanceMismatch, error) {
	query := `
		SELECT a.id AS account_id,
		       a.balance AS balance,
		       COALESCE(SUM(e.amount), 0) AS entry_sum
		FROM accounts a
		LEFT JOIN ledger_entries e ON e.account_id = a.id
		GROUP BY a.id, a.balance
		HAVING a.balance != COALESCE(SUM(e.amount), 0)
	`

	mismatches := []BalanceMismatch{}
	if err := r.db.SelectContext(ctx, &mismatches, query); err != nil {
		return nil, classifyStoreError(err)
	}

	return mismatches, nil
}

// CountUnbalancedTransfers returns the number of TRANSFER transactions whose
// entries do not form a balanced double-entry pair.
func (r *LedgerRepository) CountUnbalancedTransfers(ctx context.Context) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM (
			SELECT e.transaction_id
			FROM ledger_entries e
			JOIN transactions t ON t.id = e.transaction_id
			WHERE t.type = 'TRANSFER'
			GROUP BY e.transaction_id
			HAVING COUNT(*) != 2 OR SUM(e.amount) != 0
		) AS unbalanced
	`

	var count int
	if err := r.db.GetContext(ctx, &count, query); err != nil {
		return 0, classifyStoreError(err)
	}

	return count, nil
}
