// Package ledger implements the transaction-processing engine: validation,
// deterministic multi-account locking, balance mutation, double-entry
// recording, and idempotent retries, all inside one store transaction per
// request.
package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ledger-service/ledger_service/internal/domain/entities"
	domainerrors "github.com/ledger-service/ledger_service/internal/domain/errors"
	"github.com/ledger-service/ledger_service/pkg/logger"
	"github.com/ledger-service/ledger_service/pkg/metrics"
	"github.com/ledger-service/ledger_service/pkg/money"
)

const (
	// maxTransientRetries bounds retries on Serialization / StoreUnavailable.
	// Client errors and duplicate keys never re-enter the write path.
	maxTransientRetries = 2

	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
)

// Service drives transactions through the processing state machine and owns
// all balance mutation. No shared mutable state exists between requests;
// cross-request coordination is delegated to the store via row locks and the
// idempotency unique index.
type Service struct {
	store    Store
	registry *Registry
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

// NewService creates a new ledger service. metrics may be nil.
func NewService(store Store, registry *Registry, logger *logger.Logger, m *metrics.Metrics) *Service {
	return &Service{
		store:    store,
		registry: registry,
		logger:   logger,
		metrics:  m,
	}
}

// CreateAccount validates the currency, allocates an id, and persists the
// account with a zero balance.
func (s *Service) CreateAccount(ctx context.Context, req *entities.CreateAccountRequest) (*entities.Account, error) {
	if req.Name == "" {
		return nil, domainerrors.ValidationError("name", "name is required")
	}

	currency, err := entities.ParseCurrency(req.Currency)
	if err != nil {
		return nil, domainerrors.ValidationError("currency", err.Error())
	}

	account := &entities.Account{
		ID:       uuid.New(),
		Name:     req.Name,
		Currency: currency,
		Balance:  money.Zero(),
	}

	if err := s.store.CreateAccount(ctx, account); err != nil {
		return nil, err
	}

	s.logger.Info("Account created",
		"account_id", account.ID,
		"currency", account.Currency)

	return account, nil
}

// GetAccount retrieves an account by id
func (s *Service) GetAccount(ctx context.Context, accountID uuid.UUID) (*entities.Account, error) {
	return s.store.GetAccountByID(ctx, accountID)
}

// GetAccountHistory returns ledger entries for the account ordered by
// created_at descending. limit is clamped to [1, 1000]; negative offsets are
// treated as 0.
func (s *Service) GetAccountHistory(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*entities.LedgerEntry, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}

	return s.store.GetEntriesByAccountID(ctx, accountID, limit, offset)
}

// ProcessTransaction applies a validated transaction request exactly once.
//
// A pre-check hit on the idempotency registry short-circuits with the stored
// record before any store session is opened. Otherwise the request is locked,
// validated, applied, and recorded inside one session. Transient
// store failures are retried with a fresh session at most twice. A duplicate
// idempotency key observed at insert means a concurrent request won the
// race; the registry is re-checked once and the stored record returned.
func (s *Service) ProcessTransaction(ctx context.Context, req *entities.CreateTransactionRequest, idempotencyKey *string) (*entities.Transaction, error) {
	if !req.Amount.IsPositive() {
		return nil, domainerrors.InvalidAmountError("amount must be strictly positive")
	}
	if err := req.Validate(); err != nil {
		return nil, domainerrors.ValidationError("request", err.Error())
	}
	if idempotencyKey != nil {
		if err := entities.ValidateIdempotencyKey(*idempotencyKey); err != nil {
			return nil, domainerrors.ValidationError("idempotency_key", err.Error())
		}

		stored, err := s.registry.Find(ctx, *idempotencyKey)
		if err != nil {
			return nil, err
		}
		if stored != nil {
			s.logger.Info("Transaction already exists (idempotent)",
				"idempotency_key", *idempotencyKey,
				"transaction_id", stored.ID)
			return stored, nil
		}
	}

	var lastErr error
	for attempt := 0; attempt <= maxTransientRetries; attempt++ {
		start := time.Now()
		tx, err := s.processOnce(ctx, req, idempotencyKey)
		if err == nil {
			s.observe(req.Type, "completed", time.Since(start))
			s.logger.Info("Transaction committed",
				"transaction_id", tx.ID,
				"type", tx.Type,
				"amount", req.Amount)
			return tx, nil
		}

		if domainerrors.IsDuplicateIdempotencyKey(err) && idempotencyKey != nil {
			stored, findErr := s.registry.Find(ctx, *idempotencyKey)
			if findErr != nil {
				return nil, findErr
			}
			if stored != nil {
				s.logger.Info("Lost idempotency race, returning stored transaction",
					"idempotency_key", *idempotencyKey,
					"transaction_id", stored.ID)
				return stored, nil
			}
			return nil, domainerrors.InternalError("duplicate idempotency key without stored transaction", err)
		}

		if !domainerrors.IsRetryable(err) {
			s.observe(req.Type, "failed", time.Since(start))
			return nil, err
		}

		lastErr = err
		s.logger.Warn("Transient store error, retrying with fresh session",
			"attempt", attempt+1,
			"error", err)
	}

	s.observe(req.Type, "failed", 0)
	return nil, lastErr
}

// processOnce runs one full attempt inside a single store session. Every
// exit path other than a successful commit rolls the session back, so a
// failure leaves no trace.
func (s *Service) processOnce(ctx context.Context, req *entities.CreateTransactionRequest, idempotencyKey *string) (*entities.Transaction, error) {
	sess, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer sess.Rollback()

	// Lock: one batched FOR UPDATE select over the id-sorted account set
	locked, err := sess.LockAccounts(ctx, lockOrder(req))
	if err != nil {
		return nil, err
	}

	accounts := make(map[uuid.UUID]*entities.Account, len(locked))
	for _, acc := range locked {
		accounts[acc.ID] = acc
	}

	sender, ok := accounts[req.AccountID]
	if !ok {
		return nil, domainerrors.AccountNotFoundError(req.AccountID.String())
	}

	var receiver *entities.Account
	if req.Type == entities.TransactionTypeTransfer {
		receiver, ok = accounts[*req.ReceiverID]
		if !ok {
			return nil, domainerrors.AccountNotFoundError(req.ReceiverID.String())
		}
	}

	// Validate + Apply: mutate balances in memory under the row locks
	switch req.Type {
	case entities.TransactionTypeDeposit:
		newBalance, err := sender.Balance.Add(req.Amount)
		if err != nil {
			return nil, domainerrors.InvalidAmountError(err.Error())
		}
		sender.Balance = newBalance

	case entities.TransactionTypeWithdrawal:
		if sender.Balance.LessThan(req.Amount) {
			return nil, domainerrors.InsufficientFundsError(sender.Balance.String(), req.Amount.String())
		}
		newBalance, err := sender.Balance.Sub(req.Amount)
		if err != nil {
			return nil, domainerrors.InvalidAmountError(err.Error())
		}
		sender.Balance = newBalance

	case entities.TransactionTypeTransfer:
		if sender.Currency != receiver.Currency {
			return nil, domainerrors.CurrencyMismatchError(string(sender.Currency), string(receiver.Currency))
		}
		if sender.Balance.LessThan(req.Amount) {
			return nil, domainerrors.InsufficientFundsError(sender.Balance.String(), req.Amount.String())
		}
		senderBalance, err := sender.Balance.Sub(req.Amount)
		if err != nil {
			return nil, domainerrors.InvalidAmountError(err.Error())
		}
		receiverBalance, err := receiver.Balance.Add(req.Amount)
		if err != nil {
			return nil, domainerrors.InvalidAmountError(err.Error())
		}
		sender.Balance = senderBalance
		receiver.Balance = receiverBalance

	default:
		return nil, domainerrors.ValidationError("type", "invalid transaction type")
	}

	// Record: transaction header, ledger entries, balance updates, all in
	// this session. Status is COMPLETED before commit or nothing is visible.
	now := time.Now().UTC()
	tx := &entities.Transaction{
		ID:             uuid.New(),
		IdempotencyKey: idempotencyKey,
		Type:           req.Type,
		Status:         entities.TransactionStatusCompleted,
		Reference:      req.Reference,
		CreatedAt:      now,
	}

	if err := sess.InsertTransaction(ctx, tx); err != nil {
		return nil, err
	}

	if err := sess.InsertEntries(ctx, buildEntries(tx, req, now)); err != nil {
		return nil, err
	}

	if err := sess.UpdateBalance(ctx, sender.ID, sender.Balance); err != nil {
		return nil, err
	}
	if receiver != nil {
		if err := sess.UpdateBalance(ctx, receiver.ID, receiver.Balance); err != nil {
			return nil, err
		}
	}

	if err := sess.Commit(); err != nil {
		return nil, err
	}

	if idempotencyKey != nil {
		s.registry.Remember(ctx, *idempotencyKey, tx)
	}

	return tx, nil
}

// buildEntries derives the signed ledger entries for a transaction:
// one credit for a deposit, one debit for a withdrawal, and a zero-sum
// debit/credit pair for a transfer.
func buildEntries(tx *entities.Transaction, req *entities.CreateTransactionRequest, now time.Time) []*entities.LedgerEntry {
	switch req.Type {
	case entities.TransactionTypeDeposit:
		return []*entities.LedgerEntry{{
			ID:            uuid.New(),
			TransactionID: tx.ID,
			AccountID:     req.AccountID,
			Amount:        req.Amount,
			Direction:     entities.EntryDirectionCredit,
			CreatedAt:     now,
		}}

	case entities.TransactionTypeWithdrawal:
		return []*entities.LedgerEntry{{
			ID:            uuid.New(),
			TransactionID: tx.ID,
			AccountID:     req.AccountID,
			Amount:        req.Amount.Neg(),
			Direction:     entities.EntryDirectionDebit,
			CreatedAt:     now,
		}}

	case entities.TransactionTypeTransfer:
		return []*entities.LedgerEntry{
			{
				ID:            uuid.New(),
				TransactionID: tx.ID,
				AccountID:     req.AccountID,
				Amount:        req.Amount.Neg(),
				Direction:     entities.EntryDirectionDebit,
				CreatedAt:     now,
			},
			{
				ID:            uuid.New(),
				TransactionID: tx.ID,
				AccountID:     *req.ReceiverID,
				Amount:        req.Amount,
				Direction:     entities.EntryDirectionCredit,
				CreatedAt:     now,
			},
		}
	}

	return nil
}

func (s *Service) observe(txType entities.TransactionType, status string, duration time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveTransaction(string(txType), status, duration)
}
