package ledger

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledger-service/ledger_service/internal/domain/entities"
	domainerrors "github.com/ledger-service/ledger_service/internal/domain/errors"
	"github.com/ledger-service/ledger_service/pkg/logger"
	"github.com/ledger-service/ledger_service/pkg/money"
)

// memStore is an in-memory Store with the same locking semantics the real
// store provides: sessions holding row locks serialize against each other,
// and the idempotency key check at insert is authoritative.
type memStore struct {
	dataMu   sync.Mutex
	lockMu   sync.Mutex
	accounts map[uuid.UUID]*entities.Account
	txByKey  map[string]*entities.Transaction
	txs      []*entities.Transaction
	entries  []*entities.LedgerEntry

	beginErrs []error // popped one per Begin call, nil entries succeed
	findCalls int
	missFinds int // force this many FindTransactionByKey misses
}

func newMemStore() *memStore {
	return &memStore{
		accounts: make(map[uuid.UUID]*entities.Account),
		txByKey:  make(map[string]*entities.Transaction),
	}
}

func (s *memStore) addAccount(t *testing.T, currency, balance string) uuid.UUID {
	t.Helper()
	acc := &entities.Account{
		ID:       uuid.New(),
		Name:     "test account",
		Currency: entities.Currency(currency),
		Balance:  money.MustParse(balance),
	}
	s.dataMu.Lock()
	s.accounts[acc.ID] = acc
	s.dataMu.Unlock()
	return acc.ID
}

func (s *memStore) balance(t *testing.T, id uuid.UUID) string {
	t.Helper()
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	acc, ok := s.accounts[id]
	require.True(t, ok)
	return acc.Balance.String()
}

func (s *memStore) Begin(ctx context.Context) (Session, error) {
	s.dataMu.Lock()
	if len(s.beginErrs) > 0 {
		err := s.beginErrs[0]
		s.beginErrs = s.beginErrs[1:]
		s.dataMu.Unlock()
		if err != nil {
			return nil, err
		}
		return &memSession{store: s, balances: make(map[uuid.UUID]money.Money)}, nil
	}
	s.dataMu.Unlock()
	return &memSession{store: s, balances: make(map[uuid.UUID]money.Money)}, nil
}

func (s *memStore) CreateAccount(ctx context.Context, account *entities.Account) error {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	cp := *account
	s.accounts[account.ID] = &cp
	return nil
}

func (s *memStore) GetAccountByID(ctx context.Context, accountID uuid.UUID) (*entities.Account, error) {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	acc, ok := s.accounts[accountID]
	if !ok {
		return nil, domainerrors.AccountNotFoundError(accountID.String())
	}
	cp := *acc
	return &cp, nil
}

func (s *memStore) FindTransactionByKey(ctx context.Context, key string) (*entities.Transaction, error) {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	s.findCalls++
	if s.missFinds > 0 {
		s.missFinds--
		return nil, nil
	}
	tx, ok := s.txByKey[key]
	if !ok {
		return nil, nil
	}
	cp := *tx
	return &cp, nil
}

func (s *memStore) GetEntriesByAccountID(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*entities.LedgerEntry, error) {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()

	matched := []*entities.LedgerEntry{}
	for i := len(s.entries) - 1; i >= 0; i-- { // newest first
		if s.entries[i].AccountID == accountID {
			matched = append(matched, s.entries[i])
		}
	}
	if offset >= len(matched) {
		return []*entities.LedgerEntry{}, nil
	}
	matched = matched[offset:]
	if limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}

type memSession struct {
	store    *memStore
	locked   bool
	done     bool
	tx       *entities.Transaction
	entries  []*entities.LedgerEntry
	balances map[uuid.UUID]money.Money
}

func (m *memSession) LockAccounts(ctx context.Context, ids []uuid.UUID) ([]*entities.Account, error) {
	m.store.lockMu.Lock()
	m.locked = true

	m.store.dataMu.Lock()
	defer m.store.dataMu.Unlock()

	accounts := []*entities.Account{}
	for _, id := range ids {
		if acc, ok := m.store.accounts[id]; ok {
			cp := *acc
			accounts = append(accounts, &cp)
		}
	}
	return accounts, nil
}

func (m *memSession) InsertTransaction(ctx context.Context, tx *entities.Transaction) error {
	m.store.dataMu.Lock()
	defer m.store.dataMu.Unlock()
	if tx.IdempotencyKey != nil {
		if _, exists := m.store.txByKey[*tx.IdempotencyKey]; exists {
			return domainerrors.DuplicateIdempotencyKeyError(*tx.IdempotencyKey)
		}
	}
	cp := *tx
	m.tx = &cp
	return nil
}

func (m *memSession) InsertEntries(ctx context.Context, entries []*entities.LedgerEntry) error {
	for _, e := range entries {
		if err := e.Validate(); err != nil {
			return domainerrors.ValidationError("entry", err.Error())
		}
		cp := *e
		m.entries = append(m.entries, &cp)
	}
	return nil
}

func (m *memSession) UpdateBalance(ctx context.Context, accountID uuid.UUID, balance money.Money) error {
	m.store.dataMu.Lock()
	defer m.store.dataMu.Unlock()
	if _, ok := m.store.accounts[accountID]; !ok {
		return domainerrors.AccountNotFoundError(accountID.String())
	}
	m.balances[accountID] = balance
	return nil
}

func (m *memSession) Commit() error {
	m.store.dataMu.Lock()
	if m.tx != nil {
		m.store.txs = append(m.store.txs, m.tx)
		if m.tx.IdempotencyKey != nil {
			m.store.txByKey[*m.tx.IdempotencyKey] = m.tx
		}
	}
	m.store.entries = append(m.store.entries, m.entries...)
	for id, balance := range m.balances {
		m.store.accounts[id].Balance = balance
	}
	m.store.dataMu.Unlock()

	m.done = true
	if m.locked {
		m.store.lockMu.Unlock()
		m.locked = false
	}
	return nil
}

func (m *memSession) Rollback() error {
	if m.done {
		return nil
	}
	m.done = true
	if m.locked {
		m.store.lockMu.Unlock()
		m.locked = false
	}
	return nil
}

func newTestService(store *memStore) *Service {
	log := logger.NewNop()
	registry := NewRegistry(store, nil, log)
	return NewService(store, registry, log, nil)
}

func strPtr(s string) *string { return &s }

func TestCreateAccount(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	account, err := svc.CreateAccount(context.Background(), &entities.CreateAccountRequest{
		Name:     "alice",
		Currency: "usd",
	})
	require.NoError(t, err)

	assert.Equal(t, entities.CurrencyUSD, account.Currency)
	assert.True(t, account.Balance.IsZero())
	assert.NotEqual(t, uuid.Nil, account.ID)

	fetched, err := svc.GetAccount(context.Background(), account.ID)
	require.NoError(t, err)
	assert.Equal(t, account.ID, fetched.ID)
}

func TestCreateAccountUnsupportedCurrency(t *testing.T) {
	svc := newTestService(newMemStore())

	_, err := svc.CreateAccount(context.Background(), &entities.CreateAccountRequest{
		Name:     "bob",
		Currency: "EUR",
	})
	assert.True(t, domainerrors.IsInvalidInput(err))
}

func TestDeposit(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	accountID := store.addAccount(t, "USD", "0.00")

	tx, err := svc.ProcessTransaction(context.Background(), &entities.CreateTransactionRequest{
		AccountID: accountID,
		Type:      entities.TransactionTypeDeposit,
		Amount:    money.MustParse("50.00"),
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, entities.TransactionStatusCompleted, tx.Status)
	assert.Equal(t, "50.00", store.balance(t, accountID))

	require.Len(t, store.entries, 1)
	entry := store.entries[0]
	assert.Equal(t, entities.EntryDirectionCredit, entry.Direction)
	assert.Equal(t, "50.00", entry.Amount.String())
	assert.Equal(t, tx.ID, entry.TransactionID)
}

func TestWithdrawal(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	accountID := store.addAccount(t, "USD", "100.00")

	_, err := svc.ProcessTransaction(context.Background(), &entities.CreateTransactionRequest{
		AccountID: accountID,
		Type:      entities.TransactionTypeWithdrawal,
		Amount:    money.MustParse("40.00"),
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "60.00", store.balance(t, accountID))

	require.Len(t, store.entries, 1)
	assert.Equal(t, entities.EntryDirectionDebit, store.entries[0].Direction)
	assert.Equal(t, "-40.00", store.entries[0].Amount.String())
}

func TestWithdrawalInsufficientFunds(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	accountID := store.addAccount(t, "USD", "10.00")

	_, err := svc.ProcessTransaction(context.Background(), &entities.CreateTransactionRequest{
		AccountID: accountID,
		Type:      entities.TransactionTypeWithdrawal,
		Amount:    money.MustParse("20.00"),
	}, nil)
	assert.True(t, domainerrors.IsInsufficientFunds(err))

	// Nothing persisted on failure
	assert.Equal(t, "10.00", store.balance(t, accountID))
	assert.Empty(t, store.txs)
	assert.Empty(t, store.entries)
}

func TestTransfer(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	sender := store.addAccount(t, "USD", "100.00")
	receiver := store.addAccount(t, "USD", "5.00")

	tx, err := svc.ProcessTransaction(context.Background(), &entities.CreateTransactionRequest{
		AccountID:  sender,
		Type:       entities.TransactionTypeTransfer,
		Amount:     money.MustParse("30.00"),
		ReceiverID: &receiver,
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "70.00", store.balance(t, sender))
	assert.Equal(t, "35.00", store.balance(t, receiver))

	// Exactly one debit/credit pair summing to zero
	require.Len(t, store.entries, 2)
	sum := money.Zero()
	for _, e := range store.entries {
		assert.Equal(t, tx.ID, e.TransactionID)
		var err error
		sum, err = sum.Add(e.Amount)
		require.NoError(t, err)
	}
	assert.True(t, sum.IsZero())
}

func TestTransferCurrencyMismatch(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	sender := store.addAccount(t, "USD", "100.00")
	receiver := store.addAccount(t, "INR", "0.00")

	_, err := svc.ProcessTransaction(context.Background(), &entities.CreateTransactionRequest{
		AccountID:  sender,
		Type:       entities.TransactionTypeTransfer,
		Amount:     money.MustParse("30.00"),
		ReceiverID: &receiver,
	}, nil)
	assert.True(t, domainerrors.IsCurrencyMismatch(err))

	assert.Equal(t, "100.00", store.balance(t, sender))
	assert.Equal(t, "0.00", store.balance(t, receiver))
}

func TestTransferReceiverNotFound(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	sender := store.addAccount(t, "USD", "100.00")
	missing := uuid.New()

	_, err := svc.ProcessTransaction(context.Background(), &entities.CreateTransactionRequest{
		AccountID:  sender,
		Type:       entities.TransactionTypeTransfer,
		Amount:     money.MustParse("30.00"),
		ReceiverID: &missing,
	}, nil)
	assert.True(t, domainerrors.IsAccountNotFound(err))
	assert.Equal(t, "100.00", store.balance(t, sender))
}

func TestDepositAccountNotFound(t *testing.T) {
	svc := newTestService(newMemStore())

	_, err := svc.ProcessTransaction(context.Background(), &entities.CreateTransactionRequest{
		AccountID: uuid.New(),
		Type:      entities.TransactionTypeDeposit,
		Amount:    money.MustParse("30.00"),
	}, nil)
	assert.True(t, domainerrors.IsAccountNotFound(err))
}

func TestSelfTransferRejected(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	accountID := store.addAccount(t, "USD", "100.00")

	_, err := svc.ProcessTransaction(context.Background(), &entities.CreateTransactionRequest{
		AccountID:  accountID,
		Type:       entities.TransactionTypeTransfer,
		Amount:     money.MustParse("30.00"),
		ReceiverID: &accountID,
	}, nil)
	assert.True(t, domainerrors.IsInvalidInput(err))
}

func TestNonPositiveAmountRejected(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	accountID := store.addAccount(t, "USD", "100.00")

	_, err := svc.ProcessTransaction(context.Background(), &entities.CreateTransactionRequest{
		AccountID: accountID,
		Type:      entities.TransactionTypeDeposit,
		Amount:    money.Zero(),
	}, nil)
	assert.True(t, domainerrors.IsInvalidAmount(err))
}

func TestIdempotentReplayReturnsOriginal(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	accountID := store.addAccount(t, "USD", "0.00")
	key := strPtr("deposit-123")

	first, err := svc.ProcessTransaction(context.Background(), &entities.CreateTransactionRequest{
		AccountID: accountID,
		Type:      entities.TransactionTypeDeposit,
		Amount:    money.MustParse("50.00"),
	}, key)
	require.NoError(t, err)

	// Replay with the same key applies nothing and returns the stored record
	second, err := svc.ProcessTransaction(context.Background(), &entities.CreateTransactionRequest{
		AccountID: accountID,
		Type:      entities.TransactionTypeDeposit,
		Amount:    money.MustParse("50.00"),
	}, key)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "50.00", store.balance(t, accountID))
	assert.Len(t, store.txs, 1)
	assert.Len(t, store.entries, 1)
}

func TestIdempotencyRaceFallsBackToStoredTransaction(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	accountID := store.addAccount(t, "USD", "100.00")
	key := strPtr("race-key")

	// Commit a transaction under the key, then force the pre-check to miss.
	// The insert hits the unique index and the processor must fall back to
	// the stored record instead of failing.
	first, err := svc.ProcessTransaction(context.Background(), &entities.CreateTransactionRequest{
		AccountID: accountID,
		Type:      entities.TransactionTypeDeposit,
		Amount:    money.MustParse("10.00"),
	}, key)
	require.NoError(t, err)

	store.dataMu.Lock()
	store.missFinds = 1
	store.dataMu.Unlock()

	second, err := svc.ProcessTransaction(context.Background(), &entities.CreateTransactionRequest{
		AccountID: accountID,
		Type:      entities.TransactionTypeDeposit,
		Amount:    money.MustParse("10.00"),
	}, key)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "110.00", store.balance(t, accountID))
	assert.Len(t, store.txs, 1)
}

func TestTransientErrorsAreRetried(t *testing.T) {
	store := newMemStore()
	store.beginErrs = []error{
		domainerrors.StoreUnavailableError(assert.AnError),
		domainerrors.SerializationError(assert.AnError),
	}
	svc := newTestService(store)
	accountID := store.addAccount(t, "USD", "0.00")

	_, err := svc.ProcessTransaction(context.Background(), &entities.CreateTransactionRequest{
		AccountID: accountID,
		Type:      entities.TransactionTypeDeposit,
		Amount:    money.MustParse("25.00"),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "25.00", store.balance(t, accountID))
}

func TestTransientRetriesExhausted(t *testing.T) {
	store := newMemStore()
	store.beginErrs = []error{
		domainerrors.StoreUnavailableError(assert.AnError),
		domainerrors.StoreUnavailableError(assert.AnError),
		domainerrors.StoreUnavailableError(assert.AnError),
	}
	svc := newTestService(store)
	accountID := store.addAccount(t, "USD", "0.00")

	_, err := svc.ProcessTransaction(context.Background(), &entities.CreateTransactionRequest{
		AccountID: accountID,
		Type:      entities.TransactionTypeDeposit,
		Amount:    money.MustParse("25.00"),
	}, nil)
	require.Error(t, err)
	assert.True(t, domainerrors.IsRetryable(err))
	assert.Equal(t, "0.00", store.balance(t, accountID))
}

func TestConcurrentWithdrawalsNeverOverdraw(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	accountID := store.addAccount(t, "USD", "100.00")

	const workers = 10
	results := make(chan error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ProcessTransaction(context.Background(), &entities.CreateTransactionRequest{
				AccountID: accountID,
				Type:      entities.TransactionTypeWithdrawal,
				Amount:    money.MustParse("20.00"),
			}, nil)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded, failed := 0, 0
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.True(t, domainerrors.IsInsufficientFunds(err))
			failed++
		}
	}

	// 100.00 covers exactly five 20.00 withdrawals
	assert.Equal(t, 5, succeeded)
	assert.Equal(t, 5, failed)
	assert.Equal(t, "0.00", store.balance(t, accountID))

	sum := money.Zero()
	for _, e := range store.entries {
		var err error
		sum, err = sum.Add(e.Amount)
		require.NoError(t, err)
	}
	assert.Equal(t, "-100.00", sum.String())
}

func TestGetAccountHistoryPagination(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	accountID := store.addAccount(t, "USD", "0.00")

	for _, amount := range []string{"1.00", "2.00", "3.00"} {
		_, err := svc.ProcessTransaction(context.Background(), &entities.CreateTransactionRequest{
			AccountID: accountID,
			Type:      entities.TransactionTypeDeposit,
			Amount:    money.MustParse(amount),
		}, nil)
		require.NoError(t, err)
	}

	// Newest first
	entries, err := svc.GetAccountHistory(context.Background(), accountID, 2, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "3.00", entries[0].Amount.String())
	assert.Equal(t, "2.00", entries[1].Amount.String())

	entries, err = svc.GetAccountHistory(context.Background(), accountID, 2, 2)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "1.00", entries[0].Amount.String())

	// Zero and negative inputs fall back to sane values
	entries, err = svc.GetAccountHistory(context.Background(), accountID, 0, -5)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}
