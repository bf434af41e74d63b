package ledger

import (
	"context"

	"github.com/google/uuid"

	"github.com/ledger-service/ledger_service/internal/domain/entities"
	"github.com/ledger-service/ledger_service/internal/infrastructure/repositories"
	"github.com/ledger-service/ledger_service/pkg/money"
)

// Store is the processor's view of the transactional store.
type Store interface {
	// Begin opens an interactive store transaction at READ COMMITTED
	// isolation.
	Begin(ctx context.Context) (Session, error)

	CreateAccount(ctx context.Context, account *entities.Account) error
	GetAccountByID(ctx context.Context, accountID uuid.UUID) (*entities.Account, error)

	// FindTransactionByKey returns (nil, nil) on a miss.
	FindTransactionByKey(ctx context.Context, key string) (*entities.Transaction, error)

	GetEntriesByAccountID(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*entities.LedgerEntry, error)
}

// Session is one interactive store transaction. Locks acquired through it
// are released by Commit or Rollback; Rollback after Commit is a no-op.
type Session interface {
	LockAccounts(ctx context.Context, ids []uuid.UUID) ([]*entities.Account, error)
	InsertTransaction(ctx context.Context, tx *entities.Transaction) error
	InsertEntries(ctx context.Context, entries []*entities.LedgerEntry) error
	UpdateBalance(ctx context.Context, accountID uuid.UUID, balance money.Money) error
	Commit() error
	Rollback() error
}

// sqlStore adapts the Postgres repository to the Store interface.
type sqlStore struct {
	repo *repositories.LedgerRepository
}

// NewStore wraps a ledger repository as a processor Store
func NewStore(repo *repositories.LedgerRepository) Store {
	return &sqlStore{repo: repo}
}

func (s *sqlStore) Begin(ctx context.Context) (Session, error) {
	sess, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *sqlStore) CreateAccount(ctx context.Context, account *entities.Account) error {
	return s.repo.CreateAccount(ctx, account)
}

func (s *sqlStore) GetAccountByID(ctx context.Context, accountID uuid.UUID) (*entities.Account, error) {
	return s.repo.GetAccountByID(ctx, accountID)
}

func (s *sqlStore) FindTransactionByKey(ctx context.Context, key string) (*entities.Transaction, error) {
	return s.repo.FindTransactionByKey(ctx, key)
}

func (s *sqlStore) GetEntriesByAccountID(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*entities.LedgerEntry, error) {
	return s.repo.GetEntriesByAccountID(ctx, accountID, limit, offset)
}
