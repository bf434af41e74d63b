package entities

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledger-service/ledger_service/pkg/money"
)

func TestParseCurrency(t *testing.T) {
	c, err := ParseCurrency(" usd ")
	require.NoError(t, err)
	assert.Equal(t, CurrencyUSD, c)

	c, err = ParseCurrency("inr")
	require.NoError(t, err)
	assert.Equal(t, CurrencyINR, c)

	_, err = ParseCurrency("EUR")
	assert.Error(t, err)

	_, err = ParseCurrency("")
	assert.Error(t, err)
}

func TestCreateTransactionRequestValidate(t *testing.T) {
	base := func() CreateTransactionRequest {
		return CreateTransactionRequest{
			AccountID: uuid.New(),
			Type:      TransactionTypeDeposit,
			Amount:    money.MustParse("10.00"),
		}
	}

	t.Run("valid deposit", func(t *testing.T) {
		req := base()
		assert.NoError(t, req.Validate())
	})

	t.Run("missing account", func(t *testing.T) {
		req := base()
		req.AccountID = uuid.Nil
		assert.Error(t, req.Validate())
	})

	t.Run("invalid type", func(t *testing.T) {
		req := base()
		req.Type = TransactionType("REFUND")
		assert.Error(t, req.Validate())
	})

	t.Run("zero amount", func(t *testing.T) {
		req := base()
		req.Amount = money.Zero()
		assert.Error(t, req.Validate())
	})

	t.Run("transfer without receiver", func(t *testing.T) {
		req := base()
		req.Type = TransactionTypeTransfer
		assert.Error(t, req.Validate())
	})

	t.Run("self transfer", func(t *testing.T) {
		req := base()
		req.Type = TransactionTypeTransfer
		req.ReceiverID = &req.AccountID
		assert.Error(t, req.Validate())
	})

	t.Run("valid transfer", func(t *testing.T) {
		req := base()
		req.Type = TransactionTypeTransfer
		receiver := uuid.New()
		req.ReceiverID = &receiver
		assert.NoError(t, req.Validate())
	})
}

func TestValidateIdempotencyKey(t *testing.T) {
	assert.NoError(t, ValidateIdempotencyKey("order-2024-001"))
	assert.Error(t, ValidateIdempotencyKey(""))
	assert.Error(t, ValidateIdempotencyKey(strings.Repeat("k", MaxIdempotencyKeyLength+1)))
	assert.NoError(t, ValidateIdempotencyKey(strings.Repeat("k", MaxIdempotencyKeyLength)))
}

func TestLedgerEntryValidateSignPairing(t *testing.T) {
	entry := LedgerEntry{
		ID:            uuid.New(),
		TransactionID: uuid.New(),
		AccountID:     uuid.New(),
		Amount:        money.MustParse("-10.00"),
		Direction:     EntryDirectionDebit,
	}
	assert.NoError(t, entry.Validate())

	entry.Direction = EntryDirectionCredit
	assert.Error(t, entry.Validate(), "credit must be positive")

	entry.Amount = money.MustParse("10.00")
	assert.NoError(t, entry.Validate())

	entry.Direction = EntryDirectionDebit
	assert.Error(t, entry.Validate(), "debit must be negative")

	entry.Amount = money.Zero()
	assert.Error(t, entry.Validate(), "zero amount never valid")
}

func TestTransactionValidate(t *testing.T) {
	tx := Transaction{
		ID:     uuid.New(),
		Type:   TransactionTypeDeposit,
		Status: TransactionStatusCompleted,
	}
	assert.NoError(t, tx.Validate())

	empty := ""
	tx.IdempotencyKey = &empty
	assert.Error(t, tx.Validate())
}
