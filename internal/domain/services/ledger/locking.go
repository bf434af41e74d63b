package ledger

import (
	"bytes"
	"sort"

	"github.com/google/uuid"

	"github.com/ledger-service/ledger_service/internal/domain/entities"
)

// lockOrder computes the set of account rows a transaction must lock and
// returns it sorted lexicographically on the 128-bit id value. Any two
// transactions touching overlapping account sets therefore acquire their
// shared locks in the same order, which keeps the lock acquisition graph
// acyclic. The set must be acquired in a single LockAccounts call so the
// store grants all locks in id order.
func lockOrder(req *entities.CreateTransactionRequest) []uuid.UUID {
	ids := []uuid.UUID{req.AccountID}
	if req.Type == entities.TransactionTypeTransfer && req.ReceiverID != nil {
		ids = append(ids, *req.ReceiverID)
	}

	sort.Slice(ids, func(i, j int) bool {
		return bytes.Compare(ids[i][:], ids[j][:]) < 0
	})

	return ids
}
