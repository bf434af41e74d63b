package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ledger-service/ledger_service/internal/domain/entities"
	"github.com/ledger-service/ledger_service/internal/domain/services/ledger"
	"github.com/ledger-service/ledger_service/pkg/logger"
)

// TransactionHandler handles transaction endpoints
type TransactionHandler struct {
	service *ledger.Service
	logger  *logger.Logger
}

// NewTransactionHandler creates a new transaction handler
func NewTransactionHandler(service *ledger.Service, logger *logger.Logger) *TransactionHandler {
	return &TransactionHandler{service: service, logger: logger}
}

// ProcessTransaction handles POST /api/v1/transactions. The optional
// Idempotency-Key header makes the request safely repeatable; replays return
// the originally committed transaction.
func (h *TransactionHandler) ProcessTransaction(c *gin.Context) {
	var req entities.CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, ErrCodeInvalidRequest, "Invalid request payload")
		return
	}

	var idempotencyKey *string
	if key := strings.TrimSpace(c.GetHeader("Idempotency-Key")); key != "" {
		if err := entities.ValidateIdempotencyKey(key); err != nil {
			respondBadRequest(c, ErrCodeValidationError, err.Error())
			return
		}
		idempotencyKey = &key
	}

	tx, err := h.service.ProcessTransaction(c.Request.Context(), &req, idempotencyKey)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	respondCreated(c, tx)
}
