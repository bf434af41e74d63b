package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/ledger-service/ledger_service/internal/domain/entities"
	"github.com/ledger-service/ledger_service/internal/domain/services/ledger"
	"github.com/ledger-service/ledger_service/pkg/logger"
)

// AccountHandler handles account endpoints
type AccountHandler struct {
	service *ledger.Service
	logger  *logger.Logger
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(service *ledger.Service, logger *logger.Logger) *AccountHandler {
	return &AccountHandler{service: service, logger: logger}
}

// CreateAccount handles POST /api/v1/accounts
func (h *AccountHandler) CreateAccount(c *gin.Context) {
	var req entities.CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, ErrCodeInvalidRequest, "Invalid request payload")
		return
	}

	account, err := h.service.CreateAccount(c.Request.Context(), &req)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	respondCreated(c, account)
}

// GetAccount handles GET /api/v1/accounts/:id
func (h *AccountHandler) GetAccount(c *gin.Context) {
	accountID, err := parseUUIDParam(c, "id")
	if err != nil {
		respondBadRequest(c, ErrCodeInvalidID, "Invalid account ID")
		return
	}

	account, err := h.service.GetAccount(c.Request.Context(), accountID)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	respondSuccess(c, account)
}

// GetAccountHistory handles GET /api/v1/accounts/:id/history
func (h *AccountHandler) GetAccountHistory(c *gin.Context) {
	accountID, err := parseUUIDParam(c, "id")
	if err != nil {
		respondBadRequest(c, ErrCodeInvalidID, "Invalid account ID")
		return
	}

	limit := parseIntParam(c, "limit", 0)
	offset := parseIntParam(c, "offset", 0)

	entries, err := h.service.GetAccountHistory(c.Request.Context(), accountID, limit, offset)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	respondSuccess(c, gin.H{
		"account_id": accountID,
		"entries":    entries,
		"count":      len(entries),
	})
}
