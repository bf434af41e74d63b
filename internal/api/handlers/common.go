package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ledger-service/ledger_service/internal/domain/entities"
	domainerrors "github.com/ledger-service/ledger_service/internal/domain/errors"
)

// getRequestID extracts request ID from context
func getRequestID(c *gin.Context) string {
	if reqID, exists := c.Get("request_id"); exists {
		if id, ok := reqID.(string); ok {
			return id
		}
	}
	return ""
}

// respondError sends a standardized error response
func respondError(c *gin.Context, status int, code, message string, details map[string]interface{}) {
	c.JSON(status, entities.ErrorResponse{
		Code:    code,
		Message: message,
		Details: details,
	})
}

// respondBadRequest sends a bad request error
func respondBadRequest(c *gin.Context, code, message string, details ...map[string]interface{}) {
	var det map[string]interface{}
	if len(details) > 0 {
		det = details[0]
	}
	respondError(c, http.StatusBadRequest, code, message, det)
}

// respondSuccess sends a success response with data
func respondSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// respondCreated sends a created response with data
func respondCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// respondDomainError maps a domain error onto the HTTP surface. Transient
// store errors only reach here after the processor has exhausted its retries.
func respondDomainError(c *gin.Context, err error) {
	code := domainerrors.GetErrorCode(err)
	details := domainerrors.GetErrorDetails(err)
	message := err.Error()
	if de, ok := err.(*domainerrors.DomainError); ok {
		message = de.Message
	}

	switch {
	case domainerrors.IsAccountNotFound(err):
		respondError(c, http.StatusNotFound, code, message, details)
	case domainerrors.IsInsufficientFunds(err),
		domainerrors.IsInvalidAmount(err),
		domainerrors.IsCurrencyMismatch(err),
		domainerrors.IsInvalidInput(err):
		respondError(c, http.StatusBadRequest, code, message, details)
	case domainerrors.IsRetryable(err):
		respondError(c, http.StatusInternalServerError, code, "Store temporarily unavailable", nil)
	default:
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", nil)
	}
}

// parseUUIDParam parses a path parameter as a UUID
func parseUUIDParam(c *gin.Context, param string) (uuid.UUID, error) {
	s := c.Param(param)
	if s == "" {
		return uuid.Nil, fmt.Errorf("empty %s", param)
	}
	return uuid.Parse(s)
}

// parseIntParam parses a query parameter to int with default value
func parseIntParam(c *gin.Context, param string, defaultVal int) int {
	if val := c.Query(param); val != "" {
		var i int
		if _, err := fmt.Sscanf(val, "%d", &i); err == nil {
			return i
		}
	}
	return defaultVal
}
