package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yachttime/qbconnect/internal/http/middleware"
	"github.com/yachttime/qbconnect/internal/service"
)

// QuickBooksHandler dispatches the single action endpoint.
type QuickBooksHandler struct {
	Service *service.QuickBooksService
	Logger  *zap.Logger
}

// NewQuickBooksHandler creates the handler.
func NewQuickBooksHandler(svc *service.QuickBooksService, logger *zap.Logger) *QuickBooksHandler {
	return &QuickBooksHandler{Service: svc, Logger: logger}
}

type actionRequest struct {
	Action           string `json:"action" binding:"required"`
	Code             string `json:"code"`
	RealmID          string `json:"realmId"`
	State            string `json:"state"`
	EncryptedSession string `json:"encrypted_session"`
	Origin           string `json:"origin"`
}

// Handle serves POST /quickbooks. The caller is already authenticated and
// authorized by the gate middleware.
func (h *QuickBooksHandler) Handle(c *gin.Context) {
	caller, ok := middleware.GetCaller(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid authorization"})
		return
	}

	var req actionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "action is required"})
		return
	}

	ctx := c.Request.Context()
	switch req.Action {
	case "get_auth_url":
		authURL, err := h.Service.GetAuthURL(ctx, caller, req.Origin)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "auth_url": authURL})

	case "exchange_token":
		result, err := h.Service.ExchangeToken(ctx, caller, service.ExchangeInput{
			Code:    req.Code,
			RealmID: req.RealmID,
			State:   req.State,
			Origin:  req.Origin,
		})
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success":           true,
			"company_name":      result.CompanyName,
			"encrypted_session": result.EncryptedSession,
		})

	case "refresh_token":
		result, err := h.Service.RefreshToken(ctx, caller, req.EncryptedSession)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success":           true,
			"encrypted_session": result.EncryptedSession,
			"expires_at":        result.ExpiresAt,
		})

	case "disconnect":
		if err := h.Service.Disconnect(ctx, caller, req.EncryptedSession); err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})

	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown action"})
	}
}

// respondError logs full detail server-side and returns the minimal
// message. Unexpected errors never leak internals to the caller.
func (h *QuickBooksHandler) respondError(c *gin.Context, err error) {
	var svcErr *service.ServiceError
	if errors.As(err, &svcErr) {
		c.JSON(svcErr.Status, gin.H{"error": svcErr.Message})
		return
	}
	h.log().Error("quickbooks action failed", zap.Error(err))
	c.JSON(http.StatusBadRequest, gin.H{"error": "an unexpected error occurred"})
}

func (h *QuickBooksHandler) log() *zap.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return zap.L()
}
