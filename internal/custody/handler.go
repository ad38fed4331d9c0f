package custody

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yachttime/qbconnect/internal/auth"
	"github.com/yachttime/qbconnect/internal/domain"
)

// Handler exposes the custody service over HTTP for internal callers.
type Handler struct {
	vault    *Vault
	verifier *auth.Verifier
	logger   *zap.Logger
}

// NewHandler wires the custody HTTP surface.
func NewHandler(vault *Vault, verifier *auth.Verifier, logger *zap.Logger) *Handler {
	return &Handler{vault: vault, verifier: verifier, logger: logger}
}

type custodyRequest struct {
	Action string `json:"action"`
	Data   struct {
		AccessToken      string `json:"access_token"`
		RefreshToken     string `json:"refresh_token"`
		EncryptedSession string `json:"encrypted_session"`
	} `json:"data"`
}

// Handle serves POST /token-custody with {action: encrypt|decrypt, data}.
func (h *Handler) Handle(c *gin.Context) {
	subject, err := h.subject(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid authorization"})
		return
	}

	var req custodyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	switch req.Action {
	case "encrypt":
		blob, err := h.vault.Seal(domain.TokenPair{
			AccessToken:  req.Data.AccessToken,
			RefreshToken: req.Data.RefreshToken,
		}, subject)
		if err != nil {
			h.log().Error("custody encrypt failed", zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"error": "encryption failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"encrypted_session": blob})
	case "decrypt":
		pair, err := h.vault.Open(req.Data.EncryptedSession, subject)
		if err != nil {
			h.log().Warn("custody decrypt failed", zap.String("subject", subject), zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"error": "decryption failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown action"})
	}
}

func (h *Handler) subject(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", ErrInvalidSession
	}
	return h.verifier.Verify(parts[1])
}

func (h *Handler) log() *zap.Logger {
	if h != nil && h.logger != nil {
		return h.logger
	}
	return zap.L()
}
