package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yachttime/qbconnect/internal/auth"
	"github.com/yachttime/qbconnect/internal/repository"
	"github.com/yachttime/qbconnect/internal/service"
)

const callerContextKey = "callerContext"

// Gate authenticates the bearer credential and authorizes the resolved
// profile before any operation runs. Only administrators may manage the
// accounting integration; everything else fails closed here.
type Gate struct {
	Verifier *auth.Verifier
	Profiles repository.ProfileRepository
	Logger   *zap.Logger
}

// RequireAdmin validates the Authorization header, resolves the caller's
// profile, and rejects non-admin roles. Failures respond 400 like every
// other error in this service.
func (g *Gate) RequireAdmin(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "authorization header required"})
		return
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "bearer token required"})
		return
	}

	userID, err := g.Verifier.Verify(parts[1])
	if err != nil {
		g.log().Warn("bearer verification failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid authorization"})
		return
	}

	profile, err := g.Profiles.GetByUserID(c.Request.Context(), userID)
	if err != nil {
		g.log().Warn("profile lookup failed", zap.String("user_id", userID), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid authorization"})
		return
	}
	if !profile.IsAdmin() {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "only authorized users can connect/manage this integration"})
		return
	}

	c.Set(callerContextKey, service.Caller{Bearer: parts[1], Profile: profile})
	c.Next()
}

// GetCaller extracts the authenticated caller placed by RequireAdmin.
func GetCaller(c *gin.Context) (service.Caller, bool) {
	value, ok := c.Get(callerContextKey)
	if !ok {
		return service.Caller{}, false
	}
	caller, ok := value.(service.Caller)
	return caller, ok
}

func (g *Gate) log() *zap.Logger {
	if g != nil && g.Logger != nil {
		return g.Logger
	}
	return zap.L()
}
