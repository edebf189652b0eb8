package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jobtrack/jobtrack/pkg/auth"
	"github.com/jobtrack/jobtrack/pkg/model"
	"github.com/jobtrack/jobtrack/pkg/store"
)

const userKey = "jobtrack.user"

type UserLoader interface {
	GetUser(ctx context.Context, id uint) (*model.User, error)
}

func unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": message})
}

// Auth validates the bearer token and loads the user with its position on
// every request, so permission changes apply immediately.
func Auth(tokens *auth.TokenManager, users UserLoader, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authorization := c.GetHeader("Authorization")
		if authorization == "" {
			unauthorized(c, "missing authorization")
			return
		}
		parts := strings.SplitN(authorization, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			unauthorized(c, "invalid authorization")
			return
		}
		token := strings.TrimSpace(parts[1])
		if token == "" {
			unauthorized(c, "empty token")
			return
		}

		claims, err := tokens.ValidateUserToken(token)
		if err != nil {
			unauthorized(c, "invalid token")
			return
		}

		user, err := users.GetUser(c.Request.Context(), claims.UserID)
		if errors.Is(err, store.ErrNotFound) {
			unauthorized(c, "invalid token")
			return
		}
		if err != nil {
			logger.Error("failed to load user", zap.Uint("user_id", claims.UserID), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal server error"})
			return
		}
		if !user.Active() {
			unauthorized(c, "user is inactive")
			return
		}

		c.Set(userKey, user)
		c.Next()
	}
}

// RequirePermission rejects users whose position lacks perm.
func RequirePermission(perm model.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil || !user.Position.Has(perm) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"message": "Permission denied: " + perm.String() + " required",
			})
			return
		}
		c.Next()
	}
}

func CurrentUser(c *gin.Context) *model.User {
	value, ok := c.Get(userKey)
	if !ok {
		return nil
	}
	user, _ := value.(*model.User)
	return user
}

// ActorID is the id recorded on activity logs for the current request.
func ActorID(c *gin.Context) *uint {
	user := CurrentUser(c)
	if user == nil {
		return nil
	}
	id := user.ID
	return &id
}
