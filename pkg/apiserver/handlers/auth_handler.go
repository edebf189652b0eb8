package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jobtrack/jobtrack/pkg/apiserver/middleware"
	"github.com/jobtrack/jobtrack/pkg/auth"
	"github.com/jobtrack/jobtrack/pkg/model"
	"github.com/jobtrack/jobtrack/pkg/store"
)

type UserFinder interface {
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
}

type AuthHandler struct {
	users  UserFinder
	tokens *auth.TokenManager
	logger *zap.Logger
}

func NewAuthHandler(users UserFinder, tokens *auth.TokenManager, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{users: users, tokens: tokens, logger: logger}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginResponse struct {
	Token     string      `json:"token"`
	ExpiresIn int64       `json:"expires_in"`
	User      *model.User `json:"user"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.users.GetUserByUsername(c.Request.Context(), req.Username)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		respondError(c, h.logger, err)
		return
	}
	if user == nil || !user.Active() || !auth.CheckPassword(user.PasswordHash, req.Password) {
		c.JSON(http.StatusUnauthorized, envelope{Message: "Invalid username or password"})
		return
	}

	token, err := h.tokens.GenerateUserToken(user)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "", loginResponse{
		Token:     token,
		ExpiresIn: int64(h.tokens.TTL().Seconds()),
		User:      user,
	})
}

func (h *AuthHandler) Me(c *gin.Context) {
	respond(c, http.StatusOK, "", middleware.CurrentUser(c))
}
