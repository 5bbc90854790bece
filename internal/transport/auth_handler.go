package transport

import (
	"net/http"
	"time"

	"onetee-be/internal/auth"
	"onetee-be/internal/logger"
	"onetee-be/internal/user"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type TokenIssuer interface {
	Generate(id auth.Identity) (string, error)
	TTL() time.Duration
}

type AuthHandler struct {
	users        user.Service
	tokens       TokenIssuer
	secureCookie bool
}

func NewAuthHandler(users user.Service, tokens TokenIssuer, secureCookie bool) *AuthHandler {
	return &AuthHandler{users: users, tokens: tokens, secureCookie: secureCookie}
}

func (h *AuthHandler) Signup(c *gin.Context) {
	var input user.SignupInput
	if !bindJSON(c, &input) {
		return
	}

	u, err := h.users.Signup(c.Request.Context(), input)
	if err != nil {
		writeError(c, err)
		return
	}

	if !h.issue(c, u) {
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": u})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var input user.LoginInput
	if !bindJSON(c, &input) {
		return
	}

	u, err := h.users.Login(c.Request.Context(), input.Login, input.Password)
	if err != nil {
		writeError(c, err)
		return
	}

	if !h.issue(c, u) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	auth.ClearTokenCookie(c.Writer, h.secureCookie)
	c.Status(http.StatusNoContent)
}

func (h *AuthHandler) Me(c *gin.Context) {
	u, err := h.users.Get(c.Request.Context(), identity(c).UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}

func (h *AuthHandler) issue(c *gin.Context, u *user.User) bool {
	token, err := h.tokens.Generate(auth.Identity{UserID: u.ID, IsAdmin: u.IsAdmin})
	if err != nil {
		logger.FromCtx(c.Request.Context()).Error("failed to sign access token",
			zap.String("user_id", u.ID.String()), zap.Error(err))
		writeError(c, err)
		return false
	}
	auth.SetTokenCookie(c.Writer, token, h.tokens.TTL(), h.secureCookie)
	return true
}
