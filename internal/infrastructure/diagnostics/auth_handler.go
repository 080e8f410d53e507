package diagnostics

import (
	"net/http"
	"strings"

	"a2dpmgr/internal/core/services"
	"a2dpmgr/pkg/errors"

	"github.com/gin-gonic/gin"
)

// AuthHandler issues bearer tokens for the diagnostic server. There is no
// user-storage concept in the A2DP domain: a token just proves the caller
// holds the configured admin secret, it carries no role beyond that.
type AuthHandler struct {
	authService services.AuthService
	adminSecret string
}

func NewAuthHandler(authService services.AuthService, adminSecret string) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		adminSecret: adminSecret,
	}
}

func (h *AuthHandler) SetupRoutes(router *gin.Engine) {
	router.POST("/auth/token", h.IssueToken)
}

type IssueTokenRequest struct {
	Subject     string `json:"subject" binding:"required,min=1,max=128"`
	AdminSecret string `json:"admin_secret" binding:"required"`
}

func (h *AuthHandler) IssueToken(c *gin.Context) {
	var req IssueTokenRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	req.Subject = strings.TrimSpace(req.Subject)
	if h.adminSecret == "" || req.AdminSecret != h.adminSecret {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid admin secret"})
		return
	}

	token, err := h.authService.GenerateToken(req.Subject)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"subject":      req.Subject,
		"access_token": token,
	})
}
