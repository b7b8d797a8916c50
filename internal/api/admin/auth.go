// auth.go implements the admin login endpoint. Authentication is a single
// configured admin account: the username and a bcrypt hash of the password
// come from configuration, and a successful login yields a short-lived JWT
// for the rest of the admin API.
package admin

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/library-registry/library-registry/internal/auth"
	"github.com/library-registry/library-registry/internal/config"
)

// AuthHandlers handles admin authentication endpoints
type AuthHandlers struct {
	cfg         *config.AdminConfig
	authService *auth.Service
}

// NewAuthHandlers creates a new AuthHandlers instance
func NewAuthHandlers(cfg *config.AdminConfig, authService *auth.Service) *AuthHandlers {
	return &AuthHandlers{cfg: cfg, authService: authService}
}

// LoginRequest represents the admin login request body
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginHandler verifies the admin credentials and issues a JWT.
// POST /api/v1/admin/login
func (h *AuthHandlers) LoginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request: " + err.Error(),
			})
			return
		}

		// Compare the username in constant time and always run the bcrypt
		// comparison, so a wrong username costs the same as a wrong password.
		usernameOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(h.cfg.Username)) == 1
		passwordErr := bcrypt.CompareHashAndPassword([]byte(h.cfg.PasswordHash), []byte(req.Password))

		if !usernameOK || passwordErr != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid username or password",
			})
			return
		}

		token, err := h.authService.GenerateToken(h.cfg.Username)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to issue token",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"token":      token,
			"token_type": "Bearer",
		})
	}
}
