// Package auth handles JWT token creation, signing, and verification for the
// admin API. The public lookup endpoint is intentionally unauthenticated; only
// the /api/v1/admin routes are protected.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the JWT claims structure for admin sessions.
type Claims struct {
	Subject string `json:"sub_name"`
	jwt.RegisteredClaims
}

// Service issues and validates admin tokens with a shared HMAC secret.
type Service struct {
	secret   []byte
	tokenTTL time.Duration
}

// NewService creates an auth service. The secret must be at least 32 bytes;
// shorter secrets are refused at startup rather than silently weakening every
// session.
func NewService(secret string, tokenTTL time.Duration) (*Service, error) {
	if len(secret) < 32 {
		return nil, errors.New("admin JWT secret must be at least 32 characters; generate one with: openssl rand -hex 32")
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	return &Service{secret: []byte(secret), tokenTTL: tokenTTL}, nil
}

// GenerateToken creates a signed token for an authenticated admin.
func (s *Service) GenerateToken(subject string) (string, error) {
	now := time.Now()
	claims := Claims{
		Subject: subject,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			Issuer:    "library-registry",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and verifies a token, returning its claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// Middleware returns a Gin handler that requires a valid Bearer token and
// stores the admin subject in the context under "admin_subject".
func (s *Service) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		tokenString, found := strings.CutPrefix(header, "Bearer ")
		if !found {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header must use Bearer scheme"})
			return
		}

		claims, err := s.ValidateToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Set("admin_subject", claims.Subject)
		c.Next()
	}
}
