package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/yourorg/photo-onboarding/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const csrfSubject = "csrf"

// ErrInvalidCSRFToken is returned for missing, forged or expired tokens
var ErrInvalidCSRFToken = errors.New("invalid csrf token")

// CSRF issues and checks anti-forgery tokens. Tokens are HMAC signed JWTs
// sent back by the client in a request header; when the browser also returns
// the cookie the two must match.
type CSRF struct {
	cfg    config.CSRFConfig
	now    func() time.Time
	logger *zap.Logger
}

// NewCSRF creates a new CSRF guard
func NewCSRF(cfg config.CSRFConfig, logger *zap.Logger) *CSRF {
	return &CSRF{
		cfg:    cfg,
		now:    time.Now,
		logger: logger,
	}
}

// IssueToken creates a signed token valid for the configured TTL
func (g *CSRF) IssueToken() (string, error) {
	now := g.now()
	claims := jwt.MapClaims{
		"sub": csrfSubject,
		"jti": uuid.New().String(),
		"iat": now.Unix(),
		"exp": now.Add(g.cfg.TTL).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(g.cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign csrf token: %w", err)
	}
	return signed, nil
}

// VerifyToken checks the signature, expiry and subject of a token
func (g *CSRF) VerifyToken(tokenString string) error {
	if tokenString == "" {
		return ErrInvalidCSRFToken
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(g.cfg.Secret), nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCSRFToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return ErrInvalidCSRFToken
	}
	if sub, _ := claims["sub"].(string); sub != csrfSubject {
		return ErrInvalidCSRFToken
	}
	return nil
}

// IssueHandler returns a fresh token in the body and as a cookie
// GET /csrf
func (g *CSRF) IssueHandler(c *gin.Context) {
	token, err := g.IssueToken()
	if err != nil {
		g.logger.Error("Failed to issue csrf token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(g.cfg.CookieName, token, int(g.cfg.TTL.Seconds()), "/", "", false, false)
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// Middleware rejects unsafe requests without a valid token with 403
func (g *CSRF) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !g.cfg.Enabled || isSafeMethod(c.Request.Method) {
			c.Next()
			return
		}

		header := c.GetHeader(g.cfg.HeaderName)
		if err := g.VerifyToken(header); err != nil {
			g.logger.Warn("CSRF verification failed",
				zap.String("path", c.Request.URL.Path),
				zap.Error(err))
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "CSRF verification failed"})
			return
		}

		if cookie, err := c.Cookie(g.cfg.CookieName); err == nil && cookie != header {
			g.logger.Warn("CSRF cookie mismatch", zap.String("path", c.Request.URL.Path))
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "CSRF verification failed"})
			return
		}

		c.Next()
	}
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}
