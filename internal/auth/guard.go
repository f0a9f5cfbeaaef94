// Package auth guards the HTTP API with operator tokens. Operators log in
// with the password whose Argon2id hash is configured and receive a signed
// bearer token. Safe methods stay open unless reads are protected too.
package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/KevinKickass/OpenCircuitCore/internal/config"
	"github.com/KevinKickass/OpenCircuitCore/internal/types"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	operatorSubject = "operator"

	// Context keys set by Middleware.
	SubjectKey = "auth_subject"
	ScopeKey   = "auth_scope"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type Guard struct {
	issuer       *Issuer
	passwordHash string
	protectReads bool
	logger       *zap.Logger
}

func NewGuard(cfg config.AuthConfig, logger *zap.Logger) *Guard {
	return &Guard{
		issuer:       NewIssuer(cfg.Secret, cfg.TokenTTL),
		passwordHash: cfg.PasswordHash,
		protectReads: cfg.ProtectReads,
		logger:       logger,
	}
}

// Login checks password and issues a token. Readonly tokens only pass
// the read checks.
func (g *Guard) Login(password string, readonly bool) (string, time.Time, error) {
	ok, err := VerifyPassword(password, g.passwordHash)
	if err != nil {
		g.logger.Error("Configured password hash is unusable", zap.Error(err))
		return "", time.Time{}, err
	}
	if !ok {
		return "", time.Time{}, ErrInvalidCredentials
	}
	scope := ScopeControl
	if readonly {
		scope = ScopeRead
	}
	return g.issuer.Issue(operatorSubject, scope)
}

type loginRequest struct {
	Password string `json:"password" binding:"required"`
	Readonly bool   `json:"readonly"`
}

// LoginHandler serves POST /auth/token.
func (g *Guard) LoginHandler(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse(types.CodeBadRequest, "password is required", err.Error()))
		return
	}
	token, expires, err := g.Login(req.Password, req.Readonly)
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		g.logger.Warn("Rejected login", zap.String("client_ip", c.ClientIP()))
		c.JSON(http.StatusUnauthorized, types.NewErrorResponse(types.CodeUnauthorized, err.Error(), nil))
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse(types.CodeInternal, "login unavailable", nil))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"token_type": "Bearer",
		"expires_at": expires,
	})
}

// Middleware requires a control token for mutating requests and, with
// protected reads, a read token for everything else. Websocket clients
// that cannot set headers may pass ?token=.
func (g *Guard) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		required := ScopeControl
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			if !g.protectReads {
				c.Next()
				return
			}
			required = ScopeRead
		}

		token := bearerToken(c)
		if token == "" {
			abort(c, http.StatusUnauthorized, types.CodeUnauthorized, "missing bearer token", nil)
			return
		}
		claims, err := g.issuer.Validate(token)
		if err != nil {
			g.logger.Debug("Token rejected", zap.String("path", c.Request.URL.Path), zap.Error(err))
			abort(c, http.StatusUnauthorized, types.CodeUnauthorized, ErrInvalidToken.Error(), nil)
			return
		}
		if !claims.Scope.Allows(required) {
			abort(c, http.StatusForbidden, types.CodeForbidden, "insufficient scope", gin.H{"required": required})
			return
		}

		c.Set(SubjectKey, claims.Subject)
		c.Set(ScopeKey, claims.Scope)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			return ""
		}
		return strings.TrimSpace(token)
	}
	return c.Query("token")
}

func abort(c *gin.Context, status int, code, msg string, details any) {
	c.AbortWithStatusJSON(status, types.NewErrorResponse(code, msg, details))
}
