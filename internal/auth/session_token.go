// Package auth binds each browser to a console session through a signed cookie.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CookieName is the cookie carrying the session token.
const CookieName = "claim_console_session"

const issuer = "claim-console"

type contextKey string

const sessionIDKey contextKey = "sessionID"

// GetSessionID retrieves the session bound to the request context.
func GetSessionID(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	if value, ok := ctx.Value(sessionIDKey).(string); ok && value != "" {
		return value, true
	}
	return "", false
}

// IssueSessionToken signs a token naming sessionID, valid for ttl.
func IssueSessionToken(secret, sessionID string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", errors.New("missing session secret")
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   sessionID,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseSessionToken validates a token and returns the session id it names.
func ParseSessionToken(secret, tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(issuer))
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", errors.New("invalid token")
	}
	if claims.Subject == "" {
		return "", errors.New("missing subject")
	}
	return claims.Subject, nil
}

// SessionMiddleware resolves the session cookie, starting a new session when the cookie is
// missing, expired or forged.
func SessionMiddleware(secret string, ttl time.Duration, logger *zap.Logger) gin.HandlerFunc {
	secret = strings.TrimSpace(secret)

	return func(c *gin.Context) {
		sessionID := ""
		if cookie, err := c.Cookie(CookieName); err == nil && cookie != "" {
			id, err := ParseSessionToken(secret, cookie)
			if err != nil {
				logger.Debug("discarding session cookie", zap.Error(err))
			} else {
				sessionID = id
			}
		}

		if sessionID == "" {
			sessionID = uuid.NewString()
			token, err := IssueSessionToken(secret, sessionID, ttl)
			if err != nil {
				logger.Error("failed to issue session token", zap.Error(err))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "session unavailable"})
				return
			}
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(CookieName, token, int(ttl.Seconds()), "/", "", c.Request.TLS != nil, true)
		}

		ctx := context.WithValue(c.Request.Context(), sessionIDKey, sessionID)
		c.Request = c.Request.WithContext(ctx)
		c.Set(string(sessionIDKey), sessionID)

		c.Next()
	}
}
