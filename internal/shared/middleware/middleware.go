package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"boxoffice/internal/shared/config"
	"boxoffice/internal/shared/utils/response"
	"boxoffice/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

const (
	RoleAdmin = "ADMIN"

	SessionHeader   = "X-Session-ID"
	SignatureHeader = "X-Signature"
	SweepHeader     = "X-Sweep-Secret"
	RequestIDHeader = "X-Request-ID"

	sessionIDKey = "session_id"
	userIDKey    = "user_id"
	userEmailKey = "user_email"
	userRoleKey  = "user_role"
	rawBodyKey   = "raw_body"

	maxSessionIDLength = 128
)

// JWTAuthWithConfig authenticates administrator access tokens.
func JWTAuthWithConfig(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.RespondJSON(c, "error", http.StatusUnauthorized, "Authorization header is required", nil, nil)
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.RespondJSON(c, "error", http.StatusUnauthorized, "authorization header format must be Bearer {token}", nil, nil)
			c.Abort()
			return
		}

		token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(cfg.JWT.Secret), nil
		})
		if err != nil || !token.Valid {
			logger.GetDefault().LogAuthFailure(c.Request.Context(), "invalid or expired token", c.ClientIP())
			response.RespondJSON(c, "error", http.StatusUnauthorized, "invalid or expired token", nil, nil)
			c.Abort()
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			response.RespondJSON(c, "error", http.StatusUnauthorized, "invalid token claims", nil, nil)
			c.Abort()
			return
		}
		if tokenType, ok := claims["type"]; !ok || tokenType != "access" {
			response.RespondJSON(c, "error", http.StatusUnauthorized, "invalid token type", nil, nil)
			c.Abort()
			return
		}

		c.Set(userIDKey, claimString(claims, "user_id"))
		c.Set(userEmailKey, claimString(claims, "email"))
		c.Set(userRoleKey, claimString(claims, "role"))
		c.Next()
	}
}

// RequireRole aborts unless the authenticated token carries requiredRole.
func RequireRole(requiredRole string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRole, exists := c.Get(userRoleKey)
		if !exists {
			response.RespondJSON(c, "error", http.StatusUnauthorized, "user role not found in context", nil, nil)
			c.Abort()
			return
		}

		if role, _ := userRole.(string); role != requiredRole {
			response.RespondJSON(c, "error", http.StatusForbidden, "Insufficient permissions", nil, nil)
			c.Abort()
			return
		}
		c.Next()
	}
}

func RequireAdmin() gin.HandlerFunc {
	return RequireRole(RoleAdmin)
}

// Actor names the administrator behind the request for audit records.
func Actor(c *gin.Context) string {
	if email := c.GetString(userEmailKey); email != "" {
		return email
	}
	if id := c.GetString(userIDKey); id != "" {
		return id
	}
	return "admin"
}

// SessionID requires the opaque buyer session header. Sessions are not
// authenticated; they only scope holds and order ownership.
func SessionID() gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := strings.TrimSpace(c.GetHeader(SessionHeader))
		if sessionID == "" || len(sessionID) > maxSessionIDLength {
			response.RespondJSON(c, "error", http.StatusBadRequest, "X-Session-ID header is required", nil, "missing or invalid session ID")
			c.Abort()
			return
		}

		c.Set(sessionIDKey, sessionID)
		c.Next()
	}
}

// GetSessionID returns the session set by SessionID, or "".
func GetSessionID(c *gin.Context) string {
	return c.GetString(sessionIDKey)
}

// SweepSecret guards the internal sweep trigger. An empty secret disables the route.
func SweepSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		given := c.GetHeader(SweepHeader)
		if secret == "" || subtle.ConstantTimeCompare([]byte(given), []byte(secret)) != 1 {
			logger.GetDefault().LogAuthFailure(c.Request.Context(), "invalid sweep secret", c.ClientIP())
			response.RespondJSON(c, "error", http.StatusUnauthorized, "invalid sweep secret", nil, nil)
			c.Abort()
			return
		}
		c.Next()
	}
}

// GatewaySignature verifies the hex HMAC-SHA256 of the raw body sent by the
// payment gateway. The verified body is kept for the handler.
func GatewaySignature(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := c.GetRawData()
		if err != nil {
			response.RespondJSON(c, "error", http.StatusBadRequest, "Failed to read request body", nil, err.Error())
			c.Abort()
			return
		}

		if secret == "" || !ValidSignature(secret, body, c.GetHeader(SignatureHeader)) {
			logger.GetDefault().LogAuthFailure(c.Request.Context(), "invalid gateway signature", c.ClientIP())
			response.RespondJSON(c, "error", http.StatusUnauthorized, "invalid signature", nil, nil)
			c.Abort()
			return
		}

		c.Set(rawBodyKey, body)
		c.Next()
	}
}

// RawBody returns the body captured by GatewaySignature.
func RawBody(c *gin.Context) []byte {
	if v, ok := c.Get(rawBodyKey); ok {
		if b, ok := v.([]byte); ok {
			return b
		}
	}
	return nil
}

func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func ValidSignature(secret string, body []byte, signature string) bool {
	signature = strings.TrimPrefix(strings.TrimSpace(signature), "sha256=")
	given, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(given, mac.Sum(nil))
}

// RequestLogger tags the request with an id and logs it when done.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(RequestIDHeader, requestID)
		c.Set("request_id", requestID)

		c.Next()

		log := logger.GetDefault().WithRequestID(requestID)
		if sessionID := GetSessionID(c); sessionID != "" {
			log = log.WithSessionID(sessionID)
		}
		if len(c.Errors) > 0 {
			log.LogHTTPError(c, c.Errors.Last(), c.Writer.Status())
			return
		}
		log.LogHTTPRequest(c, time.Since(start))
	}
}

func claimString(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}
