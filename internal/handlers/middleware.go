package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"plant-monitor-service/internal/config"
	"plant-monitor-service/internal/utils"

	"github.com/gofiber/fiber/v3"
	"github.com/golang-jwt/jwt/v5"
)

const operatorLocalsKey = "operator"

// OperatorAuth checks HS256 bearer tokens on the settings write routes.
type OperatorAuth struct {
	secret []byte
	issuer string
}

func NewOperatorAuth(cfg config.AuthConfig) *OperatorAuth {
	if !cfg.IsConfigured() {
		slog.Warn("OPERATOR_JWT_SECRET not set, settings write routes are unauthenticated")
		return nil
	}
	return &OperatorAuth{secret: []byte(cfg.JWTSecret), issuer: cfg.Issuer}
}

// RequireOperator rejects requests without a valid token. A nil OperatorAuth
// lets every request through.
func (a *OperatorAuth) RequireOperator() fiber.Handler {
	if a == nil {
		return func(c fiber.Ctx) error { return c.Next() }
	}
	return func(c fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return c.Status(http.StatusUnauthorized).JSON(utils.CreateErrorResponse("MISSING_TOKEN", "authorization header required"))
		}

		claims, err := a.VerifyToken(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			slog.Warn("operator token rejected", "path", c.Path(), "error", err)
			return c.Status(http.StatusUnauthorized).JSON(utils.CreateErrorResponse("INVALID_TOKEN", "token validation failed"))
		}

		c.Locals(operatorLocalsKey, claims.Subject)
		return c.Next()
	}
}

// VerifyToken parses an HS256 token that must carry an expiry, and the
// configured issuer when one is set.
func (a *OperatorAuth) VerifyToken(tokenString string) (*jwt.RegisteredClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

// operatorFrom returns the authenticated subject, or "" on open routes.
func operatorFrom(c fiber.Ctx) string {
	s, _ := c.Locals(operatorLocalsKey).(string)
	return s
}
