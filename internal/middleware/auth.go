package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/lifeline/donation-api/internal/handler"
	"github.com/lifeline/donation-api/internal/model"
	"github.com/lifeline/donation-api/pkg/auth"
	apperrors "github.com/lifeline/donation-api/pkg/errors"
)

type AuthMiddleware struct {
	tokens *auth.TokenManager
}

func NewAuthMiddleware(tokens *auth.TokenManager) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// Authenticate verifies the bearer token and stores the caller on the context.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			handler.RespondError(c, &apperrors.AppError{Code: apperrors.ErrUnauthorized, Message: "missing authorization header"})
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			handler.RespondError(c, &apperrors.AppError{Code: apperrors.ErrUnauthorized, Message: "invalid authorization format"})
			return
		}

		claims, err := m.tokens.Validate(strings.TrimSpace(parts[1]))
		if err != nil {
			handler.RespondError(c, &apperrors.AppError{Code: apperrors.ErrUnauthorized, Message: "invalid token", Err: err})
			return
		}
		role := model.Role(claims.Role)
		if !role.Valid() {
			handler.RespondError(c, &apperrors.AppError{Code: apperrors.ErrUnauthorized, Message: "invalid token"})
			return
		}

		c.Set(handler.ContextUserID, claims.UserID)
		c.Set(handler.ContextRole, role)
		c.Next()
	}
}

// RequireRole rejects callers whose role is not one of roles.
func (m *AuthMiddleware) RequireRole(roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := handler.MustActor(c)
		if !ok {
			return
		}
		for _, r := range roles {
			if actor.Role == r {
				c.Next()
				return
			}
		}
		handler.RespondError(c, apperrors.Forbidden("this action requires the "+string(roles[0])+" role"))
	}
}
