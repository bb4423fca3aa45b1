package middleware

import (
	"context"
	"errors"
	"strings"

	"mmh_backend/internal/auth"
	"mmh_backend/internal/logger"
	"mmh_backend/internal/models"
	"mmh_backend/pkg/apperrors"
	"mmh_backend/pkg/contextkeys"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// UserLookup loads the account behind a token.
type UserLookup interface {
	GetByID(ctx context.Context, db *gorm.DB, id string) (*models.User, error)
}

// AuthMiddleware requires a valid access token and stores its claims on the
// gin context. With users set, the account is re-read on every request:
// deleted accounts get 401, suspended ones 403, and the stored role wins
// over the one in the token.
func AuthMiddleware(tokens *auth.TokenManager, users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			apperrors.HandleError(c, apperrors.NewUnauthorizedError("Authorization header missing or invalid"))
			return
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		claims, err := tokens.ParseToken(tokenStr, auth.TokenTypeAccess)
		if err != nil {
			apperrors.HandleError(c, apperrors.ErrInvalidToken)
			return
		}

		role := models.UserRole(claims.Role)
		if users != nil {
			user, err := currentUser(c, users, claims.UserID())
			if err != nil {
				apperrors.HandleError(c, err)
				return
			}
			if user.Status == models.UserStatusSuspended {
				apperrors.HandleError(c, apperrors.ErrUserSuspended)
				return
			}
			role = user.Role
		}

		c.Set(contextkeys.UserIDKey, claims.UserID())
		c.Set(contextkeys.RoleKey, role)
		c.Set(contextkeys.EmailKey, claims.Email)
		c.Request = c.Request.WithContext(logger.WithActor(c.Request.Context(), claims.UserID(), string(role)))
		c.Next()
	}
}

func currentUser(c *gin.Context, users UserLookup, userID string) (*models.User, error) {
	db := GetDB(c)
	if db == nil {
		return nil, apperrors.InternalError(errors.New("no database handle on request"))
	}
	user, err := users.GetByID(c.Request.Context(), db, userID)
	if errors.Is(err, apperrors.ErrUserNotFound) {
		return nil, apperrors.ErrInvalidToken
	}
	return user, err
}

// RequireRoles lets through only callers holding one of roles.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	roleSet := make(map[models.UserRole]bool, len(roles))
	for _, r := range roles {
		roleSet[r] = true
	}

	return func(c *gin.Context) {
		role, ok := GetRole(c)
		if !ok {
			apperrors.HandleError(c, apperrors.NewForbiddenError("Access denied: no role"))
			return
		}
		if !roleSet[role] {
			apperrors.HandleError(c, apperrors.ErrInsufficientPermissions)
			return
		}
		c.Next()
	}
}

// RequirePermission is RequireRoles for every role that grants perm.
func RequirePermission(perm auth.Permission) gin.HandlerFunc {
	return RequireRoles(auth.RolesWith(perm)...)
}

func GetUserID(c *gin.Context) string {
	return c.GetString(contextkeys.UserIDKey)
}

func GetRole(c *gin.Context) (models.UserRole, bool) {
	roleVal, exists := c.Get(contextkeys.RoleKey)
	if !exists {
		return "", false
	}
	switch role := roleVal.(type) {
	case models.UserRole:
		return role, role != ""
	case string:
		return models.UserRole(role), role != ""
	}
	return "", false
}
