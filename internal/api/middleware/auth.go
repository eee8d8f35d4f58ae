package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pramothar/farmwith/internal/auth"
	"github.com/pramothar/farmwith/internal/db/repository"
	"github.com/pramothar/farmwith/internal/models"
)

const currentUserKey = "currentUser"

// BearerAuth validates the Authorization header and loads the referenced
// user into the request context. Missing, malformed and expired tokens all
// produce the same 401.
func BearerAuth(tokens *auth.TokenIssuer, users *repository.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := bearerToken(c)
		if tokenStr == "" {
			abortUnauthorized(c, "Not authenticated")
			return
		}

		userID, err := tokens.Subject(tokenStr)
		if err != nil {
			abortUnauthorized(c, "Invalid token")
			return
		}

		user, err := users.GetByID(userID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				abortUnauthorized(c, "User not found")
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":   "internal_error",
				"message": "Failed to load user",
			})
			return
		}

		c.Set(currentUserKey, user)
		c.Next()
	}
}

// CurrentUser returns the user loaded by BearerAuth, or nil outside of a
// protected route.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(currentUserKey)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":   "unauthorized",
		"message": message,
	})
}
