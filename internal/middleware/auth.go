package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	iauth "github.com/charlesng35/mentorhub/internal/auth"
	"github.com/charlesng35/mentorhub/pkg/errors"
	"github.com/charlesng35/mentorhub/pkg/response"
)

const (
	CtxClaimsKey = "authClaims"
	CtxUserIDKey = "userID"
	CtxRoleKey   = "userRole"
)

// Auth enforces JWT authentication using the supplied JWT service. Websocket upgrades may pass
// the token as the access_token query parameter since browsers cannot set headers on them.
func Auth(jwt *iauth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		claims, err := jwt.ValidateAccessToken(token)
		if err != nil {
			// Normalise all validation failures to 401
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		c.Set(CtxClaimsKey, claims)
		c.Set(CtxUserIDKey, claims.UserID)
		if claims.Role != "" {
			c.Set(CtxRoleKey, claims.Role)
		}

		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	authz := c.GetHeader("Authorization")
	if len(authz) >= 8 && strings.EqualFold(authz[:7], "Bearer ") {
		token := strings.TrimSpace(authz[7:])
		return token, token != ""
	}
	if websocket.IsWebSocketUpgrade(c.Request) {
		token := strings.TrimSpace(c.Query("access_token"))
		return token, token != ""
	}
	return "", false
}
