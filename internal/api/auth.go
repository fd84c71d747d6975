// auth.go - Identity and service-key middleware
package api

import (
	"crypto/subtle"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// HeaderUserID carries the signed-in user's id. It is set by the identity
// provider in front of this service.
const HeaderUserID = "X-User-ID"

const userIDKey = "userID"

// RequireUser rejects requests that carry no user identity.
func RequireUser() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := strings.TrimSpace(c.Request().Header.Get(HeaderUserID))
			if id == "" {
				return NewUnauthorizedError("sign in required")
			}
			c.Set(userIDKey, id)
			return next(c)
		}
	}
}

// userID returns the identity stored by RequireUser.
func userID(c echo.Context) string {
	id, _ := c.Get(userIDKey).(string)
	return id
}

// ServiceKeyAuth accepts requests bearing token as "Authorization: Bearer"
// or as the key query parameter (browsers cannot set headers on WebSocket
// upgrades). The health check stays open.
func ServiceKeyAuth(token string) echo.MiddlewareFunc {
	return middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
		KeyLookup: "header:" + echo.HeaderAuthorization + ",query:key",
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/api/health"
		},
		Validator: func(key string, c echo.Context) (bool, error) {
			return subtle.ConstantTimeCompare([]byte(key), []byte(token)) == 1, nil
		},
		ErrorHandler: func(err error, c echo.Context) error {
			return NewUnauthorizedError("invalid or missing service key")
		},
	})
}
