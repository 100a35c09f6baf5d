package middleware

// identity.go holds the context keys written by JWTAuth and the helpers
// that read them back.

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	userIDKey = "user_id"
	roleKey   = "role"
)

// UserID returns the authenticated user id stored by JWTAuth.
func UserID(c echo.Context) (uint64, bool) {
	return toUint64(c.Get(userIDKey))
}

// Role returns the role claim stored by JWTAuth.
func Role(c echo.Context) string {
	r, _ := c.Get(roleKey).(string)
	return r
}

// userKey identifies the caller in rate limit keys; "anon" when no token
// was presented.
func userKey(c echo.Context) string {
	if id, ok := UserID(c); ok && id != 0 {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}

// toUint64 accepts the shapes a numeric claim takes after JSON decoding.
func toUint64(v any) (uint64, bool) {
	switch t := v.(type) {
	case uint64:
		return t, true
	case int:
		if t >= 0 {
			return uint64(t), true
		}
	case int64:
		if t >= 0 {
			return uint64(t), true
		}
	case float64:
		if t >= 0 && t == float64(uint64(t)) {
			return uint64(t), true
		}
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}
