package receiver

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/goliatone/go-router"
	usersync "github.com/goliatone/go-user-sync"
)

// UnauthorizedBody is the fixed 401 payload
var UnauthorizedBody = map[string]string{"error": "Unauthorized"}

// APIKeyMiddleware rejects requests whose bearer token does not match
// apiKey. Accepted requests run with a receiving context, restored when
// the handler returns.
func APIKeyMiddleware(apiKey string) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			if !validBearer(ctx.Header(router.HeaderAuthorization), apiKey) {
				return ctx.JSON(http.StatusUnauthorized, UnauthorizedBody)
			}

			prev := ctx.Context()
			ctx.SetContext(usersync.WithReceiving(prev))
			defer ctx.SetContext(prev)

			return next(ctx)
		}
	}
}

func validBearer(header, apiKey string) bool {
	if apiKey == "" {
		return false
	}
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) == 1
}
