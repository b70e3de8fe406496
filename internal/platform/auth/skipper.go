package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths lists URL paths that should bypass authentication and tenant
// resolution. These are infrastructure endpoints (health checks) plus the
// inbound voice-agent webhook, which authenticates with its own HMAC
// signature instead of a bearer token.
var publicPaths = map[string]bool{
	"/healthz":               true,
	"/readyz":                true,
	"/api/v1/webhooks/voice": true,
}

// AuthSkipper returns true for requests whose path should skip authentication.
func AuthSkipper(c echo.Context) bool {
	return publicPaths[c.Path()]
}
