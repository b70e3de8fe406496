package middleware

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const maxHeaderBytes = 8 << 10

var (
	// Blocked outright: script payloads have no business in a booking API.
	scriptPattern = regexp.MustCompile(`(?i)(<script|javascript\s*:|on\w+\s*=)`)

	// Logged only; parameterized queries are the real defense.
	sqlPattern = regexp.MustCompile(`(?i)('+\s*;\s*DROP\b|UNION\s+SELECT\b|'\s+OR\s+1\s*=\s*1|1\s*=\s*1)`)
)

// Sanitize rejects requests carrying obvious injection payloads before they
// reach a handler. Suspected SQL fragments in query values are logged rather
// than blocked, since legitimate notes fields can trip loose patterns.
func Sanitize() echo.MiddlewareFunc {
	return SanitizeWithLogger(zerolog.Nop())
}

func SanitizeWithLogger(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			if reason := checkPath(req); reason != "" {
				return reject(c, reason)
			}
			if reason := checkHeaders(req); reason != "" {
				return reject(c, reason)
			}
			if reason := checkQuery(req, c, logger); reason != "" {
				return reject(c, reason)
			}
			return next(c)
		}
	}
}

func checkPath(req *http.Request) string {
	for _, p := range []string{req.URL.Path, req.URL.RawPath} {
		if p == "" {
			continue
		}
		if hasTraversal(p) {
			return "Path traversal detected"
		}
		if hasNullByte(p) {
			return "Null byte injection detected"
		}
	}
	return ""
}

func checkHeaders(req *http.Request) string {
	for name, values := range req.Header {
		for _, v := range values {
			if len(v) > maxHeaderBytes {
				return "Header value exceeds maximum size: " + name
			}
			if strings.ContainsAny(v, "\r\n") {
				return "Header injection detected: " + name
			}
		}
	}
	return ""
}

func checkQuery(req *http.Request, c echo.Context, logger zerolog.Logger) string {
	for key, values := range req.URL.Query() {
		if hasNullByte(key) {
			return "Null byte injection detected in query parameter"
		}
		if scriptPattern.MatchString(key) {
			return "Script injection detected in query parameter"
		}
		for _, v := range values {
			if hasNullByte(v) {
				return "Null byte injection detected in query parameter"
			}
			if scriptPattern.MatchString(v) {
				return "Script injection detected in query parameter"
			}
			if sqlPattern.MatchString(v) {
				logger.Warn().
					Str("param", key).
					Str("path", req.URL.Path).
					Str("remote_ip", c.RealIP()).
					Msg("suspicious SQL fragment in query parameter")
			}
		}
	}
	return ""
}

// hasTraversal catches ".." in raw and percent-encoded (including
// double-encoded) forms.
func hasTraversal(s string) bool {
	if strings.Contains(s, "..") {
		return true
	}
	lower := strings.ToLower(s)
	return strings.Contains(lower, "%2e%2e") || strings.Contains(lower, "%252e")
}

func hasNullByte(s string) bool {
	return strings.ContainsRune(s, '\x00') || strings.Contains(strings.ToLower(s), "%00")
}

func reject(c echo.Context, reason string) error {
	return c.JSON(http.StatusBadRequest, map[string]string{"message": reason})
}
