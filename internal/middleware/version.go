package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/contentdb/internal/types"
)

const (
	APIVersionHeader  = "X-Api-Version"
	DefaultAPIVersion = "1.0.0"
	apiVersionLocal   = "apiVersion"
)

// supported API major versions
var supportedMajors = map[string]bool{"1": true}

// VersionMiddleware parses the X-Api-Version header, rejects unsupported
// majors and echoes the resolved version on the response
func VersionMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		version := normalizeVersion(c.Get(APIVersionHeader, DefaultAPIVersion))

		major, _, _ := strings.Cut(version, ".")
		if !supportedMajors[major] {
			return types.NewUnsupportedError("unsupported API version %q", c.Get(APIVersionHeader))
		}

		c.Locals(apiVersionLocal, version)
		c.Set(APIVersionHeader, version)
		return c.Next()
	}
}

// APIVersion returns the version resolved for the request
func APIVersion(c *fiber.Ctx) string {
	if v, ok := c.Locals(apiVersionLocal).(string); ok {
		return v
	}
	return DefaultAPIVersion
}

// normalizeVersion pads aliases like 1 and 1.0 to a full version
func normalizeVersion(v string) string {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	switch strings.Count(v, ".") {
	case 0:
		return v + ".0.0"
	case 1:
		return v + ".0"
	}
	return v
}
