package security

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/helmet"
)

type HeadersConfig struct {
	// HSTS is only sent when the API sits behind TLS.
	HSTS bool
}

// apiCSP forbids every fetch. Responses are JSON, CSV and plain text only.
const apiCSP = "default-src 'none'; frame-ancestors 'none'; base-uri 'none'; form-action 'none'"

// HeadersMiddleware sets the response hardening headers for the JSON API.
func HeadersMiddleware(cfg HeadersConfig) fiber.Handler {
	hsts := 0
	if cfg.HSTS {
		hsts = 31536000
	}

	return helmet.New(helmet.Config{
		XSSProtection:         "0",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: apiCSP,
		HSTSMaxAge:            hsts,
		HSTSExcludeSubdomains: false,
		// Exports are downloaded cross-origin by the analysis notebooks.
		CrossOriginResourcePolicy: "cross-origin",
	})
}
