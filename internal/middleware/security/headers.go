package security

import (
	"fmt"

	"github.com/gin-gonic/gin"
)

// HeadersConfig holds security headers configuration
type HeadersConfig struct {
	HSTSMaxAge            int
	HSTSIncludeSubdomains bool

	XFrameOptions       string
	XContentTypeOptions string
	ReferrerPolicy      string
	CrossOriginResource string
	CacheControl        string
}

// DefaultHeadersConfig returns defaults for a JSON API whose uploaded images
// are fetched by mobile clients from other origins.
func DefaultHeadersConfig() HeadersConfig {
	return HeadersConfig{
		HSTSMaxAge:            31536000, // 1 year
		HSTSIncludeSubdomains: true,

		XFrameOptions:       "DENY",
		XContentTypeOptions: "nosniff",
		ReferrerPolicy:      "no-referrer",
		CrossOriginResource: "cross-origin",
		CacheControl:        "no-store",
	}
}

// Headers applies the configured headers to every response.
func Headers(config HeadersConfig) gin.HandlerFunc {
	hsts := ""
	if config.HSTSMaxAge > 0 {
		hsts = fmt.Sprintf("max-age=%d", config.HSTSMaxAge)
		if config.HSTSIncludeSubdomains {
			hsts += "; includeSubDomains"
		}
	}

	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", config.XContentTypeOptions)
		h.Set("X-Frame-Options", config.XFrameOptions)
		h.Set("Referrer-Policy", config.ReferrerPolicy)
		h.Set("Cross-Origin-Resource-Policy", config.CrossOriginResource)
		if config.CacheControl != "" {
			h.Set("Cache-Control", config.CacheControl)
		}
		if hsts != "" && c.Request.TLS != nil {
			h.Set("Strict-Transport-Security", hsts)
		}
		c.Next()
	}
}

// StaticAssets overrides Cache-Control for immutable files such as uploads.
func StaticAssets(maxAge int) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxAge > 0 {
			c.Header("Cache-Control", fmt.Sprintf("public, max-age=%d, immutable", maxAge))
		}
		c.Next()
	}
}
