// Copyright 2025, the ninegrid contributors
// SPDX-License-Identifier: AGPL-3.0-only

package middleware

import (
	"maps"
	"net/http"
	"strings"
	"sync/atomic"

	"codeberg.org/ninegrid/ninegrid/config"
)

var (
	// baseHeaders defines the default headers to be set in responses.
	//
	// Ninegrid-Version and Ninegrid-Revision are added dynamically in SetResponseHeaders.
	baseHeaders = http.Header{
		"Referrer-Policy":        {"no-referrer"},
		"X-Frame-Options":        {"DENY"},
		"X-Content-Type-Options": {"nosniff"},
		"Permissions-Policy":     {strings.Join(defaultPermissionsPolicy, ", ")},
		"Content-Security-Policy": {strings.Join([]string{
			"base-uri 'self'",
			"default-src 'self'",
			"style-src 'self' 'unsafe-inline'",
			"script-src 'self'",
			"img-src 'self' data: blob:",
			"connect-src 'self'",
			"form-action 'self'",
			"frame-ancestors 'none'",
		}, "; ") + ";"},
	}

	// defaultPermissionsPolicy defines the default Permissions-Policy header.
	defaultPermissionsPolicy = []string{
		"accelerometer=()",
		"camera=()",
		"display-capture=()",
		"geolocation=()",
		"gyroscope=()",
		"magnetometer=()",
		"microphone=()",
		"payment=()",
		"usb=()",
	}

	// firstDevResponse gates the one-off Clear-Site-Data header in development.
	firstDevResponse atomic.Bool
)

func init() {
	firstDevResponse.Store(true)
}

// SetResponseHeaders adds default headers to HTTP responses.
//
// Handlers may override Cache-Control afterwards.
func SetResponseHeaders(w http.ResponseWriter, r *http.Request, next http.Handler) {
	headers := w.Header()

	maps.Insert(headers, maps.All(baseHeaders))

	if config.Global.Development.InDevelopment && firstDevResponse.CompareAndSwap(true, false) {
		headers.Set("Clear-Site-Data", `"cache"`)
	}

	setCacheControl(headers, r.URL.Path)

	headers.Set("Ninegrid-Version", config.BuildVersion)
	headers.Set("Ninegrid-Revision", config.Global.Build.Revision())

	next.ServeHTTP(w, r)
}

// setCacheControl sets appropriate cache control headers for static assets.
func setCacheControl(headers http.Header, path string) {
	// Default to only storing in the browser cache and forcing revalidation
	cacheDuration := "private, no-cache"

	switch {
	// Icons rarely change (1 month)
	case strings.HasPrefix(path, "/icons/"):
		cacheDuration = "max-age=2592000"
	// JavaScript and CSS get a moderate cache time (1 week)
	case strings.HasPrefix(path, "/js/") || strings.HasPrefix(path, "/css/"):
		cacheDuration = "max-age=604800"
	// Text files (robots.txt) get moderate caching (1 day)
	case strings.HasSuffix(path, ".txt"):
		cacheDuration = "max-age=86400"
	}

	headers.Set("Cache-Control", cacheDuration)
}
