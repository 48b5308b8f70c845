// Copyright 2025, the ninegrid contributors
// SPDX-License-Identifier: AGPL-3.0-only

package middleware

import (
	"net/http"
	"strings"
)

// NormalizeURL redirects requests whose path has a trailing slash (except
// root) to the canonical path.
func NormalizeURL(w http.ResponseWriter, r *http.Request, next http.Handler) {
	if hasTrailingSlash(r) {
		removeTrailingSlash(w, r)

		return
	}

	next.ServeHTTP(w, r)
}

// hasTrailingSlash checks if a request path has a trailing slash (except root).
func hasTrailingSlash(r *http.Request) bool {
	return r.URL.Path != "/" && strings.HasSuffix(r.URL.Path, "/")
}

// removeTrailingSlash removes trailing slashes and redirects.
//
// The permanent redirect preserves the method and body.
func removeTrailingSlash(w http.ResponseWriter, r *http.Request) {
	target := *r.URL

	// Leading slashes collapse to one: browsers read "//host" in Location
	// as scheme-relative.
	target.Path = "/" + strings.Trim(target.Path, "/")
	target.RawPath = ""

	http.Redirect(w, r, target.RequestURI(), http.StatusPermanentRedirect)
}
