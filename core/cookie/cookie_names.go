// Copyright 2025, the ninegrid contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
This package defines the cookie names used by this application.
*/
package cookie

type CookieName string

// Cookie names defined as constants.
//
// NOTE: We don't use the `__Host-` prefix so that plain HTTP deployments on a
// LAN keep working.
const (
	// paseto v4.public token naming the caller's session
	SessionCookie CookieName = "Session"
	// two-valued locale preference, for i18n use
	LangCookie CookieName = "Lang"
)

// IsHttpOnly reports whether scripts must be kept away from the cookie.
//
// The locale cookie stays readable so the page script can mirror the
// current language without a round trip.
func IsHttpOnly(name CookieName) bool {
	return name != LangCookie
}
