// Copyright 2025, the ninegrid contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
Package routes holds the HTTP handlers.

Handlers return an error instead of writing error responses themselves; they
are wrapped by middleware.CatchError, which renders ErrorPage for anything a
handler did not turn into a user-facing alert.
*/
package routes

import (
	"net/http"

	"codeberg.org/ninegrid/ninegrid/core/compositor"
	"codeberg.org/ninegrid/ninegrid/core/preview"
	"codeberg.org/ninegrid/ninegrid/core/requests"
	"codeberg.org/ninegrid/ninegrid/core/session"
)

// App holds what the handlers share.
type App struct {
	Sessions   *session.Manager
	Previews   *preview.Registry
	Compositor *compositor.Compositor

	// Fetcher imports images by URL. Nil disables remote import.
	Fetcher *requests.Fetcher
}

// session returns the caller's session, creating it on first use.
func (app *App) session(w http.ResponseWriter, r *http.Request) (*session.Session, error) {
	return app.Sessions.Resolve(w, r)
}
