// Copyright 2025, the ninegrid contributors
// SPDX-License-Identifier: AGPL-3.0-only

package routes

import (
	"net/http"
	"strconv"

	"codeberg.org/ninegrid/ninegrid/core/preview"
	"codeberg.org/ninegrid/ninegrid/server/utils"
)

// Preview serves the bytes behind a preview handle. Handles belonging to
// other sessions are reported as missing.
func (app *App) Preview(w http.ResponseWriter, r *http.Request) error {
	handle := preview.Handle(utils.GetPathVar(r, "handle"))

	sess, ok := app.Sessions.Lookup(w, r)
	if !ok || !sess.Store.Owns(handle) {
		w.WriteHeader(http.StatusNotFound)

		return nil
	}

	data, mediaType, ok := app.Previews.Open(handle)
	if !ok {
		w.WriteHeader(http.StatusNotFound)

		return nil
	}

	// A handle always names the same bytes.
	w.Header().Set("Cache-Control", "private, max-age=31536000, immutable")
	w.Header().Set("Content-Type", mediaType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'; sandbox")
	w.Header().Set("X-Content-Type-Options", "nosniff")

	_, err := w.Write(data)

	return err
}
