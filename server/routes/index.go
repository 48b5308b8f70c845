// Copyright 2025, the ninegrid contributors
// SPDX-License-Identifier: AGPL-3.0-only

package routes

import (
	"net/http"

	"codeberg.org/ninegrid/ninegrid/assets/views"
	"codeberg.org/ninegrid/ninegrid/core/session"
)

// Index renders the grid page.
func (app *App) Index(w http.ResponseWriter, r *http.Request) error {
	sess, err := app.session(w, r)
	if err != nil {
		return err
	}

	data := views.IndexData{
		Slots:        sess.Store.Snapshot(),
		FetchEnabled: app.Fetcher != nil,
	}

	if flash, ok := sess.TakeFlash(); ok {
		data.Flashes = []session.Flash{flash}
	}

	return render(w, r, http.StatusOK, views.Index(data))
}
