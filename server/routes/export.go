// Copyright 2025, the ninegrid contributors
// SPDX-License-Identifier: AGPL-3.0-only

package routes

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	servertiming "github.com/mitchellh/go-server-timing"

	"codeberg.org/ninegrid/ninegrid/config"
	"codeberg.org/ninegrid/ninegrid/core/compositor"
)

// Export renders the grid and sends it as a PNG download.
func (app *App) Export(w http.ResponseWriter, r *http.Request) error {
	sess, err := app.session(w, r)
	if err != nil {
		return err
	}

	var metric *servertiming.Metric
	if timing := servertiming.FromContext(r.Context()); timing != nil {
		metric = timing.NewMetric("render").WithDesc("Grid render").Start()
	}

	png, err := app.Compositor.Render(r.Context(), sess.Store.Snapshot())

	if metric != nil {
		metric.Stop()
	}

	if err != nil {
		return reject(w, r, sess, err)
	}

	filename := compositor.Filename(config.Global.Render.FilenameLabel, time.Now())

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.Header().Set("Cache-Control", "no-store")

	_, err = w.Write(png)

	return err
}
