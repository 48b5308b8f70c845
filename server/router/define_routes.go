// Copyright 2025, the ninegrid contributors
// SPDX-License-Identifier: AGPL-3.0-only

package router

import (
	"fmt"
	"io/fs"
	"net/http"
	"net/http/pprof"
	"runtime/trace"
	"time"

	"codeberg.org/ninegrid/ninegrid/config"
	"codeberg.org/ninegrid/ninegrid/server/assets"
	"codeberg.org/ninegrid/ninegrid/server/routes"
)

// DefineRoutes registers every route of app on the router.
//
// Middleware is registered separately with RegisterMiddleware.
func (router *Router) DefineRoutes(app *routes.App) {
	fileServerHandler := fileServer()

	// Serve specific files from the root of the 'assets' subdirectory.
	router.Handle("GET /robots.txt", fileServerHandler)

	// Serve files from subdirectories within 'assets'.
	// Patterns ending in "/" are prefix matches.
	router.Handle("GET /css/", fileServerHandler)
	router.Handle("GET /js/", fileServerHandler)
	router.Handle("GET /icons/", fileServerHandler)

	// Slot routes
	router.HandleError("POST /slots", app.InsertSlots)
	router.HandleError("POST /slots/import", app.ImportSlot)
	router.HandleError("POST /slots/{index}/remove", app.RemoveSlot)
	router.HandleError("POST /slots/reset", app.ResetSlots)
	router.HandleError("GET /preview/{handle}", app.Preview)
	router.HandleError("GET /export", app.Export)

	// REST API routes (for the drag-and-drop script)
	router.HandleError("GET /api/slots", app.APISlots)

	// Settings routes
	router.HandleError("POST /settings/language", routes.SetLanguage)

	// Index page routes
	// /{$} matches only the root path
	router.HandleError("GET /{$}", app.Index)

	// Everything else
	router.HandleError("/", func(w http.ResponseWriter, _ *http.Request) error {
		w.WriteHeader(http.StatusNotFound)

		return nil
	})

	if config.Global.Development.InDevelopment {
		registerDebugRoutes(router)
	}
}

// Serve static files from embedded assets.
func fileServer() http.HandlerFunc {
	staticContentFS, err := fs.Sub(assets.FS, "assets")
	if err != nil {
		panic(fmt.Errorf("failed to create sub-filesystem for embedded 'assets' directory: %w", err))
	}

	fileServer := http.FileServer(http.FS(staticContentFS))
	fileServerHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Using a strong ETag for static files embedded via go:embed
		// ref: https://www.rfc-editor.org/rfc/rfc9110#weak.and.strong.validators
		//
		// Since go:embed requires rebuilding when files change, we use a per-instance
		// cache ID to ensure browsers fetch fresh content after any deployment.
		w.Header().Set("ETag", config.Global.Instance.FileServerCacheID)
		fileServer.ServeHTTP(w, r)
	})

	return fileServerHandler
}

var flightRecorder = trace.NewFlightRecorder(trace.FlightRecorderConfig{MinAge: time.Minute})

func registerDebugRoutes(router *Router) {
	err := flightRecorder.Start()
	if err != nil {
		panic(err)
	}

	router.HandleFunc("GET /debug/pprof/", pprof.Index)
	router.HandleFunc("GET /debug/pprof/cmdline", pprof.Cmdline)
	router.HandleFunc("GET /debug/pprof/profile", pprof.Profile)
	router.HandleFunc("GET /debug/pprof/symbol", pprof.Symbol)
	router.HandleFunc("GET /debug/pprof/trace", pprof.Trace)
	router.HandleFunc("GET /debug/flight", func(w http.ResponseWriter, r *http.Request) {
		_, _ = flightRecorder.WriteTo(w)
	})
}
