// Copyright 2025, the ninegrid contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
Ninegrid composes up to nine uploaded images into a single 3x3 grid PNG.
*/
package main

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"os/user"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"codeberg.org/ninegrid/ninegrid/config"
	"codeberg.org/ninegrid/ninegrid/core/audit"
	"codeberg.org/ninegrid/ninegrid/core/compositor"
	"codeberg.org/ninegrid/ninegrid/core/preview"
	"codeberg.org/ninegrid/ninegrid/core/requests"
	"codeberg.org/ninegrid/ninegrid/core/session"
	"codeberg.org/ninegrid/ninegrid/core/slots"
	"codeberg.org/ninegrid/ninegrid/i18n"
	"codeberg.org/ninegrid/ninegrid/server/assets"
	"codeberg.org/ninegrid/ninegrid/server/router"
	"codeberg.org/ninegrid/ninegrid/server/routes"
	"codeberg.org/ninegrid/ninegrid/server/template"
)

const (
	// Values for http.Server timeouts.
	// ref: gosec: G112
	readHeaderTimeout time.Duration = 15 * time.Second
	readTimeout       time.Duration = 60 * time.Second
	writeTimeout      time.Duration = 60 * time.Second
	idleTimeout       time.Duration = 30 * time.Second

	serverShutdownDeadline time.Duration = 5 * time.Second
)

var (
	errChmodSocket = errors.New("failed to change unix socket permissions")
	errChownSocket = errors.New("failed to change unix socket ownership")
)

// embeddedContent holds our static web server content.
//
//go:embed assets/css assets/icons assets/js assets/robots.txt
//go:embed all:po
var embeddedContent embed.FS

//nolint:gochecknoinits
func init() {
	assets.FS = embeddedContent
}

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Application failed")
	}
}

// run orchestrates the application startup and graceful shutdown.
//
//nolint:funlen
func run() error {
	audit.SetDefaultLogger()

	cfg := &config.Global

	if err := cfg.LoadConfig(); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := i18n.Setup(assets.FS); err != nil {
		return fmt.Errorf("failed to initialize i18n engine: %w", err)
	}

	log.Info().Msg("Initialized i18n engine")

	if err := template.LoadIcons("assets/icons"); err != nil {
		return fmt.Errorf("failed to load icons: %w", err)
	}

	app, err := newApp(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go app.Sessions.Run(ctx, cfg.Session.SweepInterval)

	router := router.NewRouter()
	router.DefineRoutes(app)
	router.RegisterMiddleware()

	server := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	serverErrors := make(chan error, 1)

	go func() {
		listener, err := chooseListener()
		if err != nil {
			serverErrors <- fmt.Errorf("failed to create listener: %w", err)

			return
		}

		serverErrors <- server.Serve(listener)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case s := <-quit:
		log.Info().Str("signal", s.String()).Msg("Shutdown signal received")
		log.Info().Msg("Shutting down server...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), serverShutdownDeadline)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
	}

	cancel()
	app.Sessions.Close()

	log.Info().Msg("Server exited gracefully")

	return nil
}

// newApp builds the session, preview, rendering and import components.
func newApp(cfg *config.ServerConfig) (*routes.App, error) {
	previews, err := preview.NewRegistry(cfg.Session.MaxSessions*slots.Count, cfg.Preview.Compress)
	if err != nil {
		return nil, fmt.Errorf("failed to create preview registry: %w", err)
	}

	sessions, err := session.NewManager(cfg.Session.MaxSessions, cfg.Session.IdleTimeout, previews, &config.PasetoValidator)
	if err != nil {
		return nil, fmt.Errorf("failed to create session manager: %w", err)
	}

	app := &routes.App{
		Sessions: sessions,
		Previews: previews,
		Compositor: compositor.New(
			compositor.DefaultParams(),
			compositor.WithDecodeTimeout(cfg.Render.DecodeTimeout),
			compositor.WithMaxPixels(cfg.Render.MaxPixels),
			compositor.WithCompression(cfg.PNGCompression()),
		),
	}

	if cfg.Fetch.Enabled {
		app.Fetcher, err = requests.NewFetcher(requests.Options{
			Timeout:              cfg.Fetch.Timeout,
			MaxBytes:             cfg.Fetch.MaxBytes,
			AllowPrivateNetworks: cfg.Fetch.AllowPrivateNetworks,
			CacheSize:            cfg.Fetch.CacheSize,
			CacheTTL:             cfg.Fetch.CacheTTL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create remote fetcher: %w", err)
		}

		log.Info().
			Dur("timeout", cfg.Fetch.Timeout).
			Int64("max_bytes", cfg.Fetch.MaxBytes).
			Msg("Remote imports enabled")
	}

	return app, nil
}

func chooseListener() (net.Listener, error) {
	// Check if we should use a Unix domain socket
	if config.Global.Basic.UnixSocket != "" {
		unixAddr := config.Global.Basic.UnixSocket

		unixListener, err := (&net.ListenConfig{}).Listen(context.Background(), "unix", unixAddr)
		if err != nil {
			return nil, fmt.Errorf("failed to start Unix socket listener on %v: %w", unixAddr, err)
		}

		if err = setupSocket(); err != nil {
			_ = unixListener.Close()

			return nil, err
		}

		// Assign the listener and log where we are listening
		log.Info().
			Str("address", unixAddr).
			Msg("Listening on Unix domain socket")

		return unixListener, nil
	}

	// Otherwise, fall back to TCP listener
	addr := net.JoinHostPort(config.Global.Basic.Host, config.Global.Basic.Port)

	tcpListener, err := (&net.ListenConfig{}).Listen(context.Background(), "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to start TCP listener on %v: %w", addr, err)
	}

	addr = tcpListener.Addr().String()

	// Extract the port for logging
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		_ = tcpListener.Close()

		return nil, fmt.Errorf("failed to parse listener address %q: %w", addr, err)
	}

	// Log the address and convenient URL for local development
	log.Info().
		Str("address", addr).
		Str("port", port).
		Str("url", fmt.Sprintf("http://ninegrid.localhost:%v/", port)).
		Msg("Listening on address")

	return tcpListener, nil
}

func setupSocket() error {
	cfg := config.Global.Basic

	if cfg.UnixSocket == "" {
		return nil
	}

	uid, gid := -1, -1

	var err error

	if cfg.UnixSocketUser != "" {
		uid, err = parseUserOrGroupID(cfg.UnixSocketUser, "user")
		if err != nil {
			return err
		}
	}

	if cfg.UnixSocketGroup != "" {
		gid, err = parseUserOrGroupID(cfg.UnixSocketGroup, "group")
		if err != nil {
			return err
		}
	}

	if uid != -1 || gid != -1 {
		if err := os.Chown(cfg.UnixSocket, uid, gid); err != nil {
			return fmt.Errorf("%w: %w", errChownSocket, err)
		}
	}

	if err := os.Chmod(cfg.UnixSocket, cfg.UnixSocketPermissions); err != nil {
		return fmt.Errorf("%w: %w", errChmodSocket, err)
	}

	return nil
}

// parseUserOrGroupID attempts to parse a user or group identifier.
//
// It first tries to convert the value to an integer. If that fails, it
// performs a system lookup for the given kind ("user" or "group").
func parseUserOrGroupID(value, kind string) (int, error) {
	// Try to parse as a numeric ID first.
	if id, err := strconv.Atoi(value); err == nil {
		return id, nil
	}

	// If parsing fails, assume it's a name and look it up.
	var idStr string

	if kind == "user" {
		u, err := user.Lookup(value)
		if err != nil {
			return -1, fmt.Errorf("failed to lookup user '%s': %w", value, err)
		}

		idStr = u.Uid
	} else { // kind == "group"
		g, err := user.LookupGroup(value)
		if err != nil {
			return -1, fmt.Errorf("failed to lookup group '%s': %w", value, err)
		}

		idStr = g.Gid
	}

	// Parse the ID from the looked-up struct.
	id, err := strconv.Atoi(idStr)
	if err != nil {
		return -1, fmt.Errorf("failed to parse %s ID from looked-up value '%s': %w", kind, value, err)
	}

	return id, nil
}
