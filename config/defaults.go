// Copyright 2025, the ninegrid contributors
// SPDX-License-Identifier: AGPL-3.0-only

package config

import "time"

const (
	// Default idle time before a session's slots are released, in minutes.
	defaultSessionIdleTimeoutMinutes = 30
	// Default interval between idle session sweeps, in minutes.
	defaultSessionSweepIntervalMinutes = 1

	// Default per-file upload limit, in MiB.
	defaultMaxFileSizeMiB = 20
	// Default decode timeout for a whole render, in seconds.
	defaultDecodeTimeoutSeconds = 20
	// Default largest image a cell accepts, in megapixels.
	defaultMaxMegapixels = 50
	// Default remote import timeout, in seconds.
	defaultFetchTimeoutSeconds = 10
	// Default lifetime of cached remote imports, in minutes.
	defaultFetchCacheTTLMinutes = 5

	mib = 1 << 20
)

// SetDefaults populates the configuration with default values.
func (cfg *ServerConfig) SetDefaults() {
	cfg.Basic.Host = "localhost"
	cfg.Basic.Port = "8383"

	cfg.Session.MaxSessions = 256
	cfg.Session.IdleTimeout = defaultSessionIdleTimeoutMinutes * time.Minute
	cfg.Session.SweepInterval = defaultSessionSweepIntervalMinutes * time.Minute

	cfg.Upload.MaxFileSize = defaultMaxFileSizeMiB * mib
	cfg.Upload.MaxRequestSize = 9 * defaultMaxFileSizeMiB * mib

	cfg.Render.DecodeTimeout = defaultDecodeTimeoutSeconds * time.Second
	cfg.Render.MaxPixels = defaultMaxMegapixels * 1_000_000
	cfg.Render.CompressionLevel = "default"
	cfg.Render.FilenameLabel = "ninegrid"

	cfg.Preview.Compress = false

	cfg.Fetch.Enabled = true
	cfg.Fetch.Timeout = defaultFetchTimeoutSeconds * time.Second
	cfg.Fetch.MaxBytes = defaultMaxFileSizeMiB * mib
	cfg.Fetch.AllowPrivateNetworks = false
	cfg.Fetch.CacheSize = 32
	cfg.Fetch.CacheTTL = defaultFetchCacheTTLMinutes * time.Minute

	cfg.Instance.RepoURL = "https://codeberg.org/ninegrid/ninegrid"

	cfg.Log.Level = "info"
	cfg.Log.Outputs = []string{"/dev/stderr"}
	cfg.Log.Format = "console"

	cfg.Limiter.Enabled = false
	cfg.Limiter.Rate = 2
	cfg.Limiter.Burst = 20
	cfg.Limiter.FilterLocal = false
	cfg.Limiter.IPv4Prefix = 24
	cfg.Limiter.IPv6Prefix = 48

	cfg.Internationalization.StrictMissingKeys = false
}
