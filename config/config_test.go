// Copyright 2025, the ninegrid contributors
// SPDX-License-Identifier: AGPL-3.0-only

package config

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/ninegrid/ninegrid/core/authenticated"
)

func defaultConfig() *ServerConfig {
	cfg := &ServerConfig{}
	cfg.SetDefaults()

	return cfg
}

func TestValidateAndSet(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(cfg *ServerConfig)
		wantErr error
	}{
		{
			name:   "Defaults are valid",
			mutate: func(*ServerConfig) {},
		},
		{
			name: "Unix socket with host",
			mutate: func(cfg *ServerConfig) {
				cfg.Basic.UnixSocket = "/tmp/ninegrid.sock"
			},
			wantErr: errUnixSocketWithHostPort,
		},
		{
			name: "Zero sessions",
			mutate: func(cfg *ServerConfig) {
				cfg.Session.MaxSessions = 0
			},
			wantErr: errInvalidMaxSessions,
		},
		{
			name: "File limit above request limit",
			mutate: func(cfg *ServerConfig) {
				cfg.Upload.MaxFileSize = cfg.Upload.MaxRequestSize + 1
			},
			wantErr: errInvalidUploadLimits,
		},
		{
			name: "Zero pixel limit",
			mutate: func(cfg *ServerConfig) {
				cfg.Render.MaxPixels = 0
			},
			wantErr: errInvalidMaxPixels,
		},
		{
			name: "Unknown compression level",
			mutate: func(cfg *ServerConfig) {
				cfg.Render.CompressionLevel = "maximum"
			},
			wantErr: errInvalidCompressionLevel,
		},
		{
			name: "Label with path separator",
			mutate: func(cfg *ServerConfig) {
				cfg.Render.FilenameLabel = "../grid"
			},
			wantErr: errInvalidFilenameLabel,
		},
		{
			name: "Fetch enabled without timeout",
			mutate: func(cfg *ServerConfig) {
				cfg.Fetch.Timeout = 0
			},
			wantErr: errInvalidFetchLimits,
		},
		{
			name: "Fetch disabled ignores limits",
			mutate: func(cfg *ServerConfig) {
				cfg.Fetch.Enabled = false
				cfg.Fetch.Timeout = 0
			},
		},
		{
			name: "Limiter prefix out of range",
			mutate: func(cfg *ServerConfig) {
				cfg.Limiter.Enabled = true
				cfg.Limiter.IPv4Prefix = 33
			},
			wantErr: errInvalidIPv4Prefix,
		},
		{
			name: "Invalid secret",
			mutate: func(cfg *ServerConfig) {
				cfg.Basic.PasetoSecret = "not-hex"
			},
			wantErr: errPasetoSecretInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := defaultConfig()
			tt.mutate(cfg)

			err := cfg.validateAndSet()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateAndSetClampsSweepInterval(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	cfg.Session.IdleTimeout = time.Minute
	cfg.Session.SweepInterval = time.Hour

	require.NoError(t, cfg.validateAndSet())
	assert.Equal(t, time.Minute, cfg.Session.SweepInterval)
}

func TestValidSecretIsConsumed(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	cfg.Basic.PasetoSecret = authenticated.NewSecretKeyHex()

	require.NoError(t, cfg.validateAndSet())
	assert.Empty(t, cfg.Basic.PasetoSecret)
}

// Environment tests cannot run in parallel because of t.Setenv.
func TestReadEnv(t *testing.T) {
	t.Setenv("NINEGRID_PORT", "9000")
	t.Setenv("NINEGRID_MAX_SESSIONS", "12")
	t.Setenv("NINEGRID_DECODE_TIMEOUT", "3s")
	t.Setenv("NINEGRID_RENDER_MAX_PIXELS", "1000000")
	t.Setenv("NINEGRID_LIMITER_RATE", "0.5")
	t.Setenv("NINEGRID_LIMITER_PASS_IPS", " 10.0.0.1, ,192.168.0.0/16 ")
	t.Setenv("NINEGRID_FETCH", "false")

	cfg := defaultConfig()
	require.NoError(t, readEnv(cfg))

	assert.Equal(t, "9000", cfg.Basic.Port)
	assert.Equal(t, 12, cfg.Session.MaxSessions)
	assert.Equal(t, 3*time.Second, cfg.Render.DecodeTimeout)
	assert.Equal(t, int64(1_000_000), cfg.Render.MaxPixels)
	assert.InDelta(t, 0.5, cfg.Limiter.Rate, 1e-9)
	assert.Equal(t, []string{"10.0.0.1", "192.168.0.0/16"}, cfg.Limiter.PassIPs)
	assert.False(t, cfg.Fetch.Enabled)
}

func TestReadEnvWithoutOverwrite(t *testing.T) {
	t.Setenv("NINEGRID_UNIXSOCKET", "/run/other.sock")

	cfg := defaultConfig()
	cfg.Basic.UnixSocket = "/run/ninegrid.sock"

	require.NoError(t, readEnv(cfg))
	assert.Equal(t, "/run/ninegrid.sock", cfg.Basic.UnixSocket)
}

func TestReadEnvRejectsBadValues(t *testing.T) {
	t.Setenv("NINEGRID_SESSION_IDLE_TIMEOUT", "forever")

	assert.Error(t, readEnv(defaultConfig()))
}

func TestReadYAML(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	valid := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(valid, []byte(`
basic:
  port: "9999"
render:
  pngCompression: best
  decodeTimeout: 5s
`), 0o600))

	cfg := defaultConfig()
	require.NoError(t, cfg.readYAML(valid))
	assert.Equal(t, "9999", cfg.Basic.Port)
	assert.Equal(t, 5*time.Second, cfg.Render.DecodeTimeout)
	assert.Equal(t, png.BestCompression, cfg.PNGCompression())

	unknown := filepath.Join(dir, "typo.yaml")
	require.NoError(t, os.WriteFile(unknown, []byte("rendr:\n  decodeTimeout: 5s\n"), 0o600))
	assert.Error(t, defaultConfig().readYAML(unknown))

	assert.NoError(t, defaultConfig().readYAML(filepath.Join(dir, "missing.yaml")))
}

func TestShouldSkipServerLogging(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	assert.True(t, cfg.ShouldSkipServerLogging("/css/style.css"))
	assert.False(t, cfg.ShouldSkipServerLogging("/preview/abc"))

	cfg.Development.InDevelopment = true
	assert.True(t, cfg.ShouldSkipServerLogging("/preview/abc"))
	assert.False(t, cfg.ShouldSkipServerLogging("/export"))
}
