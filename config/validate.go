// Copyright 2025, the ninegrid contributors
// SPDX-License-Identifier: AGPL-3.0-only

package config

import (
	"errors"
	"fmt"
	"image/png"
	"os"
	"os/user"
	"regexp"
	"strconv"

	"github.com/rs/zerolog/log"

	"codeberg.org/ninegrid/ninegrid/core/authenticated"
	"codeberg.org/ninegrid/ninegrid/server/utils"
)

// PasetoValidator holds the key that signs session cookies.
var PasetoValidator authenticated.Validator

// validation errors.
var (
	errUnixSocketWithHostPort       = errors.New("unix socket configured - cannot specify Host and Port simultaneously")
	errUnixSocketInvalidPermissions = errors.New("invalid Basic.UnixSocketPermissions value")
	errUnixSocketUserDoesNotExist   = errors.New("user does not exist")
	errUnixSocketGroupDoesNotExist  = errors.New("group does not exist")
	errPasetoSecretInvalid          = errors.New("basic.secret is not a valid paseto key")
	errInvalidMaxSessions           = errors.New("session.maxSessions must be positive")
	errInvalidIdleTimeout           = errors.New("session.idleTimeout must be positive")
	errInvalidUploadLimits          = errors.New("upload.maxFileSize must be positive and not exceed upload.maxRequestSize")
	errInvalidDecodeTimeout         = errors.New("render.decodeTimeout must be positive")
	errInvalidMaxPixels             = errors.New("render.maxPixels must be positive")
	errInvalidCompressionLevel      = errors.New("invalid render.pngCompression, expected one of default, none, fast, best")
	errInvalidFilenameLabel         = errors.New("render.filenameLabel must be non-empty and use only letters, digits, dots, dashes and underscores")
	errInvalidFetchLimits           = errors.New("fetch.timeout and fetch.maxBytes must be positive when fetch is enabled")
	errInvalidLimiterRate           = errors.New("limiter.rate and limiter.burst must be positive")
	errInvalidIPv4Prefix            = errors.New("IPv4 prefix must be between 0 and 32")
	errInvalidIPv6Prefix            = errors.New("IPv6 prefix must be between 0 and 128")
)

var (
	fileModeOctalRegexp  = regexp.MustCompile(`^0?[0-7]{3}$`)
	fileModeStringRegexp = regexp.MustCompile(`^(?:[r-][w-][x-]){3}$`)
	digitsRegexp         = regexp.MustCompile(`^[0-9]+$`)
	labelRegexp          = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)
)

var compressionLevels = map[string]png.CompressionLevel{
	"default": png.DefaultCompression,
	"none":    png.NoCompression,
	"fast":    png.BestSpeed,
	"best":    png.BestCompression,
}

// PNGCompression returns the encoder setting named by Render.CompressionLevel.
func (cfg *ServerConfig) PNGCompression() png.CompressionLevel {
	if level, ok := compressionLevels[cfg.Render.CompressionLevel]; ok {
		return level
	}

	return png.DefaultCompression
}

// validateAndSet validates the server configuration and populates some fields.
func (cfg *ServerConfig) validateAndSet() error {
	if err := cfg.validateListener(); err != nil {
		return err
	}

	if err := cfg.loadSecret(); err != nil {
		return err
	}

	repoURL, err := utils.ParseURL(cfg.Instance.RepoURL, "Repo")
	if err != nil {
		return fmt.Errorf("invalid repo URL: %w", err)
	}

	cfg.Instance.RepoURL = repoURL.String()

	if cfg.Session.MaxSessions <= 0 {
		return errInvalidMaxSessions
	}

	if cfg.Session.IdleTimeout <= 0 {
		return errInvalidIdleTimeout
	}

	if cfg.Session.SweepInterval <= 0 || cfg.Session.SweepInterval > cfg.Session.IdleTimeout {
		cfg.Session.SweepInterval = cfg.Session.IdleTimeout
	}

	if cfg.Upload.MaxFileSize <= 0 || cfg.Upload.MaxFileSize > cfg.Upload.MaxRequestSize {
		return errInvalidUploadLimits
	}

	if cfg.Render.DecodeTimeout <= 0 {
		return errInvalidDecodeTimeout
	}

	if cfg.Render.MaxPixels <= 0 {
		return errInvalidMaxPixels
	}

	if _, ok := compressionLevels[cfg.Render.CompressionLevel]; !ok {
		return errInvalidCompressionLevel
	}

	if !labelRegexp.MatchString(cfg.Render.FilenameLabel) {
		return errInvalidFilenameLabel
	}

	if cfg.Fetch.Enabled && (cfg.Fetch.Timeout <= 0 || cfg.Fetch.MaxBytes <= 0) {
		return errInvalidFetchLimits
	}

	// Skip validating Limiter configuration if it's not enabled
	if !cfg.Limiter.Enabled {
		return nil
	}

	if cfg.Limiter.Rate <= 0 || cfg.Limiter.Burst <= 0 {
		return errInvalidLimiterRate
	}

	if cfg.Limiter.IPv4Prefix < 0 || cfg.Limiter.IPv4Prefix > 32 {
		return errInvalidIPv4Prefix
	}

	if cfg.Limiter.IPv6Prefix < 0 || cfg.Limiter.IPv6Prefix > 128 {
		return errInvalidIPv6Prefix
	}

	return nil
}

// validateListener checks the unix socket settings or fills TCP defaults.
func (cfg *ServerConfig) validateListener() error {
	if cfg.Basic.UnixSocket == "" {
		if cfg.Basic.Host == "" {
			cfg.Basic.Host = "localhost"
			log.Info().
				Str("host", cfg.Basic.Host).
				Msg("Binding to default host")
		}

		if cfg.Basic.Port == "" {
			cfg.Basic.Port = "8383"
			log.Info().
				Str("port", cfg.Basic.Port).
				Msg("Using default port")
		}

		return nil
	}

	if cfg.Basic.Host != "" || cfg.Basic.Port != "" {
		return errUnixSocketWithHostPort
	}

	switch {
	case cfg.Basic.RawUnixSocketPermissions == "":
		cfg.Basic.UnixSocketPermissions = 0o666
	case fileModeOctalRegexp.MatchString(cfg.Basic.RawUnixSocketPermissions):
		rawModeUint64, _ := strconv.ParseUint(cfg.Basic.RawUnixSocketPermissions, 8, 32)

		cfg.Basic.UnixSocketPermissions = os.FileMode(rawModeUint64)
	case fileModeStringRegexp.MatchString(cfg.Basic.RawUnixSocketPermissions):
		mode := os.FileMode(0)

		for i, c := range cfg.Basic.RawUnixSocketPermissions {
			if c != '-' {
				const bitsInByte = 8

				mode |= 1 << (bitsInByte - i)
			}
		}

		cfg.Basic.UnixSocketPermissions = mode
	default:
		return errUnixSocketInvalidPermissions
	}

	if cfg.Basic.UnixSocketUser != "" {
		lookup := user.Lookup
		if digitsRegexp.MatchString(cfg.Basic.UnixSocketUser) {
			lookup = user.LookupId
		}

		if _, err := lookup(cfg.Basic.UnixSocketUser); err != nil {
			return errUnixSocketUserDoesNotExist
		}
	}

	if cfg.Basic.UnixSocketGroup != "" {
		lookup := user.LookupGroup
		if digitsRegexp.MatchString(cfg.Basic.UnixSocketGroup) {
			lookup = user.LookupGroupId
		}

		if _, err := lookup(cfg.Basic.UnixSocketGroup); err != nil {
			return errUnixSocketGroupDoesNotExist
		}
	}

	return nil
}

// loadSecret loads the session signing key, generating a throwaway one when
// none is configured.
func (cfg *ServerConfig) loadSecret() error {
	if cfg.Basic.PasetoSecret == "" {
		log.Warn().
			Msg("No basic.secret configured, generating an ephemeral key. Sessions will not survive a restart")

		PasetoValidator.Generate()

		return nil
	}

	if err := PasetoValidator.LoadSecretKeyFromHex(cfg.Basic.PasetoSecret); err != nil {
		key := authenticated.NewSecretKeyHex()
		log.Error().Err(err).Msgf("Generated secret key (put this in config.yaml)\nbasic:\n  secret: \"%s\"", key)

		return errPasetoSecretInvalid
	}

	// remove key. no longer needed.
	cfg.Basic.PasetoSecret = ""

	return nil
}
