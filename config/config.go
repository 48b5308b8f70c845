// Copyright 2025, the ninegrid contributors
// SPDX-License-Identifier: AGPL-3.0-only

package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/rs/zerolog/log"

	_ "codeberg.org/ninegrid/ninegrid/core/audit" // setup better logging format
	"codeberg.org/ninegrid/ninegrid/core/idgen"
)

// Global exposes the server configuration.
var Global ServerConfig

// ServerConfig holds the application configuration.
type ServerConfig struct {
	Build buildInfo `yaml:"-"`

	Basic struct {
		Host                     string      `env:"NINEGRID_HOST,overwrite" yaml:"host"`
		Port                     string      `env:"NINEGRID_PORT,overwrite" yaml:"port"`
		UnixSocket               string      `env:"NINEGRID_UNIXSOCKET" yaml:"unixSocket"`
		RawUnixSocketPermissions string      `env:"NINEGRID_UNIXSOCKET_PERMISSIONS" yaml:"unixSocketPermissions"`
		UnixSocketPermissions    os.FileMode `yaml:"-"`
		UnixSocketUser           string      `env:"NINEGRID_UNIXSOCKET_USER" yaml:"unixSocketUser"`
		UnixSocketGroup          string      `env:"NINEGRID_UNIXSOCKET_GROUP" yaml:"unixSocketGroup"`
		// raw bytes of v4.public secret key, hex encoded
		PasetoSecret string `env:"NINEGRID_SECRET" yaml:"secret"`
	} `yaml:"basic"`

	Session struct {
		MaxSessions   int           `env:"NINEGRID_MAX_SESSIONS,overwrite" yaml:"maxSessions"`
		IdleTimeout   time.Duration `env:"NINEGRID_SESSION_IDLE_TIMEOUT,overwrite" yaml:"idleTimeout"`
		SweepInterval time.Duration `env:"NINEGRID_SESSION_SWEEP_INTERVAL,overwrite" yaml:"sweepInterval"`
	} `yaml:"session"`

	Upload struct {
		MaxFileSize    int64 `env:"NINEGRID_UPLOAD_MAX_FILE_SIZE,overwrite" yaml:"maxFileSize"`
		MaxRequestSize int64 `env:"NINEGRID_UPLOAD_MAX_REQUEST_SIZE,overwrite" yaml:"maxRequestSize"`
	} `yaml:"upload"`

	Render struct {
		DecodeTimeout    time.Duration `env:"NINEGRID_DECODE_TIMEOUT,overwrite" yaml:"decodeTimeout"`
		MaxPixels        int64         `env:"NINEGRID_RENDER_MAX_PIXELS,overwrite" yaml:"maxPixels"`
		CompressionLevel string        `env:"NINEGRID_PNG_COMPRESSION,overwrite" yaml:"pngCompression"`
		FilenameLabel    string        `env:"NINEGRID_FILENAME_LABEL,overwrite" yaml:"filenameLabel"`
	} `yaml:"render"`

	Preview struct {
		Compress bool `env:"NINEGRID_PREVIEW_COMPRESS,overwrite" yaml:"compress"`
	} `yaml:"preview"`

	Fetch struct {
		Enabled              bool          `env:"NINEGRID_FETCH,overwrite" yaml:"enabled"`
		Timeout              time.Duration `env:"NINEGRID_FETCH_TIMEOUT,overwrite" yaml:"timeout"`
		MaxBytes             int64         `env:"NINEGRID_FETCH_MAX_BYTES,overwrite" yaml:"maxBytes"`
		AllowPrivateNetworks bool          `env:"NINEGRID_FETCH_ALLOW_PRIVATE,overwrite" yaml:"allowPrivateNetworks"`
		CacheSize            int           `env:"NINEGRID_FETCH_CACHE_SIZE,overwrite" yaml:"cacheSize"`
		CacheTTL             time.Duration `env:"NINEGRID_FETCH_CACHE_TTL,overwrite" yaml:"cacheTTL"`
	} `yaml:"fetch"`

	Instance struct {
		StartingTime      string `yaml:"-"`
		FileServerCacheID string `yaml:"-"`
		RepoURL           string `env:"NINEGRID_REPO_URL,overwrite" yaml:"repoUrl"`
	} `yaml:"instance"`

	Development struct {
		InDevelopment bool `env:"NINEGRID_DEV" yaml:"inDevelopment"`
	} `yaml:"development"`

	Log struct {
		Level   string   `env:"NINEGRID_LOG_LEVEL,overwrite" yaml:"logLevel"`
		Outputs []string `env:"NINEGRID_LOG_OUTPUTS,overwrite" yaml:"logOutputs"`
		Format  string   `env:"NINEGRID_LOG_FORMAT,overwrite" yaml:"logFormat"`
	} `yaml:"log"`

	Limiter struct {
		Enabled     bool     `env:"NINEGRID_LIMITER,overwrite" yaml:"enabled"`
		Rate        float64  `env:"NINEGRID_LIMITER_RATE,overwrite" yaml:"rate"`
		Burst       int      `env:"NINEGRID_LIMITER_BURST,overwrite" yaml:"burst"`
		PassIPs     []string `env:"NINEGRID_LIMITER_PASS_IPS,overwrite" yaml:"passList"`
		FilterLocal bool     `env:"NINEGRID_LIMITER_FILTER_LOCAL,overwrite" yaml:"filterLocal"`
		IPv4Prefix  int      `env:"NINEGRID_LIMITER_IPV4_PREFIX,overwrite" yaml:"ipv4Prefix"`
		IPv6Prefix  int      `env:"NINEGRID_LIMITER_IPV6_PREFIX,overwrite" yaml:"ipv6Prefix"`
	} `yaml:"limiter"`

	Internationalization struct {
		// Strict mode for missing keys.
		//
		// When enabled, missing keys are logged (deduplicated per locale+key) and
		// visibly wrapped using markers.
		StrictMissingKeys bool `env:"NINEGRID_STRICT_MISSING_KEYS" yaml:"strictMissingKeys"`
	} `yaml:"internationalization"`
}

// LoadConfig loads the configuration from various sources.
func (cfg *ServerConfig) LoadConfig() error {
	parsedConfigFlagValue := parseCommandLineArgs()

	// Check if the -config flag was explicitly set by the user.
	configFlagUserSet := false

	flag.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			configFlagUserSet = true
		}
	})

	var configFilePath string

	// Determine the config file path with the correct precedence:
	// 1. Command-line flag (-config)
	// 2. Environment variable (NINEGRID_CONFIGFILE)
	// 3. Default path with fallback check
	if configFlagUserSet {
		configFilePath = parsedConfigFlagValue
	} else if envVar := os.Getenv("NINEGRID_CONFIGFILE"); envVar != "" {
		configFilePath = envVar
	} else {
		configFilePath = parsedConfigFlagValue
		if _, err := os.Stat(configFilePath); os.IsNotExist(err) {
			ymlPath := "./config.yml"
			if _, statErr := os.Stat(ymlPath); statErr == nil {
				configFilePath = ymlPath
			}
		}
	}

	return cfg.load(configFilePath)
}

// load runs every stage after the config file path is known.
func (cfg *ServerConfig) load(configFilePath string) error {
	cfg.SetDefaults()

	cfg.Build.load()

	cfg.Instance.FileServerCacheID = idgen.Make()
	cfg.Instance.StartingTime = time.Now().UTC().Format("2006-01-02 15:04")

	if err := cfg.readYAML(configFilePath); err != nil {
		return fmt.Errorf("error loading YAML config: %w", err)
	}

	if err := useDotEnv(); err != nil {
		return fmt.Errorf("error using .env file: %w", err)
	}

	if err := readEnv(cfg); err != nil {
		return fmt.Errorf("error loading environment variables: %w", err)
	}

	if err := cfg.validateAndSet(); err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}

	cfg.setupAudit()

	cfg.print()

	// Heuristically check for containerized environment and warn if host is not a wildcard address.
	if isContainerized() && cfg.Basic.UnixSocket == "" && cfg.Basic.Host != "0.0.0.0" && cfg.Basic.Host != "::" {
		log.Warn().
			Str("host", cfg.Basic.Host).
			Msg("Running in a containerized environment but host is not a wildcard address (e.g., '0.0.0.0' or '::'). This may prevent the service from being accessible outside the container.")
	}

	return nil
}

var staticSkippedPathPrefixes = []string{"/css/", "/js/", "/icons/"}

// ShouldSkipServerLogging determines if a request should bypass the logging middleware.
func (cfg *ServerConfig) ShouldSkipServerLogging(path string) bool {
	for _, prefix := range staticSkippedPathPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}

	// thumbnails are requested nine at a time on every page load
	return cfg.Development.InDevelopment && strings.HasPrefix(path, "/preview/")
}

// isContainerized checks for common indicators of a containerized environment.
//
// This is a heuristic and may not be 100% accurate.
func isContainerized() bool {
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return true
	}

	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}

	if _, err := os.Stat("/.containerenv"); err == nil {
		return true
	}

	// #nosec G304 -- We are checking for the existence and content of a well-known system file for heuristics.
	cgroup, err := os.ReadFile("/proc/self/cgroup")
	if err == nil {
		content := string(cgroup)

		return strings.Contains(content, "docker") ||
			strings.Contains(content, "kubepods") ||
			strings.Contains(content, "containerd") ||
			strings.Contains(content, "lxc") ||
			strings.Contains(content, "crio") ||
			// systemd-nspawn containers
			strings.Contains(content, ".machine")
	}

	return false
}

// GetDurationEncoderOption returns a YAML encoder option that marshals
// time.Duration into a human-readable string format (e.g., "30m", "1h").
func GetDurationEncoderOption() yaml.EncodeOption {
	return yaml.CustomMarshaler[time.Duration](
		func(d time.Duration) ([]byte, error) {
			return yaml.Marshal(d.String())
		},
	)
}
