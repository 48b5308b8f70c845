// Copyright 2025, the ninegrid contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
This file provides network-based rate limiting for HTTP requests.

Clients are grouped by their IP network and each network shares one token
bucket, so a single host cannot dodge the limit by rotating addresses within
its allocation.
*/
package limiter

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"codeberg.org/ninegrid/ninegrid/config"
)

const (
	LimiterExpiryDuration = time.Hour       // How long to keep limiters in memory before cleanup.
	CleanupInterval       = 5 * time.Minute // Interval between limiter cleanup runs.
)

var (
	limiters sync.Map   // In-memory storage for rate limiters.
	timeNow  = time.Now // Wrapper for time.Now, which allows us to mock it in tests.
)

// limiterWrapper holds a rate limiter and additional metadata.
//
// Limiters are associated with an IP network and persist in the limiters sync.Map.
type limiterWrapper struct {
	limiter    *rate.Limiter
	network    string     // Associated network identifier
	lastAccess time.Time  // Last time limiter was accessed
	mu         sync.Mutex // mutex for operations on this limiter
}

// checkRateLimit attempts to consume 1 token from the limiterWrapper.
//
// Returns an empty string if the request is allowed, or a non-empty string with
// the reason if the request is blocked due to rate limiting.
func checkRateLimit(limiter *limiterWrapper, networkStr string) string {
	limiter.mu.Lock()
	defer limiter.mu.Unlock()

	now := timeNow()
	limiter.lastAccess = now

	if !limiter.limiter.AllowN(now, 1) {
		log.Warn().
			Str("network", networkStr).
			Msg("Rate limit exceeded")

		return "Rate limit exceeded"
	}

	return ""
}

// getOrCreateLimiter returns the limiterWrapper for the given network,
// creating one with the configured rate and burst if none exists.
func getOrCreateLimiter(networkStr string) *limiterWrapper {
	if limWrapper, found := loadLimiterFromMemory(networkStr); found {
		return limWrapper
	}

	created := newLimiterWrapper(config.Global.Limiter.Rate, config.Global.Limiter.Burst, networkStr)

	// Another request from the same network may have raced us here.
	actual, _ := limiters.LoadOrStore(networkStr, created)

	limWrapper, ok := actual.(*limiterWrapper)
	if !ok {
		limiters.Store(networkStr, created)

		return created
	}

	return limWrapper
}

// loadLimiterFromMemory tries to load from memory a limiterWrapper
// for a given network.
//
// Returns the limiter wrapper if found and true, or nil and false if no data was found.
func loadLimiterFromMemory(network string) (*limiterWrapper, bool) {
	value, ok := limiters.Load(network)
	if !ok {
		return nil, false
	}

	limWrapper, ok := value.(*limiterWrapper)
	if !ok {
		return nil, false
	}

	limWrapper.mu.Lock()
	limWrapper.lastAccess = timeNow()
	limWrapper.mu.Unlock()

	return limWrapper, true
}

// newLimiterWrapper creates a new limiterWrapper with the given parameters.
// The bucket starts full.
func newLimiterWrapper(rateLim float64, burstLim int, network string) *limiterWrapper {
	return &limiterWrapper{
		limiter:    rate.NewLimiter(rate.Limit(rateLim), burstLim),
		network:    network,
		lastAccess: timeNow(),
	}
}

// cleanupExpiredLimiters removes limiters that haven't been accessed for the expiry duration.
func cleanupExpiredLimiters() int {
	now := timeNow()

	var keysToDelete []any

	// Collect keys to delete in a slice to avoid deleting during Range()
	limiters.Range(func(key, value any) bool {
		limWrapper, ok := value.(*limiterWrapper)
		if !ok {
			keysToDelete = append(keysToDelete, key)

			return true
		}

		limWrapper.mu.Lock()
		lastAccess := limWrapper.lastAccess
		limWrapper.mu.Unlock()

		if now.Sub(lastAccess) > LimiterExpiryDuration {
			keysToDelete = append(keysToDelete, key)
		}

		return true
	})

	for _, key := range keysToDelete {
		limiters.Delete(key)
	}

	if len(keysToDelete) > 0 {
		log.Info().Int("count", len(keysToDelete)).
			Msg("Cleaned up expired limiters")
	}

	return len(keysToDelete)
}
