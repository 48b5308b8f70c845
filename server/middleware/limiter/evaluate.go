// Copyright 2025, the ninegrid contributors
// SPDX-License-Identifier: AGPL-3.0-only

package limiter

import (
	"math"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"codeberg.org/ninegrid/ninegrid/config"
	"codeberg.org/ninegrid/ninegrid/server/routes"
)

// Rate limiting header names.
//
// ref: https://www.ietf.org/archive/id/draft-polli-ratelimit-headers-02.html
const (
	HeaderRateLimitLimit     string = "RateLimit-Limit" // This is intended.
	HeaderRateLimitRemaining string = "RateLimit-Remaining"
	HeaderRateLimitReset     string = "RateLimit-Reset"
)

// limitedReadPaths are GET routes expensive enough to be limited like
// mutations. Every other GET, including the up to nine previews a page view
// loads, passes freely.
var limitedReadPaths = []string{
	"/export",
}

// Evaluate is the entrypoint to the limiter middleware.
func Evaluate(w http.ResponseWriter, r *http.Request, next http.Handler) {
	defer DoCleanup()

	client, err := newClientInfo(r)
	if err != nil {
		log.Warn().Err(err).Str("remote_addr", r.RemoteAddr).Msg("Request blocked, unknown client")

		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)

		return
	}

	// 1: Fast-path exclusions.
	if client.isExempt(r) {
		next.ServeHTTP(w, r)

		return
	}

	// 2: Explicit pass list.
	if client.isPassListed() {
		next.ServeHTTP(w, r)

		return
	}

	// 3: Local traffic (optional based on configuration).
	if !config.Global.Limiter.FilterLocal && client.isLocal() {
		next.ServeHTTP(w, r)

		return
	}

	// 4: Rate limiting.
	client.limiter = getOrCreateLimiter(client.network.String())

	if blockReason := checkRateLimit(client.limiter, client.network.String()); blockReason != "" {
		log.Warn().
			Str("ip", client.ip.String()).
			Str("network", client.network.String()).
			Str("reason", blockReason).
			Msg("Request blocked, exceeded rate limit")
		addRateLimitHeaders(w, client)

		routes.TooManyRequests(w, r)

		return
	}

	addRateLimitHeaders(w, client)
	next.ServeHTTP(w, r)
}

// addRateLimitHeaders adds rate limiting information to the response headers.
func addRateLimitHeaders(w http.ResponseWriter, client *ClientInfo) {
	if client == nil || client.limiter == nil {
		return
	}

	client.limiter.mu.Lock()
	defer client.limiter.mu.Unlock()

	limiter := client.limiter.limiter

	currentTokens := limiter.TokensAt(timeNow())
	burst := limiter.Burst()
	limit := limiter.Limit()

	// Tokens remaining can't exceed burst.
	remaining := int(math.Max(0, math.Min(float64(burst), currentTokens)))

	// Seconds until full bucket replenishment.
	var resetTime int64

	if currentTokens < float64(burst) && limit > 0 {
		resetTime = int64(math.Ceil((float64(burst) - currentTokens) / float64(limit)))
	}

	resetStr := strconv.FormatInt(resetTime, 10)

	w.Header().Set(HeaderRateLimitLimit, strconv.Itoa(burst))
	w.Header().Set(HeaderRateLimitRemaining, strconv.Itoa(remaining))
	w.Header().Set(HeaderRateLimitReset, resetStr)

	// Retry-After is when the next single token arrives.
	if remaining <= 0 && limit > 0 {
		retry := int64(math.Ceil((1 - currentTokens) / float64(limit)))
		w.Header().Set("Retry-After", strconv.FormatInt(max(retry, 1), 10))
	}
}
