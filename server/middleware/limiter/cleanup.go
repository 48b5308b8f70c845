// Copyright 2025, the ninegrid contributors
// SPDX-License-Identifier: AGPL-3.0-only

package limiter

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	cleanupMu     sync.Mutex
	lastCleanupAt time.Time
)

// DoCleanup drops idle limiters in the background, at most once per
// CleanupInterval.
func DoCleanup() {
	now := timeNow()

	cleanupMu.Lock()
	defer cleanupMu.Unlock()

	if lastCleanupAt.IsZero() {
		lastCleanupAt = now

		return
	}

	if now.Sub(lastCleanupAt) < CleanupInterval {
		return
	}

	lastCleanupAt = now

	go func() {
		start := time.Now()
		removed := cleanupExpiredLimiters()

		log.Debug().Int("removed", removed).Dur("dur", time.Since(start)).Msg("limiter cleanup")
	}()
}
