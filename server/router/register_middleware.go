// Copyright 2025, the ninegrid contributors
// SPDX-License-Identifier: AGPL-3.0-only

package router

import (
	"github.com/rs/zerolog/log"

	"codeberg.org/ninegrid/ninegrid/config"
	"codeberg.org/ninegrid/ninegrid/server/middleware"
	"codeberg.org/ninegrid/ninegrid/server/middleware/limiter"
	"codeberg.org/ninegrid/ninegrid/server/middleware/set_request_context"
)

func (router *Router) RegisterMiddleware() {
	// the first middleware is the most outer / first executed one
	router.Use(middleware.WithServerTiming)
	router.Use(middleware.NormalizeURL)                // handle trailing slashes
	router.Use(set_request_context.WithRequestContext) // needed for everything else
	router.Use(middleware.SetResponseHeaders)          // all pages need this

	if config.Global.Limiter.Enabled {
		log.Info().
			Float64("rate", config.Global.Limiter.Rate).
			Int("burst", config.Global.Limiter.Burst).
			Msg("Rate limiting mutating routes")

		router.Use(limiter.Evaluate)
	}
}
