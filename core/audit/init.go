// Copyright 2025, the ninegrid contributors
// SPDX-License-Identifier: AGPL-3.0-only

// Package audit holds the logging defaults and the request span that every
// inbound and outbound HTTP exchange is logged through.
package audit

import (
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SetDefaultLogger installs a readable stderr logger for the time before the
// configuration is loaded. config replaces it once the Log section is known.
func SetDefaultLogger() {
	zerolog.DurationFieldUnit = time.Millisecond

	log.Logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
		TimeFormat: time.DateTime,
	}).With().Timestamp().Logger()
}
