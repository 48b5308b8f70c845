// Copyright 2025, the ninegrid contributors
// SPDX-License-Identifier: AGPL-3.0-only

package i18n

import (
	"sync"

	"github.com/leonelquinteros/gotext"
	"github.com/rs/zerolog"
	"golang.org/x/text/language"

	"codeberg.org/ninegrid/ninegrid/config"
)

var (
	// Logger is the logger used by package i18n.
	Logger zerolog.Logger

	// missingKeys remembers which lookups were already reported in strict
	// mode.
	missingKeys sync.Map
)

// missingKey identifies one untranslated lookup.
type missingKey struct {
	locale string
	msgid  string
}

func strictMissingKeys() bool {
	return config.Global.Internationalization.StrictMissingKeys
}

// logMissingOnce reports an untranslated msgid the first time it is looked
// up for locale.
func logMissingOnce(locale, msgid string) {
	if !strictMissingKeys() {
		return
	}

	if _, seen := missingKeys.LoadOrStore(missingKey{locale: locale, msgid: msgid}, struct{}{}); seen {
		return
	}

	Logger.Warn().
		Str("locale", locale).
		Str("msgid", msgid).
		Msg("Missing translation")
}

// strippedTagString removes variants to form a stable key using base, script and region only.
func strippedTagString(tag language.Tag) string {
	b, s, r := tag.Raw()
	stripped, _ := language.Compose(b, s, r)

	return stripped.String()
}

// buildLogKey composes the logging key like gettext "ctx<sep>msgid" when context is present.
func buildLogKey(ctxKey, id string) string {
	if ctxKey != "" {
		return ctxKey + gotext.EotSeparator + id
	}

	return id
}
