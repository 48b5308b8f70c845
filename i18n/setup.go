// Copyright 2025, the ninegrid contributors
// SPDX-License-Identifier: AGPL-3.0-only

package i18n

import (
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/leonelquinteros/gotext"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/language"
)

var (
	// poDomain is the gettext domain to load under each locale.
	poDomain = "ninegrid"

	// localesByTag maps canonical BCP 47 tags to their loaded gotext.Locale.
	localesByTag map[string]*gotext.Locale

	// supportedTags lists the matchable tags, baseTag first.
	supportedTags []language.Tag

	// matcher is a private [language.Matcher] derived from the loaded locales.
	matcher language.Matcher
)

// Setup loads the gettext catalogues found in fsys and builds the language
// matcher.
//
// Catalogues are read from po/<locale>.po; the template po/ninegrid.pot is
// ignored. Only BaseLocale and AltLocale are offered; catalogues for other
// locales are skipped. BaseLocale needs no catalogue since msgids are
// English UI text.
//
// Calling Setup again replaces the previously loaded locales and matcher.
func Setup(fsys fs.FS) error {
	Logger = log.With().Str("sys", "i18n").Logger()

	entries, err := fs.ReadDir(fsys, "po")
	if err != nil {
		return fmt.Errorf("failed to read po directory: %w", err)
	}

	loaded := make(map[string]*gotext.Locale)

	for _, entry := range entries {
		fileName := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(fileName, ".po") {
			continue
		}

		t, err := language.Parse(strings.ReplaceAll(strings.TrimSuffix(fileName, ".po"), "_", "-"))
		if err != nil {
			Logger.Warn().Err(err).Str("file", fileName).Msg("Skipping invalid locale file")

			continue
		}

		name := LocaleName(t)
		if t.String() != name {
			Logger.Warn().Str("file", fileName).Msg("Skipping unsupported locale")

			continue
		}

		po := gotext.NewPoFS(fsys)
		po.ParseFile(path.Join("po", fileName))

		loc := gotext.NewLocale("", name)
		loc.AddTranslator(poDomain, po)

		loaded[name] = loc

		Logger.Info().
			Str("locale", name).
			Str("domain", poDomain).
			Msg("Loaded locale")
	}

	if _, ok := loaded[AltLocale]; !ok {
		return fmt.Errorf("missing catalogue po/%s.po", AltLocale)
	}

	localesByTag = loaded
	supportedTags = []language.Tag{baseTag, altTag}
	matcher = language.NewMatcher(supportedTags)

	missingKeys.Clear()

	return nil
}
