// Copyright 2025, the ninegrid contributors
// SPDX-License-Identifier: AGPL-3.0-only

package i18n

import (
	"sort"

	"golang.org/x/text/language"
)

const (
	// BaseLocale is the default locale used when no specific locale is set.
	BaseLocale = "en"

	// AltLocale is the locale the language toggle switches to from BaseLocale.
	AltLocale = "zh"
)

var (
	// baseTag is the canonical tag for BaseLocale.
	baseTag = language.Make(BaseLocale)

	altTag = language.Make(AltLocale)
)

// Languages returns the list of supported language tags derived from
// the loaded gettext catalogs.
//
// The returned slice is a copy, is sorted by tag string, and is safe to retain.
//
// Setup must be called successfully before using Languages; otherwise it panics.
func Languages() []language.Tag {
	if matcher == nil {
		panic("i18n: Setup must be called before calling Languages")
	}

	out := make([]language.Tag, len(supportedTags))
	copy(out, supportedTags)

	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })

	return out
}

// Toggle returns the language the UI switches to from t.
func Toggle(t language.Tag) language.Tag {
	if LocaleName(t) == AltLocale {
		return baseTag
	}

	return altTag
}

// LocaleName returns the short name stored in the language cookie for t:
// AltLocale for any Chinese tag, BaseLocale otherwise.
func LocaleName(t language.Tag) string {
	if base, _ := t.Base(); base.String() == AltLocale {
		return AltLocale
	}

	return BaseLocale
}
