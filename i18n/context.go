// Copyright 2025, the ninegrid contributors
// SPDX-License-Identifier: AGPL-3.0-only

package i18n

import (
	"context"
	"net/http"

	"golang.org/x/text/language"

	"codeberg.org/ninegrid/ninegrid/core/cookie"
	"codeberg.org/ninegrid/ninegrid/core/untrusted"
	"codeberg.org/ninegrid/ninegrid/server/utils"
)

type contextKeyType struct{}

var tagKey = contextKeyType{}

// LangParam is the name of the URL query parameter used to request a UI
// language for a single page view. The cookie counterpart is [cookie.LangCookie].
const LangParam = "lang"

// WithTag stores t in ctx and returns a derived context that carries it.
//
// Passing the zero value of [language.Tag] clears any existing value.
// The ctx must not be nil.
func WithTag(ctx context.Context, t language.Tag) context.Context {
	return context.WithValue(ctx, tagKey, t)
}

// TagFrom returns the language tag stored in ctx, or the tag for [BaseLocale]
// if none is present. It never returns the zero value of [language.Tag].
func TagFrom(ctx context.Context) language.Tag {
	if ctx != nil {
		if t, _ := ctx.Value(tagKey).(language.Tag); t != (language.Tag{}) {
			return t
		}
	}

	return baseTag
}

// FromRequest returns the UI language for r. The first source naming a
// supported language wins:
//
//  1. query parameter [LangParam]
//  2. cookie [cookie.LangCookie]
//  3. Accept-Language header
//
// Anything else, including a nil r or an uninitialised package, yields the
// tag for [BaseLocale].
func FromRequest(r *http.Request) language.Tag {
	if r == nil || matcher == nil {
		return baseTag
	}

	sources := []string{
		utils.GetQueryParam(r, LangParam),
		untrusted.GetCookie(r, cookie.LangCookie),
		r.Header.Get("Accept-Language"),
	}

	for _, src := range sources {
		if src == "" {
			continue
		}

		if t, ok := match(src); ok {
			return t
		}
	}

	return baseTag
}

// WithRequest installs the tag chosen by [FromRequest] in the returned context.
func WithRequest(ctx context.Context, r *http.Request) context.Context {
	return WithTag(ctx, FromRequest(r))
}

// SetLocale persists t as the user's language and announces it in the
// Content-Language response header.
func SetLocale(w http.ResponseWriter, r *http.Request, t language.Tag) {
	name := LocaleName(t)

	untrusted.SetCookie(w, r, cookie.LangCookie, name)
	w.Header().Set("Content-Language", name)
}

// match resolves an Accept-Language style string against the loaded locales.
func match(s string) (language.Tag, bool) {
	prefs, _, err := language.ParseAcceptLanguage(s)
	if err != nil || len(prefs) == 0 {
		return baseTag, false
	}

	_, index, confidence := matcher.Match(prefs...)
	if confidence == language.No {
		return baseTag, false
	}

	return supportedTags[index], true
}
