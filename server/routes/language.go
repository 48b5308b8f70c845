// Copyright 2025, the ninegrid contributors
// SPDX-License-Identifier: AGPL-3.0-only

package routes

import (
	"net/http"
	"slices"

	"golang.org/x/text/language"

	"codeberg.org/ninegrid/ninegrid/i18n"
	"codeberg.org/ninegrid/ninegrid/server/utils"
)

// SetLanguage persists the UI language. An unsupported or missing lang
// value switches to the other language.
func SetLanguage(w http.ResponseWriter, r *http.Request) error {
	tag := i18n.Toggle(i18n.TagFrom(r.Context()))

	if raw := utils.GetFormValue(r, i18n.LangParam); raw != "" {
		if parsed, err := language.Parse(raw); err == nil && slices.Contains(i18n.Languages(), parsed) {
			tag = parsed
		}
	}

	i18n.SetLocale(w, r, tag)

	if utils.IsHTMX(r) {
		// every piece of text on the page changes
		w.Header().Set("HX-Refresh", "true")
		w.WriteHeader(http.StatusNoContent)

		return nil
	}

	utils.RedirectToReturnPath(w, r)

	return nil
}
