// Copyright 2025, the ninegrid contributors
// SPDX-License-Identifier: AGPL-3.0-only

package i18n

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// MsgKey is an English UI string used as a msgid.
//
// A MsgKey is a templ.Component, so a fixed label can be placed in a page as
// @i18n.MsgKey("Export") and is translated for the request's language.
// cmd/i18n_extract picks up MsgKey conversions of constant strings.
type MsgKey string

// Tr translates the msgid for the language in ctx.
func (s MsgKey) Tr(ctx context.Context) string {
	return Tr(ctx, string(s))
}

// Render writes the HTML-escaped translation.
func (s MsgKey) Render(ctx context.Context, w io.Writer) error {
	_, err := io.WriteString(w, templ.EscapeString(s.Tr(ctx)))

	return err
}
