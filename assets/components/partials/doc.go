// Copyright 2025, the ninegrid contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
Package partials holds components that are rendered on their own in htmx
responses as well as inside full pages.
*/
package partials
