// Copyright 2025, the ninegrid contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
Package untrusted reads and writes the cookies ninegrid keeps in the browser.

Only two exist: the signed session token and the UI language. Both arrive
from the user agent and may hold anything, so readers validate before use:
the session token is verified by core/session and the language is matched
against the supported tags by i18n.
*/
package untrusted
