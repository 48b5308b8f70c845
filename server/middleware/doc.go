// Copyright 2025, the ninegrid contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
Package middleware provides the HTTP middleware chain for ninegrid.

The chain itself is assembled in router.RegisterMiddleware; CatchError wraps
individual fallible route handlers.
*/
package middleware
