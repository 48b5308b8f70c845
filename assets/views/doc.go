// Copyright 2025, the ninegrid contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
Package views holds full-page components.

The components are written in templ; regenerate the _templ.go files with
`go tool templ generate` after editing a .templ source.
*/
package views

//go:generate go tool templ generate -path ../..
