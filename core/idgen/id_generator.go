// Copyright 2025, the ninegrid contributors
// SPDX-License-Identifier: AGPL-3.0-only

package idgen

import (
	"crypto/rand"
	"encoding/base64"
	"time"
)

// opaqueEntropyBytes gives 128 bits of entropy for IDs handed to clients.
const opaqueEntropyBytes = 16

// Make makes a short ID with a 6 byte timestamp and 3 bytes of entropy.
//
// Suitable for log correlation, not for anything a client must not guess.
func Make() string {
	entropy := [3]byte{'a', 'a', 'a'}

	_, _ = rand.Read(entropy[:])

	return maketime(time.Now()) + base64.RawURLEncoding.EncodeToString(entropy[:])
}

// MakeOpaque makes an unguessable URL-safe ID.
func MakeOpaque() string {
	var entropy [opaqueEntropyBytes]byte

	// crypto/rand.Read never returns an error on supported platforms.
	_, _ = rand.Read(entropy[:])

	return base64.RawURLEncoding.EncodeToString(entropy[:])
}

func maketime(t time.Time) string {
	return t.Format("150405")
}
