// Copyright 2025, the ninegrid contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
Package authenticated signs and verifies v4.public paseto tokens.

Tokens carry state that the server hands to the user agent and must be able
to trust on the way back, such as the session identifier.
*/
package authenticated

import (
	"errors"
	"sync"

	"aidanwoods.dev/go-paseto"
)

// domain separation key. can be anything. if you change it, past tokens will become invalid.
const Implicit = "ninegrid composes nine pictures"

var ErrNoSecretKey = errors.New("no secret key loaded")

func NewSecretKeyHex() string {
	return paseto.NewV4AsymmetricSecretKey().ExportHex()
}

// Validator holds a v4.public secret key. The zero value has no key; load or
// generate one before signing.
type Validator struct {
	mu        sync.RWMutex
	secretKey paseto.V4AsymmetricSecretKey
	loaded    bool
}

func (psk *Validator) LoadSecretKeyFromHex(hex string) error {
	key, err := paseto.NewV4AsymmetricSecretKeyFromHex(hex)
	if err != nil {
		return err
	}

	psk.set(key)

	return nil
}

// Generate replaces the key with a fresh random one.
func (psk *Validator) Generate() {
	psk.set(paseto.NewV4AsymmetricSecretKey())
}

func (psk *Validator) set(key paseto.V4AsymmetricSecretKey) {
	psk.mu.Lock()
	defer psk.mu.Unlock()

	psk.secretKey = key
	psk.loaded = true
}

// Sign signs token with the current key.
func (psk *Validator) Sign(token *paseto.Token) (string, error) {
	psk.mu.RLock()
	defer psk.mu.RUnlock()

	if !psk.loaded {
		return "", ErrNoSecretKey
	}

	return token.V4Sign(psk.secretKey, []byte(Implicit)), nil
}

// Parse verifies signed against the current key and the parser's rules.
func (psk *Validator) Parse(parser paseto.Parser, signed string) (*paseto.Token, error) {
	psk.mu.RLock()
	defer psk.mu.RUnlock()

	if !psk.loaded {
		return nil, ErrNoSecretKey
	}

	return parser.ParseV4Public(psk.secretKey.Public(), signed, []byte(Implicit))
}
