// Copyright 2025, the ninegrid contributors
// SPDX-License-Identifier: AGPL-3.0-only

package limiter

import (
	"sync"
	"testing"
	"time"

	"codeberg.org/ninegrid/ninegrid/config"
)

// testConfigMutex serializes tests that mutate global package state.
var testConfigMutex sync.Mutex

// mockTimeProvider maintains a controllable current time for testing.
type mockTimeProvider struct {
	mu          sync.Mutex
	currentTime time.Time
}

// Now returns the current mock time.
func (m *mockTimeProvider) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.currentTime
}

// Sleep advances the mock current time by the specified duration.
func (m *mockTimeProvider) Sleep(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.currentTime = m.currentTime.Add(d)
}

// setupLimiterTest prepares a test environment with a mock time provider
// and properly configured limiter settings for testing.
//
// The original time function and config are restored when the test completes.
//
// NOTE: Call once per test. It holds a global mutex for the test's lifetime,
// so calling it again from a subtest would deadlock.
func setupLimiterTest(t *testing.T) *mockTimeProvider {
	t.Helper()

	testConfigMutex.Lock()

	origConfig := config.Global

	config.Global.Limiter.Enabled = true
	config.Global.Limiter.Rate = 1
	config.Global.Limiter.Burst = 3
	config.Global.Limiter.IPv4Prefix = 24
	config.Global.Limiter.IPv6Prefix = 48
	config.Global.Limiter.PassIPs = nil
	config.Global.Limiter.FilterLocal = false

	mockTime := &mockTimeProvider{currentTime: time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)}

	origTimeNow := timeNow
	timeNow = mockTime.Now
	limiters = sync.Map{}

	t.Cleanup(func() {
		timeNow = origTimeNow
		limiters = sync.Map{}
		config.Global = origConfig

		testConfigMutex.Unlock()
	})

	return mockTime
}
