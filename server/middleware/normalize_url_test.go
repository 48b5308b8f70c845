// Copyright 2025, the ninegrid contributors
// SPDX-License-Identifier: AGPL-3.0-only

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name             string
		requestURL       string
		expectedStatus   int
		expectedLocation string
	}{
		{
			name:           "Root path should not redirect",
			requestURL:     "/",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Path without trailing slash should not redirect",
			requestURL:     "/api/slots",
			expectedStatus: http.StatusOK,
		},
		{
			name:             "Path with trailing slash should redirect",
			requestURL:       "/api/slots/",
			expectedStatus:   http.StatusPermanentRedirect,
			expectedLocation: "/api/slots",
		},
		{
			name:             "Query is preserved",
			requestURL:       "/export/?lang=zh",
			expectedStatus:   http.StatusPermanentRedirect,
			expectedLocation: "/export?lang=zh",
		},
		{
			name:             "Multiple trailing slashes",
			requestURL:       "/slots///",
			expectedStatus:   http.StatusPermanentRedirect,
			expectedLocation: "/slots",
		},
		{
			name:             "Scheme-relative lookalike stays on origin",
			requestURL:       "//evil.example/",
			expectedStatus:   http.StatusPermanentRedirect,
			expectedLocation: "/evil.example",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			nextHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, tt.requestURL, nil)
			rr := httptest.NewRecorder()

			Wrap(NormalizeURL, nextHandler).ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.Equal(t, tt.expectedLocation, rr.Header().Get("Location"))
		})
	}
}
