// Copyright 2025, the ninegrid contributors
// SPDX-License-Identifier: AGPL-3.0-only

package utils

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"syscall"
	"time"
)

const (
	// clientSessionCacheSize defines the size of the TLS session cache.
	clientSessionCacheSize = 20

	// maxIdleConnsPerHost defines maximum idle connections to keep per host.
	maxIdleConnsPerHost = 20

	// bufferSize defines the read and write buffer size in bytes (32KB).
	bufferSize = 32 * 1024

	dialTimeout = 10 * time.Second

	maxRedirects = 5
)

// ErrForbiddenAddress is returned when an outgoing connection targets an
// address that is not publicly routable.
var ErrForbiddenAddress = errors.New("refusing to connect to a non-public address")

var errTooManyRedirects = errors.New("stopped after too many redirects")

// HTTPClient is a pre-configured http.Client that may reach any address.
var HTTPClient = NewHTTPClient(true)

// NewHTTPClient returns a client with pooled TLS sessions.
//
// Unless allowPrivate is set, the client's dialer refuses loopback,
// link-local, private and unspecified addresses after DNS resolution, so
// redirects and rebinding cannot reach them either.
func NewHTTPClient(allowPrivate bool) *http.Client {
	dialer := &net.Dialer{Timeout: dialTimeout}
	proxy := http.ProxyFromEnvironment

	if !allowPrivate {
		dialer.Control = refuseNonPublic
		// A proxy would be dialled instead of the target, bypassing the check.
		proxy = nil
	}

	return &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				ClientSessionCache: tls.NewLRUClientSessionCache(clientSessionCacheSize),
				MinVersion:         tls.VersionTLS12,
			},
			Proxy:               proxy,
			DialContext:         dialer.DialContext,
			MaxIdleConns:        0,
			MaxIdleConnsPerHost: maxIdleConnsPerHost,
			WriteBufferSize:     bufferSize,
			ReadBufferSize:      bufferSize,
		},
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return errTooManyRedirects
			}

			return nil
		},
	}
}

func refuseNonPublic(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrForbiddenAddress, address)
	}

	addr, err := netip.ParseAddr(host)
	if err != nil || !IsPublicAddr(addr) {
		return fmt.Errorf("%w: %s", ErrForbiddenAddress, address)
	}

	return nil
}

// IsPublicAddr reports whether addr is a globally routable unicast address.
func IsPublicAddr(addr netip.Addr) bool {
	addr = addr.Unmap()

	return addr.IsValid() &&
		addr.IsGlobalUnicast() &&
		!addr.IsPrivate() &&
		!addr.IsLoopback() &&
		!addr.IsLinkLocalUnicast()
}

// IsConnectionSecure returns whether a connection is secure.
//
// Target environments are (containerized and bare metal):
//   - Internet -> reverse proxy -> application
//   - LAN -> reverse proxy -> application
//   - localhost -> application
//
// X-Forwarded-Proto is only trusted from private peers, so this returns false
// when the last reverse proxy in the chain has a public address.
func IsConnectionSecure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return false
	}

	parsedIP := net.ParseIP(host)
	if parsedIP == nil {
		return false
	}

	return (parsedIP.IsPrivate() || parsedIP.IsLoopback()) && r.Header.Get("X-Forwarded-Proto") == "https"
}

// IsHTMX reports whether r was issued by htmx rather than a plain form
// submission or navigation.
func IsHTMX(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("HX-Request"), "true")
}

// RedirectToReturnPath sends the client to the sanitized return_path form
// value, or to "/" when it is missing or unsafe.
func RedirectToReturnPath(w http.ResponseWriter, r *http.Request) {
	returnPath := SanitizeReturnPath(GetFormValue(r, "return_path"))
	if returnPath == "" {
		returnPath = "/"
	}

	http.Redirect(w, r, returnPath, http.StatusSeeOther)
}
