// Copyright 2025, the ninegrid contributors
// SPDX-License-Identifier: AGPL-3.0-only

package limiter

import (
	"errors"
	"net"
	"net/http"
	"slices"

	"codeberg.org/ninegrid/ninegrid/config"
)

var (
	errMissingClientIP = errors.New("missing client IP")
	errInvalidIPFormat = errors.New("invalid IP format")
)

// ClientInfo represents an HTTP request with associated network and rate limiting information.
//
// Instances are ephemeral and exist only for the duration of a single HTTP request lifecycle.
type ClientInfo struct {
	ip      net.IP
	network net.IPNet
	limiter *limiterWrapper
}

// newClientInfo constructs a ClientInfo from an HTTP request, resolving IP and
// network, but leaves the limiter unassigned.
func newClientInfo(r *http.Request) (*ClientInfo, error) {
	realIP := getClientIP(r)
	if realIP == "" {
		return nil, errMissingClientIP
	}

	parsedIP := net.ParseIP(realIP)
	if parsedIP == nil {
		return nil, errInvalidIPFormat
	}

	return &ClientInfo{
		ip:      parsedIP,
		network: getNetwork(parsedIP, config.Global.Limiter.IPv4Prefix, config.Global.Limiter.IPv6Prefix),
	}, nil
}

// isExempt returns true if the request is exempt from rate limiting:
// reads, apart from limitedReadPaths.
func (c *ClientInfo) isExempt(r *http.Request) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return false
	}

	return !slices.Contains(limitedReadPaths, r.URL.Path)
}

// isPassListed returns true if c.IP is in the configured pass list.
func (c *ClientInfo) isPassListed() bool {
	return ipMatchesList(c.ip, config.Global.Limiter.PassIPs)
}

// isLocal returns true if c.IP is a loopback or link-local address.
func (c *ClientInfo) isLocal() bool {
	return c.ip.IsLoopback() || c.ip.IsLinkLocalUnicast()
}
