// Copyright 2025, the ninegrid contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
Package limiter throttles requests that change or render a grid.

Clients are bucketed by network (IPv4 /24 and IPv6 /48 by default) so a
single host cannot dodge the limit by rotating addresses. Only mutations and
the export are limited; page views, previews and static assets pass freely,
as do loopback clients unless FilterLocal is set. Refused requests get the 429 error page along with
RateLimit-* and Retry-After headers.
*/
package limiter
