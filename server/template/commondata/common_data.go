// Copyright 2025, the ninegrid contributors
// SPDX-License-Identifier: AGPL-3.0-only

package commondata

import (
	"net/http"
	"net/url"

	"golang.org/x/text/language"

	"codeberg.org/ninegrid/ninegrid/config"
	"codeberg.org/ninegrid/ninegrid/i18n"
	"codeberg.org/ninegrid/ninegrid/server/utils"
)

// PageCommonData holds common variables accessible in templates and handlers.
//
// It is automatically populated for each request and attached to the
// request_context.RequestContext.
type PageCommonData struct {
	// CurrentPath is the URL path from request (e.g., "/api/slots").
	CurrentPath string

	// CurrentPathWithParams is the full request URI including query parameters.
	CurrentPathWithParams string

	// HtmxCurrentPath is the path parsed from HX-Current-URL header for htmx requests.
	HtmxCurrentPath string

	// IsHtmxRequest is true if request has an HX-Request header set to "true".
	IsHtmxRequest bool

	// Lang is the short name of the UI language, as stored in the Lang cookie.
	Lang string

	// ToggleLang is the language the toggle control switches to.
	ToggleLang string

	// Version and Revision identify the running build.
	Version  string
	Revision string

	// RepoURL links to the source code, if configured.
	RepoURL string

	// AssetVersion busts browser caches of static assets between deployments.
	AssetVersion string
}

// PopulatePageCommonData fills the PageCommonData struct from the request.
func PopulatePageCommonData(r *http.Request, data *PageCommonData, tag language.Tag) {
	data.CurrentPath = r.URL.Path
	data.CurrentPathWithParams = r.URL.RequestURI()

	if htmxCurrentURL := r.Header.Get("HX-Current-URL"); htmxCurrentURL != "" {
		if parsedURL, err := url.Parse(htmxCurrentURL); err == nil {
			data.HtmxCurrentPath = parsedURL.Path
		}
	}

	data.IsHtmxRequest = utils.IsHTMX(r)

	data.Lang = i18n.LocaleName(tag)
	data.ToggleLang = i18n.LocaleName(i18n.Toggle(tag))

	data.Version = config.BuildVersion
	data.Revision = config.Global.Build.Revision()
	data.AssetVersion = config.Global.Instance.FileServerCacheID
	data.RepoURL = config.Global.Instance.RepoURL
}
