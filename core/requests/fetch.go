// Copyright 2025, the ninegrid contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
Package requests fetches remote images for import into a slot.

A URL may point at an image directly or at an HTML page; for pages, the
image named by its og:image (or twitter:image) metadata is fetched instead,
following at most one such hop.
*/
package requests

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"

	"codeberg.org/ninegrid/ninegrid/config"
	"codeberg.org/ninegrid/ninegrid/core/audit"
	"codeberg.org/ninegrid/ninegrid/core/idgen"
	"codeberg.org/ninegrid/ninegrid/core/slots"
	"codeberg.org/ninegrid/ninegrid/server/request_context"
	"codeberg.org/ninegrid/ninegrid/server/utils"
)

// Fetch errors.
var (
	ErrUnsupportedURL = errors.New("only http and https URLs can be imported")
	ErrTooLarge       = errors.New("remote file exceeds the size limit")
	ErrNotImage       = errors.New("remote resource is not an image")
	ErrNoImageInPage  = errors.New("page does not name a preview image")
	ErrFetchTimeout   = errors.New("remote server took too long")
)

const maxPageHops = 1

// selectors naming a page's preview image, in order of preference
var pageImageSelectors = []struct {
	selector string
	attr     string
}{
	{`meta[property="og:image:secure_url"]`, "content"},
	{`meta[property="og:image"]`, "content"},
	{`meta[name="twitter:image"]`, "content"},
	{`link[rel="image_src"]`, "href"},
}

// FetchError is a remote server's refusal to hand over a resource.
type FetchError struct {
	// StatusCode is the HTTP status code from the response. Always >= 400.
	StatusCode int
	URL        string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("remote server answered %d for %s", e.StatusCode, e.URL)
}

// Options configures a Fetcher.
type Options struct {
	// Client sends the requests. When nil, a client derived from
	// utils.HTTPClient is used.
	Client *http.Client

	Timeout  time.Duration
	MaxBytes int64

	// AllowPrivateNetworks lets imports reach loopback, link-local and
	// private addresses. Only honoured when Client is nil.
	AllowPrivateNetworks bool

	// CacheSize > 0 keeps that many successful fetches for CacheTTL.
	CacheSize int
	CacheTTL  time.Duration
}

// Fetcher downloads images for import.
type Fetcher struct {
	client   *http.Client
	timeout  time.Duration
	maxBytes int64
	cache    *responseCache
}

// NewFetcher returns a Fetcher configured by opts.
func NewFetcher(opts Options) (*Fetcher, error) {
	client := opts.Client
	if client == nil {
		client = newClient(opts.AllowPrivateNetworks)
	}

	f := &Fetcher{
		client:   client,
		timeout:  opts.Timeout,
		maxBytes: opts.MaxBytes,
	}

	if opts.CacheSize > 0 {
		c, err := newResponseCache(opts.CacheSize, opts.CacheTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to create fetch cache: %w", err)
		}

		f.cache = c
	}

	return f, nil
}

func newClient(allowPrivate bool) *http.Client {
	if allowPrivate {
		return utils.HTTPClient
	}

	return utils.NewHTTPClient(false)
}

// FetchImage retrieves the image at rawURL, or the preview image of the page
// at rawURL, as a file ready for insertion.
func (f *Fetcher) FetchImage(ctx context.Context, rawURL string) (slots.File, error) {
	target, err := parseImportURL(rawURL)
	if err != nil {
		return slots.File{}, err
	}

	if f.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	file, err := f.fetch(ctx, target, 0)
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		return slots.File{}, fmt.Errorf("%w: %w", ErrFetchTimeout, err)
	}

	return file, err
}

func (f *Fetcher) fetch(ctx context.Context, target *url.URL, hop int) (slots.File, error) {
	item, err := f.get(ctx, target)
	if err != nil {
		return slots.File{}, err
	}

	switch {
	case slots.IsImage(item.MediaType):
		return slots.File{
			Name:      fileName(target),
			MediaType: item.MediaType,
			Data:      item.Body,
		}, nil
	case isHTML(item.MediaType) && hop < maxPageHops:
		next, err := pageImage(item, target)
		if err != nil {
			return slots.File{}, err
		}

		return f.fetch(ctx, next, hop+1)
	default:
		return slots.File{}, fmt.Errorf("%w: %s", ErrNotImage, item.MediaType)
	}
}

// get performs a size-limited GET, consulting the cache first.
func (f *Fetcher) get(ctx context.Context, target *url.URL) (_ *cachedItem, err error) {
	key := target.String()

	if item, ok := f.cache.get(key); ok {
		return item, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, key, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", "ninegrid/"+config.BuildVersion)
	req.Header.Set("Accept", "image/*,text/html;q=0.8")

	span := audit.Span{
		Destination: audit.ToRemote,
		RequestID:   request_context.FromContext(ctx).RequestID + "-" + idgen.Make(),
		Method:      req.Method,
		URL:         key,
	}

	_ = span.Begin(ctx)

	defer func() {
		span.Error = err
		span.End()
		span.Log()
	}()

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make HTTP request: %w", err)
	}
	defer resp.Body.Close()

	span.StatusCode = resp.StatusCode

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &FetchError{StatusCode: resp.StatusCode, URL: key}
	}

	if f.maxBytes > 0 && resp.ContentLength > f.maxBytes {
		return nil, ErrTooLarge
	}

	body, err := readLimited(resp.Body, f.maxBytes)
	if err != nil {
		return nil, err
	}

	span.Size = len(body)

	item := &cachedItem{
		URL:         key,
		MediaType:   mediaType(resp.Header.Get("Content-Type"), body),
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}

	f.cache.put(key, item)

	return item, nil
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}

	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if int64(len(body)) > limit {
		return nil, ErrTooLarge
	}

	return body, nil
}

// pageImage finds the preview image URL named by an HTML page.
func pageImage(item *cachedItem, base *url.URL) (*url.URL, error) {
	reader, err := charset.NewReader(bytes.NewReader(item.Body), item.ContentType)
	if err != nil {
		return nil, fmt.Errorf("failed to decode page: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	for _, candidate := range pageImageSelectors {
		value, ok := doc.Find(candidate.selector).First().Attr(candidate.attr)
		value = strings.TrimSpace(value)

		if !ok || value == "" {
			continue
		}

		ref, err := base.Parse(value)
		if err != nil {
			continue
		}

		if ref.Scheme != "http" && ref.Scheme != "https" {
			continue
		}

		return ref, nil
	}

	return nil, ErrNoImageInPage
}

func parseImportURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedURL, err)
	}

	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, ErrUnsupportedURL
	}

	return u, nil
}

// mediaType returns the declared type without parameters, sniffing the body
// when the server declared nothing.
func mediaType(contentType string, body []byte) string {
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}

	parsed, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}

	return parsed
}

func isHTML(mediaType string) bool {
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

func fileName(u *url.URL) string {
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return u.Hostname()
	}

	return name
}
