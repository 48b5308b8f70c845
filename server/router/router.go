// Copyright 2025, the ninegrid contributors
// SPDX-License-Identifier: AGPL-3.0-only

// Package router assembles the HTTP handler: a ServeMux holding the routes,
// run behind an ordered middleware chain.
package router

import (
	"net/http"

	"codeberg.org/ninegrid/ninegrid/server/middleware"
)

// Router is an http.ServeMux with a middleware chain in front of it.
type Router struct {
	*http.ServeMux

	middlewares []middleware.Middleware

	// handler is the composed chain, rebuilt by Use.
	handler http.Handler
}

// NewRouter creates a Router with no routes and no middleware.
func NewRouter() *Router {
	mux := http.NewServeMux()

	return &Router{
		ServeMux: mux,
		handler:  mux,
	}
}

// Use appends m to the chain. Middleware runs in the order it was added,
// the first one outermost.
func (router *Router) Use(m middleware.Middleware) {
	router.middlewares = append(router.middlewares, m)

	var h http.Handler = router.ServeMux
	for i := len(router.middlewares) - 1; i >= 0; i-- {
		h = middleware.Wrap(router.middlewares[i], h)
	}

	router.handler = h
}

// HandleError registers a handler that reports failures by returning an
// error. The error is turned into a response by middleware.CatchError.
func (router *Router) HandleError(pattern string, handler func(w http.ResponseWriter, r *http.Request) error) {
	router.HandleFunc(pattern, middleware.CatchError(handler))
}

// ServeHTTP runs the middleware chain and then the matching route.
func (router *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	router.handler.ServeHTTP(w, r)
}
