// Copyright 2025, the ninegrid contributors
// SPDX-License-Identifier: AGPL-3.0-only

package routes

import (
	"net/http"

	"github.com/a-h/templ"
	"github.com/rs/zerolog/log"

	"codeberg.org/ninegrid/ninegrid/assets/components/partials"
	"codeberg.org/ninegrid/ninegrid/assets/views"
	"codeberg.org/ninegrid/ninegrid/core/session"
	"codeberg.org/ninegrid/ninegrid/i18n"
	"codeberg.org/ninegrid/ninegrid/server/request_context"
	"codeberg.org/ninegrid/ninegrid/server/utils"
)

// render writes component as an HTML response with the given status.
func render(w http.ResponseWriter, r *http.Request, status int, component templ.Component) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)

	return component.Render(r.Context(), w)
}

// retargetAlerts points the client-side swap at the alert region.
func retargetAlerts(w http.ResponseWriter) {
	w.Header().Set("HX-Retarget", "#"+partials.AlertsID)
	w.Header().Set("HX-Reswap", "outerHTML")
}

// respond finishes a successful mutation.
//
// htmx requests receive the new grid with the alert region swapped out of
// band. Plain form posts keep the message as a flash and are sent back to
// the page they came from.
func respond(w http.ResponseWriter, r *http.Request, sess *session.Session, message string) error {
	if utils.IsHTMX(r) {
		var flashes []session.Flash
		if message != "" {
			flashes = append(flashes, session.Flash{Level: session.FlashSuccess, Message: message})
		}

		return render(w, r, http.StatusOK, templ.Join(
			partials.Grid(sess.Store.Snapshot()),
			partials.Alerts(true, flashes...),
		))
	}

	if message != "" {
		sess.SetFlash(session.FlashSuccess, message)
	}

	utils.RedirectToReturnPath(w, r)

	return nil
}

// reject reports err to the user as an alert, leaving the grid untouched.
// Errors without a user-facing message are returned for CatchError to handle.
func reject(w http.ResponseWriter, r *http.Request, sess *session.Session, err error) error {
	message, ok := userMessage(r.Context(), err)
	if !ok {
		return err
	}

	log.Debug().
		Err(err).
		Str("path", r.URL.Path).
		Msg("Request rejected")

	if utils.IsHTMX(r) {
		retargetAlerts(w)

		return render(w, r, StatusFor(err), partials.Alerts(false, session.Flash{
			Level:   session.FlashError,
			Message: message,
		}))
	}

	if sess == nil {
		return err
	}

	sess.SetFlash(session.FlashError, message)
	utils.RedirectToReturnPath(w, r)

	return nil
}

// ErrorPage renders the error stored in the request context.
func ErrorPage(w http.ResponseWriter, r *http.Request) {
	ctx := request_context.FromRequest(r)

	status := ctx.StatusCode
	if status < http.StatusBadRequest {
		status = http.StatusInternalServerError
	}

	message, ok := userMessage(r.Context(), ctx.RequestError)
	if !ok {
		switch status {
		case http.StatusNotFound:
			message = i18n.Tr(r.Context(), "The page you were looking for does not exist.")
		default:
			message = i18n.Tr(r.Context(), "Something went wrong. Please try again.")
		}
	}

	var component templ.Component

	if utils.IsHTMX(r) {
		retargetAlerts(w)

		component = partials.Alerts(false, session.Flash{Level: session.FlashError, Message: message})
	} else {
		component = views.Error(views.ErrorData{
			Title:      i18n.Tr(r.Context(), "Error"),
			StatusCode: status,
			Message:    message,
		})
	}

	if err := render(w, r, status, component); err != nil {
		log.Err(err).Msg("Failed to render error page")
	}
}

// TooManyRequests reports a request refused by the rate limiter.
func TooManyRequests(w http.ResponseWriter, r *http.Request) {
	ctx := request_context.FromRequest(r)
	ctx.RequestError = errRateLimited
	ctx.StatusCode = http.StatusTooManyRequests

	ErrorPage(w, r)
}
