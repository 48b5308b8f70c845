// Copyright 2025, the ninegrid contributors
// SPDX-License-Identifier: AGPL-3.0-only

package routes

import (
	"context"
	"errors"
	"net/http"

	"codeberg.org/ninegrid/ninegrid/core/compositor"
	"codeberg.org/ninegrid/ninegrid/core/requests"
	"codeberg.org/ninegrid/ninegrid/core/slots"
	"codeberg.org/ninegrid/ninegrid/i18n"
	"codeberg.org/ninegrid/ninegrid/server/utils"
)

var (
	errFileTooLarge    = errors.New("uploaded file exceeds the size limit")
	errRequestTooLarge = errors.New("upload exceeds the request size limit")
	errImportDisabled  = errors.New("remote import is disabled")
	errRateLimited     = errors.New("too many requests")
)

// fileTooLargeError names the upload that was refused.
type fileTooLargeError struct {
	Name string
}

func (e *fileTooLargeError) Error() string {
	return errFileTooLarge.Error() + ": " + e.Name
}

func (e *fileTooLargeError) Unwrap() error {
	return errFileTooLarge
}

// StatusFor maps an error to the status code of the response reporting it.
func StatusFor(err error) int {
	var (
		cellErr  *compositor.CellError
		fetchErr *requests.FetchError
	)

	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, slots.ErrInvalidInput),
		errors.Is(err, slots.ErrInvalidSlotIndex),
		errors.Is(err, requests.ErrUnsupportedURL),
		errors.Is(err, utils.ErrForbiddenAddress):
		return http.StatusBadRequest
	case errors.Is(err, slots.ErrCapacityExceeded),
		errors.Is(err, slots.ErrStoreClosed),
		errors.Is(err, compositor.ErrNothingToRender):
		return http.StatusConflict
	case errors.Is(err, errFileTooLarge),
		errors.Is(err, errRequestTooLarge),
		errors.Is(err, requests.ErrTooLarge),
		errors.Is(err, compositor.ErrImageTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, compositor.ErrRenderEncodingFailed),
		errors.Is(err, compositor.ErrDecodeTimeout),
		errors.As(err, &cellErr),
		errors.Is(err, requests.ErrNotImage),
		errors.Is(err, requests.ErrNoImageInPage):
		return http.StatusUnprocessableEntity
	case errors.As(err, &fetchErr),
		errors.Is(err, requests.ErrFetchTimeout):
		return http.StatusBadGateway
	case errors.Is(err, errImportDisabled):
		return http.StatusNotFound
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// userMessage returns the translated alert text for err. It reports false
// for errors the user cannot act on.
func userMessage(ctx context.Context, err error) (string, bool) {
	var (
		userErr  *i18n.UserError
		cellErr  *compositor.CellError
		fetchErr *requests.FetchError
		sizeErr  *fileTooLargeError
	)

	switch {
	case errors.As(err, &userErr):
		return userErr.Error(), true
	case errors.Is(err, slots.ErrInvalidInput):
		return i18n.Tr(ctx, "No images were found in the selection."), true
	case errors.Is(err, slots.ErrCapacityExceeded):
		return i18n.Tr(ctx, "All nine slots are filled. Remove an image or drop onto a slot to replace it."), true
	case errors.Is(err, slots.ErrInvalidSlotIndex):
		return i18n.Tr(ctx, "That slot does not exist."), true
	case errors.Is(err, slots.ErrStoreClosed):
		return i18n.Tr(ctx, "Your session has ended. Reload the page to start a new grid."), true
	case errors.Is(err, compositor.ErrNothingToRender):
		return i18n.Tr(ctx, "There are no images to export yet."), true
	case errors.Is(err, compositor.ErrDecodeTimeout):
		return i18n.Tr(ctx, "Reading the images took too long. Please try again."), true
	case errors.As(err, &cellErr) && errors.Is(err, compositor.ErrImageTooLarge):
		return i18n.Tr(ctx, "The image in slot {{.Number}} has too many pixels to combine.", "Number", cellErr.Index+1), true
	case errors.As(err, &cellErr):
		return i18n.Tr(ctx, "The image in slot {{.Number}} could not be read.", "Number", cellErr.Index+1), true
	case errors.Is(err, compositor.ErrRenderEncodingFailed):
		return i18n.Tr(ctx, "The grid image could not be created."), true
	case errors.As(err, &sizeErr):
		return i18n.Tr(ctx, "{{.Name}} is larger than the upload limit.", "Name", sizeErr.Name), true
	case errors.Is(err, errRequestTooLarge):
		return i18n.Tr(ctx, "The upload is too large."), true
	case errors.Is(err, requests.ErrUnsupportedURL):
		return i18n.Tr(ctx, "Only http and https links can be imported."), true
	case errors.Is(err, utils.ErrForbiddenAddress):
		return i18n.Tr(ctx, "That address cannot be imported."), true
	case errors.Is(err, requests.ErrTooLarge):
		return i18n.Tr(ctx, "The linked file is too large."), true
	case errors.Is(err, requests.ErrNotImage):
		return i18n.Tr(ctx, "The link does not point to an image."), true
	case errors.Is(err, requests.ErrNoImageInPage):
		return i18n.Tr(ctx, "The linked page has no preview image."), true
	case errors.Is(err, requests.ErrFetchTimeout):
		return i18n.Tr(ctx, "The remote server took too long to respond."), true
	case errors.As(err, &fetchErr):
		return i18n.Tr(ctx, "The remote server answered with status {{.Status}}.", "Status", fetchErr.StatusCode), true
	case errors.Is(err, errRateLimited):
		return i18n.Tr(ctx, "Too many requests. Please wait a moment."), true
	default:
		return "", false
	}
}

// noticeMessage returns the translated text for a successful mutation.
func noticeMessage(ctx context.Context, n slots.Notice) string {
	switch n.Kind {
	case slots.NoticeAdded:
		return i18n.TrN(ctx, "Added {{.Count}} image.", "Added {{.Count}} images.", n.Count, "Count", n.Count)
	case slots.NoticeReset:
		return i18n.Tr(ctx, "All slots were cleared.")
	default:
		return ""
	}
}
