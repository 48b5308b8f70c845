// Copyright 2025, the ninegrid contributors
// SPDX-License-Identifier: AGPL-3.0-only

package routes

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"codeberg.org/ninegrid/ninegrid/config"
	"codeberg.org/ninegrid/ninegrid/core/slots"
	"codeberg.org/ninegrid/ninegrid/server/utils"
)

// multipartMemory is how much of an upload is held in memory before
// spilling to temporary files.
const multipartMemory = 32 << 20

// InsertSlots places uploaded files into the grid.
//
// Form fields: files (repeated) and optionally target, the slot the first
// image goes to.
func (app *App) InsertSlots(w http.ResponseWriter, r *http.Request) error {
	sess, err := app.session(w, r)
	if err != nil {
		return err
	}

	r.Body = http.MaxBytesReader(w, r.Body, config.Global.Upload.MaxRequestSize)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return reject(w, r, sess, errRequestTooLarge)
		}

		return reject(w, r, sess, fmt.Errorf("%w: %w", slots.ErrInvalidInput, err))
	}

	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	target, err := parseTarget(r)
	if err != nil {
		return reject(w, r, sess, err)
	}

	files, err := readUploads(r.MultipartForm.File["files"], config.Global.Upload.MaxFileSize)
	if err != nil {
		return reject(w, r, sess, err)
	}

	notice, err := sess.Store.InsertFiles(files, target)
	if err != nil {
		return reject(w, r, sess, err)
	}

	return respond(w, r, sess, noticeMessage(r.Context(), notice))
}

// ImportSlot places an image fetched from a URL into the grid.
func (app *App) ImportSlot(w http.ResponseWriter, r *http.Request) error {
	if app.Fetcher == nil {
		return errImportDisabled
	}

	sess, err := app.session(w, r)
	if err != nil {
		return err
	}

	target, err := parseTarget(r)
	if err != nil {
		return reject(w, r, sess, err)
	}

	start := time.Now()
	file, err := app.Fetcher.FetchImage(r.Context(), utils.GetFormValue(r, "url"))
	utils.AddServerTimingHeader(w, "import", time.Since(start), "Remote import")

	if err != nil {
		return reject(w, r, sess, err)
	}

	notice, err := sess.Store.InsertFiles([]slots.File{file}, target)
	if err != nil {
		return reject(w, r, sess, err)
	}

	return respond(w, r, sess, noticeMessage(r.Context(), notice))
}

// RemoveSlot clears the slot named in the path. Clearing an empty slot is
// not an error.
func (app *App) RemoveSlot(w http.ResponseWriter, r *http.Request) error {
	sess, err := app.session(w, r)
	if err != nil {
		return err
	}

	index, err := strconv.Atoi(utils.GetPathVar(r, "index"))
	if err != nil {
		return reject(w, r, sess, fmt.Errorf("%w: %w", slots.ErrInvalidSlotIndex, err))
	}

	if err := sess.Store.RemoveSlot(index); err != nil {
		return reject(w, r, sess, err)
	}

	return respond(w, r, sess, "")
}

// ResetSlots clears every slot.
func (app *App) ResetSlots(w http.ResponseWriter, r *http.Request) error {
	sess, err := app.session(w, r)
	if err != nil {
		return err
	}

	notice, err := sess.Store.ResetAll()
	if err != nil {
		return reject(w, r, sess, err)
	}

	return respond(w, r, sess, noticeMessage(r.Context(), notice))
}

// parseTarget reads the optional target slot. An absent or blank value
// means the first empty slot.
func parseTarget(r *http.Request) (*int, error) {
	raw := strings.TrimSpace(utils.GetFormValue(r, "target"))
	if raw == "" {
		return nil, nil
	}

	index, err := strconv.Atoi(raw)
	if err != nil || !slots.ValidIndex(index) {
		return nil, fmt.Errorf("%w: %q", slots.ErrInvalidSlotIndex, raw)
	}

	return &index, nil
}

// readUploads turns multipart file headers into slot files, in form order.
// Files not declared as images are passed along unread for the store to
// skip.
func readUploads(headers []*multipart.FileHeader, maxFileSize int64) ([]slots.File, error) {
	files := make([]slots.File, 0, len(headers))

	for _, fh := range headers {
		f := slots.File{
			Name:      fh.Filename,
			MediaType: fh.Header.Get("Content-Type"),
		}

		if !slots.IsImage(f.MediaType) {
			files = append(files, f)

			continue
		}

		if maxFileSize > 0 && fh.Size > maxFileSize {
			return nil, &fileTooLargeError{Name: fh.Filename}
		}

		data, err := readUpload(fh)
		if err != nil {
			return nil, err
		}

		f.Data = data
		files = append(files, f)
	}

	return files, nil
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload %q: %w", fh.Filename, err)
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload %q: %w", fh.Filename, err)
	}

	return data, nil
}
