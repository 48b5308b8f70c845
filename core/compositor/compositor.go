// Copyright 2025, the ninegrid contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
Package compositor renders a snapshot of the nine slots into one PNG.

Every filled slot is decoded on its own goroutine, cover-fitted into its
cell and drawn onto an opaque canvas. Encoding starts only after all cells
have finished. Empty slots stay background-coloured.
*/
package compositor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif" // register decoders used by imaging.Decode
	_ "image/jpeg"
	"image/png"
	"io"
	"time"

	"github.com/disintegration/imaging"
	"golang.org/x/sync/errgroup"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"codeberg.org/ninegrid/ninegrid/core/slots"
)

// Render errors.
var (
	ErrNothingToRender      = errors.New("no filled slots to render")
	ErrRenderEncodingFailed = errors.New("encoding the grid failed")
	ErrDecodeTimeout        = errors.New("decoding images took too long")
	ErrEmptyImage           = errors.New("image has no pixels")
	ErrImageTooLarge        = errors.New("image has too many pixels")
)

// DefaultMaxPixels is the pixel count above which a cell is refused unless
// [WithMaxPixels] says otherwise.
const DefaultMaxPixels = 50_000_000

// CellError reports a slot whose image could not be used.
type CellError struct {
	Index int
	Err   error
}

func (e *CellError) Error() string {
	return fmt.Sprintf("slot %d: %v", e.Index, e.Err)
}

func (e *CellError) Unwrap() error {
	return e.Err
}

type decodeFunc func(r io.Reader) (image.Image, error)

func decodeOriented(r io.Reader) (image.Image, error) {
	return imaging.Decode(r, imaging.AutoOrientation(true))
}

// Compositor renders grids. It is safe for concurrent use.
type Compositor struct {
	params        Params
	decodeTimeout time.Duration
	maxPixels     int64
	compression   png.CompressionLevel
	filter        imaging.ResampleFilter
	decode        decodeFunc
}

// Option configures a Compositor.
type Option func(*Compositor)

// WithDecodeTimeout bounds the time all cells together may spend decoding.
// Zero disables the bound.
func WithDecodeTimeout(d time.Duration) Option {
	return func(c *Compositor) { c.decodeTimeout = d }
}

// WithMaxPixels refuses cells whose declared width times height exceeds n.
// Zero disables the check.
func WithMaxPixels(n int64) Option {
	return func(c *Compositor) { c.maxPixels = n }
}

// WithCompression sets the PNG encoder's compression level.
func WithCompression(level png.CompressionLevel) Option {
	return func(c *Compositor) { c.compression = level }
}

// WithFilter sets the resampling filter used when scaling cells.
func WithFilter(filter imaging.ResampleFilter) Option {
	return func(c *Compositor) { c.filter = filter }
}

// New returns a Compositor for the given geometry.
func New(params Params, opts ...Option) *Compositor {
	c := &Compositor{
		params:      params,
		maxPixels:   DefaultMaxPixels,
		compression: png.DefaultCompression,
		filter:      imaging.Lanczos,
		decode:      decodeOriented,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Params returns the geometry the compositor draws with.
func (c *Compositor) Params() Params {
	return c.params
}

// Render composites cells into a PNG.
//
// It fails with [ErrNothingToRender] before allocating anything when no cell
// is filled, with a [*CellError] when a cell cannot be decoded or declares
// more pixels than allowed ([ErrImageTooLarge]), and with
// [ErrDecodeTimeout] when decoding exceeds the configured timeout.
func (c *Compositor) Render(ctx context.Context, cells [slots.Count]slots.Slot) ([]byte, error) {
	filled := 0

	for _, cell := range cells {
		if cell.Filled() {
			filled++
		}
	}

	if filled == 0 {
		return nil, ErrNothingToRender
	}

	side := c.params.CanvasSize()
	canvas := image.NewRGBA(image.Rect(0, 0, side, side))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(c.params.Background), image.Point{}, draw.Src)

	if c.decodeTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, c.decodeTimeout)
		defer cancel()
	}

	g, gctx := errgroup.WithContext(ctx)

	for index, cell := range cells {
		if !cell.Filled() {
			continue
		}

		// Each goroutine writes only inside its own cell rectangle.
		g.Go(func() error {
			return c.drawCell(gctx, canvas, index, cell.Content.Data)
		})
	}

	if err := g.Wait(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %w", ErrDecodeTimeout, err)
		}

		return nil, err
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, canvas, imaging.PNG, imaging.PNGCompressionLevel(c.compression)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRenderEncodingFailed, err)
	}

	if buf.Len() == 0 {
		return nil, ErrRenderEncodingFailed
	}

	return buf.Bytes(), nil
}

func (c *Compositor) drawCell(ctx context.Context, canvas draw.Image, index int, data []byte) error {
	if err := c.checkPixels(data); err != nil {
		return &CellError{Index: index, Err: err}
	}

	img, err := c.decodeContext(ctx, data)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}

		return &CellError{Index: index, Err: err}
	}

	bounds := img.Bounds()
	if bounds.Empty() {
		return &CellError{Index: index, Err: ErrEmptyImage}
	}

	cell := c.params.CellSize
	fit := CoverFit(bounds.Dx(), bounds.Dy(), cell)

	// Crop to the visible window first so extreme aspect ratios never scale
	// the whole source up.
	visible := imaging.Crop(img, visibleSource(bounds, fit, cell))
	scaled := imaging.Resize(visible, cell, cell, c.filter)

	draw.Draw(canvas, c.params.CellRect(index), scaled, image.Point{}, draw.Over)

	return nil
}

// checkPixels reads only the image header, so an oversized image is refused
// before its pixel buffer is allocated.
func (c *Compositor) checkPixels(data []byte) error {
	if c.maxPixels <= 0 {
		return nil
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return err
	}

	if int64(cfg.Width)*int64(cfg.Height) > c.maxPixels {
		return fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height)
	}

	return nil
}

// decodeContext decodes data, giving up when ctx is done. The decoder itself
// cannot be interrupted, so an abandoned decode finishes in the background.
func (c *Compositor) decodeContext(ctx context.Context, data []byte) (image.Image, error) {
	type result struct {
		img image.Image
		err error
	}

	done := make(chan result, 1)

	go func() {
		img, err := c.decode(bytes.NewReader(data))
		done <- result{img, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		return r.img, r.err
	}
}

// Filename is the download name for a grid rendered at t.
func Filename(label string, t time.Time) string {
	return fmt.Sprintf("%s-%d.png", label, t.UnixMilli())
}
