// Copyright 2025, the ninegrid contributors
// SPDX-License-Identifier: AGPL-3.0-only

package compositor

import (
	"image"
	"image/color"
	"math"

	"codeberg.org/ninegrid/ninegrid/core/slots"
)

const (
	// DefaultCellSize is the side of one square cell in pixels.
	DefaultCellSize = 300
	// DefaultGap is the spacing between neighbouring cells in pixels.
	DefaultGap = 10
)

// Params describes the grid geometry.
type Params struct {
	CellSize   int
	Gap        int
	Background color.Color
}

// DefaultParams is a 920x920 canvas of 300px cells on opaque white.
func DefaultParams() Params {
	return Params{
		CellSize:   DefaultCellSize,
		Gap:        DefaultGap,
		Background: color.White,
	}
}

// CanvasSize is the side of the square output image.
func (p Params) CanvasSize() int {
	return slots.Side*p.CellSize + (slots.Side-1)*p.Gap
}

// CellRect is the on-canvas rectangle of the slot at index.
func (p Params) CellRect(index int) image.Rectangle {
	stride := p.CellSize + p.Gap
	origin := image.Pt((index%slots.Side)*stride, (index/slots.Side)*stride)

	return image.Rectangle{Min: origin, Max: origin.Add(image.Pt(p.CellSize, p.CellSize))}
}

// Fit is the placement of a scaled source image relative to its cell's
// top-left corner. The cell clips everything outside [0, cell).
type Fit struct {
	Width   int
	Height  int
	OffsetX int
	OffsetY int
}

// CoverFit scales a srcW x srcH image so that it covers a square cell,
// keeping its aspect ratio and centring the overflow.
//
// Wide images get the cell's height and overflow horizontally; all others
// get the cell's width and overflow vertically.
func CoverFit(srcW, srcH, cell int) Fit {
	if srcW <= 0 || srcH <= 0 {
		return Fit{Width: cell, Height: cell}
	}

	aspect := float64(srcW) / float64(srcH)

	if aspect > 1 {
		width := int(math.Round(float64(cell) * aspect))

		return Fit{Width: width, Height: cell, OffsetX: -(width - cell) / 2}
	}

	height := int(math.Round(float64(cell) / aspect))

	return Fit{Width: cell, Height: height, OffsetY: -(height - cell) / 2}
}

// visibleSource maps the part of a cover-fitted image that lands inside the
// cell back onto source pixel coordinates.
func visibleSource(bounds image.Rectangle, fit Fit, cell int) image.Rectangle {
	scale := float64(bounds.Dx()) / float64(fit.Width)

	x0 := bounds.Min.X + int(math.Round(float64(-fit.OffsetX)*scale))
	y0 := bounds.Min.Y + int(math.Round(float64(-fit.OffsetY)*scale))
	side := max(1, int(math.Round(float64(cell)*scale)))

	return image.Rect(x0, y0, x0+side, y0+side).Intersect(bounds)
}
