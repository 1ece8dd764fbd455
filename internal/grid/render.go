package grid

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/tapgrid/cli/internal/logger"
)

// OverlayStyle configures how the grid overlay is drawn. It affects only
// rendering output, never the geometry.
type OverlayStyle struct {
	LineColor   color.NRGBA
	LineWidth   int
	WashColor   color.NRGBA
	LabelColor  color.NRGBA
	LabelSizePx int // 0 derives from the cell size
	LabelOffset int
}

// DefaultStyle returns the overlay style tuned for vision-model
// legibility: translucent red lines, faint white wash, blue labels.
func DefaultStyle() OverlayStyle {
	return OverlayStyle{
		LineColor:   color.NRGBA{R: 255, A: 100},
		LineWidth:   1,
		WashColor:   color.NRGBA{R: 255, G: 255, B: 255, A: 60},
		LabelColor:  color.NRGBA{B: 255, A: 150},
		LabelOffset: 5,
	}
}

// RenderError reports an image decode/encode or filesystem failure during
// rendering. Grid size never causes it; even a degenerate 1x1 partition
// renders.
type RenderError struct {
	Op   string
	Path string
	Err  error
}

// Error implements the error interface
func (e *RenderError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("render %s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("render %s: %v", e.Op, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// Renderer burns a numbered grid into screenshots. Safe for concurrent
// use; each call allocates its own output buffer.
type Renderer struct {
	style OverlayStyle
}

// NewRenderer creates a renderer with the given style
func NewRenderer(style OverlayStyle) *Renderer {
	if style.LineWidth < 1 {
		style.LineWidth = 1
	}
	return &Renderer{style: style}
}

// Render composites a translucent wash, the grid lines, and a number per
// cell onto a copy of src. The input image is never modified. The image's
// own dimensions take precedence over the spec's width/height, so the
// same geometry can be reused across resized screenshots.
func (r *Renderer) Render(src image.Image, spec ScreenSpec) (*image.NRGBA, error) {
	bounds := src.Bounds()
	spec = spec.WithSize(bounds.Dx(), bounds.Dy())

	part, err := spec.Partition()
	if err != nil {
		return nil, err
	}

	out := image.NewNRGBA(image.Rect(0, 0, spec.WidthPx, spec.HeightPx))
	draw.Draw(out, out.Bounds(), src, bounds.Min, draw.Src)

	wash := image.NewUniform(r.style.WashColor)
	draw.Draw(out, out.Bounds(), wash, image.Point{}, draw.Over)

	xs, ys := lineOffsets(spec, part)
	for _, x := range xs {
		r.drawVLine(out, x, spec.HeightPx)
	}
	for _, y := range ys {
		r.drawHLine(out, y, spec.WidthPx)
	}

	if err := r.drawLabels(out, spec, part); err != nil {
		return nil, err
	}

	logger.Debug("rendered grid overlay",
		"width", spec.WidthPx, "height", spec.HeightPx,
		"columns", part.Columns, "rows", part.Rows, "cells", part.TotalCells)

	return out, nil
}

// RenderToPath loads an image from disk, renders the overlay, and writes
// the result. An empty outPath defaults to "<input>_grid<ext>" next to
// the input. Returns the path actually written.
func (r *Renderer) RenderToPath(inPath, outPath string, spec ScreenSpec) (string, error) {
	if outPath == "" {
		ext := filepath.Ext(inPath)
		outPath = strings.TrimSuffix(inPath, ext) + "_grid" + ext
	}

	src, err := imaging.Open(inPath)
	if err != nil {
		return "", &RenderError{Op: "decode", Path: inPath, Err: err}
	}

	out, err := r.Render(src, spec)
	if err != nil {
		return "", err
	}

	// JPEG has no alpha channel; flatten onto an opaque background
	// instead of erroring.
	var final image.Image = out
	switch strings.ToLower(filepath.Ext(outPath)) {
	case ".jpg", ".jpeg":
		flat := imaging.New(out.Bounds().Dx(), out.Bounds().Dy(), color.White)
		final = imaging.Overlay(flat, out, image.Point{}, 1.0)
	}

	if err := imaging.Save(final, outPath); err != nil {
		return "", &RenderError{Op: "encode", Path: outPath, Err: err}
	}

	return outPath, nil
}

// EncodePNG encodes an image as PNG bytes, the interchange format used
// between capture, overlay, and the vision gateway
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, &RenderError{Op: "encode", Err: err}
	}
	return buf.Bytes(), nil
}

// lineOffsets returns the pixel offsets of every vertical and horizontal
// grid line, including both screen edges: Columns+1 vertical lines and
// Rows+1 horizontal lines. Lines on the far edge are pulled in so they
// stay visible inside the image.
func lineOffsets(spec ScreenSpec, part Partition) (xs, ys []int) {
	xs = make([]int, 0, part.Columns+1)
	for i := 0; i <= part.Columns; i++ {
		xs = append(xs, min(i*spec.CellSizePx, spec.WidthPx-1))
	}
	ys = make([]int, 0, part.Rows+1)
	for i := 0; i <= part.Rows; i++ {
		ys = append(ys, min(i*spec.CellSizePx, spec.HeightPx-1))
	}
	return xs, ys
}

func (r *Renderer) drawVLine(dst *image.NRGBA, x, height int) {
	line := image.Rect(x, 0, x+r.style.LineWidth, height)
	draw.Draw(dst, line, image.NewUniform(r.style.LineColor), image.Point{}, draw.Over)
}

func (r *Renderer) drawHLine(dst *image.NRGBA, y, width int) {
	line := image.Rect(0, y, width, y+r.style.LineWidth)
	draw.Draw(dst, line, image.NewUniform(r.style.LineColor), image.Point{}, draw.Over)
}

// drawLabels writes each cell's number anchored at the cell's top-left
// corner plus a small fixed offset. Labels are left-anchored on purpose:
// at small cell sizes overlapping numbers still read in order.
func (r *Renderer) drawLabels(dst *image.NRGBA, spec ScreenSpec, part Partition) error {
	size := r.style.LabelSizePx
	if size == 0 {
		size = spec.CellSizePx / 3
	}

	face, err := labelFace(size)
	if err != nil {
		return &RenderError{Op: "font", Err: err}
	}

	metrics := face.Metrics()
	drawer := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(r.style.LabelColor),
		Face: face,
	}

	for n := 1; n <= part.TotalCells; n++ {
		rect, err := spec.CellRect(n)
		if err != nil {
			return err
		}
		drawer.Dot = fixed.P(rect.Min.X+r.style.LabelOffset, rect.Min.Y+r.style.LabelOffset).Add(
			fixed.Point26_6{Y: metrics.Ascent})
		drawer.DrawString(strconv.Itoa(n))
	}

	return nil
}
