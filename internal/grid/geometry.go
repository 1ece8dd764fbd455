package grid

import (
	"fmt"
	"image"
	"math"
)

// mmPerInch is the standard millimeter-to-inch conversion factor.
const mmPerInch = 25.4

// ScreenSpec describes the addressable surface of a target screen. It is
// immutable; derive a new spec with WithSize when the capture resolution
// differs from the device resolution.
type ScreenSpec struct {
	WidthPx    int
	HeightPx   int
	CellSizePx int
}

// NewScreenSpec builds a ScreenSpec for a screen of the given pixel
// dimensions, deriving the cell size from a physical touch size in
// millimeters and the device pixel density.
func NewScreenSpec(widthPx, heightPx int, touchSizeMM, ppi float64) (ScreenSpec, error) {
	cell := int(math.Round(touchSizeMM / mmPerInch * ppi))
	spec := ScreenSpec{WidthPx: widthPx, HeightPx: heightPx, CellSizePx: cell}
	if err := spec.Validate(); err != nil {
		return ScreenSpec{}, err
	}
	return spec, nil
}

// WithSize returns a copy of the spec with the given pixel dimensions,
// keeping the cell size. Used when an image's dimensions take precedence
// over the configured screen resolution.
func (s ScreenSpec) WithSize(widthPx, heightPx int) ScreenSpec {
	s.WidthPx = widthPx
	s.HeightPx = heightPx
	return s
}

// Validate checks the spec's dimensions
func (s ScreenSpec) Validate() error {
	if s.WidthPx < 1 || s.HeightPx < 1 || s.CellSizePx < 1 {
		return &InvalidScreenSpecError{Spec: s}
	}
	return nil
}

// Partition is the column/row/total-cell breakdown derived from a
// ScreenSpec. Cells are numbered 1..TotalCells in row-major order
// (left-to-right, then top-to-bottom).
type Partition struct {
	Columns    int
	Rows       int
	TotalCells int
}

// Partition computes the grid partition for the spec using ceiling
// division, so a screen dimension that is not an exact multiple of the
// cell size still gets a (clipped) final column/row.
func (s ScreenSpec) Partition() (Partition, error) {
	if err := s.Validate(); err != nil {
		return Partition{}, err
	}
	cols := (s.WidthPx + s.CellSizePx - 1) / s.CellSizePx
	rows := (s.HeightPx + s.CellSizePx - 1) / s.CellSizePx
	return Partition{Columns: cols, Rows: rows, TotalCells: cols * rows}, nil
}

// CellRect returns the pixel rectangle covered by the given 1-based cell
// number. Rectangles in the last column/row are clipped to the screen
// bounds rather than padded.
func (s ScreenSpec) CellRect(cell int) (image.Rectangle, error) {
	part, err := s.Partition()
	if err != nil {
		return image.Rectangle{}, err
	}
	if cell < 1 || cell > part.TotalCells {
		return image.Rectangle{}, &CellOutOfRangeError{Cell: cell, TotalCells: part.TotalCells}
	}

	row := (cell - 1) / part.Columns
	col := (cell - 1) % part.Columns

	x0 := col * s.CellSizePx
	y0 := row * s.CellSizePx
	x1 := min(x0+s.CellSizePx, s.WidthPx)
	y1 := min(y0+s.CellSizePx, s.HeightPx)

	return image.Rect(x0, y0, x1, y1), nil
}

// CellCenter returns the integer center of the cell's clipped rectangle.
// The result always lies within [0, WidthPx) x [0, HeightPx). The center
// uses floor division, matching the coordinate the rest of the system
// relies on to turn a cell decision into a tap.
func (s ScreenSpec) CellCenter(cell int) (image.Point, error) {
	rect, err := s.CellRect(cell)
	if err != nil {
		return image.Point{}, err
	}
	return image.Pt((rect.Min.X+rect.Max.X)/2, (rect.Min.Y+rect.Max.Y)/2), nil
}

// CellMap returns the full forward table mapping every cell number to its
// pixel center. Useful for bulk export and debugging.
func (s ScreenSpec) CellMap() (map[int]image.Point, error) {
	part, err := s.Partition()
	if err != nil {
		return nil, err
	}
	m := make(map[int]image.Point, part.TotalCells)
	for n := 1; n <= part.TotalCells; n++ {
		center, err := s.CellCenter(n)
		if err != nil {
			return nil, err
		}
		m[n] = center
	}
	return m, nil
}

// InvalidScreenSpecError reports a ScreenSpec with nonpositive dimensions.
type InvalidScreenSpecError struct {
	Spec ScreenSpec
}

// Error implements the error interface
func (e *InvalidScreenSpecError) Error() string {
	return fmt.Sprintf("invalid screen spec: width=%d height=%d cell_size=%d (all must be >= 1)",
		e.Spec.WidthPx, e.Spec.HeightPx, e.Spec.CellSizePx)
}

// CellOutOfRangeError reports a cell number outside the valid range for a
// partition. The number is never clamped; callers decide how to recover.
type CellOutOfRangeError struct {
	Cell       int
	TotalCells int
}

// Error implements the error interface
func (e *CellOutOfRangeError) Error() string {
	return fmt.Sprintf("cell number %d is out of range: must be between 1 and %d", e.Cell, e.TotalCells)
}
