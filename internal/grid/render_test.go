package grid

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImage(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestRender_PreservesDimensions(t *testing.T) {
	tests := []struct {
		name   string
		width  int
		height int
		cell   int
	}{
		{name: "phone screen", width: 1080, height: 2400, cell: 91},
		{name: "uneven dimensions", width: 97, height: 53, cell: 10},
		{name: "single cell", width: 5, height: 5, cell: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := testImage(tt.width, tt.height, color.NRGBA{A: 255})
			spec := ScreenSpec{WidthPx: tt.width, HeightPx: tt.height, CellSizePx: tt.cell}

			out, err := NewRenderer(DefaultStyle()).Render(src, spec)
			require.NoError(t, err)
			assert.Equal(t, tt.width, out.Bounds().Dx())
			assert.Equal(t, tt.height, out.Bounds().Dy())
		})
	}
}

func TestRender_DoesNotMutateInput(t *testing.T) {
	src := testImage(200, 200, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	spec := ScreenSpec{WidthPx: 200, HeightPx: 200, CellSizePx: 50}

	_, err := NewRenderer(DefaultStyle()).Render(src, spec)
	require.NoError(t, err)

	assert.Equal(t, color.NRGBA{R: 10, G: 20, B: 30, A: 255}, src.NRGBAAt(100, 100))
}

func TestRender_ImageDimensionsOverrideSpec(t *testing.T) {
	// The spec claims a much larger screen; the image wins.
	src := testImage(100, 80, color.NRGBA{A: 255})
	spec := ScreenSpec{WidthPx: 1080, HeightPx: 2400, CellSizePx: 40}

	out, err := NewRenderer(DefaultStyle()).Render(src, spec)
	require.NoError(t, err)
	assert.Equal(t, 100, out.Bounds().Dx())
	assert.Equal(t, 80, out.Bounds().Dy())
}

func TestRender_DrawsGridLines(t *testing.T) {
	src := testImage(200, 200, color.NRGBA{A: 255})
	spec := ScreenSpec{WidthPx: 200, HeightPx: 200, CellSizePx: 91}

	out, err := NewRenderer(DefaultStyle()).Render(src, spec)
	require.NoError(t, err)

	// A pixel on the vertical line at x=91 carries the red line color on
	// top of the wash; a plain washed pixel does not.
	onLine := out.NRGBAAt(91, 60)
	offLine := out.NRGBAAt(60, 60)
	assert.Greater(t, int(onLine.R), int(offLine.R))
}

func TestRender_DrawsCellLabels(t *testing.T) {
	src := testImage(400, 400, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	spec := ScreenSpec{WidthPx: 400, HeightPx: 400, CellSizePx: 100}

	out, err := NewRenderer(DefaultStyle()).Render(src, spec)
	require.NoError(t, err)

	part, err := spec.Partition()
	require.NoError(t, err)
	require.Equal(t, 16, part.TotalCells)

	// Each cell's number is anchored near its top-left corner. The label
	// color is blue-dominant, so a glyph pixel shows B well above R even
	// after blending over the white background and wash.
	for n := 1; n <= part.TotalCells; n++ {
		rect, err := spec.CellRect(n)
		require.NoError(t, err)

		found := false
		for y := rect.Min.Y; y < rect.Min.Y+60 && !found; y++ {
			for x := rect.Min.X; x < rect.Min.X+60 && !found; x++ {
				px := out.NRGBAAt(x, y)
				if int(px.B) > int(px.R)+40 {
					found = true
				}
			}
		}
		assert.True(t, found, "cell %d has no label pixel", n)
	}
}

func TestLineOffsets_Counts(t *testing.T) {
	tests := []struct {
		name       string
		spec       ScreenSpec
		vertical   int
		horizontal int
	}{
		{
			name:       "12x27 partition",
			spec:       ScreenSpec{WidthPx: 1080, HeightPx: 2400, CellSizePx: 91},
			vertical:   13,
			horizontal: 28,
		},
		{
			name:       "single cell",
			spec:       ScreenSpec{WidthPx: 50, HeightPx: 50, CellSizePx: 100},
			vertical:   2,
			horizontal: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			part, err := tt.spec.Partition()
			require.NoError(t, err)

			xs, ys := lineOffsets(tt.spec, part)
			assert.Len(t, xs, tt.vertical)
			assert.Len(t, ys, tt.horizontal)
		})
	}
}

func TestRenderToPath_DefaultSuffix(t *testing.T) {
	dir := t.TempDir()
	inPath := filepath.Join(dir, "screen.png")
	writePNG(t, inPath, testImage(300, 200, color.NRGBA{A: 255}))

	spec := ScreenSpec{WidthPx: 300, HeightPx: 200, CellSizePx: 91}
	outPath, err := NewRenderer(DefaultStyle()).RenderToPath(inPath, "", spec)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "screen_grid.png"), outPath)

	f, err := os.Open(outPath)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 300, img.Bounds().Dx())
	assert.Equal(t, 200, img.Bounds().Dy())
}

func TestRenderToPath_FlattensJPEG(t *testing.T) {
	dir := t.TempDir()
	inPath := filepath.Join(dir, "screen.png")
	outPath := filepath.Join(dir, "screen_grid.jpg")
	writePNG(t, inPath, testImage(120, 120, color.NRGBA{R: 128, G: 128, B: 128, A: 255}))

	spec := ScreenSpec{WidthPx: 120, HeightPx: 120, CellSizePx: 40}
	got, err := NewRenderer(DefaultStyle()).RenderToPath(inPath, outPath, spec)
	require.NoError(t, err)
	assert.Equal(t, outPath, got)

	info, err := os.Stat(outPath)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestRenderToPath_DecodeFailure(t *testing.T) {
	dir := t.TempDir()
	inPath := filepath.Join(dir, "not_an_image.png")
	require.NoError(t, os.WriteFile(inPath, []byte("garbage"), 0644))

	_, err := NewRenderer(DefaultStyle()).RenderToPath(inPath, "", ScreenSpec{WidthPx: 1, HeightPx: 1, CellSizePx: 1})

	var renderErr *RenderError
	require.ErrorAs(t, err, &renderErr)
	assert.Equal(t, "decode", renderErr.Op)
}

func TestRenderToPath_RecomputesPerCellSize(t *testing.T) {
	dir := t.TempDir()
	inPath := filepath.Join(dir, "screen.png")
	writePNG(t, inPath, testImage(400, 400, color.NRGBA{A: 255}))

	renderer := NewRenderer(DefaultStyle())

	coarse, err := renderer.RenderToPath(inPath, filepath.Join(dir, "coarse.png"),
		ScreenSpec{WidthPx: 400, HeightPx: 400, CellSizePx: 200})
	require.NoError(t, err)

	fine, err := renderer.RenderToPath(inPath, filepath.Join(dir, "fine.png"),
		ScreenSpec{WidthPx: 400, HeightPx: 400, CellSizePx: 50})
	require.NoError(t, err)

	coarseBytes, err := os.ReadFile(coarse)
	require.NoError(t, err)
	fineBytes, err := os.ReadFile(fine)
	require.NoError(t, err)

	assert.NotEqual(t, coarseBytes, fineBytes)
}

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	require.NoError(t, png.Encode(f, img))
}
