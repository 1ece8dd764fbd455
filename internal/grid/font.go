package grid

import (
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

var (
	parseOnce   sync.Once
	regularFont *opentype.Font
	parseErr    error
)

// labelFace returns a font face for cell labels at the given pixel size.
// Sizes too small for the outline font fall back to the fixed 7x13 face.
func labelFace(sizePx int) (font.Face, error) {
	if sizePx < 8 {
		return basicfont.Face7x13, nil
	}

	parseOnce.Do(func() {
		regularFont, parseErr = opentype.Parse(goregular.TTF)
	})
	if parseErr != nil {
		return basicfont.Face7x13, nil
	}

	face, err := opentype.NewFace(regularFont, &opentype.FaceOptions{
		Size:    float64(sizePx),
		DPI:     72, // one point equals one pixel at 72 DPI
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, err
	}
	return face, nil
}
