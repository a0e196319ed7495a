package display

import (
	"fmt"
	"image"
	"image/color"
)

// Panel geometry (800x480 tri-color).
const (
	PanelWidth     = 800
	PanelHeight    = 480
	PanelByteWidth = PanelWidth / 8 // 100 bytes per row
	PlaneSize      = PanelByteWidth * PanelHeight
)

// PackRGBA converts a rendered frame into packed 1bpp black/red planes.
//
// Packing is y-major, MSB-first:
//
//	byteIndex = y*PanelByteWidth + (x >> 3)
//	mask      = 0x80 >> (x & 7)
//
// Bits start at 1 (white); pixels needing ink clear their bit in the
// matching plane.
func PackRGBA(img *image.RGBA) (black, red []byte, err error) {
	b := img.Bounds()
	if b.Dx() != PanelWidth || b.Dy() != PanelHeight {
		return nil, nil, fmt.Errorf("display: expected %dx%d frame, got %dx%d",
			PanelWidth, PanelHeight, b.Dx(), b.Dy())
	}

	black = make([]byte, PlaneSize)
	red = make([]byte, PlaneSize)
	for i := range black {
		black[i] = 0xFF
		red[i] = 0xFF
	}

	for y := 0; y < PanelHeight; y++ {
		for x := 0; x < PanelWidth; x++ {
			i := img.PixOffset(b.Min.X+x, b.Min.Y+y)

			c := color.NRGBA{R: img.Pix[i], G: img.Pix[i+1], B: img.Pix[i+2], A: img.Pix[i+3]}
			if c.A < 128 {
				continue // treated as white
			}

			ink := classifyPixel(c)
			if ink == inkWhite {
				continue
			}

			byteIndex := y*PanelByteWidth + (x >> 3)
			mask := byte(0x80 >> (x & 7))
			switch ink {
			case inkBlack:
				black[byteIndex] &^= mask
			case inkRed:
				red[byteIndex] &^= mask
			}
		}
	}

	return black, red, nil
}

type inkColor int

const (
	inkWhite inkColor = iota
	inkBlack
	inkRed
)

// classifyPixel maps an arbitrary color onto the panel's three inks.
// Dark pixels (luma < 64) become black; warm pixels with enough red
// dominance become red; everything else stays white.
func classifyPixel(c color.NRGBA) inkColor {
	r, g, b := float64(c.R), float64(c.G), float64(c.B)

	luma := 0.299*r + 0.587*g + 0.114*b

	maxGB := g
	if b > maxGB {
		maxGB = b
	}
	redness := r - maxGB

	if luma < 64 {
		return inkBlack
	}
	if r > 128 && redness > 32 {
		return inkRed
	}
	return inkWhite
}
