package display

import (
	"image"
	"image/color"
	"testing"
)

func TestPackRGBARejectsWrongSize(t *testing.T) {
	if _, _, err := PackRGBA(image.NewRGBA(image.Rect(0, 0, 10, 10))); err == nil {
		t.Fatal("wrong geometry accepted")
	}
}

func TestPackRGBAWhiteFrame(t *testing.T) {
	img := frame()
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 255, 255, 255, 255
	}

	black, red, err := PackRGBA(img)
	if err != nil {
		t.Fatal(err)
	}
	if len(black) != PlaneSize || len(red) != PlaneSize {
		t.Fatalf("plane sizes %d/%d", len(black), len(red))
	}
	for i := range black {
		if black[i] != 0xFF || red[i] != 0xFF {
			t.Fatalf("byte %d: black=%02x red=%02x, want all white", i, black[i], red[i])
		}
	}
}

func TestPackRGBABitPositions(t *testing.T) {
	img := frame()
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255 // opaque white everywhere
	}
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2] = 255, 255, 255
	}

	img.SetRGBA(0, 0, toRGBA(color.NRGBA{0, 0, 0, 255}))       // black, MSB of byte 0
	img.SetRGBA(9, 0, toRGBA(color.NRGBA{200, 30, 30, 255}))   // red, bit 1 of byte 1
	img.SetRGBA(0, 1, toRGBA(color.NRGBA{0, 0, 0, 255}))       // black, next row

	black, red, err := PackRGBA(img)
	if err != nil {
		t.Fatal(err)
	}

	if black[0] != 0x7F {
		t.Fatalf("black[0] = %02x, want MSB cleared", black[0])
	}
	if red[1] != 0xBF {
		t.Fatalf("red[1] = %02x, want bit 6 cleared", red[1])
	}
	if black[PanelByteWidth] != 0x7F {
		t.Fatalf("black[%d] = %02x, want next row MSB cleared", PanelByteWidth, black[PanelByteWidth])
	}
	// ink never lands in the other plane
	if red[0] != 0xFF || black[1] != 0xFF {
		t.Fatal("ink leaked into the wrong plane")
	}
}

func TestPackRGBATransparentIsWhite(t *testing.T) {
	img := frame()
	// fully transparent black pixel stays white
	img.SetRGBA(0, 0, toRGBA(color.NRGBA{0, 0, 0, 0}))

	black, _, err := PackRGBA(img)
	if err != nil {
		t.Fatal(err)
	}
	if black[0] != 0xFF {
		t.Fatalf("black[0] = %02x, transparent pixel inked", black[0])
	}
}

func TestClassifyPixel(t *testing.T) {
	cases := []struct {
		name string
		c    color.NRGBA
		want inkColor
	}{
		{"pure black", color.NRGBA{0, 0, 0, 255}, inkBlack},
		{"dark gray", color.NRGBA{40, 40, 40, 255}, inkBlack},
		{"white", color.NRGBA{255, 255, 255, 255}, inkWhite},
		{"panel red", color.NRGBA{196, 85, 49, 255}, inkRed},
		{"pure red", color.NRGBA{255, 0, 0, 255}, inkRed},
		{"pale pink", color.NRGBA{250, 230, 230, 255}, inkWhite},
		{"green", color.NRGBA{60, 200, 60, 255}, inkWhite},
	}
	for _, tc := range cases {
		if got := classifyPixel(tc.c); got != tc.want {
			t.Errorf("%s: classify = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func toRGBA(c color.NRGBA) color.RGBA {
	r, g, b, a := c.RGBA()
	return color.RGBA{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8), uint8(a >> 8)}
}
