// Package style holds the static palette, layout geometry and text styles
// for the 800x480 tri-color panel. Everything here is fixed at build time;
// the renderer only reads from it.
package style

import (
	"image/color"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// Panel dimensions (Inky Impression-class 7.5" panel).
const (
	ScreenWidth  = 800
	ScreenHeight = 480
)

// Panel-native inks. Red matches the panel's actual pigment rather than
// pure RGB red.
var (
	White  = color.NRGBA{255, 255, 255, 255}
	Black  = color.NRGBA{0, 0, 0, 255}
	Red    = color.NRGBA{196, 85, 49, 255}
	Yellow = color.NRGBA{255, 255, 0, 255}
	Green  = color.NRGBA{0, 255, 0, 255}
	Blue   = color.NRGBA{0, 0, 255, 255}
)

// Weighted pairs a palette color with a mixing weight.
type Weighted struct {
	C color.NRGBA
	W float64
}

// Shorthand constructors so call sites read like the palette: Mix(R(5), W(18)).
func W(w float64) Weighted { return Weighted{White, w} }
func K(w float64) Weighted { return Weighted{Black, w} }
func R(w float64) Weighted { return Weighted{Red, w} }
func Y(w float64) Weighted { return Weighted{Yellow, w} }
func G(w float64) Weighted { return Weighted{Green, w} }
func B(w float64) Weighted { return Weighted{Blue, w} }

// Mix blends palette colors by weight. Weights are normalized, so
// Mix(K(5), W(18)) is a light gray regardless of scale.
func Mix(parts ...Weighted) color.NRGBA {
	var total float64
	for _, p := range parts {
		total += p.W
	}
	if total == 0 {
		return White
	}
	var r, g, b float64
	for _, p := range parts {
		f := p.W / total
		r += float64(p.C.R) * f
		g += float64(p.C.G) * f
		b += float64(p.C.B) * f
	}
	return color.NRGBA{uint8(r), uint8(g), uint8(b), 255}
}

// Point is a pixel coordinate on the panel.
type Point struct {
	X, Y float64
}

// Layout pins every header/footer element. Anchors are baked into the
// matching text styles.
var Layout = struct {
	UpdatedTime  Point
	VerIdent     Point
	RoutineIdent Point
	Battery      Point

	HintNext Point
	TimeNext Point
	NextTask Point

	TaskNowHint Point
	TaskNow     Point

	Date        Point
	Ganzhi      Point
	LineTitleL  Point
	LineTitleR  Point
	DividerTop1 Point
	DividerBot1 Point
	DividerTop2 Point
	DividerBot2 Point
}{
	UpdatedTime:  Point{36, 27},
	VerIdent:     Point{25, 31},
	RoutineIdent: Point{36, 49},
	Battery:      Point{8, 474},

	HintNext: Point{315, 27},
	TimeNext: Point{315, 49},
	NextTask: Point{421, 29},

	TaskNowHint: Point{25, 121},
	TaskNow:     Point{150, 184},

	Date:        Point{795, 43},
	Ganzhi:      Point{783, 71},
	LineTitleL:  Point{482, 48},
	LineTitleR:  Point{782, 48},
	DividerTop1: Point{139, 10},
	DividerBot1: Point{139, 52},
	DividerTop2: Point{301, 10},
	DividerBot2: Point{301, 52},
}

// TimelineCoords places one vertical six-hour timeline panel.
type TimelineCoords struct {
	LineTop    Point // time axis
	LineBottom Point
	GridLT     Point // task grid bounds
	GridRB     Point
	TickRT     Point // tick column
	TickLB     Point
}

var (
	TimelineLeft = TimelineCoords{
		LineTop:    Point{315, 86},
		LineBottom: Point{315, 468},
		GridLT:     Point{315, 92},
		GridRB:     Point{538, 464},
		TickRT:     Point{316, 93},
		TickLB:     Point{312, 465},
	}
	TimelineRight = TimelineCoords{
		LineTop:    Point{558, 86},
		LineBottom: Point{558, 468},
		GridLT:     Point{558, 92},
		GridRB:     Point{782, 464},
		TickRT:     Point{559, 93},
		TickLB:     Point{555, 465},
	}
)

// TextStyle bundles a font face, ink and anchor for DrawStringAnchored.
type TextStyle struct {
	Face   font.Face
	Color  color.NRGBA
	AX, AY float64
}

var (
	stylesOnce sync.Once
	styles     map[string]TextStyle
)

func face(ttf []byte, size float64) font.Face {
	f, err := opentype.Parse(ttf)
	if err != nil {
		panic("style: bad embedded font: " + err.Error())
	}
	ff, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		panic("style: face construction failed: " + err.Error())
	}
	return ff
}

// Styles returns the named text style table. Faces are built once.
func Styles() map[string]TextStyle {
	stylesOnce.Do(func() {
		body := face(goregular.TTF, 16)
		small := face(goregular.TTF, 14)
		smaller := face(goregular.TTF, 12)

		styles = map[string]TextStyle{
			// anchor convention: AX 0=left 0.5=center 1=right; AY 1=bottom of ascent at Y
			"updated_time":  {small, Black, 0, 1},
			"ver_ident":     {smaller, Black, 0, 1},
			"routine_ident": {small, Black, 0, 1},
			"battery":       {smaller, Black, 0, 1},
			"hint_next":     {small, Black, 0, 1},
			"time_next":     {face(gobold.TTF, 18), Red, 0, 1},
			"next_task":     {face(gobold.TTF, 20), Black, 0.5, 0.5},
			"task_now_hint": {face(goregular.TTF, 30), Black, 0, 1},
			"task_now":      {face(gobold.TTF, 44), Red, 0.5, 1},
			"task_now_small": {face(gobold.TTF, 28), Red, 0.5, 1},
			"date":          {face(gobold.TTF, 30), Black, 1, 1},
			"ganzhi":        {small, Black, 1, 1},
			"task":          {body, Black, 0.5, 0.5},
			"task_small":    {smaller, Black, 0.5, 0.5},
			"timetick":      {smaller, Black, 1, 0},
		}
	})
	return styles
}
