// Package render composes the full-frame timetable image. Rendering is
// pure: the same Context always produces the same pixels, and missing
// provider data degrades to placeholders instead of errors.
package render

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	"time"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"

	appLog "github.com/Melokeo/Timetable4Inky/internal/log"
	"github.com/Melokeo/Timetable4Inky/internal/provider"
	"github.com/Melokeo/Timetable4Inky/internal/style"
	"github.com/Melokeo/Timetable4Inky/internal/task"
)

// verIdent marks the layout revision in the header corner.
const verIdent = "C"

// Context carries everything one frame depends on. It is rebuilt from
// scratch each cycle and never persisted.
type Context struct {
	// Now is the frame's notion of current time; the renderer never
	// consults the wall clock directly.
	Now time.Time

	// Tasks is the resolved timetable for the day (routine plus
	// calendar events).
	Tasks []task.Task

	// RoutineName labels the active preset in the header.
	RoutineName string

	// Snap is the provider snapshot; zero values render as placeholders.
	Snap provider.Snapshot

	// BatteryPercent is shown in the footer; negative means unknown.
	BatteryPercent int
}

// Frame is one rendered bitmap plus its content fingerprint.
type Frame struct {
	Image       *image.RGBA
	Fingerprint string
}

// Renderer draws frames at the panel's fixed resolution.
type Renderer struct {
	background image.Image // optional, pre-sized to the panel
}

func New() *Renderer {
	return &Renderer{}
}

// LoadBackground installs an optional backdrop image, resized to the
// panel. A missing or unreadable file is logged and ignored.
func (r *Renderer) LoadBackground(path string) {
	img, err := imaging.Open(path)
	if err != nil {
		appLog.Warn("background image unavailable", "path", path, "err", err)
		return
	}
	r.background = imaging.Resize(img, style.ScreenWidth, style.ScreenHeight, imaging.Lanczos)
}

// Render composes the frame for rc. It never fails: sections whose data
// is missing are drawn as placeholders.
func (r *Renderer) Render(rc Context) Frame {
	dc := gg.NewContext(style.ScreenWidth, style.ScreenHeight)
	dc.SetColor(style.White)
	dc.Clear()
	if r.background != nil {
		dc.DrawImage(r.background, 0, 0)
	}

	r.drawHeader(dc, rc)
	r.drawNowBanner(dc, rc)

	left, right := PanelRanges(rc.Now)
	newTimelinePanel(style.TimelineLeft, left).draw(dc, rc)
	newTimelinePanel(style.TimelineRight, right).draw(dc, rc)

	r.drawFooter(dc, rc)

	img := dc.Image().(*image.RGBA)
	return Frame{Image: img, Fingerprint: fingerprint(img)}
}

// fingerprint hashes the raw pixel buffer, giving a stable equality key
// for unchanged-frame detection.
func fingerprint(img *image.RGBA) string {
	sum := sha256.Sum256(img.Pix)
	return hex.EncodeToString(sum[:])
}

func (r *Renderer) drawHeader(dc *gg.Context, rc Context) {
	// left block: version, update time, routine name
	drawStyled(dc, verIdent, style.Layout.VerIdent, "ver_ident")
	drawStyled(dc, "Updated "+rc.Now.Format("15:04"), style.Layout.UpdatedTime, "updated_time")

	name := rc.RoutineName
	if name == "" {
		name = "UNKNOWN RT"
	}
	drawStyled(dc, name, style.Layout.RoutineIdent, "routine_ident")

	// header dividers
	dc.SetColor(style.Mix(style.K(5), style.W(8)))
	dc.SetLineWidth(2)
	dc.DrawLine(style.Layout.DividerTop1.X, style.Layout.DividerTop1.Y, style.Layout.DividerBot1.X, style.Layout.DividerBot1.Y)
	dc.DrawLine(style.Layout.DividerTop2.X, style.Layout.DividerTop2.Y, style.Layout.DividerBot2.X, style.Layout.DividerBot2.Y)
	dc.Stroke()

	// next task block
	drawStyled(dc, "Next up", style.Layout.HintNext, "hint_next")
	next := task.FindNext(rc.Tasks, rc.Now)
	timeNext, titleNext := "--", "--"
	if next != nil {
		timeNext = next.Start.Format("15:04")
		titleNext = next.Title
	}
	drawStyled(dc, timeNext, style.Layout.TimeNext, "time_next")
	drawStyled(dc, titleNext, style.Layout.NextTask, "next_task")

	// right block: dates under a red rule
	drawRoundedLine(dc, style.Layout.LineTitleL, style.Layout.LineTitleR, 3, style.Red)
	drawStyled(dc, rc.Now.Format("Jan 2, 2006"), style.Layout.Date, "date")

	lunarLine := rc.Snap.LunarLine
	if lunarLine == "" {
		lunarLine = "· · ·"
	}
	drawStyled(dc, lunarLine, style.Layout.Ganzhi, "ganzhi")
}

// sleepHours is the window where the idle banner suggests sleep rather
// than a hobby.
var sleepHours = [2]int{0, 6}

func (r *Renderer) drawNowBanner(dc *gg.Context, rc Context) {
	drawStyled(dc, "Now you should...", style.Layout.TaskNowHint, "task_now_hint")

	text := "Nothing on. Sketch?"
	if h := rc.Now.Hour(); h >= sleepHours[0] && h < sleepHours[1] {
		text = "Lights out"
	}
	if curr := task.FindCurrent(rc.Tasks, rc.Now); curr != nil {
		text = curr.Title
	}

	// shrink when the banner would overflow its column
	const maxWidth = 300
	styleName := "task_now"
	if textWidth(dc, text, styleName) > maxWidth {
		styleName = "task_now_small"
	}

	// emphasis bar behind the text
	w := textWidth(dc, text, styleName)
	anchor := style.Layout.TaskNow
	const barHeight, barOffset = 20.0, -3.0
	dc.SetColor(style.Mix(style.R(5), style.W(20)))
	dc.DrawRectangle(anchor.X-w/2, anchor.Y-barHeight+barOffset, w, barHeight)
	dc.Fill()

	drawStyled(dc, text, anchor, styleName)
}

func (r *Renderer) drawFooter(dc *gg.Context, rc Context) {
	if rc.BatteryPercent >= 0 {
		drawStyled(dc, fmt.Sprintf("batt %d%%", rc.BatteryPercent), style.Layout.Battery, "battery")
	}
}

// drawStyled renders text with a named style's face, ink and anchor.
func drawStyled(dc *gg.Context, text string, at style.Point, styleName string) {
	st, ok := style.Styles()[styleName]
	if !ok {
		appLog.Warn("unknown text style", "style", styleName)
		return
	}
	dc.SetFontFace(st.Face)
	dc.SetColor(st.Color)
	dc.DrawStringAnchored(text, at.X, at.Y, st.AX, st.AY)
}

func textWidth(dc *gg.Context, text, styleName string) float64 {
	st := style.Styles()[styleName]
	dc.SetFontFace(st.Face)
	w, _ := dc.MeasureString(text)
	return w
}

// drawRoundedLine draws a line with circular caps.
func drawRoundedLine(dc *gg.Context, a, b style.Point, width float64, c color.Color) {
	dc.SetColor(c)
	dc.SetLineWidth(width)
	dc.DrawLine(a.X, a.Y, b.X, b.Y)
	dc.Stroke()
	rad := width / 2
	dc.DrawCircle(a.X, a.Y, rad)
	dc.Fill()
	dc.DrawCircle(b.X, b.Y, rad)
	dc.Fill()
}
