package render

import (
	"image/color"
	"time"

	"github.com/fogleman/gg"

	"github.com/Melokeo/Timetable4Inky/internal/provider"
	"github.com/Melokeo/Timetable4Inky/internal/style"
	"github.com/Melokeo/Timetable4Inky/internal/task"
)

const (
	panelHours = 6
	boxRadius  = 4 // task rect corner radius
)

// PanelRanges decides which two six-hour windows the timeline shows.
// The 0-6 panel is skipped during the day; around noon the view shifts
// to the afternoon; in the last window the previous panel stays visible
// for context.
func PanelRanges(now time.Time) (left, right [2]int) {
	panelsPerDay := 24 / panelHours
	current := now.Hour() / panelHours

	var leftStart int
	switch {
	case current == 0:
		leftStart = panelHours
	case current >= panelsPerDay-1:
		leftStart = (panelsPerDay - 2) * panelHours
	default:
		leftStart = current * panelHours
	}
	return [2]int{leftStart, leftStart + panelHours},
		[2]int{leftStart + panelHours, leftStart + 2*panelHours}
}

// timelinePanel renders one vertical six-hour column: grid, hour axis,
// task boxes with lane packing, and the current-time marker.
type timelinePanel struct {
	coords    style.TimelineCoords
	hourStart int
	hourEnd   int
}

func newTimelinePanel(coords style.TimelineCoords, hours [2]int) *timelinePanel {
	return &timelinePanel{coords: coords, hourStart: hours[0], hourEnd: hours[1]}
}

func (p *timelinePanel) draw(dc *gg.Context, rc Context) {
	p.drawBackground(dc)
	p.drawTasks(dc, rc)
	p.drawNowMarker(dc, rc.Now)
}

func (p *timelinePanel) drawBackground(dc *gg.Context) {
	// quarter-hour grid
	p.drawHorizGrid(dc, p.coords.GridLT, p.coords.GridRB, 1, panelHours*4+1, style.Mix(style.W(18), style.K(5)), false)
	// hour ticks (last one unlabeled/skipped)
	p.drawHorizGrid(dc, p.coords.TickRT, p.coords.TickLB, 2, panelHours+1, style.Mix(style.W(4), style.K(5)), true)
	p.drawHourLabels(dc)

	drawRoundedLine(dc, p.coords.LineTop, p.coords.LineBottom, 3, style.Mix(style.W(1), style.K(1)))
}

func (p *timelinePanel) drawHorizGrid(dc *gg.Context, lt, rb style.Point, width float64, split int, c color.Color, skipLast bool) {
	dc.SetColor(c)
	dc.SetLineWidth(width)
	n := split
	if skipLast {
		n--
	}
	for i := 0; i < n; i++ {
		y := lt.Y + (rb.Y-lt.Y)*float64(i)/float64(split-1)
		dc.DrawLine(lt.X, y, rb.X, y)
	}
	dc.Stroke()
}

func (p *timelinePanel) drawHourLabels(dc *gg.Context) {
	x := p.coords.TickRT.X - 3
	top, bottom := p.coords.TickRT.Y, p.coords.TickLB.Y
	for i := 0; i < panelHours; i++ {
		y := top + (bottom-top)*float64(i)/float64(panelHours)
		drawStyled(dc, itoa(p.hourStart+i), style.Point{X: x, Y: y}, "timetick")
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [3]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// hourToY maps a time of day onto the panel's vertical axis.
func (p *timelinePanel) hourToY(hour, minute int) float64 {
	frac := float64(hour-p.hourStart) + float64(minute)/60
	total := float64(p.hourEnd - p.hourStart)
	y1, y2 := p.coords.GridLT.Y, p.coords.GridRB.Y
	return y1 + frac/total*(y2-y1)
}

func hourOf(t time.Time) float64 {
	return float64(t.Hour()) + float64(t.Minute())/60
}

// laneAssign places one clamped task in a lane among its overlap group.
type laneAssign struct {
	t     task.Task
	lane  int
	lanes int
}

// clampTasks trims tasks to the panel window on the given day. Tasks
// continuing from an earlier panel lose their caption so it only shows
// where they start.
func (p *timelinePanel) clampTasks(tasks []task.Task, day time.Time) []task.Task {
	from := time.Date(day.Year(), day.Month(), day.Day(), p.hourStart, 0, 0, 0, day.Location())
	to := time.Date(day.Year(), day.Month(), day.Day(), p.hourEnd, 0, 0, 0, day.Location())

	var out []task.Task
	for _, t := range task.FindInRange(tasks, from, to) {
		startH := hourOf(t.Start)
		endH := startH + t.Duration.Hours()

		clampedStart := startH
		if clampedStart < float64(p.hourStart) {
			clampedStart = float64(p.hourStart)
			t.Title = "" // continuation: caption lives in the earlier panel
		}
		clampedEnd := endH
		if clampedEnd > float64(p.hourEnd) {
			clampedEnd = float64(p.hourEnd)
		}

		day := t.Start
		t.Start = time.Date(day.Year(), day.Month(), day.Day(),
			int(clampedStart), int((clampedStart-float64(int(clampedStart)))*60), 0, 0, day.Location())
		t.Duration = time.Duration((clampedEnd - clampedStart) * float64(time.Hour))
		out = append(out, t)
	}
	return out
}

// assignLanes packs overlapping tasks into side-by-side lanes, sizing
// each group by its local overlap count.
func assignLanes(tasks []task.Task) []laneAssign {
	sorted := make([]task.Task, len(tasks))
	copy(sorted, tasks)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].Start.Before(sorted[j-1].Start); j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}

	overlaps := func(a, b task.Task) bool {
		return a.Start.Before(b.End()) && b.Start.Before(a.End())
	}

	out := make([]laneAssign, 0, len(sorted))
	for _, t := range sorted {
		used := make(map[int]bool)
		groupSize := 0
		for _, other := range sorted {
			if !overlaps(t, other) {
				continue
			}
			groupSize++
			for _, a := range out {
				if a.t.Start.Equal(other.Start) && a.t.Title == other.Title {
					used[a.lane] = true
				}
			}
		}
		lane := 0
		for used[lane] {
			lane++
		}
		if groupSize < 1 {
			groupSize = 1
		}
		out = append(out, laneAssign{t: t, lane: lane, lanes: groupSize})
	}
	return out
}

func (p *timelinePanel) drawTasks(dc *gg.Context, rc Context) {
	if len(rc.Tasks) == 0 {
		return
	}

	visible := p.clampTasks(rc.Tasks, rc.Now)
	assigns := assignLanes(visible)

	for _, a := range assigns {
		x1, y1, x2, y2 := p.taskRect(a)
		p.renderTaskBox(dc, a.t, x1, y1, x2, y2, rc.Snap)
	}

	p.drawTimeDots(dc, visible)
	p.drawSpanLines(dc, assigns)
}

// taskRect computes the box for a lane assignment, shifted off the axis.
func (p *timelinePanel) taskRect(a laneAssign) (x1, y1, x2, y2 float64) {
	startH := hourOf(a.t.Start)
	endH := startH + a.t.Duration.Hours()

	y1 = p.hourToY(int(startH), int((startH-float64(int(startH)))*60))
	y2 = p.hourToY(int(endH), int((endH-float64(int(endH)))*60))

	gx1, gx2 := p.coords.GridLT.X, p.coords.GridRB.X
	laneWidth := (gx2 - gx1) / float64(a.lanes)
	x1 = gx1 + float64(a.lane)*laneWidth + 2
	x2 = x1 + laneWidth - 4

	x1 += 5 // keep clear of the axis
	return x1, y1, x2, y2
}

// renderTaskBox adapts the box content to its height: a bare line for
// slivers, title-only for short boxes, full stack otherwise.
func (p *timelinePanel) renderTaskBox(dc *gg.Context, t task.Task, x1, y1, x2, y2 float64, snap provider.Snapshot) {
	height := y2 - y1
	width := x2 - x1

	switch {
	case height < 15:
		p.renderLineMode(dc, t, x1, y1, x2)
	case height < 40:
		p.fillBox(dc, t, x1, y1, x2, y2)
		p.renderCompactMode(dc, t, x1, y1, x2, y2, snap)
	default:
		p.fillBox(dc, t, x1, y1, x2, y2)
		p.renderFullMode(dc, t, x1, y1, x2, y2, width, height, snap)
	}
}

func (p *timelinePanel) fillBox(dc *gg.Context, t task.Task, x1, y1, x2, y2 float64) {
	dc.DrawRoundedRectangle(x1, y1, x2-x1, y2-y1, boxRadius)
	dc.SetColor(t.FillColor)
	dc.FillPreserve()
	dc.SetColor(t.BorderColor)
	dc.SetLineWidth(2)
	dc.Stroke()
}

func (p *timelinePanel) renderLineMode(dc *gg.Context, t task.Task, x1, y1, x2 float64) {
	dc.SetColor(t.BorderColor)
	dc.SetLineWidth(3)
	dc.DrawLine(x1+4, y1, x2-4, y1)
	dc.Stroke()

	if t.Title == "" {
		return
	}
	title := fitTitle(t.Title, int(x2-x1-16)/6, nil)
	st := style.Styles()["task"]
	dc.SetFontFace(st.Face)
	dc.SetColor(t.TextColor)
	dc.DrawStringAnchored(title, x1+8, y1, 0, 0.35)
}

func (p *timelinePanel) renderCompactMode(dc *gg.Context, t task.Task, x1, y1, x2, y2 float64, snap provider.Snapshot) {
	if t.Title == "" {
		return
	}
	title := fitTitle(t.Title, int(x2-x1-8)/5, snap.Abbrevs)
	st := style.Styles()["task_small"]
	dc.SetFontFace(st.Face)
	dc.SetColor(t.TextColor)
	cx := (x1 + x2) / 2
	dc.DrawStringAnchored(title, cx, y1+2, 0.5, 1)

	if y2-y1 > 20 {
		dc.DrawStringAnchored(t.Start.Format("15:04"), cx, y2-2, 0.5, 0)
	}
}

func (p *timelinePanel) renderFullMode(dc *gg.Context, t task.Task, x1, y1, x2, y2, width, height float64, snap provider.Snapshot) {
	st := style.Styles()["task"]
	dc.SetFontFace(st.Face)
	dc.SetColor(t.TextColor)

	const lineHeight = 16.0
	var lines []string

	title := t.Title
	if short, ok := snap.Abbrevs[title]; ok && textWidth(dc, title, "task") > width-8 {
		title = short
	}
	lines = append(lines, dc.WordWrap(title, width-8)...)
	if len(lines) > 2 {
		lines = lines[:2]
	}

	remaining := height - float64(len(lines))*lineHeight - 8

	// time range next, then description, as space allows
	timeBoth := t.Start.Format("15:04") + "-" + t.End().Format("15:04")
	if remaining >= lineHeight {
		if w, _ := dc.MeasureString(timeBoth); w <= width-8 {
			lines = append(lines, timeBoth)
			remaining -= lineHeight
		} else {
			lines = append(lines, t.Start.Format("15:04"))
			remaining -= lineHeight
		}
	}
	if remaining >= lineHeight && t.Description != "" {
		lines = append(lines, provider.Truncate(t.Description, 15))
	}

	cx := (x1 + x2) / 2
	total := float64(len(lines)) * lineHeight
	y := (y1+y2)/2 - total/2
	dc.SetFontFace(st.Face)
	for _, line := range lines {
		dc.DrawStringAnchored(line, cx, y, 0.5, 1)
		y += lineHeight
	}
}

// fitTitle shortens a title to roughly maxChars, preferring a provider
// abbreviation over blunt truncation.
func fitTitle(title string, maxChars int, abbrevs map[string]string) string {
	if maxChars < 1 {
		maxChars = 1
	}
	if len([]rune(title)) <= maxChars {
		return title
	}
	if short, ok := abbrevs[title]; ok && len([]rune(short)) <= maxChars {
		return short
	}
	return provider.Truncate(title, maxChars)
}

// drawTimeDots marks each task start on the axis.
func (p *timelinePanel) drawTimeDots(dc *gg.Context, tasks []task.Task) {
	axisX := p.coords.LineTop.X
	for _, t := range tasks {
		startH := hourOf(t.Start)
		if startH < float64(p.hourStart) || startH > float64(p.hourEnd) {
			continue
		}
		y := p.hourToY(t.Start.Hour(), t.Start.Minute())
		dc.SetColor(style.White)
		dc.DrawCircle(axisX, y, 4)
		dc.Fill()
		dc.SetColor(t.BorderColor)
		dc.DrawCircle(axisX, y, 3)
		dc.Fill()
	}
}

// drawSpanLines runs a rule from the axis across each task's lane at its
// start time.
func (p *timelinePanel) drawSpanLines(dc *gg.Context, assigns []laneAssign) {
	axisX := p.coords.LineTop.X
	for _, a := range assigns {
		startH := hourOf(a.t.Start)
		if startH < float64(p.hourStart) || startH > float64(p.hourEnd) {
			continue
		}
		x1, y1, x2, _ := p.taskRect(a)
		dc.SetColor(a.t.BorderColor)
		dc.SetLineWidth(3)
		dc.DrawLine(axisX, y1, x1, y1)
		dc.DrawLine(x1, y1, x2-boxRadius*0.8, y1)
		dc.Stroke()
	}
}

// drawNowMarker draws the red triangle and rule at the current time.
func (p *timelinePanel) drawNowMarker(dc *gg.Context, now time.Time) {
	h := hourOf(now)
	if h < float64(p.hourStart) || h > float64(p.hourEnd) {
		return
	}
	y := p.hourToY(now.Hour(), now.Minute())
	axisX := p.coords.LineTop.X
	gridX2 := p.coords.GridRB.X

	const size, border = 6.0, 1.0

	// white-bordered triangle pointing down the axis
	dc.SetColor(style.White)
	dc.MoveTo(axisX, y+(size+border)*1.73)
	dc.LineTo(axisX-(size+border), y-border)
	dc.LineTo(axisX+(size+border), y-border)
	dc.ClosePath()
	dc.Fill()

	dc.SetColor(style.Red)
	dc.MoveTo(axisX, y+size*1.73)
	dc.LineTo(axisX-size, y)
	dc.LineTo(axisX+size, y)
	dc.ClosePath()
	dc.Fill()

	dc.SetLineWidth(2)
	dc.DrawLine(axisX, y, gridX2, y)
	dc.Stroke()
}
