// Package sched runs the update loop: it decides when a new frame is
// due, renders it, drives the panel and pushes the PNG upstream. Task
// boundaries, a panel shift at noon, a periodic tick and two cron jobs
// (day rollover, upload cadence) all feed a single time-ordered queue.
package sched

import (
	"bytes"
	"context"
	"image/png"
	"path/filepath"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Melokeo/Timetable4Inky/internal/alarm"
	"github.com/Melokeo/Timetable4Inky/internal/battery"
	"github.com/Melokeo/Timetable4Inky/internal/config"
	"github.com/Melokeo/Timetable4Inky/internal/display"
	appLog "github.com/Melokeo/Timetable4Inky/internal/log"
	"github.com/Melokeo/Timetable4Inky/internal/provider"
	"github.com/Melokeo/Timetable4Inky/internal/render"
	"github.com/Melokeo/Timetable4Inky/internal/routine"
	"github.com/Melokeo/Timetable4Inky/internal/task"
	"github.com/Melokeo/Timetable4Inky/internal/upload"
)

// State tracks what the daemon is doing; transitions are logged at
// debug level.
type State int

const (
	StateIdle State = iota
	StateRendering
	StateDisplaying
	StateUploading
	StateSleeping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRendering:
		return "rendering"
	case StateDisplaying:
		return "displaying"
	case StateUploading:
		return "uploading"
	case StateSleeping:
		return "sleeping"
	}
	return "unknown"
}

// panelShiftHour is when the two timeline panels slide forward by six
// hours, forcing a refresh even if no task boundary falls there.
const panelShiftHour = 12

// Daemon owns the update queue and the last-frame state. One Run per
// process.
type Daemon struct {
	cfg       *config.Config
	loc       *time.Location
	registry  *task.Registry
	routines  *routine.Set
	providers *provider.Providers
	renderer  *render.Renderer
	adapter   *display.Adapter
	uploader  *upload.Client // nil disables uploads
	alarms    *alarm.Player  // nil disables alarms
	battery   battery.Reader
	preview   *display.PNGDevice

	queue *eventQueue
	cron  *cron.Cron

	mu      sync.Mutex
	pending []*event // pushed from cron goroutines, drained by the loop
	wake    chan struct{}

	state           State
	lastFingerprint string
	lastCycle       time.Time
	lastFramePNG    []byte

	now func() time.Time
}

// Deps collects the daemon's collaborators; nil optional members
// (Uploader, Alarms, Battery) disable that concern.
type Deps struct {
	Registry  *task.Registry
	Routines  *routine.Set
	Providers *provider.Providers
	Renderer  *render.Renderer
	Adapter   *display.Adapter
	Uploader  *upload.Client
	Alarms    *alarm.Player
	Battery   battery.Reader
}

func NewDaemon(cfg *config.Config, loc *time.Location, deps Deps) *Daemon {
	return &Daemon{
		cfg:       cfg,
		loc:       loc,
		registry:  deps.Registry,
		routines:  deps.Routines,
		providers: deps.Providers,
		renderer:  deps.Renderer,
		adapter:   deps.Adapter,
		uploader:  deps.Uploader,
		alarms:    deps.Alarms,
		battery:   deps.Battery,
		preview:   display.NewPNGDevice(filepath.Join(cfg.CacheDir, "preview.png")),
		queue:     newEventQueue(),
		wake:      make(chan struct{}, 1),
		now:       time.Now,
	}
}

// Run blocks until ctx is cancelled. It renders once immediately, then
// follows the queue.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.startCron(); err != nil {
		return err
	}
	defer d.cron.Stop()
	defer d.adapter.Sleep()

	now := d.now().In(d.loc)
	d.rebuildQueue(now)
	d.runCycle(ctx, &event{at: now, kind: evPeriodic})

	for {
		d.setState(StateIdle)
		timer := d.nextTimer()
		select {
		case <-ctx.Done():
			timer.Stop()
			appLog.Info("scheduler stopping")
			return ctx.Err()
		case <-d.wake:
			timer.Stop()
		case <-timer.C:
		}
		d.drainPending()
		d.dispatchDue(ctx)
	}
}

// RunOnce performs a single render/display/upload cycle and returns.
func (d *Daemon) RunOnce(ctx context.Context) error {
	defer d.adapter.Sleep()
	now := d.now().In(d.loc)
	return d.runCycle(ctx, &event{at: now, kind: evPeriodic})
}

func (d *Daemon) startCron() error {
	d.cron = cron.New(cron.WithLocation(d.loc))

	if _, err := d.cron.AddFunc("0 0 * * *", func() {
		d.enqueue(&event{at: d.now().In(d.loc), kind: evRollover})
	}); err != nil {
		return err
	}
	if d.uploader != nil && d.cfg.Upload.Cron != "" {
		if _, err := d.cron.AddFunc(d.cfg.Upload.Cron, func() {
			d.enqueue(&event{at: d.now().In(d.loc), kind: evUploadTick})
		}); err != nil {
			return err
		}
	}
	d.cron.Start()
	return nil
}

// enqueue is the only entry point for cron goroutines; the loop owns
// the heap itself.
func (d *Daemon) enqueue(ev *event) {
	d.mu.Lock()
	d.pending = append(d.pending, ev)
	d.mu.Unlock()
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *Daemon) drainPending() {
	d.mu.Lock()
	pending := d.pending
	d.pending = nil
	d.mu.Unlock()
	for _, ev := range pending {
		d.queue.push(ev)
	}
}

func (d *Daemon) nextTimer() *time.Timer {
	next := d.queue.peek()
	if next == nil {
		// nothing queued until the rollover cron refills; check hourly
		return time.NewTimer(time.Hour)
	}
	wait := time.Until(next.at)
	if wait < 0 {
		wait = 0
	}
	return time.NewTimer(wait)
}

// dispatchDue pops everything that has come due and collapses it into
// at most one cycle, firing alarms for each task start along the way.
func (d *Daemon) dispatchDue(ctx context.Context) {
	now := d.now().In(d.loc)
	due := d.queue.popDue(now)
	if len(due) == 0 {
		return
	}

	var trigger *event
	for _, ev := range due {
		appLog.Debug("event due", "kind", ev.kind, "at", ev.at.Format("15:04:05"))
		switch ev.kind {
		case evRollover:
			d.rebuildQueue(now)
			trigger = ev
		case evTaskStart:
			d.fireAlarm(ev, now)
			trigger = ev
		default:
			if trigger == nil || ev.kind != evPeriodic {
				trigger = ev
			}
		}
	}

	// Coalesce: a cycle this soon after the last one says nothing new.
	// Task alarms above already fired, so the deferred copy carries no
	// task; only the rendered change catches up at the deferred instant.
	gap := time.Duration(d.cfg.MinUpdateGapMinutes) * time.Minute
	if !d.lastCycle.IsZero() && now.Sub(d.lastCycle) < gap {
		retry := d.lastCycle.Add(gap)
		appLog.Debug("coalescing update", "kind", trigger.kind, "until", retry.Format("15:04:05"))
		d.queue.push(&event{at: retry, kind: trigger.kind})
		return
	}

	if err := d.runCycle(ctx, trigger); err != nil {
		appLog.Error("update cycle failed", err, "kind", trigger.kind)
	}
}

func (d *Daemon) fireAlarm(ev *event, now time.Time) {
	if d.alarms == nil || ev.task == nil || !ev.task.HasAlarm {
		return
	}
	if d.silent(now) {
		appLog.Debug("alarm muted in silent hours", "task", ev.task.Title)
		return
	}
	appLog.Info("alarm", "task", ev.task.Title, "sound", ev.task.AlarmSound)
	d.alarms.Play(ev.task.AlarmSound)
}

// runCycle renders a frame, then pushes it to the panel and the remote
// endpoint. Stage failures are independent: a dead panel does not block
// the upload and vice versa.
func (d *Daemon) runCycle(ctx context.Context, trigger *event) error {
	now := d.now().In(d.loc)
	d.setState(StateRendering)

	tasks := d.dayTasks(now)
	snap := d.providers.Collect(ctx, now, taskTitles(tasks))
	tasks = append(tasks, snap.CalendarTasks...)

	frame := d.renderer.Render(render.Context{
		Now:            now,
		Tasks:          tasks,
		RoutineName:    d.routines.ForDate(now).Name,
		Snap:           snap,
		BatteryPercent: d.batteryPercent(ctx),
	})

	if err := d.preview.Show(ctx, frame.Image); err != nil {
		appLog.Warn("preview write failed", "err", err)
	}

	d.showFrame(ctx, frame, now)
	d.uploadFrame(ctx, frame, trigger)

	d.setState(StateSleeping)
	d.lastCycle = now
	return nil
}

// showFrame records the fingerprint only after the panel actually took
// the frame, so a silent-hours skip or a refresh failure leaves the next
// cycle free to retry the same image.
func (d *Daemon) showFrame(ctx context.Context, frame render.Frame, now time.Time) {
	if frame.Fingerprint == d.lastFingerprint {
		appLog.Debug("frame unchanged; skipping panel refresh")
		return
	}
	if d.silent(now) {
		appLog.Debug("silent hours; skipping panel refresh", "hour", now.Hour())
		return
	}
	d.setState(StateDisplaying)
	if err := d.adapter.Show(ctx, frame.Image); err != nil {
		appLog.Error("panel refresh failed", err)
		return
	}
	d.lastFingerprint = frame.Fingerprint
}

func (d *Daemon) uploadFrame(ctx context.Context, frame render.Frame, trigger *event) {
	if d.uploader == nil {
		return
	}
	d.setState(StateUploading)
	var buf bytes.Buffer
	if err := png.Encode(&buf, frame.Image); err != nil {
		appLog.Error("png encode failed", err)
		return
	}
	d.lastFramePNG = buf.Bytes()
	if err := d.uploader.Upload(ctx, d.lastFramePNG); err != nil {
		appLog.Error("upload failed", err, "kind", trigger.kind)
	}
}

// rebuildQueue replaces the queue with the rest of today's events:
// task boundaries, the noon panel shift and periodic gap-fill ticks.
func (d *Daemon) rebuildQueue(now time.Time) {
	d.queue.clear()

	for _, t := range d.dayTasks(now) {
		t := t
		if t.Start.After(now) {
			d.queue.push(&event{at: t.Start, kind: evTaskStart, task: &t})
		}
		if t.End().After(now) {
			d.queue.push(&event{at: t.End(), kind: evTaskEnd, task: &t})
		}
	}

	shift := time.Date(now.Year(), now.Month(), now.Day(), panelShiftHour, 0, 0, 0, d.loc)
	if shift.After(now) {
		d.queue.push(&event{at: shift, kind: evPanelShift})
	}

	period := time.Duration(d.cfg.PeriodicMinutes) * time.Minute
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, d.loc).AddDate(0, 0, 1)
	for at := now.Truncate(period).Add(period); at.Before(midnight); at = at.Add(period) {
		d.queue.push(&event{at: at, kind: evPeriodic})
	}

	appLog.Info("day queue rebuilt", "events", d.queue.len(), "day", now.Format("2006-01-02"))
}

func (d *Daemon) dayTasks(now time.Time) []task.Task {
	preset := d.routines.ForDate(now)
	return preset.Schedule(d.registry, now)
}

func (d *Daemon) batteryPercent(ctx context.Context) int {
	if d.battery == nil {
		return -1
	}
	st, err := d.battery.Read(ctx)
	if err != nil {
		appLog.Debug("battery read unavailable", "err", err)
		return -1
	}
	return st.Percent
}

// silent reports whether t falls in the overnight quiet window, when
// panel refreshes and alarms are suppressed. Rendering and uploads
// continue so the remote view stays current.
func (d *Daemon) silent(t time.Time) bool {
	h := t.Hour()
	start, end := d.cfg.SilentStartHour, d.cfg.SilentEndHour
	if start == end {
		return false
	}
	if start < end {
		return h >= start && h < end
	}
	return h >= start || h < end
}

func (d *Daemon) setState(s State) {
	if d.state == s {
		return
	}
	appLog.Debug("state", "from", d.state, "to", s)
	d.state = s
}

func taskTitles(tasks []task.Task) []string {
	titles := make([]string, 0, len(tasks))
	for _, t := range tasks {
		titles = append(titles, t.Title)
	}
	return titles
}
