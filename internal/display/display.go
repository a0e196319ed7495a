// Package display wraps the e-paper output device. The adapter enforces
// the minimum interval between hardware refreshes; callers never talk to
// a Device directly.
package display

import (
	"context"
	"image"
	"time"

	appLog "github.com/Melokeo/Timetable4Inky/internal/log"
)

// Device is a panel with a single show-this-image capability.
type Device interface {
	// Show writes the image to the panel and triggers a full refresh.
	Show(ctx context.Context, img *image.RGBA) error
	// Sleep puts the panel into deep sleep. Called once at shutdown.
	Sleep()
}

// Adapter serializes access to a Device and spaces hardware refreshes at
// least minInterval apart. Early calls are deferred to the next allowed
// instant rather than dropped.
type Adapter struct {
	dev         Device
	minInterval time.Duration
	lastRefresh time.Time

	// injected for tests
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewAdapter(dev Device, minInterval time.Duration) *Adapter {
	return &Adapter{
		dev:         dev,
		minInterval: minInterval,
		now:         time.Now,
		sleep:       ctxSleep,
	}
}

// Show pushes the frame to the panel, waiting out the refresh floor
// first if the previous refresh was too recent.
func (a *Adapter) Show(ctx context.Context, img *image.RGBA) error {
	if !a.lastRefresh.IsZero() {
		elapsed := a.now().Sub(a.lastRefresh)
		if wait := a.minInterval - elapsed; wait > 0 {
			appLog.Debug("deferring refresh for panel health", "wait", wait)
			if err := a.sleep(ctx, wait); err != nil {
				return err
			}
		}
	}

	if err := a.dev.Show(ctx, img); err != nil {
		return err
	}
	a.lastRefresh = a.now()
	return nil
}

// Sleep forwards to the device.
func (a *Adapter) Sleep() {
	a.dev.Sleep()
}

func ctxSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
