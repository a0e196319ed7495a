package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Melokeo/Timetable4Inky/internal/alarm"
	"github.com/Melokeo/Timetable4Inky/internal/battery"
	"github.com/Melokeo/Timetable4Inky/internal/config"
	"github.com/Melokeo/Timetable4Inky/internal/display"
	appLog "github.com/Melokeo/Timetable4Inky/internal/log"
	"github.com/Melokeo/Timetable4Inky/internal/provider"
	"github.com/Melokeo/Timetable4Inky/internal/render"
	"github.com/Melokeo/Timetable4Inky/internal/routine"
	"github.com/Melokeo/Timetable4Inky/internal/sched"
	"github.com/Melokeo/Timetable4Inky/internal/task"
	"github.com/Melokeo/Timetable4Inky/internal/upload"
)

type flagConfig struct {
	configPath string
	once       bool
	renderOnly bool
}

func main() {
	appLog.Info("timetabled starting", "version", "0.1.0")

	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	loc, err := time.LoadLocation(conf.Timezone)
	if err != nil {
		appLog.Error("bad timezone", err, "timezone", conf.Timezone)
		os.Exit(1)
	}

	appLog.Info("effective config",
		"timezone", conf.Timezone,
		"driver", conf.Driver,
		"routine_path", conf.RoutinePath,
		"calendars", len(conf.Calendars),
		"upload", conf.Upload.URL != "",
		"once", flags.once,
		"render_only", flags.renderOnly,
	)

	registry := task.DefaultRegistry()

	routines, err := routine.LoadFile(conf.RoutinePath, registry)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			appLog.Error("routine file invalid; falling back to built-in", err, "path", conf.RoutinePath)
		} else {
			appLog.Info("no routine file; using built-in", "path", conf.RoutinePath)
		}
		routines = routine.BuiltinSet(registry)
	}

	providers := &provider.Providers{}
	if len(conf.Calendars) > 0 {
		providers.Calendar = provider.NewCalendarProvider(conf.Calendars, conf.CacheDir)
	}
	providers.Abbreviator = provider.NewAbbreviator(conf.Abbrev, conf.CacheDir)

	renderer := render.New()
	renderer.LoadBackground(filepath.Join(conf.CacheDir, "background.png"))

	dev := openDevice(conf, flags.renderOnly)
	adapter := display.NewAdapter(dev, time.Duration(conf.MinRefreshSeconds)*time.Second)

	var uploader *upload.Client
	if conf.Upload.URL != "" && !flags.renderOnly {
		if conf.Upload.Secret == "" {
			appLog.Error("upload URL set but no secret configured", nil)
			os.Exit(1)
		}
		uploader = upload.NewClient(conf.Upload.URL, conf.Upload.Secret, conf.Upload.MaxAttempts)
	}

	daemon := sched.NewDaemon(conf, loc, sched.Deps{
		Registry:  registry,
		Routines:  routines,
		Providers: providers,
		Renderer:  renderer,
		Adapter:   adapter,
		Uploader:  uploader,
		Alarms:    alarm.NewPlayer(filepath.Join(conf.CacheDir, "sounds")),
		Battery:   battery.DefaultReader(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	if flags.once {
		if err := daemon.RunOnce(ctx); err != nil {
			appLog.Error("single cycle failed", err)
			os.Exit(1)
		}
		appLog.Info("timetabled exiting")
		return
	}

	err = daemon.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		appLog.Error("scheduler stopped", err)
		os.Exit(1)
	}
	appLog.Info("timetabled exiting")
}

// openDevice picks the panel driver. Hardware problems degrade to the
// PNG preview device so the daemon keeps rendering and uploading.
func openDevice(conf *config.Config, renderOnly bool) display.Device {
	if renderOnly || conf.Driver != "inky" {
		return display.NewPNGDevice(filepath.Join(conf.CacheDir, "panel.png"))
	}
	dev, err := display.OpenInky()
	if err != nil {
		appLog.Error("panel unavailable; falling back to png output", err)
		return display.NewPNGDevice(filepath.Join(conf.CacheDir, "panel.png"))
	}
	return dev
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/timetable/config.yaml", "Path to config file")
	flag.BoolVar(&cfg.once, "once", false, "Run one render(+display+upload) cycle and exit")
	flag.BoolVar(&cfg.renderOnly, "render-only", false, "Render to PNG only; no hardware, no upload")

	flag.Parse()

	return cfg
}
