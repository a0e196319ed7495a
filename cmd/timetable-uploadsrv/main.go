package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	appLog "github.com/Melokeo/Timetable4Inky/internal/log"
	"github.com/Melokeo/Timetable4Inky/internal/upload"
)

func main() {
	// Optional .env next to the binary; real deployments use systemd env.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		appLog.Warn("dotenv load failed", "err", err)
	}

	var (
		listen    = flag.String("listen", ":8080", "HTTP listen address")
		dest      = flag.String("dest", "/var/www/timetable/timeline.png", "Where accepted frames are written")
		secretEnv = flag.String("secret-env", "TIMETABLE_UPLOAD_SECRET", "Environment variable holding the shared secret")
	)
	flag.Parse()

	secret := os.Getenv(*secretEnv)
	if secret == "" {
		appLog.Error("shared secret not set", nil, "env", *secretEnv)
		os.Exit(1)
	}

	srv := upload.NewServer(upload.ServerConfig{
		Secret:   secret,
		DestPath: *dest,
	})

	httpSrv := &http.Server{
		Addr:              *listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	go func() {
		<-ctx.Done()
		shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutCancel()
		httpSrv.Shutdown(shutCtx)
	}()

	appLog.Info("upload server listening", "addr", *listen, "dest", *dest)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		appLog.Error("server failed", err)
		os.Exit(1)
	}
	appLog.Info("upload server exiting")
}
