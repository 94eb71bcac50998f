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

	"github.com/nvr-ai/go-ocr/app"
	"github.com/nvr-ai/go-ocr/config"
	"github.com/nvr-ai/go-ocr/controller"
	"github.com/nvr-ai/go-ocr/log"
	"github.com/nvr-ai/go-ocr/profiler"
	"github.com/nvr-ai/go-ocr/server"
)

func main() {
	var (
		configPath string
		addr       string
		logLevel   string
	)
	flag.StringVar(&configPath, "config", "", "Path to YAML configuration file")
	flag.StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	flag.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flag.Parse()

	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			log.Errorf("load config: %v", err)
			os.Exit(1)
		}
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	prof := profiler.NewRuntimeProfiler(profiler.ProfilingOptions{})
	prof.Start()
	defer prof.Stop()

	pages, _ := app.Pages()
	set, err := controller.NewSet(app.Dependencies(cfg, prof), cfg.Workers, pages...)
	if err != nil {
		log.Errorf("create pages: %v", err)
		os.Exit(1)
	}
	defer set.Close()

	srv := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: server.New(set,
			server.WithProfiler(prof),
			server.WithAllowedOrigins(cfg.Server.AllowedOrigins...),
			server.WithMaxUploadBytes(cfg.Server.MaxUploadBytes),
		).Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Infof("listening on %s (pages: %v)", cfg.Server.Addr, set.Names())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("serve: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("shutdown: %v", err)
	}
}
