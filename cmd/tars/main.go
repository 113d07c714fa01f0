package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ent0n29/tars/internal/app"
	"github.com/ent0n29/tars/internal/audio"
	"github.com/ent0n29/tars/internal/config"
)

func main() {
	listDevices := flag.Bool("list-devices", false, "print audio input devices and exit")
	flag.Parse()

	// A missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	if *listDevices {
		devices, err := audio.ListInputDevices()
		if err != nil {
			log.Fatalf("list devices failed: %v", err)
		}
		for _, d := range devices {
			fmt.Printf("%d\t%s\t(%d ch, %.0f Hz)\n", d.Index, d.Name, d.MaxInputChannels, d.DefaultSampleRate)
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := app.Build(ctx, cfg, app.Options{})
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}
	log.Printf("brain provider: %s", res.Providers.Brain)
	log.Printf("voice providers: %s", res.Providers.Voice)
	log.Printf("humor store: %s (level %d%%)", res.Providers.Humor, res.Humor.Level())

	var httpServer *http.Server
	if res.API != nil {
		httpServer = &http.Server{
			Addr:    cfg.BindAddr,
			Handler: res.API.Router(),
		}
		go func() {
			log.Printf("server listening on %s", cfg.BindAddr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("listen error: %v", err)
				stop()
			}
		}()
	}

	log.Printf("%s is online; say %q to start", cfg.AssistantName, cfg.WakeWords[0])
	runErr := res.Controller.Run(ctx)
	if runErr != nil {
		log.Printf("assistant stopped: %v", runErr)
	} else {
		log.Printf("shutdown signal received")
	}

	if httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("graceful shutdown failed: %v", err)
			_ = httpServer.Close()
		}
		cancel()
	}
	if err := res.Cleanup(); err != nil {
		log.Printf("cleanup failed: %v", err)
	}

	log.Printf("shutdown complete")
	if runErr != nil {
		os.Exit(1)
	}
}
