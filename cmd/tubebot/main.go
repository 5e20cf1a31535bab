package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sonroyaalmerol/tubebot/internal/config"
	"github.com/sonroyaalmerol/tubebot/internal/handlers"
	"github.com/sonroyaalmerol/tubebot/internal/logging"
	"github.com/sonroyaalmerol/tubebot/internal/media"
	"github.com/sonroyaalmerol/tubebot/internal/spotify"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}
	closer, err := logging.Setup(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		log.Fatal(err)
	}
	defer closer.Close()

	store, err := media.NewStore(cfg.DownloadsDir)
	if err != nil {
		log.Fatal(err)
	}
	if err := store.Sweep(); err != nil {
		slog.Warn("sweep media", "dir", store.Root(), "err", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var sp *spotify.Client
	if cfg.SpotifyEnabled() {
		sp = spotify.NewClientCredentials(ctx, cfg.SpotifyClientID, cfg.SpotifyClientSecret)
	}

	bot := handlers.NewBot(cfg, store, sp)
	if err := bot.Run(ctx); err != nil {
		slog.Error("bot stopped", "err", err)
		os.Exit(1)
	}
}
